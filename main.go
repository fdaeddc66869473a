// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/shopsy-store/shopsy_backend/config"
	"github.com/shopsy-store/shopsy_backend/controllers"
	"github.com/shopsy-store/shopsy_backend/middleware"
	"github.com/shopsy-store/shopsy_backend/models"
	"github.com/shopsy-store/shopsy_backend/repositories"
	"github.com/shopsy-store/shopsy_backend/routes"
	"github.com/shopsy-store/shopsy_backend/utils"
)

// CustomValidator wraps go-playground/validator for echo.
type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	db := config.ConnectDB()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Disconnect(ctx); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	redisClient, err := config.ConnectRedis()
	if err != nil {
		// The rate limiter has no meaning without its shared counter store.
		log.Fatalf("Redis is required for rate limiting: %v", err)
	}

	emails, err := utils.NewEmailService()
	if err != nil {
		log.Fatalf("Email service misconfigured: %v", err)
	}
	sms := utils.NewSMSService()

	emailChecker := utils.NewDisposableEmailChecker("data/disposable-domains.txt")
	emailChecker.StartRefreshLoop()
	phones := utils.NewPhoneValidator("data/disposable_numbers.json", utils.NewCarrierLookupClient())
	breach := utils.NewBreachChecker()

	userRepo := repositories.NewUserRepository(db)
	authController := controllers.NewAuthController(userRepo, emails, sms, emailChecker, phones, breach)
	passwordController := controllers.NewPasswordController(userRepo, emails, breach)

	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}
	e.HideBanner = true

	rateLimiter := middleware.NewRateLimiter(redisClient)

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.SecurityHeaders())
	e.Use(rateLimiter.RateLimit())

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, models.Response{
			Success: true,
			Message: "Shopsy account service is running",
		})
	})
	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		dbStatus := "up"
		if err := db.Ping(ctx, nil); err != nil {
			dbStatus = "down"
		}
		redisStatus := "up"
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisStatus = "down"
		}

		return c.JSON(http.StatusOK, models.Response{
			Success: true,
			Message: "OK",
			Data: map[string]string{
				"database": dbStatus,
				"redis":    redisStatus,
			},
		})
	})

	routes.RegisterAuthRoutes(e, rateLimiter, authController, passwordController)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}
	log.Printf("Starting server on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
