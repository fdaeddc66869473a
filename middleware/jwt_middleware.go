// middleware/jwt_middleware.go
package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"

	"github.com/shopsy-store/shopsy_backend/models"
)

// sessionValidity is how long an issued session token stays usable.
const sessionValidity = 7 * 24 * time.Hour

// JwtCustomClaims carries the identity attributes a session token
// asserts. IsVerified travels in the token so downstream services can
// gate features without a database read.
type JwtCustomClaims struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Phone      string `json:"phoneNumber"`
	IsVerified bool   `json:"isVerified"`
	jwt.StandardClaims
}

// GetJWTSecret retrieves the signing key from the environment.
func GetJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "shopsy-dev-secret-do-not-use-in-production"
	}
	return []byte(secret)
}

// GenerateJWT issues a signed session token for the given identity.
func GenerateJWT(userID, email, phone string, verified bool) (string, error) {
	claims := &JwtCustomClaims{
		UserID:     userID,
		Email:      email,
		Phone:      phone,
		IsVerified: verified,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(sessionValidity).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(GetJWTSecret())
}

// VerifySessionToken parses and validates a session token, returning its
// claims. Expired or tampered tokens return an error.
func VerifySessionToken(tokenString string) (*JwtCustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return GetJWTSecret(), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JwtCustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// JWTMiddleware guards routes that need an authenticated session. Claims
// land in the echo context under "claims".
func JWTMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if auth == "" {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Success: false,
					Message: "Missing authorization header",
				})
			}

			tokenString := strings.TrimPrefix(auth, "Bearer ")
			if tokenString == auth {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Success: false,
					Message: "Invalid authorization header format",
				})
			}

			claims, err := VerifySessionToken(tokenString)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Success: false,
					Message: "Invalid or expired token",
				})
			}

			c.Set("claims", claims)
			return next(c)
		}
	}
}
