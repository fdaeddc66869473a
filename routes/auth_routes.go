// routes/auth_routes.go
package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/shopsy-store/shopsy_backend/controllers"
	"github.com/shopsy-store/shopsy_backend/middleware"
)

// RegisterAuthRoutes wires the account security endpoints. Every
// credential-bearing route sits behind its rate-limit class.
func RegisterAuthRoutes(
	e *echo.Echo,
	limiter *middleware.RateLimiter,
	auth *controllers.AuthController,
	password *controllers.PasswordController,
) {
	api := e.Group("/api")

	api.POST("/register", auth.Register, limiter.LimitRoute(middleware.ClassRegister))
	api.POST("/login", auth.Login, limiter.LimitRoute(middleware.ClassLogin))

	api.POST("/otp/verify", auth.VerifyOTP, limiter.LimitRoute(middleware.ClassOTPVerify))
	api.POST("/otp/resend", auth.ResendOTP, limiter.LimitRoute(middleware.ClassOTPResend))
	api.DELETE("/otp/cancel-registration", auth.CancelRegistration)

	api.POST("/forgotemail", password.ForgotPassword, limiter.LimitRoute(middleware.ClassResetRequest))
	api.POST("/resetpassword", password.ResetPassword, limiter.LimitRoute(middleware.ClassOTPVerify))
	api.POST("/resetpassword/resend", password.ResendResetOTP, limiter.LimitRoute(middleware.ClassResetResend))

	api.GET("/auth/validate-token", auth.ValidateToken)
}
