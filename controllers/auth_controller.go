// controllers/auth_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shopsy-store/shopsy_backend/middleware"
	"github.com/shopsy-store/shopsy_backend/models"
	"github.com/shopsy-store/shopsy_backend/utils"
)

// IdentityStore is the slice of the user repository the controllers
// consume. *repositories.UserRepository satisfies it.
type IdentityStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Exists(ctx context.Context, username, email, phone string) (bool, error)
	Create(ctx context.Context, user *models.User) (primitive.ObjectID, error)
	SetRegistrationOTP(ctx context.Context, id primitive.ObjectID, emailOTP, phoneOTP int, expiresAt time.Time) error
	SetResetOTP(ctx context.Context, id primitive.ObjectID, otp int, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id primitive.ObjectID) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	DeleteUnverifiedByEmail(ctx context.Context, email string) (*models.User, error)
	utils.LockoutStore
}

// Mailer sends the service's transactional mail. *utils.EmailService
// satisfies it.
type Mailer interface {
	SendVerificationOTP(to, username string, otp int) error
	SendResetOTP(to string, otp int, validity time.Duration) error
	SendWelcome(to, username string) error
	SendPasswordChanged(to, username string) error
	SendLockoutNotice(to, username string, until time.Time) error
}

// SMSSender delivers OTP codes by SMS. *utils.SMSService satisfies it.
type SMSSender interface {
	SendOTP(phone string, otp int) error
}

// AuthController handles registration, login and OTP verification.
type AuthController struct {
	repo         IdentityStore
	lockout      *utils.LockoutEngine
	emails       Mailer
	sms          SMSSender
	emailChecker *utils.DisposableEmailChecker
	phones       *utils.PhoneValidator
	breach       *utils.BreachChecker
	logger       *log.Logger
}

func NewAuthController(
	repo IdentityStore,
	emails Mailer,
	sms SMSSender,
	emailChecker *utils.DisposableEmailChecker,
	phones *utils.PhoneValidator,
	breach *utils.BreachChecker,
) *AuthController {
	c := &AuthController{
		repo:         repo,
		lockout:      utils.NewLockoutEngine(repo),
		emails:       emails,
		sms:          sms,
		emailChecker: emailChecker,
		phones:       phones,
		breach:       breach,
		logger:       log.New(os.Stdout, "[AUTH] ", log.LstdFlags),
	}
	c.lockout.OnLock = c.notifyLockout
	return c
}

// notifyLockout mails the account owner when a lock engages. Best effort.
func (ac *AuthController) notifyLockout(user *models.User, until time.Time) {
	if err := ac.emails.SendLockoutNotice(user.Email, user.Username, until); err != nil {
		ac.logger.Printf("Failed to send lockout notice to %s: %v", user.Email, err)
	}
}

// Register creates an unverified identity and dispatches the OTP pair.
// Both sends are awaited: if either channel fails, the whole request
// fails so the caller knows no code is pending.
func (ac *AuthController) Register(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Invalid request payload"))
	}
	if err := c.Validate(&req); err != nil {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Username, email, phone and password are required"))
	}

	username := utils.SanitizeInput(req.Username)
	if username == "" {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Username is required"))
	}

	email, err := utils.ValidateEmail(req.Email)
	if err != nil {
		return utils.RespondError(c, err)
	}
	if ac.emailChecker.IsDisposableEmail(email) {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Disposable email addresses are not allowed"))
	}

	phone, err := utils.ValidatePhone(req.Phone)
	if err != nil {
		return utils.RespondError(c, err)
	}
	if ac.phones.IsDisposable(req.Phone) {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Virtual or disposable phone numbers are not allowed"))
	}

	if err := utils.EvaluatePassword(req.Password, ac.breach); err != nil {
		return utils.RespondError(c, err)
	}

	exists, err := ac.repo.Exists(ctx, username, email, phone)
	if err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to check existing accounts", err))
	}
	if exists {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "An account with this username, email or phone number already exists"))
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to secure password", err))
	}

	emailOTP, err := utils.GenerateOTP()
	if err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to generate verification code", err))
	}
	phoneOTP, err := utils.GenerateOTP()
	if err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to generate verification code", err))
	}

	now := time.Now()
	expiresAt := now.Add(utils.RegistrationOTPValidity)
	validTill := now.Add(utils.RegistrationOTPValidity)
	user := &models.User{
		Username:     username,
		Email:        email,
		Phone:        phone,
		Password:     hash,
		IsVerified:   false,
		EmailOTP:     &emailOTP,
		PhoneOTP:     &phoneOTP,
		OTPExpiresAt: &expiresAt,
		ValidTill:    &validTill,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	id, err := ac.repo.Create(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return utils.RespondError(c, utils.E(utils.KindClientInput, "An account with this username, email or phone number already exists"))
		}
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to create account", err))
	}
	user.ID = id

	if err := ac.emails.SendVerificationOTP(email, username, emailOTP); err != nil {
		ac.logger.Printf("Verification email to %s failed: %v", email, err)
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to send verification email. Please try again", err))
	}
	if err := ac.sms.SendOTP(phone, phoneOTP); err != nil {
		ac.logger.Printf("Verification SMS to %s failed: %v", phone, err)
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to send verification SMS. Please try again", err))
	}

	token, err := middleware.GenerateJWT(id.Hex(), email, phone, false)
	if err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to create session", err))
	}

	ac.logger.Printf("Registered unverified account %s", id.Hex())
	return c.JSON(http.StatusCreated, models.Response{
		Success: true,
		Message: "Account created. Verification codes sent to your email and phone",
		Data: map[string]interface{}{
			"token": token,
			"user": map[string]interface{}{
				"id":         id.Hex(),
				"username":   username,
				"email":      email,
				"phone":      phone,
				"isVerified": false,
			},
		},
	})
}

// Login authenticates by username and password through the lockout engine.
func (ac *AuthController) Login(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Invalid request payload"))
	}
	if err := c.Validate(&req); err != nil {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Username and password are required"))
	}

	user, err := ac.repo.FindByUsername(ctx, utils.SanitizeInput(req.Username))
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// Unknown username gets the same rejection as a wrong password.
			return utils.RespondError(c, utils.E(utils.KindAuthentication, "Username or password is incorrect"))
		}
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to look up account", err))
	}

	result, err := ac.lockout.Evaluate(ctx, user, func(context.Context) (bool, error) {
		return utils.CheckPassword(req.Password, user.Password) == nil, nil
	})
	if err != nil {
		return utils.RespondError(c, err)
	}

	switch result.Decision {
	case utils.LockoutActive, utils.LockoutEngaged:
		return utils.RespondError(c, utils.E(utils.KindLocked, utils.LockoutMessage(result.Remaining)))
	case utils.LockoutRejected:
		return utils.RespondError(c, utils.E(utils.KindAuthentication, "Username or password is incorrect"))
	}

	token, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Phone, user.IsVerified)
	if err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to create session", err))
	}

	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "Login successful",
		Data: map[string]interface{}{
			"token": token,
			"user": map[string]interface{}{
				"id":         user.ID.Hex(),
				"username":   user.Username,
				"email":      user.Email,
				"phone":      user.Phone,
				"isVerified": user.IsVerified,
			},
		},
	})
}

// VerifyOTP checks the registration code pair. Both codes must match in
// the same request; a partial match counts as one failed attempt.
func (ac *AuthController) VerifyOTP(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Invalid request payload"))
	}
	if err := c.Validate(&req); err != nil {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Email and both verification codes are required"))
	}

	email, err := utils.ValidateEmail(req.Email)
	if err != nil {
		return utils.RespondError(c, err)
	}

	emailOTP, err := utils.ParseOTP(req.EmailOTP)
	if err != nil {
		return utils.RespondError(c, err)
	}
	phoneOTP, err := utils.ParseOTP(req.PhoneOTP)
	if err != nil {
		return utils.RespondError(c, err)
	}

	user, err := ac.repo.FindByEmail(ctx, email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return utils.RespondError(c, utils.E(utils.KindNotFound, "No account associated with this email"))
		}
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to look up account", err))
	}

	// A consumed or never-issued code is an authentication failure, not a
	// malformed request.
	if user.IsVerified {
		return utils.RespondError(c, utils.E(utils.KindAuthentication, "Account is already verified"))
	}
	if user.EmailOTP == nil || user.PhoneOTP == nil {
		return utils.RespondError(c, utils.E(utils.KindAuthentication, "No verification is pending. Please request new codes"))
	}

	now := time.Now()
	result, err := ac.lockout.Evaluate(ctx, user, func(context.Context) (bool, error) {
		emailVerdict := utils.CheckOTP(user.EmailOTP, user.OTPExpiresAt, emailOTP, now)
		phoneVerdict := utils.CheckOTP(user.PhoneOTP, user.OTPExpiresAt, phoneOTP, now)
		if emailVerdict == utils.OTPExpired || phoneVerdict == utils.OTPExpired {
			// Expired codes are not wrong codes: abort without a counter bump.
			return false, utils.E(utils.KindAuthentication, "OTP has expired. Please request a new one")
		}
		return emailVerdict == utils.OTPMatch && phoneVerdict == utils.OTPMatch, nil
	})
	if err != nil {
		return utils.RespondError(c, err)
	}

	switch result.Decision {
	case utils.LockoutActive, utils.LockoutEngaged:
		return utils.RespondError(c, utils.E(utils.KindLocked, utils.LockoutMessage(result.Remaining)))
	case utils.LockoutRejected:
		return utils.RespondError(c, utils.E(utils.KindAuthentication, "Invalid verification code"))
	}

	if err := ac.repo.MarkVerified(ctx, user.ID); err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to verify account", err))
	}

	if err := ac.emails.SendWelcome(user.Email, user.Username); err != nil {
		ac.logger.Printf("Welcome email to %s failed: %v", user.Email, err)
	}

	token, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Phone, true)
	if err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to create session", err))
	}

	ac.logger.Printf("Account %s verified", user.ID.Hex())
	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "Account verified successfully",
		Data: map[string]interface{}{
			"token": token,
			"user": map[string]interface{}{
				"id":         user.ID.Hex(),
				"username":   user.Username,
				"email":      user.Email,
				"phone":      user.Phone,
				"isVerified": true,
			},
		},
	})
}

// ResendOTP replaces the outstanding registration pair with fresh codes
// and re-dispatches both channels.
func (ac *AuthController) ResendOTP(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.ResendOTPRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Invalid request payload"))
	}
	if err := c.Validate(&req); err != nil {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Email is required"))
	}

	email, err := utils.ValidateEmail(req.Email)
	if err != nil {
		return utils.RespondError(c, err)
	}

	user, err := ac.repo.FindByEmail(ctx, email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return utils.RespondError(c, utils.E(utils.KindNotFound, "No account associated with this email"))
		}
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to look up account", err))
	}

	if user.IsVerified {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Account is already verified"))
	}

	emailOTP, err := utils.GenerateOTP()
	if err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to generate verification code", err))
	}
	phoneOTP, err := utils.GenerateOTP()
	if err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to generate verification code", err))
	}

	expiresAt := time.Now().Add(utils.RegistrationOTPValidity)
	if err := ac.repo.SetRegistrationOTP(ctx, user.ID, emailOTP, phoneOTP, expiresAt); err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to store verification codes", err))
	}

	if err := ac.emails.SendVerificationOTP(user.Email, user.Username, emailOTP); err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to send verification email. Please try again", err))
	}
	if err := ac.sms.SendOTP(user.Phone, phoneOTP); err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to send verification SMS. Please try again", err))
	}

	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "New verification codes sent to your email and phone",
	})
}

// CancelRegistration deletes a pending, unverified identity so its
// email, phone and username can be registered again immediately.
func (ac *AuthController) CancelRegistration(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.CancelRegistrationRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Invalid request payload"))
	}
	if err := c.Validate(&req); err != nil {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Email is required"))
	}

	email, err := utils.ValidateEmail(req.Email)
	if err != nil {
		return utils.RespondError(c, err)
	}

	user, err := ac.repo.DeleteUnverifiedByEmail(ctx, email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return utils.RespondError(c, utils.E(utils.KindNotFound, "No pending registration found for this email"))
		}
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to cancel registration", err))
	}

	ac.logger.Printf("Cancelled pending registration %s", user.ID.Hex())
	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "Registration cancelled",
	})
}

// ValidateToken verifies a session token and echoes its claims back.
func (ac *AuthController) ValidateToken(c echo.Context) error {
	auth := c.Request().Header.Get("Authorization")
	tokenString := strings.TrimPrefix(auth, "Bearer ")
	if tokenString == "" {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Success: false,
			Message: "Missing authorization header",
		})
	}

	claims, err := middleware.VerifySessionToken(tokenString)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Success: false,
			Message: "Invalid or expired token",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "Token is valid",
		Data: map[string]interface{}{
			"userId":     claims.UserID,
			"email":      claims.Email,
			"phone":      claims.Phone,
			"isVerified": claims.IsVerified,
		},
	})
}
