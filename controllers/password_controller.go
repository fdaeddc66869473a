// controllers/password_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shopsy-store/shopsy_backend/models"
	"github.com/shopsy-store/shopsy_backend/utils"
)

// PasswordController handles the forgot-password / reset flow. The reset
// code travels over email only.
type PasswordController struct {
	repo    IdentityStore
	lockout *utils.LockoutEngine
	emails  Mailer
	breach  *utils.BreachChecker
	logger  *log.Logger
}

func NewPasswordController(
	repo IdentityStore,
	emails Mailer,
	breach *utils.BreachChecker,
) *PasswordController {
	pc := &PasswordController{
		repo:    repo,
		lockout: utils.NewLockoutEngine(repo),
		emails:  emails,
		breach:  breach,
		logger:  log.New(os.Stdout, "[PASSWORD] ", log.LstdFlags),
	}
	pc.lockout.OnLock = pc.notifyLockout
	return pc
}

// notifyLockout mails the account owner when a reset attempt engages the
// lock. Best effort.
func (pc *PasswordController) notifyLockout(user *models.User, until time.Time) {
	if err := pc.emails.SendLockoutNotice(user.Email, user.Username, until); err != nil {
		pc.logger.Printf("Failed to send lockout notice to %s: %v", user.Email, err)
	}
}

// ForgotPassword generates a reset code and mails it. The send is
// awaited so the caller is never told a code is on its way when it isn't.
func (pc *PasswordController) ForgotPassword(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.ForgotPasswordRequest
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

	user, err := pc.repo.FindByEmail(ctx, email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return utils.RespondError(c, utils.E(utils.KindNotFound, "No account associated with this email"))
		}
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to look up account", err))
	}

	return pc.issueResetOTP(ctx, c, user, utils.ResetOTPValidity)
}

// ResendResetOTP issues a replacement reset code with the longer resend
// validity.
func (pc *PasswordController) ResendResetOTP(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.ForgotPasswordRequest
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

	user, err := pc.repo.FindByEmail(ctx, email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return utils.RespondError(c, utils.E(utils.KindNotFound, "No account associated with this email"))
		}
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to look up account", err))
	}

	return pc.issueResetOTP(ctx, c, user, utils.ResendOTPValidity)
}

func (pc *PasswordController) issueResetOTP(ctx context.Context, c echo.Context, user *models.User, validity time.Duration) error {
	otp, err := utils.GenerateOTP()
	if err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to generate reset code", err))
	}

	expiresAt := time.Now().Add(validity)
	if err := pc.repo.SetResetOTP(ctx, user.ID, otp, expiresAt); err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to store reset code", err))
	}

	if err := pc.emails.SendResetOTP(user.Email, otp, validity); err != nil {
		pc.logger.Printf("Reset email to %s failed: %v", user.Email, err)
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to send reset email. Please try again", err))
	}

	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "A reset code has been sent to " + maskEmail(user.Email),
	})
}

// ResetPassword verifies the reset code through the lockout engine, runs
// the new password through the full policy pipeline and stores the new
// hash. The code is consumed only when the whole operation succeeds, so
// a rejected password does not burn the code.
func (pc *PasswordController) ResetPassword(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Invalid request payload"))
	}
	if err := c.Validate(&req); err != nil {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "Email, reset code and new password are required"))
	}

	email, err := utils.ValidateEmail(req.Email)
	if err != nil {
		return utils.RespondError(c, err)
	}

	otp, err := utils.ParseOTP(req.OTP)
	if err != nil {
		return utils.RespondError(c, err)
	}

	user, err := pc.repo.FindByEmail(ctx, email)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return utils.RespondError(c, utils.E(utils.KindNotFound, "No account associated with this email"))
		}
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to look up account", err))
	}

	// A consumed or never-issued code is an authentication failure, not a
	// malformed request.
	if user.EmailOTP == nil {
		return utils.RespondError(c, utils.E(utils.KindAuthentication, "No reset is pending. Please request a reset code first"))
	}

	now := time.Now()
	result, err := pc.lockout.Evaluate(ctx, user, func(context.Context) (bool, error) {
		switch utils.CheckOTP(user.EmailOTP, user.OTPExpiresAt, otp, now) {
		case utils.OTPExpired:
			return false, utils.E(utils.KindAuthentication, "OTP has expired. Please request a new one")
		case utils.OTPMatch:
			return true, nil
		default:
			return false, nil
		}
	})
	if err != nil {
		return utils.RespondError(c, err)
	}

	switch result.Decision {
	case utils.LockoutActive, utils.LockoutEngaged:
		return utils.RespondError(c, utils.E(utils.KindLocked, utils.LockoutMessage(result.Remaining)))
	case utils.LockoutRejected:
		return utils.RespondError(c, utils.E(utils.KindAuthentication, "Invalid reset code"))
	}

	if err := utils.EvaluatePassword(req.Password, pc.breach); err != nil {
		return utils.RespondError(c, err)
	}
	if utils.CheckPassword(req.Password, user.Password) == nil {
		return utils.RespondError(c, utils.E(utils.KindClientInput, "New password cannot be the same as your current password"))
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to secure password", err))
	}
	if err := pc.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return utils.RespondError(c, utils.Wrap(utils.KindUpstream, "Failed to update password", err))
	}

	if err := pc.emails.SendPasswordChanged(user.Email, user.Username); err != nil {
		pc.logger.Printf("Password-changed email to %s failed: %v", user.Email, err)
	}

	pc.logger.Printf("Password reset for account %s", user.ID.Hex())
	return c.JSON(http.StatusOK, models.Response{
		Success: true,
		Message: "Password has been reset successfully",
	})
}

// maskEmail obscures the local part, leaving the first and last rune.
func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local := email[:at]
	if len(local) <= 2 {
		return strings.Repeat("*", len(local)) + email[at:]
	}
	return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + email[at:]
}
