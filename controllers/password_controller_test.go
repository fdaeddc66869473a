// controllers/password_controller_test.go
package controllers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shopsy-store/shopsy_backend/models"
	"github.com/shopsy-store/shopsy_backend/utils"
)

func resetPendingUser(t *testing.T, otp int, password string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	expires := time.Now().Add(10 * time.Minute)
	return &models.User{
		ID:           primitive.NewObjectID(),
		Username:     "alice",
		Email:        "alice@example.com",
		Phone:        "+919876543210",
		IsVerified:   true,
		Password:     hash,
		EmailOTP:     &otp,
		OTPExpiresAt: &expires,
	}
}

func TestResetPasswordRejectsReuse(t *testing.T) {
	const current = "xK9#mQv2Lp5!wz"
	store := &fakeIdentityStore{user: resetPendingUser(t, 12345, current)}
	pc := NewPasswordController(store, &fakeMailer{}, nil)

	rec := invokeHandler(pc.ResetPassword, http.MethodPost,
		`{"email":"alice@example.com","otp":"12345","password":"`+current+`"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if body := decodeResponse(t, rec); !strings.Contains(body.Message, "cannot be the same") {
		t.Errorf("unexpected message: %q", body.Message)
	}
	if store.updatedHash != "" {
		t.Error("password updated despite reuse rejection")
	}
	// The rejected attempt must not burn the reset code.
	if store.user.EmailOTP == nil {
		t.Error("reset code consumed by a rejected password")
	}
}

func TestResetPasswordChangesHash(t *testing.T) {
	store := &fakeIdentityStore{user: resetPendingUser(t, 12345, "xK9#mQv2Lp5!wz")}
	mailer := &fakeMailer{}
	pc := NewPasswordController(store, mailer, nil)

	rec := invokeHandler(pc.ResetPassword, http.MethodPost,
		`{"email":"alice@example.com","otp":"12345","password":"nT4$wZx8Qr!b2"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if store.updatedHash == "" {
		t.Fatal("password not updated")
	}
	if err := utils.CheckPassword("nT4$wZx8Qr!b2", store.updatedHash); err != nil {
		t.Errorf("stored hash does not match new password: %v", err)
	}
	if mailer.changed != 1 {
		t.Errorf("password-changed mails = %d, want 1", mailer.changed)
	}
}

func TestResetPasswordThresholdLockNotifies(t *testing.T) {
	store := &fakeIdentityStore{
		user:     resetPendingUser(t, 12345, "xK9#mQv2Lp5!wz"),
		attempts: utils.LockoutThreshold - 1,
	}
	store.user.FailedLoginAttempts = utils.LockoutThreshold - 1
	mailer := &fakeMailer{}
	pc := NewPasswordController(store, mailer, nil)

	rec := invokeHandler(pc.ResetPassword, http.MethodPost,
		`{"email":"alice@example.com","otp":"99999","password":"nT4$wZx8Qr!b2"}`)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want 403: %s", rec.Code, rec.Body.String())
	}
	if store.lockUntil == nil {
		t.Error("lock not engaged")
	}
	if mailer.lockoutNotices != 1 {
		t.Errorf("lockout notices = %d, want 1", mailer.lockoutNotices)
	}
}

func TestResetPasswordWithoutPendingCode(t *testing.T) {
	user := resetPendingUser(t, 12345, "xK9#mQv2Lp5!wz")
	user.EmailOTP = nil
	user.OTPExpiresAt = nil
	store := &fakeIdentityStore{user: user}
	pc := NewPasswordController(store, &fakeMailer{}, nil)

	rec := invokeHandler(pc.ResetPassword, http.MethodPost,
		`{"email":"alice@example.com","otp":"12345","password":"nT4$wZx8Qr!b2"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
	if store.attempts != 0 {
		t.Errorf("failure counter = %d, want 0", store.attempts)
	}
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice@example.com", "a***e@example.com"},
		{"ab@example.com", "**@example.com"},
		{"a@example.com", "*@example.com"},
		{"no-at-sign", "no-at-sign"},
	}
	for _, tt := range tests {
		if got := maskEmail(tt.in); got != tt.want {
			t.Errorf("maskEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
