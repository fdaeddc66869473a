// utils/otp.go
package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	otpMin  = 10000
	otpSpan = 90000

	// RegistrationOTPValidity gates the email+phone pair issued at signup.
	RegistrationOTPValidity = 24 * time.Hour
	// ResetOTPValidity gates the email code issued for a password reset.
	ResetOTPValidity = 10 * time.Minute
	// ResendOTPValidity applies when a reset code is re-issued.
	ResendOTPValidity = 15 * time.Minute
)

// GenerateOTP returns a uniform random five-digit code in [10000, 99999].
func GenerateOTP() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return 0, err
	}
	return otpMin + int(n.Int64()), nil
}

// ParseOTP parses a submitted code. Non-numeric input is rejected before
// any comparison happens.
func ParseOTP(s string) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || code < 0 {
		return 0, E(KindClientInput, "OTP must be a numeric code")
	}
	return code, nil
}

// OTPVerdict is the outcome of checking one submitted code.
type OTPVerdict int

const (
	OTPMatch OTPVerdict = iota
	OTPMissing
	OTPExpired
	OTPMismatch
)

// CheckOTP compares a submitted code against the stored one. Expiry is
// checked before the comparison so a correct-but-expired code reports
// expired, not invalid, and the client knows to request a resend.
func CheckOTP(stored *int, expiresAt *time.Time, submitted int, now time.Time) OTPVerdict {
	if stored == nil || expiresAt == nil {
		return OTPMissing
	}
	if now.After(*expiresAt) {
		return OTPExpired
	}
	if *stored != submitted {
		return OTPMismatch
	}
	return OTPMatch
}
