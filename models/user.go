// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User model. OTP codes and lockout state are embedded so every
// credential-bearing mutation stays a single atomic document update.
type User struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Username   string             `json:"username" bson:"username"`
	Email      string             `json:"email" bson:"email"`
	Phone      string             `json:"phoneNumber" bson:"phoneNumber"`
	Password   string             `json:"password,omitempty" bson:"password"`
	IsVerified bool               `json:"isVerified" bson:"isVerified"`

	// Registration uses the email+phone pair, password reset only the
	// email code. Both share one expiry.
	EmailOTP     *int       `json:"-" bson:"emailOtp,omitempty"`
	PhoneOTP     *int       `json:"-" bson:"phoneOtp,omitempty"`
	OTPExpiresAt *time.Time `json:"-" bson:"otpExpiresAt,omitempty"`

	FailedLoginAttempts int        `json:"-" bson:"failedLoginAttempts"`
	LockUntil           *time.Time `json:"-" bson:"lockUntil,omitempty"`

	// ValidTill backs the TTL index that reaps identities that never
	// complete verification.
	ValidTill *time.Time `json:"-" bson:"validTill,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Response model
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// VerifyOTPRequest carries both registration codes. Codes arrive as
// strings and are parsed before any comparison.
type VerifyOTPRequest struct {
	Email    string `json:"email" validate:"required"`
	EmailOTP string `json:"emailOtp" validate:"required"`
	PhoneOTP string `json:"phoneOtp" validate:"required"`
}

type ResendOTPRequest struct {
	Email string `json:"email" validate:"required"`
}

type CancelRegistrationRequest struct {
	Email string `json:"email" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required"`
	OTP      string `json:"otp" validate:"required"`
	Password string `json:"password" validate:"required"`
}
