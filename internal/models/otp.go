package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OTP is a pending passcode for one contact address. OTPHash holds the bcrypt
// hash, never the code itself.
type OTP struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitzero"`
	Email          string             `bson:"email" json:"email"`
	OTPHash        string             `bson:"otp" json:"-"`
	ExpiresAt      time.Time          `bson:"expires_at" json:"expires_at"`
	FailedAttempts int                `bson:"failed_attempts" json:"failed_attempts"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// Expired reports whether the record is dead at now.
func (o *OTP) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

type SendOTPRequest struct {
	Aadhar string `json:"aadhar" validate:"required"`
}

type VerifyOTPRequest struct {
	Aadhar string `json:"aadhar" validate:"required"`
	OTP    string `json:"otp" validate:"required"`
}

type OTPResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	User    *Identity `json:"user,omitempty"`
}
