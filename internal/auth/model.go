// Package auth implements the authentication service: login with session
// token issuance, registration, and the OTP-backed password-reset and
// email-verification flows. Handlers are thin; all business logic lives in
// the Service, and all SQL lives in the UserRepository.
package auth

import (
	"time"
)

// User represents a registered account. This is the domain model used
// throughout the application. Database scanning and JSON marshaling use this
// struct directly.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	DisplayName   string     `json:"display_name"`
	PasswordHash  string     `json:"-"` // Never expose in JSON responses.
	Enabled       bool       `json:"-"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// --- Request DTOs (bound from HTTP requests) ---

// LoginRequest holds the credentials submitted to POST /login.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// RegisterRequest holds the data submitted to POST /register.
type RegisterRequest struct {
	Email       string `json:"email" form:"email"`
	DisplayName string `json:"display_name" form:"display_name"`
	Password    string `json:"password" form:"password"`
}

// ResetPasswordRequest holds the data submitted to POST /reset-password.
type ResetPasswordRequest struct {
	Email       string `json:"email" form:"email"`
	OTP         string `json:"otp" form:"otp"`
	NewPassword string `json:"newPassword" form:"newPassword"`
}

// VerifyEmailRequest holds the data submitted to POST /verify-otp. OTP is a
// pointer so a missing field is distinguishable from an empty one.
type VerifyEmailRequest struct {
	OTP *string `json:"otp" form:"otp"`
}

// --- Responses ---

// LoginResponse is the success body for POST /login. The token is also set
// as the "jwt" cookie.
type LoginResponse struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// --- Service Input DTOs ---

// RegisterInput is the validated input for creating a new account.
type RegisterInput struct {
	Email       string
	DisplayName string
	Password    string
}
