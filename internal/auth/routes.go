package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/veilwork/authd/internal/middleware"
)

// RegisterRoutes sets up all auth routes on the given Echo instance.
//
// POST endpoints handling credentials or codes are rate-limited per IP to
// slow down brute-force and credential stuffing: 10 login attempts per
// minute, 5 for registration and the OTP endpoints.
func RegisterRoutes(e *echo.Echo, h *Handler, verifier TokenVerifier) {
	// Public routes -- no session required.
	e.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))
	e.POST("/register", h.Register, middleware.RateLimit(5, time.Minute))
	e.GET("/is-authenticated", h.IsAuthenticated)
	e.POST("/send-reset-otp", h.SendResetOTP, middleware.RateLimit(5, time.Minute))
	e.POST("/reset-password", h.ResetPassword, middleware.RateLimit(5, time.Minute))

	// Routes below require a valid session token.
	authed := e.Group("", RequireAuth(verifier))
	authed.POST("/logout", h.Logout)
	authed.GET("/profile", h.Profile)
	authed.POST("/send-otp", h.SendVerifyOTP, middleware.RateLimit(5, time.Minute))
	authed.POST("/verify-otp", h.VerifyEmail, middleware.RateLimit(10, time.Minute))
}
