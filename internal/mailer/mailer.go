// Package mailer delivers one-time codes to account holders. The production
// implementation sends plain-text email over SMTP via go-mail; when no SMTP
// host is configured the service falls back to a log-only sender so the
// flows stay testable in development.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/veilwork/authd/internal/config"
)

// Sender delivers one-time codes. Implementations must be safe for
// concurrent use.
type Sender interface {
	// SendResetCode delivers a password-reset code.
	SendResetCode(ctx context.Context, to, code string) error

	// SendVerifyCode delivers an email-verification code.
	SendVerifyCode(ctx context.Context, to, code string) error
}

// New returns an SMTP sender when a host is configured, otherwise a
// log-only sender for development.
func New(cfg config.SMTPConfig) Sender {
	if cfg.Host == "" {
		return &LogSender{}
	}
	return &SMTPSender{cfg: cfg}
}

// --- SMTP ---

// SMTPSender sends codes as plain-text email via go-mail.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// SendResetCode implements Sender.
func (s *SMTPSender) SendResetCode(ctx context.Context, to, code string) error {
	body := fmt.Sprintf(
		"Your password reset code is: %s\n\nIf you did not request a reset, you can ignore this message.\n",
		code,
	)
	return s.send(ctx, to, "Your password reset code", body)
}

// SendVerifyCode implements Sender.
func (s *SMTPSender) SendVerifyCode(ctx context.Context, to, code string) error {
	body := fmt.Sprintf(
		"Your email verification code is: %s\n",
		code,
	)
	return s.send(ctx, to, "Verify your email address", body)
}

// send builds and delivers a single plain-text message.
func (s *SMTPSender) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("setting from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Use implicit TLS (SSL) for port 465, STARTTLS for others.
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

// --- Development fallback ---

// LogSender logs codes instead of mailing them. Development only: the code
// lands in the server log, which must never happen in production.
type LogSender struct{}

// SendResetCode implements Sender.
func (l *LogSender) SendResetCode(_ context.Context, to, code string) error {
	slog.Info("password reset code (smtp not configured)",
		slog.String("to", to),
		slog.String("code", code),
	)
	return nil
}

// SendVerifyCode implements Sender.
func (l *LogSender) SendVerifyCode(_ context.Context, to, code string) error {
	slog.Info("email verification code (smtp not configured)",
		slog.String("to", to),
		slog.String("code", code),
	)
	return nil
}
