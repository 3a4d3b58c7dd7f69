// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/bulletcraft/bulletcraft/internal/config"
	"github.com/bulletcraft/bulletcraft/internal/i18n"
	"github.com/wneessen/go-mail"
)

// Sender delivers one-time codes.
type Sender interface {
	SendOTP(ctx context.Context, to, name, code string, ttl time.Duration) error
}

// Message is a rendered email.
type Message struct {
	Subject string
	Body    string
}

// ComposeOTP renders the sign-in email in the locale carried by ctx.
func ComposeOTP(ctx context.Context, name, code string, ttl time.Duration) Message {
	appName := i18n.T(ctx, "app_name")
	minutes := int(math.Ceil(ttl.Minutes()))

	greeting := i18n.T(ctx, "otp_email_greeting_anonymous")
	if name != "" {
		greeting = i18n.TData(ctx, "otp_email_greeting", map[string]any{"Name": name})
	}

	return Message{
		Subject: i18n.TData(ctx, "otp_email_subject", map[string]any{"AppName": appName}),
		Body: greeting + "\n\n" + i18n.TPlural(ctx, "otp_email_body", minutes, map[string]any{
			"Code": code,
		}),
	}
}

// Service sends email via SMTP.
type Service struct {
	cfg *config.SMTPConfig
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{cfg: cfg}, nil
}

// SendOTP sends a sign-in code to the given address.
func (s *Service) SendOTP(ctx context.Context, to, name, code string, ttl time.Duration) error {
	msg := ComposeOTP(ctx, name, code, ttl)
	return s.send(ctx, to, msg.Subject, msg.Body)
}

// send sends an email via SMTP using go-mail.
func (s *Service) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(10 * time.Second),
	}

	// Implicit TLS on 465, STARTTLS otherwise
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

// LogSender writes codes to the log instead of sending them.
// Only meant for local development without an SMTP server.
type LogSender struct {
	Logger *slog.Logger
}

// SendOTP logs the rendered message.
func (l LogSender) SendOTP(ctx context.Context, to, name, code string, ttl time.Duration) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	msg := ComposeOTP(ctx, name, code, ttl)
	logger.WarnContext(ctx, "otp_email_not_sent",
		"to", to,
		"subject", msg.Subject,
		"code", code,
	)
	return nil
}

var (
	_ Sender = (*Service)(nil)
	_ Sender = LogSender{}
)
