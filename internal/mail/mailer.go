// Package mail delivers transactional email.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"plume/internal/config"
	"plume/internal/middleware"

	"gopkg.in/gomail.v2"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when SMTP is configured and a LogMailer otherwise.
func New(cfg *config.Config) Mailer {
	if !cfg.SMTPConfigured() {
		middleware.Logger.Warn("SMTP not configured, outgoing mail will only be logged")
		return LogMailer{}
	}
	return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
}

// sender is the part of gomail.Dialer used to deliver.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	from   string
	dialer sender
}

// NewSMTPMailer dials host:port for every message. STARTTLS is used when the
// server offers it.
func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	return &SMTPMailer{
		from:   from,
		dialer: gomail.NewDialer(host, port, user, password),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Body)

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(gm) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

// LogMailer records that a message would have been sent. The body is not
// logged since it can carry credentials.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	middleware.Logger.InfoContext(ctx, "email not sent, SMTP disabled",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}
