package services

import (
	"fmt"
	"net/smtp"
	"strings"

	"coopfin/internal/config"
	"coopfin/internal/logs"
)

// Mailer delivers a templated message to a recipient. The portal never
// blocks a request on delivery problems; callers treat failures as
// best-effort and log them.
type Mailer interface {
	Send(to, subject, body string) error
}

// NewMailer returns the SMTP mailer when email is enabled, otherwise a
// logger-backed mailer that only records what would have been sent.
func NewMailer(cfg *config.Config) Mailer {
	if cfg.Email.Enabled {
		return &SMTPMailer{cfg: cfg}
	}
	return &LogMailer{}
}

// SMTPMailer sends through a plain SMTP relay.
type SMTPMailer struct {
	cfg *config.Config
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	e := m.cfg.Email
	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)

	msg := strings.Join([]string{
		"From: " + e.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if e.Username != "" {
		auth = smtp.PlainAuth("", e.Username, e.Password, e.Host)
	}

	if err := smtp.SendMail(addr, auth, e.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// LogMailer records outbound mail instead of sending it. Default in
// development and tests.
type LogMailer struct{}

func (m *LogMailer) Send(to, subject, body string) error {
	logs.Logger.WithField("to", to).WithField("subject", subject).Info("mail suppressed (email disabled)")
	return nil
}
