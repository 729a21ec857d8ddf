// Package mailer sends plain-text notification mail for header publishes
// carrying an Email header.
package mailer

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/pushbolt/pushbolt/pkg/config"
)

type Mailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewFromConfig returns nil when SMTP is not configured, which disables
// the mail side effect.
func NewFromConfig(cfg *config.Config) *Mailer {
	if !cfg.SMTPEnabled() {
		return nil
	}
	m := &Mailer{
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		from: cfg.SMTPFrom,
	}
	if m.from == "" {
		m.from = "pushbolt@" + cfg.SMTPHost
	}
	if cfg.SMTPUser != "" {
		m.auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	slog.Info("smtp mailer enabled", "server", m.addr, "from", m.from)
	return m
}

// Send delivers one plain-text message.
func (m *Mailer) Send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}
