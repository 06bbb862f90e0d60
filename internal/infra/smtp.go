package infra

import (
	"errors"
	"fmt"
	"net/smtp"

	"github.com/ethan0sc4r/gestione-vinicola/internal/config"

	"github.com/jordan-wright/email"
)

// ErrMailerNotConfigured is returned when SMTP_HOST is empty.
var ErrMailerNotConfigured = errors.New("mailer: SMTP host not configured")

// Mailer wraps SMTP configuration for operator alert e-mails.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

// Configured reports whether an SMTP host was provided.
func (m *Mailer) Configured() bool { return m.host != "" }

// SendAlert sends a plain-text message.
func (m *Mailer) SendAlert(to, subject, body string) error {
	if !m.Configured() {
		return ErrMailerNotConfigured
	}
	e := email.NewEmail()
	e.From = m.user
	if e.From == "" {
		e.From = "ledger@" + m.host
	}
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	if err := e.Send(m.addr, auth); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}
