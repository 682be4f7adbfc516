package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strings"

	mail "github.com/go-mail/mail/v2"
)

// ErrMailNotConfigured is returned by Mailer.Send when SMTP_HOST or a sender address is missing.
var ErrMailNotConfigured = errors.New("smtp not configured (SMTP_HOST/SMTP_FROM)")

// MailSettings is the SMTP part of Settings.
type MailSettings struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string // e.g. "Accreditation System <no-reply@your.org>"
	SkipTLSVerify bool   // dev only
}

func loadMailSettings() MailSettings {
	ms := MailSettings{
		Host:          strings.TrimSpace(os.Getenv("SMTP_HOST")),
		Port:          getEnvInt("SMTP_PORT", 587),
		Username:      os.Getenv("SMTP_USER"),
		Password:      os.Getenv("SMTP_PASS"),
		From:          strings.TrimSpace(os.Getenv("SMTP_FROM")),
		SkipTLSVerify: os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1",
	}
	if ms.From == "" && ms.Username != "" {
		ms.From = fmt.Sprintf("Accreditation System <%s>", ms.Username)
	}
	return ms
}

// Configured reports whether there is enough to dial a server.
func (ms MailSettings) Configured() bool {
	return ms.Host != "" && ms.From != ""
}

// Mailer sends HTML notifications over SMTP with mandatory STARTTLS.
type Mailer struct {
	settings MailSettings
	dial     func(d *mail.Dialer, m *mail.Message) error
}

func NewMailer(ms MailSettings) *Mailer {
	return &Mailer{
		settings: ms,
		dial:     func(d *mail.Dialer, m *mail.Message) error { return d.DialAndSend(m) },
	}
}

func (m *Mailer) message(to []string, subject, html string) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.settings.From)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)
	return msg
}

func (m *Mailer) dialer() *mail.Dialer {
	d := mail.NewDialer(m.settings.Host, m.settings.Port, m.settings.Username, m.settings.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         m.settings.Host,
		InsecureSkipVerify: m.settings.SkipTLSVerify,
	}
	return d
}

// Send delivers one message. An empty recipient list is a no-op.
func (m *Mailer) Send(to []string, subject, html string) error {
	if len(to) == 0 {
		return nil
	}
	if !m.settings.Configured() {
		return ErrMailNotConfigured
	}
	if err := m.dial(m.dialer(), m.message(to, subject, html)); err != nil {
		return fmt.Errorf("send %q via %s:%d: %w", subject, m.settings.Host, m.settings.Port, err)
	}
	return nil
}
