package config

import (
	"errors"
	"testing"

	mail "github.com/go-mail/mail/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsMailSettingsAtCallTime(t *testing.T) {
	t.Setenv("SMTP_HOST", "smtp.example.org")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USER", "mailer@example.org")
	t.Setenv("SMTP_PASS", "hunter22")
	t.Setenv("SMTP_FROM", "")
	t.Setenv("SMTP_SKIP_TLS_VERIFY", "1")

	ms := Load().Mail
	assert.Equal(t, "smtp.example.org", ms.Host)
	assert.Equal(t, 2525, ms.Port)
	assert.Equal(t, "mailer@example.org", ms.Username)
	assert.Equal(t, "hunter22", ms.Password)
	assert.Equal(t, "Accreditation System <mailer@example.org>", ms.From)
	assert.True(t, ms.SkipTLSVerify)
	assert.True(t, ms.Configured())

	t.Setenv("SMTP_HOST", "")
	t.Setenv("SMTP_PORT", "")
	ms = Load().Mail
	assert.Equal(t, 587, ms.Port)
	assert.False(t, ms.Configured())
}

func TestMailerSend(t *testing.T) {
	ms := MailSettings{Host: "smtp.example.org", Port: 587, Username: "u", Password: "p", From: "Accreditation <no-reply@example.org>"}

	var gotDialer *mail.Dialer
	var gotMsg *mail.Message
	m := NewMailer(ms)
	m.dial = func(d *mail.Dialer, msg *mail.Message) error {
		gotDialer, gotMsg = d, msg
		return nil
	}

	require.NoError(t, m.Send(nil, "ignored", "<p>x</p>"))
	assert.Nil(t, gotMsg)

	require.NoError(t, m.Send([]string{"rita@example.com"}, "Document Assignment", "<p>hi</p>"))
	require.NotNil(t, gotMsg)
	assert.Equal(t, []string{"Accreditation <no-reply@example.org>"}, gotMsg.GetHeader("From"))
	assert.Equal(t, []string{"rita@example.com"}, gotMsg.GetHeader("To"))
	assert.Equal(t, []string{"Document Assignment"}, gotMsg.GetHeader("Subject"))
	assert.Equal(t, "smtp.example.org", gotDialer.Host)
	assert.Equal(t, mail.MandatoryStartTLS, gotDialer.StartTLSPolicy)
	assert.Equal(t, "smtp.example.org", gotDialer.TLSConfig.ServerName)

	m.dial = func(*mail.Dialer, *mail.Message) error { return errors.New("connection refused") }
	err := m.Send([]string{"rita@example.com"}, "Document Assignment", "<p>hi</p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	err = NewMailer(MailSettings{}).Send([]string{"rita@example.com"}, "s", "b")
	assert.ErrorIs(t, err, ErrMailNotConfigured)
}
