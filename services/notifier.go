package services

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"accreditation-api/config"
	"accreditation-api/metrics"
	"accreditation-api/models"
)

// Notifier sends workflow emails. Implementations must not block the caller
// and must swallow delivery failures.
type Notifier interface {
	SendAssignment(to, name, documentTitle, role string, due *time.Time)
	SendStatusUpdate(to, name, documentTitle string, oldStatus, newStatus models.DocumentStatus)
	SendPasswordReset(to, token, name string)
}

type emailMetaItem struct {
	Label string
	Value string
}

type emailView struct {
	Subject    string
	Greeting   string
	Paragraphs []string
	Meta       []emailMetaItem
	ButtonText string
	ButtonURL  string
	Footer     string
}

var emailLayout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Subject}}</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
<div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px 24px 28px 24px;">
<h1 style="margin:0;font-size:22px;font-weight:700;color:#111827;line-height:1.35;">{{.Subject}}</h1>
<div style="margin-top:20px;color:#1f2937;font-size:16px;line-height:1.75;">
<p style="margin:0 0 18px 0;">{{.Greeting}}</p>
{{range .Paragraphs}}<p style="margin:0 0 18px 0;line-height:1.7;">{{.}}</p>
{{end}}</div>
{{if .Meta}}<table role="presentation" cellpadding="0" cellspacing="0" width="100%" style="border:1px solid #e5e7eb;border-radius:12px;background-color:#f9fafb;margin:0 0 24px 0;">
<tbody>
{{range .Meta}}<tr>
<td style="padding:12px 16px;font-size:13px;color:#6b7280;width:38%;">{{.Label}}</td>
<td style="padding:12px 16px;font-size:15px;color:#111827;font-weight:600;">{{.Value}}</td>
</tr>
{{end}}</tbody>
</table>{{end}}
{{if and .ButtonText .ButtonURL}}<div style="text-align:center;margin:12px 0 24px 0;">
<a href="{{.ButtonURL}}" style="display:inline-block;padding:12px 28px;background-color:#2563eb;color:#ffffff;text-decoration:none;border-radius:999px;font-weight:600;">{{.ButtonText}}</a>
</div>{{end}}
<div style="color:#6b7280;font-size:13px;line-height:1.7;">{{.Footer}}</div>
</div>
</div>
</body>
</html>`))

func renderEmail(v emailView) (string, error) {
	if v.Footer == "" {
		v.Footer = "Accreditation Management System"
	}
	var buf bytes.Buffer
	if err := emailLayout.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// humanStatus turns "review_completed" into "REVIEW COMPLETED".
func humanStatus(s models.DocumentStatus) string {
	return strings.ToUpper(strings.ReplaceAll(string(s), "_", " "))
}

// MailSender delivers a rendered message. *config.Mailer satisfies it.
type MailSender interface {
	Send(to []string, subject, html string) error
}

// MailNotifier renders HTML mails and hands them to a MailSender on a goroutine.
type MailNotifier struct {
	clientURL string
	sender    MailSender
}

func NewMailNotifier(clientURL string, sender MailSender) *MailNotifier {
	return &MailNotifier{clientURL: strings.TrimRight(clientURL, "/"), sender: sender}
}

func (n *MailNotifier) SendAssignment(to, name, documentTitle, role string, due *time.Time) {
	meta := []emailMetaItem{{Label: "Document", Value: documentTitle}, {Label: "Role", Value: role}}
	if due != nil {
		meta = append(meta, emailMetaItem{Label: "Due date", Value: due.Format("2 Jan 2006")})
	}
	n.dispatch("assignment", to, "Document Assignment - "+documentTitle, emailView{
		Greeting:   "Hello " + name + ",",
		Paragraphs: []string{"You have been assigned as a " + role + " for the following document.", "Please log in to your dashboard to start working on it."},
		Meta:       meta,
		ButtonText: "Go to Dashboard",
		ButtonURL:  n.clientURL + "/dashboard",
	})
}

func (n *MailNotifier) SendStatusUpdate(to, name, documentTitle string, oldStatus, newStatus models.DocumentStatus) {
	n.dispatch("status_update", to, "Status Update - "+documentTitle, emailView{
		Greeting:   "Hello " + name + ",",
		Paragraphs: []string{"The status of your document has been updated."},
		Meta: []emailMetaItem{
			{Label: "Document", Value: documentTitle},
			{Label: "Previous status", Value: humanStatus(oldStatus)},
			{Label: "Current status", Value: humanStatus(newStatus)},
		},
		ButtonText: "View Details",
		ButtonURL:  n.clientURL + "/dashboard",
	})
}

func (n *MailNotifier) SendPasswordReset(to, token, name string) {
	n.dispatch("password_reset", to, "Password Reset Request", emailView{
		Greeting: "Hello " + name + ",",
		Paragraphs: []string{
			"You have requested to reset your password.",
			"This link will expire in 10 minutes.",
			"If you did not request this password reset, please ignore this email.",
		},
		ButtonText: "Reset Password",
		ButtonURL:  n.clientURL + "/reset-password/" + token,
	})
}

func (n *MailNotifier) dispatch(kind, to, subject string, v emailView) {
	if strings.TrimSpace(to) == "" {
		return
	}
	v.Subject = subject
	go func() {
		html, err := renderEmail(v)
		if err == nil {
			err = n.sender.Send([]string{to}, subject, html)
		}
		metrics.RecordNotification(kind, err)
		if err != nil {
			config.Log.Warnw("notification email failed", "kind", kind, "to", to, "error", err)
		}
	}()
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) SendAssignment(string, string, string, string, *time.Time)                  {}
func (NopNotifier) SendStatusUpdate(string, string, string, models.DocumentStatus, models.DocumentStatus) {}
func (NopNotifier) SendPasswordReset(string, string, string)                                    {}
