package services

import (
	"errors"
	"testing"
	"time"

	"accreditation-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	to      []string
	subject string
	html    string
}

type chanSender struct {
	out chan sentMessage
	err error
}

func (s *chanSender) Send(to []string, subject, html string) error {
	s.out <- sentMessage{to: to, subject: subject, html: html}
	return s.err
}

func waitForMessage(t *testing.T, ch <-chan sentMessage) sentMessage {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message sent")
		return sentMessage{}
	}
}

func TestMailNotifier(t *testing.T) {
	sender := &chanSender{out: make(chan sentMessage, 4)}
	n := NewMailNotifier("https://portal.example.org/", sender)

	n.SendStatusUpdate("ivan@example.com", "Ivan", "Self Study", models.StatusUnderReview, models.StatusReviewCompleted)
	m := waitForMessage(t, sender.out)
	assert.Equal(t, []string{"ivan@example.com"}, m.to)
	assert.Equal(t, "Status Update - Self Study", m.subject)
	assert.Contains(t, m.html, "REVIEW COMPLETED")
	assert.Contains(t, m.html, "https://portal.example.org/dashboard")

	n.SendPasswordReset("ivan@example.com", "tok123", "Ivan")
	m = waitForMessage(t, sender.out)
	assert.Contains(t, m.html, "https://portal.example.org/reset-password/tok123")

	n.SendAssignment("", "Nobody", "Self Study", "reviewer", nil)
	select {
	case <-sender.out:
		t.Fatal("blank recipient must not be mailed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMailNotifierSwallowsSendErrors(t *testing.T) {
	sender := &chanSender{out: make(chan sentMessage, 1), err: errors.New("smtp down")}
	n := NewMailNotifier("http://localhost:5173", sender)

	require.NotPanics(t, func() {
		n.SendAssignment("rita@example.com", "Rita", "Self Study", "reviewer", nil)
	})
	m := waitForMessage(t, sender.out)
	assert.Equal(t, "Document Assignment - Self Study", m.subject)
}
