package email

import (
	"errors"
	"io"
	"net/smtp"
	"testing"
	"time"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSender(host string) (*Sender, *[]*email.Email) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{SMTPHost: host, SMTPPort: "2525", SenderEmail: "noreply@test.local"}
	s := NewSender(cfg, logger)

	var sent []*email.Email
	s.send = func(e *email.Email, addr string, _ smtp.Auth) error {
		if addr != host+":2525" {
			return errors.New("unexpected address " + addr)
		}
		sent = append(sent, e)
		return nil
	}
	return s, &sent
}

func TestSendNotification(t *testing.T) {
	s, sent := newTestSender("smtp.test.local")

	err := s.SendNotification("jane@example.com", "Jane Doe", models.Notification{
		Title:           "Card Blocked",
		Message:         "Your card ending 1111 was blocked.",
		Priority:        models.PriorityUrgent,
		RelatedEntityID: "CARD_ABCDEF123456",
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	msg := (*sent)[0]
	assert.Equal(t, []string{"jane@example.com"}, msg.To)
	assert.Equal(t, "noreply@test.local", msg.From)
	assert.Equal(t, "[Urgent] Card Blocked", msg.Subject)
	assert.Contains(t, string(msg.Text), "Dear Jane Doe")
	assert.Contains(t, string(msg.Text), "CARD_ABCDEF123456")
}

func TestSendEMIReminder(t *testing.T) {
	s, sent := newTestSender("smtp.test.local")
	e := models.EMI{
		Code:               "EMI_0123456789AB",
		InstallmentAmount:  888.49,
		RemainingBalance:   9211.51,
		CurrentInstallment: 1,
		TotalInstallments:  12,
		NextDueDate:        time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, s.SendEMIReminder("jane@example.com", "Jane", e, false))
	require.NoError(t, s.SendEMIReminder("jane@example.com", "Jane", e, true))
	require.Len(t, *sent, 2)

	assert.Equal(t, "Upcoming EMI Payment Reminder", (*sent)[0].Subject)
	assert.Contains(t, string((*sent)[0].Text), "INR 888.49")
	assert.Contains(t, string((*sent)[0].Text), "2025-04-30")
	assert.Contains(t, string((*sent)[0].Text), "1 of 12")

	assert.Equal(t, "Overdue EMI Payment Notification", (*sent)[1].Subject)
	assert.Contains(t, string((*sent)[1].Text), "overdue")
}

func TestSendSkippedWithoutSMTP(t *testing.T) {
	s, sent := newTestSender("")

	require.NoError(t, s.SendNotification("jane@example.com", "Jane", models.Notification{Title: "Hi"}))
	assert.Empty(t, *sent)
}

func TestSendFailure(t *testing.T) {
	s, _ := newTestSender("smtp.test.local")
	s.send = func(*email.Email, string, smtp.Auth) error { return errors.New("connection refused") }

	err := s.SendNotification("jane@example.com", "Jane", models.Notification{Title: "Hi"})
	assert.ErrorContains(t, err, "connection refused")
}
