package email

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// sendFunc delivers a prepared message; swapped out in tests
type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   sendFunc
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendNotification mails an in-app notification to the user
func (s *Sender) SendNotification(to, name string, n models.Notification) error {
	subject := n.Title
	if n.Priority == models.PriorityUrgent {
		subject = "[Urgent] " + subject
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Dear %s,\n\n", name)
	body.WriteString(n.Message)
	body.WriteString("\n")
	if n.RelatedEntityID != "" {
		fmt.Fprintf(&body, "\nReference: %s\n", n.RelatedEntityID)
	}
	body.WriteString("\nBest regards,\nCard Service")

	return s.deliver(to, subject, body.String())
}

// SendEMIReminder mails a reminder for an upcoming or overdue installment
func (s *Sender) SendEMIReminder(to, name string, e models.EMI, overdue bool) error {
	subject := "Upcoming EMI Payment Reminder"
	if overdue {
		subject = "Overdue EMI Payment Notification"
	}

	body := fmt.Sprintf("Dear %s,\n\n", name)
	if overdue {
		body += fmt.Sprintf(
			"Your EMI installment of %s for %s was due on %s and is now overdue.\n"+
				"Please make the payment as soon as possible.\n",
			models.FormatAmount(e.InstallmentAmount), e.Code, e.NextDueDate.Format("2006-01-02"),
		)
	} else {
		body += fmt.Sprintf(
			"This is a reminder that your EMI installment of %s for %s is due on %s.\n"+
				"Remaining balance: %s (%d of %d installments paid).\n",
			models.FormatAmount(e.InstallmentAmount), e.Code, e.NextDueDate.Format("2006-01-02"),
			models.FormatAmount(e.RemainingBalance), e.CurrentInstallment, e.TotalInstallments,
		)
	}
	body += "\nBest regards,\nCard Service"

	return s.deliver(to, subject, body)
}

func (s *Sender) deliver(to, subject, body string) error {
	if !s.cfg.SMTPEnabled() {
		s.logger.Debugf("SMTP disabled, skipping email to %s: %s", to, subject)
		return nil
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)

	start := time.Now()
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"to":          to,
		"subject":     subject,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Email sent")
	return nil
}
