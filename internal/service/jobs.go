package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/card-service/internal/emi"
	"github.com/Dan9191/card-service/internal/models"
)

// SendDueReminders notifies owners of active plans that are overdue or fall
// due within the reminder window, then handles open bills the same way. It
// returns the number of reminders sent.
func (s *Service) SendDueReminders(ctx context.Context, now time.Time) (int, error) {
	emis, err := s.store.ListActiveEMIs(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, e := range emis {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		overdue := emi.IsOverdue(e, now)
		days := emi.DaysUntilDue(e, now)
		var priority, message string
		switch {
		case overdue:
			priority = models.PriorityUrgent
			message = fmt.Sprintf("EMI payment of %s for %s is overdue!", models.FormatAmount(e.InstallmentAmount), e.Code)
		case days <= 1:
			priority = models.PriorityHigh
			message = fmt.Sprintf("EMI payment of %s for %s is due %s.", models.FormatAmount(e.InstallmentAmount), e.Code, dueIn(days))
		case days <= s.config.ReminderWindowDays:
			priority = models.PriorityMedium
			message = fmt.Sprintf("EMI payment of %s for %s is due %s.", models.FormatAmount(e.InstallmentAmount), e.Code, dueIn(days))
		default:
			continue
		}

		n := models.Notification{
			UserID:            e.UserID,
			Title:             "EMI Payment Reminder",
			Message:           message,
			Category:          models.CategoryEMI,
			Priority:          priority,
			RelatedEntityType: "emi",
			RelatedEntityID:   e.Code,
			CreatedAt:         now,
		}
		if err := s.store.CreateNotification(ctx, &n); err != nil {
			s.log.Warnf("Failed to store reminder for EMI %s: %v", e.Code, err)
			continue
		}
		s.mailReminder(ctx, e, overdue)
		s.metrics.ReminderSent(priority)
		sent++
	}

	s.log.Infof("EMI reminders sent: %d of %d active plans", sent, len(emis))

	bills, err := s.sendBillReminders(ctx, now)
	s.log.Infof("Bill reminders sent: %d", bills)
	return sent + bills, err
}

// ProcessAutoPay pays the installment of every auto-pay plan whose payment
// day is today. A day beyond the end of a short month runs on its last day.
// Auto-pay bills due by the end of today are paid next. Failed payments are
// reported to the owner and skipped.
func (s *Service) ProcessAutoPay(ctx context.Context, now time.Time) (int, error) {
	emis, err := s.store.ListActiveEMIs(ctx)
	if err != nil {
		return 0, err
	}

	paid := 0
	for i := range emis {
		if err := ctx.Err(); err != nil {
			return paid, err
		}
		e := &emis[i]
		if !e.AutoPayEnabled || !autoPayDue(*e, now) {
			continue
		}

		amount := e.InstallmentAmount
		if _, err := s.applyPayment(ctx, e, amount, now, paymentAutoPay); err != nil {
			s.log.Warnf("Auto-pay failed for EMI %s: %v", e.Code, err)
			s.notify(ctx, models.Notification{
				UserID:            e.UserID,
				Title:             "Auto-pay Failed",
				Message:           fmt.Sprintf("We could not collect %s for %s. Please pay manually.", models.FormatAmount(amount), e.Code),
				Category:          models.CategoryPayment,
				Priority:          models.PriorityHigh,
				RelatedEntityType: "emi",
				RelatedEntityID:   e.Code,
			})
			continue
		}
		paid++
	}

	s.log.Infof("Auto-pay processed: %d payments", paid)

	bills, err := s.processBillAutoPay(ctx, now)
	s.log.Infof("Bill auto-pay processed: %d payments", bills)
	return paid + bills, err
}

func (s *Service) mailReminder(ctx context.Context, e models.EMI, overdue bool) {
	if s.mailer == nil {
		return
	}
	user, err := s.store.GetUserByID(ctx, e.UserID)
	if err != nil {
		s.log.Warnf("Failed to load user %d for reminder email: %v", e.UserID, err)
		return
	}
	if err := s.mailer.SendEMIReminder(user.Email, user.FullName(), e, overdue); err != nil {
		s.log.Warnf("Failed to email reminder for EMI %s: %v", e.Code, err)
	}
}

// autoPayDue reports whether today is the plan's auto-pay day and it has not
// been paid today already
func autoPayDue(e models.EMI, now time.Time) bool {
	if e.LastPaymentDate != nil {
		y1, m1, d1 := e.LastPaymentDate.Date()
		y2, m2, d2 := now.Date()
		if y1 == y2 && m1 == m2 && d1 == d2 {
			return false
		}
	}
	lastDay := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	day := e.AutoPayDay
	if day > lastDay {
		day = lastDay
	}
	return now.Day() == day
}

func dueIn(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}
