package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Dan9191/card-service/internal/events"
	"github.com/Dan9191/card-service/internal/models"
)

const paymentBill = "bill_pay"

// CreateBillInput describes a bill to be paid from one of the user's cards
type CreateBillInput struct {
	CardID             int64      `json:"card_id"`
	BillerName         string     `json:"biller_name"`
	BillerCategory     string     `json:"biller_category"`
	BillType           string     `json:"bill_type"`
	Amount             float64    `json:"amount"`
	DueDate            *time.Time `json:"due_date"`
	PeriodStart        *time.Time `json:"bill_period_start"`
	PeriodEnd          *time.Time `json:"bill_period_end"`
	BillNumber         string     `json:"bill_number"`
	ConsumerNumber     string     `json:"consumer_number"`
	Description        string     `json:"description"`
	IsRecurring        bool       `json:"is_recurring"`
	RecurringFrequency string     `json:"recurring_frequency"`
}

// BillDetails holds the fields of an open bill that may change
type BillDetails struct {
	BillerName     *string    `json:"biller_name"`
	BillerCategory *string    `json:"biller_category"`
	Amount         *float64   `json:"amount"`
	DueDate        *time.Time `json:"due_date"`
	BillNumber     *string    `json:"bill_number"`
	ConsumerNumber *string    `json:"consumer_number"`
	Description    *string    `json:"description"`
}

// BillPaymentResult is a bill after a payment, the booked transaction and,
// for a settled recurring bill, the next bill of the series
type BillPaymentResult struct {
	Bill        models.BillView     `json:"bill"`
	Transaction *models.Transaction `json:"transaction"`
	NextBill    *models.BillView    `json:"next_bill,omitempty"`
}

// CreateBill records a bill against one of the user's cards
func (s *Service) CreateBill(ctx context.Context, userID int64, in CreateBillInput) (*models.BillView, error) {
	billType := strings.ToLower(strings.TrimSpace(in.BillType))
	switch {
	case strings.TrimSpace(in.BillerName) == "":
		return nil, fmt.Errorf("%w: biller_name is required", models.ErrValidation)
	case strings.TrimSpace(in.BillerCategory) == "":
		return nil, fmt.Errorf("%w: biller_category is required", models.ErrValidation)
	case !models.ValidBillType(billType):
		return nil, fmt.Errorf("%w: bill_type must be one of %s", models.ErrValidation, strings.Join(models.BillTypes, ", "))
	case math.IsNaN(in.Amount) || in.Amount <= 0:
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	case in.DueDate == nil || in.DueDate.IsZero():
		return nil, fmt.Errorf("%w: due_date is required", models.ErrValidation)
	case in.PeriodStart != nil && in.PeriodEnd != nil && in.PeriodEnd.Before(*in.PeriodStart):
		return nil, fmt.Errorf("%w: bill period ends before it starts", models.ErrValidation)
	}

	frequency := ""
	if in.IsRecurring {
		frequency = strings.ToLower(strings.TrimSpace(in.RecurringFrequency))
		if frequency == "" {
			frequency = models.FrequencyMonthly
		}
		if !models.ValidFrequency(frequency) {
			return nil, fmt.Errorf("%w: recurring_frequency must be monthly, quarterly or yearly", models.ErrValidation)
		}
	}

	card, err := s.store.GetCard(ctx, userID, in.CardID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	b := &models.Bill{
		Code:               newCode("BILL"),
		UserID:             userID,
		CardID:             card.ID,
		BillerName:         strings.TrimSpace(in.BillerName),
		BillerCategory:     strings.TrimSpace(in.BillerCategory),
		BillType:           billType,
		Amount:             models.RoundCents(in.Amount),
		Currency:           models.Currency,
		DueDate:            *in.DueDate,
		Status:             models.BillStatusPending,
		PeriodStart:        in.PeriodStart,
		PeriodEnd:          in.PeriodEnd,
		BillNumber:         strings.TrimSpace(in.BillNumber),
		ConsumerNumber:     strings.TrimSpace(in.ConsumerNumber),
		Description:        strings.TrimSpace(in.Description),
		IsRecurring:        in.IsRecurring,
		RecurringFrequency: frequency,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.CreateBill(ctx, b); err != nil {
		return nil, err
	}

	s.log.Infof("Bill %s created for user %d: %s %.2f due %s", b.Code, userID, b.BillerName, b.Amount, b.DueDate.Format(time.DateOnly))
	view := s.billView(*b)
	return &view, nil
}

// ListBills returns one page of the user's bills. With dueSoon only pending
// bills falling due within the reminder window are listed.
func (s *Service) ListBills(ctx context.Context, userID int64, filter models.BillFilter, dueSoon bool) (*models.BillPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, filter.Status)
	}
	if filter.BillType != "" && !models.ValidBillType(filter.BillType) {
		return nil, fmt.Errorf("%w: unknown bill type %q", models.ErrValidation, filter.BillType)
	}
	if dueSoon {
		now := s.now()
		if filter.Status == "" {
			filter.Status = models.BillStatusPending
		}
		filter.DueFrom = now
		filter.DueTo = now.Add(time.Duration(s.config.ReminderWindowDays+1)*24*time.Hour - time.Microsecond)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = defaultPerPage
	}
	if filter.PerPage > maxPerPage {
		filter.PerPage = maxPerPage
	}

	bills, total, err := s.store.ListBills(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	page := &models.BillPage{
		Bills:       make([]models.BillView, 0, len(bills)),
		Total:       total,
		Pages:       (total + filter.PerPage - 1) / filter.PerPage,
		CurrentPage: filter.Page,
		PerPage:     filter.PerPage,
	}
	for _, b := range bills {
		page.Bills = append(page.Bills, s.billView(b))
	}
	return page, nil
}

// GetBill returns one of the user's bills
func (s *Service) GetBill(ctx context.Context, userID, billID int64) (*models.BillView, error) {
	b, err := s.store.GetBill(ctx, userID, billID)
	if err != nil {
		return nil, err
	}
	view := s.billView(*b)
	return &view, nil
}

// UpdateBill changes an open bill. Moving the due date of an overdue bill
// into the future reopens it as pending.
func (s *Service) UpdateBill(ctx context.Context, userID, billID int64, d BillDetails) (*models.BillView, error) {
	b, err := s.store.GetBill(ctx, userID, billID)
	if err != nil {
		return nil, err
	}
	if !b.Status.Open() {
		return nil, fmt.Errorf("%w: bill %s is %s", models.ErrInvalidState, b.Code, b.Status)
	}

	if d.BillerName != nil {
		if strings.TrimSpace(*d.BillerName) == "" {
			return nil, fmt.Errorf("%w: biller_name may not be empty", models.ErrValidation)
		}
		b.BillerName = strings.TrimSpace(*d.BillerName)
	}
	if d.BillerCategory != nil {
		if strings.TrimSpace(*d.BillerCategory) == "" {
			return nil, fmt.Errorf("%w: biller_category may not be empty", models.ErrValidation)
		}
		b.BillerCategory = strings.TrimSpace(*d.BillerCategory)
	}
	if d.Amount != nil {
		if math.IsNaN(*d.Amount) || models.RoundCents(*d.Amount) <= b.PaidAmount {
			return nil, fmt.Errorf("%w: amount must exceed the %s already paid", models.ErrValidation, models.FormatAmount(b.PaidAmount))
		}
		b.Amount = models.RoundCents(*d.Amount)
	}
	now := s.now()
	if d.DueDate != nil && !d.DueDate.IsZero() {
		b.DueDate = *d.DueDate
		b.ReminderSent = false
		if b.Status == models.BillStatusOverdue && b.DueDate.After(now) {
			b.Status = models.BillStatusPending
		}
	}
	if d.BillNumber != nil {
		b.BillNumber = strings.TrimSpace(*d.BillNumber)
	}
	if d.ConsumerNumber != nil {
		b.ConsumerNumber = strings.TrimSpace(*d.ConsumerNumber)
	}
	if d.Description != nil {
		b.Description = strings.TrimSpace(*d.Description)
	}
	b.UpdatedAt = now
	if err := s.store.UpdateBill(ctx, b); err != nil {
		return nil, err
	}

	view := s.billView(*b)
	return &view, nil
}

// PayBill pays a bill from its card. Amount defaults to what remains due and
// may not exceed it.
func (s *Service) PayBill(ctx context.Context, userID, billID int64, amount *float64) (*BillPaymentResult, error) {
	b, err := s.store.GetBill(ctx, userID, billID)
	if err != nil {
		return nil, err
	}
	pay := b.Remaining()
	if amount != nil {
		pay = models.RoundCents(*amount)
	}
	return s.payBill(ctx, b, pay, s.now(), paymentBill)
}

// SetBillAutoPay turns automatic payment on the due date on or off. Only
// recurring bills take auto-pay.
func (s *Service) SetBillAutoPay(ctx context.Context, userID, billID int64, enabled bool) (*models.BillView, error) {
	b, err := s.store.GetBill(ctx, userID, billID)
	if err != nil {
		return nil, err
	}
	if enabled {
		if !b.IsRecurring {
			return nil, fmt.Errorf("%w: auto pay can only be enabled for recurring bills", models.ErrValidation)
		}
		if b.Status == models.BillStatusCancelled {
			return nil, fmt.Errorf("%w: bill %s is cancelled", models.ErrInvalidState, b.Code)
		}
	}

	b.AutoPayEnabled = enabled
	b.UpdatedAt = s.now()
	if err := s.store.UpdateBill(ctx, b); err != nil {
		return nil, err
	}

	s.log.Infof("Auto-pay for bill %s set to %t", b.Code, enabled)
	view := s.billView(*b)
	return &view, nil
}

// CancelBill withdraws an open bill
func (s *Service) CancelBill(ctx context.Context, userID, billID int64) (*models.BillView, error) {
	b, err := s.store.GetBill(ctx, userID, billID)
	if err != nil {
		return nil, err
	}
	if err := b.Cancel(); err != nil {
		return nil, err
	}
	b.AutoPayEnabled = false
	b.UpdatedAt = s.now()
	if err := s.store.UpdateBill(ctx, b); err != nil {
		return nil, err
	}

	s.log.Infof("Bill %s cancelled", b.Code)
	view := s.billView(*b)
	return &view, nil
}

// BillTypes lists the accepted bill types
func (s *Service) BillTypes() []string {
	return append([]string(nil), models.BillTypes...)
}

// BillSummary aggregates all of the user's bills
func (s *Service) BillSummary(ctx context.Context, userID int64) (*models.BillSummary, error) {
	bills, _, err := s.store.ListBills(ctx, userID, models.BillFilter{})
	if err != nil {
		return nil, err
	}
	summary := models.SummarizeBills(bills, s.now(), s.config.ReminderWindowDays)
	return &summary, nil
}

func (s *Service) payBill(ctx context.Context, b *models.Bill, amount float64, now time.Time, kind string) (*BillPaymentResult, error) {
	card, err := s.store.GetCard(ctx, b.UserID, b.CardID)
	if err != nil {
		return nil, err
	}
	if !card.Usable() {
		return nil, fmt.Errorf("%w: card is not active or is blocked", models.ErrInvalidState)
	}

	updated := *b
	if err := updated.Pay(amount, now); err != nil {
		return nil, err
	}
	if _, err := card.Debit(amount); err != nil {
		return nil, err
	}
	updated.UpdatedAt = now
	card.LastUsed = &now
	card.UpdatedAt = now

	var next *models.Bill
	if updated.Status == models.BillStatusPaid {
		if next = updated.NextOccurrence(); next != nil {
			next.Code = newCode("BILL")
			next.CreatedAt, next.UpdatedAt = now, now
		}
	}

	billID := updated.ID
	txn := &models.Transaction{
		Code:             newCode("TXN"),
		UserID:           updated.UserID,
		CardID:           card.ID,
		BillID:           &billID,
		MerchantName:     updated.BillerName,
		MerchantCategory: "bill_payment",
		Description:      fmt.Sprintf("%s bill %s", strings.ReplaceAll(updated.BillType, "_", " "), updated.Code),
		Amount:           amount,
		Currency:         models.Currency,
		Type:             models.TransactionDebit,
		Status:           models.TransactionCompleted,
		PaymentMethod:    kind,
		TransactionDate:  now,
		CreatedAt:        now,
	}
	if err := s.store.SaveBillPayment(ctx, &updated, card, txn, next); err != nil {
		return nil, err
	}

	s.metrics.BillPaid(kind, amount)
	s.log.Infof("Bill %s paid %.2f from card %s, remaining %.2f, status %s",
		updated.Code, amount, card.Code, updated.Remaining(), updated.Status)
	s.notify(ctx, models.Notification{
		UserID:            updated.UserID,
		Title:             "Bill Payment Successful",
		Message:           fmt.Sprintf("Payment of %s to %s has been made.", models.FormatAmount(amount), updated.BillerName),
		Category:          models.CategoryBill,
		Priority:          models.PriorityLow,
		RelatedEntityType: "bill",
		RelatedEntityID:   updated.Code,
	})
	s.publish(ctx, events.BillPaid, s.billEvent(updated, amount))

	*b = updated
	res := &BillPaymentResult{Bill: s.billView(updated), Transaction: txn}
	if next != nil {
		view := s.billView(*next)
		res.NextBill = &view
	}
	return res, nil
}

// sendBillReminders marks pending bills past their due date overdue and
// reminds owners once of bills falling due within the window
func (s *Service) sendBillReminders(ctx context.Context, now time.Time) (int, error) {
	bills, err := s.store.ListOpenBills(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range bills {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		b := &bills[i]

		var n models.Notification
		switch {
		case b.MarkOverdue(now):
			n = models.Notification{
				Title:    "Bill Overdue",
				Message:  fmt.Sprintf("Your %s bill of %s was due on %s.", b.BillerName, models.FormatAmount(b.Remaining()), b.DueDate.Format(time.DateOnly)),
				Priority: models.PriorityUrgent,
			}
		case !b.ReminderSent && b.IsDueSoon(now, s.config.ReminderWindowDays):
			days := b.DaysUntilDue(now)
			priority := models.PriorityMedium
			if days <= 1 {
				priority = models.PriorityHigh
			}
			b.ReminderSent = true
			n = models.Notification{
				Title:    "Bill Payment Reminder",
				Message:  fmt.Sprintf("Your %s bill of %s is due %s.", b.BillerName, models.FormatAmount(b.Remaining()), dueIn(days)),
				Priority: priority,
			}
		default:
			continue
		}

		b.UpdatedAt = now
		if err := s.store.UpdateBill(ctx, b); err != nil {
			s.log.Warnf("Failed to update bill %s for reminder: %v", b.Code, err)
			continue
		}
		n.UserID = b.UserID
		n.Category = models.CategoryBill
		n.RelatedEntityType = "bill"
		n.RelatedEntityID = b.Code
		s.notify(ctx, n)
		if b.Status == models.BillStatusOverdue {
			s.publish(ctx, events.BillOverdue, s.billEvent(*b, 0))
		}
		s.metrics.BillReminderSent(n.Priority)
		sent++
	}
	return sent, nil
}

// processBillAutoPay pays open auto-pay bills due by the end of today.
// Failures are reported to the owner and skipped.
func (s *Service) processBillAutoPay(ctx context.Context, now time.Time) (int, error) {
	bills, err := s.store.ListOpenBills(ctx)
	if err != nil {
		return 0, err
	}

	y, m, d := now.Date()
	endOfDay := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	paid := 0
	for i := range bills {
		if err := ctx.Err(); err != nil {
			return paid, err
		}
		b := &bills[i]
		if !b.AutoPayEnabled || !b.DueDate.Before(endOfDay) {
			continue
		}

		amount := b.Remaining()
		if _, err := s.payBill(ctx, b, amount, now, paymentAutoPay); err != nil {
			s.log.Warnf("Auto-pay failed for bill %s: %v", b.Code, err)
			s.notify(ctx, models.Notification{
				UserID:            b.UserID,
				Title:             "Bill Auto-pay Failed",
				Message:           fmt.Sprintf("We could not pay %s to %s. Please pay manually.", models.FormatAmount(amount), b.BillerName),
				Category:          models.CategoryBill,
				Priority:          models.PriorityHigh,
				RelatedEntityType: "bill",
				RelatedEntityID:   b.Code,
			})
			continue
		}
		paid++
	}
	return paid, nil
}

func (s *Service) billView(b models.Bill) models.BillView {
	return b.View(s.now(), s.config.ReminderWindowDays)
}

func (s *Service) billEvent(b models.Bill, amount float64) events.BillEvent {
	return events.BillEvent{
		BillID:     b.Code,
		UserID:     b.UserID,
		CardID:     b.CardID,
		Status:     string(b.Status),
		Amount:     amount,
		Remaining:  b.Remaining(),
		OccurredAt: s.now(),
	}
}
