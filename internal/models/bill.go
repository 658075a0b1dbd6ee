package models

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// BillStatus is the payment state of a bill
type BillStatus string

const (
	BillStatusPending   BillStatus = "pending"
	BillStatusPaid      BillStatus = "paid"
	BillStatusOverdue   BillStatus = "overdue"
	BillStatusCancelled BillStatus = "cancelled"
)

// Valid reports whether s is a known status
func (s BillStatus) Valid() bool {
	switch s {
	case BillStatusPending, BillStatusPaid, BillStatusOverdue, BillStatusCancelled:
		return true
	}
	return false
}

// Open reports whether a bill in status s still expects payment
func (s BillStatus) Open() bool {
	return s == BillStatusPending || s == BillStatusOverdue
}

// BillTypes lists the accepted bill types
var BillTypes = []string{"utility", "mobile", "internet", "insurance", "loan", "credit_card", "other"}

// ValidBillType reports whether t is one of BillTypes
func ValidBillType(t string) bool {
	for _, known := range BillTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Recurring frequencies
const (
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
	FrequencyYearly    = "yearly"
)

// frequencyMonths maps a recurring frequency to its length in months
var frequencyMonths = map[string]int{
	FrequencyMonthly:   1,
	FrequencyQuarterly: 3,
	FrequencyYearly:    12,
}

// ValidFrequency reports whether f is a known recurring frequency
func ValidFrequency(f string) bool {
	_, ok := frequencyMonths[f]
	return ok
}

// Bill is a biller's demand paid from one of the user's cards
type Bill struct {
	ID                 int64      `json:"id"`
	Code               string     `json:"bill_id"`
	UserID             int64      `json:"user_id"`
	CardID             int64      `json:"card_id"`
	BillerName         string     `json:"biller_name"`
	BillerCategory     string     `json:"biller_category"`
	BillType           string     `json:"bill_type"`
	Amount             float64    `json:"amount"`
	Currency           string     `json:"currency"`
	DueDate            time.Time  `json:"due_date"`
	Status             BillStatus `json:"payment_status"`
	PaidAmount         float64    `json:"paid_amount"`
	PaidDate           *time.Time `json:"paid_date,omitempty"`
	PeriodStart        *time.Time `json:"bill_period_start,omitempty"`
	PeriodEnd          *time.Time `json:"bill_period_end,omitempty"`
	BillNumber         string     `json:"bill_number,omitempty"`
	ConsumerNumber     string     `json:"consumer_number,omitempty"`
	Description        string     `json:"description,omitempty"`
	IsRecurring        bool       `json:"is_recurring"`
	RecurringFrequency string     `json:"recurring_frequency,omitempty"`
	AutoPayEnabled     bool       `json:"auto_pay_enabled"`
	ReminderSent       bool       `json:"reminder_sent"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Remaining is the amount still to pay
func (b *Bill) Remaining() float64 {
	left := decimal.NewFromFloat(b.Amount).Sub(decimal.NewFromFloat(b.PaidAmount))
	if left.IsNegative() {
		return 0
	}
	return left.Round(2).InexactFloat64()
}

// DaysUntilDue counts whole days until the due date, negative once past it
func (b *Bill) DaysUntilDue(now time.Time) int {
	return int(math.Floor(b.DueDate.Sub(now).Hours() / 24))
}

// IsOverdue reports whether an open bill has passed its due date
func (b *Bill) IsOverdue(now time.Time) bool {
	return b.Status.Open() && now.After(b.DueDate)
}

// IsDueSoon reports whether a pending bill falls due within days whole days
func (b *Bill) IsDueSoon(now time.Time, days int) bool {
	d := b.DaysUntilDue(now)
	return b.Status == BillStatusPending && d >= 0 && d <= days
}

// MarkOverdue moves a pending bill past its due date to overdue and reports
// whether it changed
func (b *Bill) MarkOverdue(now time.Time) bool {
	if b.Status != BillStatusPending || !now.After(b.DueDate) {
		return false
	}
	b.Status = BillStatusOverdue
	return true
}

// Pay books amount against the bill. The bill becomes paid once nothing
// remains; a partial payment leaves it open.
func (b *Bill) Pay(amount float64, at time.Time) error {
	if !b.Status.Open() {
		return fmt.Errorf("%w: bill %s is %s", ErrInvalidState, b.Code, b.Status)
	}
	if math.IsNaN(amount) || amount <= 0 {
		return fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	if amount > b.Remaining() {
		return fmt.Errorf("%w: payment amount cannot exceed the amount due of %s", ErrValidation, FormatAmount(b.Remaining()))
	}

	b.PaidAmount = decimal.NewFromFloat(b.PaidAmount).Add(decimal.NewFromFloat(amount)).Round(2).InexactFloat64()
	b.PaidDate = &at
	if b.Remaining() == 0 {
		b.Status = BillStatusPaid
	}
	return nil
}

// Cancel withdraws an open bill
func (b *Bill) Cancel() error {
	if !b.Status.Open() {
		return fmt.Errorf("%w: bill %s is %s", ErrInvalidState, b.Code, b.Status)
	}
	b.Status = BillStatusCancelled
	return nil
}

// NextOccurrence returns the following bill of a recurring series, due one
// frequency period after b. It returns nil for one-off bills.
func (b *Bill) NextOccurrence() *Bill {
	months, ok := frequencyMonths[b.RecurringFrequency]
	if !b.IsRecurring || !ok {
		return nil
	}
	next := *b
	next.ID = 0
	next.Code = ""
	next.Status = BillStatusPending
	next.PaidAmount = 0
	next.PaidDate = nil
	next.ReminderSent = false
	next.DueDate = b.DueDate.AddDate(0, months, 0)
	if b.PeriodStart != nil {
		start := b.PeriodStart.AddDate(0, months, 0)
		next.PeriodStart = &start
	}
	if b.PeriodEnd != nil {
		end := b.PeriodEnd.AddDate(0, months, 0)
		next.PeriodEnd = &end
	}
	return &next
}

// View decorates the bill with its derived fields as of now
func (b *Bill) View(now time.Time, dueSoonDays int) BillView {
	return BillView{
		Bill:            *b,
		IsOverdue:       b.IsOverdue(now),
		IsDueSoon:       b.IsDueSoon(now, dueSoonDays),
		RemainingAmount: b.Remaining(),
		DaysUntilDue:    b.DaysUntilDue(now),
		FormattedAmount: FormatAmount(b.Amount),
	}
}

// BillView is the serialized form of a bill
type BillView struct {
	Bill
	IsOverdue       bool    `json:"is_overdue"`
	IsDueSoon       bool    `json:"is_due_soon"`
	RemainingAmount float64 `json:"remaining_amount"`
	DaysUntilDue    int     `json:"days_until_due"`
	FormattedAmount string  `json:"formatted_amount"`
}

// BillFilter narrows a bill listing. DueFrom and DueTo bound the due date
// when set.
type BillFilter struct {
	CardID   int64
	Status   BillStatus
	BillType string
	DueFrom  time.Time
	DueTo    time.Time
	Page     int
	PerPage  int
}

// Offset returns the number of rows to skip for the filter's page
func (f BillFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}

// BillPage is one page of a bill listing
type BillPage struct {
	Bills       []BillView `json:"bills"`
	Total       int        `json:"total"`
	Pages       int        `json:"pages"`
	CurrentPage int        `json:"current_page"`
	PerPage     int        `json:"per_page"`
}

// BillSummary aggregates a user's bills
type BillSummary struct {
	TotalBills    int     `json:"total_bills"`
	PaidBills     int     `json:"paid_bills"`
	PendingBills  int     `json:"pending_bills"`
	OverdueBills  int     `json:"overdue_bills"`
	DueSoonBills  int     `json:"due_soon_bills"`
	TotalAmount   float64 `json:"total_amount"`
	PaidAmount    float64 `json:"paid_amount"`
	PendingAmount float64 `json:"pending_amount"`
}

// SummarizeBills aggregates bills as of now. Cancelled bills are counted in
// the total only.
func SummarizeBills(bills []Bill, now time.Time, dueSoonDays int) BillSummary {
	var (
		summary              BillSummary
		total, paid, pending decimal.Decimal
	)
	for i := range bills {
		b := &bills[i]
		summary.TotalBills++
		switch {
		case b.Status == BillStatusPaid:
			summary.PaidBills++
		case b.Status.Open():
			summary.PendingBills++
			pending = pending.Add(decimal.NewFromFloat(b.Remaining()))
		}
		if b.IsOverdue(now) {
			summary.OverdueBills++
		}
		if b.IsDueSoon(now, dueSoonDays) {
			summary.DueSoonBills++
		}
		total = total.Add(decimal.NewFromFloat(b.Amount))
		paid = paid.Add(decimal.NewFromFloat(b.PaidAmount))
	}
	summary.TotalAmount = total.InexactFloat64()
	summary.PaidAmount = paid.InexactFloat64()
	summary.PendingAmount = pending.InexactFloat64()
	return summary
}
