package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dan9191/card-service/internal/events"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) createBill(t *testing.T, amount float64, due time.Time, recurring bool) *models.BillView {
	t.Helper()
	view, err := f.svc.CreateBill(context.Background(), f.user.ID, CreateBillInput{
		CardID: f.card.ID, BillerName: "City Power", BillerCategory: "electricity", BillType: "utility",
		Amount: amount, DueDate: &due, IsRecurring: recurring,
	})
	require.NoError(t, err)
	return view
}

func TestCreateBill(t *testing.T) {
	f := newFixture(t)
	due := f.now.AddDate(0, 0, 2)

	view := f.createBill(t, 1200.456, due, true)
	assert.Regexp(t, `^BILL_[0-9A-F]{12}$`, view.Code)
	assert.Equal(t, 1200.46, view.Amount)
	assert.Equal(t, models.BillStatusPending, view.Status)
	assert.Equal(t, models.FrequencyMonthly, view.RecurringFrequency, "recurring bills default to monthly")
	assert.True(t, view.IsDueSoon)
	assert.Equal(t, 2, view.DaysUntilDue)
	assert.Equal(t, 1200.46, view.RemainingAmount)

	got, err := f.svc.GetBill(context.Background(), f.user.ID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Code, got.Code)
}

func TestCreateBillValidation(t *testing.T) {
	f := newFixture(t)
	due := f.now.AddDate(0, 0, 5)
	start, end := f.now, f.now.AddDate(0, 0, -1)
	valid := func() CreateBillInput {
		return CreateBillInput{CardID: f.card.ID, BillerName: "Telco", BillerCategory: "telecom", BillType: "mobile", Amount: 499, DueDate: &due}
	}

	tests := []struct {
		name   string
		mutate func(*CreateBillInput)
		err    error
	}{
		{"missing biller", func(in *CreateBillInput) { in.BillerName = " " }, models.ErrValidation},
		{"missing category", func(in *CreateBillInput) { in.BillerCategory = "" }, models.ErrValidation},
		{"unknown type", func(in *CreateBillInput) { in.BillType = "groceries" }, models.ErrValidation},
		{"zero amount", func(in *CreateBillInput) { in.Amount = 0 }, models.ErrValidation},
		{"no due date", func(in *CreateBillInput) { in.DueDate = nil }, models.ErrValidation},
		{"inverted period", func(in *CreateBillInput) { in.PeriodStart, in.PeriodEnd = &start, &end }, models.ErrValidation},
		{"weekly", func(in *CreateBillInput) { in.IsRecurring, in.RecurringFrequency = true, "weekly" }, models.ErrValidation},
		{"foreign card", func(in *CreateBillInput) { in.CardID = 999 }, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			_, err := f.svc.CreateBill(context.Background(), f.user.ID, in)
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}
}

func TestPayBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createBill(t, 1200, f.now.AddDate(0, 0, 5), false)

	res, err := f.svc.PayBill(ctx, f.user.ID, view.ID, ptr(500.0))
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusPending, res.Bill.Status)
	assert.Equal(t, 700.0, res.Bill.RemainingAmount)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, 500.0, res.Transaction.Amount)
	assert.Equal(t, "City Power", res.Transaction.MerchantName)
	assert.Equal(t, "bill_payment", res.Transaction.MerchantCategory)
	assert.Equal(t, paymentBill, res.Transaction.PaymentMethod)
	require.NotNil(t, res.Transaction.BillID)
	assert.Equal(t, view.ID, *res.Transaction.BillID)

	_, err = f.svc.PayBill(ctx, f.user.ID, view.ID, ptr(700.01))
	assert.True(t, errors.Is(err, models.ErrValidation), "more than what remains")

	res, err = f.svc.PayBill(ctx, f.user.ID, view.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusPaid, res.Bill.Status)
	assert.Equal(t, 700.0, res.Transaction.Amount, "defaults to the remaining amount")
	assert.Nil(t, res.NextBill, "one-off bill")

	card, err := f.svc.GetCard(ctx, f.user.ID, f.card.ID)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, card.Outstanding)
	assert.Equal(t, 48800.0, card.AvailableCredit)

	txns, err := f.svc.ListTransactions(ctx, f.user.ID, f.card.ID, 10)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
	assert.Contains(t, f.events.Keys(), events.BillPaid)

	_, err = f.svc.PayBill(ctx, f.user.ID, view.ID, nil)
	assert.True(t, errors.Is(err, models.ErrInvalidState))
}

func TestPayBillBlockedCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createBill(t, 100, f.now.AddDate(0, 0, 5), false)
	_, err := f.svc.BlockCard(ctx, f.user.ID, f.card.ID, "")
	require.NoError(t, err)

	_, err = f.svc.PayBill(ctx, f.user.ID, view.ID, nil)
	assert.True(t, errors.Is(err, models.ErrInvalidState))

	got, err := f.svc.GetBill(ctx, f.user.ID, view.ID)
	require.NoError(t, err)
	assert.Zero(t, got.PaidAmount)
}

func TestPayRecurringBillSchedulesNext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := f.now.AddDate(0, 0, 3)
	view := f.createBill(t, 899, due, true)

	res, err := f.svc.PayBill(ctx, f.user.ID, view.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, res.NextBill)
	assert.NotZero(t, res.NextBill.ID)
	assert.NotEqual(t, view.Code, res.NextBill.Code)
	assert.Equal(t, models.BillStatusPending, res.NextBill.Status)
	assert.Equal(t, due.AddDate(0, 1, 0), res.NextBill.DueDate)
	assert.Equal(t, 899.0, res.NextBill.RemainingAmount)

	page, err := f.svc.ListBills(ctx, f.user.ID, models.BillFilter{}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, res.NextBill.ID, page.Bills[0].ID, "latest due first")
}

func TestSetBillAutoPay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	oneOff := f.createBill(t, 100, f.now.AddDate(0, 0, 5), false)
	recurring := f.createBill(t, 100, f.now.AddDate(0, 0, 5), true)

	_, err := f.svc.SetBillAutoPay(ctx, f.user.ID, oneOff.ID, true)
	assert.True(t, errors.Is(err, models.ErrValidation))

	view, err := f.svc.SetBillAutoPay(ctx, f.user.ID, recurring.ID, true)
	require.NoError(t, err)
	assert.True(t, view.AutoPayEnabled)

	view, err = f.svc.SetBillAutoPay(ctx, f.user.ID, recurring.ID, false)
	require.NoError(t, err)
	assert.False(t, view.AutoPayEnabled)

	_, err = f.svc.CancelBill(ctx, f.user.ID, recurring.ID)
	require.NoError(t, err)
	_, err = f.svc.SetBillAutoPay(ctx, f.user.ID, recurring.ID, true)
	assert.True(t, errors.Is(err, models.ErrInvalidState))
}

func TestUpdateBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createBill(t, 1000, f.now.AddDate(0, 0, -1), false)
	_, err := f.svc.PayBill(ctx, f.user.ID, view.ID, ptr(400.0))
	require.NoError(t, err)

	_, err = f.svc.SendDueReminders(ctx, f.now)
	require.NoError(t, err)
	got, err := f.svc.GetBill(ctx, f.user.ID, view.ID)
	require.NoError(t, err)
	require.Equal(t, models.BillStatusOverdue, got.Status)

	_, err = f.svc.UpdateBill(ctx, f.user.ID, view.ID, BillDetails{Amount: ptr(400.0)})
	assert.True(t, errors.Is(err, models.ErrValidation), "amount must exceed what was paid")

	_, err = f.svc.UpdateBill(ctx, f.user.ID, view.ID, BillDetails{BillerName: ptr("")})
	assert.True(t, errors.Is(err, models.ErrValidation))

	newDue := f.now.AddDate(0, 0, 10)
	updated, err := f.svc.UpdateBill(ctx, f.user.ID, view.ID, BillDetails{
		Amount: ptr(1100.0), DueDate: &newDue, Description: ptr("revised"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusPending, updated.Status, "moved due date reopens the bill")
	assert.Equal(t, 700.0, updated.RemainingAmount)
	assert.Equal(t, "revised", updated.Description)
	assert.False(t, updated.ReminderSent)

	_, err = f.svc.PayBill(ctx, f.user.ID, view.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.UpdateBill(ctx, f.user.ID, view.ID, BillDetails{Description: ptr("late")})
	assert.True(t, errors.Is(err, models.ErrInvalidState))
}

func TestCancelBill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createBill(t, 100, f.now.AddDate(0, 0, 5), true)
	_, err := f.svc.SetBillAutoPay(ctx, f.user.ID, view.ID, true)
	require.NoError(t, err)

	cancelled, err := f.svc.CancelBill(ctx, f.user.ID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusCancelled, cancelled.Status)
	assert.False(t, cancelled.AutoPayEnabled)

	_, err = f.svc.CancelBill(ctx, f.user.ID, view.ID)
	assert.True(t, errors.Is(err, models.ErrInvalidState))
	_, err = f.svc.PayBill(ctx, f.user.ID, view.ID, nil)
	assert.True(t, errors.Is(err, models.ErrInvalidState))
	_, err = f.svc.CancelBill(ctx, f.user.ID, 999)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestListBillsAndSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createBill(t, 100, f.now.AddDate(0, 0, 1), false)
	f.createBill(t, 200, f.now.AddDate(0, 0, 3).Add(5*time.Hour), false)
	f.createBill(t, 300, f.now.AddDate(0, 0, 5), false)
	paid := f.createBill(t, 400, f.now.AddDate(0, 0, 1), false)
	_, err := f.svc.PayBill(ctx, f.user.ID, paid.ID, nil)
	require.NoError(t, err)

	soon, err := f.svc.ListBills(ctx, f.user.ID, models.BillFilter{}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, soon.Total)

	page, err := f.svc.ListBills(ctx, f.user.ID, models.BillFilter{PerPage: 3, Page: 2}, false)
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Bills, 1)

	paidOnly, err := f.svc.ListBills(ctx, f.user.ID, models.BillFilter{Status: models.BillStatusPaid}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, paidOnly.Total)

	_, err = f.svc.ListBills(ctx, f.user.ID, models.BillFilter{Status: "settled"}, false)
	assert.True(t, errors.Is(err, models.ErrValidation))
	_, err = f.svc.ListBills(ctx, f.user.ID, models.BillFilter{BillType: "groceries"}, false)
	assert.True(t, errors.Is(err, models.ErrValidation))

	summary, err := f.svc.BillSummary(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalBills)
	assert.Equal(t, 1, summary.PaidBills)
	assert.Equal(t, 3, summary.PendingBills)
	assert.Equal(t, 2, summary.DueSoonBills)
	assert.Equal(t, 1000.0, summary.TotalAmount)
	assert.Equal(t, 400.0, summary.PaidAmount)
	assert.Equal(t, 600.0, summary.PendingAmount)

	assert.Contains(t, f.svc.BillTypes(), "utility")
}

func TestSendDueRemindersForBills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createBill(t, 100, f.now.AddDate(0, 0, 2), false)                // medium reminder
	f.createBill(t, 100, f.now.AddDate(0, 0, 1).Add(time.Hour), false) // high reminder
	late := f.createBill(t, 100, f.now.AddDate(0, 0, -1), false)       // becomes overdue
	f.createBill(t, 100, f.now.AddDate(0, 0, 10), false)               // outside the window

	sent, err := f.svc.SendDueReminders(ctx, f.now)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)

	list, err := f.svc.ListNotifications(ctx, f.user.ID, true)
	require.NoError(t, err)
	priorities := map[string]int{}
	for _, n := range list {
		if n.Category == models.CategoryBill {
			priorities[n.Priority]++
		}
	}
	assert.Equal(t, map[string]int{models.PriorityMedium: 1, models.PriorityHigh: 1, models.PriorityUrgent: 1}, priorities)
	assert.Contains(t, f.events.Keys(), events.BillOverdue)

	got, err := f.svc.GetBill(ctx, f.user.ID, late.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusOverdue, got.Status)

	sent, err = f.svc.SendDueReminders(ctx, f.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, sent, "each bill is reminded once")
}

func TestProcessAutoPayForBills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := f.createBill(t, 650, f.now.Add(2*time.Hour), true)
	_, err := f.svc.SetBillAutoPay(ctx, f.user.ID, due.ID, true)
	require.NoError(t, err)
	later := f.createBill(t, 650, f.now.AddDate(0, 0, 1), true)
	_, err = f.svc.SetBillAutoPay(ctx, f.user.ID, later.ID, true)
	require.NoError(t, err)
	f.createBill(t, 650, f.now, true)

	paid, err := f.svc.ProcessAutoPay(ctx, f.now)
	require.NoError(t, err)
	assert.Equal(t, 1, paid)

	got, err := f.svc.GetBill(ctx, f.user.ID, due.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusPaid, got.Status)

	txns, err := f.svc.ListTransactions(ctx, f.user.ID, f.card.ID, 10)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, paymentAutoPay, txns[0].PaymentMethod)

	next, err := f.svc.ListBills(ctx, f.user.ID, models.BillFilter{}, false)
	require.NoError(t, err)
	assert.Equal(t, 4, next.Total)
	assert.True(t, next.Bills[0].AutoPayEnabled, "the next occurrence keeps auto-pay")

	paid, err = f.svc.ProcessAutoPay(ctx, f.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, paid)
}

func TestProcessAutoPayReportsBillFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createBill(t, 100, f.now, true)
	_, err := f.svc.SetBillAutoPay(ctx, f.user.ID, view.ID, true)
	require.NoError(t, err)
	_, err = f.svc.BlockCard(ctx, f.user.ID, f.card.ID, "")
	require.NoError(t, err)

	paid, err := f.svc.ProcessAutoPay(ctx, f.now)
	require.NoError(t, err)
	assert.Zero(t, paid)

	list, err := f.svc.ListNotifications(ctx, f.user.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "Bill Auto-pay Failed", list[0].Title)
}
