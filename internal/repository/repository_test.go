package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ service.Store = (*Repository)(nil)

// openTestDB migrates and opens the database named by TEST_DB_CONN, skipping
// the test when it is unset.
func openTestDB(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("TEST_DB_CONN")
	if dsn == "" {
		t.Skip("TEST_DB_CONN not set")
	}
	require.NoError(t, RunMigrations(dsn))

	db, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.Exec(`TRUNCATE bank.notifications, bank.transactions, bank.bills, bank.emis, bank.cards, bank.users RESTART IDENTITY CASCADE`)
		db.Close()
	})
	return NewRepository(db)
}

func seed(t *testing.T, r *Repository) (*models.User, *models.Card) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	u := &models.User{Username: "jane", Email: "jane@example.com", PasswordHash: "x"}
	require.NoError(t, r.CreateUser(ctx, u))

	c := &models.Card{
		Code: "CARD_1", UserID: u.ID, HolderName: "Jane Doe", CardNumber: "enc", LastFour: "1111",
		HMAC: "h1", CardType: "credit", CardBrand: "visa", ExpiryMonth: 12, ExpiryYear: 2030,
		CVVHash: "c", CreditLimit: 50000, AvailableCredit: 50000, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, r.CreateCard(ctx, c))
	return u, c
}

func TestUsersAndCards(t *testing.T) {
	r := openTestDB(t)
	ctx := context.Background()
	u, c := seed(t, r)

	err := r.CreateUser(ctx, &models.User{Username: "other", Email: "jane@example.com", PasswordHash: "x"})
	assert.True(t, errors.Is(err, models.ErrConflict))

	got, err := r.GetUserByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = r.GetCard(ctx, u.ID+1, c.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	exists, err := r.CardHMACExists(ctx, u.ID, "h1")
	require.NoError(t, err)
	assert.True(t, exists)

	dup := *c
	dup.Code = "CARD_2"
	assert.True(t, errors.Is(r.CreateCard(ctx, &dup), models.ErrConflict))
}

func TestEMILifecycle(t *testing.T) {
	r := openTestDB(t)
	ctx := context.Background()
	u, c := seed(t, r)
	now := time.Now().UTC().Truncate(time.Second)

	e := &models.EMI{
		Code: "EMI_1", UserID: u.ID, CardID: c.ID, PrincipalAmount: 10000, InterestRate: 12,
		TenureMonths: 12, InstallmentAmount: 888.49, Status: models.EMIStatusActive,
		TotalInstallments: 12, RemainingBalance: 10000, StartDate: now,
		EndDate: now.AddDate(0, 0, 360), NextDueDate: now.AddDate(0, 0, 30),
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, r.CreateEMI(ctx, e))

	e.CurrentInstallment = 1
	e.TotalPaid = 888.49
	e.InterestPaid = 100
	e.PrincipalPaid = 788.49
	e.RemainingBalance = 9211.51
	e.LastPaymentDate = &now
	c.Outstanding = 888.49
	c.AvailableCredit = 49111.51
	emiID := e.ID
	txn := &models.Transaction{
		Code: "TXN_1", UserID: u.ID, CardID: c.ID, EMIID: &emiID, MerchantName: "EMI Payment",
		MerchantCategory: "emi", Amount: 888.49, Currency: models.Currency,
		Type: models.TransactionDebit, Status: models.TransactionCompleted,
		TransactionDate: now, CreatedAt: now,
	}
	require.NoError(t, r.SavePayment(ctx, e, c, txn))

	got, err := r.GetEMI(ctx, u.ID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 9211.51, got.RemainingBalance)
	assert.Equal(t, 1, got.CurrentInstallment)
	require.NotNil(t, got.LastPaymentDate)

	card, err := r.GetCard(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 888.49, card.Outstanding)

	txns, err := r.ListTransactions(ctx, u.ID, c.ID, 10)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.NotNil(t, txns[0].EMIID)
	assert.Equal(t, e.ID, *txns[0].EMIID)

	n, err := r.CountCompletedTransactionsSince(ctx, c.ID, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := r.ListActiveEMIs(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	page, total, err := r.ListEMIs(ctx, u.ID, models.EMIFilter{Status: models.EMIStatusCompleted, Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, page)
}

func TestSavePaymentRollsBack(t *testing.T) {
	r := openTestDB(t)
	ctx := context.Background()
	u, c := seed(t, r)

	missing := &models.EMI{ID: 9999, Status: models.EMIStatusActive}
	c.Outstanding = 10
	err := r.SavePayment(ctx, missing, c, &models.Transaction{Code: "TXN_X", Amount: 10})
	assert.True(t, errors.Is(err, models.ErrNotFound))

	card, err := r.GetCard(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.Zero(t, card.Outstanding)
}

func TestBillLifecycle(t *testing.T) {
	r := openTestDB(t)
	ctx := context.Background()
	u, c := seed(t, r)
	now := time.Now().UTC().Truncate(time.Second)

	b := &models.Bill{
		Code: "BILL_1", UserID: u.ID, CardID: c.ID, BillerName: "City Power", BillerCategory: "electricity",
		BillType: "utility", Amount: 1500, Currency: models.Currency, DueDate: now.AddDate(0, 0, 2),
		Status: models.BillStatusPending, IsRecurring: true, RecurringFrequency: models.FrequencyMonthly,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, r.CreateBill(ctx, b))
	require.NotZero(t, b.ID)

	dup := *b
	assert.True(t, errors.Is(r.CreateBill(ctx, &dup), models.ErrConflict))

	require.NoError(t, b.Pay(1500, now))
	c.Outstanding = 1500
	c.AvailableCredit = 48500
	billID := b.ID
	txn := &models.Transaction{
		Code: "TXN_1", UserID: u.ID, CardID: c.ID, BillID: &billID, MerchantName: b.BillerName,
		MerchantCategory: "bill_payment", Amount: 1500, Currency: models.Currency,
		Type: models.TransactionDebit, Status: models.TransactionCompleted,
		TransactionDate: now, CreatedAt: now,
	}
	next := b.NextOccurrence()
	next.Code = "BILL_2"
	require.NoError(t, r.SaveBillPayment(ctx, b, c, txn, next))
	require.NotZero(t, next.ID)

	got, err := r.GetBill(ctx, u.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusPaid, got.Status)
	assert.Equal(t, 1500.0, got.PaidAmount)
	require.NotNil(t, got.PaidDate)

	txns, err := r.ListTransactions(ctx, u.ID, c.ID, 10)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.NotNil(t, txns[0].BillID)
	assert.Equal(t, b.ID, *txns[0].BillID)
	assert.Nil(t, txns[0].EMIID)

	open, err := r.ListOpenBills(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "BILL_2", open[0].Code)

	page, total, err := r.ListBills(ctx, u.ID, models.BillFilter{Status: models.BillStatusPending, Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, next.ID, page[0].ID)

	_, total, err = r.ListBills(ctx, u.ID, models.BillFilter{DueFrom: now, DueTo: now.AddDate(0, 0, 3)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, err = r.GetBill(ctx, u.ID+1, b.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestNotifications(t *testing.T) {
	r := openTestDB(t)
	ctx := context.Background()
	u, _ := seed(t, r)

	for _, title := range []string{"a", "b"} {
		require.NoError(t, r.CreateNotification(ctx, &models.Notification{
			UserID: u.ID, Title: title, Message: "m", Category: models.CategoryEMI,
			Priority: models.PriorityLow, CreatedAt: time.Now(),
		}))
	}
	list, err := r.ListNotifications(ctx, u.ID, false)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, r.MarkNotificationRead(ctx, u.ID, list[0].ID, time.Now()))
	unread, err := r.ListNotifications(ctx, u.ID, true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	n, err := r.MarkAllNotificationsRead(ctx, u.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	err = r.MarkNotificationRead(ctx, u.ID+1, list[0].ID, time.Now())
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestWrap(t *testing.T) {
	assert.True(t, errors.Is(wrap("op", sql.ErrNoRows), models.ErrNotFound))
	err := wrap("op", errors.New("boom"))
	assert.True(t, errors.Is(err, models.ErrPersistence))
	assert.Contains(t, err.Error(), "boom")
}
