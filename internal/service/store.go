package service

import (
	"context"
	"time"

	"github.com/Dan9191/card-service/internal/models"
)

// UserStore persists users
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// CardStore persists cards. Lookups are scoped to the owner and report
// models.ErrNotFound for another user's card.
type CardStore interface {
	CreateCard(ctx context.Context, card *models.Card) error
	GetCard(ctx context.Context, userID, cardID int64) (*models.Card, error)
	ListCards(ctx context.Context, userID int64) ([]models.Card, error)
	CountCards(ctx context.Context, userID int64) (int, error)
	CardHMACExists(ctx context.Context, userID int64, hmac string) (bool, error)
	UpdateCard(ctx context.Context, card *models.Card) error
}

// EMIStore persists installment plans
type EMIStore interface {
	CreateEMI(ctx context.Context, e *models.EMI) error
	GetEMI(ctx context.Context, userID, emiID int64) (*models.EMI, error)
	// ListEMIs returns one page of a user's plans, newest first, and the
	// unpaginated total. PerPage 0 returns every match.
	ListEMIs(ctx context.Context, userID int64, filter models.EMIFilter) ([]models.EMI, int, error)
	// ListActiveEMIs returns active plans of every user, for the batch jobs.
	ListActiveEMIs(ctx context.Context) ([]models.EMI, error)
	UpdateEMI(ctx context.Context, e *models.EMI) error
}

// TransactionStore persists card transactions. RecordCharge and SavePayment
// write all their arguments atomically or nothing.
type TransactionStore interface {
	ListTransactions(ctx context.Context, userID, cardID int64, limit int) ([]models.Transaction, error)
	CountCompletedTransactionsSince(ctx context.Context, cardID int64, since time.Time) (int, error)
	RecordCharge(ctx context.Context, card *models.Card, txn *models.Transaction) error
	SavePayment(ctx context.Context, e *models.EMI, card *models.Card, txn *models.Transaction) error
}

// BillStore persists bills. SaveBillPayment writes the bill, the card, the
// transaction and, for a recurring bill, its next occurrence atomically.
type BillStore interface {
	CreateBill(ctx context.Context, b *models.Bill) error
	GetBill(ctx context.Context, userID, billID int64) (*models.Bill, error)
	// ListBills returns one page of a user's bills, latest due date first,
	// and the unpaginated total. PerPage 0 returns every match.
	ListBills(ctx context.Context, userID int64, filter models.BillFilter) ([]models.Bill, int, error)
	// ListOpenBills returns pending and overdue bills of every user ordered
	// by due date, for the batch jobs.
	ListOpenBills(ctx context.Context) ([]models.Bill, error)
	UpdateBill(ctx context.Context, b *models.Bill) error
	SaveBillPayment(ctx context.Context, b *models.Bill, card *models.Card, txn *models.Transaction, next *models.Bill) error
}

// NotificationStore persists in-app notifications
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int64, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, userID int64, at time.Time) (int64, error)
}

// Store is everything the service needs from persistence
type Store interface {
	UserStore
	CardStore
	EMIStore
	TransactionStore
	BillStore
	NotificationStore
}

// Mailer delivers notifications out of band
type Mailer interface {
	SendNotification(to, name string, n models.Notification) error
	SendEMIReminder(to, name string, e models.EMI, overdue bool) error
}

// RateSource supplies the default annual EMI rate
type RateSource interface {
	SuggestedRate(ctx context.Context) (float64, error)
}

// Publisher emits domain events
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}
