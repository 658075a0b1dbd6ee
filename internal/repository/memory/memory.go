// Package memory is an in-process store with the same contract as the
// PostgreSQL repository. It backs DATA_BACKEND=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/card-service/internal/models"
)

// Store keeps every record in maps guarded by one mutex. Records are copied
// on the way in and out so callers never share memory with the store.
type Store struct {
	mu            sync.RWMutex
	seq           int64
	users         map[int64]models.User
	cards         map[int64]models.Card
	emis          map[int64]models.EMI
	transactions  map[int64]models.Transaction
	bills         map[int64]models.Bill
	notifications map[int64]models.Notification
}

// New returns an empty store
func New() *Store {
	return &Store{
		users:         make(map[int64]models.User),
		cards:         make(map[int64]models.Card),
		emis:          make(map[int64]models.EMI),
		transactions:  make(map[int64]models.Transaction),
		bills:         make(map[int64]models.Bill),
		notifications: make(map[int64]models.Notification),
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// CreateUser stores a user, rejecting duplicate e-mails and usernames
func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			return fmt.Errorf("failed to create user: %w: email or username taken", models.ErrConflict)
		}
	}
	user.ID = s.nextID()
	s.users[user.ID] = *user
	return nil
}

// GetUserByID retrieves a user by id
func (s *Store) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
}

// CreateCard stores a card
func (s *Store) CreateCard(_ context.Context, card *models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	card.ID = s.nextID()
	s.cards[card.ID] = *card
	return nil
}

// GetCard retrieves one of the user's cards
func (s *Store) GetCard(_ context.Context, userID, cardID int64) (*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[cardID]
	if !ok || c.UserID != userID {
		return nil, fmt.Errorf("card %d: %w", cardID, models.ErrNotFound)
	}
	return &c, nil
}

// ListCards returns the user's cards, newest first
func (s *Store) ListCards(_ context.Context, userID int64) ([]models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cards := []models.Card{}
	for _, c := range s.cards {
		if c.UserID == userID {
			cards = append(cards, c)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID > cards[j].ID })
	return cards, nil
}

// CountCards counts the user's cards
func (s *Store) CountCards(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, c := range s.cards {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

// CardHMACExists reports whether the user already registered a card with this HMAC
func (s *Store) CardHMACExists(_ context.Context, userID int64, hmac string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.cards {
		if c.UserID == userID && c.HMAC == hmac {
			return true, nil
		}
	}
	return false, nil
}

// UpdateCard overwrites a stored card
func (s *Store) UpdateCard(_ context.Context, card *models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putCard(card)
}

func (s *Store) putCard(card *models.Card) error {
	if _, ok := s.cards[card.ID]; !ok {
		return fmt.Errorf("card %d: %w", card.ID, models.ErrNotFound)
	}
	s.cards[card.ID] = *card
	return nil
}

// CreateEMI stores a plan
func (s *Store) CreateEMI(_ context.Context, e *models.EMI) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.nextID()
	s.emis[e.ID] = *e
	return nil
}

// GetEMI retrieves one of the user's plans
func (s *Store) GetEMI(_ context.Context, userID, emiID int64) (*models.EMI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.emis[emiID]
	if !ok || e.UserID != userID {
		return nil, fmt.Errorf("EMI %d: %w", emiID, models.ErrNotFound)
	}
	return &e, nil
}

// ListEMIs returns one page of the user's plans, newest first, with the total
func (s *Store) ListEMIs(_ context.Context, userID int64, filter models.EMIFilter) ([]models.EMI, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.EMI
	for _, e := range s.emis {
		if e.UserID != userID {
			continue
		}
		if filter.CardID != 0 && e.CardID != filter.CardID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	if filter.PerPage <= 0 {
		return matched, total, nil
	}
	offset := filter.Offset()
	if offset >= total {
		return []models.EMI{}, total, nil
	}
	end := offset + filter.PerPage
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// ListActiveEMIs returns every active plan ordered by due date
func (s *Store) ListActiveEMIs(_ context.Context) ([]models.EMI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []models.EMI
	for _, e := range s.emis {
		if e.Status == models.EMIStatusActive {
			active = append(active, e)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].NextDueDate.Before(active[j].NextDueDate) })
	return active, nil
}

// UpdateEMI overwrites a stored plan
func (s *Store) UpdateEMI(_ context.Context, e *models.EMI) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putEMI(e)
}

func (s *Store) putEMI(e *models.EMI) error {
	if _, ok := s.emis[e.ID]; !ok {
		return fmt.Errorf("EMI %d: %w", e.ID, models.ErrNotFound)
	}
	s.emis[e.ID] = *e
	return nil
}

// ListTransactions returns a card's transactions, newest first
func (s *Store) ListTransactions(_ context.Context, userID, cardID int64, limit int) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txns := []models.Transaction{}
	for _, t := range s.transactions {
		if t.UserID == userID && t.CardID == cardID {
			txns = append(txns, t)
		}
	}
	sort.Slice(txns, func(i, j int) bool {
		if txns[i].TransactionDate.Equal(txns[j].TransactionDate) {
			return txns[i].ID > txns[j].ID
		}
		return txns[i].TransactionDate.After(txns[j].TransactionDate)
	})
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

// CountCompletedTransactionsSince counts a card's completed transactions at or after since
func (s *Store) CountCompletedTransactionsSince(_ context.Context, cardID int64, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.transactions {
		if t.CardID == cardID && t.Status == models.TransactionCompleted && !t.TransactionDate.Before(since) {
			n++
		}
	}
	return n, nil
}

// RecordCharge updates the card and stores the transaction together
func (s *Store) RecordCharge(_ context.Context, card *models.Card, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.putCard(card); err != nil {
		return err
	}
	txn.ID = s.nextID()
	s.transactions[txn.ID] = *txn
	return nil
}

// SavePayment updates the plan and the card and stores the transaction together
func (s *Store) SavePayment(_ context.Context, e *models.EMI, card *models.Card, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emis[e.ID]; !ok {
		return fmt.Errorf("EMI %d: %w", e.ID, models.ErrNotFound)
	}
	if _, ok := s.cards[card.ID]; !ok {
		return fmt.Errorf("card %d: %w", card.ID, models.ErrNotFound)
	}
	s.emis[e.ID] = *e
	s.cards[card.ID] = *card
	txn.ID = s.nextID()
	s.transactions[txn.ID] = *txn
	return nil
}

// CreateBill stores a bill
func (s *Store) CreateBill(_ context.Context, b *models.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b.ID = s.nextID()
	s.bills[b.ID] = *b
	return nil
}

// GetBill retrieves one of the user's bills
func (s *Store) GetBill(_ context.Context, userID, billID int64) (*models.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bills[billID]
	if !ok || b.UserID != userID {
		return nil, fmt.Errorf("bill %d: %w", billID, models.ErrNotFound)
	}
	return &b, nil
}

// ListBills returns one page of the user's bills, latest due date first, with the total
func (s *Store) ListBills(_ context.Context, userID int64, filter models.BillFilter) ([]models.Bill, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Bill
	for _, b := range s.bills {
		switch {
		case b.UserID != userID,
			filter.CardID != 0 && b.CardID != filter.CardID,
			filter.Status != "" && b.Status != filter.Status,
			filter.BillType != "" && b.BillType != filter.BillType,
			!filter.DueFrom.IsZero() && b.DueDate.Before(filter.DueFrom),
			!filter.DueTo.IsZero() && b.DueDate.After(filter.DueTo):
			continue
		}
		matched = append(matched, b)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].DueDate.Equal(matched[j].DueDate) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].DueDate.After(matched[j].DueDate)
	})

	total := len(matched)
	if filter.PerPage <= 0 {
		return matched, total, nil
	}
	offset := filter.Offset()
	if offset >= total {
		return []models.Bill{}, total, nil
	}
	end := offset + filter.PerPage
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// ListOpenBills returns every pending or overdue bill ordered by due date
func (s *Store) ListOpenBills(_ context.Context) ([]models.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []models.Bill
	for _, b := range s.bills {
		if b.Status.Open() {
			open = append(open, b)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].DueDate.Equal(open[j].DueDate) {
			return open[i].ID < open[j].ID
		}
		return open[i].DueDate.Before(open[j].DueDate)
	})
	return open, nil
}

// UpdateBill overwrites a stored bill
func (s *Store) UpdateBill(_ context.Context, b *models.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bills[b.ID]; !ok {
		return fmt.Errorf("bill %d: %w", b.ID, models.ErrNotFound)
	}
	s.bills[b.ID] = *b
	return nil
}

// SaveBillPayment updates the bill and the card, stores the transaction and
// the next occurrence together
func (s *Store) SaveBillPayment(_ context.Context, b *models.Bill, card *models.Card, txn *models.Transaction, next *models.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bills[b.ID]; !ok {
		return fmt.Errorf("bill %d: %w", b.ID, models.ErrNotFound)
	}
	if _, ok := s.cards[card.ID]; !ok {
		return fmt.Errorf("card %d: %w", card.ID, models.ErrNotFound)
	}
	s.bills[b.ID] = *b
	s.cards[card.ID] = *card
	txn.ID = s.nextID()
	s.transactions[txn.ID] = *txn
	if next != nil {
		next.ID = s.nextID()
		s.bills[next.ID] = *next
	}
	return nil
}

// CreateNotification stores a notification
func (s *Store) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = s.nextID()
	s.notifications[n.ID] = *n
	return nil
}

// ListNotifications returns the user's notifications, newest first
func (s *Store) ListNotifications(_ context.Context, userID int64, unreadOnly bool) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := []models.Notification{}
	for _, n := range s.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		list = append(list, n)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

// MarkNotificationRead marks one of the user's notifications as read
func (s *Store) MarkNotificationRead(_ context.Context, userID, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return fmt.Errorf("notification %d: %w", id, models.ErrNotFound)
	}
	if !n.IsRead {
		n.IsRead = true
		n.ReadAt = &at
		s.notifications[id] = n
	}
	return nil
}

// MarkAllNotificationsRead marks all of the user's unread notifications as read
func (s *Store) MarkAllNotificationsRead(_ context.Context, userID int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for id, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &at
			s.notifications[id] = n
			changed++
		}
	}
	return changed, nil
}
