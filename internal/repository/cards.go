package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Dan9191/card-service/internal/models"
)

const cardColumns = `id, code, user_id, card_name, holder_name, card_number, last_four, hmac,
	card_type, card_brand, expiry_month, expiry_year, cvv_hash, pin_hash, credit_limit,
	outstanding, available_credit, minimum_payment, due_day, is_active, is_blocked,
	is_international, last_used, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(row scanner) (*models.Card, error) {
	c := &models.Card{}
	err := row.Scan(&c.ID, &c.Code, &c.UserID, &c.CardName, &c.HolderName, &c.CardNumber,
		&c.LastFour, &c.HMAC, &c.CardType, &c.CardBrand, &c.ExpiryMonth, &c.ExpiryYear,
		&c.CVVHash, &c.PINHash, &c.CreditLimit, &c.Outstanding, &c.AvailableCredit,
		&c.MinimumPayment, &c.DueDay, &c.IsActive, &c.IsBlocked, &c.IsInternational,
		&c.LastUsed, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// CreateCard inserts a card
func (r *Repository) CreateCard(ctx context.Context, c *models.Card) error {
	query := `
		INSERT INTO bank.cards (code, user_id, card_name, holder_name, card_number, last_four, hmac,
			card_type, card_brand, expiry_month, expiry_year, cvv_hash, pin_hash, credit_limit,
			outstanding, available_credit, minimum_payment, due_day, is_active, is_blocked,
			is_international, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query, c.Code, c.UserID, c.CardName, c.HolderName,
		c.CardNumber, c.LastFour, c.HMAC, c.CardType, c.CardBrand, c.ExpiryMonth, c.ExpiryYear,
		c.CVVHash, c.PINHash, c.CreditLimit, c.Outstanding, c.AvailableCredit, c.MinimumPayment,
		c.DueDay, c.IsActive, c.IsBlocked, c.IsInternational, c.CreatedAt, c.UpdatedAt).
		Scan(&c.ID)
	if err != nil {
		return wrap("failed to create card", err)
	}
	return nil
}

// GetCard retrieves one of the user's cards
func (r *Repository) GetCard(ctx context.Context, userID, cardID int64) (*models.Card, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM bank.cards WHERE id = $1 AND user_id = $2`, cardID, userID)
	c, err := scanCard(row)
	if err != nil {
		return nil, wrap("failed to find card", err)
	}
	return c, nil
}

// ListCards returns the user's cards, newest first
func (r *Repository) ListCards(ctx context.Context, userID int64) ([]models.Card, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM bank.cards WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, wrap("failed to list cards", err)
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, wrap("failed to scan card", err)
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("failed to list cards", err)
	}
	return cards, nil
}

// CountCards counts the user's cards
func (r *Repository) CountCards(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM bank.cards WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, wrap("failed to count cards", err)
	}
	return n, nil
}

// CardHMACExists reports whether the user already registered a card with this HMAC
func (r *Repository) CardHMACExists(ctx context.Context, userID int64, hmac string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bank.cards WHERE user_id = $1 AND hmac = $2)`, userID, hmac).Scan(&exists)
	if err != nil {
		return false, wrap("failed to check card", err)
	}
	return exists, nil
}

// UpdateCard writes the mutable fields of a card
func (r *Repository) UpdateCard(ctx context.Context, c *models.Card) error {
	return updateCard(ctx, r.db, c)
}

func updateCard(ctx context.Context, q queryer, c *models.Card) error {
	query := `
		UPDATE bank.cards
		SET card_name = $2, pin_hash = $3, outstanding = $4, available_credit = $5,
			minimum_payment = $6, is_active = $7, is_blocked = $8, last_used = $9, updated_at = $10
		WHERE id = $1`
	res, err := q.ExecContext(ctx, query, c.ID, c.CardName, c.PINHash, c.Outstanding,
		c.AvailableCredit, c.MinimumPayment, c.IsActive, c.IsBlocked, nullTime(c.LastUsed), c.UpdatedAt)
	if err != nil {
		return wrap("failed to update card", err)
	}
	return expectOne("failed to update card", res)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
