package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Dan9191/card-service/internal/models"
)

const transactionColumns = `id, code, user_id, card_id, emi_id, bill_id, merchant_name, merchant_category,
	description, amount, currency, transaction_type, status, payment_method, is_international,
	transaction_date, created_at`

// ListTransactions returns a card's transactions, newest first
func (r *Repository) ListTransactions(ctx context.Context, userID, cardID int64, limit int) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM bank.transactions
		WHERE user_id = $1 AND card_id = $2
		ORDER BY transaction_date DESC, id DESC
		LIMIT $3`, userID, cardID, limit)
	if err != nil {
		return nil, wrap("failed to list transactions", err)
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(&t.ID, &t.Code, &t.UserID, &t.CardID, &t.EMIID, &t.BillID, &t.MerchantName,
			&t.MerchantCategory, &t.Description, &t.Amount, &t.Currency, &t.Type, &t.Status,
			&t.PaymentMethod, &t.IsInternational, &t.TransactionDate, &t.CreatedAt)
		if err != nil {
			return nil, wrap("failed to scan transaction", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("failed to list transactions", err)
	}
	return txns, nil
}

// CountCompletedTransactionsSince counts a card's completed transactions at or after since
func (r *Repository) CountCompletedTransactionsSince(ctx context.Context, cardID int64, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM bank.transactions
		WHERE card_id = $1 AND status = $2 AND transaction_date >= $3`,
		cardID, models.TransactionCompleted, since).Scan(&n)
	if err != nil {
		return 0, wrap("failed to count transactions", err)
	}
	return n, nil
}

// RecordCharge updates the card and inserts the transaction in one database transaction
func (r *Repository) RecordCharge(ctx context.Context, card *models.Card, txn *models.Transaction) error {
	return r.inTx(ctx, "failed to record charge", func(tx *sql.Tx) error {
		if err := updateCard(ctx, tx, card); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, txn)
	})
}

// SavePayment writes the plan, the card and the payment transaction in one
// database transaction
func (r *Repository) SavePayment(ctx context.Context, e *models.EMI, card *models.Card, txn *models.Transaction) error {
	return r.inTx(ctx, "failed to save payment", func(tx *sql.Tx) error {
		if err := updateEMI(ctx, tx, e); err != nil {
			return err
		}
		if err := updateCard(ctx, tx, card); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, txn)
	})
}

func insertTransaction(ctx context.Context, q queryer, t *models.Transaction) error {
	query := `
		INSERT INTO bank.transactions (code, user_id, card_id, emi_id, bill_id, merchant_name,
			merchant_category, description, amount, currency, transaction_type, status, payment_method,
			is_international, transaction_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`
	err := q.QueryRowContext(ctx, query, t.Code, t.UserID, t.CardID, nullInt(t.EMIID), nullInt(t.BillID), t.MerchantName,
		t.MerchantCategory, t.Description, t.Amount, t.Currency, t.Type, t.Status, t.PaymentMethod,
		t.IsInternational, t.TransactionDate, t.CreatedAt).
		Scan(&t.ID)
	if err != nil {
		return wrap("failed to create transaction", err)
	}
	return nil
}

func nullInt(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
