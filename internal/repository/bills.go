package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Dan9191/card-service/internal/models"
)

const billColumns = `id, code, user_id, card_id, biller_name, biller_category, bill_type, amount,
	currency, due_date, status, paid_amount, paid_date, period_start, period_end, bill_number,
	consumer_number, description, is_recurring, recurring_frequency, auto_pay_enabled,
	reminder_sent, created_at, updated_at`

func scanBill(row scanner) (*models.Bill, error) {
	b := &models.Bill{}
	err := row.Scan(&b.ID, &b.Code, &b.UserID, &b.CardID, &b.BillerName, &b.BillerCategory,
		&b.BillType, &b.Amount, &b.Currency, &b.DueDate, &b.Status, &b.PaidAmount, &b.PaidDate,
		&b.PeriodStart, &b.PeriodEnd, &b.BillNumber, &b.ConsumerNumber, &b.Description,
		&b.IsRecurring, &b.RecurringFrequency, &b.AutoPayEnabled, &b.ReminderSent,
		&b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// CreateBill inserts a bill
func (r *Repository) CreateBill(ctx context.Context, b *models.Bill) error {
	return insertBill(ctx, r.db, b)
}

func insertBill(ctx context.Context, q queryer, b *models.Bill) error {
	query := `
		INSERT INTO bank.bills (code, user_id, card_id, biller_name, biller_category, bill_type,
			amount, currency, due_date, status, paid_amount, paid_date, period_start, period_end,
			bill_number, consumer_number, description, is_recurring, recurring_frequency,
			auto_pay_enabled, reminder_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23)
		RETURNING id`
	err := q.QueryRowContext(ctx, query, b.Code, b.UserID, b.CardID, b.BillerName,
		b.BillerCategory, b.BillType, b.Amount, b.Currency, b.DueDate, b.Status, b.PaidAmount,
		nullTime(b.PaidDate), nullTime(b.PeriodStart), nullTime(b.PeriodEnd), b.BillNumber,
		b.ConsumerNumber, b.Description, b.IsRecurring, b.RecurringFrequency, b.AutoPayEnabled,
		b.ReminderSent, b.CreatedAt, b.UpdatedAt).
		Scan(&b.ID)
	if err != nil {
		return wrap("failed to create bill", err)
	}
	return nil
}

// GetBill retrieves one of the user's bills
func (r *Repository) GetBill(ctx context.Context, userID, billID int64) (*models.Bill, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+billColumns+` FROM bank.bills WHERE id = $1 AND user_id = $2`, billID, userID)
	b, err := scanBill(row)
	if err != nil {
		return nil, wrap("failed to find bill", err)
	}
	return b, nil
}

// ListBills returns one page of the user's bills, latest due date first, with the total
func (r *Repository) ListBills(ctx context.Context, userID int64, filter models.BillFilter) ([]models.Bill, int, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.CardID != 0 {
		add("card_id = $%d", filter.CardID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.BillType != "" {
		add("bill_type = $%d", filter.BillType)
	}
	if !filter.DueFrom.IsZero() {
		add("due_date >= $%d", filter.DueFrom)
	}
	if !filter.DueTo.IsZero() {
		add("due_date <= $%d", filter.DueTo)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM bank.bills WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, wrap("failed to count bills", err)
	}

	query := `SELECT ` + billColumns + ` FROM bank.bills WHERE ` + cond + ` ORDER BY due_date DESC, id DESC`
	if filter.PerPage > 0 {
		args = append(args, filter.PerPage, filter.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	bills, err := r.queryBills(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return bills, total, nil
}

// ListOpenBills returns every pending or overdue bill ordered by due date
func (r *Repository) ListOpenBills(ctx context.Context) ([]models.Bill, error) {
	return r.queryBills(ctx, `SELECT `+billColumns+` FROM bank.bills
		WHERE status IN ('pending', 'overdue') ORDER BY due_date, id`)
}

func (r *Repository) queryBills(ctx context.Context, query string, args ...any) ([]models.Bill, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("failed to list bills", err)
	}
	defer rows.Close()

	bills := []models.Bill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, wrap("failed to scan bill", err)
		}
		bills = append(bills, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("failed to list bills", err)
	}
	return bills, nil
}

// UpdateBill writes the mutable fields of a bill
func (r *Repository) UpdateBill(ctx context.Context, b *models.Bill) error {
	return updateBill(ctx, r.db, b)
}

func updateBill(ctx context.Context, q queryer, b *models.Bill) error {
	query := `
		UPDATE bank.bills
		SET biller_name = $2, biller_category = $3, amount = $4, due_date = $5, status = $6,
			paid_amount = $7, paid_date = $8, bill_number = $9, consumer_number = $10,
			description = $11, auto_pay_enabled = $12, reminder_sent = $13, updated_at = $14
		WHERE id = $1`
	res, err := q.ExecContext(ctx, query, b.ID, b.BillerName, b.BillerCategory, b.Amount,
		b.DueDate, b.Status, b.PaidAmount, nullTime(b.PaidDate), b.BillNumber, b.ConsumerNumber,
		b.Description, b.AutoPayEnabled, b.ReminderSent, b.UpdatedAt)
	if err != nil {
		return wrap("failed to update bill", err)
	}
	return expectOne("failed to update bill", res)
}

// SaveBillPayment writes the bill, the card, the payment transaction and the
// next occurrence, when given, in one database transaction
func (r *Repository) SaveBillPayment(ctx context.Context, b *models.Bill, card *models.Card, txn *models.Transaction, next *models.Bill) error {
	return r.inTx(ctx, "failed to save bill payment", func(tx *sql.Tx) error {
		if err := updateBill(ctx, tx, b); err != nil {
			return err
		}
		if err := updateCard(ctx, tx, card); err != nil {
			return err
		}
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		return insertBill(ctx, tx, next)
	})
}
