package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dan9191/card-service/internal/models"
)

const emiColumns = `id, code, user_id, card_id, principal_amount, interest_rate, tenure_months,
	installment_amount, status, current_installment, total_installments, total_paid,
	remaining_balance, interest_paid, principal_paid, start_date, end_date, next_due_date,
	last_payment_date, description, merchant_name, product_name, auto_pay_enabled,
	auto_pay_day, created_at, updated_at`

func scanEMI(row scanner) (*models.EMI, error) {
	e := &models.EMI{}
	err := row.Scan(&e.ID, &e.Code, &e.UserID, &e.CardID, &e.PrincipalAmount, &e.InterestRate,
		&e.TenureMonths, &e.InstallmentAmount, &e.Status, &e.CurrentInstallment,
		&e.TotalInstallments, &e.TotalPaid, &e.RemainingBalance, &e.InterestPaid,
		&e.PrincipalPaid, &e.StartDate, &e.EndDate, &e.NextDueDate, &e.LastPaymentDate,
		&e.Description, &e.MerchantName, &e.ProductName, &e.AutoPayEnabled, &e.AutoPayDay,
		&e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// CreateEMI inserts a plan
func (r *Repository) CreateEMI(ctx context.Context, e *models.EMI) error {
	query := `
		INSERT INTO bank.emis (code, user_id, card_id, principal_amount, interest_rate, tenure_months,
			installment_amount, status, current_installment, total_installments, total_paid,
			remaining_balance, interest_paid, principal_paid, start_date, end_date, next_due_date,
			description, merchant_name, product_name, auto_pay_enabled, auto_pay_day,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query, e.Code, e.UserID, e.CardID, e.PrincipalAmount,
		e.InterestRate, e.TenureMonths, e.InstallmentAmount, e.Status, e.CurrentInstallment,
		e.TotalInstallments, e.TotalPaid, e.RemainingBalance, e.InterestPaid, e.PrincipalPaid,
		e.StartDate, e.EndDate, e.NextDueDate, e.Description, e.MerchantName, e.ProductName,
		e.AutoPayEnabled, e.AutoPayDay, e.CreatedAt, e.UpdatedAt).
		Scan(&e.ID)
	if err != nil {
		return wrap("failed to create EMI", err)
	}
	return nil
}

// GetEMI retrieves one of the user's plans
func (r *Repository) GetEMI(ctx context.Context, userID, emiID int64) (*models.EMI, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+emiColumns+` FROM bank.emis WHERE id = $1 AND user_id = $2`, emiID, userID)
	e, err := scanEMI(row)
	if err != nil {
		return nil, wrap("failed to find EMI", err)
	}
	return e, nil
}

// ListEMIs returns one page of the user's plans, newest first, with the total
func (r *Repository) ListEMIs(ctx context.Context, userID int64, filter models.EMIFilter) ([]models.EMI, int, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	if filter.CardID != 0 {
		args = append(args, filter.CardID)
		where = append(where, fmt.Sprintf("card_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM bank.emis WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, wrap("failed to count EMIs", err)
	}

	query := `SELECT ` + emiColumns + ` FROM bank.emis WHERE ` + cond + ` ORDER BY created_at DESC, id DESC`
	if filter.PerPage > 0 {
		args = append(args, filter.PerPage, filter.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	emis, err := r.queryEMIs(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return emis, total, nil
}

// ListActiveEMIs returns every active plan ordered by due date
func (r *Repository) ListActiveEMIs(ctx context.Context) ([]models.EMI, error) {
	return r.queryEMIs(ctx,
		`SELECT `+emiColumns+` FROM bank.emis WHERE status = 'active' ORDER BY next_due_date`)
}

func (r *Repository) queryEMIs(ctx context.Context, query string, args ...any) ([]models.EMI, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("failed to list EMIs", err)
	}
	defer rows.Close()

	emis := []models.EMI{}
	for rows.Next() {
		e, err := scanEMI(rows)
		if err != nil {
			return nil, wrap("failed to scan EMI", err)
		}
		emis = append(emis, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("failed to list EMIs", err)
	}
	return emis, nil
}

// UpdateEMI writes the mutable fields of a plan
func (r *Repository) UpdateEMI(ctx context.Context, e *models.EMI) error {
	return updateEMI(ctx, r.db, e)
}

func updateEMI(ctx context.Context, q queryer, e *models.EMI) error {
	query := `
		UPDATE bank.emis
		SET status = $2, current_installment = $3, total_paid = $4, remaining_balance = $5,
			interest_paid = $6, principal_paid = $7, next_due_date = $8, last_payment_date = $9,
			description = $10, merchant_name = $11, product_name = $12, auto_pay_enabled = $13,
			auto_pay_day = $14, updated_at = $15
		WHERE id = $1`
	res, err := q.ExecContext(ctx, query, e.ID, e.Status, e.CurrentInstallment, e.TotalPaid,
		e.RemainingBalance, e.InterestPaid, e.PrincipalPaid, e.NextDueDate,
		nullTime(e.LastPaymentDate), e.Description, e.MerchantName, e.ProductName,
		e.AutoPayEnabled, e.AutoPayDay, e.UpdatedAt)
	if err != nil {
		return wrap("failed to update EMI", err)
	}
	return expectOne("failed to update EMI", res)
}
