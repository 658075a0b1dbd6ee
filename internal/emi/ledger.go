package emi

import (
	"fmt"
	"math"
	"time"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/shopspring/decimal"
)

// Params describes a new installment plan.
type Params struct {
	Code         string
	UserID       int64
	CardID       int64
	Principal    float64
	AnnualRate   float64
	Months       int
	StartDate    time.Time
	Description  string
	MerchantName string
	ProductName  string
}

// Split is how one payment was divided between interest and principal.
type Split struct {
	Amount    float64 `json:"amount"`
	Interest  float64 `json:"interest"`
	Principal float64 `json:"principal"`
}

// New builds an active plan. The installment amount is fixed here for the
// whole lifetime of the plan.
func New(p Params) (models.EMI, error) {
	if err := Validate(p.Principal, p.AnnualRate, p.Months); err != nil {
		return models.EMI{}, err
	}
	if p.StartDate.IsZero() {
		return models.EMI{}, fmt.Errorf("%w: start date is required", models.ErrValidation)
	}

	return models.EMI{
		Code:              p.Code,
		UserID:            p.UserID,
		CardID:            p.CardID,
		PrincipalAmount:   p.Principal,
		InterestRate:      p.AnnualRate,
		TenureMonths:      p.Months,
		InstallmentAmount: CalculateInstallment(p.Principal, p.AnnualRate, p.Months),
		Status:            models.EMIStatusActive,
		TotalInstallments: p.Months,
		RemainingBalance:  p.Principal,
		StartDate:         p.StartDate,
		EndDate:           p.StartDate.Add(time.Duration(p.Months) * Period),
		NextDueDate:       p.StartDate.Add(Period),
		Description:       p.Description,
		MerchantName:      p.MerchantName,
		ProductName:       p.ProductName,
	}, nil
}

// ApplyPayment books amount against the plan as of paidAt.
//
// Interest for the period is charged on the remaining balance and never exceeds
// the amount paid; the rest reduces principal. Any amount beyond the remaining
// balance is absorbed: total paid records it in full while the balance clamps
// at zero.
func ApplyPayment(e models.EMI, amount float64, paidAt time.Time) (models.EMI, Split, error) {
	if e.Status != models.EMIStatusActive {
		return e, Split{}, fmt.Errorf("%w: EMI %s is %s", models.ErrInvalidState, e.Code, e.Status)
	}
	if math.IsNaN(amount) || amount <= 0 {
		return e, Split{}, fmt.Errorf("%w: payment amount must be positive", models.ErrValidation)
	}

	paid := decimal.NewFromFloat(amount)
	remaining := decimal.NewFromFloat(e.RemainingBalance)

	interest := remaining.Mul(monthlyRate(e.InterestRate)).Round(2)
	if interest.GreaterThan(paid) {
		interest = paid
	}
	principal := paid.Sub(interest)

	remaining = remaining.Sub(principal)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	e.TotalPaid = decimal.NewFromFloat(e.TotalPaid).Add(paid).Round(2).InexactFloat64()
	e.RemainingBalance = remaining.Round(2).InexactFloat64()
	e.InterestPaid = decimal.NewFromFloat(e.InterestPaid).Add(interest).Round(2).InexactFloat64()
	e.PrincipalPaid = decimal.NewFromFloat(e.PrincipalPaid).Add(principal).Round(2).InexactFloat64()
	e.CurrentInstallment++
	e.LastPaymentDate = &paidAt
	e.NextDueDate = paidAt.Add(Period)

	if e.RemainingBalance <= 0 || e.CurrentInstallment >= e.TotalInstallments {
		e.Status = models.EMIStatusCompleted
		e.RemainingBalance = 0
		e.CurrentInstallment = e.TotalInstallments
	}

	return e, Split{
		Amount:    paid.InexactFloat64(),
		Interest:  interest.InexactFloat64(),
		Principal: principal.InexactFloat64(),
	}, nil
}

// PayoffAmount is what settles the plan today: the remaining balance plus the
// interest the next payment would be charged.
func PayoffAmount(e models.EMI) float64 {
	remaining := decimal.NewFromFloat(e.RemainingBalance)
	interest := remaining.Mul(monthlyRate(e.InterestRate)).Round(2)
	return remaining.Add(interest).InexactFloat64()
}

// Cancel moves an active plan to cancelled.
func Cancel(e models.EMI) (models.EMI, error) {
	return transition(e, models.EMIStatusCancelled)
}

// MarkDefaulted moves an active plan to defaulted.
func MarkDefaulted(e models.EMI) (models.EMI, error) {
	return transition(e, models.EMIStatusDefaulted)
}

// Terminal states reject every further transition.
func transition(e models.EMI, to models.EMIStatus) (models.EMI, error) {
	if e.Status.Terminal() {
		return e, fmt.Errorf("%w: EMI %s is already %s", models.ErrInvalidState, e.Code, e.Status)
	}
	e.Status = to
	return e, nil
}

// IsOverdue reports whether an active plan has passed its due date.
func IsOverdue(e models.EMI, now time.Time) bool {
	return e.Status == models.EMIStatusActive && now.After(e.NextDueDate)
}

// IsDueSoon reports whether an active plan falls due within days whole days.
// Overdue plans count as due soon.
func IsDueSoon(e models.EMI, now time.Time, days int) bool {
	return e.Status == models.EMIStatusActive && DaysUntilDue(e, now) <= days
}

// DaysUntilDue counts whole days until the next due date, negative once overdue.
func DaysUntilDue(e models.EMI, now time.Time) int {
	return int(math.Floor(e.NextDueDate.Sub(now).Hours() / 24))
}

// Progress is the share of installments paid, in percent.
func Progress(e models.EMI) float64 {
	if e.TotalInstallments == 0 {
		return 0
	}
	return float64(e.CurrentInstallment) / float64(e.TotalInstallments) * 100
}

// RemainingInstallments counts the installments still to pay.
func RemainingInstallments(e models.EMI) int {
	return e.TotalInstallments - e.CurrentInstallment
}

// TotalInterest is the interest the full schedule charges over the principal.
func TotalInterest(e models.EMI) float64 {
	return decimal.NewFromFloat(e.InstallmentAmount).
		Mul(decimal.NewFromInt(int64(e.TotalInstallments))).
		Sub(decimal.NewFromFloat(e.PrincipalAmount)).
		Round(2).InexactFloat64()
}

// View decorates a plan with its derived fields as of now.
func View(e models.EMI, now time.Time, dueSoonDays int) models.EMIView {
	return models.EMIView{
		EMI:                      e,
		IsOverdue:                IsOverdue(e, now),
		IsDueSoon:                IsDueSoon(e, now, dueSoonDays),
		ProgressPercentage:       Progress(e),
		RemainingInstallments:    RemainingInstallments(e),
		TotalInterest:            TotalInterest(e),
		FormattedEMIAmount:       models.FormatAmount(e.InstallmentAmount),
		FormattedRemainingAmount: models.FormatAmount(e.RemainingBalance),
	}
}

// Summarize aggregates plans as of now.
func Summarize(emis []models.EMI, now time.Time, dueSoonDays int) models.EMISummary {
	var (
		summary                              models.EMISummary
		principal, paid, remaining, interest decimal.Decimal
	)
	for _, e := range emis {
		summary.TotalEMIs++
		switch e.Status {
		case models.EMIStatusActive:
			summary.ActiveEMIs++
		case models.EMIStatusCompleted:
			summary.CompletedEMIs++
		}
		if IsOverdue(e, now) {
			summary.OverdueEMIs++
		}
		if IsDueSoon(e, now, dueSoonDays) {
			summary.DueSoonEMIs++
		}
		principal = principal.Add(decimal.NewFromFloat(e.PrincipalAmount))
		paid = paid.Add(decimal.NewFromFloat(e.TotalPaid))
		remaining = remaining.Add(decimal.NewFromFloat(e.RemainingBalance))
		interest = interest.Add(decimal.NewFromFloat(e.InterestPaid))
	}
	summary.TotalPrincipal = principal.InexactFloat64()
	summary.TotalPaid = paid.InexactFloat64()
	summary.TotalRemaining = remaining.InexactFloat64()
	summary.TotalInterest = interest.InexactFloat64()
	return summary
}
