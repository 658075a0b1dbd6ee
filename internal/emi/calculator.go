// Package emi holds the installment-plan arithmetic and lifecycle rules. Every
// function is pure: it takes an EMI value and returns the updated value, leaving
// persistence to the caller.
package emi

import (
	"fmt"
	"math"
	"time"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/shopspring/decimal"
)

const (
	MinTenureMonths = 1
	MaxTenureMonths = 60
	MaxAnnualRate   = 100.0

	// PeriodDays is the fixed installment stride. Due dates elsewhere assume it,
	// so it is not calendar-month aware.
	PeriodDays = 30
)

// Period is PeriodDays as a duration.
const Period = PeriodDays * 24 * time.Hour

// Validate checks the inputs of the calculator and of plan creation.
func Validate(principal, annualRate float64, months int) error {
	if math.IsNaN(principal) || principal <= 0 {
		return fmt.Errorf("%w: principal amount must be positive", models.ErrValidation)
	}
	if math.IsNaN(annualRate) || annualRate < 0 || annualRate > MaxAnnualRate {
		return fmt.Errorf("%w: interest rate must be between 0 and %.0f", models.ErrValidation, MaxAnnualRate)
	}
	if months < MinTenureMonths || months > MaxTenureMonths {
		return fmt.Errorf("%w: tenure must be between %d and %d months", models.ErrValidation, MinTenureMonths, MaxTenureMonths)
	}
	return nil
}

// CalculateInstallment returns the level monthly payment that amortizes
// principal at annualRate percent over months periods, rounded to cents.
// Inputs must already satisfy Validate.
func CalculateInstallment(principal, annualRate float64, months int) float64 {
	if annualRate == 0 {
		return models.RoundCents(principal / float64(months))
	}
	r := annualRate / 1200
	growth := math.Pow(1+r, float64(months))
	return models.RoundCents(principal * r * growth / (growth - 1))
}

// Quote prices a plan without creating one.
func Quote(principal, annualRate float64, months int, start time.Time) models.Quote {
	installment := CalculateInstallment(principal, annualRate, months)
	total := decimal.NewFromFloat(installment).Mul(decimal.NewFromInt(int64(months))).Round(2)
	return models.Quote{
		PrincipalAmount: principal,
		InterestRate:    annualRate,
		TenureMonths:    months,
		EMIAmount:       installment,
		TotalAmount:     total.InexactFloat64(),
		TotalInterest:   total.Sub(decimal.NewFromFloat(principal)).Round(2).InexactFloat64(),
		Schedule:        Schedule(principal, annualRate, months, start),
	}
}

// Schedule projects the installments of a plan starting at start. The final
// row settles whatever balance rounding left behind.
func Schedule(principal, annualRate float64, months int, start time.Time) []models.ScheduleEntry {
	installment := decimal.NewFromFloat(CalculateInstallment(principal, annualRate, months))
	rate := monthlyRate(annualRate)
	balance := decimal.NewFromFloat(principal)

	entries := make([]models.ScheduleEntry, 0, months)
	for i := 1; i <= months; i++ {
		interest := balance.Mul(rate).Round(2)
		principalPart := installment.Sub(interest)
		if i == months || principalPart.GreaterThan(balance) {
			principalPart = balance
		}
		balance = balance.Sub(principalPart)

		entries = append(entries, models.ScheduleEntry{
			Installment: i,
			DueDate:     start.Add(time.Duration(i) * Period),
			Payment:     principalPart.Add(interest).InexactFloat64(),
			Interest:    interest.InexactFloat64(),
			Principal:   principalPart.InexactFloat64(),
			Balance:     balance.InexactFloat64(),
		})
	}
	return entries
}

func monthlyRate(annualRate float64) decimal.Decimal {
	return decimal.NewFromFloat(annualRate).Div(decimal.NewFromInt(1200))
}
