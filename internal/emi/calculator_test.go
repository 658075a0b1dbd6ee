package emi

import (
	"errors"
	"testing"
	"time"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateInstallment(t *testing.T) {
	tests := []struct {
		name      string
		principal float64
		rate      float64
		months    int
		want      float64
	}{
		{"twelve percent over a year", 10000, 12, 12, 888.49},
		{"zero interest divides evenly", 12000, 0, 12, 1000.00},
		{"single month", 1000, 12, 1, 1010.00},
		{"zero interest rounds to cents", 100, 0, 3, 33.33},
		{"long tenure", 50000, 18, 60, 1269.67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateInstallment(tt.principal, tt.rate, tt.months)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestCalculateInstallmentZeroRateIsPlainDivision(t *testing.T) {
	for _, principal := range []float64{600, 1200, 5400, 120000} {
		for _, months := range []int{1, 2, 3, 6, 12, 24, 60} {
			got := CalculateInstallment(principal, 0, months)
			assert.InDelta(t, models.RoundCents(principal/float64(months)), got, 1e-9,
				"principal=%v months=%d", principal, months)
		}
	}
}

func TestCalculateInstallmentCoversPrincipal(t *testing.T) {
	for _, principal := range []float64{1000, 2500.5, 10000, 99999} {
		for _, rate := range []float64{1, 7.5, 12, 36, 100} {
			for _, months := range []int{1, 6, 12, 36, 60} {
				installment := CalculateInstallment(principal, rate, months)
				assert.Greater(t, installment*float64(months), principal,
					"principal=%v rate=%v months=%d", principal, rate, months)
			}
		}
	}

	assert.Equal(t, 12000.0, CalculateInstallment(12000, 0, 12)*12)
}

func TestCalculateInstallmentIsPure(t *testing.T) {
	first := CalculateInstallment(25000, 13.5, 18)
	second := CalculateInstallment(25000, 13.5, 18)
	assert.Equal(t, first, second)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		principal float64
		rate      float64
		months    int
		wantErr   bool
	}{
		{"valid", 1000, 12, 12, false},
		{"zero rate", 1000, 0, 12, false},
		{"max rate and tenure", 1000, 100, 60, false},
		{"zero principal", 0, 12, 12, true},
		{"negative principal", -5, 12, 12, true},
		{"negative rate", 1000, -0.5, 12, true},
		{"rate above hundred", 1000, 100.01, 12, true},
		{"zero months", 1000, 12, 0, true},
		{"sixty one months", 1000, 12, 61, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.principal, tt.rate, tt.months)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, models.ErrValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSchedule(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := Schedule(10000, 12, 12, start)
	require.Len(t, entries, 12)

	first := entries[0]
	assert.Equal(t, 1, first.Installment)
	assert.Equal(t, start.AddDate(0, 0, 30), first.DueDate)
	assert.InDelta(t, 100.00, first.Interest, 0.001)
	assert.InDelta(t, 788.49, first.Principal, 0.001)
	assert.InDelta(t, 9211.51, first.Balance, 0.001)

	var principalSum float64
	for i, e := range entries {
		principalSum += e.Principal
		assert.Equal(t, start.AddDate(0, 0, 30*(i+1)), e.DueDate)
	}
	assert.InDelta(t, 10000, principalSum, 0.001)
	assert.Zero(t, entries[11].Balance)
	assert.InDelta(t, 888.49, entries[11].Payment, 0.05)
}

func TestQuote(t *testing.T) {
	q := Quote(12000, 0, 12, time.Now())
	assert.Equal(t, 1000.0, q.EMIAmount)
	assert.Equal(t, 12000.0, q.TotalAmount)
	assert.Zero(t, q.TotalInterest)
	assert.Len(t, q.Schedule, 12)

	q = Quote(10000, 12, 12, time.Now())
	assert.InDelta(t, 10661.88, q.TotalAmount, 0.001)
	assert.InDelta(t, 661.88, q.TotalInterest, 0.001)
}
