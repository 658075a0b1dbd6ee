package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCard(limit, outstanding float64) *Card {
	c := &Card{CreditLimit: limit, IsActive: true}
	c.Credit(0)
	if outstanding > 0 {
		c.Outstanding = 0
		if _, err := c.Debit(outstanding); err != nil {
			panic(err)
		}
	}
	return c
}

func TestCardDebit(t *testing.T) {
	c := newCard(50000, 0)
	require.Equal(t, 50000.0, c.AvailableCredit)

	available, err := c.Debit(888.49)
	require.NoError(t, err)
	assert.InDelta(t, 49111.51, available, 0.001)
	assert.InDelta(t, 888.49, c.Outstanding, 0.001)
	assert.Equal(t, 100.0, c.MinimumPayment, "floor applies below 2000 outstanding")

	_, err = c.Debit(9111.51)
	require.NoError(t, err)
	assert.InDelta(t, 10000, c.Outstanding, 0.001)
	assert.InDelta(t, 500, c.MinimumPayment, 0.001)
}

func TestCardDebitRejections(t *testing.T) {
	c := newCard(1000, 900)

	_, err := c.Debit(0)
	assert.True(t, errors.Is(err, ErrValidation))

	available, err := c.Debit(100.01)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.InDelta(t, 100, available, 0.001)
	assert.InDelta(t, 900, c.Outstanding, 0.001, "a rejected debit changes nothing")

	available, err = c.Debit(100)
	require.NoError(t, err)
	assert.Zero(t, available)
}

func TestCardCredit(t *testing.T) {
	c := newCard(1000, 400)

	assert.InDelta(t, 850, c.Credit(250), 0.001)
	assert.InDelta(t, 150, c.Outstanding, 0.001)

	assert.InDelta(t, 1000, c.Credit(500), 0.001)
	assert.Zero(t, c.Outstanding)
}

func TestCardBlockUnblock(t *testing.T) {
	c := newCard(1000, 0)
	assert.True(t, c.Usable())

	c.Block()
	assert.True(t, c.IsBlocked)
	assert.False(t, c.IsActive)
	assert.False(t, c.Usable())

	c.Unblock()
	assert.True(t, c.Usable())
}

func TestCardIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		month, year int
		want        bool
	}{
		{6, 2025, false},
		{5, 2025, true},
		{1, 2026, false},
		{12, 2024, true},
	}
	for _, tt := range tests {
		c := &Card{ExpiryMonth: tt.month, ExpiryYear: tt.year}
		assert.Equal(t, tt.want, c.IsExpired(now), "%02d/%d", tt.month, tt.year)
	}
}

func TestCardView(t *testing.T) {
	c := &Card{LastFour: "1111", ExpiryMonth: 3, ExpiryYear: 2030}
	v := c.View(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "**** **** **** 1111", v.MaskedNumber)
	assert.Equal(t, "03/2030", v.Expiry)
	assert.False(t, v.IsExpired)
}

func TestMoneyHelpers(t *testing.T) {
	assert.Equal(t, 10.01, RoundCents(10.005))
	assert.Equal(t, "INR 888.49", FormatAmount(888.49))
	assert.Equal(t, "INR 1000.00", FormatAmount(1000))
}
