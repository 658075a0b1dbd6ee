package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	minimumPaymentFloor = 100.0
	minimumPaymentRatio = 0.05
)

// Card represents a credit card
type Card struct {
	ID              int64      `json:"id"`
	Code            string     `json:"card_id"`
	UserID          int64      `json:"user_id"`
	CardName        string     `json:"card_name"`
	HolderName      string     `json:"card_holder_name"`
	CardNumber      string     `json:"-"` // AES encrypted
	LastFour        string     `json:"-"`
	HMAC            string     `json:"-"`
	CardType        string     `json:"card_type"`
	CardBrand       string     `json:"card_brand"`
	ExpiryMonth     int        `json:"expiry_month"`
	ExpiryYear      int        `json:"expiry_year"`
	CVVHash         string     `json:"-"`
	PINHash         string     `json:"-"`
	CreditLimit     float64    `json:"credit_limit"`
	Outstanding     float64    `json:"outstanding_balance"`
	AvailableCredit float64    `json:"available_credit"`
	MinimumPayment  float64    `json:"minimum_payment"`
	DueDay          int        `json:"due_date,omitempty"`
	IsActive        bool       `json:"is_active"`
	IsBlocked       bool       `json:"is_blocked"`
	IsInternational bool       `json:"is_international"`
	LastUsed        *time.Time `json:"last_used,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CardView is the serialized form of a card with derived fields
type CardView struct {
	*Card
	MaskedNumber string `json:"card_number"`
	Expiry       string `json:"expiry"`
	IsExpired    bool   `json:"is_expired"`
}

// View decorates the card with display fields as of now
func (c *Card) View(now time.Time) CardView {
	return CardView{
		Card:         c,
		MaskedNumber: c.MaskedNumber(),
		Expiry:       fmt.Sprintf("%02d/%d", c.ExpiryMonth, c.ExpiryYear),
		IsExpired:    c.IsExpired(now),
	}
}

// MaskedNumber returns the card number with everything but the last four hidden
func (c *Card) MaskedNumber() string {
	if c.LastFour == "" {
		return "**** **** **** ****"
	}
	return "**** **** **** " + c.LastFour
}

// Usable reports whether the card may be charged
func (c *Card) Usable() bool {
	return c.IsActive && !c.IsBlocked
}

// IsExpired reports whether the expiry month lies before now
func (c *Card) IsExpired(now time.Time) bool {
	year, month := now.Year(), int(now.Month())
	return c.ExpiryYear < year || (c.ExpiryYear == year && c.ExpiryMonth < month)
}

// Debit charges amount against available credit and returns the new available credit
func (c *Card) Debit(amount float64) (float64, error) {
	if amount <= 0 {
		return c.AvailableCredit, fmt.Errorf("%w: debit amount must be positive", ErrValidation)
	}
	if decimal.NewFromFloat(amount).GreaterThan(decimal.NewFromFloat(c.AvailableCredit)) {
		return c.AvailableCredit, fmt.Errorf("%w: insufficient credit limit", ErrInvalidState)
	}
	c.setOutstanding(decimal.NewFromFloat(c.Outstanding).Add(decimal.NewFromFloat(amount)))
	return c.AvailableCredit, nil
}

// Credit repays amount against the outstanding balance, never below zero
func (c *Card) Credit(amount float64) float64 {
	outstanding := decimal.NewFromFloat(c.Outstanding).Sub(decimal.NewFromFloat(amount))
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}
	c.setOutstanding(outstanding)
	return c.AvailableCredit
}

// Block disables the card
func (c *Card) Block() {
	c.IsBlocked = true
	c.IsActive = false
}

// Unblock re-enables the card
func (c *Card) Unblock() {
	c.IsBlocked = false
	c.IsActive = true
}

func (c *Card) setOutstanding(outstanding decimal.Decimal) {
	outstanding = outstanding.Round(2)
	c.Outstanding = outstanding.InexactFloat64()
	c.AvailableCredit = decimal.NewFromFloat(c.CreditLimit).Sub(outstanding).Round(2).InexactFloat64()

	minimum := outstanding.Mul(decimal.NewFromFloat(minimumPaymentRatio)).Round(2)
	if floor := decimal.NewFromFloat(minimumPaymentFloor); minimum.LessThan(floor) {
		minimum = floor
	}
	c.MinimumPayment = minimum.InexactFloat64()
}
