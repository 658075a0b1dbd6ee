package models

import "time"

// Transaction types
const (
	TransactionDebit  = "debit"
	TransactionCredit = "credit"
	TransactionRefund = "refund"
)

// Transaction statuses
const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

// Transaction represents a card transaction, including EMI installment and
// bill payment debits
type Transaction struct {
	ID               int64     `json:"id"`
	Code             string    `json:"transaction_id"`
	UserID           int64     `json:"user_id"`
	CardID           int64     `json:"card_id"`
	EMIID            *int64    `json:"emi_id,omitempty"`
	BillID           *int64    `json:"bill_id,omitempty"`
	MerchantName     string    `json:"merchant_name"`
	MerchantCategory string    `json:"merchant_category"`
	Description      string    `json:"description,omitempty"`
	Amount           float64   `json:"amount"`
	Currency         string    `json:"currency"`
	Type             string    `json:"transaction_type"`
	Status           string    `json:"status"`
	PaymentMethod    string    `json:"payment_method,omitempty"`
	IsInternational  bool      `json:"is_international"`
	TransactionDate  time.Time `json:"transaction_date"`
	CreatedAt        time.Time `json:"created_at"`
}
