package models

import "time"

// EMIStatus is the lifecycle state of an installment plan
type EMIStatus string

const (
	EMIStatusActive    EMIStatus = "active"
	EMIStatusCompleted EMIStatus = "completed"
	EMIStatusCancelled EMIStatus = "cancelled"
	EMIStatusDefaulted EMIStatus = "defaulted"
)

// Valid reports whether s is a known status
func (s EMIStatus) Valid() bool {
	switch s {
	case EMIStatusActive, EMIStatusCompleted, EMIStatusCancelled, EMIStatusDefaulted:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s
func (s EMIStatus) Terminal() bool {
	return s == EMIStatusCompleted || s == EMIStatusCancelled || s == EMIStatusDefaulted
}

// EMI represents an equated monthly installment plan drawn against a card
type EMI struct {
	ID                 int64      `json:"id"`
	Code               string     `json:"emi_id"`
	UserID             int64      `json:"user_id"`
	CardID             int64      `json:"card_id"`
	PrincipalAmount    float64    `json:"principal_amount"`
	InterestRate       float64    `json:"interest_rate"`
	TenureMonths       int        `json:"tenure_months"`
	InstallmentAmount  float64    `json:"emi_amount"`
	Status             EMIStatus  `json:"status"`
	CurrentInstallment int        `json:"current_installment"`
	TotalInstallments  int        `json:"total_installments"`
	TotalPaid          float64    `json:"total_paid"`
	RemainingBalance   float64    `json:"remaining_amount"`
	InterestPaid       float64    `json:"interest_paid"`
	PrincipalPaid      float64    `json:"principal_paid"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            time.Time  `json:"end_date"`
	NextDueDate        time.Time  `json:"next_due_date"`
	LastPaymentDate    *time.Time `json:"last_payment_date,omitempty"`
	Description        string     `json:"description,omitempty"`
	MerchantName       string     `json:"merchant_name,omitempty"`
	ProductName        string     `json:"product_name,omitempty"`
	AutoPayEnabled     bool       `json:"auto_pay_enabled"`
	AutoPayDay         int        `json:"auto_pay_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// EMIView is the serialized form of an EMI with derived progress fields
type EMIView struct {
	EMI
	IsOverdue                bool    `json:"is_overdue"`
	IsDueSoon                bool    `json:"is_due_soon"`
	ProgressPercentage       float64 `json:"progress_percentage"`
	RemainingInstallments    int     `json:"remaining_installments"`
	TotalInterest            float64 `json:"total_interest"`
	FormattedEMIAmount       string  `json:"formatted_emi_amount"`
	FormattedRemainingAmount string  `json:"formatted_remaining_amount"`
}

// EMIFilter narrows an EMI listing
type EMIFilter struct {
	CardID  int64
	Status  EMIStatus
	Page    int
	PerPage int
}

// Offset returns the number of rows to skip for the filter's page
func (f EMIFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}

// EMIPage is one page of an EMI listing
type EMIPage struct {
	EMIs        []EMIView `json:"emis"`
	Total       int       `json:"total"`
	Pages       int       `json:"pages"`
	CurrentPage int       `json:"current_page"`
	PerPage     int       `json:"per_page"`
}
