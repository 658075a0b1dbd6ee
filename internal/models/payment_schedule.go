package models

import "time"

// ScheduleEntry represents one projected installment of an EMI
type ScheduleEntry struct {
	Installment int       `json:"installment"`
	DueDate     time.Time `json:"due_date"`
	Payment     float64   `json:"payment"`
	Interest    float64   `json:"interest"`
	Principal   float64   `json:"principal"`
	Balance     float64   `json:"remaining_balance"`
}

// Quote is the answer of the EMI calculator
type Quote struct {
	PrincipalAmount float64         `json:"principal_amount"`
	InterestRate    float64         `json:"interest_rate"`
	RateSource      string          `json:"rate_source"`
	TenureMonths    int             `json:"tenure_months"`
	EMIAmount       float64         `json:"emi_amount"`
	TotalAmount     float64         `json:"total_amount"`
	TotalInterest   float64         `json:"total_interest"`
	Schedule        []ScheduleEntry `json:"schedule,omitempty"`
}
