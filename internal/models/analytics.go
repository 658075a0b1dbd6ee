package models

// EMISummary aggregates a user's installment plans
type EMISummary struct {
	TotalEMIs      int     `json:"total_emis"`
	ActiveEMIs     int     `json:"active_emis"`
	CompletedEMIs  int     `json:"completed_emis"`
	OverdueEMIs    int     `json:"overdue_emis"`
	DueSoonEMIs    int     `json:"due_soon_emis"`
	TotalPrincipal float64 `json:"total_principal"`
	TotalPaid      float64 `json:"total_paid"`
	TotalRemaining float64 `json:"total_remaining"`
	TotalInterest  float64 `json:"total_interest"`
}
