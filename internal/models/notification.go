package models

import "time"

// Notification categories
const (
	CategoryTransaction = "transaction"
	CategoryPayment     = "payment"
	CategoryBill        = "bill"
	CategoryEMI         = "emi"
	CategoryCard        = "card"
	CategorySecurity    = "security"
	CategoryPromotional = "promotional"
	CategorySystem      = "system"
)

// Notification priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification is a user-visible alert
type Notification struct {
	ID                int64      `json:"id"`
	UserID            int64      `json:"user_id"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	Category          string     `json:"notification_type"`
	Priority          string     `json:"priority"`
	RelatedEntityType string     `json:"related_entity_type,omitempty"`
	RelatedEntityID   string     `json:"related_entity_id,omitempty"`
	IsRead            bool       `json:"is_read"`
	ReadAt            *time.Time `json:"read_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
