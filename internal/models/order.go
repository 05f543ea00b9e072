package models

import (
	"time"

	"ottsonly-backend/pkg/money"
)

const (
	OrderPending   = "pending"
	OrderPaid      = "paid"
	OrderCompleted = "completed"
	OrderRefunded  = "refunded"
)

type Order struct {
	ID             string       `gorm:"primaryKey;size:36" json:"id"`
	UserID         string       `gorm:"size:36;not null;index" json:"user_id"`
	ProductID      string       `gorm:"size:36;not null;index" json:"product_id"`
	ProductName    string       `gorm:"size:210" json:"product_name"`
	Amount         money.Amount `gorm:"not null" json:"amount"`
	Status         string       `gorm:"size:20;not null;index" json:"status"`
	SubscriptionID *string      `gorm:"size:36" json:"subscription_id,omitempty"`
	RefundReason   string       `gorm:"size:500" json:"refund_reason,omitempty"`
	PaidAt         *time.Time   `json:"paid_at,omitempty"`
	RefundedAt     *time.Time   `json:"refunded_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type CreateOrderInput struct {
	ProductID string `json:"product_id" binding:"required"`
}

type RefundInput struct {
	Reason string `json:"reason" binding:"max=500"`
}

const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
)

type Subscription struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	UserID       string    `gorm:"size:36;not null;index" json:"user_id"`
	ProductID    string    `gorm:"size:36;not null" json:"product_id"`
	OrderID      string    `gorm:"size:36;not null;index" json:"order_id"`
	PlatformName string    `gorm:"size:100" json:"platform_name"`
	PlanName     string    `gorm:"size:100" json:"plan_name"`
	Status       string    `gorm:"size:20;not null" json:"status"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	CredentialID *string   `gorm:"size:36" json:"credential_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Credential *Credential `gorm:"-" json:"credential,omitempty"`
}

// OrderChange is applied by a conditional status transition.
type OrderChange struct {
	Status         string
	SubscriptionID *string
	RefundReason   *string
	PaidAt         *time.Time
	RefundedAt     *time.Time
}
