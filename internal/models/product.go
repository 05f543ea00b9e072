package models

import (
	"time"

	"ottsonly-backend/pkg/money"
)

// Product is a purchasable plan. Stock is a guarded counter.
type Product struct {
	ID           string       `gorm:"primaryKey;size:36" json:"id"`
	PlatformName string       `gorm:"size:100;not null;index" json:"platform_name"`
	PlanName     string       `gorm:"size:100;not null" json:"plan_name"`
	Description  string       `gorm:"size:500" json:"description"`
	Price        money.Amount `gorm:"not null" json:"price"`
	DurationDays int          `gorm:"not null" json:"duration_days"`
	Stock        int64        `gorm:"not null;default:0" json:"stock"`
	// RequiresCredential is false for plans activated on the customer's own
	// account (e.g. YouTube invites), true when a shared login is handed out.
	RequiresCredential bool      `gorm:"not null" json:"requires_credential"`
	IsActive           bool      `gorm:"not null" json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (p Product) DisplayName() string {
	return p.PlatformName + " - " + p.PlanName
}

type ProductInput struct {
	PlatformName       string       `json:"platform_name" binding:"required,max=100"`
	PlanName           string       `json:"plan_name" binding:"required,max=100"`
	Description        string       `json:"description" binding:"max=500"`
	Price              money.Amount `json:"price" binding:"required,gt=0"`
	DurationDays       int          `json:"duration_days" binding:"required,gt=0"`
	Stock              int64        `json:"stock" binding:"min=0"`
	RequiresCredential *bool        `json:"requires_credential"`
	IsActive           *bool        `json:"is_active"`
}

// ProductUpdate only touches descriptive fields; stock goes through restock.
type ProductUpdate struct {
	PlanName     *string       `json:"plan_name" binding:"omitempty,max=100"`
	Description  *string       `json:"description" binding:"omitempty,max=500"`
	Price        *money.Amount `json:"price" binding:"omitempty,gt=0"`
	DurationDays *int          `json:"duration_days" binding:"omitempty,gt=0"`
	IsActive     *bool         `json:"is_active"`
}

// Credential is an admin-loaded login that gets assigned to one subscription.
type Credential struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	Platform       string     `gorm:"size:100;not null;index" json:"platform"`
	Username       string     `gorm:"size:200;not null" json:"username"`
	Password       string     `gorm:"size:200;not null" json:"password"`
	IsActive       bool       `gorm:"not null" json:"is_active"`
	UsedBy         *string    `gorm:"index;size:36" json:"used_by,omitempty"`
	SubscriptionID *string    `gorm:"size:36" json:"subscription_id,omitempty"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type CredentialInput struct {
	Platform string `json:"platform" binding:"required,max=100"`
	Username string `json:"username" binding:"required,max=200"`
	Password string `json:"password" binding:"required,max=200"`
}
