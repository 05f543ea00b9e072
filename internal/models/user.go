package models

import (
	"time"

	"ottsonly-backend/pkg/money"
)

const (
	RoleAdmin    uint = 1
	RoleCustomer uint = 2
)

// User is the account root. Balances are only ever changed through the
// conditional counter update in the store.
type User struct {
	ID                  string       `gorm:"primaryKey;size:36" json:"id"`
	RoleID              uint         `gorm:"not null" json:"role_id"`
	Name                string       `gorm:"size:100;not null" json:"name"`
	Email               string       `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Phone               string       `gorm:"size:20" json:"phone"`
	PasswordHash        string       `gorm:"not null" json:"-"`
	WalletBalance       money.Amount `gorm:"not null;default:0" json:"wallet_balance"`
	WithdrawableBalance money.Amount `gorm:"not null;default:0" json:"withdrawable_balance"`
	ReferralCode        *string      `gorm:"uniqueIndex;size:16" json:"referral_code,omitempty"`
	ReferredBy          *string      `gorm:"index;size:36" json:"referred_by,omitempty"`
	ReferralAppliedAt   *time.Time   `json:"referral_applied_at,omitempty"`
	IsActive            bool         `gorm:"not null" json:"is_active"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func (u User) Balances() Balances {
	return Balances{Wallet: u.WalletBalance, Withdrawable: u.WithdrawableBalance}
}

// Balances is the pair of money counters on an account.
type Balances struct {
	Wallet       money.Amount `json:"wallet_balance"`
	Withdrawable money.Amount `json:"withdrawable_balance"`
}

type RegisterInput struct {
	Name         string `json:"name" binding:"required,max=100"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	Phone        string `json:"phone" binding:"max=20"`
	ReferralCode string `json:"referral_code" binding:"omitempty,min=6,max=20"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
