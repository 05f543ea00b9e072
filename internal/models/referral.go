package models

import (
	"time"

	"ottsonly-backend/pkg/money"
)

const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
)

// WithdrawalRequest asks for referral earnings to be paid out. PendingKey holds
// the user id while the request is pending and is cleared afterwards; its
// unique index keeps one pending request per user.
type WithdrawalRequest struct {
	ID            string       `gorm:"primaryKey;size:36" json:"id"`
	UserID        string       `gorm:"size:36;not null;index" json:"user_id"`
	Amount        money.Amount `gorm:"not null" json:"amount"`
	PayoutID      string       `gorm:"size:100;not null" json:"upi_id"`
	PaymentMethod string       `gorm:"size:20;not null" json:"payment_method"`
	Status        string       `gorm:"size:20;not null;index" json:"status"`
	PendingKey    *string      `gorm:"uniqueIndex;size:36" json:"-"`
	AdminNotes    string       `gorm:"size:500" json:"admin_notes,omitempty"`
	ProcessedBy   *string      `gorm:"size:36" json:"processed_by,omitempty"`
	ProcessedAt   *time.Time   `json:"processed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type WithdrawInput struct {
	Amount   money.Amount `json:"amount" binding:"required,gt=0"`
	PayoutID string       `json:"upi_id" binding:"required,min=3,max=100"`
}

type ProcessWithdrawalInput struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
	Notes  string `json:"notes" binding:"max=500"`
}

type ApplyReferralInput struct {
	Code string `json:"referral_code" binding:"required,min=6,max=20"`
}

// ReferralCommission is the audit row for one commission credit.
// Balances are the referrer's withdrawable balance around the credit.
type ReferralCommission struct {
	ID               string       `gorm:"primaryKey;size:36" json:"id"`
	ReferrerID       string       `gorm:"size:36;not null;index" json:"referrer_id"`
	ReferredUserID   string       `gorm:"size:36;not null;index" json:"referred_user_id"`
	ReferredUserName string       `gorm:"size:100" json:"referred_user_name"`
	TopupAmount      money.Amount `gorm:"not null" json:"topup_amount"`
	CommissionAmount money.Amount `gorm:"not null" json:"commission_amount"`
	CommissionRate   string       `gorm:"size:10;not null" json:"commission_rate"`
	TransactionID    string       `gorm:"uniqueIndex;size:64;not null" json:"transaction_id"`
	BalanceBefore    money.Amount `gorm:"not null" json:"balance_before"`
	BalanceAfter     money.Amount `gorm:"not null" json:"balance_after"`
	CreatedAt        time.Time    `gorm:"index" json:"created_at"`
}

// ReferralTransaction records a payout against the withdrawable balance.
type ReferralTransaction struct {
	ID            string       `gorm:"primaryKey;size:36" json:"id"`
	UserID        string       `gorm:"size:36;not null;index" json:"user_id"`
	Type          string       `gorm:"size:20;not null" json:"type"`
	Amount        money.Amount `gorm:"not null" json:"amount"`
	BalanceBefore money.Amount `gorm:"not null" json:"balance_before"`
	BalanceAfter  money.Amount `gorm:"not null" json:"balance_after"`
	WithdrawalID  string       `gorm:"size:36;not null;index" json:"withdrawal_id"`
	PaymentMethod string       `gorm:"size:20" json:"payment_method"`
	PayoutID      string       `gorm:"size:100" json:"upi_id"`
	ProcessedBy   string       `gorm:"size:36" json:"processed_by"`
	CreatedAt     time.Time    `json:"created_at"`
}

// WithdrawalChange is applied by a conditional status transition. Moving a
// request out of pending clears its PendingKey; moving it back restores it.
type WithdrawalChange struct {
	Status      string
	AdminNotes  *string
	ProcessedBy *string
	ProcessedAt *time.Time
}

// ReferrerTotal aggregates commissions earned by one referrer.
type ReferrerTotal struct {
	ReferrerID string       `json:"referrer_id"`
	Name       string       `json:"name"`
	Email      string       `json:"email"`
	Count      int64        `json:"commission_count"`
	Total      money.Amount `json:"total_earnings"`
}
