package models

import (
	"time"

	"ottsonly-backend/pkg/money"
)

const (
	TxnCredit = "credit"
	TxnDebit  = "debit"
)

// Reference types recorded on ledger entries.
const (
	RefOrder      = "order"
	RefRefund     = "refund"
	RefAdmin      = "admin"
	RefRazorpay   = "razorpay"
	RefWithdrawal = "withdrawal"
	RefCommission = "commission"
)

// WalletTransaction is one append-only ledger line. It is written in the same
// atomic step as the balance change it describes and never updated.
type WalletTransaction struct {
	ID             string       `gorm:"primaryKey;size:26" json:"id"`
	UserID         string       `gorm:"size:36;not null;index:idx_wallet_txn_user_created,priority:1" json:"user_id"`
	Type           string       `gorm:"size:10;not null" json:"type"`
	Amount         money.Amount `gorm:"not null" json:"amount"`
	BalanceAfter   money.Amount `gorm:"not null" json:"balance_after"`
	ReferenceType  string       `gorm:"size:20;not null" json:"reference_type"`
	ReferenceID    string       `gorm:"size:64" json:"reference_id,omitempty"`
	Description    string       `gorm:"size:500" json:"description"`
	IdempotencyKey *string      `gorm:"uniqueIndex;size:120" json:"-"`
	CreatedAt      time.Time    `gorm:"index:idx_wallet_txn_user_created,priority:2" json:"created_at"`
}

// Delta is the signed effect of the entry on the wallet balance.
func (t WalletTransaction) Delta() money.Amount {
	if t.Type == TxnDebit {
		return -t.Amount
	}
	return t.Amount
}

const (
	PaymentPending    = "pending"
	PaymentProcessing = "processing"
	PaymentCompleted  = "completed"
)

// PendingPayment tracks one gateway top-up through pending -> processing -> completed.
type PendingPayment struct {
	ID                  string       `gorm:"primaryKey;size:36" json:"id"`
	UserID              string       `gorm:"size:36;not null;index" json:"user_id"`
	Amount              money.Amount `gorm:"not null" json:"amount"`
	ExternalOrderID     string       `gorm:"uniqueIndex;size:64;not null" json:"external_order_id"`
	ExternalPaymentID   *string      `gorm:"size:64" json:"external_payment_id,omitempty"`
	Signature           string       `gorm:"size:128" json:"-"`
	Status              string       `gorm:"size:20;not null;index" json:"status"`
	ProcessingStartedAt *time.Time   `gorm:"precision:3" json:"processing_started_at,omitempty"`
	CompletedAt         *time.Time   `json:"completed_at,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

type AddMoneyInput struct {
	Amount money.Amount `json:"amount" binding:"required,gt=0"`
}

type VerifyPaymentInput struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

type AdminWalletInput struct {
	Amount money.Amount `json:"amount" binding:"required,gt=0"`
	Reason string       `json:"reason" binding:"required,max=500"`
}

// BalanceChange is one conditional update of an account's two counters.
// Both deltas are applied only if the current balances are at least the
// Require values. Entry, when set, is appended in the same step with its
// BalanceAfter taken from the updated row.
type BalanceChange struct {
	Wallet              money.Amount
	Withdrawable        money.Amount
	RequireWallet       money.Amount
	RequireWithdrawable money.Amount
	Entry               *WalletTransaction
}

// ApplyTo returns the balances after the change, with withdrawable capped
// at the new wallet balance.
func (c BalanceChange) ApplyTo(b Balances) Balances {
	wallet := b.Wallet + c.Wallet
	withdrawable := b.Withdrawable + c.Withdrawable
	if withdrawable > wallet {
		withdrawable = wallet
	}
	return Balances{Wallet: wallet, Withdrawable: withdrawable}
}

// Allows reports whether the guards hold for b and neither counter would
// overflow.
func (c BalanceChange) Allows(b Balances) bool {
	if b.Wallet < c.RequireWallet || b.Withdrawable < c.RequireWithdrawable {
		return false
	}
	_, okW := money.Add(b.Wallet, c.Wallet)
	_, okD := money.Add(b.Withdrawable, c.Withdrawable)
	return okW && okD
}
