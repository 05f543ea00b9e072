package models

import "errors"

// Not found.
var (
	ErrNotFound             = errors.New("not found")
	ErrUserNotFound         = wrap(ErrNotFound, "user not found")
	ErrProductNotFound      = wrap(ErrNotFound, "product not found")
	ErrOrderNotFound        = wrap(ErrNotFound, "order not found")
	ErrPaymentNotFound      = wrap(ErrNotFound, "payment not found")
	ErrWithdrawalNotFound   = wrap(ErrNotFound, "withdrawal request not found")
	ErrSubscriptionNotFound = wrap(ErrNotFound, "subscription not found")
	ErrReferralCodeNotFound = wrap(ErrNotFound, "invalid referral code")
)

// Invariant violations, surfaced as client errors.
var (
	ErrInvariant                = errors.New("invariant violation")
	ErrConstraintViolated       = wrap(ErrInvariant, "constraint violated")
	ErrInsufficientBalance      = wrap(ErrInvariant, "insufficient wallet balance")
	ErrInsufficientWithdrawable = wrap(ErrInvariant, "insufficient withdrawable balance")
	ErrOutOfStock               = wrap(ErrInvariant, "product out of stock")
	ErrProductInactive          = wrap(ErrInvariant, "product is not available")
	ErrInvalidOrderState        = wrap(ErrInvariant, "order is not in a state that allows this")
	ErrInvalidStatus            = wrap(ErrInvariant, "unknown status")
	ErrPendingWithdrawalExists  = wrap(ErrInvariant, "a withdrawal request is already pending")
	ErrBelowMinimumWithdrawal   = wrap(ErrInvariant, "amount is below the minimum withdrawal")
	ErrWithdrawalProcessed      = wrap(ErrInvariant, "withdrawal request already processed")
	ErrSelfReferral             = wrap(ErrInvariant, "cannot use your own referral code")
	ErrAlreadyReferred          = wrap(ErrInvariant, "a referral code was already applied")
	ErrInvalidAmount            = wrap(ErrInvariant, "amount must be greater than zero")
	ErrReasonRequired           = wrap(ErrInvariant, "reason is required")
	ErrEmailTaken               = wrap(ErrInvariant, "email already registered")
)

// Payment intake rejections. Messages are fixed and reveal no state.
var (
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrAlreadyProcessed = errors.New("transaction already processed or not found")
)

// ErrDuplicateEntry means a ledger entry with the same idempotency key exists.
var ErrDuplicateEntry = errors.New("duplicate ledger entry")

// ErrExternal marks failures of collaborators (subscription activation, gateway).
var (
	ErrExternal               = errors.New("external collaborator failure")
	ErrCredentialsUnavailable = wrap(ErrExternal, "platform is currently out of stock")
	ErrGateway                = wrap(ErrExternal, "payment gateway error")
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = wrap(ErrUnauthorized, "invalid email or password")
)

type sentinel struct {
	parent error
	msg    string
}

func (e *sentinel) Error() string { return e.msg }
func (e *sentinel) Unwrap() error { return e.parent }

// wrap builds a sentinel that also matches its category with errors.Is.
func wrap(parent error, msg string) error {
	return &sentinel{parent: parent, msg: msg}
}
