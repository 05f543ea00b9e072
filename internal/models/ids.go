package models

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID returns a random entity id.
func NewID() string {
	return uuid.NewString()
}

// NewLedgerID returns a time-ordered id so ledger entries sort by creation.
func NewLedgerID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
