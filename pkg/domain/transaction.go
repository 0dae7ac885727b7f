package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is a single cash movement waiting to be exported.
type Transaction struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Time   time.Time       `json:"time"`

	// Place is a snapshot of the place at the time the transaction was
	// confirmed; Place.ID is the reference to the stored place.
	Place *Place `json:"place"`
}

// NewTransaction creates a transaction with a fresh id.
func NewTransaction(amount decimal.Decimal, place *Place, at time.Time) *Transaction {
	return &Transaction{
		ID:     uuid.NewString(),
		Amount: amount,
		Time:   at.UTC(),
		Place:  place.Copy(),
	}
}
