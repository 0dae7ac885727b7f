package store

import (
	"context"

	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/geo"
)

// Store keeps used places and transactions that still need exporting.
type Store interface {
	// PlacesWithin returns places inside bounds whose name contains filter
	// (case-insensitive, ignored when empty), most recently used first.
	PlacesWithin(ctx context.Context, bounds geo.Bounds, filter string) ([]*domain.Place, error)

	Place(ctx context.Context, id string) (*domain.Place, error)
	DeletePlace(ctx context.Context, id string) error
	CountPlaces(ctx context.Context) (int, error)

	// AddTransaction stores tx and creates or updates tx.Place together
	// with it.
	AddTransaction(ctx context.Context, tx *domain.Transaction) error

	// PendingTransactions returns all stored transactions, oldest first.
	PendingTransactions(ctx context.Context) ([]*domain.Transaction, error)

	// DeleteTransactions removes all of ids or none of them.
	DeleteTransactions(ctx context.Context, ids []string) error

	Close() error
}
