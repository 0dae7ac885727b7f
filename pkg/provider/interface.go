package provider

import (
	"context"

	"github.com/voidshard/cashster/pkg/domain"
)

// Directory finds points of interest around a location.
type Directory interface {
	Nearby(ctx context.Context, loc domain.Location, radius int, filter string) ([]*domain.Place, error)
}
