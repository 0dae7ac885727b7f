// Package places builds the list of places to choose from: recently used
// places from the local store, a "new place" made from the search text, and
// whatever the remote directory knows about.
package places

import (
	"context"
	"strings"

	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/geo"
	"github.com/voidshard/cashster/pkg/provider"
	"go.uber.org/zap"
)

// LocalStore is the part of the store the resolver reads from.
type LocalStore interface {
	PlacesWithin(ctx context.Context, bounds geo.Bounds, filter string) ([]*domain.Place, error)
}

type Resolver struct {
	store     LocalStore
	directory provider.Directory
	logger    *zap.Logger
}

// NewResolver wires up a resolver; directory may be nil to only ever offer
// local and custom places.
func NewResolver(store LocalStore, directory provider.Directory, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, directory: directory, logger: logger}
}

// Search is a running place search. Local and custom candidates are in the
// list when Find returns; remote ones are added in the background until
// Done is closed.
type Search struct {
	*List

	Location domain.Location
	Filter   string
	Radius   int

	done      chan struct{}
	remoteErr error
}

// Done is closed once the remote lookup has finished, successfully or not.
func (s *Search) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the remote lookup has finished or ctx is done.
func (s *Search) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RemoteErr is the error of the remote lookup, if any. Only meaningful
// after Done is closed.
func (s *Search) RemoteErr() error {
	select {
	case <-s.done:
		return s.remoteErr
	default:
		return nil
	}
}

// Find collects candidate places around loc. Without a location there is
// nothing to search: the returned search is empty and the error is
// domain.ErrNoLocation. Remote lookup failures never fail the search.
func (r *Resolver) Find(ctx context.Context, loc *domain.Location, filter string) (*Search, error) {
	filter = strings.TrimSpace(filter)
	s := &Search{List: NewList(), Filter: filter, done: make(chan struct{})}

	if loc == nil {
		close(s.done)
		return s, domain.ErrNoLocation
	}
	s.Location = *loc
	s.Radius = geo.Radius(loc.Accuracy)

	here := geo.LatLng{Lat: loc.Lat, Lon: loc.Lon}
	local, err := r.store.PlacesWithin(ctx, geo.BoundsAround(here, float64(s.Radius)), filter)
	if err != nil {
		close(s.done)
		return s, err
	}
	for _, p := range local {
		p.Origin = domain.OriginLocal
		p.SetDistance(geo.Distance(here, geo.LatLng{Lat: p.Lat, Lon: p.Lon}))
		s.Add(p)
	}

	if custom := customPlace(*loc, filter); custom != nil {
		s.Add(custom)
	}

	if r.directory == nil {
		close(s.done)
		return s, nil
	}

	go r.remote(ctx, s)
	return s, nil
}

func (r *Resolver) remote(ctx context.Context, s *Search) {
	defer close(s.done)

	found, err := r.directory.Nearby(ctx, s.Location, s.Radius, s.Filter)
	if err != nil {
		s.remoteErr = err
		r.logger.Warn("remote place lookup failed", zap.Error(err))
		return
	}

	for _, p := range found {
		p.Origin = domain.OriginRemote
	}
	added := s.AddAll(found)
	r.logger.Debug("remote places added", zap.Int("found", len(found)), zap.Int("added", added))
}

// customPlace offers the search text itself as a new place.
func customPlace(loc domain.Location, filter string) *domain.Place {
	if filter == "" {
		return nil
	}

	p := domain.NewPlace(filter, "")
	p.Category = domain.CustomCategory
	p.Info = domain.CustomInfo
	p.Lat = loc.Lat
	p.Lon = loc.Lon
	p.Origin = domain.OriginCustom
	return p
}
