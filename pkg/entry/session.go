// Package entry ties the keypad, the place search, the store and the export
// together into one cash entry session.
package entry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/export"
	"github.com/voidshard/cashster/pkg/keypad"
	"github.com/voidshard/cashster/pkg/metrics"
	"github.com/voidshard/cashster/pkg/places"
	"go.uber.org/zap"
)

// Store is what a session needs from the local store.
type Store interface {
	places.LocalStore

	Place(ctx context.Context, id string) (*domain.Place, error)
	DeletePlace(ctx context.Context, id string) error
	CountPlaces(ctx context.Context) (int, error)
	AddTransaction(ctx context.Context, tx *domain.Transaction) error
	PendingTransactions(ctx context.Context) ([]*domain.Transaction, error)
}

// Syncer starts an export in the background.
type Syncer interface {
	Trigger(ctx context.Context) (<-chan *export.Result, error)
	Running() bool
}

type Config struct {
	Store    Store
	Resolver *places.Resolver

	// Syncer and Documents are optional; without them confirmed
	// transactions simply stay pending.
	Syncer    Syncer
	Documents export.Documents

	// Negative starts the keypad on expenses.
	Negative bool

	Logger  *zap.Logger
	Metrics *metrics.Collector
}

// Session is one user entering cash transactions. It's safe for concurrent
// use but calls are serialised.
type Session struct {
	store    Store
	resolver *places.Resolver
	syncer   Syncer
	docs     export.Documents
	logger   *zap.Logger
	metrics  *metrics.Collector

	lock     sync.Mutex
	keypad   *keypad.Keypad
	location *domain.Location
	search   *places.Search

	now func() time.Time
}

// Receipt is what a successful confirm hands back.
type Receipt struct {
	Transaction *domain.Transaction

	// Sync yields the outcome of the export started by the confirm. It's
	// nil if no export was started.
	Sync <-chan *export.Result
}

type Status struct {
	DocumentID string           `json:"document_id"`
	Places     int              `json:"places"`
	Pending    int              `json:"pending"`
	Syncing    bool             `json:"syncing"`
	Location   *domain.Location `json:"location,omitempty"`
	Amount     string           `json:"amount"`
}

func New(cfg *Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		store:    cfg.Store,
		resolver: cfg.Resolver,
		syncer:   cfg.Syncer,
		docs:     cfg.Documents,
		logger:   logger,
		metrics:  cfg.Metrics,
		keypad:   keypad.New(cfg.Negative),
		search:   &places.Search{List: places.NewList()},
		now:      time.Now,
	}
}

// SetLocation sets where we are; nil means we don't know.
func (s *Session) SetLocation(loc *domain.Location) error {
	if loc != nil {
		if err := loc.Validate(); err != nil {
			return err
		}
		c := *loc
		loc = &c
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.location = loc
	return nil
}

func (s *Session) Location() *domain.Location {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.location == nil {
		return nil
	}
	c := *s.location
	return &c
}

// Search replaces the candidate list with places around the current
// location. Remote results keep arriving until the search is Done.
func (s *Session) Search(ctx context.Context, filter string) (*places.Search, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	search, err := s.resolver.Find(ctx, s.location, filter)
	s.search = search
	return search, err
}

// Places is the current candidate list.
func (s *Session) Places() *places.Search {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.search
}

// Select chooses candidate i; anything out of range clears the selection
// and returns nil.
func (s *Session) Select(i int) *domain.Place {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.search.Select(i)
	return s.search.Selected()
}

func (s *Session) Press(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.keypad.Press(key)
}

func (s *Session) Delete() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.keypad.Delete()
}

func (s *Session) ToggleSign() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.keypad.ToggleSign()
}

// Amount is the formatted amount entered so far.
func (s *Session) Amount() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.keypad.String()
}

// Confirm stores the entered amount against the selected place and kicks
// off an export.
//
// If nothing is selected the first candidate is selected and
// domain.ErrFirstPlace returned so the user can check it before confirming
// again.
func (s *Session) Confirm(ctx context.Context) (*Receipt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.keypad.Amount().IsZero() {
		return nil, domain.ErrNoAmount
	}

	place := s.search.Selected()
	if place == nil {
		if s.search.Len() == 0 {
			return nil, domain.ErrNoPlace
		}
		s.search.Select(0)
		return nil, domain.ErrFirstPlace
	}

	// place is our own copy; the list is updated once the transaction is
	// stored
	saved := *s.keypad
	tx, err := s.keypad.Confirm(place, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.AddTransaction(ctx, tx); err != nil {
		*s.keypad = saved
		return nil, fmt.Errorf("saving transaction: %w", err)
	}
	s.logger.Info("transaction saved",
		zap.String("id", tx.ID),
		zap.String("amount", tx.Amount.StringFixed(2)),
		zap.String("place", place.Name),
	)

	s.metrics.Confirmed()
	s.search.Update(place, func(p *domain.Place) {
		p.Origin = domain.OriginLocal
		p.LastUsed = place.LastUsed
	})
	s.search.Select(-1)

	return &Receipt{Transaction: tx, Sync: s.trigger(ctx)}, nil
}

// Sync starts an export now.
func (s *Session) Sync(ctx context.Context) (<-chan *export.Result, error) {
	if s.syncer == nil {
		return nil, fmt.Errorf("%w: export is not configured", domain.ErrInvalid)
	}
	return s.syncer.Trigger(context.WithoutCancel(ctx))
}

func (s *Session) trigger(ctx context.Context) <-chan *export.Result {
	if s.syncer == nil {
		return nil
	}

	// the export outlives whatever asked for the confirm
	results, err := s.syncer.Trigger(context.WithoutCancel(ctx))
	if errors.Is(err, domain.ErrSyncRunning) {
		s.logger.Debug("sync already running")
		return nil
	} else if err != nil {
		s.logger.Warn("failed to start sync", zap.Error(err))
		return nil
	}
	return results
}

// Forget deletes candidate i from the store and returns it as it was
// stored. Only places we've used before can be forgotten.
func (s *Session) Forget(ctx context.Context, i int) (*domain.Place, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	p := s.search.Get(i)
	if p == nil {
		return nil, fmt.Errorf("%w: no place at %d", domain.ErrNotFound, i)
	}
	if !p.IsLocal() {
		return nil, domain.ErrNotLocal
	}

	stored, err := s.store.Place(ctx, p.ID)
	if errors.Is(err, domain.ErrNotFound) {
		// gone already, stop offering it
		s.search.Remove(p)
		return nil, err
	} else if err != nil {
		return nil, err
	}

	if err := s.store.DeletePlace(ctx, p.ID); err != nil {
		return nil, err
	}
	s.search.Remove(p)
	s.metrics.Forgotten()
	return stored, nil
}

func (s *Session) Status(ctx context.Context) (*Status, error) {
	count, err := s.store.CountPlaces(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.PendingTransactions(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Places:   count,
		Pending:  len(pending),
		Location: s.Location(),
		Amount:   s.Amount(),
	}
	if s.docs != nil {
		st.DocumentID = s.docs.DocumentID()
	}
	if s.syncer != nil {
		st.Syncing = s.syncer.Running()
	}
	return st, nil
}
