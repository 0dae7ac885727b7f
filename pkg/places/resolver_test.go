package places

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/geo"
)

var here = &domain.Location{Lat: 52.520008, Lon: 13.404954, Accuracy: 10}

type fakeStore struct {
	places []*domain.Place
	err    error

	bounds geo.Bounds
	filter string
}

func (f *fakeStore) PlacesWithin(ctx context.Context, bounds geo.Bounds, filter string) ([]*domain.Place, error) {
	f.bounds, f.filter = bounds, filter
	out := []*domain.Place{}
	for _, p := range f.places {
		out = append(out, p.Copy())
	}
	return out, f.err
}

type fakeDirectory struct {
	places []*domain.Place
	err    error
	block  chan struct{}

	radius int
	filter string
}

func (f *fakeDirectory) Nearby(ctx context.Context, loc domain.Location, radius int, filter string) ([]*domain.Place, error) {
	if f.block != nil {
		<-f.block
	}
	f.radius, f.filter = radius, filter
	return f.places, f.err
}

func near(name string, meters float64) *domain.Place {
	p := domain.NewPlace(name, "")
	ll := geo.Offset(geo.LatLng{Lat: here.Lat, Lon: here.Lon}, meters, 90)
	p.Lat, p.Lon = ll.Lat, ll.Lon
	return p
}

func find(t *testing.T, r *Resolver, loc *domain.Location, filter string) *Search {
	s, err := r.Find(context.Background(), loc, filter)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	return s
}

func names(s *Search) []string {
	out := []string{}
	for _, p := range s.Items() {
		out = append(out, p.Name)
	}
	return out
}

func TestFindNothingButCustom(t *testing.T) {
	r := NewResolver(&fakeStore{}, &fakeDirectory{err: errors.New("offline")}, nil)

	s := find(t, r, here, "Street Food")
	require.Equal(t, 1, s.Len())

	custom := s.Get(0)
	assert.Equal(t, "Street Food", custom.Name)
	assert.Equal(t, domain.OriginCustom, custom.Origin)
	assert.Equal(t, domain.CustomCategory, custom.Category)
	assert.Equal(t, domain.CustomInfo, custom.Info)
	assert.Nil(t, custom.Distance)
	assert.Equal(t, here.Lat, custom.Lat)
	assert.EqualError(t, s.RemoteErr(), "offline")

	s = find(t, r, here, "")
	assert.Equal(t, 0, s.Len())

	s = find(t, r, here, "   ")
	assert.Equal(t, 0, s.Len())
}

func TestFindWithoutLocation(t *testing.T) {
	dir := &fakeDirectory{places: []*domain.Place{near("Remote", 10)}}
	r := NewResolver(&fakeStore{places: []*domain.Place{near("Local", 10)}}, dir, nil)

	s, err := r.Find(context.Background(), nil, "Local")
	assert.ErrorIs(t, err, domain.ErrNoLocation)
	assert.Equal(t, 0, s.Len())
	assert.NoError(t, s.Wait(context.Background()))
	assert.Equal(t, 0, dir.radius, "no remote lookup without a location")
}

func TestFindOrderAndOrigins(t *testing.T) {
	store := &fakeStore{places: []*domain.Place{near("Recent Kiosk", 40), near("Old Kiosk", 80)}}
	dir := &fakeDirectory{places: []*domain.Place{
		domain.NewPlace("Remote One", "fsq-1"),
		domain.NewPlace("Remote Two", "fsq-2"),
	}}
	r := NewResolver(store, dir, nil)

	s := find(t, r, here, "kiosk")

	assert.Equal(t, []string{"Recent Kiosk", "Old Kiosk", "kiosk", "Remote One", "Remote Two"}, names(s))
	items := s.Items()
	assert.Equal(t, domain.OriginLocal, items[0].Origin)
	require.NotNil(t, items[0].Distance)
	assert.InDelta(t, 40, *items[0].Distance, 0.5)
	assert.Equal(t, domain.OriginCustom, items[2].Origin)
	assert.Equal(t, domain.OriginRemote, items[3].Origin)

	assert.Equal(t, "kiosk", store.filter)
	assert.Equal(t, "kiosk", dir.filter)
	assert.Equal(t, 150, dir.radius)
	assert.Equal(t, 150, s.Radius)
	assert.NoError(t, s.RemoteErr())
}

func TestFindBoundsFromAccuracy(t *testing.T) {
	store := &fakeStore{}
	r := NewResolver(store, nil, nil)

	find(t, r, here, "")

	center := geo.LatLng{Lat: here.Lat, Lon: here.Lon}
	assert.InDelta(t, 212.1, geo.Distance(center, store.bounds.NorthEast), 0.5)
	assert.InDelta(t, 212.1, geo.Distance(center, store.bounds.SouthWest), 0.5)
}

func TestFindSuppressesRemoteDuplicates(t *testing.T) {
	local := near("Bakery", 20)
	local.SetRemoteID("fsq-bakery")

	dir := &fakeDirectory{places: []*domain.Place{
		domain.NewPlace("Bakery (remote name)", "fsq-bakery"),
		domain.NewPlace("Butcher", "fsq-butcher"),
		domain.NewPlace("Butcher again", "fsq-butcher"),
	}}
	r := NewResolver(&fakeStore{places: []*domain.Place{local}}, dir, nil)

	s := find(t, r, here, "")

	assert.Equal(t, []string{"Bakery", "Butcher"}, names(s))
	assert.Equal(t, domain.OriginLocal, s.Get(0).Origin)
}

func TestFindCustomCollidesWithLocal(t *testing.T) {
	r := NewResolver(&fakeStore{places: []*domain.Place{near("Bakery", 20)}}, nil, nil)

	s := find(t, r, here, "Bakery")

	require.Equal(t, 1, s.Len())
	assert.Equal(t, domain.OriginLocal, s.Get(0).Origin)
}

func TestFindLocalIsReadyBeforeRemote(t *testing.T) {
	dir := &fakeDirectory{places: []*domain.Place{domain.NewPlace("Remote", "fsq-1")}, block: make(chan struct{})}
	r := NewResolver(&fakeStore{places: []*domain.Place{near("Local", 20)}}, dir, nil)

	s, err := r.Find(context.Background(), here, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Local"}, names(s))
	select {
	case <-s.Done():
		t.Fatal("remote lookup finished early")
	default:
	}

	s.Select(0)
	close(dir.block)
	require.NoError(t, s.Wait(context.Background()))

	assert.Equal(t, []string{"Local", "Remote"}, names(s))
	assert.Equal(t, "Local", s.Selected().Name)
}

func TestFindStoreError(t *testing.T) {
	r := NewResolver(&fakeStore{err: errors.New("disk on fire")}, nil, nil)

	s, err := r.Find(context.Background(), here, "x")
	assert.EqualError(t, err, "disk on fire")
	assert.Equal(t, 0, s.Len())
}
