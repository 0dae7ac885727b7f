package store

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/geo"
)

var home = geo.LatLng{Lat: 52.520008, Lon: 13.404954}

// placeAt makes a place distance meters north of home, last used age ago.
func placeAt(name string, distance float64, age time.Duration) *domain.Place {
	p := domain.NewPlace(name, "")
	ll := geo.Offset(home, distance, 0)
	p.Lat, p.Lon = ll.Lat, ll.Lon
	p.Address = gofakeit.Street()
	p.Category = gofakeit.Word()
	p.LastUsed = time.Now().UTC().Add(-age).Truncate(time.Millisecond)
	return p
}

func addTx(t *testing.T, s Store, p *domain.Place, amount string, at time.Time) *domain.Transaction {
	tx := domain.NewTransaction(decimal.RequireFromString(amount), p, at)
	require.NoError(t, s.AddTransaction(context.Background(), tx))
	return tx
}

// testStore runs the behaviour every backend must share.
func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	old := placeAt("Old Bakery", 50, 48*time.Hour)
	recent := placeAt("Corner Kiosk", 100, time.Hour)
	far := placeAt("Far Away Bakery", 5000, time.Minute)

	t1 := addTx(t, s, old, "-1.50", now.Add(-2*time.Minute))
	t2 := addTx(t, s, recent, "-3.20", now.Add(-time.Minute))
	t3 := addTx(t, s, far, "12.00", now)

	count, err := s.CountPlaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	bounds := geo.BoundsAround(home, 150)

	t.Run("bounds and recency", func(t *testing.T) {
		found, err := s.PlacesWithin(ctx, bounds, "")
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, recent.ID, found[0].ID)
		assert.Equal(t, old.ID, found[1].ID)
		assert.InDelta(t, recent.Lat, found[0].Lat, 1e-9)
	})

	t.Run("filter is case insensitive", func(t *testing.T) {
		found, err := s.PlacesWithin(ctx, bounds, "bAKERY")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, old.ID, found[0].ID)
	})

	t.Run("place lookup", func(t *testing.T) {
		p, err := s.Place(ctx, recent.ID)
		require.NoError(t, err)
		assert.Equal(t, "Corner Kiosk", p.Name)

		_, err = s.Place(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("pending oldest first", func(t *testing.T) {
		txns, err := s.PendingTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, txns, 3)
		assert.Equal(t, []string{t1.ID, t2.ID, t3.ID}, []string{txns[0].ID, txns[1].ID, txns[2].ID})
		assert.Equal(t, "-1.50", txns[0].Amount.StringFixed(2))
		assert.Equal(t, old.ID, txns[0].Place.ID)
		assert.Equal(t, old.Name, txns[0].Place.Name)
	})

	t.Run("delete transactions", func(t *testing.T) {
		require.NoError(t, s.DeleteTransactions(ctx, []string{t1.ID, t2.ID}))

		txns, err := s.PendingTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, t3.ID, txns[0].ID)
	})

	t.Run("delete place keeps transaction snapshot", func(t *testing.T) {
		require.NoError(t, s.DeletePlace(ctx, far.ID))

		count, err := s.CountPlaces(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		txns, err := s.PendingTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, "Far Away Bakery", txns[0].Place.Name)
	})

	t.Run("reusing a place updates it", func(t *testing.T) {
		old.Touch()
		addTx(t, s, old, "-2.00", now.Add(time.Minute))

		found, err := s.PlacesWithin(ctx, bounds, "")
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, old.ID, found[0].ID)

		count, err := s.CountPlaces(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}
