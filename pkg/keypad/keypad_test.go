package keypad

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voidshard/cashster/pkg/domain"
)

func press(t *testing.T, k *Keypad, keys ...string) {
	for _, key := range keys {
		require.NoError(t, k.Press(key))
	}
}

func TestDigitsAreCents(t *testing.T) {
	k := New(false)
	press(t, k, "1", "2", "3")

	assert.True(t, decimal.RequireFromString("1.23").Equal(k.Amount()))
	assert.Equal(t, "1.23", k.String())

	tx, err := k.Confirm(domain.NewPlace("Kiosk", ""), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "1.23", tx.Amount.StringFixed(2))
}

func TestDelete(t *testing.T) {
	k := New(false)
	press(t, k, "1", "2")
	k.Delete()

	assert.Equal(t, "1", k.Digits())
	assert.Equal(t, "0.01", k.String())

	k.Delete()
	k.Delete()
	assert.Equal(t, "", k.Digits())
}

func TestNegativeDefault(t *testing.T) {
	k := New(true)
	assert.Equal(t, "-0.00", k.String())

	press(t, k, "5", "00")
	assert.Equal(t, "-5.00", k.String())

	k.ToggleSign()
	assert.Equal(t, "5.00", k.String())
}

func TestLeadingZerosIgnored(t *testing.T) {
	k := New(false)
	press(t, k, "0", "00", "0")
	assert.Equal(t, "", k.Digits())

	press(t, k, "7", "0", "00")
	assert.Equal(t, "7000", k.Digits())
}

func TestTooMuch(t *testing.T) {
	k := New(false)
	press(t, k, "1", "2", "3", "4", "5", "6", "7", "8")

	assert.ErrorIs(t, k.Press("9"), domain.ErrTooMuch)
	assert.Equal(t, "12345678", k.Digits())
}

func TestInvalidKey(t *testing.T) {
	assert.ErrorIs(t, New(false).Press("x"), domain.ErrInvalid)
	assert.ErrorIs(t, New(false).Press("12"), domain.ErrInvalid)
}

func TestConfirmChecksAmountFirst(t *testing.T) {
	k := New(true)

	_, err := k.Confirm(nil, time.Now())
	assert.ErrorIs(t, err, domain.ErrNoAmount)

	press(t, k, "9")
	_, err = k.Confirm(nil, time.Now())
	assert.ErrorIs(t, err, domain.ErrNoPlace)
	assert.Equal(t, "9", k.Digits(), "failed confirm keeps the amount")
}

func TestConfirmResets(t *testing.T) {
	k := New(true)
	press(t, k, "4", "2")
	k.ToggleSign()

	place := domain.NewPlace("Kiosk", "")
	place.LastUsed = time.Now().Add(-time.Hour)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tx, err := k.Confirm(place, at)
	require.NoError(t, err)

	assert.Equal(t, "0.42", tx.Amount.StringFixed(2))
	assert.Equal(t, at, tx.Time)
	assert.Equal(t, place.ID, tx.Place.ID)
	assert.NotEmpty(t, tx.ID)
	assert.WithinDuration(t, time.Now(), place.LastUsed, time.Minute)

	assert.Equal(t, "", k.Digits())
	assert.True(t, k.Negative())
}
