// Package keypad implements the numeric amount entry.
package keypad

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/voidshard/cashster/pkg/domain"
)

// MaxDigits is how many digits an amount may have.
const MaxDigits = 8

// Keypad accumulates digits which are read as cents.
type Keypad struct {
	digits   string
	negative bool

	// sign we reset to after a confirm
	initialNegative bool
}

// New returns an empty keypad. Expenses are the common case, so callers
// usually start out negative.
func New(negative bool) *Keypad {
	return &Keypad{negative: negative, initialNegative: negative}
}

// Press handles a digit key ("0"-"9" or "00").
func (k *Keypad) Press(key string) error {
	if !validKey(key) {
		return fmt.Errorf("%w: key %q", domain.ErrInvalid, key)
	}
	if strings.Trim(key, "0") == "" && k.digits == "" {
		return nil // no leading zeros
	}
	if len(k.digits) >= MaxDigits {
		return domain.ErrTooMuch
	}
	k.digits += key
	return nil
}

// Delete removes the last digit, if any.
func (k *Keypad) Delete() {
	if len(k.digits) > 0 {
		k.digits = k.digits[:len(k.digits)-1]
	}
}

func (k *Keypad) ToggleSign() {
	k.negative = !k.negative
}

func (k *Keypad) Negative() bool {
	return k.negative
}

// Digits returns the digits entered so far.
func (k *Keypad) Digits() string {
	return k.digits
}

// Amount is the signed amount currently entered.
func (k *Keypad) Amount() decimal.Decimal {
	if k.digits == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(k.digits)
	if err != nil {
		return decimal.Zero // digits only ever holds [0-9]
	}
	d = d.Shift(-2)
	if k.negative {
		d = d.Neg()
	}
	return d
}

// String formats the amount with two decimals. Zero keeps its sign so the
// user can see what they'll be entering.
func (k *Keypad) String() string {
	a := k.Amount()
	if a.IsZero() && k.negative {
		return "-" + a.StringFixed(2)
	}
	return a.StringFixed(2)
}

// Reset clears the digits and restores the initial sign.
func (k *Keypad) Reset() {
	k.digits = ""
	k.negative = k.initialNegative
}

// Confirm turns the entered amount into a transaction at place and resets
// the keypad. The amount is checked before the place.
func (k *Keypad) Confirm(place *domain.Place, now time.Time) (*domain.Transaction, error) {
	if k.Amount().IsZero() {
		return nil, domain.ErrNoAmount
	}
	if place == nil {
		return nil, domain.ErrNoPlace
	}

	place.Touch()
	tx := domain.NewTransaction(k.Amount(), place, now)
	k.Reset()
	return tx, nil
}

func validKey(key string) bool {
	if key == "00" {
		return true
	}
	return len(key) == 1 && key[0] >= '0' && key[0] <= '9'
}
