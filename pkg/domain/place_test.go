package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlaceKeyPrefersRemoteID(t *testing.T) {
	byName := NewPlace("Coffee Corner", "")
	byRemote := NewPlace("Coffee Corner", "4b0588f1f964a520")

	assert.Equal(t, PlaceKey("Coffee Corner", ""), byName.ID)
	assert.Equal(t, PlaceKey("", "4b0588f1f964a520"), byRemote.ID)
	assert.NotEqual(t, byName.ID, byRemote.ID)
	assert.Len(t, byName.ID, 32)
}

func TestPlaceKeyIsStable(t *testing.T) {
	a := NewPlace("Bakery", "")
	b := &Place{}
	b.SetName("Bakery")

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, PlaceKey("Bakery", ""), a.ID)

	c := NewPlace("Other name", "fsq-1")
	d := NewPlace("Yet another", "fsq-1")
	assert.True(t, c.Equal(d))
}

func TestPlaceKeyKnownValue(t *testing.T) {
	// md5("abc")
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", PlaceKey("abc", ""))
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", PlaceKey("ignored", "abc"))
}

func TestSetNameRefreshesLastUsed(t *testing.T) {
	p := &Place{}
	p.LastUsed = time.Now().Add(-time.Hour)
	before := p.LastUsed

	p.SetName("Kiosk")

	assert.True(t, p.LastUsed.After(before))
}

func TestPlaceEqual(t *testing.T) {
	a := NewPlace("Kiosk", "")
	b := NewPlace("Kiosk", "")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
	assert.False(t, (&Place{}).Equal(&Place{}))
	assert.False(t, a.Equal(NewPlace("Market", "")))
}

func TestCopyDropsTransientFields(t *testing.T) {
	p := NewPlace("Kiosk", "")
	p.Origin = OriginRemote
	p.SetDistance(12)

	c := p.Copy()

	assert.Equal(t, p.ID, c.ID)
	assert.Nil(t, c.Distance)
	assert.Equal(t, Origin(""), c.Origin)
	assert.NotNil(t, p.Distance)
}
