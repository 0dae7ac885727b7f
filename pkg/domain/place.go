package domain

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Origin says where a candidate place came from.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginCustom Origin = "custom"
	OriginRemote Origin = "remote"
)

const (
	CustomCategory = "Custom"
	CustomInfo     = "Create new Place"
)

// Place is a point of interest. Places we have used are kept locally so
// they show up first next time.
type Place struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	RemoteID string    `json:"remote_id,omitempty"`
	Address  string    `json:"address,omitempty"`
	Category string    `json:"category,omitempty"`
	Info     string    `json:"info,omitempty"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	LastUsed time.Time `json:"last_used"`

	// not persisted
	Origin   Origin   `json:"origin,omitempty"`
	Distance *float64 `json:"distance,omitempty"`
}

// NewPlace creates a place with its identity key already set.
func NewPlace(name, remoteID string) *Place {
	p := &Place{Name: name, RemoteID: remoteID}
	p.updateID()
	return p
}

// PlaceKey returns the identity key for a place: the hex MD5 of the remote
// id if there is one, otherwise of the name.
func PlaceKey(name, remoteID string) string {
	s := name
	if remoteID != "" {
		s = remoteID
	}
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func (p *Place) updateID() {
	p.ID = PlaceKey(p.Name, p.RemoteID)
	p.Touch()
}

// SetName sets the name and recalculates the key.
func (p *Place) SetName(name string) {
	p.Name = name
	p.updateID()
}

// SetRemoteID sets the directory id and recalculates the key.
func (p *Place) SetRemoteID(id string) {
	p.RemoteID = id
	p.updateID()
}

// Touch marks the place as used now.
func (p *Place) Touch() {
	p.LastUsed = time.Now().UTC()
}

// SetDistance annotates the place with its distance in meters from the
// current location.
func (p *Place) SetDistance(d float64) {
	p.Distance = &d
}

// Equal reports whether both places have the same, non-empty key.
func (p *Place) Equal(o *Place) bool {
	if p == nil || o == nil {
		return false
	}
	return p.ID != "" && o.ID != "" && p.ID == o.ID
}

// IsLocal is true for places that come from the local store.
func (p *Place) IsLocal() bool {
	return p.Origin == OriginLocal
}

// Copy returns a shallow copy with the transient fields cleared.
func (p *Place) Copy() *Place {
	c := *p
	c.Origin = ""
	c.Distance = nil
	return &c
}
