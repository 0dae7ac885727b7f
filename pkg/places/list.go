package places

import (
	"sync"

	"github.com/voidshard/cashster/pkg/domain"
)

// List is the ordered set of candidate places on offer, with at most one
// of them selected. The remote lookup appends to it from its own goroutine.
// The list owns the places added to it: readers get copies and changes go
// through Update.
type List struct {
	lock     sync.RWMutex
	items    []*domain.Place
	selected int
}

func NewList() *List {
	return &List{selected: -1}
}

// Add appends p unless it is nil or equal to a place already listed.
func (l *List) Add(p *domain.Place) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.add(p)
}

// AddAll adds each place in order and returns how many were new.
func (l *List) AddAll(ps []*domain.Place) int {
	l.lock.Lock()
	defer l.lock.Unlock()

	n := 0
	for _, p := range ps {
		if l.add(p) {
			n++
		}
	}
	return n
}

func (l *List) add(p *domain.Place) bool {
	if p == nil {
		return false
	}
	for _, have := range l.items {
		if have.Equal(p) {
			return false
		}
	}
	l.items = append(l.items, p)
	return true
}

// Select marks the place at i as selected. Anything out of range clears the
// selection.
func (l *List) Select(i int) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if i < 0 || i >= len(l.items) {
		i = -1
	}
	l.selected = i
}

// Selected returns a copy of the selected place or nil.
func (l *List) Selected() *domain.Place {
	l.lock.RLock()
	defer l.lock.RUnlock()

	if l.selected < 0 || l.selected >= len(l.items) {
		return nil
	}
	return copyPlace(l.items[l.selected])
}

// SelectedIndex is -1 when nothing is selected.
func (l *List) SelectedIndex() int {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.selected
}

// Get returns a copy of the place at i or nil.
func (l *List) Get(i int) *domain.Place {
	l.lock.RLock()
	defer l.lock.RUnlock()

	if i < 0 || i >= len(l.items) {
		return nil
	}
	return copyPlace(l.items[i])
}

// Update applies fn to the listed place equal to p. It returns false if
// there is no such place.
func (l *List) Update(p *domain.Place, fn func(*domain.Place)) bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	for _, have := range l.items {
		if have.Equal(p) {
			fn(have)
			return true
		}
	}
	return false
}

// Remove drops p from the list and clears the selection.
func (l *List) Remove(p *domain.Place) {
	l.lock.Lock()
	defer l.lock.Unlock()

	for i, have := range l.items {
		if have.Equal(p) {
			l.items = append(l.items[:i], l.items[i+1:]...)
			break
		}
	}
	l.selected = -1
}

func (l *List) Clear() {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.items = nil
	l.selected = -1
}

func (l *List) Len() int {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return len(l.items)
}

// Items returns copies of the current candidates.
func (l *List) Items() []*domain.Place {
	l.lock.RLock()
	defer l.lock.RUnlock()

	out := make([]*domain.Place, len(l.items))
	for i, p := range l.items {
		out[i] = copyPlace(p)
	}
	return out
}

func copyPlace(p *domain.Place) *domain.Place {
	c := *p
	return &c
}
