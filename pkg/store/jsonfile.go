package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/geo"
)

// JSONFile keeps everything in a single JSON document on disk. Every change
// rewrites the whole file, which is fine for the few hundred places and the
// handful of pending transactions a person has.
type JSONFile struct {
	filename string

	lock sync.Mutex
	doc  *jsonDoc
}

type jsonDoc struct {
	Places       map[string]*domain.Place       `json:"places"`
	Transactions map[string]*domain.Transaction `json:"transactions"`
}

// check it meets the interface
var _ Store = &JSONFile{}

func NewJSONFile(filename string) (*JSONFile, error) {
	f := &JSONFile{filename: filename, doc: newJSONDoc()}

	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return f, nil
	} else if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, f.doc); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if f.doc.Places == nil {
		f.doc.Places = map[string]*domain.Place{}
	}
	if f.doc.Transactions == nil {
		f.doc.Transactions = map[string]*domain.Transaction{}
	}
	return f, nil
}

func newJSONDoc() *jsonDoc {
	return &jsonDoc{
		Places:       map[string]*domain.Place{},
		Transactions: map[string]*domain.Transaction{},
	}
}

func (d *jsonDoc) clone() *jsonDoc {
	c := newJSONDoc()
	for k, v := range d.Places {
		c.Places[k] = v
	}
	for k, v := range d.Transactions {
		c.Transactions[k] = v
	}
	return c
}

func (f *JSONFile) PlacesWithin(ctx context.Context, bounds geo.Bounds, filter string) ([]*domain.Place, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	found := []*domain.Place{}
	for _, p := range f.doc.Places {
		if matches(p, bounds, filter) {
			found = append(found, p.Copy())
		}
	}
	sortByLastUsed(found)
	return found, nil
}

func (f *JSONFile) Place(ctx context.Context, id string) (*domain.Place, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	p, ok := f.doc.Places[id]
	if !ok {
		return nil, fmt.Errorf("place %s: %w", id, domain.ErrNotFound)
	}
	return p.Copy(), nil
}

func (f *JSONFile) DeletePlace(ctx context.Context, id string) error {
	return f.update(func(d *jsonDoc) error {
		if _, ok := d.Places[id]; !ok {
			return fmt.Errorf("place %s: %w", id, domain.ErrNotFound)
		}
		delete(d.Places, id)
		return nil
	})
}

func (f *JSONFile) CountPlaces(ctx context.Context) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.doc.Places), nil
}

func (f *JSONFile) AddTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.Place == nil {
		return fmt.Errorf("%w: transaction %s has no place", domain.ErrInvalid, tx.ID)
	}
	return f.update(func(d *jsonDoc) error {
		d.Places[tx.Place.ID] = tx.Place.Copy()
		d.Transactions[tx.ID] = tx
		return nil
	})
}

func (f *JSONFile) PendingTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	txns := make([]*domain.Transaction, 0, len(f.doc.Transactions))
	for _, tx := range f.doc.Transactions {
		c := *tx
		txns = append(txns, &c)
	}
	sortByTime(txns)
	return txns, nil
}

func (f *JSONFile) DeleteTransactions(ctx context.Context, ids []string) error {
	return f.update(func(d *jsonDoc) error {
		for _, id := range ids {
			delete(d.Transactions, id)
		}
		return nil
	})
}

func (f *JSONFile) Close() error {
	return nil
}

// update applies fn to a copy of the document and only keeps the result
// once it has been written out.
func (f *JSONFile) update(fn func(*jsonDoc) error) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	next := f.doc.clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := f.write(next); err != nil {
		return err
	}
	f.doc = next
	return nil
}

func (f *JSONFile) write(d *jsonDoc) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.filename), filepath.Base(f.filename)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.filename)
}
