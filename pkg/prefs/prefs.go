// Package prefs keeps the few settings that outlive a single run.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/voidshard/cashster/pkg/domain"
	"gopkg.in/yaml.v3"
)

type values struct {
	DocumentID string        `yaml:"document_id,omitempty"`
	Account    string        `yaml:"account,omitempty"`
	Token      *domain.Token `yaml:"token,omitempty"`
}

// Prefs is a small YAML file, rewritten on every change.
type Prefs struct {
	filename string

	lock sync.Mutex
	v    values
}

// Load reads filename; a missing file gives empty preferences.
func Load(filename string) (*Prefs, error) {
	p := &Prefs{filename: filename}

	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return p, nil
	} else if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, &p.v); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return p, nil
}

func (p *Prefs) DocumentID() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.v.DocumentID
}

// SetDocumentID remembers the spreadsheet to export to; "" forgets it.
func (p *Prefs) SetDocumentID(id string) error {
	return p.update(func(v *values) { v.DocumentID = id })
}

func (p *Prefs) Account() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.v.Account
}

func (p *Prefs) SetAccount(account string) error {
	return p.update(func(v *values) { v.Account = account })
}

// Token returns a copy of the stored OAuth token, or nil.
func (p *Prefs) Token() *domain.Token {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.v.Token == nil {
		return nil
	}
	t := *p.v.Token
	return &t
}

func (p *Prefs) SetToken(t *domain.Token) error {
	return p.update(func(v *values) {
		if t == nil {
			v.Token = nil
			return
		}
		c := *t
		v.Token = &c
	})
}

func (p *Prefs) update(fn func(*values)) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	next := p.v
	fn(&next)

	data, err := yaml.Marshal(&next)
	if err != nil {
		return err
	}

	tmp := p.filename + ".tmp"
	if err := os.MkdirAll(filepath.Dir(p.filename), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, p.filename); err != nil {
		return err
	}

	p.v = next
	return nil
}
