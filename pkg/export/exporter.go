// Package export pushes pending transactions to a spreadsheet and removes
// them locally once they are safely there.
package export

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/metrics"
	"github.com/voidshard/cashster/pkg/sheets"
	"go.uber.org/zap"
)

const (
	Title  = "TheCashster"
	Locale = "en_US"

	// how many times we'll run the whole routine when asked to
	// (re)authorize in between
	maxRuns = 3
)

// Pending is the part of the store the exporter works on.
type Pending interface {
	PendingTransactions(ctx context.Context) ([]*domain.Transaction, error)
	DeleteTransactions(ctx context.Context, ids []string) error
}

// Documents remembers which spreadsheet we export to.
type Documents interface {
	DocumentID() string
	SetDocumentID(id string) error
}

// Result of one sync.
type Result struct {
	DocumentID string
	Exported   int
	Err        error
}

type Exporter struct {
	service sheets.Service
	store   Pending
	docs    Documents
	auth    sheets.Authorizer
	logger  *zap.Logger
	metrics *metrics.Collector

	running atomic.Bool
}

// NewExporter returns an exporter; auth may be nil in which case an
// authorization error simply ends the sync.
func NewExporter(service sheets.Service, store Pending, docs Documents, auth sheets.Authorizer, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{service: service, store: store, docs: docs, auth: auth, logger: logger}
}

// WithMetrics records sync outcomes on c.
func (e *Exporter) WithMetrics(c *metrics.Collector) *Exporter {
	e.metrics = c
	return e
}

// Running reports whether a sync is in flight.
func (e *Exporter) Running() bool {
	return e.running.Load()
}

// Trigger starts a sync in the background. The returned channel yields
// exactly one result. If a sync is already running nothing is started and
// domain.ErrSyncRunning is returned.
func (e *Exporter) Trigger(ctx context.Context) (<-chan *Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, domain.ErrSyncRunning
	}

	out := make(chan *Result, 1)
	go func() {
		defer close(out)
		res := e.run(ctx)
		e.running.Store(false)
		out <- res
	}()
	return out, nil
}

// Run syncs and waits for the outcome.
func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, domain.ErrSyncRunning
	}
	defer e.running.Store(false)

	res := e.run(ctx)
	return res, res.Err
}

func (e *Exporter) run(ctx context.Context) *Result {
	res := e.runs(ctx)
	e.metrics.Synced(res.Exported, res.Err)
	return res
}

func (e *Exporter) runs(ctx context.Context) *Result {
	for i := 1; ; i++ {
		res := e.once(ctx)
		if res.Err == nil {
			e.logger.Info("sync done", zap.String("document", res.DocumentID), zap.Int("exported", res.Exported))
			return res
		}

		if !errors.Is(res.Err, domain.ErrAuthorizationRequired) || e.auth == nil || i >= maxRuns {
			e.logger.Warn("sync failed", zap.Int("run", i), zap.Error(res.Err))
			return res
		}

		e.logger.Info("sync needs authorization", zap.Int("run", i), zap.Error(res.Err))
		if err := e.auth.Authorize(ctx); err != nil {
			res.Err = fmt.Errorf("authorizing: %w", err)
			e.logger.Warn("sync failed", zap.Int("run", i), zap.Error(res.Err))
			return res
		}
	}
}

func (e *Exporter) once(ctx context.Context) *Result {
	res := &Result{}

	id, err := e.document(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.DocumentID = id

	txs, err := e.store.PendingTransactions(ctx)
	if err != nil {
		res.Err = fmt.Errorf("reading pending transactions: %w", err)
		return res
	}
	if len(txs) == 0 {
		return res
	}

	rows := make([][]interface{}, 0, len(txs))
	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, Row(tx))
		ids = append(ids, tx.ID)
	}

	if err := e.service.Append(ctx, id, rows); err != nil {
		res.Err = fmt.Errorf("appending %d rows: %w", len(rows), err)
		return res
	}

	// the rows are in the sheet now; failing here means they'll be sent
	// again next time
	if err := e.store.DeleteTransactions(ctx, ids); err != nil {
		res.Err = fmt.Errorf("deleting exported transactions: %w", err)
		return res
	}

	res.Exported = len(ids)
	return res
}

// document returns the id of a spreadsheet that exists, creating one if
// needed.
func (e *Exporter) document(ctx context.Context) (string, error) {
	id := e.docs.DocumentID()
	if id != "" {
		err := e.service.Get(ctx, id)
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, domain.ErrDocumentNotFound):
			e.logger.Info("spreadsheet is gone, creating a new one", zap.String("document", id))
			if err := e.docs.SetDocumentID(""); err != nil {
				return "", err
			}
		default:
			return "", fmt.Errorf("getting spreadsheet %s: %w", id, err)
		}
	}

	id, err := e.service.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("creating spreadsheet: %w", err)
	}
	if err := e.service.SetProperties(ctx, id, Title, Locale); err != nil {
		return "", fmt.Errorf("setting spreadsheet properties: %w", err)
	}
	if err := e.service.Append(ctx, id, [][]interface{}{Header()}); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	return id, e.docs.SetDocumentID(id)
}
