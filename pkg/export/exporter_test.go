package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/metrics"
	"github.com/voidshard/cashster/pkg/prefs"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Get(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockService) Create(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockService) SetProperties(ctx context.Context, id, title, locale string) error {
	return m.Called(ctx, id, title, locale).Error(0)
}

func (m *mockService) Append(ctx context.Context, id string, rows [][]interface{}) error {
	return m.Called(ctx, id, rows).Error(0)
}

type mockAuthorizer struct {
	mock.Mock
}

func (m *mockAuthorizer) Authorize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type memPending struct {
	lock sync.Mutex
	txs  map[string]*domain.Transaction

	deleteErr error
	deleted   []string
}

func newMemPending(txs ...*domain.Transaction) *memPending {
	m := &memPending{txs: map[string]*domain.Transaction{}}
	for _, tx := range txs {
		m.txs[tx.ID] = tx
	}
	return m
}

func (m *memPending) PendingTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	out := []*domain.Transaction{}
	for _, tx := range m.txs {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (m *memPending) DeleteTransactions(ctx context.Context, ids []string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}
	for _, id := range ids {
		delete(m.txs, id)
	}
	m.deleted = append(m.deleted, ids...)
	return nil
}

func (m *memPending) count() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.txs)
}

func testTx(amount string, at time.Time) *domain.Transaction {
	p := domain.NewPlace("Corner Shop", "4b0588f1f964a520a0c722e3")
	p.Address = "1 High St"
	p.Category = "Grocery"
	p.Lat = 51.5
	p.Lon = -0.12
	return domain.NewTransaction(decimal.RequireFromString(amount), p, at)
}

func testPrefs(t *testing.T, docID string) *prefs.Prefs {
	p, err := prefs.Load(filepath.Join(t.TempDir(), "prefs.yaml"))
	require.NoError(t, err)
	if docID != "" {
		require.NoError(t, p.SetDocumentID(docID))
	}
	return p
}

func headerRows() [][]interface{} {
	return [][]interface{}{Header()}
}

func rowCount(n int) interface{} {
	return mock.MatchedBy(func(rows [][]interface{}) bool {
		return len(rows) == n && rows[0][0] != "TX ID"
	})
}

func TestRunCreatesDocument(t *testing.T) {
	now := time.Now()
	first := testTx("-1.23", now.Add(-time.Hour))
	second := testTx("-4.50", now)
	store := newMemPending(first, second)
	docs := testPrefs(t, "")

	svc := &mockService{}
	svc.On("Create", mock.Anything).Return("doc-1", nil).Once()
	svc.On("SetProperties", mock.Anything, "doc-1", "TheCashster", "en_US").Return(nil).Once()
	svc.On("Append", mock.Anything, "doc-1", headerRows()).Return(nil).Once()
	svc.On("Append", mock.Anything, "doc-1", [][]interface{}{Row(first), Row(second)}).Return(nil).Once()

	res, err := NewExporter(svc, store, docs, nil, nil).Run(context.Background())
	require.NoError(t, err)

	svc.AssertExpectations(t)
	svc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	assert.Equal(t, "doc-1", res.DocumentID)
	assert.Equal(t, 2, res.Exported)
	assert.Equal(t, "doc-1", docs.DocumentID())
	assert.Equal(t, 0, store.count())
	assert.ElementsMatch(t, []string{first.ID, second.ID}, store.deleted)
}

func TestRunExistingDocumentNothingPending(t *testing.T) {
	svc := &mockService{}
	svc.On("Get", mock.Anything, "doc-1").Return(nil).Once()

	res, err := NewExporter(svc, newMemPending(), testPrefs(t, "doc-1"), nil, nil).Run(context.Background())
	require.NoError(t, err)

	svc.AssertExpectations(t)
	svc.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "Create", mock.Anything)
	assert.Equal(t, 0, res.Exported)
}

func TestRunRecreatesMissingDocument(t *testing.T) {
	store := newMemPending(testTx("-2.00", time.Now()))
	docs := testPrefs(t, "old-doc")

	svc := &mockService{}
	svc.On("Get", mock.Anything, "old-doc").Return(fmt.Errorf("%w: 404", domain.ErrDocumentNotFound)).Once()
	svc.On("Create", mock.Anything).Return("new-doc", nil).Once()
	svc.On("SetProperties", mock.Anything, "new-doc", Title, Locale).Return(nil).Once()
	svc.On("Append", mock.Anything, "new-doc", headerRows()).Return(nil).Once()
	svc.On("Append", mock.Anything, "new-doc", rowCount(1)).Return(nil).Once()

	res, err := NewExporter(svc, store, docs, nil, nil).Run(context.Background())
	require.NoError(t, err)

	svc.AssertExpectations(t)
	assert.Equal(t, "new-doc", res.DocumentID)
	assert.Equal(t, "new-doc", docs.DocumentID())
	assert.Equal(t, 0, store.count())
}

func TestRunGetErrorAborts(t *testing.T) {
	store := newMemPending(testTx("-2.00", time.Now()))
	docs := testPrefs(t, "doc-1")
	boom := errors.New("backend unavailable")

	svc := &mockService{}
	svc.On("Get", mock.Anything, "doc-1").Return(boom).Once()

	_, err := NewExporter(svc, store, docs, nil, nil).Run(context.Background())
	assert.ErrorIs(t, err, boom)

	svc.AssertNotCalled(t, "Create", mock.Anything)
	assert.Equal(t, "doc-1", docs.DocumentID())
	assert.Equal(t, 1, store.count())
}

func TestRunAppendFailureKeepsTransactions(t *testing.T) {
	store := newMemPending(testTx("-2.00", time.Now()), testTx("3.00", time.Now()))
	boom := errors.New("quota exceeded")

	svc := &mockService{}
	svc.On("Get", mock.Anything, "doc-1").Return(nil)
	svc.On("Append", mock.Anything, "doc-1", rowCount(2)).Return(boom).Once()

	_, err := NewExporter(svc, store, testPrefs(t, "doc-1"), nil, nil).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, store.count())
	assert.Empty(t, store.deleted)
}

func TestRunDeleteFailureReported(t *testing.T) {
	store := newMemPending(testTx("-2.00", time.Now()))
	store.deleteErr = errors.New("disk full")

	svc := &mockService{}
	svc.On("Get", mock.Anything, "doc-1").Return(nil)
	svc.On("Append", mock.Anything, "doc-1", rowCount(1)).Return(nil).Once()

	res, err := NewExporter(svc, store, testPrefs(t, "doc-1"), nil, nil).Run(context.Background())
	assert.ErrorIs(t, err, store.deleteErr)
	assert.Equal(t, 0, res.Exported)
	assert.Equal(t, 1, store.count())
}

func TestRunReauthorizes(t *testing.T) {
	store := newMemPending(testTx("-2.00", time.Now()))

	svc := &mockService{}
	svc.On("Get", mock.Anything, "doc-1").Return(fmt.Errorf("%w: 401", domain.ErrAuthorizationRequired)).Once()
	svc.On("Get", mock.Anything, "doc-1").Return(nil).Once()
	svc.On("Append", mock.Anything, "doc-1", rowCount(1)).Return(nil).Once()

	auth := &mockAuthorizer{}
	auth.On("Authorize", mock.Anything).Return(nil).Once()

	res, err := NewExporter(svc, store, testPrefs(t, "doc-1"), auth, nil).Run(context.Background())
	require.NoError(t, err)

	svc.AssertExpectations(t)
	auth.AssertExpectations(t)
	assert.Equal(t, 1, res.Exported)
}

func TestRunGivesUpAfterThreeRuns(t *testing.T) {
	store := newMemPending(testTx("-2.00", time.Now()))

	svc := &mockService{}
	svc.On("Get", mock.Anything, "doc-1").Return(domain.ErrAuthorizationRequired)

	auth := &mockAuthorizer{}
	auth.On("Authorize", mock.Anything).Return(nil)

	_, err := NewExporter(svc, store, testPrefs(t, "doc-1"), auth, nil).Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthorizationRequired)

	svc.AssertNumberOfCalls(t, "Get", 3)
	auth.AssertNumberOfCalls(t, "Authorize", 2)
	assert.Equal(t, 1, store.count())
}

func TestRunAuthorizeFailureStops(t *testing.T) {
	svc := &mockService{}
	svc.On("Get", mock.Anything, "doc-1").Return(domain.ErrAuthorizationRequired)

	denied := errors.New("user said no")
	auth := &mockAuthorizer{}
	auth.On("Authorize", mock.Anything).Return(denied).Once()

	_, err := NewExporter(svc, newMemPending(), testPrefs(t, "doc-1"), auth, nil).Run(context.Background())
	assert.ErrorIs(t, err, denied)
	svc.AssertNumberOfCalls(t, "Get", 1)
}

func TestTriggerSerialized(t *testing.T) {
	block := make(chan struct{})

	svc := &mockService{}
	svc.On("Get", mock.Anything, "doc-1").Run(func(mock.Arguments) { <-block }).Return(nil)

	e := NewExporter(svc, newMemPending(), testPrefs(t, "doc-1"), nil, nil)

	results, err := e.Trigger(context.Background())
	require.NoError(t, err)
	assert.True(t, e.Running())

	_, err = e.Trigger(context.Background())
	assert.ErrorIs(t, err, domain.ErrSyncRunning)
	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrSyncRunning)

	close(block)
	select {
	case res := <-results:
		assert.NoError(t, res.Err)
		assert.Equal(t, "doc-1", res.DocumentID)
	case <-time.After(5 * time.Second):
		t.Fatal("sync never finished")
	}
	assert.False(t, e.Running())

	// free again
	results, err = e.Trigger(context.Background())
	require.NoError(t, err)
	res := <-results
	assert.NoError(t, res.Err)
}

func TestRow(t *testing.T) {
	at := time.Date(2019, 3, 4, 17, 5, 6, 0, time.Local)
	tx := testTx("-12.5", at)

	row := Row(tx)
	assert.Equal(t, []interface{}{
		tx.ID,
		"-12.50",
		"2019-03-04 17:05:06",
		"Corner Shop",
		"1 High St",
		"Grocery",
		"4b0588f1f964a520a0c722e3",
		51.5,
		-0.12,
	}, row)
	assert.Len(t, Header(), len(row))
}

func TestRunRecordsMetrics(t *testing.T) {
	store := newMemPending(testTx("-2.00", time.Now()), testTx("-3.00", time.Now()))

	svc := &mockService{}
	svc.On("Get", mock.Anything, "doc-1").Return(nil)
	svc.On("Append", mock.Anything, "doc-1", rowCount(2)).Return(nil).Once()

	collector := metrics.NewCollector("test")
	e := NewExporter(svc, store, testPrefs(t, "doc-1"), nil, nil).WithMetrics(collector)

	_, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.SyncRuns.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.RowsExported))
}
