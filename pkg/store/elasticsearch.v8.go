package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/geo"
	"go.uber.org/zap"
)

const (
	esPlaceIndex = "cashster-places"
	esTxIndex    = "cashster-transactions"
	esFlush      = 2048
	esMaxHits    = 10000

	envEsAddr = "ELASTICSEARCH_SERVICE_HOST"
	envEsPort = "ELASTICSEARCH_SERVICE_PORT"
)

const esPlaceMapping = `{
  "mappings": {
    "properties": {
      "id":        {"type": "keyword"},
      "name":      {"type": "keyword"},
      "remote_id": {"type": "keyword"},
      "location":  {"type": "geo_point"},
      "last_used": {"type": "date"}
    }
  }
}`

const esTxMapping = `{
  "mappings": {
    "properties": {
      "id":   {"type": "keyword"},
      "time": {"type": "date"},
      "place": {"type": "object", "enabled": false}
    }
  }
}`

// ElasticsearchV8 stores places in a geo_point index so the bounding box
// lookup happens server side. Elasticsearch has no multi document
// transactions: a partially failed delete leaves the failed transactions
// pending and reports an error.
type ElasticsearchV8 struct {
	es     *elasticsearch.Client
	logger *zap.Logger
}

// esPlace is how a place is indexed; location is the geo_point.
type esPlace struct {
	domain.Place
	Location geo.LatLng `json:"location"`
}

// check it meets the interface
var _ Store = &ElasticsearchV8{}

func NewElasticsearchV8(ctx context.Context, logger *zap.Logger, urls ...string) (*ElasticsearchV8, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(urls) == 0 || urls[0] == "" {
		address := os.Getenv(envEsAddr)
		port := os.Getenv(envEsPort)
		if port == "" {
			port = "9200" // default port
		}
		if address == "" {
			address = "localhost" // default address
		}
		urls = []string{fmt.Sprintf("http://%s:%s", address, port)}
	}

	retryBackoff := backoff.NewExponentialBackOff()
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: urls,

		// Retry on 429 TooManyRequests statuses
		RetryOnStatus: []int{502, 503, 504, 429},

		RetryBackoff: func(i int) time.Duration {
			if i == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},

		MaxRetries: 5,
	})
	if err != nil {
		return nil, err
	}

	e := &ElasticsearchV8{es: es, logger: logger}
	for index, mapping := range map[string]string{esPlaceIndex: esPlaceMapping, esTxIndex: esTxMapping} {
		if err := e.createIndex(ctx, index, mapping); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *ElasticsearchV8) createIndex(ctx context.Context, index, mapping string) error {
	res, err := e.es.Indices.Create(
		index,
		e.es.Indices.Create.WithContext(ctx),
		e.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("creating index %s: %s", index, res.Status())
	}
	e.logger.Info("created index", zap.String("index", index))
	return nil
}

func (e *ElasticsearchV8) PlacesWithin(ctx context.Context, bounds geo.Bounds, filter string) ([]*domain.Place, error) {
	must := []map[string]interface{}{
		{"geo_bounding_box": map[string]interface{}{
			"location": map[string]interface{}{
				"top_left":     geo.LatLng{Lat: bounds.NorthEast.Lat, Lon: bounds.SouthWest.Lon},
				"bottom_right": geo.LatLng{Lat: bounds.SouthWest.Lat, Lon: bounds.NorthEast.Lon},
			},
		}},
	}
	if filter != "" {
		must = append(must, map[string]interface{}{
			"wildcard": map[string]interface{}{
				"name": map[string]interface{}{
					"value":            "*" + escapeWildcard(filter) + "*",
					"case_insensitive": true,
				},
			},
		})
	}

	query := map[string]interface{}{
		"size":  esMaxHits,
		"query": map[string]interface{}{"bool": map[string]interface{}{"filter": must}},
		"sort":  []map[string]string{{"last_used": "desc"}},
	}

	hits, err := e.search(ctx, esPlaceIndex, query)
	if err != nil {
		return nil, err
	}

	places := []*domain.Place{}
	for _, hit := range hits {
		rec := &esPlace{}
		if err := json.Unmarshal(hit, rec); err != nil {
			e.logger.Warn("skipping unreadable place", zap.Error(err))
			continue
		}
		p := rec.Place
		places = append(places, &p)
	}
	return places, nil
}

func (e *ElasticsearchV8) Place(ctx context.Context, id string) (*domain.Place, error) {
	res, err := e.es.Get(esPlaceIndex, id, e.es.Get.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("place %s: %w", id, domain.ErrNotFound)
	}
	if res.IsError() {
		return nil, fmt.Errorf("get place %s: %s", id, res.Status())
	}

	reply := struct {
		Source esPlace `json:"_source"`
	}{}
	if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
		return nil, err
	}
	return &reply.Source.Place, nil
}

func (e *ElasticsearchV8) DeletePlace(ctx context.Context, id string) error {
	res, err := e.es.Delete(
		esPlaceIndex,
		id,
		e.es.Delete.WithContext(ctx),
		e.es.Delete.WithRefresh("true"),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("place %s: %w", id, domain.ErrNotFound)
	}
	if res.IsError() {
		return fmt.Errorf("delete place %s: %s", id, res.Status())
	}
	return nil
}

func (e *ElasticsearchV8) CountPlaces(ctx context.Context) (int, error) {
	res, err := e.es.Count(e.es.Count.WithContext(ctx), e.es.Count.WithIndex(esPlaceIndex))
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("count places: %s", res.Status())
	}

	reply := struct {
		Count int `json:"count"`
	}{}
	err = json.NewDecoder(res.Body).Decode(&reply)
	return reply.Count, err
}

// AddTransaction indexes the place first; a place without a transaction
// is harmless, the other way round is not.
func (e *ElasticsearchV8) AddTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.Place == nil {
		return fmt.Errorf("%w: transaction %s has no place", domain.ErrInvalid, tx.ID)
	}

	p := tx.Place.Copy()
	err := e.index(ctx, esPlaceIndex, p.ID, &esPlace{Place: *p, Location: geo.LatLng{Lat: p.Lat, Lon: p.Lon}})
	if err != nil {
		return err
	}
	return e.index(ctx, esTxIndex, tx.ID, tx)
}

func (e *ElasticsearchV8) PendingTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	query := map[string]interface{}{
		"size":  esMaxHits,
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort":  []map[string]string{{"time": "asc"}},
	}

	hits, err := e.search(ctx, esTxIndex, query)
	if err != nil {
		return nil, err
	}

	txns := []*domain.Transaction{}
	for _, hit := range hits {
		tx := &domain.Transaction{}
		if err := json.Unmarshal(hit, tx); err != nil {
			return nil, fmt.Errorf("reading transaction: %w", err)
		}
		txns = append(txns, tx)
	}
	return txns, nil
}

func (e *ElasticsearchV8) DeleteTransactions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:      esTxIndex,
		Client:     e.es,
		FlushBytes: esFlush,
		NumWorkers: 1,
		Refresh:    "wait_for",
	})
	if err != nil {
		return err
	}

	var failed int64
	for _, id := range ids {
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "delete",
			DocumentID: id,
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err == nil && res.Status == http.StatusNotFound {
					return // already gone
				}
				atomic.AddInt64(&failed, 1)
				if err != nil {
					e.logger.Error("failed to delete transaction", zap.String("id", item.DocumentID), zap.Error(err))
				} else {
					e.logger.Error("failed to delete transaction", zap.String("id", item.DocumentID),
						zap.String("type", res.Error.Type), zap.String("reason", res.Error.Reason))
				}
			},
		})
		if err != nil {
			return err
		}
	}

	if err := bi.Close(ctx); err != nil {
		return err
	}
	if n := atomic.LoadInt64(&failed); n > 0 {
		return fmt.Errorf("failed deleting %d transactions", n)
	}
	e.logger.Debug("deleted transactions", zap.Int("count", len(ids)))
	return nil
}

func (e *ElasticsearchV8) Close() error {
	return nil
}

func (e *ElasticsearchV8) index(ctx context.Context, index, id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := e.es.Index(
		index,
		bytes.NewReader(data),
		e.es.Index.WithContext(ctx),
		e.es.Index.WithDocumentID(id),
		e.es.Index.WithRefresh("true"),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing %s/%s: %s", index, id, res.Status())
	}
	return nil
}

func (e *ElasticsearchV8) search(ctx context.Context, index string, query interface{}) ([]json.RawMessage, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(index),
		e.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, esError(res)
	}

	reply := struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}{}
	if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
		return nil, err
	}

	out := make([]json.RawMessage, 0, len(reply.Hits.Hits))
	for _, h := range reply.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func esError(res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("elasticsearch: %s: %s", res.Status(), string(body))
}

func escapeWildcard(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`).Replace(s)
}
