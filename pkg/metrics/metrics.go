// Package metrics holds the Prometheus metrics served by the local API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all metrics on its own registry. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	TransactionsConfirmed prometheus.Counter
	PlacesForgotten       prometheus.Counter

	SyncRuns     *prometheus.CounterVec
	RowsExported prometheus.Counter
}

func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		TransactionsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_confirmed_total",
			Help:      "Total number of transactions stored",
		}),
		PlacesForgotten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "places_forgotten_total",
			Help:      "Total number of stored places deleted",
		}),
		SyncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_total",
				Help:      "Total number of spreadsheet syncs by outcome",
			},
			[]string{"result"},
		),
		RowsExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_exported_total",
			Help:      "Total number of transactions appended to the spreadsheet",
		}),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.TransactionsConfirmed,
		c.PlacesForgotten,
		c.SyncRuns,
		c.RowsExported,
	)
	return c
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveRequest(method, route string, status int, took time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func (c *Collector) Confirmed() {
	if c == nil {
		return
	}
	c.TransactionsConfirmed.Inc()
}

func (c *Collector) Forgotten() {
	if c == nil {
		return
	}
	c.PlacesForgotten.Inc()
}

// Synced records a finished sync; err is nil on success.
func (c *Collector) Synced(exported int, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.SyncRuns.WithLabelValues("error").Inc()
		return
	}
	c.SyncRuns.WithLabelValues("ok").Inc()
	c.RowsExported.Add(float64(exported))
}
