package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"github.com/voidshard/cashster/pkg/domain"
	"go.uber.org/zap"
)

// https://developer.foursquare.com/docs/places-api/endpoints/

const (
	retries = 5

	foursquareVersion = "20171101"

	// DefaultLimit caps the number of venues asked for.
	DefaultLimit = 25

	// after this many failed lookups in a row we stop asking for a while
	breakerTrips   = 3
	breakerTimeout = time.Minute
)

// check it meets the interface
var _ Directory = &Foursquare{}

type Foursquare struct {
	clientId     string
	clientSecret string
	limit        int

	base   *url.URL
	client *http.Client
	logger *zap.Logger
	retry  func() backoff.BackOff
	cb     *gobreaker.CircuitBreaker
}

func NewFoursquare(clientId, clientSecret string, logger *zap.Logger) *Foursquare {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Foursquare{
		clientId:     clientId,
		clientSecret: clientSecret,
		limit:        DefaultLimit,
		base:         &url.URL{Scheme: "https", Host: "api.foursquare.com"},
		client:       &http.Client{Timeout: 15 * time.Second},
		logger:       logger,
		retry:        defaultBackoff,
	}
	f.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "foursquare",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed", zap.String("name", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
		IsSuccessful: func(err error) bool {
			// the caller giving up says nothing about foursquare
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return f
}

// WithBaseURL points the client somewhere other than api.foursquare.com.
func (f *Foursquare) WithBaseURL(u string) (*Foursquare, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return nil, err
	}
	f.base = parsed
	return f, nil
}

func (f *Foursquare) Nearby(ctx context.Context, loc domain.Location, radius int, filter string) ([]*domain.Place, error) {
	params := url.Values{}
	params.Add("client_id", f.clientId)
	params.Add("client_secret", f.clientSecret)
	params.Add("v", foursquareVersion)
	params.Add("ll", fmt.Sprintf("%s,%s", ftoa(loc.Lat), ftoa(loc.Lon)))
	params.Add("query", filter)
	params.Add("limit", strconv.Itoa(f.limit))
	params.Add("radius", strconv.Itoa(radius))

	u := *f.base
	u.Path = "/v2/venues/search"
	u.RawQuery = params.Encode()

	data, err := f.cb.Execute(func() (interface{}, error) {
		return f.doGet(ctx, u.String())
	})
	if err != nil {
		return nil, err
	}
	return parseVenues(loc, data.([]byte))
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// doGet retries transport errors and 5xx replies; anything else below 400
// is a success and anything else again is our fault, so we give up.
func (f *Foursquare) doGet(ctx context.Context, uri string) ([]byte, error) {
	var body []byte

	op := func() error {
		f.logger.Debug("GET", zap.String("host", f.base.Host), zap.String("path", "/v2/venues/search"))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Add("Accept", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		status := resp.StatusCode
		if status >= 200 && status < 400 {
			body = data
			return nil
		}
		if status >= 500 {
			// they're having trouble, best to retry
			return fmt.Errorf("got status code: %d (%s)", status, string(data))
		}
		return backoff.Permanent(fmt.Errorf("got status code: %d (%s)", status, string(data)))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(f.retry(), retries-1), ctx)
	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		f.logger.Warn("foursquare request failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	})

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return body, err
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	return b
}
