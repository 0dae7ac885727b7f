package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/voidshard/cashster/pkg/domain"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	appendRange      = "A1:B1"
	valueInputOption = "USER_ENTERED"
)

// check it meets the interface
var _ Service = &Google{}

// Google talks to the Sheets v4 API with the OAuth token from a TokenStore.
type Google struct {
	config *oauth2.Config
	tokens TokenStore
	logger *zap.Logger
	opts   []option.ClientOption
}

// OAuthConfig is the OAuth client config for an installed app allowed to
// edit spreadsheets.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gsheets.SpreadsheetsScope},
	}
}

func NewGoogle(config *oauth2.Config, tokens TokenStore, logger *zap.Logger, opts ...option.ClientOption) *Google {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Google{config: config, tokens: tokens, logger: logger, opts: opts}
}

func (g *Google) Get(ctx context.Context, id string) error {
	srv, err := g.service(ctx)
	if err != nil {
		return err
	}
	_, err = srv.Spreadsheets.Get(id).Fields("spreadsheetId").Context(ctx).Do()
	return classify(err)
}

func (g *Google) Create(ctx context.Context) (string, error) {
	srv, err := g.service(ctx)
	if err != nil {
		return "", err
	}
	doc, err := srv.Spreadsheets.Create(&gsheets.Spreadsheet{}).Context(ctx).Do()
	if err != nil {
		return "", classify(err)
	}
	g.logger.Info("created spreadsheet", zap.String("id", doc.SpreadsheetId))
	return doc.SpreadsheetId, nil
}

func (g *Google) SetProperties(ctx context.Context, id, title, locale string) error {
	srv, err := g.service(ctx)
	if err != nil {
		return err
	}

	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{
			{UpdateSpreadsheetProperties: &gsheets.UpdateSpreadsheetPropertiesRequest{
				Properties: &gsheets.SpreadsheetProperties{Title: title},
				Fields:     "title",
			}},
			{UpdateSpreadsheetProperties: &gsheets.UpdateSpreadsheetPropertiesRequest{
				Properties: &gsheets.SpreadsheetProperties{Locale: locale},
				Fields:     "locale",
			}},
		},
	}
	_, err = srv.Spreadsheets.BatchUpdate(id, req).Context(ctx).Do()
	return classify(err)
}

func (g *Google) Append(ctx context.Context, id string, rows [][]interface{}) error {
	srv, err := g.service(ctx)
	if err != nil {
		return err
	}

	vr := &gsheets.ValueRange{Values: rows}
	resp, err := srv.Spreadsheets.Values.Append(id, appendRange, vr).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return classify(err)
	}

	if resp.Updates != nil {
		g.logger.Debug("appended rows", zap.String("range", resp.Updates.UpdatedRange), zap.Int64("rows", resp.Updates.UpdatedRows))
	}
	return nil
}

func (g *Google) service(ctx context.Context) (*gsheets.Service, error) {
	tkn := g.tokens.Token()
	if tkn == nil {
		return nil, fmt.Errorf("%w: no token stored", domain.ErrAuthorizationRequired)
	}

	src := &savingSource{
		base:   g.config.TokenSource(ctx, tkn.OAuth2()),
		tokens: g.tokens,
		last:   tkn.Value,
		logger: g.logger,
	}

	opts := append([]option.ClientOption{option.WithTokenSource(src)}, g.opts...)
	return gsheets.NewService(ctx, opts...)
}

// classify maps API errors onto the domain errors callers act on.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", domain.ErrDocumentNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", domain.ErrAuthorizationRequired, err)
		}
		return err
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%w: %v", domain.ErrAuthorizationRequired, err)
	}
	return err
}

// savingSource writes refreshed tokens back to the store.
type savingSource struct {
	base   oauth2.TokenSource
	tokens TokenStore
	logger *zap.Logger

	lock sync.Mutex
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	t, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if t.AccessToken != s.last {
		s.last = t.AccessToken
		if err := s.tokens.SetToken(domain.FromOAuth2(t)); err != nil {
			s.logger.Warn("failed to save refreshed token", zap.Error(err))
		}
	}
	return t, nil
}
