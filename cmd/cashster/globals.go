package main

import (
	"context"
	"errors"

	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/entry"
	"github.com/voidshard/cashster/pkg/export"
	"github.com/voidshard/cashster/pkg/metrics"
	"github.com/voidshard/cashster/pkg/places"
	"github.com/voidshard/cashster/pkg/prefs"
	"github.com/voidshard/cashster/pkg/provider"
	"github.com/voidshard/cashster/pkg/sheets"
	"github.com/voidshard/cashster/pkg/store"
	"go.uber.org/zap"
)

// globals holds options shared by all commands
type globals struct {
	Store    string `default:"jsonfile:cashster.json" env:"CASHSTER_STORE" help:"Where to keep places & pending transactions [jsonfile:/path/file.json es8:http://myelasticsearch:9200 pg:postgres://...]"`
	Prefs    string `default:"cashster.yaml" env:"CASHSTER_PREFS" help:"Preferences file."`
	LogLevel string `name:"log-level" default:"info" enum:"debug,info,warn,error" env:"CASHSTER_LOG_LEVEL" help:"Log level."`

	FoursquareClientId string `name:"foursquare-client-id" env:"FOURSQUARE_CLIENT_ID" help:"Foursquare client ID, no remote places without it."`
	FoursquareSecret   string `name:"foursquare-secret" env:"FOURSQUARE_CLIENT_SECRET" help:"Foursquare client secret."`

	GoogleClientId string `name:"google-client-id" env:"GOOGLE_CLIENT_ID" help:"Google OAuth client ID, no export without it."`
	GoogleSecret   string `name:"google-secret" env:"GOOGLE_CLIENT_SECRET" help:"Google OAuth client secret."`
	OAuthPort      int    `name:"oauth-port" default:"8500" env:"CASHSTER_OAUTH_PORT" help:"Local port to receive the OAuth redirect on."`

	Income bool `help:"Start the keypad on income rather than expenses."`
}

// location flags for commands that search
type locationFlags struct {
	Lat      float64 `required help:"Latitude."`
	Lon      float64 `required help:"Longitude."`
	Accuracy float64 `default:"20" help:"Accuracy of the location in meters."`
}

func (l *locationFlags) location() *domain.Location {
	return &domain.Location{Lat: l.Lat, Lon: l.Lon, Accuracy: l.Accuracy}
}

// app is everything a command might need, wired up
type app struct {
	logger     *zap.Logger
	store      store.Store
	prefs      *prefs.Prefs
	exporter   *export.Exporter
	authorizer *sheets.Loopback
	session    *entry.Session
	metrics    *metrics.Collector
}

func (g *globals) logger() (*zap.Logger, error) {
	if g.LogLevel == "debug" {
		return zap.NewDevelopment()
	}

	level, err := zap.ParseAtomicLevel(g.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	return cfg.Build()
}

func (g *globals) open(ctx context.Context) (*app, error) {
	logger, err := g.logger()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, g.Store, logger)
	if err != nil {
		return nil, err
	}

	p, err := prefs.Load(g.Prefs)
	if err != nil {
		st.Close()
		return nil, err
	}

	a := &app{logger: logger, store: st, prefs: p, metrics: metrics.NewCollector("cashster")}

	var directory provider.Directory
	if g.FoursquareClientId != "" && g.FoursquareSecret != "" {
		directory = provider.NewFoursquare(g.FoursquareClientId, g.FoursquareSecret, logger)
	} else {
		logger.Debug("no foursquare credentials, only local places will be offered")
	}

	cfg := &entry.Config{
		Store:     st,
		Resolver:  places.NewResolver(st, directory, logger),
		Documents: p,
		Negative:  !g.Income,
		Logger:    logger,
		Metrics:   a.metrics,
	}

	if g.GoogleClientId != "" && g.GoogleSecret != "" {
		oauth := sheets.OAuthConfig(g.GoogleClientId, g.GoogleSecret)
		a.authorizer = sheets.NewLoopback(oauth, p, g.OAuthPort, logger)
		a.exporter = export.NewExporter(sheets.NewGoogle(oauth, p, logger), st, p, a.authorizer, logger).WithMetrics(a.metrics)
		cfg.Syncer = a.exporter
	} else {
		logger.Debug("no google credentials, transactions will stay pending")
	}

	a.session = entry.New(cfg)
	return a, nil
}

func (a *app) Close() error {
	a.logger.Sync()
	return a.store.Close()
}

var errNoGoogle = errors.New("google client id & secret are required to export")
