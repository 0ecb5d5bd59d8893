// Package app wires the shared components both binaries run on.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/config"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/document"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/event"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/ingest"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/repo"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/scrape"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/setting"
	settingrepo "github.com/ovaphlow/pitchfork/service-credit-report/internal/setting/repo"
	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/database"
)

type App struct {
	DB       *sqlx.DB
	Reports  *repo.Repo
	Settings *setting.Service
	Scrape   scrape.Config
	Ingest   *ingest.Service

	closers []func() error
}

// New connects storage, creates missing tables and builds the ingestion
// service. Close releases everything New opened.
func New(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (*App, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	a := &App{DB: db, Reports: repo.NewRepo(db), Scrape: cfg.Scrape}
	a.closers = append(a.closers, db.Close)

	if err := a.Reports.EnsureSchema(ctx); err != nil {
		return nil, multierr.Append(err, a.Close())
	}

	settings := settingrepo.NewRepo(db)
	if err := settings.EnsureTable(ctx); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	a.Settings = setting.NewService(settings)
	if cfg.SettingsFromDB {
		if err := a.Settings.ApplyScrape(ctx, &a.Scrape); err != nil {
			return nil, multierr.Append(err, a.Close())
		}
	}

	var docs document.Source
	if cfg.DocumentsDir != "" {
		docs = document.DirSource{Dir: cfg.DocumentsDir}
	} else {
		dbDocs := document.NewDBSource(db)
		if err := dbDocs.EnsureTable(ctx); err != nil {
			return nil, multierr.Append(err, a.Close())
		}
		docs = dbDocs
	}

	sinks := event.Multi{event.NewLogSink(logger)}
	if cfg.Redis.Addr != "" {
		rs, err := event.NewRedisSink(ctx, cfg.Redis)
		if err != nil {
			logger.Warnw("redis event sink disabled", "addr", cfg.Redis.Addr, "err", err)
		} else {
			sinks = append(sinks, rs)
			a.closers = append(a.closers, rs.Close)
		}
	}

	client := scrape.NewClient(a.Scrape, nil, logger)
	a.Ingest = ingest.NewService(a.Reports, docs, client, sinks, logger, ingest.Config{
		MaxPayloadBytes: a.Scrape.MaxPayloadBytes,
	})
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
