package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/app"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/config"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/ingest"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/observability"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/router"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/setting"
	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/utilities"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting service-credit-report", "addr", cfg.HTTPAddr, "db_driver", cfg.Database.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitTracing(ctx, sugar, cfg.Tracing)

	a, err := app.New(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalf("init: %v", err)
	}
	defer a.Close()

	ingestHandler := ingest.NewHandler(a.Ingest, sugar)
	handler := router.RegisterRoutes(sugar, router.Handlers{
		BasePath: router.DefaultBasePath,
		Ingest:   ingestHandler,
		Settings: setting.NewHandler(sugar, a.Scrape),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	// scrape collections already accepted finish before storage closes
	ingestHandler.Wait()

	if err := a.DB.PingContext(doneCtx); err != nil {
		sugar.Warnf("db ping on shutdown failed: %v", err)
	}
	if err := shutdownTracing(doneCtx); err != nil {
		sugar.Warnf("tracing shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
