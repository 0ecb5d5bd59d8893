// Command creditctl is the operator CLI for the credit report engine.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/app"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/config"
	"github.com/ovaphlow/pitchfork/service-credit-report/pkg/utilities"
)

var rootCmd = &cobra.Command{
	Use:   "creditctl",
	Short: "Parse, ingest and replay credit reports",
	Long: `creditctl drives the credit report engine from the command line.
Configuration comes from the environment (and .env), optionally overlaid by
the YAML file named in CONFIG_FILE.`,
	SilenceUsage: true,
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openApp loads config, starts logging and wires storage for commands that
// need the database. The returned func releases everything.
func openApp(ctx context.Context) (*app.App, *zap.SugaredLogger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	sugar := lg.Sugar()
	a, err := app.New(ctx, cfg, sugar)
	if err != nil {
		_ = lg.Sync()
		return nil, nil, nil, err
	}
	return a, sugar, func() {
		if err := a.Close(); err != nil {
			sugar.Warnw("close", "err", err)
		}
		_ = lg.Sync()
	}, nil
}
