package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/ingest"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(renormalizeCmd)
	rootCmd.AddCommand(migrateCmd)

	ingestCmd.Flags().String("run", "", "Run ID (generated for dry runs when empty)")
	ingestCmd.Flags().String("user", "", "User ID")
	ingestCmd.Flags().Bool("dry-run", false, "Ingest the built-in sample instead of FILE")
	ingestCmd.Flags().String("collected-at", "", "Collection time, RFC 3339 (default now)")

	renormalizeCmd.Flags().String("run", "", "Run ID")
	renormalizeCmd.Flags().String("user", "", "User ID")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [FILE]",
	Short: "Ingest a report file",
	Long: `Ingest one report. A .json FILE is the payload envelope
({"capturedLists": {...}}, {"text": "..."} or {"reportId": "..."});
any other FILE is read as extracted report text.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

var renormalizeCmd = &cobra.Command{
	Use:   "renormalize",
	Short: "Rebuild a run's report from its stored raw payload",
	Args:  cobra.NoArgs,
	RunE:  runRenormalize,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, closeApp, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp()
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}

// payloadFromFile reads FILE into a payload envelope.
func payloadFromFile(file string) (json.RawMessage, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	if strings.EqualFold(filepath.Ext(file), ".json") {
		if !json.Valid(b) {
			return nil, fmt.Errorf("%s is not valid JSON", file)
		}
		return b, nil
	}
	return json.Marshal(map[string]string{"text": string(b)})
}

func runIngest(cmd *cobra.Command, args []string) error {
	runID, _ := cmd.Flags().GetString("run")
	userID, _ := cmd.Flags().GetString("user")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	collectedFlag, _ := cmd.Flags().GetString("collected-at")

	req := ingest.Request{RunID: runID, UserID: userID, DryRun: dryRun}
	if collectedFlag != "" {
		t, err := time.Parse(time.RFC3339, collectedFlag)
		if err != nil {
			return fmt.Errorf("--collected-at: %w", err)
		}
		req.CollectedAt = &t
	}
	switch {
	case dryRun:
	case len(args) == 1:
		payload, err := payloadFromFile(args[0])
		if err != nil {
			return err
		}
		req.Payload = payload
	default:
		return fmt.Errorf("FILE is required unless --dry-run is set")
	}

	a, _, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	run, err := a.Ingest.Ingest(cmd.Context(), req)
	if run != nil {
		printRun(cmd, run)
	}
	return err
}

func runRenormalize(cmd *cobra.Command, args []string) error {
	runID, _ := cmd.Flags().GetString("run")
	userID, _ := cmd.Flags().GetString("user")

	a, _, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	run, err := a.Ingest.Renormalize(cmd.Context(), runID, userID)
	if run != nil {
		printRun(cmd, run)
	}
	return err
}

func printRun(cmd *cobra.Command, run *entity.Run) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(run)
}
