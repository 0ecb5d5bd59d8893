package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/parser"
)

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().Bool("summary", false, "Print one line per file instead of full JSON")
	parseCmd.Flags().Int("jobs", 4, "Files parsed concurrently")
}

var parseCmd = &cobra.Command{
	Use:   "parse FILE...",
	Short: "Parse extracted report text files without storing anything",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runParse,
}

type parsedFile struct {
	File   string              `json:"file"`
	Result *parser.ParseResult `json:"result"`
}

func runParse(cmd *cobra.Command, args []string) error {
	summary, _ := cmd.Flags().GetBool("summary")
	jobs, _ := cmd.Flags().GetInt("jobs")
	if jobs < 1 {
		jobs = 1
	}

	out := make([]parsedFile, len(args))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(jobs)
	for i, file := range args {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			out[i] = parsedFile{File: file, Result: parser.Parse(string(b))}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if summary {
		for _, p := range out {
			r := p.Result
			fmt.Fprintf(w, "%s\t%s/%s\tconfidence=%d\taccounts=%d\tinquiries=%d\n",
				p.File, r.Bureau.Name, r.Bureau.Confidence, r.ConfidenceScore, len(r.Accounts), r.Counts.Inquiries)
		}
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
