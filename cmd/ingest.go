package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bobmatnyc/dedup-cli/internal/artifact"
	"github.com/bobmatnyc/dedup-cli/internal/extract"
	"github.com/bobmatnyc/dedup-cli/internal/fingerprint"
	"github.com/bobmatnyc/dedup-cli/internal/ingest"
	"github.com/bobmatnyc/dedup-cli/internal/manifest"
	"github.com/bobmatnyc/dedup-cli/internal/model"
	"github.com/bobmatnyc/dedup-cli/internal/quality"
	"github.com/bobmatnyc/dedup-cli/internal/registry"
)

var (
	ingestCollection string
	ingestManifest   string
	ingestOutput     string
	ingestWorkers    int
	ingestJSON       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Canonicalize a source collection directory",
	Long:  "Walks a collection directory, extracts and fingerprints each document, creates or attaches canonical registry entries, re-ranks primary sources, and emits canonical artifacts. Per-document failures are reported without aborting the batch.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		icfg := cfg.Ingest
		if ingestCollection != "" {
			icfg.Collection = ingestCollection
		}
		if ingestOutput != "" {
			icfg.OutputDir = ingestOutput
		}
		if ingestWorkers > 0 {
			icfg.Workers = ingestWorkers
		}

		docs, err := ingest.DiscoverDir(args[0], icfg.Collection)
		if err != nil {
			return eris.Wrap(err, "discover documents")
		}
		if len(docs) == 0 {
			zap.L().Warn("no ingestible documents under directory", zap.String("dir", args[0]))
			return nil
		}

		if ingestManifest != "" {
			m, err := manifest.Load(ingestManifest)
			if err != nil {
				return eris.Wrap(err, "load manifest")
			}
			matched := m.Apply(docs)
			zap.L().Info("manifest applied",
				zap.Int("entries", m.Len()),
				zap.Int("matched", matched))
		}

		st, err := registry.Open(ctx, cfg.Registry)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate registry")
		}

		ex, err := extract.New(cfg.Extract)
		if err != nil {
			return eris.Wrap(err, "init extractor")
		}

		orch := ingest.New(icfg, st, ex,
			fingerprint.NewGenerator(cfg.Quality.MinTextLength),
			quality.NewAssessor(cfg.Quality.CharsPerPage),
			artifact.NewWriter(icfg.OutputDir))

		report, err := orch.Run(ctx, docs)
		if err != nil {
			return eris.Wrap(err, "ingest run")
		}

		if ingestJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printIngestReport(os.Stdout, report)
		return nil
	},
}

// printIngestReport renders the batch outcome: a colored summary line plus a
// failure table when any document failed.
func printIngestReport(out io.Writer, r *model.IngestReport) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	elapsed := r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)
	_, _ = fmt.Fprintf(out, "%s %d documents from collection %q in %s\n",
		bold("Processed"), r.Total, r.Collection, elapsed)
	_, _ = fmt.Fprintf(out, "  %s %d   %s %d   %s %d   %s %d\n",
		green("created:"), r.Created,
		green("attached:"), r.Attached,
		yellow("reassigned:"), r.Reassigned,
		red("failed:"), r.Failed)

	if len(r.Failures) == 0 {
		return
	}

	_, _ = fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tTYPE\tERROR")
	_, _ = fmt.Fprintln(w, "----\t----\t-----")
	for _, f := range r.Failures {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", f.FilePath, f.ErrorType, truncate(f.Error, 70))
	}
	_ = w.Flush()
}

// truncate shortens a string for table display.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCollection, "collection", "", "collection label for discovered sources (default from config)")
	ingestCmd.Flags().StringVar(&ingestManifest, "manifest", "", "inventory spreadsheet (.xlsx, .csv, .tsv) seeding source metadata")
	ingestCmd.Flags().StringVar(&ingestOutput, "output", "", "artifact output directory (default from config)")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "fingerprint worker pool size (0 = one per CPU)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the full report as JSON")
	rootCmd.AddCommand(ingestCmd)
}
