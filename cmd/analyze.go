package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bobmatnyc/dedup-cli/internal/detector"
	"github.com/bobmatnyc/dedup-cli/internal/extract"
	"github.com/bobmatnyc/dedup-cli/internal/fingerprint"
	"github.com/bobmatnyc/dedup-cli/internal/ingest"
	"github.com/bobmatnyc/dedup-cli/internal/model"
	"github.com/bobmatnyc/dedup-cli/internal/quality"
	"github.com/bobmatnyc/dedup-cli/internal/registry"
)

var (
	analyzeCollection string
	analyzeJSON       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [dir]",
	Short: "Detect duplicates across the registered corpus",
	Long:  "Runs four-phase duplicate detection (exact, fuzzy, metadata, partial overlap) over every canonical document in the registry, or over a directory of files ahead of ingestion when one is given. Cross-phase disagreements are flagged in the operation log for review.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

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

		orch := ingest.New(cfg.Ingest, st, ex,
			fingerprint.NewGenerator(cfg.Quality.MinTextLength),
			quality.NewAssessor(cfg.Quality.CharsPerPage),
			nil)
		det := detector.New(cfg.Detector)

		var report *model.AnalysisReport
		if len(args) == 1 {
			docs, err := ingest.DiscoverDir(args[0], cfg.Ingest.Collection)
			if err != nil {
				return eris.Wrap(err, "discover documents")
			}
			report, err = orch.Analyze(ctx, docs, det)
			if err != nil {
				return eris.Wrap(err, "analyze directory")
			}
		} else {
			report, err = orch.AnalyzeCorpus(ctx, analyzeCollection, det)
			if err != nil {
				return eris.Wrap(err, "analyze corpus")
			}
		}

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printAnalysisReport(os.Stdout, report)
		return nil
	},
}

// printAnalysisReport renders detection results: a summary line with phase
// counts, one table row per group, then any flagged conflicts.
func printAnalysisReport(out io.Writer, r *model.AnalysisReport) {
	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	elapsed := r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)
	_, _ = fmt.Fprintf(out, "%s %d documents in %s: %d duplicate groups, %d conflicts\n",
		bold("Analyzed"), r.Documents, elapsed, len(r.Groups), len(r.Conflicts))
	_, _ = fmt.Fprintf(out, "  exact %d   fuzzy %d   metadata %d   partial %d\n",
		r.PhaseCounts[model.GroupExact],
		r.PhaseCounts[model.GroupFuzzy],
		r.PhaseCounts[model.GroupMetadata],
		r.PhaseCounts[model.GroupPartial])

	if len(r.Groups) > 0 {
		_, _ = fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "PHASE\tSIMILARITY\tMETHOD\tDOCUMENTS")
		_, _ = fmt.Fprintln(w, "-----\t----------\t------\t---------")
		for _, g := range r.Groups {
			_, _ = fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\n",
				g.Type, g.Similarity, g.Method, strings.Join(g.Docs, ", "))
		}
		_ = w.Flush()
	}

	for _, c := range r.Conflicts {
		_, _ = fmt.Fprintf(out, "%s %s vs %s (%s / %s): %s\n",
			red("conflict:"), c.DocA, c.DocB, c.PhaseA, c.PhaseB, c.Detail)
	}
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCollection, "collection", "", "restrict corpus analysis to one collection")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the full report as JSON")
	rootCmd.AddCommand(analyzeCmd)
}
