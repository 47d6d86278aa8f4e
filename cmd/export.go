package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bobmatnyc/dedup-cli/internal/artifact"
	"github.com/bobmatnyc/dedup-cli/internal/extract"
	"github.com/bobmatnyc/dedup-cli/internal/fingerprint"
	"github.com/bobmatnyc/dedup-cli/internal/ingest"
	"github.com/bobmatnyc/dedup-cli/internal/model"
	"github.com/bobmatnyc/dedup-cli/internal/quality"
	"github.com/bobmatnyc/dedup-cli/internal/registry"
)

var (
	exportSourceRoot string
	exportOutput     string
	exportCollection string
	exportJSON       bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Re-emit canonical artifacts for registered documents",
	Long:  "Regenerates <output>/<canonical_id>.md for every live canonical document. Bodies are re-extracted from each primary source file found under --source-root, the directory that contains the archived collections.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := registry.Open(ctx, cfg.Registry)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate registry")
		}

		out := exportOutput
		if out == "" {
			out = cfg.Ingest.OutputDir
		}

		ex, err := extract.New(cfg.Extract)
		if err != nil {
			return eris.Wrap(err, "init extractor")
		}

		orch := ingest.New(cfg.Ingest, st, ex,
			fingerprint.NewGenerator(cfg.Quality.MinTextLength),
			quality.NewAssessor(cfg.Quality.CharsPerPage),
			artifact.NewWriter(out))

		report, err := orch.Export(ctx, exportSourceRoot, exportCollection)
		if err != nil {
			return eris.Wrap(err, "export artifacts")
		}

		if exportJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printExportReport(os.Stdout, report)
		return nil
	},
}

// printExportReport renders the re-emission outcome and any per-document
// failures.
func printExportReport(out io.Writer, r *model.ExportReport) {
	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	_, _ = fmt.Fprintf(out, "%s %d of %d canonical artifacts",
		bold("Exported"), r.Written, r.Total)
	if r.Failed > 0 {
		_, _ = fmt.Fprintf(out, " (%s %d)", red("failed:"), r.Failed)
	}
	_, _ = fmt.Fprintln(out)

	if len(r.Failures) == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CANONICAL ID\tPRIMARY SOURCE\tERROR")
	_, _ = fmt.Fprintln(w, "------------\t--------------\t-----")
	for _, f := range r.Failures {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", f.CanonicalID, f.Path, truncate(f.Error, 70))
	}
	_ = w.Flush()
}

func init() {
	exportCmd.Flags().StringVar(&exportSourceRoot, "source-root", ".", "directory containing the archived collection directories")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "artifact output directory (default from config)")
	exportCmd.Flags().StringVar(&exportCollection, "collection", "", "restrict export to one collection")
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "print the full report as JSON")
	rootCmd.AddCommand(exportCmd)
}
