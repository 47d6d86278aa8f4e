package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bobmatnyc/dedup-cli/internal/model"
	"github.com/bobmatnyc/dedup-cli/internal/registry"
)

var (
	conflictsLimit int
	conflictsJSON  bool
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List flagged ambiguous matches awaiting review",
	Long:  "Shows operation-log entries where detection phases disagreed about a document pair. Conflicts are never auto-merged; resolve one with the merge command once reviewed.",
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

		entries, err := st.ListOperations(ctx, registry.OpFilter{
			Operation: model.OpConflict,
			Status:    model.OpStatusFlagged,
			Limit:     conflictsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list conflicts")
		}

		if conflictsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		formatConflicts(os.Stdout, entries)
		return nil
	},
}

// formatConflicts renders flagged operation-log entries as a review table.
func formatConflicts(out io.Writer, entries []model.OperationLogEntry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No flagged conflicts.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tDOC A\tDOC B\tPHASES\tDETAIL")
	_, _ = fmt.Fprintln(w, "----\t-----\t-----\t------\t------")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s vs %s\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04"),
			e.Details["doc_a"],
			e.Details["doc_b"],
			e.Details["phase_a"],
			e.Details["phase_b"],
			truncate(e.Details["detail"], 60))
	}
	_ = w.Flush()
}

func init() {
	conflictsCmd.Flags().IntVar(&conflictsLimit, "limit", 50, "maximum entries to show")
	conflictsCmd.Flags().BoolVar(&conflictsJSON, "json", false, "print raw entries as JSON")
	rootCmd.AddCommand(conflictsCmd)
}
