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

	"github.com/bobmatnyc/dedup-cli/internal/model"
	"github.com/bobmatnyc/dedup-cli/internal/registry"
)

var (
	statusRecent int
	statusJSON   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registry statistics and recent operations",
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

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "registry stats")
		}

		var recent []model.OperationLogEntry
		if statusRecent > 0 {
			recent, err = st.ListOperations(ctx, registry.OpFilter{Limit: statusRecent})
			if err != nil {
				return eris.Wrap(err, "list operations")
			}
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Stats  *model.RegistryStats      `json:"stats"`
				Recent []model.OperationLogEntry `json:"recent,omitempty"`
			}{stats, recent})
		}

		formatStats(os.Stdout, stats)
		formatRecentOps(os.Stdout, recent)
		return nil
	},
}

// formatStats renders registry totals as a labeled block.
func formatStats(out io.Writer, s *model.RegistryStats) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	_, _ = fmt.Fprintf(out, "%s\n", cyan("Registry"))
	_, _ = fmt.Fprintf(out, "  canonical documents: %d\n", s.CanonicalDocuments)
	_, _ = fmt.Fprintf(out, "  retired (merged):    %d\n", s.RetiredDocuments)
	_, _ = fmt.Fprintf(out, "  sources:             %d\n", s.Sources)
	_, _ = fmt.Fprintf(out, "  collections:         %d\n", s.Collections)
	_, _ = fmt.Fprintf(out, "  operations logged:   %d\n", s.Operations)
	if s.FlaggedConflicts > 0 {
		_, _ = fmt.Fprintf(out, "  flagged conflicts:   %s\n", yellow(fmt.Sprintf("%d", s.FlaggedConflicts)))
	} else {
		_, _ = fmt.Fprintf(out, "  flagged conflicts:   0\n")
	}
	if !s.LastOperationAt.IsZero() {
		_, _ = fmt.Fprintf(out, "  last operation:      %s\n", s.LastOperationAt.Format("2006-01-02 15:04:05 MST"))
	}
}

// formatRecentOps renders the newest operation-log entries.
func formatRecentOps(out io.Writer, entries []model.OperationLogEntry) {
	if len(entries) == 0 {
		return
	}

	_, _ = fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tOPERATION\tSTATUS\tCANONICAL\tMESSAGE")
	_, _ = fmt.Fprintln(w, "----\t---------\t------\t---------\t-------")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04"),
			e.Operation,
			e.Status,
			e.CanonicalID,
			truncate(e.Message, 50))
	}
	_ = w.Flush()
}

func init() {
	statusCmd.Flags().IntVar(&statusRecent, "recent", 10, "number of recent operations to show (0 disables)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print stats as JSON")
	rootCmd.AddCommand(statusCmd)
}
