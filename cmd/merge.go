package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bobmatnyc/dedup-cli/internal/registry"
)

var mergeReason string

var mergeCmd = &cobra.Command{
	Use:   "merge <from> <to>",
	Short: "Merge one canonical document into another",
	Long:  "Retires the first canonical ID in favor of the second. All sources move to the surviving document, its primary source is re-ranked, and the merge is recorded in the operation log.",
	Args:  cobra.ExactArgs(2),
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

		from, to := args[0], args[1]
		if err := st.MergeCanonical(ctx, from, to, mergeReason); err != nil {
			return eris.Wrap(err, "merge canonical")
		}

		zap.L().Info("canonical documents merged",
			zap.String("from", from),
			zap.String("to", to),
			zap.String("reason", mergeReason))
		return nil
	},
}

func init() {
	mergeCmd.Flags().StringVar(&mergeReason, "reason", "", "why these documents are the same (recorded in the operation log)")
	_ = mergeCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(mergeCmd)
}
