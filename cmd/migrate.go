package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bobmatnyc/dedup-cli/internal/registry"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply registry schema migrations",
	Long:  "Applies all pending registry migrations in lexicographic order, creating the schema on first run.",
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

		zap.L().Info("all registry migrations applied successfully",
			zap.String("driver", cfg.Registry.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
