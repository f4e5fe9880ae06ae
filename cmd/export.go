package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwhittaker87/clearcrawl/internal/export"
	"github.com/mwhittaker87/clearcrawl/internal/storage/postgres"
)

// newExportCmd creates the 'export' subcommand: a one-shot CSV snapshot
// without running a crawl.
func newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the latest-observation CSV snapshot and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if out != "" {
				cfg.Export.CSVPath = out
			}

			repo, err := postgres.New(cmd.Context(), cfg.DB)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer repo.Close()

			n, err := export.New(repo, cfg.Export.CSVPath, cfg.Export.Limit).Write(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", n, cfg.Export.CSVPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "override the configured CSV path")
	return cmd
}
