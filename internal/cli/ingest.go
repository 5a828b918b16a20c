package cli

import (
	"github.com/spf13/cobra"

	"github.com/Elhashino/amazon-deals/internal/app"
)

var (
	ingestDryRun bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run a single ingestion cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.IngestOptions{
			DryRun: ingestDryRun,
		}

		return getApp().IngestOnce(cmd.Context(), opts)
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Compute scores without committing a generation")
}
