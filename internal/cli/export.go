package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Elhashino/amazon-deals/internal/app"
	"github.com/Elhashino/amazon-deals/internal/storage"
)

var (
	exportCategory string
	exportSort     string
	exportPNGPath  string
	exportCSVPath  string
	exportMaxRows  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the active generation as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportSort != storage.SortByHot && exportSort != storage.SortByScore {
			return fmt.Errorf("--sort must be %q or %q", storage.SortByHot, storage.SortByScore)
		}

		opts := app.ExportOptions{
			Category: exportCategory,
			Sort:     exportSort,
			PNGPath:  exportPNGPath,
			CSVPath:  exportCSVPath,
			MaxRows:  exportMaxRows,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCategory, "category", "", "Restrict to one category")
	exportCmd.Flags().StringVar(&exportSort, "sort", storage.SortByScore, "Sort order: hot or deal")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxRows, "max-rows", 0, "Maximum rows to export (defaults to config)")
}
