package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Elhashino/amazon-deals/internal/app"
	"github.com/Elhashino/amazon-deals/internal/storage"
)

var (
	showCategory string
	showSort     string
	showLimit    int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the top active deals",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		if showSort != storage.SortByHot && showSort != storage.SortByScore {
			return fmt.Errorf("--sort must be %q or %q", storage.SortByHot, storage.SortByScore)
		}

		opts := app.ShowOptions{
			Category: showCategory,
			Sort:     showSort,
			Limit:    showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showCategory, "category", "", "Restrict to one category")
	showCmd.Flags().StringVar(&showSort, "sort", storage.SortByHot, "Sort order: hot or deal")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of deals to display")
}
