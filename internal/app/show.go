package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
)

// Show prints the top active deals.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show deals")
	}
	if closeStore != nil {
		defer closeStore()
	}

	deals, err := store.ListActiveDeals(ctx, opts.Category, opts.Sort, opts.Limit)
	if err != nil {
		return err
	}
	if len(deals) == 0 {
		fmt.Fprintln(os.Stdout, "no active deals found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ASIN\tCategory\tPrice\tMedian\tDiscount%\tConf\tScore\tHot\tTitle")

	for _, deal := range deals {
		title := ""
		if deal.Title != nil {
			title = sanitizeInline(*deal.Title)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%.0f\t%.1f\t%.1f\t%s\n",
			deal.ASIN,
			deal.Category,
			formatOptionalDecimal(deal.PriceCurrent, 2),
			formatOptionalDecimal(deal.PriceMedian90d, 2),
			formatOptionalPct(deal.DiscountPct90d),
			deal.Confidence,
			deal.Score,
			deal.HotScore,
			title,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func formatOptionalDecimal(d *decimal.Decimal, places int32) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(places)
}

func formatOptionalPct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v*100)
}
