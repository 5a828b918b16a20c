package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/Elhashino/amazon-deals/internal/storage"
)

// Export renders the active generation as CSV and/or a PNG score chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxRows = a.Config.ResolveMaxRows(opts.MaxRows)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	deals, err := store.ListActiveDeals(ctx, opts.Category, opts.Sort, opts.MaxRows)
	if err != nil {
		return err
	}
	if len(deals) == 0 {
		a.Logger.Info().Msg("no active deals to export")
		return nil
	}

	a.Logger.Info().Int("rows", len(deals)).Msg("exporting active generation")

	if opts.CSVPath != "" {
		if err := writeDealsCSV(opts.CSVPath, deals); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeDealsPNG(opts.PNGPath, deals); err != nil {
			return err
		}
	}

	return nil
}

func writeDealsCSV(path string, deals []storage.DealRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"asin", "category", "title", "brand",
		"price_current", "price_median_90d", "discount_pct_90d", "stability",
		"confidence", "score", "hot_score", "demand_score",
		"sales_rank_current", "rating", "review_count", "published_at",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, deal := range deals {
		record := []string{
			deal.ASIN,
			deal.Category,
			stringOrEmpty(deal.Title),
			stringOrEmpty(deal.Brand),
			decimalOrEmpty(deal.PriceCurrent),
			decimalOrEmpty(deal.PriceMedian90d),
			floatOrEmpty(deal.DiscountPct90d),
			floatOrEmpty(deal.Stability),
			fmt.Sprintf("%.2f", deal.Confidence),
			fmt.Sprintf("%.2f", deal.Score),
			fmt.Sprintf("%.2f", deal.HotScore),
			floatOrEmpty(deal.DemandScore),
			intOrEmpty(deal.SalesRankCurrent),
			floatOrEmpty(deal.Rating),
			intOrEmpty(deal.ReviewCount),
			deal.PublishedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeDealsPNG(path string, deals []storage.DealRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	downsampled := downsampleDeals(deals, 512)

	x := make([]float64, len(downsampled))
	scores := make([]float64, len(downsampled))
	hot := make([]float64, len(downsampled))
	confidence := make([]float64, len(downsampled))

	for i, deal := range downsampled {
		x[i] = float64(i + 1)
		scores[i] = deal.Score
		hot[i] = deal.HotScore
		confidence[i] = deal.Confidence
	}

	scoreFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name:           "Rank",
			ValueFormatter: scoreFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Score",
			ValueFormatter: scoreFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Deal score",
				XValues: x,
				YValues: scores,
			},
			chart.ContinuousSeries{
				Name:    "Hot score",
				XValues: x,
				YValues: hot,
			},
			chart.ContinuousSeries{
				Name:    "Confidence",
				XValues: x,
				YValues: confidence,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func downsampleDeals(deals []storage.DealRecord, max int) []storage.DealRecord {
	if max <= 0 || len(deals) <= max {
		return deals
	}

	result := make([]storage.DealRecord, 0, max)
	step := float64(len(deals)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(deals) {
			idx = len(deals) - 1
		}
		result = append(result, deals[idx])
	}
	return result
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func decimalOrEmpty(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func floatOrEmpty(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.4f", *v)
}

func intOrEmpty(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}
