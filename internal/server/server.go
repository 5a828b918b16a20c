package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Elhashino/amazon-deals/internal/config"
	"github.com/Elhashino/amazon-deals/internal/storage"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	asinLength = 10
)

// Server exposes the read-only deal query API over the persisted snapshot.
type Server struct {
	app    *fiber.App
	store  storage.DealStore
	logger zerolog.Logger
}

// New constructs the API server and registers routes.
func New(cfg config.ServerConfig, store storage.DealStore, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:    app,
		store:  store,
		logger: logger.With().Str("component", "server").Logger(),
	}

	app.Get("/healthz", s.handleHealth)
	app.Get("/api/deals", s.handleListDeals)
	app.Get("/api/deal/:asin", s.handleGetDeal)

	return s
}

// Listen blocks serving requests until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("read api listening")
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	count, err := s.store.CountActiveDeals(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "store unreachable")
	}
	return c.JSON(fiber.Map{"status": "ok", "active_deals": count})
}

type dealResponse struct {
	ASIN             string   `json:"asin"`
	Category         string   `json:"category"`
	Title            *string  `json:"title"`
	Brand            *string  `json:"brand"`
	AmazonURL        *string  `json:"amazon_url"`
	PriceCurrent     *float64 `json:"price_current"`
	PriceMedian90d   *float64 `json:"price_median_90d"`
	DiscountPct90d   *float64 `json:"discount_pct_90d"`
	Confidence       float64  `json:"confidence"`
	Score            float64  `json:"score"`
	HotScore         float64  `json:"hot_score"`
	DemandScore      *float64 `json:"demand_score"`
	SalesRankCurrent *int     `json:"sales_rank_current"`
	Rating           *float64 `json:"rating"`
	ReviewCount      *int     `json:"review_count"`
	PublishedAt      string   `json:"published_at"`
}

func (s *Server) handleListDeals(c *fiber.Ctx) error {
	sortBy := c.Query("sort", storage.SortByHot)
	if sortBy != storage.SortByHot && sortBy != storage.SortByScore {
		return fiber.NewError(fiber.StatusBadRequest, "sort must be 'hot' or 'deal'")
	}

	limit := c.QueryInt("limit", defaultLimit)
	if limit < 1 || limit > maxLimit {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be within 1..200")
	}

	category := c.Query("category")

	deals, err := s.store.ListActiveDeals(c.Context(), category, sortBy, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list deals failed")
		return fiber.NewError(fiber.StatusInternalServerError, "query failed")
	}

	items := make([]dealResponse, len(deals))
	for i, rec := range deals {
		items[i] = toResponse(rec)
	}
	return c.JSON(fiber.Map{"items": items})
}

func (s *Server) handleGetDeal(c *fiber.Ctx) error {
	asin := c.Params("asin")
	if len(asin) != asinLength {
		return fiber.NewError(fiber.StatusBadRequest, "invalid asin")
	}

	rec, err := s.store.GetActiveDeal(c.Context(), asin)
	if err != nil {
		if errors.Is(err, storage.ErrDealNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "deal not found")
		}
		s.logger.Error().Err(err).Str("asin", asin).Msg("get deal failed")
		return fiber.NewError(fiber.StatusInternalServerError, "query failed")
	}

	return c.JSON(toResponse(rec))
}

func toResponse(rec storage.DealRecord) dealResponse {
	return dealResponse{
		ASIN:             rec.ASIN,
		Category:         rec.Category,
		Title:            rec.Title,
		Brand:            rec.Brand,
		AmazonURL:        rec.AmazonURL,
		PriceCurrent:     decimalFloat(rec.PriceCurrent),
		PriceMedian90d:   decimalFloat(rec.PriceMedian90d),
		DiscountPct90d:   rec.DiscountPct90d,
		Confidence:       rec.Confidence,
		Score:            rec.Score,
		HotScore:         rec.HotScore,
		DemandScore:      rec.DemandScore,
		SalesRankCurrent: rec.SalesRankCurrent,
		Rating:           rec.Rating,
		ReviewCount:      rec.ReviewCount,
		PublishedAt:      rec.PublishedAt.UTC().Format(time.RFC3339),
	}
}

func decimalFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v := d.InexactFloat64()
	return &v
}
