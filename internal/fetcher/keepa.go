package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Elhashino/amazon-deals/internal/series"
)

const (
	productPath = "/product"
	dealsPath   = "/deals"

	asinLength = 10
)

// Transient upstream failures are retried with backoff before the product
// is given up for the cycle.
var retryDelays = []time.Duration{2 * time.Second, 5 * time.Second, 12 * time.Second}

// KeepaOptions parameterise the upstream client.
type KeepaOptions struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	UserAgent        string
	CycleCallBudget  int
	PagesPerCategory int
	HistoryDays      int
	Categories       []string
}

// Keepa talks to the Keepa-style deal analytics API. It implements both the
// history fetch and the candidate feed, sharing one per-cycle call budget
// so the upstream quota bounds the whole cycle.
type Keepa struct {
	opts    KeepaOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string

	mu        sync.Mutex
	remaining int
}

// NewKeepa constructs the upstream client.
func NewKeepa(opts KeepaOptions, logger zerolog.Logger) *Keepa {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.keepa.com"
	}

	return &Keepa{
		opts:      opts,
		logger:    logger.With().Str("component", "keepa_fetcher").Logger(),
		client:    &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		remaining: opts.CycleCallBudget,
	}
}

// ResetBudget restores the per-cycle call budget. Called at cycle start.
func (k *Keepa) ResetBudget() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.remaining = k.opts.CycleCallBudget
}

func (k *Keepa) acquireCall() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.opts.CycleCallBudget > 0 && k.remaining <= 0 {
		return ErrQuotaExhausted
	}
	k.remaining--
	return nil
}

type historyPoint struct {
	TS    time.Time `json:"ts"`
	Price int64     `json:"price"`
}

type productPayload struct {
	ASIN        string         `json:"asin"`
	Title       string         `json:"title"`
	Brand       string         `json:"brand"`
	SalesRank   *int           `json:"salesRank"`
	Rating      *int           `json:"rating"`
	ReviewCount *int           `json:"reviewCount"`
	RankDrops7d *int           `json:"rankDrops7d"`
	History     []historyPoint `json:"history"`
}

// FetchHistory retrieves one product's price series and demand signal.
func (k *Keepa) FetchHistory(ctx context.Context, asin, category string) (series.PriceSeries, series.DemandSignal, ProductInfo, error) {
	if len(asin) != asinLength {
		return series.PriceSeries{}, series.DemandSignal{}, ProductInfo{}, fmt.Errorf("%w: malformed asin %q", ErrUnknownProduct, asin)
	}

	query := url.Values{}
	query.Set("key", k.opts.APIKey)
	query.Set("asin", asin)
	query.Set("days", fmt.Sprintf("%d", k.opts.HistoryDays))

	body, err := k.get(ctx, productPath, query)
	if err != nil {
		return series.PriceSeries{}, series.DemandSignal{}, ProductInfo{}, err
	}

	var payload productPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return series.PriceSeries{}, series.DemandSignal{}, ProductInfo{}, fmt.Errorf("%w: decode product payload: %v", ErrUpstreamUnavailable, err)
	}

	samples := make([]series.Sample, 0, len(payload.History))
	for _, p := range payload.History {
		samples = append(samples, series.Sample{
			At:    p.TS,
			Price: decimal.New(p.Price, -2),
		})
	}

	signal := series.DemandSignal{
		SalesRank:   payload.SalesRank,
		ReviewCount: payload.ReviewCount,
		RankDrops7d: payload.RankDrops7d,
	}
	if payload.Rating != nil {
		// The provider reports tenths of a star (45 == 4.5).
		stars := float64(*payload.Rating) / 10
		signal.Rating = &stars
	}

	info := ProductInfo{Title: payload.Title, Brand: payload.Brand}

	return series.Normalize(samples), signal, info, nil
}

type dealsPayload struct {
	ASINs []string `json:"asins"`
}

// Candidates pages the deal feed for every configured category, validating
// ASINs and de-duplicating while preserving feed order.
func (k *Keepa) Candidates(ctx context.Context) ([]Candidate, error) {
	pages := k.opts.PagesPerCategory
	if pages <= 0 {
		pages = 1
	}

	seen := make(map[string]struct{})
	candidates := make([]Candidate, 0)

	for _, category := range k.opts.Categories {
		for page := 0; page < pages; page++ {
			query := url.Values{}
			query.Set("key", k.opts.APIKey)
			query.Set("category", category)
			query.Set("page", fmt.Sprintf("%d", page))

			body, err := k.get(ctx, dealsPath, query)
			if err != nil {
				// A dead feed page is not fatal for the cycle; later pages
				// and categories may still enumerate.
				k.logger.Warn().Err(err).Str("category", category).Int("page", page).Msg("deal feed page failed")
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}

			var payload dealsPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				k.logger.Warn().Err(err).Str("category", category).Int("page", page).Msg("malformed deal feed page")
				continue
			}

			for _, asin := range payload.ASINs {
				asin = strings.TrimSpace(asin)
				if len(asin) != asinLength {
					continue
				}
				if _, dup := seen[asin]; dup {
					continue
				}
				seen[asin] = struct{}{}
				candidates = append(candidates, Candidate{ASIN: asin, Category: category})
			}
		}
	}

	return candidates, nil
}

// get performs one budgeted GET with retry on transient failures.
func (k *Keepa) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := k.acquireCall(); err != nil {
		return nil, err
	}

	endpoint := k.baseURL + path + "?" + query.Encode()

	var lastErr error
	for attempt := 0; ; attempt++ {
		body, retryable, err := k.doOnce(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable || attempt >= len(retryDelays) {
			return nil, lastErr
		}

		timer := time.NewTimer(retryDelays[attempt])
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
		case <-timer.C:
		}
	}
}

func (k *Keepa) doOnce(ctx context.Context, endpoint string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(k.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
		}
		return nil, true, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: read response: %v", ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return payload, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrUnknownProduct
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, parseAPIError(resp.StatusCode, payload))
	default:
		return nil, false, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, parseAPIError(resp.StatusCode, payload))
	}
}

type apiErrorPayload struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseAPIError(status int, payload []byte) string {
	var apiErr apiErrorPayload
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Sprintf("api error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Sprintf("api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.ErrorType != "" {
			return fmt.Sprintf("api error (%d): %s", status, apiErr.ErrorType)
		}
	}
	if len(payload) > 0 {
		return fmt.Sprintf("api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Sprintf("api error (%d)", status)
}

var (
	_ HistoryFetcher  = (*Keepa)(nil)
	_ CandidateSource = (*Keepa)(nil)
	_ BudgetResetter  = (*Keepa)(nil)
)
