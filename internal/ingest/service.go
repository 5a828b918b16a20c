package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Elhashino/amazon-deals/internal/alerting"
	"github.com/Elhashino/amazon-deals/internal/config"
	"github.com/Elhashino/amazon-deals/internal/fetcher"
	"github.com/Elhashino/amazon-deals/internal/scheduler"
	"github.com/Elhashino/amazon-deals/internal/scoring"
	"github.com/Elhashino/amazon-deals/internal/storage"
)

// Service orchestrates ingestion cycles: candidate enumeration, parallel
// fetch-and-score, and the atomic generation commit.
type Service struct {
	scheduler *scheduler.Scheduler
	fetcher   fetcher.HistoryFetcher
	source    fetcher.CandidateSource
	store     storage.DealStore
	locker    storage.AdvisoryLocker
	budget    fetcher.BudgetResetter
	notifier  alerting.Notifier
	logger    zerolog.Logger

	ingestCfg config.IngestConfig
	confW     scoring.ConfidenceWeights
	demandW   scoring.DemandWeights
	scoreW    scoring.ScoreWeights
	statsBase scoring.StatsOptions
	lockKey   int64
	reportAll bool

	mu      sync.Mutex
	unknown map[string]struct{}
}

// New constructs the ingestion service. store may be nil for dry runs; the
// cycle then computes and logs without committing.
func New(cfg *config.Config, sched *scheduler.Scheduler, hf fetcher.HistoryFetcher, source fetcher.CandidateSource, store storage.DealStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	var budget fetcher.BudgetResetter
	if b, ok := hf.(fetcher.BudgetResetter); ok {
		budget = b
	}

	return &Service{
		scheduler: sched,
		fetcher:   hf,
		source:    source,
		store:     store,
		locker:    locker,
		budget:    budget,
		notifier:  notifier,
		logger:    logger.With().Str("component", "ingest").Logger(),
		ingestCfg: cfg.Ingest,
		confW: scoring.ConfidenceWeights{
			SaturationCount: cfg.Scoring.ConfidenceSaturation,
			StaleFactor:     cfg.Scoring.ConfidenceStale,
			GapWeight:       cfg.Scoring.ConfidenceGapWeight,
			Floor:           cfg.Scoring.ConfidenceFloor,
		},
		demandW: scoring.DemandWeights{
			RankWeight:    cfg.Scoring.DemandRankWeight,
			QualityWeight: cfg.Scoring.DemandQualityWeight,
			DropsWeight:   cfg.Scoring.DemandDropsWeight,
			ReviewPivot:   cfg.Scoring.DemandReviewPivot,
		},
		scoreW: scoring.ScoreWeights{
			DiscountWeight:  cfg.Scoring.DiscountWeight,
			StabilityWeight: cfg.Scoring.StabilityWeight,
			HotDealWeight:   cfg.Scoring.HotDealWeight,
			HotDemandWeight: cfg.Scoring.HotDemandWeight,
		},
		statsBase: scoring.StatsOptions{
			Window:            time.Duration(cfg.Ingest.WindowDays) * 24 * time.Hour,
			Freshness:         cfg.Ingest.FreshnessThreshold,
			MinSamples:        cfg.Ingest.MinSamples,
			VolatilityCeiling: cfg.Scoring.VolatilityCeiling,
		},
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
		reportAll: !cfg.Alerting.OnlyFailures,
		unknown:   make(map[string]struct{}),
	}
}

// Run begins the scheduled ingestion loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.RunCycle)
}

type cycleResult struct {
	record   storage.DealRecord
	snapshot storage.PriceSnapshot
}

// RunCycle executes one full ingestion cycle. Per-product failures skip the
// product; only a commit failure fails the cycle, and then the prior
// generation remains authoritative.
func (s *Service) RunCycle(ctx context.Context, startedAt time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Info().Time("cycle", startedAt).Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	if s.budget != nil {
		s.budget.ResetBudget()
	}

	candidates, err := s.source.Candidates(ctx)
	if err != nil {
		return fmt.Errorf("enumerate candidates: %w", err)
	}

	gen := uuid.New()
	s.logger.Info().Time("cycle", startedAt).
		Str("generation", gen.String()).
		Int("candidates", len(candidates)).
		Msg("cycle started")

	var (
		mu         sync.Mutex
		results    []cycleResult
		skipped    int
		unknownHit int
		quotaSpent atomic.Bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.ingestCfg.Workers)

	for _, candidate := range candidates {
		candidate := candidate

		if s.isUnknown(candidate.ASIN) {
			mu.Lock()
			unknownHit++
			skipped++
			mu.Unlock()
			continue
		}
		if quotaSpent.Load() {
			mu.Lock()
			skipped++
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if quotaSpent.Load() {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}

			res, ok := s.processCandidate(gctx, candidate, startedAt, &quotaSpent)
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				skipped++
				return nil
			}
			results = append(results, res)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Cancellation before the commit point leaves no side effects.
		return err
	}

	report := alerting.CycleReport{
		StartedAt:  startedAt,
		Generation: gen,
		Candidates: len(candidates),
		Committed:  len(results),
		Skipped:    skipped,
		Unknown:    unknownHit,
	}

	if s.store == nil {
		s.logger.Info().Int("computed", len(results)).Msg("dry run: skipping generation commit")
		return nil
	}

	records := make([]storage.DealRecord, len(results))
	snapshots := make([]storage.PriceSnapshot, len(results))
	for i, res := range results {
		records[i] = res.record
		snapshots[i] = res.snapshot
	}

	if err := s.store.CommitGeneration(ctx, gen, records, snapshots, s.ingestCfg.PurgePrior); err != nil {
		report.Failed = true
		report.Err = err.Error()
		s.notify(ctx, report)
		return fmt.Errorf("commit generation %s: %w", gen, err)
	}

	s.logger.Info().Time("cycle", startedAt).
		Str("generation", gen.String()).
		Int("committed", len(records)).
		Int("skipped", skipped).
		Msg("cycle committed")

	if s.reportAll {
		s.notify(ctx, report)
	}
	return nil
}

// processCandidate fetches and scores one product. The bool result is false
// when the product is skipped for this cycle.
func (s *Service) processCandidate(ctx context.Context, c fetcher.Candidate, startedAt time.Time, quotaSpent *atomic.Bool) (cycleResult, bool) {
	ps, sig, info, err := s.fetcher.FetchHistory(ctx, c.ASIN, c.Category)
	switch {
	case err == nil:
	case errors.Is(err, fetcher.ErrQuotaExhausted):
		if quotaSpent.CompareAndSwap(false, true) {
			s.logger.Warn().Msg("call budget exhausted; skipping remaining candidates")
		}
		return cycleResult{}, false
	case errors.Is(err, fetcher.ErrUnknownProduct):
		s.markUnknown(c.ASIN)
		s.logger.Debug().Str("asin", c.ASIN).Msg("unknown product excluded going forward")
		return cycleResult{}, false
	case errors.Is(err, fetcher.ErrUpstreamUnavailable):
		s.logger.Warn().Err(err).Str("asin", c.ASIN).Msg("upstream unavailable; will retry next cycle")
		return cycleResult{}, false
	default:
		s.logger.Error().Err(err).Str("asin", c.ASIN).Msg("fetch failed")
		return cycleResult{}, false
	}

	opts := s.statsBase
	opts.Now = startedAt

	sum := scoring.Summarize(ps, opts)
	confidence := scoring.ConfidenceFromSummary(sum, s.confW)
	demand := scoring.DemandScore(sig, s.demandW)
	score, hotScore := scoring.Compose(sum, confidence, demand, s.scoreW)

	// A defined discount below the category threshold is not worth listing.
	// Records without a discount stay: they are persisted at the score
	// floor so the snapshot remains complete and queryable.
	if sum.DiscountPct != nil && *sum.DiscountPct < s.ingestCfg.MinDiscountFor(c.Category) {
		return cycleResult{}, false
	}

	record := storage.DealRecord{
		ASIN:             c.ASIN,
		Category:         c.Category,
		Title:            optionalString(info.Title),
		Brand:            optionalString(info.Brand),
		AmazonURL:        optionalString(s.amazonURL(c.ASIN)),
		PriceCurrent:     sum.PriceCurrent,
		PriceMedian90d:   sum.PriceMedian,
		DiscountPct90d:   sum.DiscountPct,
		Stability:        sum.Stability,
		Confidence:       confidence,
		Score:            score,
		HotScore:         hotScore,
		DemandScore:      demand,
		SalesRankCurrent: sig.SalesRank,
		Rating:           sig.Rating,
		ReviewCount:      sig.ReviewCount,
		IngestedAt:       time.Now().UTC(),
		PublishedAt:      startedAt,
	}

	snapshot := storage.PriceSnapshot{
		ASIN:           c.ASIN,
		CapturedAt:     startedAt,
		PriceCurrent:   sum.PriceCurrent,
		PriceMedian90d: sum.PriceMedian,
		DiscountPct90d: sum.DiscountPct,
		Confidence:     confidence,
		Score:          score,
	}

	return cycleResult{record: record, snapshot: snapshot}, true
}

func (s *Service) amazonURL(asin string) string {
	base := s.ingestCfg.StorefrontBaseURL
	if base == "" {
		return ""
	}
	url := base + asin
	if s.ingestCfg.AssociateTag != "" {
		url += "?tag=" + s.ingestCfg.AssociateTag
	}
	return url
}

func (s *Service) isUnknown(asin string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.unknown[asin]
	return ok
}

func (s *Service) markUnknown(asin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unknown[asin] = struct{}{}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func (s *Service) notify(ctx context.Context, report alerting.CycleReport) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, report); err != nil {
		s.logger.Error().Err(err).Msg("failed to deliver cycle report")
	}
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
