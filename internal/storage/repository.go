package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	selectActivePublishedSQL = `SELECT asin, category, published_at
    FROM deals
    WHERE is_active = TRUE;`

	deactivateAllSQL = `UPDATE deals SET is_active = FALSE WHERE is_active = TRUE;`

	purgeDealsSQL = `DELETE FROM deals;`

	insertDealSQL = `INSERT INTO deals (
        asin,
        category,
        title,
        brand,
        amazon_url,
        price_current,
        price_median_90d,
        discount_pct_90d,
        stability,
        confidence,
        score,
        hot_score,
        demand_score,
        sales_rank_current,
        rating,
        review_count,
        is_active,
        generation,
        ingested_at,
        published_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,TRUE,$17,$18,$19
    );`

	insertSnapshotSQL = `INSERT INTO price_snapshots (
        asin,
        captured_at,
        price_current,
        price_median_90d,
        discount_pct_90d,
        confidence,
        score
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    );`

	dealColumns = `id,
        asin,
        category,
        title,
        brand,
        amazon_url,
        price_current::text,
        price_median_90d::text,
        discount_pct_90d,
        stability,
        confidence,
        score,
        hot_score,
        demand_score,
        sales_rank_current,
        rating,
        review_count,
        is_active,
        generation::text,
        ingested_at,
        published_at`

	listActiveDealsSQL = `SELECT ` + dealColumns + `
    FROM deals
    WHERE is_active = TRUE
      AND ($1 = '' OR category = $1)
    ORDER BY score DESC
    LIMIT $2;`

	listActiveDealsHotSQL = `SELECT ` + dealColumns + `
    FROM deals
    WHERE is_active = TRUE
      AND ($1 = '' OR category = $1)
    ORDER BY hot_score DESC, score DESC
    LIMIT $2;`

	getActiveDealSQL = `SELECT ` + dealColumns + `
    FROM deals
    WHERE is_active = TRUE
      AND asin = $1
    ORDER BY score DESC
    LIMIT 1;`

	countActiveDealsSQL = `SELECT COUNT(*) FROM deals WHERE is_active = TRUE;`
)

// Sort orders for active deal listings.
const (
	SortByScore = "deal"
	SortByHot   = "hot"
)

// DealStore defines the persistence operations of the snapshot pipeline.
type DealStore interface {
	CommitGeneration(ctx context.Context, gen uuid.UUID, records []DealRecord, snapshots []PriceSnapshot, purge bool) error
	ListActiveDeals(ctx context.Context, category, sortBy string, limit int) ([]DealRecord, error)
	GetActiveDeal(ctx context.Context, asin string) (DealRecord, error)
	CountActiveDeals(ctx context.Context) (int64, error)
}

// CommitGeneration atomically replaces the active snapshot: prior active
// rows are deactivated (or purged), the new generation's rows are inserted
// active, and the audit snapshots are appended, all in one transaction.
// Readers observe either the prior or the new generation, never a mix.
// published_at is carried over from the prior active row for the same
// (asin, category); an ASIN that dropped out and returned starts over.
func (s *Store) CommitGeneration(ctx context.Context, gen uuid.UUID, records []DealRecord, snapshots []PriceSnapshot, purge bool) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin generation commit: %w", err)
	}
	defer tx.Rollback(ctx)

	prior, err := activePublishedAt(ctx, tx)
	if err != nil {
		return err
	}

	if purge {
		if _, err := tx.Exec(ctx, purgeDealsSQL); err != nil {
			return fmt.Errorf("purge prior deals: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx, deactivateAllSQL); err != nil {
			return fmt.Errorf("deactivate prior generation: %w", err)
		}
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		published := rec.PublishedAt
		if carried, ok := prior[rec.Key()]; ok {
			published = carried
		}

		batch.Queue(insertDealSQL,
			rec.ASIN,
			rec.Category,
			rec.Title,
			rec.Brand,
			rec.AmazonURL,
			decimalArg(rec.PriceCurrent),
			decimalArg(rec.PriceMedian90d),
			rec.DiscountPct90d,
			rec.Stability,
			rec.Confidence,
			rec.Score,
			rec.HotScore,
			rec.DemandScore,
			rec.SalesRankCurrent,
			rec.Rating,
			rec.ReviewCount,
			gen.String(),
			rec.IngestedAt,
			published,
		)
	}
	for _, snap := range snapshots {
		batch.Queue(insertSnapshotSQL,
			snap.ASIN,
			snap.CapturedAt,
			decimalArg(snap.PriceCurrent),
			decimalArg(snap.PriceMedian90d),
			snap.DiscountPct90d,
			snap.Confidence,
			snap.Score,
		)
	}

	if batch.Len() > 0 {
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("insert generation row: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("close generation batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit generation: %w", err)
	}
	return nil
}

func activePublishedAt(ctx context.Context, tx pgx.Tx) (map[DealKey]time.Time, error) {
	rows, err := tx.Query(ctx, selectActivePublishedSQL)
	if err != nil {
		return nil, fmt.Errorf("load prior generation: %w", err)
	}
	defer rows.Close()

	prior := make(map[DealKey]time.Time)
	for rows.Next() {
		var key DealKey
		var published time.Time
		if err := rows.Scan(&key.ASIN, &key.Category, &published); err != nil {
			return nil, fmt.Errorf("scan prior generation: %w", err)
		}
		prior[key] = published
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return prior, nil
}

// ListActiveDeals lists active records, optionally filtered by category,
// ordered by the requested composite score.
func (s *Store) ListActiveDeals(ctx context.Context, category, sortBy string, limit int) ([]DealRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query := listActiveDealsHotSQL
	if sortBy == SortByScore {
		query = listActiveDealsSQL
	}

	rows, queryErr := pool.Query(ctx, query, category, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list active deals: %w", queryErr)
	}
	defer rows.Close()

	deals := make([]DealRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanDealRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		deals = append(deals, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return deals, nil
}

// GetActiveDeal returns the best-scoring active record for an ASIN.
func (s *Store) GetActiveDeal(ctx context.Context, asin string) (DealRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return DealRecord{}, err
	}

	rows, queryErr := pool.Query(ctx, getActiveDealSQL, asin)
	if queryErr != nil {
		return DealRecord{}, fmt.Errorf("get active deal: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return DealRecord{}, rows.Err()
		}
		return DealRecord{}, ErrDealNotFound
	}
	return scanDealRecord(rows)
}

// CountActiveDeals counts the active generation's records.
func (s *Store) CountActiveDeals(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countActiveDealsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count active deals: %w", scanErr)
	}
	return count, nil
}

func decimalArg(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func scanDealRecord(rows pgx.Rows) (DealRecord, error) {
	var (
		rec         DealRecord
		title       sql.NullString
		brand       sql.NullString
		amazonURL   sql.NullString
		current     sql.NullString
		median      sql.NullString
		discount    sql.NullFloat64
		stability   sql.NullFloat64
		demand      sql.NullFloat64
		salesRank   sql.NullInt64
		rating      sql.NullFloat64
		reviewCount sql.NullInt64
		generation  string
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.ASIN,
		&rec.Category,
		&title,
		&brand,
		&amazonURL,
		&current,
		&median,
		&discount,
		&stability,
		&rec.Confidence,
		&rec.Score,
		&rec.HotScore,
		&demand,
		&salesRank,
		&rating,
		&reviewCount,
		&rec.IsActive,
		&generation,
		&rec.IngestedAt,
		&rec.PublishedAt,
	); err != nil {
		return DealRecord{}, err
	}

	gen, err := uuid.Parse(generation)
	if err != nil {
		return DealRecord{}, fmt.Errorf("parse generation id: %w", err)
	}
	rec.Generation = gen

	if title.Valid {
		v := title.String
		rec.Title = &v
	}
	if brand.Valid {
		v := brand.String
		rec.Brand = &v
	}
	if amazonURL.Valid {
		v := amazonURL.String
		rec.AmazonURL = &v
	}
	if current.Valid {
		d, convErr := decimal.NewFromString(current.String)
		if convErr != nil {
			return DealRecord{}, fmt.Errorf("parse price current: %w", convErr)
		}
		rec.PriceCurrent = &d
	}
	if median.Valid {
		d, convErr := decimal.NewFromString(median.String)
		if convErr != nil {
			return DealRecord{}, fmt.Errorf("parse price median: %w", convErr)
		}
		rec.PriceMedian90d = &d
	}
	if discount.Valid {
		v := discount.Float64
		rec.DiscountPct90d = &v
	}
	if stability.Valid {
		v := stability.Float64
		rec.Stability = &v
	}
	if demand.Valid {
		v := demand.Float64
		rec.DemandScore = &v
	}
	if salesRank.Valid {
		v := int(salesRank.Int64)
		rec.SalesRankCurrent = &v
	}
	if rating.Valid {
		v := rating.Float64
		rec.Rating = &v
	}
	if reviewCount.Valid {
		v := int(reviewCount.Int64)
		rec.ReviewCount = &v
	}

	return rec, nil
}

var _ DealStore = (*Store)(nil)
