package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/storage"
)

const aggregateColumns = `ticker, aggregation_period, sentiment_score, sentiment_label,
	total_mentions, confidence, key_themes, source_breakdown, unique_posts,
	unique_authors, total_upvotes, total_comments, trend, strategy,
	provenance, calculated_at`

// UpsertAggregates implements storage.AggregateRepository.
// Recompute overwrites; last write wins.
func (s *Store) UpsertAggregates(ctx context.Context, aggs []contracts.SentimentAggregate) error {
	if len(aggs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range aggs {
		breakdown := a.SourceBreakdown
		if breakdown == nil {
			breakdown = map[contracts.Source]contracts.SourceStats{}
		}
		batch.Queue(`
			INSERT INTO sentiment_aggregates (`+aggregateColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (ticker, aggregation_period) DO UPDATE SET
				sentiment_score  = EXCLUDED.sentiment_score,
				sentiment_label  = EXCLUDED.sentiment_label,
				total_mentions   = EXCLUDED.total_mentions,
				confidence       = EXCLUDED.confidence,
				key_themes       = EXCLUDED.key_themes,
				source_breakdown = EXCLUDED.source_breakdown,
				unique_posts     = EXCLUDED.unique_posts,
				unique_authors   = EXCLUDED.unique_authors,
				total_upvotes    = EXCLUDED.total_upvotes,
				total_comments   = EXCLUDED.total_comments,
				trend            = EXCLUDED.trend,
				strategy         = EXCLUDED.strategy,
				provenance       = EXCLUDED.provenance,
				calculated_at    = EXCLUDED.calculated_at
		`,
			a.Ticker, a.Period, a.Score, a.Label,
			a.TotalMentions, a.Confidence, nonNil(a.KeyThemes), breakdown, a.UniquePosts,
			a.UniqueAuthors, a.TotalUpvotes, a.TotalComments, a.Trend, a.Strategy,
			a.Provenance, a.CalculatedAt,
		)
	}

	err := s.db.InTx(ctx, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("upsert %d aggregates: %w", len(aggs), err)
	}
	return nil
}

// GetAggregate implements storage.AggregateRepository
func (s *Store) GetAggregate(ctx context.Context, ticker, period string) (*contracts.SentimentAggregate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+aggregateColumns+`
		FROM sentiment_aggregates
		WHERE ticker = $1 AND aggregation_period = $2
	`, ticker, period)
	if err != nil {
		return nil, fmt.Errorf("query aggregate %s/%s: %w", ticker, period, err)
	}

	agg, err := pgx.CollectExactlyOneRow(rows, scanAggregate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan aggregate %s/%s: %w", ticker, period, err)
	}
	return &agg, nil
}

// ListAggregates implements storage.AggregateRepository
func (s *Store) ListAggregates(ctx context.Context, period string, limit int) ([]contracts.SentimentAggregate, error) {
	var lim interface{}
	if limit > 0 {
		lim = limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+aggregateColumns+`
		FROM sentiment_aggregates
		WHERE aggregation_period = $1
		ORDER BY total_mentions DESC, ticker
		LIMIT $2
	`, period, lim)
	if err != nil {
		return nil, fmt.Errorf("query aggregates %s: %w", period, err)
	}

	aggs, err := pgx.CollectRows(rows, scanAggregate)
	if err != nil {
		return nil, fmt.Errorf("scan aggregates %s: %w", period, err)
	}
	return aggs, nil
}

func scanAggregate(row pgx.CollectableRow) (contracts.SentimentAggregate, error) {
	var a contracts.SentimentAggregate
	err := row.Scan(
		&a.Ticker, &a.Period, &a.Score, &a.Label,
		&a.TotalMentions, &a.Confidence, &a.KeyThemes, &a.SourceBreakdown, &a.UniquePosts,
		&a.UniqueAuthors, &a.TotalUpvotes, &a.TotalComments, &a.Trend, &a.Strategy,
		&a.Provenance, &a.CalculatedAt,
	)
	a.CalculatedAt = a.CalculatedAt.UTC()
	if len(a.KeyThemes) == 0 {
		a.KeyThemes = nil
	}
	return a, err
}
