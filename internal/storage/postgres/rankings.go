package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/aegis-pulse/internal/contracts"
)

// ReplaceRankings implements storage.RankingRepository. The ranked posts
// must already be stored.
func (s *Store) ReplaceRankings(ctx context.Context, ranked []contracts.RankedPost) error {
	err := s.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM post_rankings`); err != nil {
			return err
		}
		if len(ranked) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, r := range ranked {
			sc := r.Score
			batch.Queue(`
				INSERT INTO post_rankings (
					source, external_id, rank, velocity, actionability, catalyst,
					time_decay, composite_score, follower_count, has_numbers,
					has_action_words, has_media, calculated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			`,
				r.Post.Source, r.Post.ExternalID, r.Rank, sc.Velocity, sc.Actionability, sc.Catalyst,
				sc.TimeDecay, sc.Composite, sc.FollowerCount, sc.HasNumbers,
				sc.HasActionWords, sc.HasMedia, sc.CalculatedAt,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("replace %d rankings: %w", len(ranked), err)
	}
	return nil
}

// TopRanked implements storage.RankingRepository
func (s *Store) TopRanked(ctx context.Context, limit int) ([]contracts.RankedPost, error) {
	var lim interface{}
	if limit > 0 {
		lim = limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT r.rank, r.velocity, r.actionability, r.catalyst, r.time_decay,
			r.composite_score, r.follower_count, r.has_numbers, r.has_action_words,
			r.has_media, r.calculated_at,
			p.source, p.external_id, p.author, p.created_at, p.text_content, p.url,
			p.likes, p.replies, p.reshares, p.quotes, p.platform_metadata, p.provenance,
			p.tickers, p.ticker, p.mention_count, p.sentiment_score, p.sentiment_label,
			p.confidence, p.key_themes, p.classified_at
		FROM post_rankings r
		JOIN social_posts p USING (source, external_id)
		ORDER BY r.rank
		LIMIT $1
	`, lim)
	if err != nil {
		return nil, fmt.Errorf("query rankings: %w", err)
	}

	ranked, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.RankedPost, error) {
		var (
			r      contracts.RankedPost
			ticker *string
			label  *string
		)
		p := &r.Post
		sc := &r.Score
		err := row.Scan(
			&r.Rank, &sc.Velocity, &sc.Actionability, &sc.Catalyst, &sc.TimeDecay,
			&sc.Composite, &sc.FollowerCount, &sc.HasNumbers, &sc.HasActionWords,
			&sc.HasMedia, &sc.CalculatedAt,
			&p.Source, &p.ExternalID, &p.Author, &p.CreatedAt, &p.Text, &p.URL,
			&p.Engagement.Likes, &p.Engagement.Replies, &p.Engagement.Reshares, &p.Engagement.Quotes,
			&p.Metadata, &p.Provenance,
			&p.Tickers, &ticker, &p.MentionCount, &p.SentimentScore, &label,
			&p.Confidence, &p.KeyThemes, &p.ClassifiedAt,
		)
		p.Ticker = deref(ticker)
		p.SentimentLabel = contracts.Label(deref(label))
		sc.PostID = p.Key()
		sc.CalculatedAt = sc.CalculatedAt.UTC()
		p.CreatedAt = p.CreatedAt.UTC()
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan rankings: %w", err)
	}
	return ranked, nil
}
