package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/storage"
)

const postColumns = `source, external_id, author, created_at, text_content, url,
	likes, replies, reshares, quotes, platform_metadata, provenance,
	tickers, ticker, mention_count, sentiment_score, sentiment_label,
	confidence, key_themes, classified_at`

// sentimentsColumn folds a post's post_sentiments rows into one JSON array
const sentimentsColumn = `COALESCE((
	SELECT jsonb_agg(jsonb_build_object(
		'ticker', ps.ticker,
		'sentiment_score', ps.sentiment_score,
		'sentiment_label', ps.sentiment_label,
		'confidence', ps.confidence,
		'key_themes', ps.key_themes
	) ORDER BY ps.position)
	FROM post_sentiments ps
	WHERE ps.source = social_posts.source AND ps.external_id = social_posts.external_id
), '[]'::jsonb)`

const selectPostsSQL = "SELECT " + postColumns + ", " + sentimentsColumn + " FROM social_posts"

// hasTickerSQL matches posts classified for the ticker in parameter $%d
const hasTickerSQL = `EXISTS (
	SELECT 1 FROM post_sentiments ps
	WHERE ps.source = social_posts.source AND ps.external_id = social_posts.external_id
	  AND ps.ticker = $%d)`

// Classification columns keep their stored value unless the incoming row
// is classified.
const upsertPostSQL = `
	INSERT INTO social_posts (` + postColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	ON CONFLICT (source, external_id) DO UPDATE SET
		author            = EXCLUDED.author,
		text_content      = EXCLUDED.text_content,
		url               = EXCLUDED.url,
		likes             = EXCLUDED.likes,
		replies           = EXCLUDED.replies,
		reshares          = EXCLUDED.reshares,
		quotes            = EXCLUDED.quotes,
		platform_metadata = EXCLUDED.platform_metadata,
		provenance        = EXCLUDED.provenance,
		tickers           = EXCLUDED.tickers,
		ticker            = CASE WHEN EXCLUDED.classified_at IS NULL THEN social_posts.ticker ELSE EXCLUDED.ticker END,
		mention_count     = CASE WHEN EXCLUDED.classified_at IS NULL THEN social_posts.mention_count ELSE EXCLUDED.mention_count END,
		sentiment_score   = CASE WHEN EXCLUDED.classified_at IS NULL THEN social_posts.sentiment_score ELSE EXCLUDED.sentiment_score END,
		sentiment_label   = CASE WHEN EXCLUDED.classified_at IS NULL THEN social_posts.sentiment_label ELSE EXCLUDED.sentiment_label END,
		confidence        = CASE WHEN EXCLUDED.classified_at IS NULL THEN social_posts.confidence ELSE EXCLUDED.confidence END,
		key_themes        = CASE WHEN EXCLUDED.classified_at IS NULL THEN social_posts.key_themes ELSE EXCLUDED.key_themes END,
		classified_at     = COALESCE(EXCLUDED.classified_at, social_posts.classified_at)
`

// UpsertPosts implements storage.PostRepository
func (s *Store) UpsertPosts(ctx context.Context, posts []contracts.RawPost) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, p := range posts {
		var (
			ticker, label *string
			classifiedAt  *time.Time
		)
		classified := p.IsClassified()
		if classified {
			ticker = nullable(p.Ticker)
			label = nullable(string(p.SentimentLabel))
			classifiedAt = p.ClassifiedAt
		}
		batch.Queue(upsertPostSQL,
			p.Source, p.ExternalID, p.Author, p.CreatedAt, p.Text, p.URL,
			p.Engagement.Likes, p.Engagement.Replies, p.Engagement.Reshares, p.Engagement.Quotes,
			p.Metadata, p.Provenance,
			nonNil(p.Tickers), ticker, p.MentionCount, p.SentimentScore, label,
			p.Confidence, nonNil(p.KeyThemes), classifiedAt,
		)
		if classified {
			queueSentiments(batch, p)
		}
	}

	err := s.db.InTx(ctx, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, fmt.Errorf("upsert %d posts: %w", len(posts), err)
	}
	return len(posts), nil
}

// queueSentiments replaces the per-ticker rows of a classified post
func queueSentiments(batch *pgx.Batch, p contracts.RawPost) {
	batch.Queue(`DELETE FROM post_sentiments WHERE source = $1 AND external_id = $2`, p.Source, p.ExternalID)
	for i, ts := range p.Classified() {
		label := ts.Label
		if label == "" {
			label = contracts.LabelFor(ts.Score)
		}
		batch.Queue(`
			INSERT INTO post_sentiments (
				source, external_id, ticker, position,
				sentiment_score, sentiment_label, confidence, key_themes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (source, external_id, ticker) DO NOTHING
		`,
			p.Source, p.ExternalID, ts.Ticker, i,
			ts.Score, string(label), ts.Confidence, nonNil(ts.KeyThemes),
		)
	}
}

// ListPosts implements storage.PostRepository, newest first
func (s *Store) ListPosts(ctx context.Context, f storage.PostFilter) ([]contracts.RawPost, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if f.Ticker != "" {
		add(hasTickerSQL, f.Ticker)
	}
	if f.Source != "" {
		add("source = $%d", f.Source)
	}
	if f.ClassifiedOnly {
		where = append(where, "classified_at IS NOT NULL AND ticker IS NOT NULL")
	}

	query := selectPostsSQL
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, source, external_id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	posts, err := pgx.CollectRows(rows, scanPost)
	if err != nil {
		return nil, fmt.Errorf("scan posts: %w", err)
	}
	return posts, nil
}

// SentimentEntries implements storage.PostRepository
func (s *Store) SentimentEntries(ctx context.Context, ticker string, since time.Time) ([]contracts.SentimentEntry, error) {
	rows, err := s.pool.Query(ctx, selectPostsSQL+`
		WHERE `+fmt.Sprintf(hasTickerSQL, 1)+`
		  AND classified_at IS NOT NULL AND created_at >= $2
		ORDER BY created_at ASC, source, external_id
	`, ticker, since)
	if err != nil {
		return nil, fmt.Errorf("query entries %s: %w", ticker, err)
	}
	posts, err := pgx.CollectRows(rows, scanPost)
	if err != nil {
		return nil, fmt.Errorf("scan entries %s: %w", ticker, err)
	}
	return storage.EntriesFor(posts, ticker), nil
}

// UpsertDisplay implements storage.PostRepository
func (s *Store) UpsertDisplay(ctx context.Context, posts []contracts.RawPost) error {
	if len(posts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range posts {
		batch.Queue(`
			INSERT INTO social_posts_display (
				source, external_id, author, title, url, ticker,
				sentiment_label, engagement, provenance, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (source, external_id) DO UPDATE SET
				title           = EXCLUDED.title,
				ticker          = EXCLUDED.ticker,
				sentiment_label = EXCLUDED.sentiment_label,
				engagement      = EXCLUDED.engagement,
				provenance      = EXCLUDED.provenance
		`,
			p.Source, p.ExternalID, p.Author, storage.DisplayTitle(p.Text), p.URL,
			nullable(p.Ticker), nullable(string(p.SentimentLabel)),
			p.Engagement.Total(), p.Provenance, p.CreatedAt,
		)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert display mirror: %w", err)
	}
	return nil
}

// DeletePostsBefore implements storage.PostRepository
func (s *Store) DeletePostsBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM social_posts WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete posts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteDisplayBefore implements storage.PostRepository
func (s *Store) DeleteDisplayBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM social_posts_display WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete display mirror: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPost(row pgx.CollectableRow) (contracts.RawPost, error) {
	var (
		p      contracts.RawPost
		ticker *string
		label  *string
	)
	err := row.Scan(
		&p.Source, &p.ExternalID, &p.Author, &p.CreatedAt, &p.Text, &p.URL,
		&p.Engagement.Likes, &p.Engagement.Replies, &p.Engagement.Reshares, &p.Engagement.Quotes,
		&p.Metadata, &p.Provenance,
		&p.Tickers, &ticker, &p.MentionCount, &p.SentimentScore, &label,
		&p.Confidence, &p.KeyThemes, &p.ClassifiedAt,
		&p.Sentiments,
	)
	if err != nil {
		return p, err
	}
	p.Ticker = deref(ticker)
	p.SentimentLabel = contracts.Label(deref(label))
	p.CreatedAt = p.CreatedAt.UTC()
	if p.ClassifiedAt != nil {
		ts := p.ClassifiedAt.UTC()
		p.ClassifiedAt = &ts
	}
	if len(p.Tickers) == 0 {
		p.Tickers = nil
	}
	if len(p.KeyThemes) == 0 {
		p.KeyThemes = nil
	}
	if len(p.Sentiments) == 0 {
		p.Sentiments = nil
	}
	for i := range p.Sentiments {
		if len(p.Sentiments[i].KeyThemes) == 0 {
			p.Sentiments[i].KeyThemes = nil
		}
	}
	return p, nil
}
