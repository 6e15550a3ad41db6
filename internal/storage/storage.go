// Package storage defines the persistence contracts of the pipeline.
// Implementations live in storage/postgres and storage/memory.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/aegis-pulse/internal/contracts"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// PostFilter selects raw posts
type PostFilter struct {
	Since          time.Time // created_at >= Since; zero means no bound
	Ticker         string // any classified ticker of the post
	Source         contracts.Source
	ClassifiedOnly bool
	Limit          int // 0 means no limit
}

// Match reports whether p passes the filter
func (f PostFilter) Match(p contracts.RawPost) bool {
	if !f.Since.IsZero() && p.CreatedAt.Before(f.Since) {
		return false
	}
	if f.Ticker != "" {
		if _, ok := p.EntryFor(f.Ticker); !ok {
			return false
		}
	}
	if f.Source != "" && p.Source != f.Source {
		return false
	}
	if f.ClassifiedOnly && !p.IsClassified() {
		return false
	}
	return true
}

// PostRepository stores raw posts and the display mirror
// ⭐ SSOT: social_posts / social_posts_display 접근
type PostRepository interface {
	// UpsertPosts inserts posts keyed by (source, external_id); engagement
	// is refreshed and classification kept unless the new row carries one
	UpsertPosts(ctx context.Context, posts []contracts.RawPost) (int, error)
	ListPosts(ctx context.Context, f PostFilter) ([]contracts.RawPost, error)
	// SentimentEntries returns the entries of classified posts for ticker
	SentimentEntries(ctx context.Context, ticker string, since time.Time) ([]contracts.SentimentEntry, error)
	UpsertDisplay(ctx context.Context, posts []contracts.RawPost) error
	DeletePostsBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteDisplayBefore(ctx context.Context, before time.Time) (int64, error)
}

// AggregateRepository stores one current aggregate per (ticker, period)
// ⭐ SSOT: sentiment_aggregates 접근
type AggregateRepository interface {
	UpsertAggregates(ctx context.Context, aggs []contracts.SentimentAggregate) error
	GetAggregate(ctx context.Context, ticker, period string) (*contracts.SentimentAggregate, error)
	// ListAggregates orders by total_mentions desc, then ticker
	ListAggregates(ctx context.Context, period string, limit int) ([]contracts.SentimentAggregate, error)
}

// RankingRepository stores the current post ranking
// ⭐ SSOT: post_rankings 접근
type RankingRepository interface {
	// ReplaceRankings swaps the whole ranking atomically
	ReplaceRankings(ctx context.Context, ranked []contracts.RankedPost) error
	TopRanked(ctx context.Context, limit int) ([]contracts.RankedPost, error)
}

// Store bundles every repository
type Store interface {
	PostRepository
	AggregateRepository
	RankingRepository
	Ping(ctx context.Context) error
	Close()
}

// Entries converts classified posts into sentiment entries, one per
// (post, ticker) pair
func Entries(posts []contracts.RawPost) []contracts.SentimentEntry {
	out := make([]contracts.SentimentEntry, 0, len(posts))
	for i := range posts {
		out = append(out, posts[i].Entries()...)
	}
	return out
}

// EntriesFor returns the entries posts contribute to ticker
func EntriesFor(posts []contracts.RawPost, ticker string) []contracts.SentimentEntry {
	out := make([]contracts.SentimentEntry, 0, len(posts))
	for i := range posts {
		if e, ok := posts[i].EntryFor(ticker); ok {
			out = append(out, e)
		}
	}
	return out
}

// DisplayTitle is the first line of a post, bounded for the mirror table
func DisplayTitle(text string) string {
	for i, r := range text {
		if r == '\n' {
			text = text[:i]
			break
		}
	}
	const maxTitle = 300
	if len(text) > maxTitle {
		cut := maxTitle
		for cut > 0 && text[cut]&0xC0 == 0x80 {
			cut--
		}
		text = text[:cut]
	}
	return text
}
