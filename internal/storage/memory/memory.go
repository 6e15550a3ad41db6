// Package memory is an in-process storage.Store used by tests and by
// STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/storage"
)

type aggKey struct {
	ticker string
	period string
}

// Store keeps every table in maps guarded by one mutex
type Store struct {
	mu         sync.RWMutex
	posts      map[string]contracts.RawPost
	display    map[string]contracts.RawPost
	aggregates map[aggKey]contracts.SentimentAggregate
	rankings   []contracts.RankedPost
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		posts:      make(map[string]contracts.RawPost),
		display:    make(map[string]contracts.RawPost),
		aggregates: make(map[aggKey]contracts.SentimentAggregate),
	}
}

// Ping implements storage.Store
func (s *Store) Ping(context.Context) error { return nil }

// Close implements storage.Store
func (s *Store) Close() {}

// UpsertPosts implements storage.PostRepository
func (s *Store) UpsertPosts(ctx context.Context, posts []contracts.RawPost) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range posts {
		key := p.Key()
		next := clonePost(p)
		if old, ok := s.posts[key]; ok {
			// created_at is never rewritten by a re-collect
			next.CreatedAt = old.CreatedAt
			if !p.IsClassified() {
				keepClassification(&next, old)
			}
		}
		s.posts[key] = next
	}
	return len(posts), nil
}

// ListPosts implements storage.PostRepository, newest first
func (s *Store) ListPosts(ctx context.Context, f storage.PostFilter) ([]contracts.RawPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.RawPost, 0)
	for _, p := range s.posts {
		if f.Match(p) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Key() < out[j].Key()
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// SentimentEntries implements storage.PostRepository
func (s *Store) SentimentEntries(ctx context.Context, ticker string, since time.Time) ([]contracts.SentimentEntry, error) {
	posts, err := s.ListPosts(ctx, storage.PostFilter{Since: since, Ticker: ticker, ClassifiedOnly: true})
	if err != nil {
		return nil, err
	}
	// chronological, as the aggregator's trend split expects
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreatedAt.Before(posts[j].CreatedAt) })
	return storage.EntriesFor(posts, ticker), nil
}

// UpsertDisplay implements storage.PostRepository
func (s *Store) UpsertDisplay(ctx context.Context, posts []contracts.RawPost) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range posts {
		s.display[p.Key()] = clonePost(p)
	}
	return nil
}

// DisplayCount returns the mirror size (tests)
func (s *Store) DisplayCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.display)
}

// DeletePostsBefore implements storage.PostRepository; rankings of deleted
// posts go with them
func (s *Store) DeletePostsBefore(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, p := range s.posts {
		if p.CreatedAt.Before(before) {
			delete(s.posts, k)
			n++
		}
	}

	kept := s.rankings[:0]
	for _, r := range s.rankings {
		if _, ok := s.posts[r.Post.Key()]; ok {
			kept = append(kept, r)
		}
	}
	s.rankings = kept
	return n, nil
}

// DeleteDisplayBefore implements storage.PostRepository
func (s *Store) DeleteDisplayBefore(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, p := range s.display {
		if p.CreatedAt.Before(before) {
			delete(s.display, k)
			n++
		}
	}
	return n, nil
}

// UpsertAggregates implements storage.AggregateRepository
func (s *Store) UpsertAggregates(ctx context.Context, aggs []contracts.SentimentAggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range aggs {
		s.aggregates[aggKey{a.Ticker, a.Period}] = a
	}
	return nil
}

// GetAggregate implements storage.AggregateRepository
func (s *Store) GetAggregate(ctx context.Context, ticker, period string) (*contracts.SentimentAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.aggregates[aggKey{ticker, period}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

// ListAggregates implements storage.AggregateRepository
func (s *Store) ListAggregates(ctx context.Context, period string, limit int) ([]contracts.SentimentAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.SentimentAggregate, 0)
	for k, a := range s.aggregates {
		if k.period == period {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalMentions != out[j].TotalMentions {
			return out[i].TotalMentions > out[j].TotalMentions
		}
		return out[i].Ticker < out[j].Ticker
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ReplaceRankings implements storage.RankingRepository
func (s *Store) ReplaceRankings(ctx context.Context, ranked []contracts.RankedPost) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rankings = append([]contracts.RankedPost(nil), ranked...)
	return nil
}

// TopRanked implements storage.RankingRepository
func (s *Store) TopRanked(ctx context.Context, limit int) ([]contracts.RankedPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.rankings)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]contracts.RankedPost(nil), s.rankings[:n]...), nil
}

// keepClassification carries the stored classification over an
// unclassified re-collect
func keepClassification(next *contracts.RawPost, old contracts.RawPost) {
	next.Sentiments = old.Sentiments
	next.Ticker = old.Ticker
	next.MentionCount = old.MentionCount
	next.SentimentScore = old.SentimentScore
	next.SentimentLabel = old.SentimentLabel
	next.Confidence = old.Confidence
	next.KeyThemes = old.KeyThemes
	next.ClassifiedAt = old.ClassifiedAt
}

func clonePost(p contracts.RawPost) contracts.RawPost {
	p.Tickers = append([]string(nil), p.Tickers...)
	p.KeyThemes = append([]string(nil), p.KeyThemes...)
	if p.Sentiments != nil {
		sentiments := make([]contracts.TickerSentiment, len(p.Sentiments))
		for i, ts := range p.Sentiments {
			ts.KeyThemes = append([]string(nil), ts.KeyThemes...)
			sentiments[i] = ts
		}
		p.Sentiments = sentiments
	}
	if p.ClassifiedAt != nil {
		ts := *p.ClassifiedAt
		p.ClassifiedAt = &ts
	}
	return p
}
