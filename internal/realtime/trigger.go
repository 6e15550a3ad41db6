// Package realtime recomputes single-ticker aggregates as soon as
// classified posts are persisted, and pushes the result to websocket
// subscribers.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/aegis-pulse/internal/aggregator"
	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/storage"
	"github.com/wonny/aegis-pulse/pkg/logger"
	"github.com/wonny/aegis-pulse/pkg/metrics"
	"github.com/wonny/aegis-pulse/pkg/redis"
)

// DefaultMinConfidence is the entry confidence a recompute requires
const DefaultMinConfidence = 0.3

// Repository is the part of storage the trigger needs
type Repository interface {
	UpsertPosts(ctx context.Context, posts []contracts.RawPost) (int, error)
	SentimentEntries(ctx context.Context, ticker string, since time.Time) ([]contracts.SentimentEntry, error)
	UpsertAggregates(ctx context.Context, aggs []contracts.SentimentAggregate) error
}

// Options configures a Trigger
type Options struct {
	Periods       []string
	Strategy      aggregator.Strategy
	MinConfidence float64
	CacheTTL      time.Duration
}

type window struct {
	period string
	span   time.Duration
}

// Trigger implements the per-ticker recompute hook
// ⭐ SSOT: 실시간 집계 재계산은 여기서만
type Trigger struct {
	repo          Repository
	agg           *aggregator.Aggregator
	strategy      aggregator.Strategy
	windows       []window
	minConfidence float64

	hub      Broadcaster
	cache    *redis.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *logger.Logger
}

// BatchReport summarizes one OnBatchClassified call
type BatchReport struct {
	Persisted  int                            `json:"persisted"`
	Tickers    []string                       `json:"tickers"`
	Aggregates []contracts.SentimentAggregate `json:"-"`
	Failed     map[string]error               `json:"-"`
}

// FailedTickers lists tickers whose recompute failed
func (r *BatchReport) FailedTickers() []string {
	out := make([]string, 0, len(r.Failed))
	for _, t := range r.Tickers {
		if _, ok := r.Failed[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// New creates a trigger; every period must parse
func New(repo Repository, agg *aggregator.Aggregator, opts Options, log *logger.Logger) (*Trigger, error) {
	if len(opts.Periods) == 0 {
		opts.Periods = []string{aggregator.Period24h, aggregator.Period7d, aggregator.Period30d}
	}
	windows := make([]window, 0, len(opts.Periods))
	for _, p := range opts.Periods {
		span, err := aggregator.ParsePeriod(p)
		if err != nil {
			return nil, err
		}
		windows = append(windows, window{period: p, span: span})
	}
	if opts.Strategy == "" {
		opts.Strategy = aggregator.Hybrid
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = redis.TTLMedium
	}

	return &Trigger{
		repo:          repo,
		agg:           agg,
		strategy:      opts.Strategy,
		windows:       windows,
		minConfidence: opts.MinConfidence,
		cacheTTL:      opts.CacheTTL,
		now:           time.Now,
		logger:        log.WithComponent("trigger"),
	}, nil
}

// WithHub publishes every overwritten aggregate on b
func (t *Trigger) WithHub(b Broadcaster) *Trigger {
	t.hub = b
	return t
}

// WithCache refreshes the aggregate cache after every overwrite
func (t *Trigger) WithCache(c *redis.Cache) *Trigger {
	t.cache = c
	return t
}

// WithMetrics counts recomputes
func (t *Trigger) WithMetrics(m *metrics.Metrics) *Trigger {
	t.metrics = m
	return t
}

// WithClock overrides the window reference time
func (t *Trigger) WithClock(now func() time.Time) *Trigger {
	t.now = now
	return t
}

// Periods returns the configured aggregation periods
func (t *Trigger) Periods() []string {
	out := make([]string, len(t.windows))
	for i, w := range t.windows {
		out[i] = w.period
	}
	return out
}

// Qualifies reports whether an entry should cause a recompute
func (t *Trigger) Qualifies(ticker string, confidence float64) bool {
	return ticker != "" && confidence > t.minConfidence
}

// OnPostClassified persists post, then recomputes entry's ticker if the
// entry qualifies
func (t *Trigger) OnPostClassified(ctx context.Context, post contracts.RawPost, entry contracts.SentimentEntry) error {
	_, err := t.OnPostEntries(ctx, post, []contracts.SentimentEntry{entry})
	return err
}

// OnPostEntries persists post once, then recomputes the ticker of every
// qualifying entry. It stops at the first failed recompute.
func (t *Trigger) OnPostEntries(ctx context.Context, post contracts.RawPost, entries []contracts.SentimentEntry) ([]contracts.SentimentAggregate, error) {
	if _, err := t.repo.UpsertPosts(ctx, []contracts.RawPost{post}); err != nil {
		return nil, fmt.Errorf("persist classified post: %w", err)
	}

	var (
		out  []contracts.SentimentAggregate
		done = make(map[string]bool, len(entries))
	)
	for _, entry := range entries {
		if !t.Qualifies(entry.Ticker, entry.Confidence) {
			t.logger.WithFields(map[string]interface{}{
				"post":       post.Key(),
				"ticker":     entry.Ticker,
				"confidence": entry.Confidence,
			}).Debug("Entry below trigger threshold, skipping recompute")
			continue
		}
		if done[entry.Ticker] {
			continue
		}
		done[entry.Ticker] = true

		aggs, err := t.Recompute(ctx, entry.Ticker)
		if err != nil {
			return out, err
		}
		out = append(out, aggs...)
	}
	return out, nil
}

// OnBatchClassified persists posts, then recomputes each distinct
// qualifying ticker once. A failed ticker never stops the others.
func (t *Trigger) OnBatchClassified(ctx context.Context, posts []contracts.RawPost) (*BatchReport, error) {
	n, err := t.repo.UpsertPosts(ctx, posts)
	if err != nil {
		return nil, fmt.Errorf("persist classified posts: %w", err)
	}

	report := &BatchReport{
		Persisted: n,
		Tickers:   t.QualifyingTickers(posts),
		Failed:    make(map[string]error),
	}

	for _, ticker := range report.Tickers {
		if ctx.Err() != nil {
			report.Failed[ticker] = ctx.Err()
			continue
		}
		aggs, err := t.Recompute(ctx, ticker)
		if err != nil {
			report.Failed[ticker] = err
			continue
		}
		report.Aggregates = append(report.Aggregates, aggs...)
	}

	t.logger.WithFields(map[string]interface{}{
		"persisted":  report.Persisted,
		"tickers":    len(report.Tickers),
		"aggregates": len(report.Aggregates),
		"failed":     len(report.Failed),
	}).Info("Batch recompute completed")

	return report, nil
}

// QualifyingTickers returns the distinct qualifying tickers of every
// classified (post, ticker) pair, in first-seen order
func (t *Trigger) QualifyingTickers(posts []contracts.RawPost) []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range posts {
		for _, ts := range posts[i].Classified() {
			if !t.Qualifies(ts.Ticker, ts.Confidence) {
				continue
			}
			if _, ok := seen[ts.Ticker]; ok {
				continue
			}
			seen[ts.Ticker] = struct{}{}
			out = append(out, ts.Ticker)
		}
	}
	return out
}

// Recompute rebuilds ticker's aggregate for every period from the full
// current entry set and overwrites the stored rows. Periods without
// entries are left untouched.
func (t *Trigger) Recompute(ctx context.Context, ticker string) ([]contracts.SentimentAggregate, error) {
	now := t.now()

	aggs := make([]contracts.SentimentAggregate, 0, len(t.windows))
	for _, w := range t.windows {
		entries, err := t.repo.SentimentEntries(ctx, ticker, now.Add(-w.span))
		if err != nil {
			t.observe("failed")
			return nil, fmt.Errorf("load entries for %s/%s: %w", ticker, w.period, err)
		}

		agg, err := t.agg.AggregateTicker(ticker, entries, t.strategy, w.period)
		if errors.Is(err, aggregator.ErrNoEntries) {
			continue
		}
		if err != nil {
			t.observe("failed")
			return nil, fmt.Errorf("aggregate %s/%s: %w", ticker, w.period, err)
		}
		aggs = append(aggs, agg)
	}

	if len(aggs) == 0 {
		t.observe("empty")
		return nil, nil
	}

	if err := t.repo.UpsertAggregates(ctx, aggs); err != nil {
		t.observe("failed")
		return nil, fmt.Errorf("overwrite aggregates for %s: %w", ticker, err)
	}
	t.observe("success")

	for i := range aggs {
		t.publish(ctx, &aggs[i])
	}
	return aggs, nil
}

// publish is best effort: cache and websocket errors are logged only
func (t *Trigger) publish(ctx context.Context, agg *contracts.SentimentAggregate) {
	if t.metrics != nil {
		t.metrics.AggregatesWritten.WithLabelValues(agg.Period).Inc()
	}

	if t.cache != nil {
		if err := t.cache.Set(ctx, redis.AggregateKey(agg.Ticker, agg.Period), agg, t.cacheTTL); err != nil {
			t.logger.WithError(err).WithField("ticker", agg.Ticker).Warn("Failed to refresh aggregate cache")
		}
		if err := t.cache.Delete(ctx, redis.AggregateListKey(agg.Period)); err != nil {
			t.logger.WithError(err).WithField("period", agg.Period).Warn("Failed to invalidate aggregate list cache")
		}
	}

	if t.hub != nil {
		snapshot := *agg
		t.hub.Broadcast(Update{Type: UpdateAggregate, Aggregate: &snapshot, Timestamp: agg.CalculatedAt})
	}
}

func (t *Trigger) observe(status string) {
	if t.metrics != nil {
		t.metrics.Recomputes.WithLabelValues(status).Inc()
	}
}

var _ Repository = (storage.Store)(nil)
