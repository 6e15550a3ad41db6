package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-pulse/internal/aggregator"
	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/storage"
	"github.com/wonny/aegis-pulse/internal/storage/memory"
	"github.com/wonny/aegis-pulse/internal/storage/storagetest"
	"github.com/wonny/aegis-pulse/pkg/logger"
	"github.com/wonny/aegis-pulse/pkg/metrics"
)

var base = storagetest.Base

type recordingHub struct {
	mu      sync.Mutex
	updates []Update
}

func (h *recordingHub) Broadcast(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, u)
}

// countingRepo counts entry loads and can fail one ticker
type countingRepo struct {
	*memory.Store
	mu       sync.Mutex
	loads    map[string]int
	failFor  string
	failWith error
}

func (r *countingRepo) SentimentEntries(ctx context.Context, ticker string, since time.Time) ([]contracts.SentimentEntry, error) {
	r.mu.Lock()
	r.loads[ticker]++
	r.mu.Unlock()
	if ticker == r.failFor {
		return nil, r.failWith
	}
	return r.Store.SentimentEntries(ctx, ticker, since)
}

func newAggregator() *aggregator.Aggregator {
	return aggregator.New(aggregator.DefaultParams(), aggregator.WithClock(func() time.Time { return base }))
}

func newTrigger(t *testing.T, repo Repository) (*Trigger, *recordingHub) {
	t.Helper()
	tr, err := New(repo, newAggregator(), Options{Periods: []string{"24h", "7d"}}, logger.Nop())
	require.NoError(t, err)
	hub := &recordingHub{}
	tr.WithHub(hub).WithClock(func() time.Time { return base })
	return tr, hub
}

func classified(id, ticker string, score, confidence float64, ago time.Duration) contracts.RawPost {
	p := storagetest.Classified(storagetest.Post(id, ago), ticker, score)
	p.Confidence = confidence
	p.Sentiments[0].Confidence = confidence
	return p
}

func TestNew_InvalidPeriod(t *testing.T) {
	_, err := New(memory.New(), newAggregator(), Options{Periods: []string{"24h", "soon"}}, logger.Nop())
	require.Error(t, err)
}

func TestOnPostClassified_BelowThreshold(t *testing.T) {
	store := memory.New()
	tr, hub := newTrigger(t, store)
	ctx := context.Background()

	p := classified("p1", "NVDA", 0.5, 0.3, time.Hour)
	entry, ok := p.Entry()
	require.True(t, ok)

	require.NoError(t, tr.OnPostClassified(ctx, p, entry))

	posts, err := store.ListPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	assert.Len(t, posts, 1, "post is persisted even without a recompute")

	_, err = store.GetAggregate(ctx, "NVDA", "24h")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, hub.updates)
}

func TestOnPostClassified_NoTicker(t *testing.T) {
	store := memory.New()
	tr, _ := newTrigger(t, store)

	p := storagetest.Post("p1", time.Hour)
	require.NoError(t, tr.OnPostClassified(context.Background(), p, contracts.SentimentEntry{Confidence: 0.9}))

	aggs, err := store.ListAggregates(context.Background(), "24h", 0)
	require.NoError(t, err)
	assert.Empty(t, aggs)
}

func TestOnPostClassified_RecomputesEveryPeriod(t *testing.T) {
	store := memory.New()
	tr, hub := newTrigger(t, store)
	m := metrics.New()
	tr.WithMetrics(m)
	ctx := context.Background()

	p := classified("p1", "NVDA", 0.6, 0.9, time.Hour)
	entry, _ := p.Entry()
	require.NoError(t, tr.OnPostClassified(ctx, p, entry))

	for _, period := range []string{"24h", "7d"} {
		agg, err := store.GetAggregate(ctx, "NVDA", period)
		require.NoError(t, err, period)
		assert.InDelta(t, 0.6, agg.Score, 1e-9, "single entry keeps its own score")
		assert.Equal(t, contracts.LabelPositive, agg.Label)
		assert.Equal(t, 1, agg.TotalMentions)
	}

	require.Len(t, hub.updates, 2)
	assert.Equal(t, UpdateAggregate, hub.updates[0].Type)
	assert.Equal(t, "NVDA", hub.updates[0].Aggregate.Ticker)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Recomputes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AggregatesWritten.WithLabelValues("7d")))
}

func TestOnPostClassified_PeriodWithoutEntriesUntouched(t *testing.T) {
	store := memory.New()
	tr, _ := newTrigger(t, store)
	ctx := context.Background()

	// three days old: inside 7d, outside 24h
	p := classified("old", "AMD", -0.4, 0.9, 72*time.Hour)
	entry, _ := p.Entry()
	require.NoError(t, tr.OnPostClassified(ctx, p, entry))

	_, err := store.GetAggregate(ctx, "AMD", "24h")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	agg, err := store.GetAggregate(ctx, "AMD", "7d")
	require.NoError(t, err)
	assert.Equal(t, contracts.LabelNegative, agg.Label)
}

func TestOnBatchClassified_OneRecomputePerTicker(t *testing.T) {
	repo := &countingRepo{Store: memory.New(), loads: map[string]int{}}
	tr, _ := newTrigger(t, repo)
	ctx := context.Background()

	posts := []contracts.RawPost{
		classified("p1", "NVDA", 0.5, 0.9, time.Hour),
		classified("p2", "AMD", 0.2, 0.8, 2*time.Hour),
		classified("p3", "NVDA", 0.7, 0.6, 3*time.Hour),
		classified("p4", "TSLA", -0.5, 0.2, time.Hour), // below threshold
		storagetest.Post("p5", time.Hour),              // unclassified
		classified("p6", "NVDA", 0.1, 0.9, 4*time.Hour),
	}

	report, err := tr.OnBatchClassified(ctx, posts)
	require.NoError(t, err)

	assert.Equal(t, 6, report.Persisted)
	assert.Equal(t, []string{"NVDA", "AMD"}, report.Tickers)
	assert.Empty(t, report.Failed)
	assert.Len(t, report.Aggregates, 4)

	// one load per period, never per post
	assert.Equal(t, map[string]int{"NVDA": 2, "AMD": 2}, repo.loads)

	agg, err := repo.GetAggregate(ctx, "NVDA", "24h")
	require.NoError(t, err)
	assert.Equal(t, 3, agg.TotalMentions)
	assert.Equal(t, 3, agg.UniquePosts)
}

func TestOnBatchClassified_IsolatesFailedTicker(t *testing.T) {
	repo := &countingRepo{
		Store:    memory.New(),
		loads:    map[string]int{},
		failFor:  "AMD",
		failWith: errors.New("connection reset"),
	}
	tr, hub := newTrigger(t, repo)
	ctx := context.Background()

	posts := []contracts.RawPost{
		classified("p1", "AMD", 0.2, 0.8, time.Hour),
		classified("p2", "NVDA", 0.5, 0.9, time.Hour),
	}

	report, err := tr.OnBatchClassified(ctx, posts)
	require.NoError(t, err)

	assert.Equal(t, []string{"AMD"}, report.FailedTickers())
	assert.ErrorContains(t, report.Failed["AMD"], "connection reset")

	_, err = repo.GetAggregate(ctx, "NVDA", "24h")
	assert.NoError(t, err, "NVDA is recomputed despite the AMD failure")
	assert.Len(t, hub.updates, 2)
}

func TestRealtimeAfterBatch_MatchesFullRecompute(t *testing.T) {
	store := memory.New()
	tr, _ := newTrigger(t, store)
	ctx := context.Background()

	batch := []contracts.RawPost{
		classified("p1", "NVDA", 0.5, 0.9, 5*time.Hour),
		classified("p2", "NVDA", -0.3, 0.7, 3*time.Hour),
		classified("p3", "NVDA", 0.8, 0.5, 2*time.Hour),
	}
	_, err := tr.OnBatchClassified(ctx, batch)
	require.NoError(t, err)

	late := classified("p4", "NVDA", 0.4, 0.95, 10*time.Minute)
	entry, _ := late.Entry()
	require.NoError(t, tr.OnPostClassified(ctx, late, entry))

	// re-sending a persisted post must not double count
	require.NoError(t, tr.OnPostClassified(ctx, late, entry))

	all := append(append([]contracts.RawPost{}, batch...), late)
	want, err := newAggregator().AggregateTicker("NVDA", storage.Entries(all), aggregator.Hybrid, "24h")
	require.NoError(t, err)

	got, err := store.GetAggregate(ctx, "NVDA", "24h")
	require.NoError(t, err)
	assert.InDelta(t, want.Score, got.Score, 1e-12)
	assert.Equal(t, want.TotalMentions, got.TotalMentions)
	assert.Equal(t, 4, got.UniquePosts)
	assert.Equal(t, want.Trend, got.Trend)
}

func TestOnBatchClassified_PersistFailure(t *testing.T) {
	tr, _ := newTrigger(t, &failingRepo{Store: memory.New()})
	_, err := tr.OnBatchClassified(context.Background(), []contracts.RawPost{classified("p1", "NVDA", 0.5, 0.9, time.Hour)})
	require.Error(t, err)
	assert.ErrorContains(t, err, "persist classified posts")
}

type failingRepo struct{ *memory.Store }

func (failingRepo) UpsertPosts(context.Context, []contracts.RawPost) (int, error) {
	return 0, errors.New("disk full")
}

func TestOnBatchClassified_CoMentionedTickers(t *testing.T) {
	repo := &countingRepo{Store: memory.New(), loads: map[string]int{}}
	tr, _ := newTrigger(t, repo)
	ctx := context.Background()

	posts := []contracts.RawPost{
		storagetest.ClassifiedMany(storagetest.Post("p1", time.Hour),
			contracts.TickerSentiment{Ticker: "AAPL", Score: 0.5, Confidence: 0.9},
			contracts.TickerSentiment{Ticker: "MSFT", Score: 0.6, Confidence: 0.8},
		),
		storagetest.ClassifiedMany(storagetest.Post("p2", 2*time.Hour),
			contracts.TickerSentiment{Ticker: "AAPL", Score: 0.3, Confidence: 0.9},
			contracts.TickerSentiment{Ticker: "MSFT", Score: 0.2, Confidence: 0.2}, // below threshold
		),
	}

	report, err := tr.OnBatchClassified(ctx, posts)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, report.Tickers)
	assert.Equal(t, map[string]int{"AAPL": 2, "MSFT": 2}, repo.loads)

	msft, err := repo.GetAggregate(ctx, "MSFT", "24h")
	require.NoError(t, err, "secondary ticker gets its own aggregate")
	assert.Equal(t, 2, msft.UniquePosts)

	aapl, err := repo.GetAggregate(ctx, "AAPL", "24h")
	require.NoError(t, err)
	assert.Equal(t, 2, aapl.UniquePosts)
	assert.InDelta(t, 0.4, aapl.Score, 0.1)
}

func TestOnPostEntries_RecomputesEachTickerOnce(t *testing.T) {
	repo := &countingRepo{Store: memory.New(), loads: map[string]int{}}
	tr, hub := newTrigger(t, repo)
	ctx := context.Background()

	p := storagetest.ClassifiedMany(storagetest.Post("p1", time.Hour),
		contracts.TickerSentiment{Ticker: "AAPL", Score: 0.5, Confidence: 0.9},
		contracts.TickerSentiment{Ticker: "MSFT", Score: -0.6, Confidence: 0.8},
	)
	entries := p.Entries()
	entries = append(entries, entries[0]) // duplicate ticker

	aggs, err := tr.OnPostEntries(ctx, p, entries)
	require.NoError(t, err)
	assert.Len(t, aggs, 4, "two tickers, two periods")
	assert.Equal(t, map[string]int{"AAPL": 2, "MSFT": 2}, repo.loads)
	assert.Len(t, hub.updates, 4)

	msft, err := repo.GetAggregate(ctx, "MSFT", "7d")
	require.NoError(t, err)
	assert.Equal(t, contracts.LabelNegative, msft.Label)
}
