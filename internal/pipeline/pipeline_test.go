package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-pulse/internal/aggregator"
	"github.com/wonny/aegis-pulse/internal/classifier"
	"github.com/wonny/aegis-pulse/internal/collector"
	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/ranker"
	"github.com/wonny/aegis-pulse/internal/realtime"
	"github.com/wonny/aegis-pulse/internal/storage"
	"github.com/wonny/aegis-pulse/internal/storage/memory"
	"github.com/wonny/aegis-pulse/internal/ticker"
	"github.com/wonny/aegis-pulse/pkg/logger"
	"github.com/wonny/aegis-pulse/pkg/metrics"
	"github.com/wonny/aegis-pulse/pkg/redis"
	"github.com/wonny/aegis-pulse/pkg/redis/redistest"
)

var base = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func clock() time.Time { return base }

type stubCollector struct {
	name   string
	result *contracts.CollectResult
	err    error
	block  chan struct{}
}

func (s *stubCollector) Name() string { return s.name }

func (s *stubCollector) Collect(ctx context.Context) (*contracts.CollectResult, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.result, s.err
}

func redditPost(id, text string, ago time.Duration, tickers ...string) contracts.RawPost {
	return contracts.RawPost{
		Source:     contracts.SourceReddit,
		ExternalID: id,
		Author:     "u_" + id,
		CreatedAt:  base.Add(-ago),
		Text:       text,
		Engagement: contracts.Engagement{Likes: 40, Replies: 12},
		URL:        "https://www.reddit.com/r/stocks/" + id,
		Metadata:   contracts.PlatformMetadata{Subreddit: "stocks"},
		Provenance: contracts.ProvenanceLive,
		Tickers:    tickers,
	}
}

func livePosts() []contracts.RawPost {
	return []contracts.RawPost{
		redditPost("t3_a", "Loading $NVDA calls, breakout above 150 target", time.Hour, "NVDA"),
		redditPost("t3_b", "$NVDA bullish into earnings", 2*time.Hour, "NVDA"),
		redditPost("t3_c", "NVDA rally keeps going, buying more", 3*time.Hour, "NVDA"),
		redditPost("t3_d", "$AMD looks undervalued here", time.Hour, "AMD"),
	}
}

type fixture struct {
	store   *memory.Store
	metrics *metrics.Metrics
	p       *Pipeline
}

func newFixture(t *testing.T, collectors ...contracts.PostCollector) *fixture {
	t.Helper()
	log := logger.Nop()
	store := memory.New()
	m := metrics.New()

	agg := aggregator.New(aggregator.DefaultParams(), aggregator.WithClock(clock))
	tr, err := realtime.New(store, agg, realtime.Options{}, log)
	require.NoError(t, err)
	tr.WithClock(clock)

	cls := classifier.New(nil, classifier.DefaultOptions(), log).WithClock(clock)
	rk := ranker.NewRanker(ranker.DefaultParams(), ticker.New(), log)

	p := New(collectors, cls, tr, rk, store, Options{
		RawRetention:     30 * 24 * time.Hour,
		DisplayRetention: 7 * 24 * time.Hour,
	}, log).WithMetrics(m).WithClock(clock)

	return &fixture{store: store, metrics: m, p: p}
}

func TestRun_FullPass(t *testing.T) {
	reddit := &stubCollector{name: "reddit", result: &contracts.CollectResult{
		Source:      contracts.SourceReddit,
		Posts:       livePosts(),
		Succeeded:   []string{"stocks"},
		Quarantined: 1,
		Provenance:  contracts.ProvenanceLive,
	}}
	twitter := &stubCollector{name: "twitter", err: errors.New("401 unauthorized")}

	f := newFixture(t, reddit, twitter)
	ctx := context.Background()

	res, err := f.p.Run(ctx)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, base, res.Timestamp)
	assert.Equal(t, contracts.ProvenanceLive, res.Provenance)
	assert.Equal(t, 1, res.DataPoints, "AMD has a single mention and is filtered")
	assert.Equal(t, 3, res.Classified)
	assert.Equal(t, 3, res.Aggregates, "NVDA for 24h, 7d and 30d")
	assert.Equal(t, 4, res.TopPosts)
	assert.Equal(t, 1, res.Quarantined)
	assert.Equal(t, map[contracts.Source]int{contracts.SourceReddit: 4}, res.Collected)
	assert.Contains(t, res.SourceErrors, "twitter")
	assert.Equal(t, []string{StageCollect, StageClassify, StagePersist, StageRank, StagePrune}, res.CompletedStages)

	agg, err := f.store.GetAggregate(ctx, "NVDA", "24h")
	require.NoError(t, err)
	assert.Equal(t, 3, agg.TotalMentions)
	assert.Equal(t, contracts.LabelPositive, agg.Label)
	assert.Equal(t, contracts.ProvenanceLive, agg.Provenance)

	_, err = f.store.GetAggregate(ctx, "AMD", "24h")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	top, err := f.store.TopRanked(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 4)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, 4, f.store.DisplayCount())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PipelineRuns.WithLabelValues("success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.PostsCollected.WithLabelValues("reddit", "live")))
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.RankedPosts))
}

func TestRun_SecondRunDoesNotDoubleCount(t *testing.T) {
	reddit := &stubCollector{name: "reddit", result: &contracts.CollectResult{
		Source: contracts.SourceReddit, Posts: livePosts(), Provenance: contracts.ProvenanceLive,
	}}
	f := newFixture(t, reddit)
	ctx := context.Background()

	_, err := f.p.Run(ctx)
	require.NoError(t, err)
	_, err = f.p.Run(ctx)
	require.NoError(t, err)

	agg, err := f.store.GetAggregate(ctx, "NVDA", "24h")
	require.NoError(t, err)
	assert.Equal(t, 3, agg.TotalMentions)
	assert.Equal(t, 3, agg.UniquePosts)
}

func TestRun_FallbackProvenance(t *testing.T) {
	reddit := &stubCollector{name: "reddit", result: &contracts.CollectResult{
		Source:     contracts.SourceReddit,
		Posts:      collector.FallbackPosts(base),
		Failed:     []string{"wallstreetbets", "stocks"},
		Provenance: contracts.ProvenanceFallback,
	}}
	f := newFixture(t, reddit)

	res, err := f.p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, contracts.ProvenanceFallback, res.Provenance)
	assert.Zero(t, res.DataPoints)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SourceFailures.WithLabelValues("reddit")))
}

func TestRun_AllSourcesFailed(t *testing.T) {
	f := newFixture(t,
		&stubCollector{name: "reddit", err: errors.New("timeout")},
		&stubCollector{name: "twitter", err: errors.New("401")},
	)

	res, err := f.p.Run(context.Background())
	require.ErrorIs(t, err, collector.ErrAllSourcesFailed)
	assert.False(t, res.Success)
	assert.Empty(t, res.CompletedStages)
	assert.Len(t, res.SourceErrors, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PipelineRuns.WithLabelValues("failed")))
}

func TestRun_InProgress(t *testing.T) {
	block := make(chan struct{})
	slow := &stubCollector{name: "reddit", block: block, result: &contracts.CollectResult{
		Source: contracts.SourceReddit, Provenance: contracts.ProvenanceLive,
	}}
	f := newFixture(t, slow)

	done := make(chan error, 1)
	go func() {
		_, err := f.p.Run(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, err := f.p.Run(context.Background())
		return errors.Is(err, ErrRunInProgress)
	}, 2*time.Second, 5*time.Millisecond)

	close(block)
	require.NoError(t, <-done)
}

func TestPrune(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := redditPost("t3_old", "$NVDA old news", 40*24*time.Hour, "NVDA")
	week := redditPost("t3_week", "$NVDA last week", 8*24*time.Hour, "NVDA")
	fresh := redditPost("t3_new", "$NVDA today", time.Hour, "NVDA")
	all := []contracts.RawPost{old, week, fresh}

	_, err := f.store.UpsertPosts(ctx, all)
	require.NoError(t, err)
	require.NoError(t, f.store.UpsertDisplay(ctx, all))

	report, err := f.p.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Posts)
	assert.Equal(t, int64(2), report.Display)

	posts, err := f.store.ListPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestRank_Standalone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	repost := redditPost("t3_x", "$TSLA crosspost", time.Hour, "TSLA")
	repost.Metadata.IsRepost = true
	stale := redditPost("t3_y", "$TSLA yesterday", 30*time.Hour, "TSLA")
	live := redditPost("t3_z", "$TSLA breakout, calls at 250 target", time.Hour, "TSLA")

	_, err := f.store.UpsertPosts(ctx, []contracts.RawPost{repost, stale, live})
	require.NoError(t, err)

	n, err := f.p.Rank(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRank_InvalidatesRankingCache(t *testing.T) {
	cache := redis.NewCache(redistest.Start(t), "pipeline")
	f := newFixture(t)
	f.p.WithCache(cache)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, redis.RankingKey(20), []string{"stale"}, time.Minute))

	_, err := f.p.Rank(ctx)
	require.NoError(t, err)

	var got []string
	found, err := cache.Get(ctx, redis.RankingKey(20), &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRun_CoMentionedTickersEachAggregated(t *testing.T) {
	reddit := &stubCollector{name: "reddit", result: &contracts.CollectResult{
		Source: contracts.SourceReddit,
		Posts: []contracts.RawPost{
			redditPost("t3_x", "$AAPL and $MSFT breakout, bullish", time.Hour, "AAPL", "MSFT"),
			redditPost("t3_y", "$AAPL $MSFT both moon, buy", 2*time.Hour, "AAPL", "MSFT"),
		},
		Provenance: contracts.ProvenanceLive,
	}}
	f := newFixture(t, reddit)
	ctx := context.Background()

	res, err := f.p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.DataPoints)
	assert.Equal(t, 6, res.Aggregates, "AAPL and MSFT for 24h, 7d and 30d")

	for _, symbol := range []string{"AAPL", "MSFT"} {
		agg, err := f.store.GetAggregate(ctx, symbol, "24h")
		require.NoError(t, err, symbol)
		assert.Equal(t, 2, agg.TotalMentions, symbol)
		assert.Equal(t, 2, agg.UniquePosts, symbol)
	}

	stored, err := f.store.ListPosts(ctx, storage.PostFilter{Ticker: "MSFT", ClassifiedOnly: true})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "AAPL", stored[0].Ticker, "primary ticker is unchanged")
	assert.Len(t, stored[0].Sentiments, 2)
}

func TestIngest_SinglePost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.p.Ingest(ctx, contracts.RawPost{
		Source:     contracts.SourceTwitter,
		ExternalID: "1790",
		Author:     "trader",
		CreatedAt:  base.Add(-10 * time.Minute),
		Text:       "$AAPL $MSFT breakout, buy",
	})
	require.NoError(t, err)

	assert.Equal(t, "twitter:1790", res.Post)
	assert.Equal(t, []string{"AAPL", "MSFT"}, res.Tickers)
	assert.Equal(t, 2, res.Entries)
	assert.Len(t, res.Aggregates, 6)

	msft, err := f.store.GetAggregate(ctx, "MSFT", "24h")
	require.NoError(t, err)
	assert.Equal(t, contracts.LabelPositive, msft.Label)
	assert.Equal(t, 1, msft.UniquePosts)
	assert.Equal(t, 1, f.store.DisplayCount())

	posts, err := f.store.ListPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, contracts.ProvenanceLive, posts[0].Provenance)
	assert.True(t, posts[0].IsClassified())
}

func TestIngest_RejectsInvalidPost(t *testing.T) {
	f := newFixture(t)

	_, err := f.p.Ingest(context.Background(), contracts.RawPost{Source: "mastodon", ExternalID: "1", Text: "$AAPL"})
	require.ErrorIs(t, err, contracts.ErrInvalidPost)

	posts, err := f.store.ListPosts(context.Background(), storage.PostFilter{})
	require.NoError(t, err)
	assert.Empty(t, posts)
}
