// Package storagetest holds the behaviour suite every storage.Store
// implementation must pass.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/storage"
)

// Base is the reference time of every fixture
var Base = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

// Post builds a live reddit post created ago before Base
func Post(id string, ago time.Duration) contracts.RawPost {
	return contracts.RawPost{
		Source:     contracts.SourceReddit,
		ExternalID: id,
		Author:     "author_" + id,
		CreatedAt:  Base.Add(-ago),
		Text:       "$NVDA post " + id + "\nsecond line",
		Engagement: contracts.Engagement{Likes: 10, Replies: 3},
		URL:        "https://www.reddit.com/" + id,
		Metadata:   contracts.PlatformMetadata{Subreddit: "stocks", HasMedia: true},
		Provenance: contracts.ProvenanceLive,
		Tickers:    []string{"NVDA"},
	}
}

// Classified marks p as classified for ticker with score
func Classified(p contracts.RawPost, ticker string, score float64) contracts.RawPost {
	ts := Base
	p.Ticker = ticker
	p.MentionCount = 1
	p.SentimentScore = score
	p.SentimentLabel = contracts.LabelFor(score)
	p.Confidence = 0.8
	p.KeyThemes = []string{"earnings"}
	p.ClassifiedAt = &ts
	p.Sentiments = []contracts.TickerSentiment{{
		Ticker:     ticker,
		Score:      score,
		Label:      p.SentimentLabel,
		Confidence: p.Confidence,
		KeyThemes:  p.KeyThemes,
	}}
	return p
}

// ClassifiedMany marks p as classified for several tickers; the first
// one is primary
func ClassifiedMany(p contracts.RawPost, sentiments ...contracts.TickerSentiment) contracts.RawPost {
	p = Classified(p, sentiments[0].Ticker, sentiments[0].Score)
	p.Tickers = nil
	for i := range sentiments {
		if sentiments[i].Label == "" {
			sentiments[i].Label = contracts.LabelFor(sentiments[i].Score)
		}
		p.Tickers = append(p.Tickers, sentiments[i].Ticker)
	}
	p.Confidence = sentiments[0].Confidence
	p.KeyThemes = sentiments[0].KeyThemes
	p.Sentiments = sentiments
	return p
}

// Run executes the suite; newStore must return an empty store
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("posts round trip", func(t *testing.T) { testPostsRoundTrip(t, newStore(t)) })
	t.Run("classification survives re-collection", func(t *testing.T) { testClassificationKept(t, newStore(t)) })
	t.Run("post filters", func(t *testing.T) { testPostFilters(t, newStore(t)) })
	t.Run("sentiment entries", func(t *testing.T) { testSentimentEntries(t, newStore(t)) })
	t.Run("entries per ticker", func(t *testing.T) { testEntriesPerTicker(t, newStore(t)) })
	t.Run("display mirror", func(t *testing.T) { testDisplay(t, newStore(t)) })
	t.Run("aggregates", func(t *testing.T) { testAggregates(t, newStore(t)) })
	t.Run("rankings", func(t *testing.T) { testRankings(t, newStore(t)) })
}

func testPostsRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	in := []contracts.RawPost{Post("t3_a", time.Hour), Classified(Post("t3_b", 2*time.Hour), "NVDA", 0.6)}

	n, err := s.UpsertPosts(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := s.ListPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, in[0], out[0], "newest first")
	assert.Equal(t, in[1], out[1])
}

func testClassificationKept(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := Classified(Post("t3_a", time.Hour), "NVDA", -0.5)
	_, err := s.UpsertPosts(ctx, []contracts.RawPost{p})
	require.NoError(t, err)

	again := Post("t3_a", time.Hour)
	again.Engagement.Likes = 99
	again.Author = "renamed"
	again.Text = "$NVDA edited"
	again.URL = "https://www.reddit.com/edited"
	again.Metadata = contracts.PlatformMetadata{Subreddit: "wallstreetbets"}
	again.Provenance = contracts.ProvenanceCached
	again.Tickers = []string{"NVDA", "AMD"}
	_, err = s.UpsertPosts(ctx, []contracts.RawPost{again})
	require.NoError(t, err)

	out, err := s.ListPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	got := out[0]
	assert.Equal(t, int64(99), got.Engagement.Likes)
	assert.Equal(t, "renamed", got.Author)
	assert.Equal(t, "$NVDA edited", got.Text)
	assert.Equal(t, "https://www.reddit.com/edited", got.URL)
	assert.Equal(t, contracts.PlatformMetadata{Subreddit: "wallstreetbets"}, got.Metadata)
	assert.Equal(t, contracts.ProvenanceCached, got.Provenance)
	assert.Equal(t, []string{"NVDA", "AMD"}, got.Tickers)
	assert.Equal(t, p.CreatedAt, got.CreatedAt)

	assert.True(t, got.IsClassified())
	assert.Equal(t, "NVDA", got.Ticker)
	assert.Equal(t, -0.5, got.SentimentScore)
	assert.Equal(t, p.Sentiments, got.Sentiments)
}

func testEntriesPerTicker(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.UpsertPosts(ctx, []contracts.RawPost{
		ClassifiedMany(Post("t3_pair", time.Hour),
			contracts.TickerSentiment{Ticker: "AAPL", Score: 0.4, Confidence: 0.5, KeyThemes: []string{"iphone"}},
			contracts.TickerSentiment{Ticker: "MSFT", Score: -0.3, Confidence: 0.6, KeyThemes: []string{"cloud"}},
		),
		Classified(Post("t3_solo", 2*time.Hour), "MSFT", 0.7),
	})
	require.NoError(t, err)

	msft, err := s.SentimentEntries(ctx, "MSFT", Base.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, msft, 2, "secondary ticker of a post still contributes")
	assert.Equal(t, "reddit:t3_solo", msft[0].PostID)
	assert.Equal(t, "reddit:t3_pair", msft[1].PostID)
	assert.Equal(t, "MSFT", msft[1].Ticker)
	assert.Equal(t, -0.3, msft[1].Score)
	assert.Equal(t, 0.6, msft[1].Confidence)
	assert.Equal(t, []string{"cloud"}, msft[1].KeyThemes)

	aapl, err := s.SentimentEntries(ctx, "AAPL", Base.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, aapl, 1)
	assert.Equal(t, 0.4, aapl[0].Score)

	byTicker, err := s.ListPosts(ctx, storage.PostFilter{Ticker: "MSFT", ClassifiedOnly: true})
	require.NoError(t, err)
	assert.Len(t, byTicker, 2)

	pair, err := s.ListPosts(ctx, storage.PostFilter{Ticker: "AAPL"})
	require.NoError(t, err)
	require.Len(t, pair, 1)
	require.Len(t, pair[0].Sentiments, 2)
	assert.Equal(t, "AAPL", pair[0].Sentiments[0].Ticker, "position order")
	assert.Equal(t, contracts.LabelNegative, pair[0].Sentiments[1].Label)

	// a new classification replaces every per-ticker row of the post
	_, err = s.UpsertPosts(ctx, []contracts.RawPost{Classified(Post("t3_pair", time.Hour), "AAPL", 0.9)})
	require.NoError(t, err)
	msft, err = s.SentimentEntries(ctx, "MSFT", Base.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, msft, 1)
	assert.Equal(t, "reddit:t3_solo", msft[0].PostID)
}

func testPostFilters(t *testing.T, s storage.Store) {
	ctx := context.Background()
	tweet := Post("1", 30*time.Minute)
	tweet.Source = contracts.SourceTwitter
	_, err := s.UpsertPosts(ctx, []contracts.RawPost{
		Post("t3_old", 48*time.Hour),
		Classified(Post("t3_new", time.Hour), "AMD", 0.3),
		tweet,
	})
	require.NoError(t, err)

	recent, err := s.ListPosts(ctx, storage.PostFilter{Since: Base.Add(-24 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	amd, err := s.ListPosts(ctx, storage.PostFilter{Ticker: "AMD", ClassifiedOnly: true})
	require.NoError(t, err)
	require.Len(t, amd, 1)
	assert.Equal(t, "t3_new", amd[0].ExternalID)

	tweets, err := s.ListPosts(ctx, storage.PostFilter{Source: contracts.SourceTwitter})
	require.NoError(t, err)
	assert.Len(t, tweets, 1)

	limited, err := s.ListPosts(ctx, storage.PostFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "1", limited[0].ExternalID)
}

func testSentimentEntries(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.UpsertPosts(ctx, []contracts.RawPost{
		Classified(Post("t3_late", time.Hour), "NVDA", 0.9),
		Classified(Post("t3_early", 3*time.Hour), "NVDA", -0.2),
		Classified(Post("t3_stale", 72*time.Hour), "NVDA", 1),
		Classified(Post("t3_other", time.Hour), "AMD", 0.1),
		Post("t3_raw", time.Hour),
	})
	require.NoError(t, err)

	entries, err := s.SentimentEntries(ctx, "NVDA", Base.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "reddit:t3_early", entries[0].PostID, "chronological")
	assert.Equal(t, "reddit:t3_late", entries[1].PostID)
	assert.Equal(t, 0.9, entries[1].Score)
	assert.Equal(t, int64(10), entries[1].Upvotes)
}

func testDisplay(t *testing.T, s storage.Store) {
	ctx := context.Background()
	old := Post("t3_old", 10*24*time.Hour)
	fresh := Classified(Post("t3_new", time.Hour), "NVDA", 0.4)
	_, err := s.UpsertPosts(ctx, []contracts.RawPost{old, fresh})
	require.NoError(t, err)
	require.NoError(t, s.UpsertDisplay(ctx, []contracts.RawPost{old, fresh}))
	require.NoError(t, s.UpsertDisplay(ctx, []contracts.RawPost{fresh}), "idempotent")

	n, err := s.DeleteDisplayBefore(ctx, Base.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeletePostsBefore(ctx, Base.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := s.ListPosts(ctx, storage.PostFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "t3_new", left[0].ExternalID)
}

func aggregate(ticker, period string, mentions int, score float64) contracts.SentimentAggregate {
	return contracts.SentimentAggregate{
		Ticker:        ticker,
		Score:         score,
		Label:         contracts.LabelFor(score),
		TotalMentions: mentions,
		Confidence:    0.7,
		KeyThemes:     []string{"ai", "earnings"},
		SourceBreakdown: map[contracts.Source]contracts.SourceStats{
			contracts.SourceReddit: {Mentions: mentions, AvgSentiment: score},
		},
		UniquePosts:   mentions,
		UniqueAuthors: 1,
		TotalUpvotes:  100,
		TotalComments: 7,
		Trend:         contracts.TrendRising,
		Strategy:      "hybrid",
		CalculatedAt:  Base,
		Period:        period,
		Provenance:    contracts.ProvenanceLive,
	}
}

func testAggregates(t *testing.T, s storage.Store) {
	ctx := context.Background()

	_, err := s.GetAggregate(ctx, "NVDA", "24h")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	nvda := aggregate("NVDA", "24h", 5, 0.4)
	require.NoError(t, s.UpsertAggregates(ctx, []contracts.SentimentAggregate{
		nvda,
		aggregate("AMD", "24h", 9, -0.3),
		aggregate("TSLA", "24h", 5, 0.0),
		aggregate("NVDA", "7d", 20, 0.2),
	}))

	got, err := s.GetAggregate(ctx, "NVDA", "24h")
	require.NoError(t, err)
	assert.Equal(t, nvda, *got)

	// overwrite
	nvda.Score = -0.8
	nvda.Label = contracts.LabelNegative
	nvda.Provenance = contracts.ProvenanceFallback
	require.NoError(t, s.UpsertAggregates(ctx, []contracts.SentimentAggregate{nvda}))
	got, err = s.GetAggregate(ctx, "NVDA", "24h")
	require.NoError(t, err)
	assert.Equal(t, -0.8, got.Score)
	assert.Equal(t, contracts.ProvenanceFallback, got.Provenance)

	list, err := s.ListAggregates(ctx, "24h", 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"AMD", "NVDA", "TSLA"}, []string{list[0].Ticker, list[1].Ticker, list[2].Ticker})

	top, err := s.ListAggregates(ctx, "24h", 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	none, err := s.ListAggregates(ctx, "30d", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func ranked(rank int, p contracts.RawPost, composite float64) contracts.RankedPost {
	return contracts.RankedPost{
		Rank: rank,
		Post: p,
		Score: contracts.ActionabilityScore{
			PostID:        p.Key(),
			Velocity:      0.5,
			Actionability: 2,
			Catalyst:      1,
			TimeDecay:     0.8,
			Composite:     composite,
			HasNumbers:    true,
			CalculatedAt:  Base,
		},
	}
}

func testRankings(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a, b := Post("t3_a", time.Hour), Post("t3_b", 30*24*time.Hour)
	_, err := s.UpsertPosts(ctx, []contracts.RawPost{a, b})
	require.NoError(t, err)

	require.NoError(t, s.ReplaceRankings(ctx, []contracts.RankedPost{ranked(1, a, 0.9), ranked(2, b, 0.5)}))
	top, err := s.TopRanked(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, ranked(1, a, 0.9), top[0])

	require.NoError(t, s.ReplaceRankings(ctx, []contracts.RankedPost{ranked(1, b, 0.7)}))
	top, err = s.TopRanked(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "t3_b", top[0].Post.ExternalID)

	_, err = s.DeletePostsBefore(ctx, Base.Add(-7*24*time.Hour))
	require.NoError(t, err)
	top, err = s.TopRanked(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, top, "rankings follow their posts")
}
