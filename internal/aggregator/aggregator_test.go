package aggregator

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-pulse/internal/contracts"
)

var refTime = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestAggregator() *Aggregator {
	return New(DefaultParams(), WithClock(func() time.Time { return refTime }))
}

var allStrategies = []Strategy{SimpleAverage, MentionWeighted, ConfidenceWeighted, TimeDecayWeighted, Hybrid}

func entry(ticker string, score float64, mentions int, conf float64, src contracts.Source, ageHours float64) contracts.SentimentEntry {
	return contracts.SentimentEntry{
		Ticker:       ticker,
		Score:        score,
		MentionCount: mentions,
		Confidence:   conf,
		Source:       src,
		CreatedAt:    refTime.Add(-time.Duration(ageHours * float64(time.Hour))),
	}
}

func TestAggregate_MentionWeightedScenario(t *testing.T) {
	entries := []contracts.SentimentEntry{
		entry("AAPL", 0.5, 10, 0.9, contracts.SourceReddit, 1),
		entry("AAPL", -0.2, 2, 0.5, contracts.SourceTwitter, 2),
	}

	out := newTestAggregator().Aggregate(entries, MentionWeighted, Period24h)
	require.Len(t, out, 1)

	agg := out["AAPL"]
	assert.InDelta(t, 0.383333, agg.Score, 1e-6)
	assert.Equal(t, contracts.LabelPositive, agg.Label)
	assert.Equal(t, 12, agg.TotalMentions)
	assert.Equal(t, 10, agg.SourceBreakdown[contracts.SourceReddit].Mentions)
	assert.Equal(t, 2, agg.SourceBreakdown[contracts.SourceTwitter].Mentions)
	assert.Equal(t, 0.5, agg.SourceBreakdown[contracts.SourceReddit].AvgSentiment)
	assert.Equal(t, -0.2, agg.SourceBreakdown[contracts.SourceTwitter].AvgSentiment)
	assert.InDelta(t, 10.0/12.0, agg.Confidence, 1e-9)
	assert.Equal(t, "mention_weighted", agg.Strategy)
	assert.Equal(t, Period24h, agg.Period)
	assert.Equal(t, refTime, agg.CalculatedAt)
	assert.Equal(t, contracts.ProvenanceLive, agg.Provenance)
}

func TestAggregate_SingleEntryIdentity(t *testing.T) {
	scores := []float64{0.1, -0.7, 0.3333333333, 1, -1, 0}

	for _, s := range allStrategies {
		for _, score := range scores {
			t.Run(fmt.Sprintf("%s/%v", s, score), func(t *testing.T) {
				e := entry("TSLA", score, 3, 0.7, contracts.SourceReddit, 30)
				agg := newTestAggregator().Aggregate([]contracts.SentimentEntry{e}, s, Period7d)["TSLA"]
				assert.Equal(t, score, agg.Score)
			})
		}
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	entries := []contracts.SentimentEntry{
		entry("AAPL", 0.5, 10, 0.9, contracts.SourceReddit, 1),
		entry("NVDA", 0.8, 4, 0.6, contracts.SourceTwitter, 5),
		entry("AAPL", -0.3, 3, 0.4, contracts.SourceTwitter, 20),
		entry("NVDA", 0.1, 2, 0.9, contracts.SourceReddit, 40),
		entry("AAPL", 0.2, 7, 0.8, contracts.SourceReddit, 70),
	}
	entries[0].KeyThemes = []string{"iphone", "earnings"}
	entries[2].KeyThemes = []string{"earnings", "china"}

	a := newTestAggregator()
	for _, s := range allStrategies {
		first := a.Aggregate(entries, s, Period30d)
		second := a.Aggregate(entries, s, Period30d)
		assert.Equal(t, first, second, "strategy %s", s)
		for ticker := range first {
			assert.Equal(t, math.Float64bits(first[ticker].Score), math.Float64bits(second[ticker].Score))
		}
	}
}

func TestAggregate_Strategies(t *testing.T) {
	entries := []contracts.SentimentEntry{
		entry("AMD", 1, 1, 1.0, contracts.SourceReddit, 0),
		entry("AMD", -1, 3, 0.5, contracts.SourceReddit, 48),
	}

	decay24 := math.Exp(-2)
	decay48 := math.Exp(-1)
	hybridW1 := math.Log(2) * 1.0
	hybridW2 := decay48 * math.Log(4) * 0.5

	tests := []struct {
		strategy Strategy
		want     float64
	}{
		{SimpleAverage, 0},
		{MentionWeighted, (1 - 3) / 4.0},
		{ConfidenceWeighted, (1 - 0.5) / 1.5},
		{TimeDecayWeighted, (1 - decay24) / (1 + decay24)},
		{Hybrid, (hybridW1 - hybridW2) / (hybridW1 + hybridW2)},
	}

	a := newTestAggregator()
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			agg := a.Aggregate(entries, tt.strategy, Period7d)["AMD"]
			assert.InDelta(t, tt.want, agg.Score, 1e-9)
		})
	}
}

func TestAggregate_ZeroWeightFallsBackToSimpleAverage(t *testing.T) {
	entries := []contracts.SentimentEntry{
		entry("GME", 0.6, 2, 0, contracts.SourceReddit, 1),
		entry("GME", 0.2, 2, 0, contracts.SourceReddit, 2),
	}

	a := newTestAggregator()
	for _, s := range []Strategy{ConfidenceWeighted, Hybrid} {
		agg := a.Aggregate(entries, s, Period24h)["GME"]
		assert.InDelta(t, 0.4, agg.Score, 1e-9, "strategy %s", s)
	}
}

func TestAggregate_ThemesDedupedAndCapped(t *testing.T) {
	var entries []contracts.SentimentEntry
	for i := 0; i < 4; i++ {
		e := entry("MSFT", 0.2, 2, 0.8, contracts.SourceReddit, float64(i))
		e.KeyThemes = []string{
			fmt.Sprintf("t%d", i*3),
			fmt.Sprintf("t%d", i*3+1),
			fmt.Sprintf("t%d", i*3+2),
			"azure",
		}
		entries = append(entries, e)
	}

	agg := newTestAggregator().Aggregate(entries, Hybrid, Period24h)["MSFT"]
	assert.Equal(t, []string{"t0", "t1", "t2", "azure", "t3", "t4", "t5", "t6", "t7", "t8"}, agg.KeyThemes)
}

func TestAggregate_Trend(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64 // oldest first
		want   contracts.Trend
	}{
		{"rising", []float64{-0.5, -0.2, 0.3, 0.6}, contracts.TrendRising},
		{"falling", []float64{0.6, 0.4, -0.1, -0.4}, contracts.TrendFalling},
		{"stable", []float64{0.2, 0.25, 0.22, 0.27}, contracts.TrendStable},
		{"single", []float64{0.9}, contracts.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entries []contracts.SentimentEntry
			// insert newest first to prove chronological ordering
			for i := len(tt.scores) - 1; i >= 0; i-- {
				age := float64(len(tt.scores) - i)
				entries = append(entries, entry("META", tt.scores[i], 2, 0.8, contracts.SourceTwitter, age))
			}
			agg := newTestAggregator().Aggregate(entries, SimpleAverage, Period24h)["META"]
			assert.Equal(t, tt.want, agg.Trend)
		})
	}
}

func TestAggregate_PostAndAuthorCounts(t *testing.T) {
	e1 := entry("AAPL", 0.5, 2, 0.9, contracts.SourceReddit, 1)
	e1.PostID, e1.Author, e1.Upvotes, e1.Comments = "reddit:a", "alice", 100, 10
	e2 := entry("AAPL", 0.1, 3, 0.9, contracts.SourceReddit, 2)
	e2.PostID, e2.Author, e2.Upvotes, e2.Comments = "reddit:b", "alice", 50, 5
	e3 := entry("AAPL", 0.3, 1, 0.9, contracts.SourceTwitter, 3)
	e3.Author, e3.Upvotes = "bob", 7

	agg := newTestAggregator().Aggregate([]contracts.SentimentEntry{e1, e2, e3}, Hybrid, Period24h)["AAPL"]
	assert.Equal(t, 3, agg.UniquePosts)
	assert.Equal(t, 2, agg.UniqueAuthors)
	assert.Equal(t, int64(157), agg.TotalUpvotes)
	assert.Equal(t, int64(15), agg.TotalComments)
}

func TestAggregate_ProvenanceAndEmpty(t *testing.T) {
	live := entry("AAPL", 0.5, 2, 0.9, contracts.SourceReddit, 1)
	fb := entry("AAPL", 0.5, 2, 0.9, contracts.SourceReddit, 1)
	fb.Provenance = contracts.ProvenanceFallback

	a := newTestAggregator()
	agg := a.Aggregate([]contracts.SentimentEntry{live, fb}, Hybrid, Period24h)["AAPL"]
	assert.Equal(t, contracts.ProvenanceFallback, agg.Provenance)

	assert.Empty(t, a.Aggregate(nil, Hybrid, Period24h))
	assert.Empty(t, a.Aggregate([]contracts.SentimentEntry{{Score: 0.3}}, Hybrid, Period24h), "entries without ticker are skipped")

	_, err := a.AggregateTicker("NVDA", []contracts.SentimentEntry{live}, Hybrid, Period24h)
	assert.ErrorIs(t, err, ErrNoEntries)

	one, err := a.AggregateTicker("AAPL", []contracts.SentimentEntry{live}, "", Period24h)
	require.NoError(t, err)
	assert.Equal(t, "hybrid", one.Strategy)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Hybrid, s)

	for _, want := range allStrategies {
		got, err := ParseStrategy(string(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = ParseStrategy("median")
	assert.Error(t, err)
}

func TestParsePeriodAndWindow(t *testing.T) {
	tests := map[string]time.Duration{
		"24h": 24 * time.Hour,
		"7d":  7 * 24 * time.Hour,
		"30d": 30 * 24 * time.Hour,
		"90m": 90 * time.Minute,
	}
	for in, want := range tests {
		got, err := ParsePeriod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "0d", "-1d", "xd", "week"} {
		_, err := ParsePeriod(bad)
		assert.Error(t, err, bad)
	}

	entries := []contracts.SentimentEntry{
		entry("A", 0, 1, 1, contracts.SourceReddit, 1),
		entry("B", 0, 1, 1, contracts.SourceReddit, 30),
	}
	kept := InWindow(entries, 24*time.Hour, refTime)
	require.Len(t, kept, 1)
	assert.Equal(t, "A", kept[0].Ticker)
}
