package ranker

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/ticker"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

var now = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func newTestRanker(topN int) *Ranker {
	p := DefaultParams()
	p.TopN = topN
	return NewRanker(p, ticker.New(), logger.Nop())
}

func TestDetectFlags_Scenario(t *testing.T) {
	f := DetectFlags("Just bought $NVDA calls, target 150", false)
	assert.True(t, f.HasNumbers)
	assert.True(t, f.HasActionWords)
	assert.False(t, f.HasMedia)
	assert.False(t, f.HasCatalyst)
	assert.Equal(t, 2, f.Actionability())
	assert.Equal(t, 0, f.Catalyst())
}

func TestDetectFlags(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		media bool
		want  Flags
	}{
		{"plain chatter", "GME to the moon lol", false, Flags{}},
		{"stop level", "$AMD stop at 98.5, watching", false, Flags{HasNumbers: true, HasActionWords: true}},
		{"strike shorthand", "TSLA 250c 3/15", false, Flags{HasNumbers: true}},
		{"catalyst", "AAPL earnings after close, guidance key", false, Flags{HasCatalyst: true}},
		{"fda", "FDA approval expected for MRNA", false, Flags{HasCatalyst: true}},
		{"link counts as media", "chart https://i.imgur.com/x.png", false, Flags{HasMedia: true}},
		{"native media", "look at this", true, Flags{HasMedia: true}},
		{"unusual sweep", "Unusual sweep on SPY puts", false, Flags{HasActionWords: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFlags(tt.text, tt.media))
		})
	}
}

func TestScore(t *testing.T) {
	r := newTestRanker(0)
	s := r.Score(Input{
		PostID:        "twitter:1",
		Engagement:    100,
		FollowerCount: 10,
		Age:           60 * time.Minute,
		Text:          "Just bought $NVDA calls, target 150",
	}, now)

	assert.InDelta(t, 100.0/10.0/60.0, s.Velocity, 1e-12)
	assert.Equal(t, 2, s.Actionability)
	assert.Equal(t, 0, s.Catalyst)
	assert.InDelta(t, math.Exp(-0.25), s.TimeDecay, 1e-12)

	want := 0.4*s.Velocity + 0.3*2 + 0.2*0 + 0.1*s.TimeDecay
	assert.InDelta(t, want, s.Composite, 1e-12)
	assert.Equal(t, int64(10), s.FollowerCount)
	assert.Equal(t, now, s.CalculatedAt)
}

func TestVelocity_Floors(t *testing.T) {
	// zero followers and zero age are floored at 1
	assert.Equal(t, 50.0, Velocity(50, 0, 0))
	assert.Equal(t, 5.0, Velocity(50, 10, 0.5))
	assert.Equal(t, 0.0, Velocity(0, 10, 30))
}

func TestNewRanker_InvalidWeightsFallback(t *testing.T) {
	p := DefaultParams()
	p.Weights.Velocity = 0.9
	r := NewRanker(p, nil, logger.Nop())
	assert.Equal(t, DefaultWeightConfig(), r.params.Weights)

	w := DefaultWeightConfig()
	assert.True(t, w.ValidateWeights())
}

func post(id string, age time.Duration, likes int64, text string) contracts.RawPost {
	return contracts.RawPost{
		Source:     contracts.SourceTwitter,
		ExternalID: id,
		CreatedAt:  now.Add(-age),
		Text:       text,
		Engagement: contracts.Engagement{Likes: likes},
		Metadata:   contracts.PlatformMetadata{FollowerCount: 1000},
	}
}

func TestRank_EligibilityAndOrder(t *testing.T) {
	repost := post("rt", time.Hour, 5000, "RT $NVDA calls target 150")
	repost.Metadata.IsRepost = true

	posts := []contracts.RawPost{
		post("plain", time.Hour, 10, "$AAPL looking fine"),
		post("old", 30*time.Hour, 99999, "$TSLA calls target 300 earnings"),
		post("noticker", time.Hour, 5000, "market is wild today, target 150"),
		post("best", 30*time.Minute, 200, "Bought $NVDA calls, target 150 ahead of earnings"),
		repost,
		post("mid", 2*time.Hour, 50, "$AMD breakout above 180"),
	}

	ranked := newTestRanker(0).Rank(context.Background(), posts, now)
	require.Len(t, ranked, 3)

	assert.Equal(t, "best", ranked[0].Post.ExternalID)
	assert.Equal(t, "mid", ranked[1].Post.ExternalID)
	assert.Equal(t, "plain", ranked[2].Post.ExternalID)
	for i, rp := range ranked {
		assert.Equal(t, i+1, rp.Rank)
		assert.Equal(t, rp.Post.Key(), rp.Score.PostID)
	}
	assert.Equal(t, 1, ranked[0].Score.Catalyst)
}

func TestRank_TopNAndTies(t *testing.T) {
	posts := []contracts.RawPost{
		post("b", time.Hour, 0, "$AAPL"),
		post("a", time.Hour, 0, "$AAPL"),
		post("c", time.Hour, 0, "$AAPL"),
	}
	posts[2].Ticker = "AAPL"

	ranked := newTestRanker(2).Rank(context.Background(), posts, now)
	require.Len(t, ranked, 2)
	// identical scores and times fall back to key order
	assert.Equal(t, "a", ranked[0].Post.ExternalID)
	assert.Equal(t, "b", ranked[1].Post.ExternalID)
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, newTestRanker(20).Rank(context.Background(), nil, now))
}
