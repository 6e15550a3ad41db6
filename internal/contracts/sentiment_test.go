package contracts

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelFor(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  Label
	}{
		{"strong positive", 0.8, LabelPositive},
		{"just above threshold", 0.1001, LabelPositive},
		{"threshold is neutral", 0.1, LabelNeutral},
		{"zero", 0, LabelNeutral},
		{"negative threshold is neutral", -0.1, LabelNeutral},
		{"just below threshold", -0.1001, LabelNegative},
		{"strong negative", -1, LabelNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LabelFor(tt.score))
		})
	}
}

func TestLabelFor_Total(t *testing.T) {
	for s := -1.5; s <= 1.5; s += 0.01 {
		got := LabelFor(s)
		switch {
		case s > LabelThreshold:
			assert.Equal(t, LabelPositive, got, "score %v", s)
		case s < -LabelThreshold:
			assert.Equal(t, LabelNegative, got, "score %v", s)
		default:
			assert.Equal(t, LabelNeutral, got, "score %v", s)
		}
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 1.0, ClampScore(3))
	assert.Equal(t, -1.0, ClampScore(-2))
	assert.Equal(t, 0.25, ClampScore(0.25))
	assert.Equal(t, 0.0, ClampScore(math.NaN()))
	assert.Equal(t, 0.0, ClampUnit(-0.5))
	assert.Equal(t, 1.0, ClampUnit(1.5))
}

func TestProvenance(t *testing.T) {
	assert.True(t, ProvenanceLive.Valid())
	assert.False(t, Provenance("mock").Valid())

	p, err := ParseProvenance("cached")
	require.NoError(t, err)
	assert.Equal(t, ProvenanceCached, p)

	_, err = ParseProvenance("")
	assert.Error(t, err)

	assert.Equal(t, ProvenanceFallback, ProvenanceLive.Merge(ProvenanceFallback))
	assert.Equal(t, ProvenanceCached, ProvenanceCached.Merge(ProvenanceLive))
	assert.Equal(t, ProvenanceLive, ProvenanceLive.Merge(ProvenanceLive))
}

func TestRawPost_Validate(t *testing.T) {
	collectedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("defaults created_at and provenance", func(t *testing.T) {
		p := RawPost{Source: SourceReddit, ExternalID: "t3_abc", Text: "GME to the moon"}
		require.NoError(t, p.Validate(collectedAt))
		assert.Equal(t, collectedAt, p.CreatedAt)
		assert.Equal(t, ProvenanceLive, p.Provenance)
		assert.Equal(t, "reddit:t3_abc", p.Key())
	})

	tests := []struct {
		name string
		post RawPost
	}{
		{"unknown source", RawPost{Source: "mastodon", ExternalID: "1", Text: "x"}},
		{"missing id", RawPost{Source: SourceTwitter, ExternalID: " ", Text: "x"}},
		{"empty text", RawPost{Source: SourceTwitter, ExternalID: "1", Text: ""}},
		{"bad provenance", RawPost{Source: SourceTwitter, ExternalID: "1", Text: "x", Provenance: "mock"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.post.Validate(collectedAt)
			assert.ErrorIs(t, err, ErrInvalidPost)
		})
	}
}

func TestRawPost_Entry(t *testing.T) {
	now := time.Now()
	p := RawPost{
		Source:         SourceReddit,
		ExternalID:     "t3_x",
		Author:         "alice",
		Text:           "$AAPL",
		Engagement:     Engagement{Likes: 10, Replies: 3},
		Ticker:         "AAPL",
		SentimentScore: 1.7,
		Confidence:     0.8,
	}

	_, ok := p.Entry()
	assert.False(t, ok, "unclassified post has no entry")

	p.ClassifiedAt = &now
	e, ok := p.Entry()
	require.True(t, ok)
	assert.Equal(t, 1.0, e.Score)
	assert.Equal(t, 1, e.MentionCount)
	assert.Equal(t, "reddit:t3_x", e.PostID)
	assert.Equal(t, int64(10), e.Upvotes)
	assert.Equal(t, LabelPositive, e.Label())
}

func TestTickerMention_Eligible(t *testing.T) {
	assert.True(t, TickerMention{Ticker: "NVDA", Confidence: 0.9}.Eligible())
	assert.False(t, TickerMention{Ticker: "NVDA", Confidence: 0.7}.Eligible())
	assert.True(t, IsTickerShape("A"))
	assert.True(t, IsTickerShape("GOOGL"))
	assert.False(t, IsTickerShape("GOOGLE"))
	assert.False(t, IsTickerShape("aapl"))
	assert.False(t, IsTickerShape("BRK.B"))
}

func TestRankedPost_IsTopRanked(t *testing.T) {
	r := RankedPost{Rank: 3}
	assert.True(t, r.IsTopRanked(5))
	assert.False(t, r.IsTopRanked(2))
	assert.False(t, (&RankedPost{}).IsTopRanked(5))
}
