package contracts

import (
	"math"
	"time"
)

// Label is the discrete sentiment class
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

// LabelThreshold separates neutral from positive/negative
const LabelThreshold = 0.1

// LabelFor derives the label from a score
// ⭐ SSOT: score → label 변환은 여기서만
func LabelFor(score float64) Label {
	switch {
	case score > LabelThreshold:
		return LabelPositive
	case score < -LabelThreshold:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// ClampScore limits a sentiment score to [-1, 1]; NaN becomes 0
func ClampScore(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(-1, math.Min(1, score))
}

// ClampUnit limits a value to [0, 1]; NaN becomes 0
func ClampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// SentimentEntry is one classified contribution to a ticker
type SentimentEntry struct {
	Ticker       string    `json:"ticker"`
	Score        float64   `json:"sentiment_score"` // -1.0 ~ 1.0
	MentionCount int       `json:"mention_count"`
	Confidence   float64   `json:"confidence"` // 0.0 ~ 1.0
	CreatedAt    time.Time `json:"created_at"`
	Source       Source    `json:"source"`
	KeyThemes    []string  `json:"key_themes"`

	// Optional classifier output
	Summary       string  `json:"summary,omitempty"`
	Actionability float64 `json:"actionability_score,omitempty"`
	HasCatalyst   bool    `json:"has_catalyst,omitempty"`

	// Post attribution (set when derived from a stored post)
	PostID     string     `json:"post_id,omitempty"`
	Author     string     `json:"author,omitempty"`
	Upvotes    int64      `json:"upvotes,omitempty"`
	Comments   int64      `json:"comments,omitempty"`
	Provenance Provenance `json:"provenance,omitempty"`
}

// Label returns the derived sentiment label
func (e SentimentEntry) Label() Label {
	return LabelFor(e.Score)
}

// Trend is the direction of sentiment within a window
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// SourceStats is the per-source part of an aggregate
type SourceStats struct {
	Mentions     int     `json:"mentions"`
	AvgSentiment float64 `json:"avg_sentiment"`
}

// SentimentAggregate is the per-ticker, per-period rollup
// ⭐ SSOT: (ticker, period) 당 하나만 존재
type SentimentAggregate struct {
	Ticker          string                 `json:"ticker"`
	Score           float64                `json:"sentiment_score"`
	Label           Label                  `json:"sentiment_label"`
	TotalMentions   int                    `json:"total_mentions"`
	Confidence      float64                `json:"confidence"`
	KeyThemes       []string               `json:"key_themes"`
	SourceBreakdown map[Source]SourceStats `json:"source_breakdown"`
	UniquePosts     int                    `json:"unique_posts"`
	UniqueAuthors   int                    `json:"unique_authors"`
	TotalUpvotes    int64                  `json:"total_upvotes"`
	TotalComments   int64                  `json:"total_comments"`
	Trend           Trend                  `json:"trend"`
	Strategy        string                 `json:"strategy"`
	CalculatedAt    time.Time              `json:"calculated_at"`
	Period          string                 `json:"aggregation_period"`
	Provenance      Provenance             `json:"provenance"`
}
