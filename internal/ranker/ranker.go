// Package ranker scores social posts by how actionable they are.
package ranker

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

// WeightConfig defines component weights of the composite score
type WeightConfig struct {
	Velocity      float64 // 기본: 0.4
	Actionability float64 // 기본: 0.3
	Catalyst      float64 // 기본: 0.2
	TimeDecay     float64 // 기본: 0.1
}

// DefaultWeightConfig returns default weight configuration
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		Velocity:      0.4,
		Actionability: 0.3,
		Catalyst:      0.2,
		TimeDecay:     0.1,
	}
	// Total: 100%
}

// ValidateWeights checks if weights sum to 1.0
func (w *WeightConfig) ValidateWeights() bool {
	sum := w.Velocity + w.Actionability + w.Catalyst + w.TimeDecay
	// Allow small floating point error
	return sum >= 0.99 && sum <= 1.01
}

// Params 랭킹 파라미터
type Params struct {
	Weights           WeightConfig
	DecayMinutes      float64       // exp(-age_min / DecayMinutes)
	EligibilityWindow time.Duration // posts older than this are not ranked
	FeatureWindow     time.Duration // lookback callers load posts with
	TopN              int           // 0 = no cap
}

// DefaultParams returns the standard ranking parameters
func DefaultParams() Params {
	return Params{
		Weights:           DefaultWeightConfig(),
		DecayMinutes:      240,
		EligibilityWindow: 24 * time.Hour,
		FeatureWindow:     36 * time.Hour,
		TopN:              20,
	}
}

// Input is what the scorer needs from one post
type Input struct {
	PostID        string
	Engagement    int64
	FollowerCount int64
	Age           time.Duration
	Text          string
	HasMedia      bool
}

// InputFromPost builds scorer input from a stored post
func InputFromPost(p contracts.RawPost, now time.Time) Input {
	return Input{
		PostID:        p.Key(),
		Engagement:    p.Engagement.Total(),
		FollowerCount: p.Metadata.FollowerCount,
		Age:           now.Sub(p.CreatedAt),
		Text:          p.Text,
		HasMedia:      p.Metadata.HasMedia,
	}
}

// Ranker computes actionability scores and ranks posts
// ⭐ SSOT: 게시물 랭킹 로직은 여기서만
type Ranker struct {
	params    Params
	extractor contracts.TickerExtractor
	logger    *logger.Logger
}

// NewRanker creates a new ranker; invalid weights fall back to defaults
func NewRanker(params Params, extractor contracts.TickerExtractor, log *logger.Logger) *Ranker {
	if !params.Weights.ValidateWeights() {
		log.WithField("weights", params.Weights).Warn("Ranking weights do not sum to 1.0, using defaults")
		params.Weights = DefaultWeightConfig()
	}
	if params.DecayMinutes <= 0 {
		params.DecayMinutes = 240
	}
	if params.EligibilityWindow <= 0 {
		params.EligibilityWindow = 24 * time.Hour
	}
	if params.FeatureWindow < params.EligibilityWindow {
		params.FeatureWindow = params.EligibilityWindow
	}

	return &Ranker{
		params:    params,
		extractor: extractor,
		logger:    log.WithComponent("ranker"),
	}
}

// FeatureWindow is the lookback callers should load candidate posts with
func (r *Ranker) FeatureWindow() time.Duration {
	return r.params.FeatureWindow
}

// Score computes the actionability score of one post
func (r *Ranker) Score(in Input, now time.Time) contracts.ActionabilityScore {
	ageMin := in.Age.Minutes()
	if ageMin < 0 {
		ageMin = 0
	}

	flags := DetectFlags(in.Text, in.HasMedia)
	velocity := Velocity(in.Engagement, in.FollowerCount, ageMin)
	decay := math.Exp(-ageMin / r.params.DecayMinutes)

	s := contracts.ActionabilityScore{
		PostID:         in.PostID,
		Velocity:       velocity,
		Actionability:  flags.Actionability(),
		Catalyst:       flags.Catalyst(),
		TimeDecay:      decay,
		FollowerCount:  in.FollowerCount,
		HasNumbers:     flags.HasNumbers,
		HasActionWords: flags.HasActionWords,
		HasMedia:       flags.HasMedia,
		CalculatedAt:   now,
	}
	s.Composite = r.composite(s)
	return s
}

// Velocity is engagement per follower per minute of age
func Velocity(engagement, followers int64, ageMinutes float64) float64 {
	return float64(engagement) / math.Max(1, float64(followers)) / math.Max(1, ageMinutes)
}

func (r *Ranker) composite(s contracts.ActionabilityScore) float64 {
	w := r.params.Weights
	return w.Velocity*s.Velocity +
		w.Actionability*float64(s.Actionability) +
		w.Catalyst*float64(s.Catalyst) +
		w.TimeDecay*s.TimeDecay
}

// Eligible reports whether a post may be ranked at now
func (r *Ranker) Eligible(p contracts.RawPost, now time.Time) bool {
	if p.Metadata.IsRepost {
		return false
	}
	age := now.Sub(p.CreatedAt)
	if age > r.params.EligibilityWindow {
		return false
	}
	return r.hasTicker(p)
}

func (r *Ranker) hasTicker(p contracts.RawPost) bool {
	if p.Ticker != "" || len(p.Tickers) > 0 {
		return true
	}
	if r.extractor == nil {
		return false
	}
	return len(r.extractor.Extract(p.Text)) > 0
}

// Rank scores eligible posts and orders them by composite score
func (r *Ranker) Rank(ctx context.Context, posts []contracts.RawPost, now time.Time) []contracts.RankedPost {
	ranked := make([]contracts.RankedPost, 0, len(posts))
	skipped := 0

	for _, p := range posts {
		if ctx.Err() != nil {
			break
		}
		if !r.Eligible(p, now) {
			skipped++
			continue
		}
		ranked = append(ranked, contracts.RankedPost{
			Post:  p,
			Score: r.Score(InputFromPost(p, now), now),
		})
	}

	// Sort by composite (descending); newer first, then key, on ties
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score.Composite != b.Score.Composite {
			return a.Score.Composite > b.Score.Composite
		}
		if !a.Post.CreatedAt.Equal(b.Post.CreatedAt) {
			return a.Post.CreatedAt.After(b.Post.CreatedAt)
		}
		return a.Post.Key() < b.Post.Key()
	})

	if r.params.TopN > 0 && len(ranked) > r.params.TopN {
		ranked = ranked[:r.params.TopN]
	}

	// Assign ranks
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	fields := map[string]interface{}{
		"candidates": len(posts),
		"ranked":     len(ranked),
		"skipped":    skipped,
	}
	if len(ranked) > 0 {
		fields["top_score"] = ranked[0].Score.Composite
		fields["top_post"] = ranked[0].Post.Key()
	}
	r.logger.WithFields(fields).Info("Ranking completed")

	return ranked
}
