package aggregator

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/aegis-pulse/internal/contracts"
)

// Strategy selects how entry scores are weighted within a ticker group
type Strategy string

const (
	SimpleAverage      Strategy = "simple_average"
	MentionWeighted    Strategy = "mention_weighted"
	ConfidenceWeighted Strategy = "confidence_weighted"
	TimeDecayWeighted  Strategy = "time_decay_weighted"
	Hybrid             Strategy = "hybrid" // default
)

// ParseStrategy parses a strategy name; empty means Hybrid
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return Hybrid, nil
	case SimpleAverage, MentionWeighted, ConfidenceWeighted, TimeDecayWeighted, Hybrid:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown aggregation strategy %q", s)
	}
}

// weight returns the entry weight under strategy s at time now
func (a *Aggregator) weight(s Strategy, e contracts.SentimentEntry, now time.Time) float64 {
	switch s {
	case MentionWeighted:
		return float64(e.MentionCount)
	case ConfidenceWeighted:
		return e.Confidence
	case TimeDecayWeighted:
		return math.Exp(-ageHours(e, now) / a.params.TimeDecayHours)
	case Hybrid:
		return math.Exp(-ageHours(e, now)/a.params.HybridDecayHours) *
			math.Log(float64(e.MentionCount)+1) *
			e.Confidence
	default:
		return 1
	}
}

// ageHours is never negative; entries from the future count as fresh
func ageHours(e contracts.SentimentEntry, now time.Time) float64 {
	age := now.Sub(e.CreatedAt).Hours()
	if age < 0 {
		return 0
	}
	return age
}

// weightedScore combines a group's scores.
// A group whose weights sum to zero falls back to the simple average.
func (a *Aggregator) weightedScore(s Strategy, group []contracts.SentimentEntry, now time.Time) float64 {
	if len(group) == 1 {
		return group[0].Score
	}

	var sum, total float64
	for _, e := range group {
		w := a.weight(s, e, now)
		sum += e.Score * w
		total += w
	}

	if total <= 0 || math.IsNaN(total) {
		return simpleAverage(group)
	}
	return sum / total
}

func simpleAverage(group []contracts.SentimentEntry) float64 {
	if len(group) == 0 {
		return 0
	}
	var sum float64
	for _, e := range group {
		sum += e.Score
	}
	return sum / float64(len(group))
}
