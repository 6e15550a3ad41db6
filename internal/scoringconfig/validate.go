package scoringconfig

import (
	"fmt"
	"math"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Strategies lists the accepted aggregation strategy names
var Strategies = []string{
	"simple_average",
	"mention_weighted",
	"confidence_weighted",
	"time_decay_weighted",
	"hybrid",
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Aggregation ===
	if !knownStrategy(cfg.Aggregation.DefaultStrategy) {
		return ValidationError{"aggregation.default_strategy", fmt.Sprintf("unknown strategy %q", cfg.Aggregation.DefaultStrategy)}
	}
	if cfg.Aggregation.TimeDecayHours <= 0 {
		return ValidationError{"aggregation.time_decay_hours", "must be > 0"}
	}
	if cfg.Aggregation.HybridDecayHours <= 0 {
		return ValidationError{"aggregation.hybrid_decay_hours", "must be > 0"}
	}
	if cfg.Aggregation.TrendThreshold < 0 || cfg.Aggregation.TrendThreshold > 2 {
		return ValidationError{"aggregation.trend_threshold", "must be in [0, 2]"}
	}
	if cfg.Aggregation.MaxThemes < 1 {
		return ValidationError{"aggregation.max_themes", "must be >= 1"}
	}

	// === Classifier ===
	if cfg.Classifier.MinMentions < 1 {
		return ValidationError{"classifier.min_mentions", "must be >= 1"}
	}
	if cfg.Classifier.MaxEntries < 1 {
		return ValidationError{"classifier.max_entries", "must be >= 1"}
	}
	if err := validateUnit("classifier.fallback_confidence_no_hits", cfg.Classifier.FallbackNoHits); err != nil {
		return err
	}
	if err := validateUnit("classifier.fallback_confidence_with_hits", cfg.Classifier.FallbackWithHits); err != nil {
		return err
	}
	if cfg.Classifier.MaxContextsPerTicker < 1 {
		return ValidationError{"classifier.max_contexts_per_ticker", "must be >= 1"}
	}

	// === Trigger ===
	if err := validateUnit("trigger.min_confidence", cfg.Trigger.MinConfidence); err != nil {
		return err
	}

	// === Ranking ===
	w := cfg.Ranking.Weights
	for name, v := range map[string]float64{
		"velocity":      w.Velocity,
		"actionability": w.Actionability,
		"catalyst":      w.Catalyst,
		"time_decay":    w.TimeDecay,
	} {
		if v < 0 {
			return ValidationError{"ranking.weights." + name, "must be >= 0"}
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-6 {
		return ValidationError{"ranking.weights", fmt.Sprintf("sum must be 1.0, got %.6f", w.Sum())}
	}
	if cfg.Ranking.DecayMinutes <= 0 {
		return ValidationError{"ranking.decay_minutes", "must be > 0"}
	}
	if cfg.Ranking.EligibilityHours <= 0 {
		return ValidationError{"ranking.eligibility_hours", "must be > 0"}
	}
	if cfg.Ranking.FeatureHours < cfg.Ranking.EligibilityHours {
		return ValidationError{"ranking.feature_hours", "must be >= eligibility_hours"}
	}
	if cfg.Ranking.TopN < 1 {
		return ValidationError{"ranking.top_n", "must be >= 1"}
	}

	return nil
}

func knownStrategy(name string) bool {
	for _, s := range Strategies {
		if s == name {
			return true
		}
	}
	return false
}

func validateUnit(field string, v float64) error {
	if v < 0 || v > 1 || math.IsNaN(v) {
		return ValidationError{field, "must be in [0, 1]"}
	}
	return nil
}
