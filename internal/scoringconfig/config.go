// Package scoringconfig holds the tunable weights of aggregation,
// classification and ranking, loaded from YAML.
package scoringconfig

// Config는 감성 집계/랭킹의 전체 튜닝 설정
type Config struct {
	Meta        Meta        `yaml:"meta" json:"meta"`
	Aggregation Aggregation `yaml:"aggregation" json:"aggregation"`
	Classifier  Classifier  `yaml:"classifier" json:"classifier"`
	Trigger     Trigger     `yaml:"trigger" json:"trigger"`
	Ranking     Ranking     `yaml:"ranking" json:"ranking"`
}

// Meta 메타 정보
type Meta struct {
	ConfigID string `yaml:"config_id" json:"config_id"`
	Version  string `yaml:"version" json:"version"`
}

// Aggregation 집계 전략 파라미터
type Aggregation struct {
	DefaultStrategy  string  `yaml:"default_strategy" json:"default_strategy"`
	TimeDecayHours   float64 `yaml:"time_decay_hours" json:"time_decay_hours"`     // time_decay_weighted
	HybridDecayHours float64 `yaml:"hybrid_decay_hours" json:"hybrid_decay_hours"` // hybrid
	TrendThreshold   float64 `yaml:"trend_threshold" json:"trend_threshold"`
	MaxThemes        int     `yaml:"max_themes" json:"max_themes"`
}

// Classifier 분류기 후처리 파라미터
type Classifier struct {
	MinMentions          int     `yaml:"min_mentions" json:"min_mentions"`
	MaxEntries           int     `yaml:"max_entries" json:"max_entries"`
	FallbackNoHits       float64 `yaml:"fallback_confidence_no_hits" json:"fallback_confidence_no_hits"`
	FallbackWithHits     float64 `yaml:"fallback_confidence_with_hits" json:"fallback_confidence_with_hits"`
	MaxContextsPerTicker int     `yaml:"max_contexts_per_ticker" json:"max_contexts_per_ticker"`
}

// Trigger 실시간 재계산 조건
type Trigger struct {
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`
}

// Ranking 게시물 랭킹 파라미터
type Ranking struct {
	Weights          RankingWeights `yaml:"weights" json:"weights"` // 합 = 1.0
	DecayMinutes     float64        `yaml:"decay_minutes" json:"decay_minutes"`
	EligibilityHours float64        `yaml:"eligibility_hours" json:"eligibility_hours"`
	FeatureHours     float64        `yaml:"feature_hours" json:"feature_hours"`
	TopN             int            `yaml:"top_n" json:"top_n"`
}

// RankingWeights composite score 가중치
type RankingWeights struct {
	Velocity      float64 `yaml:"velocity" json:"velocity"`
	Actionability float64 `yaml:"actionability" json:"actionability"`
	Catalyst      float64 `yaml:"catalyst" json:"catalyst"`
	TimeDecay     float64 `yaml:"time_decay" json:"time_decay"`
}

// Sum returns the sum of all weights
func (w RankingWeights) Sum() float64 {
	return w.Velocity + w.Actionability + w.Catalyst + w.TimeDecay
}

// Default returns the built-in tuning, identical to config/scoring.yaml
func Default() *Config {
	return &Config{
		Meta: Meta{ConfigID: "pulse_scoring", Version: "1"},
		Aggregation: Aggregation{
			DefaultStrategy:  "hybrid",
			TimeDecayHours:   24,
			HybridDecayHours: 48,
			TrendThreshold:   0.1,
			MaxThemes:        10,
		},
		Classifier: Classifier{
			MinMentions:          2,
			MaxEntries:           50,
			FallbackNoHits:       0.3,
			FallbackWithHits:     0.5,
			MaxContextsPerTicker: 5,
		},
		Trigger: Trigger{MinConfidence: 0.3},
		Ranking: Ranking{
			Weights: RankingWeights{
				Velocity:      0.4,
				Actionability: 0.3,
				Catalyst:      0.2,
				TimeDecay:     0.1,
			},
			DecayMinutes:     240,
			EligibilityHours: 24,
			FeatureHours:     36,
			TopN:             20,
		},
	}
}
