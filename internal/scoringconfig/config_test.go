package scoringconfig

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RepoFile(t *testing.T) {
	path := "../../config/scoring.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, err := Load(path)
	require.NoError(t, err)

	// 파일과 기본값은 동일해야 함
	assert.Equal(t, Default(), cfg)

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	hash2, _ := Hash(Default())
	assert.Equal(t, hash, hash2, "hash not deterministic")
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "hybrid", cfg.Aggregation.DefaultStrategy)
	assert.InDelta(t, 1.0, cfg.Ranking.Weights.Sum(), 1e-9)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(`
aggregation:
  default_strategy: mention_weighted
ranking:
  weights:
    velocity: 0.5
    actionability: 0.25
    catalyst: 0.15
    time_decay: 0.1
`))
	require.NoError(t, err)
	assert.Equal(t, "mention_weighted", cfg.Aggregation.DefaultStrategy)
	assert.Equal(t, 0.5, cfg.Ranking.Weights.Velocity)
	// untouched fields keep defaults
	assert.Equal(t, 48.0, cfg.Aggregation.HybridDecayHours)
	assert.Equal(t, 20, cfg.Ranking.TopN)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("aggregation:\n  default_stratgy: hybrid\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown strategy", func(c *Config) { c.Aggregation.DefaultStrategy = "median" }, "aggregation.default_strategy"},
		{"zero decay", func(c *Config) { c.Aggregation.HybridDecayHours = 0 }, "aggregation.hybrid_decay_hours"},
		{"weights sum", func(c *Config) { c.Ranking.Weights.Velocity = 0.5 }, "ranking.weights"},
		{"negative weight", func(c *Config) {
			c.Ranking.Weights.Velocity = 1.2
			c.Ranking.Weights.Catalyst = -0.2
		}, "ranking.weights.catalyst"},
		{"feature window shorter", func(c *Config) { c.Ranking.FeatureHours = 12 }, "ranking.feature_hours"},
		{"trigger confidence", func(c *Config) { c.Trigger.MinConfidence = 1.5 }, "trigger.min_confidence"},
		{"min mentions", func(c *Config) { c.Classifier.MinMentions = 0 }, "classifier.min_mentions"},
	}

	require.NoError(t, Validate(Default()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
