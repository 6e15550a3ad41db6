// Package jobs holds the scheduled sentiment pipeline jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/aegis-pulse/internal/pipeline"
	"github.com/wonny/aegis-pulse/internal/scheduler"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

// Default cron schedules (with seconds)
const (
	DefaultCollectionSchedule = "0 0 9 * * *"
	DefaultRankingSchedule    = "0 */15 * * * *"
	DefaultRetentionSchedule  = "0 30 3 * * *"
)

// Runner runs one full collect → classify → persist → rank pass
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunResult, error)
}

// Ranker rebuilds the actionable ranking from stored posts
type Ranker interface {
	Rank(ctx context.Context) (int, error)
}

// Pruner drops rows older than the retention windows
type Pruner interface {
	Prune(ctx context.Context) (*pipeline.PruneReport, error)
}

// SentimentCollectionJob runs the batch pipeline on schedule
type SentimentCollectionJob struct {
	runner   Runner
	schedule string
	logger   *logger.Logger
}

// NewSentimentCollectionJob creates the batch job; empty schedule uses the daily default
func NewSentimentCollectionJob(runner Runner, schedule string, log *logger.Logger) *SentimentCollectionJob {
	if schedule == "" {
		schedule = DefaultCollectionSchedule
	}
	return &SentimentCollectionJob{
		runner:   runner,
		schedule: schedule,
		logger:   log.WithComponent("job.sentiment_collection"),
	}
}

func (j *SentimentCollectionJob) Name() string     { return "sentiment_collection" }
func (j *SentimentCollectionJob) Schedule() string { return j.schedule }

// Run executes one pipeline pass; a pass already in flight is a skip, not a failure
func (j *SentimentCollectionJob) Run(ctx context.Context) error {
	result, err := j.runner.Run(ctx)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		j.logger.Warn("Pipeline run already in progress")
		return scheduler.ErrSkipped
	}
	if err != nil {
		return fmt.Errorf("sentiment pipeline: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":      result.RunID,
		"data_points": result.DataPoints,
		"top_posts":   result.TopPosts,
		"provenance":  result.Provenance,
		"timestamp":   result.Timestamp,
	}).Info("Sentiment collection completed")

	return nil
}

// RankingRefreshJob re-ranks stored posts between batch runs
type RankingRefreshJob struct {
	ranker   Ranker
	schedule string
	logger   *logger.Logger
}

// NewRankingRefreshJob creates the ranking job; empty schedule uses every 15 minutes
func NewRankingRefreshJob(ranker Ranker, schedule string, log *logger.Logger) *RankingRefreshJob {
	if schedule == "" {
		schedule = DefaultRankingSchedule
	}
	return &RankingRefreshJob{
		ranker:   ranker,
		schedule: schedule,
		logger:   log.WithComponent("job.ranking_refresh"),
	}
}

func (j *RankingRefreshJob) Name() string     { return "ranking_refresh" }
func (j *RankingRefreshJob) Schedule() string { return j.schedule }

func (j *RankingRefreshJob) Run(ctx context.Context) error {
	n, err := j.ranker.Rank(ctx)
	if err != nil {
		return fmt.Errorf("rank posts: %w", err)
	}
	j.logger.WithField("ranked", n).Info("Ranking refreshed")
	return nil
}

// RetentionJob enforces the raw and display retention windows
type RetentionJob struct {
	pruner   Pruner
	schedule string
	logger   *logger.Logger
}

// NewRetentionJob creates the retention job; empty schedule runs daily at 03:30
func NewRetentionJob(pruner Pruner, schedule string, log *logger.Logger) *RetentionJob {
	if schedule == "" {
		schedule = DefaultRetentionSchedule
	}
	return &RetentionJob{
		pruner:   pruner,
		schedule: schedule,
		logger:   log.WithComponent("job.retention"),
	}
}

func (j *RetentionJob) Name() string     { return "retention" }
func (j *RetentionJob) Schedule() string { return j.schedule }

func (j *RetentionJob) Run(ctx context.Context) error {
	report, err := j.pruner.Prune(ctx)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	j.logger.WithFields(map[string]interface{}{
		"posts":   report.Posts,
		"display": report.Display,
	}).Info("Retention applied")
	return nil
}

var (
	_ scheduler.Job = (*SentimentCollectionJob)(nil)
	_ scheduler.Job = (*RankingRefreshJob)(nil)
	_ scheduler.Job = (*RetentionJob)(nil)
	_ Runner        = (*pipeline.Pipeline)(nil)
	_ Ranker        = (*pipeline.Pipeline)(nil)
	_ Pruner        = (*pipeline.Pipeline)(nil)
)
