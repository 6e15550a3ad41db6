// Package pipeline runs one synchronous collection pass:
// collect → classify → persist + recompute → rank → prune.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/aegis-pulse/internal/classifier"
	"github.com/wonny/aegis-pulse/internal/collector"
	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/ranker"
	"github.com/wonny/aegis-pulse/internal/realtime"
	"github.com/wonny/aegis-pulse/internal/storage"
	"github.com/wonny/aegis-pulse/internal/ticker"
	"github.com/wonny/aegis-pulse/pkg/logger"
	"github.com/wonny/aegis-pulse/pkg/metrics"
	"github.com/wonny/aegis-pulse/pkg/redis"
)

// ErrRunInProgress is returned when a run is requested while one is active
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Stage names
const (
	StageCollect  = "collect"
	StageClassify = "classify"
	StagePersist  = "persist"
	StageRank     = "rank"
	StagePrune    = "prune"
	StageIngest   = "ingest"
)

// Options tunes a pipeline
type Options struct {
	RawRetention     time.Duration // 0 disables raw pruning
	DisplayRetention time.Duration // 0 disables display pruning
}

// RunResult is the outcome of one run
type RunResult struct {
	RunID           string                   `json:"runId"`
	Success         bool                     `json:"success"`
	DataPoints      int                      `json:"dataPoints"` // sentiment entries produced
	TopPosts        int                      `json:"topPosts"`
	Provenance      contracts.Provenance     `json:"provenance"`
	Timestamp       time.Time                `json:"timestamp"`
	Collected       map[contracts.Source]int `json:"collected"`
	Quarantined     int                      `json:"quarantined"`
	Classified      int                      `json:"classified"`
	Aggregates      int                      `json:"aggregates"`
	FailedTickers   []string                 `json:"failedTickers,omitempty"`
	SourceErrors    map[string]string        `json:"sourceErrors,omitempty"`
	CompletedStages []string                 `json:"completedStages"`
	Duration        time.Duration            `json:"-"`
}

// IngestResult is the outcome of one single-post ingest
type IngestResult struct {
	Post       string                         `json:"post"`
	Tickers    []string                       `json:"tickers"`
	Entries    int                            `json:"entries"`
	Aggregates []contracts.SentimentAggregate `json:"aggregates"`
}

// PruneReport counts rows removed by retention
type PruneReport struct {
	Posts   int64 `json:"posts"`
	Display int64 `json:"display"`
}

// Pipeline coordinates every stage
// ⭐ SSOT: 수집 파이프라인 조율은 여기서만
type Pipeline struct {
	collectors []contracts.PostCollector
	classifier *classifier.Classifier
	trigger    *realtime.Trigger
	ranker     *ranker.Ranker
	store      storage.Store
	extractor  *ticker.Extractor
	opts       Options

	hub     realtime.Broadcaster
	cache   *redis.Cache
	metrics *metrics.Metrics
	now     func() time.Time
	running sync.Mutex
	logger  *logger.Logger
}

// New creates a pipeline
func New(
	collectors []contracts.PostCollector,
	cls *classifier.Classifier,
	trigger *realtime.Trigger,
	rk *ranker.Ranker,
	store storage.Store,
	opts Options,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		collectors: collectors,
		classifier: cls,
		trigger:    trigger,
		ranker:     rk,
		store:      store,
		extractor:  ticker.New(),
		opts:       opts,
		now:        time.Now,
		logger:     log.WithComponent("pipeline"),
	}
}

// WithExtractor replaces the ticker extractor used by Ingest
func (p *Pipeline) WithExtractor(e *ticker.Extractor) *Pipeline {
	p.extractor = e
	return p
}

// WithHub announces ranking refreshes on b
func (p *Pipeline) WithHub(b realtime.Broadcaster) *Pipeline {
	p.hub = b
	return p
}

// WithCache drops cached ranking pages after every re-rank
func (p *Pipeline) WithCache(c *redis.Cache) *Pipeline {
	p.cache = c
	return p
}

// WithMetrics records run and collector metrics
func (p *Pipeline) WithMetrics(m *metrics.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// WithClock overrides the run clock
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run executes one full pass. Only one run may be active at a time.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	if !p.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.running.Unlock()

	start := time.Now()
	now := p.now().UTC()
	result := &RunResult{
		RunID:           uuid.New().String(),
		Timestamp:       now,
		Provenance:      contracts.ProvenanceLive,
		CompletedStages: make([]string, 0, 5),
	}
	log := p.logger.WithField("run_id", result.RunID)
	log.Info("Starting pipeline run")

	err := p.run(ctx, now, result, log)
	result.Duration = time.Since(start)

	status := "success"
	if err != nil {
		status = "failed"
		log.WithError(err).WithField("stages", result.CompletedStages).Error("Pipeline run failed")
	} else {
		result.Success = true
		log.WithFields(map[string]interface{}{
			"data_points": result.DataPoints,
			"top_posts":   result.TopPosts,
			"provenance":  result.Provenance,
			"duration":    result.Duration.Seconds(),
		}).Info("Pipeline run completed")
	}
	p.metrics.ObserveRun(status, result.Duration, now)

	return result, err
}

func (p *Pipeline) run(ctx context.Context, now time.Time, result *RunResult, log *logger.Logger) error {
	// 1. Collect
	batch, err := p.runCollect(ctx, result)
	if err != nil {
		return fmt.Errorf("%s: %w", StageCollect, err)
	}
	result.CompletedStages = append(result.CompletedStages, StageCollect)

	// 2. Classify
	entries, err := p.classifier.Classify(ctx, batch.Posts)
	if err != nil {
		return fmt.Errorf("%s: %w", StageClassify, err)
	}
	posts := classifier.Annotate(batch.Posts, entries, now)
	result.DataPoints = len(entries)
	for i := range posts {
		if posts[i].IsClassified() {
			result.Classified++
		}
	}
	result.CompletedStages = append(result.CompletedStages, StageClassify)

	// 3. Persist + per-ticker recompute
	if err := p.runPersist(ctx, posts, result, log); err != nil {
		return fmt.Errorf("%s: %w", StagePersist, err)
	}
	result.CompletedStages = append(result.CompletedStages, StagePersist)

	// 4. Rank
	top, err := p.rankAt(ctx, now)
	if err != nil {
		return fmt.Errorf("%s: %w", StageRank, err)
	}
	result.TopPosts = top
	result.CompletedStages = append(result.CompletedStages, StageRank)

	// 5. Prune (non-critical)
	if _, err := p.pruneAt(ctx, now); err != nil {
		log.WithError(err).Warn("Retention pruning failed")
	} else {
		result.CompletedStages = append(result.CompletedStages, StagePrune)
	}

	return nil
}

func (p *Pipeline) runCollect(ctx context.Context, result *RunResult) (*collector.Batch, error) {
	batch, err := collector.Run(ctx, p.collectors, p.logger)
	if batch != nil {
		result.Collected = batch.CountBySource()
		result.Provenance = batch.Provenance
		for name, e := range batch.Errors {
			if result.SourceErrors == nil {
				result.SourceErrors = make(map[string]string)
			}
			result.SourceErrors[name] = e.Error()
		}
		for _, r := range batch.Results {
			result.Quarantined += r.Quarantined
			p.observeCollect(r)
		}
	}
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (p *Pipeline) observeCollect(r *contracts.CollectResult) {
	if p.metrics == nil {
		return
	}
	src := string(r.Source)
	p.metrics.PostsCollected.WithLabelValues(src, string(r.Provenance)).Add(float64(len(r.Posts)))
	p.metrics.PostsQuarantined.WithLabelValues(src).Add(float64(r.Quarantined))
	p.metrics.SourceFailures.WithLabelValues(src).Add(float64(len(r.Failed)))
}

// runPersist writes raw posts through the trigger (critical) and the
// display mirror (best effort)
func (p *Pipeline) runPersist(ctx context.Context, posts []contracts.RawPost, result *RunResult, log *logger.Logger) error {
	report, err := p.trigger.OnBatchClassified(ctx, posts)
	if err != nil {
		return err
	}
	result.Aggregates = len(report.Aggregates)
	result.FailedTickers = report.FailedTickers()
	if len(result.FailedTickers) > 0 {
		log.WithField("tickers", result.FailedTickers).Warn("Some ticker recomputes failed")
	}

	if err := p.store.UpsertDisplay(ctx, posts); err != nil {
		log.WithError(err).Warn("Failed to update display mirror")
	}
	return nil
}

// Ingest classifies one post as it arrives and recomputes the aggregates
// of its tickers without waiting for the next batch run. It may run
// alongside Run; aggregate writes are last-write-wins.
func (p *Pipeline) Ingest(ctx context.Context, post contracts.RawPost) (*IngestResult, error) {
	now := p.now().UTC()

	post, err := collector.Prepare(post, now, p.extractor)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageIngest, err)
	}
	log := p.logger.WithField("post", post.Key())

	entries, err := p.classifier.ClassifyPost(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("%s: classify %s: %w", StageIngest, post.Key(), err)
	}
	annotated := classifier.AnnotatePost(post, entries, now)

	aggs, err := p.trigger.OnPostEntries(ctx, annotated, entries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageIngest, err)
	}

	if err := p.store.UpsertDisplay(ctx, []contracts.RawPost{annotated}); err != nil {
		log.WithError(err).Warn("Failed to update display mirror")
	}

	log.WithFields(map[string]interface{}{
		"tickers":    annotated.Tickers,
		"entries":    len(entries),
		"aggregates": len(aggs),
	}).Info("Post ingested")

	return &IngestResult{
		Post:       post.Key(),
		Tickers:    annotated.Tickers,
		Entries:    len(entries),
		Aggregates: aggs,
	}, nil
}

// Rank refreshes the post ranking from stored posts and returns its size
func (p *Pipeline) Rank(ctx context.Context) (int, error) {
	return p.rankAt(ctx, p.now().UTC())
}

func (p *Pipeline) rankAt(ctx context.Context, now time.Time) (int, error) {
	candidates, err := p.store.ListPosts(ctx, storage.PostFilter{
		Since: now.Add(-p.ranker.FeatureWindow()),
	})
	if err != nil {
		return 0, fmt.Errorf("load ranking candidates: %w", err)
	}

	ranked := p.ranker.Rank(ctx, candidates, now)
	if err := p.store.ReplaceRankings(ctx, ranked); err != nil {
		return 0, fmt.Errorf("save rankings: %w", err)
	}

	if p.cache != nil {
		if _, err := p.cache.DeletePrefix(ctx, redis.RankingPrefix); err != nil {
			p.logger.WithError(err).Warn("Failed to invalidate ranking cache")
		}
	}
	if p.metrics != nil {
		p.metrics.RankedPosts.Set(float64(len(ranked)))
	}
	if p.hub != nil {
		p.hub.Broadcast(realtime.Update{Type: realtime.UpdateRanking, TopPosts: len(ranked), Timestamp: now})
	}
	return len(ranked), nil
}

// Prune deletes raw posts and display rows past their retention
func (p *Pipeline) Prune(ctx context.Context) (*PruneReport, error) {
	return p.pruneAt(ctx, p.now().UTC())
}

func (p *Pipeline) pruneAt(ctx context.Context, now time.Time) (*PruneReport, error) {
	report := &PruneReport{}

	if p.opts.RawRetention > 0 {
		n, err := p.store.DeletePostsBefore(ctx, now.Add(-p.opts.RawRetention))
		if err != nil {
			return report, fmt.Errorf("prune posts: %w", err)
		}
		report.Posts = n
	}
	if p.opts.DisplayRetention > 0 {
		n, err := p.store.DeleteDisplayBefore(ctx, now.Add(-p.opts.DisplayRetention))
		if err != nil {
			return report, fmt.Errorf("prune display: %w", err)
		}
		report.Display = n
	}

	if report.Posts > 0 || report.Display > 0 {
		p.logger.WithFields(map[string]interface{}{
			"posts":   report.Posts,
			"display": report.Display,
		}).Info("Retention pruning completed")
	}
	return report, nil
}

// SortedSources returns the collected sources in name order (reports)
func (r *RunResult) SortedSources() []contracts.Source {
	out := make([]contracts.Source, 0, len(r.Collected))
	for s := range r.Collected {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
