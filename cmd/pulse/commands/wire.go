package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-pulse/internal/aggregator"
	"github.com/wonny/aegis-pulse/internal/classifier"
	"github.com/wonny/aegis-pulse/internal/collector"
	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/external/llm"
	"github.com/wonny/aegis-pulse/internal/external/reddit"
	"github.com/wonny/aegis-pulse/internal/external/twitter"
	"github.com/wonny/aegis-pulse/internal/pipeline"
	"github.com/wonny/aegis-pulse/internal/ranker"
	"github.com/wonny/aegis-pulse/internal/realtime"
	"github.com/wonny/aegis-pulse/internal/scoringconfig"
	"github.com/wonny/aegis-pulse/internal/storage"
	"github.com/wonny/aegis-pulse/internal/storage/memory"
	"github.com/wonny/aegis-pulse/internal/storage/postgres"
	"github.com/wonny/aegis-pulse/internal/ticker"
	"github.com/wonny/aegis-pulse/pkg/config"
	"github.com/wonny/aegis-pulse/pkg/database"
	"github.com/wonny/aegis-pulse/pkg/httputil"
	"github.com/wonny/aegis-pulse/pkg/logger"
	"github.com/wonny/aegis-pulse/pkg/metrics"
	"github.com/wonny/aegis-pulse/pkg/redis"
)

const cachePrefix = "pulse"

// app holds every long-lived dependency of one process
// ⭐ SSOT: 의존성 조립은 여기서만 (DI)
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	scoring *scoringconfig.Config
	metrics *metrics.Metrics

	db    *database.DB // nil for the memory driver
	store storage.Store
	redis *redis.Client
	cache *redis.Cache

	hub      *realtime.Hub
	trigger  *realtime.Trigger
	pipeline *pipeline.Pipeline
}

// loadConfig reads config and builds the process logger
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.New(cfg), nil
}

// newApp builds the full dependency graph
func newApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, metrics: metrics.New()}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	scoring, err := scoringconfig.Load(cfg.Pipeline.ScoringConfigPath)
	if err != nil {
		return fmt.Errorf("load scoring config: %w", err)
	}
	a.scoring = scoring
	if hash, err := scoringconfig.Hash(scoring); err == nil {
		log.WithFields(map[string]interface{}{
			"config_id": scoring.Meta.ConfigID,
			"version":   scoring.Meta.Version,
			"hash":      hash,
		}).Info("Scoring config loaded")
	}

	// 1. Storage
	switch cfg.Database.Driver {
	case "memory":
		a.store = memory.New()
		log.Warn("Using in-memory storage, data is lost on exit")
	default:
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.store = postgres.New(db)
		log.Info("Connected to database")
	}

	// 2. Redis (disabled config yields a no-op client)
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, running without cache")
		rc = redis.Disabled()
	}
	a.redis = rc
	a.cache = redis.NewCache(rc, cachePrefix)

	// 3. Collectors
	extractor := ticker.New()
	collectors := a.collectors(extractor)

	// 4. Classifier
	llmClient := llm.NewClient(cfg.LLM, log)
	cls := classifier.New(llmClient, classifier.OptionsFrom(scoring.Classifier, cfg.LLM.BatchSize), log).
		OnFallback(func(reason string, tickers int) {
			a.metrics.ClassifierFallback.WithLabelValues(reason).Add(float64(tickers))
		})
	if !llmClient.Configured() {
		log.Warn("OPENAI_API_KEY not set, keyword heuristic only")
	}

	// 5. Aggregation + real-time trigger
	strategy, err := aggregator.ParseStrategy(scoring.Aggregation.DefaultStrategy)
	if err != nil {
		return err
	}
	agg := aggregator.New(aggregator.Params{
		TimeDecayHours:   scoring.Aggregation.TimeDecayHours,
		HybridDecayHours: scoring.Aggregation.HybridDecayHours,
		TrendThreshold:   scoring.Aggregation.TrendThreshold,
		MaxThemes:        scoring.Aggregation.MaxThemes,
	})

	a.hub = realtime.NewHub(a.metrics, log)
	a.trigger, err = realtime.New(a.store, agg, realtime.Options{
		Periods:       cfg.Pipeline.Periods,
		Strategy:      strategy,
		MinConfidence: scoring.Trigger.MinConfidence,
		CacheTTL:      cfg.Redis.CacheTTL,
	}, log)
	if err != nil {
		return fmt.Errorf("create trigger: %w", err)
	}
	a.trigger.WithHub(a.hub).WithCache(a.cache).WithMetrics(a.metrics)

	// 6. Ranker
	rk := ranker.NewRanker(rankerParams(scoring.Ranking, cfg.Pipeline.TopPosts), extractor, log)

	// 7. Pipeline
	a.pipeline = pipeline.New(collectors, cls, a.trigger, rk, a.store, pipeline.Options{
		RawRetention:     cfg.Pipeline.RawRetention,
		DisplayRetention: cfg.Pipeline.DisplayRetention,
	}, log).WithHub(a.hub).WithCache(a.cache).WithMetrics(a.metrics)

	return nil
}

// collectors builds the Reddit and Twitter collectors
func (a *app) collectors(extractor *ticker.Extractor) []contracts.PostCollector {
	cfg, log := a.cfg, a.log

	redditHTTP := httputil.New(log, cfg.Reddit.Timeout).
		WithRetry(cfg.Reddit.MaxAttempts, cfg.Reddit.BackoffBase, cfg.Reddit.JitterMin)
	pacer := collector.NewPacer(cfg.Reddit.MinSpacing, cfg.Reddit.JitterMin, cfg.Reddit.JitterMax)
	redditCollector := collector.NewRedditCollector(
		reddit.NewClient(redditHTTP, cfg.Reddit.BaseURL, log),
		pacer,
		extractor,
		collector.RedditOptions{
			Subreddits:       cfg.Reddit.Subreddits,
			PostLimit:        cfg.Reddit.PostLimit,
			ListingDelay:     cfg.Reddit.ListingDelay,
			CommentThreshold: cfg.Reddit.CommentThreshold,
			CommentTopN:      cfg.Reddit.CommentTopN,
			CommentDepth:     cfg.Reddit.CommentDepth,
		},
		log,
	)

	twitterHTTP := httputil.New(log, cfg.Twitter.Timeout).
		WithRateLimiter(redis.NewRateLimiter(a.redis, cachePrefix), redis.TwitterRateLimit(cfg.Twitter.WindowLimit))
	twitterCollector := collector.NewTwitterCollector(
		twitter.NewClient(twitterHTTP, cfg.Twitter.BaseURL, cfg.Twitter.BearerToken, log),
		extractor,
		cfg.Twitter.Accounts,
		cfg.Twitter.MaxResults,
		log,
	)

	return []contracts.PostCollector{redditCollector, twitterCollector}
}

// rankerParams maps scoring config onto ranker params; topPosts > 0 overrides top_n
func rankerParams(r scoringconfig.Ranking, topPosts int) ranker.Params {
	p := ranker.Params{
		Weights: ranker.WeightConfig{
			Velocity:      r.Weights.Velocity,
			Actionability: r.Weights.Actionability,
			Catalyst:      r.Weights.Catalyst,
			TimeDecay:     r.Weights.TimeDecay,
		},
		DecayMinutes:      r.DecayMinutes,
		EligibilityWindow: hours(r.EligibilityHours),
		FeatureWindow:     hours(r.FeatureHours),
		TopN:              r.TopN,
	}
	if topPosts > 0 {
		p.TopN = topPosts
	}
	return p
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

func (a *app) close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
