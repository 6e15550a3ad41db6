// Package classifier turns collected posts into per-ticker sentiment
// entries through a batched LLM prompt, with a keyword heuristic when the
// model is unavailable or its answer cannot be parsed.
package classifier

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/scoringconfig"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

// Completer sends one prompt to a language model
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// configurable is implemented by completers that may lack credentials
type configurable interface {
	Configured() bool
}

// Options tunes batching and post-filtering
type Options struct {
	BatchSize        int // tickers per prompt
	MinMentions      int
	MaxEntries       int
	MaxContexts      int
	FallbackNoHits   float64
	FallbackWithHits float64
}

// OptionsFrom maps scoring config onto classifier options
func OptionsFrom(cfg scoringconfig.Classifier, batchSize int) Options {
	return Options{
		BatchSize:        batchSize,
		MinMentions:      cfg.MinMentions,
		MaxEntries:       cfg.MaxEntries,
		MaxContexts:      cfg.MaxContextsPerTicker,
		FallbackNoHits:   cfg.FallbackNoHits,
		FallbackWithHits: cfg.FallbackWithHits,
	}
}

// DefaultOptions returns the built-in options
func DefaultOptions() Options {
	return OptionsFrom(scoringconfig.Default().Classifier, 10)
}

// Classifier implements contracts.SentimentClassifier
// ⭐ SSOT: 감성 분류 + 폴백 로직은 여기서만
type Classifier struct {
	completer  Completer
	opts       Options
	now        func() time.Time
	onFallback func(reason string, tickers int)
	logger     *logger.Logger
}

// New creates a classifier; a nil or unconfigured completer means every
// batch uses the keyword heuristic
func New(completer Completer, opts Options, log *logger.Logger) *Classifier {
	def := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = def.MaxEntries
	}
	if opts.MaxContexts <= 0 {
		opts.MaxContexts = def.MaxContexts
	}
	if opts.FallbackNoHits <= 0 {
		opts.FallbackNoHits = def.FallbackNoHits
	}
	if opts.FallbackWithHits <= 0 {
		opts.FallbackWithHits = def.FallbackWithHits
	}

	if c, ok := completer.(configurable); ok && !c.Configured() {
		completer = nil
	}

	return &Classifier{
		completer:  completer,
		opts:       opts,
		now:        time.Now,
		onFallback: func(string, int) {},
		logger:     log.WithComponent("classifier"),
	}
}

// WithClock overrides the classification clock
func (c *Classifier) WithClock(now func() time.Time) *Classifier {
	c.now = now
	return c
}

// OnFallback registers a hook called whenever the heuristic replaces the model
func (c *Classifier) OnFallback(hook func(reason string, tickers int)) *Classifier {
	if hook != nil {
		c.onFallback = hook
	}
	return c
}

// group accumulates one (source, ticker) pair
type group struct {
	Group
	source     contracts.Source
	latest     time.Time
	upvotes    int64
	comments   int64
	provenance contracts.Provenance
	texts      []string
}

// Classify groups posts by source and eligible ticker, classifies each
// group and post-filters: mention_count < MinMentions is dropped, the
// rest sorted by mentions desc and capped at MaxEntries.
func (c *Classifier) Classify(ctx context.Context, posts []contracts.RawPost) ([]contracts.SentimentEntry, error) {
	groups := c.buildGroups(posts)

	bySource := make(map[contracts.Source][]*group)
	var sources []contracts.Source
	for _, g := range groups {
		if _, ok := bySource[g.source]; !ok {
			sources = append(sources, g.source)
		}
		bySource[g.source] = append(bySource[g.source], g)
	}

	var entries []contracts.SentimentEntry
	for _, src := range sources {
		list := bySource[src]
		for start := 0; start < len(list); start += c.opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			end := min(start+c.opts.BatchSize, len(list))
			entries = append(entries, c.classifyBatch(ctx, list[start:end])...)
		}
	}

	filtered := c.postFilter(entries)

	c.logger.WithFields(map[string]interface{}{
		"posts":   len(posts),
		"groups":  len(groups),
		"entries": len(filtered),
		"dropped": len(entries) - len(filtered),
	}).Info("Classification completed")

	return filtered, nil
}

// ClassifyPost classifies a single post, one entry per eligible ticker.
// No mention filter is applied.
func (c *Classifier) ClassifyPost(ctx context.Context, post contracts.RawPost) ([]contracts.SentimentEntry, error) {
	if len(post.Tickers) == 0 {
		return nil, nil
	}

	groups := make([]*group, 0, len(post.Tickers))
	for _, symbol := range post.Tickers {
		groups = append(groups, &group{
			Group:      Group{Ticker: symbol, Mentions: 1, Contexts: []string{post.Text}},
			source:     post.Source,
			latest:     post.CreatedAt,
			upvotes:    post.Engagement.Likes,
			comments:   post.Engagement.Replies,
			provenance: post.Provenance,
			texts:      []string{post.Text},
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries := c.classifyBatch(ctx, groups)
	for i := range entries {
		entries[i].PostID = post.Key()
		entries[i].Author = post.Author
	}
	return entries, nil
}

func (c *Classifier) buildGroups(posts []contracts.RawPost) []*group {
	index := make(map[string]*group)
	var order []*group

	for _, p := range posts {
		for _, symbol := range p.Tickers {
			key := string(p.Source) + ":" + symbol
			g, ok := index[key]
			if !ok {
				g = &group{
					Group:      Group{Ticker: symbol},
					source:     p.Source,
					provenance: contracts.ProvenanceLive,
				}
				index[key] = g
				order = append(order, g)
			}
			g.Mentions++
			if len(g.Contexts) < c.opts.MaxContexts {
				g.Contexts = append(g.Contexts, p.Text)
			}
			g.texts = append(g.texts, p.Text)
			if p.CreatedAt.After(g.latest) {
				g.latest = p.CreatedAt
			}
			g.upvotes += p.Engagement.Likes
			g.comments += p.Engagement.Replies
			g.provenance = g.provenance.Merge(p.Provenance)
		}
	}
	return order
}

// classifyBatch asks the model once for the whole batch. Tickers the
// model skipped, or the whole batch on error, use the heuristic.
func (c *Classifier) classifyBatch(ctx context.Context, batch []*group) []contracts.SentimentEntry {
	results := make(map[string]contracts.SentimentEntry, len(batch))

	if c.completer != nil {
		prompts := make([]Group, len(batch))
		for i, g := range batch {
			prompts[i] = g.Group
		}

		items, err := c.ask(ctx, BuildPrompt(prompts))
		if err != nil {
			c.logger.WithError(err).WithField("tickers", len(batch)).Warn("LLM classification failed, using keyword fallback")
			c.onFallback("llm_error", len(batch))
		}
		for _, it := range items {
			if e, ok := it.normalize(); ok {
				if _, dup := results[e.Ticker]; !dup {
					results[e.Ticker] = e
				}
			}
		}
	} else {
		c.onFallback("no_credentials", len(batch))
	}

	out := make([]contracts.SentimentEntry, 0, len(batch))
	missing := 0
	for _, g := range batch {
		e, ok := results[g.Ticker]
		if !ok {
			e = c.keywordEntry(g)
			missing++
		}
		out = append(out, c.attribute(e, g))
	}
	if c.completer != nil && missing > 0 && len(results) > 0 {
		c.onFallback("missing_ticker", missing)
	}
	return out
}

func (c *Classifier) ask(ctx context.Context, prompt string) ([]Item, error) {
	text, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	items, err := ParseResponse(text)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return items, nil
}

func (c *Classifier) keywordEntry(g *group) contracts.SentimentEntry {
	res := KeywordScore(strings.Join(g.texts, "\n"))

	conf := c.opts.FallbackNoHits
	if res.Hits() > 0 {
		conf = c.opts.FallbackWithHits
	}

	themes := res.Themes
	if len(themes) > 3 {
		themes = themes[:3]
	}

	return contracts.SentimentEntry{
		Ticker:     g.Ticker,
		Score:      contracts.ClampScore(res.Score),
		Confidence: conf,
		KeyThemes:  themes,
		Summary:    fmt.Sprintf("keyword heuristic: %d positive, %d negative", res.Positive, res.Negative),
	}
}

// attribute fills the group-level fields the model does not know
func (c *Classifier) attribute(e contracts.SentimentEntry, g *group) contracts.SentimentEntry {
	e.Ticker = g.Ticker
	e.MentionCount = g.Mentions
	e.Source = g.source
	e.CreatedAt = g.latest
	if e.CreatedAt.IsZero() {
		e.CreatedAt = c.now().UTC()
	}
	e.Upvotes = g.upvotes
	e.Comments = g.comments
	e.Provenance = g.provenance
	return e
}

func (c *Classifier) postFilter(entries []contracts.SentimentEntry) []contracts.SentimentEntry {
	kept := make([]contracts.SentimentEntry, 0, len(entries))
	for _, e := range entries {
		if e.MentionCount >= c.opts.MinMentions {
			kept = append(kept, e)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].MentionCount != kept[j].MentionCount {
			return kept[i].MentionCount > kept[j].MentionCount
		}
		if kept[i].Ticker != kept[j].Ticker {
			return kept[i].Ticker < kept[j].Ticker
		}
		return kept[i].Source < kept[j].Source
	})

	if len(kept) > c.opts.MaxEntries {
		kept = kept[:c.opts.MaxEntries]
	}
	return kept
}

// Annotate copies classification results onto the posts they came from.
// Every ticker of a post that has an entry is kept; the first one becomes
// the post's primary ticker.
func Annotate(posts []contracts.RawPost, entries []contracts.SentimentEntry, now time.Time) []contracts.RawPost {
	index := make(map[string]contracts.SentimentEntry, len(entries))
	for _, e := range entries {
		index[string(e.Source)+":"+e.Ticker] = e
	}

	out := make([]contracts.RawPost, len(posts))
	for i, p := range posts {
		out[i] = p

		var sentiments []contracts.TickerSentiment
		for _, symbol := range p.Tickers {
			e, ok := index[string(p.Source)+":"+symbol]
			if !ok {
				continue
			}
			sentiments = append(sentiments, contracts.TickerSentiment{
				Ticker:     symbol,
				Score:      e.Score,
				Label:      e.Label(),
				Confidence: e.Confidence,
				KeyThemes:  e.KeyThemes,
			})
		}
		if len(sentiments) == 0 {
			continue
		}

		ts := now
		primary := sentiments[0]
		out[i].Sentiments = sentiments
		out[i].Ticker = primary.Ticker
		out[i].MentionCount = 1
		out[i].SentimentScore = primary.Score
		out[i].SentimentLabel = primary.Label
		out[i].Confidence = primary.Confidence
		out[i].KeyThemes = primary.KeyThemes
		out[i].ClassifiedAt = &ts
	}
	return out
}

// AnnotatePost applies a single-post classification (real-time path)
func AnnotatePost(post contracts.RawPost, entries []contracts.SentimentEntry, now time.Time) contracts.RawPost {
	return Annotate([]contracts.RawPost{post}, entries, now)[0]
}
