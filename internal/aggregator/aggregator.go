// Package aggregator combines per-post sentiment entries into per-ticker
// rollups. Every function here is pure given the injected clock.
package aggregator

import (
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/wonny/aegis-pulse/internal/contracts"
)

// ErrNoEntries is returned when a ticker group is empty
var ErrNoEntries = errors.New("no sentiment entries")

// Params 집계 파라미터
type Params struct {
	TimeDecayHours   float64
	HybridDecayHours float64
	TrendThreshold   float64
	MaxThemes        int
}

// DefaultParams returns the standard tuning
func DefaultParams() Params {
	return Params{
		TimeDecayHours:   24,
		HybridDecayHours: 48,
		TrendThreshold:   0.1,
		MaxThemes:        10,
	}
}

// Aggregator 감성 집계기
type Aggregator struct {
	params Params
	now    func() time.Time
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithClock injects the reference time used for decay weights
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New creates an aggregator; zero params fall back to defaults
func New(params Params, opts ...Option) *Aggregator {
	def := DefaultParams()
	if params.TimeDecayHours <= 0 {
		params.TimeDecayHours = def.TimeDecayHours
	}
	if params.HybridDecayHours <= 0 {
		params.HybridDecayHours = def.HybridDecayHours
	}
	if params.MaxThemes <= 0 {
		params.MaxThemes = def.MaxThemes
	}

	a := &Aggregator{params: params, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate groups entries by ticker and combines each group.
// Tickers with no entries never appear in the result.
func (a *Aggregator) Aggregate(entries []contracts.SentimentEntry, strategy Strategy, period string) map[string]contracts.SentimentAggregate {
	now := a.now()
	groups, order := groupByTicker(entries)

	out := make(map[string]contracts.SentimentAggregate, len(groups))
	for _, ticker := range order {
		out[ticker] = a.combine(ticker, groups[ticker], strategy, period, now)
	}
	return out
}

// AggregateTicker combines a single ticker's entries.
// Entries for other tickers are ignored.
func (a *Aggregator) AggregateTicker(ticker string, entries []contracts.SentimentEntry, strategy Strategy, period string) (contracts.SentimentAggregate, error) {
	group := make([]contracts.SentimentEntry, 0, len(entries))
	for _, e := range entries {
		if e.Ticker == ticker {
			group = append(group, e)
		}
	}
	if len(group) == 0 {
		return contracts.SentimentAggregate{}, ErrNoEntries
	}
	return a.combine(ticker, group, strategy, period, a.now()), nil
}

func (a *Aggregator) combine(ticker string, group []contracts.SentimentEntry, strategy Strategy, period string, now time.Time) contracts.SentimentAggregate {
	if strategy == "" {
		strategy = Hybrid
	}

	score := contracts.ClampScore(a.weightedScore(strategy, group, now))

	agg := contracts.SentimentAggregate{
		Ticker:          ticker,
		Score:           score,
		Label:           contracts.LabelFor(score),
		Confidence:      mentionWeightedConfidence(group),
		KeyThemes:       themes(group, a.params.MaxThemes),
		SourceBreakdown: breakdown(group),
		Trend:           a.trend(group),
		Strategy:        string(strategy),
		CalculatedAt:    now,
		Period:          period,
		Provenance:      provenance(group),
	}

	posts := make(map[string]struct{}, len(group))
	authors := make(map[string]struct{}, len(group))
	for i, e := range group {
		agg.TotalMentions += e.MentionCount

		// entries without a post id are distinct posts
		postKey := e.PostID
		if postKey == "" {
			postKey = "#" + strconv.Itoa(i)
		}
		if _, seen := posts[postKey]; !seen {
			posts[postKey] = struct{}{}
			agg.TotalUpvotes += e.Upvotes
			agg.TotalComments += e.Comments
		}
		if e.Author != "" {
			authors[e.Author] = struct{}{}
		}
	}
	agg.UniquePosts = len(posts)
	agg.UniqueAuthors = len(authors)

	return agg
}

// groupByTicker keeps first-seen ticker order and input order within a group
func groupByTicker(entries []contracts.SentimentEntry) (map[string][]contracts.SentimentEntry, []string) {
	groups := make(map[string][]contracts.SentimentEntry)
	var order []string
	for _, e := range entries {
		if e.Ticker == "" {
			continue
		}
		if _, ok := groups[e.Ticker]; !ok {
			order = append(order, e.Ticker)
		}
		groups[e.Ticker] = append(groups[e.Ticker], e)
	}
	return groups, order
}

// breakdown is independent of the strategy: mention sums and simple averages
func breakdown(group []contracts.SentimentEntry) map[contracts.Source]contracts.SourceStats {
	type acc struct {
		mentions int
		sum      float64
		n        int
	}
	accs := make(map[contracts.Source]*acc)
	for _, e := range group {
		s, ok := accs[e.Source]
		if !ok {
			s = &acc{}
			accs[e.Source] = s
		}
		s.mentions += e.MentionCount
		s.sum += e.Score
		s.n++
	}

	out := make(map[contracts.Source]contracts.SourceStats, len(accs))
	for src, s := range accs {
		out[src] = contracts.SourceStats{
			Mentions:     s.mentions,
			AvgSentiment: s.sum / float64(s.n),
		}
	}
	return out
}

// themes is the deduplicated union in insertion order, capped
func themes(group []contracts.SentimentEntry, limit int) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, limit)
	for _, e := range group {
		for _, t := range e.KeyThemes {
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

// trend compares the simple average of the chronologically first half
// against the second half
func (a *Aggregator) trend(group []contracts.SentimentEntry) contracts.Trend {
	if len(group) < 2 {
		return contracts.TrendStable
	}

	sorted := make([]contracts.SentimentEntry, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	mid := len(sorted) / 2
	diff := simpleAverage(sorted[mid:]) - simpleAverage(sorted[:mid])

	switch {
	case diff > a.params.TrendThreshold:
		return contracts.TrendRising
	case diff < -a.params.TrendThreshold:
		return contracts.TrendFalling
	default:
		return contracts.TrendStable
	}
}

// mentionWeightedConfidence averages confidences weighted by mentions
func mentionWeightedConfidence(group []contracts.SentimentEntry) float64 {
	var sum, total float64
	for _, e := range group {
		m := float64(e.MentionCount)
		sum += e.Confidence * m
		total += m
	}
	if total == 0 {
		var plain float64
		for _, e := range group {
			plain += e.Confidence
		}
		return contracts.ClampUnit(plain / float64(len(group)))
	}
	return contracts.ClampUnit(sum / total)
}

// provenance is the weakest tag across entries; untagged entries are live
func provenance(group []contracts.SentimentEntry) contracts.Provenance {
	p := contracts.ProvenanceLive
	for _, e := range group {
		if e.Provenance != "" {
			p = p.Merge(e.Provenance)
		}
	}
	return p
}
