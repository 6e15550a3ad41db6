// Package collector fetches raw posts from every configured platform and
// normalizes them into contracts.RawPost.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/ticker"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

// ErrAllSourcesFailed is returned when every source of a batch failed
var ErrAllSourcesFailed = errors.New("all sources failed")

// Batch is the merged output of all collectors
type Batch struct {
	Posts      []contracts.RawPost
	Results    []*contracts.CollectResult
	Provenance contracts.Provenance
	Errors     map[string]error
}

// CountBySource returns the number of posts per source
func (b *Batch) CountBySource() map[contracts.Source]int {
	out := make(map[contracts.Source]int)
	for _, r := range b.Results {
		out[r.Source] += len(r.Posts)
	}
	return out
}

// Run executes collectors sequentially. A failing collector is logged
// and skipped; ErrAllSourcesFailed is returned only when none produced
// a result.
func Run(ctx context.Context, collectors []contracts.PostCollector, log *logger.Logger) (*Batch, error) {
	log = log.WithComponent("collector")
	batch := &Batch{
		Provenance: contracts.ProvenanceLive,
		Errors:     make(map[string]error),
	}

	for _, c := range collectors {
		result, err := c.Collect(ctx)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			batch.Errors[c.Name()] = err
			log.WithError(err).WithField("collector", c.Name()).Warn("Collector failed")
		}
		if result == nil || len(result.Posts) == 0 {
			if result != nil {
				batch.Results = append(batch.Results, result)
			}
			continue
		}

		batch.Results = append(batch.Results, result)
		batch.Posts = append(batch.Posts, result.Posts...)
		batch.Provenance = batch.Provenance.Merge(result.Provenance)
	}

	if len(batch.Posts) == 0 && len(batch.Errors) == len(collectors) && len(collectors) > 0 {
		return batch, ErrAllSourcesFailed
	}

	log.WithFields(map[string]interface{}{
		"posts":      len(batch.Posts),
		"collectors": len(collectors),
		"failed":     len(batch.Errors),
		"provenance": batch.Provenance,
	}).Info("Collection completed")

	return batch, nil
}

// validate drops posts failing boundary checks and attaches the eligible
// ticker symbols found in each text
func validate(posts []contracts.RawPost, collectedAt time.Time, extractor *ticker.Extractor, log *logger.Logger) ([]contracts.RawPost, int) {
	kept := make([]contracts.RawPost, 0, len(posts))
	seen := make(map[string]bool, len(posts))
	quarantined := 0

	for _, p := range posts {
		if err := p.Validate(collectedAt); err != nil {
			quarantined++
			log.WithError(err).Debug("Post quarantined")
			continue
		}
		if seen[p.Key()] {
			continue
		}
		seen[p.Key()] = true

		attachTickers(&p, extractor)
		kept = append(kept, p)
	}

	if quarantined > 0 {
		log.WithField("quarantined", quarantined).Warn(fmt.Sprintf("%d posts failed validation", quarantined))
	}
	return kept, quarantined
}

// Prepare validates a single post arriving outside a batch and attaches
// its eligible tickers
func Prepare(p contracts.RawPost, collectedAt time.Time, extractor *ticker.Extractor) (contracts.RawPost, error) {
	if err := p.Validate(collectedAt); err != nil {
		return p, err
	}
	attachTickers(&p, extractor)
	return p, nil
}

func attachTickers(p *contracts.RawPost, extractor *ticker.Extractor) {
	if extractor == nil {
		return
	}
	mentions := extractor.ExtractWithCashtags(p.Text, p.Metadata.Cashtags)
	p.Tickers = ticker.Symbols(ticker.Eligible(mentions))
}
