package collector

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Pacer spaces requests to one host: a token bucket enforces the
// minimum gap and a random jitter is added on top
type Pacer struct {
	limiter   *rate.Limiter
	jitterMin time.Duration
	jitterMax time.Duration
	sleep     Sleeper
}

// NewPacer creates a pacer; minSpacing <= 0 disables the spacing
func NewPacer(minSpacing, jitterMin, jitterMax time.Duration) *Pacer {
	limit := rate.Inf
	if minSpacing > 0 {
		limit = rate.Every(minSpacing)
	}
	if jitterMax < jitterMin {
		jitterMax = jitterMin
	}
	return &Pacer{
		limiter:   rate.NewLimiter(limit, 1),
		jitterMin: jitterMin,
		jitterMax: jitterMax,
		sleep:     sleepCtx,
	}
}

// WithSleeper replaces the jitter sleeper (tests)
func (p *Pacer) WithSleeper(s Sleeper) *Pacer {
	p.sleep = s
	return p
}

// Wait blocks until the next request may be sent
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if d := p.Jitter(); d > 0 {
		return p.sleep(ctx, d)
	}
	return nil
}

// Jitter draws a delay in [jitterMin, jitterMax]
func (p *Pacer) Jitter() time.Duration {
	span := p.jitterMax - p.jitterMin
	if span <= 0 {
		return p.jitterMin
	}
	return p.jitterMin + rand.N(span+1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
