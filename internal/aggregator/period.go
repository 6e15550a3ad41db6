package aggregator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/aegis-pulse/internal/contracts"
)

// Standard aggregation periods
const (
	Period24h = "24h"
	Period7d  = "7d"
	Period30d = "30d"
)

// ParsePeriod converts "24h", "7d", "30d" style periods to a duration
func ParsePeriod(period string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(period, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid period %q", period)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(period)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid period %q", period)
	}
	return d, nil
}

// InWindow keeps entries created within the period ending at now
func InWindow(entries []contracts.SentimentEntry, window time.Duration, now time.Time) []contracts.SentimentEntry {
	since := now.Add(-window)
	out := make([]contracts.SentimentEntry, 0, len(entries))
	for _, e := range entries {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out
}
