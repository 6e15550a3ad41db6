package collector

import (
	"time"

	"github.com/wonny/aegis-pulse/internal/contracts"
)

// FallbackPrefix marks placeholder post ids
const FallbackPrefix = "fallback_"

// FallbackPosts returns the illustrative placeholder set served when no
// subreddit could be fetched. Every post is tagged provenance=fallback
// and its text says it is not real data.
func FallbackPosts(now time.Time) []contracts.RawPost {
	samples := []struct {
		id, sub, text string
		ago           time.Duration
	}{
		{"1", "wallstreetbets", "[placeholder, not real data] $NVDA calls ahead of earnings, target 150", 1 * time.Hour},
		{"2", "stocks", "[placeholder, not real data] $AAPL holding steady into the product event", 2 * time.Hour},
		{"3", "investing", "[placeholder, not real data] $TSLA delivery numbers come out this week", 3 * time.Hour},
	}

	posts := make([]contracts.RawPost, 0, len(samples))
	for _, s := range samples {
		posts = append(posts, contracts.RawPost{
			Source:     contracts.SourceReddit,
			ExternalID: FallbackPrefix + s.id,
			Author:     "placeholder",
			CreatedAt:  now.Add(-s.ago),
			Text:       s.text,
			Metadata:   contracts.PlatformMetadata{Subreddit: s.sub},
			Provenance: contracts.ProvenanceFallback,
		})
	}
	return posts
}
