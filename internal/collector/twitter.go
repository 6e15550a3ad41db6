package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/external/twitter"
	"github.com/wonny/aegis-pulse/internal/ticker"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

// TwitterCollector collects recent tweets of a fixed account roster
// ⭐ SSOT: Twitter 수집 흐름은 여기서만
type TwitterCollector struct {
	client     *twitter.Client
	extractor  *ticker.Extractor
	accounts   []string
	maxResults int
	now        func() time.Time
	logger     *logger.Logger
}

// NewTwitterCollector creates a Twitter collector
func NewTwitterCollector(client *twitter.Client, extractor *ticker.Extractor, accounts []string, maxResults int, log *logger.Logger) *TwitterCollector {
	if maxResults <= 0 {
		maxResults = 50
	}
	return &TwitterCollector{
		client:     client,
		extractor:  extractor,
		accounts:   accounts,
		maxResults: maxResults,
		now:        time.Now,
		logger:     log.WithComponent("collector.twitter"),
	}
}

// Name implements contracts.PostCollector
func (c *TwitterCollector) Name() string {
	return string(contracts.SourceTwitter)
}

// Collect fetches each account once; the fetched batch is both stored
// and scanned for mentions. Per-account failures are isolated.
func (c *TwitterCollector) Collect(ctx context.Context) (*contracts.CollectResult, error) {
	collectedAt := c.now().UTC()
	result := &contracts.CollectResult{
		Source:     contracts.SourceTwitter,
		Provenance: contracts.ProvenanceLive,
	}

	if !c.client.Configured() {
		c.logger.Warn("No bearer token, Twitter collection skipped")
		return result, nil
	}

	for _, account := range c.accounts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tl, err := c.client.FetchTimeline(ctx, account, c.maxResults)
		if err != nil {
			c.logger.WithError(err).WithField("account", account).Warn("Account skipped")
			result.Failed = append(result.Failed, account)
			continue
		}

		result.Succeeded = append(result.Succeeded, account)
		for _, tw := range tl.Tweets {
			result.Posts = append(result.Posts, FromTweet(tw, tl.User))
		}
	}

	result.Posts, result.Quarantined = validate(result.Posts, collectedAt, c.extractor, c.logger)

	c.logger.WithFields(map[string]interface{}{
		"posts":       len(result.Posts),
		"succeeded":   len(result.Succeeded),
		"failed":      len(result.Failed),
		"quarantined": result.Quarantined,
	}).Info("Twitter collection completed")

	if len(result.Succeeded) == 0 && len(result.Failed) > 0 {
		return result, fmt.Errorf("twitter: %w", ErrAllSourcesFailed)
	}
	return result, nil
}

// FromTweet maps a tweet to the common post shape
func FromTweet(tw twitter.Tweet, user twitter.User) contracts.RawPost {
	return contracts.RawPost{
		Source:     contracts.SourceTwitter,
		ExternalID: tw.ID,
		Author:     user.Username,
		CreatedAt:  tw.CreatedAt,
		Text:       tw.Text,
		Engagement: contracts.Engagement{
			Likes:    tw.PublicMetrics.LikeCount,
			Replies:  tw.PublicMetrics.ReplyCount,
			Reshares: tw.PublicMetrics.RetweetCount,
			Quotes:   tw.PublicMetrics.QuoteCount,
		},
		URL: fmt.Sprintf("https://twitter.com/%s/status/%s", user.Username, tw.ID),
		Metadata: contracts.PlatformMetadata{
			Hashtags:      tw.Hashtags(),
			Cashtags:      tw.Cashtags(),
			FollowerCount: user.PublicMetrics.FollowersCount,
			HasMedia:      tw.HasMedia(),
			IsRepost:      tw.IsRetweet(),
		},
		Provenance: contracts.ProvenanceLive,
	}
}
