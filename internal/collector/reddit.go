package collector

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/wonny/aegis-pulse/internal/contracts"
	"github.com/wonny/aegis-pulse/internal/external/reddit"
	"github.com/wonny/aegis-pulse/internal/ticker"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

// RedditOptions tunes subreddit collection
type RedditOptions struct {
	Subreddits       []string
	PostLimit        int
	ListingDelay     time.Duration // gap between JSON listing requests
	CommentThreshold int           // posts need more comments than this
	CommentTopN      int
	CommentDepth     int
}

// RedditCollector collects posts and comments from subreddits
// ⭐ SSOT: Reddit 수집 흐름은 여기서만
type RedditCollector struct {
	client    *reddit.Client
	pacer     *Pacer
	extractor *ticker.Extractor
	opts      RedditOptions
	sleep     Sleeper
	now       func() time.Time
	logger    *logger.Logger
}

// NewRedditCollector creates a Reddit collector
func NewRedditCollector(client *reddit.Client, pacer *Pacer, extractor *ticker.Extractor, opts RedditOptions, log *logger.Logger) *RedditCollector {
	if opts.PostLimit <= 0 {
		opts.PostLimit = 25
	}
	if opts.CommentTopN <= 0 {
		opts.CommentTopN = 20
	}
	if opts.CommentDepth <= 0 {
		opts.CommentDepth = reddit.MaxCommentDepth
	}
	return &RedditCollector{
		client:    client,
		pacer:     pacer,
		extractor: extractor,
		opts:      opts,
		sleep:     sleepCtx,
		now:       time.Now,
		logger:    log.WithComponent("collector.reddit"),
	}
}

// WithSleeper replaces the listing delay sleeper (tests)
func (c *RedditCollector) WithSleeper(s Sleeper) *RedditCollector {
	c.sleep = s
	return c
}

// WithClock overrides the collection clock
func (c *RedditCollector) WithClock(now func() time.Time) *RedditCollector {
	c.now = now
	return c
}

// Name implements contracts.PostCollector
func (c *RedditCollector) Name() string {
	return string(contracts.SourceReddit)
}

// Collect fetches every subreddit: feed first, JSON listing when the
// feed errors. Per-subreddit failures are isolated. When no subreddit
// succeeds the placeholder set is returned tagged fallback.
func (c *RedditCollector) Collect(ctx context.Context) (*contracts.CollectResult, error) {
	collectedAt := c.now().UTC()
	result := &contracts.CollectResult{
		Source:     contracts.SourceReddit,
		Provenance: contracts.ProvenanceLive,
	}

	var listed []reddit.ThingData
	for i, sub := range c.opts.Subreddits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		posts, things, err := c.collectSubreddit(ctx, sub, i > 0)
		if err != nil {
			c.logger.WithError(err).WithField("subreddit", sub).Warn("Subreddit skipped")
			result.Failed = append(result.Failed, sub)
			continue
		}

		result.Succeeded = append(result.Succeeded, sub)
		result.Posts = append(result.Posts, posts...)
		listed = append(listed, things...)
	}

	if len(result.Succeeded) == 0 {
		c.logger.WithField("failed", len(result.Failed)).Warn("All subreddits failed, serving placeholder posts")
		result.Posts = FallbackPosts(collectedAt)
		result.Provenance = contracts.ProvenanceFallback
		return c.finish(result, collectedAt), nil
	}

	result.Posts = append(result.Posts, c.collectComments(ctx, listed)...)
	return c.finish(result, collectedAt), nil
}

func (c *RedditCollector) collectSubreddit(ctx context.Context, sub string, delayListing bool) ([]contracts.RawPost, []reddit.ThingData, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, nil, err
	}

	entries, feedErr := c.client.FetchFeed(ctx, sub)
	if feedErr == nil {
		posts := make([]contracts.RawPost, 0, len(entries))
		for _, e := range entries {
			posts = append(posts, FromFeedEntry(e))
		}
		return posts, nil, nil
	}

	c.logger.WithError(feedErr).WithField("subreddit", sub).Debug("Feed failed, trying JSON listing")
	if delayListing {
		if err := c.sleep(ctx, c.opts.ListingDelay); err != nil {
			return nil, nil, err
		}
	}

	things, err := c.client.FetchListing(ctx, sub, c.opts.PostLimit)
	if err != nil {
		return nil, nil, err
	}

	posts := make([]contracts.RawPost, 0, len(things))
	for _, t := range things {
		posts = append(posts, FromThing(t))
	}
	return posts, things, nil
}

// collectComments walks the reply trees of the most discussed posts.
// Only listing posts carry a comment count.
func (c *RedditCollector) collectComments(ctx context.Context, listed []reddit.ThingData) []contracts.RawPost {
	var hot []reddit.ThingData
	for _, t := range listed {
		if t.NumComments > int64(c.opts.CommentThreshold) {
			hot = append(hot, t)
		}
	}
	sort.SliceStable(hot, func(i, j int) bool {
		return hot[i].NumComments > hot[j].NumComments
	})
	if len(hot) > c.opts.CommentTopN {
		hot = hot[:c.opts.CommentTopN]
	}

	var out []contracts.RawPost
	for _, t := range hot {
		if err := c.pacer.Wait(ctx); err != nil {
			return out
		}
		comments, err := c.client.FetchComments(ctx, thingName(t), c.opts.CommentDepth)
		if err != nil {
			c.logger.WithError(err).WithField("post_id", thingName(t)).Warn("Comments skipped")
			continue
		}
		for _, cm := range comments {
			out = append(out, FromComment(cm))
		}
	}
	return out
}

// finish validates posts at the boundary and attaches ticker mentions
func (c *RedditCollector) finish(result *contracts.CollectResult, collectedAt time.Time) *contracts.CollectResult {
	result.Posts, result.Quarantined = validate(result.Posts, collectedAt, c.extractor, c.logger)

	c.logger.WithFields(map[string]interface{}{
		"posts":       len(result.Posts),
		"succeeded":   len(result.Succeeded),
		"failed":      len(result.Failed),
		"quarantined": result.Quarantined,
		"provenance":  result.Provenance,
	}).Info("Reddit collection completed")
	return result
}

// FromFeedEntry maps a feed entry to the common post shape
func FromFeedEntry(e reddit.FeedEntry) contracts.RawPost {
	return contracts.RawPost{
		Source:     contracts.SourceReddit,
		ExternalID: e.ID,
		Author:     e.Author,
		CreatedAt:  e.Published,
		Text:       joinText(e.Title, e.Body),
		URL:        e.Link,
		Metadata: contracts.PlatformMetadata{
			Subreddit: e.Subreddit,
			HasMedia:  e.HasMedia,
		},
		Provenance: contracts.ProvenanceLive,
	}
}

// FromThing maps a JSON listing post to the common post shape
func FromThing(t reddit.ThingData) contracts.RawPost {
	url := t.URL
	if t.Permalink != "" {
		url = "https://www.reddit.com" + t.Permalink
	}
	return contracts.RawPost{
		Source:     contracts.SourceReddit,
		ExternalID: thingName(t),
		Author:     t.Author,
		CreatedAt:  t.CreatedAt(),
		Text:       joinText(t.Title, t.Selftext),
		Engagement: contracts.Engagement{
			Likes:   t.Ups,
			Replies: t.NumComments,
		},
		URL: url,
		Metadata: contracts.PlatformMetadata{
			Subreddit: t.Subreddit,
			HasMedia:  t.IsVideo || t.PostHint == "image" || strings.HasSuffix(t.PostHint, "video"),
			IsRepost:  t.Crosspost != "",
		},
		Provenance: contracts.ProvenanceLive,
	}
}

// FromComment maps a flattened comment to the common post shape
func FromComment(cm reddit.Comment) contracts.RawPost {
	url := ""
	if cm.Permalink != "" {
		url = "https://www.reddit.com" + cm.Permalink
	}
	return contracts.RawPost{
		Source:     contracts.SourceReddit,
		ExternalID: cm.ID,
		Author:     cm.Author,
		CreatedAt:  cm.CreatedAt,
		Text:       cm.Body,
		Engagement: contracts.Engagement{
			Likes:   cm.Ups,
			Replies: int64(cm.Replies),
		},
		URL:        url,
		Metadata:   contracts.PlatformMetadata{Subreddit: cm.Subreddit},
		Provenance: contracts.ProvenanceLive,
	}
}

func thingName(t reddit.ThingData) string {
	if t.Name != "" {
		return t.Name
	}
	return "t3_" + t.ID
}

func joinText(title, body string) string {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	switch {
	case body == "":
		return title
	case title == "":
		return body
	default:
		return title + "\n\n" + body
	}
}
