// Package reddit fetches subreddit feeds, JSON listings and comment trees.
package reddit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/wonny/aegis-pulse/pkg/httputil"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

// userAgents are rotated per request
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// MaxCommentDepth bounds the reply tree walk
const MaxCommentDepth = 3

// Client handles communication with Reddit
// ⭐ SSOT: Reddit 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	uaIndex    atomic.Uint32
}

// NewClient creates a new Reddit client.
// The header hook installed on httpClient rotates the User-Agent.
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://www.reddit.com"
	}
	c := &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("reddit"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	httpClient.WithHeaderHook(c.setHeaders)
	return c
}

func (c *Client) setHeaders(req *http.Request) {
	i := c.uaIndex.Add(1) - 1
	req.Header.Set("User-Agent", userAgents[int(i)%len(userAgents)])
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/atom+xml, application/rss+xml, application/json;q=0.9, */*;q=0.8")
	}
}

// FetchFeed fetches the subreddit Atom/RSS feed
func (c *Client) FetchFeed(ctx context.Context, subreddit string) ([]FeedEntry, error) {
	endpoint := fmt.Sprintf("%s/r/%s/.rss", c.baseURL, url.PathEscape(subreddit))

	resp, err := c.httpClient.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch feed r/%s: %w", subreddit, err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("fetch feed r/%s: %w", subreddit, err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read feed r/%s: %w", subreddit, err)
	}

	entries, err := ParseFeed(body, subreddit)
	if err != nil {
		return nil, fmt.Errorf("r/%s: %w", subreddit, err)
	}
	return entries, nil
}

// FetchListing fetches the hot JSON listing of a subreddit
func (c *Client) FetchListing(ctx context.Context, subreddit string, limit int) ([]ThingData, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("raw_json", "1")
	endpoint := fmt.Sprintf("%s/r/%s/hot.json?%s", c.baseURL, url.PathEscape(subreddit), params.Encode())

	var listing Listing
	if err := c.httpClient.GetJSON(ctx, endpoint, &listing); err != nil {
		return nil, fmt.Errorf("fetch listing r/%s: %w", subreddit, err)
	}

	posts := make([]ThingData, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Kind == "t3" {
			posts = append(posts, child.Data)
		}
	}
	return posts, nil
}

// FetchComments fetches a post's comment tree and flattens it to depth 3,
// skipping deleted and removed comments (their replies are still walked)
func (c *Client) FetchComments(ctx context.Context, postID string, maxDepth int) ([]Comment, error) {
	id := strings.TrimPrefix(postID, "t3_")
	endpoint := fmt.Sprintf("%s/comments/%s.json?raw_json=1", c.baseURL, url.PathEscape(id))

	// [post listing, comments listing]
	var pair []Listing
	if err := c.httpClient.GetJSON(ctx, endpoint, &pair); err != nil {
		return nil, fmt.Errorf("fetch comments %s: %w", id, err)
	}
	if len(pair) < 2 {
		return nil, fmt.Errorf("fetch comments %s: expected [post, comments], got %d listings", id, len(pair))
	}

	if maxDepth <= 0 || maxDepth > MaxCommentDepth {
		maxDepth = MaxCommentDepth
	}

	var out []Comment
	WalkComments(pair[1].Data.Children, "t3_"+id, 1, maxDepth, &out)
	return out, nil
}

// WalkComments flattens a reply tree depth-first
func WalkComments(children []Thing, postID string, depth, maxDepth int, out *[]Comment) {
	if depth > maxDepth {
		return
	}
	for _, child := range children {
		if child.Kind != "t1" {
			continue // "more" stubs
		}
		d := child.Data

		var replies []Thing
		if d.Replies.Listing != nil {
			replies = d.Replies.Listing.Data.Children
		}

		if !isRemoved(d.Author) && !isRemoved(d.Body) && strings.TrimSpace(d.Body) != "" {
			name := d.Name
			if name == "" {
				name = "t1_" + d.ID
			}
			*out = append(*out, Comment{
				ID:        name,
				PostID:    postID,
				Author:    d.Author,
				Body:      strings.TrimSpace(d.Body),
				Ups:       d.Ups,
				Replies:   countComments(replies),
				Depth:     depth,
				CreatedAt: d.CreatedAt(),
				Permalink: d.Permalink,
				Subreddit: d.Subreddit,
			})
		}

		WalkComments(replies, postID, depth+1, maxDepth, out)
	}
}

func countComments(children []Thing) int {
	n := 0
	for _, c := range children {
		if c.Kind == "t1" {
			n++
		}
	}
	return n
}

func isRemoved(s string) bool {
	s = strings.TrimSpace(s)
	return s == "[deleted]" || s == "[removed]"
}
