// Package twitter fetches recent posts of monitored accounts from the
// keyed v2 API.
package twitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wonny/aegis-pulse/pkg/httputil"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

// ErrNoCredentials is returned when no bearer token is configured
var ErrNoCredentials = errors.New("twitter bearer token not configured")

// ErrUserNotFound is returned when a username does not resolve
var ErrUserNotFound = errors.New("twitter user not found")

const tweetFields = "created_at,public_metrics,entities,referenced_tweets,attachments,author_id"

// Client handles communication with the Twitter API
// ⭐ SSOT: Twitter API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	token      string
}

// NewClient creates a new Twitter client; the bearer token is attached
// through the httpClient header hook
func NewClient(httpClient *httputil.Client, baseURL, bearerToken string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.twitter.com"
	}
	c := &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("twitter"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      bearerToken,
	}
	httpClient.WithHeaderHook(func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("User-Agent", "aegis-pulse/1.0")
	})
	return c
}

// Configured reports whether a bearer token is set
func (c *Client) Configured() bool {
	return c.token != ""
}

// LookupUser resolves a username to its account with follower count
func (c *Client) LookupUser(ctx context.Context, username string) (*User, error) {
	if !c.Configured() {
		return nil, ErrNoCredentials
	}

	endpoint := fmt.Sprintf("%s/2/users/by/username/%s?user.fields=public_metrics",
		c.baseURL, url.PathEscape(strings.TrimPrefix(username, "@")))

	var resp userResponse
	if err := c.httpClient.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("lookup @%s: %w", username, err)
	}
	if resp.Data == nil {
		detail := ""
		if len(resp.Errors) > 0 {
			detail = resp.Errors[0].Detail
		}
		return nil, fmt.Errorf("%w: @%s %s", ErrUserNotFound, username, detail)
	}
	return resp.Data, nil
}

// UserTweets fetches an account's recent tweets (5-100 per call)
func (c *Client) UserTweets(ctx context.Context, userID string, maxResults int) ([]Tweet, error) {
	if !c.Configured() {
		return nil, ErrNoCredentials
	}
	if maxResults < 5 {
		maxResults = 5
	}
	if maxResults > 100 {
		maxResults = 100
	}

	params := url.Values{}
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("tweet.fields", tweetFields)
	endpoint := fmt.Sprintf("%s/2/users/%s/tweets?%s", c.baseURL, url.PathEscape(userID), params.Encode())

	var resp tweetsResponse
	if err := c.httpClient.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("tweets of %s: %w", userID, err)
	}
	return resp.Data, nil
}

// FetchTimeline resolves the account and fetches its recent tweets once;
// the same batch serves storage and mention extraction
func (c *Client) FetchTimeline(ctx context.Context, username string, maxResults int) (*Timeline, error) {
	user, err := c.LookupUser(ctx, username)
	if err != nil {
		return nil, err
	}

	tweets, err := c.UserTweets(ctx, user.ID, maxResults)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"account": user.Username,
		"tweets":  len(tweets),
	}).Debug("Fetched timeline")

	return &Timeline{User: *user, Tweets: tweets}, nil
}
