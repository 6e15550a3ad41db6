package reddit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-pulse/pkg/httputil"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return data
}

func TestParseFeed_Atom(t *testing.T) {
	entries, err := ParseFeed(readFixture(t, "wsb.atom"), "wallstreetbets")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	e := entries[0]
	assert.Equal(t, "t3_1abc", e.ID)
	assert.Equal(t, "NVDA to the moon", e.Title)
	assert.Equal(t, "Loaded up on $NVDA calls.\nTarget 150 by Friday.", e.Body)
	assert.Equal(t, "deepvalue", e.Author)
	assert.Equal(t, "wallstreetbets", e.Subreddit)
	assert.Equal(t, time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC), e.Published)
	assert.False(t, e.HasMedia)

	// image post without <published> falls back to <updated>
	img := entries[1]
	assert.True(t, img.HasMedia)
	assert.Equal(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), img.Published)
	assert.NotContains(t, img.Body, "submitted by")
}

func TestParseFeed_RSS(t *testing.T) {
	entries, err := ParseFeed(readFixture(t, "stocks.rss"), "stocks")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "t3_2xyz", entries[0].ID)
	assert.Equal(t, "longterm", entries[0].Author)
	assert.Equal(t, "Expecting a beat on services.", entries[0].Body)
	assert.Equal(t, "stocks", entries[0].Subreddit)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), entries[0].Published)

	// missing guid uses link; missing date stays zero
	assert.Equal(t, "https://www.reddit.com/r/stocks/comments/2xya/nodate/", entries[1].ID)
	assert.True(t, entries[1].Published.IsZero())
}

func TestParseFeed_Unknown(t *testing.T) {
	_, err := ParseFeed([]byte(`<html><body>blocked</body></html>`), "x")
	assert.ErrorIs(t, err, ErrUnknownFeed)

	_, err = ParseFeed([]byte(`not xml at all`), "x")
	assert.ErrorIs(t, err, ErrUnknownFeed)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	httpClient := httputil.New(logger.Nop(), 5*time.Second).DisableRetry()
	return NewClient(httpClient, server.URL, logger.Nop())
}

func TestClient_FetchFeedRotatesUserAgent(t *testing.T) {
	var mu sync.Mutex
	var agents []string
	feed := readFixture(t, "wsb.atom")

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/wallstreetbets/.rss", r.URL.Path)
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write(feed)
	})

	for i := 0; i < 2; i++ {
		entries, err := c.FetchFeed(context.Background(), "wallstreetbets")
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	}

	require.Len(t, agents, 2)
	assert.NotEmpty(t, agents[0])
	assert.NotEqual(t, agents[0], agents[1])
}

func TestClient_FetchFeed429(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.FetchFeed(context.Background(), "stocks")
	require.Error(t, err)
	assert.True(t, httputil.IsStatus(err, http.StatusTooManyRequests))
}

func TestClient_FetchListing(t *testing.T) {
	hot := readFixture(t, "hot.json")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/options/hot.json", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		w.Write(hot)
	})

	posts, err := c.FetchListing(context.Background(), "options", 25)
	require.NoError(t, err)
	require.Len(t, posts, 2, "non-t3 children are dropped")

	p := posts[0]
	assert.Equal(t, "t3_3abc", p.Name)
	assert.Equal(t, int64(321), p.Ups)
	assert.Equal(t, int64(45), p.NumComments)
	assert.Equal(t, time.Unix(1772449200, 0).UTC(), p.CreatedAt())
	assert.Equal(t, "image", p.PostHint)
}

func TestClient_FetchComments(t *testing.T) {
	comments := readFixture(t, "comments.json")
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/comments/1abc.json", r.URL.Path)
		w.Write(comments)
	})

	got, err := c.FetchComments(context.Background(), "t3_1abc", 3)
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, cm := range got {
		ids[i] = cm.ID
		assert.Equal(t, "t3_1abc", cm.PostID)
	}
	// c2 deleted, c5 removed, c4 beyond depth 3, "more" stub skipped
	assert.Equal(t, []string{"t1_c1", "t1_c3", "t1_c6"}, ids)
	assert.Equal(t, 1, got[0].Depth)
	assert.Equal(t, 2, got[0].Replies)
	assert.Equal(t, 3, got[1].Depth)
	assert.Equal(t, int64(40), got[0].Ups)
}

func TestClient_FetchCommentsBadShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"kind":"Listing","data":{"children":[]}}]`))
	})

	_, err := c.FetchComments(context.Background(), "1abc", 3)
	assert.Error(t, err)
}
