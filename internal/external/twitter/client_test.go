package twitter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-pulse/pkg/httputil"
	"github.com/wonny/aegis-pulse/pkg/logger"
)

const userJSON = `{"data":{"id":"42","name":"Unusual Whales","username":"unusual_whales","public_metrics":{"followers_count":1500000}}}`

const tweetsJSON = `{
  "data": [
    {"id": "1001", "text": "Big $NVDA call sweep, 150 strike", "author_id": "42",
     "created_at": "2026-03-02T14:30:00.000Z",
     "public_metrics": {"retweet_count": 120, "reply_count": 30, "like_count": 900, "quote_count": 12},
     "entities": {"cashtags": [{"start": 4, "end": 9, "tag": "NVDA"}], "hashtags": [{"tag": "options"}]}},
    {"id": "1002", "text": "RT @someone: $TSLA news", "author_id": "42",
     "created_at": "2026-03-02T13:00:00.000Z",
     "public_metrics": {"retweet_count": 5, "reply_count": 0, "like_count": 0, "quote_count": 0},
     "referenced_tweets": [{"type": "retweeted", "id": "999"}],
     "attachments": {"media_keys": ["3_1"]}}
  ],
  "meta": {"result_count": 2}
}`

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(httputil.New(logger.Nop(), 5*time.Second).DisableRetry(), server.URL, token, logger.Nop())
}

func TestFetchTimeline(t *testing.T) {
	var calls int32
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/2/users/by/username/unusual_whales":
			assert.Equal(t, "public_metrics", r.URL.Query().Get("user.fields"))
			w.Write([]byte(userJSON))
		case "/2/users/42/tweets":
			assert.Equal(t, "50", r.URL.Query().Get("max_results"))
			w.Write([]byte(tweetsJSON))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	tl, err := c.FetchTimeline(context.Background(), "@unusual_whales", 50)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "one lookup plus one timeline fetch")

	assert.Equal(t, int64(1500000), tl.User.PublicMetrics.FollowersCount)
	require.Len(t, tl.Tweets, 2)

	first := tl.Tweets[0]
	assert.Equal(t, "1001", first.ID)
	assert.Equal(t, int64(900), first.PublicMetrics.LikeCount)
	assert.Equal(t, []string{"NVDA"}, first.Cashtags())
	assert.Equal(t, []string{"options"}, first.Hashtags())
	assert.Equal(t, time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC), first.CreatedAt.UTC())
	assert.False(t, first.IsRetweet())
	assert.False(t, first.HasMedia())

	assert.True(t, tl.Tweets[1].IsRetweet())
	assert.True(t, tl.Tweets[1].HasMedia())
}

func TestLookupUser_NotFound(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"title":"Not Found Error","detail":"Could not find user with username: [ghost]."}]}`))
	})

	_, err := c.LookupUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestNoCredentials(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a token")
	})

	assert.False(t, c.Configured())
	_, err := c.FetchTimeline(context.Background(), "x", 50)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestUserTweets_Unauthorized(t *testing.T) {
	c := newTestClient(t, "bad", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.UserTweets(context.Background(), "42", 500)
	assert.True(t, httputil.IsStatus(err, http.StatusUnauthorized))
}
