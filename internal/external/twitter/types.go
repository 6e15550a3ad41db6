package twitter

import "time"

// User is a monitored account
type User struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Username      string      `json:"username"`
	PublicMetrics UserMetrics `json:"public_metrics"`
}

// UserMetrics holds account counters
type UserMetrics struct {
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
	TweetCount     int64 `json:"tweet_count"`
}

// Tweet is one post from the v2 timeline endpoint
type Tweet struct {
	ID               string            `json:"id"`
	Text             string            `json:"text"`
	AuthorID         string            `json:"author_id"`
	CreatedAt        time.Time         `json:"created_at"`
	PublicMetrics    TweetMetrics      `json:"public_metrics"`
	Entities         Entities          `json:"entities"`
	ReferencedTweets []ReferencedTweet `json:"referenced_tweets"`
	Attachments      struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

// TweetMetrics holds engagement counters
type TweetMetrics struct {
	RetweetCount int64 `json:"retweet_count"`
	ReplyCount   int64 `json:"reply_count"`
	LikeCount    int64 `json:"like_count"`
	QuoteCount   int64 `json:"quote_count"`
}

// Entities are platform annotations
type Entities struct {
	Hashtags []Tag `json:"hashtags"`
	Cashtags []Tag `json:"cashtags"`
	URLs     []struct {
		ExpandedURL string `json:"expanded_url"`
	} `json:"urls"`
}

// Tag is a hashtag or cashtag entity
type Tag struct {
	Tag string `json:"tag"`
}

// ReferencedTweet marks retweets, quotes and replies
type ReferencedTweet struct {
	Type string `json:"type"` // retweeted, quoted, replied_to
	ID   string `json:"id"`
}

// IsRetweet reports whether the tweet is a plain repost
func (t Tweet) IsRetweet() bool {
	for _, r := range t.ReferencedTweets {
		if r.Type == "retweeted" {
			return true
		}
	}
	return false
}

// HasMedia reports attached media or links
func (t Tweet) HasMedia() bool {
	return len(t.Attachments.MediaKeys) > 0 || len(t.Entities.URLs) > 0
}

// Cashtags returns the native cashtag entities
func (t Tweet) Cashtags() []string {
	return tags(t.Entities.Cashtags)
}

// Hashtags returns the hashtag entities
func (t Tweet) Hashtags() []string {
	return tags(t.Entities.Hashtags)
}

func tags(in []Tag) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, t := range in {
		out[i] = t.Tag
	}
	return out
}

// Timeline is one account's fetched batch
type Timeline struct {
	User   User
	Tweets []Tweet
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type userResponse struct {
	Data   *User      `json:"data"`
	Errors []apiError `json:"errors"`
}

type tweetsResponse struct {
	Data   []Tweet    `json:"data"`
	Errors []apiError `json:"errors"`
	Meta   struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}
