package reddit

import (
	"bytes"
	"encoding/json"
	"time"
)

// FeedEntry is one post from the Atom/RSS feed
type FeedEntry struct {
	ID        string // t3_xxx
	Title     string
	Body      string // content reduced to plain text
	Author    string
	Published time.Time // zero when the feed omits it
	Link      string
	Subreddit string
	HasMedia  bool
}

// Listing is the JSON listing envelope (/hot.json, /comments/<id>.json)
type Listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []Thing `json:"children"`
	} `json:"data"`
}

// Thing is a listing child; Kind is t3 for posts, t1 for comments
type Thing struct {
	Kind string    `json:"kind"`
	Data ThingData `json:"data"`
}

// ThingData holds the fields of both posts and comments
type ThingData struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"` // fullname, e.g. t3_abc
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Body        string  `json:"body"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Ups         int64   `json:"ups"`
	Score       int64   `json:"score"`
	NumComments int64   `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	PostHint    string  `json:"post_hint"`
	IsVideo     bool    `json:"is_video"`
	Crosspost   string  `json:"crosspost_parent"`
	Replies     Replies `json:"replies"`
}

// CreatedAt converts created_utc; zero when absent
func (d ThingData) CreatedAt() time.Time {
	if d.CreatedUTC <= 0 {
		return time.Time{}
	}
	sec := int64(d.CreatedUTC)
	return time.Unix(sec, 0).UTC()
}

// Replies is a nested listing; Reddit sends "" when there are none
type Replies struct {
	Listing *Listing
}

// UnmarshalJSON accepts either a listing object or an empty string
func (r *Replies) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		r.Listing = nil
		return nil
	}
	var l Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return err
	}
	r.Listing = &l
	return nil
}

// Comment is a flattened comment from the reply tree
type Comment struct {
	ID        string // t1_xxx
	PostID    string // t3_xxx
	Author    string
	Body      string
	Ups       int64
	Replies   int
	Depth     int // 1 = top level
	CreatedAt time.Time
	Permalink string
	Subreddit string
}
