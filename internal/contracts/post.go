package contracts

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Source identifies the social platform a post came from
type Source string

const (
	SourceReddit  Source = "reddit"
	SourceTwitter Source = "twitter"
)

// Valid reports whether s is a supported source
func (s Source) Valid() bool {
	return s == SourceReddit || s == SourceTwitter
}

// ErrInvalidPost is returned when a post fails boundary validation
var ErrInvalidPost = errors.New("invalid post")

// Engagement holds the platform counters of a post
type Engagement struct {
	Likes    int64 `json:"likes"`    // upvotes on Reddit
	Replies  int64 `json:"replies"`  // comments on Reddit
	Reshares int64 `json:"reshares"` // retweets
	Quotes   int64 `json:"quotes"`
}

// Total returns the sum of all counters
func (e Engagement) Total() int64 {
	return e.Likes + e.Replies + e.Reshares + e.Quotes
}

// PlatformMetadata holds source specific attributes
type PlatformMetadata struct {
	Subreddit     string   `json:"subreddit,omitempty"`
	Hashtags      []string `json:"hashtags,omitempty"`
	Cashtags      []string `json:"cashtags,omitempty"`
	FollowerCount int64    `json:"follower_count,omitempty"`
	HasMedia      bool     `json:"has_media,omitempty"`
	IsRepost      bool     `json:"is_repost,omitempty"`
}

// RawPost is a Reddit post/comment or a tweet in the common shape
// ⭐ SSOT: 소스 → 파이프라인 게시물 구조
type RawPost struct {
	Source     Source           `json:"source"`
	ExternalID string           `json:"external_id"`
	Author     string           `json:"author"`
	CreatedAt  time.Time        `json:"created_at"`
	Text       string           `json:"text_content"`
	Engagement Engagement       `json:"engagement"`
	URL        string           `json:"url"`
	Metadata   PlatformMetadata `json:"platform_metadata"`
	Provenance Provenance       `json:"provenance"`

	// Set by the classifier. Ticker and the score fields mirror the first
	// entry of Sentiments.
	Tickers        []string          `json:"tickers,omitempty"`
	Sentiments     []TickerSentiment `json:"sentiments,omitempty"`
	Ticker         string            `json:"ticker,omitempty"`
	MentionCount   int        `json:"mention_count,omitempty"`
	SentimentScore float64    `json:"sentiment_score"`
	SentimentLabel Label      `json:"sentiment_label,omitempty"`
	Confidence     float64    `json:"confidence"`
	KeyThemes      []string   `json:"key_themes,omitempty"`
	ClassifiedAt   *time.Time `json:"classified_at,omitempty"`
}

// TickerSentiment is the classification of one ticker named by a post
type TickerSentiment struct {
	Ticker     string   `json:"ticker"`
	Score      float64  `json:"sentiment_score"`
	Label      Label    `json:"sentiment_label"`
	Confidence float64  `json:"confidence"`
	KeyThemes  []string `json:"key_themes,omitempty"`
}

// Key returns the natural key "<source>:<external_id>"
func (p *RawPost) Key() string {
	return string(p.Source) + ":" + p.ExternalID
}

// IsClassified reports whether the classifier attached a ticker
func (p *RawPost) IsClassified() bool {
	return p.Ticker != "" && p.ClassifiedAt != nil
}

// Validate checks required fields at the ingestion boundary.
// A zero CreatedAt is replaced with collectedAt.
func (p *RawPost) Validate(collectedAt time.Time) error {
	if !p.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidPost, p.Source)
	}
	if strings.TrimSpace(p.ExternalID) == "" {
		return fmt.Errorf("%w: missing external id", ErrInvalidPost)
	}
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("%w: empty text for %s", ErrInvalidPost, p.Key())
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = collectedAt
	}
	if p.Provenance == "" {
		p.Provenance = ProvenanceLive
	}
	if !p.Provenance.Valid() {
		return fmt.Errorf("%w: unknown provenance %q", ErrInvalidPost, p.Provenance)
	}
	return nil
}

// Classified returns the per-ticker classifications of p. Posts stored
// before per-ticker rows existed report their single primary ticker.
func (p *RawPost) Classified() []TickerSentiment {
	if !p.IsClassified() {
		return nil
	}
	if len(p.Sentiments) > 0 {
		return p.Sentiments
	}
	return []TickerSentiment{{
		Ticker:     p.Ticker,
		Score:      p.SentimentScore,
		Label:      p.SentimentLabel,
		Confidence: p.Confidence,
		KeyThemes:  p.KeyThemes,
	}}
}

// Entry converts a classified post into the contribution of its primary ticker
func (p *RawPost) Entry() (SentimentEntry, bool) {
	if !p.IsClassified() {
		return SentimentEntry{}, false
	}
	return p.entry(p.Classified()[0]), true
}

// EntryFor returns the contribution of p to ticker
func (p *RawPost) EntryFor(ticker string) (SentimentEntry, bool) {
	for _, ts := range p.Classified() {
		if ts.Ticker == ticker {
			return p.entry(ts), true
		}
	}
	return SentimentEntry{}, false
}

// Entries returns one contribution per classified (post, ticker) pair
func (p *RawPost) Entries() []SentimentEntry {
	classified := p.Classified()
	out := make([]SentimentEntry, 0, len(classified))
	for _, ts := range classified {
		out = append(out, p.entry(ts))
	}
	return out
}

func (p *RawPost) entry(ts TickerSentiment) SentimentEntry {
	mentions := p.MentionCount
	if mentions < 1 {
		mentions = 1
	}

	return SentimentEntry{
		Ticker:       ts.Ticker,
		Score:        ClampScore(ts.Score),
		MentionCount: mentions,
		Confidence:   ts.Confidence,
		CreatedAt:    p.CreatedAt,
		Source:       p.Source,
		KeyThemes:    ts.KeyThemes,
		PostID:       p.Key(),
		Author:       p.Author,
		Upvotes:      p.Engagement.Likes,
		Comments:     p.Engagement.Replies,
		Provenance:   p.Provenance,
	}
}

var tickerShape = regexp.MustCompile(`^[A-Z]{1,5}$`)

// IsTickerShape reports whether s is 1-5 uppercase ASCII letters
func IsTickerShape(s string) bool {
	return tickerShape.MatchString(s)
}

// TickerMention is a candidate ticker extracted from free text
type TickerMention struct {
	Ticker     string  `json:"ticker"`
	Context    string  `json:"context"`
	Confidence float64 `json:"confidence"` // 0.0 ~ 1.0
	Offset     int     `json:"-"`          // byte offset of the first match
}

// MinMentionConfidence is the threshold for aggregation eligibility
const MinMentionConfidence = 0.7

// Eligible reports whether the mention may feed aggregation
func (m TickerMention) Eligible() bool {
	return m.Confidence > MinMentionConfidence
}
