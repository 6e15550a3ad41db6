package contracts

import "context"

// TickerExtractor pulls candidate tickers out of free text
// ⭐ SSOT: 티커 추출 인터페이스
type TickerExtractor interface {
	Extract(text string) []TickerMention
}

// PostCollector fetches raw posts from one platform
// ⭐ SSOT: 소스 수집 인터페이스
type PostCollector interface {
	Name() string
	Collect(ctx context.Context) (*CollectResult, error)
}

// SentimentClassifier turns posts into per-ticker sentiment entries
// ⭐ SSOT: 감성 분류 인터페이스
type SentimentClassifier interface {
	Classify(ctx context.Context, posts []RawPost) ([]SentimentEntry, error)
}

// CollectResult is the output of one collector run
type CollectResult struct {
	Source      Source     `json:"source"`
	Posts       []RawPost  `json:"posts"`
	Succeeded   []string   `json:"succeeded"` // subreddits / accounts
	Failed      []string   `json:"failed"`
	Quarantined int        `json:"quarantined"`
	Provenance  Provenance `json:"provenance"`
}
