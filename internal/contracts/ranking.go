package contracts

import "time"

// ActionabilityScore is the ranking score attached to one social post
// ⭐ SSOT: 게시물 랭킹 점수 구조
type ActionabilityScore struct {
	PostID         string    `json:"post_id"`
	Velocity       float64   `json:"velocity"`
	Actionability  int       `json:"actionability_score"` // 0 ~ 3
	Catalyst       int       `json:"catalyst_score"`      // 0 or 1
	TimeDecay      float64   `json:"time_decay"`
	Composite      float64   `json:"composite_score"`
	FollowerCount  int64     `json:"author_follower_count"`
	HasNumbers     bool      `json:"has_numbers"`
	HasActionWords bool      `json:"has_action_words"`
	HasMedia       bool      `json:"has_media"`
	CalculatedAt   time.Time `json:"calculated_at"`
}

// RankedPost pairs a post with its score and 1-based rank
type RankedPost struct {
	Rank  int                `json:"rank"`
	Post  RawPost            `json:"post"`
	Score ActionabilityScore `json:"score"`
}

// IsTopRanked checks if the post is in top N ranks
func (r *RankedPost) IsTopRanked(n int) bool {
	return r.Rank <= n && r.Rank > 0
}
