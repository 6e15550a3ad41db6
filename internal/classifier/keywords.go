package classifier

import (
	"strings"
	"unicode"
)

var positiveKeywords = map[string]bool{
	"bullish": true, "moon": true, "buy": true, "buying": true, "rocket": true,
	"breakout": true, "calls": true, "long": true, "upgrade": true, "beat": true,
	"rally": true, "surge": true, "squeeze": true, "green": true, "undervalued": true,
}

var negativeKeywords = map[string]bool{
	"bearish": true, "crash": true, "sell": true, "selling": true, "dump": true,
	"puts": true, "short": true, "downgrade": true, "miss": true, "drop": true,
	"plunge": true, "red": true, "overvalued": true, "bagholder": true, "rug": true,
}

// KeywordResult is the outcome of the keyword heuristic
type KeywordResult struct {
	Score    float64
	Positive int
	Negative int
	Themes   []string // matched keywords, first appearance order
}

// Hits returns the number of matched keywords
func (r KeywordResult) Hits() int {
	return r.Positive + r.Negative
}

// KeywordScore counts positive and negative keywords in text.
// score = (pos - neg) / (pos + neg), 0 when nothing matched.
func KeywordScore(text string) KeywordResult {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	var res KeywordResult
	seen := make(map[string]bool)
	for _, w := range words {
		switch {
		case positiveKeywords[w]:
			res.Positive++
		case negativeKeywords[w]:
			res.Negative++
		default:
			continue
		}
		if !seen[w] {
			seen[w] = true
			res.Themes = append(res.Themes, w)
		}
	}

	if n := res.Hits(); n > 0 {
		res.Score = float64(res.Positive-res.Negative) / float64(n)
	}
	return res
}
