package classifier

import (
	"fmt"
	"strings"
)

// Group is the set of contexts mentioning one ticker on one source
type Group struct {
	Ticker   string
	Mentions int
	Contexts []string
}

const promptHeader = `Analyze the retail investor sentiment for each stock ticker below.
Each ticker lists numbered social media excerpts that mention it.

Return a JSON array with one object per ticker:
[{"ticker": "AAPL", "sentiment_score": 0.0, "sentiment_label": "neutral",
  "confidence": 0.0, "key_themes": ["..."], "summary": "...",
  "actionability_score": 0.0, "has_catalyst": false}]

sentiment_score is in [-1, 1], confidence and actionability_score in [0, 1].
sentiment_label is one of positive, negative, neutral.
`

const maxContextChars = 500

// BuildPrompt renders one batched prompt for the given groups
func BuildPrompt(groups []Group) string {
	var b strings.Builder
	b.WriteString(promptHeader)

	for _, g := range groups {
		fmt.Fprintf(&b, "\n%s (%d mentions):\n", g.Ticker, g.Mentions)
		for i, c := range g.Contexts {
			fmt.Fprintf(&b, "%d. %s\n", i+1, truncate(oneLine(c), maxContextChars))
		}
	}

	b.WriteString("\nRespond with the JSON array only.")
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "..."
}
