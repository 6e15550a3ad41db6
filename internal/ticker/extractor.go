// Package ticker extracts candidate stock tickers from social post text.
package ticker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/wonny/aegis-pulse/internal/contracts"
)

// Confidence levels per pattern family
const (
	CashtagConfidence       = 0.9
	NativeCashtagConfidence = 0.95
	ContextualConfidence    = 0.7

	keywordBoost  = 0.1
	contextWindow = 50
)

var (
	// $NVDA, $brk (lowercase cashtags are upper-cased before the shape check)
	cashtagPattern = regexp.MustCompile(`\$([A-Za-z]{1,5})\b`)

	// NVDA stock, TSLA calls, AAPL earnings
	contextualPattern = regexp.MustCompile(`\b([A-Z]{1,5})\s+(?i:stock|stocks|earnings|calls|puts|shares)\b`)

	// whole words only: "buyback" and "selloff" do not count
	boostPattern = regexp.MustCompile(`(?i)\b(buy|sell|bullish|bearish|earnings)\b`)
)

// Extractor applies the ordered pattern families to free text.
// Extractor has no state and is safe for concurrent use.
type Extractor struct{}

// New creates a new extractor
func New() *Extractor {
	return &Extractor{}
}

// Extract implements contracts.TickerExtractor
func (e *Extractor) Extract(text string) []contracts.TickerMention {
	return e.ExtractWithCashtags(text, nil)
}

// ExtractWithCashtags extracts tickers, treating cashtags that the platform
// annotated natively (e.g. Twitter entities) as higher confidence.
func (e *Extractor) ExtractWithCashtags(text string, nativeCashtags []string) []contracts.TickerMention {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	native := make(map[string]struct{}, len(nativeCashtags))
	for _, c := range nativeCashtags {
		native[strings.ToUpper(strings.TrimPrefix(c, "$"))] = struct{}{}
	}

	best := make(map[string]contracts.TickerMention)
	consider := func(symbol string, start, end int, base float64) {
		symbol = strings.ToUpper(symbol)
		if !contracts.IsTickerShape(symbol) || IsBlacklisted(symbol) {
			return
		}

		ctx := window(text, start, end)
		m := contracts.TickerMention{
			Ticker:     symbol,
			Context:    ctx,
			Confidence: boost(base, ctx),
			Offset:     start,
		}

		prev, ok := best[symbol]
		if !ok {
			best[symbol] = m
			return
		}
		if m.Confidence > prev.Confidence {
			m.Offset = min(m.Offset, prev.Offset)
			best[symbol] = m
		} else if m.Offset < prev.Offset {
			prev.Offset = m.Offset
			best[symbol] = prev
		}
	}

	// 1. Cashtags
	for _, loc := range cashtagPattern.FindAllStringSubmatchIndex(text, -1) {
		symbol := text[loc[2]:loc[3]]
		base := CashtagConfidence
		if _, ok := native[strings.ToUpper(symbol)]; ok {
			base = NativeCashtagConfidence
		}
		consider(symbol, loc[0], loc[1], base)
	}

	// 2. Contextual forms
	for _, loc := range contextualPattern.FindAllStringSubmatchIndex(text, -1) {
		// skip "$NVDA calls", already captured as a cashtag
		if loc[2] > 0 && text[loc[2]-1] == '$' {
			continue
		}
		consider(text[loc[2]:loc[3]], loc[0], loc[1], ContextualConfidence)
	}

	mentions := make([]contracts.TickerMention, 0, len(best))
	for _, m := range best {
		mentions = append(mentions, m)
	}
	sort.Slice(mentions, func(i, j int) bool {
		if mentions[i].Offset != mentions[j].Offset {
			return mentions[i].Offset < mentions[j].Offset
		}
		return mentions[i].Ticker < mentions[j].Ticker
	})
	return mentions
}

// Eligible keeps mentions that may feed aggregation (confidence > 0.7)
func Eligible(mentions []contracts.TickerMention) []contracts.TickerMention {
	out := make([]contracts.TickerMention, 0, len(mentions))
	for _, m := range mentions {
		if m.Eligible() {
			out = append(out, m)
		}
	}
	return out
}

// Symbols returns the tickers of mentions in order
func Symbols(mentions []contracts.TickerMention) []string {
	out := make([]string, len(mentions))
	for i, m := range mentions {
		out[i] = m.Ticker
	}
	return out
}

// boost adds +0.1 per distinct keyword in the window, capped at 1.0
func boost(base float64, ctx string) float64 {
	conf := base
	seen := make(map[string]bool, 5)
	for _, m := range boostPattern.FindAllStringSubmatch(ctx, -1) {
		kw := strings.ToLower(m[1])
		if !seen[kw] {
			seen[kw] = true
			conf += keywordBoost
		}
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

// window returns the text within ±50 bytes of [start, end)
func window(text string, start, end int) string {
	lo := max(0, start-contextWindow)
	hi := min(len(text), end+contextWindow)

	// widen to rune boundaries
	for lo > 0 && !isRuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !isRuneStart(text[hi]) {
		hi++
	}
	return strings.TrimSpace(text[lo:hi])
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
