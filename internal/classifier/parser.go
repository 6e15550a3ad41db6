package classifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/aegis-pulse/internal/contracts"
)

// ErrUnparseable is returned when no JSON array can be recovered
var ErrUnparseable = errors.New("unparseable classifier response")

// Item is one element of the model's JSON answer
type Item struct {
	Ticker             string   `json:"ticker"`
	SentimentScore     float64  `json:"sentiment_score"`
	SentimentLabel     string   `json:"sentiment_label"`
	Confidence         float64  `json:"confidence"`
	KeyThemes          []string `json:"key_themes"`
	Summary            string   `json:"summary"`
	ActionabilityScore *float64 `json:"actionability_score,omitempty"`
	HasCatalyst        *bool    `json:"has_catalyst,omitempty"`
}

// ParseResponse extracts the item array from a model answer. It accepts
// markdown fences, trailing commas and an array cut off mid-object (kept
// up to the last complete object).
func ParseResponse(text string) ([]Item, error) {
	body := stripFences(text)

	start := strings.IndexAny(body, "[{")
	if start < 0 {
		return nil, fmt.Errorf("%w: no JSON found", ErrUnparseable)
	}
	body = body[start:]

	if body[0] == '{' {
		return parseObject(body)
	}

	if end := strings.LastIndex(body, "]"); end >= 0 {
		if items, err := decodeItems(body[:end+1]); err == nil {
			return items, nil
		}
	}

	repaired, ok := repairTruncated(body)
	if !ok {
		return nil, fmt.Errorf("%w: no complete object", ErrUnparseable)
	}
	items, err := decodeItems(repaired)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return items, nil
}

// parseObject accepts a single item or an envelope holding the array
func parseObject(body string) ([]Item, error) {
	end := strings.LastIndex(body, "}")
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated object", ErrUnparseable)
	}
	cleaned := removeTrailingCommas(body[:end+1])

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	for _, raw := range envelope {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			return decodeItems(string(raw))
		}
	}

	var item Item
	if err := json.Unmarshal([]byte(cleaned), &item); err != nil || item.Ticker == "" {
		return nil, fmt.Errorf("%w: object without items", ErrUnparseable)
	}
	return []Item{item}, nil
}

func decodeItems(s string) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal([]byte(removeTrailingCommas(s)), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// stripFences returns the content of the first ``` block, or text as is
func stripFences(text string) string {
	open := strings.Index(text, "```")
	if open < 0 {
		return strings.TrimSpace(text)
	}
	rest := text[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:] // drop the language tag line
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// removeTrailingCommas drops commas directly followed by ] or },
// ignoring string contents
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}
		if ch == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\n' || s[j] == '\r' || s[j] == '\t') {
				j++
			}
			if j < len(s) && (s[j] == ']' || s[j] == '}') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// repairTruncated cuts an array after its last complete top-level object
func repairTruncated(s string) (string, bool) {
	depth, lastEnd := 0, -1
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 1 && ch == '}' {
				lastEnd = i
			}
		}
	}

	if lastEnd < 0 {
		return "", false
	}
	return s[:lastEnd+1] + "]", true
}

// normalize validates an item and converts it into an entry skeleton
func (it Item) normalize() (contracts.SentimentEntry, bool) {
	symbol := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(it.Ticker), "$"))
	if !contracts.IsTickerShape(symbol) {
		return contracts.SentimentEntry{}, false
	}

	e := contracts.SentimentEntry{
		Ticker:     symbol,
		Score:      contracts.ClampScore(it.SentimentScore),
		Confidence: contracts.ClampUnit(it.Confidence),
		KeyThemes:  it.KeyThemes,
		Summary:    strings.TrimSpace(it.Summary),
	}
	if it.ActionabilityScore != nil {
		e.Actionability = contracts.ClampUnit(*it.ActionabilityScore)
	}
	if it.HasCatalyst != nil {
		e.HasCatalyst = *it.HasCatalyst
	}
	return e, true
}
