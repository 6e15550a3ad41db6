package ranker

import "regexp"

var (
	// price levels: "target 150", "pt $42.5", "stop 98", "above 200", "$150", "150c"
	numericTargetPattern = regexp.MustCompile(
		`(?i)\b(?:target|tgt|pt|stop|sl|above|below|over|under|strike|entry)\b[^\d\n]{0,12}\$?\d+(?:\.\d+)?` +
			`|\$\d+(?:\.\d+)?\b` +
			`|\b\d+(?:\.\d+)?\s?[cp]\b`)

	actionWordPattern = regexp.MustCompile(
		`(?i)\b(?:entry|entries|breakout|breakdown|calls?|puts?|stop|target|sweeps?|unusual|gamma|squeeze|` +
			`loaded|bought|sold|trim(?:med)?|long|short|flow|block|strike|expiry|scalp)\b`)

	catalystPattern = regexp.MustCompile(
		`(?i)\b(?:earnings|guidance|upgrades?|upgraded|downgrades?|downgraded|fda|pdufa|8-k|10-q|` +
			`press release|merger|acquisition|acquires|buyback|offering|split|approval|lawsuit|recall)\b`)

	linkPattern = regexp.MustCompile(`(?i)https?://\S+`)
)

// Flags are the content signals of a post
type Flags struct {
	HasNumbers     bool
	HasActionWords bool
	HasMedia       bool
	HasCatalyst    bool
}

// DetectFlags scans text; hasMedia comes from platform metadata
func DetectFlags(text string, hasMedia bool) Flags {
	return Flags{
		HasNumbers:     numericTargetPattern.MatchString(text),
		HasActionWords: actionWordPattern.MatchString(text),
		HasMedia:       hasMedia || linkPattern.MatchString(text),
		HasCatalyst:    catalystPattern.MatchString(text),
	}
}

// Actionability is the 0-3 sum of the number, action word and media flags
func (f Flags) Actionability() int {
	n := 0
	if f.HasNumbers {
		n++
	}
	if f.HasActionWords {
		n++
	}
	if f.HasMedia {
		n++
	}
	return n
}

// Catalyst is 1 when a catalyst keyword is present
func (f Flags) Catalyst() int {
	if f.HasCatalyst {
		return 1
	}
	return 0
}
