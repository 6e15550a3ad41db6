package ticker

// blacklist holds tokens that match the ticker shape but are not tickers:
// common English words, finance acronyms and broad index ETFs.
var blacklist = toSet(
	// English
	"A", "I", "AM", "AN", "AND", "ARE", "AS", "AT", "BE", "BY", "DO", "FOR",
	"GO", "HE", "IF", "IN", "IS", "IT", "ME", "MY", "NO", "OF", "OK", "ON",
	"OR", "SO", "TO", "UP", "US", "WE", "ALL", "ANY", "BUT", "CAN", "DAY",
	"GET", "HAS", "HAD", "HOW", "ITS", "NEW", "NOT", "NOW", "OLD", "ONE",
	"OUR", "OUT", "SEE", "THE", "TOO", "TWO", "WAY", "WHO", "WHY", "YOU",
	"BIG", "JUST", "LIKE", "LOOK", "MAKE", "MORE", "MOST", "MUCH", "NEXT",
	"ONLY", "OVER", "SOME", "THAN", "THAT", "THEM", "THEN", "THIS", "VERY",
	"WHAT", "WHEN", "WILL", "WITH", "YEAR", "ALSO", "BACK", "BEEN", "FROM",
	"GOOD", "HAVE", "HERE", "INTO", "KNOW", "TAKE", "WEEK", "WELL", "WERE",
	"REAL", "HOLD", "MOON", "YOLO", "EDIT", "LMAO", "LOL", "IMO", "IMHO",
	"FOMO", "TLDR", "HUGE", "BEST", "EVER",

	// Finance / market jargon
	"CEO", "CFO", "CTO", "COO", "SEC", "IPO", "ETF", "EPS", "GDP", "CPI",
	"FED", "FOMC", "NYSE", "OTC", "ATH", "ATL", "DD", "PE", "PT", "EOD",
	"EOW", "IV", "ITM", "OTM", "ATM", "USD", "EUR", "API", "AI", "ML",
	"USA", "UK", "EU", "TA", "FUD", "HODL", "BTFD", "ROI", "YTD", "QE",
	"IRS", "LLC", "INC", "CALL", "CALLS", "PUT", "PUTS", "BUY", "SELL",
	"LONG", "SHORT", "BULL", "BEAR", "STOCK", "GAIN", "LOSS", "DIP",

	// Index ETFs
	"SPY", "QQQ", "IWM", "DIA", "VOO", "VTI", "SPX", "NDX", "VIX",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsBlacklisted reports whether s must never be returned as a ticker
func IsBlacklisted(s string) bool {
	_, ok := blacklist[s]
	return ok
}
