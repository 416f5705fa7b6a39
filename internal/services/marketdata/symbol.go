package marketdata

import (
	"strings"

	"github.com/bobmcallan/pulse/internal/models"
)

// exchangeSuffixes are the suffixes FormatSymbol understands. Anything else
// after a dot is treated as a share class ("BRK.B").
var exchangeSuffixes = map[string]bool{"US": true, "KS": true, "KQ": true, "KO": true}

// FormatSymbol adapts a ticker to a provider's symbol format. Formatting is
// idempotent: FormatSymbol(p, FormatSymbol(p, t, m), m) == FormatSymbol(p, t, m).
//
//	yahoo: 005930 -> 005930.KS, AMD -> AMD, BRK.B -> BRK-B
//	eodhd: 005930 -> 005930.KO, AMD -> AMD.US, BRK.B -> BRK-B.US
func FormatSymbol(provider string, ticker string, market models.Market) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return ""
	}

	base, suffix := t, ""
	if i := strings.LastIndex(t, "."); i > 0 && exchangeSuffixes[t[i+1:]] {
		base, suffix = t[:i], t[i+1:]
	}
	base = strings.ReplaceAll(base, ".", "-")

	eodhd := provider == "eodhd"

	switch suffix {
	case "KS", "KO":
		if eodhd {
			return base + ".KO"
		}
		return base + ".KS"
	case "KQ":
		return base + ".KQ"
	case "US":
		if eodhd {
			return base + ".US"
		}
		return base
	}

	if market == models.MarketKR && isNumeric(base) {
		if eodhd {
			return base + ".KO"
		}
		return base + ".KS"
	}
	if market == models.MarketUS && eodhd {
		return base + ".US"
	}
	return base
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
