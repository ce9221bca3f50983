package core

import (
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// DefaultCurrencySymbols are stripped from amounts before parsing.
var DefaultCurrencySymbols = []string{"R$", "US$", "$", "€", "£"}

// Normalizer turns free-form currency strings into decimal amounts. It uses a
// single convention: comma is a decimal separator and there are no thousands
// separators.
type Normalizer struct {
	symbols []string
}

// NewNormalizer returns a Normalizer stripping the given symbols, or the
// defaults when none are given.
func NewNormalizer(symbols ...string) Normalizer {
	if len(symbols) == 0 {
		symbols = DefaultCurrencySymbols
	}
	sorted := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			sorted = append(sorted, s)
		}
	}
	// Longest first so "R$" is removed before "$".
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	return Normalizer{symbols: sorted}
}

// IsZero reports whether n is the zero value, which strips no symbols.
func (n Normalizer) IsZero() bool {
	return n.symbols == nil
}

// Normalize parses raw into a non-negative amount. It never fails: anything it
// cannot turn into a non-negative number comes back as zero with a reason.
func (n Normalizer) Normalize(raw string) (decimal.Decimal, Outcome) {
	s := raw
	for _, sym := range n.symbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, Fail(ReasonEmptyInput, "empty amount %q", raw)
	}

	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, Fail(ReasonMalformed, "ambiguous separators in %q", raw)
	}

	// decimal also reads exponents; a huge one makes every later String or
	// rescale unbounded, so only a sign, digits and one point get through.
	if !plainNumber(s) {
		return decimal.Zero, Fail(ReasonMalformed, "not a number: %q", raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Fail(ReasonMalformed, "not a number: %q", raw)
	}
	if d.IsNegative() {
		return decimal.Zero, Fail(ReasonNegative, "negative amount %q", raw)
	}
	return d, OK()
}

func plainNumber(s string) bool {
	if s != "" && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
		default:
			return false
		}
	}
	return digits > 0
}

// MaxExponent bounds the decimal exponent of amounts taken from callers.
const MaxExponent = 18

// InRange reports whether d's exponent is small enough to format and rescale
// in bounded time.
func InRange(d decimal.Decimal) bool {
	e := d.Exponent()
	return e >= -MaxExponent && e <= MaxExponent
}

var defaultNormalizer = NewNormalizer()

// NormalizeAmount normalizes raw with the default currency symbols.
func NormalizeAmount(raw string) (decimal.Decimal, Outcome) {
	return defaultNormalizer.Normalize(raw)
}

// ParseAmount is NormalizeAmount without the outcome.
func ParseAmount(raw string) decimal.Decimal {
	d, _ := defaultNormalizer.Normalize(raw)
	return d
}
