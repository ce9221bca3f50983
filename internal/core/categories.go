package core

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// DefaultCategories is the built-in expense category set, in display order.
var DefaultCategories = CategorySet{
	"Leisure",
	"Cleaning",
	"Clothing",
	"Laundry",
	"Groceries",
	"Housing",
	"Restaurant",
	"Rent",
	"Electricity",
	"Internet",
	"Pharmacy",
	"Car",
}

// CategorySet is the ordered list of known expense categories. Its order drives
// every per-category iteration.
type CategorySet []string

// Contains reports whether name is in the set, matching exactly.
func (cs CategorySet) Contains(name string) bool {
	for _, c := range cs {
		if c == name {
			return true
		}
	}
	return false
}

// Canonical maps a raw label onto the set's spelling, ignoring surrounding
// whitespace and case. Unknown labels come back trimmed with ok=false.
func (cs CategorySet) Canonical(label string) (string, bool) {
	trimmed := strings.TrimSpace(label)
	for _, c := range cs {
		if strings.EqualFold(c, trimmed) {
			return c, true
		}
	}
	return trimmed, false
}

// Suggest returns the closest known category to label, if one is close enough
// to be a plausible typo.
func (cs CategorySet) Suggest(label string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(label))
	if needle == "" {
		return "", false
	}
	best, bestDist := "", -1
	for _, c := range cs {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	limit := len([]rune(needle)) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist < 0 || bestDist > limit {
		return "", false
	}
	return best, true
}
