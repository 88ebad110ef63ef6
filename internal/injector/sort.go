package injector

import (
	"fmt"
	"strings"
)

// Comparator orders two original source paths, returning a negative, zero or
// positive value.
type Comparator func(a, b string) int

// Sort names accepted in configuration.
const (
	SortNone    = "none"
	SortAsc     = "asc"
	SortDesc    = "desc"
	SortNatural = "natural"
	SortLength  = "length"
)

// SortNames lists every accepted sort name.
var SortNames = []string{SortNone, SortAsc, SortDesc, SortNatural, SortLength}

// ComparatorByName resolves a configured sort name. "" and "none" return a
// nil comparator, which keeps discovery order.
func ComparatorByName(name string) (Comparator, error) {
	switch strings.ToLower(name) {
	case "", SortNone:
		return nil, nil
	case SortAsc:
		return strings.Compare, nil
	case SortDesc:
		return func(a, b string) int { return strings.Compare(b, a) }, nil
	case SortNatural:
		return NaturalCompare, nil
	case SortLength:
		return func(a, b string) int { return len(a) - len(b) }, nil
	default:
		return nil, fmt.Errorf("unknown sort %q, must be one of: %s", name, strings.Join(SortNames, ", "))
	}
}

// NaturalCompare compares strings treating runs of ASCII digits as numbers,
// so "app2.js" sorts before "app10.js".
func NaturalCompare(a, b string) int {
	for a != "" && b != "" {
		if isDigit(a[0]) && isDigit(b[0]) {
			na, restA := splitDigits(a)
			nb, restB := splitDigits(b)
			if c := compareNumeric(na, nb); c != 0 {
				return c
			}
			a, b = restA, restB
			continue
		}
		if a[0] != b[0] {
			if a[0] < b[0] {
				return -1
			}
			return 1
		}
		a, b = a[1:], b[1:]
	}

	return len(a) - len(b)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func splitDigits(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}

	return s[:i], s[i:]
}

// compareNumeric compares digit strings of arbitrary length.
func compareNumeric(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		return len(ta) - len(tb)
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}

	return len(a) - len(b)
}
