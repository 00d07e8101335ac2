package domain

import (
	"strconv"
	"strings"
)

// CompareIDs orders index entry ids for deterministic tie breaking.
// Two integer ids compare numerically; anything else compares as text,
// with integers sorting before non-integers.
func CompareIDs(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
