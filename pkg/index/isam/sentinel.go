package isam

import (
	"strconv"
	"strings"

	"github.com/bobboyms/minidb/pkg/types"
)

// nextSentinel synthesizes the padding boundary key that follows prev,
// for regular leaf pages that hold no real data after a bulk build. INT
// and FLOAT step by a fixed amount (+1, +1.0); VARCHAR/DATE with a
// trailing integer suffix step that suffix; VARCHAR/DATE without one
// has no well-ordered successor, so nextSentinel returns keyWidth 0xFF
// bytes (greater than any real key of the same width); BOOL yields true.
func nextSentinel(dt types.DataType, prev types.Comparable, keyWidth int) types.Comparable {
	switch dt {
	case types.Int:
		return types.IntKey(prev.(types.IntKey) + 1)
	case types.Float:
		return types.FloatKey(prev.(types.FloatKey) + 1.0)
	case types.Varchar:
		s := string(prev.(types.VarcharKey))
		if stepped, ok := stepSuffix(s, 1); ok {
			return types.VarcharKey(stepped)
		}
		return types.VarcharKey(strings.Repeat("\xff", keyWidth))
	case types.Date:
		s := string(prev.(types.DateKey))
		if stepped, ok := stepSuffix(s, 1); ok {
			return types.DateKey(stepped)
		}
		return types.DateKey(strings.Repeat("\xff", keyWidth))
	case types.Bool:
		return types.BoolKey(true)
	default:
		return prev
	}
}

// stepSuffix increments the trailing run of decimal digits in s by
// delta, e.g. stepSuffix("user12", 1) -> "user13". Reports false when s
// has no trailing digit run.
func stepSuffix(s string, delta int) (string, bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return "", false
	}
	prefix, digits := s[:i], s[i:]
	n, err := strconv.Atoi(digits)
	if err != nil {
		return "", false
	}
	n += delta
	if n < 0 {
		n = 0
	}
	next := strconv.Itoa(n)
	for len(next) < len(digits) {
		next = "0" + next
	}
	return prefix + next, true
}
