package types

import "math"

// Sentinels for absent range-search bounds. PosInf/NegInf stand in
// for "+infinity"/"-infinity" per type so every index's rangeSearch can
// treat a missing bound uniformly instead of special-casing nil.

const (
	// floatSentinel stands in for numeric infinity on FLOAT columns.
	floatSentinel = 1e18
	// intSentinel stands in for numeric infinity on INT columns, clamped
	// to the widest value an int32 key can actually hold.
	intSentinel = math.MaxInt32
)

// NegInf returns the per-type key used in place of an absent lower bound.
// It sorts at or below every INT, VARCHAR, DATE and BOOL value; for FLOAT
// it is -1e18, so FLOAT values below -1e18 sort beneath it.
func NegInf(dt DataType) Comparable {
	switch dt {
	case Int:
		return IntKey(math.MinInt32)
	case Float:
		return FloatKey(-floatSentinel)
	case Varchar:
		return VarcharKey("")
	case Date:
		return DateKey("")
	case Bool:
		return BoolKey(false)
	default:
		return nil
	}
}

// PosInf returns the per-type key used in place of an absent upper bound.
// It sorts at or above every INT and BOOL value; for FLOAT it is 1e18, so
// FLOAT values above 1e18 sort beyond it. Varchar/Date use a string built
// from the maximum Unicode code point repeated ten times.
func PosInf(dt DataType) Comparable {
	switch dt {
	case Int:
		return IntKey(intSentinel)
	case Float:
		return FloatKey(floatSentinel)
	case Varchar:
		return VarcharKey(maxRuneString())
	case Date:
		return DateKey(maxRuneString())
	case Bool:
		return BoolKey(true)
	default:
		return nil
	}
}

func maxRuneString() string {
	r := rune(0x10FFFF)
	out := make([]rune, 10)
	for i := range out {
		out[i] = r
	}
	return string(out)
}
