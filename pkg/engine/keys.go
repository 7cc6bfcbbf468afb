package engine

import "github.com/bobboyms/minidb/pkg/types"

// columnKey derives the Comparable an index stores for v in a column of
// dataType dt. The parser has no distinct "date literal" kind -- a DATE
// value arrives as an ordinary KindVarchar Value -- so this can't
// use Value.Key() directly for DATE columns, or the wrong concrete key
// type would reach an index built for DateKey.
func columnKey(dt types.DataType, v types.Value) types.Comparable {
	if dt == types.Date {
		return types.DateKey(v.S)
	}
	return v.Key()
}
