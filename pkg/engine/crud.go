package engine

import (
	"sort"

	"github.com/bobboyms/minidb/pkg/bitmap"
	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/schema"
	"github.com/bobboyms/minidb/pkg/sql/ast"
	"github.com/bobboyms/minidb/pkg/types"
)

// Insert appends one row to the heap and notifies every column's index.
// columns is nil when the statement omitted an explicit column list,
// meaning values are positional in schema order.
func (m *DBManager) Insert(table string, columns []string, values []types.Value) error {
	s, err := m.loadSchema(table)
	if err != nil {
		return err
	}
	rf, err := m.loadHeap(table, s)
	if err != nil {
		return err
	}

	targets := columns
	if targets == nil {
		targets = make([]string, len(s.Columns))
		for i, c := range s.Columns {
			targets[i] = c.Name
		}
	}
	if len(targets) != len(values) {
		return &dberrors.ColumnCountMismatchError{Table: table, Expected: len(targets), Got: len(values)}
	}

	byName := make(map[string]types.Value, len(values))
	for i, name := range targets {
		byName[name] = values[i]
	}

	record := make([]byte, s.RecordWidth())
	keys := make([]types.Comparable, len(s.Columns))
	off := 0
	for i, col := range s.Columns {
		v, ok := byName[col.Name]
		if !ok {
			return &dberrors.ColumnCountMismatchError{Table: table, Expected: len(s.Columns), Got: len(values)}
		}
		if err := checkValueType(col, v); err != nil {
			return err
		}
		w := col.Width()
		types.Encode(record[off:off+w], col.DataType, v, col.VarcharLength)
		keys[i] = columnKey(col.DataType, v)
		off += w
	}

	slot, err := rf.Append(record)
	if err != nil {
		return err
	}

	for i, col := range s.Columns {
		ci, err := m.columnIndexFor(table, s, col)
		if err != nil {
			return err
		}
		if err := ci.idx.Insert(slot, keys[i]); err != nil {
			return err
		}
	}
	return nil
}

func checkValueType(col schema.Column, v types.Value) error {
	if col.DataType == types.Date {
		// The parser has no distinct date literal; a DATE value is an
		// ordinary string literal (KindVarchar).
		if v.Kind != types.KindVarchar {
			return &dberrors.TypeMismatchError{Column: col.Name, Expected: "DATE", Got: v.TypeOf().String()}
		}
		if len(v.S) > types.DateWidth {
			return &dberrors.VarcharOverflowError{Column: col.Name, Max: types.DateWidth, N: len(v.S)}
		}
		return nil
	}
	if v.TypeOf() != col.DataType {
		return &dberrors.TypeMismatchError{Column: col.Name, Expected: col.DataType.String(), Got: v.TypeOf().String()}
	}
	if col.DataType == types.Varchar && len(v.S) > col.VarcharLength {
		return &dberrors.VarcharOverflowError{Column: col.Name, Max: col.VarcharLength, N: len(v.S)}
	}
	return nil
}

// Select evaluates stmt and returns the projected, ordered, limited rows.
func (m *DBManager) Select(stmt *ast.Select) (*Result, error) {
	s, err := m.loadSchema(stmt.Table)
	if err != nil {
		return nil, err
	}
	rf, err := m.loadHeap(stmt.Table, s)
	if err != nil {
		return nil, err
	}

	projection := stmt.Columns
	if projection == nil {
		projection = make([]string, len(s.Columns))
		for i, c := range s.Columns {
			projection[i] = c.Name
		}
	}
	for _, name := range projection {
		if _, ok := s.Column(name); !ok {
			return nil, &dberrors.ProjectionError{Table: stmt.Table, Reason: "unknown column " + name}
		}
	}

	bm, err := m.whereBitmap(stmt.Table, s, stmt.Where)
	if err != nil {
		return nil, err
	}

	maxID, err := rf.MaxID()
	if err != nil {
		return nil, err
	}

	rows := make([][]types.Value, 0)
	for _, slot := range bm.Slots(maxID) {
		record, ok, err := rf.Read(slot)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rows = append(rows, decodeRow(s, record))
	}

	if stmt.OrderBy != nil {
		idx := s.ColumnIndex(stmt.OrderBy.Column)
		if idx < 0 {
			return nil, &dberrors.ColumnNotFoundError{Table: stmt.Table, Column: stmt.OrderBy.Column}
		}
		desc := stmt.OrderBy.Desc
		dt := s.Columns[idx].DataType
		sort.SliceStable(rows, func(i, j int) bool {
			c := columnKey(dt, rows[i][idx]).Compare(columnKey(dt, rows[j][idx]))
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	if stmt.Limit != nil {
		if *stmt.Limit <= 0 {
			return nil, &dberrors.InvalidLimitError{Limit: *stmt.Limit}
		}
		if *stmt.Limit < len(rows) {
			rows = rows[:*stmt.Limit]
		}
	}

	records := make([][]interface{}, len(rows))
	for i, row := range rows {
		rec := make([]interface{}, len(projection))
		for j, name := range projection {
			rec[j] = renderValue(row[s.ColumnIndex(name)])
		}
		records[i] = rec
	}

	return &Result{Columns: projection, Records: records}, nil
}

// Delete removes every row matching stmt.Where (or every row, when nil)
// from the heap and every one of the table's column indexes, not only
// the predicate column's.
func (m *DBManager) Delete(stmt *ast.Delete) (int, error) {
	s, err := m.loadSchema(stmt.Table)
	if err != nil {
		return 0, err
	}
	rf, err := m.loadHeap(stmt.Table, s)
	if err != nil {
		return 0, err
	}

	bm, err := m.whereBitmap(stmt.Table, s, stmt.Where)
	if err != nil {
		return 0, err
	}

	maxID, err := rf.MaxID()
	if err != nil {
		return 0, err
	}

	indexes := make([]columnIndex, len(s.Columns))
	for i, col := range s.Columns {
		ci, err := m.columnIndexFor(stmt.Table, s, col)
		if err != nil {
			return 0, err
		}
		indexes[i] = ci
	}

	count := 0
	for _, slot := range bm.Slots(maxID) {
		record, ok, err := rf.Read(slot)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		row := decodeRow(s, record)
		for i := range s.Columns {
			if err := indexes[i].idx.Delete(columnKey(s.Columns[i].DataType, row[i])); err != nil {
				return 0, err
			}
		}
		if err := rf.Delete(slot); err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

// whereBitmap evaluates cond, treating a nil WHERE clause as "every row".
func (m *DBManager) whereBitmap(table string, s *schema.TableSchema, cond ast.Condition) (*bitmap.Bitmap, error) {
	if cond == nil {
		return bitmap.All(), nil
	}
	return m.evalCondition(table, s, cond)
}

func decodeRow(s *schema.TableSchema, record []byte) []types.Value {
	row := make([]types.Value, len(s.Columns))
	off := 0
	for i, col := range s.Columns {
		w := col.Width()
		row[i] = types.Decode(record[off:off+w], col.DataType)
		off += w
	}
	return row
}

// renderValue converts a decoded column value into the plain Go scalar (or
// the textual tuple for POINT) a Result hands back to callers.
func renderValue(v types.Value) interface{} {
	switch v.Kind {
	case types.KindInt:
		return v.I
	case types.KindFloat:
		return v.F
	case types.KindVarchar:
		return v.S
	case types.KindBool:
		return v.B
	case types.KindPoint:
		return v.String()
	default:
		return v.String()
	}
}
