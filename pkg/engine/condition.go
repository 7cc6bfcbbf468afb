package engine

import (
	"github.com/bobboyms/minidb/pkg/bitmap"
	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/index"
	"github.com/bobboyms/minidb/pkg/schema"
	"github.com/bobboyms/minidb/pkg/sql/ast"
	"github.com/bobboyms/minidb/pkg/types"
)

// evalCondition walks a WHERE clause and returns the bitmap of matching
// slots: boolean combinators recurse and combine with Or/And/Not, leaf
// conditions resolve to an index lookup.
func (m *DBManager) evalCondition(table string, s *schema.TableSchema, cond ast.Condition) (*bitmap.Bitmap, error) {
	switch c := cond.(type) {
	case *ast.BinaryBoolCondition:
		left, err := m.evalCondition(table, s, c.Left)
		if err != nil {
			return nil, err
		}
		right, err := m.evalCondition(table, s, c.Right)
		if err != nil {
			return nil, err
		}
		if c.Op == ast.Or {
			return bitmap.Or(left, right), nil
		}
		return bitmap.And(left, right), nil

	case *ast.NotCondition:
		inner, err := m.evalCondition(table, s, c.Inner)
		if err != nil {
			return nil, err
		}
		return bitmap.Not(inner), nil

	case *ast.Compare:
		return m.evalCompare(table, s, c)

	case *ast.Between:
		return m.evalBetween(table, s, c)

	case *ast.BooleanColumn:
		col, ok := s.Column(c.Column)
		if !ok {
			return nil, &dberrors.ColumnNotFoundError{Table: table, Column: c.Column}
		}
		if col.DataType != types.Bool {
			return nil, &dberrors.TypeMismatchError{Column: c.Column, Expected: "BOOL", Got: col.DataType.String()}
		}
		ci, err := m.columnIndexFor(table, s, col)
		if err != nil {
			return nil, err
		}
		slots, err := ci.idx.Search(types.BoolKey(true))
		if err != nil {
			return nil, err
		}
		return bitmap.FromSlots(slots), nil

	case *ast.WithinRectangle:
		return m.evalWithinRect(table, s, c)

	case *ast.WithinCircle:
		return m.evalWithinCircle(table, s, c)

	case *ast.KNN:
		return m.evalKNN(table, s, c)

	default:
		return bitmap.Empty(), nil
	}
}

func (m *DBManager) evalCompare(table string, s *schema.TableSchema, c *ast.Compare) (*bitmap.Bitmap, error) {
	col, ok := s.Column(c.Column)
	if !ok {
		return nil, &dberrors.ColumnNotFoundError{Table: table, Column: c.Column}
	}
	if col.DataType == types.Point && c.Op != ast.EQ && c.Op != ast.NEQ {
		return nil, &dberrors.PointRangeUnsupportedError{Column: c.Column}
	}

	ci, err := m.columnIndexFor(table, s, col)
	if err != nil {
		return nil, err
	}
	key := columnKey(col.DataType, c.Value)

	switch c.Op {
	case ast.EQ:
		slots, err := ci.idx.Search(key)
		if err != nil {
			return nil, err
		}
		return bitmap.FromSlots(slots), nil

	case ast.NEQ:
		slots, err := ci.idx.Search(key)
		if err != nil {
			return nil, err
		}
		return bitmap.Not(bitmap.FromSlots(slots)), nil

	case ast.LT, ast.LE, ast.GT, ast.GE:
		return m.evalOrderedCompare(col, ci.idx, c.Op, key)
	}
	return bitmap.Empty(), nil
}

// evalOrderedCompare turns LT/LE/GT/GE into an inclusive RangeSearch
// against the per-type sentinel bound, excluding the boundary value for
// the strict operators.
func (m *DBManager) evalOrderedCompare(col schema.Column, idx index.Index, op ast.CompareOp, key types.Comparable) (*bitmap.Bitmap, error) {
	var lo, hi types.Comparable
	switch op {
	case ast.LT, ast.LE:
		lo, hi = types.NegInf(col.DataType), key
	default: // GT, GE
		lo, hi = key, types.PosInf(col.DataType)
	}

	slots, err := idx.RangeSearch(lo, hi)
	if err != nil {
		return nil, err
	}
	out := bitmap.FromSlots(slots)

	if op == ast.LT || op == ast.GT {
		eq, err := idx.Search(key)
		if err != nil {
			return nil, err
		}
		out = bitmap.Diff(out, bitmap.FromSlots(eq))
	}
	return out, nil
}

func (m *DBManager) evalBetween(table string, s *schema.TableSchema, c *ast.Between) (*bitmap.Bitmap, error) {
	col, ok := s.Column(c.Column)
	if !ok {
		return nil, &dberrors.ColumnNotFoundError{Table: table, Column: c.Column}
	}
	if col.DataType == types.Point {
		return nil, &dberrors.PointRangeUnsupportedError{Column: c.Column}
	}
	ci, err := m.columnIndexFor(table, s, col)
	if err != nil {
		return nil, err
	}
	slots, err := ci.idx.RangeSearch(columnKey(col.DataType, c.Lo), columnKey(col.DataType, c.Hi))
	if err != nil {
		return nil, err
	}
	return bitmap.FromSlots(slots), nil
}

func (m *DBManager) spatialFor(table string, s *schema.TableSchema, column string) (index.Spatial, schema.Column, error) {
	col, ok := s.Column(column)
	if !ok {
		return nil, col, &dberrors.ColumnNotFoundError{Table: table, Column: column}
	}
	if col.DataType != types.Point {
		return nil, col, &dberrors.TypeMismatchError{Column: column, Expected: "POINT", Got: col.DataType.String()}
	}
	ci, err := m.columnIndexFor(table, s, col)
	if err != nil {
		return nil, col, err
	}
	if ci.spatial == nil {
		return nil, col, &dberrors.IndexNotFoundError{Table: table, Column: column}
	}
	return ci.spatial, col, nil
}

func (m *DBManager) evalWithinRect(table string, s *schema.TableSchema, c *ast.WithinRectangle) (*bitmap.Bitmap, error) {
	sp, _, err := m.spatialFor(table, s, c.Column)
	if err != nil {
		return nil, err
	}
	if c.Xmin > c.Xmax || c.Ymin > c.Ymax {
		return nil, &dberrors.InvalidRectError{Xmin: float64(c.Xmin), Ymin: float64(c.Ymin), Xmax: float64(c.Xmax), Ymax: float64(c.Ymax)}
	}
	slots, err := sp.RangeSearchRect(index.Rect{Xmin: c.Xmin, Ymin: c.Ymin, Xmax: c.Xmax, Ymax: c.Ymax})
	if err != nil {
		return nil, err
	}
	return bitmap.FromSlots(slots), nil
}

func (m *DBManager) evalWithinCircle(table string, s *schema.TableSchema, c *ast.WithinCircle) (*bitmap.Bitmap, error) {
	sp, _, err := m.spatialFor(table, s, c.Column)
	if err != nil {
		return nil, err
	}
	if c.R < 0 {
		return nil, &dberrors.InvalidCircleError{Radius: float64(c.R)}
	}
	slots, err := sp.RangeSearchCircle(index.Circle{X: c.X, Y: c.Y, R: c.R})
	if err != nil {
		return nil, err
	}
	return bitmap.FromSlots(slots), nil
}

func (m *DBManager) evalKNN(table string, s *schema.TableSchema, c *ast.KNN) (*bitmap.Bitmap, error) {
	sp, _, err := m.spatialFor(table, s, c.Column)
	if err != nil {
		return nil, err
	}
	if c.K <= 0 {
		return nil, &dberrors.InvalidKError{K: c.K}
	}
	slots, err := sp.KNNSearch(c.X, c.Y, c.K)
	if err != nil {
		return nil, err
	}
	return bitmap.FromSlots(slots), nil
}
