package types

import "fmt"

// DataType is one of the column data types the engine supports.
type DataType int

const (
	Int DataType = iota
	Float
	Varchar
	Bool
	Date
	Point
)

func (d DataType) String() string {
	switch d {
	case Int:
		return "INT"
	case Float:
		return "FLOAT"
	case Varchar:
		return "VARCHAR"
	case Bool:
		return "BOOL"
	case Date:
		return "DATE"
	case Point:
		return "POINT"
	default:
		return "UNKNOWN"
	}
}

// DateWidth is the fixed byte width of a DATE column, encoded the same
// way as a VARCHAR(DateWidth) column.
const DateWidth = 10 // "YYYY-MM-DD"

// IndexType names the index structures a column may request.
type IndexType int

const (
	NoIndexType IndexType = iota
	AVL
	ISAM
	Hash
	BTree
	RTree
	// Brin is accepted by the grammar (a historical synonym kept for
	// parser compatibility, see SPEC_FULL.md) but is never a legal column
	// index type; CreateIndex and schema validation both reject it.
	Brin
)

func (t IndexType) String() string {
	switch t {
	case NoIndexType:
		return "NONE"
	case AVL:
		return "AVL"
	case ISAM:
		return "ISAM"
	case Hash:
		return "HASH"
	case BTree:
		return "BTREE"
	case RTree:
		return "RTREE"
	case Brin:
		return "BRIN"
	default:
		return "UNKNOWN"
	}
}

// ParseIndexType maps an upper-case token to an IndexType, used by the
// parser's `index_type` grammar rule (the parser upper-cases the token
// before calling it).
func ParseIndexType(s string) (IndexType, bool) {
	switch s {
	case "NONE":
		return NoIndexType, true
	case "AVL":
		return AVL, true
	case "ISAM":
		return ISAM, true
	case "HASH":
		return Hash, true
	case "BTREE":
		return BTree, true
	case "RTREE":
		return RTree, true
	case "BRIN":
		return Brin, true
	default:
		return NoIndexType, false
	}
}

// ValueKind tags the dynamic variant flowing through the parser and
// condition evaluator (SPEC_FULL.md "dynamic value typing").
type ValueKind int

const (
	KindInt ValueKind = iota
	KindFloat
	KindVarchar
	KindBool
	KindPoint
	KindRect
	KindCircle
	KindKnn
)

// Value is the tagged-variant type values flow through the SQL layer as.
// Only one of the fields is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	I    int32
	F    float32
	S    string
	B    bool
	X, Y float32 // POINT, and (X,Y) center for Circle/Knn
	// Rect
	Xmax, Ymax float32
	// Circle / Knn radius / neighbor count
	R float32
	K int
}

func NewInt(v int32) Value      { return Value{Kind: KindInt, I: v} }
func NewFloat(v float32) Value  { return Value{Kind: KindFloat, F: v} }
func NewVarchar(v string) Value { return Value{Kind: KindVarchar, S: v} }
func NewBool(v bool) Value      { return Value{Kind: KindBool, B: v} }
func NewPoint(x, y float32) Value {
	return Value{Kind: KindPoint, X: x, Y: y}
}
func NewRect(xmin, ymin, xmax, ymax float32) Value {
	return Value{Kind: KindRect, X: xmin, Y: ymin, Xmax: xmax, Ymax: ymax}
}
func NewCircle(cx, cy, r float32) Value {
	return Value{Kind: KindCircle, X: cx, Y: cy, R: r}
}
func NewKnn(x, y float32, k int) Value {
	return Value{Kind: KindKnn, X: x, Y: y, K: k}
}

// TypeOf returns the DataType a scalar Value would be stored as; it
// panics for the non-column kinds (Rect/Circle/Knn), which never flow
// into storage -- callers must special-case those before calling TypeOf.
func (v Value) TypeOf() DataType {
	switch v.Kind {
	case KindInt:
		return Int
	case KindFloat:
		return Float
	case KindVarchar:
		return Varchar
	case KindBool:
		return Bool
	case KindPoint:
		return Point
	default:
		panic(fmt.Sprintf("types: %v has no storage DataType", v.Kind))
	}
}

// String renders a Value the way query results render it; POINT becomes
// the textual tuple form.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindFloat:
		return fmt.Sprintf("%g", v.F)
	case KindVarchar:
		return v.S
	case KindBool:
		return fmt.Sprintf("%t", v.B)
	case KindPoint:
		return fmt.Sprintf("(%g, %g)", v.X, v.Y)
	default:
		type fields Value // drops the String method so %+v prints the fields
		return fmt.Sprintf("%+v", fields(v))
	}
}

// Key converts a scalar Value into the Comparable key used by indexes.
func (v Value) Key() Comparable {
	switch v.Kind {
	case KindInt:
		return IntKey(v.I)
	case KindFloat:
		return FloatKey(v.F)
	case KindVarchar:
		return VarcharKey(v.S)
	case KindBool:
		return BoolKey(v.B)
	case KindPoint:
		return PointKey{X: v.X, Y: v.Y}
	default:
		panic(fmt.Sprintf("types: %v has no key representation", v.Kind))
	}
}
