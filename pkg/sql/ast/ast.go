// Package ast defines the statement and condition tree the parser
// produces and the interpreter walks. Conditions are kept
// separate from the bitmap algebra that evaluates them (pkg/engine):
// this package only describes the shape of a parsed WHERE clause.
package ast

import "github.com/bobboyms/minidb/pkg/types"

// Statement is implemented by every top-level SQL statement.
type Statement interface {
	statement()
}

// ColumnDef is one column_def from the CREATE TABLE grammar.
type ColumnDef struct {
	Name          string
	DataType      types.DataType
	VarcharLength int
	IsPrimary     bool
	HasIndex      bool
	IndexType     types.IndexType
}

// CreateTable is the "CREATE TABLE" statement.
type CreateTable struct {
	IfNotExists bool
	Table       string
	Columns     []ColumnDef
}

// DropTable is the "DROP TABLE" statement.
type DropTable struct {
	IfExists bool
	Table    string
}

// Insert is the "INSERT INTO" statement. Columns is nil when the
// statement omits the explicit column list (values are positional).
type Insert struct {
	Table   string
	Columns []string
	Values  []types.Value
}

// Select is the "SELECT" statement. Columns is nil for "SELECT *".
type Select struct {
	Columns []string
	Table   string
	Where   Condition
	OrderBy *OrderBy
	Limit   *int
}

// OrderBy is the "ORDER BY col [ASC|DESC]" clause.
type OrderBy struct {
	Column string
	Desc   bool
}

// Delete is the "DELETE FROM" statement.
type Delete struct {
	Table string
	Where Condition
}

// CreateIndex is the "CREATE INDEX" statement. Using is NoIndexType when
// the statement omits "USING index_type" (DBManager.CreateIndex then picks
// a default based on the column's data type: RTREE for POINT, else BTREE).
type CreateIndex struct {
	IndexName string
	Table     string
	Using     types.IndexType
	HasUsing  bool
	Columns   []string
}

// DropIndex is the "DROP INDEX ... ON ..." statement.
type DropIndex struct {
	IndexName string
	Table     string
}

func (*CreateTable) statement() {}
func (*DropTable) statement()   {}
func (*Insert) statement()      {}
func (*Select) statement()      {}
func (*Delete) statement()      {}
func (*CreateIndex) statement() {}
func (*DropIndex) statement()   {}

// Condition is implemented by every node of a WHERE clause.
type Condition interface {
	condition()
}

// BoolOp names an AND/OR combinator.
type BoolOp int

const (
	And BoolOp = iota
	Or
)

// BinaryBoolCondition combines two sub-conditions with AND/OR.
type BinaryBoolCondition struct {
	Op          BoolOp
	Left, Right Condition
}

// NotCondition negates its operand.
type NotCondition struct {
	Inner Condition
}

// CompareOp names a scalar comparison operator.
type CompareOp int

const (
	EQ CompareOp = iota
	NEQ
	LT
	GT
	LE
	GE
)

// Compare is "column op value" for the EQ/NEQ/LT/GT/LE/GE operators.
type Compare struct {
	Column string
	Op     CompareOp
	Value  types.Value
}

// Between is "column BETWEEN lo AND hi" (inclusive, rejected for POINT).
type Between struct {
	Column string
	Lo, Hi types.Value
}

// BooleanColumn is a bare column reference used as a predicate: true
// when the column (which must be BOOL) holds true for that row.
type BooleanColumn struct {
	Column string
}

// WithinRectangle is "column WITHIN RECTANGLE(xmin,ymin,xmax,ymax)".
type WithinRectangle struct {
	Column                 string
	Xmin, Ymin, Xmax, Ymax float32
}

// WithinCircle is "column WITHIN CIRCLE(cx,cy,r)".
type WithinCircle struct {
	Column  string
	X, Y, R float32
}

// KNN is "column KNN(x,y,k)".
type KNN struct {
	Column string
	X, Y   float32
	K      int
}

func (*BinaryBoolCondition) condition() {}
func (*NotCondition) condition()        {}
func (*Compare) condition()             {}
func (*Between) condition()             {}
func (*BooleanColumn) condition()       {}
func (*WithinRectangle) condition()     {}
func (*WithinCircle) condition()        {}
func (*KNN) condition()                 {}
