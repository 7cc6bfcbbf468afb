package parser

import (
	"testing"

	"github.com/bobboyms/minidb/pkg/sql/ast"
	"github.com/bobboyms/minidb/pkg/types"
)

func TestParseCreateTable(t *testing.T) {
	stmts, err := ParseAll("CREATE TABLE t (id INT PRIMARY KEY, x FLOAT INDEX BTREE);")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(stmts))
	}
	ct, ok := stmts[0].(*ast.CreateTable)
	if !ok {
		t.Fatalf("statement is %T, want *ast.CreateTable", stmts[0])
	}
	if ct.Table != "t" || len(ct.Columns) != 2 {
		t.Fatalf("CreateTable = %+v", ct)
	}
	if !ct.Columns[0].IsPrimary || ct.Columns[0].DataType != types.Int {
		t.Fatalf("column 0 = %+v", ct.Columns[0])
	}
	if !ct.Columns[1].HasIndex || ct.Columns[1].IndexType != types.BTree {
		t.Fatalf("column 1 = %+v", ct.Columns[1])
	}
}

func TestParseVarcharLength(t *testing.T) {
	stmts, err := ParseAll("CREATE TABLE h (k VARCHAR(4) PRIMARY KEY);")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	ct := stmts[0].(*ast.CreateTable)
	if ct.Columns[0].VarcharLength != 4 {
		t.Fatalf("VarcharLength = %d, want 4", ct.Columns[0].VarcharLength)
	}
}

func TestParseSelectProjectionWhereOrderLimit(t *testing.T) {
	stmts, err := ParseAll("SELECT x FROM t WHERE id = 2 ORDER BY x DESC LIMIT 10;")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	sel := stmts[0].(*ast.Select)
	if len(sel.Columns) != 1 || sel.Columns[0] != "x" {
		t.Fatalf("Columns = %v", sel.Columns)
	}
	cmp, ok := sel.Where.(*ast.Compare)
	if !ok || cmp.Column != "id" || cmp.Op != ast.EQ {
		t.Fatalf("Where = %+v", sel.Where)
	}
	if sel.OrderBy == nil || sel.OrderBy.Column != "x" || !sel.OrderBy.Desc {
		t.Fatalf("OrderBy = %+v", sel.OrderBy)
	}
	if sel.Limit == nil || *sel.Limit != 10 {
		t.Fatalf("Limit = %v", sel.Limit)
	}
}

func TestParseSelectStar(t *testing.T) {
	stmts, err := ParseAll("SELECT * FROM t;")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	sel := stmts[0].(*ast.Select)
	if sel.Columns != nil {
		t.Fatalf("Columns = %v, want nil (SELECT *)", sel.Columns)
	}
}

func TestParseAndOrNotPrecedence(t *testing.T) {
	// AND binds tighter than OR: "a OR b AND c" = a OR (b AND c)
	stmts, err := ParseAll("SELECT * FROM t WHERE a = 1 OR b = 2 AND c = 3;")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	sel := stmts[0].(*ast.Select)
	or, ok := sel.Where.(*ast.BinaryBoolCondition)
	if !ok || or.Op != ast.Or {
		t.Fatalf("Where = %+v, want top-level OR", sel.Where)
	}
	and, ok := or.Right.(*ast.BinaryBoolCondition)
	if !ok || and.Op != ast.And {
		t.Fatalf("OR.Right = %+v, want AND", or.Right)
	}
}

func TestParseNotAndParens(t *testing.T) {
	stmts, err := ParseAll("SELECT * FROM t WHERE NOT (a = 1 AND b = 2);")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	sel := stmts[0].(*ast.Select)
	not, ok := sel.Where.(*ast.NotCondition)
	if !ok {
		t.Fatalf("Where = %+v, want NotCondition", sel.Where)
	}
	if _, ok := not.Inner.(*ast.BinaryBoolCondition); !ok {
		t.Fatalf("NotCondition.Inner = %+v, want BinaryBoolCondition", not.Inner)
	}
}

func TestParseBetween(t *testing.T) {
	stmts, err := ParseAll("SELECT * FROM t WHERE x BETWEEN 1.0 AND 2.0;")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	sel := stmts[0].(*ast.Select)
	bt, ok := sel.Where.(*ast.Between)
	if !ok || bt.Column != "x" {
		t.Fatalf("Where = %+v", sel.Where)
	}
	if bt.Lo.F != 1.0 || bt.Hi.F != 2.0 {
		t.Fatalf("Between bounds = %v..%v", bt.Lo, bt.Hi)
	}
}

func TestParseWithinCircleAndKNN(t *testing.T) {
	stmts, err := ParseAll("SELECT id FROM p WHERE loc WITHIN CIRCLE (0.0,0.0,5.0);")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	wc := stmts[0].(*ast.Select).Where.(*ast.WithinCircle)
	if wc.Column != "loc" || wc.R != 5.0 {
		t.Fatalf("WithinCircle = %+v", wc)
	}

	stmts, err = ParseAll("SELECT id FROM p WHERE loc KNN (0.0,0.0,2);")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	knn := stmts[0].(*ast.Select).Where.(*ast.KNN)
	if knn.Column != "loc" || knn.K != 2 {
		t.Fatalf("KNN = %+v", knn)
	}
}

func TestParseInsertWithAndWithoutColumnList(t *testing.T) {
	stmts, err := ParseAll("INSERT INTO t VALUES(1, 1.5);")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	ins := stmts[0].(*ast.Insert)
	if ins.Columns != nil || len(ins.Values) != 2 {
		t.Fatalf("Insert = %+v", ins)
	}

	stmts, err = ParseAll("INSERT INTO t (x, id) VALUES(1.5, 1);")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	ins = stmts[0].(*ast.Insert)
	if len(ins.Columns) != 2 || ins.Columns[0] != "x" {
		t.Fatalf("Insert.Columns = %v", ins.Columns)
	}
}

func TestParseInsertPointLiteral(t *testing.T) {
	stmts, err := ParseAll("INSERT INTO p VALUES(1, (3.0,4.0));")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	ins := stmts[0].(*ast.Insert)
	if ins.Values[1].Kind != types.KindPoint || ins.Values[1].X != 3.0 || ins.Values[1].Y != 4.0 {
		t.Fatalf("Values[1] = %+v", ins.Values[1])
	}
}

func TestParseDeleteDropCreateIndexDropIndex(t *testing.T) {
	stmts, err := ParseAll(`
		DELETE FROM t WHERE id = 1;
		DROP TABLE IF EXISTS t;
		CREATE INDEX idx1 ON t USING BTREE (x);
		DROP INDEX idx1 ON t;
	`)
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(stmts) != 4 {
		t.Fatalf("got %d statements, want 4", len(stmts))
	}
	if _, ok := stmts[0].(*ast.Delete); !ok {
		t.Fatalf("stmt 0 = %T", stmts[0])
	}
	dt, ok := stmts[1].(*ast.DropTable)
	if !ok || !dt.IfExists {
		t.Fatalf("stmt 1 = %+v", stmts[1])
	}
	ci, ok := stmts[2].(*ast.CreateIndex)
	if !ok || ci.Using != types.BTree || !ci.HasUsing {
		t.Fatalf("stmt 2 = %+v", stmts[2])
	}
	if _, ok := stmts[3].(*ast.DropIndex); !ok {
		t.Fatalf("stmt 3 = %T", stmts[3])
	}
}

func TestParseErrorOnUnexpectedToken(t *testing.T) {
	if _, err := ParseAll("SELECT FROM t;"); err == nil {
		t.Fatalf("ParseAll: want error for missing projection list")
	}
}

func TestParseErrorUnknownKeyword(t *testing.T) {
	if _, err := ParseAll("FROBNICATE t;"); err == nil {
		t.Fatalf("ParseAll: want error for unrecognized statement keyword")
	}
}

func TestParseMultipleStatements(t *testing.T) {
	stmts, err := ParseAll("INSERT INTO t VALUES(1); INSERT INTO t VALUES(2);")
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
}
