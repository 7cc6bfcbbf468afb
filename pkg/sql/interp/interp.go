// Package interp is the SQL front-end's final stage: it walks the AST
// the parser produced and drives the DBManager executor, shaping every
// statement's outcome into the single
// "execute_sql(sql_text) -> (result | none, message)" contract.
package interp

import (
	"fmt"

	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/engine"
	"github.com/bobboyms/minidb/pkg/schema"
	"github.com/bobboyms/minidb/pkg/sql/ast"
	"github.com/bobboyms/minidb/pkg/sql/parser"
	"github.com/bobboyms/minidb/pkg/types"
)

// Execute parses and runs every statement in sqlText against dbm in
// source order, returning the result of the last statement that produced
// one (SELECT rows, or DELETE's deleted count; nil if none did) and a
// message: "OK" on success, or a flattened runtime-error message on
// failure, matching the "(result | none, message)" shape.
func Execute(dbm *engine.DBManager, sqlText string) (*engine.Result, string) {
	stmts, err := parser.ParseAll(sqlText)
	if err != nil {
		return nil, message(err)
	}

	var last *engine.Result
	for _, stmt := range stmts {
		r, err := execStatement(dbm, stmt)
		if err != nil {
			return nil, message(err)
		}
		if r != nil {
			last = r
		}
	}
	return last, "OK"
}

func message(err error) string {
	if re, ok := err.(dberrors.RuntimeError); ok {
		return re.RuntimeError()
	}
	return err.Error()
}

func execStatement(dbm *engine.DBManager, stmt ast.Statement) (*engine.Result, error) {
	switch s := stmt.(type) {
	case *ast.CreateTable:
		return nil, execCreateTable(dbm, s)
	case *ast.DropTable:
		return nil, dbm.DropTable(s.Table, s.IfExists)
	case *ast.Insert:
		return nil, dbm.Insert(s.Table, s.Columns, s.Values)
	case *ast.Select:
		return dbm.Select(s)
	case *ast.Delete:
		n, err := dbm.Delete(s)
		if err != nil {
			return nil, err
		}
		return &engine.Result{
			Columns: []string{"deleted"},
			Records: [][]interface{}{{n}},
		}, nil
	case *ast.CreateIndex:
		return nil, dbm.CreateIndex(s)
	case *ast.DropIndex:
		return nil, dbm.DropIndex(s)
	default:
		return nil, fmt.Errorf("interp: unhandled statement %T", stmt)
	}
}

func execCreateTable(dbm *engine.DBManager, s *ast.CreateTable) error {
	cols := make([]schema.Column, len(s.Columns))
	for i, c := range s.Columns {
		idxType := c.IndexType
		if !c.HasIndex {
			idxType = types.NoIndexType
		}
		cols[i] = schema.Column{
			Name:          c.Name,
			DataType:      c.DataType,
			IsPrimary:     c.IsPrimary,
			IndexType:     idxType,
			VarcharLength: c.VarcharLength,
		}
	}
	ts := &schema.TableSchema{TableName: s.Table, Columns: cols}
	return dbm.CreateTable(ts, s.IfNotExists)
}
