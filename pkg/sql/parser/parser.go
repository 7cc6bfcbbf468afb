// Package parser implements the recursive-descent parser for the engine's
// SQL dialect. It consumes the token stream from pkg/sql/lexer and
// produces the ast.Statement tree pkg/sql/interp walks.
package parser

import (
	"strconv"
	"strings"

	"github.com/bobboyms/minidb/pkg/dberrors"
	"github.com/bobboyms/minidb/pkg/sql/ast"
	"github.com/bobboyms/minidb/pkg/sql/lexer"
	"github.com/bobboyms/minidb/pkg/types"
)

// Parser walks a flat token slice with a single token of lookahead;
// multi-word forms such as "IF NOT EXISTS" or "ORDER BY" are consumed one
// keyword at a time.
type Parser struct {
	toks []lexer.Token
	pos  int
}

// ParseAll parses every ";"-terminated statement in src.
func ParseAll(src string) ([]ast.Statement, error) {
	toks, err := lexer.All(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	var stmts []ast.Statement
	for !p.at(lexer.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if _, err := p.expect(lexer.SEMICOLON); err != nil {
			return nil, err
		}
	}
	return stmts, nil
}

func (p *Parser) cur() lexer.Token { return p.toks[p.pos] }

func (p *Parser) at(k lexer.Kind) bool { return p.cur().Kind == k }

// atKeyword reports whether the current token is an IDENT whose
// uppercased text equals kw.
func (p *Parser) atKeyword(kw string) bool {
	t := p.cur()
	return t.Kind == lexer.IDENT && strings.ToUpper(t.Text) == kw
}

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if t.Kind != lexer.EOF {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k lexer.Kind) (lexer.Token, error) {
	if !p.at(k) {
		return lexer.Token{}, &dberrors.ParseError{Message: "unexpected token " + describeToken(p.cur()), Pos: p.cur().Pos}
	}
	return p.advance(), nil
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return &dberrors.ParseError{Message: "expected keyword " + kw + ", got " + describeToken(p.cur()), Pos: p.cur().Pos}
	}
	p.advance()
	return nil
}

func describeToken(t lexer.Token) string {
	if t.Kind == lexer.EOF {
		return "<eof>"
	}
	return "'" + t.Text + "'"
}

func (p *Parser) parseIdent() (string, error) {
	t, err := p.expect(lexer.IDENT)
	if err != nil {
		return "", err
	}
	return t.Text, nil
}

// --- top-level dispatch ---------------------------------------------------

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch {
	case p.atKeyword("SELECT"):
		return p.parseSelect()
	case p.atKeyword("CREATE"):
		return p.parseCreate()
	case p.atKeyword("DROP"):
		return p.parseDrop()
	case p.atKeyword("INSERT"):
		return p.parseInsert()
	case p.atKeyword("DELETE"):
		return p.parseDelete()
	default:
		return nil, &dberrors.ParseError{Message: "expected a statement keyword, got " + describeToken(p.cur()), Pos: p.cur().Pos}
	}
}

// --- SELECT ----------------------------------------------------------------

func (p *Parser) parseSelect() (ast.Statement, error) {
	p.advance() // SELECT

	var columns []string
	if p.at(lexer.STAR) {
		p.advance()
	} else {
		col, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
		for p.at(lexer.COMMA) {
			p.advance()
			col, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			columns = append(columns, col)
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}

	sel := &ast.Select{Columns: columns, Table: table}

	if p.atKeyword("WHERE") {
		p.advance()
		cond, err := p.parseOrCond()
		if err != nil {
			return nil, err
		}
		sel.Where = cond
	}

	if p.atKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		col, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		ob := &ast.OrderBy{Column: col}
		if p.atKeyword("DESC") {
			p.advance()
			ob.Desc = true
		} else if p.atKeyword("ASC") {
			p.advance()
		}
		sel.OrderBy = ob
	}

	if p.atKeyword("LIMIT") {
		p.advance()
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, &dberrors.InvalidLimitError{Limit: n}
		}
		sel.Limit = &n
	}

	return sel, nil
}

func (p *Parser) parseIntLiteral() (int, error) {
	t, err := p.expect(lexer.INT)
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(t.Text)
	if convErr != nil {
		return 0, &dberrors.ParseError{Message: "invalid integer literal " + t.Text, Pos: t.Pos}
	}
	return n, nil
}

func (p *Parser) parseFloatLiteral() (float32, error) {
	if p.at(lexer.FLOAT) || p.at(lexer.INT) {
		t := p.advance()
		f, err := strconv.ParseFloat(t.Text, 32)
		if err != nil {
			return 0, &dberrors.ParseError{Message: "invalid number literal " + t.Text, Pos: t.Pos}
		}
		return float32(f), nil
	}
	return 0, &dberrors.ParseError{Message: "expected a number, got " + describeToken(p.cur()), Pos: p.cur().Pos}
}

// --- condition = or_cond ----------------------------------------------------

func (p *Parser) parseOrCond() (ast.Condition, error) {
	left, err := p.parseAndCond()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("OR") {
		p.advance()
		right, err := p.parseAndCond()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryBoolCondition{Op: ast.Or, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAndCond() (ast.Condition, error) {
	left, err := p.parseNotCond()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("AND") {
		p.advance()
		right, err := p.parseNotCond()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryBoolCondition{Op: ast.And, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNotCond() (ast.Condition, error) {
	if p.atKeyword("NOT") {
		p.advance()
		inner, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		return &ast.NotCondition{Inner: inner}, nil
	}
	return p.parsePredicate()
}

func (p *Parser) parsePredicate() (ast.Condition, error) {
	if p.at(lexer.LPAREN) {
		p.advance()
		cond, err := p.parseOrCond()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return cond, nil
	}
	return p.parseSimple()
}

func (p *Parser) parseSimple() (ast.Condition, error) {
	col, err := p.parseIdent()
	if err != nil {
		return nil, err
	}

	switch {
	case p.atKeyword("BETWEEN"):
		p.advance()
		lo, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return &ast.Between{Column: col, Lo: lo, Hi: hi}, nil

	case p.atKeyword("WITHIN"):
		p.advance()
		switch {
		case p.atKeyword("RECTANGLE"):
			p.advance()
			xmin, ymin, xmax, ymax, err := p.parseFourFloats()
			if err != nil {
				return nil, err
			}
			if xmin > xmax || ymin > ymax {
				return nil, &dberrors.InvalidRectError{Xmin: float64(xmin), Ymin: float64(ymin), Xmax: float64(xmax), Ymax: float64(ymax)}
			}
			return &ast.WithinRectangle{Column: col, Xmin: xmin, Ymin: ymin, Xmax: xmax, Ymax: ymax}, nil
		case p.atKeyword("CIRCLE"):
			p.advance()
			x, y, r, err := p.parseThreeFloats()
			if err != nil {
				return nil, err
			}
			if r < 0 {
				return nil, &dberrors.InvalidCircleError{Radius: float64(r)}
			}
			return &ast.WithinCircle{Column: col, X: x, Y: y, R: r}, nil
		default:
			return nil, &dberrors.ParseError{Message: "expected RECTANGLE or CIRCLE after WITHIN, got " + describeToken(p.cur()), Pos: p.cur().Pos}
		}

	case p.atKeyword("KNN"):
		p.advance()
		if _, err := p.expect(lexer.LPAREN); err != nil {
			return nil, err
		}
		x, err := p.parseFloatLiteral()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.COMMA); err != nil {
			return nil, err
		}
		y, err := p.parseFloatLiteral()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.COMMA); err != nil {
			return nil, err
		}
		k, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		if k <= 0 {
			return nil, &dberrors.InvalidKError{K: k}
		}
		return &ast.KNN{Column: col, X: x, Y: y, K: k}, nil

	case isCompareOp(p.cur().Kind):
		op := compareOpFor(p.advance().Kind)
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return &ast.Compare{Column: col, Op: op, Value: val}, nil

	default:
		return &ast.BooleanColumn{Column: col}, nil
	}
}

func (p *Parser) parseFourFloats() (a, b, c, d float32, err error) {
	if _, err = p.expect(lexer.LPAREN); err != nil {
		return
	}
	if a, err = p.parseFloatLiteral(); err != nil {
		return
	}
	if _, err = p.expect(lexer.COMMA); err != nil {
		return
	}
	if b, err = p.parseFloatLiteral(); err != nil {
		return
	}
	if _, err = p.expect(lexer.COMMA); err != nil {
		return
	}
	if c, err = p.parseFloatLiteral(); err != nil {
		return
	}
	if _, err = p.expect(lexer.COMMA); err != nil {
		return
	}
	if d, err = p.parseFloatLiteral(); err != nil {
		return
	}
	_, err = p.expect(lexer.RPAREN)
	return
}

func (p *Parser) parseThreeFloats() (a, b, c float32, err error) {
	if _, err = p.expect(lexer.LPAREN); err != nil {
		return
	}
	if a, err = p.parseFloatLiteral(); err != nil {
		return
	}
	if _, err = p.expect(lexer.COMMA); err != nil {
		return
	}
	if b, err = p.parseFloatLiteral(); err != nil {
		return
	}
	if _, err = p.expect(lexer.COMMA); err != nil {
		return
	}
	if c, err = p.parseFloatLiteral(); err != nil {
		return
	}
	_, err = p.expect(lexer.RPAREN)
	return
}

func isCompareOp(k lexer.Kind) bool {
	switch k {
	case lexer.EQ, lexer.NEQ, lexer.LT, lexer.GT, lexer.LE, lexer.GE:
		return true
	}
	return false
}

func compareOpFor(k lexer.Kind) ast.CompareOp {
	switch k {
	case lexer.EQ:
		return ast.EQ
	case lexer.NEQ:
		return ast.NEQ
	case lexer.LT:
		return ast.LT
	case lexer.GT:
		return ast.GT
	case lexer.LE:
		return ast.LE
	default:
		return ast.GE
	}
}

// parseValue parses the "value" production: int | float | string | bool |
// "(" float "," float ")" (a POINT literal).
func (p *Parser) parseValue() (types.Value, error) {
	switch {
	case p.at(lexer.INT):
		t := p.advance()
		n, err := strconv.ParseInt(t.Text, 10, 32)
		if err != nil {
			return types.Value{}, &dberrors.ParseError{Message: "invalid integer literal " + t.Text, Pos: t.Pos}
		}
		return types.NewInt(int32(n)), nil

	case p.at(lexer.FLOAT):
		t := p.advance()
		f, err := strconv.ParseFloat(t.Text, 32)
		if err != nil {
			return types.Value{}, &dberrors.ParseError{Message: "invalid float literal " + t.Text, Pos: t.Pos}
		}
		return types.NewFloat(float32(f)), nil

	case p.at(lexer.STRING):
		t := p.advance()
		return types.NewVarchar(t.Text), nil

	case p.atKeyword("TRUE"):
		p.advance()
		return types.NewBool(true), nil
	case p.atKeyword("FALSE"):
		p.advance()
		return types.NewBool(false), nil

	case p.at(lexer.LPAREN):
		p.advance()
		x, err := p.parseFloatLiteral()
		if err != nil {
			return types.Value{}, err
		}
		if _, err := p.expect(lexer.COMMA); err != nil {
			return types.Value{}, err
		}
		y, err := p.parseFloatLiteral()
		if err != nil {
			return types.Value{}, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return types.Value{}, err
		}
		return types.NewPoint(x, y), nil

	default:
		return types.Value{}, &dberrors.ParseError{Message: "expected a value, got " + describeToken(p.cur()), Pos: p.cur().Pos}
	}
}

// --- CREATE TABLE / CREATE INDEX -------------------------------------------

func (p *Parser) parseCreate() (ast.Statement, error) {
	p.advance() // CREATE
	switch {
	case p.atKeyword("TABLE"):
		return p.parseCreateTable()
	case p.atKeyword("INDEX"):
		return p.parseCreateIndex()
	default:
		return nil, &dberrors.ParseError{Message: "expected TABLE or INDEX after CREATE, got " + describeToken(p.cur()), Pos: p.cur().Pos}
	}
}

func (p *Parser) parseCreateTable() (ast.Statement, error) {
	p.advance() // TABLE
	ifNotExists := false
	if p.atKeyword("IF") {
		p.advance()
		if err := p.expectKeyword("NOT"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("EXISTS"); err != nil {
			return nil, err
		}
		ifNotExists = true
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}

	var cols []ast.ColumnDef
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if p.at(lexer.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return &ast.CreateTable{IfNotExists: ifNotExists, Table: table, Columns: cols}, nil
}

func (p *Parser) parseColumnDef() (ast.ColumnDef, error) {
	name, err := p.parseIdent()
	if err != nil {
		return ast.ColumnDef{}, err
	}
	dt, varcharLen, err := p.parseDataType()
	if err != nil {
		return ast.ColumnDef{}, err
	}
	col := ast.ColumnDef{Name: name, DataType: dt, VarcharLength: varcharLen}

	if p.atKeyword("PRIMARY") {
		p.advance()
		if err := p.expectKeyword("KEY"); err != nil {
			return ast.ColumnDef{}, err
		}
		col.IsPrimary = true
	}
	if p.atKeyword("INDEX") {
		p.advance()
		it, err := p.parseIndexType()
		if err != nil {
			return ast.ColumnDef{}, err
		}
		col.HasIndex = true
		col.IndexType = it
	}
	return col, nil
}

func (p *Parser) parseDataType() (types.DataType, int, error) {
	name, err := p.parseIdent()
	if err != nil {
		return 0, 0, err
	}
	switch strings.ToUpper(name) {
	case "INT":
		return types.Int, 0, nil
	case "FLOAT":
		return types.Float, 0, nil
	case "DATE":
		return types.Date, 0, nil
	case "BOOL":
		return types.Bool, 0, nil
	case "POINT":
		return types.Point, 0, nil
	case "VARCHAR":
		if _, err := p.expect(lexer.LPAREN); err != nil {
			return 0, 0, err
		}
		n, err := p.parseIntLiteral()
		if err != nil {
			return 0, 0, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return 0, 0, err
		}
		return types.Varchar, n, nil
	default:
		return 0, 0, &dberrors.ParseError{Message: "unknown data type " + name, Pos: p.toks[p.pos-1].Pos}
	}
}

func (p *Parser) parseIndexType() (types.IndexType, error) {
	name, err := p.parseIdent()
	if err != nil {
		return 0, err
	}
	it, ok := types.ParseIndexType(strings.ToUpper(name))
	if !ok {
		return 0, &dberrors.ParseError{Message: "unknown index type " + name, Pos: p.toks[p.pos-1].Pos}
	}
	return it, nil
}

func (p *Parser) parseCreateIndex() (ast.Statement, error) {
	p.advance() // INDEX
	idxName, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}

	stmt := &ast.CreateIndex{IndexName: idxName, Table: table}
	if p.atKeyword("USING") {
		p.advance()
		it, err := p.parseIndexType()
		if err != nil {
			return nil, err
		}
		stmt.Using = it
		stmt.HasUsing = true
	}

	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	for {
		col, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, col)
		if p.at(lexer.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return stmt, nil
}

// --- DROP TABLE / DROP INDEX -----------------------------------------------

func (p *Parser) parseDrop() (ast.Statement, error) {
	p.advance() // DROP
	switch {
	case p.atKeyword("TABLE"):
		p.advance()
		ifExists := false
		if p.atKeyword("IF") {
			p.advance()
			if err := p.expectKeyword("EXISTS"); err != nil {
				return nil, err
			}
			ifExists = true
		}
		table, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		return &ast.DropTable{IfExists: ifExists, Table: table}, nil

	case p.atKeyword("INDEX"):
		p.advance()
		idxName, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		table, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		return &ast.DropIndex{IndexName: idxName, Table: table}, nil

	default:
		return nil, &dberrors.ParseError{Message: "expected TABLE or INDEX after DROP, got " + describeToken(p.cur()), Pos: p.cur().Pos}
	}
}

// --- INSERT / DELETE --------------------------------------------------------

func (p *Parser) parseInsert() (ast.Statement, error) {
	p.advance() // INSERT
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}

	var columns []string
	if p.at(lexer.LPAREN) {
		p.advance()
		for {
			col, err := p.parseIdent()
			if err != nil {
				return nil, err
			}
			columns = append(columns, col)
			if p.at(lexer.COMMA) {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
	}

	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	var values []types.Value
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.at(lexer.COMMA) {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}

	return &ast.Insert{Table: table, Columns: columns, Values: values}, nil
}

func (p *Parser) parseDelete() (ast.Statement, error) {
	p.advance() // DELETE
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	del := &ast.Delete{Table: table}
	if p.atKeyword("WHERE") {
		p.advance()
		cond, err := p.parseOrCond()
		if err != nil {
			return nil, err
		}
		del.Where = cond
	}
	return del, nil
}
