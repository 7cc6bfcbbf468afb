package lexer

import "testing"

func kinds(t *testing.T, src string) []Kind {
	t.Helper()
	toks, err := All(src)
	if err != nil {
		t.Fatalf("All(%q): %v", src, err)
	}
	out := make([]Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestBasicTokens(t *testing.T) {
	toks, err := All("SELECT * FROM t WHERE id = 1;")
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	want := []Kind{IDENT, STAR, IDENT, IDENT, IDENT, IDENT, EQ, INT, SEMICOLON, EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Fatalf("token %d kind = %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestTwoCharOperatorsLongestMatch(t *testing.T) {
	toks, err := All("a <> b <= c >= d != e")
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	want := []Kind{IDENT, NEQ, IDENT, LE, IDENT, GE, IDENT, NEQ, IDENT, EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Fatalf("token %d kind = %v, want %v", i, toks[i].Kind, k)
		}
	}
}

func TestStringLiteralWithEscapedQuote(t *testing.T) {
	toks, err := All(`'it''s a test'`)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if toks[0].Kind != STRING || toks[0].Text != "it's a test" {
		t.Fatalf("token 0 = %+v, want STRING it's a test", toks[0])
	}
}

func TestUnterminatedStringIsParseError(t *testing.T) {
	if _, err := All("'unterminated"); err == nil {
		t.Fatalf("All: want error for unterminated string")
	}
}

func TestLineAndBlockComments(t *testing.T) {
	got := kinds(t, "SELECT -- a comment\n* /* block\ncomment */ FROM t;")
	want := []Kind{IDENT, STAR, IDENT, IDENT, SEMICOLON, EOF}
	if len(got) != len(want) {
		t.Fatalf("got %v tokens, want %v", got, want)
	}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("token %d kind = %v, want %v", i, got[i], k)
		}
	}
}

func TestFloatVsIntAndDotBoundary(t *testing.T) {
	l := New("123 1.5 42.")
	var toks []Token
	for i := 0; i < 3; i++ {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		toks = append(toks, tok)
	}
	if toks[0].Kind != INT || toks[0].Text != "123" {
		t.Fatalf("token 0 = %+v, want INT 123", toks[0])
	}
	if toks[1].Kind != FLOAT || toks[1].Text != "1.5" {
		t.Fatalf("token 1 = %+v, want FLOAT 1.5", toks[1])
	}
	// "42." has no digit after the dot, so the dot is not consumed.
	if toks[2].Kind != INT || toks[2].Text != "42" {
		t.Fatalf("token 2 = %+v, want INT 42", toks[2])
	}
	// The lexer has no token for a bare dot, so the leftover "." is an error.
	if _, err := l.Next(); err == nil {
		t.Fatalf("Next after 42: want error for the leftover dot")
	}
}
