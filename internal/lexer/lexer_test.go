package lexer

import "testing"

func TestLexerOperatorsAndPunctuation(t *testing.T) {
	input := "+-*/= <> != < <= > >= (),;."
	want := []TokenType{
		PLUS, MINUS, STAR, SLASH, EQ, NEQ, NEQ, LT, LTE, GT, GTE,
		LPAREN, RPAREN, COMMA, SEMICOLON, DOT, EOF,
	}
	l := New(input)
	for i, wt := range want {
		tok := l.NextToken()
		if tok.Type != wt {
			t.Fatalf("token[%d] = %v, want %v", i, tok.Type, wt)
		}
	}
}

func TestLexerKeywordsAreCaseInsensitive(t *testing.T) {
	for _, src := range []string{"select", "SELECT", "Select", "sElEcT"} {
		l := New(src)
		tok := l.NextToken()
		if tok.Type != SELECT {
			t.Errorf("%q: got %v, want SELECT", src, tok.Type)
		}
	}
}

func TestLexerIdentifiersAreCaseSensitive(t *testing.T) {
	l := New("MyCol mycol")
	a := l.NextToken()
	b := l.NextToken()
	if a.Literal == b.Literal {
		t.Fatalf("identifiers should preserve case: %q vs %q", a.Literal, b.Literal)
	}
}

func TestLexerStringEscapesQuote(t *testing.T) {
	l := New(`'it''s'`)
	tok := l.NextToken()
	if tok.Type != STRING || tok.Literal != "it's" {
		t.Fatalf("got %v %q, want STRING \"it's\"", tok.Type, tok.Literal)
	}
}

func TestLexerUnterminatedStringIsLexError(t *testing.T) {
	_, err := Tokenize(`'abc`)
	if err == nil {
		t.Fatal("expected LexError for unterminated string")
	}
}

func TestLexerUnknownCharacterIsLexError(t *testing.T) {
	_, err := Tokenize("SELECT 1 # 2")
	if err == nil {
		t.Fatal("expected LexError for '#'")
	}
}

func TestLexerFloatRequiresDotOrExponent(t *testing.T) {
	cases := []struct {
		src  string
		want TokenType
	}{
		{"123", INT},
		{"1.5", FLOAT},
		{"1e10", FLOAT},
		{"1.5e-3", FLOAT},
	}
	for _, c := range cases {
		l := New(c.src)
		tok := l.NextToken()
		if tok.Type != c.want {
			t.Errorf("%q: got %v, want %v", c.src, tok.Type, c.want)
		}
	}
}

func TestLexerCommentToEndOfLine(t *testing.T) {
	toks, err := Tokenize("SELECT 1 -- trailing comment\nFROM t")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var types []TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	want := []TokenType{SELECT, INT, FROM, IDENT, EOF}
	if len(types) != len(want) {
		t.Fatalf("got %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("got %v, want %v", types, want)
		}
	}
}
