// lexer.go turns a statement (or a semicolon-separated batch) into a
// token stream. It is a byte-at-a-time scanner, grounded on the
// teacher's single-pass design (tur/pkg/sql/lexer).
package lexer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var foldUpper = cases.Upper(language.Und)

// Lexer tokenizes SQL input.
type Lexer struct {
	input   string
	pos     int
	readPos int
	ch      byte
	err     *LexError
}

// New creates a Lexer over the given input.
func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// Err returns the first LexError encountered, if any. Once set, the
// lexer continues to emit EOF tokens rather than looping forever.
func (l *Lexer) Err() *LexError { return l.err }

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		break
	}
}

// NextToken returns the next token in the stream. After the input is
// exhausted it returns an unbounded stream of EOF tokens.
func (l *Lexer) NextToken() Token {
	if l.err != nil {
		return Token{Type: EOF, Pos: l.pos}
	}

	l.skipWhitespaceAndComments()

	start := l.pos
	switch {
	case l.ch == 0:
		return Token{Type: EOF, Pos: start}
	case l.ch == '\'':
		return l.readString()
	case isDigit(l.ch):
		return l.readNumber()
	case isIdentStart(l.ch):
		return l.readIdentOrKeyword()
	}

	switch l.ch {
	case ',':
		return l.single(COMMA, start)
	case '(':
		return l.single(LPAREN, start)
	case ')':
		return l.single(RPAREN, start)
	case ';':
		return l.single(SEMICOLON, start)
	case '*':
		return l.single(STAR, start)
	case '.':
		return l.single(DOT, start)
	case '+':
		return l.single(PLUS, start)
	case '-':
		return l.single(MINUS, start)
	case '/':
		return l.single(SLASH, start)
	case '=':
		return l.single(EQ, start)
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: NEQ, Literal: "!=", Pos: start}
		}
		l.err = &LexError{Position: start, Message: "unexpected character '!'"}
		return Token{Type: ILLEGAL, Literal: "!", Pos: start}
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: LTE, Literal: "<=", Pos: start}
		}
		if l.peekChar() == '>' {
			l.readChar()
			l.readChar()
			return Token{Type: NEQ, Literal: "<>", Pos: start}
		}
		return l.single(LT, start)
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Type: GTE, Literal: ">=", Pos: start}
		}
		return l.single(GT, start)
	}

	l.err = &LexError{Position: start, Message: "unexpected character '" + string(l.ch) + "'"}
	return Token{Type: ILLEGAL, Literal: string(l.ch), Pos: start}
}

func (l *Lexer) single(t TokenType, pos int) Token {
	lit := string(l.ch)
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos}
}

func (l *Lexer) readString() Token {
	start := l.pos
	var sb strings.Builder
	l.readChar() // consume opening quote
	for {
		if l.ch == 0 {
			l.err = &LexError{Position: start, Message: "unterminated string literal"}
			return Token{Type: ILLEGAL, Literal: sb.String(), Pos: start}
		}
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				sb.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // consume closing quote
			break
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	return Token{Type: STRING, Literal: sb.String(), Pos: start}
}

func (l *Lexer) readNumber() Token {
	start := l.pos
	isFloat := false
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		save, savePos, saveRead := l.ch, l.pos, l.readPos
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if isDigit(l.ch) {
			isFloat = true
			for isDigit(l.ch) {
				l.readChar()
			}
		} else {
			l.ch, l.pos, l.readPos = save, savePos, saveRead
		}
	}
	lit := l.input[start:l.pos]
	if isFloat {
		return Token{Type: FLOAT, Literal: lit, Pos: start}
	}
	return Token{Type: INT, Literal: lit, Pos: start}
}

func (l *Lexer) readIdentOrKeyword() Token {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if kw, ok := keywords[foldUpper.String(lit)]; ok {
		return Token{Type: kw, Literal: lit, Pos: start}
	}
	return Token{Type: IDENT, Literal: lit, Pos: start}
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

// Tokenize drains the lexer into a slice, terminated by EOF, useful
// for tests and for the parser's lookahead buffer.
func Tokenize(input string) ([]Token, *LexError) {
	l := New(input)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == EOF {
			break
		}
		if l.err != nil {
			return toks, l.err
		}
	}
	return toks, l.err
}
