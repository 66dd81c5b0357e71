package lexer

import "fmt"

// LexError reports a malformed token: an unterminated string literal
// or a byte the grammar has no rule for (spec.md §4.1, §7).
type LexError struct {
	Position int
	Message  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %d: %s", e.Position, e.Message)
}
