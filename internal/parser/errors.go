package parser

import (
	"errors"
	"fmt"

	jujuerrors "github.com/juju/errors"

	"rustql/internal/lexer"
)

// ParseError reports an unexpected token or an incomplete statement
// (spec.md §4.2, §7). Parser helpers raise it via panic and
// ParseBatch/ParseStatement recover it into a normal error return,
// annotated with a juju/errors stack frame for debug logging.
type ParseError struct {
	Position int
	Expected string
	Got      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d: expected %s, got %q", e.Position, e.Expected, e.Got)
}

func raise(pos int, expected, got string) {
	panic(jujuerrors.Trace(&ParseError{Position: pos, Expected: expected, Got: got}))
}

// recoverParseError turns a raise() panic, or the *lexer.LexError
// panic Parser.next raises, into an error return. Any other panic is
// re-raised — it is a bug in the parser, not a malformed statement.
func recoverParseError(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			var pe *ParseError
			var le *lexer.LexError
			if errors.As(e, &pe) || errors.As(e, &le) {
				*err = e
				return
			}
		}
		panic(r)
	}
}
