package compiler

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. A *CompileError matches its kind with errors.Is.
var (
	// ErrMalformedBlock: block missing atom or arguments, or unparsable notation.
	ErrMalformedBlock = errors.New("malformed block")

	// ErrMalformedRule: missing or duplicate "<-", non-annotation header,
	// or a rule that cannot be evaluated as written.
	ErrMalformedRule = errors.New("malformed rule")

	// ErrUnknownVariable: a block or weight expression references a
	// variable the rule never binds.
	ErrUnknownVariable = errors.New("unknown variable")
)

// CompileError is a parse or analysis error for one rule.
type CompileError struct {
	Kind    error  // one of ErrMalformedBlock, ErrMalformedRule, ErrUnknownVariable
	Line    int    // 1-based source line, 0 if unknown
	Text    string // offending rule or block text
	Message string
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v: %s: %q", e.Line, e.Kind, e.Message, e.Text)
	}
	return fmt.Sprintf("%v: %s: %q", e.Kind, e.Message, e.Text)
}

// Is matches the error's kind.
func (e *CompileError) Is(target error) bool {
	return e.Kind == target
}

func malformedBlock(text, format string, args ...any) *CompileError {
	return &CompileError{Kind: ErrMalformedBlock, Text: text, Message: fmt.Sprintf(format, args...)}
}

func malformedRule(text, format string, args ...any) *CompileError {
	return &CompileError{Kind: ErrMalformedRule, Text: text, Message: fmt.Sprintf(format, args...)}
}

func unknownVariable(text, name string) *CompileError {
	return &CompileError{Kind: ErrUnknownVariable, Text: text, Message: fmt.Sprintf("variable %q is not bound", name)}
}

// withLine stamps the source line on a CompileError; other errors pass through.
func withLine(err error, line int) error {
	var ce *CompileError
	if errors.As(err, &ce) && ce.Line == 0 {
		ce.Line = line
	}
	return err
}
