package types

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed template: an unbalanced delimiter, a block
// without its end marker, or a failed include.
type ParseError struct {
	Message string
	Line    int // approximate source line, 0 when unknown
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return e.Message
}

// NewParseError creates a ParseError with a formatted message.
func NewParseError(line int, format string, args ...interface{}) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), Line: line}
}

// SetupError reports an invalid engine configuration.
type SetupError struct {
	Name  string
	Valid []string
}

// Error implements the error interface.
func (e *SetupError) Error() string {
	return fmt.Sprintf("%s is not a valid token name. Valid tokens are: %s",
		e.Name, strings.Join(e.Valid, ", "))
}
