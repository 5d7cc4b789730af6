package emit

import (
	"errors"
	"fmt"
)

// CompileError represents an error detected while compiling a block
// program into a relational query.
//
// Compile errors include:
//   - Structural: the block ordering invariant is violated
//   - Schema mismatch: a referenced type or edge is absent from metadata
//   - Unresolved reference: a field targets an unmarked location or a
//     column absent on its table
//   - Unsupported block / projection: an IR shape the emitter has no
//     case for
//   - Internal: an invariant the lowering pass should have guaranteed
//
// None of these are retried: compilation is a pure function of its
// inputs, so the same inputs always fail the same way. Callers treat
// any failure as a compilation failure for the whole query.
type CompileError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Location identifies the walk position where the error surfaced,
	// when one applies.
	Location string

	// Err is the underlying error (optional).
	Err error
}

// ErrorCode categorizes compile errors.
type ErrorCode string

const (
	// ErrCodeStructural indicates a violated block ordering invariant.
	ErrCodeStructural ErrorCode = "STRUCTURAL_IR"

	// ErrCodeSchemaMismatch indicates a type or edge absent from the
	// supplied metadata.
	ErrCodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"

	// ErrCodeUnresolvedReference indicates a field reference to an
	// unmarked location or a column absent on the resolved table.
	ErrCodeUnresolvedReference ErrorCode = "UNRESOLVED_REFERENCE"

	// ErrCodeUnsupportedBlock indicates a block the emitter has no case
	// for.
	ErrCodeUnsupportedBlock ErrorCode = "UNSUPPORTED_BLOCK"

	// ErrCodeUnsupportedProjection indicates an output expression shape
	// the emitter has no case for.
	ErrCodeUnsupportedProjection ErrorCode = "UNSUPPORTED_PROJECTION"

	// ErrCodeInternal indicates an invariant violation: IR that the
	// lowering pass should never have let through.
	ErrCodeInternal ErrorCode = "INTERNAL_INVARIANT"
)

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Location)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// IsStructural reports whether the error is a block ordering violation.
// Uses errors.As to handle wrapped errors.
func IsStructural(err error) bool {
	return hasCode(err, ErrCodeStructural)
}

// IsSchemaMismatch reports whether the error is a metadata mismatch.
func IsSchemaMismatch(err error) bool {
	return hasCode(err, ErrCodeSchemaMismatch)
}

// IsUnresolvedReference reports whether the error is an unresolved
// location or column reference.
func IsUnresolvedReference(err error) bool {
	return hasCode(err, ErrCodeUnresolvedReference)
}

func hasCode(err error, code ErrorCode) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

func structuralError(format string, args ...any) *CompileError {
	return &CompileError{Code: ErrCodeStructural, Message: fmt.Sprintf(format, args...)}
}
