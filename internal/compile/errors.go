package compile

import (
	"errors"
	"fmt"
	"strings"
)

// Structure error codes (compile-time, always fatal to the attempt).
const (
	// ErrCodeInvalidNetwork indicates the source network failed structural
	// validation (dangling reference, missing outputs, malformed node).
	ErrCodeInvalidNetwork = "INVALID_NETWORK"
	// ErrCodeCompositionCycle indicates a network embeds itself.
	ErrCodeCompositionCycle = "COMPOSITION_CYCLE"
	// ErrCodeReferenceCycle indicates the flat reference graph is cyclic.
	ErrCodeReferenceCycle = "REFERENCE_CYCLE"
	// ErrCodeUnknownOp indicates a node names an op the registry lacks.
	ErrCodeUnknownOp = "UNKNOWN_OP"
	// ErrCodeUnboundParameter indicates a parameter reference survived to the
	// top level, where no parameters are supplied.
	ErrCodeUnboundParameter = "UNBOUND_PARAMETER"
	// ErrCodeDeadOutput indicates elision/DCE left a declared output with no
	// producing node.
	ErrCodeDeadOutput = "DEAD_OUTPUT"
)

// StructureError reports a structural compile failure. Compile errors are
// never auto-retried; the caller must submit a corrected network.
type StructureError struct {
	Code string
	// Path identifies the offending node (or cyclic chain) by composition
	// path segments.
	Path    []string
	Message string
}

// Error implements the error interface.
func (e *StructureError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s (path %s)", e.Code, e.Message, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsStructureError reports whether err is a StructureError, unwrapping as
// needed.
func IsStructureError(err error) bool {
	var se *StructureError
	return errors.As(err, &se)
}

// TypeCheckError reports a producer/consumer type mismatch, identified by
// the consuming node's composition path.
type TypeCheckError struct {
	// Path is the consuming node's composition path.
	Path []string
	// InputIndex is the offending input position.
	InputIndex int
	// Want is the consumer's declared input type.
	Want string
	// Got is the producer's declared output type (or a constant's kind).
	Got     string
	Message string
}

// Error implements the error interface.
func (e *TypeCheckError) Error() string {
	return fmt.Sprintf("type mismatch at %s input %d: want %s, got %s%s",
		strings.Join(e.Path, " -> "), e.InputIndex, e.Want, e.Got, suffix(e.Message))
}

func suffix(msg string) string {
	if msg == "" {
		return ""
	}
	return " (" + msg + ")"
}

// IsTypeCheckError reports whether err is a TypeCheckError, unwrapping as
// needed.
func IsTypeCheckError(err error) bool {
	var te *TypeCheckError
	return errors.As(err, &te)
}
