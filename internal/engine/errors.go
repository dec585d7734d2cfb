package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Policy selects how Eval treats a failing branch. The default is an
// application decision, so there is none: callers pass the policy explicitly.
type Policy int

const (
	// PolicyFailFast aborts the whole evaluation on the first node failure.
	PolicyFailFast Policy = iota
	// PolicyCollectPartial lets independent sibling branches complete; the
	// failing output carries its error in the returned Result.
	PolicyCollectPartial
)

// EvalError reports a node implementation failure, identified by the node's
// composition path.
type EvalError struct {
	// Path is the failing node's composition path segments.
	Path []string
	// Op is the failing node's implementation identifier.
	Op  string
	Err error
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("eval %s at %s: %v", e.Op, strings.Join(e.Path, " -> "), e.Err)
}

// Unwrap exposes the underlying implementation error.
func (e *EvalError) Unwrap() error { return e.Err }

// IsEvalError reports whether err is an EvalError, unwrapping as needed.
func IsEvalError(err error) bool {
	var ee *EvalError
	return errors.As(err, &ee)
}

// ErrNoNetwork is returned by Eval before any Update has supplied a network.
var ErrNoNetwork = errors.New("engine: no network loaded")
