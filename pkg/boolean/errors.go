package boolean

import (
	"errors"
	"fmt"
)

// Failure classes for boolean operations. These are never silently
// absorbed; every failure reaches the caller wrapped in a *OpError.
var (
	// ErrDegenerateInput marks an operand with zero or near-zero volume.
	ErrDegenerateInput = errors.New("degenerate input")
	// ErrToleranceExceeded marks a numerical residual beyond the
	// configured bound.
	ErrToleranceExceeded = errors.New("tolerance exceeded")
	// ErrNonManifoldResult marks a result whose boundary fails the
	// closure check.
	ErrNonManifoldResult = errors.New("non-manifold result")
)

// OpError carries the operation context of a boolean failure.
type OpError struct {
	Op     string // "cut" or "intersect"
	Target string // solid id
	Tool   string // solid id
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("boolean %s(%s, %s): %v", e.Op, e.Target, e.Tool, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
