package impulse

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTimeStep indicates a non positive or non finite dt.
	ErrInvalidTimeStep = errors.New("impulse: time step must be positive")

	// ErrUnknownBody indicates a manifold or joint referencing a body outside the world.
	ErrUnknownBody = errors.New("impulse: body is not part of the world")
)

// ManifoldError reports the manifold that aborted a step.
type ManifoldError struct {
	Index   int
	Wrapped error
}

func (e *ManifoldError) Error() string {
	return fmt.Sprintf("manifold %d: %v", e.Index, e.Wrapped)
}

func (e *ManifoldError) Unwrap() error {
	return e.Wrapped
}
