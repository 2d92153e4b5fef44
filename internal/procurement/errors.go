package procurement

import "errors"

var (
	// ErrValidation is matched by every ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidStatus is returned for status labels outside Open / In Progress / Closed.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrNoOpTransition is returned when the target status equals the current one.
	ErrNoOpTransition = errors.New("no-op transition")

	// ErrIllegalTransition is returned when the transition table has no edge for the pair.
	ErrIllegalTransition = errors.New("illegal transition")
)

// TransitionError carries the pair that was rejected.
type TransitionError struct {
	From Status
	To   Status
	Err  error
}

func (e *TransitionError) Error() string {
	return e.Err.Error() + ": " + string(e.From) + " -> " + string(e.To)
}

func (e *TransitionError) Unwrap() error { return e.Err }
