package saga

import "errors"

// ErrConfiguration signals a defect in a saga definition discovered at run
// time, such as conditional edges where none matched the observed context.
// It is never silently defaulted.
var ErrConfiguration = errors.New("saga configuration error")

// ErrNotRegistered signals that a definition references a step with no
// registered executor.
var ErrNotRegistered = errors.New("executor not registered")

// ErrDuplicateStep signals a second registration under the same name.
var ErrDuplicateStep = errors.New("executor already registered")

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }

func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks an error as non-retryable. The orchestrator fails the step
// immediately instead of exhausting the retry budget.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries the Permanent marker.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
