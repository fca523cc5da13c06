package boot

import (
	"errors"
	"fmt"
)

// Process exit codes for launcher failures. A code returned by the managed
// runtime is passed through unchanged and may overlap these.
const (
	ExitExecutablePath     = 1
	ExitImage              = 2
	ExitAuxiliarySpace     = 3
	ExitBridge             = 4
	ExitConfig             = 5
	ExitSubsystem          = 6
	ExitMissingEnvironment = 11
)

var ErrMissingEnvironment = errors.New("required environment variable not set")

// FatalError is a failure that ends the process with Code. Components return
// ordinary errors; only the launcher's main turns a FatalError into an exit.
type FatalError struct {
	Code int
	Err  error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err with an exit code.
func Fatal(code int, err error) *FatalError {
	return &FatalError{Code: code, Err: err}
}

// ExitCode returns the exit code for err: the FatalError code if err wraps
// one, 1 otherwise.
func ExitCode(err error) int {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return 1
}

func missingEnvironment(name string) *FatalError {
	return Fatal(ExitMissingEnvironment, fmt.Errorf("%w: %s", ErrMissingEnvironment, name))
}
