package lifecycle

import (
	"errors"
	"fmt"

	"github.com/bft-labs/canmaster/pkg/evloop"
)

// Lifecycle errors. Each is returned wrapped in a *MasterError naming the
// operation, so check them with errors.Is.
var (
	ErrAlreadyConfigured = errors.New("master already configured")
	ErrAlreadyActivated  = errors.New("master already activated")
	ErrNotInitialised    = errors.New("master not initialised")
	ErrNotConfigured     = errors.New("master not configured")
	ErrNotActivated      = errors.New("master not activated")
	ErrMasterNotSet      = errors.New("master not set")

	// ErrJoinTimeout is returned by Deactivate when the spinner did not
	// stop within the configured join timeout.
	ErrJoinTimeout = evloop.ErrJoinTimeout
)

// MasterError reports a lifecycle failure in operation Op.
type MasterError struct {
	Op  string
	Err error
}

func (e *MasterError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *MasterError) Unwrap() error {
	return e.Err
}

func masterError(op string, err error) error {
	return &MasterError{Op: op, Err: err}
}
