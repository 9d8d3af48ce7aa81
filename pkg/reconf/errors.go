package reconf

import (
	"errors"
	"fmt"

	"github.com/cuemby/reconf/pkg/types"
)

var (
	// ErrAmbiguousTransition is returned when a VM is requested in more than one state
	ErrAmbiguousTransition = errors.New("ambiguous transition")

	// ErrUndefinedTransition is returned when no next state is requested for a VM
	ErrUndefinedTransition = errors.New("undefined transition")

	// ErrInvalidTransition is returned when the requested state cannot be
	// reached from the current one
	ErrInvalidTransition = errors.New("invalid transition")

	ErrUnknownVM   = errors.New("unknown vm")
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidBounds is returned when a variable would get an empty domain
	ErrInvalidBounds = errors.New("invalid bounds")

	// ErrUnknownView is returned when a resource view is not attached to the model
	ErrUnknownView = errors.New("unknown resource view")

	// ErrDuration is returned when an action duration cannot be estimated
	ErrDuration = errors.New("invalid duration")

	// ErrSealed is returned when the problem is changed after its
	// propagators were posted
	ErrSealed = errors.New("problem is sealed")

	// ErrNotSolved is returned when a plan is extracted from a problem
	// whose variables are not all bound
	ErrNotSolved = errors.New("problem is not solved")

	// ErrInconsistentPlan is returned when an extracted plan does not match
	// the solution it comes from
	ErrInconsistentPlan = errors.New("inconsistent plan")
)

// TransitionError identifies the entity whose next state cannot be decided
type TransitionError struct {
	Entity    string
	Current   string
	Requested []string
	Err       error
}

func (e *TransitionError) Error() string {
	switch len(e.Requested) {
	case 0:
		return fmt.Sprintf("%s: %s: no state requested", e.Entity, e.Err)
	case 1:
		return fmt.Sprintf("%s: %s: %s -> %s", e.Entity, e.Err, e.Current, e.Requested[0])
	}
	return fmt.Sprintf("%s: %s: %s -> %v", e.Entity, e.Err, e.Current, e.Requested)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func transitionError(vm types.VMID, cur types.VMState, err error, requested ...string) error {
	return &TransitionError{Entity: string(vm), Current: string(cur), Requested: requested, Err: err}
}
