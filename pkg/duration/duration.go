// Package duration estimates how long each kind of action takes.
//
// The estimates are consulted once per entity while a reconfiguration
// problem is built. A missing evaluator or a negative estimate is a build
// error.
package duration

import (
	"errors"
	"fmt"

	"github.com/cuemby/reconf/pkg/types"
)

var (
	// ErrNoEvaluator is returned when no evaluator is registered for an action kind
	ErrNoEvaluator = errors.New("no duration evaluator")

	// ErrNegativeDuration is returned when an evaluator estimates a negative duration
	ErrNegativeDuration = errors.New("negative duration")
)

// Kind is a kind of action
type Kind string

const (
	BootVM       Kind = "bootVM"
	ShutdownVM   Kind = "shutdownVM"
	SuspendVM    Kind = "suspendVM"
	ResumeVM     Kind = "resumeVM"
	MigrateVM    Kind = "migrateVM"
	BootNode     Kind = "bootNode"
	ShutdownNode Kind = "shutdownNode"
)

// Kinds lists every action kind
var Kinds = []Kind{BootVM, ShutdownVM, SuspendVM, ResumeVM, MigrateVM, BootNode, ShutdownNode}

// Evaluator estimates the duration of an action on one entity
type Evaluator interface {
	Evaluate(entity string) (int, error)
}

// Constant evaluates every entity to the same duration
type Constant int

func (c Constant) Evaluate(string) (int, error) { return int(c), nil }

func (c Constant) String() string { return fmt.Sprintf("d=%d", int(c)) }

// Linear evaluates a VM to A * consumption + B, the consumption being read
// from a resource view. Migrating a VM with more memory takes longer.
type Linear struct {
	View *types.ShareableResource
	A, B int
}

func (l Linear) Evaluate(entity string) (int, error) {
	if l.View == nil {
		return 0, fmt.Errorf("linear evaluator without resource view")
	}
	return l.A*l.View.Consumption(types.VMID(entity)) + l.B, nil
}

func (l Linear) String() string {
	id := ""
	if l.View != nil {
		id = l.View.ID
	}
	return fmt.Sprintf("d=%d*%s+%d", l.A, id, l.B)
}

// Evaluators maps action kinds to their evaluator
type Evaluators struct {
	byKind map[Kind]Evaluator
}

// NewEvaluators creates an empty registry
func NewEvaluators() *Evaluators {
	return &Evaluators{byKind: make(map[Kind]Evaluator)}
}

// Defaults creates a registry evaluating every action kind to 1
func Defaults() *Evaluators {
	e := NewEvaluators()
	for _, k := range Kinds {
		e.Register(k, Constant(1))
	}
	return e
}

// Register sets the evaluator for a kind, replacing any previous one
func (e *Evaluators) Register(k Kind, ev Evaluator) {
	e.byKind[k] = ev
}

// Unregister removes the evaluator for a kind
func (e *Evaluators) Unregister(k Kind) {
	delete(e.byKind, k)
}

// Get returns the evaluator for a kind
func (e *Evaluators) Get(k Kind) (Evaluator, bool) {
	ev, ok := e.byKind[k]
	return ev, ok
}

// Evaluate estimates the duration of an action of kind k on an entity
func (e *Evaluators) Evaluate(k Kind, entity string) (int, error) {
	ev, ok := e.byKind[k]
	if !ok {
		return 0, fmt.Errorf("%s on %s: %w", k, entity, ErrNoEvaluator)
	}
	d, err := ev.Evaluate(entity)
	if err != nil {
		return 0, fmt.Errorf("%s on %s: %w", k, entity, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s on %s: %d: %w", k, entity, d, ErrNegativeDuration)
	}
	return d, nil
}
