package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no plan has the requested ID
var ErrNotFound = errors.New("plan not found")

// Store defines the interface for computed plan storage
type Store interface {
	SavePlan(rec *PlanRecord) error
	GetPlan(id string) (*PlanRecord, error)
	ListPlans() ([]*PlanRecord, error)
	DeletePlan(id string) error

	Close() error
}

// PlanRecord is a computed plan as stored
type PlanRecord struct {
	ID           string           `json:"id"`
	Scenario     string           `json:"scenario,omitempty"`
	ProblemID    string           `json:"problemId"`
	Duration     int              `json:"duration"`
	Actions      []RecordedAction `json:"actions"`
	Instantiated []string         `json:"instantiated,omitempty"`
	Resized      []string         `json:"resized,omitempty"`
	Misplaced    []string         `json:"misplaced,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// RecordedAction is one timed action of a stored plan
type RecordedAction struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Action string `json:"action"`
}
