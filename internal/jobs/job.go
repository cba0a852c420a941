// Package jobs tracks long-running documentary generation jobs in memory,
// enforces per-user concurrency, and fans progress out to subscribers.
package jobs

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Live reports whether the status counts against the per-user limit.
func (s Status) Live() bool { return s == StatusPending || s == StatusRunning }

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

var (
	// ErrNotFound is returned for job ids that never existed or were reaped.
	ErrNotFound = errors.New("job not found")
	// ErrConcurrencyLimit matches any *LimitError via errors.Is.
	ErrConcurrencyLimit = errors.New("concurrency limit exceeded")
)

// LimitError is returned by CreateJob when the user already has the maximum
// number of live jobs.
type LimitError struct {
	UserID string
	Limit  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("user %q already has %d active jobs", e.UserID, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrConcurrencyLimit }

// Params is the user input for a generation job.
type Params struct {
	Topic               string `json:"topic" validate:"required,max=200"`
	Prompt              string `json:"prompt,omitempty" validate:"max=4000"`
	NarrationTargetSecs int    `json:"narrationTargetSecs,omitempty" validate:"gte=0,lte=3600"`
}

// Job is a snapshot of one generation run. Values returned by the Store are
// copies; mutating them has no effect on the store.
type Job struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Params      Params     `json:"params"`
	Status      Status     `json:"status"`
	Stage       int        `json:"stage"`
	StageLabel  string     `json:"stageLabel"`
	Progress    int        `json:"progress"`
	Detail      string     `json:"detail,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Update carries progress fields. Zero values leave the current value alone.
type Update struct {
	Status     Status
	Stage      int
	StageLabel string
	Progress   int
	Detail     string
}

// EventType tags an Event.
type EventType string

const (
	EventInit     EventType = "init"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one element of a job's progress stream.
type Event struct {
	Type EventType `json:"type"`
	Job
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool { return e.Type == EventComplete || e.Type == EventError }

// Listener receives a job's live events. Any callback may be nil. Callbacks
// run on the publishing goroutine and must not publish to the same job.
type Listener struct {
	OnProgress func(Job)
	OnComplete func(Job)
	OnError    func(Job)
}

// Stats summarizes the registry.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Users     int `json:"users"`
}
