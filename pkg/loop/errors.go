package loop

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingDependency is returned by New when a dependency is nil.
	ErrMissingDependency = errors.New("loop: missing dependency")

	// ErrInvalidConfig is returned by New for an unusable configuration.
	ErrInvalidConfig = errors.New("loop: invalid config")

	// ErrAlreadyRun is returned when Run is called more than once.
	ErrAlreadyRun = errors.New("loop: driver already run")

	// ErrClockRegression is returned when the clock moves backwards.
	ErrClockRegression = errors.New("loop: clock moved backwards")
)

// Stage names the step of a cycle that failed.
type Stage string

const (
	StageReset     Stage = "reset"
	StageClock     Stage = "clock"
	StageBroadcast Stage = "broadcast"
	StageUpdate    Stage = "update"
	StageAction    Stage = "action"
	StageApply     Stage = "apply"
)

// CycleError is the fatal error that terminated a run.
type CycleError struct {
	Cycle int           // zero-based index of the failing cycle
	Time  time.Duration // clock reading at the start of the cycle
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("loop: cycle %d at %v: %s: %v", e.Cycle, e.Time, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *CycleError) Unwrap() error {
	return e.Err
}
