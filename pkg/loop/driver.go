// Package loop runs the locomotion control loop: each cycle reads the clock,
// generates a command, broadcasts it, updates the controller, and applies the
// resulting action, until a time bound is reached.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-quadruped/internal/log"
	"github.com/teslashibe/go-quadruped/pkg/command"
	"github.com/teslashibe/go-quadruped/pkg/locomotion"
	"github.com/teslashibe/go-quadruped/pkg/robot"
)

// DefaultHeartbeatCycles is how often a progress line is logged at debug level.
const DefaultHeartbeatCycles = 1000

// State is the driver's lifecycle state.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Broadcaster delivers a command to every velocity consumer.
type Broadcaster interface {
	Broadcast(cmd command.Command) error
}

// Orchestrator is the per-cycle controller contract.
type Orchestrator interface {
	Reset() error
	Update() error
	GetAction() (robot.HybridAction, locomotion.Diagnostics, error)
}

var (
	_ Broadcaster  = (*locomotion.Broadcaster)(nil)
	_ Orchestrator = (*locomotion.Controller)(nil)
)

// Cycle is what an observer sees after each applied action.
type Cycle struct {
	RunID       string
	Index       int
	Time        time.Duration
	Command     command.Command
	Action      robot.HybridAction
	Diagnostics locomotion.Diagnostics
}

// Observer is called synchronously after every applied action. It must not block.
type Observer func(Cycle)

// StateObserver is called on every state transition.
type StateObserver func(runID string, s State, cycles int)

// Config configures a Driver.
type Config struct {
	// MaxTime is the clock time at which the loop stops. Required.
	MaxTime time.Duration
	// Pace is the minimum wall-clock period between cycle starts.
	// Zero runs cycles back to back.
	Pace time.Duration
	// HeartbeatCycles sets the debug progress interval, DefaultHeartbeatCycles when zero.
	HeartbeatCycles int

	Logger        *slog.Logger
	Observer      Observer
	StateObserver StateObserver
}

// Summary reports how a run ended.
type Summary struct {
	RunID     string
	Cycles    int
	StartTime time.Duration // clock reading of the first cycle
	EndTime   time.Duration // clock reading at termination
	Final     State
	Wall      time.Duration
}

// Driver owns the clock and actuator for the duration of a run.
type Driver struct {
	cfg    Config
	logger *slog.Logger

	clock    robot.Clock
	actuator robot.Actuator
	gen      command.Generator
	bc       Broadcaster
	orch     Orchestrator

	state   atomic.Int32
	cycles  atomic.Int64
	started atomic.Bool
}

// New creates a driver in the initializing state.
func New(cfg Config, clock robot.Clock, actuator robot.Actuator, gen command.Generator, bc Broadcaster, orch Orchestrator) (*Driver, error) {
	switch {
	case clock == nil:
		return nil, fmt.Errorf("%w: clock", ErrMissingDependency)
	case actuator == nil:
		return nil, fmt.Errorf("%w: actuator", ErrMissingDependency)
	case gen == nil:
		return nil, fmt.Errorf("%w: generator", ErrMissingDependency)
	case bc == nil:
		return nil, fmt.Errorf("%w: broadcaster", ErrMissingDependency)
	case orch == nil:
		return nil, fmt.Errorf("%w: orchestrator", ErrMissingDependency)
	}
	if cfg.MaxTime <= 0 {
		return nil, fmt.Errorf("%w: max time must be positive, got %v", ErrInvalidConfig, cfg.MaxTime)
	}
	if cfg.Pace < 0 {
		return nil, fmt.Errorf("%w: pace must not be negative, got %v", ErrInvalidConfig, cfg.Pace)
	}
	if cfg.HeartbeatCycles <= 0 {
		cfg.HeartbeatCycles = DefaultHeartbeatCycles
	}
	return &Driver{
		cfg:      cfg,
		logger:   log.Or(cfg.Logger).With("component", "loop"),
		clock:    clock,
		actuator: actuator,
		gen:      gen,
		bc:       bc,
		orch:     orch,
	}, nil
}

// State returns the current lifecycle state. Safe for concurrent use.
func (d *Driver) State() State {
	return State(d.state.Load())
}

// Cycles returns the number of completed cycles. Safe for concurrent use.
func (d *Driver) Cycles() int {
	return int(d.cycles.Load())
}

// Run resets the orchestrator and executes cycles until the clock reaches
// MaxTime, a stage fails, or ctx is cancelled. Cancellation is observed only
// between cycles; a started cycle always completes.
//
// Stage failures are returned as *CycleError. A Driver runs once.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	if !d.started.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRun
	}

	sum := Summary{RunID: uuid.NewString(), Final: StateInitializing}
	logger := d.logger.With("run_id", sum.RunID)
	wallStart := time.Now()
	d.setState(sum.RunID, StateInitializing)

	finish := func(err error) (Summary, error) {
		sum.Cycles = d.Cycles()
		sum.EndTime = d.clock.TimeSinceReset()
		sum.Final = StateTerminated
		sum.Wall = time.Since(wallStart)
		d.setState(sum.RunID, StateTerminated)
		var ce *CycleError
		if errors.As(err, &ce) {
			logger.Error("control loop failed", "cycles", sum.Cycles, "t", sum.EndTime, "stage", ce.Stage, "error", ce.Err)
		} else if err != nil {
			logger.Info("control loop stopped", "cycles", sum.Cycles, "t", sum.EndTime, "reason", err)
		} else {
			logger.Info("control loop finished", "cycles", sum.Cycles, "t", sum.EndTime, "wall", sum.Wall)
		}
		return sum, err
	}

	start := d.clock.TimeSinceReset()
	sum.StartTime = start
	if err := d.orch.Reset(); err != nil {
		return finish(&CycleError{Cycle: 0, Time: start, Stage: StageReset, Err: err})
	}

	logger.Info("control loop starting", "max_time", d.cfg.MaxTime, "pace", d.cfg.Pace, "t", start)
	d.setState(sum.RunID, StateRunning)

	var tick <-chan time.Time
	if d.cfg.Pace > 0 {
		ticker := time.NewTicker(d.cfg.Pace)
		defer ticker.Stop()
		tick = ticker.C
	}

	prev := start
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		t := d.clock.TimeSinceReset()
		if t < prev {
			return finish(&CycleError{Cycle: i, Time: t, Stage: StageClock,
				Err: fmt.Errorf("%w: %v after %v", ErrClockRegression, t, prev)})
		}
		prev = t
		if t >= d.cfg.MaxTime {
			return finish(nil)
		}

		c, stage, err := d.cycle(i, t, sum.RunID)
		if err != nil {
			return finish(&CycleError{Cycle: i, Time: t, Stage: stage, Err: err})
		}
		n := d.cycles.Add(1)
		if d.cfg.Observer != nil {
			d.cfg.Observer(c)
		}
		if n%int64(d.cfg.HeartbeatCycles) == 0 {
			logger.Debug("heartbeat", "cycles", n, "t", t, "cmd", c.Command.String())
		}

		if tick != nil {
			select {
			case <-ctx.Done():
			case <-tick:
			}
		}
	}
}

// cycle runs one generate → broadcast → update → action → apply sequence.
func (d *Driver) cycle(i int, t time.Duration, runID string) (Cycle, Stage, error) {
	cmd := d.gen.Generate(t)
	if err := d.bc.Broadcast(cmd); err != nil {
		return Cycle{}, StageBroadcast, err
	}
	if err := d.orch.Update(); err != nil {
		return Cycle{}, StageUpdate, err
	}
	action, diag, err := d.orch.GetAction()
	if err != nil {
		return Cycle{}, StageAction, err
	}
	if err := d.actuator.Step(action); err != nil {
		return Cycle{}, StageApply, err
	}
	return Cycle{
		RunID:       runID,
		Index:       i,
		Time:        t,
		Command:     cmd,
		Action:      action,
		Diagnostics: diag,
	}, "", nil
}

func (d *Driver) setState(runID string, s State) {
	d.state.Store(int32(s))
	if d.cfg.StateObserver != nil {
		d.cfg.StateObserver(runID, s, d.Cycles())
	}
}
