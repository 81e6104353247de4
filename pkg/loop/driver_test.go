package loop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-quadruped/pkg/command"
	"github.com/teslashibe/go-quadruped/pkg/estimator"
	"github.com/teslashibe/go-quadruped/pkg/gait"
	"github.com/teslashibe/go-quadruped/pkg/locomotion"
	"github.com/teslashibe/go-quadruped/pkg/robot"
	"github.com/teslashibe/go-quadruped/pkg/stance"
	"github.com/teslashibe/go-quadruped/pkg/swing"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// simClock is a clock advanced by the actuator, like a simulator.
type simClock struct {
	mu     sync.Mutex
	t      time.Duration
	step   time.Duration
	steps  int
	err    error
	failAt int // step index that fails, -1 for never
}

func newSimClock(step time.Duration) *simClock {
	return &simClock{step: step, failAt: -1}
}

func (c *simClock) TimeSinceReset() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *simClock) Step(robot.HybridAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.steps == c.failAt {
		return c.err
	}
	c.steps++
	c.t += c.step
	return nil
}

type recordingBroadcaster struct {
	cmds []command.Command
	err  error
}

func (b *recordingBroadcaster) Broadcast(cmd command.Command) error {
	if b.err != nil {
		return b.err
	}
	b.cmds = append(b.cmds, cmd)
	return nil
}

type fakeOrch struct {
	resets, updates, gets int
	resetErr              error
	updateErr             error
	actionErr             error
}

func (o *fakeOrch) Reset() error {
	o.resets++
	return o.resetErr
}

func (o *fakeOrch) Update() error {
	o.updates++
	return o.updateErr
}

func (o *fakeOrch) GetAction() (robot.HybridAction, locomotion.Diagnostics, error) {
	o.gets++
	return robot.HybridAction{}, locomotion.Diagnostics{}, o.actionErr
}

func newDriver(t *testing.T, cfg Config, clock *simClock, bc Broadcaster, orch Orchestrator, gen command.Generator) *Driver {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = quiet
	}
	d, err := New(cfg, clock, clock, gen, bc, orch)
	require.NoError(t, err)
	return d
}

func TestDriver_EndToEndSchedule(t *testing.T) {
	const m = 0.5
	clock := newSimClock(10 * time.Millisecond)
	bc := &recordingBroadcaster{}
	orch := &fakeOrch{}

	var times []time.Duration
	d := newDriver(t, Config{
		MaxTime:  10 * time.Second,
		Observer: func(c Cycle) { times = append(times, c.Time) },
	}, clock, bc, orch, command.DefaultSchedule(m))

	sum, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1000, sum.Cycles)
	assert.Equal(t, StateTerminated, sum.Final)
	assert.Equal(t, StateTerminated, d.State())
	assert.Equal(t, 10*time.Second, sum.EndTime)
	assert.NotEmpty(t, sum.RunID)

	require.Len(t, bc.cmds, 1000)
	for i, cmd := range bc.cmds {
		at := times[i]
		require.Less(t, at, 10*time.Second, "no cycle may run at or after max time")
		if at < 5*time.Second {
			assert.Equal(t, command.New(0, 0, 0, 0), cmd, "t=%v", at)
		} else {
			assert.Equal(t, command.New(0, 0, 0, 0.8*m), cmd, "t=%v", at)
		}
	}

	assert.Equal(t, 1, orch.resets)
	assert.Equal(t, 1000, orch.updates)
	assert.Equal(t, 1000, orch.gets)
}

func TestDriver_StageFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		setup  func(*simClock, *recordingBroadcaster, *fakeOrch)
		stage  Stage
		cycles int
	}{
		{"reset", func(_ *simClock, _ *recordingBroadcaster, o *fakeOrch) { o.resetErr = boom }, StageReset, 0},
		{"broadcast", func(_ *simClock, b *recordingBroadcaster, _ *fakeOrch) { b.err = boom }, StageBroadcast, 0},
		{"update", func(_ *simClock, _ *recordingBroadcaster, o *fakeOrch) { o.updateErr = boom }, StageUpdate, 0},
		{"action", func(_ *simClock, _ *recordingBroadcaster, o *fakeOrch) { o.actionErr = boom }, StageAction, 0},
		{"apply", func(c *simClock, _ *recordingBroadcaster, _ *fakeOrch) { c.failAt, c.err = 3, boom }, StageApply, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newSimClock(time.Millisecond)
			bc := &recordingBroadcaster{}
			orch := &fakeOrch{}
			tt.setup(clock, bc, orch)

			d := newDriver(t, Config{MaxTime: time.Second}, clock, bc, orch, command.Constant{})
			sum, err := d.Run(context.Background())

			require.ErrorIs(t, err, boom)
			var ce *CycleError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.stage, ce.Stage)
			assert.Equal(t, tt.cycles, ce.Cycle)
			assert.Equal(t, tt.cycles, sum.Cycles)
			assert.Equal(t, StateTerminated, d.State())
		})
	}
}

func TestDriver_ApplyFailureStopsImmediately(t *testing.T) {
	clock := newSimClock(time.Millisecond)
	clock.failAt, clock.err = 0, errors.New("motor fault")
	orch := &fakeOrch{}

	d := newDriver(t, Config{MaxTime: time.Second}, clock, &recordingBroadcaster{}, orch, command.Constant{})
	_, err := d.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, orch.updates, "no further cycles after an apply failure")
}

type regressingClock struct {
	*simClock
	reads int
}

func (c *regressingClock) TimeSinceReset() time.Duration {
	c.reads++
	if c.reads == 4 {
		return 0
	}
	return c.simClock.TimeSinceReset()
}

func TestDriver_ClockRegression(t *testing.T) {
	inner := newSimClock(time.Millisecond)
	inner.t = time.Second
	clock := &regressingClock{simClock: inner}

	d, err := New(Config{MaxTime: time.Hour, Logger: quiet}, clock, inner, command.Constant{}, &recordingBroadcaster{}, &fakeOrch{})
	require.NoError(t, err)

	_, err = d.Run(context.Background())
	assert.ErrorIs(t, err, ErrClockRegression)
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StageClock, ce.Stage)
}

func TestDriver_CancelBetweenCycles(t *testing.T) {
	clock := newSimClock(time.Millisecond)
	orch := &fakeOrch{}
	ctx, cancel := context.WithCancel(context.Background())

	d := newDriver(t, Config{
		MaxTime: time.Hour,
		Observer: func(c Cycle) {
			if c.Index == 4 {
				cancel()
			}
		},
	}, clock, &recordingBroadcaster{}, orch, command.Constant{})

	sum, err := d.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, sum.Cycles, "the cycle in flight completes")
	assert.Equal(t, orch.updates, orch.gets)
	assert.Equal(t, StateTerminated, sum.Final)
}

func TestDriver_Pace(t *testing.T) {
	clock := newSimClock(time.Millisecond)
	d := newDriver(t, Config{MaxTime: 5 * time.Millisecond, Pace: 2 * time.Millisecond},
		clock, &recordingBroadcaster{}, &fakeOrch{}, command.Constant{})

	sum, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Cycles)
	assert.GreaterOrEqual(t, sum.Wall, 8*time.Millisecond)
}

func TestDriver_RunOnce(t *testing.T) {
	clock := newSimClock(time.Millisecond)
	d := newDriver(t, Config{MaxTime: time.Millisecond}, clock, &recordingBroadcaster{}, &fakeOrch{}, command.Constant{})

	_, err := d.Run(context.Background())
	require.NoError(t, err)
	_, err = d.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestDriver_StateTransitions(t *testing.T) {
	clock := newSimClock(time.Millisecond)
	var states []State
	d := newDriver(t, Config{
		MaxTime:       3 * time.Millisecond,
		StateObserver: func(_ string, s State, _ int) { states = append(states, s) },
	}, clock, &recordingBroadcaster{}, &fakeOrch{}, command.Constant{})

	assert.Equal(t, StateInitializing, d.State())
	_, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []State{StateInitializing, StateRunning, StateTerminated}, states)
}

func TestNew_Validation(t *testing.T) {
	clock := newSimClock(time.Millisecond)
	_, err := New(Config{MaxTime: time.Second}, nil, clock, command.Constant{}, &recordingBroadcaster{}, &fakeOrch{})
	assert.ErrorIs(t, err, ErrMissingDependency)

	_, err = New(Config{}, clock, clock, command.Constant{}, &recordingBroadcaster{}, &fakeOrch{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{MaxTime: time.Second, Pace: -1}, clock, clock, command.Constant{}, &recordingBroadcaster{}, &fakeOrch{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// TestDriver_SimulatedTrot runs the full stack against the simulated robot.
func TestDriver_SimulatedTrot(t *testing.T) {
	sim := robot.NewSim(robot.SimConfig{Profile: robot.ProfileA1, ActionRepeat: 5, Logger: quiet})
	spec := sim.Spec()

	g, err := gait.NewOpenLoop(gait.ProfileTrot.Params())
	require.NoError(t, err)
	est, err := estimator.NewCOMVelocity(sim, estimator.DefaultWindowSize)
	require.NoError(t, err)
	sw, err := swing.NewRaibert(swing.Config{
		Robot: sim, Gait: g, Estimator: est,
		Limits:     command.DefaultLimits(),
		BodyHeight: spec.BodyHeight,
		Gains:      spec.Gains,
	})
	require.NoError(t, err)
	st, err := stance.NewTorque(stance.Config{
		Robot: sim, Gait: g, Estimator: est,
		Limits:      command.DefaultLimits(),
		BodyHeight:  spec.BodyHeight,
		BodyMass:    spec.BodyMass,
		BodyInertia: spec.BodyInertia,
		MaxTorque:   spec.MaxTorque,
	})
	require.NoError(t, err)
	ctrl, err := locomotion.NewController(locomotion.Config{
		Clock: sim, Gait: g, Estimator: est, Swing: sw, Stance: st, Logger: quiet,
	})
	require.NoError(t, err)

	var swings int
	d, err := New(Config{
		MaxTime: time.Second,
		Logger:  quiet,
		Observer: func(c Cycle) {
			for _, s := range c.Diagnostics.Sources {
				if s == locomotion.SourceSwing {
					swings++
				}
			}
		},
	}, sim, sim, command.Constant(command.New(0.2, 0, 0, 0)), locomotion.NewBroadcaster(ctrl.Targets()...), ctrl)
	require.NoError(t, err)

	sum, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, sum.Cycles)
	assert.Positive(t, swings, "a trot lifts legs")
	assert.True(t, sim.BasePosition().IsFinite())
}
