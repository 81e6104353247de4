package locomotion

import (
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/teslashibe/go-quadruped/pkg/gait"
	"github.com/teslashibe/go-quadruped/pkg/robot"
)

// Source identifies which sub-controller produced a leg's action.
type Source int

const (
	SourceSwing Source = iota
	SourceStance
)

// String returns "swing" or "stance".
func (s Source) String() string {
	if s == SourceSwing {
		return "swing"
	}
	return "stance"
}

// MarshalText encodes the source by name.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Diagnostics describes how one action was composed.
type Diagnostics struct {
	Time          time.Duration // since the controller's last Reset
	Velocity      robot.Vec3    // estimated body-frame velocity
	LegStates     []gait.LegState
	Phases        []float64
	Sources       [robot.NumLegs]Source
	SwingOutput   robot.LegActions
	StanceOutput  robot.LegActions
	ContactForces [robot.NumLegs]robot.Vec3 // zero unless the stance controller reports them
}

func (d Diagnostics) clone() Diagnostics {
	d.LegStates = append([]gait.LegState(nil), d.LegStates...)
	d.Phases = append([]float64(nil), d.Phases...)
	d.SwingOutput = maps.Clone(d.SwingOutput)
	d.StanceOutput = maps.Clone(d.StanceOutput)
	return d
}

// Config wires a Controller to its collaborators.
type Config struct {
	Clock     robot.Clock
	Gait      GaitGenerator
	Estimator StateEstimator
	Swing     SwingLegController
	Stance    StanceLegController
	Logger    *slog.Logger
}

// Controller composes per-leg actions from the swing and stance controllers
// according to the gait. It is driven from a single goroutine.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	resetAt time.Duration
	now     time.Duration

	// updated is set by a successful Update and cleared by Reset. GetAction
	// refuses to compose without it.
	updated bool
	cached  *composed
}

type composed struct {
	action robot.HybridAction
	diag   Diagnostics
}

// NewController validates the collaborators and returns an unreset controller.
func NewController(cfg Config) (*Controller, error) {
	missing := func(name string) error {
		return fmt.Errorf("%w: %s", ErrMissingCollaborator, name)
	}
	switch {
	case cfg.Clock == nil:
		return nil, missing("clock")
	case cfg.Gait == nil:
		return nil, missing("gait")
	case cfg.Estimator == nil:
		return nil, missing("estimator")
	case cfg.Swing == nil:
		return nil, missing("swing")
	case cfg.Stance == nil:
		return nil, missing("stance")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{cfg: cfg, logger: logger.With("component", "locomotion")}, nil
}

// Reset re-initializes every collaborator at time zero and records the
// current clock reading as the reference. Calling it twice in a row leaves
// the controller in the same state as calling it once.
func (c *Controller) Reset() error {
	c.resetAt = c.cfg.Clock.TimeSinceReset()
	c.now = 0
	c.updated = false
	c.cached = nil

	// The gait goes first: the leg controllers read its initial states.
	c.cfg.Gait.Reset(0)
	c.cfg.Estimator.Reset(0)
	c.cfg.Swing.Reset(0)
	c.cfg.Stance.Reset(0)

	if n := len(c.cfg.Gait.LegStates()); n != robot.NumLegs {
		return wrapCollaborator("gait", fmt.Errorf("%w: got %d", ErrLegCount, n))
	}
	c.logger.Debug("controller reset", "clock_ref", c.resetAt)
	return nil
}

// Update advances the gait, the estimator and both leg controllers to the
// current clock time, in that order. On error the controller stays
// un-updated and GetAction fails until the next successful Update.
func (c *Controller) Update() error {
	c.updated = false
	c.cached = nil

	t := c.cfg.Clock.TimeSinceReset() - c.resetAt
	steps := []struct {
		name string
		t    Ticker
	}{
		{"gait", c.cfg.Gait},
		{"estimator", c.cfg.Estimator},
		{"swing", c.cfg.Swing},
		{"stance", c.cfg.Stance},
	}
	for _, s := range steps {
		if err := s.t.Update(t); err != nil {
			return wrapCollaborator(s.name, err)
		}
	}
	c.now = t
	c.updated = true
	return nil
}

// Targets returns the velocity targets a Broadcaster should feed.
func (c *Controller) Targets() []VelocityTarget {
	return []VelocityTarget{c.cfg.Swing, c.cfg.Stance}
}

// Time returns the time since Reset as of the last successful Update.
func (c *Controller) Time() time.Duration {
	return c.now
}

// GetAction composes the hybrid action for the current cycle. Each leg
// takes the swing controller's output when in swing and the stance
// controller's output when in stance.
//
// It fails with ErrUpdateRequired unless Update succeeded since the last
// Reset. Repeated calls without an intervening Update return the same action.
func (c *Controller) GetAction() (robot.HybridAction, Diagnostics, error) {
	if !c.updated {
		return robot.HybridAction{}, Diagnostics{}, ErrUpdateRequired
	}
	if c.cached != nil {
		return c.cached.action, c.cached.diag.clone(), nil
	}

	states := c.cfg.Gait.LegStates()
	if len(states) != robot.NumLegs {
		return robot.HybridAction{}, Diagnostics{}, wrapCollaborator("gait", fmt.Errorf("%w: got %d", ErrLegCount, len(states)))
	}

	swingOut, err := c.cfg.Swing.GetAction()
	if err != nil {
		return robot.HybridAction{}, Diagnostics{}, wrapCollaborator("swing", err)
	}
	stanceOut, err := c.cfg.Stance.GetAction()
	if err != nil {
		return robot.HybridAction{}, Diagnostics{}, wrapCollaborator("stance", err)
	}
	if err := checkPartition(states, swingOut, gait.Swing); err != nil {
		return robot.HybridAction{}, Diagnostics{}, wrapCollaborator("swing", err)
	}
	if err := checkPartition(states, stanceOut, gait.Stance); err != nil {
		return robot.HybridAction{}, Diagnostics{}, wrapCollaborator("stance", err)
	}

	diag := Diagnostics{
		Time:         c.now,
		Velocity:     c.cfg.Estimator.Velocity(),
		LegStates:    states,
		Phases:       c.cfg.Gait.NormalizedPhases(),
		SwingOutput:  swingOut,
		StanceOutput: stanceOut,
	}
	if fr, ok := c.cfg.Stance.(ForceReporter); ok {
		diag.ContactForces = fr.ContactForces()
	}

	var action robot.HybridAction
	for leg, s := range states {
		if s == gait.Swing {
			action[leg] = swingOut[leg]
			diag.Sources[leg] = SourceSwing
		} else {
			action[leg] = stanceOut[leg]
			diag.Sources[leg] = SourceStance
		}
	}

	c.cached = &composed{action: action, diag: diag}
	return action, diag.clone(), nil
}

// checkPartition verifies that out covers exactly the legs in phase.
func checkPartition(states []gait.LegState, out robot.LegActions, phase gait.LegState) error {
	for leg := range out {
		if leg < 0 || leg >= len(states) {
			return fmt.Errorf("%w: %d", robot.ErrInvalidLeg, leg)
		}
		if states[leg] != phase {
			return fmt.Errorf("%w: %s is in %s", ErrLegOverlap, robot.LegNames[leg], states[leg])
		}
	}
	for leg, s := range states {
		if s != phase {
			continue
		}
		if _, ok := out[leg]; !ok {
			return fmt.Errorf("%w: %s (%s)", ErrLegUnassigned, robot.LegNames[leg], s)
		}
	}
	return nil
}
