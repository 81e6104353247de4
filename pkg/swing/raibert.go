// Package swing plans swing-leg foot trajectories with a Raibert-style
// foot placement heuristic and tracks them with joint position control.
package swing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/teslashibe/go-quadruped/pkg/command"
	"github.com/teslashibe/go-quadruped/pkg/gait"
	"github.com/teslashibe/go-quadruped/pkg/robot"
)

// Defaults for the trajectory shape and placement feedback.
const (
	DefaultFootClearance     = 0.01 // m, target foot height above the ground plane
	DefaultFootHeight        = 0.1  // m, apex above the higher trajectory endpoint
	DefaultFootPlacementGain = 0.01 // s, feedback on hip velocity error
)

var (
	// ErrMissingDependency is returned when a required input is nil.
	ErrMissingDependency = errors.New("swing: missing dependency")

	// ErrLegCount is returned when the gait does not describe every leg.
	ErrLegCount = errors.New("swing: gait leg count mismatch")

	// ErrNonFinite is returned when a planned joint target is NaN or Inf.
	ErrNonFinite = errors.New("swing: non-finite joint target")
)

// GaitState is the gait information the controller reads.
type GaitState interface {
	LegStates() []gait.LegState
	NormalizedPhases() []float64
	StanceDurations() []time.Duration
}

// VelocityEstimator provides the body-frame base velocity.
type VelocityEstimator interface {
	Velocity() robot.Vec3
}

// Body is the robot subset the controller reads.
type Body interface {
	robot.StateSource
	robot.Kinematics
}

// Config configures a Raibert controller.
type Config struct {
	Robot     Body
	Gait      GaitState
	Estimator VelocityEstimator

	Limits  command.Limits
	Initial command.Command

	BodyHeight        float64 // m
	FootClearance     float64 // DefaultFootClearance when zero
	FootHeight        float64 // DefaultFootHeight when zero
	FootPlacementGain float64 // DefaultFootPlacementGain when zero
	Gains             [robot.MotorsPerLeg]robot.MotorGains
}

// Raibert is the swing leg controller.
type Raibert struct {
	*command.Target

	cfg Config

	lastStates []gait.LegState
	liftoff    [robot.NumLegs]robot.Vec3
}

// NewRaibert creates a swing controller.
func NewRaibert(cfg Config) (*Raibert, error) {
	switch {
	case cfg.Robot == nil:
		return nil, fmt.Errorf("%w: robot", ErrMissingDependency)
	case cfg.Gait == nil:
		return nil, fmt.Errorf("%w: gait", ErrMissingDependency)
	case cfg.Estimator == nil:
		return nil, fmt.Errorf("%w: estimator", ErrMissingDependency)
	}
	if cfg.BodyHeight <= 0 {
		return nil, fmt.Errorf("swing: body height must be positive, got %v", cfg.BodyHeight)
	}
	if cfg.FootClearance == 0 {
		cfg.FootClearance = DefaultFootClearance
	}
	if cfg.FootHeight == 0 {
		cfg.FootHeight = DefaultFootHeight
	}
	if cfg.FootPlacementGain == 0 {
		cfg.FootPlacementGain = DefaultFootPlacementGain
	}

	target, err := command.NewTarget(cfg.Limits, cfg.Initial)
	if err != nil {
		return nil, err
	}
	r := &Raibert{Target: target, cfg: cfg}
	r.Reset(0)
	return r, nil
}

// Reset captures the current leg states and foot positions as liftoff points.
func (r *Raibert) Reset(time.Duration) {
	r.lastStates = r.cfg.Gait.LegStates()
	r.liftoff = r.cfg.Robot.FootPositionsInBaseFrame()
}

// Update records the liftoff position of every leg that just entered swing.
func (r *Raibert) Update(time.Duration) error {
	states := r.cfg.Gait.LegStates()
	if len(states) != robot.NumLegs {
		return fmt.Errorf("%w: got %d", ErrLegCount, len(states))
	}
	feet := r.cfg.Robot.FootPositionsInBaseFrame()
	for leg, s := range states {
		if s == gait.Swing && (leg >= len(r.lastStates) || r.lastStates[leg] != gait.Swing) {
			r.liftoff[leg] = feet[leg]
		}
	}
	r.lastStates = states
	return nil
}

// GetAction returns position commands for the legs currently in swing.
func (r *Raibert) GetAction() (robot.LegActions, error) {
	states := r.cfg.Gait.LegStates()
	phases := r.cfg.Gait.NormalizedPhases()
	stance := r.cfg.Gait.StanceDurations()
	if len(states) != robot.NumLegs || len(phases) != robot.NumLegs || len(stance) != robot.NumLegs {
		return nil, fmt.Errorf("%w: states=%d phases=%d durations=%d",
			ErrLegCount, len(states), len(phases), len(stance))
	}

	vel := r.cfg.Estimator.Velocity()
	vel[2] = 0
	yawRate := r.cfg.Robot.BaseRollPitchYawRate()[2]
	hips := r.cfg.Robot.HipPositionsInBaseFrame()
	desired, desiredYaw := r.DesiredVelocity()

	out := make(robot.LegActions)
	for leg, s := range states {
		if s != gait.Swing {
			continue
		}
		target := r.footTarget(hips[leg], vel, yawRate, desired, desiredYaw, stance[leg])
		foot := trajectory(phases[leg], r.liftoff[leg], target, r.cfg.FootHeight)
		angles := r.cfg.Robot.MotorAnglesFromFootPosition(leg, foot)

		var la robot.LegAction
		for m, a := range angles {
			if math.IsNaN(a) || math.IsInf(a, 0) {
				return nil, fmt.Errorf("%w: leg %s motor %d", ErrNonFinite, robot.LegNames[leg], m)
			}
			la[m] = robot.MotorCommand{
				Position: a,
				Kp:       r.cfg.Gains[m].Kp,
				Kd:       r.cfg.Gains[m].Kd,
			}
		}
		out[leg] = la
	}
	return out, nil
}

// footTarget places the landing point so that, at the commanded speed, the
// hip passes over the foot halfway through the next stance.
func (r *Raibert) footTarget(hip, vel robot.Vec3, yawRate float64, desired robot.Vec3, desiredYaw float64, stance time.Duration) robot.Vec3 {
	hipVel := vel.Add(robot.Vec3{-yawRate * hip[1], yawRate * hip[0], 0})
	targetVel := robot.Vec3{desired[0] - desiredYaw*hip[1], desired[1] + desiredYaw*hip[0], 0}

	t := hipVel.Scale(stance.Seconds() / 2).Sub(targetVel.Sub(hipVel).Scale(r.cfg.FootPlacementGain))
	return robot.Vec3{
		t[0] + hip[0],
		t[1] + hip[1],
		-(r.cfg.BodyHeight - r.cfg.FootClearance),
	}
}

// trajectory interpolates from start to end, lifting the foot along a
// parabola whose apex is height above the higher endpoint.
func trajectory(phase float64, start, end robot.Vec3, height float64) robot.Vec3 {
	p := warp(phase)
	apex := math.Max(start[2], end[2]) + height
	return robot.Vec3{
		(1-p)*start[0] + p*end[0],
		(1-p)*start[1] + p*end[1],
		parabola(p, start[2], apex, end[2]),
	}
}

// warp front-loads the swing so the foot clears the ground quickly and then
// eases into the landing point.
func warp(phase float64) float64 {
	if phase <= 0.5 {
		return 0.8 * math.Sin(phase*math.Pi)
	}
	return 0.8 + (phase-0.5)*0.4
}

// parabola passes through (0, start), (0.5, mid) and (1, end).
func parabola(x, start, mid, end float64) float64 {
	const midX = 0.5
	d1 := mid - start
	d2 := end - start
	d3 := midX*midX - midX
	a := (d1 - d2*midX) / d3
	b := (d2*midX*midX - d1) / d3
	return a*x*x + b*x + start
}
