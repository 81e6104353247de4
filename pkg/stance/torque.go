// Package stance computes stance-leg motor torques that realise a desired
// body wrench through the feet currently on the ground.
package stance

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/teslashibe/go-quadruped/pkg/command"
	"github.com/teslashibe/go-quadruped/pkg/gait"
	"github.com/teslashibe/go-quadruped/pkg/robot"
)

// Gravity is the standard gravitational acceleration (m/s^2).
const Gravity = 9.8

// Defaults for the force distribution.
const (
	DefaultFrictionCoeff  = 0.45
	DefaultRegularization = 1e-3
)

var (
	// ErrMissingDependency is returned when a required input is nil.
	ErrMissingDependency = errors.New("stance: missing dependency")

	// ErrInfeasible is returned when no force distribution can be found,
	// for example with no leg in stance.
	ErrInfeasible = errors.New("stance: infeasible force distribution")

	// ErrLegCount is returned when the gait does not describe every leg.
	ErrLegCount = errors.New("stance: gait leg count mismatch")
)

// LegStater reports per-leg gait states.
type LegStater interface {
	LegStates() []gait.LegState
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

// Gains are the PD gains of the desired body acceleration.
type Gains struct {
	Linear     [3]float64 // Kp on vx, vy error and on body height error
	HeightKd   float64    // Kd on vertical velocity
	Attitude   [2]float64 // Kp on roll, pitch
	AttitudeKd [2]float64 // Kd on roll, pitch rates
	YawRate    float64    // Kp on yaw rate error
}

// DefaultGains returns gains tuned for the supported profiles.
func DefaultGains() Gains {
	return Gains{
		Linear:     [3]float64{20, 20, 100},
		HeightKd:   10,
		Attitude:   [2]float64{100, 100},
		AttitudeKd: [2]float64{10, 10},
		YawRate:    20,
	}
}

// Config configures a Torque controller.
type Config struct {
	Robot     Body
	Gait      LegStater
	Estimator VelocityEstimator

	Limits  command.Limits
	Initial command.Command

	BodyHeight     float64    // desired standing height (m)
	BodyMass       float64    // kg
	BodyInertia    [3]float64 // diagonal, kg m^2
	MaxTorque      float64    // Nm, no clamping when zero
	Gains          Gains      // DefaultGains when zero
	FrictionCoeff  float64    // DefaultFrictionCoeff when zero
	Regularization float64    // DefaultRegularization when zero
}

// Torque is the stance leg controller.
type Torque struct {
	*command.Target

	cfg Config

	forces [robot.NumLegs]robot.Vec3
}

// NewTorque creates a stance controller.
func NewTorque(cfg Config) (*Torque, error) {
	switch {
	case cfg.Robot == nil:
		return nil, fmt.Errorf("%w: robot", ErrMissingDependency)
	case cfg.Gait == nil:
		return nil, fmt.Errorf("%w: gait", ErrMissingDependency)
	case cfg.Estimator == nil:
		return nil, fmt.Errorf("%w: estimator", ErrMissingDependency)
	}
	if cfg.BodyMass <= 0 || cfg.BodyHeight <= 0 {
		return nil, fmt.Errorf("stance: body mass and height must be positive, got %v, %v", cfg.BodyMass, cfg.BodyHeight)
	}
	if cfg.Gains == (Gains{}) {
		cfg.Gains = DefaultGains()
	}
	if cfg.FrictionCoeff == 0 {
		cfg.FrictionCoeff = DefaultFrictionCoeff
	}
	if cfg.Regularization == 0 {
		cfg.Regularization = DefaultRegularization
	}

	target, err := command.NewTarget(cfg.Limits, cfg.Initial)
	if err != nil {
		return nil, err
	}
	return &Torque{Target: target, cfg: cfg}, nil
}

// Reset clears the last computed contact forces.
func (c *Torque) Reset(time.Duration) {
	c.forces = [robot.NumLegs]robot.Vec3{}
}

// Update is a no-op: the controller reads its inputs when an action is requested.
func (c *Torque) Update(time.Duration) error {
	return nil
}

// ContactForces returns the ground reaction forces of the last action, base frame.
func (c *Torque) ContactForces() [robot.NumLegs]robot.Vec3 {
	return c.forces
}

// GetAction returns torque-only commands for the legs currently in stance.
func (c *Torque) GetAction() (robot.LegActions, error) {
	states := c.cfg.Gait.LegStates()
	if len(states) != robot.NumLegs {
		return nil, fmt.Errorf("%w: got %d", ErrLegCount, len(states))
	}
	var legs []int
	for leg, s := range states {
		if s == gait.Stance {
			legs = append(legs, leg)
		}
	}
	if len(legs) == 0 {
		return nil, fmt.Errorf("%w: no leg in stance", ErrInfeasible)
	}

	feet := c.cfg.Robot.FootPositionsInBaseFrame()
	wrench := c.desiredWrench(feet, legs)
	forces, err := c.distribute(wrench, feet, legs)
	if err != nil {
		return nil, err
	}

	out := make(robot.LegActions, len(legs))
	var applied [robot.NumLegs]robot.Vec3
	for i, leg := range legs {
		f := c.frictionCone(forces[i])
		applied[leg] = f

		jac := c.cfg.Robot.ComputeJacobian(leg)
		var la robot.LegAction
		for m := 0; m < robot.MotorsPerLeg; m++ {
			tau := -(jac[0][m]*f[0] + jac[1][m]*f[1] + jac[2][m]*f[2])
			if c.cfg.MaxTorque > 0 {
				tau = math.Max(-c.cfg.MaxTorque, math.Min(c.cfg.MaxTorque, tau))
			}
			la[m] = robot.MotorCommand{Torque: tau}
		}
		out[leg] = la
	}
	c.forces = applied
	return out, nil
}

// desiredWrench returns [Fx Fy Fz Mx My Mz] in the base frame.
func (c *Torque) desiredWrench(feet [robot.NumLegs]robot.Vec3, legs []int) *mat.VecDense {
	g := c.cfg.Gains
	vel := c.cfg.Estimator.Velocity()
	rpy := c.cfg.Robot.BaseRollPitchYaw()
	rate := c.cfg.Robot.BaseRollPitchYawRate()
	desired, desiredYaw := c.DesiredVelocity()

	var height float64
	for _, leg := range legs {
		height -= feet[leg][2]
	}
	height /= float64(len(legs))

	acc := [6]float64{
		g.Linear[0] * (desired[0] - vel[0]),
		g.Linear[1] * (desired[1] - vel[1]),
		g.Linear[2]*(c.cfg.BodyHeight-height) - g.HeightKd*vel[2],
		-g.Attitude[0]*rpy[0] - g.AttitudeKd[0]*rate[0],
		-g.Attitude[1]*rpy[1] - g.AttitudeKd[1]*rate[1],
		g.YawRate * (desiredYaw - rate[2]),
	}

	m := c.cfg.BodyMass
	in := c.cfg.BodyInertia
	return mat.NewVecDense(6, []float64{
		m * acc[0],
		m * acc[1],
		m * (acc[2] + Gravity),
		in[0] * acc[3],
		in[1] * acc[4],
		in[2] * acc[5],
	})
}

// distribute finds the least-norm foot forces F with A F = W, regularized:
// F = A^T (A A^T + lambda I)^-1 W.
func (c *Torque) distribute(w *mat.VecDense, feet [robot.NumLegs]robot.Vec3, legs []int) ([]robot.Vec3, error) {
	n := 3 * len(legs)
	a := mat.NewDense(6, n, nil)
	for i, leg := range legs {
		r := feet[leg]
		col := 3 * i
		for k := 0; k < 3; k++ {
			a.Set(k, col+k, 1)
		}
		// Moment rows: r x f.
		a.Set(3, col+1, -r[2])
		a.Set(3, col+2, r[1])
		a.Set(4, col+0, r[2])
		a.Set(4, col+2, -r[0])
		a.Set(5, col+0, -r[1])
		a.Set(5, col+1, r[0])
	}

	var aat mat.Dense
	aat.Mul(a, a.T())
	for k := 0; k < 6; k++ {
		aat.Set(k, k, aat.At(k, k)+c.cfg.Regularization)
	}

	var y mat.VecDense
	if err := y.SolveVec(&aat, w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInfeasible, err)
	}
	var f mat.VecDense
	f.MulVec(a.T(), &y)

	out := make([]robot.Vec3, len(legs))
	for i := range legs {
		out[i] = robot.Vec3{f.AtVec(3 * i), f.AtVec(3*i + 1), f.AtVec(3*i + 2)}
		if !out[i].IsFinite() {
			return nil, fmt.Errorf("%w: non-finite force on leg %s", ErrInfeasible, robot.LegNames[legs[i]])
		}
	}
	return out, nil
}

// frictionCone drops pulling forces and scales the tangential part into the cone.
func (c *Torque) frictionCone(f robot.Vec3) robot.Vec3 {
	if f[2] <= 0 {
		return robot.Vec3{}
	}
	limit := c.cfg.FrictionCoeff * f[2]
	if tangential := math.Hypot(f[0], f[1]); tangential > limit {
		s := limit / tangential
		f[0] *= s
		f[1] *= s
	}
	return f
}
