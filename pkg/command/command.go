// Package command produces the motion commands that drive the locomotion loop:
// a desired body linear velocity and yaw rate per control cycle.
package command

import (
	"fmt"
	"math"
	"sync"

	"github.com/teslashibe/go-quadruped/pkg/robot"
)

// Default magnitude limits for accepted commands.
const (
	DefaultMaxLinear  = 2.0 // m/s
	DefaultMaxYawRate = 3.0 // rad/s
)

// Command is a desired body motion. It is a value: once issued it is never mutated.
type Command struct {
	Linear  robot.Vec3 `json:"linear" yaml:"linear"`
	YawRate float64    `json:"yaw_rate" yaml:"yaw_rate"`
}

// New builds a command from its components.
func New(vx, vy, vz, yawRate float64) Command {
	return Command{Linear: robot.Vec3{vx, vy, vz}, YawRate: yawRate}
}

// Scale returns the command with every component multiplied by m.
func (c Command) Scale(m float64) Command {
	return Command{Linear: c.Linear.Scale(m), YawRate: c.YawRate * m}
}

// String formats the command for logs.
func (c Command) String() string {
	return fmt.Sprintf("v=(%.3f,%.3f,%.3f) wz=%.3f", c.Linear[0], c.Linear[1], c.Linear[2], c.YawRate)
}

// Limits bounds the magnitudes a controller accepts.
type Limits struct {
	MaxLinear  float64 // maximum |linear velocity| in m/s
	MaxYawRate float64 // maximum |yaw rate| in rad/s
}

// DefaultLimits returns the package default limits.
func DefaultLimits() Limits {
	return Limits{MaxLinear: DefaultMaxLinear, MaxYawRate: DefaultMaxYawRate}
}

// Validate checks c against the limits.
func (c Command) Validate(l Limits) error {
	return ValidateVelocity(c.Linear, c.YawRate, l)
}

// ValidateVelocity rejects non-finite values and magnitudes above the limits.
// A zero limit disables the corresponding magnitude check.
func ValidateVelocity(linear robot.Vec3, yawRate float64, l Limits) error {
	if !linear.IsFinite() {
		return fmt.Errorf("%w: non-finite linear velocity %v", ErrInvalidCommand, linear)
	}
	if math.IsNaN(yawRate) || math.IsInf(yawRate, 0) {
		return fmt.Errorf("%w: non-finite yaw rate %v", ErrInvalidCommand, yawRate)
	}
	if l.MaxLinear > 0 && linear.Norm() > l.MaxLinear {
		return fmt.Errorf("%w: |v|=%.3f exceeds %.3f", ErrInvalidCommand, linear.Norm(), l.MaxLinear)
	}
	if l.MaxYawRate > 0 && math.Abs(yawRate) > l.MaxYawRate {
		return fmt.Errorf("%w: |wz|=%.3f exceeds %.3f", ErrInvalidCommand, math.Abs(yawRate), l.MaxYawRate)
	}
	return nil
}

// Target holds a controller's desired velocity behind a validating setter.
// Swing and stance controllers embed it so both expose the same contract.
type Target struct {
	mu      sync.RWMutex
	limits  Limits
	linear  robot.Vec3
	yawRate float64
}

// NewTarget creates a target with the given limits and initial command.
func NewTarget(l Limits, initial Command) (*Target, error) {
	if err := initial.Validate(l); err != nil {
		return nil, err
	}
	return &Target{limits: l, linear: initial.Linear, yawRate: initial.YawRate}, nil
}

// SetDesiredVelocity stores a new desired velocity after validating it.
// On error the previous value is kept.
func (t *Target) SetDesiredVelocity(linear robot.Vec3, yawRate float64) error {
	if err := ValidateVelocity(linear, yawRate, t.limits); err != nil {
		return err
	}
	t.mu.Lock()
	t.linear = linear
	t.yawRate = yawRate
	t.mu.Unlock()
	return nil
}

// DesiredVelocity returns the stored desired velocity.
func (t *Target) DesiredVelocity() (robot.Vec3, float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.linear, t.yawRate
}

// Desired returns the stored desired velocity as a Command.
func (t *Target) Desired() Command {
	linear, yaw := t.DesiredVelocity()
	return Command{Linear: linear, YawRate: yaw}
}

// Limits returns the limits the target validates against.
func (t *Target) Limits() Limits {
	return t.limits
}
