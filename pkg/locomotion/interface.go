// Package locomotion ties the gait, state estimator and leg controllers into
// one per-cycle contract: Reset once, then Update and GetAction every cycle.
//
// Collaborators are consumed through small interfaces so the controller can
// be driven by the reference implementations in this module or by fakes.
package locomotion

import (
	"time"

	"github.com/teslashibe/go-quadruped/pkg/estimator"
	"github.com/teslashibe/go-quadruped/pkg/gait"
	"github.com/teslashibe/go-quadruped/pkg/robot"
	"github.com/teslashibe/go-quadruped/pkg/stance"
	"github.com/teslashibe/go-quadruped/pkg/swing"
)

// Ticker is implemented by every collaborator the controller advances.
// t is the time since the controller's last Reset.
type Ticker interface {
	Reset(t time.Duration)
	Update(t time.Duration) error
}

// GaitGenerator schedules swing and stance per leg.
type GaitGenerator interface {
	Ticker
	LegStates() []gait.LegState
	NormalizedPhases() []float64
}

// StateEstimator estimates the body velocity.
type StateEstimator interface {
	Ticker
	Velocity() robot.Vec3
}

// VelocityTarget holds a desired body velocity behind a validating setter.
type VelocityTarget interface {
	SetDesiredVelocity(linear robot.Vec3, yawRate float64) error
	DesiredVelocity() (robot.Vec3, float64)
}

// LegController produces actions for the legs in its phase.
type LegController interface {
	Ticker
	GetAction() (robot.LegActions, error)
}

// SwingLegController controls the legs in swing.
type SwingLegController interface {
	LegController
	VelocityTarget
}

// StanceLegController controls the legs in stance.
type StanceLegController interface {
	LegController
	VelocityTarget
}

// ForceReporter is optionally implemented by a stance controller to expose
// the contact forces of its last action.
type ForceReporter interface {
	ContactForces() [robot.NumLegs]robot.Vec3
}

var (
	_ GaitGenerator       = (*gait.OpenLoop)(nil)
	_ StateEstimator      = (*estimator.COMVelocity)(nil)
	_ SwingLegController  = (*swing.Raibert)(nil)
	_ StanceLegController = (*stance.Torque)(nil)
	_ ForceReporter       = (*stance.Torque)(nil)
)
