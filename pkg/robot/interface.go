// Package robot provides the robot-side contracts for quadruped locomotion:
// the clock, the actuator interface, sensor readouts, leg kinematics, robot
// profiles and a simulated backend.
//
// This package follows the Interface Segregation Principle (ISP) by defining
// small, focused interfaces that can be composed as needed. Consumers should
// depend only on the interfaces they actually use.
package robot

import "time"

// Clock reports elapsed time since the robot was last reset.
// Values are monotonically non-decreasing between resets.
type Clock interface {
	TimeSinceReset() time.Duration
}

// Actuator applies one hybrid action to the motors and lets time advance.
type Actuator interface {
	Step(action HybridAction) error
}

// StateSource provides the sensor readouts controllers consume.
type StateSource interface {
	// BaseVelocity is the base linear velocity in the world frame.
	BaseVelocity() Vec3
	// BaseRollPitchYaw is the base orientation in radians.
	BaseRollPitchYaw() Vec3
	// BaseRollPitchYawRate is the base angular velocity in radians/second.
	BaseRollPitchYawRate() Vec3
	MotorAngles() [NumMotors]float64
	MotorVelocities() [NumMotors]float64
	FootContacts() [NumLegs]bool
	// FootPositionsInBaseFrame are foot positions relative to the base origin.
	FootPositionsInBaseFrame() [NumLegs]Vec3
}

// Kinematics exposes leg kinematics evaluated at the current motor angles.
type Kinematics interface {
	HipPositionsInBaseFrame() [NumLegs]Vec3
	// ComputeJacobian returns d(foot position)/d(motor angles) for one leg.
	ComputeJacobian(leg int) [3][3]float64
	// MotorAnglesFromFootPosition solves IK for a foot position in the base frame.
	MotorAnglesFromFootPosition(leg int, foot Vec3) [MotorsPerLeg]float64
}

// Robot is the composite interface for a full robot backend.
// Use this when you need complete robot capabilities (simulation, hardware bridge).
type Robot interface {
	Clock
	Actuator
	StateSource
	Kinematics
	Reset()
	Spec() ProfileSpec
}

// Ensure Sim implements Robot
var _ Robot = (*Sim)(nil)
