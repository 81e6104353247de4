package robot

import (
	"fmt"
	"math"
)

// Leg and motor layout. Legs are ordered front-right, front-left, rear-right,
// rear-left; each leg has abduction, hip and knee motors in that order.
const (
	NumLegs      = 4
	MotorsPerLeg = 3
	NumMotors    = NumLegs * MotorsPerLeg
)

// LegNames are the short leg identifiers used in logs and telemetry.
var LegNames = [NumLegs]string{"FR", "FL", "RR", "RL"}

// Vec3 is a 3D vector (x forward, y left, z up).
type Vec3 [3]float64

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// IsFinite reports whether every component is a finite number.
func (v Vec3) IsFinite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// MotorCommand is the hybrid command for a single motor.
// The applied torque is Kp*(Position-q) + Kd*(Velocity-dq) + Torque.
// A command with Kp == Kd == 0 is a pure torque command.
type MotorCommand struct {
	Position float64 `json:"position"`
	Velocity float64 `json:"velocity"`
	Torque   float64 `json:"torque"`
	Kp       float64 `json:"kp"`
	Kd       float64 `json:"kd"`
}

// TorqueOnly reports whether the command carries no position/velocity gains.
func (m MotorCommand) TorqueOnly() bool {
	return m.Kp == 0 && m.Kd == 0
}

func (m MotorCommand) finite() bool {
	for _, v := range [...]float64{m.Position, m.Velocity, m.Torque, m.Kp, m.Kd} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// LegAction holds the commands for the motors of one leg.
type LegAction [MotorsPerLeg]MotorCommand

// TorqueOnly reports whether every motor of the leg is torque-controlled.
func (a LegAction) TorqueOnly() bool {
	for _, m := range a {
		if !m.TorqueOnly() {
			return false
		}
	}
	return true
}

// LegActions maps leg index to that leg's action. A sub-controller fills in
// only the legs it is responsible for.
type LegActions map[int]LegAction

// Legs returns the leg indices present, in ascending order.
func (l LegActions) Legs() []int {
	legs := make([]int, 0, len(l))
	for i := 0; i < NumLegs; i++ {
		if _, ok := l[i]; ok {
			legs = append(legs, i)
		}
	}
	return legs
}

// HybridAction is the full per-leg actuator command for one control cycle.
type HybridAction [NumLegs]LegAction

// Validate checks that every command value is finite.
func (h HybridAction) Validate() error {
	for leg, la := range h {
		for motor, m := range la {
			if !m.finite() {
				return fmt.Errorf("%w: leg %s motor %d", ErrInvalidAction, LegNames[leg], motor)
			}
		}
	}
	return nil
}

// Flatten returns the motor commands in motor order.
func (h HybridAction) Flatten() [NumMotors]MotorCommand {
	var out [NumMotors]MotorCommand
	for leg, la := range h {
		for motor, m := range la {
			out[leg*MotorsPerLeg+motor] = m
		}
	}
	return out
}
