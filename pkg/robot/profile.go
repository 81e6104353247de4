package robot

import (
	"fmt"
	"strings"
)

// Profile selects one of the supported robot models. It is resolved once at
// startup from configuration.
type Profile int

const (
	ProfileA1 Profile = iota
	ProfileLaikago
)

// String returns the configuration name of the profile.
func (p Profile) String() string {
	switch p {
	case ProfileA1:
		return "a1"
	case ProfileLaikago:
		return "laikago"
	default:
		return fmt.Sprintf("profile(%d)", int(p))
	}
}

// Profiles lists every supported robot profile.
func Profiles() []Profile {
	return []Profile{ProfileA1, ProfileLaikago}
}

// ParseProfile resolves a profile by name (case-insensitive).
func ParseProfile(name string) (Profile, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, p := range Profiles() {
		if p.String() == n {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
}

// MotorGains are the PD gains used for position-controlled motors.
type MotorGains struct {
	Kp float64
	Kd float64
}

// ProfileSpec holds the physical and control constants of a robot model.
type ProfileSpec struct {
	Name string

	// VelocityMultiplier scales demo command profiles to the robot's size.
	VelocityMultiplier float64

	BodyHeight  float64    // nominal standing height (m)
	BodyMass    float64    // kg
	BodyInertia [3]float64 // diagonal inertia Ixx, Iyy, Izz (kg m^2)

	// HipOffsets are the hip joint positions relative to the base origin.
	HipOffsets [NumLegs]Vec3

	HipLength   float64 // lateral offset from abduction axis to the leg plane (m)
	UpperLength float64 // thigh (m)
	LowerLength float64 // calf (m)

	// Gains per motor within a leg: abduction, hip, knee.
	Gains [MotorsPerLeg]MotorGains

	// InitMotorAngles is the standing pose for one leg.
	InitMotorAngles [MotorsPerLeg]float64

	// MaxTorque is the absolute motor torque limit (Nm).
	MaxTorque float64
}

// Spec returns the constants for the profile.
func (p Profile) Spec() ProfileSpec {
	switch p {
	case ProfileLaikago:
		return ProfileSpec{
			Name:               "laikago",
			VelocityMultiplier: 1.0,
			BodyHeight:         0.42,
			BodyMass:           215 / 9.8,
			BodyInertia:        [3]float64{0.07335, 0.25068, 0.25447},
			HipOffsets: [NumLegs]Vec3{
				{0.21, -0.1157, 0},
				{0.21, 0.1157, 0},
				{-0.21, -0.1157, 0},
				{-0.21, 0.1157, 0},
			},
			HipLength:       0.077,
			UpperLength:     0.25,
			LowerLength:     0.25,
			Gains:           [MotorsPerLeg]MotorGains{{220, 0.3}, {220, 2}, {220, 2}},
			InitMotorAngles: [MotorsPerLeg]float64{0, 0.67, -1.25},
			MaxTorque:       40,
		}
	default:
		return ProfileSpec{
			Name:               "a1",
			VelocityMultiplier: 0.5,
			BodyHeight:         0.24,
			BodyMass:           108 / 9.8,
			BodyInertia:        [3]float64{0.017 * 4, 0.057 * 4, 0.064 * 4},
			HipOffsets: [NumLegs]Vec3{
				{0.183, -0.047, 0},
				{0.183, 0.047, 0},
				{-0.183, -0.047, 0},
				{-0.183, 0.047, 0},
			},
			HipLength:       0.08505,
			UpperLength:     0.2,
			LowerLength:     0.2,
			Gains:           [MotorsPerLeg]MotorGains{{100, 1}, {100, 2}, {100, 2}},
			InitMotorAngles: [MotorsPerLeg]float64{0, 0.9, -1.8},
			MaxTorque:       33.5,
		}
	}
}
