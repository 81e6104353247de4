package robot

import "errors"

var (
	// ErrInvalidAction is returned when an action contains non-finite values.
	ErrInvalidAction = errors.New("robot: invalid action")

	// ErrUnknownProfile is returned when a robot profile name is not recognised.
	ErrUnknownProfile = errors.New("robot: unknown profile")

	// ErrInvalidLeg is returned for a leg index outside [0, NumLegs).
	ErrInvalidLeg = errors.New("robot: invalid leg index")
)
