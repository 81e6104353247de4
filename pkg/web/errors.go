package web

import "errors"

var (
	// ErrTeleopDisabled is returned when a command arrives but no override is configured.
	ErrTeleopDisabled = errors.New("web: teleoperation disabled")

	// ErrInvalidHold is returned for a negative or non-finite hold time.
	ErrInvalidHold = errors.New("web: invalid hold")

	// ErrUnsupportedMessage is returned for a teleop message type the server does not handle.
	ErrUnsupportedMessage = errors.New("web: unsupported message type")
)
