package command

import "errors"

var (
	// ErrInvalidCommand is returned when a command is non-finite or out of range.
	ErrInvalidCommand = errors.New("command: invalid command")

	// ErrInvalidSchedule is returned when an anchor table is malformed.
	ErrInvalidSchedule = errors.New("command: invalid schedule")
)
