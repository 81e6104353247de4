package locomotion

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCollaborator is returned by NewController when a required
	// collaborator is nil.
	ErrMissingCollaborator = errors.New("locomotion: missing collaborator")

	// ErrUpdateRequired is returned by GetAction when Update has not been
	// called since the last Reset, or the last Update failed.
	ErrUpdateRequired = errors.New("locomotion: update required before get action")

	// ErrLegUnassigned is returned when the sub-controller selected for a
	// leg did not produce an action for it.
	ErrLegUnassigned = errors.New("locomotion: leg has no action")

	// ErrLegOverlap is returned when a sub-controller produced an action for
	// a leg that is not in its phase.
	ErrLegOverlap = errors.New("locomotion: leg assigned by the wrong controller")

	// ErrLegCount is returned when the gait does not describe every leg.
	ErrLegCount = errors.New("locomotion: gait leg count mismatch")

	// ErrBroadcast is returned when a command could not be delivered to every target.
	ErrBroadcast = errors.New("locomotion: broadcast failed")
)

// CollaboratorError wraps a failure raised by one of the controller's collaborators.
type CollaboratorError struct {
	Name string // "gait", "estimator", "swing" or "stance"
	Err  error
}

// Error implements the error interface.
func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("locomotion [%s]: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func wrapCollaborator(name string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Name: name, Err: err}
}
