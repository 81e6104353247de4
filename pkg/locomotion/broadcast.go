package locomotion

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-quadruped/pkg/command"
	"github.com/teslashibe/go-quadruped/pkg/robot"
)

// Broadcaster pushes one command onto every velocity target.
type Broadcaster struct {
	targets []VelocityTarget
}

// NewBroadcaster creates a broadcaster over targets. Nil targets are skipped.
func NewBroadcaster(targets ...VelocityTarget) *Broadcaster {
	b := &Broadcaster{}
	for _, t := range targets {
		if t != nil {
			b.targets = append(b.targets, t)
		}
	}
	return b
}

// Len returns the number of targets.
func (b *Broadcaster) Len() int {
	return len(b.targets)
}

// Broadcast sets cmd on every target, or on none of them.
// When a target rejects the command, targets already updated are restored
// to the values they held before the call.
func (b *Broadcaster) Broadcast(cmd command.Command) error {
	if err := cmd.Validate(command.Limits{}); err != nil {
		return fmt.Errorf("%w: %w", ErrBroadcast, err)
	}

	type previous struct {
		linear  robot.Vec3
		yawRate float64
	}
	prev := make([]previous, 0, len(b.targets))

	for i, t := range b.targets {
		lin, yaw := t.DesiredVelocity()
		if err := t.SetDesiredVelocity(cmd.Linear, cmd.YawRate); err != nil {
			errs := []error{fmt.Errorf("%w: target %d: %w", ErrBroadcast, i, err)}
			for j := len(prev) - 1; j >= 0; j-- {
				if rerr := b.targets[j].SetDesiredVelocity(prev[j].linear, prev[j].yawRate); rerr != nil {
					errs = append(errs, fmt.Errorf("rollback target %d: %w", j, rerr))
				}
			}
			return errors.Join(errs...)
		}
		prev = append(prev, previous{lin, yaw})
	}
	return nil
}
