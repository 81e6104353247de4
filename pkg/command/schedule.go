package command

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Generator produces the command for a point in time since reset.
type Generator interface {
	Generate(t time.Duration) Command
}

// Anchor is one breakpoint of a step-hold schedule.
type Anchor struct {
	At      time.Duration
	Command Command
}

// Schedule is an immutable step-hold command table.
//
// The command at time t is the one at the latest anchor whose time is <= t.
// Past the last anchor its value holds indefinitely. Before the first anchor
// (including negative t) the first anchor's value is used.
type Schedule struct {
	anchors []Anchor
}

// NewSchedule builds a schedule from anchors given in strictly increasing time order.
func NewSchedule(anchors ...Anchor) (*Schedule, error) {
	if len(anchors) == 0 {
		return nil, fmt.Errorf("%w: no anchors", ErrInvalidSchedule)
	}
	for i, a := range anchors {
		if a.At < 0 {
			return nil, fmt.Errorf("%w: anchor %d at negative time %v", ErrInvalidSchedule, i, a.At)
		}
		if i > 0 && a.At <= anchors[i-1].At {
			return nil, fmt.Errorf("%w: anchor %d at %v is not after %v", ErrInvalidSchedule, i, a.At, anchors[i-1].At)
		}
		if err := a.Command.Validate(Limits{}); err != nil {
			return nil, fmt.Errorf("%w: anchor %d: %v", ErrInvalidSchedule, i, err)
		}
	}
	return &Schedule{anchors: append([]Anchor(nil), anchors...)}, nil
}

// MustSchedule is like NewSchedule but panics on error. For static tables only.
func MustSchedule(anchors ...Anchor) *Schedule {
	s, err := NewSchedule(anchors...)
	if err != nil {
		panic(err)
	}
	return s
}

// Generate returns the step-hold command at t.
func (s *Schedule) Generate(t time.Duration) Command {
	// Index of the first anchor strictly after t; the active anchor precedes it.
	i := sort.Search(len(s.anchors), func(i int) bool { return s.anchors[i].At > t })
	if i == 0 {
		return s.anchors[0].Command
	}
	return s.anchors[i-1].Command
}

// Anchors returns a copy of the anchor table.
func (s *Schedule) Anchors() []Anchor {
	return append([]Anchor(nil), s.anchors...)
}

// Scale returns a new schedule with every command multiplied by m.
// A non-finite m, or one that makes a command non-finite, is rejected.
func (s *Schedule) Scale(m float64) (*Schedule, error) {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return nil, fmt.Errorf("%w: non-finite scale %v", ErrInvalidSchedule, m)
	}
	out := make([]Anchor, len(s.anchors))
	for i, a := range s.anchors {
		out[i] = Anchor{At: a.At, Command: a.Command.Scale(m)}
	}
	return NewSchedule(out...)
}

// Demo profile speeds before the robot-specific multiplier is applied.
const (
	demoForward = 0.6 // m/s
	demoLateral = 0.2 // m/s
	demoTurn    = 0.8 // rad/s
)

// DefaultSchedule returns the demo profile: stand, turn left, walk forward,
// turn right, side-step right, stand, turn left. Speeds are scaled by m.
func DefaultSchedule(m float64) *Schedule {
	vx, vy, wz := demoForward*m, demoLateral*m, demoTurn*m
	return MustSchedule(
		Anchor{0, New(0, 0, 0, 0)},
		Anchor{5 * time.Second, New(0, 0, 0, wz)},
		Anchor{10 * time.Second, New(vx, 0, 0, 0)},
		Anchor{15 * time.Second, New(0, 0, 0, -wz)},
		Anchor{20 * time.Second, New(0, -vy, 0, 0)},
		Anchor{25 * time.Second, New(0, 0, 0, 0)},
		Anchor{30 * time.Second, New(0, 0, 0, wz)},
	)
}

// Constant is a generator that always returns the same command.
type Constant Command

// Generate returns the constant command.
func (c Constant) Generate(time.Duration) Command {
	return Command(c)
}

// Override lets an operator temporarily replace a base generator's command.
// It is safe to set from another goroutine while the control loop generates.
type Override struct {
	base   Generator
	limits Limits

	mu      sync.Mutex
	cmd     Command
	hold    time.Duration
	pending bool          // set but not yet anchored to loop time
	until   time.Duration // loop time the active override expires at
	active  bool
}

// NewOverride wraps base. Operator commands are validated against limits.
func NewOverride(base Generator, limits Limits) *Override {
	return &Override{base: base, limits: limits}
}

// Set installs an operator command for hold, measured in loop time from the
// next Generate call. A non-positive hold keeps it until Clear.
func (o *Override) Set(cmd Command, hold time.Duration) error {
	if err := cmd.Validate(o.limits); err != nil {
		return err
	}
	o.mu.Lock()
	o.cmd = cmd
	o.hold = hold
	o.pending = true
	o.active = true
	o.mu.Unlock()
	return nil
}

// Clear removes any operator command.
func (o *Override) Clear() {
	o.mu.Lock()
	o.active = false
	o.pending = false
	o.mu.Unlock()
}

// Active reports whether an operator command is in effect.
func (o *Override) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Generate returns the operator command while it is active, the base command otherwise.
func (o *Override) Generate(t time.Duration) Command {
	o.mu.Lock()
	if o.active && o.pending {
		o.pending = false
		if o.hold > 0 {
			o.until = t + o.hold
		} else {
			o.until = -1
		}
	}
	if o.active && o.until >= 0 && t >= o.until {
		o.active = false
	}
	if o.active {
		cmd := o.cmd
		o.mu.Unlock()
		return cmd
	}
	o.mu.Unlock()
	return o.base.Generate(t)
}
