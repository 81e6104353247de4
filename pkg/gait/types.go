// Package gait schedules the swing/stance pattern of each leg over time.
package gait

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LegState is the phase a leg is in.
type LegState int

const (
	Swing LegState = iota
	Stance
)

// String returns "swing" or "stance".
func (s LegState) String() string {
	switch s {
	case Swing:
		return "swing"
	case Stance:
		return "stance"
	default:
		return fmt.Sprintf("legstate(%d)", int(s))
	}
}

// Opposite returns the other phase.
func (s LegState) Opposite() LegState {
	if s == Swing {
		return Stance
	}
	return Swing
}

// MarshalText encodes the state by name for JSON telemetry.
func (s LegState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrInvalidParams is returned when gait parameters are inconsistent.
	ErrInvalidParams = errors.New("gait: invalid parameters")

	// ErrUnknownProfile is returned when a gait profile name is not recognised.
	ErrUnknownProfile = errors.New("gait: unknown profile")
)

// Params describes an open-loop periodic gait, one entry per leg.
type Params struct {
	StanceDurations []time.Duration
	// DutyFactors is the fraction of a full cycle each leg spends in stance.
	DutyFactors []float64
	// InitialPhases is each leg's offset into its full cycle, in [0, 1).
	InitialPhases []float64
	// InitialStates is the phase each leg starts the cycle in.
	InitialStates []LegState
}

// NumLegs returns the number of legs the parameters describe.
func (p Params) NumLegs() int {
	return len(p.StanceDurations)
}

// Validate checks the parameters for consistency.
func (p Params) Validate() error {
	n := len(p.StanceDurations)
	if n == 0 {
		return fmt.Errorf("%w: no legs", ErrInvalidParams)
	}
	if len(p.DutyFactors) != n || len(p.InitialPhases) != n || len(p.InitialStates) != n {
		return fmt.Errorf("%w: per-leg slices differ in length", ErrInvalidParams)
	}
	for i := 0; i < n; i++ {
		if p.StanceDurations[i] <= 0 {
			return fmt.Errorf("%w: leg %d stance duration %v", ErrInvalidParams, i, p.StanceDurations[i])
		}
		if d := p.DutyFactors[i]; !(d > 0 && d < 1) {
			return fmt.Errorf("%w: leg %d duty factor %v not in (0, 1)", ErrInvalidParams, i, d)
		}
		if ph := p.InitialPhases[i]; !(ph >= 0 && ph < 1) {
			return fmt.Errorf("%w: leg %d initial phase %v not in [0, 1)", ErrInvalidParams, i, ph)
		}
		if s := p.InitialStates[i]; s != Swing && s != Stance {
			return fmt.Errorf("%w: leg %d initial state %v", ErrInvalidParams, i, s)
		}
	}
	return nil
}

// Profile selects a predefined gait. It is resolved once at startup.
type Profile int

const (
	ProfileTrot Profile = iota
	ProfileFastTrot
	ProfileWalk
)

// String returns the configuration name of the profile.
func (p Profile) String() string {
	switch p {
	case ProfileTrot:
		return "trot"
	case ProfileFastTrot:
		return "fast_trot"
	case ProfileWalk:
		return "walk"
	default:
		return fmt.Sprintf("gait(%d)", int(p))
	}
}

// Profiles lists every predefined gait.
func Profiles() []Profile {
	return []Profile{ProfileTrot, ProfileFastTrot, ProfileWalk}
}

// ParseProfile resolves a gait profile by name (case-insensitive).
func ParseProfile(name string) (Profile, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, p := range Profiles() {
		if p.String() == n {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
}

// Params returns the four-leg parameters of the profile.
func (p Profile) Params() Params {
	switch p {
	case ProfileFastTrot:
		// For speeds above ~1.5 m/s.
		tp := ProfileTrot.Params()
		tp.StanceDurations = repeat(130*time.Millisecond)
		return tp
	case ProfileWalk:
		return Params{
			StanceDurations: repeat(600 * time.Millisecond),
			DutyFactors:     []float64{0.75, 0.75, 0.75, 0.75},
			InitialPhases:   []float64{0, 0.5, 0.25, 0.75},
			InitialStates:   []LegState{Stance, Stance, Stance, Stance},
		}
	default:
		return Params{
			StanceDurations: repeat(300 * time.Millisecond),
			DutyFactors:     []float64{0.6, 0.6, 0.6, 0.6},
			InitialPhases:   []float64{0.9, 0, 0, 0.9},
			InitialStates:   []LegState{Swing, Stance, Stance, Swing},
		}
	}
}

func repeat(d time.Duration) []time.Duration {
	return []time.Duration{d, d, d, d}
}
