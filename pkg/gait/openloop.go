package gait

import (
	"math"
	"time"
)

// OpenLoop is a periodic gait generator that ignores foot contact.
//
// Each leg runs a full cycle of stance/duty seconds. A leg that starts in
// stance spends the first duty fraction of its cycle in stance and the rest in
// swing; a leg that starts in swing spends the first 1-duty fraction in swing.
type OpenLoop struct {
	params Params

	fullCycle []float64 // seconds
	ratio     []float64 // fraction of the cycle spent in the initial state

	states []LegState
	phases []float64
}

// NewOpenLoop creates a generator from validated parameters.
func NewOpenLoop(p Params) (*OpenLoop, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := p.NumLegs()
	g := &OpenLoop{
		params:    p,
		fullCycle: make([]float64, n),
		ratio:     make([]float64, n),
		states:    make([]LegState, n),
		phases:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		g.fullCycle[i] = p.StanceDurations[i].Seconds() / p.DutyFactors[i]
		if p.InitialStates[i] == Swing {
			g.ratio[i] = 1 - p.DutyFactors[i]
		} else {
			g.ratio[i] = p.DutyFactors[i]
		}
	}
	g.Reset(0)
	return g, nil
}

// Reset restores the initial leg-state table and zeroes every phase.
func (g *OpenLoop) Reset(time.Duration) {
	copy(g.states, g.params.InitialStates)
	for i := range g.phases {
		g.phases[i] = 0
	}
}

// Update computes each leg's state and normalized phase at t since reset.
func (g *OpenLoop) Update(t time.Duration) error {
	now := t.Seconds()
	for i := range g.states {
		full := g.fullCycle[i]
		augmented := now + g.params.InitialPhases[i]*full
		phase := math.Mod(augmented, full) / full
		if phase < 0 {
			phase++
		}

		ratio := g.ratio[i]
		if phase < ratio {
			g.states[i] = g.params.InitialStates[i]
			g.phases[i] = phase / ratio
		} else {
			g.states[i] = g.params.InitialStates[i].Opposite()
			g.phases[i] = (phase - ratio) / (1 - ratio)
		}
	}
	return nil
}

// LegStates returns a copy of the current per-leg states.
func (g *OpenLoop) LegStates() []LegState {
	return append([]LegState(nil), g.states...)
}

// NormalizedPhases returns each leg's progress through its current state, in [0, 1).
func (g *OpenLoop) NormalizedPhases() []float64 {
	return append([]float64(nil), g.phases...)
}

// StanceDurations returns the configured stance duration per leg.
func (g *OpenLoop) StanceDurations() []time.Duration {
	return append([]time.Duration(nil), g.params.StanceDurations...)
}

// SwingDurations returns the swing duration per leg.
func (g *OpenLoop) SwingDurations() []time.Duration {
	out := make([]time.Duration, len(g.params.StanceDurations))
	for i, st := range g.params.StanceDurations {
		d := g.params.DutyFactors[i]
		out[i] = time.Duration(math.Round(float64(st) * (1 - d) / d))
	}
	return out
}
