package gait

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

func newTrot(t *testing.T) *OpenLoop {
	t.Helper()
	g, err := NewOpenLoop(ProfileTrot.Params())
	require.NoError(t, err)
	return g
}

func TestOpenLoop_ResetRestoresInitialStates(t *testing.T) {
	g := newTrot(t)
	assert.Equal(t, []LegState{Swing, Stance, Stance, Swing}, g.LegStates())
	assert.Equal(t, []float64{0, 0, 0, 0}, g.NormalizedPhases())

	require.NoError(t, g.Update(350*time.Millisecond))
	g.Reset(0)
	assert.Equal(t, []LegState{Swing, Stance, Stance, Swing}, g.LegStates())
	assert.Equal(t, []float64{0, 0, 0, 0}, g.NormalizedPhases())
}

func TestOpenLoop_ResetIdempotent(t *testing.T) {
	g := newTrot(t)
	g.Reset(0)
	once := g.LegStates()
	g.Reset(0)
	assert.Equal(t, once, g.LegStates())
}

func TestOpenLoop_TrotPhases(t *testing.T) {
	g := newTrot(t)

	// Full cycle is 0.5s; swing-initial legs swing for the first 40%.
	require.NoError(t, g.Update(100*time.Millisecond))
	assert.Equal(t, []LegState{Swing, Stance, Stance, Swing}, g.LegStates())
	ph := g.NormalizedPhases()
	assert.InDelta(t, 0.25, ph[0], tol)
	assert.InDelta(t, 1.0/3.0, ph[1], tol)

	require.NoError(t, g.Update(350*time.Millisecond))
	assert.Equal(t, []LegState{Stance, Swing, Swing, Stance}, g.LegStates())
	ph = g.NormalizedPhases()
	assert.InDelta(t, 1.0/3.0, ph[0], tol)
	assert.InDelta(t, 0.25, ph[1], tol)
}

func TestOpenLoop_DiagonalPairsMatch(t *testing.T) {
	g := newTrot(t)
	for ms := 0; ms < 2000; ms += 7 {
		require.NoError(t, g.Update(time.Duration(ms)*time.Millisecond))
		s := g.LegStates()
		assert.Equal(t, s[0], s[3], "t=%dms", ms)
		assert.Equal(t, s[1], s[2], "t=%dms", ms)
		for _, p := range g.NormalizedPhases() {
			assert.GreaterOrEqual(t, p, 0.0)
			assert.Less(t, p, 1.0)
		}
	}
}

func TestOpenLoop_Periodic(t *testing.T) {
	g := newTrot(t)
	require.NoError(t, g.Update(120*time.Millisecond))
	first := g.LegStates()
	require.NoError(t, g.Update(620*time.Millisecond))
	assert.Equal(t, first, g.LegStates())
}

func TestOpenLoop_WalkHasThreeStanceLegsMostly(t *testing.T) {
	g, err := NewOpenLoop(ProfileWalk.Params())
	require.NoError(t, err)

	for ms := 10; ms < 800; ms += 40 {
		require.NoError(t, g.Update(time.Duration(ms)*time.Millisecond))
		swing := 0
		for _, s := range g.LegStates() {
			if s == Swing {
				swing++
			}
		}
		assert.LessOrEqual(t, swing, 1, "walk should never lift two legs at t=%dms", ms)
	}
}

func TestOpenLoop_SwingDurations(t *testing.T) {
	g := newTrot(t)
	for _, d := range g.SwingDurations() {
		assert.Equal(t, 200*time.Millisecond, d)
	}
	assert.Equal(t, 300*time.Millisecond, g.StanceDurations()[0])
}

func TestParams_Validate(t *testing.T) {
	good := ProfileTrot.Params()
	require.NoError(t, good.Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"no legs", func(p *Params) { *p = Params{} }},
		{"length mismatch", func(p *Params) { p.DutyFactors = p.DutyFactors[:3] }},
		{"zero stance", func(p *Params) { p.StanceDurations[1] = 0 }},
		{"duty one", func(p *Params) { p.DutyFactors[0] = 1 }},
		{"duty zero", func(p *Params) { p.DutyFactors[0] = 0 }},
		{"phase one", func(p *Params) { p.InitialPhases[2] = 1 }},
		{"bad state", func(p *Params) { p.InitialStates[3] = LegState(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ProfileTrot.Params()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
			_, err := NewOpenLoop(p)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestParseProfile(t *testing.T) {
	for _, p := range Profiles() {
		got, err := ParseProfile(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
		assert.NoError(t, p.Params().Validate())
	}
	_, err := ParseProfile("gallop")
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestLegState_JSON(t *testing.T) {
	data, err := json.Marshal([]LegState{Swing, Stance})
	require.NoError(t, err)
	assert.JSONEq(t, `["swing","stance"]`, string(data))
	assert.Equal(t, Stance, Swing.Opposite())
	assert.Equal(t, Swing, Stance.Opposite())
}
