package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-quadruped/pkg/robot"
)

type fakeSource struct {
	v   robot.Vec3
	yaw float64
}

func (f *fakeSource) BaseVelocity() robot.Vec3     { return f.v }
func (f *fakeSource) BaseRollPitchYaw() robot.Vec3 { return robot.Vec3{0, 0, f.yaw} }

func TestCOMVelocity_Window(t *testing.T) {
	src := &fakeSource{}
	e, err := NewCOMVelocity(src, 3)
	require.NoError(t, err)
	assert.Equal(t, robot.Vec3{}, e.Velocity())

	for _, vx := range []float64{1, 2, 3, 4} {
		src.v = robot.Vec3{vx, 0, 0}
		require.NoError(t, e.Update(0))
	}
	// Oldest sample (1) has left the window.
	assert.InDelta(t, 3.0, e.Velocity()[0], 1e-12)
}

func TestCOMVelocity_BodyFrame(t *testing.T) {
	src := &fakeSource{v: robot.Vec3{0, 1, 0}, yaw: math.Pi / 2}
	e, err := NewCOMVelocity(src, DefaultWindowSize)
	require.NoError(t, err)
	require.NoError(t, e.Update(0))

	v := e.Velocity()
	assert.InDelta(t, 1.0, v[0], 1e-12, "world +y is body +x when facing +y")
	assert.InDelta(t, 0.0, v[1], 1e-12)
}

func TestCOMVelocity_Reset(t *testing.T) {
	src := &fakeSource{v: robot.Vec3{1, 0, 0}}
	e, err := NewCOMVelocity(src, 2)
	require.NoError(t, err)
	require.NoError(t, e.Update(0))
	e.Reset(0)
	assert.Equal(t, robot.Vec3{}, e.Velocity())

	src.v = robot.Vec3{0.5, 0, 0}
	require.NoError(t, e.Update(0))
	assert.InDelta(t, 0.5, e.Velocity()[0], 1e-12)
}

func TestCOMVelocity_Errors(t *testing.T) {
	_, err := NewCOMVelocity(&fakeSource{}, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	e, err := NewCOMVelocity(&fakeSource{v: robot.Vec3{math.NaN(), 0, 0}}, 2)
	require.NoError(t, err)
	assert.ErrorIs(t, e.Update(0), ErrNonFiniteSample)
	assert.Equal(t, robot.Vec3{}, e.Velocity(), "rejected sample must not be stored")
}
