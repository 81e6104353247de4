// Package estimator estimates the body's center-of-mass velocity.
package estimator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/teslashibe/go-quadruped/pkg/robot"
)

// DefaultWindowSize is the number of samples averaged by default.
const DefaultWindowSize = 20

var (
	// ErrInvalidWindow is returned for a non-positive window size.
	ErrInvalidWindow = errors.New("estimator: window size must be positive")

	// ErrNonFiniteSample is returned when the sensors report NaN or Inf.
	ErrNonFiniteSample = errors.New("estimator: non-finite velocity sample")
)

// VelocitySource is the sensor subset the estimator reads.
type VelocitySource interface {
	BaseVelocity() robot.Vec3
	BaseRollPitchYaw() robot.Vec3
}

// COMVelocity averages the base velocity over a moving window, expressed in
// the body's yaw-aligned frame.
type COMVelocity struct {
	src VelocitySource

	window []robot.Vec3
	next   int
	count  int
	sum    robot.Vec3
}

// NewCOMVelocity creates an estimator reading from src.
func NewCOMVelocity(src VelocitySource, windowSize int) (*COMVelocity, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, windowSize)
	}
	return &COMVelocity{src: src, window: make([]robot.Vec3, windowSize)}, nil
}

// Reset drops every sample.
func (e *COMVelocity) Reset(time.Duration) {
	for i := range e.window {
		e.window[i] = robot.Vec3{}
	}
	e.next, e.count = 0, 0
	e.sum = robot.Vec3{}
}

// Update takes one sample from the sensors.
func (e *COMVelocity) Update(time.Duration) error {
	v := e.src.BaseVelocity()
	yaw := e.src.BaseRollPitchYaw()[2]
	if !v.IsFinite() || math.IsNaN(yaw) || math.IsInf(yaw, 0) {
		return fmt.Errorf("%w: v=%v yaw=%v", ErrNonFiniteSample, v, yaw)
	}
	body := toBodyFrame(v, yaw)

	if e.count == len(e.window) {
		e.sum = e.sum.Sub(e.window[e.next])
	} else {
		e.count++
	}
	e.window[e.next] = body
	e.sum = e.sum.Add(body)
	e.next = (e.next + 1) % len(e.window)
	return nil
}

// Velocity returns the windowed mean, or zero before the first sample.
func (e *COMVelocity) Velocity() robot.Vec3 {
	if e.count == 0 {
		return robot.Vec3{}
	}
	return e.sum.Scale(1 / float64(e.count))
}

// WindowSize returns the configured window length.
func (e *COMVelocity) WindowSize() int {
	return len(e.window)
}

func toBodyFrame(v robot.Vec3, yaw float64) robot.Vec3 {
	c, s := math.Cos(yaw), math.Sin(yaw)
	return robot.Vec3{c*v[0] + s*v[1], -s*v[0] + c*v[1], v[2]}
}
