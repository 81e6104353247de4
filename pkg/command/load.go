package command

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// scheduleFile is the YAML layout of a command schedule:
//
//	anchors:
//	  - {at: 0, vx: 0, vy: 0, vz: 0, yaw_rate: 0}
//	  - {at: 5, yaw_rate: 0.4}
//
// Times are seconds since reset. Omitted components are zero.
type scheduleFile struct {
	Scale   float64        `yaml:"scale"`
	Anchors []anchorRecord `yaml:"anchors"`
}

type anchorRecord struct {
	At      float64 `yaml:"at"`
	VX      float64 `yaml:"vx"`
	VY      float64 `yaml:"vy"`
	VZ      float64 `yaml:"vz"`
	YawRate float64 `yaml:"yaw_rate"`
}

// LoadSchedule decodes a YAML schedule. A non-zero top-level scale multiplies
// every command.
func LoadSchedule(r io.Reader) (*Schedule, error) {
	var f scheduleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidSchedule, err)
	}

	anchors := make([]Anchor, len(f.Anchors))
	for i, a := range f.Anchors {
		if math.IsNaN(a.At) || math.IsInf(a.At, 0) {
			return nil, fmt.Errorf("%w: anchor %d has non-finite time", ErrInvalidSchedule, i)
		}
		anchors[i] = Anchor{
			At:      time.Duration(a.At * float64(time.Second)),
			Command: New(a.VX, a.VY, a.VZ, a.YawRate),
		}
	}

	s, err := NewSchedule(anchors...)
	if err != nil {
		return nil, err
	}
	if f.Scale != 0 {
		return s.Scale(f.Scale)
	}
	return s, nil
}

// LoadScheduleFile reads a YAML schedule from path on fs.
func LoadScheduleFile(fs afero.Fs, path string) (*Schedule, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schedule: %w", err)
	}
	defer file.Close()

	s, err := LoadSchedule(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
