package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/teslashibe/go-quadruped/pkg/gait"
	"github.com/teslashibe/go-quadruped/pkg/robot"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "loop.max_time")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if _, err := robot.ParseProfile(c.Robot.Profile); err != nil {
		errs = append(errs, ValidationError{"robot.profile", c.Robot.Profile, "unknown robot profile"})
	}
	if _, err := gait.ParseProfile(c.Gait.Profile); err != nil {
		errs = append(errs, ValidationError{"gait.profile", c.Gait.Profile, "unknown gait profile"})
	}

	errs = append(errs, c.validateLoop()...)
	errs = append(errs, c.validateControl()...)

	if c.Dashboard.Enabled && c.Dashboard.Port == "" {
		errs = append(errs, ValidationError{"dashboard.port", c.Dashboard.Port, "must be set when the dashboard is enabled"})
	}
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Log.Level)) {
		errs = append(errs, ValidationError{"log.level", c.Log.Level, "must be one of " + strings.Join(ValidLogLevels(), ", ")})
	}

	return errs
}

func (c *Config) validateLoop() []ValidationError {
	var errs []ValidationError
	if c.Loop.MaxTime <= 0 {
		errs = append(errs, ValidationError{"loop.max_time", c.Loop.MaxTime, "must be positive"})
	}
	if c.Loop.Pace < 0 {
		errs = append(errs, ValidationError{"loop.pace", c.Loop.Pace, "must not be negative"})
	}
	if c.Loop.HeartbeatCycles < 0 {
		errs = append(errs, ValidationError{"loop.heartbeat_cycles", c.Loop.HeartbeatCycles, "must not be negative"})
	}
	if c.Sim.TimeStep <= 0 {
		errs = append(errs, ValidationError{"sim.time_step", c.Sim.TimeStep, "must be positive"})
	}
	if c.Sim.ActionRepeat < 1 {
		errs = append(errs, ValidationError{"sim.action_repeat", c.Sim.ActionRepeat, "must be at least 1"})
	}
	return errs
}

func (c *Config) validateControl() []ValidationError {
	var errs []ValidationError
	if c.Command.MaxLinear <= 0 {
		errs = append(errs, ValidationError{"command.max_linear", c.Command.MaxLinear, "must be positive"})
	}
	if c.Command.MaxYawRate <= 0 {
		errs = append(errs, ValidationError{"command.max_yaw_rate", c.Command.MaxYawRate, "must be positive"})
	}
	if c.Estimator.WindowSize < 1 {
		errs = append(errs, ValidationError{"estimator.window_size", c.Estimator.WindowSize, "must be at least 1"})
	}
	if c.Swing.FootClearance <= 0 {
		errs = append(errs, ValidationError{"swing.foot_clearance", c.Swing.FootClearance, "must be positive"})
	}
	return errs
}
