// Package config loads go-quadruped settings from defaults, an optional
// config file, environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/teslashibe/go-quadruped/pkg/gait"
	"github.com/teslashibe/go-quadruped/pkg/robot"
	"github.com/teslashibe/go-quadruped/pkg/swing"
)

// EnvPrefix is prepended to every environment override, e.g.
// QUADRUPED_LOOP_MAX_TIME=20s sets loop.max_time.
const EnvPrefix = "QUADRUPED"

// Config represents the complete go-quadruped configuration
type Config struct {
	Robot     RobotConfig     `mapstructure:"robot"`
	Gait      GaitConfig      `mapstructure:"gait"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Sim       SimConfig       `mapstructure:"sim"`
	Command   CommandConfig   `mapstructure:"command"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	Swing     SwingConfig     `mapstructure:"swing"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

// RobotConfig selects the robot model
type RobotConfig struct {
	// Profile is the robot model name. Options: "a1", "laikago"
	Profile string `mapstructure:"profile"`
}

// GaitConfig selects the gait
type GaitConfig struct {
	// Profile is the gait name. Options: "trot", "fast_trot", "walk"
	Profile string `mapstructure:"profile"`
}

// LoopConfig controls the control loop driver
type LoopConfig struct {
	// MaxTime is the robot time at which the loop stops
	MaxTime time.Duration `mapstructure:"max_time"`
	// Pace is the minimum wall-clock period between cycles (0 runs flat out)
	Pace time.Duration `mapstructure:"pace"`
	// HeartbeatCycles is the debug progress log interval
	HeartbeatCycles int `mapstructure:"heartbeat_cycles"`
}

// SimConfig controls the simulated robot
type SimConfig struct {
	TimeStep     time.Duration `mapstructure:"time_step"`
	ActionRepeat int           `mapstructure:"action_repeat"`
}

// CommandConfig controls the command profile
type CommandConfig struct {
	// ScheduleFile is a YAML anchor table. Empty uses the built-in demo profile.
	ScheduleFile string  `mapstructure:"schedule_file"`
	MaxLinear    float64 `mapstructure:"max_linear"`
	MaxYawRate   float64 `mapstructure:"max_yaw_rate"`
}

// EstimatorConfig controls the velocity estimator
type EstimatorConfig struct {
	WindowSize int `mapstructure:"window_size"`
}

// SwingConfig controls the swing leg controller
type SwingConfig struct {
	FootClearance float64 `mapstructure:"foot_clearance"`
}

// DashboardConfig controls the web dashboard
type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    string `mapstructure:"port"`
}

// LogConfig controls logging
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Robot: RobotConfig{Profile: robot.ProfileA1.String()},
		Gait:  GaitConfig{Profile: gait.ProfileTrot.String()},
		Loop: LoopConfig{
			MaxTime:         50 * time.Second,
			HeartbeatCycles: 1000,
		},
		Sim: SimConfig{
			TimeStep:     robot.DefaultTimeStep,
			ActionRepeat: 1,
		},
		Command: CommandConfig{
			MaxLinear:  2.0,
			MaxYawRate: 3.0,
		},
		Estimator: EstimatorConfig{WindowSize: 20},
		Swing:     SwingConfig{FootClearance: swing.DefaultFootClearance},
		Dashboard: DashboardConfig{
			Enabled: false,
			Port:    "8090",
		},
		Log: LogConfig{Level: "info"},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("robot.profile", defaults.Robot.Profile)
	v.SetDefault("gait.profile", defaults.Gait.Profile)

	v.SetDefault("loop.max_time", defaults.Loop.MaxTime)
	v.SetDefault("loop.pace", defaults.Loop.Pace)
	v.SetDefault("loop.heartbeat_cycles", defaults.Loop.HeartbeatCycles)

	v.SetDefault("sim.time_step", defaults.Sim.TimeStep)
	v.SetDefault("sim.action_repeat", defaults.Sim.ActionRepeat)

	v.SetDefault("command.schedule_file", defaults.Command.ScheduleFile)
	v.SetDefault("command.max_linear", defaults.Command.MaxLinear)
	v.SetDefault("command.max_yaw_rate", defaults.Command.MaxYawRate)

	v.SetDefault("estimator.window_size", defaults.Estimator.WindowSize)
	v.SetDefault("swing.foot_clearance", defaults.Swing.FootClearance)

	v.SetDefault("dashboard.enabled", defaults.Dashboard.Enabled)
	v.SetDefault("dashboard.port", defaults.Dashboard.Port)

	v.SetDefault("log.level", defaults.Log.Level)
}

// New returns a viper instance with defaults and environment overrides
// registered. When configFile is non-empty it is read from fs.
func New(fs afero.Fs, configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetFs(fs)
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// RobotProfile resolves the configured robot model.
func (c *Config) RobotProfile() (robot.Profile, error) {
	return robot.ParseProfile(c.Robot.Profile)
}

// GaitProfile resolves the configured gait.
func (c *Config) GaitProfile() (gait.Profile, error) {
	return gait.ParseProfile(c.Gait.Profile)
}
