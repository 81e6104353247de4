// locomotion runs the quadruped locomotion control loop against the
// simulated robot, optionally serving a live dashboard.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-quadruped/internal/config"
	"github.com/teslashibe/go-quadruped/internal/log"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"max-time":  "loop.max_time",
	"robot":     "robot.profile",
	"gait":      "gait.profile",
	"schedule":  "command.schedule_file",
	"dashboard": "dashboard.enabled",
	"port":      "dashboard.port",
	"log-level": "log.level",
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "locomotion",
		Short: "Run the quadruped locomotion control loop",
		Long: `locomotion drives a simulated quadruped through a timed command profile:
each cycle it generates a velocity command, broadcasts it to the swing and
stance controllers, composes their leg actions and steps the robot.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs := afero.NewOsFs()
			v, err := config.New(fs, cfgFile)
			if err != nil {
				return err
			}
			for flag, key := range flagKeys {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			cfg, err := config.Load(v)
			if err != nil {
				fmt.Fprintln(os.Stderr, "❌ Invalid configuration:")
				fmt.Fprintln(os.Stderr, err)
				return err
			}

			logger := log.Init(cfg.Log.Level)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sum, err := run(ctx, fs, cfg, logger)
			fmt.Printf("\n📊 %d cycles, t=%v, wall=%v\n", sum.Cycles, sum.EndTime, sum.Wall.Round(time.Millisecond))
			if errors.Is(err, context.Canceled) {
				log.Info("stopped by signal", "cycles", sum.Cycles)
				fmt.Println("👋 Stopped")
				return nil
			}
			if err != nil {
				log.Error("locomotion failed", "error", err)
				fmt.Fprintf(os.Stderr, "❌ %v\n", err)
				return err
			}
			fmt.Println("✅ Done")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (YAML or TOML)")
	flags.Duration("max-time", defaults.Loop.MaxTime, "robot time at which the loop stops")
	flags.String("robot", defaults.Robot.Profile, "robot profile (a1, laikago)")
	flags.String("gait", defaults.Gait.Profile, "gait profile (trot, fast_trot, walk)")
	flags.String("schedule", "", "YAML command schedule (default: built-in demo profile)")
	flags.Bool("dashboard", defaults.Dashboard.Enabled, "serve the web dashboard")
	flags.String("port", defaults.Dashboard.Port, "dashboard port")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")

	return cmd
}
