package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/teslashibe/go-quadruped/internal/config"
	"github.com/teslashibe/go-quadruped/internal/log"
	"github.com/teslashibe/go-quadruped/pkg/command"
	"github.com/teslashibe/go-quadruped/pkg/estimator"
	"github.com/teslashibe/go-quadruped/pkg/gait"
	"github.com/teslashibe/go-quadruped/pkg/locomotion"
	"github.com/teslashibe/go-quadruped/pkg/loop"
	"github.com/teslashibe/go-quadruped/pkg/robot"
	"github.com/teslashibe/go-quadruped/pkg/stance"
	"github.com/teslashibe/go-quadruped/pkg/swing"
	"github.com/teslashibe/go-quadruped/pkg/web"
)

// stack is everything one run needs, wired from configuration.
type stack struct {
	sim         *robot.Sim
	controller  *locomotion.Controller
	broadcaster *locomotion.Broadcaster
	generator   *command.Override
	limits      command.Limits
}

func build(fs afero.Fs, cfg *config.Config, logger *slog.Logger) (*stack, error) {
	rp, err := cfg.RobotProfile()
	if err != nil {
		return nil, err
	}
	gp, err := cfg.GaitProfile()
	if err != nil {
		return nil, err
	}
	spec := rp.Spec()
	limits := command.Limits{MaxLinear: cfg.Command.MaxLinear, MaxYawRate: cfg.Command.MaxYawRate}

	sim := robot.NewSim(robot.SimConfig{
		Profile:      rp,
		TimeStep:     cfg.Sim.TimeStep,
		ActionRepeat: cfg.Sim.ActionRepeat,
		Logger:       logger,
	})

	g, err := gait.NewOpenLoop(gp.Params())
	if err != nil {
		return nil, fmt.Errorf("gait: %w", err)
	}
	est, err := estimator.NewCOMVelocity(sim, cfg.Estimator.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("estimator: %w", err)
	}
	sw, err := swing.NewRaibert(swing.Config{
		Robot:         sim,
		Gait:          g,
		Estimator:     est,
		Limits:        limits,
		BodyHeight:    spec.BodyHeight,
		FootClearance: cfg.Swing.FootClearance,
		Gains:         spec.Gains,
	})
	if err != nil {
		return nil, fmt.Errorf("swing: %w", err)
	}
	st, err := stance.NewTorque(stance.Config{
		Robot:       sim,
		Gait:        g,
		Estimator:   est,
		Limits:      limits,
		BodyHeight:  spec.BodyHeight,
		BodyMass:    spec.BodyMass,
		BodyInertia: spec.BodyInertia,
		MaxTorque:   spec.MaxTorque,
	})
	if err != nil {
		return nil, fmt.Errorf("stance: %w", err)
	}
	ctrl, err := locomotion.NewController(locomotion.Config{
		Clock:     sim,
		Gait:      g,
		Estimator: est,
		Swing:     sw,
		Stance:    st,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	var schedule *command.Schedule
	if path := cfg.Command.ScheduleFile; path != "" {
		if schedule, err = command.LoadScheduleFile(fs, path); err != nil {
			return nil, err
		}
	} else {
		schedule = command.DefaultSchedule(spec.VelocityMultiplier)
	}

	return &stack{
		sim:         sim,
		controller:  ctrl,
		broadcaster: locomotion.NewBroadcaster(ctrl.Targets()...),
		generator:   command.NewOverride(schedule, limits),
		limits:      limits,
	}, nil
}

// run builds the stack from files on fs, optionally starts the dashboard, and drives the loop
// until the time bound, a failure, or ctx cancellation.
func run(ctx context.Context, fs afero.Fs, cfg *config.Config, logger *slog.Logger) (loop.Summary, error) {
	s, err := build(fs, cfg, logger)
	if err != nil {
		return loop.Summary{}, err
	}

	fmt.Println()
	fmt.Println("🐕 Quadruped locomotion v" + version)
	fmt.Printf("   robot=%s gait=%s max_time=%v\n", cfg.Robot.Profile, cfg.Gait.Profile, cfg.Loop.MaxTime)
	fmt.Println()

	loopCfg := loop.Config{
		MaxTime:         cfg.Loop.MaxTime,
		Pace:            cfg.Loop.Pace,
		HeartbeatCycles: cfg.Loop.HeartbeatCycles,
		Logger:          logger,
	}

	if cfg.Dashboard.Enabled {
		dash := web.NewServer(web.Config{
			Port:     cfg.Dashboard.Port,
			Version:  version,
			Limits:   s.limits,
			Override: s.generator,
			Logger:   logger,
		})
		dash.StartAsync()
		defer func() {
			if err := dash.Shutdown(5 * time.Second); err != nil {
				log.Warn("dashboard shutdown", "error", err)
			}
		}()
		loopCfg.Observer = dash.ObserveCycle
		loopCfg.StateObserver = dash.ObserveState
	}

	d, err := loop.New(loopCfg, s.sim, s.sim, s.generator, s.broadcaster, s.controller)
	if err != nil {
		return loop.Summary{}, err
	}
	return d.Run(ctx)
}
