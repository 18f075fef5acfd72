package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/tinythings/alfad/internal/builtin"
	"github.com/tinythings/alfad/internal/config"
	"github.com/tinythings/alfad/internal/configwatch"
	"github.com/tinythings/alfad/internal/control"
	"github.com/tinythings/alfad/internal/logging"
	"github.com/tinythings/alfad/internal/ordering"
	"github.com/tinythings/alfad/internal/reaper"
	"github.com/tinythings/alfad/internal/reboot"
	"github.com/tinythings/alfad/internal/supervisor"
	"github.com/tinythings/alfad/internal/task"
	"github.com/tinythings/alfad/internal/telemetry"
)

// runInit is the PID-1 boot sequence: load configuration, build the
// dependency-ordered context map, start the control plane, and drive every
// task until a shutdown signal arrives.
//
// Grounded in the original implementation's core/src/init.rs Alfad::run:
// install a signal handler before anything else, log the task count once
// parsed, then spawn every task's driver and block. SMOL_THREADS (the
// original's async-executor thread-pool size knob, defaulted to 8 if unset)
// is carried over as the GOMAXPROCS setting for the shared cooperative
// runtime §5 describes, rather than dropped for lack of a literal
// async-executor equivalent.
func runInit(args []string) error {
	applyThreadBudget()

	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	configDir := fs.String("config", config.DirConfigD, "task definition directory")
	cachePath := fs.String("cache", config.DirConfig+"/"+config.FileConfigCache, "compiled config cache path")
	level := fs.String("log-level", "info", "trace|debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logging.New(logging.Options{Level: *level})
	log.Info().Msg("starting alfad")

	// The ctl::daemon builtin is resolved by name while normalizing task
	// files, before the task map it ultimately acts on exists. Executor is
	// built now and Bind is called once the map is ready; Apply is never
	// reached before then, since the daemon builtin only starts once the
	// supervisor starts driving tasks.
	executor := control.NewExecutor(log)
	builtins := builtin.Registry(builtin.DefaultCtlPipePath, log, executor)

	result, fromCache := loadConfig(log, *configDir, *cachePath, builtins)
	logAll(log, "config warning", result.Warnings)
	log.Info().Int("tasks", len(result.Configs)).Bool("from_cache", fromCache).Msg("configuration loaded")

	tasks := buildContextMap(log, result)
	sup := supervisor.New(log, tasks)
	executor.Bind(tasks, sup, reboot.NewController())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	go reaper.Run(ctx, log)
	go telemetry.NewMonitor(log, tasks, 0).Run(ctx)

	if watcher, err := configwatch.New(*configDir, log); err != nil {
		log.Warn().Err(err).Msg("config drift watcher unavailable")
	} else {
		go watcher.Run()
		go func() { <-ctx.Done(); _ = watcher.Close() }()
	}

	sup.Run(ctx)
	sup.Wait()
	log.Info().Msg("all tasks concluded, exiting")
	return nil
}

// applyThreadBudget sets SMOL_THREADS to 8 if unset (matching the
// original's default) and applies it as GOMAXPROCS, so the env var
// documented in spec §6 has an observable effect on this runtime too.
func applyThreadBudget() {
	v := os.Getenv("SMOL_THREADS")
	if v == "" {
		v = "8"
		_ = os.Setenv("SMOL_THREADS", v)
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		runtime.GOMAXPROCS(n)
	}
}

// loadConfig prefers the compiled cache, falling back to the text
// directory on any read or version mismatch. The cache is rejected
// wholesale, never partially trusted, per config.ReadCache's contract.
func loadConfig(log zerolog.Logger, configDir, cachePath string, builtins config.Builtins) (config.LoadResult, bool) {
	if files, err := config.ReadCache(cachePath, config.CacheVersion); err == nil {
		return config.LoadFiles(files, builtins), true
	} else {
		log.Debug().Err(err).Str("path", cachePath).Msg("compiled cache unavailable, reading config directory")
	}
	return config.LoadDir(configDir, builtins), false
}

func buildContextMap(log zerolog.Logger, result config.LoadResult) *task.Map {
	configs, warnings := ordering.SynthesizeMarkers(result.Configs)
	logAll(log, "marker synthesis warning", warnings)

	configs, warnings = ordering.ResolveBefore(configs, result.Before)
	logAll(log, "before-edge warning", warnings)

	cyclic, warnings := ordering.Validate(configs)
	for name := range cyclic {
		log.Warn().Str("task", name).Msg("task participates in a dependency cycle; spawned last, unordered")
	}
	logAll(log, "cycle warning", warnings)

	sorted := ordering.TopologicalSort(configs)
	return task.NewMap(sorted)
}

func logAll(log zerolog.Logger, msg string, errs []error) {
	for _, e := range errs {
		log.Warn().Err(e).Msg(msg)
	}
}
