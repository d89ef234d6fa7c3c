// Command walksim replays a scenario: it builds the scenario's world, drives a
// simulated agent toward the goal (or runs the scenario script) and reports
// where the agent ended up.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tilewalker/internal/autowalk"
	"tilewalker/internal/config"
	"tilewalker/internal/logging"
	"tilewalker/internal/pathfinding"
	"tilewalker/internal/scenario"
	"tilewalker/internal/scripting"
	"tilewalker/internal/world"
)

type options struct {
	scenarioPath string
	scriptPath   string
	timeout      time.Duration
}

type report struct {
	Location world.Location
	Goal     world.Location
	Reached  bool
	LastStop autowalk.StopReason
	Moves    int
	Turns    int
	Metrics  pathfinding.MetricsSnapshot
}

func main() {
	var (
		cfgPath string
		opts    options
	)
	flag.StringVar(&cfgPath, "config", "", "path to configuration file (JSON or YAML)")
	flag.StringVar(&opts.scenarioPath, "scenario", "", "scenario file to replay")
	flag.StringVar(&opts.scriptPath, "script", "", "script to run instead of the scenario's own")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "how long to wait for the walk")
	flag.Parse()

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Logging, os.Stderr)
	world.SetLockChecks(cfg.Debug.LockChecks)

	if opts.scenarioPath == "" {
		log.Fatal("-scenario is required")
	}

	ctx, cancel := signalContext(log)
	defer cancel()

	rep, err := run(ctx, cfg, opts, log)
	if err != nil {
		log.WithError(err).Fatal("walk simulation failed")
	}
	printReport(os.Stdout, rep)
	if !rep.Reached {
		os.Exit(2)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, log logrus.FieldLogger) (report, error) {
	sc, err := scenario.Load(opts.scenarioPath)
	if err != nil {
		return report{}, err
	}
	m, err := sc.Build()
	if err != nil {
		return report{}, err
	}

	metrics := &pathfinding.NavigatorMetrics{}
	ctx = pathfinding.ContextWithProfiler(ctx, metrics.Profiler())

	sim := autowalk.NewSimAgent(m, sc.AgentState(), cfg, log)
	engine := pathfinding.NewEngine(m, pathfinding.SettingsFromConfig(cfg), log)
	walker := autowalk.NewWalker(engine, sim, sim, cfg.Walker, log)
	driver := autowalk.NewDriver(walker, cfg.Walker)
	driver.OnTick(sim.Advance)

	loopCtx, stop := context.WithCancel(ctx)
	defer func() {
		stop()
		driver.Wait()
	}()
	driver.Start(loopCtx)

	width, height := sc.Size()
	log.WithFields(logrus.Fields{
		"scenario": sc.Name,
		"width":    width,
		"height":   height,
		"start":    sc.AgentState().Location.String(),
		"goal":     sc.GoalLocation().String(),
	}).Info("scenario loaded")

	script, scriptName, err := scriptSource(sc, opts.scriptPath)
	if err != nil {
		return report{}, err
	}
	if script != "" {
		host := scripting.NewHost(driver, m, log)
		value, err := host.Run(ctx, scriptName, script)
		if err != nil {
			return report{}, err
		}
		log.WithField("result", value.String()).Info("script finished")
	} else if err := walk(ctx, driver, sc, opts.timeout); err != nil {
		return report{}, err
	}

	rep := report{Goal: sc.GoalLocation()}
	err = driver.Do(ctx, func(w *autowalk.Walker) {
		rep.Location = w.AgentState().Location
		rep.LastStop = w.Status().LastStop
		rep.Moves = sim.Moves()
		rep.Turns = sim.Turns()
	})
	if err != nil {
		return report{}, err
	}
	rep.Metrics = metrics.Snapshot()
	rep.Reached = world.Chebyshev(rep.Location.Point(), rep.Goal.Point()) <= sc.Goal.Distance
	return rep, nil
}

func walk(ctx context.Context, driver *autowalk.Driver, sc *scenario.Scenario, timeout time.Duration) error {
	goal := sc.GoalLocation()
	target := autowalk.Target{X: goal.X, Y: goal.Y, Z: int(goal.Z), Distance: sc.Goal.Distance}
	var walkErr error
	if err := driver.Do(ctx, func(w *autowalk.Walker) { walkErr = w.WalkTo(ctx, target) }); err != nil {
		return err
	}
	if walkErr != nil {
		return walkErr
	}
	if _, err := driver.WaitIdle(ctx, timeout); err != nil {
		return err
	}
	return nil
}

func scriptSource(sc *scenario.Scenario, path string) (string, string, error) {
	if path == "" {
		return sc.Script, sc.Name + ".js", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read script: %w", err)
	}
	return string(data), path, nil
}

func printReport(out io.Writer, rep report) {
	fmt.Fprintln(out, "== Walk Simulation ==")
	fmt.Fprintf(out, "Goal: %s\n", rep.Goal)
	fmt.Fprintf(out, "Final location: %s\n", rep.Location)
	fmt.Fprintf(out, "Reached: %t (last stop: %s)\n", rep.Reached, rep.LastStop)
	fmt.Fprintf(out, "Moves: %d, Turns: %d\n", rep.Moves, rep.Turns)
	fmt.Fprintf(out, "Searches: %d (%d found), nodes expanded: %d\n",
		rep.Metrics.Searches, rep.Metrics.SearchesFound, rep.Metrics.NodesExpanded)
}

func signalContext(log logrus.FieldLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			return
		}

		// Ensure the process terminates if shutdown stalls.
		time.AfterFunc(10*time.Second, func() {
			log.Error("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
