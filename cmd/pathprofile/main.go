// Command pathprofile measures the pathfinder on generated terrain.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"tilewalker/internal/config"
	"tilewalker/internal/logging"
	"tilewalker/internal/pathfinding"
	"tilewalker/internal/terrain"
	"tilewalker/internal/world"
)

type options struct {
	requests    int
	concurrency int
	size        int
	span        int
	distance    int
	timeout     time.Duration
	seed        int64
	loadPath    string
	savePath    string
}

type pathJob struct {
	start world.Location
	goal  world.Location
}

type summary struct {
	Requests   int
	Successes  int64
	Failures   int64
	Timeouts   int64
	StepsTotal int64
	RouteTime  time.Duration
	WallTime   time.Duration
	Columns    int
	Walls      int
	Stairs     int
	Metrics    pathfinding.MetricsSnapshot
}

func main() {
	var (
		cfgPath string
		opts    options
	)
	flag.StringVar(&cfgPath, "config", "", "path to configuration file (JSON or YAML)")
	flag.IntVar(&opts.requests, "requests", 2000, "number of pathfinding requests to issue")
	flag.IntVar(&opts.concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	flag.IntVar(&opts.size, "size", 256, "side of the generated square map in tiles")
	flag.IntVar(&opts.span, "span", 48, "largest start to goal distance")
	flag.IntVar(&opts.distance, "distance", 0, "goal acceptance radius")
	flag.DurationVar(&opts.timeout, "timeout", 250*time.Millisecond, "per-request timeout")
	flag.Int64Var(&opts.seed, "seed", 1337, "random seed for start/goal selection")
	flag.StringVar(&opts.loadPath, "map", "", "profile a saved map snapshot instead of generating one")
	flag.StringVar(&opts.savePath, "save", "", "write the generated map to this snapshot file")
	flag.Parse()

	if err := opts.validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Logging, os.Stderr)
	world.SetLockChecks(cfg.Debug.LockChecks)

	sum, err := profile(context.Background(), cfg, opts, log)
	if err != nil {
		log.WithError(err).Fatal("profile failed")
	}
	printSummary(os.Stdout, opts, sum)
}

func (o options) validate() error {
	switch {
	case o.requests <= 0:
		return errors.New("requests must be positive")
	case o.concurrency <= 0:
		return errors.New("concurrency must be positive")
	case o.size < 2:
		return errors.New("size must be at least 2")
	case o.span <= 0:
		return errors.New("span must be positive")
	case o.distance < 0:
		return errors.New("distance cannot be negative")
	}
	return nil
}

func profile(ctx context.Context, cfg *config.Config, opts options, log logrus.FieldLogger) (summary, error) {
	m, layout, err := generate(ctx, cfg, opts, log)
	if err != nil {
		return summary{}, err
	}

	jobs, err := planJobs(m, layout, opts)
	if err != nil {
		return summary{}, err
	}

	metrics := &pathfinding.NavigatorMetrics{}
	ctx = pathfinding.ContextWithProfiler(ctx, metrics.Profiler())
	settings := pathfinding.SettingsFromConfig(cfg)

	var (
		successes  atomic.Int64
		failures   atomic.Int64
		timeouts   atomic.Int64
		stepsTotal atomic.Int64
		routeTime  atomic.Int64
	)

	queue := make(chan pathJob)
	go func() {
		defer close(queue)
		for _, job := range jobs {
			select {
			case queue <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		engine := pathfinding.NewEngine(m, settings, log)
		for job := range queue {
			routeCtx, cancel := context.WithTimeout(ctx, opts.timeout)
			started := time.Now()
			path, err := engine.FindPath(routeCtx, pathfinding.Request{
				Start:    job.start,
				Goal:     job.goal,
				Distance: opts.distance,
				Agent:    agentAt(job.start),
			})
			routeTime.Add(int64(time.Since(started)))
			cancel()

			switch {
			case errors.Is(err, pathfinding.ErrSearchCancelled):
				timeouts.Add(1)
			case err != nil:
				failures.Add(1)
			default:
				successes.Add(1)
				stepsTotal.Add(int64(path.Len() - 1))
			}
		}
	}

	startWall := time.Now()
	wg.Add(opts.concurrency)
	for i := 0; i < opts.concurrency; i++ {
		go worker()
	}
	wg.Wait()

	return summary{
		Requests:   len(jobs),
		Successes:  successes.Load(),
		Failures:   failures.Load(),
		Timeouts:   timeouts.Load(),
		StepsTotal: stepsTotal.Load(),
		RouteTime:  time.Duration(routeTime.Load()),
		WallTime:   time.Since(startWall),
		Columns:    layout.Columns,
		Walls:      layout.Walls(),
		Stairs:     layout.Stairs(),
		Metrics:    metrics.Snapshot(),
	}, nil
}

// generate builds the map to profile: a saved snapshot when one is given,
// fresh terrain otherwise.
func generate(ctx context.Context, cfg *config.Config, opts options, log logrus.FieldLogger) (*world.MemoryMap, *terrain.Layout, error) {
	if opts.loadPath != "" {
		m, err := world.LoadSnapshot(opts.loadPath)
		if err != nil {
			return nil, nil, err
		}
		return m, terrain.Survey(m), nil
	}

	m := world.NewMemoryMap()
	area := world.Rect{MaxX: opts.size - 1, MaxY: opts.size - 1}
	layout, err := terrain.NewNoiseGenerator(cfg.Terrain, log).Populate(ctx, m, area)
	if err != nil {
		return nil, nil, fmt.Errorf("generate terrain: %w", err)
	}
	if opts.savePath != "" {
		if err := world.SaveSnapshot(opts.savePath, m); err != nil {
			return nil, nil, err
		}
		log.WithField("path", opts.savePath).Info("map snapshot saved")
	}
	return m, layout, nil
}

// planJobs draws start and goal columns off the walls, keeping goals within
// span of their start.
func planJobs(m *world.MemoryMap, layout *terrain.Layout, opts options) ([]pathJob, error) {
	rng := terrain.NewRNG(opts.seed)
	jobs := make([]pathJob, 0, opts.requests)
	for attempts := 0; len(jobs) < opts.requests; attempts++ {
		if attempts > opts.requests*16 {
			return nil, errors.New("not enough open columns to profile")
		}
		start, ok := layout.Pick(rng)
		if !ok {
			continue
		}
		goal := world.Point{
			X: start.X + rng.Intn(2*opts.span+1) - opts.span,
			Y: start.Y + rng.Intn(2*opts.span+1) - opts.span,
		}
		if goal == start || !layout.Area.Contains(goal.X, goal.Y) || layout.Blocked(goal) {
			continue
		}
		startLoc, ok := standingAt(m, start)
		if !ok {
			continue
		}
		goalLoc, ok := standingAt(m, goal)
		if !ok {
			continue
		}
		jobs = append(jobs, pathJob{start: startLoc, goal: goalLoc})
	}
	return jobs, nil
}

// standingAt is where a walker stands on the column's land.
func standingAt(m *world.MemoryMap, p world.Point) (world.Location, bool) {
	column, ok := m.Column(p.X, p.Y)
	if !ok || len(column) == 0 || column[0].Kind != world.KindLand {
		return world.Location{}, false
	}
	return world.Location{X: p.X, Y: p.Y, Z: column[0].AverageZ}, true
}

func agentAt(loc world.Location) world.AgentState {
	return world.AgentState{
		Location:   loc,
		Stamina:    100,
		StaminaMax: 100,
	}
}

func printSummary(out io.Writer, opts options, sum summary) {
	avgDuration := time.Duration(0)
	avgPathLength := 0.0
	avgNodes := 0.0
	if sum.Requests > 0 {
		avgDuration = sum.RouteTime / time.Duration(sum.Requests)
		avgNodes = float64(sum.Metrics.NodesExpanded) / float64(sum.Requests)
	}
	if sum.Successes > 0 {
		avgPathLength = float64(sum.StepsTotal) / float64(sum.Successes)
	}

	fmt.Fprintln(out, "== Tile Pathfinding Profile ==")
	fmt.Fprintf(out, "Map: %d columns, %d walls, %d stairs\n", sum.Columns, sum.Walls, sum.Stairs)
	fmt.Fprintf(out, "Requests: %d\n", sum.Requests)
	fmt.Fprintf(out, "Concurrency: %d\n", opts.concurrency)
	fmt.Fprintf(out, "Successes: %d, Failures: %d, Timeouts: %d\n", sum.Successes, sum.Failures, sum.Timeouts)
	fmt.Fprintf(out, "Average path length (steps): %.2f\n", avgPathLength)
	fmt.Fprintf(out, "Average per-route duration: %s\n", avgDuration)
	fmt.Fprintf(out, "Wall clock duration: %s\n", sum.WallTime)
	fmt.Fprintf(out, "Average nodes expanded: %.2f\n", avgNodes)
	fmt.Fprintf(out, "Neighbours queued per expansion: %.2f\n", sum.Metrics.BranchingFactor())
	fmt.Fprintf(out, "Stale frontier entries: %d\n", sum.Metrics.StaleEntries)
	fmt.Fprintf(out, "Column queries: %d (%.2f%% unloaded)\n", sum.Metrics.ColumnQueries, sum.Metrics.MissRatio())
}
