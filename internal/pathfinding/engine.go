package pathfinding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"

	"tilewalker/internal/config"
	"tilewalker/internal/logging"
	"tilewalker/internal/world"
)

var (
	// ErrNoPath is returned when the goal cannot be reached within the node
	// budget or the reachable area is exhausted.
	ErrNoPath = errors.New("no path")
	// ErrSearchCancelled is returned when the context is done mid-search.
	ErrSearchCancelled = errors.New("search cancelled")
)

// Settings tunes an Engine.
type Settings struct {
	MaxNodes           int
	RunDistance        int
	AllowedZDifference int
	Movement           config.MovementConfig
}

func DefaultSettings() Settings {
	return SettingsFromConfig(config.Default())
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MaxNodes:           cfg.Pathfinding.MaxSearchNodes,
		RunDistance:        cfg.Pathfinding.RunDistance,
		AllowedZDifference: cfg.Pathfinding.AllowedZDifference,
		Movement:           cfg.Movement,
	}
}

// Request describes one search.
type Request struct {
	Start    world.Location
	Goal     world.Location
	Distance int // acceptance radius around Goal, in tiles
	Agent    world.AgentState
}

// Step is one entry of a path. Direction is the move that reached Location;
// for the first step, which is the start itself, it is the agent's facing.
type Step struct {
	Location  world.Location
	Direction world.Direction
	Cost      int
}

// SearchStats describes the work a search did.
type SearchStats struct {
	Closed       int
	Generated    int
	Stale        int
	PeakFrontier int
	Duration     time.Duration
}

// Path is a finished search result. Steps[0] is the start location.
type Path struct {
	Steps []Step
	Run   bool
	Stats SearchStats
}

// Len counts the path's steps, start included.
func (p Path) Len() int {
	return len(p.Steps)
}

// End returns the final location.
func (p Path) End() world.Location {
	if len(p.Steps) == 0 {
		return world.Location{}
	}
	return p.Steps[len(p.Steps)-1].Location
}

// Engine runs A* searches for one agent. It owns its node arena, frontier and
// closed set and reuses them between searches, so it must not be used from
// more than one goroutine at a time.
type Engine struct {
	settings  Settings
	validator *Validator
	arena     *arena
	open      *frontier
	closed    mapset.Set[world.Location]
	log       logrus.FieldLogger

	profiler NavigatorProfiler
	goal     world.Location
	distance int
	goalNode nodeID
	stats    SearchStats
}

func NewEngine(tiles TileSource, settings Settings, log logrus.FieldLogger) *Engine {
	if settings.MaxNodes <= 0 {
		settings.MaxNodes = DefaultSettings().MaxNodes
	}
	if settings.AllowedZDifference <= 0 {
		settings.AllowedZDifference = DefaultSettings().AllowedZDifference
	}
	return &Engine{
		settings:  settings,
		validator: NewValidator(tiles, settings.Movement),
		arena:     newArena(1024),
		open:      newFrontier(1024),
		closed:    mapset.New[world.Location](),
		log:       logging.Component(log, "pathfinding"),
		goalNode:  nilNode,
	}
}

// FindPath searches for a route from req.Start to any location within
// req.Distance of req.Goal. The context is checked before every expansion.
func (e *Engine) FindPath(ctx context.Context, req Request) (Path, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Distance < 0 {
		req.Distance = 0
	}

	e.begin(ctx, req)
	defer e.finish()

	started := time.Now()
	path, err := e.search(ctx, req)
	e.stats.Duration = time.Since(started)
	path.Stats = e.stats

	if e.profiler != nil {
		e.profiler.RecordSearch(e.stats.Duration, err == nil)
	}

	fields := logrus.Fields{
		"start":    req.Start.String(),
		"goal":     req.Goal.String(),
		"distance": req.Distance,
		"mode":     e.validator.StepState().String(),
		"closed":   e.stats.Closed,
		"elapsed":  e.stats.Duration,
	}
	if err != nil {
		e.log.WithFields(fields).WithError(err).Debug("path search failed")
		return Path{Stats: e.stats}, err
	}
	fields["steps"] = len(path.Steps)
	fields["run"] = path.Run
	e.log.WithFields(fields).Debug("path found")
	return path, nil
}

func (e *Engine) begin(ctx context.Context, req Request) {
	e.arena.reset()
	e.open.reset()
	e.closed.Clear()
	e.profiler = profilerFromContext(ctx)
	e.validator.Reset(req.Agent)
	e.validator.setProfiler(e.profiler)
	e.goal = req.Goal
	e.distance = req.Distance
	e.goalNode = nilNode
	e.stats = SearchStats{}
}

// finish returns every node and frontier entry to the pools.
func (e *Engine) finish() {
	e.arena.reset()
	e.open.reset()
	e.closed.Clear()
	e.validator.setProfiler(nil)
	e.profiler = nil
	e.goalNode = nilNode
}

func (e *Engine) search(ctx context.Context, req Request) (Path, error) {
	startID := e.arena.alloc()
	start := e.arena.get(startID)
	start.loc = req.Start
	start.dir = req.Agent.Facing
	start.h = e.heuristic(req.Start)
	start.f = start.h

	run := start.h > e.settings.RunDistance
	if e.reached(req.Start) {
		return Path{Steps: []Step{{Location: req.Start, Direction: req.Agent.Facing}}}, nil
	}

	e.open.push(startID, req.Start, start.f)

	for {
		select {
		case <-ctx.Done():
			return Path{}, fmt.Errorf("%w: %w", ErrSearchCancelled, ctx.Err())
		default:
		}

		current, ok := e.cheapest()
		if !ok {
			return Path{}, fmt.Errorf("%w: frontier exhausted after %d nodes", ErrNoPath, e.stats.Closed)
		}
		e.stats.Closed++
		if e.stats.Closed >= e.settings.MaxNodes {
			return Path{}, fmt.Errorf("%w: node budget of %d exhausted", ErrNoPath, e.settings.MaxNodes)
		}
		if e.goalNode != nilNode {
			return Path{Steps: e.reconstruct(e.goalNode), Run: run}, nil
		}
		e.expand(current)
	}
}

// cheapest pops the best live entry and closes its location. Stale entries
// and entries for already-closed locations give their nodes back.
func (e *Engine) cheapest() (nodeID, bool) {
	for {
		id, loc, valid, ok := e.open.pop()
		if !ok {
			return nilNode, false
		}
		if !valid || e.closed.Has(loc) {
			e.arena.release(id)
			e.stats.Stale++
			if e.profiler != nil {
				e.profiler.RecordStaleEntry()
			}
			continue
		}
		e.closed.Put(loc)
		return id, true
	}
}

func (e *Engine) expand(parentID nodeID) {
	// Copy: allocating children may grow the arena and move its storage.
	parent := *e.arena.get(parentID)
	if e.profiler != nil {
		e.profiler.RecordNodeExpanded()
	}

	generated := 0
	for i := 0; i < world.DirectionCount; i++ {
		dir := world.Direction(i)
		loc, realized, ok := e.validator.TryStep(parent.loc, dir)
		if !ok || realized != dir {
			continue
		}
		cost := 1
		if dir.IsDiagonal() {
			if loc.Point() != parent.loc.Point().Step(dir) {
				continue
			}
			cost = 2
		}
		if e.add(parentID, &parent, dir, loc, cost) {
			generated++
		}
	}

	e.stats.Generated += generated
	if n := e.open.len(); n > e.stats.PeakFrontier {
		e.stats.PeakFrontier = n
	}
	if e.profiler != nil {
		e.profiler.RecordNeighborGeneration(generated)
	}
}

// add offers a neighbour to the frontier and reports whether it was queued.
// The goal is recognised here, when a location is first queued.
func (e *Engine) add(parentID nodeID, parent *node, dir world.Direction, loc world.Location, cost int) bool {
	if e.closed.Has(loc) {
		return false
	}

	g := parent.g + cost + abs(int(loc.Z)-int(parent.loc.Z))
	h := e.heuristic(loc)
	f := g + h
	queued := e.open.contains(loc)

	id := e.arena.alloc()
	n := e.arena.get(id)
	n.loc = loc
	n.dir = dir
	n.g = g
	n.h = h
	n.f = f
	n.parent = parentID

	if !e.open.push(id, loc, f) {
		e.arena.release(id)
		return false
	}
	if !queued && e.goalNode == nilNode && e.reached(loc) {
		e.goalNode = id
	}
	return true
}

func (e *Engine) heuristic(loc world.Location) int {
	if e.profiler != nil {
		e.profiler.RecordHeuristicEvaluation()
	}
	return world.Chebyshev(loc.Point(), e.goal.Point())
}

func (e *Engine) reached(loc world.Location) bool {
	if world.Chebyshev(loc.Point(), e.goal.Point()) > e.distance {
		return false
	}
	return abs(int(e.goal.Z)-int(loc.Z)) < e.settings.AllowedZDifference
}

func (e *Engine) reconstruct(goal nodeID) []Step {
	count := 0
	for id := goal; id != nilNode; {
		count++
		next := e.arena.get(id).parent
		if next == id {
			break
		}
		id = next
	}

	steps := make([]Step, count)
	i := count - 1
	for id := goal; id != nilNode && i >= 0; i-- {
		n := e.arena.get(id)
		steps[i] = Step{Location: n.loc, Direction: n.dir, Cost: n.g}
		if n.parent == id {
			break
		}
		id = n.parent
	}
	return steps
}
