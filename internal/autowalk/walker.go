package autowalk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tilewalker/internal/config"
	"tilewalker/internal/logging"
	"tilewalker/internal/pathfinding"
	"tilewalker/internal/world"
)

var (
	// ErrInvalidRequest rejects a walk request before any search runs.
	ErrInvalidRequest = errors.New("invalid walk request")
	// ErrNotAmbulatory is returned for paralyzed or freshly dead agents.
	ErrNotAmbulatory = fmt.Errorf("%w: agent cannot walk", ErrInvalidRequest)
)

// AgentSource reports the controlled agent's current state.
type AgentSource interface {
	AgentState() world.AgentState
}

// Mover sends single steps to the server. ReadyAt is the earliest moment the
// next step may be sent and StepsInFlight counts steps not yet acknowledged.
// Walk returns false when the step was refused.
type Mover interface {
	StepsInFlight() int
	ReadyAt() time.Time
	Walk(dir world.Direction, run bool) bool
}

// Planner computes paths. *pathfinding.Engine satisfies it.
type Planner interface {
	FindPath(ctx context.Context, req pathfinding.Request) (pathfinding.Path, error)
}

// StopReason records why the last walk ended.
type StopReason int

const (
	StopNone StopReason = iota
	StopCompleted
	StopCancelled
	StopBlocked
	StopDiverged
	StopSuperseded
)

func (r StopReason) String() string {
	switch r {
	case StopCompleted:
		return "completed"
	case StopCancelled:
		return "cancelled"
	case StopBlocked:
		return "blocked"
	case StopDiverged:
		return "diverged"
	case StopSuperseded:
		return "superseded"
	default:
		return "none"
	}
}

// Target is a walk destination. The walk succeeds anywhere within Distance
// tiles of (X, Y) whose elevation is close to Z.
type Target struct {
	X        int
	Y        int
	Z        int
	Distance int
}

func (t Target) Location() world.Location {
	return world.Location{X: t.X, Y: t.Y, Z: int8(t.Z)}
}

// Status is a snapshot of the walker.
type Status struct {
	Walking  bool
	Run      bool
	Target   Target
	Index    int
	Length   int
	LastStop StopReason
}

// Walker turns a computed path into one step per tick. It is not safe for
// concurrent use; run it from a single goroutine such as a Driver's loop.
type Walker struct {
	planner Planner
	agent   AgentSource
	mover   Mover
	log     logrus.FieldLogger
	now     func() time.Time

	maxInFlight       int
	maxTargetDistance int

	path     []pathfinding.Step
	index    int
	walking  bool
	run      bool
	target   Target
	lastStop StopReason
}

func NewWalker(planner Planner, agent AgentSource, mover Mover, cfg config.WalkerConfig, log logrus.FieldLogger) *Walker {
	defaults := config.Default().Walker
	if cfg.MaxStepsInFlight <= 0 {
		cfg.MaxStepsInFlight = defaults.MaxStepsInFlight
	}
	if cfg.MaxTargetDistance <= 0 {
		cfg.MaxTargetDistance = defaults.MaxTargetDistance
	}
	return &Walker{
		planner:           planner,
		agent:             agent,
		mover:             mover,
		log:               logging.Component(log, "autowalk"),
		now:               time.Now,
		maxInFlight:       cfg.MaxStepsInFlight,
		maxTargetDistance: cfg.MaxTargetDistance,
	}
}

// RequestPath starts walking toward (x, y, z) and reports whether a walk is
// now in progress. Failures are logged; use WalkTo for the error.
func (w *Walker) RequestPath(ctx context.Context, x, y, z, distance int) bool {
	target := Target{X: x, Y: y, Z: z, Distance: distance}
	if err := w.WalkTo(ctx, target); err != nil {
		w.log.WithError(err).WithField("target", target).Info("walk request failed")
		return false
	}
	return w.walking
}

// WalkTo plans a path to target and, when one exists, starts walking it with
// the first step issued immediately. A running walk is superseded. Reaching
// the target without moving is a success that leaves the walker idle.
func (w *Walker) WalkTo(ctx context.Context, target Target) error {
	state := w.agent.AgentState()
	if err := w.validate(state, target); err != nil {
		return err
	}
	if w.walking {
		w.stop(StopSuperseded)
	}
	w.clear()

	path, err := w.planner.FindPath(ctx, pathfinding.Request{
		Start:    state.Location,
		Goal:     target.Location(),
		Distance: target.Distance,
		Agent:    state,
	})
	if err != nil {
		return fmt.Errorf("plan walk to %v: %w", target.Location(), err)
	}

	w.target = target
	if len(path.Steps) < 2 {
		w.lastStop = StopCompleted
		w.log.WithField("target", target.Location().String()).Debug("already at target")
		return nil
	}

	w.path = append(w.path[:0], path.Steps...)
	w.index = 1
	w.walking = true
	w.run = path.Run
	w.lastStop = StopNone
	w.log.WithFields(logrus.Fields{
		"target": target.Location().String(),
		"steps":  len(w.path) - 1,
		"run":    w.run,
	}).Info("walk started")

	w.Tick(w.now())
	return nil
}

func (w *Walker) validate(state world.AgentState, target Target) error {
	if !state.Ambulatory() {
		return ErrNotAmbulatory
	}
	if target.Z < -128 || target.Z > 127 {
		return fmt.Errorf("%w: elevation %d out of range", ErrInvalidRequest, target.Z)
	}
	if target.Distance < 0 {
		return fmt.Errorf("%w: negative distance %d", ErrInvalidRequest, target.Distance)
	}
	if d := world.Chebyshev(state.Location.Point(), world.Point{X: target.X, Y: target.Y}); d > w.maxTargetDistance {
		return fmt.Errorf("%w: target is %d tiles away, limit %d", ErrInvalidRequest, d, w.maxTargetDistance)
	}
	return nil
}

// GetPath computes the locations a walk to target would pass through,
// starting with the agent's own, without moving.
func (w *Walker) GetPath(ctx context.Context, target Target) ([]world.Location, error) {
	state := w.agent.AgentState()
	if err := w.validate(state, target); err != nil {
		return nil, err
	}
	path, err := w.planner.FindPath(ctx, pathfinding.Request{
		Start:    state.Location,
		Goal:     target.Location(),
		Distance: target.Distance,
		Agent:    state,
	})
	if err != nil {
		return nil, fmt.Errorf("plan path to %v: %w", target.Location(), err)
	}
	locations := make([]world.Location, len(path.Steps))
	for i, step := range path.Steps {
		locations[i] = step.Location
	}
	return locations, nil
}

// Tick issues at most one step. It waits while the mover is cooling down or
// has too many unacknowledged steps.
func (w *Walker) Tick(now time.Time) {
	if !w.walking {
		return
	}
	if w.mover.StepsInFlight() >= w.maxInFlight || now.Before(w.mover.ReadyAt()) {
		return
	}
	if w.index >= len(w.path) {
		w.stop(StopCompleted)
		return
	}

	state := w.agent.AgentState()
	if state.Location.Point() != w.path[w.index-1].Location.Point() {
		w.stop(StopDiverged)
		return
	}

	step := w.path[w.index]
	// A step in a new direction only turns the agent; the index moves on once
	// it already faces the right way.
	if state.Facing == step.Direction {
		w.index++
	}
	if !w.mover.Walk(step.Direction, w.run) {
		w.stop(StopBlocked)
	}
}

// Step sends a single manual step, taking over from any walk in progress.
func (w *Walker) Step(dir world.Direction, run bool) bool {
	if w.walking {
		w.stop(StopCancelled)
	}
	if !w.agent.AgentState().Ambulatory() {
		return false
	}
	return w.mover.Walk(dir, run)
}

// AgentState reports the agent the walker drives.
func (w *Walker) AgentState() world.AgentState {
	return w.agent.AgentState()
}

// Cancel stops the current walk. Calling it while idle is harmless.
func (w *Walker) Cancel() {
	if w.walking {
		w.stop(StopCancelled)
		return
	}
	w.clear()
}

func (w *Walker) stop(reason StopReason) {
	fields := logrus.Fields{
		"reason": reason.String(),
		"index":  w.index,
		"steps":  len(w.path),
		"target": w.target.Location().String(),
	}
	if reason == StopCompleted || reason == StopCancelled || reason == StopSuperseded {
		w.log.WithFields(fields).Info("walk stopped")
	} else {
		w.log.WithFields(fields).Warn("walk stopped")
	}
	w.clear()
	w.lastStop = reason
}

func (w *Walker) clear() {
	w.walking = false
	w.run = false
	w.path = w.path[:0]
	w.index = 0
}

func (w *Walker) IsWalking() bool {
	return w.walking
}

// PathLength counts the current path's steps, start included; zero when idle.
func (w *Walker) PathLength() int {
	return len(w.path)
}

// Path returns a copy of the current path.
func (w *Walker) Path() []pathfinding.Step {
	return append([]pathfinding.Step(nil), w.path...)
}

func (w *Walker) Status() Status {
	return Status{
		Walking:  w.walking,
		Run:      w.run,
		Target:   w.target,
		Index:    w.index,
		Length:   len(w.path),
		LastStop: w.lastStop,
	}
}
