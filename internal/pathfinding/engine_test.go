package pathfinding

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"tilewalker/internal/world"
)

func TestEngineWalksStraightAcrossFlatGround(t *testing.T) {
	m := openGrid(t, 8, 1)
	engine := newTestEngine(t, m)

	path, err := engine.FindPath(context.Background(), request(at(0, 0, 0), at(5, 0, 0), 0))
	if err != nil {
		t.Fatalf("expected a path, got %v", err)
	}
	if len(path.Steps) != 6 {
		t.Fatalf("expected start plus 5 moves, got %d steps", len(path.Steps))
	}
	for i, step := range path.Steps[1:] {
		if step.Direction != world.East {
			t.Fatalf("move %d: expected east, got %v", i+1, step.Direction)
		}
		if step.Location != at(i+1, 0, 0) {
			t.Fatalf("move %d: expected %v, got %v", i+1, at(i+1, 0, 0), step.Location)
		}
	}
	if cost := path.Steps[5].Cost; cost != 5 {
		t.Fatalf("expected total cost 5, got %d", cost)
	}
	if path.Run {
		t.Fatalf("short walks should not run")
	}
}

func TestEnginePathStartsAtAgentLocation(t *testing.T) {
	m := openGrid(t, 5, 5)
	engine := newTestEngine(t, m)
	req := request(at(2, 2, 0), at(4, 0, 0), 0)
	req.Agent.Facing = world.West

	path, err := engine.FindPath(context.Background(), req)
	if err != nil {
		t.Fatalf("expected a path, got %v", err)
	}
	first := path.Steps[0]
	if first.Location != req.Start || first.Direction != world.West || first.Cost != 0 {
		t.Fatalf("unexpected first step %+v", first)
	}
}

func TestEngineRunsForDistantGoals(t *testing.T) {
	m := openGrid(t, 20, 1)
	engine := newTestEngine(t, m)

	path, err := engine.FindPath(context.Background(), request(at(0, 0, 0), at(15, 0, 0), 0))
	if err != nil {
		t.Fatalf("expected a path, got %v", err)
	}
	if !path.Run {
		t.Fatalf("expected run gait beyond 14 tiles")
	}

	path, err = engine.FindPath(context.Background(), request(at(0, 0, 0), at(14, 0, 0), 0))
	if err != nil {
		t.Fatalf("expected a path, got %v", err)
	}
	if path.Run {
		t.Fatalf("expected walk gait at exactly 14 tiles")
	}
}

func TestEngineDiagonalPocketIsUnreachable(t *testing.T) {
	m := gridMap(t,
		".#",
		"#.",
	)
	engine := newTestEngine(t, m)

	_, err := engine.FindPath(context.Background(), request(at(0, 0, 0), at(1, 1, 0), 0))
	if !errors.Is(err, ErrNoPath) {
		t.Fatalf("expected ErrNoPath, got %v", err)
	}
}

func TestEngineGoesAroundSingleBlockedCorner(t *testing.T) {
	m := gridMap(t,
		"..",
		"#.",
	)
	engine := newTestEngine(t, m)

	path, err := engine.FindPath(context.Background(), request(at(0, 0, 0), at(1, 1, 0), 0))
	if err != nil {
		t.Fatalf("expected a path, got %v", err)
	}
	want := []world.Location{at(0, 0, 0), at(1, 0, 0), at(1, 1, 0)}
	if len(path.Steps) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(path.Steps))
	}
	for i, loc := range want {
		if path.Steps[i].Location != loc {
			t.Fatalf("step %d: expected %v, got %v", i, loc, path.Steps[i].Location)
		}
	}
	if path.Steps[1].Direction != world.East || path.Steps[2].Direction != world.South {
		t.Fatalf("expected east then south, got %v then %v", path.Steps[1].Direction, path.Steps[2].Direction)
	}
}

func TestEngineNeverCutsCorners(t *testing.T) {
	m := gridMap(t,
		"......",
		".####.",
		"......",
		".#..#.",
		"......",
	)
	engine := newTestEngine(t, m)
	req := request(at(0, 0, 0), at(3, 3, 0), 0)

	path, err := engine.FindPath(context.Background(), req)
	if err != nil {
		t.Fatalf("expected a path, got %v", err)
	}

	walls := map[world.Point]bool{}
	m.ForEach(func(p world.Point, entries []world.Entry) bool {
		if len(entries) > 1 {
			walls[p] = true
		}
		return true
	})
	for i := 1; i < len(path.Steps); i++ {
		step := path.Steps[i]
		if !step.Direction.IsDiagonal() {
			continue
		}
		from := path.Steps[i-1].Location.Point()
		for _, side := range []world.Direction{step.Direction.Rotate(1), step.Direction.Rotate(-1)} {
			if walls[from.Step(side)] {
				t.Fatalf("diagonal %v from %v cuts past wall at %v", step.Direction, from, from.Step(side))
			}
		}
	}
	replay(t, m, path, req.Agent)
}

func TestEngineClimbsStairLedge(t *testing.T) {
	m := gridMap(t, "./.")
	engine := newTestEngine(t, m)

	path, err := engine.FindPath(context.Background(), request(at(0, 0, 0), at(1, 0, 5), 0))
	if err != nil {
		t.Fatalf("expected a path, got %v", err)
	}
	end := path.End()
	if end != at(1, 0, 5) {
		t.Fatalf("expected to land on the stair at z 5, got %v", end)
	}
	if cost := path.Steps[len(path.Steps)-1].Cost; cost != 6 {
		t.Fatalf("expected cost 1 + climb 5, got %d", cost)
	}
}

func TestEngineAcceptanceRadius(t *testing.T) {
	m := gridMap(t,
		".....",
		"..#..",
		".....",
	)
	engine := newTestEngine(t, m)
	goal := at(2, 1, 0)

	path, err := engine.FindPath(context.Background(), request(at(0, 1, 0), goal, 1))
	if err != nil {
		t.Fatalf("expected a path to the wall's neighbourhood, got %v", err)
	}
	end := path.End()
	if world.Chebyshev(end.Point(), goal.Point()) > 1 {
		t.Fatalf("expected to stop within 1 of %v, got %v", goal, end)
	}
	if end.Point() == goal.Point() {
		t.Fatalf("the wall itself cannot be the end of the path")
	}

	if _, err := engine.FindPath(context.Background(), request(at(0, 1, 0), goal, 0)); !errors.Is(err, ErrNoPath) {
		t.Fatalf("expected ErrNoPath for an exact wall goal, got %v", err)
	}
}

func TestEngineGoalElevationTolerance(t *testing.T) {
	m := openGrid(t, 4, 1)
	engine := newTestEngine(t, m)

	if _, err := engine.FindPath(context.Background(), request(at(0, 0, 0), at(3, 0, 9), 0)); err != nil {
		t.Fatalf("expected goal within 9 units to be reachable, got %v", err)
	}
	if _, err := engine.FindPath(context.Background(), request(at(0, 0, 0), at(3, 0, 10), 0)); !errors.Is(err, ErrNoPath) {
		t.Fatalf("expected a goal 10 units up to be rejected, got %v", err)
	}
}

func TestEngineStartInsideGoal(t *testing.T) {
	m := openGrid(t, 3, 3)
	engine := newTestEngine(t, m)

	path, err := engine.FindPath(context.Background(), request(at(1, 1, 0), at(2, 2, 0), 1))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(path.Steps) != 1 || path.Steps[0].Location != at(1, 1, 0) {
		t.Fatalf("expected only the start step, got %+v", path.Steps)
	}
}

func TestEngineExhaustsEnclosedPocket(t *testing.T) {
	m := openGrid(t, 3, 3)
	engine := newTestEngine(t, m)

	path, err := engine.FindPath(context.Background(), request(at(1, 1, 0), at(40, 40, 0), 0))
	if !errors.Is(err, ErrNoPath) {
		t.Fatalf("expected ErrNoPath, got %v", err)
	}
	if path.Stats.Closed != 9 {
		t.Fatalf("expected each of the 9 reachable tiles to be closed once, got %d", path.Stats.Closed)
	}
	if len(path.Steps) != 0 {
		t.Fatalf("failed searches must not return partial paths")
	}
}

func TestEngineRespectsNodeBudget(t *testing.T) {
	m := openGrid(t, 40, 40)
	settings := DefaultSettings()
	settings.MaxNodes = 25
	engine := NewEngine(m, settings, nil)

	path, err := engine.FindPath(context.Background(), request(at(0, 0, 0), at(39, 39, 0), 0))
	if !errors.Is(err, ErrNoPath) {
		t.Fatalf("expected budget failure, got %v", err)
	}
	if path.Stats.Closed > settings.MaxNodes {
		t.Fatalf("closed %d nodes, budget %d", path.Stats.Closed, settings.MaxNodes)
	}

	// The same engine still works once the budget allows it.
	engine.settings.MaxNodes = DefaultSettings().MaxNodes
	if _, err := engine.FindPath(context.Background(), request(at(0, 0, 0), at(39, 39, 0), 0)); err != nil {
		t.Fatalf("expected a path with the default budget, got %v", err)
	}
}

func TestEngineStopsWhenCancelled(t *testing.T) {
	m := openGrid(t, 10, 10)
	engine := newTestEngine(t, m)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.FindPath(ctx, request(at(0, 0, 0), at(9, 9, 0), 0))
	if !errors.Is(err, ErrSearchCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected a cancellation error, got %v", err)
	}
}

func TestEngineIsDeterministic(t *testing.T) {
	m := gridMap(t,
		"..........",
		".###..###.",
		".#......#.",
		".#.####.#.",
		"....#.....",
		".##.#.###.",
		"..........",
	)
	req := request(at(0, 0, 0), at(5, 4, 0), 0)

	first, err := newTestEngine(t, m).FindPath(context.Background(), req)
	if err != nil {
		t.Fatalf("expected a path, got %v", err)
	}
	reused := newTestEngine(t, m)
	for i := 0; i < 3; i++ {
		again, err := reused.FindPath(context.Background(), req)
		if err != nil {
			t.Fatalf("run %d: expected a path, got %v", i, err)
		}
		if !reflect.DeepEqual(first.Steps, again.Steps) {
			t.Fatalf("run %d: paths differ:\n%v\n%v", i, first.Steps, again.Steps)
		}
	}
	replay(t, m, first, req.Agent)
}

func TestEngineReturnsNodesToArena(t *testing.T) {
	m := openGrid(t, 12, 12)
	engine := newTestEngine(t, m)

	if _, err := engine.FindPath(context.Background(), request(at(0, 0, 0), at(11, 7, 0), 0)); err != nil {
		t.Fatalf("expected a path, got %v", err)
	}
	if engine.arena.inUse() != 0 || engine.open.len() != 0 || engine.closed.Size() != 0 {
		t.Fatalf("expected pooled state to be released, arena=%d open=%d closed=%d",
			engine.arena.inUse(), engine.open.len(), engine.closed.Size())
	}
}

func TestEngineAvoidsTiredAgentsBlockedByCharacters(t *testing.T) {
	m := gridMap(t,
		"...",
		"m..",
		"...",
	)
	req := request(at(0, 0, 0), at(0, 2, 0), 0)
	req.Agent.Stamina = 10

	path, err := newTestEngine(t, m).FindPath(context.Background(), req)
	if err != nil {
		t.Fatalf("expected a detour, got %v", err)
	}
	for _, step := range path.Steps {
		if step.Location.Point() == (world.Point{X: 0, Y: 1}) {
			t.Fatalf("tired agents cannot push through characters")
		}
	}

	rested := request(at(0, 0, 0), at(0, 2, 0), 0)
	path, err = newTestEngine(t, m).FindPath(context.Background(), rested)
	if err != nil {
		t.Fatalf("expected a path, got %v", err)
	}
	if len(path.Steps) != 3 {
		t.Fatalf("rested agents walk straight through, got %d steps", len(path.Steps))
	}
}

func TestEngineLogsSearchOutcome(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	m := openGrid(t, 4, 1)
	engine := NewEngine(m, DefaultSettings(), log)

	if _, err := engine.FindPath(context.Background(), request(at(0, 0, 0), at(3, 0, 0), 0)); err != nil {
		t.Fatalf("expected a path, got %v", err)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Message != "path found" {
		t.Fatalf("expected a path found entry, got %+v", entry)
	}
	if entry.Data["component"] != "pathfinding" || entry.Data["steps"] != 4 || entry.Data["mode"] != "normal" {
		t.Fatalf("unexpected fields %v", entry.Data)
	}
}

func TestEngineReportsToProfiler(t *testing.T) {
	m := openGrid(t, 6, 6)
	engine := newTestEngine(t, m)
	var metrics NavigatorMetrics
	ctx := ContextWithProfiler(context.Background(), metrics.Profiler())

	path, err := engine.FindPath(ctx, request(at(0, 0, 0), at(5, 5, 0), 0))
	if err != nil {
		t.Fatalf("expected a path, got %v", err)
	}
	snap := metrics.Snapshot()
	if snap.Searches != 1 || snap.SearchesFound != 1 {
		t.Fatalf("expected one successful search, got %+v", snap)
	}
	if snap.NodesExpanded == 0 || snap.ColumnQueries == 0 || snap.HeuristicEvaluations == 0 {
		t.Fatalf("expected expansion counters, got %+v", snap)
	}
	if int(snap.NodesExpanded) >= path.Stats.Closed+1 {
		t.Fatalf("expanded %d nodes but closed only %d", snap.NodesExpanded, path.Stats.Closed)
	}

	if b := snap.BranchingFactor(); b <= 0 || b > float64(world.DirectionCount) {
		t.Fatalf("branching factor %.2f outside (0, 8]", b)
	}
	if snap.MissRatio() < 0 || snap.MissRatio() >= 100 {
		t.Fatalf("unexpected miss ratio %.2f", snap.MissRatio())
	}

	metrics.Reset()
	if metrics.Snapshot() != (MetricsSnapshot{}) {
		t.Fatalf("expected reset metrics")
	}
}

func TestEngineSearchAllocatesLittleOnceWarm(t *testing.T) {
	checks := world.LockChecks()
	world.SetLockChecks(false)
	t.Cleanup(func() { world.SetLockChecks(checks) })

	m := openGrid(t, 64, 64)
	engine := newTestEngine(t, m)
	req := request(at(0, 0, 0), at(63, 40, 0), 0)
	if _, err := engine.FindPath(context.Background(), req); err != nil {
		t.Fatalf("warm up: %v", err)
	}

	allocs := testing.AllocsPerRun(5, func() {
		if _, err := engine.FindPath(context.Background(), req); err != nil {
			t.Fatalf("search: %v", err)
		}
	})
	if allocs > 64 {
		t.Fatalf("expected a warmed search to reuse its buffers, got %.0f allocations", allocs)
	}
}
