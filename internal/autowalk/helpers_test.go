package autowalk

import (
	"context"
	"testing"
	"time"

	"tilewalker/internal/config"
	"tilewalker/internal/pathfinding"
	"tilewalker/internal/world"
)

type stubAgent struct {
	state world.AgentState
}

func (a *stubAgent) AgentState() world.AgentState {
	return a.state
}

type walkCall struct {
	dir world.Direction
	run bool
}

// stubMover applies every accepted step to the agent immediately.
type stubMover struct {
	agent    *stubAgent
	inFlight int
	readyAt  time.Time
	refuse   bool
	calls    []walkCall
}

func (m *stubMover) StepsInFlight() int {
	return m.inFlight
}

func (m *stubMover) ReadyAt() time.Time {
	return m.readyAt
}

func (m *stubMover) Walk(dir world.Direction, run bool) bool {
	m.calls = append(m.calls, walkCall{dir: dir, run: run})
	if m.refuse {
		return false
	}
	if m.agent.state.Facing != dir {
		m.agent.state.Facing = dir
		return true
	}
	dx, dy := dir.Offset()
	m.agent.state.Location.X += dx
	m.agent.state.Location.Y += dy
	return true
}

type stubPlanner struct {
	path     pathfinding.Path
	err      error
	requests []pathfinding.Request
}

func (p *stubPlanner) FindPath(_ context.Context, req pathfinding.Request) (pathfinding.Path, error) {
	p.requests = append(p.requests, req)
	return p.path, p.err
}

func flatMap(width, height int) *world.MemoryMap {
	m := world.NewMemoryMap()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m.SetColumn(x, y, world.Land(0x0003, 0, 0))
		}
	}
	return m
}

func agentAt(x, y int, facing world.Direction) world.AgentState {
	return world.AgentState{
		Location:   world.Location{X: x, Y: y},
		Facing:     facing,
		Stamina:    100,
		StaminaMax: 100,
	}
}

func newTestWalker(t *testing.T, tiles pathfinding.TileSource, agent *stubAgent) (*Walker, *stubMover) {
	t.Helper()
	cfg := config.Default()
	engine := pathfinding.NewEngine(tiles, pathfinding.SettingsFromConfig(cfg), nil)
	mover := &stubMover{agent: agent}
	w := NewWalker(engine, agent, mover, cfg.Walker, nil)
	w.now = func() time.Time { return time.Unix(0, 0) }
	return w, mover
}

// manualClock is advanced explicitly by tests.
type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time {
	return c.now
}

func (c *manualClock) Advance(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}
