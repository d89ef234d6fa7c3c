package pathfinding

import (
	"testing"

	"tilewalker/internal/config"
	"tilewalker/internal/world"
)

const (
	grassGraphic = 0x0003
	wallGraphic  = 0x0080
	stairGraphic = 0x0752
)

// gridMap builds a map from rows of runes, x growing to the right and y
// downwards:
//
//	.  flat land at z 0
//	#  land with a wall on top
//	/  land with a half-height stair block (landing at z 5)
//	=  land under a bridge deck whose walkable top is z 22
//	m  land with a standing character
//	   (space) unloaded column
func gridMap(t *testing.T, rows ...string) *world.MemoryMap {
	t.Helper()
	m := world.NewMemoryMap()
	for y, row := range rows {
		for x, r := range row {
			switch r {
			case ' ':
				continue
			case '.':
				m.SetColumn(x, y, world.Land(grassGraphic, 0, 0))
			case '#':
				m.SetColumn(x, y,
					world.Land(grassGraphic, 0, 0),
					world.Static(wallGraphic, 0, 20, world.FlagImpassable),
				)
			case '/':
				m.SetColumn(x, y,
					world.Land(grassGraphic, 0, 0),
					world.Static(stairGraphic, 0, 10, world.FlagSurface|world.FlagBridge),
				)
			case '=':
				m.SetColumn(x, y,
					world.Land(grassGraphic, 0, 0),
					world.Static(stairGraphic, 20, 4, world.FlagSurface|world.FlagBridge),
				)
			case 'm':
				m.SetColumn(x, y, world.Land(grassGraphic, 0, 0), world.Mobile(0))
			default:
				t.Fatalf("unknown map rune %q at (%d,%d)", r, x, y)
			}
		}
	}
	return m
}

func openGrid(t *testing.T, width, height int) *world.MemoryMap {
	t.Helper()
	rows := make([]string, height)
	for y := range rows {
		row := make([]byte, width)
		for x := range row {
			row[x] = '.'
		}
		rows[y] = string(row)
	}
	return gridMap(t, rows...)
}

func newTestEngine(t *testing.T, tiles TileSource) *Engine {
	t.Helper()
	return NewEngine(tiles, DefaultSettings(), nil)
}

func newTestValidator(t *testing.T, tiles TileSource, agent world.AgentState) *Validator {
	t.Helper()
	v := NewValidator(tiles, config.MovementConfig{})
	v.Reset(agent)
	return v
}

func at(x, y int, z int8) world.Location {
	return world.Location{X: x, Y: y, Z: z}
}

func walkerAt(loc world.Location) world.AgentState {
	return world.AgentState{Location: loc, Stamina: 100, StaminaMax: 100}
}

func request(start, goal world.Location, distance int) Request {
	return Request{Start: start, Goal: goal, Distance: distance, Agent: walkerAt(start)}
}

// replay checks that every step of the path is a legal single move from the
// step before it.
func replay(t *testing.T, tiles TileSource, path Path, agent world.AgentState) {
	t.Helper()
	v := newTestValidator(t, tiles, agent)
	for i := 1; i < len(path.Steps); i++ {
		prev, step := path.Steps[i-1], path.Steps[i]
		loc, dir, ok := v.TryStep(prev.Location, step.Direction)
		if !ok {
			t.Fatalf("step %d: %v -> %v rejected on replay", i, prev.Location, step.Direction)
		}
		if dir != step.Direction {
			t.Fatalf("step %d: expected direction %v, replay slid to %v", i, step.Direction, dir)
		}
		if loc != step.Location {
			t.Fatalf("step %d: expected %v, replay landed at %v", i, step.Location, loc)
		}
	}
}
