package pathfinding

import (
	"tilewalker/internal/config"
	"tilewalker/internal/world"
)

// Validator decides whether a single step is legal for one agent and where
// it lands. Bind the agent with Reset before use. A Validator holds scratch
// buffers and must not be shared between goroutines.
type Validator struct {
	r resolver
}

func NewValidator(tiles TileSource, movement config.MovementConfig) *Validator {
	return &Validator{
		r: resolver{
			tiles:      tiles,
			classifier: NewClassifier(movement),
			stack:      make([]world.Entry, 0, 16),
			obstacles:  make([]Obstacle, 0, 16),
		},
	}
}

// Reset binds the validator to an agent snapshot.
func (v *Validator) Reset(agent world.AgentState) {
	v.r.agent = agent
	v.r.state = StepStateFor(agent)
}

// StepState reports the movement mode of the bound agent.
func (v *Validator) StepState() StepState {
	return v.r.state
}

func (v *Validator) setProfiler(p NavigatorProfiler) {
	v.r.profiler = p
}

// Landing resolves the elevation of column (x, y) for a walker at z arriving
// while moving in dir.
func (v *Validator) Landing(x, y, z int, dir world.Direction) (int, bool) {
	return v.r.landing(x, y, z, dir)
}

// TryStep checks a step from loc in dir. A diagonal is only taken when both
// orthogonal moves beside it are also legal; otherwise the step slides to the
// first legal orthogonal, clockwise first, and the returned direction says
// which one.
func (v *Validator) TryStep(loc world.Location, dir world.Direction) (world.Location, world.Direction, bool) {
	dir &= 7
	x, y, z := loc.X, loc.Y, int(loc.Z)

	dx, dy := dir.Offset()
	newX, newY := x+dx, y+dy
	newZ, passed := v.r.landing(newX, newY, z, dir)

	if dir.IsDiagonal() {
		if passed {
			for _, turn := range [2]int{1, -1} {
				side := dir.Rotate(turn)
				sx, sy := side.Offset()
				if _, ok := v.r.landing(x+sx, y+sy, z, side); !ok {
					passed = false
					break
				}
			}
		}
		if !passed {
			for _, turn := range [2]int{1, -1} {
				side := dir.Rotate(turn)
				sx, sy := side.Offset()
				if sideZ, ok := v.r.landing(x+sx, y+sy, z, side); ok {
					dir = side
					newX, newY, newZ = x+sx, y+sy, sideZ
					passed = true
					break
				}
			}
		}
	}

	if !passed {
		return loc, dir, false
	}
	return world.Location{X: newX, Y: newY, Z: clampZ(newZ)}, dir, true
}

func clampZ(z int) int8 {
	switch {
	case z < -128:
		return -128
	case z > 127:
		return 127
	}
	return int8(z)
}
