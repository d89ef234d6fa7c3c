package pathfinding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilewalker/internal/world"
)

func TestLandingOnFlatGround(t *testing.T) {
	m := openGrid(t, 3, 3)
	v := newTestValidator(t, m, walkerAt(at(1, 1, 0)))

	z, ok := v.Landing(2, 1, 0, world.East)
	require.True(t, ok)
	assert.Equal(t, 0, z)
}

func TestLandingRejectsWallsAndUnloadedColumns(t *testing.T) {
	m := gridMap(t, ".# ")
	v := newTestValidator(t, m, walkerAt(at(0, 0, 0)))

	_, ok := v.Landing(1, 0, 0, world.East)
	assert.False(t, ok, "wall column")

	_, ok = v.Landing(2, 0, 0, world.East)
	assert.False(t, ok, "unloaded column")
}

func TestLandingClimbsStairToItsSurface(t *testing.T) {
	m := gridMap(t, "./")
	v := newTestValidator(t, m, walkerAt(at(0, 0, 0)))

	z, ok := v.Landing(1, 0, 0, world.East)
	require.True(t, ok)
	assert.Equal(t, 5, z)
}

func TestLandingRejectsSurfaceAboveHeadroom(t *testing.T) {
	m := world.NewMemoryMap()
	m.SetColumn(0, 0, world.Land(grassGraphic, 0, 0))
	// A crate top at z 6 is neither a bridge nor within the +2 headroom.
	m.SetColumn(1, 0, world.Land(grassGraphic, 0, 0), world.Static(0x0E3D, 0, 6, world.FlagSurface))
	v := newTestValidator(t, m, walkerAt(at(0, 0, 0)))

	_, ok := v.Landing(1, 0, 0, world.East)
	assert.False(t, ok)

	// A step of 2 is fine.
	m.SetColumn(1, 0, world.Land(grassGraphic, 0, 0), world.Static(0x0E3D, 0, 2, world.FlagSurface))
	z, ok := v.Landing(1, 0, 0, world.East)
	require.True(t, ok)
	assert.Equal(t, 2, z)
}

func TestLandingBridgeDeckIsWalkableAboveAndBelow(t *testing.T) {
	m := gridMap(t, "==")

	below := newTestValidator(t, m, walkerAt(at(0, 0, 0)))
	z, ok := below.Landing(1, 0, 0, world.East)
	require.True(t, ok)
	assert.Equal(t, 0, z, "walking under the deck")

	above := newTestValidator(t, m, walkerAt(at(0, 0, 22)))
	z, ok = above.Landing(1, 0, 22, world.East)
	require.True(t, ok)
	assert.Equal(t, 22, z, "walking on the deck")
}

func TestLandingFollowsStretchedLand(t *testing.T) {
	m := world.NewMemoryMap()
	m.SetColumn(0, 0, world.Land(grassGraphic, 0, 0))
	m.SetColumn(1, 0, world.StretchedLand(grassGraphic, [4]int8{0, 10, 10, 0}, 0))
	v := newTestValidator(t, m, walkerAt(at(0, 0, 0)))

	z, ok := v.Landing(1, 0, 0, world.East)
	require.True(t, ok)
	assert.Equal(t, 5, z)
}

func TestLandingRespectsConfinement(t *testing.T) {
	m := openGrid(t, 4, 1)
	agent := walkerAt(at(0, 0, 0))
	agent.Confine = &world.Rect{MinX: 0, MinY: 0, MaxX: 1, MaxY: 0}
	v := newTestValidator(t, m, agent)

	_, ok := v.Landing(1, 0, 0, world.East)
	assert.True(t, ok)
	_, ok = v.Landing(2, 0, 0, world.East)
	assert.False(t, ok)
}

func TestLandingFlyerSnapsToNoDiagonalSurface(t *testing.T) {
	m := world.NewMemoryMap()
	m.SetColumn(0, 0, world.Land(grassGraphic, 0, 0))
	m.SetColumn(1, 0, world.Land(grassGraphic, 0, 0), world.Static(0x0001, 20, 0, world.FlagSurface|world.FlagNoDiagonal))

	agent := walkerAt(at(0, 0, 0))
	agent.Flying = true
	v := newTestValidator(t, m, agent)

	z, ok := v.Landing(1, 0, 0, world.East)
	require.True(t, ok)
	assert.Equal(t, 20, z)
}

func TestTryStepCardinal(t *testing.T) {
	m := openGrid(t, 3, 3)
	v := newTestValidator(t, m, walkerAt(at(1, 1, 0)))

	loc, dir, ok := v.TryStep(at(1, 1, 0), world.North)
	require.True(t, ok)
	assert.Equal(t, world.North, dir)
	assert.Equal(t, at(1, 0, 0), loc)
}

func TestTryStepDiagonalNeedsBothSides(t *testing.T) {
	m := openGrid(t, 2, 2)
	v := newTestValidator(t, m, walkerAt(at(0, 0, 0)))

	loc, dir, ok := v.TryStep(at(0, 0, 0), world.SouthEast)
	require.True(t, ok)
	assert.Equal(t, world.SouthEast, dir)
	assert.Equal(t, at(1, 1, 0), loc)
}

func TestTryStepDiagonalSlidesPastOneBlockedSide(t *testing.T) {
	m := gridMap(t,
		"..",
		"#.",
	)
	v := newTestValidator(t, m, walkerAt(at(0, 0, 0)))

	// South is walled, so the south-east move slides east.
	loc, dir, ok := v.TryStep(at(0, 0, 0), world.SouthEast)
	require.True(t, ok)
	assert.Equal(t, world.East, dir)
	assert.Equal(t, at(1, 0, 0), loc)
}

func TestTryStepDiagonalSlideTriesClockwiseFirst(t *testing.T) {
	// Target corner walled: both orthogonals are open, clockwise wins.
	m := gridMap(t,
		"..",
		".#",
	)
	v := newTestValidator(t, m, walkerAt(at(0, 0, 0)))

	loc, dir, ok := v.TryStep(at(0, 0, 0), world.SouthEast)
	require.True(t, ok)
	assert.Equal(t, world.South, dir)
	assert.Equal(t, at(0, 1, 0), loc)
}

func TestTryStepDiagonalBlockedOnBothSides(t *testing.T) {
	m := gridMap(t,
		".#",
		"#.",
	)
	v := newTestValidator(t, m, walkerAt(at(0, 0, 0)))

	_, _, ok := v.TryStep(at(0, 0, 0), world.SouthEast)
	assert.False(t, ok)
}
