package pathfinding

import (
	"cmp"
	"slices"

	"tilewalker/internal/world"
)

// TileSource answers what stands in a column. The boolean is false when the
// column is unknown, which movement treats as impassable.
type TileSource interface {
	AppendStack(dst []world.Entry, x, y int) ([]world.Entry, bool)
}

const (
	floorZ   = -128
	ceilingZ = 128

	// stepHeight is the clearance a body needs above the surface it stands on.
	stepHeight = 16
	// headroom lets a walker step onto surfaces marginally above its feet.
	headroom = 2
	// flyingSnap is how far a flyer may be pulled onto a no-diagonal surface.
	flyingSnap = 25
)

var ceiling = Obstacle{Flags: ObstacleSolid, Z: ceilingZ, AverageZ: ceilingZ, Height: ceilingZ}

// resolver computes landing elevations. It keeps one stack buffer and one
// obstacle buffer and reuses them for every column it looks at, so results
// are only valid until the next call.
type resolver struct {
	tiles      TileSource
	classifier Classifier
	agent      world.AgentState
	state      StepState
	profiler   NavigatorProfiler

	stack     []world.Entry
	obstacles []Obstacle
}

func (r *resolver) column(x, y int) []Obstacle {
	var ok bool
	r.stack, ok = r.tiles.AppendStack(r.stack[:0], x, y)
	if r.profiler != nil {
		r.profiler.RecordColumnQuery(ok)
	}
	r.obstacles = r.obstacles[:0]
	if !ok {
		return r.obstacles
	}
	r.obstacles = r.classifier.Classify(r.obstacles, r.stack, r.state, r.agent)
	return r.obstacles
}

// band returns the elevation window a walker standing at currentZ in the
// column it leaves can reach. (x, y) is the destination; the origin is one
// step back along dir.
func (r *resolver) band(x, y, currentZ int, dir world.Direction) (minZ, maxZ int) {
	minZ, maxZ = floorZ, currentZ

	dx, dy := dir.Offset()
	column := r.column(x-dx, y-dy)
	if len(column) == 0 {
		return minZ, maxZ
	}

	for i := range column {
		obj := &column[i]
		if obj.stretched && obj.AverageZ <= currentZ {
			avg := obj.land.DirectionalZ(dir)
			minZ = max(minZ, avg)
			maxZ = max(maxZ, avg)
			continue
		}
		if obj.Flags.Has(ObstacleSolid) && obj.AverageZ <= currentZ && minZ < obj.AverageZ {
			minZ = obj.AverageZ
		}
		if obj.Flags.Has(ObstacleBridge) && currentZ == obj.AverageZ {
			maxZ = max(maxZ, obj.Z+obj.Height)
			minZ = min(minZ, obj.Z)
		}
	}
	return minZ, maxZ + headroom
}

// landing resolves the elevation at which a walker at z arriving from dir
// would stand in column (x, y).
func (r *resolver) landing(x, y, z int, dir world.Direction) (int, bool) {
	minZ, maxZ := r.band(x, y, z, dir)

	if r.agent.Confine != nil && !r.agent.Confine.Contains(x, y) {
		return 0, false
	}

	column := r.column(x, y)
	if len(column) == 0 {
		return 0, false
	}
	slices.SortStableFunc(column, func(a, b Obstacle) int {
		if c := cmp.Compare(a.Z, b.Z); c != 0 {
			return c
		}
		return cmp.Compare(a.Height, b.Height)
	})
	column = append(column, ceiling)
	r.obstacles = column

	resultZ := floorZ
	if z < minZ {
		z = minZ
	}
	bestDelta := 1_000_000
	topZ := floorZ

	for i := range column {
		obj := &column[i]

		if r.state == StepFlying && obj.Flags.Has(ObstacleNoDiagonal) && abs(obj.AverageZ-z) <= flyingSnap {
			if obj.AverageZ != floorZ {
				resultZ = obj.AverageZ
			} else {
				resultZ = topZ
			}
			break
		}

		if !obj.Flags.Has(ObstacleSolid) {
			continue
		}

		if obj.Z-minZ >= stepHeight {
			for j := i - 1; j >= 0; j-- {
				below := &column[j]
				if !below.Flags.Has(ObstacleSurface | ObstacleBridge) {
					continue
				}
				if below.AverageZ < topZ || obj.Z-below.AverageZ < stepHeight {
					continue
				}
				reachable := (below.AverageZ <= maxZ && below.Flags.Has(ObstacleSurface)) ||
					(below.Flags.Has(ObstacleBridge) && below.Z <= maxZ)
				if !reachable {
					continue
				}
				if delta := abs(z - below.AverageZ); delta < bestDelta {
					bestDelta = delta
					resultZ = below.AverageZ
				}
			}
		}

		minZ = max(minZ, obj.AverageZ)
		topZ = max(topZ, obj.AverageZ)
	}

	return resultZ, resultZ != floorZ
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
