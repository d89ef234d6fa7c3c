// Package terrain builds repeatable tile maps for profiling and tests.
package terrain

import (
	"context"
	"math"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"

	"tilewalker/internal/config"
	"tilewalker/internal/logging"
	"tilewalker/internal/world"
)

const (
	landGraphic  = 0x0003
	wallGraphic  = 0x0080
	stairGraphic = 0x0751

	wallHeight = 20
	// A column rising at least this far to a neighbour may get a stair.
	steepRise    = 4
	maxStairRise = 30

	minElevation = -100
	maxElevation = 100
)

// NoiseGenerator creates repeatable terrain using hashed value noise. Land
// follows a fractal heightmap, walls and stairs are scattered by hashing the
// column coordinates, so the same seed always yields the same map.
type NoiseGenerator struct {
	cfg  config.TerrainConfig
	seed int64
	log  logrus.FieldLogger
}

func NewNoiseGenerator(cfg config.TerrainConfig, log logrus.FieldLogger) *NoiseGenerator {
	return &NoiseGenerator{
		cfg:  cfg,
		seed: cfg.Seed,
		log:  logging.Component(log, "terrain"),
	}
}

// Layout describes what Populate placed.
type Layout struct {
	Area      world.Rect
	Columns   int
	Stretched int
	walls     mapset.Set[world.Point]
	stairs    mapset.Set[world.Point]
}

func (l *Layout) Walls() int {
	return l.walls.Size()
}

func (l *Layout) Stairs() int {
	return l.stairs.Size()
}

// Blocked reports whether p holds a wall.
func (l *Layout) Blocked(p world.Point) bool {
	return l.walls.Has(p)
}

// Pick draws a column inside the area that holds no wall. It gives up after a
// bounded number of draws.
func (l *Layout) Pick(rng *RNG) (world.Point, bool) {
	width := l.Area.MaxX - l.Area.MinX + 1
	height := l.Area.MaxY - l.Area.MinY + 1
	if width <= 0 || height <= 0 {
		return world.Point{}, false
	}
	for attempt := 0; attempt < 64; attempt++ {
		p := world.Point{
			X: l.Area.MinX + rng.Intn(width),
			Y: l.Area.MinY + rng.Intn(height),
		}
		if !l.walls.Has(p) {
			return p, true
		}
	}
	return world.Point{}, false
}

// Survey rebuilds a layout from an existing map, e.g. one loaded from a
// snapshot. Columns holding an impassable static count as walls and bridge
// statics as stairs.
func Survey(m *world.MemoryMap) *Layout {
	area, _ := m.Bounds()
	layout := &Layout{
		Area:   area,
		walls:  mapset.New[world.Point](),
		stairs: mapset.New[world.Point](),
	}
	m.ForEach(func(p world.Point, column []world.Entry) bool {
		layout.Columns++
		for _, e := range column {
			switch {
			case e.Kind == world.KindLand:
				if e.Stretched {
					layout.Stretched++
				}
			case e.Kind == world.KindStatic && e.Flags.Has(world.FlagImpassable):
				layout.walls.Put(p)
			case e.Kind == world.KindStatic && e.Flags.Has(world.FlagBridge):
				layout.stairs.Put(p)
			}
		}
		return true
	})
	return layout
}

// Height returns the land elevation of the vertex at (x, y).
func (g *NoiseGenerator) Height(x, y int) int8 {
	noise := g.fractalNoise(float64(x), float64(y))
	z := g.cfg.BaseZ + int(math.Round(noise*g.cfg.Amplitude))
	return int8(clampInt(z, minElevation, maxElevation))
}

// Populate replaces every column of area in m with generated terrain.
func (g *NoiseGenerator) Populate(ctx context.Context, m *world.MemoryMap, area world.Rect) (*Layout, error) {
	layout := &Layout{
		Area:   area,
		walls:  mapset.New[world.Point](),
		stairs: mapset.New[world.Point](),
	}
	width := area.MaxX - area.MinX + 1
	height := area.MaxY - area.MinY + 1
	totalColumns := width * height
	if width <= 0 || height <= 0 {
		return layout, nil
	}

	for x := area.MinX; x <= area.MaxX; x++ {
		for y := area.MinY; y <= area.MaxY; y++ {
			p := world.Point{X: x, Y: y}
			switch {
			case g.stairCandidate(x, y):
				layout.stairs.Put(p)
			case g.chance(x, y, g.seed, g.cfg.WallDensity):
				layout.walls.Put(p)
			}
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type columnResult struct {
		point     world.Point
		entries   []world.Entry
		stretched bool
		err       error
	}

	workers := g.workerCount(totalColumns)
	tasks := make(chan world.Point, workers)
	results := make(chan columnResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range tasks {
				if err := ctx.Err(); err != nil {
					select {
					case results <- columnResult{err: err}:
					default:
					}
					return
				}
				entries, stretched := g.column(p, layout.walls.Has(p), layout.stairs.Has(p))
				select {
				case results <- columnResult{point: p, entries: entries, stretched: stretched}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(tasks)
		for x := area.MinX; x <= area.MaxX; x++ {
			for y := area.MinY; y <= area.MaxY; y++ {
				select {
				case <-ctx.Done():
					return
				case tasks <- world.Point{X: x, Y: y}:
				}
			}
		}
	}()

	nextLogPercent := 10
	for result := range results {
		if result.err != nil {
			cancel()
			return nil, result.err
		}
		m.SetColumn(result.point.X, result.point.Y, result.entries...)
		layout.Columns++
		if result.stretched {
			layout.Stretched++
		}

		progress := layout.Columns * 100 / totalColumns
		if progress >= nextLogPercent {
			g.log.WithField("progress", progress).Debug("terrain generation progress")
			nextLogPercent = (progress/10 + 1) * 10
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{
		"columns":   layout.Columns,
		"stretched": layout.Stretched,
		"walls":     layout.Walls(),
		"stairs":    layout.Stairs(),
	}).Info("terrain generated")
	return layout, nil
}

// column builds the stack for one tile. Land corners are the heights of the
// tile's own vertex and its east, south-east and south neighbours.
func (g *NoiseGenerator) column(p world.Point, wall, stair bool) ([]world.Entry, bool) {
	corners := [4]int8{
		world.CornerTop:    g.Height(p.X, p.Y),
		world.CornerRight:  g.Height(p.X+1, p.Y),
		world.CornerBottom: g.Height(p.X+1, p.Y+1),
		world.CornerLeft:   g.Height(p.X, p.Y+1),
	}
	land := world.Land(landGraphic, corners[world.CornerTop], 0)
	stretched := corners[0] != corners[1] || corners[0] != corners[2] || corners[0] != corners[3]
	if stretched {
		land = world.StretchedLand(landGraphic, corners, 0)
	}
	entries := []world.Entry{land}

	switch {
	case stair:
		rise := g.rise(p.X, p.Y)
		if rise > maxStairRise {
			rise = maxStairRise
		}
		entries = append(entries, world.Static(stairGraphic, land.AverageZ, uint8(rise), world.FlagSurface|world.FlagBridge))
	case wall:
		top := land.MinZ
		for _, c := range corners {
			if c > top {
				top = c
			}
		}
		entries = append(entries, world.Static(wallGraphic, land.MinZ, uint8(wallHeight+int(top)-int(land.MinZ)), world.FlagImpassable))
	}
	return entries, stretched
}

// rise is how far the highest neighbouring vertex sits above (x, y).
func (g *NoiseGenerator) rise(x, y int) int {
	base := int(g.Height(x, y))
	best := 0
	for d := world.Direction(0); d < world.DirectionCount; d++ {
		n := world.Point{X: x, Y: y}.Step(d)
		if r := int(g.Height(n.X, n.Y)) - base; r > best {
			best = r
		}
	}
	return best
}

func (g *NoiseGenerator) stairCandidate(x, y int) bool {
	if g.cfg.StairDensity <= 0 || g.rise(x, y) < steepRise {
		return false
	}
	return g.chance(x, y, g.seed^0x5f3759df, g.cfg.StairDensity)
}

func (g *NoiseGenerator) chance(x, y int, seed int64, density float64) bool {
	if density <= 0 {
		return false
	}
	roll := float64(hash3(x, y, int(seed))&0xFFFF) / 0xFFFF
	return roll < density
}

func (g *NoiseGenerator) fractalNoise(x, y float64) float64 {
	frequency := g.cfg.Frequency
	amplitude := 1.0
	noiseSum := 0.0
	maxAmplitude := 0.0

	for i := 0; i < g.cfg.Octaves; i++ {
		noise := g.valueNoise(x*frequency, y*frequency)
		noiseSum += noise * amplitude
		maxAmplitude += amplitude
		amplitude *= g.cfg.Persistence
		frequency *= g.cfg.Lacunarity
	}

	if maxAmplitude == 0 {
		return 0
	}
	return noiseSum / maxAmplitude
}

func (g *NoiseGenerator) valueNoise(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := x0 + 1
	y1 := y0 + 1

	sx := smooth(x - float64(x0))
	sy := smooth(y - float64(y0))

	ix0 := lerp(random2D(x0, y0, g.seed), random2D(x1, y0, g.seed), sx)
	ix1 := lerp(random2D(x0, y1, g.seed), random2D(x1, y1, g.seed), sx)
	return lerp(ix0, ix1, sy)
}

func smooth(t float64) float64 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func random2D(x, y int, seed int64) float64 {
	return float64(hash3(x, y, int(seed))&0xFFFF)/0x8000 - 1.0
}

func hash3(x, y, z int) uint32 {
	h := uint32(x*374761393 + y*668265263 + z*2147483647)
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (g *NoiseGenerator) workerCount(totalColumns int) int {
	workers := g.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0) * 2
	}
	if workers > totalColumns {
		workers = totalColumns
	}
	if workers <= 0 {
		workers = 1
	}
	return workers
}
