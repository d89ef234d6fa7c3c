package world

import (
	"fmt"
	"strings"
)

// Point is a column position on the map.
type Point struct {
	X int
	Y int
}

// Location is a column position plus the elevation of whatever stands there.
type Location struct {
	X int
	Y int
	Z int8
}

// Point drops the elevation.
func (l Location) Point() Point {
	return Point{X: l.X, Y: l.Y}
}

func (l Location) String() string {
	return fmt.Sprintf("(%d,%d,%d)", l.X, l.Y, l.Z)
}

// Rect is an inclusive rectangle of columns.
type Rect struct {
	MinX, MinY int
	MaxX, MaxY int
}

func (r Rect) Contains(x, y int) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// Direction numbers the eight compass moves clockwise from north. North is -Y
// and east is +X. Odd values are diagonals.
type Direction uint8

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

// DirectionCount is the number of compass directions.
const DirectionCount = 8

var (
	offsetX = [DirectionCount]int{0, 1, 1, 1, 0, -1, -1, -1}
	offsetY = [DirectionCount]int{-1, -1, 0, 1, 1, 1, 0, -1}

	directionNames = [DirectionCount]string{
		"north", "northeast", "east", "southeast",
		"south", "southwest", "west", "northwest",
	}
	directionAliases = map[string]Direction{
		"n": North, "ne": NorthEast, "e": East, "se": SouthEast,
		"s": South, "sw": SouthWest, "w": West, "nw": NorthWest,
		"up": NorthWest, "right": NorthEast, "down": SouthEast, "left": SouthWest,
	}
)

// Offset returns the column delta of one step in d.
func (d Direction) Offset() (dx, dy int) {
	d &= 7
	return offsetX[d], offsetY[d]
}

// Rotate turns d clockwise by n eighths; negative n turns counter-clockwise.
func (d Direction) Rotate(n int) Direction {
	return Direction((int(d&7) + n%DirectionCount + DirectionCount) % DirectionCount)
}

func (d Direction) IsDiagonal() bool {
	return d&1 == 1
}

func (d Direction) String() string {
	if d >= DirectionCount {
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
	return directionNames[d]
}

// ParseDirection accepts full names ("northeast", "north-east"), compass
// abbreviations ("ne") and the screen-relative names used by scripts
// ("up", "right", "down", "left").
func ParseDirection(value string) (Direction, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	for i, name := range directionNames {
		if key == name {
			return Direction(i), nil
		}
	}
	if d, ok := directionAliases[key]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown direction %q", value)
}

// Step returns the column one move away from p in d.
func (p Point) Step(d Direction) Point {
	dx, dy := d.Offset()
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Chebyshev is the king-move distance between two columns.
func Chebyshev(a, b Point) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

