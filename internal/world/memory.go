package world

import (
	"github.com/sasha-s/go-deadlock"
)

// MemoryMap is an in-memory tile map. Columns that were never set are
// unloaded and report no stack at all. It is safe for concurrent use; readers
// always receive copies.
type MemoryMap struct {
	mu      deadlock.RWMutex
	columns map[Point][]Entry
	bounds  Rect
	empty   bool
}

// SetLockChecks turns go-deadlock's detection on or off for every map. The
// detector records a stack per acquisition, so searches should run with it off.
// Call it before any map is shared between goroutines.
func SetLockChecks(enabled bool) {
	deadlock.Opts.Disable = !enabled
}

// LockChecks reports whether lock detection is on.
func LockChecks() bool {
	return !deadlock.Opts.Disable
}

func NewMemoryMap() *MemoryMap {
	return &MemoryMap{
		columns: make(map[Point][]Entry),
		empty:   true,
	}
}

// SetColumn replaces everything in the column at (x, y).
func (m *MemoryMap) SetColumn(x, y int, entries ...Entry) {
	dup := make([]Entry, len(entries))
	copy(dup, entries)
	m.mu.Lock()
	m.columns[Point{X: x, Y: y}] = dup
	m.grow(x, y)
	m.mu.Unlock()
}

// Add appends an entry to the column at (x, y), loading it if needed.
func (m *MemoryMap) Add(x, y int, entry Entry) {
	m.mu.Lock()
	key := Point{X: x, Y: y}
	m.columns[key] = append(m.columns[key], entry)
	m.grow(x, y)
	m.mu.Unlock()
}

// Unload forgets the column entirely.
func (m *MemoryMap) Unload(x, y int) {
	m.mu.Lock()
	delete(m.columns, Point{X: x, Y: y})
	m.mu.Unlock()
}

// AppendStack appends the column's entries to dst. The boolean is false when
// the column is not loaded.
func (m *MemoryMap) AppendStack(dst []Entry, x, y int) ([]Entry, bool) {
	m.mu.RLock()
	column, ok := m.columns[Point{X: x, Y: y}]
	if ok {
		dst = append(dst, column...)
	}
	m.mu.RUnlock()
	return dst, ok
}

// Column returns a copy of the column's entries.
func (m *MemoryMap) Column(x, y int) ([]Entry, bool) {
	return m.AppendStack(nil, x, y)
}

// LandZ returns the elevation of the land tile in the column.
func (m *MemoryMap) LandZ(x, y int) (int8, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.columns[Point{X: x, Y: y}] {
		if e.Kind == KindLand {
			return e.Z, true
		}
	}
	return 0, false
}

// Bounds returns the smallest rectangle containing every column ever loaded.
func (m *MemoryMap) Bounds() (Rect, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bounds, !m.empty
}

// Len reports the number of loaded columns.
func (m *MemoryMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.columns)
}

// ForEach visits a copy of each loaded column until fn returns false.
func (m *MemoryMap) ForEach(fn func(p Point, entries []Entry) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for p, column := range m.columns {
		dup := make([]Entry, len(column))
		copy(dup, column)
		if !fn(p, dup) {
			break
		}
	}
}

func (m *MemoryMap) grow(x, y int) {
	if m.empty {
		m.bounds = Rect{MinX: x, MinY: y, MaxX: x, MaxY: y}
		m.empty = false
		return
	}
	if x < m.bounds.MinX {
		m.bounds.MinX = x
	}
	if y < m.bounds.MinY {
		m.bounds.MinY = y
	}
	if x > m.bounds.MaxX {
		m.bounds.MaxX = x
	}
	if y > m.bounds.MaxY {
		m.bounds.MaxY = y
	}
}
