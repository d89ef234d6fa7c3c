package pathfinding

import (
	"context"
	"sync/atomic"
	"time"
)

// NavigatorProfiler receives search events. Engines look for one in the
// context passed to FindPath.
type NavigatorProfiler interface {
	RecordSearch(duration time.Duration, found bool)
	RecordNodeExpanded()
	RecordNeighborGeneration(count int)
	RecordStaleEntry()
	RecordHeuristicEvaluation()
	RecordColumnQuery(loaded bool)
}

type counter int

const (
	cSearches counter = iota
	cSearchesFound
	cSearchNanos
	cNodesExpanded
	cNeighborGenerations
	cNeighborCount
	cStaleEntries
	cHeuristicEvaluations
	cColumnQueries
	cColumnMisses
	counterCount
)

// NavigatorMetrics is a NavigatorProfiler sink safe for engines on several
// goroutines. The zero value is ready to use.
type NavigatorMetrics struct {
	counters [counterCount]atomic.Int64
}

// MetricsSnapshot is a copy of the counters at one moment.
type MetricsSnapshot struct {
	Searches      int64
	SearchesFound int64
	SearchTime    time.Duration

	NodesExpanded        int64
	NeighborGenerations  int64
	NeighborCount        int64
	StaleEntries         int64
	HeuristicEvaluations int64

	ColumnQueries int64
	ColumnMisses  int64
}

// MissRatio is the share of column queries that hit unloaded columns, in
// percent.
func (s MetricsSnapshot) MissRatio() float64 {
	if s.ColumnQueries == 0 {
		return 0
	}
	return float64(s.ColumnMisses) / float64(s.ColumnQueries) * 100
}

// BranchingFactor is the mean number of neighbours queued per expansion.
func (s MetricsSnapshot) BranchingFactor() float64 {
	if s.NeighborGenerations == 0 {
		return 0
	}
	return float64(s.NeighborCount) / float64(s.NeighborGenerations)
}

func (m *NavigatorMetrics) Profiler() NavigatorProfiler {
	if m == nil {
		return nil
	}
	return metricsProfiler{m}
}

func (m *NavigatorMetrics) Reset() {
	if m == nil {
		return
	}
	for i := range m.counters {
		m.counters[i].Store(0)
	}
}

func (m *NavigatorMetrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	get := func(c counter) int64 { return m.counters[c].Load() }
	return MetricsSnapshot{
		Searches:             get(cSearches),
		SearchesFound:        get(cSearchesFound),
		SearchTime:           time.Duration(get(cSearchNanos)),
		NodesExpanded:        get(cNodesExpanded),
		NeighborGenerations:  get(cNeighborGenerations),
		NeighborCount:        get(cNeighborCount),
		StaleEntries:         get(cStaleEntries),
		HeuristicEvaluations: get(cHeuristicEvaluations),
		ColumnQueries:        get(cColumnQueries),
		ColumnMisses:         get(cColumnMisses),
	}
}

func (m *NavigatorMetrics) add(c counter, n int64) {
	m.counters[c].Add(n)
}

type metricsProfiler struct {
	m *NavigatorMetrics
}

func (p metricsProfiler) RecordSearch(duration time.Duration, found bool) {
	p.m.add(cSearches, 1)
	p.m.add(cSearchNanos, duration.Nanoseconds())
	if found {
		p.m.add(cSearchesFound, 1)
	}
}

func (p metricsProfiler) RecordNodeExpanded() { p.m.add(cNodesExpanded, 1) }

func (p metricsProfiler) RecordNeighborGeneration(count int) {
	p.m.add(cNeighborGenerations, 1)
	p.m.add(cNeighborCount, int64(count))
}

func (p metricsProfiler) RecordStaleEntry() { p.m.add(cStaleEntries, 1) }

func (p metricsProfiler) RecordHeuristicEvaluation() { p.m.add(cHeuristicEvaluations, 1) }

func (p metricsProfiler) RecordColumnQuery(loaded bool) {
	p.m.add(cColumnQueries, 1)
	if !loaded {
		p.m.add(cColumnMisses, 1)
	}
}

type profilerKey struct{}

// ContextWithProfiler attaches p to ctx for the searches run under it. A nil
// profiler leaves ctx unchanged.
func ContextWithProfiler(ctx context.Context, p NavigatorProfiler) context.Context {
	if p == nil {
		return ctx
	}
	return context.WithValue(ctx, profilerKey{}, p)
}

func profilerFromContext(ctx context.Context) NavigatorProfiler {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(profilerKey{}).(NavigatorProfiler)
	return p
}
