package pathfinding

import (
	"container/heap"

	"tilewalker/internal/world"
)

// frontier is the open set: a binary heap ordered by priority with a lookup
// from location to its live entry. Improving a location's priority pushes a
// fresh entry and invalidates the old one, which is discarded when it reaches
// the top of the heap.
type frontier struct {
	queue  entryQueue
	lookup map[world.Location]*frontierEntry
	spare  []*frontierEntry
	seq    uint64
}

type frontierEntry struct {
	node     nodeID
	loc      world.Location
	priority int
	seq      uint64
	valid    bool
	index    int
}

func newFrontier(capacity int) *frontier {
	return &frontier{
		queue:  make(entryQueue, 0, capacity),
		lookup: make(map[world.Location]*frontierEntry, capacity),
	}
}

// push offers node at loc. It is refused when loc is already queued at an
// equal or better priority.
func (f *frontier) push(id nodeID, loc world.Location, priority int) bool {
	if existing, ok := f.lookup[loc]; ok {
		if existing.priority <= priority {
			return false
		}
		existing.valid = false
	}

	e := f.acquire()
	f.seq++
	*e = frontierEntry{node: id, loc: loc, priority: priority, seq: f.seq, valid: true}
	heap.Push(&f.queue, e)
	f.lookup[loc] = e
	return true
}

// pop removes the top entry. Stale entries are returned with valid false so
// the caller can release their nodes; ok is false once the heap is empty.
func (f *frontier) pop() (id nodeID, loc world.Location, valid bool, ok bool) {
	if len(f.queue) == 0 {
		return nilNode, world.Location{}, false, false
	}
	e := heap.Pop(&f.queue).(*frontierEntry)
	id, loc, valid = e.node, e.loc, e.valid
	if f.lookup[loc] == e {
		delete(f.lookup, loc)
	}
	f.spare = append(f.spare, e)
	return id, loc, valid, true
}

func (f *frontier) contains(loc world.Location) bool {
	_, ok := f.lookup[loc]
	return ok
}

// len counts heap entries, stale ones included.
func (f *frontier) len() int {
	return len(f.queue)
}

func (f *frontier) reset() {
	for i, e := range f.queue {
		f.spare = append(f.spare, e)
		f.queue[i] = nil
	}
	f.queue = f.queue[:0]
	clear(f.lookup)
	f.seq = 0
}

func (f *frontier) acquire() *frontierEntry {
	if n := len(f.spare); n > 0 {
		e := f.spare[n-1]
		f.spare = f.spare[:n-1]
		return e
	}
	return &frontierEntry{}
}

type entryQueue []*frontierEntry

func (q entryQueue) Len() int { return len(q) }

// Less orders by priority; among equals the most recent entry comes first.
func (q entryQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq > q[j].seq
}

func (q entryQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *entryQueue) Push(x any) {
	item := x.(*frontierEntry)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *entryQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}
