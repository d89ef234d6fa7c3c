package pathfinding

import "tilewalker/internal/world"

// nodeID addresses a node in an arena. Parents are plain handles so a path
// never owns the nodes it passes through.
type nodeID int32

const nilNode nodeID = -1

type node struct {
	loc    world.Location
	dir    world.Direction
	g      int
	h      int
	f      int
	parent nodeID
}

// arena hands out search nodes and takes them back through a free list.
// Storage only grows; reset makes every node available again without
// releasing memory.
type arena struct {
	nodes []node
	free  []nodeID
	live  int
}

func newArena(capacity int) *arena {
	return &arena{
		nodes: make([]node, 0, capacity),
	}
}

func (a *arena) alloc() nodeID {
	a.live++
	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		a.nodes[id] = node{parent: nilNode}
		return id
	}
	a.nodes = append(a.nodes, node{parent: nilNode})
	return nodeID(len(a.nodes) - 1)
}

func (a *arena) release(id nodeID) {
	if id == nilNode {
		return
	}
	a.live--
	a.free = append(a.free, id)
}

func (a *arena) get(id nodeID) *node {
	return &a.nodes[id]
}

func (a *arena) reset() {
	a.nodes = a.nodes[:0]
	a.free = a.free[:0]
	a.live = 0
}

// inUse reports how many nodes are currently handed out.
func (a *arena) inUse() int {
	return a.live
}
