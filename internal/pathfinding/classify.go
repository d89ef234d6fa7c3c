package pathfinding

import (
	"tilewalker/internal/config"
	"tilewalker/internal/world"
)

// ObstacleFlags is the movement view of a column entry.
type ObstacleFlags uint8

const (
	// ObstacleSolid marks anything that blocks the space it occupies or can
	// be stood upon.
	ObstacleSolid ObstacleFlags = 1 << iota
	ObstacleSurface
	ObstacleBridge
	ObstacleNoDiagonal
)

func (f ObstacleFlags) Has(flag ObstacleFlags) bool {
	return f&flag != 0
}

// Obstacle is a classified column entry: Z is its base, AverageZ the height a
// walker stands at on top of it, and Height its full vertical extent.
type Obstacle struct {
	Flags    ObstacleFlags
	Z        int
	AverageZ int
	Height   int

	land      world.Entry
	stretched bool
}

// StepState is the agent's movement mode as far as passability is concerned.
type StepState uint8

const (
	StepNormal StepState = iota
	StepDeadOrGM
	StepFlying
	StepSeaMount
)

func (s StepState) String() string {
	switch s {
	case StepDeadOrGM:
		return "dead-or-gm"
	case StepFlying:
		return "flying"
	case StepSeaMount:
		return "sea-mount"
	default:
		return "normal"
	}
}

// StepStateFor derives the movement mode from an agent snapshot.
func StepStateFor(agent world.AgentState) StepState {
	switch {
	case agent.Dead || agent.GameMaster:
		return StepDeadOrGM
	case agent.Flying:
		return StepFlying
	case agent.SeaMount:
		return StepSeaMount
	default:
		return StepNormal
	}
}

const (
	characterHeight = 16

	doorPassWeight = 0x5A
)

// Classifier turns raw column entries into obstacles for one agent.
type Classifier struct {
	movement config.MovementConfig
}

func NewClassifier(movement config.MovementConfig) Classifier {
	return Classifier{movement: movement}
}

// ignoresCharacters reports whether other mobiles can be walked through.
// Characters only block a living walker on the main map with missing stamina.
func (c Classifier) ignoresCharacters(state StepState, agent world.AgentState) bool {
	if c.movement.IgnoreStaminaCheck || state == StepDeadOrGM || agent.IgnoreCharacters {
		return true
	}
	return !(agent.Stamina < agent.StaminaMax && agent.MapIndex == 0)
}

// Classify appends the obstacles found in stack to dst, in stack order.
func (c Classifier) Classify(dst []Obstacle, stack []world.Entry, state StepState, agent world.AgentState) []Obstacle {
	ignoreCharacters := c.ignoresCharacters(state, agent)
	confined := agent.Confine != nil

	for i := range stack {
		e := &stack[i]
		if confined && e.Z < agent.Location.Z {
			continue
		}

		switch e.Kind {
		case world.KindEffect:
			continue
		case world.KindLand:
			if obs, ok := classifyLand(e, state); ok {
				dst = append(dst, obs)
			}
			continue
		case world.KindMobile:
			if !ignoreCharacters && !e.Dead && !e.IgnoresCharacters {
				z := int(e.Z)
				dst = append(dst, Obstacle{
					Flags:    ObstacleSolid,
					Z:        z,
					AverageZ: z + characterHeight,
					Height:   characterHeight,
				})
			}
			continue
		}

		dropFlags := false
		switch e.Kind {
		case world.KindItem:
			dropFlags = c.passableItem(e, state, agent)
		case world.KindMulti:
			if (confined && e.Multi.Has(world.MultiCustom) && !e.Multi.Has(world.MultiGenericInternal)) ||
				e.Multi.Has(world.MultiHousePreview) {
				continue
			}
			dropFlags = e.Multi.Has(world.MultiIgnoreInRender)
		}

		if obs, ok := classifyObject(e, state, dropFlags); ok {
			dst = append(dst, obs)
		}
	}
	return dst
}

func (c Classifier) passableItem(e *world.Entry, state StepState, agent world.AgentState) bool {
	door := e.Flags.Has(world.FlagDoor)
	switch {
	case state == StepDeadOrGM && (door || e.Weight <= doorPassWeight || (agent.GameMaster && !e.Locked)):
		return true
	case c.movement.SmoothDoors && door:
		return true
	}
	return (e.Graphic >= 0x3946 && e.Graphic <= 0x3964) || e.Graphic == 0x0082
}

// voidLand reports land graphics that are drawn as nothing at all.
func voidLand(graphic uint16) bool {
	return graphic == 2 || (graphic >= 0x01AE && graphic <= 0x01B5) || graphic == 0x01DB
}

func classifyLand(e *world.Entry, state StepState) (Obstacle, bool) {
	if voidLand(e.Graphic) {
		return Obstacle{}, false
	}
	flags := ObstacleSolid
	impassable := e.Flags.Has(world.FlagImpassable)
	if state == StepSeaMount {
		if e.Flags.Has(world.FlagWet) {
			flags |= ObstacleSurface | ObstacleBridge
		}
	} else if !impassable {
		flags |= ObstacleSurface | ObstacleBridge
	}
	if state == StepFlying && e.Flags.Has(world.FlagNoDiagonal) {
		flags |= ObstacleNoDiagonal
	}
	minZ, avgZ := int(e.MinZ), int(e.AverageZ)
	return Obstacle{
		Flags:     flags,
		Z:         minZ,
		AverageZ:  avgZ,
		Height:    avgZ - minZ,
		land:      *e,
		stretched: e.Stretched,
	}, true
}

func classifyObject(e *world.Entry, state StepState, dropFlags bool) (Obstacle, bool) {
	var flags ObstacleFlags
	impassable := e.Flags.Has(world.FlagImpassable)
	surface := e.Flags.Has(world.FlagSurface)
	bridge := e.Flags.Has(world.FlagBridge)

	if state == StepSeaMount {
		if e.Flags.Has(world.FlagWet) {
			flags = ObstacleSurface | ObstacleBridge
		}
	} else {
		if impassable || surface {
			flags = ObstacleSolid
		}
		if !impassable {
			if surface {
				flags |= ObstacleSurface
			}
			if bridge {
				flags |= ObstacleBridge
			}
		}
		if state == StepDeadOrGM && ghostPassable(e.Graphic) {
			dropFlags = true
		}
	}
	if dropFlags {
		flags &^= ObstacleSolid
	}
	if state == StepFlying && e.Flags.Has(world.FlagNoDiagonal) {
		flags |= ObstacleNoDiagonal
	}
	if flags == 0 {
		return Obstacle{}, false
	}

	z := int(e.Z)
	height := int(e.Height)
	top := height
	if bridge {
		top /= 2
	}
	return Obstacle{
		Flags:    flags,
		Z:        z,
		AverageZ: z + top,
		Height:   height,
	}, true
}

// ghostPassable lists blocking graphics ghosts and staff walk through.
func ghostPassable(graphic uint16) bool {
	switch {
	case graphic == 0x0846, graphic == 0x0692, graphic == 0x0873:
		return true
	case graphic >= 0x06F5 && graphic <= 0x06F6:
		return true
	}
	return false
}
