package world

// EntryKind tells what sort of object occupies a column.
type EntryKind uint8

const (
	KindLand EntryKind = iota
	KindStatic
	KindItem
	KindMobile
	KindMulti
	KindEffect
)

func (k EntryKind) String() string {
	switch k {
	case KindLand:
		return "land"
	case KindStatic:
		return "static"
	case KindItem:
		return "item"
	case KindMobile:
		return "mobile"
	case KindMulti:
		return "multi"
	case KindEffect:
		return "effect"
	default:
		return "unknown"
	}
}

// TileFlags carries the tile-data properties that matter for movement.
type TileFlags uint16

const (
	FlagImpassable TileFlags = 1 << iota
	FlagSurface
	FlagBridge
	FlagWet
	FlagNoDiagonal
	FlagDoor
)

func (f TileFlags) Has(flag TileFlags) bool {
	return f&flag != 0
}

// MultiState describes a multi (house) component.
type MultiState uint8

const (
	MultiCustom MultiState = 1 << iota
	MultiGenericInternal
	MultiIgnoreInRender
	MultiHousePreview
)

func (m MultiState) Has(flag MultiState) bool {
	return m&flag != 0
}

// Corner indexes of a land tile, clockwise from the tile's own vertex.
const (
	CornerTop = iota
	CornerRight
	CornerBottom
	CornerLeft
)

// Entry is one object standing in a column, as reported by the map at the
// moment of the query.
type Entry struct {
	Kind    EntryKind
	Graphic uint16
	Z       int8
	Height  uint8
	Flags   TileFlags

	// Land.
	MinZ      int8
	AverageZ  int8
	Stretched bool
	Corners   [4]int8

	// Item.
	Weight uint8
	Locked bool

	// Mobile.
	Dead              bool
	IgnoresCharacters bool

	// Multi.
	Multi MultiState
}

// Land returns a flat land tile.
func Land(graphic uint16, z int8, flags TileFlags) Entry {
	return Entry{
		Kind:     KindLand,
		Graphic:  graphic,
		Z:        z,
		Flags:    flags,
		MinZ:     z,
		AverageZ: z,
		Corners:  [4]int8{z, z, z, z},
	}
}

// StretchedLand returns a sloped land tile whose corners sit at different
// elevations. Corners are top (the tile's own vertex), right, bottom, left.
func StretchedLand(graphic uint16, corners [4]int8, flags TileFlags) Entry {
	e := Entry{
		Kind:      KindLand,
		Graphic:   graphic,
		Z:         corners[CornerTop],
		Flags:     flags,
		Stretched: true,
		Corners:   corners,
	}
	minZ := corners[0]
	for _, c := range corners[1:] {
		if c < minZ {
			minZ = c
		}
	}
	e.MinZ = minZ

	top, right := int(corners[CornerTop]), int(corners[CornerRight])
	bottom, left := int(corners[CornerBottom]), int(corners[CornerLeft])
	if abs(top-bottom) <= abs(left-right) {
		e.AverageZ = int8(floorHalf(top + bottom))
	} else {
		e.AverageZ = int8(floorHalf(left + right))
	}
	return e
}

// DirectionalZ is the elevation a walker sees when entering this land tile
// while moving in d.
func (e Entry) DirectionalZ(d Direction) int {
	d &= 7
	result := e.cornerZ((int(d>>1) + 1) & 3)
	if d.IsDiagonal() {
		return result
	}
	return floorHalf(result + e.cornerZ(int(d>>1)))
}

func (e Entry) cornerZ(i int) int {
	if !e.Stretched {
		return int(e.Z)
	}
	return int(e.Corners[i&3])
}

// Static returns a fixed world object.
func Static(graphic uint16, z int8, height uint8, flags TileFlags) Entry {
	return Entry{Kind: KindStatic, Graphic: graphic, Z: z, Height: height, Flags: flags}
}

// Item returns a dynamic item lying on the map.
func Item(graphic uint16, z int8, height uint8, flags TileFlags, weight uint8) Entry {
	return Entry{Kind: KindItem, Graphic: graphic, Z: z, Height: height, Flags: flags, Weight: weight}
}

// Mobile returns a character standing at z.
func Mobile(z int8) Entry {
	return Entry{Kind: KindMobile, Z: z}
}

// MultiPiece returns one component of a multi-tile structure.
func MultiPiece(graphic uint16, z int8, height uint8, flags TileFlags, state MultiState) Entry {
	return Entry{Kind: KindMulti, Graphic: graphic, Z: z, Height: height, Flags: flags, Multi: state}
}

// Effect returns a transient visual effect.
func Effect(graphic uint16, z int8) Entry {
	return Entry{Kind: KindEffect, Graphic: graphic, Z: z}
}

func floorHalf(v int) int {
	return v >> 1
}
