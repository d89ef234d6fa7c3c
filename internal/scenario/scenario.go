// Package scenario loads hand-drawn test worlds. A scenario is a YAML document
// holding an ASCII map, a legend that turns each map character into a tile
// stack, the agent, the goal and an optional script.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"tilewalker/internal/world"
)

// ErrInvalidScenario marks documents that parse but cannot be built.
var ErrInvalidScenario = errors.New("invalid scenario")

type Scenario struct {
	Name   string          `yaml:"name"`
	Origin Point           `yaml:"origin"`
	Legend map[string]Tile `yaml:"legend"`
	Map    string          `yaml:"map"`
	Agent  Agent           `yaml:"agent"`
	Goal   Goal            `yaml:"goal"`
	Script string          `yaml:"script"`

	rows []string
}

type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Tile is the stack a legend character expands to. A tile without land is
// left unloaded.
type Tile struct {
	Land      *int8    `yaml:"land"`
	LandFlags []string `yaml:"landFlags"`
	Entries   []Entry  `yaml:"entries"`
}

type Entry struct {
	Kind    string   `yaml:"kind"` // static, item, mobile, multi or effect
	Graphic uint16   `yaml:"graphic"`
	Z       int8     `yaml:"z"`
	Height  uint8    `yaml:"height"`
	Flags   []string `yaml:"flags"`
	Weight  uint8    `yaml:"weight"`
	Locked  bool     `yaml:"locked"`
	Dead    bool     `yaml:"dead"`
	Multi   []string `yaml:"multi"`
}

// Agent positions and the confinement rectangle are relative to the map's
// top-left character. A missing stamina means fully rested.
type Agent struct {
	X                int    `yaml:"x"`
	Y                int    `yaml:"y"`
	Z                int8   `yaml:"z"`
	Facing           string `yaml:"facing"`
	Dead             bool   `yaml:"dead"`
	Ghost            bool   `yaml:"ghost"`
	GameMaster       bool   `yaml:"gameMaster"`
	Flying           bool   `yaml:"flying"`
	SeaMount         bool   `yaml:"seaMount"`
	Paralyzed        bool   `yaml:"paralyzed"`
	IgnoreCharacters bool   `yaml:"ignoreCharacters"`
	Stamina          *int   `yaml:"stamina"`
	StaminaMax       int    `yaml:"staminaMax"`
	Confine          *Rect  `yaml:"confine"`
}

type Rect struct {
	MinX int `yaml:"minX"`
	MinY int `yaml:"minY"`
	MaxX int `yaml:"maxX"`
	MaxY int `yaml:"maxY"`
}

type Goal struct {
	X        int  `yaml:"x"`
	Y        int  `yaml:"y"`
	Z        int8 `yaml:"z"`
	Distance int  `yaml:"distance"`
}

var (
	flatLand int8

	defaultLegend = map[string]Tile{
		".": {Land: &flatLand},
		"#": {Land: &flatLand, Entries: []Entry{{Kind: "static", Graphic: 0x0080, Height: 20, Flags: []string{"impassable"}}}},
	}

	flagNames = map[string]world.TileFlags{
		"impassable": world.FlagImpassable,
		"surface":    world.FlagSurface,
		"bridge":     world.FlagBridge,
		"wet":        world.FlagWet,
		"nodiagonal": world.FlagNoDiagonal,
		"door":       world.FlagDoor,
	}

	multiNames = map[string]world.MultiState{
		"custom":          world.MultiCustom,
		"genericinternal": world.MultiGenericInternal,
		"ignoreinrender":  world.MultiIgnoreInRender,
		"housepreview":    world.MultiHousePreview,
	}
)

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scenario document. The built-in legend
// characters '.' (flat land) and '#' (wall) may be overridden; a space is
// always an unloaded column.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	legend := make(map[string]Tile, len(defaultLegend)+len(s.Legend))
	for k, v := range defaultLegend {
		legend[k] = v
	}
	for k, v := range s.Legend {
		legend[k] = v
	}
	s.Legend = legend

	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	for key, tile := range s.Legend {
		if utf8.RuneCountInString(key) != 1 || key == " " {
			return fmt.Errorf("%w: legend key %q must be a single non-space character", ErrInvalidScenario, key)
		}
		if _, err := tile.entries(); err != nil {
			return fmt.Errorf("%w: legend %q: %v", ErrInvalidScenario, key, err)
		}
	}

	s.rows = strings.Split(strings.TrimRight(s.Map, "\n"), "\n")
	if len(s.rows) == 0 || strings.TrimSpace(s.Map) == "" {
		return fmt.Errorf("%w: map is empty", ErrInvalidScenario)
	}
	for y, row := range s.rows {
		for x, r := range []rune(row) {
			if r == ' ' {
				continue
			}
			if _, ok := s.Legend[string(r)]; !ok {
				return fmt.Errorf("%w: unknown map character %q at (%d,%d), legend has %q", ErrInvalidScenario, r, x, y, s.Characters())
			}
		}
	}

	if s.Agent.Facing != "" {
		if _, err := world.ParseDirection(s.Agent.Facing); err != nil {
			return fmt.Errorf("%w: agent: %v", ErrInvalidScenario, err)
		}
	}
	if s.Agent.StaminaMax < 0 {
		return fmt.Errorf("%w: agent staminaMax %d is negative", ErrInvalidScenario, s.Agent.StaminaMax)
	}
	if s.Agent.Stamina != nil && *s.Agent.Stamina < 0 {
		return fmt.Errorf("%w: agent stamina %d is negative", ErrInvalidScenario, *s.Agent.Stamina)
	}
	if c := s.Agent.Confine; c != nil && (c.MinX > c.MaxX || c.MinY > c.MaxY) {
		return fmt.Errorf("%w: agent confine %+v is empty", ErrInvalidScenario, *c)
	}
	if s.Goal.Distance < 0 {
		return fmt.Errorf("%w: goal distance %d is negative", ErrInvalidScenario, s.Goal.Distance)
	}
	return nil
}

// Build creates the map the scenario describes.
func (s *Scenario) Build() (*world.MemoryMap, error) {
	m := world.NewMemoryMap()
	for y, row := range s.rows {
		for x, r := range []rune(row) {
			if r == ' ' {
				continue
			}
			tile := s.Legend[string(r)]
			if tile.Land == nil {
				continue
			}
			entries, err := tile.entries()
			if err != nil {
				return nil, fmt.Errorf("%w: tile %q: %v", ErrInvalidScenario, r, err)
			}
			m.SetColumn(s.Origin.X+x, s.Origin.Y+y, entries...)
		}
	}
	return m, nil
}

// Size reports the map's width and height in characters.
func (s *Scenario) Size() (int, int) {
	width := 0
	for _, row := range s.rows {
		if n := utf8.RuneCountInString(row); n > width {
			width = n
		}
	}
	return width, len(s.rows)
}

// AgentState places the agent in world coordinates. Stamina defaults to full.
func (s *Scenario) AgentState() world.AgentState {
	facing := world.North
	if s.Agent.Facing != "" {
		facing, _ = world.ParseDirection(s.Agent.Facing)
	}
	state := world.AgentState{
		Location: world.Location{
			X: s.Origin.X + s.Agent.X,
			Y: s.Origin.Y + s.Agent.Y,
			Z: s.Agent.Z,
		},
		Facing:           facing,
		Dead:             s.Agent.Dead,
		Ghost:            s.Agent.Ghost,
		GameMaster:       s.Agent.GameMaster,
		Flying:           s.Agent.Flying,
		SeaMount:         s.Agent.SeaMount,
		Paralyzed:        s.Agent.Paralyzed,
		IgnoreCharacters: s.Agent.IgnoreCharacters,
		StaminaMax:       s.Agent.StaminaMax,
	}
	if state.StaminaMax == 0 {
		state.StaminaMax = 100
	}
	state.Stamina = state.StaminaMax
	if s.Agent.Stamina != nil {
		state.Stamina = *s.Agent.Stamina
	}
	if c := s.Agent.Confine; c != nil {
		state.Confine = &world.Rect{
			MinX: s.Origin.X + c.MinX,
			MinY: s.Origin.Y + c.MinY,
			MaxX: s.Origin.X + c.MaxX,
			MaxY: s.Origin.Y + c.MaxY,
		}
	}
	return state
}

// GoalLocation returns the goal in world coordinates.
func (s *Scenario) GoalLocation() world.Location {
	return world.Location{X: s.Origin.X + s.Goal.X, Y: s.Origin.Y + s.Goal.Y, Z: s.Goal.Z}
}

// Characters lists the legend keys in a stable order.
func (s *Scenario) Characters() []string {
	keys := make([]string, 0, len(s.Legend))
	for k := range s.Legend {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t Tile) entries() ([]world.Entry, error) {
	if t.Land == nil {
		if len(t.Entries) > 0 {
			return nil, errors.New("entries need land beneath them")
		}
		return nil, nil
	}
	landFlags, err := parseFlags(t.LandFlags)
	if err != nil {
		return nil, err
	}
	out := []world.Entry{world.Land(0x0003, *t.Land, landFlags)}
	for i, spec := range t.Entries {
		e, err := spec.entry()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (e Entry) entry() (world.Entry, error) {
	flags, err := parseFlags(e.Flags)
	if err != nil {
		return world.Entry{}, err
	}
	switch strings.ToLower(e.Kind) {
	case "", "static":
		return world.Static(e.Graphic, e.Z, e.Height, flags), nil
	case "item":
		item := world.Item(e.Graphic, e.Z, e.Height, flags, e.Weight)
		item.Locked = e.Locked
		return item, nil
	case "mobile":
		mobile := world.Mobile(e.Z)
		mobile.Dead = e.Dead
		return mobile, nil
	case "multi":
		var state world.MultiState
		for _, name := range e.Multi {
			bit, ok := multiNames[strings.ToLower(name)]
			if !ok {
				return world.Entry{}, fmt.Errorf("unknown multi state %q", name)
			}
			state |= bit
		}
		return world.MultiPiece(e.Graphic, e.Z, e.Height, flags, state), nil
	case "effect":
		return world.Effect(e.Graphic, e.Z), nil
	default:
		return world.Entry{}, fmt.Errorf("unknown entry kind %q", e.Kind)
	}
}

func parseFlags(names []string) (world.TileFlags, error) {
	var flags world.TileFlags
	for _, name := range names {
		flag, ok := flagNames[strings.ToLower(name)]
		if !ok {
			return 0, fmt.Errorf("unknown tile flag %q", name)
		}
		flags |= flag
	}
	return flags, nil
}
