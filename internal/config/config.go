package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so configuration files can use human readable
// strings such as "150ms" in both JSON and YAML documents. Numbers are read as
// nanoseconds.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

// MarshalYAML encodes the duration as its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: expected scalar at line %d", node.Line)
	}
	switch node.Tag {
	case "!!null":
		*d = 0
		return nil
	case "!!int":
		var n int64
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("duration: decode int: %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return fmt.Errorf("duration: decode float: %w", err)
		}
		*d = Duration(time.Duration(f))
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures the tunable parameters of the auto-walk stack.
type Config struct {
	Pathfinding PathfindingConfig `json:"pathfinding" yaml:"pathfinding"`
	Movement    MovementConfig    `json:"movement" yaml:"movement"`
	Walker      WalkerConfig      `json:"walker" yaml:"walker"`
	Simulation  SimulationConfig  `json:"simulation" yaml:"simulation"`
	Terrain     TerrainConfig     `json:"terrain" yaml:"terrain"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	Debug       DebugConfig       `json:"debug" yaml:"debug"`
}

type PathfindingConfig struct {
	MaxSearchNodes     int `json:"maxSearchNodes" yaml:"maxSearchNodes"`         // closed nodes before a search gives up
	RunDistance        int `json:"runDistance" yaml:"runDistance"`               // start-to-goal distance above which the walk runs
	AllowedZDifference int `json:"allowedZDifference" yaml:"allowedZDifference"` // goal elevation tolerance (exclusive)
}

// MovementConfig holds the user options that change what counts as an obstacle.
type MovementConfig struct {
	SmoothDoors        bool `json:"smoothDoors" yaml:"smoothDoors"`
	IgnoreStaminaCheck bool `json:"ignoreStaminaCheck" yaml:"ignoreStaminaCheck"`
}

type WalkerConfig struct {
	MaxStepsInFlight  int      `json:"maxStepsInFlight" yaml:"maxStepsInFlight"`
	TickRate          Duration `json:"tickRate" yaml:"tickRate"`                   // e.g. "25ms"
	MaxTargetDistance int      `json:"maxTargetDistance" yaml:"maxTargetDistance"` // furthest accepted goal, in tiles
	WaitTimeoutCap    Duration `json:"waitTimeoutCap" yaml:"waitTimeoutCap"`
}

// SimulationConfig drives the simulated agent used by the tools.
type SimulationConfig struct {
	WalkDelay   Duration `json:"walkDelay" yaml:"walkDelay"`
	RunDelay    Duration `json:"runDelay" yaml:"runDelay"`
	StepLatency Duration `json:"stepLatency" yaml:"stepLatency"` // time until the server acknowledges a step
}

// TerrainConfig drives the procedural maps used by the profiling tool.
type TerrainConfig struct {
	Seed         int64   `json:"seed" yaml:"seed"`
	Frequency    float64 `json:"frequency" yaml:"frequency"`
	Amplitude    float64 `json:"amplitude" yaml:"amplitude"` // peak elevation change from BaseZ
	Octaves      int     `json:"octaves" yaml:"octaves"`
	Persistence  float64 `json:"persistence" yaml:"persistence"`
	Lacunarity   float64 `json:"lacunarity" yaml:"lacunarity"`
	BaseZ        int     `json:"baseZ" yaml:"baseZ"`
	WallDensity  float64 `json:"wallDensity" yaml:"wallDensity"`   // chance a column holds a wall
	StairDensity float64 `json:"stairDensity" yaml:"stairDensity"` // chance a steep column gets a stair
	Workers      int     `json:"workers" yaml:"workers"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// DebugConfig switches on diagnostics that cost too much for normal runs.
type DebugConfig struct {
	LockChecks bool `json:"lockChecks" yaml:"lockChecks"` // deadlock and lock-order detection on the tile map
}

// Load reads configuration from a JSON or YAML file, picked by extension. An
// empty path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Pathfinding: PathfindingConfig{
			MaxSearchNodes:     150_000,
			RunDistance:        14,
			AllowedZDifference: 10,
		},
		Movement: MovementConfig{},
		Walker: WalkerConfig{
			MaxStepsInFlight:  5,
			TickRate:          Duration(25 * time.Millisecond),
			MaxTargetDistance: 512,
			WaitTimeoutCap:    Duration(30 * time.Second),
		},
		Simulation: SimulationConfig{
			WalkDelay:   Duration(400 * time.Millisecond),
			RunDelay:    Duration(200 * time.Millisecond),
			StepLatency: Duration(150 * time.Millisecond),
		},
		Terrain: TerrainConfig{
			Seed:         1,
			Frequency:    0.04,
			Amplitude:    24,
			Octaves:      3,
			Persistence:  0.5,
			Lacunarity:   2,
			WallDensity:  0.05,
			StairDensity: 0.25,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func (c *Config) Validate() error {
	if c.Pathfinding.MaxSearchNodes <= 0 {
		return errors.New("pathfinding.maxSearchNodes must be positive")
	}
	if c.Pathfinding.RunDistance < 0 {
		return errors.New("pathfinding.runDistance cannot be negative")
	}
	if c.Pathfinding.AllowedZDifference <= 0 {
		return errors.New("pathfinding.allowedZDifference must be positive")
	}
	if c.Walker.MaxStepsInFlight <= 0 {
		return errors.New("walker.maxStepsInFlight must be positive")
	}
	if c.Walker.TickRate <= 0 {
		return errors.New("walker.tickRate must be positive")
	}
	if c.Walker.MaxTargetDistance <= 0 {
		return errors.New("walker.maxTargetDistance must be positive")
	}
	if c.Walker.WaitTimeoutCap < 0 {
		return errors.New("walker.waitTimeoutCap cannot be negative")
	}
	if c.Simulation.WalkDelay < 0 || c.Simulation.RunDelay < 0 || c.Simulation.StepLatency < 0 {
		return errors.New("simulation delays cannot be negative")
	}
	if c.Terrain.Octaves < 0 {
		return errors.New("terrain.octaves cannot be negative")
	}
	if c.Terrain.WallDensity < 0 || c.Terrain.WallDensity > 1 || c.Terrain.StairDensity < 0 || c.Terrain.StairDensity > 1 {
		return errors.New("terrain densities must be between 0 and 1")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}
	return nil
}
