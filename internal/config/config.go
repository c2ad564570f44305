// Package config describes the pairs file: a YAML document declaring the
// endpoint pairings syncpair operates on and how runs are scheduled.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syncpair/syncpair/internal/sync"
	"github.com/syncpair/syncpair/internal/utils"
)

var (
	home, _          = os.UserHomeDir()
	DefaultPairsPath = filepath.Join(home, ".syncpair", "pairs.yaml")
	DefaultStateDB   = filepath.Join(home, ".syncpair", "checkpoints.db")
)

// DefaultInterval is the watch scheduling interval when the pairs file and
// flags leave it unset.
const DefaultInterval = 5 * time.Minute

// Checkpoint strategy selectors accepted in the pairs file and on flags.
const (
	CheckpointSidecar = "sidecar"
	CheckpointXattr   = "xattr"
	CheckpointAuto    = "auto" // xattr when both roots support it, else sidecar
)

// Duration wraps time.Duration so YAML can carry values like "90s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Pair declares one pairing. Policy fields are pointers so an omitted value
// falls back to the preset default while an explicit one always wins.
type Pair struct {
	Name        string `yaml:"name,omitempty"`
	Path        string `yaml:"path"`
	Destination string `yaml:"destination"`

	Preset    string `yaml:"preset,omitempty"`    // default "sync"
	Direction string `yaml:"direction,omitempty"` // forward|reverse|both

	Purge             *bool `yaml:"purge,omitempty"`
	Recurse           *bool `yaml:"recurse,omitempty"`
	CheckHash         *bool `yaml:"checkHash,omitempty"`
	SkipDelete        *bool `yaml:"skipDelete,omitempty"`
	SkipExisting      *bool `yaml:"skipExisting,omitempty"`
	SkipFiles         *bool `yaml:"skipFiles,omitempty"`
	CreatePath        *bool `yaml:"createPath,omitempty"`
	CreateDestination *bool `yaml:"createDestination,omitempty"`

	Excludes []string `yaml:"excludes,omitempty"`
	Interval Duration `yaml:"interval,omitempty"` // watch schedule override
}

// DisplayName returns the declared name or a readable fallback.
func (p *Pair) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("%s => %s", p.Path, p.Destination)
}

// PresetName returns the pair's preset, defaulting to sync.
func (p *Pair) PresetName() sync.Preset {
	if p.Preset == "" {
		return sync.PresetSync
	}
	return sync.Preset(p.Preset)
}

// Policy resolves the pair's preset and overrides into a runnable policy.
func (p *Pair) Policy() (sync.Policy, error) {
	var opts []sync.PolicyOption
	if p.Direction != "" {
		opts = append(opts, sync.WithDirection(sync.Direction(p.Direction)))
	}
	if p.Purge != nil {
		opts = append(opts, sync.WithPurge(*p.Purge))
	}
	if p.Recurse != nil {
		opts = append(opts, sync.WithRecurse(*p.Recurse))
	}
	if p.CheckHash != nil {
		opts = append(opts, sync.WithCheckHash(*p.CheckHash))
	}
	if p.SkipDelete != nil {
		opts = append(opts, sync.WithSkipDelete(*p.SkipDelete))
	}
	if p.SkipExisting != nil {
		opts = append(opts, sync.WithSkipExisting(*p.SkipExisting))
	}
	if p.SkipFiles != nil {
		opts = append(opts, sync.WithSkipFiles(*p.SkipFiles))
	}
	if p.CreatePath != nil {
		opts = append(opts, sync.WithCreatePath(*p.CreatePath))
	}
	if p.CreateDestination != nil {
		opts = append(opts, sync.WithCreateDestination(*p.CreateDestination))
	}
	return sync.ResolvePolicy(p.PresetName(), opts...)
}

// Config is the parsed pairs file.
type Config struct {
	Pairs      []Pair   `yaml:"pairs"`
	Interval   Duration `yaml:"interval,omitempty"`   // default watch schedule
	Checkpoint string   `yaml:"checkpoint,omitempty"` // sidecar|xattr|auto
	StateDB    string   `yaml:"stateDb,omitempty"`    // sidecar database path
}

// Load reads and validates a pairs file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pairs file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse pairs file: %w", err)
	}
	if err := cfg.ResolvePaths(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// ResolvePaths expands `~` and relative segments in every pair so downstream
// consumers (the watcher in particular) always see absolute roots.
func (c *Config) ResolvePaths() error {
	for i := range c.Pairs {
		pair := &c.Pairs[i]
		if pair.Path != "" {
			abs, err := utils.ResolvePath(pair.Path)
			if err != nil {
				return fmt.Errorf("pair %s: path: %w", pair.DisplayName(), err)
			}
			pair.Path = abs
		}
		if pair.Destination != "" {
			abs, err := utils.ResolvePath(pair.Destination)
			if err != nil {
				return fmt.Errorf("pair %s: destination: %w", pair.DisplayName(), err)
			}
			pair.Destination = abs
		}
	}
	if c.StateDB != "" && c.StateDB != ":memory:" {
		abs, err := utils.ResolvePath(c.StateDB)
		if err != nil {
			return fmt.Errorf("stateDb: %w", err)
		}
		c.StateDB = abs
	}
	return nil
}

func (c *Config) Validate() error {
	if len(c.Pairs) == 0 {
		return fmt.Errorf("no pairs declared")
	}

	seen := make(map[string]bool, len(c.Pairs))
	for i := range c.Pairs {
		pair := &c.Pairs[i]
		if pair.Path == "" || pair.Destination == "" {
			return fmt.Errorf("pair %d (%s): path and destination are required", i, pair.DisplayName())
		}
		if !pair.PresetName().Valid() {
			return fmt.Errorf("pair %s: unknown preset %q", pair.DisplayName(), pair.Preset)
		}
		if pair.Direction != "" && !sync.Direction(pair.Direction).Valid() {
			return fmt.Errorf("pair %s: unknown direction %q", pair.DisplayName(), pair.Direction)
		}
		if _, err := pair.Policy(); err != nil {
			return fmt.Errorf("pair %s: %w", pair.DisplayName(), err)
		}
		name := pair.DisplayName()
		if seen[name] {
			return fmt.Errorf("duplicate pair %q", name)
		}
		seen[name] = true
	}

	switch c.Checkpoint {
	case "", CheckpointSidecar, CheckpointXattr, CheckpointAuto:
	default:
		return fmt.Errorf("unknown checkpoint strategy %q", c.Checkpoint)
	}

	return nil
}

// EffectiveInterval returns the pair's schedule, falling back to the file
// default and then the built-in one.
func (c *Config) EffectiveInterval(pair *Pair) time.Duration {
	if pair.Interval > 0 {
		return pair.Interval.Std()
	}
	if c.Interval > 0 {
		return c.Interval.Std()
	}
	return DefaultInterval
}
