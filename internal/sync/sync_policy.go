package sync

import "fmt"

// Direction selects which endpoint receives copies and deletions for a run.
type Direction string

const (
	// DirectionForward treats "path" as the source and "destination" as the
	// target: changes flow path -> destination.
	DirectionForward Direction = "forward"
	// DirectionReverse flows destination -> path.
	DirectionReverse Direction = "reverse"
	// DirectionBoth flows changes both ways, newest file winning conflicts.
	DirectionBoth Direction = "both"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionForward, DirectionReverse, DirectionBoth:
		return true
	}
	return false
}

// Preset names a bundled policy configuration.
type Preset string

const (
	// PresetSync converges both sides, deleting stale items on either.
	PresetSync Preset = "sync"
	// PresetMerge converges both sides but never deletes anything.
	PresetMerge Preset = "merge"
	// PresetMirror makes the destination match the path, deletions included.
	PresetMirror Preset = "mirror"
	// PresetContribute copies new and changed files forward, never deletes.
	PresetContribute Preset = "contribute"
	// PresetMissing copies forward only files the destination lacks.
	PresetMissing Preset = "missing"
)

func (p Preset) Valid() bool {
	switch p {
	case PresetSync, PresetMerge, PresetMirror, PresetContribute, PresetMissing:
		return true
	}
	return false
}

// Presets lists every known preset name, for CLI help and validation.
func Presets() []Preset {
	return []Preset{PresetSync, PresetMerge, PresetMirror, PresetContribute, PresetMissing}
}

// Policy carries the switches governing one run. It is resolved once before
// the run starts and never re-interpreted downstream.
type Policy struct {
	Direction         Direction
	Purge             bool // empty the target before copying
	Recurse           bool // descend into subdirectories
	CheckHash         bool // compare common files by content hash, not mtime
	SkipDelete        bool // never delete stale items
	SkipExisting      bool // leave files present on both sides untouched
	SkipFiles         bool // directories only, no file operations
	CreatePath        bool // create the path root if missing
	CreateDestination bool // create the destination root if missing
}

func (p Policy) Validate() error {
	if !p.Direction.Valid() {
		return fmt.Errorf("invalid direction %q", p.Direction)
	}
	return nil
}

// PolicyOption overrides one policy field on top of a preset's defaults.
type PolicyOption func(*Policy)

func WithDirection(d Direction) PolicyOption {
	return func(p *Policy) {
		p.Direction = d
	}
}

func WithPurge(v bool) PolicyOption {
	return func(p *Policy) {
		p.Purge = v
	}
}

func WithRecurse(v bool) PolicyOption {
	return func(p *Policy) {
		p.Recurse = v
	}
}

func WithCheckHash(v bool) PolicyOption {
	return func(p *Policy) {
		p.CheckHash = v
	}
}

func WithSkipDelete(v bool) PolicyOption {
	return func(p *Policy) {
		p.SkipDelete = v
	}
}

func WithSkipExisting(v bool) PolicyOption {
	return func(p *Policy) {
		p.SkipExisting = v
	}
}

func WithSkipFiles(v bool) PolicyOption {
	return func(p *Policy) {
		p.SkipFiles = v
	}
}

func WithCreatePath(v bool) PolicyOption {
	return func(p *Policy) {
		p.CreatePath = v
	}
}

func WithCreateDestination(v bool) PolicyOption {
	return func(p *Policy) {
		p.CreateDestination = v
	}
}

// ResolvePolicy expands a preset into a fully populated Policy and applies
// any overrides on top, overrides always winning. All presets recurse and
// compare by mtime unless overridden.
func ResolvePolicy(preset Preset, opts ...PolicyOption) (Policy, error) {
	if !preset.Valid() {
		return Policy{}, fmt.Errorf("unknown preset %q", preset)
	}

	policy := Policy{
		Direction: DirectionForward,
		Recurse:   true,
	}

	switch preset {
	case PresetSync:
		policy.Direction = DirectionBoth
	case PresetMerge:
		policy.Direction = DirectionBoth
		policy.SkipDelete = true
	case PresetMirror:
		// forward, deletions permitted
	case PresetContribute:
		policy.SkipDelete = true
	case PresetMissing:
		policy.SkipDelete = true
		policy.SkipExisting = true
	}

	for _, opt := range opts {
		opt(&policy)
	}

	return policy, policy.Validate()
}
