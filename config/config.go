package config

import "go.uber.org/zap"

// Language selects the analysis-language backend (package backend) used to
// generate and compile the analysis and signature-library source.
type Language int

const (
	Rust Language = iota
	AssemblyScript
)

func (l Language) String() string {
	switch l {
	case Rust:
		return "rust"
	case AssemblyScript:
		return "assemblyscript"
	default:
		return "unknown"
	}
}

// PrimarySelection picks which module's exports surface on the linked
// composite (spec.md §4.6). The zero value is Target, matching spec.md §6's
// "None defaults to Target".
type PrimarySelection int

const (
	Target PrimarySelection = iota
	Analysis
)

func (p PrimarySelection) String() string {
	if p == Analysis {
		return "analysis"
	}
	return "target"
}

// Configuration is the per-invocation options record (spec.md §6).
type Configuration struct {
	// TargetIndices names which target functions to instrument. A nil
	// pointer means "all non-imports" (spec.md §6's None case). A non-nil
	// pointer to an empty map instruments nothing.
	TargetIndices *map[uint32]struct{}

	// PrimarySelection picks whose exports surface on the composite.
	PrimarySelection PrimarySelection

	// Language selects the analysis-language backend.
	Language Language

	// Logger receives one Info line per pipeline stage and Debug lines
	// for per-join-point splice decisions. Defaults to a no-op logger.
	Logger *zap.Logger

	// Deterministic is carried on the configuration, but no pipeline
	// stage reads it: setting it to false does not change the output
	// order. siglib.BuildPlan sorts its cores and specializations
	// unconditionally.
	Deterministic bool
}

// Default returns a Configuration instrumenting every non-imported target
// function, selecting Target as primary, using the Rust backend, with a
// no-op logger and deterministic output.
func Default() Configuration {
	return Configuration{
		PrimarySelection: Target,
		Language:         Rust,
		Logger:           zap.NewNop(),
		Deterministic:    true,
	}
}

// ShouldInstrument reports whether funcIdx is in the target-functions set.
func (c Configuration) ShouldInstrument(funcIdx uint32) bool {
	if c.TargetIndices == nil {
		return true
	}
	_, ok := (*c.TargetIndices)[funcIdx]
	return ok
}

// logger returns c.Logger, falling back to a no-op logger when unset so
// every pipeline stage can log unconditionally.
func (c Configuration) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Log exposes the no-op-safe logger for packages that only hold a
// Configuration value, not a raw *zap.Logger.
func (c Configuration) Log() *zap.Logger { return c.logger() }
