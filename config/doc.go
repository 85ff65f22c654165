// Package config holds the per-invocation options that parameterize a
// Wastrumenter pipeline run: which target functions to instrument, whose
// exports surface on the linked module, which analysis-language backend to
// use, and the ambient logging/determinism knobs every pipeline stage reads.
package config
