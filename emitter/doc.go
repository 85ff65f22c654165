// Package emitter drives analysis-module source generation (spec.md
// §4.2): it decides, from the active join points, what the
// analysis-interface contract requires, logs the decision, and delegates
// actual syntax rendering to a backend.Backend.
package emitter
