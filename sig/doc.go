// Package sig defines the scalar Wasm value types and function signatures
// that flow through every later stage: the DSL frontend binds formals to
// them, the signature library generator emits shadow-frame accessors keyed
// by them, and the rewriter and analysis emitter agree on their mangled
// names.
package sig
