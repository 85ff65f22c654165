// Package ir implements the structured-IR lifter (spec.md §4.4): turning a
// function body's linear instruction stream into a tree of typed
// instructions with inferred stack types, and lowering that tree back to
// linear form.
//
// Unlike a naive recursive descent, Lift walks the instruction stream
// with explicit frame stacks rather than native call recursion
// (spec.md §9 "Recursive lifter"), so lifting a pathological input with
// deep nesting cannot overflow the Go call stack. Lower and Infer do
// recurse, once per level of block/loop/if nesting.
package ir
