// Package dsl parses the aspect DSL (spec.md §4.1) into a normalized
// dsl/ast.Root plus a JoinPoints summary, and is the package other stages
// (emitter, rewriter) depend on for both.
package dsl
