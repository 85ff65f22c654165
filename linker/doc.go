// Package linker statically composes the three WebAssembly modules a
// Wastrumentation pipeline produces (spec.md §4.6) into one binary:
//
//   - the rewritten target, whose instrumentation_analysis-namespace
//     imports are resolved against...
//   - the compiled analysis module, whose call_base* imports are
//     resolved against the target's pre-instrumentation functions, and
//     whose siglib-accessor imports are resolved against...
//   - the compiled signature-library module.
//
// Unlike a WASI component-model linker, this is a one-shot, purely
// static operation: every cross-module call is rewritten to call a
// function index in one flat, composite function-index space, and the
// three input modules never exist as separately instantiated things.
// Link is deterministic for a given (target, analysis, siglib,
// bindings, Config) input.
package linker
