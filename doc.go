// Package wastrumentation orchestrates the Wastrumentation pipeline
// (spec.md §2): given a target WebAssembly module and an aspect written in
// the join-point DSL (package dsl), it generates and compiles the
// signature library and analysis module (packages siglib, emitter,
// backend), rewrites the target's instrumented functions (package
// rewriter), and statically links the three resulting modules into one
// composite binary (package linker).
//
// # Architecture
//
//	wastrumentation/      Pipeline, the orchestrator; Compiler, the external
//	                      host-language compiler collaborator
//	├── dsl/              join-point aspect frontend
//	├── ir/               structured-IR lifter used by the rewriter
//	├── opcode/           shared unary/binary opcode table
//	├── sig/              WASM value-type signatures and name mangling
//	├── siglib/           shadow-frame signature library generator
//	├── backend/          per-language (Rust, AssemblyScript) source renderers
//	├── emitter/          analysis module source emitter
//	├── rewriter/         target-module instruction rewriter
//	├── linker/           static three-module composer
//	├── wasm/             WASM binary decode/encode/typed representation
//	├── config/           per-invocation Configuration
//	├── errors/           structured pipeline errors
//	├── internal/wasmtest/ wazero-based test harness
//	└── cmd/wastrument/   CLI front end
//
// # Quick start
//
//	pipeline := wastrumentation.New(rust.New(), myCompiler)
//	out, err := pipeline.Instrument(config.Default(), target, aspectSource)
package wastrumentation
