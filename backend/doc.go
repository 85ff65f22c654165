// Package backend defines the host-language backend abstraction (spec.md
// §9 "Trait/polymorphism replacements"): a closed set of implementations,
// one per analysis source language, each able to render a signature
// library generation plan and an analysis AST into compilable source
// text. Turning that source text into a Wasm module is the caller's
// concern — Backend deliberately does not include a Compile method.
package backend
