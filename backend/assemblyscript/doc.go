// Package assemblyscript implements backend.Backend for AssemblyScript
// analysis sources, the second host language the pack's example repos
// show generating Wasm text/modules for.
package assemblyscript
