// Package rust implements backend.Backend for Rust analysis sources,
// matching the host language of the original Wastrumenter prototype.
package rust
