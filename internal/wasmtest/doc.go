// Package wasmtest provides a minimal wazero-backed harness for tests that
// need to observe real module execution (spec.md §8's determinism, index
// consistency, and no-join-point-boundary properties), grounded on the
// teacher's engine.WazeroEngine. It is not part of the public API.
package wasmtest
