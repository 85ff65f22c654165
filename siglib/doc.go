// Package siglib computes the signature-library generation plan described
// in spec.md §4.3: given the set of signatures the analysis needs shadow
// frames for, it works out which generic (returns, arguments) cores and
// which per-signature specializations must be emitted, de-duplicating
// both. Rendering the plan into actual host-language source text is the
// job of the backend package, which consumes this plan rather than
// recomputing it.
package siglib
