// Package errors provides the structured error type used across every
// Wastrumenter pipeline stage.
//
// Errors are categorized by Phase (which pipeline stage raised them) and
// Kind (one entry per failure mode in spec.md §7). The Error type carries
// enough context to point at the offending DSL source position or target
// function/instruction index.
//
// Use the Builder for structured construction:
//
//	err := errors.New(errors.PhaseLift, errors.KindExcessiveEnd).
//		FuncIdx(3).
//		InstrIdx(12).
//		Detail("unmatched end token").
//		Build()
//
// Or use one of the convenience constructors that mirror spec.md §7's
// table directly, e.g. errors.AttemptToInstrumentImport, errors.MissingSignature.
package errors
