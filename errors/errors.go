package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which pipeline stage raised the error (spec.md §2).
type Phase string

const (
	PhaseParse    Phase = "parse"    // §4.1 DSL frontend
	PhaseLift     Phase = "lift"     // §4.4 structured-IR lifter
	PhaseGenerate Phase = "generate" // §4.2/§4.3 analysis emitter, signature library generator
	PhaseRewrite  Phase = "rewrite"  // §4.5 rewriter
	PhaseLink     Phase = "link"     // §4.6 module linker
	PhaseCompile  Phase = "compile"  // external host-language compiler
)

// Kind categorizes the error. Names follow spec.md §7's table.
type Kind string

const (
	// §4.1 DSL frontend
	KindParseError                Kind = "parse_error"
	KindUnsupportedIdentifierType Kind = "unsupported_identifier_type"
	KindIncorrectArgsRessType     Kind = "incorrect_args_ress_type"
	KindDuplicateParameter        Kind = "duplicate_parameter"
	KindDuplicateArgsRessParam    Kind = "duplicate_args_ress_parameter"
	KindNonUniqueParameters       Kind = "non_unique_parameters"

	// §4.4 structured-IR lifter
	KindBodyNonEndTermination Kind = "body_non_end_termination"
	KindIfDidNotPrecedeElse   Kind = "if_did_not_precede_else"
	KindExcessiveEnd          Kind = "excessive_end"
	KindEndWithoutParent      Kind = "end_without_parent"
	KindTrivialCastAttempt    Kind = "trivial_cast_attempt"
	KindTypeInference         Kind = "type_inference"

	// §4.5 rewriter
	KindAttemptToInstrumentImport Kind = "attempt_to_instrument_import"
	KindMissingSignature          Kind = "missing_signature"

	// external / §4.6 linker
	KindCompilerError Kind = "compiler_error"
	KindLinkError     Kind = "link_error"
)

// Error is the structured error type used throughout Wastrumenter.
type Error struct {
	Cause     error
	Phase     Phase
	Kind      Kind
	Detail    string
	Signature string // mangled signature, when relevant (e.g. KindMissingSignature)
	Symbol    string // unresolved import symbol, when relevant (KindLinkError)
	Line      int    // DSL source line, 1-based; 0 if not applicable
	Col       int    // DSL source column, 1-based; 0 if not applicable
	FuncIdx   uint32 // target function index, when applicable
	InstrIdx  uint32 // original instruction index within FuncIdx, when applicable
	HasFunc   bool
	HasInstr  bool
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
		if e.Col > 0 {
			fmt.Fprintf(&b, ":%d", e.Col)
		}
	}
	if e.HasFunc {
		fmt.Fprintf(&b, " in func %d", e.FuncIdx)
		if e.HasInstr {
			fmt.Fprintf(&b, " instr %d", e.InstrIdx)
		}
	}
	if e.Signature != "" {
		fmt.Fprintf(&b, " signature %q", e.Signature)
	}
	if e.Symbol != "" {
		fmt.Fprintf(&b, " symbol %q", e.Symbol)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides fluent, structured error construction.
type Builder struct {
	err Error
}

func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

func (b *Builder) Line(line, col int) *Builder {
	b.err.Line, b.err.Col = line, col
	return b
}

func (b *Builder) FuncIdx(idx uint32) *Builder {
	b.err.FuncIdx, b.err.HasFunc = idx, true
	return b
}

func (b *Builder) InstrIdx(idx uint32) *Builder {
	b.err.InstrIdx, b.err.HasInstr = idx, true
	return b
}

func (b *Builder) Signature(sig string) *Builder {
	b.err.Signature = sig
	return b
}

func (b *Builder) Symbol(sym string) *Builder {
	b.err.Symbol = sym
	return b
}

func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors, one per spec.md §7 row.

func ParseError(line, col int, msg string) *Error {
	return New(PhaseParse, KindParseError).Line(line, col).Detail("%s", msg).Build()
}

func UnsupportedIdentifierType(line, col int, got string, supported []string) *Error {
	return New(PhaseParse, KindUnsupportedIdentifierType).Line(line, col).
		Detail("unsupported type %q, supported: %s", got, strings.Join(supported, ", ")).Build()
}

func IncorrectArgsRessType(line, col int, args, ress string) *Error {
	return New(PhaseParse, KindIncorrectArgsRessType).Line(line, col).
		Detail("args tier %q does not match results tier %q", args, ress).Build()
}

func DuplicateParameter(line, col int, name string) *Error {
	return New(PhaseParse, KindDuplicateParameter).Line(line, col).
		Detail("duplicate parameter %q", name).Build()
}

func NonUniqueParameters(line, col int, names []string) *Error {
	return New(PhaseParse, KindNonUniqueParameters).Line(line, col).
		Detail("non-unique parameters: %s", strings.Join(names, ", ")).Build()
}

func DuplicateArgsRessParam(line, col int, name string) *Error {
	return New(PhaseParse, KindDuplicateArgsRessParam).Line(line, col).
		Detail("parameter %q appears in both args and ress", name).Build()
}

func TrivialCastAttempt(funcIdx, instrIdx uint32, from, to string) *Error {
	return New(PhaseLift, KindTrivialCastAttempt).FuncIdx(funcIdx).InstrIdx(instrIdx).
		Detail("cast from %s to %s is a no-op", from, to).Build()
}

func BodyNonEndTermination(funcIdx uint32) *Error {
	return New(PhaseLift, KindBodyNonEndTermination).FuncIdx(funcIdx).
		Detail("function body does not terminate with End").Build()
}

func IfDidNotPrecedeElse(funcIdx, instrIdx uint32) *Error {
	return New(PhaseLift, KindIfDidNotPrecedeElse).FuncIdx(funcIdx).InstrIdx(instrIdx).
		Detail("Else encountered without a preceding If").Build()
}

func ExcessiveEnd(funcIdx, instrIdx uint32) *Error {
	return New(PhaseLift, KindExcessiveEnd).FuncIdx(funcIdx).InstrIdx(instrIdx).
		Detail("End encountered with no open control frame").Build()
}

func EndWithoutParent(funcIdx, instrIdx uint32) *Error {
	return New(PhaseLift, KindEndWithoutParent).FuncIdx(funcIdx).InstrIdx(instrIdx).
		Detail("End closed a frame with no parent body to append to").Build()
}

func TypeInference(funcIdx, instrIdx uint32, detail string) *Error {
	return New(PhaseLift, KindTypeInference).FuncIdx(funcIdx).InstrIdx(instrIdx).Detail("%s", detail).Build()
}

func AttemptToInstrumentImport(funcIdx uint32) *Error {
	return New(PhaseRewrite, KindAttemptToInstrumentImport).FuncIdx(funcIdx).
		Detail("target-functions set names an imported function").Build()
}

func MissingSignature(sig string) *Error {
	return New(PhaseRewrite, KindMissingSignature).Signature(sig).
		Detail("signature library does not cover this signature").Build()
}

func CompilerError(lang, stderr string) *Error {
	return New(PhaseCompile, KindCompilerError).Detail("%s: %s", lang, stderr).Build()
}

func LinkError(symbol string) *Error {
	return New(PhaseLink, KindLinkError).Symbol(symbol).
		Detail("unresolved import").Build()
}
