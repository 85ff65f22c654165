package sig

import (
	"strings"

	"github.com/aaronmunsters/wastrumentation/errors"
	"github.com/aaronmunsters/wastrumentation/wasm"
)

// RefKind distinguishes the two reference heap types a WasmType can carry.
type RefKind uint8

const (
	FuncRef RefKind = iota
	ExternRef
)

// WasmType is the scalar value-type domain every join point operates over
// (spec.md §3). It is a closed discriminated set; the zero value is I32.
type WasmType struct {
	kind    typeKind
	refKind RefKind
}

type typeKind uint8

const (
	kindI32 typeKind = iota
	kindF32
	kindI64
	kindF64
	kindRef
)

var (
	I32 = WasmType{kind: kindI32}
	F32 = WasmType{kind: kindF32}
	I64 = WasmType{kind: kindI64}
	F64 = WasmType{kind: kindF64}
)

// Ref constructs a reference WasmType of the given heap kind.
func Ref(k RefKind) WasmType { return WasmType{kind: kindRef, refKind: k} }

// Enum returns the stable runtime enum value (0..5) used in serialized form:
// I32=0, F32=1, I64=2, F64=3, FuncRef=4, ExternRef=5.
func (t WasmType) Enum() int32 {
	switch t.kind {
	case kindI32:
		return 0
	case kindF32:
		return 1
	case kindI64:
		return 2
	case kindF64:
		return 3
	case kindRef:
		if t.refKind == FuncRef {
			return 4
		}
		return 5
	default:
		return -1
	}
}

// IsRef reports whether t is a reference type, and which kind.
func (t WasmType) IsRef() (RefKind, bool) {
	return t.refKind, t.kind == kindRef
}

// Mangle returns the single-letter-free mangled token for this type, as used
// within a signature's mangled name (e.g. "i32", "f64", "funcref").
func (t WasmType) Mangle() string {
	switch t.kind {
	case kindI32:
		return "i32"
	case kindF32:
		return "f32"
	case kindI64:
		return "i64"
	case kindF64:
		return "f64"
	case kindRef:
		if t.refKind == FuncRef {
			return "funcref"
		}
		return "externref"
	default:
		return "?"
	}
}

func (t WasmType) String() string { return t.Mangle() }

// FromValType maps the wasm package's binary-format value type onto the
// scalar WasmType domain. Only the types spec.md §3 enumerates are valid;
// every other wasm.ValType (vectors, GC struct/array refs, etc.) is out of
// scope and reported as a type-inference failure by the caller.
func FromValType(v wasm.ValType) (WasmType, bool) {
	switch v {
	case wasm.ValI32:
		return I32, true
	case wasm.ValI64:
		return I64, true
	case wasm.ValF32:
		return F32, true
	case wasm.ValF64:
		return F64, true
	case wasm.ValFuncRef:
		return Ref(FuncRef), true
	default:
		return WasmType{}, false
	}
}

// ToValType is the inverse of FromValType, used when the rewriter and linker
// encode shadow-frame accessor signatures back into the binary format.
func (t WasmType) ToValType() wasm.ValType {
	switch t.kind {
	case kindI32:
		return wasm.ValI32
	case kindF32:
		return wasm.ValF32
	case kindI64:
		return wasm.ValI64
	case kindF64:
		return wasm.ValF64
	case kindRef:
		return wasm.ValFuncRef
	default:
		return wasm.ValI32
	}
}

// Signature is the ordered (return_types, argument_types) pair a join point,
// a call, or a shadow-frame accessor family is keyed by. Equality and
// hashing (via Mangle, used as a map key) are by full sequence.
type Signature struct {
	ReturnTypes   []WasmType
	ArgumentTypes []WasmType
}

// NumReturns and NumArgs are convenience accessors used throughout the
// shadow-frame layout math (spec.md §4.3: the frame holds r+a slots).
func (s Signature) NumReturns() int { return len(s.ReturnTypes) }
func (s Signature) NumArgs() int    { return len(s.ArgumentTypes) }

// Mangle derives the signature's deterministic mangled name:
// ret_<t>_<t>..._arg_<t>_<t>.... A signature with zero returns or zero
// arguments still emits the corresponding empty segment marker, since the
// mangled name must round-trip to a unique string per distinct signature.
func (s Signature) Mangle() string {
	return s.mangleArgsSegment("arg")
}

// MangleMut is Mangle with "mut_" prepended to the args segment, used for
// the mutable variant of a specialized apply's signature (spec.md §3).
func (s Signature) MangleMut() string {
	return s.mangleArgsSegment("mut_arg")
}

func (s Signature) mangleArgsSegment(argsLabel string) string {
	var b strings.Builder
	b.WriteString("ret")
	for _, t := range s.ReturnTypes {
		b.WriteByte('_')
		b.WriteString(t.Mangle())
	}
	b.WriteByte('_')
	b.WriteString(argsLabel)
	for _, t := range s.ArgumentTypes {
		b.WriteByte('_')
		b.WriteString(t.Mangle())
	}
	return b.String()
}

// Equal reports whether two signatures have identical return and argument
// type sequences.
func (s Signature) Equal(other Signature) bool {
	if len(s.ReturnTypes) != len(other.ReturnTypes) || len(s.ArgumentTypes) != len(other.ArgumentTypes) {
		return false
	}
	for i, t := range s.ReturnTypes {
		if t != other.ReturnTypes[i] {
			return false
		}
	}
	for i, t := range s.ArgumentTypes {
		if t != other.ArgumentTypes[i] {
			return false
		}
	}
	return true
}

// FromFuncType converts a wasm.FuncType into a Signature, failing with
// errors.TypeInference when a parameter or result falls outside the scalar
// WasmType domain.
func FromFuncType(funcIdx uint32, ft wasm.FuncType) (Signature, error) {
	rets := make([]WasmType, 0, len(ft.Results))
	for _, v := range ft.Results {
		t, ok := FromValType(v)
		if !ok {
			return Signature{}, errors.TypeInference(funcIdx, 0, "unsupported result type in function signature")
		}
		rets = append(rets, t)
	}
	args := make([]WasmType, 0, len(ft.Params))
	for _, v := range ft.Params {
		t, ok := FromValType(v)
		if !ok {
			return Signature{}, errors.TypeInference(funcIdx, 0, "unsupported parameter type in function signature")
		}
		args = append(args, t)
	}
	return Signature{ReturnTypes: rets, ArgumentTypes: args}, nil
}
