// Package ast is the normalized Advice AST produced by the DSL parser
// (spec.md §3 "Advice AST", §4.1).
package ast

import "github.com/aaronmunsters/wastrumentation/sig"

// Kind identifies a trap join-point variant. The set is exhaustive per
// spec.md §3's join-point table.
type Kind string

const (
	KindApply            Kind = "apply"
	KindIfThen           Kind = "if_then"
	KindIfThenElse       Kind = "if_then_else"
	KindBrIf             Kind = "br_if"
	KindBrTable          Kind = "br_table"
	KindSelect           Kind = "select"
	KindCallPre          Kind = "call_pre"
	KindCallPost         Kind = "call_post"
	KindCallIndirectPre  Kind = "call_indirect_pre"
	KindCallIndirectPost Kind = "call_indirect_post"
	KindBlockPre         Kind = "block_pre"
	KindBlockPost        Kind = "block_post"
	KindLoopPre          Kind = "loop_pre"
	KindLoopPost         Kind = "loop_post"
)

// GenericTier distinguishes the three partially-documented "generic
// means" modes the original carries (spec.md §9 Open Question 2). Only
// MutableDynamic changes emitted code (it additionally imports
// call_base so the advice can re-enter the original function); the other
// two tiers are semantically identical and kept only so DSL source can
// name its intent.
type GenericTier int

const (
	HighLevel GenericTier = iota
	Dynamic
	MutableDynamic
)

func (t GenericTier) String() string {
	switch t {
	case HighLevel:
		return "high-level"
	case Dynamic:
		return "dynamic"
	case MutableDynamic:
		return "mutable-dynamic"
	default:
		return "unknown"
	}
}

// TypedFormal is a single typed binding, e.g. "(x I32)" or, when wrapped
// in a Mut group, a mutable binding the advice may write back.
type TypedFormal struct {
	Name string
	Type sig.WasmType
	Mut  bool
}

// ApplyFormals is the formal-parameter list of an apply advice: a
// function-reference binding plus either a generic (signature-erased)
// view or a specialized (natively-typed) argument/result binding list.
type ApplyFormals struct {
	FuncRefName string

	IsGeneric bool

	// Generic form (spec.md §4.1): both sides name the same tier.
	Tier        GenericTier
	ArgsName    string
	ResultsName string

	// Specialized form: ordered typed bindings, mutability tracked
	// per-binding via TypedFormal.Mut.
	Args    []TypedFormal
	Results []TypedFormal
}

// Signature derives the sig.Signature of a specialized apply's formals.
// Calling it on a generic ApplyFormals returns the zero Signature.
func (f ApplyFormals) Signature() sig.Signature {
	if f.IsGeneric {
		return sig.Signature{}
	}
	s := sig.Signature{
		ReturnTypes:   make([]sig.WasmType, len(f.Results)),
		ArgumentTypes: make([]sig.WasmType, len(f.Args)),
	}
	for i, r := range f.Results {
		s.ReturnTypes[i] = r.Type
	}
	for i, a := range f.Args {
		s.ArgumentTypes[i] = a.Type
	}
	return s
}

// Mutable reports whether any argument or result side of a specialized
// apply is bound mutably.
func (f ApplyFormals) Mutable() bool {
	for _, a := range f.Args {
		if a.Mut {
			return true
		}
	}
	for _, r := range f.Results {
		if r.Mut {
			return true
		}
	}
	return false
}

// Advice is a single advice definition: either a global (opaque code
// emitted verbatim, no trap) or a trap bound to a join-point Kind.
type Advice struct {
	Kind Kind

	// IsGlobal is true only for a (global <code>) definition; Kind is
	// the zero Kind in that case.
	IsGlobal bool

	// Apply formals, populated only when Kind == KindApply.
	Apply ApplyFormals

	// Formals is the plain-name formal list for every non-apply trap
	// kind (e.g. br_if's condition and label bindings).
	Formals []string

	// Code is the advice body, delimited text already stripped of its
	// >>>GUEST>>> / <<<GUEST<<< markers.
	Code string

	Line, Col int
}

// Root is the top-level parsed aspect: an ordered sequence of advice
// definitions, in source declaration order.
type Root struct {
	Advice []Advice
}

// Globals returns every (global ...) definition's code, in declaration
// order, ready for verbatim concatenation by the analysis emitter.
func (r Root) Globals() []string {
	var out []string
	for _, a := range r.Advice {
		if a.IsGlobal {
			out = append(out, a.Code)
		}
	}
	return out
}

// Traps returns every non-global advice, in declaration order.
func (r Root) Traps() []Advice {
	var out []Advice
	for _, a := range r.Advice {
		if !a.IsGlobal {
			out = append(out, a)
		}
	}
	return out
}
