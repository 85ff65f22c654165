package dsl

import (
	"sort"

	"github.com/aaronmunsters/wastrumentation/dsl/ast"
	"github.com/aaronmunsters/wastrumentation/dsl/parser"
	"github.com/aaronmunsters/wastrumentation/dsl/token"
	"github.com/aaronmunsters/wastrumentation/sig"
)

// SpecializedJoinPoint is one distinct specialized-apply binding the
// analysis declares: a signature plus whether either side binds mutably.
type SpecializedJoinPoint struct {
	Signature sig.Signature
	Mutable   bool
}

// MangledName returns the signature's mutable-aware mangled name, the key
// the signature library and rewriter splice calls use.
func (s SpecializedJoinPoint) MangledName() string {
	if s.Mutable {
		return s.Signature.MangleMut()
	}
	return s.Signature.Mangle()
}

// JoinPoints summarizes which join-point variants an aspect activates
// (spec.md §3 "Join-point set"). It drives both signature-library
// generation and rewriter enablement: a variant absent here means the
// rewriter leaves every instance of it untouched.
type JoinPoints struct {
	IfThen           bool
	IfThenElse       bool
	BrIf             bool
	BrTable          bool
	Select           bool
	CallPre          bool
	CallPost         bool
	CallIndirectPre  bool
	CallIndirectPost bool
	BlockPre         bool
	BlockPost        bool
	LoopPre          bool
	LoopPost         bool

	GenericApply bool
	// GenericCallBase is set when any generic apply advice uses the
	// MutableDynamic tier, which additionally imports call_base so the
	// advice may re-enter the original function (spec.md §3 Supplement).
	GenericCallBase bool

	specialized map[string]SpecializedJoinPoint
}

// HasSpecializedApply reports whether any specialized apply join point is
// active at all.
func (j JoinPoints) HasSpecializedApply() bool { return len(j.specialized) > 0 }

// SpecializedApplies returns the set of distinct specialized apply join
// points, sorted by mangled name for deterministic downstream iteration
// (spec.md §8 property 5).
func (j JoinPoints) SpecializedApplies() []SpecializedJoinPoint {
	out := make([]SpecializedJoinPoint, 0, len(j.specialized))
	for _, s := range j.specialized {
		out = append(out, s)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].MangledName() < out[k].MangledName() })
	return out
}

// Parse tokenizes and parses aspect source, returning the normalized AST
// and its JoinPoints summary. Parsing an empty "(aspect)" succeeds with an
// empty Root and empty JoinPoints (spec.md §9 Open Question 1).
func Parse(source string) (*ast.Root, *JoinPoints, error) {
	toks := token.Tokenize(source)
	root, err := parser.New(toks).Parse()
	if err != nil {
		return nil, nil, err
	}
	jp := summarize(root)
	return root, jp, nil
}

func summarize(root *ast.Root) *JoinPoints {
	jp := &JoinPoints{specialized: map[string]SpecializedJoinPoint{}}
	for _, a := range root.Traps() {
		switch a.Kind {
		case ast.KindApply:
			if a.Apply.IsGeneric {
				jp.GenericApply = true
				if a.Apply.Tier == ast.MutableDynamic {
					jp.GenericCallBase = true
				}
				continue
			}
			spec := SpecializedJoinPoint{Signature: a.Apply.Signature(), Mutable: a.Apply.Mutable()}
			jp.specialized[spec.MangledName()] = spec
		case ast.KindIfThen:
			jp.IfThen = true
		case ast.KindIfThenElse:
			jp.IfThenElse = true
		case ast.KindBrIf:
			jp.BrIf = true
		case ast.KindBrTable:
			jp.BrTable = true
		case ast.KindSelect:
			jp.Select = true
		case ast.KindCallPre:
			jp.CallPre = true
		case ast.KindCallPost:
			jp.CallPost = true
		case ast.KindCallIndirectPre:
			jp.CallIndirectPre = true
		case ast.KindCallIndirectPost:
			jp.CallIndirectPost = true
		case ast.KindBlockPre:
			jp.BlockPre = true
		case ast.KindBlockPost:
			jp.BlockPost = true
		case ast.KindLoopPre:
			jp.LoopPre = true
		case ast.KindLoopPost:
			jp.LoopPost = true
		}
	}
	return jp
}
