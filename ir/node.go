package ir

import (
	"github.com/aaronmunsters/wastrumentation/sig"
	"github.com/aaronmunsters/wastrumentation/wasm"
)

// InferredType is the operand-stack type immediately before and after a
// given tree position (spec.md §3 "Inferred instruction type").
// Unreachable positions carry no meaningful Inputs/Outputs and are never
// instrumented by the rewriter.
type InferredType struct {
	Inputs      []sig.WasmType
	Outputs     []sig.WasmType
	Unreachable bool
}

// Node is one entry in a lifted function body: either a leaf instruction
// or one of the three structural forms (Block, Loop, If) that collapse
// the Block/Loop/If/Else/End token stream.
type Node interface {
	// Index is the original_index of the opening token (structural
	// nodes) or of the instruction itself (leaves).
	Index() uint32
	node()
}

// TypedInstr is a single non-structural instruction (spec.md §3
// "Structured instruction"): every Wasm instruction except Block, Loop,
// If, Else, and End, which the lifter collapses into Block/Loop/If nodes.
type TypedInstr struct {
	OriginalIndex uint32
	Type          InferredType
	Instr         wasm.Instruction
}

func (t *TypedInstr) Index() uint32 { return t.OriginalIndex }
func (*TypedInstr) node()           {}

// Block is a lifted "block t ... end".
type Block struct {
	OriginalIndex uint32
	BlockType     int32
	Type          InferredType
	Body          []Node
}

func (b *Block) Index() uint32 { return b.OriginalIndex }
func (*Block) node()           {}

// Loop is a lifted "loop t ... end".
type Loop struct {
	OriginalIndex uint32
	BlockType     int32
	Type          InferredType
	Body          []Node
}

func (l *Loop) Index() uint32 { return l.OriginalIndex }
func (*Loop) node()           {}

// If is a lifted "if t ... [else ...] end". Else is nil when the source
// had no else branch.
type If struct {
	OriginalIndex uint32
	BlockType     int32
	Type          InferredType
	Then          []Node
	Else          []Node
	HasElse       bool
}

func (i *If) Index() uint32 { return i.OriginalIndex }
func (*If) node()           {}

// BlockTypeArity resolves a raw Wasm block-type immediate into its
// parameter and result type sequences, consulting module.Types for
// function-type-indexed block types.
func BlockTypeArity(blockType int32, module *wasm.Module) (params, results []sig.WasmType) {
	switch blockType {
	case -64:
		return nil, nil
	case -1:
		return nil, []sig.WasmType{sig.I32}
	case -2:
		return nil, []sig.WasmType{sig.I64}
	case -3:
		return nil, []sig.WasmType{sig.F32}
	case -4:
		return nil, []sig.WasmType{sig.F64}
	case -16:
		return nil, []sig.WasmType{sig.Ref(sig.FuncRef)}
	case -17:
		return nil, []sig.WasmType{sig.Ref(sig.ExternRef)}
	default:
		if blockType >= 0 && module != nil && int(blockType) < len(module.Types) {
			ft := module.Types[blockType]
			return mustTypes(ft.Params), mustTypes(ft.Results)
		}
		return nil, nil
	}
}

func mustTypes(vs []wasm.ValType) []sig.WasmType {
	out := make([]sig.WasmType, 0, len(vs))
	for _, v := range vs {
		if t, ok := sig.FromValType(v); ok {
			out = append(out, t)
		}
	}
	return out
}
