package ir

import (
	"github.com/aaronmunsters/wastrumentation/errors"
	"github.com/aaronmunsters/wastrumentation/sig"
	"github.com/aaronmunsters/wastrumentation/wasm"
)

// InferContext supplies the typing environment a forward stack-type pass
// needs beyond the instruction stream itself: local and global types, and
// the module's function signatures (for Call/CallIndirect).
type InferContext struct {
	FuncIdx    uint32
	Locals     []sig.WasmType
	Globals    []sig.WasmType
	Module     *wasm.Module
	Signatures []sig.Signature // indexed by function index
}

// Infer walks a lifted body in order, filling in InferredType on every
// node. Operand-stack effects for simple operators come from a static
// per-opcode table (asyncify's stack_effects.go pattern); Call,
// CallIndirect, local/global access, and constants consult ctx.
// Everything textually after an unconditional control transfer within the
// same sequence is marked Unreachable and left untyped, per spec.md §3.
func Infer(ctx InferContext, nodes []Node) error {
	_, err := inferSeq(ctx, nodes, false)
	return err
}

// inferSeq infers a sequence of sibling nodes. unreachable is true when an
// earlier sibling already executed an unconditional control transfer.
func inferSeq(ctx InferContext, nodes []Node, unreachable bool) (bool, error) {
	for _, n := range nodes {
		var err error
		unreachable, err = inferNode(ctx, n, unreachable)
		if err != nil {
			return unreachable, err
		}
	}
	return unreachable, nil
}

func inferNode(ctx InferContext, n Node, unreachable bool) (bool, error) {
	switch v := n.(type) {
	case *TypedInstr:
		if unreachable {
			v.Type = InferredType{Unreachable: true}
			return true, nil
		}
		eff, err := stackEffect(ctx, v.Instr)
		if err != nil {
			return unreachable, err
		}
		v.Type = InferredType{Inputs: eff.ins, Outputs: eff.outs}
		if isUnconditionalTransfer(v.Instr.Opcode) {
			return true, nil
		}
		return false, nil

	case *Block:
		if unreachable {
			v.Type = InferredType{Unreachable: true}
			return true, nil
		}
		params, results := BlockTypeArity(v.BlockType, ctx.Module)
		v.Type = InferredType{Inputs: params, Outputs: results}
		if _, err := inferSeq(ctx, v.Body, false); err != nil {
			return unreachable, err
		}
		return false, nil

	case *Loop:
		if unreachable {
			v.Type = InferredType{Unreachable: true}
			return true, nil
		}
		params, results := BlockTypeArity(v.BlockType, ctx.Module)
		v.Type = InferredType{Inputs: params, Outputs: results}
		if _, err := inferSeq(ctx, v.Body, false); err != nil {
			return unreachable, err
		}
		return false, nil

	case *If:
		if unreachable {
			v.Type = InferredType{Unreachable: true}
			return true, nil
		}
		params, results := BlockTypeArity(v.BlockType, ctx.Module)
		v.Type = InferredType{Inputs: append(append([]sig.WasmType{}, params...), sig.I32), Outputs: results}
		if _, err := inferSeq(ctx, v.Then, false); err != nil {
			return unreachable, err
		}
		if v.HasElse {
			if _, err := inferSeq(ctx, v.Else, false); err != nil {
				return unreachable, err
			}
		}
		return false, nil

	default:
		return unreachable, nil
	}
}

// isUnconditionalTransfer reports whether op always transfers control out
// of the current sequence, making every following sibling unreachable.
func isUnconditionalTransfer(op byte) bool {
	switch op {
	case wasm.OpUnreachable, wasm.OpReturn, wasm.OpBr, wasm.OpBrTable,
		wasm.OpReturnCall, wasm.OpReturnCallIndirect:
		return true
	}
	return false
}

type effect struct {
	ins  []sig.WasmType
	outs []sig.WasmType
}

func e(ins, outs []sig.WasmType) effect { return effect{ins: ins, outs: outs} }

var (
	i32 = sig.I32
	i64 = sig.I64
	f32 = sig.F32
	f64 = sig.F64
)

func unary(t sig.WasmType) effect          { return e([]sig.WasmType{t}, []sig.WasmType{t}) }
func binary(t sig.WasmType) effect         { return e([]sig.WasmType{t, t}, []sig.WasmType{t}) }
func compare(t sig.WasmType) effect        { return e([]sig.WasmType{t, t}, []sig.WasmType{i32}) }
func convert(from, to sig.WasmType) effect { return e([]sig.WasmType{from}, []sig.WasmType{to}) }

// stackEffect returns the operand-stack input/output types for instr.
// Returns a TypeInference error for instructions this pass does not
// (yet) model, e.g. SIMD, GC, and atomics.
func stackEffect(ctx InferContext, instr wasm.Instruction) (effect, error) {
	switch instr.Opcode {
	case wasm.OpUnreachable, wasm.OpNop, wasm.OpReturn:
		return e(nil, nil), nil

	case wasm.OpDrop:
		// The popped type is unknown without a full operand-stack
		// simulation; instrumentation of Drop itself is untyped.
		return e(nil, nil), nil

	case wasm.OpBr, wasm.OpBrTable:
		return e(nil, nil), nil

	case wasm.OpBrIf:
		return e([]sig.WasmType{i32}, nil), nil

	case wasm.OpSelect:
		return e(nil, nil), nil

	case wasm.OpCall:
		imm := instr.Imm.(wasm.CallImm)
		if int(imm.FuncIdx) >= len(ctx.Signatures) {
			return effect{}, errors.TypeInference(ctx.FuncIdx, 0, "call references out-of-range function index")
		}
		s := ctx.Signatures[imm.FuncIdx]
		return e(s.ArgumentTypes, s.ReturnTypes), nil

	case wasm.OpCallIndirect:
		imm := instr.Imm.(wasm.CallIndirectImm)
		if ctx.Module == nil || int(imm.TypeIdx) >= len(ctx.Module.Types) {
			return effect{}, errors.TypeInference(ctx.FuncIdx, 0, "call_indirect references out-of-range type index")
		}
		ft := ctx.Module.Types[imm.TypeIdx]
		s, err := sig.FromFuncType(ctx.FuncIdx, ft)
		if err != nil {
			return effect{}, err
		}
		return e(append(append([]sig.WasmType{}, s.ArgumentTypes...), i32), s.ReturnTypes), nil

	case wasm.OpLocalGet:
		idx := instr.Imm.(wasm.LocalImm).LocalIdx
		if int(idx) >= len(ctx.Locals) {
			return effect{}, errors.TypeInference(ctx.FuncIdx, 0, "local.get references out-of-range local index")
		}
		return e(nil, []sig.WasmType{ctx.Locals[idx]}), nil

	case wasm.OpLocalSet:
		idx := instr.Imm.(wasm.LocalImm).LocalIdx
		if int(idx) >= len(ctx.Locals) {
			return effect{}, errors.TypeInference(ctx.FuncIdx, 0, "local.set references out-of-range local index")
		}
		return e([]sig.WasmType{ctx.Locals[idx]}, nil), nil

	case wasm.OpLocalTee:
		idx := instr.Imm.(wasm.LocalImm).LocalIdx
		if int(idx) >= len(ctx.Locals) {
			return effect{}, errors.TypeInference(ctx.FuncIdx, 0, "local.tee references out-of-range local index")
		}
		return e([]sig.WasmType{ctx.Locals[idx]}, []sig.WasmType{ctx.Locals[idx]}), nil

	case wasm.OpGlobalGet:
		idx := instr.Imm.(wasm.GlobalImm).GlobalIdx
		if int(idx) >= len(ctx.Globals) {
			return effect{}, errors.TypeInference(ctx.FuncIdx, 0, "global.get references out-of-range global index")
		}
		return e(nil, []sig.WasmType{ctx.Globals[idx]}), nil

	case wasm.OpGlobalSet:
		idx := instr.Imm.(wasm.GlobalImm).GlobalIdx
		if int(idx) >= len(ctx.Globals) {
			return effect{}, errors.TypeInference(ctx.FuncIdx, 0, "global.set references out-of-range global index")
		}
		return e([]sig.WasmType{ctx.Globals[idx]}, nil), nil

	case wasm.OpI32Const:
		return e(nil, []sig.WasmType{i32}), nil
	case wasm.OpI64Const:
		return e(nil, []sig.WasmType{i64}), nil
	case wasm.OpF32Const:
		return e(nil, []sig.WasmType{f32}), nil
	case wasm.OpF64Const:
		return e(nil, []sig.WasmType{f64}), nil

	case wasm.OpI32Load, wasm.OpI32Load8S, wasm.OpI32Load8U, wasm.OpI32Load16S, wasm.OpI32Load16U:
		return e([]sig.WasmType{i32}, []sig.WasmType{i32}), nil
	case wasm.OpI64Load, wasm.OpI64Load8S, wasm.OpI64Load8U, wasm.OpI64Load16S, wasm.OpI64Load16U, wasm.OpI64Load32S, wasm.OpI64Load32U:
		return e([]sig.WasmType{i32}, []sig.WasmType{i64}), nil
	case wasm.OpF32Load:
		return e([]sig.WasmType{i32}, []sig.WasmType{f32}), nil
	case wasm.OpF64Load:
		return e([]sig.WasmType{i32}, []sig.WasmType{f64}), nil

	case wasm.OpI32Store, wasm.OpI32Store8, wasm.OpI32Store16:
		return e([]sig.WasmType{i32, i32}, nil), nil
	case wasm.OpI64Store, wasm.OpI64Store8, wasm.OpI64Store16, wasm.OpI64Store32:
		return e([]sig.WasmType{i32, i64}, nil), nil
	case wasm.OpF32Store:
		return e([]sig.WasmType{i32, f32}, nil), nil
	case wasm.OpF64Store:
		return e([]sig.WasmType{i32, f64}, nil), nil

	case wasm.OpMemorySize:
		return e(nil, []sig.WasmType{i32}), nil
	case wasm.OpMemoryGrow:
		return e([]sig.WasmType{i32}, []sig.WasmType{i32}), nil

	case wasm.OpI32Eqz:
		return e([]sig.WasmType{i32}, []sig.WasmType{i32}), nil
	case wasm.OpI64Eqz:
		return e([]sig.WasmType{i64}, []sig.WasmType{i32}), nil

	case wasm.OpI32Eq, wasm.OpI32Ne, wasm.OpI32LtS, wasm.OpI32LtU, wasm.OpI32GtS, wasm.OpI32GtU,
		wasm.OpI32LeS, wasm.OpI32LeU, wasm.OpI32GeS, wasm.OpI32GeU:
		return compare(i32), nil
	case wasm.OpI64Eq, wasm.OpI64Ne, wasm.OpI64LtS, wasm.OpI64LtU, wasm.OpI64GtS, wasm.OpI64GtU,
		wasm.OpI64LeS, wasm.OpI64LeU, wasm.OpI64GeS, wasm.OpI64GeU:
		return compare(i64), nil
	case wasm.OpF32Eq, wasm.OpF32Ne, wasm.OpF32Lt, wasm.OpF32Gt, wasm.OpF32Le, wasm.OpF32Ge:
		return compare(f32), nil
	case wasm.OpF64Eq, wasm.OpF64Ne, wasm.OpF64Lt, wasm.OpF64Gt, wasm.OpF64Le, wasm.OpF64Ge:
		return compare(f64), nil

	case wasm.OpI32Clz, wasm.OpI32Ctz, wasm.OpI32Popcnt:
		return unary(i32), nil
	case wasm.OpI32Add, wasm.OpI32Sub, wasm.OpI32Mul, wasm.OpI32DivS, wasm.OpI32DivU, wasm.OpI32RemS, wasm.OpI32RemU,
		wasm.OpI32And, wasm.OpI32Or, wasm.OpI32Xor, wasm.OpI32Shl, wasm.OpI32ShrS, wasm.OpI32ShrU, wasm.OpI32Rotl, wasm.OpI32Rotr:
		return binary(i32), nil

	case wasm.OpI64Clz, wasm.OpI64Ctz, wasm.OpI64Popcnt:
		return unary(i64), nil
	case wasm.OpI64Add, wasm.OpI64Sub, wasm.OpI64Mul, wasm.OpI64DivS, wasm.OpI64DivU, wasm.OpI64RemS, wasm.OpI64RemU,
		wasm.OpI64And, wasm.OpI64Or, wasm.OpI64Xor, wasm.OpI64Shl, wasm.OpI64ShrS, wasm.OpI64ShrU, wasm.OpI64Rotl, wasm.OpI64Rotr:
		return binary(i64), nil

	case wasm.OpF32Abs, wasm.OpF32Neg, wasm.OpF32Ceil, wasm.OpF32Floor, wasm.OpF32Trunc, wasm.OpF32Nearest, wasm.OpF32Sqrt:
		return unary(f32), nil
	case wasm.OpF32Add, wasm.OpF32Sub, wasm.OpF32Mul, wasm.OpF32Div, wasm.OpF32Min, wasm.OpF32Max, wasm.OpF32Copysign:
		return binary(f32), nil

	case wasm.OpF64Abs, wasm.OpF64Neg, wasm.OpF64Ceil, wasm.OpF64Floor, wasm.OpF64Trunc, wasm.OpF64Nearest, wasm.OpF64Sqrt:
		return unary(f64), nil
	case wasm.OpF64Add, wasm.OpF64Sub, wasm.OpF64Mul, wasm.OpF64Div, wasm.OpF64Min, wasm.OpF64Max, wasm.OpF64Copysign:
		return binary(f64), nil

	case wasm.OpI32WrapI64:
		return convert(i64, i32), nil
	case wasm.OpI32TruncF32S, wasm.OpI32TruncF32U:
		return convert(f32, i32), nil
	case wasm.OpI32TruncF64S, wasm.OpI32TruncF64U:
		return convert(f64, i32), nil
	case wasm.OpI64ExtendI32S, wasm.OpI64ExtendI32U:
		return convert(i32, i64), nil
	case wasm.OpI64TruncF32S, wasm.OpI64TruncF32U:
		return convert(f32, i64), nil
	case wasm.OpI64TruncF64S, wasm.OpI64TruncF64U:
		return convert(f64, i64), nil
	case wasm.OpF32ConvertI32S, wasm.OpF32ConvertI32U:
		return convert(i32, f32), nil
	case wasm.OpF32ConvertI64S, wasm.OpF32ConvertI64U:
		return convert(i64, f32), nil
	case wasm.OpF32DemoteF64:
		return convert(f64, f32), nil
	case wasm.OpF64ConvertI32S, wasm.OpF64ConvertI32U:
		return convert(i32, f64), nil
	case wasm.OpF64ConvertI64S, wasm.OpF64ConvertI64U:
		return convert(i64, f64), nil
	case wasm.OpF64PromoteF32:
		return convert(f32, f64), nil
	case wasm.OpI32ReinterpretF32:
		return convert(f32, i32), nil
	case wasm.OpI64ReinterpretF64:
		return convert(f64, i64), nil
	case wasm.OpF32ReinterpretI32:
		return convert(i32, f32), nil
	case wasm.OpF64ReinterpretI64:
		return convert(i64, f64), nil

	case wasm.OpI32Extend8S, wasm.OpI32Extend16S:
		return unary(i32), nil
	case wasm.OpI64Extend8S, wasm.OpI64Extend16S, wasm.OpI64Extend32S:
		return unary(i64), nil

	case wasm.OpRefIsNull:
		return e(nil, []sig.WasmType{i32}), nil
	case wasm.OpRefFunc:
		return e(nil, []sig.WasmType{sig.Ref(sig.FuncRef)}), nil

	default:
		return effect{}, errors.TypeInference(ctx.FuncIdx, 0, "no stack effect modeled for this opcode")
	}
}
