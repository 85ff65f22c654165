package rewriter

import (
	"go.uber.org/zap"

	"github.com/aaronmunsters/wastrumentation/dsl"
	"github.com/aaronmunsters/wastrumentation/errors"
	"github.com/aaronmunsters/wastrumentation/ir"
	"github.com/aaronmunsters/wastrumentation/opcode"
	"github.com/aaronmunsters/wastrumentation/sig"
	"github.com/aaronmunsters/wastrumentation/wasm"
)

// Rewriter splices trap calls into a target module's function bodies per
// the transformation templates of spec.md §4.5, using a Contract already
// built (and already applied) against the module so every trap name
// resolves to a live import function index.
type Rewriter struct {
	Module     *wasm.Module
	JoinPoints *dsl.JoinPoints
	Contract   *Contract
	Logger     *zap.Logger

	// SpecializedBindings maps a specialized apply's mangled signature
	// name to the original target function index (in this module's
	// current, post-contract numbering) that every `call F` of that
	// signature was redirected away from. The linker resolves each
	// binding's call_base_* import against the corresponding
	// pre-instrumentation function.
	SpecializedBindings map[string]uint32
}

// New returns a Rewriter. A nil logger is replaced with a no-op one.
func New(module *wasm.Module, joinPoints *dsl.JoinPoints, contract *Contract, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{
		Module:              module,
		JoinPoints:          joinPoints,
		Contract:            contract,
		Logger:              logger,
		SpecializedBindings: make(map[string]uint32),
	}
}

// InstrumentFunctions rewrites every function index in targets in place.
// Attempting to instrument an imported function fails with
// AttemptToInstrumentImport; a trap the active join points require but
// that BuildContract never assigned an index to is a programmer error,
// reported as MissingSignature.
func (r *Rewriter) InstrumentFunctions(targets []uint32) error {
	numImported := uint32(r.Module.NumImportedFuncs())
	for _, funcIdx := range targets {
		if funcIdx < numImported {
			return errors.AttemptToInstrumentImport(funcIdx)
		}
		localIdx := funcIdx - numImported
		if int(localIdx) >= len(r.Module.Code) {
			continue
		}
		if err := r.instrumentFunc(funcIdx, localIdx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rewriter) instrumentFunc(funcIdx, localIdx uint32) error {
	body := r.Module.Code[localIdx]
	instrs, err := wasm.DecodeInstructions(body.Code)
	if err != nil {
		return err
	}
	nodes, err := ir.Lift(funcIdx, instrs)
	if err != nil {
		return err
	}

	c := &spliceCtx{funcIdx: funcIdx, module: r.Module, jp: r.JoinPoints, contract: r.Contract, logger: r.Logger, bindings: r.SpecializedBindings}
	transformed, err := c.seq(nodes)
	if err != nil {
		return err
	}

	r.Module.Code[localIdx] = wasm.FuncBody{
		Locals: body.Locals,
		Code:   wasm.EncodeInstructions(ir.Lower(transformed)),
	}
	return nil
}

// spliceCtx carries the per-function state the splice walk needs: which
// join points are active, and where each trap's import index landed.
type spliceCtx struct {
	funcIdx  uint32
	module   *wasm.Module
	jp       *dsl.JoinPoints
	contract *Contract
	logger   *zap.Logger
	bindings map[string]uint32
}

func (c *spliceCtx) call(trap string) (wasm.Instruction, error) {
	idx, ok := c.contract.FuncIdx(trap)
	if !ok {
		return wasm.Instruction{}, errors.MissingSignature(trap)
	}
	return wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: idx}}, nil
}

// specializedApplyFor reports whether calleeIdx's signature matches one of
// the analysis's specialized apply join points (spec.md §4.5 "specialized
// apply on σ"), recording the binding so the linker can later wire
// call_base_σ to this exact original function.
func (c *spliceCtx) specializedApplyFor(calleeIdx uint32) (string, bool) {
	if !c.jp.HasSpecializedApply() {
		return "", false
	}
	ft := c.module.GetFuncType(calleeIdx)
	if ft == nil {
		return "", false
	}
	callSig, err := sig.FromFuncType(calleeIdx, *ft)
	if err != nil {
		return "", false
	}
	for _, spec := range c.jp.SpecializedApplies() {
		if spec.Signature.Equal(callSig) {
			mangled := spec.MangledName()
			c.bindings[mangled] = calleeIdx
			return mangled, true
		}
	}
	return "", false
}

func leaf(instr wasm.Instruction) ir.Node { return &ir.TypedInstr{Instr: instr} }

func constI32(v int32) ir.Node { return leaf(wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}}) }
func constI64(v int64) ir.Node { return leaf(wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: v}}) }

// seq transforms a sibling sequence, expanding each node into zero or
// more replacement nodes.
func (c *spliceCtx) seq(nodes []ir.Node) ([]ir.Node, error) {
	out := make([]ir.Node, 0, len(nodes))
	for _, n := range nodes {
		expanded, err := c.node(n)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func (c *spliceCtx) node(n ir.Node) ([]ir.Node, error) {
	switch v := n.(type) {
	case *ir.Block:
		return c.block(v, wasm.OpBlock)
	case *ir.Loop:
		return c.block(v, wasm.OpLoop)
	case *ir.If:
		return c.ifNode(v)
	case *ir.TypedInstr:
		return c.instr(v)
	default:
		return []ir.Node{n}, nil
	}
}

// block handles both Block and Loop, which share the same pre/post
// template (spec.md §4.5's "block/loop pre"/"post" row) modulo which
// join-point flags and trap names apply.
func (c *spliceCtx) block(n ir.Node, opcode byte) ([]ir.Node, error) {
	var body []ir.Node
	var blockType int32
	switch v := n.(type) {
	case *ir.Block:
		body, blockType = v.Body, v.BlockType
	case *ir.Loop:
		body, blockType = v.Body, v.BlockType
	}

	transformed, err := c.seq(body)
	if err != nil {
		return nil, err
	}

	var pre, post bool
	var preTrap, postTrap string
	if opcode == wasm.OpBlock {
		pre, post = c.jp.BlockPre, c.jp.BlockPost
		preTrap, postTrap = "specialized_block_pre", "specialized_block_post"
	} else {
		pre, post = c.jp.LoopPre, c.jp.LoopPost
		preTrap, postTrap = "specialized_loop_pre", "specialized_loop_post"
	}

	if pre {
		params, results := ir.BlockTypeArity(blockType, c.module)
		callInstr, err := c.call(preTrap)
		if err != nil {
			return nil, err
		}
		prelude := []ir.Node{
			constI32(int32(len(params))),
			constI32(int32(len(results))),
			constI64(int64(c.funcIdx)),
			constI64(int64(n.Index())),
			leaf(callInstr),
		}
		transformed = append(prelude, transformed...)
	}
	if post {
		callInstr, err := c.call(postTrap)
		if err != nil {
			return nil, err
		}
		transformed = append(transformed,
			constI64(int64(c.funcIdx)),
			constI64(int64(n.Index())),
			leaf(callInstr),
		)
	}

	switch v := n.(type) {
	case *ir.Block:
		v.Body = transformed
	case *ir.Loop:
		v.Body = transformed
	}
	return []ir.Node{n}, nil
}

func (c *spliceCtx) ifNode(v *ir.If) ([]ir.Node, error) {
	then, err := c.seq(v.Then)
	if err != nil {
		return nil, err
	}
	v.Then = then
	if v.HasElse {
		els, err := c.seq(v.Else)
		if err != nil {
			return nil, err
		}
		v.Else = els
	}

	trap := "specialized_if_then_k"
	active := c.jp.IfThen && !v.HasElse
	if v.HasElse {
		trap = "specialized_if_then_else_k"
		active = c.jp.IfThenElse
	}
	if !active {
		return []ir.Node{v}, nil
	}

	params, results := ir.BlockTypeArity(v.BlockType, c.module)
	callInstr, err := c.call(trap)
	if err != nil {
		return nil, err
	}
	prelude := []ir.Node{
		constI32(int32(len(params))),
		constI32(int32(len(results))),
		constI64(int64(c.funcIdx)),
		constI64(int64(v.Index())),
		leaf(callInstr),
	}
	return append(prelude, v), nil
}

// instr handles every leaf instruction: structural control-transfer
// instructions that carry their own replacement template (br_if,
// br_table, select, call, call_indirect), the five operator-level
// replacement points gated on GenericApply, and everything else, which
// passes through untouched.
func (c *spliceCtx) instr(t *ir.TypedInstr) ([]ir.Node, error) {
	instr := t.Instr

	switch instr.Opcode {
	case wasm.OpBrIf:
		if !c.jp.BrIf {
			return []ir.Node{t}, nil
		}
		imm := instr.Imm.(wasm.BranchImm)
		if imm.LabelIdx == 0 {
			c.logger.Debug("branch resolves to immediately enclosing block (constant branch)",
				zap.Uint32("func_idx", c.funcIdx), zap.Uint32("instr_idx", t.Index()))
		}
		callInstr, err := c.call("specialized_br_if")
		if err != nil {
			return nil, err
		}
		// k (the condition) is already on the stack from the preceding
		// instruction; low_level_label, func_idx, instr_idx follow it.
		return []ir.Node{
			constI32(int32(imm.LabelIdx)),
			constI64(int64(c.funcIdx)),
			constI64(int64(t.Index())),
			leaf(callInstr),
			t,
		}, nil

	case wasm.OpBrTable:
		if !c.jp.BrTable {
			return []ir.Node{t}, nil
		}
		imm := instr.Imm.(wasm.BrTableImm)
		for _, label := range imm.Labels {
			if label == 0 {
				c.logger.Debug("branch table has a target resolving to the immediately enclosing block",
					zap.Uint32("func_idx", c.funcIdx), zap.Uint32("instr_idx", t.Index()))
				break
			}
		}
		callInstr, err := c.call("specialized_br_table")
		if err != nil {
			return nil, err
		}
		// target (the runtime selector) is already on the stack; the
		// label actually taken depends on that runtime value, which the
		// rewriter cannot resolve, so effective_label is seeded with the
		// static default and left for the trap to override.
		return []ir.Node{
			constI32(int32(imm.Default)),
			constI32(int32(imm.Default)),
			constI64(int64(c.funcIdx)),
			constI64(int64(t.Index())),
			leaf(callInstr),
			t,
		}, nil

	case wasm.OpSelect:
		if !c.jp.Select {
			return []ir.Node{t}, nil
		}
		callInstr, err := c.call("specialized_select")
		if err != nil {
			return nil, err
		}
		// k (the select condition) is already on top of the stack.
		return []ir.Node{
			constI64(int64(c.funcIdx)),
			constI64(int64(t.Index())),
			leaf(callInstr),
			t,
		}, nil

	case wasm.OpCall:
		imm := instr.Imm.(wasm.CallImm)
		origIdx := t.Index()
		if mangled, ok := c.specializedApplyFor(imm.FuncIdx); ok {
			callInstr, err := c.call("apply_func_" + mangled)
			if err != nil {
				return nil, err
			}
			t = &ir.TypedInstr{Instr: callInstr, OriginalIndex: origIdx}
		}
		var out []ir.Node
		if c.jp.CallPre {
			callInstr, err := c.call("specialized_call_pre")
			if err != nil {
				return nil, err
			}
			out = append(out,
				constI32(int32(imm.FuncIdx)),
				constI64(int64(c.funcIdx)),
				constI64(int64(origIdx)),
				leaf(callInstr),
			)
		}
		out = append(out, t)
		if c.jp.CallPost {
			callInstr, err := c.call("specialized_call_post")
			if err != nil {
				return nil, err
			}
			out = append(out,
				constI32(int32(imm.FuncIdx)),
				constI64(int64(c.funcIdx)),
				constI64(int64(origIdx)),
				leaf(callInstr),
			)
		}
		return out, nil

	case wasm.OpCallIndirect:
		imm := instr.Imm.(wasm.CallIndirectImm)
		var out []ir.Node
		if c.jp.CallIndirectPre {
			callInstr, err := c.call("specialized_call_indirect_pre")
			if err != nil {
				return nil, err
			}
			// table_index (the dynamic call target) is already on the
			// stack; table, func_idx, instr_idx follow it.
			out = append(out,
				constI32(int32(imm.TableIdx)),
				constI64(int64(c.funcIdx)),
				constI64(int64(t.Index())),
				leaf(callInstr),
			)
		}
		out = append(out, t)
		if c.jp.CallIndirectPost {
			callInstr, err := c.call("specialized_call_indirect_post")
			if err != nil {
				return nil, err
			}
			out = append(out,
				constI32(int32(imm.TableIdx)),
				constI64(int64(c.funcIdx)),
				constI64(int64(t.Index())),
				leaf(callInstr),
			)
		}
		return out, nil
	}

	if c.jp.GenericApply {
		if out, handled, err := c.operatorFamily(t); handled {
			return out, err
		}
	}

	return []ir.Node{t}, nil
}

// operatorFamily implements the "drop, return, const T, unary T,
// binary T" row: drop/return are announced to a void trap ahead of the
// unmodified original instruction (their trap has no operand to
// materialize and removing the original would leave the operand stack
// unbalanced); const/unary/binary are fully replaced by a call that
// receives the operand(s) plus the serialized operator code and
// produces the replacement value. memory.grow/memory.size on memory 0
// are folded into the unary/nullary shape the same way; any other
// memory index is left untouched and logged.
func (c *spliceCtx) operatorFamily(t *ir.TypedInstr) ([]ir.Node, bool, error) {
	instr := t.Instr

	switch instr.Opcode {
	case wasm.OpDrop:
		callInstr, err := c.call(FamilyDrop)
		if err != nil {
			return nil, true, err
		}
		return []ir.Node{leaf(callInstr), t}, true, nil

	case wasm.OpReturn:
		callInstr, err := c.call(FamilyReturn)
		if err != nil {
			return nil, true, err
		}
		return []ir.Node{leaf(callInstr), t}, true, nil

	case wasm.OpI32Const, wasm.OpF32Const, wasm.OpI64Const, wasm.OpF64Const:
		family := map[byte]string{
			wasm.OpI32Const: FamilyConstI32,
			wasm.OpF32Const: FamilyConstF32,
			wasm.OpI64Const: FamilyConstI64,
			wasm.OpF64Const: FamilyConstF64,
		}[instr.Opcode]
		callInstr, err := c.call(family)
		if err != nil {
			return nil, true, err
		}
		return []ir.Node{t, leaf(callInstr)}, true, nil

	case wasm.OpMemoryGrow, wasm.OpMemorySize:
		imm := instr.Imm.(wasm.MemoryIdxImm)
		if imm.MemIdx != 0 {
			c.logger.Warn("memory instruction on non-zero memory index left untouched",
				zap.Uint32("func_idx", c.funcIdx), zap.Uint32("instr_idx", t.Index()), zap.Uint32("mem_idx", imm.MemIdx))
			return nil, false, nil
		}
		var code int32
		var fam string
		if instr.Opcode == wasm.OpMemoryGrow {
			code, _ = opcode.Unary(instr)
			fam = FamilyUnaryI32ToI32
		} else {
			code, _ = opcode.Nullary(instr)
			fam = FamilyNullaryToI32
		}
		callInstr, err := c.call(fam)
		if err != nil {
			return nil, true, err
		}
		return []ir.Node{constI32(code), leaf(callInstr)}, true, nil
	}

	// Drop/Return/Const/memory.grow/memory.size are exhaustively handled
	// above; OperatorFamily only ever matches a unary or binary
	// instruction from here on.
	if fam, ok := OperatorFamily(instr); ok {
		code, isUnary := opcode.Unary(instr)
		if !isUnary {
			code, _ = opcode.Binary(instr)
		}
		callInstr, err := c.call(fam)
		if err != nil {
			return nil, true, err
		}
		// Operand(s) are already on the stack from whatever produced
		// them; only the opcode discriminator needs materializing
		// before the call replaces instr entirely.
		return []ir.Node{constI32(code), leaf(callInstr)}, true, nil
	}

	return nil, false, nil
}
