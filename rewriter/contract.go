package rewriter

import (
	"github.com/aaronmunsters/wastrumentation/backend"
	"github.com/aaronmunsters/wastrumentation/dsl"
	"github.com/aaronmunsters/wastrumentation/wasm"
)

// AnalysisImportModule is the well-known namespace every trap the
// rewriter splices into a target function is imported under. The
// linker (spec.md §4.6) resolves these imports against the compiled
// analysis module.
const AnalysisImportModule = backend.AnalysisImportModule

// Contract assigns one freshly inserted import function index to every
// trap a target module's rewritten bodies will call.
type Contract struct {
	indices map[string]uint32
}

// FuncIdx returns the import function index assigned to trap, and
// whether trap is part of the contract at all.
func (c *Contract) FuncIdx(trap string) (uint32, bool) {
	idx, ok := c.indices[trap]
	return idx, ok
}

// BuildContract determines every trap the active join points require the
// target module to call (every backend.ContractTraps entry except the
// ones the analysis module itself imports, e.g. call_base*), inserts one
// fresh function import per trap into module, and renumbers every
// existing function-index reference so the insertion is transparent to
// already-encoded Call/RefFunc/element/export/start references.
func BuildContract(module *wasm.Module, joinPoints *dsl.JoinPoints) *Contract {
	var names []string
	var types []wasm.FuncType
	for _, trap := range backend.ContractTraps(joinPoints) {
		if trap.Import {
			continue
		}
		names = append(names, trap.Name)
		types = append(types, trapFuncType(trap))
	}

	oldNumImported := uint32(module.NumImportedFuncs())
	c := &Contract{indices: make(map[string]uint32, len(names))}
	for i, name := range names {
		c.indices[name] = oldNumImported + uint32(i)
	}
	if len(names) == 0 {
		return c
	}

	renumberModule(module, oldNumImported, uint32(len(names)))

	for i, name := range names {
		typeIdx := module.AddType(types[i])
		module.Imports = append(module.Imports, wasm.Import{
			Module: AnalysisImportModule,
			Name:   name,
			Desc:   wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: typeIdx},
		})
	}
	return c
}

func trapFuncType(trap backend.TrapSig) wasm.FuncType {
	params := make([]wasm.ValType, len(trap.Params))
	for i, p := range trap.Params {
		params[i] = p.Type.ToValType()
	}
	results := make([]wasm.ValType, len(trap.Results))
	for i, t := range trap.Results {
		results[i] = t.ToValType()
	}
	return wasm.FuncType{Params: params, Results: results}
}

// renumberModule shifts every reference to a local function index (one
// at or past cutover, the function-index-space boundary before the new
// imports were conceptually inserted) up by delta, since the new
// imports land between the existing imports and the existing locally
// defined functions in the function index space (spec.md §4.5 "the
// linker must renumber wherever imports are inserted ahead of
// pre-existing function indices").
func renumberModule(module *wasm.Module, cutover, delta uint32) {
	shift := func(idx uint32) uint32 {
		if idx >= cutover {
			return idx + delta
		}
		return idx
	}

	for i := range module.Exports {
		if module.Exports[i].Kind == wasm.KindFunc {
			module.Exports[i].Idx = shift(module.Exports[i].Idx)
		}
	}
	if module.Start != nil {
		shifted := shift(*module.Start)
		module.Start = &shifted
	}
	for i := range module.Elements {
		module.Elements[i].Offset = renumberExpr(module.Elements[i].Offset, shift)
		for j, idx := range module.Elements[i].FuncIdxs {
			module.Elements[i].FuncIdxs[j] = shift(idx)
		}
		for j := range module.Elements[i].Exprs {
			module.Elements[i].Exprs[j] = renumberExpr(module.Elements[i].Exprs[j], shift)
		}
	}
	for i := range module.Globals {
		module.Globals[i].Init = renumberExpr(module.Globals[i].Init, shift)
	}
	for i := range module.Data {
		module.Data[i].Offset = renumberExpr(module.Data[i].Offset, shift)
	}
	for i := range module.Code {
		instrs, err := wasm.DecodeInstructions(module.Code[i].Code)
		if err != nil {
			continue
		}
		renumberInstrs(instrs, shift)
		module.Code[i].Code = wasm.EncodeInstructions(instrs)
	}
}

// renumberExpr decodes a raw init-expression (global/element/data offset),
// renumbers any Call/RefFunc it contains, and re-encodes it. Constant
// expressions referencing no function index pass through unchanged.
func renumberExpr(expr []byte, shift func(uint32) uint32) []byte {
	instrs, err := wasm.DecodeInstructions(expr)
	if err != nil {
		return expr
	}
	renumberInstrs(instrs, shift)
	return wasm.EncodeInstructions(instrs)
}

func renumberInstrs(instrs []wasm.Instruction, shift func(uint32) uint32) {
	for i := range instrs {
		switch imm := instrs[i].Imm.(type) {
		case wasm.CallImm:
			imm.FuncIdx = shift(imm.FuncIdx)
			instrs[i].Imm = imm
		case wasm.RefFuncImm:
			imm.FuncIdx = shift(imm.FuncIdx)
			instrs[i].Imm = imm
		}
	}
}
