package backend

import (
	"strconv"

	"github.com/aaronmunsters/wastrumentation/dsl"
	"github.com/aaronmunsters/wastrumentation/sig"
)

// Param is one named, typed parameter of an analysis-interface export or
// import.
type Param struct {
	Name string
	Type sig.WasmType
}

// TrapSig is one function the analysis-interface contract (spec.md §4.2)
// requires, either an export (every fixed-name trap, generic_apply, and
// every specialized apply_func) or the call_base import a mutable
// specialized/generic apply needs to re-enter the original function.
type TrapSig struct {
	Name    string
	Params  []Param
	Results []sig.WasmType
	// Import is true for call_base_* (imported from transformed_input),
	// false for every trap the analysis module exports.
	Import bool
	// FallbackParam names the parameter whose value is the join point's
	// original value (spec.md §4.2 "Return-value semantics"); empty for
	// void traps and for apply, which has no single original value.
	FallbackParam string
}

// AnalysisImportModule is the well-known namespace the target module's
// trap calls are imported under; the linker (spec.md §4.6) resolves these
// against the compiled analysis module's exports.
const AnalysisImportModule = "instrumentation_analysis"

// CallBaseImportModule is the well-known namespace a mutable apply's
// call_base_* import is declared under; the linker resolves these against
// the corresponding pre-instrumentation target function.
const CallBaseImportModule = "transformed_input"

func p(name string, t sig.WasmType) Param { return Param{Name: name, Type: t} }

var (
	i32 = sig.I32
	i64 = sig.I64
	f32 = sig.F32
	f64 = sig.F64
)

// Operator family trap names (spec.md §4.5's "single instruction" row).
// There is no DSL syntax to declare these individually — original_source's
// own wasp-compiler join-point set never exposed them either — so they
// are carried as one fixed, always-together bundle gated on GenericApply
// alongside generic_apply itself (see DESIGN.md's "what gates the
// operator-level replacement points" entry).
const (
	FamilyDrop   = "op_drop"
	FamilyReturn = "op_return"

	FamilyConstI32 = "op_const_i32"
	FamilyConstF32 = "op_const_f32"
	FamilyConstI64 = "op_const_i64"
	FamilyConstF64 = "op_const_f64"

	FamilyUnaryI32ToI32 = "op_unary_i32_to_i32"
	FamilyUnaryI64ToI32 = "op_unary_i64_to_i32"
	FamilyUnaryI64ToI64 = "op_unary_i64_to_i64"
	FamilyUnaryF32ToF32 = "op_unary_f32_to_f32"
	FamilyUnaryF64ToF64 = "op_unary_f64_to_f64"
	FamilyUnaryF32ToI32 = "op_unary_f32_to_i32"
	FamilyUnaryF64ToI32 = "op_unary_f64_to_i32"
	FamilyUnaryI32ToI64 = "op_unary_i32_to_i64"
	FamilyUnaryF32ToI64 = "op_unary_f32_to_i64"
	FamilyUnaryF64ToI64 = "op_unary_f64_to_i64"
	FamilyUnaryI32ToF32 = "op_unary_i32_to_f32"
	FamilyUnaryI64ToF32 = "op_unary_i64_to_f32"
	FamilyUnaryF64ToF32 = "op_unary_f64_to_f32"
	FamilyUnaryI32ToF64 = "op_unary_i32_to_f64"
	FamilyUnaryI64ToF64 = "op_unary_i64_to_f64"
	FamilyUnaryF32ToF64 = "op_unary_f32_to_f64"

	// FamilyNullaryToI32 covers operators taking no stack operand at all
	// (memory.size on memory 0), per original_source's treatment of it
	// as an ordinary replaceable operation rather than a bespoke category.
	FamilyNullaryToI32 = "op_nullary_to_i32"

	FamilyBinaryI32I32ToI32 = "op_binary_i32_i32_to_i32"
	FamilyBinaryI64I64ToI32 = "op_binary_i64_i64_to_i32"
	FamilyBinaryF32F32ToI32 = "op_binary_f32_f32_to_i32"
	FamilyBinaryF64F64ToI32 = "op_binary_f64_f64_to_i32"
	FamilyBinaryI64I64ToI64 = "op_binary_i64_i64_to_i64"
	FamilyBinaryF32F32ToF32 = "op_binary_f32_f32_to_f32"
	FamilyBinaryF64F64ToF64 = "op_binary_f64_f64_to_f64"
)

// familyTrap describes one operator family's trap shape: the value types
// it receives (besides the trailing opcode discriminator, for unary/
// binary families) and what it returns.
type familyTrap struct {
	name       string
	valueTypes []sig.WasmType // operand(s), not counting an opcode param
	result     []sig.WasmType
	hasOpcode  bool // unary/binary families also take a trailing op code
}

// operatorFamilies lists every family trap in the fixed order they are
// emitted, mirroring original_source's Target enum declaration order.
var operatorFamilies = []familyTrap{
	{name: FamilyDrop},
	{name: FamilyReturn},

	{name: FamilyConstI32, valueTypes: []sig.WasmType{i32}, result: []sig.WasmType{i32}},
	{name: FamilyConstF32, valueTypes: []sig.WasmType{f32}, result: []sig.WasmType{f32}},
	{name: FamilyConstI64, valueTypes: []sig.WasmType{i64}, result: []sig.WasmType{i64}},
	{name: FamilyConstF64, valueTypes: []sig.WasmType{f64}, result: []sig.WasmType{f64}},

	{name: FamilyNullaryToI32, result: []sig.WasmType{i32}, hasOpcode: true},

	{name: FamilyUnaryI32ToI32, valueTypes: []sig.WasmType{i32}, result: []sig.WasmType{i32}, hasOpcode: true},
	{name: FamilyUnaryI64ToI32, valueTypes: []sig.WasmType{i64}, result: []sig.WasmType{i32}, hasOpcode: true},
	{name: FamilyUnaryI64ToI64, valueTypes: []sig.WasmType{i64}, result: []sig.WasmType{i64}, hasOpcode: true},
	{name: FamilyUnaryF32ToF32, valueTypes: []sig.WasmType{f32}, result: []sig.WasmType{f32}, hasOpcode: true},
	{name: FamilyUnaryF64ToF64, valueTypes: []sig.WasmType{f64}, result: []sig.WasmType{f64}, hasOpcode: true},
	{name: FamilyUnaryF32ToI32, valueTypes: []sig.WasmType{f32}, result: []sig.WasmType{i32}, hasOpcode: true},
	{name: FamilyUnaryF64ToI32, valueTypes: []sig.WasmType{f64}, result: []sig.WasmType{i32}, hasOpcode: true},
	{name: FamilyUnaryI32ToI64, valueTypes: []sig.WasmType{i32}, result: []sig.WasmType{i64}, hasOpcode: true},
	{name: FamilyUnaryF32ToI64, valueTypes: []sig.WasmType{f32}, result: []sig.WasmType{i64}, hasOpcode: true},
	{name: FamilyUnaryF64ToI64, valueTypes: []sig.WasmType{f64}, result: []sig.WasmType{i64}, hasOpcode: true},
	{name: FamilyUnaryI32ToF32, valueTypes: []sig.WasmType{i32}, result: []sig.WasmType{f32}, hasOpcode: true},
	{name: FamilyUnaryI64ToF32, valueTypes: []sig.WasmType{i64}, result: []sig.WasmType{f32}, hasOpcode: true},
	{name: FamilyUnaryF64ToF32, valueTypes: []sig.WasmType{f64}, result: []sig.WasmType{f32}, hasOpcode: true},
	{name: FamilyUnaryI32ToF64, valueTypes: []sig.WasmType{i32}, result: []sig.WasmType{f64}, hasOpcode: true},
	{name: FamilyUnaryI64ToF64, valueTypes: []sig.WasmType{i64}, result: []sig.WasmType{f64}, hasOpcode: true},
	{name: FamilyUnaryF32ToF64, valueTypes: []sig.WasmType{f32}, result: []sig.WasmType{f64}, hasOpcode: true},

	{name: FamilyBinaryI32I32ToI32, valueTypes: []sig.WasmType{i32, i32}, result: []sig.WasmType{i32}, hasOpcode: true},
	{name: FamilyBinaryI64I64ToI32, valueTypes: []sig.WasmType{i64, i64}, result: []sig.WasmType{i32}, hasOpcode: true},
	{name: FamilyBinaryF32F32ToI32, valueTypes: []sig.WasmType{f32, f32}, result: []sig.WasmType{i32}, hasOpcode: true},
	{name: FamilyBinaryF64F64ToI32, valueTypes: []sig.WasmType{f64, f64}, result: []sig.WasmType{i32}, hasOpcode: true},
	{name: FamilyBinaryI64I64ToI64, valueTypes: []sig.WasmType{i64, i64}, result: []sig.WasmType{i64}, hasOpcode: true},
	{name: FamilyBinaryF32F32ToF32, valueTypes: []sig.WasmType{f32, f32}, result: []sig.WasmType{f32}, hasOpcode: true},
	{name: FamilyBinaryF64F64ToF64, valueTypes: []sig.WasmType{f64, f64}, result: []sig.WasmType{f64}, hasOpcode: true},
}

func (f familyTrap) trapSig() TrapSig {
	params := make([]Param, 0, len(f.valueTypes)+1)
	for i, t := range f.valueTypes {
		params = append(params, p("v"+strconv.Itoa(i), t))
	}
	if f.hasOpcode {
		params = append(params, p("opcode", i32))
	}
	fallback := ""
	if len(f.valueTypes) > 0 {
		fallback = "v0"
	}
	return TrapSig{Name: f.name, Params: params, Results: f.result, FallbackParam: fallback}
}

// FamilyTrapSig returns the TrapSig for a named operator family, and
// whether the name is a known family at all.
func FamilyTrapSig(family string) (TrapSig, bool) {
	for _, f := range operatorFamilies {
		if f.name == family {
			return f.trapSig(), true
		}
	}
	return TrapSig{}, false
}

// ContractTraps returns every TrapSig active for the given join points,
// per spec.md §4.2's table, in a stable order.
func ContractTraps(jp *dsl.JoinPoints) []TrapSig {
	var traps []TrapSig

	if jp.IfThen {
		traps = append(traps, TrapSig{
			Name:          "specialized_if_then_k",
			Params:        []Param{p("k", i32), p("input_c", i32), p("arity", i32), p("func_idx", i64), p("instr_idx", i64)},
			Results:       []sig.WasmType{i32},
			FallbackParam: "k",
		})
	}
	if jp.IfThenElse {
		traps = append(traps, TrapSig{
			Name:          "specialized_if_then_else_k",
			Params:        []Param{p("k", i32), p("input_c", i32), p("arity", i32), p("func_idx", i64), p("instr_idx", i64)},
			Results:       []sig.WasmType{i32},
			FallbackParam: "k",
		})
	}
	if jp.BrIf {
		traps = append(traps, TrapSig{
			Name:          "specialized_br_if",
			Params:        []Param{p("k", i32), p("low_level_label", i32), p("func_idx", i64), p("instr_idx", i64)},
			Results:       []sig.WasmType{i32},
			FallbackParam: "k",
		})
	}
	if jp.BrTable {
		traps = append(traps, TrapSig{
			Name:          "specialized_br_table",
			Params:        []Param{p("target", i32), p("effective_label", i32), p("default", i32), p("func_idx", i64), p("instr_idx", i64)},
			Results:       []sig.WasmType{i32},
			FallbackParam: "target",
		})
	}
	if jp.Select {
		traps = append(traps, TrapSig{
			Name:          "specialized_select",
			Params:        []Param{p("k", i32), p("func_idx", i64), p("instr_idx", i64)},
			Results:       []sig.WasmType{i32},
			FallbackParam: "k",
		})
	}
	if jp.CallPre {
		traps = append(traps, TrapSig{
			Name:   "specialized_call_pre",
			Params: []Param{p("function_target", i32), p("func_idx", i64), p("instr_idx", i64)},
		})
	}
	if jp.CallPost {
		traps = append(traps, TrapSig{
			Name:   "specialized_call_post",
			Params: []Param{p("function_target", i32), p("func_idx", i64), p("instr_idx", i64)},
		})
	}
	if jp.CallIndirectPre {
		traps = append(traps, TrapSig{
			Name:          "specialized_call_indirect_pre",
			Params:        []Param{p("table_index", i32), p("table", i32), p("func_idx", i64), p("instr_idx", i64)},
			Results:       []sig.WasmType{i32},
			FallbackParam: "table_index",
		})
	}
	if jp.CallIndirectPost {
		traps = append(traps, TrapSig{
			Name:   "specialized_call_indirect_post",
			Params: []Param{p("table", i32), p("func_idx", i64), p("instr_idx", i64)},
		})
	}
	if jp.BlockPre {
		traps = append(traps, TrapSig{
			Name:   "specialized_block_pre",
			Params: []Param{p("input_count", i32), p("arity", i32), p("func_idx", i64), p("instr_idx", i64)},
		})
	}
	if jp.BlockPost {
		traps = append(traps, TrapSig{
			Name:   "specialized_block_post",
			Params: []Param{p("func_idx", i64), p("instr_idx", i64)},
		})
	}
	if jp.LoopPre {
		traps = append(traps, TrapSig{
			Name:   "specialized_loop_pre",
			Params: []Param{p("input_count", i32), p("arity", i32), p("func_idx", i64), p("instr_idx", i64)},
		})
	}
	if jp.LoopPost {
		traps = append(traps, TrapSig{
			Name:   "specialized_loop_post",
			Params: []Param{p("func_idx", i64), p("instr_idx", i64)},
		})
	}
	if jp.GenericApply {
		traps = append(traps, TrapSig{
			Name: "generic_apply",
			Params: []Param{
				p("f_apply", i32), p("instr_f_idx", i32), p("argc", i32),
				p("resc", i32), p("sigv", i32), p("sigtypv", i32), p("code_present", i32),
			},
		})
		if jp.GenericCallBase {
			traps = append(traps, TrapSig{Name: "call_base", Import: true})
		}
		for _, fam := range operatorFamilies {
			traps = append(traps, fam.trapSig())
		}
	}
	for _, spec := range jp.SpecializedApplies() {
		name := "apply_func_" + spec.MangledName()
		traps = append(traps, TrapSig{
			Name:    name,
			Params:  paramsFor(spec.Signature.ArgumentTypes),
			Results: spec.Signature.ReturnTypes,
		})
		if spec.Mutable {
			traps = append(traps, TrapSig{
				Name:    "call_base_" + spec.MangledName(),
				Params:  paramsFor(spec.Signature.ArgumentTypes),
				Results: spec.Signature.ReturnTypes,
				Import:  true,
			})
		}
	}

	return traps
}

func paramsFor(types []sig.WasmType) []Param {
	out := make([]Param, len(types))
	for i, t := range types {
		out[i] = p("a"+strconv.Itoa(i), t)
	}
	return out
}
