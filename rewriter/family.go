package rewriter

import (
	"github.com/aaronmunsters/wastrumentation/backend"
	"github.com/aaronmunsters/wastrumentation/wasm"
)

// Operator families name the replacement trap each unary/binary opcode
// resolves to (spec.md §4.5's "per-op trap whose signature matches").
// The family names themselves, and their trap signatures, live in
// backend.FamilyTrapSig alongside the rest of the analysis-interface
// contract; this file only classifies raw instructions into them, since
// that classification needs wasm.Instruction, which backend has no
// reason to depend on. Groupings are carried over from the original
// Target enum (original_source's simple_operations.rs), which buckets
// every operator by its input/output arity and type rather than giving
// each operator its own trap.
const (
	FamilyDrop   = backend.FamilyDrop
	FamilyReturn = backend.FamilyReturn

	FamilyConstI32 = backend.FamilyConstI32
	FamilyConstF32 = backend.FamilyConstF32
	FamilyConstI64 = backend.FamilyConstI64
	FamilyConstF64 = backend.FamilyConstF64

	FamilyUnaryI32ToI32 = backend.FamilyUnaryI32ToI32
	FamilyUnaryI64ToI32 = backend.FamilyUnaryI64ToI32
	FamilyUnaryI64ToI64 = backend.FamilyUnaryI64ToI64
	FamilyUnaryF32ToF32 = backend.FamilyUnaryF32ToF32
	FamilyUnaryF64ToF64 = backend.FamilyUnaryF64ToF64
	FamilyUnaryF32ToI32 = backend.FamilyUnaryF32ToI32
	FamilyUnaryF64ToI32 = backend.FamilyUnaryF64ToI32
	FamilyUnaryI32ToI64 = backend.FamilyUnaryI32ToI64
	FamilyUnaryF32ToI64 = backend.FamilyUnaryF32ToI64
	FamilyUnaryF64ToI64 = backend.FamilyUnaryF64ToI64
	FamilyUnaryI32ToF32 = backend.FamilyUnaryI32ToF32
	FamilyUnaryI64ToF32 = backend.FamilyUnaryI64ToF32
	FamilyUnaryF64ToF32 = backend.FamilyUnaryF64ToF32
	FamilyUnaryI32ToF64 = backend.FamilyUnaryI32ToF64
	FamilyUnaryI64ToF64 = backend.FamilyUnaryI64ToF64
	FamilyUnaryF32ToF64 = backend.FamilyUnaryF32ToF64

	FamilyNullaryToI32 = backend.FamilyNullaryToI32

	FamilyBinaryI32I32ToI32 = backend.FamilyBinaryI32I32ToI32
	FamilyBinaryI64I64ToI32 = backend.FamilyBinaryI64I64ToI32
	FamilyBinaryF32F32ToI32 = backend.FamilyBinaryF32F32ToI32
	FamilyBinaryF64F64ToI32 = backend.FamilyBinaryF64F64ToI32
	FamilyBinaryI64I64ToI64 = backend.FamilyBinaryI64I64ToI64
	FamilyBinaryF32F32ToF32 = backend.FamilyBinaryF32F32ToF32
	FamilyBinaryF64F64ToF64 = backend.FamilyBinaryF64F64ToF64
)

// AllFamilies lists every operator family a contract may provide a trap
// for, in a stable order, for callers that need to enumerate the full
// per-op surface (e.g. the signature-library requirement collector).
var AllFamilies = []string{
	FamilyDrop, FamilyReturn,
	FamilyConstI32, FamilyConstF32, FamilyConstI64, FamilyConstF64,
	FamilyNullaryToI32,
	FamilyUnaryI32ToI32, FamilyUnaryI64ToI32, FamilyUnaryI64ToI64,
	FamilyUnaryF32ToF32, FamilyUnaryF64ToF64, FamilyUnaryF32ToI32,
	FamilyUnaryF64ToI32, FamilyUnaryI32ToI64, FamilyUnaryF32ToI64,
	FamilyUnaryF64ToI64, FamilyUnaryI32ToF32, FamilyUnaryI64ToF32,
	FamilyUnaryF64ToF32, FamilyUnaryI32ToF64, FamilyUnaryI64ToF64,
	FamilyUnaryF32ToF64,
	FamilyBinaryI32I32ToI32, FamilyBinaryI64I64ToI32, FamilyBinaryF32F32ToI32,
	FamilyBinaryF64F64ToI32, FamilyBinaryI64I64ToI64, FamilyBinaryF32F32ToF32,
	FamilyBinaryF64F64ToF64,
}

var unaryFamily = map[byte]string{
	wasm.OpI32Eqz: FamilyUnaryI32ToI32,
	wasm.OpI64Eqz: FamilyUnaryI64ToI32,

	wasm.OpI32Clz: FamilyUnaryI32ToI32, wasm.OpI32Ctz: FamilyUnaryI32ToI32, wasm.OpI32Popcnt: FamilyUnaryI32ToI32,
	wasm.OpI64Clz: FamilyUnaryI64ToI64, wasm.OpI64Ctz: FamilyUnaryI64ToI64, wasm.OpI64Popcnt: FamilyUnaryI64ToI64,

	wasm.OpF32Abs: FamilyUnaryF32ToF32, wasm.OpF32Neg: FamilyUnaryF32ToF32, wasm.OpF32Ceil: FamilyUnaryF32ToF32,
	wasm.OpF32Floor: FamilyUnaryF32ToF32, wasm.OpF32Trunc: FamilyUnaryF32ToF32, wasm.OpF32Nearest: FamilyUnaryF32ToF32,
	wasm.OpF32Sqrt: FamilyUnaryF32ToF32,
	wasm.OpF64Abs:  FamilyUnaryF64ToF64, wasm.OpF64Neg: FamilyUnaryF64ToF64, wasm.OpF64Ceil: FamilyUnaryF64ToF64,
	wasm.OpF64Floor: FamilyUnaryF64ToF64, wasm.OpF64Trunc: FamilyUnaryF64ToF64, wasm.OpF64Nearest: FamilyUnaryF64ToF64,
	wasm.OpF64Sqrt: FamilyUnaryF64ToF64,

	wasm.OpI32WrapI64: FamilyUnaryI64ToI32,
	wasm.OpI32TruncF32S: FamilyUnaryF32ToI32, wasm.OpI32TruncF32U: FamilyUnaryF32ToI32,
	wasm.OpI32TruncF64S: FamilyUnaryF64ToI32, wasm.OpI32TruncF64U: FamilyUnaryF64ToI32,
	wasm.OpI64ExtendI32S: FamilyUnaryI32ToI64, wasm.OpI64ExtendI32U: FamilyUnaryI32ToI64,
	wasm.OpI64TruncF32S: FamilyUnaryF32ToI64, wasm.OpI64TruncF32U: FamilyUnaryF32ToI64,
	wasm.OpI64TruncF64S: FamilyUnaryF64ToI64, wasm.OpI64TruncF64U: FamilyUnaryF64ToI64,
	wasm.OpF32ConvertI32S: FamilyUnaryI32ToF32, wasm.OpF32ConvertI32U: FamilyUnaryI32ToF32,
	wasm.OpF32ConvertI64S: FamilyUnaryI64ToF32, wasm.OpF32ConvertI64U: FamilyUnaryI64ToF32,
	wasm.OpF32DemoteF64: FamilyUnaryF64ToF32,
	wasm.OpF64ConvertI32S: FamilyUnaryI32ToF64, wasm.OpF64ConvertI32U: FamilyUnaryI32ToF64,
	wasm.OpF64ConvertI64S: FamilyUnaryI64ToF64, wasm.OpF64ConvertI64U: FamilyUnaryI64ToF64,
	wasm.OpF64PromoteF32:     FamilyUnaryF32ToF64,
	wasm.OpI32ReinterpretF32: FamilyUnaryF32ToI32,
	wasm.OpI64ReinterpretF64: FamilyUnaryF64ToI64,
	wasm.OpF32ReinterpretI32: FamilyUnaryI32ToF32,
	wasm.OpF64ReinterpretI64: FamilyUnaryI64ToF64,
	wasm.OpI32Extend8S:       FamilyUnaryI32ToI32,
	wasm.OpI32Extend16S:      FamilyUnaryI32ToI32,
	wasm.OpI64Extend8S:       FamilyUnaryI64ToI64,
	wasm.OpI64Extend16S:      FamilyUnaryI64ToI64,
	wasm.OpI64Extend32S:      FamilyUnaryI64ToI64,

	// memory.grow: consumes a page-count delta, produces the previous
	// size (or -1), on memory 0 only (original_source's simple_operations.rs
	// treats it as an ordinary unary op, not a bespoke category).
	wasm.OpMemoryGrow: FamilyUnaryI32ToI32,
}

var unarySatFamily = map[uint32]string{
	wasm.MiscI32TruncSatF32S: FamilyUnaryF32ToI32, wasm.MiscI32TruncSatF32U: FamilyUnaryF32ToI32,
	wasm.MiscI32TruncSatF64S: FamilyUnaryF64ToI32, wasm.MiscI32TruncSatF64U: FamilyUnaryF64ToI32,
	wasm.MiscI64TruncSatF32S: FamilyUnaryF32ToI64, wasm.MiscI64TruncSatF32U: FamilyUnaryF32ToI64,
	wasm.MiscI64TruncSatF64S: FamilyUnaryF64ToI64, wasm.MiscI64TruncSatF64U: FamilyUnaryF64ToI64,
}

var binaryFamily = map[byte]string{
	wasm.OpI32Eq: FamilyBinaryI32I32ToI32, wasm.OpI32Ne: FamilyBinaryI32I32ToI32,
	wasm.OpI32LtS: FamilyBinaryI32I32ToI32, wasm.OpI32LtU: FamilyBinaryI32I32ToI32,
	wasm.OpI32GtS: FamilyBinaryI32I32ToI32, wasm.OpI32GtU: FamilyBinaryI32I32ToI32,
	wasm.OpI32LeS: FamilyBinaryI32I32ToI32, wasm.OpI32LeU: FamilyBinaryI32I32ToI32,
	wasm.OpI32GeS: FamilyBinaryI32I32ToI32, wasm.OpI32GeU: FamilyBinaryI32I32ToI32,

	wasm.OpI64Eq: FamilyBinaryI64I64ToI32, wasm.OpI64Ne: FamilyBinaryI64I64ToI32,
	wasm.OpI64LtS: FamilyBinaryI64I64ToI32, wasm.OpI64LtU: FamilyBinaryI64I64ToI32,
	wasm.OpI64GtS: FamilyBinaryI64I64ToI32, wasm.OpI64GtU: FamilyBinaryI64I64ToI32,
	wasm.OpI64LeS: FamilyBinaryI64I64ToI32, wasm.OpI64LeU: FamilyBinaryI64I64ToI32,
	wasm.OpI64GeS: FamilyBinaryI64I64ToI32, wasm.OpI64GeU: FamilyBinaryI64I64ToI32,

	wasm.OpF32Eq: FamilyBinaryF32F32ToI32, wasm.OpF32Ne: FamilyBinaryF32F32ToI32,
	wasm.OpF32Lt: FamilyBinaryF32F32ToI32, wasm.OpF32Gt: FamilyBinaryF32F32ToI32,
	wasm.OpF32Le: FamilyBinaryF32F32ToI32, wasm.OpF32Ge: FamilyBinaryF32F32ToI32,

	wasm.OpF64Eq: FamilyBinaryF64F64ToI32, wasm.OpF64Ne: FamilyBinaryF64F64ToI32,
	wasm.OpF64Lt: FamilyBinaryF64F64ToI32, wasm.OpF64Gt: FamilyBinaryF64F64ToI32,
	wasm.OpF64Le: FamilyBinaryF64F64ToI32, wasm.OpF64Ge: FamilyBinaryF64F64ToI32,

	wasm.OpI32Add: FamilyBinaryI32I32ToI32, wasm.OpI32Sub: FamilyBinaryI32I32ToI32,
	wasm.OpI32Mul: FamilyBinaryI32I32ToI32, wasm.OpI32DivS: FamilyBinaryI32I32ToI32,
	wasm.OpI32DivU: FamilyBinaryI32I32ToI32, wasm.OpI32RemS: FamilyBinaryI32I32ToI32,
	wasm.OpI32RemU: FamilyBinaryI32I32ToI32, wasm.OpI32And: FamilyBinaryI32I32ToI32,
	wasm.OpI32Or: FamilyBinaryI32I32ToI32, wasm.OpI32Xor: FamilyBinaryI32I32ToI32,
	wasm.OpI32Shl: FamilyBinaryI32I32ToI32, wasm.OpI32ShrS: FamilyBinaryI32I32ToI32,
	wasm.OpI32ShrU: FamilyBinaryI32I32ToI32, wasm.OpI32Rotl: FamilyBinaryI32I32ToI32,
	wasm.OpI32Rotr: FamilyBinaryI32I32ToI32,

	wasm.OpI64Add: FamilyBinaryI64I64ToI64, wasm.OpI64Sub: FamilyBinaryI64I64ToI64,
	wasm.OpI64Mul: FamilyBinaryI64I64ToI64, wasm.OpI64DivS: FamilyBinaryI64I64ToI64,
	wasm.OpI64DivU: FamilyBinaryI64I64ToI64, wasm.OpI64RemS: FamilyBinaryI64I64ToI64,
	wasm.OpI64RemU: FamilyBinaryI64I64ToI64, wasm.OpI64And: FamilyBinaryI64I64ToI64,
	wasm.OpI64Or: FamilyBinaryI64I64ToI64, wasm.OpI64Xor: FamilyBinaryI64I64ToI64,
	wasm.OpI64Shl: FamilyBinaryI64I64ToI64, wasm.OpI64ShrS: FamilyBinaryI64I64ToI64,
	wasm.OpI64ShrU: FamilyBinaryI64I64ToI64, wasm.OpI64Rotl: FamilyBinaryI64I64ToI64,
	wasm.OpI64Rotr: FamilyBinaryI64I64ToI64,

	wasm.OpF32Add: FamilyBinaryF32F32ToF32, wasm.OpF32Sub: FamilyBinaryF32F32ToF32,
	wasm.OpF32Mul: FamilyBinaryF32F32ToF32, wasm.OpF32Div: FamilyBinaryF32F32ToF32,
	wasm.OpF32Min: FamilyBinaryF32F32ToF32, wasm.OpF32Max: FamilyBinaryF32F32ToF32,
	wasm.OpF32Copysign: FamilyBinaryF32F32ToF32,

	wasm.OpF64Add: FamilyBinaryF64F64ToF64, wasm.OpF64Sub: FamilyBinaryF64F64ToF64,
	wasm.OpF64Mul: FamilyBinaryF64F64ToF64, wasm.OpF64Div: FamilyBinaryF64F64ToF64,
	wasm.OpF64Min: FamilyBinaryF64F64ToF64, wasm.OpF64Max: FamilyBinaryF64F64ToF64,
	wasm.OpF64Copysign: FamilyBinaryF64F64ToF64,
}

// OperatorFamily returns the trap family an instruction's replacement
// call must target, and whether the instruction is a family member at
// all (drop/return/const/unary/binary, plus memory.size as the nullary
// family; everything else returns false).
func OperatorFamily(instr wasm.Instruction) (string, bool) {
	switch instr.Opcode {
	case wasm.OpDrop:
		return FamilyDrop, true
	case wasm.OpReturn:
		return FamilyReturn, true
	case wasm.OpI32Const:
		return FamilyConstI32, true
	case wasm.OpF32Const:
		return FamilyConstF32, true
	case wasm.OpI64Const:
		return FamilyConstI64, true
	case wasm.OpF64Const:
		return FamilyConstF64, true
	case wasm.OpMemorySize:
		return FamilyNullaryToI32, true
	case wasm.OpPrefixMisc:
		if imm, ok := instr.Imm.(wasm.MiscImm); ok {
			if fam, ok := unarySatFamily[imm.SubOpcode]; ok {
				return fam, true
			}
		}
		return "", false
	default:
		if fam, ok := unaryFamily[instr.Opcode]; ok {
			return fam, true
		}
		if fam, ok := binaryFamily[instr.Opcode]; ok {
			return fam, true
		}
		return "", false
	}
}
