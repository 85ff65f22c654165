package opcode

import "github.com/aaronmunsters/wastrumentation/wasm"

// unaryCodes maps a plain (non-prefixed) unary opcode byte to its stable
// serialized code.
var unaryCodes = map[byte]int32{
	wasm.OpI32Eqz:            1,
	wasm.OpI64Eqz:            2,
	wasm.OpI32Clz:            3,
	wasm.OpI32Ctz:            4,
	wasm.OpI32Popcnt:         5,
	wasm.OpI64Clz:            6,
	wasm.OpI64Ctz:            7,
	wasm.OpI64Popcnt:         8,
	wasm.OpF32Abs:            9,
	wasm.OpF32Neg:            10,
	wasm.OpF32Ceil:           11,
	wasm.OpF32Floor:          12,
	wasm.OpF32Trunc:          13,
	wasm.OpF32Nearest:        14,
	wasm.OpF32Sqrt:           15,
	wasm.OpF64Abs:            16,
	wasm.OpF64Neg:            17,
	wasm.OpF64Ceil:           18,
	wasm.OpF64Floor:          19,
	wasm.OpF64Trunc:          20,
	wasm.OpF64Nearest:        21,
	wasm.OpF64Sqrt:           22,
	wasm.OpI32WrapI64:        23,
	wasm.OpI32TruncF32S:      24,
	wasm.OpI32TruncF32U:      25,
	wasm.OpI32TruncF64S:      26,
	wasm.OpI32TruncF64U:      27,
	wasm.OpI64ExtendI32S:     32,
	wasm.OpI64ExtendI32U:     33,
	wasm.OpI64TruncF32S:      34,
	wasm.OpI64TruncF32U:      35,
	wasm.OpI64TruncF64S:      36,
	wasm.OpI64TruncF64U:      37,
	wasm.OpF32ConvertI32S:    42,
	wasm.OpF32ConvertI32U:    43,
	wasm.OpF32ConvertI64S:    44,
	wasm.OpF32ConvertI64U:    45,
	wasm.OpF32DemoteF64:      46,
	wasm.OpF64ConvertI32S:    47,
	wasm.OpF64ConvertI32U:    48,
	wasm.OpF64ConvertI64S:    49,
	wasm.OpF64ConvertI64U:    50,
	wasm.OpF64PromoteF32:     51,
	wasm.OpI32ReinterpretF32: 52,
	wasm.OpI64ReinterpretF64: 53,
	wasm.OpF32ReinterpretI32: 54,
	wasm.OpF64ReinterpretI64: 55,
	wasm.OpI32Extend8S:       56,
	wasm.OpI32Extend16S:      57,
	wasm.OpI64Extend8S:       58,
	wasm.OpI64Extend16S:      59,
	wasm.OpI64Extend32S:      60,
	wasm.OpMemoryGrow:        61,
}

// nullaryCodes maps an opcode that consumes no operand (it is classified
// neither unary nor binary) to its stable serialized code.
var nullaryCodes = map[byte]int32{
	wasm.OpMemorySize: 1,
}

// unarySatCodes maps the saturating-truncation sub-opcodes (0xFC prefix)
// to their stable serialized code.
var unarySatCodes = map[uint32]int32{
	wasm.MiscI32TruncSatF32S: 28,
	wasm.MiscI32TruncSatF32U: 29,
	wasm.MiscI32TruncSatF64S: 30,
	wasm.MiscI32TruncSatF64U: 31,
	wasm.MiscI64TruncSatF32S: 38,
	wasm.MiscI64TruncSatF32U: 39,
	wasm.MiscI64TruncSatF64S: 40,
	wasm.MiscI64TruncSatF64U: 41,
}

// binaryCodes maps a binary opcode byte to its stable serialized code.
var binaryCodes = map[byte]int32{
	wasm.OpI32Eq:      1,
	wasm.OpI32Ne:      2,
	wasm.OpI32LtS:     3,
	wasm.OpI32LtU:     4,
	wasm.OpI32GtS:     5,
	wasm.OpI32GtU:     6,
	wasm.OpI32LeS:     7,
	wasm.OpI32LeU:     8,
	wasm.OpI32GeS:     9,
	wasm.OpI32GeU:     10,
	wasm.OpI64Eq:      11,
	wasm.OpI64Ne:      12,
	wasm.OpI64LtS:     13,
	wasm.OpI64LtU:     14,
	wasm.OpI64GtS:     15,
	wasm.OpI64GtU:     16,
	wasm.OpI64LeS:     17,
	wasm.OpI64LeU:     18,
	wasm.OpI64GeS:     19,
	wasm.OpI64GeU:     20,
	wasm.OpF32Eq:      21,
	wasm.OpF32Ne:      22,
	wasm.OpF32Lt:      23,
	wasm.OpF32Gt:      24,
	wasm.OpF32Le:      25,
	wasm.OpF32Ge:      26,
	wasm.OpF64Eq:      27,
	wasm.OpF64Ne:      28,
	wasm.OpF64Lt:      29,
	wasm.OpF64Gt:      30,
	wasm.OpF64Le:      31,
	wasm.OpF64Ge:      32,
	wasm.OpI32Add:     33,
	wasm.OpI32Sub:     34,
	wasm.OpI32Mul:     35,
	wasm.OpI32DivS:    36,
	wasm.OpI32DivU:    37,
	wasm.OpI32RemS:    38,
	wasm.OpI32RemU:    39,
	wasm.OpI32And:     40,
	wasm.OpI32Or:      41,
	wasm.OpI32Xor:     42,
	wasm.OpI32Shl:     43,
	wasm.OpI32ShrS:    44,
	wasm.OpI32ShrU:    45,
	wasm.OpI32Rotl:    46,
	wasm.OpI32Rotr:    47,
	wasm.OpI64Add:     48,
	wasm.OpI64Sub:     49,
	wasm.OpI64Mul:     50,
	wasm.OpI64DivS:    51,
	wasm.OpI64DivU:    52,
	wasm.OpI64RemS:    53,
	wasm.OpI64RemU:    54,
	wasm.OpI64And:     55,
	wasm.OpI64Or:      56,
	wasm.OpI64Xor:     57,
	wasm.OpI64Shl:     58,
	wasm.OpI64ShrS:    59,
	wasm.OpI64ShrU:    60,
	wasm.OpI64Rotl:    61,
	wasm.OpI64Rotr:    62,
	wasm.OpF32Add:      63,
	wasm.OpF32Sub:      64,
	wasm.OpF32Mul:      65,
	wasm.OpF32Div:      66,
	wasm.OpF32Min:      67,
	wasm.OpF32Max:      68,
	wasm.OpF32Copysign: 69,
	wasm.OpF64Add:      70,
	wasm.OpF64Sub:      71,
	wasm.OpF64Mul:      72,
	wasm.OpF64Div:      73,
	wasm.OpF64Min:      74,
	wasm.OpF64Max:      75,
	wasm.OpF64Copysign: 76,
}

// Unary returns the stable serialized code for a unary instruction,
// resolving the 0xFC-prefixed saturating-truncation sub-opcodes via
// instr.Imm when instr.Opcode is OpPrefixMisc.
func Unary(instr wasm.Instruction) (int32, bool) {
	if instr.Opcode == wasm.OpPrefixMisc {
		if imm, ok := instr.Imm.(wasm.MiscImm); ok {
			code, found := unarySatCodes[imm.SubOpcode]
			return code, found
		}
		return 0, false
	}
	code, found := unaryCodes[instr.Opcode]
	return code, found
}

// Binary returns the stable serialized code for a binary instruction.
func Binary(instr wasm.Instruction) (int32, bool) {
	code, found := binaryCodes[instr.Opcode]
	return code, found
}

// Nullary returns the stable serialized code for an instruction that
// consumes no stack operand (memory.size on memory 0).
func Nullary(instr wasm.Instruction) (int32, bool) {
	code, found := nullaryCodes[instr.Opcode]
	return code, found
}

// IsUnary reports whether opcode is one this package assigns a unary code
// to (including saturating-truncation sub-opcodes, checked separately via
// Unary on the full instruction).
func IsUnary(op byte) bool {
	_, found := unaryCodes[op]
	return found || op == wasm.OpPrefixMisc
}

// IsBinary reports whether opcode is one this package assigns a binary
// code to.
func IsBinary(op byte) bool {
	_, found := binaryCodes[op]
	return found
}

// IsNullary reports whether opcode is one this package assigns a nullary
// code to.
func IsNullary(op byte) bool {
	_, found := nullaryCodes[op]
	return found
}
