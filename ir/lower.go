package ir

import "github.com/aaronmunsters/wastrumentation/wasm"

// Lower re-emits a lifted tree as a linear instruction stream, the
// inverse of Lift: lower(lift(B)) = B (spec.md §8 property 1).
func Lower(nodes []Node) []wasm.Instruction {
	out := lowerSeq(nodes)
	out = append(out, wasm.Instruction{Opcode: wasm.OpEnd})
	return out
}

func lowerSeq(nodes []Node) []wasm.Instruction {
	var out []wasm.Instruction
	for _, n := range nodes {
		out = append(out, lowerNode(n)...)
	}
	return out
}

func lowerNode(n Node) []wasm.Instruction {
	switch v := n.(type) {
	case *TypedInstr:
		return []wasm.Instruction{v.Instr}

	case *Block:
		out := []wasm.Instruction{{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: v.BlockType}}}
		out = append(out, lowerSeq(v.Body)...)
		out = append(out, wasm.Instruction{Opcode: wasm.OpEnd})
		return out

	case *Loop:
		out := []wasm.Instruction{{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: v.BlockType}}}
		out = append(out, lowerSeq(v.Body)...)
		out = append(out, wasm.Instruction{Opcode: wasm.OpEnd})
		return out

	case *If:
		out := []wasm.Instruction{{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: v.BlockType}}}
		out = append(out, lowerSeq(v.Then)...)
		if v.HasElse {
			out = append(out, wasm.Instruction{Opcode: wasm.OpElse})
			out = append(out, lowerSeq(v.Else)...)
		}
		out = append(out, wasm.Instruction{Opcode: wasm.OpEnd})
		return out

	default:
		return nil
	}
}
