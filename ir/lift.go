package ir

import (
	"github.com/aaronmunsters/wastrumentation/errors"
	"github.com/aaronmunsters/wastrumentation/wasm"
)

// frame is an entered-but-unclosed Block/Loop/If, tracked on an explicit
// stack rather than via Go call recursion (spec.md §9).
type frame struct {
	opcode        byte
	originalIndex uint32
	blockType     int32
	thenBody      []Node // populated once an Else token is seen for an If
	sawElse       bool
}

// Lift turns a function body's linear instruction stream (terminated by
// End) into a tree of Node, using the explicit two-stack algorithm of
// spec.md §4.4: frames (entered-but-unclosed Block/Loop/If) and body
// snapshots (the in-progress child list at each nesting level).
func Lift(funcIdx uint32, instrs []wasm.Instruction) ([]Node, error) {
	if len(instrs) == 0 || instrs[len(instrs)-1].Opcode != wasm.OpEnd {
		return nil, errors.BodyNonEndTermination(funcIdx)
	}

	var frames []frame
	bodies := [][]Node{{}}

	for idx := uint32(0); int(idx) < len(instrs); idx++ {
		instr := instrs[idx]

		switch instr.Opcode {
		case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
			imm, _ := instr.Imm.(wasm.BlockImm)
			frames = append(frames, frame{opcode: instr.Opcode, originalIndex: idx, blockType: imm.Type})
			bodies = append(bodies, []Node{})

		case wasm.OpElse:
			if len(frames) == 0 || frames[len(frames)-1].opcode != wasm.OpIf || frames[len(frames)-1].sawElse {
				return nil, errors.IfDidNotPrecedeElse(funcIdx, idx)
			}
			thenBody := bodies[len(bodies)-1]
			bodies = bodies[:len(bodies)-1]
			frames[len(frames)-1].thenBody = thenBody
			frames[len(frames)-1].sawElse = true
			bodies = append(bodies, []Node{})

		case wasm.OpEnd:
			if len(frames) == 0 {
				// The function body's own terminating End.
				if int(idx) != len(instrs)-1 {
					return nil, errors.ExcessiveEnd(funcIdx, idx)
				}
				return bodies[0], nil
			}
			f := frames[len(frames)-1]
			frames = frames[:len(frames)-1]
			closedBody := bodies[len(bodies)-1]
			bodies = bodies[:len(bodies)-1]
			if len(bodies) == 0 {
				return nil, errors.EndWithoutParent(funcIdx, idx)
			}

			var node Node
			switch f.opcode {
			case wasm.OpBlock:
				node = &Block{OriginalIndex: f.originalIndex, BlockType: f.blockType, Body: closedBody}
			case wasm.OpLoop:
				node = &Loop{OriginalIndex: f.originalIndex, BlockType: f.blockType, Body: closedBody}
			case wasm.OpIf:
				if f.sawElse {
					node = &If{OriginalIndex: f.originalIndex, BlockType: f.blockType, Then: f.thenBody, Else: closedBody, HasElse: true}
				} else {
					node = &If{OriginalIndex: f.originalIndex, BlockType: f.blockType, Then: closedBody, HasElse: false}
				}
			}
			bodies[len(bodies)-1] = append(bodies[len(bodies)-1], node)

		default:
			bodies[len(bodies)-1] = append(bodies[len(bodies)-1], &TypedInstr{OriginalIndex: idx, Instr: instr})
		}
	}

	// Unreachable unless the loop above already returned at the
	// function-terminating End (guaranteed since instrs ends in OpEnd).
	return nil, errors.ExcessiveEnd(funcIdx, uint32(len(instrs)-1))
}
