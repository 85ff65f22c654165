// Package opcode is the single authoritative UnaryOp/BinaryOp to int32
// mapping. The rewriter imports it to push a code before calling a
// unary/binary trap. The analysis emitter and the backends do not import
// it: a generated trap receives the code as a plain i32 "opcode"
// parameter and does not decode it.
package opcode
