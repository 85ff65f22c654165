package wasmtest

import (
	"context"
	"testing"

	"github.com/aaronmunsters/wastrumentation/wasm"
)

func TestInstantiateStubsImportsAndRunsExport(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Results: []wasm.ValType{wasm.ValI32}},
		},
		Imports: []wasm.Import{
			{Module: "env", Name: "get", Desc: wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: 0}},
		},
		Funcs: []uint32{0},
		Code: []wasm.FuncBody{
			{Code: wasm.EncodeInstructions([]wasm.Instruction{
				{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: 0}},
				{Opcode: wasm.OpEnd},
			})},
		},
		Exports: []wasm.Export{{Name: "run", Kind: wasm.KindFunc, Idx: 1}},
	}

	ctx := context.Background()
	inst, err := Instantiate(ctx, m)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close()

	results, err := inst.Call("run")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(results) != 1 || results[0] != 0 {
		t.Errorf("expected stubbed zero result, got %v", results)
	}
}
