package wasmtest

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/aaronmunsters/wastrumentation/wasm"
)

// Instance wraps a compiled, instantiated module under test.
type Instance struct {
	runtime wazero.Runtime
	module  api.Module
	ctx     context.Context
}

// Instantiate compiles and instantiates m, registering one no-op host
// function per surviving import so a linked module (whose passthrough
// imports are meant for whatever embedder the real deployment has) can
// still run to completion in a test. Every stub returns zero values
// shaped by the import's declared result arity.
func Instantiate(ctx context.Context, m *wasm.Module) (*Instance, error) {
	rt := wazero.NewRuntime(ctx)
	if err := stubImports(ctx, rt, m); err != nil {
		rt.Close(ctx)
		return nil, err
	}

	compiled, err := rt.CompileModule(ctx, m.Encode())
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("wasmtest: compile: %w", err)
	}
	inst, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("wasmtest: instantiate: %w", err)
	}
	return &Instance{runtime: rt, module: inst, ctx: ctx}, nil
}

// Close releases the underlying wazero runtime.
func (i *Instance) Close() error { return i.runtime.Close(i.ctx) }

// Call invokes the exported function name with args and returns its raw
// results.
func (i *Instance) Call(name string, args ...uint64) ([]uint64, error) {
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("wasmtest: no exported function %q", name)
	}
	return fn.Call(i.ctx, args...)
}

// Memory returns the instance's first exported memory, or nil if it has
// none.
func (i *Instance) Memory() api.Memory { return i.module.Memory() }

// funcImport pairs an import's position in m.Imports with its ordinal
// among func-kind imports (the numbering GetFuncType expects).
type funcImport struct {
	importIdx int
	funcIdx   uint32
}

func stubImports(ctx context.Context, rt wazero.Runtime, m *wasm.Module) error {
	byModule := map[string][]funcImport{}
	funcIdx := uint32(0)
	for i, imp := range m.Imports {
		if imp.Desc.Kind != wasm.KindFunc {
			continue
		}
		byModule[imp.Module] = append(byModule[imp.Module], funcImport{importIdx: i, funcIdx: funcIdx})
		funcIdx++
	}

	for modName, entries := range byModule {
		b := rt.NewHostModuleBuilder(modName)
		for _, e := range entries {
			ft := m.GetFuncType(e.funcIdx)
			if ft == nil {
				return fmt.Errorf("wasmtest: import %d has no resolvable type", e.funcIdx)
			}
			params := valTypesToAPI(ft.Params)
			results := valTypesToAPI(ft.Results)
			b.NewFunctionBuilder().
				WithGoModuleFunction(stubFunc(len(results)), params, results).
				Export(m.Imports[e.importIdx].Name)
		}
		if _, err := b.Instantiate(ctx); err != nil {
			return fmt.Errorf("wasmtest: stub module %q: %w", modName, err)
		}
	}
	return nil
}

func stubFunc(numResults int) api.GoModuleFunc {
	return func(_ context.Context, _ api.Module, stack []uint64) {
		for i := 0; i < numResults; i++ {
			stack[i] = 0
		}
	}
}

func valTypesToAPI(ts []wasm.ValType) []api.ValueType {
	out := make([]api.ValueType, len(ts))
	for i, t := range ts {
		switch t {
		case wasm.ValI32:
			out[i] = api.ValueTypeI32
		case wasm.ValI64:
			out[i] = api.ValueTypeI64
		case wasm.ValF32:
			out[i] = api.ValueTypeF32
		case wasm.ValF64:
			out[i] = api.ValueTypeF64
		default:
			out[i] = api.ValueTypeI32
		}
	}
	return out
}
