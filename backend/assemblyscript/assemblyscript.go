package assemblyscript

import (
	"fmt"
	"strings"

	"github.com/aaronmunsters/wastrumentation/backend"
	"github.com/aaronmunsters/wastrumentation/config"
	"github.com/aaronmunsters/wastrumentation/dsl"
	"github.com/aaronmunsters/wastrumentation/dsl/ast"
	"github.com/aaronmunsters/wastrumentation/sig"
	"github.com/aaronmunsters/wastrumentation/siglib"
)

// Backend renders AssemblyScript source for the signature library and the
// analysis module.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Language() config.Language { return config.AssemblyScript }

func asType(t sig.WasmType) string {
	switch t {
	case sig.I32:
		return "i32"
	case sig.F32:
		return "f32"
	case sig.I64:
		return "i64"
	case sig.F64:
		return "f64"
	default:
		return "i32"
	}
}

// asStackPrimitives is the bump-allocated arena backing every shadow
// frame a specialization's accessors read and write, mirroring the Rust
// backend's rustStackPrimitives. Slots are a fixed 8 bytes wide; release
// rewinds the bump pointer since frames nest strictly with call/return.
const asStackPrimitives = `
const WASTRUMENTATION_STACK_SIZE: i32 = 1 << 20;
const wastrumentationStackMem = new Uint8Array(WASTRUMENTATION_STACK_SIZE);
const wastrumentationStackBase: usize = wastrumentationStackMem.dataStart;
let wastrumentationStackTop: i32 = 0;

export function wastrumentation_stack_bump(nSlots: i32): i32 {
  const ptr = wastrumentationStackTop;
  wastrumentationStackTop += nSlots * 8;
  return ptr;
}

export function wastrumentation_stack_release(ptr: i32, _nSlots: i32): void {
  wastrumentationStackTop = ptr;
}
`

func asStackAccessor(ty string) string {
	return fmt.Sprintf(`
export function wastrumentation_stack_load_%[1]s(ptr: i32, slot: i32): %[1]s {
  return load<%[1]s>(wastrumentationStackBase + <usize>(ptr + slot * 8));
}

export function wastrumentation_stack_store_%[1]s(ptr: i32, slot: i32, v: %[1]s): void {
  store<%[1]s>(wastrumentationStackBase + <usize>(ptr + slot * 8), v);
}
`, ty)
}

// GenerateInstrumentationLib mirrors the Rust backend's accessor set but
// in AssemblyScript's export function syntax.
func (*Backend) GenerateInstrumentationLib(plan siglib.Plan) (string, error) {
	var b strings.Builder
	b.WriteString("// Generated shadow-frame accessors.\n")
	b.WriteString(asStackPrimitives)
	for _, ty := range []string{"i32", "i64", "f32", "f64"} {
		b.WriteString(asStackAccessor(ty))
	}
	b.WriteString("\n")

	for _, core := range plan.Cores {
		n := core.Returns + core.Args
		fmt.Fprintf(&b, "function %s_allocate(nSlots: i32): i32 { return wastrumentation_stack_bump(nSlots); }\n", core.MangledName())
		fmt.Fprintf(&b, "function %s_free(ptr: i32): void { wastrumentation_stack_release(ptr, %d); }\n\n", core.MangledName(), n)
	}

	for _, spec := range plan.Specializations {
		writeSpecialization(&b, spec)
	}

	return b.String(), nil
}

func writeSpecialization(b *strings.Builder, spec siglib.Specialization) {
	mangled := spec.MangledName()
	core := (siglib.Core{Returns: spec.Signature.NumReturns(), Args: spec.Signature.NumArgs()}).MangledName()
	slots := spec.FrameSlots()
	numRets := spec.Signature.NumReturns()

	args := spec.Signature.ArgumentTypes
	argDecls := make([]string, len(args))
	for i, t := range args {
		argDecls[i] = fmt.Sprintf("a%d: %s", i, asType(t))
	}
	fmt.Fprintf(b, "export function allocate_%s(%s): i32 {\n", mangled, strings.Join(argDecls, ", "))
	fmt.Fprintf(b, "  const ptr = %s_allocate(%d);\n", core, len(slots))
	for i, t := range args {
		fmt.Fprintf(b, "  wastrumentation_stack_store_%s(ptr, %d, a%d);\n", asType(t), numRets+i, i)
	}
	b.WriteString("  return ptr;\n}\n\n")

	for j, t := range args {
		fmt.Fprintf(b, "export function load_arg%d_%s(ptr: i32): %s {\n", j, mangled, asType(t))
		fmt.Fprintf(b, "  return wastrumentation_stack_load_%s(ptr, %d);\n}\n\n", asType(t), numRets+j)
		fmt.Fprintf(b, "export function store_arg%d_%s(ptr: i32, v: %s): void {\n", j, mangled, asType(t))
		fmt.Fprintf(b, "  wastrumentation_stack_store_%s(ptr, %d, v);\n}\n\n", asType(t), numRets+j)
	}

	rets := spec.Signature.ReturnTypes
	for i, t := range rets {
		fmt.Fprintf(b, "export function load_ret%d_%s(ptr: i32): %s {\n", i, mangled, asType(t))
		fmt.Fprintf(b, "  return wastrumentation_stack_load_%s(ptr, %d);\n}\n\n", asType(t), i)
		fmt.Fprintf(b, "export function store_ret%d_%s(ptr: i32, v: %s): void {\n", i, mangled, asType(t))
		fmt.Fprintf(b, "  wastrumentation_stack_store_%s(ptr, %d, v);\n}\n\n", asType(t), i)
	}

	retDecls := make([]string, len(rets))
	for i, t := range rets {
		retDecls[i] = fmt.Sprintf("r%d: %s", i, asType(t))
	}
	fmt.Fprintf(b, "export function store_rets_%s(ptr: i32%s): void {\n", mangled, prefixed(retDecls))
	for i, t := range rets {
		fmt.Fprintf(b, "  wastrumentation_stack_store_%s(ptr, %d, r%d);\n", asType(t), i, i)
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "export function free_values_%s(ptr: i32): void { %s_free(ptr); }\n\n", mangled, core)
	fmt.Fprintf(b, "export function allocate_types_%s(): i32 { return wastrumentation_stack_bump(%d); }\n", mangled, len(slots))
	fmt.Fprintf(b, "export function free_types_%s(ptr: i32): void { wastrumentation_stack_release(ptr, %d); }\n\n", mangled, len(slots))
}

func prefixed(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return ", " + strings.Join(parts, ", ")
}

// GenerateAnalysisLib mirrors the Rust backend's trap rendering in
// AssemblyScript's export/declare syntax.
func (*Backend) GenerateAnalysisLib(root *ast.Root, joinPoints *dsl.JoinPoints) (string, error) {
	var b strings.Builder
	b.WriteString("// Generated analysis module.\n\n")

	for _, g := range root.Globals() {
		b.WriteString(g)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	traps := backend.ContractTraps(joinPoints)
	advice := root.Traps()

	for _, trap := range traps {
		if trap.Import {
			paramDecls := make([]string, len(trap.Params))
			for i, param := range trap.Params {
				paramDecls[i] = fmt.Sprintf("%s: %s", param.Name, asType(param.Type))
			}
			ret := "void"
			if len(trap.Results) == 1 {
				ret = asType(trap.Results[0])
			}
			fmt.Fprintf(&b, "@external(%q, %q)\n", backend.CallBaseImportModule, trap.Name)
			fmt.Fprintf(&b, "declare function %s(%s): %s;\n", trap.Name, strings.Join(paramDecls, ", "), ret)
			continue
		}
		writeTrap(&b, trap, advice)
	}

	return b.String(), nil
}

func writeTrap(b *strings.Builder, trap backend.TrapSig, advice []ast.Advice) {
	paramDecls := make([]string, len(trap.Params))
	for i, param := range trap.Params {
		paramDecls[i] = fmt.Sprintf("%s: %s", param.Name, asType(param.Type))
	}
	ret := "void"
	if len(trap.Results) == 1 {
		ret = asType(trap.Results[0])
	}
	fmt.Fprintf(b, "export function %s(%s): %s {\n", trap.Name, strings.Join(paramDecls, ", "), ret)

	a, found := backend.AdviceFor(advice, trap)
	if found {
		b.WriteString(indent(bindingPrologue(trap, a)))
		b.WriteString(indent(a.Code))
		b.WriteString("\n")
	}
	if trap.FallbackParam != "" {
		fmt.Fprintf(b, "  return %s;\n", trap.FallbackParam)
	}
	b.WriteString("}\n\n")
}

func bindingPrologue(trap backend.TrapSig, a ast.Advice) string {
	var b strings.Builder
	if strings.HasPrefix(trap.Name, "apply_func_") {
		for i, arg := range a.Apply.Args {
			fmt.Fprintf(&b, "const %s = a%d;\n", arg.Name, i)
		}
		return b.String()
	}
	userFacing := trap.Params
	if n := len(userFacing) - 2; n >= 0 && trap.Name != "generic_apply" {
		userFacing = userFacing[:n]
	}
	for i, name := range a.Formals {
		if i >= len(userFacing) {
			break
		}
		fmt.Fprintf(&b, "const %s = %s;\n", name, userFacing[i].Name)
	}
	return b.String()
}

func indent(code string) string {
	lines := strings.Split(code, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
