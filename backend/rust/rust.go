package rust

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

// Backend renders Rust source for the signature library and the analysis
// module.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (*Backend) Language() config.Language { return config.Rust }

func rustType(t sig.WasmType) string {
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
		return "i32" // funcref/externref travel as opaque table indices
	}
}

// rustStackPrimitives is the bump-allocated arena backing every shadow frame a
// specialization's accessors read and write. Slots are a fixed 8 bytes
// wide (enough for any of i32/f32/i64/f64) regardless of the value
// actually stored, so a frame's byte offset is always slot_index * 8.
// Release rewinds the bump pointer, since frames are allocated and freed
// in strict call/return nesting.
const rustStackPrimitives = `
const WASTRUMENTATION_STACK_SIZE: usize = 1 << 20;
static mut WASTRUMENTATION_STACK_MEM: [u8; WASTRUMENTATION_STACK_SIZE] = [0; WASTRUMENTATION_STACK_SIZE];
static mut WASTRUMENTATION_STACK_TOP: i32 = 0;

#[no_mangle]
pub extern "C" fn wastrumentation_stack_bump(n_slots: i32) -> i32 {
    unsafe {
        let ptr = WASTRUMENTATION_STACK_TOP;
        WASTRUMENTATION_STACK_TOP += n_slots * 8;
        ptr
    }
}

#[no_mangle]
pub extern "C" fn wastrumentation_stack_release(ptr: i32, _n_slots: i32) {
    unsafe { WASTRUMENTATION_STACK_TOP = ptr; }
}
`

func rustStackAccessor(ty string) string {
	return fmt.Sprintf(`
#[no_mangle]
pub extern "C" fn wastrumentation_stack_load_%[1]s(ptr: i32, slot: i32) -> %[1]s {
    unsafe { *(WASTRUMENTATION_STACK_MEM.as_ptr().add((ptr + slot * 8) as usize) as *const %[1]s) }
}

#[no_mangle]
pub extern "C" fn wastrumentation_stack_store_%[1]s(ptr: i32, slot: i32, v: %[1]s) {
    unsafe { *(WASTRUMENTATION_STACK_MEM.as_mut_ptr().add((ptr + slot * 8) as usize) as *mut %[1]s) = v; }
}
`, ty)
}

// GenerateInstrumentationLib renders the shadow-frame arena plus a private
// bump-allocated core per (returns, arguments) arity and the typed
// exported accessor set per specialization, per spec.md §4.3.
func (*Backend) GenerateInstrumentationLib(plan siglib.Plan) (string, error) {
	var b strings.Builder
	b.WriteString("// Generated shadow-frame accessors.\n")
	b.WriteString(rustStackPrimitives)
	for _, ty := range []string{"i32", "i64", "f32", "f64"} {
		b.WriteString(rustStackAccessor(ty))
	}
	b.WriteString("\n")

	for _, core := range plan.Cores {
		n := core.Returns + core.Args
		fmt.Fprintf(&b, "fn %s_allocate(n_slots: i32) -> i32 { wastrumentation_stack_bump(n_slots) }\n", core.MangledName())
		fmt.Fprintf(&b, "fn %s_free(ptr: i32) { wastrumentation_stack_release(ptr, %d) }\n\n", core.MangledName(), n)
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
		argDecls[i] = fmt.Sprintf("a%d: %s", i, rustType(t))
	}
	fmt.Fprintf(b, "#[no_mangle]\npub extern \"C\" fn allocate_%s(%s) -> i32 {\n", mangled, strings.Join(argDecls, ", "))
	fmt.Fprintf(b, "    let ptr = %s_allocate(%d);\n", core, len(slots))
	for i, t := range args {
		fmt.Fprintf(b, "    wastrumentation_stack_store_%s(ptr, %d, a%d);\n", rustType(t), numRets+i, i)
	}
	b.WriteString("    ptr\n}\n\n")

	for j, t := range args {
		fmt.Fprintf(b, "#[no_mangle]\npub extern \"C\" fn load_arg%d_%s(ptr: i32) -> %s {\n", j, mangled, rustType(t))
		fmt.Fprintf(b, "    wastrumentation_stack_load_%s(ptr, %d)\n}\n\n", rustType(t), numRets+j)
		fmt.Fprintf(b, "#[no_mangle]\npub extern \"C\" fn store_arg%d_%s(ptr: i32, v: %s) {\n", j, mangled, rustType(t))
		fmt.Fprintf(b, "    wastrumentation_stack_store_%s(ptr, %d, v);\n}\n\n", rustType(t), numRets+j)
	}

	rets := spec.Signature.ReturnTypes
	for i, t := range rets {
		fmt.Fprintf(b, "#[no_mangle]\npub extern \"C\" fn load_ret%d_%s(ptr: i32) -> %s {\n", i, mangled, rustType(t))
		fmt.Fprintf(b, "    wastrumentation_stack_load_%s(ptr, %d)\n}\n\n", rustType(t), i)
		fmt.Fprintf(b, "#[no_mangle]\npub extern \"C\" fn store_ret%d_%s(ptr: i32, v: %s) {\n", i, mangled, rustType(t))
		fmt.Fprintf(b, "    wastrumentation_stack_store_%s(ptr, %d, v);\n}\n\n", rustType(t), i)
	}

	retDecls := make([]string, len(rets))
	for i, t := range rets {
		retDecls[i] = fmt.Sprintf("r%d: %s", i, rustType(t))
	}
	fmt.Fprintf(b, "#[no_mangle]\npub extern \"C\" fn store_rets_%s(ptr: i32%s) {\n", mangled, prefixed(retDecls))
	for i, t := range rets {
		fmt.Fprintf(b, "    wastrumentation_stack_store_%s(ptr, %d, r%d);\n", rustType(t), i, i)
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "#[no_mangle]\npub extern \"C\" fn free_values_%s(ptr: i32) { %s_free(ptr); }\n\n", mangled, core)
	fmt.Fprintf(b, "#[no_mangle]\npub extern \"C\" fn allocate_types_%s() -> i32 { wastrumentation_stack_bump(%d) }\n", mangled, len(slots))
	fmt.Fprintf(b, "#[no_mangle]\npub extern \"C\" fn free_types_%s(ptr: i32) { wastrumentation_stack_release(ptr, %d) }\n\n", mangled, len(slots))
}

func prefixed(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return ", " + strings.Join(parts, ", ")
}

// GenerateAnalysisLib renders every active trap as an extern "C" function,
// with global advice concatenated verbatim ahead of the traps, per
// spec.md §4.2.
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

	var imports []backend.TrapSig
	for _, trap := range traps {
		if trap.Import {
			imports = append(imports, trap)
			continue
		}
		writeTrap(&b, trap, advice)
	}

	if len(imports) > 0 {
		fmt.Fprintf(&b, "#[link(wasm_import_module = %q)]\n", backend.CallBaseImportModule)
		b.WriteString("extern \"C\" {\n")
		for _, imp := range imports {
			paramDecls := make([]string, len(imp.Params))
			for i, param := range imp.Params {
				paramDecls[i] = fmt.Sprintf("%s: %s", param.Name, rustType(param.Type))
			}
			ret := ""
			if len(imp.Results) == 1 {
				ret = " -> " + rustType(imp.Results[0])
			}
			fmt.Fprintf(&b, "    fn %s(%s)%s;\n", imp.Name, strings.Join(paramDecls, ", "), ret)
		}
		b.WriteString("}\n")
	}

	return b.String(), nil
}

func writeTrap(b *strings.Builder, trap backend.TrapSig, advice []ast.Advice) {
	paramDecls := make([]string, len(trap.Params))
	for i, param := range trap.Params {
		paramDecls[i] = fmt.Sprintf("%s: %s", param.Name, rustType(param.Type))
	}
	ret := ""
	if len(trap.Results) == 1 {
		ret = " -> " + rustType(trap.Results[0])
	}
	fmt.Fprintf(b, "#[no_mangle]\npub extern \"C\" fn %s(%s)%s {\n", trap.Name, strings.Join(paramDecls, ", "), ret)

	a, found := backend.AdviceFor(advice, trap)
	if found {
		b.WriteString(indent(bindingPrologue(trap, a)))
		b.WriteString(indent(a.Code))
		b.WriteString("\n")
	}
	if trap.FallbackParam != "" {
		fmt.Fprintf(b, "    return %s;\n", trap.FallbackParam)
	}
	b.WriteString("}\n\n")
}

// bindingPrologue aliases the advice's own formal names to the contract's
// fixed parameter names, since the DSL author chooses their own binding
// names (e.g. "cond", "label") while ContractTraps fixes positional names
// (e.g. "k", "low_level_label") shared across every backend.
func bindingPrologue(trap backend.TrapSig, a ast.Advice) string {
	var b strings.Builder
	if strings.HasPrefix(trap.Name, "apply_func_") {
		for i, arg := range a.Apply.Args {
			fmt.Fprintf(&b, "let %s = a%d;\n", arg.Name, i)
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
		fmt.Fprintf(&b, "let %s = %s;\n", name, userFacing[i].Name)
	}
	return b.String()
}

func indent(code string) string {
	lines := strings.Split(code, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
