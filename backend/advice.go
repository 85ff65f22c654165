package backend

import (
	"strings"

	"github.com/aaronmunsters/wastrumentation/dsl/ast"
)

// trapKinds maps a fixed TrapSig.Name to the ast.Kind whose advice body
// fills it. Names not present here are either imports (no advice) or
// apply traps, resolved separately by signature.
var trapKinds = map[string]ast.Kind{
	"specialized_if_then_k":          ast.KindIfThen,
	"specialized_if_then_else_k":     ast.KindIfThenElse,
	"specialized_br_if":              ast.KindBrIf,
	"specialized_br_table":           ast.KindBrTable,
	"specialized_select":             ast.KindSelect,
	"specialized_call_pre":           ast.KindCallPre,
	"specialized_call_post":          ast.KindCallPost,
	"specialized_call_indirect_pre":  ast.KindCallIndirectPre,
	"specialized_call_indirect_post": ast.KindCallIndirectPost,
	"specialized_block_pre":          ast.KindBlockPre,
	"specialized_block_post":         ast.KindBlockPost,
	"specialized_loop_pre":           ast.KindLoopPre,
	"specialized_loop_post":          ast.KindLoopPost,
}

// AdviceFor returns the user code (and formal names) bound to trap, if
// any. For apply_func_* traps it matches by mangled signature; for
// generic_apply it matches the first generic KindApply advice; for
// everything else it matches by fixed Kind.
func AdviceFor(traps []ast.Advice, trap TrapSig) (ast.Advice, bool) {
	if trap.Name == "generic_apply" {
		for _, a := range traps {
			if a.Kind == ast.KindApply && a.Apply.IsGeneric {
				return a, true
			}
		}
		return ast.Advice{}, false
	}
	if strings.HasPrefix(trap.Name, "apply_func_") {
		mangled := strings.TrimPrefix(trap.Name, "apply_func_")
		for _, a := range traps {
			if a.Kind != ast.KindApply || a.Apply.IsGeneric {
				continue
			}
			name := a.Apply.Signature().Mangle()
			if a.Apply.Mutable() {
				name = a.Apply.Signature().MangleMut()
			}
			if name == mangled {
				return a, true
			}
		}
		return ast.Advice{}, false
	}
	kind, ok := trapKinds[trap.Name]
	if !ok {
		return ast.Advice{}, false
	}
	for _, a := range traps {
		if a.Kind == kind {
			return a, true
		}
	}
	return ast.Advice{}, false
}
