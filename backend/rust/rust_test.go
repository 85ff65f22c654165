package rust

import (
	"strings"
	"testing"

	"github.com/aaronmunsters/wastrumentation/config"
	"github.com/aaronmunsters/wastrumentation/dsl"
	"github.com/aaronmunsters/wastrumentation/sig"
	"github.com/aaronmunsters/wastrumentation/siglib"
)

func TestLanguage(t *testing.T) {
	if New().Language() != config.Rust {
		t.Fatalf("expected config.Rust")
	}
}

func TestGenerateInstrumentationLib(t *testing.T) {
	plan := siglib.BuildPlan([]siglib.Requirement{
		{Signature: sig.Signature{ReturnTypes: []sig.WasmType{sig.I32}, ArgumentTypes: []sig.WasmType{sig.I32, sig.F64}}},
	})

	out, err := New().GenerateInstrumentationLib(plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mangled := plan.Specializations[0].MangledName()
	for _, want := range []string{
		"fn core_ret1_arg2_allocate",
		"fn allocate_" + mangled,
		"fn load_arg0_" + mangled,
		"fn load_arg1_" + mangled,
		"fn load_ret0_" + mangled,
		"fn store_rets_" + mangled,
		"fn free_values_" + mangled,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n--- output ---\n%s", want, out)
		}
	}
}

func TestGenerateAnalysisLibFixedTrap(t *testing.T) {
	src := `(aspect (advice br_if (cond label) >>>GUEST>>>if cond == 0 { return 0; }<<<GUEST<<<))`
	root, jp, err := dsl.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	out, err := New().GenerateAnalysisLib(root, jp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(out, `pub extern "C" fn specialized_br_if(`) {
		t.Errorf("missing specialized_br_if export:\n%s", out)
	}
	if !strings.Contains(out, "let cond = k;") || !strings.Contains(out, "let label = low_level_label;") {
		t.Errorf("missing formal bindings:\n%s", out)
	}
	if !strings.Contains(out, "if cond == 0 { return 0; }") {
		t.Errorf("advice body not inlined:\n%s", out)
	}
	if !strings.Contains(out, "return k;") {
		t.Errorf("missing fallback return:\n%s", out)
	}
}

func TestGenerateAnalysisLibGlobalsAndCallBaseImport(t *testing.T) {
	src := `(aspect
		(global >>>GUEST>>>static mut COUNT: i32 = 0;<<<GUEST<<<)
		(advice apply (f (a MutDynArgs) (r MutDynResults)) >>>GUEST>>>unsafe { COUNT += 1; } f.apply()<<<GUEST<<<))`
	root, jp, err := dsl.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	out, err := New().GenerateAnalysisLib(root, jp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(out, "static mut COUNT: i32 = 0;") {
		t.Errorf("global not emitted:\n%s", out)
	}
	if !strings.Contains(out, `pub extern "C" fn generic_apply(`) {
		t.Errorf("missing generic_apply export:\n%s", out)
	}
	if !strings.Contains(out, "fn call_base();") {
		t.Errorf("missing call_base import:\n%s", out)
	}
}

func TestGenerateAnalysisLibApplyFuncBySignature(t *testing.T) {
	src := `(aspect (advice apply (f ((a I32)) ((r I32))) >>>GUEST>>>return f.apply(a * 2);<<<GUEST<<<))`
	root, jp, err := dsl.Parse(src)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	out, err := New().GenerateAnalysisLib(root, jp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "let a = a0;") {
		t.Errorf("missing apply arg binding:\n%s", out)
	}
	if !strings.Contains(out, "return f.apply(a * 2);") {
		t.Errorf("apply advice not matched by signature:\n%s", out)
	}
	specs := jp.SpecializedApplies()
	if len(specs) != 1 {
		t.Fatalf("expected one specialized apply, got %d", len(specs))
	}
	if !strings.Contains(out, "apply_func_"+specs[0].MangledName()) {
		t.Errorf("expected apply_func_%s export:\n%s", specs[0].MangledName(), out)
	}
}
