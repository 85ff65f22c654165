package siglib

import (
	"testing"

	"github.com/aaronmunsters/wastrumentation/sig"
)

func sigOf(rets, args []sig.WasmType) sig.Signature {
	return sig.Signature{ReturnTypes: rets, ArgumentTypes: args}
}

func TestBuildPlanDeduplicatesCoresAndSpecializations(t *testing.T) {
	s1 := sigOf([]sig.WasmType{sig.I32}, []sig.WasmType{sig.I32, sig.F64})
	s2 := sigOf([]sig.WasmType{sig.I32}, []sig.WasmType{sig.I32, sig.F64}) // same as s1
	s3 := sigOf([]sig.WasmType{sig.F64}, []sig.WasmType{sig.I64})         // different arity-shape but same (1,1)... actually (1,1) vs (1,2)

	plan := BuildPlan([]Requirement{
		{Signature: s1},
		{Signature: s2},
		{Signature: s1, Mutable: true},
		{Signature: s3},
	})

	if len(plan.Specializations) != 3 {
		t.Fatalf("expected 3 distinct specializations (s1, mut-s1, s3), got %d: %+v", len(plan.Specializations), plan.Specializations)
	}

	// s1 and s2 share a (1,2) core; s3 is (1,1) — so exactly 2 distinct cores.
	if len(plan.Cores) != 2 {
		t.Fatalf("expected 2 distinct cores, got %d: %+v", len(plan.Cores), plan.Cores)
	}
}

func TestCoreMangledName(t *testing.T) {
	c := Core{Returns: 2, Args: 3}
	if c.MangledName() != "core_ret2_arg3" {
		t.Errorf("unexpected mangled name: %s", c.MangledName())
	}
}

func TestSpecializationMangledNameMutable(t *testing.T) {
	s := Specialization{Signature: sigOf([]sig.WasmType{sig.I32}, []sig.WasmType{sig.F64}), Mutable: true}
	if s.MangledName() != "ret_i32_mut_arg_f64" {
		t.Errorf("unexpected mangled name: %s", s.MangledName())
	}
}

func TestFrameSlotsReturnsFirst(t *testing.T) {
	s := Specialization{Signature: sigOf([]sig.WasmType{sig.I32, sig.I64}, []sig.WasmType{sig.F64})}
	slots := s.FrameSlots()
	if len(slots) != 3 || slots[0] != sig.I32 || slots[1] != sig.I64 || slots[2] != sig.F64 {
		t.Errorf("unexpected frame slots: %+v", slots)
	}
}

func TestBuildPlanDeterministicOrder(t *testing.T) {
	reqs := []Requirement{
		{Signature: sigOf([]sig.WasmType{sig.F64}, nil)},
		{Signature: sigOf([]sig.WasmType{sig.I32}, nil)},
	}
	plan1 := BuildPlan(reqs)
	plan2 := BuildPlan(reqs)
	if plan1.Specializations[0].MangledName() != plan2.Specializations[0].MangledName() {
		t.Errorf("expected deterministic ordering across builds")
	}
	if plan1.Specializations[0].MangledName() != "ret_f64_arg" {
		t.Errorf("expected alphabetical sort to put ret_f64 before ret_i32, got %s", plan1.Specializations[0].MangledName())
	}
}
