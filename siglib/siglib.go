package siglib

import (
	"sort"
	"strconv"

	"github.com/aaronmunsters/wastrumentation/sig"
)

// Requirement is one signature the analysis needs shadow-frame accessors
// for, as discovered by the rewriter/emitter from the active join points
// (specialized apply signatures, and any other join point whose trap
// shares a signature with one already required).
type Requirement struct {
	Signature sig.Signature
	Mutable   bool
}

// Core is a generic shadow-frame layout shared by every signature with the
// same (returns, arguments) arity: the allocate/free/load/store routines
// that only need slot counts, not slot types.
type Core struct {
	Returns int
	Args    int
}

// MangledName is the shared suffix used by the generic (r,a) routines,
// e.g. "core_ret2_arg3".
func (c Core) MangledName() string {
	return "core_ret" + strconv.Itoa(c.Returns) + "_arg" + strconv.Itoa(c.Args)
}

// Specialization is one concrete signature (and mutability flavor) that
// needs its own typed allocate/load/store/free routines, keyed by
// sig.Signature.Mangle()/MangleMut().
type Specialization struct {
	Signature sig.Signature
	Mutable   bool
}

// MangledName is the per-signature suffix the emitted routine names carry,
// e.g. "ret_i32_arg_i32_f64" or "ret_i32_mut_arg_i32_f64".
func (s Specialization) MangledName() string {
	if s.Mutable {
		return s.Signature.MangleMut()
	}
	return s.Signature.Mangle()
}

// Plan is the de-duplicated set of cores and specializations a signature
// library must emit to satisfy every Requirement (spec.md §4.3
// "De-duplication"): each distinct (r,a) core and each distinct σ
// specialization appears at most once, sorted for deterministic output
// (spec.md §8 property 5).
type Plan struct {
	Cores           []Core
	Specializations []Specialization
}

// BuildPlan computes the de-duplicated Plan for a set of requirements.
func BuildPlan(reqs []Requirement) Plan {
	coreSeen := map[Core]bool{}
	specSeen := map[string]bool{}

	var plan Plan
	for _, r := range reqs {
		core := Core{Returns: r.Signature.NumReturns(), Args: r.Signature.NumArgs()}
		if !coreSeen[core] {
			coreSeen[core] = true
			plan.Cores = append(plan.Cores, core)
		}

		spec := Specialization{Signature: r.Signature, Mutable: r.Mutable}
		name := spec.MangledName()
		if !specSeen[name] {
			specSeen[name] = true
			plan.Specializations = append(plan.Specializations, spec)
		}
	}

	sort.Slice(plan.Cores, func(i, j int) bool { return plan.Cores[i].MangledName() < plan.Cores[j].MangledName() })
	sort.Slice(plan.Specializations, func(i, j int) bool {
		return plan.Specializations[i].MangledName() < plan.Specializations[j].MangledName()
	})
	return plan
}

// FrameSlots returns the shadow-frame slot count (r+a) and the slot-type
// sequence, returns first then arguments, per spec.md §4.3's layout.
func (s Specialization) FrameSlots() []sig.WasmType {
	slots := make([]sig.WasmType, 0, s.Signature.NumReturns()+s.Signature.NumArgs())
	slots = append(slots, s.Signature.ReturnTypes...)
	slots = append(slots, s.Signature.ArgumentTypes...)
	return slots
}

