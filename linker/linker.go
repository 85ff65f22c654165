package linker

import (
	"strings"

	"go.uber.org/zap"

	"github.com/aaronmunsters/wastrumentation/backend"
	"github.com/aaronmunsters/wastrumentation/errors"
	"github.com/aaronmunsters/wastrumentation/wasm"
)

// PrimarySelection chooses which input module's export section surfaces,
// bit-exact, on the composite binary (spec.md §4.6).
type PrimarySelection int

const (
	PrimaryTarget PrimarySelection = iota
	PrimaryAnalysis
)

// Config controls how Link composes its inputs.
type Config struct {
	PrimarySelection PrimarySelection
}

// Inputs names the three modules Link composes, plus the call-site
// bindings the rewriter recorded while splicing the target (see
// rewriter.Rewriter.SpecializedBindings).
type Inputs struct {
	Target   *wasm.Module
	Analysis *wasm.Module
	Siglib   *wasm.Module

	// SpecializedBindings maps a mutable specialized apply's mangled
	// signature name to the pre-instrumentation function index (in
	// Target's own numbering) its call_base_<mangled> import resolves
	// against.
	SpecializedBindings map[string]uint32
}

// Link composes in.Target, in.Analysis, and in.Siglib into one module per
// spec.md §4.6's three wiring rules, selecting cfg.PrimarySelection's
// exports for the result.
func Link(cfg Config, in Inputs) (*wasm.Module, error) {
	mods := []namedModule{
		{"target", in.Target},
		{"analysis", in.Analysis},
		{"siglib", in.Siglib},
	}

	spaces := make([]*space, len(mods))
	for i, m := range mods {
		spaces[i] = newSpace(m.name, m.module)
	}
	target, analysis, siglib := spaces[0], spaces[1], spaces[2]

	if err := resolveFuncImports(target, analysis, siglib, in.SpecializedBindings); err != nil {
		return nil, err
	}
	assignLocalBases(spaces)
	if err := finishFuncSpace(spaces); err != nil {
		return nil, err
	}
	assignTypeBases(spaces)
	assignGlobalSpace(spaces)
	assignTableSpace(spaces)
	assignMemorySpace(spaces)

	out := &wasm.Module{}
	for _, s := range spaces {
		appendTypes(out, s)
	}
	for _, s := range spaces {
		appendImports(out, s)
	}
	for _, s := range spaces {
		appendFuncsAndCode(out, s)
	}
	for _, s := range spaces {
		appendTables(out, s)
	}
	for _, s := range spaces {
		appendMemories(out, s)
	}
	for _, s := range spaces {
		appendGlobals(out, s)
	}
	for _, s := range spaces {
		appendElements(out, s)
	}
	for _, s := range spaces {
		appendData(out, s)
	}
	for _, s := range spaces {
		appendTags(out, s)
	}

	primary := target
	if cfg.PrimarySelection == PrimaryAnalysis {
		primary = analysis
	}
	out.Exports = remapExports(primary)
	out.Start = remapStart(primary)
	if len(out.Data) > 0 {
		n := uint32(len(out.Data))
		out.DataCount = &n
	}

	Logger().Debug("linked module",
		zap.Int("types", len(out.Types)),
		zap.Int("imports", len(out.Imports)),
		zap.Int("funcs", len(out.Funcs)),
		zap.Int("exports", len(out.Exports)),
	)
	return out, nil
}

type namedModule struct {
	name   string
	module *wasm.Module
}

// space tracks where one input module's indices land in the composite's
// flat index spaces. Every xRemap maps an index in the module's OWN
// numbering (imports numbered first, then locals, as the WASM binary
// format already requires) to its index in the composite.
type space struct {
	name   string
	module *wasm.Module

	numImportedFuncs uint32
	funcRemap        []uint32 // len == numImportedFuncs+len(Code)
	localFuncBase    uint32

	typeRemap []uint32 // len == len(Types)

	numImportedGlobals uint32
	globalRemap        []uint32
	localGlobalBase    uint32

	numImportedTables uint32
	tableRemap        []uint32
	localTableBase    uint32

	numImportedMems uint32
	memRemap        []uint32
	localMemBase    uint32

	// passFuncImports holds this module's imports that survive into the
	// composite's own Import section, in declaration order.
	passFuncImports []wasm.Import

	// pendingPass holds, for each passthrough func import, its own index
	// (import-numbered), to be assigned a composite slot once every
	// module's passthrough count is known (assignLocalBases).
	pendingPass []uint32
	// pendingInternal holds func imports resolved against another
	// module's export, deferred until that module's local func base is
	// known (finishFuncSpace).
	pendingInternal []pendingResolve
	// pendingBound holds call_base_<mangled> imports resolved directly
	// against a target function index via the rewriter's bindings.
	pendingBound []pendingBind
}

func newSpace(name string, m *wasm.Module) *space {
	s := &space{name: name, module: m}
	for _, imp := range m.Imports {
		switch imp.Desc.Kind {
		case wasm.KindFunc:
			s.numImportedFuncs++
		case wasm.KindGlobal:
			s.numImportedGlobals++
		case wasm.KindTable:
			s.numImportedTables++
		case wasm.KindMemory:
			s.numImportedMems++
		}
	}
	s.funcRemap = make([]uint32, int(s.numImportedFuncs)+len(m.Code))
	s.typeRemap = make([]uint32, len(m.Types))
	s.globalRemap = make([]uint32, int(s.numImportedGlobals)+len(m.Globals))
	s.tableRemap = make([]uint32, int(s.numImportedTables)+len(m.Tables))
	s.memRemap = make([]uint32, int(s.numImportedMems)+len(m.Memories))
	return s
}

// resolveFuncImports classifies every function import of target and
// analysis as either "resolved internally" (spec.md §4.6's wiring
// rules) or passthrough (forwarded to the composite's own Import
// section, for the host to supply), and records enough to resolve the
// internal ones once all three modules' local function bases are known.
func resolveFuncImports(target, analysis, siglib *space, bindings map[string]uint32) error {
	funcIdx := uint32(0)
	for _, imp := range target.module.Imports {
		if imp.Desc.Kind != wasm.KindFunc {
			continue
		}
		cur := funcIdx
		funcIdx++
		if imp.Module == backend.AnalysisImportModule {
			target.pendingInternal = append(target.pendingInternal, pendingResolve{localIdx: cur, trapName: imp.Name, resolveAgainst: analysis})
			continue
		}
		target.passFuncImports = append(target.passFuncImports, imp)
		target.funcRemap[cur] = pendingPassSlot
		target.pendingPass = append(target.pendingPass, cur)
	}

	funcIdx = 0
	for _, imp := range analysis.module.Imports {
		if imp.Desc.Kind != wasm.KindFunc {
			continue
		}
		cur := funcIdx
		funcIdx++
		switch {
		case imp.Module == backend.CallBaseImportModule:
			mangled := strings.TrimPrefix(imp.Name, "call_base_")
			if imp.Name == "call_base" {
				return errors.LinkError("call_base")
			}
			origIdx, ok := bindings[mangled]
			if !ok {
				return errors.LinkError(imp.Name)
			}
			analysis.pendingBound = append(analysis.pendingBound, pendingBind{localIdx: cur, targetFuncIdx: origIdx})
		case siglibExportedFunc(siglib.module, imp.Name):
			analysis.pendingInternal = append(analysis.pendingInternal, pendingResolve{localIdx: cur, trapName: imp.Name, resolveAgainst: siglib})
		default:
			analysis.passFuncImports = append(analysis.passFuncImports, imp)
			analysis.funcRemap[cur] = pendingPassSlot
			analysis.pendingPass = append(analysis.pendingPass, cur)
		}
	}

	funcIdx = 0
	for _, imp := range siglib.module.Imports {
		if imp.Desc.Kind != wasm.KindFunc {
			continue
		}
		cur := funcIdx
		funcIdx++
		siglib.passFuncImports = append(siglib.passFuncImports, imp)
		siglib.funcRemap[cur] = pendingPassSlot
		siglib.pendingPass = append(siglib.pendingPass, cur)
	}
	return nil
}

func siglibExportedFunc(m *wasm.Module, name string) bool {
	for _, exp := range m.Exports {
		if exp.Kind == wasm.KindFunc && exp.Name == name {
			return true
		}
	}
	return false
}

const pendingPassSlot = ^uint32(0)

type pendingResolve struct {
	localIdx       uint32
	trapName       string
	resolveAgainst *space
}

type pendingBind struct {
	localIdx      uint32
	targetFuncIdx uint32 // in target's own numbering
}

// assignLocalBases lays out the composite function index space:
// every passthrough import first (target's, then analysis's, then
// siglib's), then each module's own locally defined functions in the
// same target/analysis/siglib order.
func assignLocalBases(spaces []*space) {
	next := uint32(0)
	for _, s := range spaces {
		for _, idx := range s.pendingPass {
			s.funcRemap[idx] = next
			next++
		}
	}
	for _, s := range spaces {
		s.localFuncBase = next
		for i := range s.module.Code {
			s.funcRemap[int(s.numImportedFuncs)+i] = next
			next++
		}
	}
}

// finishFuncSpace resolves every import deferred by resolveFuncImports
// now that every module's local function base is known.
func finishFuncSpace(spaces []*space) error {
	for _, s := range spaces {
		for _, p := range s.pendingInternal {
			exportIdx, ok := exportFuncIdx(p.resolveAgainst.module, p.trapName)
			if !ok {
				return errors.LinkError(p.trapName)
			}
			if exportIdx < p.resolveAgainst.numImportedFuncs {
				return errors.LinkError(p.trapName)
			}
			s.funcRemap[p.localIdx] = p.resolveAgainst.localFuncBase + (exportIdx - p.resolveAgainst.numImportedFuncs)
		}
		for _, p := range s.pendingBound {
			target := spaces[0] // target is always spaces[0]
			s.funcRemap[p.localIdx] = target.remapFunc(p.targetFuncIdx)
		}
	}
	return nil
}

func exportFuncIdx(m *wasm.Module, name string) (uint32, bool) {
	for _, exp := range m.Exports {
		if exp.Kind == wasm.KindFunc && exp.Name == name {
			return exp.Idx, true
		}
	}
	return 0, false
}

func (s *space) remapFunc(idx uint32) uint32 { return s.funcRemap[idx] }

func assignTypeBases(spaces []*space) {
	next := uint32(0)
	for _, s := range spaces {
		for i := range s.module.Types {
			s.typeRemap[i] = next
			next++
		}
	}
}

// assignGlobalSpace, assignTableSpace, assignMemorySpace lay out their
// index spaces the simple way: every import is passthrough (no
// instrumentation contract wires a non-function import across modules),
// concatenated target/analysis/siglib, then every module's own locals in
// the same order.
func assignGlobalSpace(spaces []*space) {
	next := uint32(0)
	for _, s := range spaces {
		for i := uint32(0); i < s.numImportedGlobals; i++ {
			s.globalRemap[i] = next
			next++
		}
	}
	for _, s := range spaces {
		s.localGlobalBase = next
		for i := range s.module.Globals {
			s.globalRemap[int(s.numImportedGlobals)+i] = next
			next++
		}
	}
}

func assignTableSpace(spaces []*space) {
	next := uint32(0)
	for _, s := range spaces {
		for i := uint32(0); i < s.numImportedTables; i++ {
			s.tableRemap[i] = next
			next++
		}
	}
	for _, s := range spaces {
		s.localTableBase = next
		for i := range s.module.Tables {
			s.tableRemap[int(s.numImportedTables)+i] = next
			next++
		}
	}
}

func assignMemorySpace(spaces []*space) {
	next := uint32(0)
	for _, s := range spaces {
		for i := uint32(0); i < s.numImportedMems; i++ {
			s.memRemap[i] = next
			next++
		}
	}
	for _, s := range spaces {
		s.localMemBase = next
		for i := range s.module.Memories {
			s.memRemap[int(s.numImportedMems)+i] = next
			next++
		}
	}
}

func appendTypes(out *wasm.Module, s *space) {
	for _, t := range s.module.Types {
		out.Types = append(out.Types, t)
	}
}

func appendImports(out *wasm.Module, s *space) {
	for _, imp := range s.passFuncImports {
		imp.Desc.TypeIdx = s.typeRemap[imp.Desc.TypeIdx]
		out.Imports = append(out.Imports, imp)
	}
	for _, imp := range s.module.Imports {
		if imp.Desc.Kind == wasm.KindFunc {
			continue
		}
		out.Imports = append(out.Imports, imp)
	}
}

func appendFuncsAndCode(out *wasm.Module, s *space) {
	for _, typeIdx := range s.module.Funcs {
		out.Funcs = append(out.Funcs, s.typeRemap[typeIdx])
	}
	for _, body := range s.module.Code {
		instrs, err := wasm.DecodeInstructions(body.Code)
		if err != nil {
			out.Code = append(out.Code, body)
			continue
		}
		remapInstrs(instrs, s)
		out.Code = append(out.Code, wasm.FuncBody{
			Locals: body.Locals,
			Code:   wasm.EncodeInstructions(instrs),
		})
	}
}

// remapInstrs rewrites every cross-space reference a function body,
// global initializer, or element/data offset expression can carry, using
// s's own index-space placement.
func remapInstrs(instrs []wasm.Instruction, s *space) {
	for i := range instrs {
		switch imm := instrs[i].Imm.(type) {
		case wasm.CallImm:
			imm.FuncIdx = s.funcRemap[imm.FuncIdx]
			instrs[i].Imm = imm
		case wasm.RefFuncImm:
			imm.FuncIdx = s.funcRemap[imm.FuncIdx]
			instrs[i].Imm = imm
		case wasm.CallIndirectImm:
			imm.TypeIdx = s.typeRemap[imm.TypeIdx]
			imm.TableIdx = s.tableRemap[imm.TableIdx]
			instrs[i].Imm = imm
		case wasm.GlobalImm:
			imm.GlobalIdx = s.globalRemap[imm.GlobalIdx]
			instrs[i].Imm = imm
		case wasm.MemoryImm:
			imm.MemIdx = s.memRemap[imm.MemIdx]
			instrs[i].Imm = imm
		case wasm.MemoryIdxImm:
			imm.MemIdx = s.memRemap[imm.MemIdx]
			instrs[i].Imm = imm
		}
	}
}

func remapExpr(expr []byte, s *space) []byte {
	instrs, err := wasm.DecodeInstructions(expr)
	if err != nil {
		return expr
	}
	remapInstrs(instrs, s)
	return wasm.EncodeInstructions(instrs)
}

func appendTables(out *wasm.Module, s *space) {
	for i := range s.module.Tables {
		out.Tables = append(out.Tables, s.module.Tables[i])
	}
}

func appendMemories(out *wasm.Module, s *space) {
	out.Memories = append(out.Memories, s.module.Memories...)
}

func appendGlobals(out *wasm.Module, s *space) {
	for _, g := range s.module.Globals {
		out.Globals = append(out.Globals, wasm.Global{
			Type: g.Type,
			Init: remapExpr(g.Init, s),
		})
	}
}

func appendElements(out *wasm.Module, s *space) {
	for _, el := range s.module.Elements {
		funcIdxs := make([]uint32, len(el.FuncIdxs))
		for i, idx := range el.FuncIdxs {
			funcIdxs[i] = s.funcRemap[idx]
		}
		exprs := make([][]byte, len(el.Exprs))
		for i, e := range el.Exprs {
			exprs[i] = remapExpr(e, s)
		}
		out.Elements = append(out.Elements, wasm.Element{
			RefType:  el.RefType,
			Offset:   remapExpr(el.Offset, s),
			FuncIdxs: funcIdxs,
			Exprs:    exprs,
			Flags:    el.Flags,
			TableIdx: s.tableRemap[el.TableIdx],
			ElemKind: el.ElemKind,
			Type:     el.Type,
		})
	}
}

func appendData(out *wasm.Module, s *space) {
	for _, d := range s.module.Data {
		out.Data = append(out.Data, wasm.DataSegment{
			Offset: remapExpr(d.Offset, s),
			Init:   d.Init,
			Flags:  d.Flags,
			MemIdx: s.memRemap[d.MemIdx],
		})
	}
}

func appendTags(out *wasm.Module, s *space) {
	for _, tag := range s.module.Tags {
		out.Tags = append(out.Tags, wasm.TagType{
			Attribute: tag.Attribute,
			TypeIdx:   s.typeRemap[tag.TypeIdx],
		})
	}
}

func remapExports(s *space) []wasm.Export {
	out := make([]wasm.Export, 0, len(s.module.Exports))
	for _, exp := range s.module.Exports {
		idx := exp.Idx
		switch exp.Kind {
		case wasm.KindFunc:
			idx = s.funcRemap[idx]
		case wasm.KindGlobal:
			idx = s.globalRemap[idx]
		case wasm.KindTable:
			idx = s.tableRemap[idx]
		case wasm.KindMemory:
			idx = s.memRemap[idx]
		}
		out = append(out, wasm.Export{Name: exp.Name, Kind: exp.Kind, Idx: idx})
	}
	return out
}

func remapStart(s *space) *uint32 {
	if s.module.Start == nil {
		return nil
	}
	idx := s.funcRemap[*s.module.Start]
	return &idx
}
