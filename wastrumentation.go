package wastrumentation

import (
	"go.uber.org/zap"

	"github.com/aaronmunsters/wastrumentation/backend"
	"github.com/aaronmunsters/wastrumentation/config"
	"github.com/aaronmunsters/wastrumentation/dsl"
	"github.com/aaronmunsters/wastrumentation/errors"
	"github.com/aaronmunsters/wastrumentation/linker"
	"github.com/aaronmunsters/wastrumentation/rewriter"
	"github.com/aaronmunsters/wastrumentation/siglib"
	"github.com/aaronmunsters/wastrumentation/wasm"
)

// Compiler is the external collaborator that turns a backend's rendered
// source (Rust or AssemblyScript) into a compiled WASM binary. Wastrumenter
// never shells out to a toolchain itself; callers supply whatever
// invokes rustc/cargo or asc (the root package's tests use a fakeCompiler
// double).
type Compiler interface {
	Compile(lang config.Language, source string) ([]byte, error)
}

// Pipeline wires the five stages of spec.md §2's dependency diagram (DSL
// frontend -> signature library -> analysis emitter -> rewriter -> linker)
// behind one entry point, given a Backend and a Compiler.
type Pipeline struct {
	Backend  backend.Backend
	Compiler Compiler
}

// New returns a Pipeline using b to render sources and c to compile them.
func New(b backend.Backend, c Compiler) *Pipeline {
	return &Pipeline{Backend: b, Compiler: c}
}

// Instrument runs the full pipeline: it parses aspectSource, generates and
// compiles the signature library and analysis module, rewrites target's
// instrumented functions in place, and links all three into one composite
// module. cfg.TargetIndices (if non-nil) is interpreted in target's
// function-index space as it stands on entry, before any contract imports
// are spliced in.
func (p *Pipeline) Instrument(cfg config.Configuration, target *wasm.Module, aspectSource string) (*wasm.Module, error) {
	log := cfg.Log()

	root, jp, err := dsl.Parse(aspectSource)
	if err != nil {
		return nil, err
	}
	log.Info("parsed DSL", zap.Bool("has_specialized_apply", jp.HasSpecializedApply()), zap.Bool("has_generic_apply", jp.GenericApply))

	plan := siglib.BuildPlan(requirementsFor(jp))
	log.Info("generated signature library", zap.Int("cores", len(plan.Cores)), zap.Int("specializations", len(plan.Specializations)))

	siglibModule, err := p.compileLib(cfg, func() (string, error) { return p.Backend.GenerateInstrumentationLib(plan) })
	if err != nil {
		return nil, err
	}

	analysisModule, err := p.compileLib(cfg, func() (string, error) { return p.Backend.GenerateAnalysisLib(root, jp) })
	if err != nil {
		return nil, err
	}

	targets := selectTargets(target, cfg)
	preImported := uint32(target.NumImportedFuncs())
	contract := rewriter.BuildContract(target, jp)
	postImported := uint32(target.NumImportedFuncs())
	delta := postImported - preImported
	for i, idx := range targets {
		if idx >= preImported {
			targets[i] = idx + delta
		}
	}

	rw := rewriter.New(target, jp, contract, log)
	if err := rw.InstrumentFunctions(targets); err != nil {
		return nil, err
	}
	log.Info("rewrote N functions", zap.Int("n", len(targets)))

	out, err := linker.Link(linker.Config{PrimarySelection: linkerPrimary(cfg.PrimarySelection)}, linker.Inputs{
		Target:              target,
		Analysis:            analysisModule,
		Siglib:              siglibModule,
		SpecializedBindings: rw.SpecializedBindings,
	})
	if err != nil {
		return nil, err
	}
	log.Info("linked module", zap.Int("funcs", len(out.Funcs)), zap.Int("exports", len(out.Exports)))
	return out, nil
}

// compileLib renders source with generate, hands it to p.Compiler, and
// decodes the resulting binary back into a wasm.Module.
func (p *Pipeline) compileLib(cfg config.Configuration, generate func() (string, error)) (*wasm.Module, error) {
	source, err := generate()
	if err != nil {
		return nil, err
	}
	bin, err := p.Compiler.Compile(cfg.Language, source)
	if err != nil {
		return nil, errors.CompilerError(cfg.Language.String(), err.Error())
	}
	return wasm.ParseModule(bin)
}

// selectTargets returns every non-imported function index of m that
// cfg.ShouldInstrument selects, in ascending order.
func selectTargets(m *wasm.Module, cfg config.Configuration) []uint32 {
	numImported := uint32(m.NumImportedFuncs())
	total := numImported + uint32(len(m.Code))
	var out []uint32
	for idx := numImported; idx < total; idx++ {
		if cfg.ShouldInstrument(idx) {
			out = append(out, idx)
		}
	}
	return out
}

// requirementsFor derives the signature-library requirements every
// specialized apply join point needs shadow-frame accessors for.
func requirementsFor(jp *dsl.JoinPoints) []siglib.Requirement {
	applies := jp.SpecializedApplies()
	reqs := make([]siglib.Requirement, len(applies))
	for i, a := range applies {
		reqs[i] = siglib.Requirement{Signature: a.Signature, Mutable: a.Mutable}
	}
	return reqs
}

func linkerPrimary(p config.PrimarySelection) linker.PrimarySelection {
	if p == config.Analysis {
		return linker.PrimaryAnalysis
	}
	return linker.PrimaryTarget
}
