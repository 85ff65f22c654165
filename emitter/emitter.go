package emitter

import (
	"go.uber.org/zap"

	"github.com/aaronmunsters/wastrumentation/backend"
	"github.com/aaronmunsters/wastrumentation/dsl"
	"github.com/aaronmunsters/wastrumentation/dsl/ast"
)

// Emitter produces the analysis module's source text for a chosen
// backend, logging which standard-library support a given set of join
// points pulls in before delegating actual rendering.
type Emitter struct {
	Backend backend.Backend
	Logger  *zap.Logger
}

// New returns an Emitter for b. A nil logger is replaced with a no-op one.
func New(b backend.Backend, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{Backend: b, Logger: logger}
}

// standardLibrary names one of the language-provided support bundles the
// original groups trap families into (spec.md §4.2 "language-provided
// standard analysis libraries"): generic-apply support, if/branch
// support, call-site support, and block/loop support. Emission of each is gated purely by
// whether its join points are active.
type standardLibrary struct {
	name   string
	active func(*dsl.JoinPoints) bool
}

var standardLibraries = []standardLibrary{
	{"generic_apply_support", func(jp *dsl.JoinPoints) bool { return jp.GenericApply || jp.HasSpecializedApply() }},
	{"branch_support", func(jp *dsl.JoinPoints) bool {
		return jp.IfThen || jp.IfThenElse || jp.BrIf || jp.BrTable || jp.Select
	}},
	{"call_support", func(jp *dsl.JoinPoints) bool {
		return jp.CallPre || jp.CallPost || jp.CallIndirectPre || jp.CallIndirectPost
	}},
	{"block_support", func(jp *dsl.JoinPoints) bool {
		return jp.BlockPre || jp.BlockPost || jp.LoopPre || jp.LoopPost
	}},
}

// Emit renders the analysis module satisfying the analysis-interface
// contract for joinPoints, using root's global and trap advice.
func (e *Emitter) Emit(root *ast.Root, joinPoints *dsl.JoinPoints) (string, error) {
	for _, lib := range standardLibraries {
		if lib.active(joinPoints) {
			e.Logger.Debug("including standard analysis library", zap.String("library", lib.name))
		}
	}

	traps := backend.ContractTraps(joinPoints)
	e.Logger.Info("generating analysis module",
		zap.String("language", e.Backend.Language().String()),
		zap.Int("traps", len(traps)),
		zap.Int("globals", len(root.Globals())),
	)

	return e.Backend.GenerateAnalysisLib(root, joinPoints)
}
