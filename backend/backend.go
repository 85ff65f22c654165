package backend

import (
	"github.com/aaronmunsters/wastrumentation/config"
	"github.com/aaronmunsters/wastrumentation/dsl"
	"github.com/aaronmunsters/wastrumentation/dsl/ast"
	"github.com/aaronmunsters/wastrumentation/siglib"
)

// Backend renders the two source artifacts the pipeline hands to an
// external compiler: the signature library (spec.md §4.3) and the
// analysis module (spec.md §4.2). Implementations are closed per
// config.Language; there is no dynamic-loading or plugin mechanism.
type Backend interface {
	Language() config.Language

	// GenerateInstrumentationLib renders the shadow-frame accessor
	// routines for every core and specialization in plan.
	GenerateInstrumentationLib(plan siglib.Plan) (string, error)

	// GenerateAnalysisLib renders the analysis module satisfying the
	// analysis-interface contract for the active join points, inlining
	// global advice and every trap body from root.
	GenerateAnalysisLib(root *ast.Root, joinPoints *dsl.JoinPoints) (string, error)
}
