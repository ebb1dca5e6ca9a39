// Package findbugs provides intra-procedural dataflow analyses over
// stack-machine bytecode, built from a CFG model, a generic forward dataflow
// engine, and the value-numbering analysis that assigns every produced value
// an abstract identity shared by provably equivalent computations.
//
// The typical flow: build a bytecode.Method and its cfg.Graph, run
// RunValueNumberAnalysis, then query the returned analysis for facts at
// locations of interest.
package findbugs

import (
	"github.com/huahang/findbugs/bytecode"
	"github.com/huahang/findbugs/cfg"
	"github.com/huahang/findbugs/dataflow"
	"github.com/huahang/findbugs/vna"
)

// RunValueNumberAnalysis drives value numbering over one method's CFG to
// fixpoint and returns the converged analysis together with the engine
// holding the per-block result facts.
//
// Value-number compaction is left to the caller — run it once, after every
// consumer that wants the uncompacted numbering has finished:
//
//	analysis, df, err := findbugs.RunValueNumberAnalysis(method, graph)
//	if err != nil { ... }
//	if err := analysis.CompactValueNumbers(df); err != nil { ... }
//
// An error means this method's analysis failed (malformed CFG, diverging
// fixpoint); other methods are unaffected.
func RunValueNumberAnalysis(method bytecode.Method, graph *cfg.Graph, opts ...vna.Option) (*vna.Analysis, *dataflow.Dataflow[*vna.Frame], error) {
	analysis := vna.NewAnalysis(method, opts...)
	df := dataflow.New[*vna.Frame](graph, analysis)
	if err := df.Execute(); err != nil {
		return nil, nil, err
	}
	return analysis, df, nil
}
