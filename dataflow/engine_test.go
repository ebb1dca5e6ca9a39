package dataflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huahang/findbugs/bytecode"
	"github.com/huahang/findbugs/cfg"
	"github.com/huahang/findbugs/dataflow"
)

// reachFact is the smallest useful lattice: "can control reach this block".
type reachFact struct {
	reached bool
}

type reachAnalysis struct{}

var _ dataflow.Analysis[*reachFact] = reachAnalysis{}

func (reachAnalysis) CreateFact() *reachFact        { return &reachFact{} }
func (reachAnalysis) InitEntryFact(f *reachFact)    { f.reached = true }
func (reachAnalysis) MakeFactTop(f *reachFact)      { f.reached = false }
func (reachAnalysis) Copy(src, dst *reachFact)      { dst.reached = src.reached }
func (reachAnalysis) Same(a, b *reachFact) bool     { return a.reached == b.reached }
func (reachAnalysis) IsFactValid(f *reachFact) bool { return f.reached }

func (reachAnalysis) TransferInstruction(cfg.Location, bytecode.Instruction, *reachFact) error {
	return nil
}

func (reachAnalysis) MeetInto(fact *reachFact, _ cfg.Edge, result *reachFact) error {
	result.reached = result.reached || fact.reached
	return nil
}

func diamond() (*cfg.Graph, []*cfg.Block) {
	g := cfg.NewGraph()
	entry := g.NewBlock()
	left := g.NewBlock()
	right := g.NewBlock()
	merge := g.NewBlock()
	g.AddEdge(entry, left, cfg.EdgeBranch)
	g.AddEdge(entry, right, cfg.EdgeFallthrough)
	g.AddEdge(left, merge, cfg.EdgeFallthrough)
	g.AddEdge(right, merge, cfg.EdgeFallthrough)
	return g, []*cfg.Block{entry, left, right, merge}
}

func TestDataflow_ReachesFixpoint(t *testing.T) {
	g, blocks := diamond()
	unreachable := g.NewBlock()

	df := dataflow.New[*reachFact](g, reachAnalysis{})
	require.NoError(t, df.Execute())
	require.True(t, df.Executed())

	for _, b := range blocks {
		assert.True(t, df.ResultFact(b).reached, "block %d must be reached", b.ID())
	}
	assert.False(t, df.ResultFact(unreachable).reached)
	assert.GreaterOrEqual(t, df.NumPasses(), 1)
}

func TestDataflow_LoopTerminates(t *testing.T) {
	g := cfg.NewGraph()
	entry := g.NewBlock()
	header := g.NewBlock()
	body := g.NewBlock()
	exit := g.NewBlock()
	g.AddEdge(entry, header, cfg.EdgeFallthrough)
	g.AddEdge(header, body, cfg.EdgeFallthrough)
	g.AddEdge(header, exit, cfg.EdgeBranch)
	g.AddEdge(body, header, cfg.EdgeFallthrough)

	df := dataflow.New[*reachFact](g, reachAnalysis{})
	require.NoError(t, df.Execute())
	assert.True(t, df.ResultFact(exit).reached)
	assert.True(t, df.StartFact(header).reached)
}

// divergeAnalysis never stabilizes: Same always reports a change, so the
// engine must hit its pass cap instead of spinning.
type divergeAnalysis struct {
	reachAnalysis
}

func (divergeAnalysis) Same(a, b *reachFact) bool { return false }

func TestDataflow_NoFixpointGuard(t *testing.T) {
	g := cfg.NewGraph()
	a := g.NewBlock()
	b := g.NewBlock()
	g.AddEdge(a, b, cfg.EdgeFallthrough)
	g.AddEdge(b, a, cfg.EdgeFallthrough)

	df := dataflow.New[*reachFact](g, divergeAnalysis{})
	err := df.Execute()
	require.ErrorIs(t, err, dataflow.ErrNoFixpoint)
}

// failingAnalysis reports a transfer error; the engine must wrap it with the
// failing location and abort this method only.
type failingAnalysis struct {
	reachAnalysis
}

func (failingAnalysis) TransferInstruction(loc cfg.Location, _ bytecode.Instruction, _ *reachFact) error {
	return assert.AnError
}

func TestDataflow_TransferErrorAborts(t *testing.T) {
	g := cfg.NewGraph()
	entry := g.NewBlock()
	entry.Append(bytecode.Return{})

	df := dataflow.New[*reachFact](g, failingAnalysis{})
	err := df.Execute()
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "block 0")
	assert.False(t, df.Executed())
}

func TestDataflow_EmptyGraph(t *testing.T) {
	df := dataflow.New[*reachFact](cfg.NewGraph(), reachAnalysis{})
	require.NoError(t, df.Execute())
	assert.True(t, df.Executed())
	assert.Equal(t, 0, df.NumPasses())
}

func TestDataflow_ResultFactsVisitsEveryBlock(t *testing.T) {
	g, blocks := diamond()
	df := dataflow.New[*reachFact](g, reachAnalysis{})
	require.NoError(t, df.Execute())

	count := 0
	df.ResultFacts(func(f *reachFact) {
		require.NotNil(t, f)
		count++
	})
	assert.Equal(t, len(blocks), count)
}
