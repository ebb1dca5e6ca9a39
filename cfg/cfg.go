// Package cfg provides the control-flow-graph model consumed by the dataflow
// engine: basic blocks holding instruction runs, typed edges between them,
// and stable per-instruction Locations used as fact keys.
//
// Blocks live in an arena owned by the Graph and are identified by dense
// integer ids assigned at construction, so maps keyed by block can use plain
// ints instead of pointer identity.
package cfg

import "github.com/huahang/findbugs/bytecode"

// EdgeKind classifies a control-flow edge.
type EdgeKind int

const (
	// EdgeFallthrough is ordinary sequential flow into the next block.
	EdgeFallthrough EdgeKind = iota

	// EdgeBranch is flow along a taken conditional or unconditional jump.
	EdgeBranch

	// EdgeException is abnormal flow into an exception handler block.
	EdgeException
)

// String returns a short name for dumps.
func (k EdgeKind) String() string {
	switch k {
	case EdgeFallthrough:
		return "fallthrough"
	case EdgeBranch:
		return "branch"
	case EdgeException:
		return "exception"
	default:
		return "unknown"
	}
}

// Edge is a directed control-flow edge. Edges are small values; they are
// copied freely.
type Edge struct {
	Source *Block
	Target *Block
	Kind   EdgeKind
}

// IsExceptionEdge reports whether this edge transfers control abnormally
// into an exception handler.
func (e Edge) IsExceptionEdge() bool {
	return e.Kind == EdgeException
}

// Block is a maximal straight-line run of instructions with a single entry
// and a single exit.
type Block struct {
	id      int
	handler bool
	instrs  []bytecode.Instruction
	succs   []Edge
	preds   []Edge
}

// ID returns the block's dense integer id, unique within its Graph.
func (b *Block) ID() int { return b.id }

// IsExceptionHandler reports whether any incoming edge is an exception edge.
func (b *Block) IsExceptionHandler() bool { return b.handler }

// Instructions returns the block's instruction run. Callers must not mutate
// the returned slice.
func (b *Block) Instructions() []bytecode.Instruction { return b.instrs }

// Append adds instructions to the end of the block.
func (b *Block) Append(instrs ...bytecode.Instruction) {
	b.instrs = append(b.instrs, instrs...)
}

// Succs returns the outgoing edges in insertion order.
func (b *Block) Succs() []Edge { return b.succs }

// Preds returns the incoming edges in insertion order.
func (b *Block) Preds() []Edge { return b.preds }

// Graph owns the blocks of one method's CFG. The first block created is the
// entry block.
type Graph struct {
	blocks []*Block
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// NewBlock allocates a block with the next dense id.
func (g *Graph) NewBlock() *Block {
	b := &Block{id: len(g.blocks)}
	g.blocks = append(g.blocks, b)
	return b
}

// Entry returns the entry block, or nil for an empty graph.
func (g *Graph) Entry() *Block {
	if len(g.blocks) == 0 {
		return nil
	}
	return g.blocks[0]
}

// Blocks returns all blocks in id order. Callers must not mutate the
// returned slice.
func (g *Graph) Blocks() []*Block { return g.blocks }

// Block returns the block with the given id, or nil if out of range.
func (g *Graph) Block(id int) *Block {
	if id < 0 || id >= len(g.blocks) {
		return nil
	}
	return g.blocks[id]
}

// AddEdge connects src to tgt with the given kind. An exception edge marks
// the target as an exception handler.
func (g *Graph) AddEdge(src, tgt *Block, kind EdgeKind) Edge {
	e := Edge{Source: src, Target: tgt, Kind: kind}
	src.succs = append(src.succs, e)
	tgt.preds = append(tgt.preds, e)
	if kind == EdgeException {
		tgt.handler = true
	}
	return e
}
