// Package dataflow provides a generic forward dataflow engine: a worklist
// loop that drives an Analysis's transfer and meet operations over a CFG
// until the facts stop changing.
//
// The engine knows nothing about what the facts mean. It owns one start
// (block-entry) fact and one result (block-exit) fact per basic block,
// visits pending blocks in reverse postorder, and re-queues successors
// whenever a block's result fact changes.
package dataflow

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/huahang/findbugs/bytecode"
	"github.com/huahang/findbugs/cfg"
)

// ErrNoFixpoint is returned when the pass cap is exceeded, which indicates a
// non-monotone analysis (facts that keep changing forever).
var ErrNoFixpoint = errors.New("dataflow: fixpoint not reached")

// Analysis is the contract a forward analysis exposes to the engine.
// F is the lattice-element (fact) type; the engine treats it opaquely.
type Analysis[F any] interface {
	// CreateFact returns a new fact in the lattice's identity (unreached)
	// state.
	CreateFact() F

	// InitEntryFact initializes the fact at the method entry point.
	InitEntryFact(fact F)

	// MakeFactTop returns a fact to the lattice's identity state so a
	// block's entry fact can be re-derived by meeting all predecessors.
	// Any per-fact merge memoization must survive this reset.
	MakeFactTop(fact F)

	// Copy deep-copies src into dst; dst must not alias src afterwards.
	Copy(src, dst F)

	// Same reports whether two facts are equal, used to detect convergence.
	Same(a, b F) bool

	// IsFactValid reports whether a fact describes a reachable state.
	// Transfer is skipped for unreached facts.
	IsFactValid(fact F) bool

	// TransferInstruction applies one instruction's semantics to fact in
	// place.
	TransferInstruction(loc cfg.Location, ins bytecode.Instruction, fact F) error

	// MeetInto folds a predecessor's exit fact, flowing along edge, into the
	// successor's entry fact.
	MeetInto(fact F, edge cfg.Edge, result F) error
}

// Dataflow runs one Analysis over one method's CFG.
type Dataflow[F any] struct {
	graph    *cfg.Graph
	analysis Analysis[F]

	start  map[int]F // block id -> entry fact, persistent across passes
	result map[int]F // block id -> exit fact

	passes   int
	executed bool
}

// New creates an engine for the given graph and analysis. Execute must be
// called before any fact accessor.
func New[F any](graph *cfg.Graph, analysis Analysis[F]) *Dataflow[F] {
	return &Dataflow[F]{
		graph:    graph,
		analysis: analysis,
		start:    make(map[int]F, len(graph.Blocks())),
		result:   make(map[int]F, len(graph.Blocks())),
	}
}

// Per-method guard against a diverging analysis. Well-formed lattices
// converge in O(depth * blocks) passes; anything past the cap is a bug in
// the analysis, not a big method.
func (d *Dataflow[F]) maxPasses() int {
	return 10*len(d.graph.Blocks()) + 20
}

// Execute drives the analysis to fixpoint. An error from transfer or meet
// aborts this method's analysis only; the engine carries no cross-method
// state.
func (d *Dataflow[F]) Execute() error {
	order := cfg.ReversePostorder(d.graph)
	if len(order) == 0 {
		d.executed = true
		return nil
	}

	for _, b := range order {
		d.start[b.ID()] = d.analysis.CreateFact()
		d.result[b.ID()] = d.analysis.CreateFact()
	}

	entry := d.graph.Entry()
	d.analysis.InitEntryFact(d.start[entry.ID()])

	work := d.analysis.CreateFact()
	pending := mapset.NewThreadUnsafeSet[int]()
	for _, b := range order {
		pending.Add(b.ID())
	}

	for !pending.IsEmpty() {
		d.passes++
		if d.passes > d.maxPasses() {
			return fmt.Errorf("%w after %d passes over %d blocks",
				ErrNoFixpoint, d.passes, len(order))
		}
		for _, b := range order {
			if !pending.Contains(b.ID()) {
				continue
			}
			pending.Remove(b.ID())
			changed, err := d.visit(b, entry, work)
			if err != nil {
				return fmt.Errorf("block %d: %w", b.ID(), err)
			}
			if changed {
				for _, e := range b.Succs() {
					pending.Add(e.Target.ID())
				}
			}
		}
	}

	d.executed = true
	return nil
}

// visit recomputes one block: meet predecessor results into the persistent
// start fact, run the transfer function over the block body, and install the
// exit fact if it changed.
func (d *Dataflow[F]) visit(b, entry *cfg.Block, work F) (bool, error) {
	startFact := d.start[b.ID()]
	if b != entry {
		d.analysis.MakeFactTop(startFact)
		for _, e := range b.Preds() {
			predResult := d.result[e.Source.ID()]
			if err := d.analysis.MeetInto(predResult, e, startFact); err != nil {
				return false, err
			}
		}
	}

	d.analysis.Copy(startFact, work)
	if d.analysis.IsFactValid(work) {
		for i, ins := range b.Instructions() {
			loc := cfg.LocationOf(b, i)
			if err := d.analysis.TransferInstruction(loc, ins, work); err != nil {
				return false, fmt.Errorf("at %s (%s): %w", loc, ins.Mnemonic(), err)
			}
		}
	}

	resultFact := d.result[b.ID()]
	if d.analysis.Same(work, resultFact) {
		return false, nil
	}
	d.analysis.Copy(work, resultFact)
	return true, nil
}

// StartFact returns the entry fact for a block. Valid only after Execute.
func (d *Dataflow[F]) StartFact(b *cfg.Block) F {
	return d.start[b.ID()]
}

// ResultFact returns the exit fact for a block. Valid only after Execute.
func (d *Dataflow[F]) ResultFact(b *cfg.Block) F {
	return d.result[b.ID()]
}

// ResultFacts calls fn for every block's exit fact. Post-fixpoint consumers
// (such as value-number compaction) use this to reach facts not covered by
// per-instruction storage.
func (d *Dataflow[F]) ResultFacts(fn func(fact F)) {
	for _, b := range d.graph.Blocks() {
		if fact, ok := d.result[b.ID()]; ok {
			fn(fact)
		}
	}
}

// NumPasses returns how many worklist passes Execute needed.
func (d *Dataflow[F]) NumPasses() int {
	return d.passes
}

// Executed reports whether Execute has run to completion.
func (d *Dataflow[F]) Executed() bool {
	return d.executed
}
