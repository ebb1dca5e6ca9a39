package vna

import (
	"iter"

	"github.com/go-logr/logr"
	"golang.org/x/tools/container/intsets"

	"github.com/huahang/findbugs/bytecode"
	"github.com/huahang/findbugs/cfg"
	"github.com/huahang/findbugs/dataflow"
)

// Analysis is the value-numbering orchestrator for one method. It exposes
// the four operations a generic forward dataflow engine drives (CreateFact,
// InitEntryFact, TransferInstruction, MeetInto) plus the fact-query surface
// downstream detectors consume.
//
// All mutable state — factory, cache, fact maps, handler values — is
// instance-local, so analyses of different methods may run on different
// goroutines without coordination. One analysis instance itself is
// single-threaded.
type Analysis struct {
	method bytecode.Method

	factory  *Factory
	cache    *Cache
	transfer *transferFunc

	entryValues []*ValueNumber
	thisValue   *ValueNumber

	// Memoized "the caught exception" value per handler block id, shared by
	// every predecessor edge into that handler.
	exceptionValues map[int]*ValueNumber

	factAt    map[cfg.Location]*Frame
	factAfter map[cfg.Location]*Frame

	logger logr.Logger
}

var _ dataflow.Analysis[*Frame] = (*Analysis)(nil)

// Option configures an Analysis at construction.
type Option func(*Analysis)

// WithLogger supplies the diagnostics logger. Compaction stats are logged at
// verbosity 1. Default is logr.Discard.
func WithLogger(logger logr.Logger) Option {
	return func(a *Analysis) { a.logger = logger }
}

// WithFieldResolver supplies the fallible symbol-lookup collaborator used to
// build field signatures. Default resolution uses the reference's spelling.
func WithFieldResolver(r FieldResolver) Option {
	return func(a *Analysis) { a.transfer.resolver = r }
}

// WithLookupFailureCallback supplies the reporting channel for non-fatal
// resolution failures.
func WithLookupFailureCallback(cb LookupFailureCallback) Option {
	return func(a *Analysis) { a.transfer.onLookupFailure = cb }
}

// NewAnalysis creates the analysis for one method. Each local slot gets a
// distinct fresh entry value — at entry nothing is assumed to alias. For an
// instance method the receiver is slot 0's entry value, tracked by number.
func NewAnalysis(method bytecode.Method, opts ...Option) *Analysis {
	factory := NewFactory()
	cache := NewCache()
	a := &Analysis{
		method:  method,
		factory: factory,
		cache:   cache,
		transfer: &transferFunc{
			factory:  factory,
			cache:    cache,
			resolver: literalResolver{},
		},
		exceptionValues: make(map[int]*ValueNumber),
		factAt:          make(map[cfg.Location]*Frame),
		factAfter:       make(map[cfg.Location]*Frame),
		logger:          logr.Discard(),
	}

	a.entryValues = make([]*ValueNumber, method.NumLocals)
	for i := range a.entryValues {
		a.entryValues[i] = factory.CreateFreshValue()
	}
	if !method.IsStatic() && method.NumLocals > 0 {
		a.thisValue = a.entryValues[0]
	}

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateFact returns a new Unreached frame sized to the method's locals.
func (a *Analysis) CreateFact() *Frame {
	return NewFrame(a.method.NumLocals, a.factory)
}

// InitEntryFact makes the frame Valid with every local slot holding its
// precomputed entry value and an empty stack.
func (a *Analysis) InitEntryFact(fact *Frame) {
	fact.SetValid()
	fact.ClearStack()
	for i, v := range a.entryValues {
		fact.SetValue(i, v)
	}
}

// MakeFactTop returns the frame to the Unreached meet identity; the engine
// calls it before re-meeting a block's predecessors. The frame's merge memo
// survives.
func (a *Analysis) MakeFactTop(fact *Frame) {
	fact.SetUnreached()
}

// Copy implements the engine contract with a frame deep copy.
func (a *Analysis) Copy(src, dst *Frame) {
	dst.CopyFrom(src)
}

// Same implements the engine's convergence check.
func (a *Analysis) Same(x, y *Frame) bool {
	return x.SameAs(y)
}

// IsFactValid reports whether the frame describes a reachable state.
func (a *Analysis) IsFactValid(fact *Frame) bool {
	return fact.IsValid()
}

// TransferInstruction snapshots fact into the location's before-fact,
// applies the instruction's semantics to fact in place, then snapshots the
// result into the after-fact. Re-running a location on a later fixpoint
// iteration overwrites the stored snapshots.
func (a *Analysis) TransferInstruction(loc cfg.Location, ins bytecode.Instruction, fact *Frame) error {
	a.FactAtLocation(loc).CopyFrom(fact)

	if err := a.transfer.apply(loc, ins, fact); err != nil {
		return err
	}

	a.FactAfterLocation(loc).CopyFrom(fact)
	return nil
}

// MeetInto folds a predecessor's exit fact, flowing along edge, into
// result. When the edge enters an exception handler and the fact is valid,
// the merged fact keeps the predecessor's locals but replaces the whole
// stack with the handler's single memoized exception value — every
// predecessor edge into one handler sees the identical value.
func (a *Analysis) MeetInto(fact *Frame, edge cfg.Edge, result *Frame) error {
	if edge.Target.IsExceptionHandler() && fact.IsValid() {
		tmp := a.CreateFact()
		tmp.CopyFrom(fact)
		tmp.ClearStack()
		tmp.Push(a.ExceptionValue(edge.Target))
		fact = tmp
	}
	return result.MergeWith(fact)
}

// ExceptionValue returns the value number representing "the caught
// exception" at a handler block, allocated lazily on first reference.
func (a *Analysis) ExceptionValue(handler *cfg.Block) *ValueNumber {
	if v, ok := a.exceptionValues[handler.ID()]; ok {
		return v
	}
	v := a.factory.CreateFreshValue()
	a.exceptionValues[handler.ID()] = v
	return v
}

// FactAtLocation returns the fact observed immediately before the
// instruction at loc, creating an Unreached placeholder on first access.
func (a *Analysis) FactAtLocation(loc cfg.Location) *Frame {
	fact, ok := a.factAt[loc]
	if !ok {
		fact = a.CreateFact()
		a.factAt[loc] = fact
	}
	return fact
}

// FactAfterLocation returns the fact observed immediately after the
// instruction at loc, creating an Unreached placeholder on first access.
func (a *Analysis) FactAfterLocation(loc cfg.Location) *Frame {
	fact, ok := a.factAfter[loc]
	if !ok {
		fact = a.CreateFact()
		a.factAfter[loc] = fact
	}
	return fact
}

// Facts iterates over every recorded before-fact. Block exit facts live in
// the driving engine, not here.
func (a *Analysis) Facts() iter.Seq2[cfg.Location, *Frame] {
	return func(yield func(cfg.Location, *Frame) bool) {
		for loc, fact := range a.factAt {
			if !yield(loc, fact) {
				return
			}
		}
	}
}

// ThisValue returns the receiver's value number, or nil for a static method.
func (a *Analysis) ThisValue() *ValueNumber {
	return a.thisValue
}

// IsThisValue reports whether v is the receiver's value, compared by number.
func (a *Analysis) IsThisValue(v *ValueNumber) bool {
	return a.thisValue != nil && v != nil && a.thisValue.Number() == v.Number()
}

// EntryValue returns the value assigned to a local slot at method entry.
func (a *Analysis) EntryValue(local int) *ValueNumber {
	return a.entryValues[local]
}

// NumValuesAllocated returns the factory's current id-space size.
func (a *Analysis) NumValuesAllocated() int {
	return a.factory.NumValuesAllocated()
}

// ResultFactSource supplies the block exit facts retained by the driving
// engine; *dataflow.Dataflow[*Frame] satisfies it.
type ResultFactSource interface {
	ResultFacts(fn func(fact *Frame))
}

// valueCompacter accumulates the used-value set and the old-id to new-id
// mapping in first-discovery order.
type valueCompacter struct {
	used       intsets.Sparse
	discovered []int
	next       int
}

func newValueCompacter(numAllocated int) *valueCompacter {
	c := &valueCompacter{discovered: make([]int, numAllocated)}
	for i := range c.discovered {
		c.discovered[i] = droppedValue
	}
	return c
}

func (c *valueCompacter) markFrame(frame *Frame) {
	if !frame.IsValid() {
		return
	}
	for i := 0; i < frame.NumSlots(); i++ {
		n := frame.GetValue(i).Number()
		if c.used.Insert(n) {
			c.discovered[n] = c.next
			c.next++
		}
	}
}

// CompactValueNumbers renumbers the id space densely, dropping every value
// no retained frame references. Retained frames are the recorded before- and
// after-facts plus the engine's block exit facts. Values keep their
// relative first-discovery order; merge-point values that turned out
// unreferenced once the fixpoint stabilized are purged.
//
// Call exactly once, after the engine has converged. Afterwards the analysis
// is read-only. The renumbering is all-or-nothing: on failure the prior
// numbering is untouched.
func (a *Analysis) CompactValueNumbers(results ResultFactSource) error {
	before := a.factory.NumValuesAllocated()
	compacter := newValueCompacter(before)

	for _, fact := range a.factAt {
		compacter.markFrame(fact)
	}
	for _, fact := range a.factAfter {
		compacter.markFrame(fact)
	}
	if results != nil {
		results.ResultFacts(compacter.markFrame)
	}

	if err := a.factory.Compact(compacter.discovered, compacter.next); err != nil {
		return err
	}

	after := a.factory.NumValuesAllocated()
	if after < before && before > 0 {
		a.logger.V(1).Info("value compaction",
			"method", a.method.Name,
			"before", before,
			"after", after,
			"percent", (after*100)/before)
	}
	return nil
}
