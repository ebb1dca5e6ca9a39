package vna

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStackMismatch reports a meet between two valid frames whose stack
// depths differ. A well-formed CFG never produces this; it signals a
// structural inconsistency fatal to the current method's analysis.
var ErrStackMismatch = errors.New("vna: incompatible stack depths in meet")

// Frame is the lattice element: one per-location snapshot of the method's
// local slots and operand stack, each slot holding a value number. A frame
// starts Unreached — the meet identity, merging as "take the other side" —
// and becomes Valid when reachable state flows into it.
//
// Local slots occupy [0, numLocals); stack slots are appended above them.
// Frames are mutable and must not be aliased across concurrently live
// locations: take a CopyFrom snapshot instead.
type Frame struct {
	numLocals int
	valid     bool
	slots     []*ValueNumber

	// Per-slot memo of the value allocated the first time this frame's slot
	// disagreed with an incoming fact. Reusing it on later meets is what
	// makes the fixpoint converge at loop headers instead of allocating a
	// fresh value every iteration.
	merged []*ValueNumber

	factory *Factory
}

// NewFrame returns an Unreached frame with numLocals local slots and an
// empty stack, drawing merge values from factory.
func NewFrame(numLocals int, factory *Factory) *Frame {
	return &Frame{
		numLocals: numLocals,
		slots:     make([]*ValueNumber, numLocals),
		factory:   factory,
	}
}

// SetValid moves the frame from Unreached to Valid. Slot contents are
// undefined until populated.
func (f *Frame) SetValid() { f.valid = true }

// SetUnreached returns the frame to the Unreached meet-identity state so the
// engine can re-derive a block's entry fact by meeting all predecessors
// again. Slot contents become undefined. The per-slot merge memo survives,
// which is what keeps re-derivation at a loop header from allocating a fresh
// merged value every iteration.
func (f *Frame) SetUnreached() {
	f.valid = false
	f.slots = f.slots[:f.numLocals]
}

// IsValid reports whether the frame describes a reachable state.
func (f *Frame) IsValid() bool { return f.valid }

// NumLocals returns the number of fixed local slots.
func (f *Frame) NumLocals() int { return f.numLocals }

// NumSlots returns locals plus current stack depth.
func (f *Frame) NumSlots() int { return len(f.slots) }

// StackDepth returns the current operand stack depth.
func (f *Frame) StackDepth() int { return len(f.slots) - f.numLocals }

// GetValue returns the value number at slot i.
func (f *Frame) GetValue(i int) *ValueNumber { return f.slots[i] }

// SetValue stores a value number at slot i.
func (f *Frame) SetValue(i int, v *ValueNumber) { f.slots[i] = v }

// Push appends a value to the operand stack.
func (f *Frame) Push(v *ValueNumber) {
	f.slots = append(f.slots, v)
}

// Pop removes and returns the stack top. An empty stack is a structural
// failure of the current method's analysis.
func (f *Frame) Pop() (*ValueNumber, error) {
	if f.StackDepth() == 0 {
		return nil, errors.New("vna: pop from empty operand stack")
	}
	v := f.slots[len(f.slots)-1]
	f.slots = f.slots[:len(f.slots)-1]
	return v, nil
}

// Top returns the stack top without removing it.
func (f *Frame) Top() (*ValueNumber, error) {
	if f.StackDepth() == 0 {
		return nil, errors.New("vna: top of empty operand stack")
	}
	return f.slots[len(f.slots)-1], nil
}

// ClearStack discards all stack slots, keeping locals.
func (f *Frame) ClearStack() {
	f.slots = f.slots[:f.numLocals]
}

// CopyFrom makes this frame an independent copy of other: same validity,
// same slot sequence. The slot sequence is not aliased; the value numbers
// themselves are shared, which is the point. The merge memo is tied to the
// frame's own location and is not copied.
func (f *Frame) CopyFrom(other *Frame) {
	f.numLocals = other.numLocals
	f.valid = other.valid
	f.slots = append(f.slots[:0], other.slots...)
}

// SameAs reports pointwise equality of validity and slot value numbers.
func (f *Frame) SameAs(other *Frame) bool {
	if f.valid != other.valid {
		return false
	}
	if !f.valid {
		return true
	}
	if len(f.slots) != len(other.slots) {
		return false
	}
	for i, v := range f.slots {
		if v.Number() != other.slots[i].Number() {
			return false
		}
	}
	return true
}

// MergeWith folds other into this frame, the lattice meet:
//
//   - meet(Unreached, X) = X, in both directions;
//   - equal value numbers at a slot are kept;
//   - differing value numbers at a slot become that slot's memoized merged
//     value, allocated once and reused on every later meet.
//
// Two valid frames with differing stack depths cannot be met; that returns
// ErrStackMismatch and leaves this frame unchanged.
func (f *Frame) MergeWith(other *Frame) error {
	if !other.valid {
		return nil
	}
	if !f.valid {
		f.CopyFrom(other)
		return nil
	}
	if len(f.slots) != len(other.slots) {
		return fmt.Errorf("%w: %d vs %d", ErrStackMismatch, f.StackDepth(), other.StackDepth())
	}

	for i, v := range f.slots {
		o := other.slots[i]
		if v.Number() == o.Number() {
			continue
		}
		f.slots[i] = f.mergedValue(i)
	}
	return nil
}

// mergedValue returns the memoized "may differ along paths" value for slot
// i, allocating it on first use.
func (f *Frame) mergedValue(i int) *ValueNumber {
	for len(f.merged) <= i {
		f.merged = append(f.merged, nil)
	}
	if f.merged[i] == nil {
		f.merged[i] = f.factory.CreateFreshValue()
	}
	return f.merged[i]
}

// String renders "[locals | stack]" for dumps, or "<unreached>".
func (f *Frame) String() string {
	if !f.valid {
		return "<unreached>"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range f.slots {
		if i == f.numLocals {
			sb.WriteString(" | ")
		} else if i > 0 {
			sb.WriteString(", ")
		}
		if v == nil {
			sb.WriteByte('?')
		} else {
			sb.WriteString(v.String())
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
