package vna

import "fmt"

// Factory issues value numbers with sequential ids and supports the one-shot
// post-fixpoint compaction that renumbers live identities densely. One
// factory exists per method analysis; it is not shared.
type Factory struct {
	values []*ValueNumber
	count  int
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{}
}

// CreateFreshValue allocates a value number with the next sequential id.
func (f *Factory) CreateFreshValue() *ValueNumber {
	v := &ValueNumber{number: f.count}
	f.values = append(f.values, v)
	f.count++
	return v
}

// NumValuesAllocated returns the current id-space size: the allocation
// counter before compaction, the compacted count after.
func (f *Factory) NumValuesAllocated() int {
	return f.count
}

// droppedValue marks identities no live frame references after compaction.
const droppedValue = -1

// Compact renumbers every issued value in place: a value with old id n gets
// mapping[n], where droppedValue means no retained frame references it.
// newCount becomes the new allocation counter.
//
// Compact must be called at most once, after the fixpoint has converged and
// all frames are final; transfer and meet behavior afterwards is undefined.
// It is all-or-nothing: a rejected mapping leaves every id untouched.
func (f *Factory) Compact(mapping []int, newCount int) error {
	if len(mapping) != f.count {
		return fmt.Errorf("vna: compaction mapping covers %d ids, factory allocated %d",
			len(mapping), f.count)
	}
	if newCount < 0 || newCount > f.count {
		return fmt.Errorf("vna: compacted count %d outside [0, %d]", newCount, f.count)
	}
	for _, n := range mapping {
		if n != droppedValue && (n < 0 || n >= newCount) {
			return fmt.Errorf("vna: compacted id %d outside [0, %d)", n, newCount)
		}
	}

	for _, v := range f.values {
		v.number = mapping[v.number]
	}
	f.count = newCount
	return nil
}
