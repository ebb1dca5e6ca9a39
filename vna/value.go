// Package vna implements value numbering: a forward dataflow analysis that
// assigns every value produced during a method's execution an abstract
// number shared by all computations proven to always yield the same runtime
// value.
//
// Two value numbers from the same analysis are comparable by Number(); equal
// numbers mean "provably the same value at runtime". Nothing is claimed
// across methods or across separate invocations of the same method, and no
// concrete values are modeled.
package vna

import "fmt"

// ValueNumber is one abstract value identity. Instances are created only by
// a Factory and are immutable except for the factory's one-time compaction,
// which renumbers live instances in place.
type ValueNumber struct {
	number int
}

// Number returns the identity's id, unique within its factory while the
// analysis is live.
func (v *ValueNumber) Number() int {
	return v.number
}

// String returns "v<number>" for dumps.
func (v *ValueNumber) String() string {
	return fmt.Sprintf("v%d", v.number)
}
