package vna

import (
	"strconv"
	"strings"
)

// Signature is the semantic key of one value-producing operation: its
// instruction kind, the static referent (literal, field symbol, operator),
// and the value numbers of its operands. Two operations with equal
// signatures are structurally identical and must receive the same value
// number.
//
// Operand lists are variable-length, so the key is a compact string encoding
// rather than a fixed-arity struct; value numbers are encoded by id, which
// is stable until compaction and the cache is dead by then.
type Signature string

// MakeSignature builds the signature for an operation of the given kind with
// the given static referent and operand values.
func MakeSignature(kind, ref string, inputs ...*ValueNumber) Signature {
	var sb strings.Builder
	sb.WriteString(kind)
	sb.WriteByte('|')
	sb.WriteString(ref)
	for _, in := range inputs {
		sb.WriteByte('|')
		sb.WriteString(strconv.Itoa(in.Number()))
	}
	return Signature(sb.String())
}

// Cache canonicalizes operations: the first occurrence of a signature stores
// the value number it produced, and every structurally identical occurrence
// afterwards reuses it. That is what lets the analysis see two reads of the
// same unmodified field, or two pushes of the same literal, as one value.
//
// One cache exists per method analysis and is mutated only by the transfer
// function.
type Cache struct {
	entries map[Signature]*ValueNumber
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Signature]*ValueNumber)}
}

// Lookup returns the value number previously stored for sig, if any.
func (c *Cache) Lookup(sig Signature) (*ValueNumber, bool) {
	v, ok := c.entries[sig]
	return v, ok
}

// Store records the value number produced for sig.
func (c *Cache) Store(sig Signature, v *ValueNumber) {
	c.entries[sig] = v
}

// Size returns the number of distinct signatures seen.
func (c *Cache) Size() int {
	return len(c.entries)
}
