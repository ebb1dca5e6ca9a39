package cfg

import (
	"fmt"

	"github.com/huahang/findbugs/bytecode"
)

// Location identifies one instruction position inside a graph: the owning
// block's id plus the instruction index within that block. Locations are
// comparable values with stable equality for the analysis's lifetime and are
// used directly as map keys for per-location fact storage.
type Location struct {
	BlockID int
	Index   int
}

// LocationOf returns the Location of instruction index within block.
func LocationOf(block *Block, index int) Location {
	return Location{BlockID: block.ID(), Index: index}
}

// String returns "block:index" for diagnostics.
func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.BlockID, l.Index)
}

// InstructionAt resolves a Location back to its instruction. It returns nil
// for a Location that does not name an instruction in this graph.
func (g *Graph) InstructionAt(loc Location) bytecode.Instruction {
	b := g.Block(loc.BlockID)
	if b == nil || loc.Index < 0 || loc.Index >= len(b.instrs) {
		return nil
	}
	return b.instrs[loc.Index]
}
