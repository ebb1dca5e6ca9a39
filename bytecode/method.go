package bytecode

// Method describes the shape of the method being analyzed: how many local
// slots it has and whether slot 0 holds a receiver. The instruction stream
// itself lives in the CFG's basic blocks.
type Method struct {
	Name      string
	NumLocals int
	Static    bool
}

// IsStatic reports whether the method has no receiver. For instance methods
// local slot 0 holds the receiver at entry.
func (m Method) IsStatic() bool {
	return m.Static
}
