// Package bytecode models the instruction stream of a stack-machine method
// as a closed set of instruction variants grouped by effect class.
//
// The set is deliberately sealed: every consumer dispatches with one
// exhaustive type switch instead of extensible per-opcode visitors, so adding
// a variant forces every switch to be revisited.
package bytecode

import "fmt"

// Instruction is the sealed interface implemented by every variant in this
// package. Consumers dispatch with a type switch over the concrete types.
type Instruction interface {
	// Mnemonic returns a short lower-case name for dumps and diagnostics.
	Mnemonic() string

	sealed()
}

// FieldRef names a field referenced by a GetField or PutField instruction.
// It is the static context that distinguishes otherwise identical field
// accesses.
type FieldRef struct {
	Class string
	Name  string
}

// String returns the "Class.Name" form used in signatures and dumps.
func (r FieldRef) String() string {
	return r.Class + "." + r.Name
}

// PushConst pushes a literal constant. Literal is the source-level spelling;
// two PushConst instructions with equal literals produce the same value.
type PushConst struct {
	Literal string
}

// LoadLocal pushes the value currently held by local slot Slot.
type LoadLocal struct {
	Slot int
}

// StoreLocal pops the stack top into local slot Slot.
type StoreLocal struct {
	Slot int
}

// GetField reads a field and pushes its value. Instance reads pop the
// receiver first; static reads pop nothing.
type GetField struct {
	Field    FieldRef
	Instance bool
}

// PutField pops a value (and the receiver, for instance fields) and writes
// the field.
type PutField struct {
	Field    FieldRef
	Instance bool
}

// UnaryOp pops one operand and pushes the result of Op applied to it.
type UnaryOp struct {
	Op string
}

// BinaryOp pops two operands and pushes the result of Op applied to them.
type BinaryOp struct {
	Op string
}

// Invoke calls Target, popping ArgCount arguments (plus the receiver when
// Instance is set) and pushing one result when Returns is set.
type Invoke struct {
	Target   string
	ArgCount int
	Instance bool
	Returns  bool
}

// NewObject allocates a fresh object of Class and pushes a reference to it.
type NewObject struct {
	Class string
}

// Dup duplicates the stack top.
type Dup struct{}

// Pop discards the stack top.
type Pop struct{}

// Swap exchanges the two topmost stack values.
type Swap struct{}

// Branch transfers control along one of the block's outgoing edges after
// popping Pops condition operands. An unconditional jump has Pops == 0.
type Branch struct {
	Pops int
}

// Throw pops the exception object and transfers control abnormally.
type Throw struct{}

// Return leaves the method, popping the result when HasValue is set.
type Return struct {
	HasValue bool
}

func (PushConst) sealed()  {}
func (LoadLocal) sealed()  {}
func (StoreLocal) sealed() {}
func (GetField) sealed()   {}
func (PutField) sealed()   {}
func (UnaryOp) sealed()    {}
func (BinaryOp) sealed()   {}
func (Invoke) sealed()     {}
func (NewObject) sealed()  {}
func (Dup) sealed()        {}
func (Pop) sealed()        {}
func (Swap) sealed()       {}
func (Branch) sealed()     {}
func (Throw) sealed()      {}
func (Return) sealed()     {}

func (i PushConst) Mnemonic() string  { return fmt.Sprintf("const %s", i.Literal) }
func (i LoadLocal) Mnemonic() string  { return fmt.Sprintf("load %d", i.Slot) }
func (i StoreLocal) Mnemonic() string { return fmt.Sprintf("store %d", i.Slot) }

func (i GetField) Mnemonic() string {
	if i.Instance {
		return fmt.Sprintf("getfield %s", i.Field)
	}
	return fmt.Sprintf("getstatic %s", i.Field)
}

func (i PutField) Mnemonic() string {
	if i.Instance {
		return fmt.Sprintf("putfield %s", i.Field)
	}
	return fmt.Sprintf("putstatic %s", i.Field)
}

func (i UnaryOp) Mnemonic() string  { return fmt.Sprintf("unop %s", i.Op) }
func (i BinaryOp) Mnemonic() string { return fmt.Sprintf("binop %s", i.Op) }

func (i Invoke) Mnemonic() string {
	return fmt.Sprintf("invoke %s/%d", i.Target, i.ArgCount)
}

func (i NewObject) Mnemonic() string { return fmt.Sprintf("new %s", i.Class) }
func (Dup) Mnemonic() string         { return "dup" }
func (Pop) Mnemonic() string         { return "pop" }
func (Swap) Mnemonic() string        { return "swap" }
func (i Branch) Mnemonic() string    { return fmt.Sprintf("branch/%d", i.Pops) }
func (Throw) Mnemonic() string       { return "throw" }

func (i Return) Mnemonic() string {
	if i.HasValue {
		return "return value"
	}
	return "return"
}
