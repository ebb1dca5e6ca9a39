package vna

import (
	"fmt"

	"github.com/huahang/findbugs/bytecode"
	"github.com/huahang/findbugs/cfg"
)

// FieldResolver resolves a field reference to the canonical symbol used in
// cache signatures. Resolution may cross boundaries the analysis does not
// control (class lookup in the original system) and is therefore fallible.
type FieldResolver interface {
	ResolveField(ref bytecode.FieldRef) (string, error)
}

// LookupFailureCallback receives non-fatal resolution failures. The analysis
// substitutes a conservative fresh value and continues; the callback is the
// failure's only reporting channel.
type LookupFailureCallback func(loc cfg.Location, ref bytecode.FieldRef, err error)

// literalResolver is the default FieldResolver: the reference's own spelling
// is the symbol.
type literalResolver struct{}

func (literalResolver) ResolveField(ref bytecode.FieldRef) (string, error) {
	return ref.String(), nil
}

// transferFunc applies instruction semantics to a frame, deciding fresh
// versus canonical value numbers via the factory and cache. Its side effects
// are confined to the frame and the cache.
type transferFunc struct {
	factory         *Factory
	cache           *Cache
	resolver        FieldResolver
	onLookupFailure LookupFailureCallback
}

// apply mutates frame to the post-instruction state. Errors are structural
// (stack underflow, bad local slot) and fatal to the current method only.
func (t *transferFunc) apply(loc cfg.Location, ins bytecode.Instruction, frame *Frame) error {
	switch ins := ins.(type) {
	case bytecode.PushConst:
		frame.Push(t.canonical(MakeSignature("const", ins.Literal)))

	case bytecode.LoadLocal:
		if ins.Slot < 0 || ins.Slot >= frame.NumLocals() {
			return fmt.Errorf("vna: load of local %d outside [0, %d)", ins.Slot, frame.NumLocals())
		}
		// A pure load propagates the slot's value number; nothing is
		// allocated.
		frame.Push(frame.GetValue(ins.Slot))

	case bytecode.StoreLocal:
		if ins.Slot < 0 || ins.Slot >= frame.NumLocals() {
			return fmt.Errorf("vna: store to local %d outside [0, %d)", ins.Slot, frame.NumLocals())
		}
		v, err := frame.Pop()
		if err != nil {
			return err
		}
		frame.SetValue(ins.Slot, v)

	case bytecode.GetField:
		var receiver *ValueNumber
		if ins.Instance {
			v, err := frame.Pop()
			if err != nil {
				return err
			}
			receiver = v
		}
		sym, err := t.resolver.ResolveField(ins.Field)
		if err != nil {
			// Unresolvable referent: report and fall back to a fresh,
			// uncanonicalized value so the fixpoint stays well-founded.
			if t.onLookupFailure != nil {
				t.onLookupFailure(loc, ins.Field, err)
			}
			frame.Push(t.factory.CreateFreshValue())
			return nil
		}
		if ins.Instance {
			frame.Push(t.canonical(MakeSignature("getfield", sym, receiver)))
		} else {
			frame.Push(t.canonical(MakeSignature("getstatic", sym)))
		}

	case bytecode.PutField:
		if _, err := frame.Pop(); err != nil {
			return err
		}
		if ins.Instance {
			if _, err := frame.Pop(); err != nil {
				return err
			}
		}
		// Stores do not invalidate cached loads; redundant load elimination
		// is future work.

	case bytecode.UnaryOp:
		a, err := frame.Pop()
		if err != nil {
			return err
		}
		frame.Push(t.canonical(MakeSignature("unop", ins.Op, a)))

	case bytecode.BinaryOp:
		b, err := frame.Pop()
		if err != nil {
			return err
		}
		a, err := frame.Pop()
		if err != nil {
			return err
		}
		frame.Push(t.canonical(MakeSignature("binop", ins.Op, a, b)))

	case bytecode.Invoke:
		pops := ins.ArgCount
		if ins.Instance {
			pops++
		}
		for range pops {
			if _, err := frame.Pop(); err != nil {
				return err
			}
		}
		// Calls are not assumed pure, so results are never canonicalized.
		if ins.Returns {
			frame.Push(t.factory.CreateFreshValue())
		}

	case bytecode.NewObject:
		frame.Push(t.factory.CreateFreshValue())

	case bytecode.Dup:
		v, err := frame.Top()
		if err != nil {
			return err
		}
		frame.Push(v)

	case bytecode.Pop:
		if _, err := frame.Pop(); err != nil {
			return err
		}

	case bytecode.Swap:
		top, err := frame.Pop()
		if err != nil {
			return err
		}
		under, err := frame.Pop()
		if err != nil {
			return err
		}
		frame.Push(top)
		frame.Push(under)

	case bytecode.Branch:
		for range ins.Pops {
			if _, err := frame.Pop(); err != nil {
				return err
			}
		}

	case bytecode.Throw:
		if _, err := frame.Pop(); err != nil {
			return err
		}

	case bytecode.Return:
		if ins.HasValue {
			if _, err := frame.Pop(); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("vna: unhandled instruction %T", ins)
	}
	return nil
}

// canonical returns the value number for sig, issuing and storing a fresh
// one on first occurrence.
func (t *transferFunc) canonical(sig Signature) *ValueNumber {
	if v, ok := t.cache.Lookup(sig); ok {
		return v
	}
	v := t.factory.CreateFreshValue()
	t.cache.Store(sig, v)
	return v
}
