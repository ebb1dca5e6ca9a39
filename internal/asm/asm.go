// Package asm assembles a line-based method listing into a bytecode method
// and its control-flow graph. The format exists for the vnadump tool and for
// integration tests; it is not a general-purpose assembler.
//
// A listing looks like:
//
//	method max locals=2 static
//
//	block entry
//	  load 0
//	  load 1
//	  binop cmp
//	  branch 1
//
//	block exit
//	  return
//
//	edge entry exit branch
//	edge entry exit fallthrough
//
// The first block is the entry block. Edge kinds are fallthrough, branch and
// exception; an exception edge marks its target as a handler. Lines starting
// with '#' and blank lines are ignored.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/huahang/findbugs/bytecode"
	"github.com/huahang/findbugs/cfg"
)

// ErrSyntax wraps every listing syntax error.
var ErrSyntax = errors.New("asm: syntax error")

// Program is one assembled method listing.
type Program struct {
	Method bytecode.Method
	Graph  *cfg.Graph

	// Labels maps block labels from the listing to their blocks.
	Labels map[string]*cfg.Block
}

// Parse assembles a listing.
func Parse(r io.Reader) (*Program, error) {
	p := &parser{
		graph:  cfg.NewGraph(),
		labels: make(map[string]*cfg.Block),
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := p.directive(line); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrSyntax, p.lineno, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !p.sawMethod {
		return nil, fmt.Errorf("%w: no method directive", ErrSyntax)
	}

	return &Program{Method: p.method, Graph: p.graph, Labels: p.labels}, nil
}

// ParseString assembles a listing held in a string.
func ParseString(src string) (*Program, error) {
	return Parse(strings.NewReader(src))
}

type parser struct {
	lineno    int
	sawMethod bool
	method    bytecode.Method
	graph     *cfg.Graph
	labels    map[string]*cfg.Block
	current   *cfg.Block
}

func (p *parser) directive(line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "method":
		return p.methodDirective(fields[1:])
	case "block":
		return p.blockDirective(fields[1:])
	case "edge":
		return p.edgeDirective(fields[1:])
	default:
		if p.current == nil {
			return fmt.Errorf("instruction %q outside a block", fields[0])
		}
		ins, err := parseInstruction(fields)
		if err != nil {
			return err
		}
		p.current.Append(ins)
		return nil
	}
}

func (p *parser) methodDirective(args []string) error {
	if p.sawMethod {
		return errors.New("duplicate method directive")
	}
	if len(args) < 2 {
		return errors.New("method needs a name and locals=<n>")
	}
	m := bytecode.Method{Name: args[0], Static: false}
	sawLocals := false
	for _, arg := range args[1:] {
		switch {
		case strings.HasPrefix(arg, "locals="):
			n, err := strconv.Atoi(strings.TrimPrefix(arg, "locals="))
			if err != nil || n < 0 {
				return fmt.Errorf("bad locals count %q", arg)
			}
			m.NumLocals = n
			sawLocals = true
		case arg == "static":
			m.Static = true
		default:
			return fmt.Errorf("unknown method attribute %q", arg)
		}
	}
	if !sawLocals {
		return errors.New("method needs locals=<n>")
	}
	if !m.Static && m.NumLocals == 0 {
		return errors.New("instance method needs at least one local for the receiver")
	}
	p.method = m
	p.sawMethod = true
	return nil
}

func (p *parser) blockDirective(args []string) error {
	if len(args) != 1 {
		return errors.New("block needs exactly one label")
	}
	label := args[0]
	if _, dup := p.labels[label]; dup {
		return fmt.Errorf("duplicate block label %q", label)
	}
	b := p.graph.NewBlock()
	p.labels[label] = b
	p.current = b
	return nil
}

func (p *parser) edgeDirective(args []string) error {
	if len(args) != 3 {
		return errors.New("edge needs <src> <dst> <kind>")
	}
	src, ok := p.labels[args[0]]
	if !ok {
		return fmt.Errorf("unknown block %q", args[0])
	}
	dst, ok := p.labels[args[1]]
	if !ok {
		return fmt.Errorf("unknown block %q", args[1])
	}
	var kind cfg.EdgeKind
	switch args[2] {
	case "fallthrough":
		kind = cfg.EdgeFallthrough
	case "branch":
		kind = cfg.EdgeBranch
	case "exception":
		kind = cfg.EdgeException
	default:
		return fmt.Errorf("unknown edge kind %q", args[2])
	}
	p.graph.AddEdge(src, dst, kind)
	return nil
}

func parseInstruction(fields []string) (bytecode.Instruction, error) {
	arg := func(i int) (string, error) {
		if i >= len(fields) {
			return "", fmt.Errorf("%s: missing operand", fields[0])
		}
		return fields[i], nil
	}
	intArg := func(i int) (int, error) {
		s, err := arg(i)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%s: bad operand %q", fields[0], s)
		}
		return n, nil
	}
	fieldArg := func(i int) (bytecode.FieldRef, error) {
		s, err := arg(i)
		if err != nil {
			return bytecode.FieldRef{}, err
		}
		class, name, ok := strings.Cut(s, ".")
		if !ok || class == "" || name == "" {
			return bytecode.FieldRef{}, fmt.Errorf("%s: field reference %q is not Class.Name", fields[0], s)
		}
		return bytecode.FieldRef{Class: class, Name: name}, nil
	}

	switch fields[0] {
	case "const":
		lit, err := arg(1)
		if err != nil {
			return nil, err
		}
		return bytecode.PushConst{Literal: lit}, nil
	case "load":
		slot, err := intArg(1)
		if err != nil {
			return nil, err
		}
		return bytecode.LoadLocal{Slot: slot}, nil
	case "store":
		slot, err := intArg(1)
		if err != nil {
			return nil, err
		}
		return bytecode.StoreLocal{Slot: slot}, nil
	case "getfield", "getstatic":
		ref, err := fieldArg(1)
		if err != nil {
			return nil, err
		}
		return bytecode.GetField{Field: ref, Instance: fields[0] == "getfield"}, nil
	case "putfield", "putstatic":
		ref, err := fieldArg(1)
		if err != nil {
			return nil, err
		}
		return bytecode.PutField{Field: ref, Instance: fields[0] == "putfield"}, nil
	case "unop":
		op, err := arg(1)
		if err != nil {
			return nil, err
		}
		return bytecode.UnaryOp{Op: op}, nil
	case "binop":
		op, err := arg(1)
		if err != nil {
			return nil, err
		}
		return bytecode.BinaryOp{Op: op}, nil
	case "invoke":
		target, err := arg(1)
		if err != nil {
			return nil, err
		}
		ins := bytecode.Invoke{Target: target}
		for _, attr := range fields[2:] {
			switch {
			case strings.HasPrefix(attr, "args="):
				n, err := strconv.Atoi(strings.TrimPrefix(attr, "args="))
				if err != nil || n < 0 {
					return nil, fmt.Errorf("invoke: bad %q", attr)
				}
				ins.ArgCount = n
			case attr == "instance":
				ins.Instance = true
			case attr == "returns":
				ins.Returns = true
			default:
				return nil, fmt.Errorf("invoke: unknown attribute %q", attr)
			}
		}
		return ins, nil
	case "new":
		class, err := arg(1)
		if err != nil {
			return nil, err
		}
		return bytecode.NewObject{Class: class}, nil
	case "dup":
		return bytecode.Dup{}, nil
	case "pop":
		return bytecode.Pop{}, nil
	case "swap":
		return bytecode.Swap{}, nil
	case "branch":
		pops, err := intArg(1)
		if err != nil {
			return nil, err
		}
		return bytecode.Branch{Pops: pops}, nil
	case "throw":
		return bytecode.Throw{}, nil
	case "return":
		if len(fields) > 1 && fields[1] == "value" {
			return bytecode.Return{HasValue: true}, nil
		}
		return bytecode.Return{}, nil
	default:
		return nil, fmt.Errorf("unknown instruction %q", fields[0])
	}
}
