package asm

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/huahang/findbugs/bytecode"
	"github.com/huahang/findbugs/cfg"
)

func TestParse_FullListing(t *testing.T) {
	prog, err := ParseString(`
# a guarded field read
method example locals=2

block try
  load 0
  getfield Acct.balance
  store 1

block ok
  return

block catch
  pop
  return

edge try ok fallthrough
edge try catch exception
`)
	if err != nil {
		t.Fatalf("ParseString() error: %v", err)
	}

	want := bytecode.Method{Name: "example", NumLocals: 2, Static: false}
	if prog.Method != want {
		t.Errorf("method = %+v, want %+v", prog.Method, want)
	}

	if len(prog.Graph.Blocks()) != 3 {
		t.Fatalf("got %d blocks", len(prog.Graph.Blocks()))
	}
	if prog.Graph.Entry() != prog.Labels["try"] {
		t.Error("first block must be the entry")
	}
	if !prog.Labels["catch"].IsExceptionHandler() {
		t.Error("exception edge target must be a handler")
	}

	wantInstrs := []bytecode.Instruction{
		bytecode.LoadLocal{Slot: 0},
		bytecode.GetField{Field: bytecode.FieldRef{Class: "Acct", Name: "balance"}, Instance: true},
		bytecode.StoreLocal{Slot: 1},
	}
	if diff := cmp.Diff(wantInstrs, prog.Labels["try"].Instructions()); diff != "" {
		t.Errorf("try block instructions mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Instructions(t *testing.T) {
	tests := []struct {
		line string
		want bytecode.Instruction
	}{
		{"const 42", bytecode.PushConst{Literal: "42"}},
		{"getstatic Sys.out", bytecode.GetField{Field: bytecode.FieldRef{Class: "Sys", Name: "out"}}},
		{"putfield Acct.balance", bytecode.PutField{Field: bytecode.FieldRef{Class: "Acct", Name: "balance"}, Instance: true}},
		{"putstatic Sys.out", bytecode.PutField{Field: bytecode.FieldRef{Class: "Sys", Name: "out"}}},
		{"unop neg", bytecode.UnaryOp{Op: "neg"}},
		{"binop add", bytecode.BinaryOp{Op: "add"}},
		{"invoke Foo.bar args=2 instance returns", bytecode.Invoke{Target: "Foo.bar", ArgCount: 2, Instance: true, Returns: true}},
		{"invoke Foo.baz", bytecode.Invoke{Target: "Foo.baz"}},
		{"new Widget", bytecode.NewObject{Class: "Widget"}},
		{"dup", bytecode.Dup{}},
		{"pop", bytecode.Pop{}},
		{"swap", bytecode.Swap{}},
		{"branch 1", bytecode.Branch{Pops: 1}},
		{"throw", bytecode.Throw{}},
		{"return", bytecode.Return{}},
		{"return value", bytecode.Return{HasValue: true}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			prog, err := ParseString("method m locals=1 static\nblock b\n  " + tt.line + "\n")
			if err != nil {
				t.Fatalf("ParseString() error: %v", err)
			}
			got := prog.Labels["b"].Instructions()
			if len(got) != 1 {
				t.Fatalf("got %d instructions", len(got))
			}
			if diff := cmp.Diff(tt.want, got[0]); diff != "" {
				t.Errorf("instruction mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		listing string
	}{
		{"no method", "block b\n  return\n"},
		{"duplicate method", "method a locals=1 static\nmethod b locals=1 static\n"},
		{"missing locals", "method a static\n"},
		{"instance without receiver slot", "method a locals=0\n"},
		{"instruction outside block", "method a locals=1 static\nreturn\n"},
		{"unknown instruction", "method a locals=1 static\nblock b\n  frobnicate\n"},
		{"bad field ref", "method a locals=1 static\nblock b\n  getfield noDot\n"},
		{"duplicate label", "method a locals=1 static\nblock b\nblock b\n"},
		{"edge to unknown block", "method a locals=1 static\nblock b\nedge b nowhere branch\n"},
		{"bad edge kind", "method a locals=1 static\nblock b\nblock c\nedge b c sideways\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.listing)
			if !errors.Is(err, ErrSyntax) {
				t.Errorf("ParseString() error = %v, want ErrSyntax", err)
			}
		})
	}
}

func TestParse_EdgeKinds(t *testing.T) {
	prog, err := ParseString(`
method m locals=1 static
block a
block b
edge a b branch
edge a b fallthrough
`)
	if err != nil {
		t.Fatalf("ParseString() error: %v", err)
	}
	succs := prog.Labels["a"].Succs()
	if len(succs) != 2 {
		t.Fatalf("got %d edges", len(succs))
	}
	if succs[0].Kind != cfg.EdgeBranch || succs[1].Kind != cfg.EdgeFallthrough {
		t.Errorf("edge kinds = %v, %v", succs[0].Kind, succs[1].Kind)
	}
}
