package driver

import (
	"testing"

	"tsgen/pkg/config"
	"tsgen/pkg/ir"
)

const sampleAST = `{
  "kind": "Program",
  "statements": [
    {
      "kind": "FunctionDeclaration",
      "name": "inc",
      "params": [{"name": "v", "type": {"kind": "TypeName", "name": "number"}}],
      "body": [
        {"kind": "Return", "expr": {"kind": "Infix", "op": "+",
          "left": {"kind": "Identifier", "name": "v"},
          "right": {"kind": "Number", "value": 1}}}
      ]
    },
    {
      "kind": "Enum",
      "name": "Mode",
      "members": [{"kind": "member", "name": "Off"}, {"kind": "member", "name": "On"}]
    }
  ]
}`

func TestDecodeAndCompile(t *testing.T) {
	prog, err := DecodeProgram([]byte(sampleAST))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(prog.Statements) != 2 {
		t.Fatalf("decoded %d statements, want 2", len(prog.Statements))
	}

	res := Compile(prog, config.Default())
	if !res.OK {
		t.Fatalf("compile failed: %v", res.Diagnostics)
	}
	if res.Module.FindFunc("inc") == nil {
		t.Fatalf("inc not emitted")
	}

	in, err := ir.NewInterp(res.Module)
	if err != nil {
		t.Fatalf("interp: %v", err)
	}
	out, err := in.Call("inc", int64(41))
	if err != nil {
		t.Fatalf("inc: %v", err)
	}
	if n, ok := out.(float64); !ok || n != 42 {
		t.Errorf("inc(41) = %v, want 42", out)
	}
}

func TestDecodeRejectsUnknownKinds(t *testing.T) {
	if _, err := DecodeProgram([]byte(`{"kind": "Program", "statements": [{"kind": "Mystery"}]}`)); err == nil {
		t.Fatalf("unknown statement kind must fail")
	}
	if _, err := DecodeProgram([]byte(`{"kind": "NotAProgram"}`)); err == nil {
		t.Fatalf("non-program root must fail")
	}
}

func TestCompileSurfacesDiagnostics(t *testing.T) {
	bad := `{
  "kind": "Program",
  "statements": [
    {"kind": "FunctionDeclaration", "name": "broken", "params": [],
     "body": [{"kind": "Return", "expr": {"kind": "Call",
       "callee": {"kind": "Identifier", "name": "missing"}}}]}
  ]
}`
	prog, err := DecodeProgram([]byte(bad))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	res := Compile(prog, config.Default())
	if res.OK {
		t.Fatalf("compile of an unresolved call must fail")
	}
	if len(res.Diagnostics) == 0 {
		t.Errorf("failure carried no diagnostics")
	}
}
