package lower

import (
	"testing"

	"tsgen/pkg/ast"
	"tsgen/pkg/config"
	"tsgen/pkg/errors"
	"tsgen/pkg/types"
)

func TestEnumWidthPromotion(t *testing.T) {
	// enum E { A, B = 1 << 31, C }
	enum := &ast.EnumDeclaration{
		Name: ast.NewIdent("E"),
		Members: []*ast.EnumMemberNode{
			{Name: "A"},
			{Name: "B", Init: ast.NewInfix("<<", ast.NewInt(1), ast.NewInt(31))},
			{Name: "C"},
		},
	}
	rep := errors.NewReporter()
	core := NewCore(config.Default(), rep)
	if _, err := core.LowerProgram(ast.NewProgram(enum)); err != nil {
		t.Fatalf("lowering failed: %v", rep.Finalized())
	}

	info := core.enumsByFQN["E"]
	if info == nil {
		t.Fatalf("enum not registered")
	}
	if info.Storage != types.I64 {
		t.Errorf("storage width %s, want i64", info.Storage)
	}
	if got := info.Values["C"]; got != (1<<31)+1 {
		t.Errorf("E.C = %d, want %d", got, int64(1<<31)+1)
	}
	if got := info.Values["A"]; got != 0 {
		t.Errorf("E.A = %d, want 0", got)
	}
}

func TestEnumImplicitSuccessors(t *testing.T) {
	enum := &ast.EnumDeclaration{
		Name: ast.NewIdent("Small"),
		Members: []*ast.EnumMemberNode{
			{Name: "A"},
			{Name: "B", Init: ast.NewInt(10)},
			{Name: "C"},
			{Name: "D"},
		},
	}
	rep := errors.NewReporter()
	core := NewCore(config.Default(), rep)
	if _, err := core.LowerProgram(ast.NewProgram(enum)); err != nil {
		t.Fatalf("lowering failed: %v", rep.Finalized())
	}
	info := core.enumsByFQN["Small"]
	if info.Storage != types.I32 {
		t.Errorf("storage width %s, want i32", info.Storage)
	}
	want := map[string]int64{"A": 0, "B": 10, "C": 11, "D": 12}
	for name, expect := range want {
		if got := info.Values[name]; got != expect {
			t.Errorf("Small.%s = %d, want %d", name, got, expect)
		}
	}
}

func TestEnumMemberAccessFolds(t *testing.T) {
	enum := &ast.EnumDeclaration{
		Name: ast.NewIdent("E"),
		Members: []*ast.EnumMemberNode{
			{Name: "A"}, {Name: "B"},
		},
	}
	f := fn("pick", nil, nil,
		ast.NewReturn(ast.NewMember(ast.NewIdent("E"), "B")),
	)
	module := compileProgram(t, enum, f)
	in := interp(t, module)
	out, err := in.Call("pick")
	if err != nil {
		t.Fatalf("pick(): %v", err)
	}
	if asInt(t, out) != 1 {
		t.Errorf("E.B = %v, want 1", out)
	}
}

func TestEnumRequiresConstantInitializer(t *testing.T) {
	enum := &ast.EnumDeclaration{
		Name: ast.NewIdent("Bad"),
		Members: []*ast.EnumMemberNode{
			{Name: "A", Init: ast.NewCall(ast.NewIdent("parseInt"), ast.NewString("1"))},
		},
	}
	diags := expectErrors(t, enum)
	if len(diags) == 0 {
		t.Fatalf("expected a diagnostic for a non-constant enum initializer")
	}
}
