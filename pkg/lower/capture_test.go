package lower

import (
	"testing"

	"tsgen/pkg/ast"
	"tsgen/pkg/ir"
)

// thunksProgram builds
//
//	function mk() { let xs = [1, 2, 3]; return xs.map(x => () => x); }
func thunksProgram() *ast.FunctionDeclaration {
	inner := &ast.FunctionLiteral{
		IsArrow: true,
		Body:    ast.NewBlock(ast.NewReturn(ast.NewIdent("x"))),
	}
	outer := &ast.FunctionLiteral{
		IsArrow: true,
		Params:  []*ast.Parameter{{Name: ast.NewIdent("x")}},
		Body:    ast.NewBlock(ast.NewReturn(inner)),
	}
	return fn("mk", nil, nil,
		letDecl("xs", &ast.ArrayLiteral{Elements: []ast.Expression{
			ast.NewInt(1), ast.NewInt(2), ast.NewInt(3),
		}}),
		ast.NewReturn(ast.NewCall(
			ast.NewMember(ast.NewIdent("xs"), "map"), outer)),
	)
}

func TestCaptureByValueAcrossMap(t *testing.T) {
	module := compileProgram(t, thunksProgram())
	in := interp(t, module)

	out, err := in.Call("mk")
	if err != nil {
		t.Fatalf("mk(): %v", err)
	}
	arr, ok := out.(*ir.Array)
	if !ok {
		t.Fatalf("mk() returned %T, want array", out)
	}
	if len(arr.Elems) != 3 {
		t.Fatalf("mk() returned %d thunks, want 3", len(arr.Elems))
	}

	// Each thunk's capture tuple holds its own x by value.
	want := []int64{1, 2, 3}
	for i, cell := range arr.Elems {
		b, ok := cell.V.(*ir.Bound)
		if !ok {
			t.Fatalf("thunk %d is %T, want bound function", i, cell.V)
		}
		got, err := in.CallBound(b)
		if err != nil {
			t.Fatalf("thunk %d: %v", i, err)
		}
		if asInt(t, got) != want[i] {
			t.Errorf("thunk %d returned %v, want %d", i, got, want[i])
		}
	}
}

func TestCaptureSetCompleteness(t *testing.T) {
	// function make(): the closure must capture exactly the outer local it
	// reads, and nothing resolvable in its own scope.
	outer := fn("make", nil, nil,
		letDecl("seen", ast.NewInt(41)),
		ast.NewReturn(&ast.FunctionLiteral{
			IsArrow: true,
			Body: ast.NewBlock(
				letDecl("own", ast.NewInt(1)),
				ast.NewReturn(ast.NewInfix("+", ast.NewIdent("seen"), ast.NewIdent("own"))),
			),
		}),
	)
	module := compileProgram(t, outer)

	// Find the emitted lambda and inspect its capture parameter.
	var lambda *ir.Op
	for _, op := range module.BodyBlock().Ops {
		if op.Kind == ir.OpFunc && op.StringAttr("sym_name") != "make" {
			lambda = op
		}
	}
	if lambda == nil {
		t.Fatalf("no lambda emitted")
	}

	in := interp(t, module)
	out, err := in.Call("make")
	if err != nil {
		t.Fatalf("make(): %v", err)
	}
	b, ok := out.(*ir.Bound)
	if !ok {
		t.Fatalf("make() returned %T, want bound function", out)
	}
	tup, ok := b.This.(*ir.Tuple)
	if !ok {
		t.Fatalf("capture record is %T, want tuple", b.This)
	}
	if len(tup.Keys) != 1 || tup.Keys[0] != "seen" {
		t.Errorf("capture set %v, want exactly [seen]", tup.Keys)
	}

	got, err := in.CallBound(b)
	if err != nil {
		t.Fatalf("thunk: %v", err)
	}
	if asInt(t, got) != 42 {
		t.Errorf("thunk returned %v, want 42", got)
	}
}

func TestCaptureByReferenceSeesWrites(t *testing.T) {
	// let n = 0; const bump = () => { n = n + 1; }; bump(); bump(); return n;
	prog := fn("count", nil, typeName("number"),
		letDecl("n", ast.NewInt(0)),
		constDecl("bump", &ast.FunctionLiteral{
			IsArrow: true,
			Body: ast.NewBlock(ast.NewExprStmt(
				ast.NewAssign(ast.NewIdent("n"),
					ast.NewInfix("+", ast.NewIdent("n"), ast.NewInt(1))))),
		}),
		ast.NewExprStmt(ast.NewCall(ast.NewIdent("bump"))),
		ast.NewExprStmt(ast.NewCall(ast.NewIdent("bump"))),
		ast.NewReturn(ast.NewIdent("n")),
	)
	module := compileProgram(t, prog)
	in := interp(t, module)
	out, err := in.Call("count")
	if err != nil {
		t.Fatalf("count(): %v", err)
	}
	if asInt(t, out) != 2 {
		t.Errorf("count() = %v, want 2 (writes through the capture must be visible)", out)
	}
}
