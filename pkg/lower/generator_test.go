package lower

import (
	"testing"

	"tsgen/pkg/ast"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// fibGenerator builds the AST of
//
//	function* g(n: number) {
//	  let a = 0, b = 1;
//	  for (let i = 0; i < n; i++) { yield a; const t = a; a = b; b = t + b; }
//	}
func fibGenerator() *ast.FunctionDeclaration {
	loop := &ast.ForStatement{
		Init: ast.NewVarDecl(ast.DeclLet, "i", nil, ast.NewInt(0)),
		Cond: ast.NewInfix("<", ast.NewIdent("i"), ast.NewIdent("n")),
		Post: &ast.PostfixExpression{Op: "++", Left: ast.NewIdent("i")},
		Body: ast.NewBlock(
			ast.NewExprStmt(&ast.YieldExpression{Arg: ast.NewIdent("a")}),
			constDecl("t", ast.NewIdent("a")),
			ast.NewExprStmt(ast.NewAssign(ast.NewIdent("a"), ast.NewIdent("b"))),
			ast.NewExprStmt(ast.NewAssign(ast.NewIdent("b"),
				ast.NewInfix("+", ast.NewIdent("t"), ast.NewIdent("b")))),
		),
	}
	decls := &ast.VariableStatement{
		Kind: ast.DeclLet,
		Declarations: []*ast.VariableDeclarator{
			{Target: ast.NewIdent("a"), Init: ast.NewInt(0)},
			{Target: ast.NewIdent("b"), Init: ast.NewInt(1)},
		},
	}
	return &ast.FunctionDeclaration{
		Func: &ast.FunctionLiteral{
			Name:        ast.NewIdent("g"),
			IsGenerator: true,
			Params:      []*ast.Parameter{param("n", typeName("number"))},
			Body:        ast.NewBlock(decls, loop),
		},
	}
}

func TestGeneratorRewriteShape(t *testing.T) {
	module := compileProgram(t, fibGenerator())

	g := module.FindFunc("g")
	if g == nil {
		t.Fatalf("generator function not emitted")
	}
	ft, _ := g.Attr("type").(*types.FunctionType)
	if ft == nil || len(ft.Results) != 1 {
		t.Fatalf("generator should return the state object")
	}
	obj, ok := ft.Results[0].(*types.TupleType)
	if !ok {
		t.Fatalf("generator result is %s, want a tuple", ft.Results[0])
	}
	if obj.FieldType(types.NamedID("step")) != types.I32 {
		t.Errorf("state object lacks an i32 step field: %s", obj)
	}
	if obj.FieldType(types.NamedID("next")) == nil {
		t.Errorf("state object lacks a next method: %s", obj)
	}
	if module.FindFunc("g.next") == nil {
		t.Errorf("next() was not emitted as a function")
	}
}

func TestFibonacciGeneratorSequence(t *testing.T) {
	module := compileProgram(t, fibGenerator())
	in := interp(t, module)

	obj, err := in.Call("g", int64(6))
	if err != nil {
		t.Fatalf("g(6): %v", err)
	}
	state, ok := obj.(*ir.Tuple)
	if !ok {
		t.Fatalf("generator returned %T, want tuple", obj)
	}
	next := state.Get("next")
	if next == nil {
		t.Fatalf("state object has no next")
	}

	want := []int64{0, 1, 1, 2, 3, 5}
	for i, expect := range want {
		res, err := in.CallBound(&ir.Bound{This: state, Fn: next.V})
		if err != nil {
			t.Fatalf("next() call %d: %v", i, err)
		}
		if done := tupleField(t, res, "done"); done != false {
			t.Fatalf("next() call %d: done=%v before the sequence ended", i, done)
		}
		if got := asInt(t, tupleField(t, res, "value")); got != expect {
			t.Fatalf("next() call %d: got %d, want %d", i, got, expect)
		}
	}

	res, err := in.CallBound(&ir.Bound{This: state, Fn: next.V})
	if err != nil {
		t.Fatalf("terminal next(): %v", err)
	}
	if done := tupleField(t, res, "done"); done != true {
		t.Fatalf("terminal next(): done=%v, want true", done)
	}
}

func TestYieldStateLabelsAreOrdered(t *testing.T) {
	module := compileProgram(t, fibGenerator())
	next := module.FindFunc("g.next")
	if next == nil {
		t.Fatalf("no next function")
	}
	var states []int
	var walk func(ops []*ir.Op)
	walk = func(ops []*ir.Op) {
		for _, op := range ops {
			if op.Kind == ir.OpStateLabel {
				states = append(states, op.IntAttr("state"))
			}
			for _, r := range op.Regions {
				for _, b := range r.Blocks {
					walk(b.Ops)
				}
			}
		}
	}
	walk(next.Regions[0].EntryBlock().Ops)
	if len(states) < 2 {
		t.Fatalf("expected entry and yield state labels, got %v", states)
	}
	if states[0] != 0 {
		t.Errorf("first state label is %d, want 0", states[0])
	}
	for i := 1; i < len(states); i++ {
		if states[i] != states[i-1]+1 {
			t.Errorf("state ordinals not monotonically increasing: %v", states)
			break
		}
	}
}
