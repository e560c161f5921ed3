package lower

import (
	"testing"

	"tsgen/pkg/ast"
	"tsgen/pkg/ir"
)

func TestWhileLoopLowering(t *testing.T) {
	// function sum(n: number) { let s = 0; let i = 0; while (i < n) { s = s + i; i++; } return s; }
	prog := fn("sum", []*ast.Parameter{param("n", typeName("number"))}, nil,
		letDecl("s", ast.NewInt(0)),
		letDecl("i", ast.NewInt(0)),
		&ast.WhileStatement{
			Cond: ast.NewInfix("<", ast.NewIdent("i"), ast.NewIdent("n")),
			Body: ast.NewBlock(
				ast.NewExprStmt(ast.NewAssign(ast.NewIdent("s"),
					ast.NewInfix("+", ast.NewIdent("s"), ast.NewIdent("i")))),
				ast.NewExprStmt(&ast.PostfixExpression{Op: "++", Left: ast.NewIdent("i")}),
			),
		},
		ast.NewReturn(ast.NewIdent("s")),
	)
	module := compileProgram(t, prog)
	in := interp(t, module)
	out, err := in.Call("sum", int64(5))
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if asInt(t, out) != 10 {
		t.Errorf("sum(5) = %v, want 10", out)
	}
}

func TestBreakBindsLabel(t *testing.T) {
	// outer: for (let i = 0; i < 10; i++) { if (i == 3) break outer; hits = hits + 1; }
	prog := fn("count", nil, typeName("number"),
		letDecl("hits", ast.NewInt(0)),
		&ast.LabeledStatement{
			Label: "outer",
			Body: &ast.ForStatement{
				Init: letDecl("i", ast.NewInt(0)),
				Cond: ast.NewInfix("<", ast.NewIdent("i"), ast.NewInt(10)),
				Post: &ast.PostfixExpression{Op: "++", Left: ast.NewIdent("i")},
				Body: ast.NewBlock(
					&ast.IfStatement{
						Cond: ast.NewInfix("==", ast.NewIdent("i"), ast.NewInt(3)),
						Then: &ast.BreakStatement{Label: "outer"},
					},
					ast.NewExprStmt(ast.NewAssign(ast.NewIdent("hits"),
						ast.NewInfix("+", ast.NewIdent("hits"), ast.NewInt(1)))),
				),
			},
		},
		ast.NewReturn(ast.NewIdent("hits")),
	)
	module := compileProgram(t, prog)
	in := interp(t, module)
	out, err := in.Call("count")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if asInt(t, out) != 3 {
		t.Errorf("count() = %v, want 3", out)
	}
}

func TestForOfOverArrayBindsElements(t *testing.T) {
	prog := fn("total", nil, typeName("number"),
		letDecl("acc", ast.NewInt(0)),
		&ast.ForOfStatement{
			Kind:     ast.DeclConst,
			Target:   ast.NewIdent("v"),
			Iterable: &ast.ArrayLiteral{Elements: []ast.Expression{ast.NewInt(2), ast.NewInt(3), ast.NewInt(5)}},
			Body: ast.NewBlock(
				ast.NewExprStmt(ast.NewAssign(ast.NewIdent("acc"),
					ast.NewInfix("+", ast.NewIdent("acc"), ast.NewIdent("v")))),
			),
		},
		ast.NewReturn(ast.NewIdent("acc")),
	)
	module := compileProgram(t, prog)
	in := interp(t, module)
	out, err := in.Call("total")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if asInt(t, out) != 10 {
		t.Errorf("total() = %v, want 10", out)
	}
}

func TestForOfIteratorProtocol(t *testing.T) {
	// The generator object carries a `next` property, so for-of must take
	// the ES2015 iterator protocol path.
	collect := fn("collect", []*ast.Parameter{param("n", typeName("number"))}, typeName("number"),
		letDecl("acc", ast.NewInt(0)),
		&ast.ForOfStatement{
			Kind:     ast.DeclConst,
			Target:   ast.NewIdent("v"),
			Iterable: ast.NewCall(ast.NewIdent("g"), ast.NewIdent("n")),
			Body: ast.NewBlock(
				ast.NewExprStmt(ast.NewAssign(ast.NewIdent("acc"),
					ast.NewInfix("+", ast.NewIdent("acc"), ast.NewIdent("v")))),
			),
		},
		ast.NewReturn(ast.NewIdent("acc")),
	)
	module := compileProgram(t, fibGenerator(), collect)
	in := interp(t, module)
	out, err := in.Call("collect", int64(6))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	// 0+1+1+2+3+5
	if asInt(t, out) != 12 {
		t.Errorf("collect(6) = %v, want 12", out)
	}
}

func TestTryCatchBindsThrownValue(t *testing.T) {
	prog := fn("guard", []*ast.Parameter{param("v", typeName("number"))}, typeName("number"),
		&ast.TryStatement{
			Block: ast.NewBlock(
				&ast.IfStatement{
					Cond: ast.NewInfix("<", ast.NewIdent("v"), ast.NewInt(0)),
					Then: &ast.ThrowStatement{Value: ast.NewInt(-1)},
				},
				ast.NewReturn(ast.NewIdent("v")),
			),
			CatchVar: ast.NewIdent("e"),
			Catch: ast.NewBlock(
				ast.NewReturn(ast.NewIdent("e")),
			),
		},
	)
	module := compileProgram(t, prog)

	// try marks the function as needing a personality routine.
	g := module.FindFunc("guard")
	if g == nil || !g.BoolAttr("personality") {
		t.Errorf("guard should carry the personality attribute")
	}

	in := interp(t, module)
	if out, err := in.Call("guard", int64(7)); err != nil || asInt(t, out) != 7 {
		t.Errorf("guard(7) = %v, %v; want 7", out, err)
	}
	if out, err := in.Call("guard", int64(-5)); err != nil || asInt(t, out) != -1 {
		t.Errorf("guard(-5) = %v, %v; want -1 from the catch binding", out, err)
	}
}

func TestSwitchFallThrough(t *testing.T) {
	prog := fn("classify", []*ast.Parameter{param("v", typeName("number"))}, typeName("number"),
		letDecl("acc", ast.NewInt(0)),
		&ast.SwitchStatement{
			Disc: ast.NewIdent("v"),
			Cases: []*ast.SwitchCase{
				{Test: ast.NewInt(1), Body: []ast.Statement{
					ast.NewExprStmt(ast.NewAssign(ast.NewIdent("acc"),
						ast.NewInfix("+", ast.NewIdent("acc"), ast.NewInt(10)))),
					// no break: falls through
				}},
				{Test: ast.NewInt(2), Body: []ast.Statement{
					ast.NewExprStmt(ast.NewAssign(ast.NewIdent("acc"),
						ast.NewInfix("+", ast.NewIdent("acc"), ast.NewInt(100)))),
					&ast.BreakStatement{},
				}},
				{Body: []ast.Statement{
					ast.NewExprStmt(ast.NewAssign(ast.NewIdent("acc"),
						ast.NewInfix("+", ast.NewIdent("acc"), ast.NewInt(1000)))),
				}},
			},
		},
		ast.NewReturn(ast.NewIdent("acc")),
	)
	module := compileProgram(t, prog)
	in := interp(t, module)

	if out, _ := in.Call("classify", int64(1)); asInt(t, out) != 110 {
		t.Errorf("classify(1) = %v, want 110 (fall through into case 2)", out)
	}
	if out, _ := in.Call("classify", int64(2)); asInt(t, out) != 100 {
		t.Errorf("classify(2) = %v, want 100", out)
	}
	if out, _ := in.Call("classify", int64(9)); asInt(t, out) != 1000 {
		t.Errorf("classify(9) = %v, want 1000 (default)", out)
	}
}

func TestTemplateLiteralFoldsConstants(t *testing.T) {
	prog := fn("greet", nil, typeName("string"),
		ast.NewReturn(&ast.TemplateLiteral{
			Quasis: []string{"hi ", "!"},
			Exprs:  []ast.Expression{ast.NewString("there")},
		}),
	)
	module := compileProgram(t, prog)
	in := interp(t, module)
	out, err := in.Call("greet")
	if err != nil || out != "hi there!" {
		t.Errorf("greet() = %v, %v; want \"hi there!\"", out, err)
	}
}

func TestPrintBuiltinCollectsOutput(t *testing.T) {
	prog := fn("say", nil, nil,
		ast.NewExprStmt(ast.NewCall(ast.NewIdent("print"), ast.NewString("hello"), ast.NewInt(1))),
	)
	module := compileProgram(t, prog)
	in := interp(t, module)
	if _, err := in.Call("say"); err != nil {
		t.Fatalf("say: %v", err)
	}
	if len(in.Output) != 1 || in.Output[0] != "hello 1" {
		t.Errorf("print output %v, want [hello 1]", in.Output)
	}
}

func TestDestructuringDeclaration(t *testing.T) {
	prog := fn("firstTwo", nil, typeName("number"),
		&ast.VariableStatement{
			Kind: ast.DeclLet,
			Declarations: []*ast.VariableDeclarator{{
				Target: &ast.ArrayPattern{Elements: []ast.BindingTarget{
					ast.NewIdent("a"), ast.NewIdent("b"),
				}},
				Init: &ast.ArrayLiteral{Elements: []ast.Expression{
					ast.NewInt(4), ast.NewInt(9), ast.NewInt(16),
				}},
			}},
		},
		ast.NewReturn(ast.NewInfix("+", ast.NewIdent("a"), ast.NewIdent("b"))),
	)
	module := compileProgram(t, prog)
	in := interp(t, module)
	out, err := in.Call("firstTwo")
	if err != nil {
		t.Fatalf("firstTwo: %v", err)
	}
	if asInt(t, out) != 13 {
		t.Errorf("firstTwo() = %v, want 13", out)
	}
}

func TestNamespaceMemberResolution(t *testing.T) {
	mod := &ast.ModuleDeclaration{
		Name: ast.NewIdent("util"),
		Body: []ast.Statement{
			fn("double", []*ast.Parameter{param("v", typeName("number"))}, nil,
				ast.NewReturn(ast.NewInfix("*", ast.NewIdent("v"), ast.NewInt(2)))),
		},
	}
	use := fn("use", nil, nil,
		ast.NewReturn(ast.NewCall(
			ast.NewMember(ast.NewIdent("util"), "double"), ast.NewInt(8))),
	)
	module := compileProgram(t, mod, use)
	if module.FindFunc("util.double") == nil {
		t.Fatalf("namespace function not emitted under its fqn")
	}
	in := interp(t, module)
	out, err := in.Call("use")
	if err != nil {
		t.Fatalf("use: %v", err)
	}
	if asInt(t, out) != 16 {
		t.Errorf("use() = %v, want 16", out)
	}
}

func TestImportEqualsBindsShortName(t *testing.T) {
	mod := &ast.ModuleDeclaration{
		Name: ast.NewIdent("deep"),
		Body: []ast.Statement{
			fn("id", []*ast.Parameter{param("v", typeName("number"))}, nil,
				ast.NewReturn(ast.NewIdent("v"))),
		},
	}
	imp := &ast.ImportEqualsDeclaration{Name: ast.NewIdent("d"), Target: "deep"}
	use := fn("use", nil, nil,
		ast.NewReturn(ast.NewCall(ast.NewMember(ast.NewIdent("d"), "id"), ast.NewInt(5))),
	)
	module := compileProgram(t, mod, imp, use)
	in := interp(t, module)
	out, err := in.Call("use")
	if err != nil {
		t.Fatalf("use: %v", err)
	}
	if asInt(t, out) != 5 {
		t.Errorf("use() = %v, want 5", out)
	}
}

func TestGlobalVariableLowering(t *testing.T) {
	global := ast.NewVarDecl(ast.DeclLet, "counter", typeName("number"), ast.NewInt(3))
	read := fn("read", nil, typeName("number"),
		ast.NewReturn(ast.NewIdent("counter")),
	)
	module := compileProgram(t, global, read)
	if module.FindGlobal("counter") == nil {
		t.Fatalf("global op missing")
	}
	in := interp(t, module)
	out, err := in.Call("read")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if asInt(t, out) != 3 {
		t.Errorf("read() = %v, want 3", out)
	}
}

func TestVerifierAcceptsEmittedModules(t *testing.T) {
	module := compileProgram(t, append(shapeProgram(), fibGenerator())...)
	if err := ir.Verify(module); err != nil {
		t.Fatalf("verifier rejected lowered module: %v", err)
	}
}
