package lower

import (
	"testing"

	"tsgen/pkg/ast"
)

// celsiusProgram builds a class with a get/set accessor pair over a backing
// field.
func celsiusProgram() *ast.ClassDeclaration {
	return &ast.ClassDeclaration{
		Name: ast.NewIdent("Temp"),
		Members: []*ast.ClassMember{
			{Kind: ast.MemberProperty, Name: "c", Init: ast.NewInt(0)},
			{Kind: ast.MemberGetAccessor, Name: "f", Func: &ast.FunctionLiteral{
				Body: ast.NewBlock(ast.NewReturn(
					ast.NewInfix("+",
						ast.NewInfix("*", ast.NewMember(&ast.ThisExpression{}, "c"), ast.NewInt(9)),
						ast.NewInt(32)))),
			}},
			{Kind: ast.MemberSetAccessor, Name: "f", Func: &ast.FunctionLiteral{
				Params: []*ast.Parameter{{Name: ast.NewIdent("v")}},
				Body: ast.NewBlock(ast.NewExprStmt(
					ast.NewAssign(ast.NewMember(&ast.ThisExpression{}, "c"),
						ast.NewInfix("-", ast.NewIdent("v"), ast.NewInt(32))))),
			}},
		},
	}
}

func TestAccessorReadAndWrite(t *testing.T) {
	use := fn("roundtrip", nil, typeName("number"),
		constDecl("t", &ast.NewExpression{Callee: ast.NewIdent("Temp")}),
		// write accessor: t.f = 41 stores 41 - 32 = 9 into c
		ast.NewExprStmt(ast.NewAssign(ast.NewMember(ast.NewIdent("t"), "f"), ast.NewInt(41))),
		// read accessor: 9 * 9 + 32 = 113
		ast.NewReturn(ast.NewMember(ast.NewIdent("t"), "f")),
	)
	module := compileProgram(t, celsiusProgram(), use)

	if module.FindFunc("Temp.get_f") == nil || module.FindFunc("Temp.set_f") == nil {
		t.Fatalf("accessor functions not emitted")
	}

	in := interp(t, module)
	out, err := in.Call("roundtrip")
	if err != nil {
		t.Fatalf("roundtrip: %v", err)
	}
	if asInt(t, out) != 113 {
		t.Errorf("roundtrip() = %v, want 113", out)
	}
}

func TestObjectLiteralMethodSeesObjectThis(t *testing.T) {
	// const o = { n: 5, double() { return this.n * 2 } }; return o.double();
	use := fn("run", nil, typeName("number"),
		constDecl("o", &ast.ObjectLiteral{Properties: []*ast.ObjectProperty{
			{Key: "n", Value: ast.NewInt(5)},
			{Key: "double", IsMethod: true, Value: &ast.FunctionLiteral{
				Body: ast.NewBlock(ast.NewReturn(
					ast.NewInfix("*", ast.NewMember(&ast.ThisExpression{}, "n"), ast.NewInt(2)))),
			}},
		}}),
		ast.NewReturn(ast.NewCall(ast.NewMember(ast.NewIdent("o"), "double"))),
	)
	module := compileProgram(t, use)
	in := interp(t, module)
	out, err := in.Call("run")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if asInt(t, out) != 10 {
		t.Errorf("run() = %v, want 10", out)
	}
}
