package lower

import (
	"testing"

	"tsgen/pkg/ast"
	"tsgen/pkg/types"
)

// discriminatedUnionProgram builds
//
//	type S = {k: "a"; va: number} | {k: "b"; vb: string};
//	function f(s: S) { if (s.k === "a") { return s.va; } return s.vb; }
func discriminatedUnionProgram() []ast.Statement {
	alias := &ast.TypeAliasDeclaration{
		Name: ast.NewIdent("S"),
		Type: &ast.UnionTypeNode{Members: []ast.TypeNode{
			&ast.ObjectTypeNode{Members: []ast.ObjectTypeMember{
				{Name: "k", Type: &ast.LiteralTypeNode{Value: "a"}},
				{Name: "va", Type: typeName("number")},
			}},
			&ast.ObjectTypeNode{Members: []ast.ObjectTypeMember{
				{Name: "k", Type: &ast.LiteralTypeNode{Value: "b"}},
				{Name: "vb", Type: typeName("string")},
			}},
		}},
	}
	f := fn("f", []*ast.Parameter{param("s", typeName("S"))}, nil,
		&ast.IfStatement{
			Cond: ast.NewInfix("===",
				ast.NewMember(ast.NewIdent("s"), "k"), ast.NewString("a")),
			Then: ast.NewBlock(ast.NewReturn(ast.NewMember(ast.NewIdent("s"), "va"))),
		},
		ast.NewReturn(ast.NewMember(ast.NewIdent("s"), "vb")),
	)
	return []ast.Statement{alias, f}
}

func TestDiscriminatedUnionNarrowing(t *testing.T) {
	// Both returns must type-check against their narrowed arms with no
	// extra diagnostic.
	module := compileProgram(t, discriminatedUnionProgram()...)

	f := module.FindFunc("f")
	if f == nil {
		t.Fatalf("f not emitted")
	}
	ft := f.Attr("type").(*types.FunctionType)
	if len(ft.Results) != 1 {
		t.Fatalf("f should return a value")
	}
	// The unified return type covers both arms.
	rt := ft.Results[0]
	if !types.IsCastable(types.Number, rt) || !types.IsCastable(types.String, rt) {
		t.Errorf("return type %s does not cover number and string", rt)
	}
}

func TestTypeofNarrowingInThenBranch(t *testing.T) {
	// function pick(x: string | number) { if (typeof x === "string") { return x.length; } return x; }
	f := fn("pick", []*ast.Parameter{
		param("x", &ast.UnionTypeNode{Members: []ast.TypeNode{typeName("string"), typeName("number")}}),
	}, nil,
		&ast.IfStatement{
			Cond: ast.NewInfix("===",
				&ast.TypeofExpression{Operand: ast.NewIdent("x")}, ast.NewString("string")),
			Then: ast.NewBlock(ast.NewReturn(ast.NewMember(ast.NewIdent("x"), "length"))),
		},
		ast.NewReturn(ast.NewIdent("x")),
	)
	compileProgram(t, f)
}

func TestUnionRestoredOutsideBranch(t *testing.T) {
	// Accessing a string-only member on the union outside the narrowed
	// branch must fail: the narrowing does not leak.
	f := fn("leak", []*ast.Parameter{
		param("x", &ast.UnionTypeNode{Members: []ast.TypeNode{typeName("string"), typeName("number")}}),
	}, nil,
		&ast.IfStatement{
			Cond: ast.NewInfix("===",
				&ast.TypeofExpression{Operand: ast.NewIdent("x")}, ast.NewString("string")),
			Then: ast.NewBlock(ast.NewExprStmt(ast.NewMember(ast.NewIdent("x"), "length"))),
		},
		// x is string | number again here; .length is not on number.
		ast.NewExprStmt(ast.NewMember(ast.NewIdent("x"), "length")),
	)
	diags := expectErrors(t, f)
	if len(diags) == 0 {
		t.Fatalf("expected a diagnostic for member access on the restored union")
	}
}

func TestInstanceofNarrowing(t *testing.T) {
	stmts := shapeProgram()
	f := fn("pickArea", []*ast.Parameter{param("v", typeName("any"))}, nil,
		&ast.IfStatement{
			Cond: ast.NewInfix("instanceof", ast.NewIdent("v"), ast.NewIdent("Sq")),
			Then: ast.NewBlock(ast.NewReturn(
				ast.NewCall(ast.NewMember(ast.NewIdent("v"), "area")))),
		},
		ast.NewReturn(ast.NewInt(0)),
	)
	compileProgram(t, append(stmts, f)...)
}

func TestSwitchLiteralNarrowing(t *testing.T) {
	// A literal case expression narrows the discriminant within its body.
	f := fn("tag", []*ast.Parameter{
		param("x", &ast.UnionTypeNode{Members: []ast.TypeNode{
			&ast.LiteralTypeNode{Value: "on"},
			&ast.LiteralTypeNode{Value: "off"},
		}}),
	}, typeName("number"),
		&ast.SwitchStatement{
			Disc: ast.NewIdent("x"),
			Cases: []*ast.SwitchCase{
				{Test: ast.NewString("on"), Body: []ast.Statement{
					ast.NewReturn(ast.NewInt(1)),
				}},
				{Body: []ast.Statement{
					ast.NewReturn(ast.NewInt(0)),
				}},
			},
		},
	)
	module := compileProgram(t, f)
	in := interp(t, module)
	if got, err := in.Call("tag", "on"); err != nil || asInt(t, got) != 1 {
		t.Errorf("tag(on) = %v, %v; want 1", got, err)
	}
	if got, err := in.Call("tag", "off"); err != nil || asInt(t, got) != 0 {
		t.Errorf("tag(off) = %v, %v; want 0", got, err)
	}
}
