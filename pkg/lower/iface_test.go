package lower

import (
	"testing"

	"tsgen/pkg/ast"
	"tsgen/pkg/ir"
)

// greeterProgram builds
//
//	interface P { name: string; greet?(): string; }
//	class A implements P { name = "a"; greet() { return "hi " + this.name; } }
//	class B implements P { name = "b"; }
func greeterProgram() []ast.Statement {
	iface := &ast.InterfaceDeclaration{
		Name: ast.NewIdent("P"),
		Members: []*ast.InterfaceMemberNode{
			{Name: "name", Type: typeName("string")},
			{Name: "greet", Optional: true, Method: &ast.FunctionLiteral{
				ReturnType: typeName("string"),
			}},
		},
	}
	clsA := &ast.ClassDeclaration{
		Name:       ast.NewIdent("A"),
		Implements: []ast.TypeNode{typeName("P")},
		Members: []*ast.ClassMember{
			{Kind: ast.MemberProperty, Name: "name", Init: ast.NewString("a")},
			{Kind: ast.MemberMethod, Name: "greet", Func: &ast.FunctionLiteral{
				Body: ast.NewBlock(ast.NewReturn(
					ast.NewInfix("+", ast.NewString("hi "),
						ast.NewMember(&ast.ThisExpression{}, "name")))),
			}},
		},
	}
	clsB := &ast.ClassDeclaration{
		Name:       ast.NewIdent("B"),
		Implements: []ast.TypeNode{typeName("P")},
		Members: []*ast.ClassMember{
			{Kind: ast.MemberProperty, Name: "name", Init: ast.NewString("b")},
		},
	}
	return []ast.Statement{iface, clsA, clsB}
}

func TestAdapterVTableCoverage(t *testing.T) {
	module := compileProgram(t, greeterProgram()...)

	for _, sym := range []string{"A.vtbl.P", "B.vtbl.P"} {
		vt := module.FindGlobal(sym)
		if vt == nil {
			t.Fatalf("adapter vtable %s missing", sym)
		}
		// One slot per interface member, in interface_pos_index order.
		ops := vt.Regions[0].EntryBlock().Ops
		var tuple *ir.Op
		for _, op := range ops {
			if op.Kind == ir.OpCreateTuple {
				tuple = op
			}
		}
		if tuple == nil {
			t.Fatalf("%s has no initializer tuple", sym)
		}
		if len(tuple.Operands) != 2 {
			t.Errorf("%s has %d slots, want 2 (name, greet)", sym, len(tuple.Operands))
		}
	}

	// A binds greet to the method; B records the -1 sentinel.
	bTable := module.FindGlobal("B.vtbl.P")
	var sentinel bool
	for _, op := range bTable.Regions[0].EntryBlock().Ops {
		if op.Kind == ir.OpConstant {
			if v, ok := op.Attr("value").(int64); ok && v == -1 {
				sentinel = true
			}
		}
	}
	if !sentinel {
		t.Errorf("B's adapter vtable does not record -1 for the missing greet")
	}

	aTable := module.FindGlobal("A.vtbl.P")
	var boundGreet bool
	for _, op := range aTable.Regions[0].EntryBlock().Ops {
		if op.Kind == ir.OpSymbolRef && op.StringAttr("identifier") == "A.greet" {
			boundGreet = true
		}
	}
	if !boundGreet {
		t.Errorf("A's adapter vtable does not bind greet to A.greet")
	}
}

func TestInterfaceDispatch(t *testing.T) {
	stmts := greeterProgram()
	// name access works for both implementations; greet dispatches on A.
	prog := append(stmts,
		fn("nameOf", []*ast.Parameter{param("which", typeName("number"))}, typeName("string"),
			&ast.IfStatement{
				Cond: ast.NewInfix("==", ast.NewIdent("which"), ast.NewInt(0)),
				Then: ast.NewBlock(
					ast.NewVarDecl(ast.DeclConst, "p", typeName("P"), &ast.NewExpression{Callee: ast.NewIdent("A")}),
					ast.NewReturn(ast.NewMember(ast.NewIdent("p"), "name")),
				),
			},
			ast.NewVarDecl(ast.DeclConst, "q", typeName("P"), &ast.NewExpression{Callee: ast.NewIdent("B")}),
			ast.NewReturn(ast.NewMember(ast.NewIdent("q"), "name")),
		),
		fn("greetA", nil, typeName("string"),
			ast.NewVarDecl(ast.DeclConst, "p", typeName("P"), &ast.NewExpression{Callee: ast.NewIdent("A")}),
			ast.NewReturn(ast.NewCall(ast.NewMember(ast.NewIdent("p"), "greet"))),
		),
		fn("greetB", nil, typeName("string"),
			ast.NewVarDecl(ast.DeclConst, "p", typeName("P"), &ast.NewExpression{Callee: ast.NewIdent("B")}),
			ast.NewReturn(ast.NewCall(ast.NewMember(ast.NewIdent("p"), "greet"))),
		),
	)
	module := compileProgram(t, prog...)
	in := interp(t, module)

	if got, err := in.Call("nameOf", int64(0)); err != nil || got != "a" {
		t.Errorf("nameOf(0) = %v, %v; want \"a\"", got, err)
	}
	if got, err := in.Call("nameOf", int64(1)); err != nil || got != "b" {
		t.Errorf("nameOf(1) = %v, %v; want \"b\"", got, err)
	}
	if got, err := in.Call("greetA"); err != nil || got != "hi a" {
		t.Errorf("greetA() = %v, %v; want \"hi a\"", got, err)
	}
	// Invoking the missing optional member through the interface traps.
	if _, err := in.Call("greetB"); err == nil {
		t.Errorf("greetB() should trap on the -1 sentinel")
	}
}

func TestExtendedInterfaceSlotOffsets(t *testing.T) {
	base := &ast.InterfaceDeclaration{
		Name: ast.NewIdent("Named"),
		Members: []*ast.InterfaceMemberNode{
			{Name: "name", Type: typeName("string")},
		},
	}
	ext := &ast.InterfaceDeclaration{
		Name:    ast.NewIdent("Aged"),
		Extends: []ast.TypeNode{typeName("Named")},
		Members: []*ast.InterfaceMemberNode{
			{Name: "age", Type: typeName("number")},
		},
	}
	cls := &ast.ClassDeclaration{
		Name:       ast.NewIdent("Person"),
		Implements: []ast.TypeNode{typeName("Aged")},
		Members: []*ast.ClassMember{
			{Kind: ast.MemberProperty, Name: "name", Init: ast.NewString("p")},
			{Kind: ast.MemberProperty, Name: "age", Init: ast.NewInt(30)},
		},
	}
	module := compileProgram(t, base, ext, cls)

	// The extended interface contributes the leading slots: the local
	// member's table index is interface_pos_index + extension offset.
	vt := module.FindGlobal("Person.vtbl.Aged")
	if vt == nil {
		t.Fatalf("Person.vtbl.Aged missing")
	}
	var tuple *ir.Op
	for _, op := range vt.Regions[0].EntryBlock().Ops {
		if op.Kind == ir.OpCreateTuple {
			tuple = op
		}
	}
	if tuple == nil || len(tuple.Operands) != 2 {
		t.Fatalf("adapter should carry 2 slots (name from Named, then age)")
	}
	first := tuple.Operands[0].Def
	second := tuple.Operands[1].Def
	if first.StringAttr("field") != "name" {
		t.Errorf("slot 0 binds %q, want the extended interface's name", first.StringAttr("field"))
	}
	if second.StringAttr("field") != "age" {
		t.Errorf("slot 1 binds %q, want age at pos_index + offset", second.StringAttr("field"))
	}
}

func TestTupleToInterfaceStructuralCast(t *testing.T) {
	stmts := greeterProgram()
	prog := append(stmts,
		fn("structural", nil, typeName("string"),
			constDecl("lit", &ast.ObjectLiteral{Properties: []*ast.ObjectProperty{
				{Key: "name", Value: ast.NewString("t")},
			}}),
			ast.NewVarDecl(ast.DeclConst, "p", typeName("P"),
				&ast.AsExpression{Expr: ast.NewIdent("lit"), Type: typeName("P")}),
			ast.NewReturn(ast.NewMember(ast.NewIdent("p"), "name")),
		),
	)
	module := compileProgram(t, prog...)
	in := interp(t, module)
	if got, err := in.Call("structural"); err != nil || got != "t" {
		t.Errorf("structural() = %v, %v; want \"t\"", got, err)
	}
}
