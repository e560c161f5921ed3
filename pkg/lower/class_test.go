package lower

import (
	"testing"

	"tsgen/pkg/ast"
	"tsgen/pkg/config"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// shapeProgram builds
//
//	abstract class Shape { abstract area(): number; }
//	class Sq extends Shape { constructor(public s: number) { super(); } area() { return this.s * this.s; } }
func shapeProgram() []ast.Statement {
	shape := &ast.ClassDeclaration{
		Name:       ast.NewIdent("Shape"),
		IsAbstract: true,
		Members: []*ast.ClassMember{
			{
				Kind:       ast.MemberMethod,
				Name:       "area",
				IsAbstract: true,
				Func: &ast.FunctionLiteral{
					ReturnType: typeName("number"),
				},
			},
		},
	}
	sq := &ast.ClassDeclaration{
		Name:    ast.NewIdent("Sq"),
		Extends: []ast.Expression{ast.NewIdent("Shape")},
		Members: []*ast.ClassMember{
			{
				Kind: ast.MemberConstructor,
				Name: "constructor",
				Func: &ast.FunctionLiteral{
					Params: []*ast.Parameter{{
						Name:           ast.NewIdent("s"),
						Type:           typeName("number"),
						AccessModifier: "public",
					}},
					Body: ast.NewBlock(
						ast.NewExprStmt(ast.NewCall(&ast.SuperExpression{})),
					),
				},
			},
			{
				Kind: ast.MemberMethod,
				Name: "area",
				Func: &ast.FunctionLiteral{
					Body: ast.NewBlock(ast.NewReturn(
						ast.NewInfix("*",
							ast.NewMember(&ast.ThisExpression{}, "s"),
							ast.NewMember(&ast.ThisExpression{}, "s")))),
				},
			},
		},
	}
	return []ast.Statement{shape, sq}
}

func TestVirtualSlotSharedWithOverride(t *testing.T) {
	rep := errors.NewReporter()
	core := NewCore(config.Default(), rep)
	stmts := shapeProgram()
	if _, err := core.LowerProgram(ast.NewProgram(stmts...)); err != nil {
		t.Fatalf("lowering failed: %v", rep.Finalized())
	}

	shape := core.classesByFQN["Shape"]
	sq := core.classesByFQN["Sq"]
	if shape == nil || sq == nil {
		t.Fatalf("class infos missing")
	}
	base := shape.FindMethod("area")
	override := sq.FindMethod("area")
	if base == nil || override == nil {
		t.Fatalf("area methods missing")
	}
	if !base.IsVirtual || !override.IsVirtual {
		t.Fatalf("area must be virtual on both classes")
	}
	if base.VirtualIndex != override.VirtualIndex {
		t.Errorf("override slot %d differs from base slot %d", override.VirtualIndex, base.VirtualIndex)
	}

	// Within one linearization, each name maps to exactly one slot.
	seen := map[int]string{}
	for _, m := range sq.Methods {
		if !m.IsVirtual {
			continue
		}
		if prev, taken := seen[m.VirtualIndex]; taken && prev != m.Name {
			t.Errorf("slot %d claimed by both %q and %q", m.VirtualIndex, prev, m.Name)
		}
		seen[m.VirtualIndex] = m.Name
	}
}

func TestVirtualDispatchThroughBasePointer(t *testing.T) {
	stmts := shapeProgram()
	main := fn("callArea", []*ast.Parameter{param("k", typeName("number"))}, typeName("number"),
		ast.NewVarDecl(ast.DeclConst, "sh", typeName("Shape"),
			&ast.NewExpression{Callee: ast.NewIdent("Sq"), Args: []ast.Expression{ast.NewIdent("k")}}),
		ast.NewReturn(ast.NewCall(ast.NewMember(ast.NewIdent("sh"), "area"))),
	)
	module := compileProgram(t, append(stmts, main)...)
	in := interp(t, module)
	out, err := in.Call("callArea", int64(7))
	if err != nil {
		t.Fatalf("callArea: %v", err)
	}
	if got := asInt(t, out); got != 49 {
		t.Errorf("dispatch through Shape pointer returned %d, want 49", got)
	}
}

func TestAbstractClassCannotInstantiate(t *testing.T) {
	stmts := shapeProgram()
	bad := fn("make", nil, nil,
		ast.NewReturn(&ast.NewExpression{Callee: ast.NewIdent("Shape")}),
	)
	diags := expectErrors(t, append(stmts, bad)...)
	if len(diags) == 0 {
		t.Fatalf("expected a diagnostic for instantiating an abstract class")
	}
}

func TestMissingAbstractImplementationIsRejected(t *testing.T) {
	shape := shapeProgram()[0]
	hollow := &ast.ClassDeclaration{
		Name:    ast.NewIdent("Hollow"),
		Extends: []ast.Expression{ast.NewIdent("Shape")},
	}
	diags := expectErrors(t, shape, hollow)
	if len(diags) == 0 {
		t.Fatalf("expected a diagnostic for an unimplemented abstract method")
	}
}

func TestInstanceofUsesRTTI(t *testing.T) {
	stmts := shapeProgram()
	check := fn("isShape", nil, typeName("boolean"),
		constDecl("sq", &ast.NewExpression{Callee: ast.NewIdent("Sq"), Args: []ast.Expression{ast.NewInt(2)}}),
		ast.NewReturn(ast.NewInfix("instanceof", ast.NewIdent("sq"), ast.NewIdent("Sq"))),
	)
	module := compileProgram(t, append(stmts, check)...)

	if module.FindGlobal("Sq.rtti") == nil {
		t.Errorf("Sq.rtti global missing")
	}
	if module.FindFunc("Sq.instanceof") == nil {
		t.Errorf("Sq.instanceof method missing")
	}
	in := interp(t, module)
	out, err := in.Call("isShape")
	if err != nil {
		t.Fatalf("isShape: %v", err)
	}
	if out != true {
		t.Errorf("sq instanceof Sq = %v, want true", out)
	}
}

func TestClassVTableGlobalLayout(t *testing.T) {
	module := compileProgram(t, shapeProgram()...)
	vt := module.FindGlobal("Sq.vtable")
	if vt == nil {
		t.Fatalf("Sq.vtable missing")
	}
	tt, ok := vt.Attr("type").(*types.TupleType)
	if !ok {
		t.Fatalf("vtable type is %v, want tuple", vt.Attr("type"))
	}
	// instanceof + area
	if len(tt.Fields) != 2 {
		t.Errorf("Sq vtable has %d slots, want 2", len(tt.Fields))
	}
	// The initializer must reference Sq's own override, not Shape's.
	var entries []string
	for _, op := range vt.Regions[0].EntryBlock().Ops {
		if op.Kind == ir.OpSymbolRef {
			entries = append(entries, op.StringAttr("identifier"))
		}
	}
	found := false
	for _, e := range entries {
		if e == "Sq.area" {
			found = true
		}
	}
	if !found {
		t.Errorf("Sq.vtable entries %v lack Sq.area", entries)
	}
}
