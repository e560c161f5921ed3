package lower

import (
	"strings"
	"testing"

	"tsgen/pkg/ast"
	"tsgen/pkg/config"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
)

// compileProgram lowers statements with default options and fails the test
// on diagnostics.
func compileProgram(t *testing.T, stmts ...ast.Statement) *ir.Module {
	t.Helper()
	module, rep := compileProgramOpts(t, config.Default(), stmts...)
	if module == nil {
		var msgs []string
		for _, d := range rep.Finalized() {
			msgs = append(msgs, d.String())
		}
		t.Fatalf("lowering failed:\n%s", strings.Join(msgs, "\n"))
	}
	return module
}

func compileProgramOpts(t *testing.T, opts *config.Options, stmts ...ast.Statement) (*ir.Module, *errors.Reporter) {
	t.Helper()
	rep := errors.NewReporter()
	core := NewCore(opts, rep)
	module, _ := core.LowerProgram(ast.NewProgram(stmts...))
	return module, rep
}

// expectErrors lowers and returns the diagnostics, failing when lowering
// unexpectedly succeeds.
func expectErrors(t *testing.T, stmts ...ast.Statement) []*errors.Diagnostic {
	t.Helper()
	rep := errors.NewReporter()
	core := NewCore(config.Default(), rep)
	module, err := core.LowerProgram(ast.NewProgram(stmts...))
	if err == nil && module != nil {
		t.Fatalf("expected lowering to fail")
	}
	return rep.Finalized()
}

// interp builds the reference interpreter over a lowered module.
func interp(t *testing.T, module *ir.Module) *ir.Interp {
	t.Helper()
	in, err := ir.NewInterp(module)
	if err != nil {
		t.Fatalf("interp setup: %v", err)
	}
	return in
}

// fn builds a function declaration from a name, parameters, return type and
// body.
func fn(name string, params []*ast.Parameter, ret ast.TypeNode, body ...ast.Statement) *ast.FunctionDeclaration {
	return &ast.FunctionDeclaration{
		Func: &ast.FunctionLiteral{
			Name:       ast.NewIdent(name),
			Params:     params,
			ReturnType: ret,
			Body:       ast.NewBlock(body...),
		},
	}
}

func param(name string, typ ast.TypeNode) *ast.Parameter {
	return &ast.Parameter{Name: ast.NewIdent(name), Type: typ}
}

func typeName(name string) *ast.TypeName {
	return &ast.TypeName{Name: name}
}

func letDecl(name string, init ast.Expression) *ast.VariableStatement {
	return ast.NewVarDecl(ast.DeclLet, name, nil, init)
}

func constDecl(name string, init ast.Expression) *ast.VariableStatement {
	return ast.NewVarDecl(ast.DeclConst, name, nil, init)
}

// asInt unwraps an interpreter result into an int64.
func asInt(t *testing.T, v interface{}) int64 {
	t.Helper()
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		t.Fatalf("expected numeric result, got %T (%v)", v, v)
		return 0
	}
}

func tupleField(t *testing.T, v interface{}, name string) interface{} {
	t.Helper()
	tup, ok := v.(*ir.Tuple)
	if !ok {
		t.Fatalf("expected tuple, got %T", v)
	}
	cell := tup.Get(name)
	if cell == nil {
		t.Fatalf("tuple has no field %q (keys %v)", name, tup.Keys)
	}
	return cell.V
}
