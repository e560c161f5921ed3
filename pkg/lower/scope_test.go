package lower

import (
	"testing"

	"tsgen/pkg/config"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

func newTestCore() *Core {
	return NewCore(config.Default(), errors.NewReporter())
}

func TestScopedDeclareAndLookup(t *testing.T) {
	c := newTestCore()
	c.EnterScope()
	defer c.LeaveScope()

	decl := &VarInfo{Name: "x", FullName: "x", Type: types.Number}
	if !c.Declare("x", decl, DeclareOptions{}) {
		t.Fatalf("declare failed")
	}
	// Same scope, same name: rejected unless redeclare is allowed.
	if c.Declare("x", &VarInfo{Name: "x"}, DeclareOptions{}) {
		t.Errorf("duplicate declare must fail")
	}
	if !c.Declare("x", &VarInfo{Name: "x", Type: types.String}, DeclareOptions{Redeclare: true}) {
		t.Errorf("redeclare must be allowed when requested")
	}

	// Inner scopes shadow and restore.
	c.EnterScope()
	inner := &VarInfo{Name: "x", FullName: "x", Type: types.Boolean}
	if !c.Declare("x", inner, DeclareOptions{}) {
		t.Fatalf("shadowing declare failed")
	}
	r, ok := c.Lookup("x", GenContext{})
	if !ok || r.Decl != inner {
		t.Errorf("lookup did not find the innermost binding")
	}
	c.LeaveScope()
	r, ok = c.Lookup("x", GenContext{})
	if !ok || r.Decl == inner {
		t.Errorf("leaving a scope did not restore the outer binding")
	}
}

func TestLookupWalksNamespaces(t *testing.T) {
	c := newTestCore()
	child := c.root.Child("inner")
	child.Functions["f"] = &FuncInfo{Name: "f", FullName: "inner.f"}

	c.pushNamespace(child)
	defer c.popNamespace()

	r, ok := c.Lookup("f", GenContext{})
	if !ok || r.Func == nil || r.Func.FullName != "inner.f" {
		t.Errorf("lookup inside the namespace failed: %+v", r)
	}

	// Qualified lookup from the root.
	r, ok = c.LookupQualified("inner.f")
	if !ok || r.Func == nil {
		t.Errorf("qualified lookup failed")
	}
	if _, ok := c.LookupQualified("inner.missing"); ok {
		t.Errorf("qualified lookup invented a declaration")
	}
}

func TestCaptureDiscoveryOnLookup(t *testing.T) {
	c := newTestCore()
	c.EnterFunctionScope()
	outer := &VarInfo{Name: "o", FullName: "o", Type: types.Number}
	c.Declare("o", outer, DeclareOptions{})

	depth := c.EnterFunctionScope()
	own := &VarInfo{Name: "p", FullName: "p", Type: types.Number}
	c.Declare("p", own, DeclareOptions{})

	sink := NewCaptureSink()
	ctx := GenContext{CapturedVars: sink, FuncScopeDepth: depth}

	if _, ok := c.Lookup("o", ctx); !ok {
		t.Fatalf("outer lookup failed")
	}
	if _, ok := c.Lookup("p", ctx); !ok {
		t.Fatalf("own lookup failed")
	}

	if sink.Len() != 1 || sink.Get("o") != outer {
		t.Errorf("capture sink %v, want exactly the outer variable", sink.Names())
	}
	if sink.Get("p") != nil {
		t.Errorf("a variable resolvable in the function's own scope was captured")
	}

	c.LeaveScope()
	c.LeaveScope()
}

func TestUnicodeNamesNormalize(t *testing.T) {
	c := newTestCore()
	c.EnterScope()
	defer c.LeaveScope()

	// "é" composed vs decomposed must hit one binding.
	composed := "café"
	decomposed := "café"
	decl := &VarInfo{Name: composed, FullName: composed, Type: types.Number}
	if !c.Declare(composed, decl, DeclareOptions{}) {
		t.Fatalf("declare failed")
	}
	if _, ok := c.Lookup(decomposed, GenContext{}); !ok {
		t.Errorf("NFC-equivalent spelling did not resolve")
	}
}

func TestBuiltinConstantsBypassStore(t *testing.T) {
	names := []string{"undefined", "Infinity", "NaN"}
	c := newTestCore()
	c.module = ir.NewModule("t", errors.Position{})
	c.b = ir.NewBuilder(c.module)
	for _, name := range names {
		if _, ok := c.builtinConstant(name, errors.Position{}); !ok {
			t.Errorf("%s must bypass the store", name)
		}
	}
	if _, ok := c.builtinConstant("undefinedish", errors.Position{}); ok {
		t.Errorf("lookalike names must not bypass the store")
	}
}
