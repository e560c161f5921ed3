package lower

import (
	"math"

	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// Scope is one block-level binding frame. Frames stack inside the Core;
// a frame marked funcBoundary starts a new function's region, which is what
// capture discovery keys on.
type Scope struct {
	bindings     map[string]*VarInfo
	funcBoundary bool
}

// EnterScope pushes a block scope.
func (c *Core) EnterScope() {
	c.scopes = append(c.scopes, &Scope{bindings: map[string]*VarInfo{}})
}

// EnterFunctionScope pushes a scope that begins a new function region and
// returns the boundary's index for GenContext.FuncScopeDepth: bindings in
// shallower scopes belong to enclosing functions.
func (c *Core) EnterFunctionScope() int {
	c.scopes = append(c.scopes, &Scope{bindings: map[string]*VarInfo{}, funcBoundary: true})
	return len(c.scopes) - 1
}

// LeaveScope pops the innermost scope. Every acquisition is paired with a
// restoration on all exit paths; lowering routines defer this.
func (c *Core) LeaveScope() {
	if len(c.scopes) == 0 {
		panic("lower: LeaveScope on empty scope stack")
	}
	c.scopes = c.scopes[:len(c.scopes)-1]
}

// DeclareOptions tunes Declare.
type DeclareOptions struct {
	Redeclare bool
}

// Declare inserts a binding into the current scope. It fails when the name
// already exists at the same scope and Redeclare is false.
func (c *Core) Declare(name string, decl *VarInfo, opts DeclareOptions) bool {
	name = normName(name)
	if len(c.scopes) == 0 {
		// Namespace level: the binding is a global of the current namespace.
		if _, exists := c.current().Globals[name]; exists && !opts.Redeclare {
			return false
		}
		decl.Global = true
		c.current().Globals[name] = decl
		return true
	}
	top := c.scopes[len(c.scopes)-1]
	if _, exists := top.bindings[name]; exists && !opts.Redeclare {
		return false
	}
	top.bindings[name] = decl
	return true
}

// DeclareAtFunctionLevel hoists a `var` binding to the innermost function
// scope instead of the current block.
func (c *Core) DeclareAtFunctionLevel(name string, decl *VarInfo, opts DeclareOptions) bool {
	name = normName(name)
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if c.scopes[i].funcBoundary || i == 0 {
			if _, exists := c.scopes[i].bindings[name]; exists && !opts.Redeclare {
				return false
			}
			c.scopes[i].bindings[name] = decl
			return true
		}
	}
	return c.Declare(name, decl, opts)
}

// LookupResult is a successful lookup: the binding's current value plus its
// descriptor.
type LookupResult struct {
	Value *ir.Value
	Decl  *VarInfo
	Func  *FuncInfo
	Class *ClassInfo
	Iface *InterfaceInfo
	Enum  *EnumInfo
	NS    *Namespace
}

// Lookup searches block scopes, the current namespace's tables, ancestor
// namespaces up to the root, and finally import aliases, which resolve
// through their fully-qualified targets.
// When the found binding lives outside the current function's region and a
// capture sink is active, the variable is recorded there; this is the sole
// capture-discovery signal.
func (c *Core) Lookup(name string, ctx GenContext) (LookupResult, bool) {
	name = normName(name)

	// 1. block scopes, innermost first
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if decl, ok := c.scopes[i].bindings[name]; ok {
			if ctx.CapturedVars != nil && i < ctx.FuncScopeDepth && !decl.Global {
				ctx.CapturedVars.Add(decl)
			}
			return LookupResult{Value: decl.Storage, Decl: decl}, true
		}
	}

	// 2. namespace tables, current then ancestors up to the root
	for ns := c.current(); ns != nil; ns = ns.Parent {
		if r, ok := lookupNamespace(ns, name); ok {
			return r, true
		}
	}

	// 3. import aliases resolve through their target fqn
	for ns := c.current(); ns != nil; ns = ns.Parent {
		if target, ok := ns.Imports[name]; ok {
			if r, ok := c.LookupQualified(target); ok {
				return r, true
			}
		}
	}

	return LookupResult{}, false
}

func lookupNamespace(ns *Namespace, name string) (LookupResult, bool) {
	if f, ok := ns.Functions[name]; ok {
		return LookupResult{Func: f}, true
	}
	if g, ok := ns.Globals[name]; ok {
		return LookupResult{Value: g.Storage, Decl: g}, true
	}
	if cls, ok := ns.Classes[name]; ok {
		return LookupResult{Class: cls}, true
	}
	if ifc, ok := ns.Interfaces[name]; ok {
		return LookupResult{Iface: ifc}, true
	}
	if en, ok := ns.Enums[name]; ok {
		return LookupResult{Enum: en}, true
	}
	if child, ok := ns.Children[name]; ok {
		return LookupResult{NS: child}, true
	}
	return LookupResult{}, false
}

// LookupQualified resolves a dotted fully-qualified name from the root.
func (c *Core) LookupQualified(fqn string) (LookupResult, bool) {
	ns, last := c.root.resolveQualified(fqn)
	if ns == nil {
		return LookupResult{}, false
	}
	return lookupNamespace(ns, last)
}

// builtinConstant recognizes names that bypass the store entirely.
func (c *Core) builtinConstant(name string, loc errors.Position) (*ir.Value, bool) {
	switch name {
	case "undefined":
		return c.b.Undef(loc, types.Undefined), true
	case "Infinity":
		return c.b.Constant(loc, types.Number, math.Inf(1)), true
	case "NaN":
		return c.b.Constant(loc, types.Number, math.NaN()), true
	default:
		return nil, false
	}
}
