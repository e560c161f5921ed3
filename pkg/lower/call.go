package lower

import (
	"tsgen/pkg/ast"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// builtinFunctions is the dispatch table for calls whose callee stays an
// unresolved symbol name.
var builtinFunctions = map[string]bool{
	"print":        true,
	"assert":       true,
	"parseInt":     true,
	"parseFloat":   true,
	"switchstate":  true,
	"#_last_field": true,
	"#_array_map":  true,
	"#_array_push": true,
	"#_array_pop":  true,
}

func isBuiltinFunction(name string) bool { return builtinFunctions[name] }

// lowerCall lowers a call site, dispatching on the callee's defining op and
// type per the call contract.
func (c *Core) lowerCall(n *ast.CallExpression, ctx GenContext) (*ir.Value, bool) {
	// super(...) is a base-class constructor invocation.
	if _, isSuper := n.Callee.(*ast.SuperExpression); isSuper {
		return c.lowerSuperCall(n, ctx)
	}

	callee, ok := c.lowerExpression(n.Callee, ctx)
	if !ok {
		return nil, false
	}

	// Builtin table: callee is an unresolved symbol name.
	if callee.Def != nil && callee.Def.Kind == ir.OpSymbolRef && callee.Def.BoolAttr("unresolved") {
		return c.lowerBuiltinCall(callee.Def.StringAttr("identifier"), n, ctx)
	}

	switch t := callee.Type.(type) {
	case *types.FunctionType:
		args, ok := c.lowerCallArgs(n.Args, t, 0, ctx, n.Pos())
		if !ok {
			return nil, false
		}
		return c.emitCall(callee, t, args, n.Pos())

	case *types.BoundFunctionType:
		return c.callBound(callee, t.Func, n, ctx)

	case *types.HybridFunctionType:
		return c.callBound(callee, t.Func, n, ctx)

	case *types.ClassType:
		// Calling a class reference constructs it.
		if isClassRef(callee) {
			return c.emitNew(t, n.Args, n.Pos(), ctx)
		}
		c.errorAt(n.Pos(), "value of type %s is not callable", t)
		return nil, false

	default:
		if callee.Type == types.Unknown && ctx.AllowPartialResolve {
			// Unresolved callee in a dummy pass: the call cannot type yet.
			return nil, false
		}
		c.errorAt(n.Pos(), "value of type %s is not callable", callee.Type)
		return nil, false
	}
}

// callBound unbinds a bound/hybrid function into (this, fn) and calls.
func (c *Core) callBound(callee *ir.Value, ft *types.FunctionType, n *ast.CallExpression, ctx GenContext) (*ir.Value, bool) {
	args, ok := c.lowerCallArgs(n.Args, ft, 1, ctx, n.Pos())
	if !ok {
		return nil, false
	}

	if callee.Def != nil && callee.Def.Kind == ir.OpCreateBoundFunction {
		this := callee.Def.Operands[0]
		fn := callee.Def.Operands[1]
		return c.emitCall(fn, ft, append([]*ir.Value{this}, args...), n.Pos())
	}
	// Virtual and interface references are bound values: the receiver
	// travels inside them, so only the explicit arguments follow.
	if callee.Def != nil && callee.Def.Kind == ir.OpThisVirtualSymbolRef {
		op := c.b.Create(ir.OpCallIndirect, n.Pos(),
			append([]*ir.Value{callee}, args...), ft.Results,
			map[string]interface{}{"virtual": true})
		return callResult(op), true
	}
	if callee.Def != nil && callee.Def.Kind == ir.OpInterfaceSymbolRef {
		op := c.b.Create(ir.OpCallIndirect, n.Pos(),
			append([]*ir.Value{callee}, args...), ft.Results,
			map[string]interface{}{"interface": true, "conditional": callee.Def.BoolAttr("conditional")})
		return callResult(op), true
	}

	// Generic unbind of a bound value materialized elsewhere.
	op := c.b.Create(ir.OpCallIndirect, n.Pos(), append([]*ir.Value{callee}, args...), ft.Results,
		map[string]interface{}{"bound": true})
	return callResult(op), true
}

// lowerCallArgs lowers arguments against the declared inputs, skipping the
// first `skip` receiver slots and padding missing trailing arguments with
// undef of the declared parameter type.
func (c *Core) lowerCallArgs(argNodes []ast.Expression, ft *types.FunctionType, skip int, ctx GenContext, loc errors.Position) ([]*ir.Value, bool) {
	declared := ft.Inputs[min(skip, len(ft.Inputs)):]
	var args []*ir.Value
	for i, argNode := range argNodes {
		if spread, isSpread := argNode.(*ast.SpreadElement); isSpread {
			// A spread is accepted in the last position and expands at the
			// call site; that requires a statically sized source.
			if i != len(argNodes)-1 {
				c.errorAt(spread.Pos(), "a spread argument must be last")
				return nil, false
			}
			v, ok := c.lowerExpression(spread.Arg, ctx)
			if !ok {
				return nil, false
			}
			ca, isConst := v.Type.(*types.ConstArrayType)
			if !isConst {
				c.errorAt(spread.Pos(), "spread argument requires a fixed-size array")
				return nil, false
			}
			for e := 0; e < ca.Size; e++ {
				idx := c.b.Constant(spread.Pos(), types.I32, int64(e))
				elem := c.elementValue(v, idx, spread.Pos())
				if elem == nil {
					c.errorAt(spread.Pos(), "cannot expand spread element")
					return nil, false
				}
				if di := len(args); di < len(declared) {
					coerced, cok := c.coerceAssign(elem, declared[di], spread.Pos(), ctx)
					if !cok {
						return nil, false
					}
					elem = coerced
				}
				args = append(args, elem)
			}
			return args, true
		}
		var dest types.Type
		if i < len(declared) {
			dest = declared[i]
		}
		argCtx := ctx
		if fdest, ok := dest.(*types.FunctionType); ok {
			// Parameter inference for lambdas at the call site.
			argCtx.ArgTypeDest = fdest
		}
		v, ok := c.lowerExpression(argNode, argCtx)
		if !ok {
			return nil, false
		}
		if dest != nil {
			coerced, ok := c.coerceAssign(v, dest, argNode.Pos(), ctx)
			if !ok {
				return nil, false
			}
			v = coerced
		}
		args = append(args, v)
	}
	// Missing arguments are padded with undef of the declared type.
	for i := len(args); i < len(declared); i++ {
		args = append(args, c.b.Undef(loc, declared[i]))
	}
	return args, true
}

// emitCall emits a direct call for symbol callees, else an indirect call.
func (c *Core) emitCall(callee *ir.Value, ft *types.FunctionType, args []*ir.Value, loc errors.Position) (*ir.Value, bool) {
	if callee.Def != nil && callee.Def.Kind == ir.OpSymbolRef && !callee.Def.BoolAttr("unresolved") {
		op := c.b.Create(ir.OpCall, loc, args, ft.Results,
			map[string]interface{}{"callee": callee.Def.StringAttr("identifier")})
		return callResult(op), true
	}
	op := c.b.Create(ir.OpCallIndirect, loc, append([]*ir.Value{callee}, args...), ft.Results, nil)
	return callResult(op), true
}

func callResult(op *ir.Op) *ir.Value {
	if len(op.Results) == 0 {
		return nil
	}
	return op.Result(0)
}

// lowerBuiltinCall handles the builtin dispatch table.
func (c *Core) lowerBuiltinCall(name string, n *ast.CallExpression, ctx GenContext) (*ir.Value, bool) {
	lowerAll := func() ([]*ir.Value, bool) {
		var out []*ir.Value
		for _, a := range n.Args {
			v, ok := c.lowerExpression(a, ctx)
			if !ok {
				return nil, false
			}
			out = append(out, v)
		}
		return out, true
	}

	switch name {
	case "print":
		args, ok := lowerAll()
		if !ok {
			return nil, false
		}
		c.b.Create(ir.OpPrint, n.Pos(), args, nil, nil)
		return c.b.Undef(n.Pos(), types.Void), true

	case "assert":
		args, ok := lowerAll()
		if !ok {
			return nil, false
		}
		if len(args) == 0 {
			c.errorAt(n.Pos(), "assert requires a condition")
			return nil, false
		}
		args[0] = c.coerceToBool(args[0], n.Pos())
		c.b.Create(ir.OpAssert, n.Pos(), args, nil, nil)
		return c.b.Undef(n.Pos(), types.Void), true

	case "parseInt":
		args, ok := lowerAll()
		if !ok {
			return nil, false
		}
		if len(args) == 0 {
			c.errorAt(n.Pos(), "parseInt requires an argument")
			return nil, false
		}
		return c.b.Cast(n.Pos(), args[0], types.I32), true

	case "parseFloat":
		args, ok := lowerAll()
		if !ok {
			return nil, false
		}
		if len(args) == 0 {
			c.errorAt(n.Pos(), "parseFloat requires an argument")
			return nil, false
		}
		return c.b.Cast(n.Pos(), args[0], types.Number), true

	case "switchstate":
		// Generator re-entry dispatch: jumps to the state_label matching the
		// operand's current value.
		args, ok := lowerAll()
		if !ok {
			return nil, false
		}
		if len(args) != 1 {
			c.errorAt(n.Pos(), "switchstate requires the step operand")
			return nil, false
		}
		c.b.Create(ir.OpSwitch, n.Pos(), []*ir.Value{c.b.Cast(n.Pos(), args[0], types.I32)}, nil,
			map[string]interface{}{"state_dispatch": true})
		return c.b.Undef(n.Pos(), types.Void), true

	case "#_last_field":
		// Yields the ordinal of the last field in the receiver tuple.
		args, ok := lowerAll()
		if !ok {
			return nil, false
		}
		if len(args) != 1 {
			c.errorAt(n.Pos(), "#_last_field requires one operand")
			return nil, false
		}
		if tup, ok := types.WidenType(args[0].Type).(*types.TupleType); ok {
			return c.b.Constant(n.Pos(), types.I32, int64(len(tup.Fields)-1)), true
		}
		c.errorAt(n.Pos(), "#_last_field requires a tuple operand")
		return nil, false

	default:
		if ctx.AllowPartialResolve {
			return nil, false
		}
		c.errorAt(n.Pos(), "cannot resolve function '%s'", name)
		return nil, false
	}
}

// lowerNew constructs a class instance.
func (c *Core) lowerNew(n *ast.NewExpression, ctx GenContext) (*ir.Value, bool) {
	callee, ok := c.lowerExpression(n.Callee, ctx)
	if !ok {
		return nil, false
	}
	cls, ok := callee.Type.(*types.ClassType)
	if !ok {
		c.errorAt(n.Pos(), "'new' target is not a class")
		return nil, false
	}
	return c.emitNew(cls, n.Args, n.Pos(), ctx)
}

// emitNew allocates storage and runs the constructor when one exists.
func (c *Core) emitNew(cls *types.ClassType, argNodes []ast.Expression, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	info := c.classesByFQN[cls.Name]
	if info == nil {
		c.unresolvedName(ctx, loc, cls.Name)
		return nil, false
	}
	if info.IsAbstract {
		c.errorAt(loc, "cannot instantiate abstract class '%s'", info.Name)
		return nil, false
	}

	newOp := c.b.Create(ir.OpNew, loc, nil, []types.Type{info.Type},
		map[string]interface{}{"class": info.FullName})
	instance := newOp.Result(0)

	ctor := info.FindMethodInChain("constructor")
	if ctor != nil {
		args, ok := c.lowerCallArgs(argNodes, ctor.Type, 1, ctx, loc)
		if !ok {
			return nil, false
		}
		c.b.Create(ir.OpCall, loc, append([]*ir.Value{instance}, args...), nil,
			map[string]interface{}{"callee": ctor.Func.FullName})
	} else if len(argNodes) > 0 {
		c.errorAt(loc, "class '%s' has no constructor taking arguments", info.Name)
		return nil, false
	}
	return instance, true
}

// lowerSuperCall invokes the base-class constructor on the current receiver.
func (c *Core) lowerSuperCall(n *ast.CallExpression, ctx GenContext) (*ir.Value, bool) {
	if ctx.ReceiverClass == nil || len(ctx.ReceiverClass.BaseClasses) == 0 {
		c.errorAt(n.Pos(), "'super' call requires a base class")
		return nil, false
	}
	base := ctx.ReceiverClass.BaseClasses[0]
	this, ok := c.lowerThis(&ast.ThisExpression{}, ctx)
	if !ok {
		return nil, false
	}
	ctor := base.FindMethodInChain("constructor")
	if ctor == nil {
		// Base has no constructor: the call is a no-op beyond field setup.
		return c.b.Undef(n.Pos(), types.Void), true
	}
	args, ok := c.lowerCallArgs(n.Args, ctor.Type, 1, ctx, n.Pos())
	if !ok {
		return nil, false
	}
	receiver := c.b.Cast(n.Pos(), this, base.Type)
	c.b.Create(ir.OpCall, n.Pos(), append([]*ir.Value{receiver}, args...), nil,
		map[string]interface{}{"callee": ctor.Func.FullName})
	return c.b.Undef(n.Pos(), types.Void), true
}

// emitIndirectCall calls an arbitrary function value with given operands.
func (c *Core) emitIndirectCall(fn *ir.Value, args []*ir.Value, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	ft := types.UnwrapCallable(fn.Type)
	if ft == nil {
		c.errorAt(loc, "value of type %s is not callable", fn.Type)
		return nil, false
	}
	op := c.b.Create(ir.OpCallIndirect, loc, append([]*ir.Value{fn}, args...), ft.Results, nil)
	if len(op.Results) == 0 {
		return c.b.Undef(loc, types.Void), true
	}
	return op.Result(0), true
}
