package lower

import (
	"tsgen/pkg/ast"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// resolvedParam is one formal parameter after prototype resolution.
type resolvedParam struct {
	Name     string
	Type     types.Type
	Optional bool
	Init     ast.Expression
	Modifier string
}

// resolveParams resolves every formal-parameter type; this must complete
// before the body is lowered, except during dummy runs. An unannotated
// parameter takes the matching input of the expected function type at the
// call site, then the initializer's type, and is otherwise typed any.
func (c *Core) resolveParams(params []*ast.Parameter, ctx GenContext) ([]resolvedParam, bool) {
	out := make([]resolvedParam, 0, len(params))
	sawDefault := false
	for i, p := range params {
		rp := resolvedParam{Name: p.Name.Name, Optional: p.Optional, Init: p.Initializer, Modifier: p.AccessModifier}

		switch {
		case p.Type != nil:
			t, ok := c.resolveTypeNode(p.Type, ctx)
			if !ok {
				return nil, false
			}
			rp.Type = t
		case ctx.ArgTypeDest != nil && i < len(ctx.ArgTypeDest.Inputs):
			rp.Type = ctx.ArgTypeDest.Inputs[i]
		case p.Initializer != nil:
			v, ok := c.probeExpressionType(p.Initializer, ctx)
			if !ok {
				return nil, false
			}
			rp.Type = types.WidenType(v)
		default:
			rp.Type = types.Any
		}

		if p.IsRest {
			rp.Type = &types.ArrayType{Elem: rp.Type}
		}
		if p.Initializer != nil {
			sawDefault = true
		}
		// Parameters after the first defaulted one are optional.
		if sawDefault {
			rp.Optional = true
		}
		out = append(out, rp)
	}
	return out, true
}

// probeExpressionType lowers an expression in throwaway mode purely to read
// its type.
func (c *Core) probeExpressionType(e ast.Expression, ctx GenContext) (types.Type, bool) {
	mark := c.b.InsertionPoint()
	v, ok := c.lowerExpression(e, ctx)
	// Roll back everything the probe emitted.
	if blk := mark.Block; blk != nil {
		for len(blk.Ops) > mark.Index {
			c.b.EraseOp(blk.Ops[len(blk.Ops)-1])
		}
		c.b.SetInsertionPoint(blk, mark.Index)
	}
	if !ok || v == nil {
		return nil, false
	}
	return v.Type, true
}

// lowerFunctionDeclaration resolves the prototype, discovers the return
// type when absent, and installs the function in the current namespace.
func (c *Core) lowerFunctionDeclaration(n *ast.FunctionDeclaration, ctx GenContext) bool {
	lit := n.Func
	if lit.Name == nil {
		c.errorAt(n.Pos(), "function declaration requires a name")
		return false
	}
	f, ok := c.lowerFunction(lit.Name.Name, lit, ctx)
	if !ok {
		return false
	}
	c.current().Functions[normName(lit.Name.Name)] = f
	if len(f.Captured) > 0 {
		c.current().CaptureSets[f.FullName] = f.Captured
	}
	return true
}

// lowerFunction resolves and emits one function (free function or lambda).
func (c *Core) lowerFunction(name string, lit *ast.FunctionLiteral, ctx GenContext) (*FuncInfo, bool) {
	if lit.IsGenerator {
		return c.lowerGeneratorFunction(name, lit, ctx)
	}
	if lit.IsAsync && !c.opts.EnableAsync {
		c.errorAt(lit.Pos(), "async functions are disabled")
		return nil, false
	}

	params, ok := c.resolveParams(lit.Params, ctx)
	if !ok {
		return nil, false
	}

	var returnType types.Type
	if lit.ReturnType != nil {
		t, tok := c.resolveTypeNode(lit.ReturnType, ctx)
		if !tok {
			return nil, false
		}
		returnType = t
	}

	fqn := c.current().Qualify(name)
	f := &FuncInfo{
		Name:     name,
		FullName: fqn,
		Loc:      lit.Pos(),
		IsAsync:  lit.IsAsync,
	}

	// Probe pass: discover the return type and the capture set. Whatever
	// the probe leaves at module level (its own scratch op, nested lambdas)
	// is rolled back afterwards.
	captures := NewCaptureSink()
	if returnType == nil || len(c.scopes) > 0 {
		pr := &PassResult{}
		probeCtx := ctx
		probeCtx.DummyRun = true
		probeCtx.AllowPartialResolve = true
		probeCtx.PassResult = pr
		probeCtx.CapturedVars = captures
		mark := len(c.module.BodyBlock().Ops)
		probeOK := c.emitFunctionBody(f, lit, params, types.UndefPlaceholder, probeCtx, true)
		c.releaseTopLevel(mark)
		if !probeOK {
			return nil, false
		}
		if returnType == nil {
			if pr.ReturnTypeRequired && (pr.ReturnType == nil || types.HasUndefines(pr.ReturnType)) {
				// At least one return carried a value but no type could be
				// fixed: leave unresolved so the discovery pass reschedules.
				c.unresolvedName(ctx, lit.Pos(), fqn)
				return nil, false
			}
			returnType = pr.ReturnType
			if returnType == nil {
				returnType = types.Void
			}
		}
	} else if returnType == nil {
		returnType = types.Void
	}

	f.Type = c.functionTypeOf(params, returnType, ctx.ThisType)
	if captures.Len() > 0 {
		c.attachCaptureTuple(f, captures)
	}

	// Definitive emission of this function.
	emitCtx := ctx
	emitCtx.PassResult = nil
	emitCtx.CapturedVars = nil
	if !c.emitFunctionBody(f, lit, params, returnType, emitCtx, false) {
		return nil, false
	}
	return f, true
}

// functionTypeOf assembles the function type: receiver first when bound to
// a `this`, then the declared parameters.
func (c *Core) functionTypeOf(params []resolvedParam, returnType types.Type, thisType types.Type) *types.FunctionType {
	ft := &types.FunctionType{}
	if thisType != nil {
		ft.Inputs = append(ft.Inputs, thisType)
	}
	for _, p := range params {
		pt := p.Type
		if p.Optional {
			pt = types.NewOptionalType(pt)
		}
		ft.Inputs = append(ft.Inputs, pt)
	}
	if returnType != nil && returnType != types.Void {
		ft.Results = []types.Type{returnType}
	}
	return ft
}

// emitFunctionBody creates the func op and lowers the body into it. In
// dummy mode the op is tracked for cleanup and failures stay recoverable.
func (c *Core) emitFunctionBody(f *FuncInfo, lit *ast.FunctionLiteral, params []resolvedParam, returnType types.Type, ctx GenContext, dummy bool) bool {
	ft := f.Type
	if ft == nil {
		// Probe runs before the type is fixed; assemble a provisional one.
		ft = c.functionTypeOf(params, returnType, ctx.ThisType)
	}

	attrs := map[string]interface{}{
		"sym_name": f.FullName,
		"type":     ft,
	}
	if f.IsAsync {
		attrs["async"] = true
	}
	if c.opts.EnableGC && len(f.Captured) > 0 {
		attrs["gc"] = true
	}

	c.b.SaveInsertionPoint()
	defer c.b.RestoreInsertionPoint()
	c.b.SetInsertionPointToEnd(c.module.BodyBlock())

	funcOp := c.b.CreateWithRegions(ir.OpFunc, lit.Pos(), nil, nil, attrs, 1)
	if dummy {
		ctx.Cleanups.Track(funcOp)
	} else {
		// Re-lowering rebinds the previous op, which is replaced.
		if f.Op != nil && f.Op.Block() != nil {
			c.b.EraseOp(f.Op)
		}
		f.Op = funcOp
	}

	entry := c.b.NewBlock(funcOp.Regions[0], ft.Inputs)
	c.b.SetInsertionPointToEnd(entry)

	depth := c.EnterFunctionScope()
	defer c.LeaveScope()

	bodyCtx := ctx
	bodyCtx.FuncScopeDepth = depth
	bodyCtx.FuncOp = funcOp
	bodyCtx.ReturnType = returnType
	bodyCtx.DummyRun = ctx.DummyRun || dummy
	var generated []ast.Statement
	bodyCtx.Generated = &generated

	argIndex := 0
	if ctx.ThisType != nil {
		bodyCtx.ThisVal = entry.Args[0]
		argIndex = 1
		for _, field := range ctx.BindThisFields {
			ref := c.b.Create(ir.OpFieldRef, lit.Pos(), []*ir.Value{bodyCtx.ThisVal},
				[]types.Type{&types.RefType{Elem: field.Type}},
				map[string]interface{}{"field": field.ID.String()})
			c.Declare(field.ID.String(), &VarInfo{
				Name:      field.ID.String(),
				FullName:  field.ID.String(),
				Type:      field.Type,
				Loc:       lit.Pos(),
				ReadWrite: true,
				Storage:   ref.Result(0),
			}, DeclareOptions{Redeclare: true})
		}
	}
	if f.CaptureTuple != nil && len(entry.Args) > argIndex {
		// First input is the capture tuple; members bind by name.
		bodyCtx.CaptureVal = entry.Args[argIndex]
		c.bindCapturedParams(f, entry.Args[argIndex], lit.Pos(), bodyCtx)
		argIndex++
	}

	for i, p := range params {
		if argIndex+i >= len(entry.Args) {
			break
		}
		arg := entry.Args[argIndex+i]
		storage := c.b.Variable(lit.Pos(), p.Type, p.Name, nil)
		incoming := arg
		if p.Init != nil {
			// A padded undef argument takes the declared default.
			isUndef := c.b.Create(ir.OpUnary, lit.Pos(), []*ir.Value{arg},
				[]types.Type{types.Boolean}, map[string]interface{}{"op": "is_undefined"})
			dv, ok := c.lowerExpression(p.Init, bodyCtx)
			if !ok {
				return false
			}
			sel := c.b.Create(ir.OpIf, lit.Pos(),
				[]*ir.Value{isUndef.Result(0), c.b.Cast(lit.Pos(), dv, p.Type), c.b.Cast(lit.Pos(), arg, p.Type)},
				[]types.Type{p.Type}, map[string]interface{}{"expression": true})
			incoming = sel.Result(0)
		}
		c.b.Store(lit.Pos(), c.b.Cast(lit.Pos(), incoming, p.Type), storage)
		decl := &VarInfo{
			Name:      p.Name,
			FullName:  p.Name,
			Type:      p.Type,
			Loc:       lit.Pos(),
			ReadWrite: true,
			IsParam:   true,
			Storage:   storage,
		}
		c.Declare(p.Name, decl, DeclareOptions{Redeclare: true})
	}

	ok := true
	if lit.Body != nil {
		ok = c.lowerBlock(lit.Body, bodyCtx)
	}
	if funcOp.BoolAttr("personality") {
		f.HasPersonality = true
	}
	if dummy && ctx.Cleanups == nil {
		// Probe outside a discovery round: nothing owns the scratch op, so
		// it dies here.
		c.b.EraseOp(funcOp)
	}
	return ok
}

// lowerFunctionValue lowers a function literal in expression position and
// yields it as a value, wrapping captures per the closure contract.
func (c *Core) lowerFunctionValue(lit *ast.FunctionLiteral, ctx GenContext) (*ir.Value, bool) {
	name := ""
	if lit.Name != nil {
		name = lit.Name.Name
	} else {
		name = c.anonName("__lambda")
	}

	thisCtx := ctx
	if lit.IsArrow {
		// Arrows keep the enclosing `this`.
	} else {
		thisCtx.ThisType = nil
		thisCtx.ThisVal = nil
		thisCtx.ReceiverClass = nil
	}

	f, ok := c.lowerFunction(name, lit, thisCtx)
	if !ok {
		return nil, false
	}
	if lit.Name != nil {
		c.current().Functions[normName(name)] = f
	}
	return c.functionValue(f, lit.Pos(), ctx)
}

// functionValue produces the value form of a function: a plain symbol ref,
// or a closure wrapper when the function captures.
func (c *Core) functionValue(f *FuncInfo, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	sym := c.b.Create(ir.OpSymbolRef, loc, nil, []types.Type{f.Type},
		map[string]interface{}{"identifier": f.FullName})
	if len(f.Captured) == 0 {
		return sym.Result(0), true
	}
	return c.materializeClosure(f, sym.Result(0), loc, ctx)
}
