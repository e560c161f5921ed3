package lower

import (
	"tsgen/pkg/ast"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// lowerAwait wraps the awaited expression in an async execute op and
// returns the awaited result (or a void awaitable).
func (c *Core) lowerAwait(n *ast.AwaitExpression, ctx GenContext) (*ir.Value, bool) {
	if !c.opts.EnableAsync {
		c.errorAt(n.Pos(), "await requires async support to be enabled")
		return nil, false
	}

	execOp := c.b.CreateWithRegions(ir.OpAsyncExec, n.Pos(), nil, []types.Type{types.Opaque}, nil, 1)
	block := c.b.NewBlock(execOp.Regions[0], nil)
	c.b.SaveInsertionPoint()
	c.b.SetInsertionPointToEnd(block)
	v, ok := c.lowerExpression(n.Arg, ctx)
	c.b.RestoreInsertionPoint()
	if !ok {
		return nil, false
	}

	resultType := types.Type(types.Void)
	if v != nil && v.Type != types.Void {
		resultType = v.Type
	}
	awaitOp := c.b.Create(ir.OpAwait, n.Pos(), []*ir.Value{execOp.Result(0)},
		resultTypes(resultType), nil)
	if len(awaitOp.Results) == 0 {
		return c.b.Undef(n.Pos(), types.Void), true
	}
	return awaitOp.Result(0), true
}

func resultTypes(t types.Type) []types.Type {
	if t == types.Void {
		return nil
	}
	return []types.Type{t}
}

// lowerForAwait creates a task group, submits each iteration body as an
// async task, and awaits all of them at loop end.
func (c *Core) lowerForAwait(n *ast.ForOfStatement, ctx GenContext) bool {
	if !c.opts.EnableAsync {
		c.errorAt(n.Pos(), "for-await requires async support to be enabled")
		return false
	}

	groupOp := c.b.Create(ir.OpTaskGroupCreate, n.Pos(), nil, []types.Type{types.Opaque}, nil)
	group := groupOp.Result(0)

	// Iterate like for-of, but the body submits into the group.
	submitted := &ast.ForOfStatement{
		Kind:     n.Kind,
		Target:   n.Target,
		Iterable: n.Iterable,
		Body:     n.Body,
	}
	submitted.SetPos(n.Pos())

	bodyWrapper := func(body ast.Statement, bodyCtx GenContext) bool {
		submitOp := c.b.CreateWithRegions(ir.OpTaskGroupSubmit, n.Pos(), []*ir.Value{group}, nil, nil, 1)
		block := c.b.NewBlock(submitOp.Regions[0], nil)
		c.b.SaveInsertionPoint()
		defer c.b.RestoreInsertionPoint()
		c.b.SetInsertionPointToEnd(block)
		return c.lowerBody(body, bodyCtx)
	}

	ok := c.lowerForOfWithBody(submitted, bodyWrapper, ctx)

	// The loop blocks only here, at await-all.
	c.b.Create(ir.OpTaskGroupAwaitAll, n.Pos(), []*ir.Value{group}, nil, nil)
	return ok
}

// lowerForOfWithBody is lowerForOf with the body emission replaced; the
// async path uses it to wrap iterations into task submissions.
func (c *Core) lowerForOfWithBody(n *ast.ForOfStatement, emit func(ast.Statement, GenContext) bool, ctx GenContext) bool {
	c.EnterScope()
	defer c.LeaveScope()

	arr, ok := c.lowerExpression(n.Iterable, ctx)
	if !ok {
		return false
	}
	arrName := c.anonName("_it")
	arrVar := c.declareLocal(arrName, types.WidenType(arr.Type), n.Pos(), false, ctx)
	if arrVar == nil {
		return false
	}
	c.b.Store(n.Pos(), c.b.Cast(n.Pos(), arr, types.WidenType(arr.Type)), arrVar.Storage)

	idxName := c.anonName("_i")
	forStmt := &ast.ForStatement{
		Init: ast.NewVarDecl(ast.DeclLet, idxName, nil, ast.NewInt(0)),
		Cond: ast.NewInfix("<", ast.NewIdent(idxName), ast.NewMember(ast.NewIdent(arrName), "length")),
		Post: &ast.PostfixExpression{Op: "++", Left: ast.NewIdent(idxName)},
	}

	forOp := c.b.CreateWithRegions(ir.OpFor, n.Pos(), nil, nil, nil, 3)
	c.pushLoop(forOp)
	defer c.popLoop()

	if !c.lowerStatement(forStmt.Init, ctx) {
		return false
	}
	if !c.lowerCondRegion(forOp.Regions[0], forStmt.Cond, ctx, n.Pos()) {
		return false
	}

	body := c.b.NewBlock(forOp.Regions[1], nil)
	c.b.SaveInsertionPoint()
	c.b.SetInsertionPointToEnd(body)
	bind := &ast.VariableStatement{
		Kind: n.Kind,
		Declarations: []*ast.VariableDeclarator{
			{Target: n.Target, Init: ast.NewIndex(ast.NewIdent(arrName), ast.NewIdent(idxName))},
		},
	}
	c.EnterScope()
	okBind := c.lowerStatement(bind, ctx)
	okBody := okBind && emit(n.Body, ctx)
	c.LeaveScope()
	c.b.RestoreInsertionPoint()

	incr := c.b.NewBlock(forOp.Regions[2], nil)
	c.b.SaveInsertionPoint()
	c.b.SetInsertionPointToEnd(incr)
	_, okPost := c.lowerExpression(forStmt.Post, ctx)
	c.b.RestoreInsertionPoint()

	return okBody && okPost
}
