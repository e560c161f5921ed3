package lower

import (
	"strconv"
	"strings"

	"tsgen/pkg/ast"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// lowerStatement dispatches one statement. A false return aborts the
// statement but the enclosing block continues with its successors.
func (c *Core) lowerStatement(s ast.Statement, ctx GenContext) bool {
	if ctx.SkipProcessed && s.IsProcessed() {
		return true
	}
	switch n := s.(type) {
	case *ast.ExpressionStatement:
		_, ok := c.lowerExpression(n.Expr, ctx)
		return ok
	case *ast.VariableStatement:
		return c.lowerVariableStatement(n, ctx)
	case *ast.BlockStatement:
		return c.lowerBlock(n, ctx)
	case *ast.IfStatement:
		return c.lowerIf(n, ctx)
	case *ast.WhileStatement:
		return c.lowerWhile(n, ctx)
	case *ast.DoWhileStatement:
		return c.lowerDoWhile(n, ctx)
	case *ast.ForStatement:
		return c.lowerFor(n, ctx)
	case *ast.ForInStatement:
		return c.lowerForIn(n, ctx)
	case *ast.ForOfStatement:
		return c.lowerForOf(n, ctx)
	case *ast.SwitchStatement:
		return c.lowerSwitch(n, ctx)
	case *ast.LabeledStatement:
		return c.lowerLabeled(n, ctx)
	case *ast.BreakStatement:
		return c.lowerBreakContinue(ir.OpBreak, n.Label, n.Pos(), ctx)
	case *ast.ContinueStatement:
		return c.lowerBreakContinue(ir.OpContinue, n.Label, n.Pos(), ctx)
	case *ast.ReturnStatement:
		return c.lowerReturn(n, ctx)
	case *ast.ThrowStatement:
		return c.lowerThrow(n, ctx)
	case *ast.TryStatement:
		return c.lowerTry(n, ctx)
	case *ast.FunctionDeclaration:
		return c.lowerFunctionDeclaration(n, ctx)
	case *ast.ClassDeclaration:
		return c.lowerClassDeclaration(n, ctx)
	case *ast.InterfaceDeclaration:
		return c.lowerInterfaceDeclaration(n, ctx)
	case *ast.EnumDeclaration:
		return c.lowerEnumDeclaration(n, ctx)
	case *ast.TypeAliasDeclaration:
		return c.lowerTypeAliasDeclaration(n, ctx)
	case *ast.ImportEqualsDeclaration:
		return c.lowerImportEquals(n, ctx)
	case *ast.ModuleDeclaration:
		return c.lowerModuleDeclaration(n, ctx)
	case *ast.EmptyStatement:
		return true
	default:
		c.errorAt(s.Pos(), "unsupported statement")
		return false
	}
}

// lowerBlock enters a scope, flushes injected statements, then lowers each
// child. Failures short-circuit the failing statement only.
func (c *Core) lowerBlock(n *ast.BlockStatement, ctx GenContext) bool {
	c.EnterScope()
	defer c.LeaveScope()
	return c.lowerStatements(n.Statements, ctx)
}

// lowerStatements drains the injected-statement channel ahead of the body
// and again between statements (an if whose then-branch always exits
// injects its negated narrowing for the statements that follow).
func (c *Core) lowerStatements(stmts []ast.Statement, ctx GenContext) bool {
	ok := true
	flush := func() {
		if ctx.Generated == nil {
			return
		}
		for len(*ctx.Generated) > 0 {
			injected := *ctx.Generated
			*ctx.Generated = nil
			for _, s := range injected {
				if !c.lowerStatement(s, ctx) {
					ok = false
				}
			}
		}
	}
	flush()
	for _, s := range stmts {
		if !c.lowerStatement(s, ctx) {
			ok = false
		}
		flush()
	}
	return ok
}

// lowerBody lowers a statement as a region body: blocks keep their own
// scope handling, any other statement gets a scope of its own.
func (c *Core) lowerBody(s ast.Statement, ctx GenContext) bool {
	if blk, ok := s.(*ast.BlockStatement); ok {
		return c.lowerBlock(blk, ctx)
	}
	c.EnterScope()
	defer c.LeaveScope()
	return c.lowerStatements([]ast.Statement{s}, ctx)
}

func (c *Core) lowerIf(n *ast.IfStatement, ctx GenContext) bool {
	cond, ok := c.lowerExpression(n.Cond, ctx)
	if !ok {
		return false
	}
	cond = c.coerceToBool(cond, n.Pos())

	nregions := 1
	if n.Else != nil {
		nregions = 2
	}
	ifOp := c.b.CreateWithRegions(ir.OpIf, n.Pos(), []*ir.Value{cond}, nil, nil, nregions)

	// Safe-cast narrowing applies inside the then-branch.
	thenCtx := ctx
	var generated []ast.Statement
	thenCtx.Generated = &generated
	if guard := c.detectTypeGuard(n.Cond, ctx); guard != nil {
		c.applyGuard(guard, &thenCtx, false)
	}

	thenBlock := c.b.NewBlock(ifOp.Regions[0], nil)
	c.b.SaveInsertionPoint()
	c.b.SetInsertionPointToEnd(thenBlock)
	okThen := c.lowerBody(n.Then, thenCtx)
	c.b.RestoreInsertionPoint()

	okElse := true
	if n.Else != nil {
		elseCtx := ctx
		var elseGenerated []ast.Statement
		elseCtx.Generated = &elseGenerated
		if guard := c.detectTypeGuard(n.Cond, ctx); guard != nil {
			c.applyGuard(guard, &elseCtx, true)
		}
		elseBlock := c.b.NewBlock(ifOp.Regions[1], nil)
		c.b.SaveInsertionPoint()
		c.b.SetInsertionPointToEnd(elseBlock)
		okElse = c.lowerBody(n.Else, elseCtx)
		c.b.RestoreInsertionPoint()
	}

	// A then-branch that always exits narrows the rest of the block to the
	// negated guard.
	if n.Else == nil && ctx.Generated != nil && alwaysExits(n.Then) {
		if guard := c.detectTypeGuard(n.Cond, ctx); guard != nil {
			restCtx := ctx
			c.applyGuard(guard, &restCtx, true)
		}
	}
	return okThen && okElse
}

// alwaysExits reports whether a statement unconditionally leaves the
// enclosing block.
func alwaysExits(s ast.Statement) bool {
	switch n := s.(type) {
	case *ast.ReturnStatement, *ast.ThrowStatement, *ast.BreakStatement, *ast.ContinueStatement:
		return true
	case *ast.BlockStatement:
		if len(n.Statements) == 0 {
			return false
		}
		return alwaysExits(n.Statements[len(n.Statements)-1])
	default:
		return false
	}
}

// lowerCondRegion lowers an expression into a fresh region; the region's
// final op carries the condition value.
func (c *Core) lowerCondRegion(region *ir.Region, e ast.Expression, ctx GenContext, loc errors.Position) bool {
	block := c.b.NewBlock(region, nil)
	c.b.SaveInsertionPoint()
	defer c.b.RestoreInsertionPoint()
	c.b.SetInsertionPointToEnd(block)
	v, ok := c.lowerExpression(e, ctx)
	if !ok {
		return false
	}
	cond := c.coerceToBool(v, loc)
	c.b.Create(ir.OpBranch, loc, []*ir.Value{cond}, nil, map[string]interface{}{"condition": true})
	return true
}

func (c *Core) lowerWhile(n *ast.WhileStatement, ctx GenContext) bool {
	whileOp := c.b.CreateWithRegions(ir.OpWhile, n.Pos(), nil, nil, c.takeLabelAttr(), 2)
	c.pushLoop(whileOp)
	defer c.popLoop()

	if !c.lowerCondRegion(whileOp.Regions[0], n.Cond, ctx, n.Pos()) {
		return false
	}

	body := c.b.NewBlock(whileOp.Regions[1], nil)
	c.b.SaveInsertionPoint()
	defer c.b.RestoreInsertionPoint()
	c.b.SetInsertionPointToEnd(body)
	return c.lowerBody(n.Body, ctx)
}

func (c *Core) lowerDoWhile(n *ast.DoWhileStatement, ctx GenContext) bool {
	doOp := c.b.CreateWithRegions(ir.OpDoWhile, n.Pos(), nil, nil, c.takeLabelAttr(), 2)
	c.pushLoop(doOp)
	defer c.popLoop()

	body := c.b.NewBlock(doOp.Regions[0], nil)
	c.b.SaveInsertionPoint()
	c.b.SetInsertionPointToEnd(body)
	okBody := c.lowerBody(n.Body, ctx)
	c.b.RestoreInsertionPoint()

	return okBody && c.lowerCondRegion(doOp.Regions[1], n.Cond, ctx, n.Pos())
}

func (c *Core) lowerFor(n *ast.ForStatement, ctx GenContext) bool {
	// The initializer scope wraps the whole loop.
	c.EnterScope()
	defer c.LeaveScope()

	if n.Init != nil {
		if !c.lowerStatement(n.Init, ctx) {
			return false
		}
	}

	forOp := c.b.CreateWithRegions(ir.OpFor, n.Pos(), nil, nil, c.takeLabelAttr(), 3)
	c.pushLoop(forOp)
	defer c.popLoop()

	if n.Cond != nil {
		if !c.lowerCondRegion(forOp.Regions[0], n.Cond, ctx, n.Pos()) {
			return false
		}
	} else {
		block := c.b.NewBlock(forOp.Regions[0], nil)
		c.b.SaveInsertionPoint()
		c.b.SetInsertionPointToEnd(block)
		t := c.b.Constant(n.Pos(), types.Boolean, true)
		c.b.Create(ir.OpBranch, n.Pos(), []*ir.Value{t}, nil, map[string]interface{}{"condition": true})
		c.b.RestoreInsertionPoint()
	}

	body := c.b.NewBlock(forOp.Regions[1], nil)
	c.b.SaveInsertionPoint()
	c.b.SetInsertionPointToEnd(body)
	okBody := c.lowerBody(n.Body, ctx)
	c.b.RestoreInsertionPoint()

	if n.Post != nil {
		incr := c.b.NewBlock(forOp.Regions[2], nil)
		c.b.SaveInsertionPoint()
		c.b.SetInsertionPointToEnd(incr)
		_, okPost := c.lowerExpression(n.Post, ctx)
		c.b.RestoreInsertionPoint()
		if !okPost {
			return false
		}
	}
	return okBody
}

// lowerForIn lowers into a numeric for over [0, a.length).
func (c *Core) lowerForIn(n *ast.ForInStatement, ctx GenContext) bool {
	return c.lowerIndexedLoop(n.Object, n.Kind, n.Target, n.Body, true, ctx, n.Pos())
}

// lowerForOf takes the ES2015 iterator protocol when the iterand has a
// `next` property, else indexes like for-in (binding elements, not indices).
func (c *Core) lowerForOf(n *ast.ForOfStatement, ctx GenContext) bool {
	if n.IsAwait {
		return c.lowerForAwait(n, ctx)
	}

	// Probe the iterand's type first; the iterable expression must lower
	// exactly once on whichever path is taken.
	iterType, ok := c.probeExpressionType(n.Iterable, ctx)
	if !ok {
		return false
	}
	if c.typeHasMember(types.WidenType(iterType), "next") {
		iter, ok := c.lowerExpression(n.Iterable, ctx)
		if !ok {
			return false
		}
		return c.lowerIteratorLoop(n, iter, ctx)
	}
	return c.lowerIndexedLoop(n.Iterable, n.Kind, n.Target, n.Body, false, ctx, n.Pos())
}

// lowerIndexedLoop is the shared for-in / for-of rewrite:
// for (let i = 0; i < a.length; i++) { <target> = keys ? i : a[i]; body }
func (c *Core) lowerIndexedLoop(iterable ast.Expression, kind ast.DeclKind, target ast.BindingTarget, body ast.Statement, wantIndex bool, ctx GenContext, loc errors.Position) bool {
	c.EnterScope()
	defer c.LeaveScope()

	arr, ok := c.lowerExpression(iterable, ctx)
	if !ok {
		return false
	}
	arrName := c.anonName("_it")
	arrVar := c.declareLocal(arrName, types.WidenType(arr.Type), loc, false, ctx)
	if arrVar == nil {
		return false
	}
	c.b.Store(loc, c.b.Cast(loc, arr, types.WidenType(arr.Type)), arrVar.Storage)

	idxName := c.anonName("_i")
	rewritten := &ast.ForStatement{
		Init: ast.NewVarDecl(ast.DeclLet, idxName, nil, ast.NewInt(0)),
		Cond: ast.NewInfix("<", ast.NewIdent(idxName), ast.NewMember(ast.NewIdent(arrName), "length")),
		Post: &ast.PostfixExpression{Op: "++", Left: ast.NewIdent(idxName)},
	}
	var bindInit ast.Expression
	if wantIndex {
		bindInit = ast.NewIdent(idxName)
	} else {
		bindInit = ast.NewIndex(ast.NewIdent(arrName), ast.NewIdent(idxName))
	}
	bind := &ast.VariableStatement{
		Kind: kind,
		Declarations: []*ast.VariableDeclarator{
			{Target: target, Init: bindInit},
		},
	}
	rewritten.Body = ast.NewBlock(bind, body)
	return c.lowerStatement(rewritten, ctx)
}

// lowerIteratorLoop is the iterator-protocol form of for-of:
// b = iter; c = b.next(); while (!c.done) { x = c.value; body; c = b.next(); }
func (c *Core) lowerIteratorLoop(n *ast.ForOfStatement, iter *ir.Value, ctx GenContext) bool {
	c.EnterScope()
	defer c.LeaveScope()

	loc := n.Pos()
	iterName := c.anonName("_iter")
	iterVar := c.declareLocal(iterName, types.WidenType(iter.Type), loc, false, ctx)
	if iterVar == nil {
		return false
	}
	c.b.Store(loc, iter, iterVar.Storage)

	resName := c.anonName("_res")
	nextCall := func() ast.Expression {
		return ast.NewCall(ast.NewMember(ast.NewIdent(iterName), "next"))
	}
	first := ast.NewVarDecl(ast.DeclLet, resName, nil, nextCall())
	if !c.lowerStatement(first, ctx) {
		return false
	}

	bind := &ast.VariableStatement{
		Kind: n.Kind,
		Declarations: []*ast.VariableDeclarator{
			{Target: n.Target, Init: ast.NewMember(ast.NewIdent(resName), "value")},
		},
	}
	step := ast.NewExprStmt(ast.NewAssign(ast.NewIdent(resName), nextCall()))
	loop := &ast.WhileStatement{
		Cond: &ast.PrefixExpression{Op: "!", Right: ast.NewMember(ast.NewIdent(resName), "done")},
		Body: ast.NewBlock(bind, n.Body, step),
	}
	return c.lowerStatement(loop, ctx)
}

// lowerSwitch emits one op with a region per case in source order (the
// default case's position is recorded as default_index) and fall-through
// chaining. A literal case expression narrows the
// discriminant inside its body.
func (c *Core) lowerSwitch(n *ast.SwitchStatement, ctx GenContext) bool {
	disc, ok := c.lowerExpression(n.Disc, ctx)
	if !ok {
		return false
	}

	operands := []*ir.Value{disc}
	caseIndexes := []int{}
	defaultIndex := -1
	for i, cs := range n.Cases {
		if cs.Test == nil {
			defaultIndex = i
			continue
		}
		tv, ok := c.lowerExpression(cs.Test, ctx)
		if !ok {
			return false
		}
		// Cases compare with equality at the case-expression's type.
		operands = append(operands, c.b.Cast(cs.Pos(), tv, types.WidenType(tv.Type)))
		caseIndexes = append(caseIndexes, i)
	}

	switchOp := c.b.CreateWithRegions(ir.OpSwitch, n.Pos(), operands, nil, map[string]interface{}{
		"default_index": defaultIndex,
	}, len(n.Cases))
	c.pushSwitch(switchOp)
	defer c.popLoop()

	allOk := true
	for i, cs := range n.Cases {
		block := c.b.NewBlock(switchOp.Regions[i], nil)
		c.b.SaveInsertionPoint()
		c.b.SetInsertionPointToEnd(block)

		caseCtx := ctx
		var generated []ast.Statement
		caseCtx.Generated = &generated
		// Literal case value: narrow the discriminant within the body.
		if cs.Test != nil {
			if ident, isIdent := n.Disc.(*ast.Identifier); isIdent {
				if lit := literalOfExpression(cs.Test); lit != nil {
					if narrowed := c.narrowedByLiteral(ident.Name, lit, ctx); narrowed != nil {
						generated = append(generated, ast.NewNarrowedConst(ident.Name, narrowed))
					}
				}
			}
		}

		c.EnterScope()
		if !c.lowerStatements(cs.Body, caseCtx) {
			allOk = false
		}
		c.LeaveScope()
		c.b.RestoreInsertionPoint()
	}
	return allOk
}

// lowerLabeled binds a label: loops carry it as an attribute, pseudo-labels
// beginning with "state" become generator re-entry markers, anything else
// wraps into a labeled op with a merge block.
func (c *Core) lowerLabeled(n *ast.LabeledStatement, ctx GenContext) bool {
	if strings.HasPrefix(n.Label, "state") {
		if ord, err := strconv.Atoi(strings.TrimPrefix(n.Label, "state")); err == nil {
			c.b.Create(ir.OpStateLabel, n.Pos(), nil, nil, map[string]interface{}{"state": ord})
			if n.Body == nil {
				return true
			}
			return c.lowerStatement(n.Body, ctx)
		}
	}

	if isLoopStatement(n.Body) {
		c.pendingLabel = n.Label
		return c.lowerStatement(n.Body, ctx)
	}

	labeledOp := c.b.CreateWithRegions(ir.OpLabeled, n.Pos(), nil, nil,
		map[string]interface{}{"label": n.Label}, 1)
	c.labels = append(c.labels, labelFrame{name: n.Label, op: labeledOp})
	defer c.popLoop()

	block := c.b.NewBlock(labeledOp.Regions[0], nil)
	c.b.SaveInsertionPoint()
	defer c.b.RestoreInsertionPoint()
	c.b.SetInsertionPointToEnd(block)
	return c.lowerBody(n.Body, ctx)
}

func isLoopStatement(s ast.Statement) bool {
	switch s.(type) {
	case *ast.WhileStatement, *ast.DoWhileStatement, *ast.ForStatement,
		*ast.ForInStatement, *ast.ForOfStatement:
		return true
	default:
		return false
	}
}

// takeLabelAttr consumes a pending label into loop-op attributes.
func (c *Core) takeLabelAttr() map[string]interface{} {
	if c.pendingLabel == "" {
		return nil
	}
	attrs := map[string]interface{}{"label": c.pendingLabel}
	c.pendingLabel = ""
	return attrs
}

func (c *Core) pushLoop(op *ir.Op) {
	c.labels = append(c.labels, labelFrame{name: op.StringAttr("label"), op: op, loop: true})
}

func (c *Core) pushSwitch(op *ir.Op) {
	c.labels = append(c.labels, labelFrame{name: "", op: op})
}

func (c *Core) popLoop() {
	c.labels = c.labels[:len(c.labels)-1]
}

// lowerBreakContinue binds to the nearest matching labeled operation.
func (c *Core) lowerBreakContinue(kind ir.OpKind, label string, loc errors.Position, ctx GenContext) bool {
	for i := len(c.labels) - 1; i >= 0; i-- {
		frame := c.labels[i]
		if kind == ir.OpContinue && !frame.loop {
			continue
		}
		if label != "" && frame.name != label {
			continue
		}
		attrs := map[string]interface{}{}
		if label != "" {
			attrs["label"] = label
		}
		c.b.Create(kind, loc, nil, nil, attrs)
		return true
	}
	c.errorAt(loc, "no enclosing statement matches this jump")
	return false
}

func (c *Core) lowerReturn(n *ast.ReturnStatement, ctx GenContext) bool {
	var v *ir.Value
	if n.Value != nil {
		var ok bool
		v, ok = c.lowerExpression(n.Value, ctx)
		if !ok {
			return false
		}
	}

	// Feed the return-type sink during discovery.
	if ctx.PassResult != nil {
		var rt types.Type = types.Void
		if v != nil {
			rt = v.Type
			ctx.PassResult.ReturnTypeRequired = true
		}
		if !c.mergeReturnType(ctx.PassResult, rt, n.Pos()) {
			return false
		}
	}

	if v == nil {
		c.b.Create(ir.OpReturnVal, n.Pos(), nil, nil, nil)
		return true
	}
	if ctx.ReturnType != nil && ctx.ReturnType != types.Void && ctx.ReturnType != types.UndefPlaceholder {
		coerced, ok := c.coerceAssign(v, ctx.ReturnType, n.Pos(), ctx)
		if !ok {
			return false
		}
		v = coerced
	}
	c.b.Create(ir.OpReturnVal, n.Pos(), []*ir.Value{v}, nil, nil)
	return true
}

// mergeReturnType unifies one return site into the sink: the first type is
// taken verbatim; later ones must be castable in one direction; types with
// undefines never override a concrete type.
func (c *Core) mergeReturnType(pr *PassResult, rt types.Type, loc errors.Position) bool {
	if pr.ReturnType == nil || pr.ReturnType == types.Void {
		pr.ReturnType = rt
		return true
	}
	if rt == types.Void || rt == nil {
		return true
	}
	if types.HasUndefines(rt) && !types.HasUndefines(pr.ReturnType) {
		return true
	}
	merged := types.FindBaseType(types.WidenType(pr.ReturnType), types.WidenType(rt), nil)
	if merged == nil {
		// Mixed value/void or callable/value returns cannot reconcile; two
		// unrelated value types meet at their union (narrowed branches
		// routinely return different arms).
		if rt == types.Void || pr.ReturnType == types.Void ||
			(types.UnwrapCallable(rt) == nil) != (types.UnwrapCallable(pr.ReturnType) == nil) {
			c.errorAt(loc, "return type %s is incompatible with %s", rt, pr.ReturnType)
			return false
		}
		merged = types.NewUnionType(types.WidenType(pr.ReturnType), types.WidenType(rt))
	}
	pr.ReturnType = merged
	return true
}

func (c *Core) lowerThrow(n *ast.ThrowStatement, ctx GenContext) bool {
	v, ok := c.lowerExpression(n.Value, ctx)
	if !ok {
		return false
	}
	if ctx.FuncOp != nil {
		ctx.FuncOp.SetAttr("personality", true)
	}
	attrs := map[string]interface{}{}
	if !ctx.DummyRun {
		attrs["rtti"] = c.rttiHelperName(v.Type)
	}
	c.b.Create(ir.OpThrow, n.Pos(), []*ir.Value{v}, nil, attrs)
	return true
}

// rttiHelperName names the platform RTTI helper registered for a thrown or
// caught type.
func (c *Core) rttiHelperName(t types.Type) string {
	flavor := "itanium"
	if c.opts.WinException {
		flavor = "win32"
	}
	return flavor + ":" + types.WidenType(t).String()
}

func (c *Core) lowerTry(n *ast.TryStatement, ctx GenContext) bool {
	// try marks the enclosing function as needing a personality routine.
	if ctx.FuncOp != nil {
		ctx.FuncOp.SetAttr("personality", true)
	}

	nregions := 1
	if n.Catch != nil {
		nregions++
	}
	if n.Finally != nil {
		nregions++
	}
	tryOp := c.b.CreateWithRegions(ir.OpTry, n.Pos(), nil, nil, map[string]interface{}{
		"has_catch":   n.Catch != nil,
		"has_finally": n.Finally != nil,
	}, nregions)

	bodyBlock := c.b.NewBlock(tryOp.Regions[0], nil)
	c.b.SaveInsertionPoint()
	c.b.SetInsertionPointToEnd(bodyBlock)
	okBody := c.lowerBlock(n.Block, ctx)
	c.b.RestoreInsertionPoint()

	okCatch := true
	regionIdx := 1
	if n.Catch != nil {
		catchType := types.Type(types.Any)
		if n.CatchType != nil {
			t, ok := c.resolveTypeNode(n.CatchType, ctx)
			if !ok {
				return false
			}
			catchType = t
		}
		if !ctx.DummyRun {
			tryOp.SetAttr("catch_rtti", c.rttiHelperName(catchType))
		}

		catchBlock := c.b.NewBlock(tryOp.Regions[regionIdx], []types.Type{catchType})
		regionIdx++
		c.b.SaveInsertionPoint()
		c.b.SetInsertionPointToEnd(catchBlock)

		// The catch variable is declared in the enclosing scope and bound
		// from the catch region's argument.
		c.EnterScope()
		if n.CatchVar != nil {
			decl := &VarInfo{
				Name:      n.CatchVar.Name,
				FullName:  n.CatchVar.Name,
				Type:      catchType,
				Loc:       n.CatchVar.Pos(),
				ReadWrite: false,
			}
			storage := c.b.Variable(n.Pos(), catchType, n.CatchVar.Name, catchBlock.Args[0])
			decl.Storage = storage
			c.Declare(n.CatchVar.Name, decl, DeclareOptions{})
		}
		okCatch = c.lowerBlock(n.Catch, ctx)
		c.LeaveScope()
		c.b.RestoreInsertionPoint()
	}

	okFinally := true
	if n.Finally != nil {
		finallyBlock := c.b.NewBlock(tryOp.Regions[regionIdx], nil)
		c.b.SaveInsertionPoint()
		c.b.SetInsertionPointToEnd(finallyBlock)
		okFinally = c.lowerBlock(n.Finally, ctx)
		c.b.RestoreInsertionPoint()
	}
	return okBody && okCatch && okFinally
}

// literalOfExpression extracts a literal type from a literal expression.
func literalOfExpression(e ast.Expression) *types.LiteralType {
	switch n := e.(type) {
	case *ast.StringLiteral:
		return &types.LiteralType{Value: n.Value, Base: types.String}
	case *ast.NumberLiteral:
		if n.IsInt {
			return &types.LiteralType{Value: n.IntValue, Base: types.I32}
		}
		return &types.LiteralType{Value: n.Value, Base: types.Number}
	case *ast.BooleanLiteral:
		return &types.LiteralType{Value: n.Value, Base: types.Boolean}
	default:
		return nil
	}
}
