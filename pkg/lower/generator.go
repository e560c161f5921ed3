package lower

import (
	"fmt"

	"tsgen/pkg/ast"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// lowerGeneratorFunction rewrites a `function*` before lowering: its body
// becomes the body of a synthetic next() method on a returned object with a
// numeric step field. next() opens with a switchstate(this.step) dispatch;
// locals that live across yields are relocated into fields of `this`.
func (c *Core) lowerGeneratorFunction(name string, lit *ast.FunctionLiteral, ctx GenContext) (*FuncInfo, bool) {
	params, ok := c.resolveParams(lit.Params, ctx)
	if !ok {
		return nil, false
	}

	fqn := c.current().Qualify(name)
	nextBody := c.buildNextBody(lit)

	// Probe: discover relocated locals and the unified yield type against a
	// provisional receiver carrying only the step field.
	provisional := &types.TupleType{Fields: []types.Field{
		{ID: types.NamedID("step"), Type: types.I32},
	}}
	for _, p := range params {
		provisional.Fields = append(provisional.Fields,
			types.Field{ID: types.NamedID(p.Name), Type: p.Type})
	}

	var extraFields []types.Field
	stateCounter := 0
	pr := &PassResult{}
	probeCtx := ctx
	probeCtx.DummyRun = true
	probeCtx.AllowPartialResolve = true
	probeCtx.AllowConstEval = true
	probeCtx.AllocVarsInThisContext = true
	probeCtx.ExtraFields = &extraFields
	probeCtx.StateCounter = &stateCounter
	probeCtx.PassResult = pr
	probeCtx.ThisType = provisional
	probeCtx.ReceiverClass = nil
	probeCtx.BindThisFields = paramFields(params)

	probe := &FuncInfo{Name: name + ".next", FullName: fqn + ".next", Loc: lit.Pos()}
	nextLit := &ast.FunctionLiteral{Body: nextBody}
	if !c.emitFunctionBody(probe, nextLit, nil, resultTupleType(types.Any), probeCtx, true) {
		return nil, false
	}

	yieldType := pr.YieldType
	if yieldType == nil {
		yieldType = types.Any
	}
	resultType := resultTupleType(yieldType)

	// The generator object: step, parameters, relocated locals, next.
	nextProto := &types.FunctionType{
		Inputs:  []types.Type{types.Opaque},
		Results: []types.Type{resultType},
	}
	objFields := append([]types.Field{}, provisional.Fields...)
	objFields = append(objFields, dedupFields(extraFields, objFields)...)
	objFields = append(objFields, types.Field{
		ID:   types.NamedID("next"),
		Type: &types.HybridFunctionType{Func: nextProto},
	})
	objType := &types.TupleType{Fields: objFields}

	// Definitive lowering of next() against the real receiver.
	stateCounter = 0
	nextInfo := &FuncInfo{
		Name:     name + ".next",
		FullName: fqn + ".next",
		Loc:      lit.Pos(),
		Type: &types.FunctionType{
			Inputs:  []types.Type{objType},
			Results: []types.Type{resultType},
		},
		IsGenerator: true,
	}
	emitCtx := ctx
	emitCtx.AllocVarsInThisContext = true
	emitCtx.StateCounter = &stateCounter
	emitCtx.ThisType = objType
	emitCtx.ReceiverClass = nil
	emitCtx.PassResult = nil
	emitCtx.CapturedVars = nil
	emitCtx.BindThisFields = paramFields(params)
	if !c.emitFunctionBody(nextInfo, &ast.FunctionLiteral{Body: c.buildNextBody(lit)}, nil, resultType, emitCtx, false) {
		return nil, false
	}

	// The generator function itself: build and return the object.
	genInfo := &FuncInfo{
		Name:        name,
		FullName:    fqn,
		Loc:         lit.Pos(),
		IsGenerator: true,
	}
	genInfo.Type = c.functionTypeOf(params, objType, ctx.ThisType)

	genCtx := ctx
	genCtx.PassResult = nil
	genCtx.CapturedVars = nil
	if !c.emitGeneratorConstructor(genInfo, nextInfo, objType, params, lit.Pos(), genCtx) {
		return nil, false
	}
	return genInfo, true
}

// resultTupleType is the iterator-result shape `{value?, done}`.
func resultTupleType(value types.Type) *types.TupleType {
	return &types.TupleType{Fields: []types.Field{
		{ID: types.NamedID("value"), Type: types.NewOptionalType(value)},
		{ID: types.NamedID("done"), Type: types.Boolean},
	}}
}

func dedupFields(add, existing []types.Field) []types.Field {
	var out []types.Field
	for _, f := range add {
		if types.FindField(existing, f.ID) < 0 && types.FindField(out, f.ID) < 0 {
			out = append(out, f)
		}
	}
	return out
}

// buildNextBody assembles next()'s statements: the switchstate dispatch,
// the state-zero entry label, the original body, and the terminal result.
func (c *Core) buildNextBody(lit *ast.FunctionLiteral) *ast.BlockStatement {
	stmts := []ast.Statement{
		ast.NewExprStmt(ast.NewCall(ast.NewIdent("switchstate"),
			ast.NewMember(&ast.ThisExpression{}, "step"))),
		&ast.LabeledStatement{Label: "state0", Body: &ast.EmptyStatement{}},
	}
	stmts = append(stmts, lit.Body.Statements...)
	terminal := ast.NewReturn(&ast.ObjectLiteral{Properties: []*ast.ObjectProperty{
		{Key: "value", Value: ast.NewIdent("undefined")},
		{Key: "done", Value: ast.NewBool(true)},
	}})
	stmts = append(stmts, terminal)
	// Statements are shared with the original tree; clear processed marks
	// so a rescheduled pass revisits them.
	ast.ResetProcessed(stmts)
	return ast.NewBlock(stmts...)
}

// emitGeneratorConstructor lowers the generator function itself: allocate
// the object with step = 0, copy parameters in, bind next.
func (c *Core) emitGeneratorConstructor(genInfo, nextInfo *FuncInfo, objType *types.TupleType, params []resolvedParam, loc errors.Position, ctx GenContext) bool {
	attrs := map[string]interface{}{
		"sym_name":  genInfo.FullName,
		"type":      genInfo.Type,
		"generator": true,
	}
	c.b.SaveInsertionPoint()
	defer c.b.RestoreInsertionPoint()
	c.b.SetInsertionPointToEnd(c.module.BodyBlock())

	funcOp := c.b.CreateWithRegions(ir.OpFunc, loc, nil, nil, attrs, 1)
	genInfo.Op = funcOp
	entry := c.b.NewBlock(funcOp.Regions[0], genInfo.Type.Inputs)
	c.b.SetInsertionPointToEnd(entry)

	operands := make([]*ir.Value, 0, len(objType.Fields))
	for _, field := range objType.Fields {
		switch field.ID.Name {
		case "step":
			operands = append(operands, c.b.Constant(loc, types.I32, int64(0)))
		case "next":
			sym := c.b.Create(ir.OpSymbolRef, loc, nil, []types.Type{field.Type},
				map[string]interface{}{"identifier": nextInfo.FullName})
			operands = append(operands, sym.Result(0))
		default:
			if i := paramIndex(params, field.ID.Name); i >= 0 {
				operands = append(operands, c.b.Cast(loc, entry.Args[i], field.Type))
			} else {
				// Relocated locals start undefined.
				operands = append(operands, c.b.Undef(loc, field.Type))
			}
		}
	}
	obj := c.b.Create(ir.OpCreateTuple, loc, operands, []types.Type{objType}, nil)
	c.b.Create(ir.OpReturnVal, loc, []*ir.Value{obj.Result(0)}, nil, nil)
	return true
}

func paramFields(params []resolvedParam) []types.Field {
	out := make([]types.Field, len(params))
	for i, p := range params {
		out[i] = types.Field{ID: types.NamedID(p.Name), Type: p.Type}
	}
	return out
}

func paramIndex(params []resolvedParam, name string) int {
	for i, p := range params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// lowerYield rewrites one yield site: persist the next state ordinal into
// this.step, return a not-done iterator result, and drop the state label
// marking the re-entry point.
func (c *Core) lowerYield(n *ast.YieldExpression, ctx GenContext) (*ir.Value, bool) {
	if ctx.StateCounter == nil || ctx.ThisType == nil {
		c.errorAt(n.Pos(), "yield outside a generator")
		return nil, false
	}

	var value *ir.Value
	if n.Arg != nil {
		v, ok := c.lowerExpression(n.Arg, ctx)
		if !ok {
			return nil, false
		}
		value = v
	} else {
		value = c.b.Undef(n.Pos(), types.Undefined)
	}

	if ctx.PassResult != nil {
		ctx.PassResult.YieldType = types.FindBaseType(
			ctx.PassResult.YieldType, types.WidenType(value.Type), types.Any)
	}

	*ctx.StateCounter++
	state := *ctx.StateCounter

	// this.step = K
	this, ok := c.lowerThis(&ast.ThisExpression{}, ctx)
	if !ok {
		return nil, false
	}
	stepRef := c.b.Create(ir.OpFieldRef, n.Pos(), []*ir.Value{this},
		[]types.Type{&types.RefType{Elem: types.I32}},
		map[string]interface{}{"field": "step"})
	c.b.Store(n.Pos(), c.b.Constant(n.Pos(), types.I32, int64(state)), stepRef.Result(0))

	// return {value, done: false}
	var yieldElem types.Type = types.WidenType(value.Type)
	if rt, isTuple := ctx.ReturnType.(*types.TupleType); isTuple {
		if vt := rt.FieldType(types.NamedID("value")); vt != nil {
			yieldElem = vt
		}
	}
	result := c.b.Create(ir.OpCreateTuple, n.Pos(),
		[]*ir.Value{c.b.Cast(n.Pos(), value, yieldElem), c.b.Constant(n.Pos(), types.Boolean, false)},
		[]types.Type{resultTupleType(yieldElem)}, nil)
	c.b.Create(ir.OpYieldReturnVal, n.Pos(), []*ir.Value{result.Result(0)}, nil,
		map[string]interface{}{"state": state})

	// state_label(K) marks where next() resumes.
	c.b.Create(ir.OpStateLabel, n.Pos(), nil, nil, map[string]interface{}{
		"state": state,
		"name":  fmt.Sprintf("state%d", state),
	})
	return c.b.Undef(n.Pos(), types.Undefined), true
}
