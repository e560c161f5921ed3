package lower

import (
	"tsgen/pkg/ast"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// lowerVariableStatement declares each declarator, recursing structurally
// through destructuring patterns: one declaration per leaf.
func (c *Core) lowerVariableStatement(n *ast.VariableStatement, ctx GenContext) bool {
	for _, d := range n.Declarations {
		if !c.lowerDeclarator(n.Kind, d, n.Synthetic, ctx) {
			return false
		}
	}
	return true
}

func (c *Core) lowerDeclarator(kind ast.DeclKind, d *ast.VariableDeclarator, synthetic bool, ctx GenContext) bool {
	var annotated types.Type
	if d.Type != nil {
		t, ok := c.resolveTypeNode(d.Type, ctx)
		if !ok {
			return false
		}
		annotated = t
	}

	var init *ir.Value
	if d.Init != nil {
		initCtx := ctx
		if ft, ok := annotated.(*types.FunctionType); ok {
			initCtx.ArgTypeDest = ft
		}
		v, ok := c.lowerExpression(d.Init, initCtx)
		if !ok {
			return false
		}
		init = v
	}

	return c.bindTarget(kind, d.Target, annotated, init, synthetic, d.Pos(), ctx)
}

// bindTarget binds one pattern leaf or recurses into array/object patterns.
func (c *Core) bindTarget(kind ast.DeclKind, target ast.BindingTarget, annotated types.Type, init *ir.Value, synthetic bool, loc errors.Position, ctx GenContext) bool {
	switch t := target.(type) {
	case *ast.Identifier:
		return c.bindIdentifier(kind, t, annotated, init, synthetic, loc, ctx)

	case *ast.ArrayPattern:
		if init == nil {
			c.errorAt(loc, "destructuring requires an initializer")
			return false
		}
		for i, elem := range t.Elements {
			if elem == nil {
				continue
			}
			idx := c.b.Constant(loc, types.I32, int64(i))
			ev := c.elementValue(init, idx, loc)
			if ev == nil {
				c.errorAt(loc, "cannot destructure non-array value")
				return false
			}
			if !c.bindTarget(kind, elem, nil, ev, synthetic, loc, ctx) {
				return false
			}
		}
		return true

	case *ast.ObjectPattern:
		if init == nil {
			c.errorAt(loc, "destructuring requires an initializer")
			return false
		}
		for _, prop := range t.Props {
			mv, ok := c.memberAccess(init, prop.Key, loc, ctx)
			if !ok {
				return false
			}
			if !c.bindTarget(kind, prop.Target, nil, mv, synthetic, loc, ctx) {
				return false
			}
		}
		return true

	default:
		c.errorAt(loc, "unsupported binding pattern")
		return false
	}
}

// bindIdentifier declares one named binding with the typing rules:
// annotation wins; otherwise the initializer's type, widened for non-const
// bindings (const-array/const-tuple widen to array/tuple for let).
func (c *Core) bindIdentifier(kind ast.DeclKind, ident *ast.Identifier, annotated types.Type, init *ir.Value, synthetic bool, loc errors.Position, ctx GenContext) bool {
	var bindType types.Type
	switch {
	case annotated != nil:
		bindType = annotated
	case init != nil:
		if kind == ast.DeclConst {
			bindType = init.Type
		} else {
			bindType = types.WidenType(init.Type)
		}
	default:
		bindType = types.UndefPlaceholder
	}

	readWrite := kind != ast.DeclConst

	// Const-ref binding: a const bound straight to an element ref keeps
	// aliasing to the source storage (for-of loop variables).
	if kind == ast.DeclConst && init != nil && init.Def != nil && init.Def.Kind == ir.OpLoad {
		if srcRef := init.Def.Operands[0]; srcRef.Def != nil && srcRef.Def.Kind == ir.OpElementRef {
			decl := &VarInfo{
				Name:          ident.Name,
				FullName:      c.current().Qualify(ident.Name),
				Type:          &types.ValueRefType{Elem: types.StorageType(bindType)},
				Loc:           loc,
				ReadWrite:     false,
				Storage:       srcRef,
				CapturedByRef: true,
			}
			if !c.Declare(ident.Name, decl, DeclareOptions{Redeclare: synthetic}) {
				c.errorAt(loc, "'%s' is already declared in this scope", ident.Name)
				return false
			}
			return true
		}
	}

	opts := DeclareOptions{Redeclare: synthetic}
	decl := c.declareLocalKindOpts(kind, ident.Name, types.StorageType(bindType), loc, readWrite, opts, ctx)
	if decl == nil {
		return false
	}
	if init != nil {
		target := types.StorageType(bindType)
		if synthetic {
			// Safe-cast narrowing is a guard-checked downcast; the guard
			// already proved it, so no castability check applies.
			c.b.Store(loc, c.castValue(init, target, loc, ctx), decl.Storage)
			return true
		}
		coerced, ok := c.coerceAssign(init, target, loc, ctx)
		if !ok {
			return false
		}
		c.b.Store(loc, coerced, decl.Storage)
	}
	return true
}

// declareLocal allocates block-scoped storage for a name.
func (c *Core) declareLocal(name string, t types.Type, loc errors.Position, readWrite bool, ctx GenContext) *VarInfo {
	return c.declareLocalKindOpts(ast.DeclLet, name, t, loc, readWrite, DeclareOptions{}, ctx)
}

func (c *Core) declareLocalKindOpts(kind ast.DeclKind, name string, t types.Type, loc errors.Position, readWrite bool, opts DeclareOptions, ctx GenContext) *VarInfo {
	decl := &VarInfo{
		Name:      name,
		FullName:  c.current().Qualify(name),
		Type:      t,
		Loc:       loc,
		ReadWrite: readWrite,
	}

	// Generator lowering relocates locals into fields of `this`.
	if ctx.AllocVarsInThisContext && ctx.ThisType != nil {
		field := types.Field{ID: types.NamedID(name), Type: t}
		if ctx.ExtraFields != nil {
			*ctx.ExtraFields = append(*ctx.ExtraFields, field)
		}
		this, ok := c.lowerThis(&ast.ThisExpression{}, ctx)
		if !ok {
			return nil
		}
		ref := c.b.Create(ir.OpFieldRef, loc, []*ir.Value{this},
			[]types.Type{&types.RefType{Elem: t}},
			map[string]interface{}{"field": name})
		decl.Storage = ref.Result(0)
	} else {
		storage := c.allocVariable(t, name, loc, ctx)
		decl.Storage = storage
	}

	declared := false
	if kind == ast.DeclVar {
		declared = c.DeclareAtFunctionLevel(name, decl, DeclareOptions{Redeclare: true})
	} else {
		declared = c.Declare(name, decl, opts)
	}
	if !declared {
		c.errorAt(loc, "'%s' is already declared in this scope", name)
		return nil
	}
	return decl
}

// allocVariable emits the variable op, hoisting it into the region
// enclosing CurrentOp when the context demands out-of-op allocation.
func (c *Core) allocVariable(t types.Type, name string, loc errors.Position, ctx GenContext) *ir.Value {
	if ctx.AllocVarsOutsideCurrentOp && ctx.CurrentOp != nil && ctx.CurrentOp.Block() != nil {
		block := ctx.CurrentOp.Block()
		pos := 0
		for i, op := range block.Ops {
			if op == ctx.CurrentOp {
				pos = i
				break
			}
		}
		c.b.SaveInsertionPoint()
		c.b.SetInsertionPoint(block, pos)
		v := c.b.Variable(loc, t, name, nil)
		c.b.RestoreInsertionPoint()
		return v
	}
	return c.b.Variable(loc, t, name, nil)
}

// lowerGlobalVariableStatement declares namespace-level storage: a global
// op per binding, with non-constant initializers deferred to a global
// constructor.
func (c *Core) lowerGlobalVariableStatement(n *ast.VariableStatement, ctx GenContext) bool {
	for _, d := range n.Declarations {
		ident, ok := d.Target.(*ast.Identifier)
		if !ok {
			// Pattern globals lower through a synthetic constructor body.
			return c.lowerGlobalPattern(n.Kind, d, ctx)
		}

		var annotated types.Type
		if d.Type != nil {
			t, ok := c.resolveTypeNode(d.Type, ctx)
			if !ok {
				return false
			}
			annotated = t
		}

		fqn := c.current().Qualify(ident.Name)
		globalOp := c.b.CreateWithRegions(ir.OpGlobal, d.Pos(), nil, nil, map[string]interface{}{
			"sym_name": fqn,
		}, 1)

		var initType types.Type
		if d.Init != nil {
			initBlock := c.b.NewBlock(globalOp.Regions[0], nil)
			c.b.SaveInsertionPoint()
			c.b.SetInsertionPointToEnd(initBlock)
			v, ok := c.lowerExpression(d.Init, ctx)
			c.b.RestoreInsertionPoint()
			if !ok {
				c.b.EraseOp(globalOp)
				return false
			}
			initType = v.Type
		}

		bindType := annotated
		if bindType == nil {
			if initType == nil {
				c.errorAt(d.Pos(), "global '%s' needs a type or an initializer", ident.Name)
				c.b.EraseOp(globalOp)
				return false
			}
			if n.Kind == ast.DeclConst {
				bindType = initType
			} else {
				bindType = types.WidenType(initType)
			}
		}
		globalOp.SetAttr("type", bindType)

		decl := &VarInfo{
			Name:      ident.Name,
			FullName:  fqn,
			Type:      bindType,
			Loc:       d.Pos(),
			ReadWrite: n.Kind != ast.DeclConst,
			Global:    true,
		}
		// A re-lowered pass rebinds its own declaration; a different
		// declaration under the same name is a structural error.
		if existing, exists := c.current().Globals[normName(ident.Name)]; exists && existing.Loc != d.Pos() {
			c.errorAt(d.Pos(), "'%s' is already declared", ident.Name)
			c.b.EraseOp(globalOp)
			return false
		}
		c.current().Globals[normName(ident.Name)] = decl
	}
	return true
}

// lowerGlobalPattern lowers destructuring globals through a global
// constructor op holding the element-wise stores.
func (c *Core) lowerGlobalPattern(kind ast.DeclKind, d *ast.VariableDeclarator, ctx GenContext) bool {
	ctorOp := c.b.CreateWithRegions(ir.OpGlobalConstructor, d.Pos(), nil, nil, nil, 1)
	block := c.b.NewBlock(ctorOp.Regions[0], nil)
	c.b.SaveInsertionPoint()
	defer c.b.RestoreInsertionPoint()
	c.b.SetInsertionPointToEnd(block)

	var init *ir.Value
	if d.Init != nil {
		v, ok := c.lowerExpression(d.Init, ctx)
		if !ok {
			return false
		}
		init = v
	}
	return c.bindTarget(kind, d.Target, nil, init, false, d.Pos(), ctx)
}

// lowerEnumDeclaration folds member values under allow_const_eval; missing
// initializers take the previous value plus one; the storage width is the
// smallest of i32/i64/i128 covering the maximum magnitude.
func (c *Core) lowerEnumDeclaration(n *ast.EnumDeclaration, ctx GenContext) bool {
	fqn := c.current().Qualify(n.Name.Name)
	info := &EnumInfo{
		Name:     n.Name.Name,
		FullName: fqn,
		Loc:      n.Pos(),
		Order:    make([]string, 0, len(n.Members)),
		Values:   map[string]int64{},
	}

	evalCtx := ctx
	evalCtx.AllowConstEval = true

	next := int64(0)
	maxMagnitude := int64(0)
	for _, m := range n.Members {
		value := next
		if m.Init != nil {
			v, ok := c.lowerExpression(m.Init, evalCtx)
			if !ok {
				return false
			}
			iv, isConst := constantInt(v)
			if !isConst {
				c.errorAt(m.Pos(), "enum member '%s' requires a constant initializer", m.Name)
				return false
			}
			value = iv
		}
		info.Order = append(info.Order, m.Name)
		info.Values[m.Name] = value
		if mag := magnitude(value); mag > maxMagnitude {
			maxMagnitude = mag
		}
		next = value + 1
	}

	info.Storage = enumStorageWidth(maxMagnitude)
	info.Type = &types.EnumType{Name: fqn, Storage: info.Storage}

	c.current().Enums[normName(n.Name.Name)] = info
	c.enumsByFQN[fqn] = info
	return true
}

func magnitude(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func enumStorageWidth(maxMagnitude int64) types.Type {
	if maxMagnitude < (1 << 31) {
		return types.I32
	}
	// Values beyond 63 bits of magnitude cannot appear in int64 folding;
	// i128 is reserved for bigint-initialized enums.
	return types.I64
}

// lowerTypeAliasDeclaration computes the aliased type under a scope that
// temporarily extends the alias map with the alias's own parameters.
func (c *Core) lowerTypeAliasDeclaration(n *ast.TypeAliasDeclaration, ctx GenContext) bool {
	aliasCtx := ctx
	if len(n.TypeParams) > 0 {
		params := map[string]types.Type{}
		for _, p := range n.TypeParams {
			params[p] = &types.TypeReference{Name: p}
		}
		aliasCtx = ctx.WithAliases(params)
	}
	t, ok := c.resolveTypeNode(n.Type, aliasCtx)
	if !ok {
		return false
	}
	c.current().TypeAliases[normName(n.Name.Name)] = t
	if len(n.TypeParams) > 0 {
		c.aliasParams[n.Name.Name] = n.TypeParams
	}
	return true
}

// lowerImportEquals binds a short name to a namespace / class / interface
// by its fully-qualified name.
func (c *Core) lowerImportEquals(n *ast.ImportEqualsDeclaration, ctx GenContext) bool {
	if _, ok := c.LookupQualified(n.Target); !ok {
		c.unresolvedName(ctx, n.Pos(), n.Target)
		return false
	}
	c.current().Imports[normName(n.Name.Name)] = n.Target
	return true
}

// lowerModuleDeclaration enters a (possibly nested) namespace and runs its
// body through the same processed-flag machinery as the top level.
func (c *Core) lowerModuleDeclaration(n *ast.ModuleDeclaration, ctx GenContext) bool {
	if n.IsModule && !c.opts.ModuleAsNamespace {
		c.errorAt(n.Pos(), "'module' declarations are not enabled; use a namespace")
		return false
	}
	ns := c.current().Child(n.Name.Name)
	c.pushNamespace(ns)
	defer c.popNamespace()

	ok := true
	for _, stmt := range n.Body {
		if ctx.SkipProcessed && stmt.IsProcessed() {
			continue
		}
		if c.lowerTopStatement(stmt, ctx) {
			if ctx.DummyRun {
				stmt.SetProcessed(true)
			}
		} else {
			ok = false
		}
	}
	return ok
}
