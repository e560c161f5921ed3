package lower

import (
	"tsgen/pkg/ast"
	"tsgen/pkg/types"
)

// TypeGuard is a detected safe-cast pattern in a condition: the guarded
// name and the type the positive branch narrows it to.
type TypeGuard struct {
	VariableName string
	NarrowedType types.Type
	IsNegated    bool
}

// detectTypeGuard recognizes the three safe-cast shapes:
//
//	typeof x === "string"
//	x instanceof C
//	x.k === <literal>      (x a union of tuples discriminated by k)
func (c *Core) detectTypeGuard(cond ast.Expression, ctx GenContext) *TypeGuard {
	// x instanceof C
	if infix, ok := cond.(*ast.InfixExpression); ok && infix.Op == "instanceof" {
		ident, ok := infix.Left.(*ast.Identifier)
		if !ok {
			return nil
		}
		clsIdent, ok := infix.Right.(*ast.Identifier)
		if !ok {
			return nil
		}
		r, found := c.Lookup(clsIdent.Name, ctx)
		if !found || r.Class == nil {
			return nil
		}
		return &TypeGuard{VariableName: ident.Name, NarrowedType: r.Class.Type}
	}

	infix, ok := cond.(*ast.InfixExpression)
	if !ok {
		return nil
	}
	isPositive := infix.Op == "===" || infix.Op == "=="
	isNegative := infix.Op == "!==" || infix.Op == "!="
	if !isPositive && !isNegative {
		return nil
	}

	left, right := infix.Left, infix.Right
	// Allow the literal on either side.
	if literalOfExpression(left) != nil {
		left, right = right, left
	}

	// typeof x === "lit"
	if typeofExpr, ok := left.(*ast.TypeofExpression); ok {
		ident, ok := typeofExpr.Operand.(*ast.Identifier)
		if !ok {
			return nil
		}
		strLit, ok := right.(*ast.StringLiteral)
		if !ok {
			return nil
		}
		narrowed := typeofNarrowTarget(strLit.Value)
		if narrowed == nil {
			return nil
		}
		guarded := c.narrowUnionTo(ident.Name, narrowed, ctx)
		if guarded == nil {
			return nil
		}
		return &TypeGuard{VariableName: ident.Name, NarrowedType: guarded, IsNegated: isNegative}
	}

	// x.k === literal over a union of tuples discriminated by k
	if member, ok := left.(*ast.MemberExpression); ok {
		ident, ok := member.Object.(*ast.Identifier)
		if !ok {
			return nil
		}
		lit := literalOfExpression(right)
		if lit == nil {
			return nil
		}
		narrowed := c.narrowByDiscriminant(ident.Name, member.Property.Name, lit, ctx)
		if narrowed == nil {
			return nil
		}
		return &TypeGuard{VariableName: ident.Name, NarrowedType: narrowed, IsNegated: isNegative}
	}

	return nil
}

// typeofNarrowTarget maps a typeof result string onto the lattice type the
// arms are filtered against.
func typeofNarrowTarget(name string) types.Type {
	switch name {
	case "string":
		return types.String
	case "number":
		return types.Number
	case "boolean":
		return types.Boolean
	case "bigint":
		return types.BigInt
	case "undefined":
		return types.Undefined
	default:
		return nil
	}
}

// narrowUnionTo filters a union-typed binding down to the arms castable to
// target. Nil when the binding is unknown or no arm matches.
func (c *Core) narrowUnionTo(name string, target types.Type, ctx GenContext) types.Type {
	current := c.bindingType(name, ctx)
	if current == nil {
		return nil
	}
	if _, isOpt := current.(*types.OptionalType); isOpt && target == types.Undefined {
		return types.Undefined
	}
	var kept []types.Type
	for _, arm := range types.UnionMembers(types.StripOptional(current)) {
		if types.IsCastable(arm, target) {
			kept = append(kept, arm)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return types.NewUnionType(kept...)
}

// narrowByDiscriminant picks the union-of-tuples arm whose field k is the
// matching literal.
func (c *Core) narrowByDiscriminant(name, key string, lit *types.LiteralType, ctx GenContext) types.Type {
	current := c.bindingType(name, ctx)
	if current == nil {
		return nil
	}
	var kept []types.Type
	for _, arm := range types.UnionMembers(types.StripOptional(current)) {
		var ft types.Type
		switch t := arm.(type) {
		case *types.TupleType:
			ft = t.FieldType(types.NamedID(key))
		case *types.ConstTupleType:
			ft = t.FieldType(types.NamedID(key))
		default:
			return nil // not a union of tuples
		}
		if ft == nil {
			return nil // not discriminated by this key
		}
		if armLit, ok := ft.(*types.LiteralType); ok && armLit.Equals(lit) {
			kept = append(kept, arm)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return types.NewUnionType(kept...)
}

// narrowedByLiteral narrows a binding to a literal case value (switch
// narrowing): arms equal to the literal, or the literal itself when the
// binding covers its base.
func (c *Core) narrowedByLiteral(name string, lit *types.LiteralType, ctx GenContext) types.Type {
	current := c.bindingType(name, ctx)
	if current == nil {
		return nil
	}
	if _, isUnion := types.StripOptional(current).(*types.UnionType); !isUnion {
		return nil
	}
	var kept []types.Type
	for _, arm := range types.UnionMembers(types.StripOptional(current)) {
		if arm.Equals(lit) || types.IsCastable(lit, arm) {
			kept = append(kept, arm)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return types.NewUnionType(kept...)
}

// bindingType reads the current static type of a name without touching
// capture discovery.
func (c *Core) bindingType(name string, ctx GenContext) types.Type {
	probe := ctx
	probe.CapturedVars = nil
	r, found := c.Lookup(name, probe)
	if !found || r.Decl == nil {
		return nil
	}
	return r.Decl.Type
}

// applyGuard injects the synthetic const declaration redefining the guarded
// name for the branch about to be lowered. For the negated branch the
// narrowed arms are excluded instead.
func (c *Core) applyGuard(guard *TypeGuard, branchCtx *GenContext, negatedBranch bool) {
	effective := guard.NarrowedType
	negate := guard.IsNegated != negatedBranch
	if negate {
		current := c.bindingType(guard.VariableName, *branchCtx)
		if current == nil {
			return
		}
		effective = types.UnionWithout(types.StripOptional(current), guard.NarrowedType)
		if effective == types.Never {
			return
		}
	}
	*branchCtx.Generated = append(*branchCtx.Generated,
		ast.NewNarrowedConst(guard.VariableName, effective))
}
