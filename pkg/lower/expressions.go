package lower

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"tsgen/pkg/ast"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// lowerExpression dispatches one expression node to its handler and returns
// an IR value, or (nil, false) on a recoverable failure already recorded in
// the context's sinks.
func (c *Core) lowerExpression(e ast.Expression, ctx GenContext) (*ir.Value, bool) {
	switch n := e.(type) {
	case *ast.NumberLiteral:
		return c.lowerNumberLiteral(n), true
	case *ast.StringLiteral:
		return c.b.Constant(n.Pos(), &types.LiteralType{Value: n.Value, Base: types.String}, n.Value), true
	case *ast.BooleanLiteral:
		return c.b.Constant(n.Pos(), &types.LiteralType{Value: n.Value, Base: types.Boolean}, n.Value), true
	case *ast.NullLiteral:
		return c.b.Constant(n.Pos(), types.Null, nil), true
	case *ast.RegexLiteral:
		return c.lowerRegexLiteral(n, ctx)
	case *ast.TemplateLiteral:
		return c.lowerTemplateLiteral(n, ctx)
	case *ast.TaggedTemplateExpression:
		return c.lowerTaggedTemplate(n, ctx)
	case *ast.Identifier:
		return c.lowerIdentifier(n, ctx)
	case *ast.ThisExpression:
		return c.lowerThis(n, ctx)
	case *ast.SuperExpression:
		return c.lowerSuper(n, ctx)
	case *ast.ArrayLiteral:
		return c.lowerArrayLiteral(n, ctx)
	case *ast.ObjectLiteral:
		return c.lowerObjectLiteral(n, ctx)
	case *ast.FunctionLiteral:
		return c.lowerFunctionValue(n, ctx)
	case *ast.PrefixExpression:
		return c.lowerPrefix(n, ctx)
	case *ast.PostfixExpression:
		return c.lowerPostfix(n, ctx)
	case *ast.InfixExpression:
		return c.lowerInfix(n, ctx)
	case *ast.AssignmentExpression:
		return c.lowerAssignment(n, ctx)
	case *ast.ConditionalExpression:
		return c.lowerConditional(n, ctx)
	case *ast.CallExpression:
		return c.lowerCall(n, ctx)
	case *ast.NewExpression:
		return c.lowerNew(n, ctx)
	case *ast.MemberExpression:
		return c.lowerMember(n, ctx)
	case *ast.IndexExpression:
		return c.lowerIndex(n, ctx)
	case *ast.TypeofExpression:
		return c.lowerTypeof(n, ctx)
	case *ast.CommaExpression:
		return c.lowerComma(n, ctx)
	case *ast.AsExpression:
		return c.lowerAs(n, ctx)
	case *ast.AwaitExpression:
		return c.lowerAwait(n, ctx)
	case *ast.YieldExpression:
		return c.lowerYield(n, ctx)
	case *ast.DeleteExpression:
		return c.lowerDelete(n, ctx)
	case *ast.SpreadElement:
		c.errorAt(n.Pos(), "spread is only valid inside calls and array literals")
		return nil, false
	default:
		c.errorAt(e.Pos(), "unsupported expression")
		return nil, false
	}
}

// lowerNumberLiteral picks i32 for integer spellings that fit, i64 for wider
// integers, number for fractional forms.
func (c *Core) lowerNumberLiteral(n *ast.NumberLiteral) *ir.Value {
	if n.IsInt || (n.Raw != "" && !strings.ContainsAny(n.Raw, ".eE")) {
		iv := n.IntValue
		if n.Raw != "" && !n.IsInt {
			if parsed, err := strconv.ParseInt(n.Raw, 0, 64); err == nil {
				iv = parsed
			}
		}
		if iv >= -(1<<31) && iv < (1<<31) {
			return c.b.Constant(n.Pos(), &types.LiteralType{Value: iv, Base: types.I32}, iv)
		}
		return c.b.Constant(n.Pos(), &types.LiteralType{Value: iv, Base: types.I64}, iv)
	}
	return c.b.Constant(n.Pos(), &types.LiteralType{Value: n.Value, Base: types.Number}, n.Value)
}

// lowerRegexLiteral validates the pattern with the regex engine before
// emitting it as a constant; the pattern and flags travel as attributes.
func (c *Core) lowerRegexLiteral(n *ast.RegexLiteral, ctx GenContext) (*ir.Value, bool) {
	var reOpts regexp2.RegexOptions = regexp2.ECMAScript
	if strings.Contains(n.Flags, "i") {
		reOpts |= regexp2.IgnoreCase
	}
	if strings.Contains(n.Flags, "m") {
		reOpts |= regexp2.Multiline
	}
	if strings.Contains(n.Flags, "s") {
		reOpts |= regexp2.Singleline
	}
	if _, err := regexp2.Compile(n.Pattern, reOpts); err != nil {
		c.errorAt(n.Pos(), "invalid regular expression: %v", err)
		return nil, false
	}
	op := c.b.Create(ir.OpConstant, n.Pos(), nil, []types.Type{types.Opaque}, map[string]interface{}{
		"regex_pattern": n.Pattern,
		"regex_flags":   n.Flags,
	})
	return op.Result(0), true
}

// lowerTemplateLiteral folds all-constant templates into one string
// constant; otherwise emits a chain of string concatenations.
func (c *Core) lowerTemplateLiteral(n *ast.TemplateLiteral, ctx GenContext) (*ir.Value, bool) {
	exprs := make([]*ir.Value, len(n.Exprs))
	allConst := true
	for i, e := range n.Exprs {
		v, ok := c.lowerExpression(e, ctx)
		if !ok {
			return nil, false
		}
		exprs[i] = v
		if constantString(v) == nil {
			allConst = false
		}
	}

	if allConst {
		var sb strings.Builder
		for i, q := range n.Quasis {
			sb.WriteString(q)
			if i < len(exprs) {
				sb.WriteString(*constantString(exprs[i]))
			}
		}
		s := sb.String()
		return c.b.Constant(n.Pos(), &types.LiteralType{Value: s, Base: types.String}, s), true
	}

	acc := c.b.Constant(n.Pos(), types.String, n.Quasis[0])
	for i, v := range exprs {
		sv := c.coerceToString(v, n.Pos())
		acc = c.emitArith(n.Pos(), "+", acc, sv, types.String)
		if q := n.Quasis[i+1]; q != "" {
			qc := c.b.Constant(n.Pos(), types.String, q)
			acc = c.emitArith(n.Pos(), "+", acc, qc, types.String)
		}
	}
	return acc, true
}

// lowerTaggedTemplate calls the tag with (quasis array, expressions...).
func (c *Core) lowerTaggedTemplate(n *ast.TaggedTemplateExpression, ctx GenContext) (*ir.Value, bool) {
	tag, ok := c.lowerExpression(n.Tag, ctx)
	if !ok {
		return nil, false
	}
	parts := make([]*ir.Value, len(n.Template.Quasis))
	for i, q := range n.Template.Quasis {
		parts[i] = c.b.Constant(n.Pos(), types.String, q)
	}
	strsOp := c.b.Create(ir.OpCreateArray, n.Pos(), parts,
		[]types.Type{&types.ArrayType{Elem: types.String}}, nil)
	args := []*ir.Value{strsOp.Result(0)}
	for _, e := range n.Template.Exprs {
		v, ok := c.lowerExpression(e, ctx)
		if !ok {
			return nil, false
		}
		args = append(args, v)
	}
	return c.emitIndirectCall(tag, args, n.Pos(), ctx)
}

// lowerIdentifier resolves a name through the symbol store. Unresolved names
// return a placeholder symbol-reference that the strict pass patches.
func (c *Core) lowerIdentifier(n *ast.Identifier, ctx GenContext) (*ir.Value, bool) {
	// Known built-in constants bypass the store.
	if v, ok := c.builtinConstant(n.Name, n.Pos()); ok {
		return v, true
	}

	r, found := c.Lookup(n.Name, ctx)
	if !found {
		if isBuiltinFunction(n.Name) || ctx.AllowPartialResolve {
			if !isBuiltinFunction(n.Name) {
				c.unresolvedName(ctx, n.Pos(), n.Name)
			}
			op := c.b.Create(ir.OpSymbolRef, n.Pos(), nil, []types.Type{types.Unknown}, map[string]interface{}{
				"identifier": n.Name,
				"unresolved": true,
			})
			return op.Result(0), true
		}
		c.unresolvedName(ctx, n.Pos(), n.Name)
		return nil, false
	}

	switch {
	case r.Decl != nil:
		return c.loadVariable(r.Decl, n.Pos(), ctx)
	case r.Func != nil:
		return c.functionValue(r.Func, n.Pos(), ctx)
	case r.Class != nil:
		op := c.b.Create(ir.OpSymbolRef, n.Pos(), nil, []types.Type{r.Class.Type}, map[string]interface{}{
			"identifier": r.Class.FullName,
			"class_ref":  true,
		})
		return op.Result(0), true
	case r.Iface != nil:
		op := c.b.Create(ir.OpSymbolRef, n.Pos(), nil, []types.Type{r.Iface.Type}, map[string]interface{}{
			"identifier": r.Iface.FullName,
		})
		return op.Result(0), true
	case r.Enum != nil:
		op := c.b.Create(ir.OpSymbolRef, n.Pos(), nil, []types.Type{r.Enum.Type}, map[string]interface{}{
			"identifier": r.Enum.FullName,
		})
		return op.Result(0), true
	case r.NS != nil:
		op := c.b.Create(ir.OpSymbolRef, n.Pos(), nil,
			[]types.Type{&types.NamespaceType{Name: r.NS.FullName}}, map[string]interface{}{
				"identifier": r.NS.FullName,
			})
		return op.Result(0), true
	default:
		c.unresolvedName(ctx, n.Pos(), n.Name)
		return nil, false
	}
}

// loadVariable reads a variable binding: locals load through their ref,
// globals address then load.
func (c *Core) loadVariable(decl *VarInfo, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	if decl.Global {
		addr := c.b.Create(ir.OpAddressOf, loc, nil,
			[]types.Type{&types.RefType{Elem: decl.Type}}, map[string]interface{}{
				"global": decl.FullName,
			})
		return c.b.Load(loc, addr.Result(0)), true
	}
	if decl.Storage == nil {
		// Known but not yet materialized (discovery ordering); treat as a
		// recoverable unresolved reference.
		c.unresolvedName(ctx, loc, decl.Name)
		return nil, false
	}
	return c.b.Load(loc, decl.Storage), true
}

func (c *Core) lowerThis(n *ast.ThisExpression, ctx GenContext) (*ir.Value, bool) {
	if ctx.ThisType == nil {
		c.errorAt(n.Pos(), "'this' is not available here")
		return nil, false
	}
	if ctx.ThisVal != nil {
		return ctx.ThisVal, true
	}
	op := c.b.Create(ir.OpThisSymbolRef, n.Pos(), nil, []types.Type{ctx.ThisType}, nil)
	return op.Result(0), true
}

func (c *Core) lowerSuper(n *ast.SuperExpression, ctx GenContext) (*ir.Value, bool) {
	if ctx.ReceiverClass == nil || len(ctx.ReceiverClass.BaseClasses) == 0 {
		c.errorAt(n.Pos(), "'super' requires a base class")
		return nil, false
	}
	base := ctx.ReceiverClass.BaseClasses[0]
	this, ok := c.lowerThis(&ast.ThisExpression{}, ctx)
	if !ok {
		return nil, false
	}
	// A super reference is the receiver viewed through the base storage.
	return c.b.Cast(n.Pos(), this, base.Storage), true
}

// lowerArrayLiteral emits a constant const-array when every element folds,
// else a create_array sequence.
func (c *Core) lowerArrayLiteral(n *ast.ArrayLiteral, ctx GenContext) (*ir.Value, bool) {
	vals := make([]*ir.Value, 0, len(n.Elements))
	elemType := types.Type(nil)
	allConst := true
	for _, e := range n.Elements {
		if spread, ok := e.(*ast.SpreadElement); ok {
			return c.lowerArrayWithSpread(n, spread, ctx)
		}
		v, ok := c.lowerExpression(e, ctx)
		if !ok {
			return nil, false
		}
		vals = append(vals, v)
		elemType = types.FindBaseType(elemType, types.WidenType(v.Type), types.Any)
		if v.Def == nil || v.Def.Kind != ir.OpConstant {
			allConst = false
		}
	}
	if elemType == nil {
		elemType = types.Any
	}

	if allConst && len(vals) > 0 {
		attrs := make([]interface{}, len(vals))
		for i, v := range vals {
			attrs[i] = v.Def.Attr("value")
		}
		op := c.b.Create(ir.OpConstant, n.Pos(), nil,
			[]types.Type{&types.ConstArrayType{Elem: elemType, Size: len(vals)}},
			map[string]interface{}{"value": attrs})
		return op.Result(0), true
	}

	coerced := make([]*ir.Value, len(vals))
	for i, v := range vals {
		coerced[i] = c.b.Cast(n.Pos(), v, elemType)
	}
	op := c.b.Create(ir.OpCreateArray, n.Pos(), coerced,
		[]types.Type{&types.ArrayType{Elem: elemType}}, nil)
	return op.Result(0), true
}

// lowerArrayWithSpread lowers [a, ...b, c] through create_array plus append
// loops for the spread segments.
func (c *Core) lowerArrayWithSpread(n *ast.ArrayLiteral, first *ast.SpreadElement, ctx GenContext) (*ir.Value, bool) {
	elemType := types.Type(nil)
	segments := make([]*ir.Value, 0, len(n.Elements))
	spreadFlags := make([]bool, 0, len(n.Elements))
	for _, e := range n.Elements {
		if spread, ok := e.(*ast.SpreadElement); ok {
			v, ok := c.lowerExpression(spread.Arg, ctx)
			if !ok {
				return nil, false
			}
			if arr, ok := types.WidenType(v.Type).(*types.ArrayType); ok {
				elemType = types.FindBaseType(elemType, arr.Elem, types.Any)
			}
			segments = append(segments, v)
			spreadFlags = append(spreadFlags, true)
			continue
		}
		v, ok := c.lowerExpression(e, ctx)
		if !ok {
			return nil, false
		}
		elemType = types.FindBaseType(elemType, types.WidenType(v.Type), types.Any)
		segments = append(segments, v)
		spreadFlags = append(spreadFlags, false)
	}
	if elemType == nil {
		elemType = types.Any
	}
	op := c.b.Create(ir.OpCreateArray, n.Pos(), segments,
		[]types.Type{&types.ArrayType{Elem: elemType}},
		map[string]interface{}{"spreads": spreadFlags})
	return op.Result(0), true
}

func (c *Core) lowerConditional(n *ast.ConditionalExpression, ctx GenContext) (*ir.Value, bool) {
	cond, ok := c.lowerExpression(n.Cond, ctx)
	if !ok {
		return nil, false
	}
	cond = c.coerceToBool(cond, n.Pos())

	thenV, ok := c.lowerExpression(n.Then, ctx)
	if !ok {
		return nil, false
	}
	elseV, ok := c.lowerExpression(n.Else, ctx)
	if !ok {
		return nil, false
	}
	result := types.FindBaseType(types.WidenType(thenV.Type), types.WidenType(elseV.Type), types.Any)
	op := c.b.Create(ir.OpIf, n.Pos(),
		[]*ir.Value{cond, c.b.Cast(n.Pos(), thenV, result), c.b.Cast(n.Pos(), elseV, result)},
		[]types.Type{result}, map[string]interface{}{"expression": true})
	return op.Result(0), true
}

func (c *Core) lowerTypeof(n *ast.TypeofExpression, ctx GenContext) (*ir.Value, bool) {
	v, ok := c.lowerExpression(n.Operand, ctx)
	if !ok {
		return nil, false
	}
	// Fold when the operand type is statically known.
	if name, ok := staticTypeofName(v.Type); ok {
		return c.b.Constant(n.Pos(), &types.LiteralType{Value: name, Base: types.String}, name), true
	}
	op := c.b.Create(ir.OpTypeOf, n.Pos(), []*ir.Value{v}, []types.Type{types.String}, nil)
	return op.Result(0), true
}

// staticTypeofName maps a static type to its typeof spelling when the
// answer cannot vary at runtime.
func staticTypeofName(t types.Type) (string, bool) {
	switch w := types.WidenType(t).(type) {
	case *types.Primitive:
		switch w {
		case types.String, types.Char:
			return "string", true
		case types.Number, types.I32, types.I64, types.I128, types.Byte:
			return "number", true
		case types.BigInt:
			return "bigint", true
		case types.Boolean:
			return "boolean", true
		case types.Undefined:
			return "undefined", true
		case types.Symbol:
			return "symbol", true
		}
	case *types.FunctionType, *types.HybridFunctionType, *types.BoundFunctionType:
		return "function", true
	case *types.ClassType:
		return "class", true
	case *types.TupleType, *types.ConstTupleType, *types.ArrayType, *types.ConstArrayType:
		return "object", true
	}
	return "", false
}

func (c *Core) lowerComma(n *ast.CommaExpression, ctx GenContext) (*ir.Value, bool) {
	var last *ir.Value
	for _, e := range n.Exprs {
		v, ok := c.lowerExpression(e, ctx)
		if !ok {
			return nil, false
		}
		last = v
	}
	if last == nil {
		c.errorAt(n.Pos(), "empty comma expression")
		return nil, false
	}
	return last, true
}

func (c *Core) lowerAs(n *ast.AsExpression, ctx GenContext) (*ir.Value, bool) {
	v, ok := c.lowerExpression(n.Expr, ctx)
	if !ok {
		return nil, false
	}
	t, ok := c.resolveTypeNode(n.Type, ctx)
	if !ok {
		return nil, false
	}
	if !types.IsCastable(v.Type, t) && !types.IsCastable(t, v.Type) {
		c.errorAt(n.Pos(), "cannot cast %s to %s", v.Type, t)
		return nil, false
	}
	return c.castValue(v, t, n.Pos(), ctx), true
}

func (c *Core) lowerDelete(n *ast.DeleteExpression, ctx GenContext) (*ir.Value, bool) {
	v, ok := c.lowerExpression(n.Operand, ctx)
	if !ok {
		return nil, false
	}
	target := v
	if v.Def != nil && (v.Def.Kind == ir.OpLoad) {
		target = v.Def.Operands[0]
	}
	c.b.Create(ir.OpDelete, n.Pos(), []*ir.Value{target}, nil, nil)
	return c.b.Constant(n.Pos(), types.Boolean, true), true
}

// --- small coercion helpers ---

// coerceToBool makes a condition out of any value.
func (c *Core) coerceToBool(v *ir.Value, loc errors.Position) *ir.Value {
	t := types.WidenType(v.Type)
	if t == types.Boolean {
		return v
	}
	return c.b.Cast(loc, v, types.Boolean)
}

func (c *Core) coerceToString(v *ir.Value, loc errors.Position) *ir.Value {
	if types.WidenType(v.Type) == types.String {
		return v
	}
	return c.b.Cast(loc, v, types.String)
}

// castValue emits a cast; interface targets route through the object model
// so structural adapters get built, and interface sources unwrap to their
// receiver before narrowing to a class.
func (c *Core) castValue(v *ir.Value, t types.Type, loc errors.Position, ctx GenContext) *ir.Value {
	if iface, ok := t.(*types.InterfaceType); ok {
		return c.castToInterface(v, iface, loc, ctx)
	}
	if _, fromIface := types.StripOptional(v.Type).(*types.InterfaceType); fromIface {
		if _, toClass := t.(*types.ClassType); toClass {
			ext := c.b.Create(ir.OpExtractInterfaceThis, loc, []*ir.Value{v},
				[]types.Type{types.Opaque}, nil)
			return c.b.Cast(loc, ext.Result(0), t)
		}
	}
	return c.b.Cast(loc, v, t)
}

// coerceAssign casts the right side to the left's type, reporting when the
// conversion is not allowed.
func (c *Core) coerceAssign(v *ir.Value, t types.Type, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	if !types.IsCastable(v.Type, t) {
		c.errorAt(loc, "type %s is not assignable to %s", v.Type, t)
		return nil, false
	}
	return c.castValue(v, t, loc, ctx), true
}

// constantString extracts the string attribute of a constant op, or nil.
func constantString(v *ir.Value) *string {
	if v.Def != nil && v.Def.Kind == ir.OpConstant {
		switch s := v.Def.Attr("value").(type) {
		case string:
			return &s
		}
	}
	return nil
}

// emitArith is the shared binary emission: result type given by the caller.
func (c *Core) emitArith(loc errors.Position, op string, l, r *ir.Value, result types.Type) *ir.Value {
	created := c.b.Create(ir.OpArith, loc, []*ir.Value{l, r}, []types.Type{result},
		map[string]interface{}{"op": op})
	return created.Result(0)
}
