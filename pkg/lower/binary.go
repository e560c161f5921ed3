package lower

import (
	"math"

	"tsgen/pkg/ast"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// lowerInfix routes each binary operator family to its channel.
func (c *Core) lowerInfix(n *ast.InfixExpression, ctx GenContext) (*ir.Value, bool) {
	switch n.Op {
	case "&&", "||", "??":
		return c.lowerShortCircuit(n, ctx)
	case "in":
		return c.lowerInOperator(n, ctx)
	case "instanceof":
		return c.lowerInstanceOf(n, ctx)
	}

	l, ok := c.lowerExpression(n.Left, ctx)
	if !ok {
		return nil, false
	}
	r, ok := c.lowerExpression(n.Right, ctx)
	if !ok {
		return nil, false
	}

	if ctx.AllowConstEval {
		if v, ok := c.constFoldBinary(n.Op, l, r, n.Pos()); ok {
			return v, true
		}
	}

	switch n.Op {
	case "==", "===", "!=", "!==", "<", "<=", ">", ">=":
		return c.lowerComparison(n.Op, l, r, n.Pos()), true
	case "+":
		// String concatenation wins when either side is a string; the other
		// operand is implicitly stringified.
		if types.WidenType(l.Type) == types.String || types.WidenType(r.Type) == types.String {
			return c.emitArith(n.Pos(), "+", c.coerceToString(l, n.Pos()), c.coerceToString(r, n.Pos()), types.String), true
		}
		lc, rc, result := c.numericCoerce(n.Op, l, r, n.Pos())
		return c.emitArith(n.Pos(), n.Op, lc, rc, result), true
	case "-", "*", "/", "%", "**", "<<", ">>", ">>>", "&", "|", "^":
		lc, rc, result := c.numericCoerce(n.Op, l, r, n.Pos())
		return c.emitArith(n.Pos(), n.Op, lc, rc, result), true
	default:
		c.errorAt(n.Pos(), "unsupported operator '%s'", n.Op)
		return nil, false
	}
}

// numericCoerce applies the precedence-driven coercion rules: both-to-number
// for / % **, both-to-int for shifts and bitwise ops, otherwise widen to the
// larger of the operand types.
func (c *Core) numericCoerce(op string, l, r *ir.Value, loc errors.Position) (*ir.Value, *ir.Value, types.Type) {
	lt := types.WidenType(l.Type)
	rt := types.WidenType(r.Type)

	switch op {
	case "/", "%", "**":
		return c.b.Cast(loc, l, types.Number), c.b.Cast(loc, r, types.Number), types.Number
	case "<<", ">>", ">>>", "&", "|", "^":
		intType := types.I32
		if lt == types.I64 || rt == types.I64 {
			intType = types.I64
		}
		return c.b.Cast(loc, l, intType), c.b.Cast(loc, r, intType), intType
	}

	result := types.FindBaseType(lt, rt, types.Number)
	if !types.IsNumericType(result) {
		result = types.Number
	}
	return c.b.Cast(loc, l, result), c.b.Cast(loc, r, result), result
}

func (c *Core) lowerComparison(op string, l, r *ir.Value, loc errors.Position) *ir.Value {
	lt := types.WidenType(l.Type)
	rt := types.WidenType(r.Type)
	if types.IsNumericType(lt) && types.IsNumericType(rt) && !lt.Equals(rt) {
		common := types.FindBaseType(lt, rt, types.Number)
		l = c.b.Cast(loc, l, common)
		r = c.b.Cast(loc, r, common)
	}
	op2 := c.b.Create(ir.OpCompare, loc, []*ir.Value{l, r}, []types.Type{types.Boolean},
		map[string]interface{}{"pred": op})
	return op2.Result(0)
}

// lowerShortCircuit lowers && and || as if-then-else on a boolean-coerced
// left operand, typed as the common base type of both operands (any when
// they have none).
func (c *Core) lowerShortCircuit(n *ast.InfixExpression, ctx GenContext) (*ir.Value, bool) {
	l, ok := c.lowerExpression(n.Left, ctx)
	if !ok {
		return nil, false
	}
	cond := c.coerceToBool(l, n.Pos())
	r, ok := c.lowerExpression(n.Right, ctx)
	if !ok {
		return nil, false
	}

	result := types.FindBaseType(types.WidenType(l.Type), types.WidenType(r.Type), types.Any)
	if n.Op == "??" {
		result = types.FindBaseType(types.StripOptional(types.WidenType(l.Type)), types.WidenType(r.Type), types.Any)
	}
	op := c.b.Create(ir.OpIf, n.Pos(),
		[]*ir.Value{cond, c.b.Cast(n.Pos(), l, result), c.b.Cast(n.Pos(), r, result)},
		[]types.Type{result}, map[string]interface{}{"expression": true, "logical": n.Op})
	return op.Result(0), true
}

// lowerInOperator rewrites `i in a` for arrays as `i < a.length`.
func (c *Core) lowerInOperator(n *ast.InfixExpression, ctx GenContext) (*ir.Value, bool) {
	l, ok := c.lowerExpression(n.Left, ctx)
	if !ok {
		return nil, false
	}
	r, ok := c.lowerExpression(n.Right, ctx)
	if !ok {
		return nil, false
	}
	switch types.WidenType(r.Type).(type) {
	case *types.ArrayType, *types.ConstArrayType:
		length := c.arrayLength(r, n.Pos())
		return c.lowerComparison("<", c.b.Cast(n.Pos(), l, types.I32), length, n.Pos()), true
	}
	// Tuple membership folds when the key is a constant.
	if s := constantString(l); s != nil {
		if tup, ok := types.WidenType(r.Type).(*types.TupleType); ok {
			has := types.FindField(tup.Fields, types.NamedID(*s)) >= 0
			return c.b.Constant(n.Pos(), types.Boolean, has), true
		}
	}
	c.errorAt(n.Pos(), "'in' requires an array or tuple right operand")
	return nil, false
}

// lowerInstanceOf emits a call to the target's .instanceof(rtti) method for
// class targets; an `any` receiver branches on runtime type-of first.
func (c *Core) lowerInstanceOf(n *ast.InfixExpression, ctx GenContext) (*ir.Value, bool) {
	l, ok := c.lowerExpression(n.Left, ctx)
	if !ok {
		return nil, false
	}
	r, ok := c.lowerExpression(n.Right, ctx)
	if !ok {
		return nil, false
	}

	cls, isClass := r.Type.(*types.ClassType)
	if isClass {
		info := c.classesByFQN[cls.Name]
		if info == nil {
			c.unresolvedName(ctx, n.Pos(), cls.Name)
			return nil, false
		}
		rtti := c.b.Constant(n.Pos(), types.String, info.FullName)
		if types.WidenType(l.Type) == types.Any {
			// Branch on runtime "type-of" equality to "class" before the
			// virtual call; a non-class value is never an instance.
			tf := c.b.Create(ir.OpTypeOf, n.Pos(), []*ir.Value{l}, []types.Type{types.String}, nil)
			isCls := c.lowerComparison("==", tf.Result(0),
				c.b.Constant(n.Pos(), types.String, "class"), n.Pos())
			call := c.emitInstanceOfCall(l, info, rtti, n.Pos())
			op := c.b.Create(ir.OpIf, n.Pos(),
				[]*ir.Value{isCls, call, c.b.Constant(n.Pos(), types.Boolean, false)},
				[]types.Type{types.Boolean}, map[string]interface{}{"expression": true})
			return op.Result(0), true
		}
		return c.emitInstanceOfCall(l, info, rtti, n.Pos()), true
	}

	// Fall back to runtime-type equality.
	tf := c.b.Create(ir.OpTypeOf, n.Pos(), []*ir.Value{l}, []types.Type{types.String}, nil)
	tr := c.b.Create(ir.OpTypeOf, n.Pos(), []*ir.Value{r}, []types.Type{types.String}, nil)
	return c.lowerComparison("==", tf.Result(0), tr.Result(0), n.Pos()), true
}

func (c *Core) emitInstanceOfCall(receiver *ir.Value, info *ClassInfo, rtti *ir.Value, loc errors.Position) *ir.Value {
	op := c.b.Create(ir.OpCall, loc, []*ir.Value{receiver, rtti}, []types.Type{types.Boolean},
		map[string]interface{}{"callee": info.FullName + ".instanceof"})
	return op.Result(0)
}

// arrayLength reads the length of an array value.
func (c *Core) arrayLength(arr *ir.Value, loc errors.Position) *ir.Value {
	if ca, ok := types.WidenType(arr.Type).(*types.ConstArrayType); ok {
		return c.b.Constant(loc, types.I32, int64(ca.Size))
	}
	ref := c.b.Create(ir.OpFieldRef, loc, []*ir.Value{arr},
		[]types.Type{&types.RefType{Elem: types.I32}},
		map[string]interface{}{"field": "length"})
	return c.b.Load(loc, ref.Result(0))
}

// --- assignment ---

// lowerAssignment analyzes the left side: load-of-ref stores into its ref,
// accessor reads become setter calls, array patterns store element-wise.
func (c *Core) lowerAssignment(n *ast.AssignmentExpression, ctx GenContext) (*ir.Value, bool) {
	// Compound forms desugar to `left = left op right`.
	if n.Op != "=" {
		op := n.Op[:len(n.Op)-1]
		desugared := &ast.AssignmentExpression{
			Op:    "=",
			Left:  n.Left,
			Right: ast.NewInfix(op, n.Left, n.Right),
		}
		return c.lowerAssignment(desugared, ctx)
	}

	// Array destructuring assignment.
	if arrLit, ok := n.Left.(*ast.ArrayLiteral); ok {
		return c.lowerArrayPatternAssign(arrLit, n.Right, ctx)
	}

	lv, ok := c.lowerExpression(n.Left, ctx)
	if !ok {
		return nil, false
	}

	rv, ok := c.lowerExpression(n.Right, ctx)
	if !ok {
		return nil, false
	}
	return c.storeInto(lv, rv, n.Pos(), ctx)
}

// storeInto writes rv through an analyzed left-side value: a load becomes a
// store into its ref, an accessor read becomes a setter call.
func (c *Core) storeInto(lv, rv *ir.Value, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	switch {
	case lv.Def != nil && lv.Def.Kind == ir.OpLoad:
		ref := lv.Def.Operands[0]
		target := types.StorageType(ref.Type)
		coerced, ok := c.coerceAssign(rv, target, loc, ctx)
		if !ok {
			return nil, false
		}
		c.b.Store(loc, coerced, ref)
		// The load feeding the analysis is dead once the store exists.
		c.b.EraseOp(lv.Def)
		return coerced, true

	case lv.Def != nil && lv.Def.Kind == ir.OpAccessorRead:
		coerced, ok := c.coerceAssign(rv, lv.Type, loc, ctx)
		if !ok {
			return nil, false
		}
		attrs := map[string]interface{}{}
		for k, v := range lv.Def.Attrs {
			attrs[k] = v
		}
		c.b.Create(ir.OpAccessorWrite, loc, append(append([]*ir.Value{}, lv.Def.Operands...), coerced), nil, attrs)
		c.b.EraseOp(lv.Def)
		return coerced, true

	default:
		c.errorAt(loc, "cannot assign to this expression")
		return nil, false
	}
}

// lowerArrayPatternAssign stores element-wise into each pattern target.
func (c *Core) lowerArrayPatternAssign(pattern *ast.ArrayLiteral, right ast.Expression, ctx GenContext) (*ir.Value, bool) {
	rv, ok := c.lowerExpression(right, ctx)
	if !ok {
		return nil, false
	}
	for i, target := range pattern.Elements {
		if target == nil {
			continue
		}
		lv, ok := c.lowerExpression(target, ctx)
		if !ok {
			return nil, false
		}
		idx := c.b.Constant(pattern.Pos(), types.I32, int64(i))
		elem := c.elementValue(rv, idx, pattern.Pos())
		if elem == nil {
			c.errorAt(pattern.Pos(), "cannot destructure non-array value")
			return nil, false
		}
		if _, ok := c.storeInto(lv, elem, pattern.Pos(), ctx); !ok {
			return nil, false
		}
	}
	return rv, true
}

// --- update and unary expressions ---

func (c *Core) lowerPrefix(n *ast.PrefixExpression, ctx GenContext) (*ir.Value, bool) {
	if n.Op == "++" || n.Op == "--" {
		return c.lowerUpdate(n.Right, n.Op, true, ctx, n.Pos())
	}
	v, ok := c.lowerExpression(n.Right, ctx)
	if !ok {
		return nil, false
	}
	switch n.Op {
	case "!":
		b := c.coerceToBool(v, n.Pos())
		op := c.b.Create(ir.OpUnary, n.Pos(), []*ir.Value{b}, []types.Type{types.Boolean},
			map[string]interface{}{"op": "!"})
		return op.Result(0), true
	case "-", "+", "~":
		t := types.WidenType(v.Type)
		if !types.IsNumericType(t) {
			t = types.Number
			v = c.b.Cast(n.Pos(), v, t)
		}
		if n.Op == "+" {
			return v, true
		}
		op := c.b.Create(ir.OpUnary, n.Pos(), []*ir.Value{v}, []types.Type{t},
			map[string]interface{}{"op": n.Op})
		return op.Result(0), true
	default:
		c.errorAt(n.Pos(), "unsupported prefix operator '%s'", n.Op)
		return nil, false
	}
}

func (c *Core) lowerPostfix(n *ast.PostfixExpression, ctx GenContext) (*ir.Value, bool) {
	return c.lowerUpdate(n.Left, n.Op, false, ctx, n.Pos())
}

// lowerUpdate handles ++/-- in both fixities: load, add or subtract one,
// store back, and yield the pre- or post-value.
func (c *Core) lowerUpdate(operand ast.Expression, op string, prefix bool, ctx GenContext, loc errors.Position) (*ir.Value, bool) {
	lv, ok := c.lowerExpression(operand, ctx)
	if !ok {
		return nil, false
	}
	if lv.Def == nil || lv.Def.Kind != ir.OpLoad {
		c.errorAt(loc, "'%s' requires a mutable operand", op)
		return nil, false
	}
	ref := lv.Def.Operands[0]
	t := types.WidenType(lv.Type)
	if !types.IsNumericType(t) {
		c.errorAt(loc, "'%s' requires a numeric operand", op)
		return nil, false
	}
	one := c.b.Constant(loc, t, int64(1))
	arith := "+"
	if op == "--" {
		arith = "-"
	}
	updated := c.emitArith(loc, arith, lv, one, t)
	c.b.Store(loc, updated, ref)
	if prefix {
		return updated, true
	}
	return lv, true
}

// --- constant folding ---

// constFoldBinary folds arithmetic and comparisons over constant operands
// when the context permits const evaluation.
func (c *Core) constFoldBinary(op string, l, r *ir.Value, loc errors.Position) (*ir.Value, bool) {
	lc, lok := constantNumeric(l)
	rc, rok := constantNumeric(r)
	if !lok || !rok {
		// String concatenation of two constants folds too.
		if op == "+" {
			ls, rs := constantString(l), constantString(r)
			if ls != nil && rs != nil {
				s := *ls + *rs
				return c.b.Constant(loc, &types.LiteralType{Value: s, Base: types.String}, s), true
			}
		}
		return nil, false
	}

	ltype := types.WidenType(l.Type)
	rtype := types.WidenType(r.Type)
	intFold := types.IsIntegerType(ltype) && types.IsIntegerType(rtype)

	switch op {
	case "+", "-", "*", "<<", ">>", "&", "|", "^":
		if intFold {
			li, ri := int64(lc), int64(rc)
			var out int64
			switch op {
			case "+":
				out = li + ri
			case "-":
				out = li - ri
			case "*":
				out = li * ri
			case "<<":
				out = li << uint(ri&63)
			case ">>":
				out = li >> uint(ri&63)
			case "&":
				out = li & ri
			case "|":
				out = li | ri
			case "^":
				out = li ^ ri
			}
			t := types.I32
			if out < -(1<<31) || out >= (1<<31) {
				t = types.I64
			}
			return c.b.Constant(loc, &types.LiteralType{Value: out, Base: t}, out), true
		}
		var out float64
		switch op {
		case "+":
			out = lc + rc
		case "-":
			out = lc - rc
		case "*":
			out = lc * rc
		default:
			return nil, false
		}
		return c.b.Constant(loc, &types.LiteralType{Value: out, Base: types.Number}, out), true
	case "/":
		if rc == 0 {
			return nil, false
		}
		out := lc / rc
		return c.b.Constant(loc, &types.LiteralType{Value: out, Base: types.Number}, out), true
	case "%":
		if rc == 0 {
			return nil, false
		}
		out := math.Mod(lc, rc)
		return c.b.Constant(loc, &types.LiteralType{Value: out, Base: types.Number}, out), true
	case "**":
		out := math.Pow(lc, rc)
		return c.b.Constant(loc, &types.LiteralType{Value: out, Base: types.Number}, out), true
	case "<", "<=", ">", ">=", "==", "===", "!=", "!==":
		var out bool
		switch op {
		case "<":
			out = lc < rc
		case "<=":
			out = lc <= rc
		case ">":
			out = lc > rc
		case ">=":
			out = lc >= rc
		case "==", "===":
			out = lc == rc
		case "!=", "!==":
			out = lc != rc
		}
		return c.b.Constant(loc, &types.LiteralType{Value: out, Base: types.Boolean}, out), true
	}
	return nil, false
}

// constantNumeric extracts a numeric constant as float64.
func constantNumeric(v *ir.Value) (float64, bool) {
	if v.Def == nil || v.Def.Kind != ir.OpConstant {
		return 0, false
	}
	switch n := v.Def.Attr("value").(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// constantInt extracts an integer constant.
func constantInt(v *ir.Value) (int64, bool) {
	if v.Def == nil || v.Def.Kind != ir.OpConstant {
		return 0, false
	}
	switch n := v.Def.Attr("value").(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}
