package lower

import (
	"tsgen/pkg/ast"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// lowerObjectLiteral lowers `{k: v, m() {...}}` into a tuple value. Literals
// with methods take a two-phase walk: the first pass collects the field
// layout with placeholder method types (this as opaque); the object type is
// then constructed and the method bodies are lowered with it as `this`. The
// method fields keep their opaque-`this` prototypes; they are not re-typed
// to the object type.
func (c *Core) lowerObjectLiteral(n *ast.ObjectLiteral, ctx GenContext) (*ir.Value, bool) {
	// Phase 1: data fields lower now; methods contribute placeholders.
	fields := make([]types.Field, 0, len(n.Properties))
	dataValues := map[string]*ir.Value{}
	var methods []*ast.ObjectProperty

	for _, prop := range n.Properties {
		if prop.IsMethod {
			lit, ok := prop.Value.(*ast.FunctionLiteral)
			if !ok {
				c.errorAt(prop.Pos(), "object method requires a function value")
				return nil, false
			}
			params, ok := c.resolveParams(lit.Params, ctx)
			if !ok {
				return nil, false
			}
			var ret types.Type = types.Any
			if lit.ReturnType != nil {
				t, rok := c.resolveTypeNode(lit.ReturnType, ctx)
				if !rok {
					return nil, false
				}
				ret = t
			}
			proto := c.functionTypeOf(params, ret, types.Opaque)
			fields = append(fields, types.Field{
				ID:   types.NamedID(prop.Key),
				Type: &types.HybridFunctionType{Func: proto},
			})
			methods = append(methods, prop)
			continue
		}

		v, ok := c.lowerExpression(prop.Value, ctx)
		if !ok {
			return nil, false
		}
		dataValues[prop.Key] = v
		fields = append(fields, types.Field{ID: types.NamedID(prop.Key), Type: v.Type})
	}

	objType := &types.TupleType{Fields: fields}

	// Phase 2: lower method bodies against the constructed object type.
	methodSyms := map[string]*ir.Value{}
	for _, prop := range methods {
		lit := prop.Value.(*ast.FunctionLiteral)
		methodCtx := ctx.WithThis(objType)
		methodCtx.ReceiverClass = nil
		name := c.anonName("__obj_" + prop.Key)
		f, ok := c.lowerFunction(name, lit, methodCtx)
		if !ok {
			return nil, false
		}
		sym := c.b.Create(ir.OpSymbolRef, prop.Pos(), nil,
			[]types.Type{fieldTypeOf(objType, prop.Key)},
			map[string]interface{}{"identifier": f.FullName})
		methodSyms[prop.Key] = sym.Result(0)
		// Object-method captures ride along as a hidden field.
		if len(f.Captured) > 0 {
			tuple, ok := c.buildCaptureTuple(f, prop.Pos(), ctx)
			if !ok {
				return nil, false
			}
			fields = append(fields, types.Field{ID: types.NamedID(".captured"), Type: f.CaptureTuple})
			dataValues[".captured"] = tuple
			objType.Fields = fields
		}
	}

	operands := make([]*ir.Value, 0, len(fields))
	for _, field := range fields {
		name := field.ID.Name
		if v, ok := dataValues[name]; ok {
			operands = append(operands, v)
		} else if v, ok := methodSyms[name]; ok {
			operands = append(operands, v)
		}
	}
	op := c.b.Create(ir.OpCreateTuple, n.Pos(), operands, []types.Type{objType}, nil)
	return op.Result(0), true
}

func fieldTypeOf(t *types.TupleType, name string) types.Type {
	if ft := t.FieldType(types.NamedID(name)); ft != nil {
		return ft
	}
	return types.Any
}
