package lower

import (
	"tsgen/pkg/ast"
	"tsgen/pkg/types"
)

// resolveTypeNode turns annotation syntax into an IR type. A false return is
// a resolution failure already routed to the unresolved sink, or an
// unsupported annotation already reported as an error.
func (c *Core) resolveTypeNode(node ast.TypeNode, ctx GenContext) (types.Type, bool) {
	switch n := node.(type) {
	case nil:
		return types.Any, true

	case *ast.ComputedTypeNode:
		return n.Type, true

	case *ast.TypeName:
		return c.resolveTypeName(n, ctx)

	case *ast.ArrayTypeNode:
		elem, ok := c.resolveTypeNode(n.Elem, ctx)
		if !ok {
			return nil, false
		}
		return &types.ArrayType{Elem: elem}, true

	case *ast.TupleTypeNode:
		fields := make([]types.Field, len(n.Elems))
		for i, e := range n.Elems {
			t, ok := c.resolveTypeNode(e, ctx)
			if !ok {
				return nil, false
			}
			fields[i] = types.Field{ID: types.OrdinalID(i), Type: t}
		}
		return &types.TupleType{Fields: fields}, true

	case *ast.ObjectTypeNode:
		fields := make([]types.Field, 0, len(n.Members))
		for _, m := range n.Members {
			t, ok := c.resolveTypeNode(m.Type, ctx)
			if !ok {
				return nil, false
			}
			if m.Optional {
				t = types.NewOptionalType(t)
			}
			fields = append(fields, types.Field{ID: types.NamedID(m.Name), Type: t})
		}
		return &types.TupleType{Fields: fields}, true

	case *ast.UnionTypeNode:
		members := make([]types.Type, len(n.Members))
		for i, m := range n.Members {
			t, ok := c.resolveTypeNode(m, ctx)
			if !ok {
				return nil, false
			}
			members[i] = t
		}
		return types.NewUnionType(members...), true

	case *ast.IntersectionTypeNode:
		members := make([]types.Type, len(n.Members))
		for i, m := range n.Members {
			t, ok := c.resolveTypeNode(m, ctx)
			if !ok {
				return nil, false
			}
			members[i] = t
		}
		return types.NewIntersectionType(members...), true

	case *ast.FunctionTypeNode:
		ft := &types.FunctionType{}
		for _, p := range n.Params {
			t, ok := c.resolveTypeNode(p, ctx)
			if !ok {
				return nil, false
			}
			ft.Inputs = append(ft.Inputs, t)
		}
		ret, ok := c.resolveTypeNode(n.Return, ctx)
		if !ok {
			return nil, false
		}
		if ret != types.Void {
			ft.Results = []types.Type{ret}
		}
		return ft, true

	case *ast.LiteralTypeNode:
		return literalTypeOf(n.Value), true

	case *ast.OptionalTypeNode:
		elem, ok := c.resolveTypeNode(n.Elem, ctx)
		if !ok {
			return nil, false
		}
		return types.NewOptionalType(elem), true

	case *ast.KeyOfTypeNode:
		op, ok := c.resolveTypeNode(n.Operand, ctx)
		if !ok {
			return nil, false
		}
		return types.EvalKeyOf(op), true

	case *ast.IndexedAccessTypeNode:
		obj, ok := c.resolveTypeNode(n.Obj, ctx)
		if !ok {
			return nil, false
		}
		idx, ok := c.resolveTypeNode(n.Index, ctx)
		if !ok {
			return nil, false
		}
		return types.EvalIndexedAccess(obj, idx), true

	case *ast.ConditionalTypeNode:
		check, ok := c.resolveTypeNode(n.Check, ctx)
		if !ok {
			return nil, false
		}
		extends, ok := c.resolveTypeNode(n.Extends, ctx)
		if !ok {
			return nil, false
		}
		trueT, ok := c.resolveTypeNode(n.True, ctx)
		if !ok {
			return nil, false
		}
		falseT, ok := c.resolveTypeNode(n.False, ctx)
		if !ok {
			return nil, false
		}
		return types.EvalConditional(&types.ConditionalType{
			Check: check, Extends: extends, True: trueT, False: falseT,
		}), true

	case *ast.InferTypeNode:
		return &types.InferType{Name: n.Name}, true

	case *ast.MappedTypeNode:
		src, ok := c.resolveTypeNode(n.Source, ctx)
		if !ok {
			return nil, false
		}
		val, ok := c.resolveTypeNode(n.Value, ctx)
		if !ok {
			return nil, false
		}
		return c.evalMappedType(n.Param, src, val), true

	default:
		c.errorAt(node.Pos(), "unsupported type annotation")
		return nil, false
	}
}

func literalTypeOf(v interface{}) types.Type {
	switch lv := v.(type) {
	case string:
		return &types.LiteralType{Value: lv, Base: types.String}
	case bool:
		return &types.LiteralType{Value: lv, Base: types.Boolean}
	case int64:
		return &types.LiteralType{Value: lv, Base: types.I32}
	case float64:
		return &types.LiteralType{Value: lv, Base: types.Number}
	default:
		return types.Any
	}
}

var primitiveTypeNames = map[string]types.Type{
	"void":      types.Void,
	"boolean":   types.Boolean,
	"number":    types.Number,
	"bigint":    types.BigInt,
	"string":    types.String,
	"char":      types.Char,
	"byte":      types.Byte,
	"any":       types.Any,
	"unknown":   types.Unknown,
	"never":     types.Never,
	"null":      types.Null,
	"undefined": types.Undefined,
	"symbol":    types.Symbol,
	"object":    types.Any,
	"i32":       types.I32,
	"i64":       types.I64,
	"i128":      types.I128,
}

func (c *Core) resolveTypeName(n *ast.TypeName, ctx GenContext) (types.Type, bool) {
	// 1. per-scope alias overrides (safe-cast narrowing)
	if ctx.TypeAliasMap != nil {
		if t, ok := ctx.TypeAliasMap[n.Name]; ok {
			return t, true
		}
	}

	// 2. primitives
	if t, ok := primitiveTypeNames[n.Name]; ok {
		return t, true
	}

	// 3. generic utility instantiation through declared aliases
	if t, ok := c.lookupAliasOrNominal(n, ctx); ok {
		return t, true
	}

	c.unresolvedName(ctx, n.Pos(), n.Name)
	return nil, false
}

// lookupAliasOrNominal resolves a (possibly dotted) type name against the
// namespace tree: alias, class, interface, or enum.
func (c *Core) lookupAliasOrNominal(n *ast.TypeName, ctx GenContext) (types.Type, bool) {
	resolveIn := func(ns *Namespace, name string) (types.Type, bool) {
		if alias, ok := ns.TypeAliases[name]; ok {
			return c.instantiateAlias(alias, n, ctx)
		}
		if cls, ok := ns.Classes[name]; ok {
			return cls.Type, true
		}
		if ifc, ok := ns.Interfaces[name]; ok {
			return ifc.Type, true
		}
		if en, ok := ns.Enums[name]; ok {
			return en.Type, true
		}
		if target, ok := ns.Imports[name]; ok {
			tns, last := c.root.resolveQualified(target)
			if tns != nil {
				return resolveInNoImport(c, tns, last, n, ctx)
			}
		}
		return nil, false
	}

	segs := SplitQualified(n.Name)
	if len(segs) > 1 {
		ns, last := c.root.resolveQualified(n.Name)
		if ns == nil {
			return nil, false
		}
		return resolveIn(ns, last)
	}
	for ns := c.current(); ns != nil; ns = ns.Parent {
		if t, ok := resolveIn(ns, normName(n.Name)); ok {
			return t, true
		}
	}
	return nil, false
}

func resolveInNoImport(c *Core, ns *Namespace, name string, n *ast.TypeName, ctx GenContext) (types.Type, bool) {
	if alias, ok := ns.TypeAliases[name]; ok {
		return c.instantiateAlias(alias, n, ctx)
	}
	if cls, ok := ns.Classes[name]; ok {
		return cls.Type, true
	}
	if ifc, ok := ns.Interfaces[name]; ok {
		return ifc.Type, true
	}
	if en, ok := ns.Enums[name]; ok {
		return en.Type, true
	}
	return nil, false
}

// instantiateAlias substitutes type arguments into a (possibly generic)
// alias body. Non-generic aliases pass through.
func (c *Core) instantiateAlias(alias types.Type, n *ast.TypeName, ctx GenContext) (types.Type, bool) {
	if len(n.Args) == 0 {
		return alias, true
	}

	args := make([]types.Type, len(n.Args))
	for i, a := range n.Args {
		t, ok := c.resolveTypeNode(a, ctx)
		if !ok {
			return nil, false
		}
		args[i] = t
	}
	params := c.aliasParams[n.Name]
	if len(params) == 0 || len(params) != len(args) {
		return alias, true
	}
	byName := map[string]types.Type{}
	for i, p := range params {
		byName[p] = args[i]
	}
	out := types.Substitute(alias, func(t types.Type) types.Type {
		if ref, ok := t.(*types.TypeReference); ok && len(ref.Args) == 0 {
			if repl, ok := byName[ref.Name]; ok {
				return repl
			}
		}
		if inf, ok := t.(*types.InferType); ok {
			if repl, ok := byName[inf.Name]; ok {
				return repl
			}
		}
		return nil
	})
	return out, true
}

// evalMappedType expands `{ [K in Source]: Value }` over a union of key
// literals into a tuple type.
func (c *Core) evalMappedType(param string, src, val types.Type) types.Type {
	keys := types.UnionMembers(src)
	fields := make([]types.Field, 0, len(keys))
	for _, k := range keys {
		lit, ok := k.(*types.LiteralType)
		if !ok {
			return &types.MappedType{Param: param, Source: src, Value: val}
		}
		name, ok := lit.Value.(string)
		if !ok {
			return &types.MappedType{Param: param, Source: src, Value: val}
		}
		fieldType := types.Substitute(val, func(t types.Type) types.Type {
			if ref, ok := t.(*types.TypeReference); ok && ref.Name == param {
				return lit
			}
			return nil
		})
		fields = append(fields, types.Field{ID: types.NamedID(name), Type: fieldType})
	}
	return &types.TupleType{Fields: fields}
}
