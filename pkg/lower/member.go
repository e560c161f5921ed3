package lower

import (
	"tsgen/pkg/ast"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// lowerMember dispatches `a.b` on the type of `a`.
func (c *Core) lowerMember(n *ast.MemberExpression, ctx GenContext) (*ir.Value, bool) {
	obj, ok := c.lowerExpression(n.Object, ctx)
	if !ok {
		return nil, false
	}
	return c.memberAccess(obj, n.Property.Name, n.Pos(), ctx)
}

// memberAccess resolves one property access against a lowered receiver.
func (c *Core) memberAccess(obj *ir.Value, name string, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	objType := obj.Type

	// Namespace: switch the current namespace and re-resolve.
	if nsType, ok := objType.(*types.NamespaceType); ok {
		return c.namespaceMember(nsType, name, loc, ctx)
	}

	// Enum: look up the key and yield a constant.
	if enumType, ok := objType.(*types.EnumType); ok {
		info := c.enumsByFQN[enumType.Name]
		if info == nil {
			c.unresolvedName(ctx, loc, enumType.Name)
			return nil, false
		}
		v, ok := info.Values[name]
		if !ok {
			c.errorAt(loc, "enum '%s' has no member '%s'", info.Name, name)
			return nil, false
		}
		return c.b.Constant(loc, info.Type, v), true
	}

	// Static side of a class: the receiver is the class symbol itself.
	if cls, ok := objType.(*types.ClassType); ok && isClassRef(obj) {
		return c.staticMemberAccess(cls, name, loc, ctx)
	}

	switch t := types.StripOptional(objType).(type) {
	case *types.ClassType:
		return c.classMemberAccess(obj, t, name, loc, ctx)

	case *types.ClassStorageType:
		// A class-storage receiver is `super`: direct dispatch into the base.
		info := c.classesByFQN[t.Name]
		if info == nil {
			c.unresolvedName(ctx, loc, t.Name)
			return nil, false
		}
		return c.directMethodOrField(obj, info, name, loc, ctx)

	case *types.InterfaceType:
		return c.interfaceMemberAccess(obj, t, name, loc, ctx)

	case *types.TupleType:
		return c.tupleFieldAccess(obj, t.Fields, name, loc, ctx)

	case *types.ConstTupleType:
		return c.tupleFieldAccess(obj, t.Fields, name, loc, ctx)

	case *types.UnionType:
		// Cast to the front arm, then access; every arm must carry the
		// member for the access to be sound.
		for _, arm := range t.Types {
			if !c.typeHasMember(arm, name) {
				c.errorAt(loc, "property '%s' is missing in union arm %s", name, arm)
				return nil, false
			}
		}
		front := c.b.Cast(loc, obj, t.Types[0])
		return c.memberAccess(front, name, loc, ctx)

	case *types.ArrayType:
		if name == "length" {
			return c.arrayLength(obj, loc), true
		}
		if fn, ok := c.arrayBuiltinMethod(obj, t, name, loc); ok {
			return fn, true
		}
		c.errorAt(loc, "array has no property '%s'", name)
		return nil, false

	case *types.ConstArrayType:
		if name == "length" {
			return c.b.Constant(loc, types.I32, int64(t.Size)), true
		}
		widened := c.b.Cast(loc, obj, &types.ArrayType{Elem: t.Elem})
		return c.memberAccess(widened, name, loc, ctx)

	case *types.LiteralType:
		return c.memberAccess(c.b.Cast(loc, obj, t.Base), name, loc, ctx)

	case *types.Primitive:
		if t == types.String && name == "length" {
			ref := c.b.Create(ir.OpFieldRef, loc, []*ir.Value{obj},
				[]types.Type{&types.RefType{Elem: types.I32}},
				map[string]interface{}{"field": "length"})
			return c.b.Load(loc, ref.Result(0)), true
		}
		if t == types.Any || t == types.Unknown {
			// Late-bound access; resolves at runtime.
			ref := c.b.Create(ir.OpFieldRef, loc, []*ir.Value{obj},
				[]types.Type{&types.RefType{Elem: types.Any}},
				map[string]interface{}{"field": name})
			return c.b.Load(loc, ref.Result(0)), true
		}
	}

	c.errorAt(loc, "type %s has no property '%s'", objType, name)
	return nil, false
}

func isClassRef(v *ir.Value) bool {
	return v.Def != nil && v.Def.Kind == ir.OpSymbolRef && v.Def.BoolAttr("class_ref")
}

// namespaceMember re-resolves a name inside another namespace.
func (c *Core) namespaceMember(nsType *types.NamespaceType, name string, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	ns, last := c.root.resolveQualified(nsType.Name + "." + name)
	if ns == nil {
		c.unresolvedName(ctx, loc, nsType.Name+"."+name)
		return nil, false
	}
	r, ok := lookupNamespace(ns, last)
	if !ok {
		c.unresolvedName(ctx, loc, nsType.Name+"."+name)
		return nil, false
	}
	switch {
	case r.Decl != nil:
		return c.loadVariable(r.Decl, loc, ctx)
	case r.Func != nil:
		return c.functionValue(r.Func, loc, ctx)
	case r.Class != nil:
		op := c.b.Create(ir.OpSymbolRef, loc, nil, []types.Type{r.Class.Type}, map[string]interface{}{
			"identifier": r.Class.FullName,
			"class_ref":  true,
		})
		return op.Result(0), true
	case r.Enum != nil:
		op := c.b.Create(ir.OpSymbolRef, loc, nil, []types.Type{r.Enum.Type}, map[string]interface{}{
			"identifier": r.Enum.FullName,
		})
		return op.Result(0), true
	case r.NS != nil:
		op := c.b.Create(ir.OpSymbolRef, loc, nil,
			[]types.Type{&types.NamespaceType{Name: r.NS.FullName}},
			map[string]interface{}{"identifier": r.NS.FullName})
		return op.Result(0), true
	default:
		c.unresolvedName(ctx, loc, name)
		return nil, false
	}
}

// staticMemberAccess resolves `C.x`: static fields, static methods, then
// static accessors.
func (c *Core) staticMemberAccess(cls *types.ClassType, name string, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	info := c.classesByFQN[cls.Name]
	if info == nil {
		c.unresolvedName(ctx, loc, cls.Name)
		return nil, false
	}
	if f := info.FindStaticField(name); f != nil {
		addr := c.b.Create(ir.OpAddressOf, loc, nil,
			[]types.Type{&types.RefType{Elem: f.Type}},
			map[string]interface{}{"global": f.FullName})
		return c.b.Load(loc, addr.Result(0)), true
	}
	for ci := info; ci != nil; ci = firstBase(ci) {
		for _, m := range ci.Methods {
			if m.IsStatic && m.Name == name {
				op := c.b.Create(ir.OpSymbolRef, loc, nil, []types.Type{m.Type},
					map[string]interface{}{"identifier": ci.FullName + "." + name})
				return op.Result(0), true
			}
		}
	}
	for _, a := range info.Accessors {
		if a.IsStatic && a.Name == name && a.Getter != nil {
			op := c.b.Create(ir.OpAccessorRead, loc, nil, []types.Type{a.Type},
				map[string]interface{}{"getter": a.Getter.FullName})
			return op.Result(0), true
		}
	}
	c.errorAt(loc, "class '%s' has no static member '%s'", info.Name, name)
	return nil, false
}

func firstBase(ci *ClassInfo) *ClassInfo {
	if len(ci.BaseClasses) == 0 {
		return nil
	}
	return ci.BaseClasses[0]
}

// classMemberAccess resolves an instance member: field, accessor, method,
// then the base-class chain.
func (c *Core) classMemberAccess(obj *ir.Value, cls *types.ClassType, name string, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	info := c.classesByFQN[cls.Name]
	if info == nil {
		c.unresolvedName(ctx, loc, cls.Name)
		return nil, false
	}

	// fields along the storage (includes inherited layout)
	if idx := info.FieldIndex(types.NamedID(name)); idx >= 0 {
		ft := info.Storage.Fields[idx].Type
		ref := c.b.Create(ir.OpFieldRef, loc, []*ir.Value{obj},
			[]types.Type{&types.RefType{Elem: ft}},
			map[string]interface{}{"field": name})
		return c.b.Load(loc, ref.Result(0)), true
	}

	// accessors
	if a := info.FindAccessor(name); a != nil && !a.IsStatic {
		if a.Getter == nil {
			c.errorAt(loc, "property '%s' has no getter", name)
			return nil, false
		}
		op := c.b.Create(ir.OpAccessorRead, loc, []*ir.Value{obj}, []types.Type{a.Type},
			map[string]interface{}{"getter": a.Getter.FullName, "setter": accessorSetterName(a), "virtual": a.IsVirtual})
		return op.Result(0), true
	}

	// methods: virtual dispatch through the slot, or a direct bound ref
	if m := info.FindMethodInChain(name); m != nil && !m.IsStatic {
		if m.IsVirtual {
			op := c.b.Create(ir.OpThisVirtualSymbolRef, loc, []*ir.Value{obj},
				[]types.Type{&types.BoundFunctionType{Func: m.Type}},
				map[string]interface{}{"vindex": m.VirtualIndex, "name": name})
			return op.Result(0), true
		}
		return c.bindMethod(obj, m, loc), true
	}

	// static members are reachable through an instance as well
	if f := info.FindStaticField(name); f != nil {
		addr := c.b.Create(ir.OpAddressOf, loc, nil,
			[]types.Type{&types.RefType{Elem: f.Type}},
			map[string]interface{}{"global": f.FullName})
		return c.b.Load(loc, addr.Result(0)), true
	}

	c.errorAt(loc, "class '%s' has no member '%s'", info.Name, name)
	return nil, false
}

func accessorSetterName(a *AccessorInfo) string {
	if a.Setter == nil {
		return ""
	}
	return a.Setter.FullName
}

// directMethodOrField is the `super` path: no virtual dispatch.
func (c *Core) directMethodOrField(obj *ir.Value, info *ClassInfo, name string, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	if m := info.FindMethodInChain(name); m != nil && !m.IsStatic {
		return c.bindMethod(obj, m, loc), true
	}
	if idx := info.FieldIndex(types.NamedID(name)); idx >= 0 {
		ft := info.Storage.Fields[idx].Type
		ref := c.b.Create(ir.OpFieldRef, loc, []*ir.Value{obj},
			[]types.Type{&types.RefType{Elem: ft}},
			map[string]interface{}{"field": name})
		return c.b.Load(loc, ref.Result(0)), true
	}
	c.errorAt(loc, "class '%s' has no member '%s'", info.Name, name)
	return nil, false
}

// bindMethod wraps a direct method reference with its receiver.
func (c *Core) bindMethod(obj *ir.Value, m *MethodInfo, loc errors.Position) *ir.Value {
	sym := c.b.Create(ir.OpSymbolRef, loc, nil, []types.Type{m.Type},
		map[string]interface{}{"identifier": m.Func.FullName})
	op := c.b.Create(ir.OpCreateBoundFunction, loc, []*ir.Value{obj, sym.Result(0)},
		[]types.Type{&types.BoundFunctionType{Func: m.Type}}, nil)
	return op.Result(0)
}

// interfaceMemberAccess emits an interface-symbol-reference indexed by the
// member's vtable slot; function-typed members are rebound with the
// receiver extracted from the fat pointer.
func (c *Core) interfaceMemberAccess(obj *ir.Value, ifaceType *types.InterfaceType, name string, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	info := c.ifacesByFQN[ifaceType.Name]
	if info == nil {
		c.unresolvedName(ctx, loc, ifaceType.Name)
		return nil, false
	}
	slot := 0
	for _, m := range info.AllMembers() {
		if m.ID.Equals(types.NamedID(name)) {
			if m.IsMethod {
				mt := types.UnwrapCallable(m.Type)
				op := c.b.Create(ir.OpInterfaceSymbolRef, loc, []*ir.Value{obj},
					[]types.Type{&types.BoundFunctionType{Func: mt}},
					map[string]interface{}{"iface": info.FullName, "slot": slot, "name": name, "conditional": m.IsConditional})
				return op.Result(0), true
			}
			op := c.b.Create(ir.OpInterfaceSymbolRef, loc, []*ir.Value{obj},
				[]types.Type{&types.RefType{Elem: m.Type}},
				map[string]interface{}{"iface": info.FullName, "slot": slot, "name": name})
			return c.b.Load(loc, op.Result(0)), true
		}
		slot++
	}
	c.errorAt(loc, "interface '%s' has no member '%s'", info.Name, name)
	return nil, false
}

// tupleFieldAccess reads a named tuple field through a field ref.
func (c *Core) tupleFieldAccess(obj *ir.Value, fields []types.Field, name string, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	idx := types.FindField(fields, types.NamedID(name))
	if idx < 0 {
		c.errorAt(loc, "tuple has no field '%s'", name)
		return nil, false
	}
	ft := fields[idx].Type
	base := obj
	if obj.Def != nil && obj.Def.Kind == ir.OpLoad {
		base = obj.Def.Operands[0]
	}
	ref := c.b.Create(ir.OpFieldRef, loc, []*ir.Value{base},
		[]types.Type{&types.RefType{Elem: ft}},
		map[string]interface{}{"field": name})
	v := c.b.Load(loc, ref.Result(0))
	// Function-typed fields are rebound with the receiver.
	if bf, ok := ft.(*types.HybridFunctionType); ok {
		op := c.b.Create(ir.OpCreateBoundFunction, loc, []*ir.Value{obj, v},
			[]types.Type{&types.BoundFunctionType{Func: bf.Func}}, nil)
		return op.Result(0), true
	}
	return v, true
}

// typeHasMember answers whether a union arm carries a member.
func (c *Core) typeHasMember(t types.Type, name string) bool {
	switch n := types.StripOptional(t).(type) {
	case *types.TupleType:
		return types.FindField(n.Fields, types.NamedID(name)) >= 0
	case *types.ConstTupleType:
		return types.FindField(n.Fields, types.NamedID(name)) >= 0
	case *types.ClassType:
		info := c.classesByFQN[n.Name]
		if info == nil {
			return false
		}
		return info.FieldIndex(types.NamedID(name)) >= 0 ||
			info.FindMethodInChain(name) != nil || info.FindAccessor(name) != nil
	case *types.InterfaceType:
		return n.FindMember(types.NamedID(name)) != nil
	default:
		return false
	}
}

// lowerIndex is computed access `a[i]`.
func (c *Core) lowerIndex(n *ast.IndexExpression, ctx GenContext) (*ir.Value, bool) {
	obj, ok := c.lowerExpression(n.Object, ctx)
	if !ok {
		return nil, false
	}
	idx, ok := c.lowerExpression(n.Index, ctx)
	if !ok {
		return nil, false
	}

	// A constant string index is plain member access.
	if s := constantString(idx); s != nil {
		return c.memberAccess(obj, *s, n.Pos(), ctx)
	}

	elem := c.elementValue(obj, idx, n.Pos())
	if elem == nil {
		c.errorAt(n.Pos(), "type %s is not indexable", obj.Type)
		return nil, false
	}
	return elem, true
}

// elementValue indexes into array-shaped values, returning a loaded element
// or nil when the receiver is not indexable.
func (c *Core) elementValue(obj *ir.Value, idx *ir.Value, loc errors.Position) *ir.Value {
	var elemType types.Type
	switch t := types.WidenType(obj.Type).(type) {
	case *types.ArrayType:
		elemType = t.Elem
	case *types.ConstArrayType:
		elemType = t.Elem
	case *types.TupleType:
		if iv, ok := constantInt(idx); ok {
			if i := types.FindField(t.Fields, types.OrdinalID(int(iv))); i >= 0 {
				elemType = t.Fields[i].Type
			} else if int(iv) < len(t.Fields) {
				elemType = t.Fields[iv].Type
			}
		}
		if elemType == nil {
			return nil
		}
	default:
		if types.WidenType(obj.Type) == types.String {
			elemType = types.Char
		} else {
			return nil
		}
	}

	base := obj
	if obj.Def != nil && obj.Def.Kind == ir.OpLoad {
		base = obj.Def.Operands[0]
	}
	ref := c.b.Create(ir.OpElementRef, loc, []*ir.Value{base, c.b.Cast(loc, idx, types.I32)},
		[]types.Type{&types.RefType{Elem: elemType}}, nil)
	return c.b.Load(loc, ref.Result(0))
}

// arrayBuiltinMethod produces bound references for the array methods the
// lowering understands (`map`, `push`, `pop`).
func (c *Core) arrayBuiltinMethod(obj *ir.Value, arr *types.ArrayType, name string, loc errors.Position) (*ir.Value, bool) {
	// The receiver occupies the first input slot, like any bound callable.
	var ft *types.FunctionType
	switch name {
	case "map":
		ft = &types.FunctionType{
			Inputs: []types.Type{arr,
				&types.FunctionType{Inputs: []types.Type{arr.Elem}, Results: []types.Type{types.Any}}},
			Results: []types.Type{&types.ArrayType{Elem: types.Any}},
		}
	case "push":
		ft = &types.FunctionType{Inputs: []types.Type{arr, arr.Elem}, Results: []types.Type{types.I32}}
	case "pop":
		ft = &types.FunctionType{Inputs: []types.Type{arr}, Results: []types.Type{types.NewOptionalType(arr.Elem)}}
	default:
		return nil, false
	}
	sym := c.b.Create(ir.OpSymbolRef, loc, nil, []types.Type{ft},
		map[string]interface{}{"identifier": "#_array_" + name, "unresolved": true})
	op := c.b.Create(ir.OpCreateBoundFunction, loc, []*ir.Value{obj, sym.Result(0)},
		[]types.Type{&types.BoundFunctionType{Func: ft}}, nil)
	return op.Result(0), true
}
