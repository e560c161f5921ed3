package lower

import (
	"fmt"

	"tsgen/pkg/ast"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// emitVTables generates the per-class virtual table global plus one adapter
// vtable per implements entry, and the class's static storage.
func (c *Core) emitVTables(info *ClassInfo, n *ast.ClassDeclaration, loc errors.Position, ctx GenContext) bool {
	if !c.emitStatics(info, n, loc, ctx) {
		return false
	}
	if !info.HasVirtualTable {
		return true
	}

	// Adapter vtables first: the class vtable points at them.
	for _, impl := range info.Implements {
		if impl.Processed {
			continue
		}
		if !c.emitAdapterVTable(info, impl, loc, ctx) {
			return false
		}
		impl.Processed = true
	}

	// Interface vtables inherited from bases are copied unchanged: an
	// implements entry satisfied by a base reuses the base's adapter symbol.
	for _, base := range info.BaseClasses {
		for _, bimpl := range base.Implements {
			if !hasImplement(info, bimpl.Iface.FullName) {
				info.Implements = append(info.Implements, &ImplementInfo{
					Iface:     bimpl.Iface,
					VTableSym: bimpl.VTableSym,
					Processed: true,
				})
			}
		}
	}

	sym := info.FullName + ".vtable"
	if c.module.FindGlobal(sym) != nil {
		return true
	}

	// Slot-ordered virtual methods.
	virtuals := collectVirtuals(info)
	var fields []types.Field
	for i, m := range virtuals {
		if m == nil {
			c.errorAt(loc, "virtual slot %d of class '%s' is unassigned", i, info.Name)
			return false
		}
		fields = append(fields, types.Field{ID: types.OrdinalID(i), Type: m.Type})
	}
	for range info.Implements {
		fields = append(fields, types.Field{ID: types.OrdinalID(len(fields)), Type: types.Opaque})
	}
	vtableType := &types.TupleType{Fields: fields}

	globalOp := c.b.CreateWithRegions(ir.OpGlobal, loc, nil, nil, map[string]interface{}{
		"sym_name": sym,
		"type":     vtableType,
		"vtable":   true,
		"class":    info.FullName,
	}, 1)
	block := c.b.NewBlock(globalOp.Regions[0], nil)
	c.b.SaveInsertionPoint()
	defer c.b.RestoreInsertionPoint()
	c.b.SetInsertionPointToEnd(block)

	var operands []*ir.Value
	for _, m := range virtuals {
		if m.IsAbstract || m.Func == nil {
			operands = append(operands, c.b.Constant(loc, types.Opaque, int64(-1)))
			continue
		}
		s := c.b.Create(ir.OpSymbolRef, loc, nil, []types.Type{m.Type},
			map[string]interface{}{"identifier": m.Func.FullName})
		operands = append(operands, s.Result(0))
	}
	for _, impl := range info.Implements {
		ref := c.b.Create(ir.OpVTableOffsetRef, loc, nil, []types.Type{types.Opaque},
			map[string]interface{}{"vtable": impl.VTableSym, "offset": 0})
		operands = append(operands, ref.Result(0))
	}
	c.b.Create(ir.OpCreateTuple, loc, operands, []types.Type{vtableType}, nil)
	return true
}

func hasImplement(info *ClassInfo, ifaceFQN string) bool {
	for _, impl := range info.Implements {
		if impl.Iface.FullName == ifaceFQN {
			return true
		}
	}
	return false
}

// collectVirtuals returns methods by virtual slot, inherited slots
// resolved to the most-derived override.
func collectVirtuals(info *ClassInfo) []*MethodInfo {
	bySlot := map[int]*MethodInfo{}
	maxSlot := -1
	var walk func(ci *ClassInfo)
	walk = func(ci *ClassInfo) {
		// Bases first so derived overrides win.
		for _, b := range ci.BaseClasses {
			walk(b)
		}
		for _, m := range ci.Methods {
			if m.IsVirtual && m.VirtualIndex >= 0 {
				bySlot[m.VirtualIndex] = m
				if m.VirtualIndex > maxSlot {
					maxSlot = m.VirtualIndex
				}
			}
		}
	}
	walk(info)
	out := make([]*MethodInfo, maxSlot+1)
	for slot, m := range bySlot {
		out[slot] = m
	}
	return out
}

// emitAdapterVTable walks the interface's table template and binds each
// required member to the matching class member: field offsets for fields,
// direct function references for methods, and the -1 sentinel for missing
// conditional members.
func (c *Core) emitAdapterVTable(info *ClassInfo, impl *ImplementInfo, loc errors.Position, ctx GenContext) bool {
	if c.module.FindGlobal(impl.VTableSym) != nil {
		return true
	}
	members := impl.Iface.AllMembers()
	var fields []types.Field
	for i := range members {
		fields = append(fields, types.Field{ID: types.OrdinalID(i), Type: types.Opaque})
	}
	tableType := &types.TupleType{Fields: fields}

	globalOp := c.b.CreateWithRegions(ir.OpGlobal, loc, nil, nil, map[string]interface{}{
		"sym_name": impl.VTableSym,
		"type":     tableType,
		"adapter":  true,
		"class":    info.FullName,
		"iface":    impl.Iface.FullName,
	}, 1)
	block := c.b.NewBlock(globalOp.Regions[0], nil)
	c.b.SaveInsertionPoint()
	defer c.b.RestoreInsertionPoint()
	c.b.SetInsertionPointToEnd(block)

	var operands []*ir.Value
	for _, m := range members {
		entry, ok := c.adapterEntryForClass(info, m, loc)
		if !ok {
			c.errorAt(loc, "class '%s' does not implement member '%s' of interface '%s'",
				info.Name, m.ID, impl.Iface.Name)
			return false
		}
		operands = append(operands, entry)
	}
	c.b.Create(ir.OpCreateTuple, loc, operands, []types.Type{tableType}, nil)
	return true
}

// adapterEntryForClass matches one interface member against a class: fields
// by id (a `(this == null)->field` offset), methods by name and
// function-shape compatibility. Missing conditional members occupy the slot
// with the -1 sentinel.
func (c *Core) adapterEntryForClass(info *ClassInfo, m *InterfaceMemberInfo, loc errors.Position) (*ir.Value, bool) {
	if m.IsMethod {
		method := info.FindMethodInChain(m.ID.Name)
		if method != nil && !method.IsStatic {
			want := types.UnwrapCallable(m.Type)
			if want == nil || types.FunctionShapeCompatible(method.Type, want) {
				if method.Func != nil {
					s := c.b.Create(ir.OpSymbolRef, loc, nil, []types.Type{method.Type},
						map[string]interface{}{"identifier": method.Func.FullName})
					return s.Result(0), true
				}
			}
		}
		if m.IsConditional {
			return c.b.Constant(loc, types.Opaque, int64(-1)), true
		}
		return nil, false
	}

	if idx := info.FieldIndex(m.ID); idx >= 0 {
		ref := c.b.Create(ir.OpVTableOffsetRef, loc, nil, []types.Type{types.Opaque},
			map[string]interface{}{"field_offset": idx, "field": m.ID.String(), "class": info.FullName})
		return ref.Result(0), true
	}
	if m.IsConditional {
		return c.b.Constant(loc, types.Opaque, int64(-1)), true
	}
	return nil, false
}

// emitStatics materializes the class's static storage: the RTTI string, the
// static fields, and a synthesized static constructor for initializers.
func (c *Core) emitStatics(info *ClassInfo, n *ast.ClassDeclaration, loc errors.Position, ctx GenContext) bool {
	for _, f := range info.StaticFields {
		if c.module.FindGlobal(f.FullName) != nil {
			continue
		}
		globalOp := c.b.CreateWithRegions(ir.OpGlobal, loc, nil, nil, map[string]interface{}{
			"sym_name": f.FullName,
			"type":     f.Type,
		}, 1)
		if f.Name == "rtti" {
			block := c.b.NewBlock(globalOp.Regions[0], nil)
			c.b.SaveInsertionPoint()
			c.b.SetInsertionPointToEnd(block)
			c.b.Constant(loc, types.String, info.FullName)
			c.b.RestoreInsertionPoint()
		}
	}

	// Static initializers run through the synthesized static constructor.
	if info.HasStaticConstructor && n != nil {
		ctorOp := c.b.CreateWithRegions(ir.OpGlobalConstructor, loc, nil, nil,
			map[string]interface{}{"class": info.FullName}, 1)
		block := c.b.NewBlock(ctorOp.Regions[0], nil)
		c.b.SaveInsertionPoint()
		defer c.b.RestoreInsertionPoint()
		c.b.SetInsertionPointToEnd(block)
		for _, m := range n.Members {
			if m.Kind != ast.MemberProperty || !m.IsStatic || m.Init == nil {
				continue
			}
			sf := info.FindStaticField(m.Name)
			if sf == nil {
				continue
			}
			v, ok := c.lowerExpression(m.Init, ctx)
			if !ok {
				return false
			}
			addr := c.b.Create(ir.OpAddressOf, m.Pos(), nil,
				[]types.Type{&types.RefType{Elem: sf.Type}},
				map[string]interface{}{"global": sf.FullName})
			c.b.Store(m.Pos(), c.b.Cast(m.Pos(), v, sf.Type), addr.Result(0))
		}
	}
	return true
}

// castToInterface casts a value to an interface type. Class sources go
// through their implements adapter; tuple sources get a per-object adapter
// vtable keyed by the tuple's type hash and the interface's fqn.
func (c *Core) castToInterface(v *ir.Value, iface *types.InterfaceType, loc errors.Position, ctx GenContext) *ir.Value {
	info := c.ifacesByFQN[iface.Name]
	if info == nil {
		return c.b.Cast(loc, v, iface)
	}

	switch src := types.WidenType(v.Type).(type) {
	case *types.ClassType:
		clsInfo := c.classesByFQN[src.Name]
		if clsInfo != nil {
			for _, impl := range clsInfo.Implements {
				if impl.Iface.FullName == iface.Name {
					vt := c.b.Create(ir.OpVTableOffsetRef, loc, nil, []types.Type{types.Opaque},
						map[string]interface{}{"vtable": impl.VTableSym, "offset": 0})
					op := c.b.Create(ir.OpNewInterface, loc, []*ir.Value{vt.Result(0), v},
						[]types.Type{iface}, map[string]interface{}{"iface": iface.Name})
					return op.Result(0)
				}
			}
		}

	case *types.TupleType:
		sym, ok := c.tupleAdapter(src.Fields, src.String(), info, loc, ctx)
		if !ok {
			break
		}
		vt := c.b.Create(ir.OpVTableOffsetRef, loc, nil, []types.Type{types.Opaque},
			map[string]interface{}{"vtable": sym, "offset": 0})
		op := c.b.Create(ir.OpNewInterface, loc, []*ir.Value{vt.Result(0), v},
			[]types.Type{iface}, map[string]interface{}{"iface": iface.Name})
		return op.Result(0)

	case *types.ConstTupleType:
		sym, ok := c.tupleAdapter(src.Fields, src.String(), info, loc, ctx)
		if !ok {
			break
		}
		vt := c.b.Create(ir.OpVTableOffsetRef, loc, nil, []types.Type{types.Opaque},
			map[string]interface{}{"vtable": sym, "offset": 0})
		op := c.b.Create(ir.OpNewInterface, loc, []*ir.Value{vt.Result(0), v},
			[]types.Type{iface}, map[string]interface{}{"iface": iface.Name})
		return op.Result(0)
	}
	return c.b.Cast(loc, v, iface)
}

// tupleAdapter builds (or reuses) the structural adapter vtable for a tuple
// type against an interface, using the same member-matching logic as class
// adapters.
func (c *Core) tupleAdapter(fields []types.Field, typeKey string, info *InterfaceInfo, loc errors.Position, ctx GenContext) (string, bool) {
	key := typeKey + "@" + info.FullName
	// A dummy discovery round erases the globals it created, so a memoized
	// symbol is reused only while its global is still in the module.
	if sym, ok := c.tupleAdapters[key]; ok && c.module.FindGlobal(sym) != nil {
		return sym, true
	}
	sym := fmt.Sprintf("__tuple_vtbl_%d.%s", hashString(typeKey), info.FullName)
	c.tupleAdapters[key] = sym

	members := info.AllMembers()
	var tfields []types.Field
	for i := range members {
		tfields = append(tfields, types.Field{ID: types.OrdinalID(i), Type: types.Opaque})
	}
	tableType := &types.TupleType{Fields: tfields}

	c.b.SaveInsertionPoint()
	defer c.b.RestoreInsertionPoint()
	c.b.SetInsertionPointToEnd(c.module.BodyBlock())
	globalOp := c.b.CreateWithRegions(ir.OpGlobal, loc, nil, nil, map[string]interface{}{
		"sym_name": sym,
		"type":     tableType,
		"adapter":  true,
		"iface":    info.FullName,
	}, 1)
	block := c.b.NewBlock(globalOp.Regions[0], nil)
	c.b.SetInsertionPointToEnd(block)

	var operands []*ir.Value
	for _, m := range members {
		idx := types.FindField(fields, m.ID)
		if idx < 0 {
			if !m.IsConditional {
				c.errorAt(loc, "tuple does not satisfy member '%s' of interface '%s'", m.ID, info.Name)
				return "", false
			}
			operands = append(operands, c.b.Constant(loc, types.Opaque, int64(-1)))
			continue
		}
		ref := c.b.Create(ir.OpVTableOffsetRef, loc, nil, []types.Type{types.Opaque},
			map[string]interface{}{"field_offset": idx, "field": m.ID.String()})
		operands = append(operands, ref.Result(0))
	}
	c.b.Create(ir.OpCreateTuple, loc, operands, []types.Type{tableType}, nil)
	return sym, true
}

func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// lowerInterfaceDeclaration registers the interface model: members keep
// declaration order; each member's interface_pos_index plus the extension
// offset determines its adapter-vtable slot. Method signatures take opaque
// as their first parameter, a placeholder for any `this` shape.
func (c *Core) lowerInterfaceDeclaration(n *ast.InterfaceDeclaration, ctx GenContext) bool {
	name := n.Name.Name
	fqn := c.current().Qualify(name)

	info := c.ifacesByFQN[fqn]
	if info == nil {
		info = &InterfaceInfo{Name: name, FullName: fqn, Loc: n.Pos()}
		c.ifacesByFQN[fqn] = info
		c.current().Interfaces[normName(name)] = info
	}

	info.Extends = info.Extends[:0]
	for _, ext := range n.Extends {
		tn, ok := ext.(*ast.TypeName)
		if !ok {
			c.errorAt(ext.Pos(), "interface extension must be a name")
			return false
		}
		t, ok := c.lookupAliasOrNominal(tn, ctx)
		if !ok {
			c.unresolvedName(ctx, tn.Pos(), tn.Name)
			return false
		}
		it, ok := t.(*types.InterfaceType)
		if !ok {
			c.errorAt(ext.Pos(), "'%s' is not an interface", tn.Name)
			return false
		}
		base := c.ifacesByFQN[it.Name]
		if base == nil {
			c.unresolvedName(ctx, tn.Pos(), tn.Name)
			return false
		}
		info.Extends = append(info.Extends, base)
	}

	info.Fields = info.Fields[:0]
	info.Methods = info.Methods[:0]
	pos := 0
	for _, m := range n.Members {
		if m.Method != nil {
			params, ok := c.resolveParams(m.Method.Params, ctx)
			if !ok {
				return false
			}
			var ret types.Type = types.Void
			if m.Method.ReturnType != nil {
				t, rok := c.resolveTypeNode(m.Method.ReturnType, ctx)
				if !rok {
					return false
				}
				ret = t
			}
			proto := c.functionTypeOf(params, ret, types.Opaque)
			info.Methods = append(info.Methods, &InterfaceMemberInfo{
				ID:            types.NamedID(m.Name),
				Type:          &types.HybridFunctionType{Func: proto},
				PosIndex:      pos,
				IsConditional: m.Optional,
				IsMethod:      true,
			})
			pos++
			continue
		}
		t, ok := c.resolveTypeNode(m.Type, ctx)
		if !ok {
			return false
		}
		if m.Optional {
			t = types.NewOptionalType(t)
		}
		info.Fields = append(info.Fields, &InterfaceMemberInfo{
			ID:            types.NamedID(m.Name),
			Type:          t,
			PosIndex:      pos,
			IsConditional: m.Optional,
		})
		pos++
	}
	info.NextVTableSlot = info.SlotCount()

	// The nominal type carries the flattened member list so structural
	// castability needs no registry lookups.
	var members []types.InterfaceMember
	for _, m := range info.AllMembers() {
		members = append(members, types.InterfaceMember{
			ID:       m.ID,
			Type:     m.Type,
			Optional: m.IsConditional,
			IsMethod: m.IsMethod,
		})
	}
	info.Type = &types.InterfaceType{Name: fqn, Members: members}
	return true
}
