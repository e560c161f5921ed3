package lower

import (
	"strings"

	"tsgen/pkg/ast"
	"tsgen/pkg/errors"
	"tsgen/pkg/types"
)

// accessorSpelling recognizes the get_/set_ naming convention for accessor
// methods.
func accessorSpelling(name string) (prop string, kind ast.ClassMemberKind, ok bool) {
	if strings.HasPrefix(name, "get_") && len(name) > 4 {
		return name[4:], ast.MemberGetAccessor, true
	}
	if strings.HasPrefix(name, "set_") && len(name) > 4 {
		return name[4:], ast.MemberSetAccessor, true
	}
	return "", 0, false
}

// lowerClassDeclaration runs the ordered phases of the object model:
// registration, heritage, RTTI, storage layout, statics, synthesized
// constructors, member lowering, virtual slots, vtables, and adapter
// tables for every implemented interface.
func (c *Core) lowerClassDeclaration(n *ast.ClassDeclaration, ctx GenContext) bool {
	name := n.Name.Name
	fqn := c.current().Qualify(name)

	// Phase 1: registration; a later pass populates the info.
	info := c.classesByFQN[fqn]
	if info == nil {
		info = &ClassInfo{
			Name:       name,
			FullName:   fqn,
			Loc:        n.Pos(),
			IsAbstract: n.IsAbstract,
		}
		c.classesByFQN[fqn] = info
		c.current().Classes[normName(name)] = info
	}
	if info.fullyProcessed && !ctx.DummyRun {
		// Strict pass after a successful dummy pass: re-emit operations but
		// keep the established model.
		return c.emitClassOps(info, n, ctx)
	}

	// Phase 2: heritage links; fail-soft so a forward reference re-enters
	// the outer fixpoint.
	if !c.resolveHeritage(info, n, ctx) {
		return false
	}

	// Phase 3: RTTI static field and the synthesized instanceof method.
	if c.opts.EnableRTTI && !info.HasRTTI {
		c.addRTTI(info, n)
	}

	// Phase 4: storage layout from non-static members.
	if !c.buildStorage(info, n, ctx) {
		return false
	}

	// Phase 5: static members become globals under the class's fqn prefix.
	if !c.collectStatics(info, n, ctx) {
		return false
	}

	// Phase 6: synthesized constructors.
	c.synthesizeConstructors(info, n)

	// Phase 7+8: member lowering under this_type, with slot assignment.
	// Members may reference one another, so the body runs its own fixpoint.
	if !c.lowerMembersFixpoint(info, n, ctx) {
		return false
	}

	if !c.checkAbstractCoverage(info, n) {
		return false
	}

	// Phases 9-11: vtable emission.
	if !ctx.DummyRun {
		if !c.emitVTables(info, n, n.Pos(), ctx) {
			return false
		}
	}

	info.fullyProcessed = true
	return true
}

// emitClassOps re-lowers method bodies and vtables for the strict pass,
// rebinding each method's func op.
func (c *Core) emitClassOps(info *ClassInfo, n *ast.ClassDeclaration, ctx GenContext) bool {
	if !c.lowerMembersFixpoint(info, n, ctx) {
		return false
	}
	return c.emitVTables(info, n, n.Pos(), ctx)
}

// resolveHeritage resolves base classes and implemented interfaces.
func (c *Core) resolveHeritage(info *ClassInfo, n *ast.ClassDeclaration, ctx GenContext) bool {
	info.BaseClasses = info.BaseClasses[:0]
	for _, ext := range n.Extends {
		ident, ok := ext.(*ast.Identifier)
		if !ok {
			c.errorAt(ext.Pos(), "base class reference must be a name")
			return false
		}
		r, found := c.Lookup(ident.Name, ctx)
		if !found || r.Class == nil {
			c.unresolvedName(ctx, ident.Pos(), ident.Name)
			return false
		}
		if !r.Class.fullyProcessed && r.Class != info {
			// Base not populated yet; retry in a later fixpoint round.
			c.unresolvedName(ctx, ident.Pos(), ident.Name)
			return false
		}
		info.BaseClasses = append(info.BaseClasses, r.Class)
	}

	info.Implements = info.Implements[:0]
	for _, impl := range n.Implements {
		tn, ok := impl.(*ast.TypeName)
		if !ok {
			c.errorAt(impl.Pos(), "implements clause must name an interface")
			return false
		}
		t, ok := c.lookupAliasOrNominal(tn, ctx)
		if !ok {
			c.unresolvedName(ctx, tn.Pos(), tn.Name)
			return false
		}
		it, ok := t.(*types.InterfaceType)
		if !ok {
			c.errorAt(impl.Pos(), "'%s' is not an interface", tn.Name)
			return false
		}
		iface := c.ifacesByFQN[it.Name]
		if iface == nil {
			c.unresolvedName(ctx, tn.Pos(), tn.Name)
			return false
		}
		info.Implements = append(info.Implements, &ImplementInfo{
			Iface:     iface,
			VTableSym: info.FullName + ".vtbl." + iface.FullName,
		})
	}
	return true
}

// addRTTI injects the `.rtti` static string and records that the
// synthesized `.instanceof(rtti_name)` method must be produced.
func (c *Core) addRTTI(info *ClassInfo, n *ast.ClassDeclaration) {
	info.HasRTTI = true
	info.StaticFields = append(info.StaticFields, &VarInfo{
		Name:     "rtti",
		FullName: info.FullName + ".rtti",
		Type:     types.String,
		Loc:      n.Pos(),
		Global:   true,
	})
}

// instanceofBody synthesizes `return this.rtti == arg || super.instanceof(arg)`.
func instanceofBody(hasBase bool) *ast.BlockStatement {
	check := ast.NewInfix("==",
		ast.NewMember(&ast.ThisExpression{}, "rtti"),
		ast.NewIdent("__rtti_arg"))
	var expr ast.Expression = check
	if hasBase {
		expr = ast.NewInfix("||", check,
			ast.NewCall(ast.NewMember(&ast.SuperExpression{}, "instanceof"), ast.NewIdent("__rtti_arg")))
	}
	return ast.NewBlock(ast.NewReturn(expr))
}

// buildStorage computes the instance layout: the vtable slot first when
// any virtual member exists, inherited fields next, own fields last.
func (c *Core) buildStorage(info *ClassInfo, n *ast.ClassDeclaration, ctx GenContext) bool {
	var fields []types.Field
	info.HasInitializers = false

	for _, m := range n.Members {
		if m.Kind != ast.MemberProperty || m.IsStatic {
			continue
		}
		var ft types.Type
		if m.Type != nil {
			t, ok := c.resolveTypeNode(m.Type, ctx)
			if !ok {
				return false
			}
			ft = t
		} else if m.Init != nil {
			t, ok := c.probeExpressionType(m.Init, ctx)
			if !ok {
				return false
			}
			ft = types.WidenType(t)
		} else {
			ft = types.Any
		}
		if m.Optional {
			ft = types.NewOptionalType(ft)
		}
		if m.Init != nil {
			info.HasInitializers = true
		}
		fields = append(fields, types.Field{ID: types.NamedID(m.Name), Type: ft})
	}

	// Constructor parameter properties contribute fields too.
	for _, m := range n.Members {
		if m.Kind != ast.MemberConstructor {
			continue
		}
		for _, p := range m.Func.Params {
			if p.AccessModifier == "" {
				continue
			}
			pt := types.Type(types.Any)
			if p.Type != nil {
				t, ok := c.resolveTypeNode(p.Type, ctx)
				if !ok {
					return false
				}
				pt = t
			}
			fields = append(fields, types.Field{ID: types.NamedID(p.Name.Name), Type: pt})
			info.HasInitializers = true
		}
	}

	// Whether a vtable is needed depends on virtual members; RTTI's
	// synthesized instanceof is always virtual, so any RTTI class has one.
	info.HasVirtualTable = c.opts.AllMethodsVirtual || info.HasRTTI || info.IsAbstract ||
		len(info.Implements) > 0 || anyAbstractMember(n) || anyBaseHasVTable(info)

	var layout []types.Field
	if info.HasVirtualTable {
		layout = append(layout, types.Field{ID: types.NamedID("#vtable"), Type: types.Opaque})
	}
	for _, base := range info.BaseClasses {
		for _, bf := range base.Storage.Fields {
			if bf.ID.Named && bf.ID.Name == "#vtable" {
				continue
			}
			layout = append(layout, bf)
		}
	}
	layout = append(layout, fields...)

	info.Fields = fields
	info.Storage = &types.ClassStorageType{Name: info.FullName, Fields: layout}
	info.Type = &types.ClassType{
		Name:       info.FullName,
		Storage:    info.Storage,
		Bases:      transitiveBases(info),
		Implements: transitiveImplements(info),
	}
	return true
}

func anyAbstractMember(n *ast.ClassDeclaration) bool {
	for _, m := range n.Members {
		if m.IsAbstract {
			return true
		}
	}
	return false
}

func anyBaseHasVTable(info *ClassInfo) bool {
	for _, b := range info.BaseClasses {
		if b.HasVirtualTable {
			return true
		}
	}
	return false
}

func transitiveBases(info *ClassInfo) []string {
	var out []string
	for _, b := range info.BaseClasses {
		out = append(out, b.FullName)
		out = append(out, transitiveBases(b)...)
	}
	return out
}

func transitiveImplements(info *ClassInfo) []string {
	var out []string
	add := func(iface *InterfaceInfo) {
		out = append(out, iface.FullName)
		for _, ext := range iface.Extends {
			out = append(out, ext.FullName)
		}
	}
	for _, impl := range info.Implements {
		add(impl.Iface)
	}
	for _, b := range info.BaseClasses {
		out = append(out, transitiveImplements(b)...)
	}
	return out
}

// collectStatics declares static fields as globals under the class's fqn.
func (c *Core) collectStatics(info *ClassInfo, n *ast.ClassDeclaration, ctx GenContext) bool {
	for _, m := range n.Members {
		if m.Kind != ast.MemberProperty || !m.IsStatic {
			continue
		}
		if info.FindStaticField(m.Name) != nil {
			continue
		}
		var ft types.Type
		if m.Type != nil {
			t, ok := c.resolveTypeNode(m.Type, ctx)
			if !ok {
				return false
			}
			ft = t
		} else if m.Init != nil {
			t, ok := c.probeExpressionType(m.Init, ctx)
			if !ok {
				return false
			}
			ft = types.WidenType(t)
		} else {
			ft = types.Any
		}
		info.StaticFields = append(info.StaticFields, &VarInfo{
			Name:      m.Name,
			FullName:  info.FullName + "." + m.Name,
			Type:      ft,
			Loc:       m.Pos(),
			ReadWrite: m.Modifier != "readonly",
			Global:    true,
		})
		if m.Init != nil {
			info.HasStaticConstructor = true
		}
	}
	return true
}

// synthesizeConstructors injects a default constructor iff initializers
// exist and none is declared. Static initializers are handled elsewhere:
// collectStatics flags them and emitStatics emits the static constructor.
func (c *Core) synthesizeConstructors(info *ClassInfo, n *ast.ClassDeclaration) {
	for _, m := range n.Members {
		if m.Kind == ast.MemberConstructor {
			info.HasConstructor = true
		}
	}
	if !info.HasConstructor && info.HasInitializers {
		ctor := &ast.ClassMember{
			Kind: ast.MemberConstructor,
			Name: "constructor",
			Func: &ast.FunctionLiteral{Body: ast.NewBlock()},
		}
		n.Members = append(n.Members, ctor)
		info.HasConstructor = true
	}
}

// lowerMembersFixpoint lowers methods, accessors, and constructors until no
// further progress is possible; members can reference other members or
// classes not yet lowered.
func (c *Core) lowerMembersFixpoint(info *ClassInfo, n *ast.ClassDeclaration, ctx GenContext) bool {
	info.Methods = info.Methods[:0]
	info.Accessors = info.Accessors[:0]
	info.nextVirtualIndex = baseNextVirtualIndex(info)

	type pending struct {
		member *ast.ClassMember
	}
	var work []pending
	for _, m := range n.Members {
		if m.Kind == ast.MemberProperty {
			continue
		}
		work = append(work, pending{member: m})
	}

	// RTTI classes carry the synthesized instanceof.
	if info.HasRTTI {
		if !c.lowerInstanceofMethod(info, n.Pos(), ctx) {
			return false
		}
	}

	for len(work) > 0 {
		var next []pending
		progress := false
		for _, w := range work {
			memberCtx := ctx
			memberCtx.AllowPartialResolve = true
			if c.lowerClassMember(info, n, w.member, memberCtx) {
				progress = true
			} else {
				next = append(next, w)
			}
		}
		if !progress {
			// Surface real diagnostics with a strict re-run of the stuck
			// members.
			ok := true
			for _, w := range next {
				if !c.lowerClassMember(info, n, w.member, ctx) {
					ok = false
				}
			}
			return ok
		}
		work = next
	}
	return true
}

func baseNextVirtualIndex(info *ClassInfo) int {
	idx := 0
	for _, b := range info.BaseClasses {
		if b.nextVirtualIndex > idx {
			idx = b.nextVirtualIndex
		}
	}
	return idx
}

// lowerInstanceofMethod produces the virtual `.instanceof(rtti_name)`.
func (c *Core) lowerInstanceofMethod(info *ClassInfo, loc errors.Position, ctx GenContext) bool {
	lit := &ast.FunctionLiteral{
		Params: []*ast.Parameter{{
			Name: ast.NewIdent("__rtti_arg"),
			Type: &ast.TypeName{Name: "string"},
		}},
		ReturnType: &ast.TypeName{Name: "boolean"},
		Body:       instanceofBody(len(info.BaseClasses) > 0),
	}
	member := &ast.ClassMember{
		Kind: ast.MemberMethod,
		Name: "instanceof",
		Func: lit,
	}
	return c.lowerClassMember(info, nil, member, ctx)
}

// lowerClassMember lowers one method/accessor/constructor under a scope
// where this_type is the class type.
func (c *Core) lowerClassMember(info *ClassInfo, n *ast.ClassDeclaration, m *ast.ClassMember, ctx GenContext) bool {
	memberCtx := ctx
	if !m.IsStatic {
		memberCtx = memberCtx.WithThis(info.Type)
	} else {
		memberCtx.ThisType = nil
	}
	memberCtx.ReceiverClass = info

	c.pushNamespace(c.current().Child(info.Name))
	defer c.popNamespace()

	switch m.Kind {
	case ast.MemberConstructor:
		return c.lowerConstructor(info, n, m, memberCtx)

	case ast.MemberMethod:
		if m.IsAbstract {
			return c.registerAbstractMethod(info, m, memberCtx)
		}
		// A get_/set_ method spelling contributes an accessor, same as the
		// dedicated accessor kinds.
		if prop, accessorKind, isAcc := accessorSpelling(m.Name); isAcc {
			f, ok := c.lowerFunction(m.Name, m.Func, memberCtx)
			if !ok {
				return false
			}
			spelled := &ast.ClassMember{Kind: accessorKind, Name: prop, IsStatic: m.IsStatic}
			c.installAccessor(info, spelled, f)
			return true
		}
		f, ok := c.lowerFunction(m.Name, m.Func, memberCtx)
		if !ok {
			return false
		}
		c.installMethod(info, m, f)
		return true

	case ast.MemberGetAccessor, ast.MemberSetAccessor:
		prefix := "get_"
		if m.Kind == ast.MemberSetAccessor {
			prefix = "set_"
		}
		f, ok := c.lowerFunction(prefix+m.Name, m.Func, memberCtx)
		if !ok {
			return false
		}
		c.installAccessor(info, m, f)
		return true

	default:
		return true
	}
}

// installMethod records the method and assigns its virtual slot: inherited
// slots are reused by name; new virtual methods take fresh indices.
func (c *Core) installMethod(info *ClassInfo, m *ast.ClassMember, f *FuncInfo) {
	ft := types.UnwrapCallable(f.Type)
	method := &MethodInfo{
		Name:         m.Name,
		Type:         ft,
		Func:         f,
		IsStatic:     m.IsStatic,
		VirtualIndex: -1,
	}

	if existing := info.FindMethod(m.Name); existing != nil {
		// Re-lowering rebinds the func op.
		existing.Type = ft
		existing.Func = f
		return
	}

	if !m.IsStatic && m.Name != "constructor" {
		inherited := (*MethodInfo)(nil)
		for _, base := range info.BaseClasses {
			if bm := base.FindMethodInChain(m.Name); bm != nil {
				inherited = bm
				break
			}
		}
		switch {
		case inherited != nil && inherited.IsVirtual:
			method.IsVirtual = true
			method.VirtualIndex = inherited.VirtualIndex
		case c.opts.AllMethodsVirtual || m.IsAbstract || m.Name == "instanceof" || info.IsAbstract:
			method.IsVirtual = true
			method.VirtualIndex = info.nextVirtualIndex
			info.nextVirtualIndex++
		}
	}
	info.Methods = append(info.Methods, method)
}

// registerAbstractMethod records the slot of a body-less abstract method.
func (c *Core) registerAbstractMethod(info *ClassInfo, m *ast.ClassMember, ctx GenContext) bool {
	params, ok := c.resolveParams(m.Func.Params, ctx)
	if !ok {
		return false
	}
	var ret types.Type = types.Void
	if m.Func.ReturnType != nil {
		t, rok := c.resolveTypeNode(m.Func.ReturnType, ctx)
		if !rok {
			return false
		}
		ret = t
	}
	if info.FindMethod(m.Name) != nil {
		return true
	}
	method := &MethodInfo{
		Name:         m.Name,
		Type:         c.functionTypeOf(params, ret, info.Type),
		IsStatic:     false,
		IsVirtual:    true,
		IsAbstract:   true,
		VirtualIndex: info.nextVirtualIndex,
	}
	info.nextVirtualIndex++
	info.Methods = append(info.Methods, method)
	return true
}

func (c *Core) installAccessor(info *ClassInfo, m *ast.ClassMember, f *FuncInfo) {
	var acc *AccessorInfo
	for _, a := range info.Accessors {
		if a.Name == m.Name && a.IsStatic == m.IsStatic {
			acc = a
			break
		}
	}
	if acc == nil {
		acc = &AccessorInfo{Name: m.Name, IsStatic: m.IsStatic, IsVirtual: c.opts.AllMethodsVirtual}
		info.Accessors = append(info.Accessors, acc)
	}
	ft := types.UnwrapCallable(f.Type)
	if m.Kind == ast.MemberGetAccessor {
		acc.Getter = f
		acc.Type = ft.ReturnType()
	} else {
		acc.Setter = f
		if acc.Type == nil && len(ft.Inputs) > 1 {
			acc.Type = ft.Inputs[len(ft.Inputs)-1]
		}
	}
}

// lowerConstructor lowers the constructor with injected statements
// assigning field initializers and parameter properties.
func (c *Core) lowerConstructor(info *ClassInfo, n *ast.ClassDeclaration, m *ast.ClassMember, ctx GenContext) bool {
	var injected []ast.Statement
	if n != nil {
		for _, pm := range n.Members {
			if pm.Kind == ast.MemberProperty && !pm.IsStatic && pm.Init != nil {
				injected = append(injected, ast.NewExprStmt(
					ast.NewAssign(ast.NewMember(&ast.ThisExpression{}, pm.Name), pm.Init)))
			}
		}
	}
	for _, p := range m.Func.Params {
		if p.AccessModifier != "" {
			injected = append(injected, ast.NewExprStmt(
				ast.NewAssign(ast.NewMember(&ast.ThisExpression{}, p.Name.Name), ast.NewIdent(p.Name.Name))))
		}
	}
	ast.ResetProcessed(injected)

	lit := &ast.FunctionLiteral{
		Params: m.Func.Params,
		Body:   ast.NewBlock(append(injected, m.Func.Body.Statements...)...),
	}
	lit.SetPos(m.Func.Pos())

	f, ok := c.lowerFunction("constructor", lit, ctx)
	if !ok {
		return false
	}
	c.installMethod(info, m, f)
	return true
}

// checkAbstractCoverage rejects concrete classes leaving inherited abstract
// methods unimplemented.
func (c *Core) checkAbstractCoverage(info *ClassInfo, n *ast.ClassDeclaration) bool {
	if info.IsAbstract {
		return true
	}
	for _, base := range info.BaseClasses {
		for _, bm := range base.Methods {
			if bm.IsAbstract && info.FindMethod(bm.Name) == nil {
				c.errorAt(n.Pos(), "class '%s' does not implement abstract method '%s'",
					info.Name, bm.Name)
				return false
			}
		}
	}
	return true
}
