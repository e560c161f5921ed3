package lower

import (
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// VarInfo describes a declared variable or global: the descriptor every
// binding in the symbol store points at.
type VarInfo struct {
	Name      string
	FullName  string
	Type      types.Type
	Loc       errors.Position
	ReadWrite bool

	// Storage is the ref-typed value of the variable op (or the address of
	// the global). For capture-tuple members it is rebound per function.
	Storage *ir.Value
	// Global marks namespace-level storage addressed by symbol name.
	Global bool
	// IsParam marks formal parameters; closures capture them by value.
	IsParam bool
	// CapturedByRef marks variables whose storage is a ref inside a capture
	// tuple, so closure writes stay visible.
	CapturedByRef bool
}

// FuncInfo describes a lowered function.
type FuncInfo struct {
	Name     string
	FullName string
	Type     *types.FunctionType
	Loc      errors.Position

	Op *ir.Op // the func operation; rebound if re-lowering produces a new op

	// Captured lists discovered captured variables in first-use order; when
	// non-empty the function's first input is the capture tuple.
	Captured     []*VarInfo
	CaptureTuple *types.TupleType

	HasPersonality bool // contains try/throw
	IsGenerator    bool
	IsAsync        bool
}

// MethodInfo is one class method: (name, function type, func op, flags).
type MethodInfo struct {
	Name         string
	Type         *types.FunctionType
	Func         *FuncInfo
	IsStatic     bool
	IsVirtual    bool
	IsAbstract   bool
	VirtualIndex int // -1 when not virtual
}

// AccessorInfo is a get_/set_ pair contributed by accessor members.
type AccessorInfo struct {
	Name      string
	Getter    *FuncInfo
	Setter    *FuncInfo
	Type      types.Type
	IsStatic  bool
	IsVirtual bool
}

// ImplementInfo is one `implements` entry of a class with its adapter
// vtable bookkeeping.
type ImplementInfo struct {
	Iface     *InterfaceInfo
	VTableSym string // global symbol of the per-(class × interface) table
	Processed bool
}

// ClassInfo carries everything the object model knows about one class.
// It outlives the discovery pass.
type ClassInfo struct {
	Name     string
	FullName string
	Loc      errors.Position

	Type    *types.ClassType
	Storage *types.ClassStorageType

	BaseClasses []*ClassInfo // ordered
	Implements  []*ImplementInfo

	Fields       []types.Field
	StaticFields []*VarInfo
	Methods      []*MethodInfo
	Accessors    []*AccessorInfo

	HasVirtualTable      bool
	IsAbstract           bool
	IsDeclaration        bool
	HasConstructor       bool
	HasStaticConstructor bool
	HasInitializers      bool
	HasRTTI              bool

	nextVirtualIndex int
	fullyProcessed   bool
}

// FindMethod looks up a method by name in this class only.
func (c *ClassInfo) FindMethod(name string) *MethodInfo {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// FindMethodInChain looks up a method by name along the linearized heritage.
func (c *ClassInfo) FindMethodInChain(name string) *MethodInfo {
	if m := c.FindMethod(name); m != nil {
		return m
	}
	for _, base := range c.BaseClasses {
		if m := base.FindMethodInChain(name); m != nil {
			return m
		}
	}
	return nil
}

// FindAccessor looks up an accessor by property name along the chain.
func (c *ClassInfo) FindAccessor(name string) *AccessorInfo {
	for _, a := range c.Accessors {
		if a.Name == name {
			return a
		}
	}
	for _, base := range c.BaseClasses {
		if a := base.FindAccessor(name); a != nil {
			return a
		}
	}
	return nil
}

// FindStaticField looks up a static field by short name.
func (c *ClassInfo) FindStaticField(name string) *VarInfo {
	for _, f := range c.StaticFields {
		if f.Name == name {
			return f
		}
	}
	for _, base := range c.BaseClasses {
		if f := base.FindStaticField(name); f != nil {
			return f
		}
	}
	return nil
}

// FieldIndex returns the storage index of a field id, or -1.
func (c *ClassInfo) FieldIndex(id types.FieldID) int {
	return types.FindField(c.Storage.Fields, id)
}

// InterfaceMemberInfo is one interface member with its position bookkeeping:
// the adapter-vtable slot is interface_pos_index + extension offset.
type InterfaceMemberInfo struct {
	ID            types.FieldID
	Type          types.Type
	PosIndex      int // interface_pos_index within the declaring interface
	IsConditional bool
	IsMethod      bool
}

// InterfaceInfo carries everything known about one interface.
type InterfaceInfo struct {
	Name     string
	FullName string
	Loc      errors.Position

	Type    *types.InterfaceType
	Extends []*InterfaceInfo

	Fields  []*InterfaceMemberInfo
	Methods []*InterfaceMemberInfo

	NextVTableSlot int
}

// ExtensionOffset is the number of member slots contributed by extended
// interfaces; local member slots start after it.
func (i *InterfaceInfo) ExtensionOffset() int {
	off := 0
	for _, ext := range i.Extends {
		off += ext.SlotCount()
	}
	return off
}

// SlotCount is the total adapter-vtable slot count including extensions.
func (i *InterfaceInfo) SlotCount() int {
	return i.ExtensionOffset() + len(i.Fields) + len(i.Methods)
}

// AllMembers returns the flattened member list in slot order: extended
// interfaces first, then local members by declaration order.
func (i *InterfaceInfo) AllMembers() []*InterfaceMemberInfo {
	var all []*InterfaceMemberInfo
	for _, ext := range i.Extends {
		all = append(all, ext.AllMembers()...)
	}
	local := make([]*InterfaceMemberInfo, len(i.Fields)+len(i.Methods))
	for _, f := range i.Fields {
		local[f.PosIndex] = f
	}
	for _, m := range i.Methods {
		local[m.PosIndex] = m
	}
	for _, m := range local {
		if m != nil {
			all = append(all, m)
		}
	}
	return all
}

// EnumInfo is a lowered enum: member constants and the promoted storage.
type EnumInfo struct {
	Name     string
	FullName string
	Loc      errors.Position

	Type    *types.EnumType
	Order   []string
	Values  map[string]int64
	Storage types.Type
}
