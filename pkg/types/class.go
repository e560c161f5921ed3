package types

import "fmt"

// ClassStorageType describes the in-memory layout of a class instance:
// an ordered field list under the class's name. When the class has any
// virtual slot its first field is the vtable pointer.
type ClassStorageType struct {
	Name   string // fully-qualified class name
	Fields []Field
}

func (ct *ClassStorageType) String() string {
	return fmt.Sprintf("class_storage<%s>", ct.Name)
}
func (ct *ClassStorageType) typeNode() {}
func (ct *ClassStorageType) Equals(other Type) bool {
	otherCt, ok := other.(*ClassStorageType)
	if !ok {
		return false
	}
	// Storage types are nominal; the name alone identifies the layout.
	return ct.Name == otherCt.Name
}

// FieldType returns the type of the field with the given id, or nil.
func (ct *ClassStorageType) FieldType(id FieldID) Type {
	if i := FindField(ct.Fields, id); i >= 0 {
		return ct.Fields[i].Type
	}
	return nil
}

// ClassType is the nominal reference type of a class instance. Bases and
// Implements carry the fully-qualified heritage names so castability can be
// answered without reaching back into the object model.
type ClassType struct {
	Name       string // fully-qualified class name
	Storage    *ClassStorageType
	Bases      []string
	Implements []string
}

// HasBase walks the recorded heritage chain (transitively, via the storage
// of base links recorded flat on the type).
func (ct *ClassType) HasBase(fqn string) bool {
	for _, b := range ct.Bases {
		if b == fqn {
			return true
		}
	}
	return false
}

// DoesImplement checks the recorded implements set.
func (ct *ClassType) DoesImplement(fqn string) bool {
	for _, i := range ct.Implements {
		if i == fqn {
			return true
		}
	}
	return false
}

func (ct *ClassType) String() string {
	return fmt.Sprintf("class<%s>", ct.Name)
}
func (ct *ClassType) typeNode() {}
func (ct *ClassType) Equals(other Type) bool {
	otherCt, ok := other.(*ClassType)
	if !ok {
		return false
	}
	return ct.Name == otherCt.Name
}

// InterfaceMember is one declared member of an interface, in declaration
// order. Optional members may be missing from an implementation; their
// adapter-vtable slot holds a sentinel.
type InterfaceMember struct {
	ID       FieldID
	Type     Type
	Optional bool
	IsMethod bool
}

// InterfaceType is the nominal type of an interface-typed reference:
// a fat pointer of (vtable, this). Members list the full flattened member
// set (extended interfaces first) so structural matching needs no lookup.
type InterfaceType struct {
	Name    string // fully-qualified interface name
	Members []InterfaceMember
}

// FindMember returns the member with the given id, or nil.
func (it *InterfaceType) FindMember(id FieldID) *InterfaceMember {
	for i := range it.Members {
		if it.Members[i].ID.Equals(id) {
			return &it.Members[i]
		}
	}
	return nil
}

func (it *InterfaceType) String() string {
	return fmt.Sprintf("iface<%s>", it.Name)
}
func (it *InterfaceType) typeNode() {}
func (it *InterfaceType) Equals(other Type) bool {
	otherIt, ok := other.(*InterfaceType)
	if !ok {
		return false
	}
	return it.Name == otherIt.Name
}

// NamespaceType is the pseudo-type an identifier resolves to when it names a
// namespace; member access on it re-resolves in that namespace.
type NamespaceType struct {
	Name string // fully-qualified namespace name
}

func (nt *NamespaceType) String() string {
	return fmt.Sprintf("namespace<%s>", nt.Name)
}
func (nt *NamespaceType) typeNode() {}
func (nt *NamespaceType) Equals(other Type) bool {
	otherNt, ok := other.(*NamespaceType)
	if !ok {
		return false
	}
	return nt.Name == otherNt.Name
}

// EnumType wraps the storage type of an enum declaration.
type EnumType struct {
	Name    string // fully-qualified enum name
	Storage Type   // i32, i64 or i128 after width promotion
}

func (et *EnumType) String() string {
	return fmt.Sprintf("enum<%s, %s>", et.Name, et.Storage)
}
func (et *EnumType) typeNode() {}
func (et *EnumType) Equals(other Type) bool {
	otherEt, ok := other.(*EnumType)
	if !ok {
		return false
	}
	return et.Name == otherEt.Name && elemEqual(et.Storage, otherEt.Storage)
}
