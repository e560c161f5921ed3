package types

// WidenType converts literal types to their element types and const
// composites to their mutable forms. Used when a non-const binding takes
// its type from an initializer.
func WidenType(t Type) Type {
	switch n := t.(type) {
	case *LiteralType:
		if n.Base != nil {
			return n.Base
		}
		return t
	case *ConstArrayType:
		return &ArrayType{Elem: WidenType(n.Elem)}
	case *ConstTupleType:
		fields := make([]Field, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = Field{ID: f.ID, Type: WidenType(f.Type)}
		}
		return &TupleType{Fields: fields}
	case *UnionType:
		members := make([]Type, len(n.Types))
		for i, m := range n.Types {
			members[i] = WidenType(m)
		}
		return NewUnionType(members...)
	default:
		return t
	}
}

// HasUndefines recognizes types that include undefined or an undefined
// placeholder anywhere in their constituents; such types never override a
// concrete type during return-type unification.
func HasUndefines(t Type) bool {
	found := false
	Iterate(t, func(n Type) bool {
		if n == Undefined || n == UndefPlaceholder {
			found = true
			return false
		}
		if _, ok := n.(*OptionalType); ok {
			found = true
			return false
		}
		return true
	})
	return found
}

// StorageType strips references down to the stored element type.
func StorageType(t Type) Type {
	switch n := t.(type) {
	case *RefType:
		return n.Elem
	case *ValueRefType:
		return n.Elem
	default:
		return t
	}
}

// IsConstComposite reports whether t is reducible to a compile-time
// attribute: literals, const arrays/tuples of const elements.
func IsConstComposite(t Type) bool {
	switch n := t.(type) {
	case *LiteralType:
		return true
	case *ConstArrayType:
		return true
	case *ConstTupleType:
		for _, f := range n.Fields {
			if !IsConstComposite(f.Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
