package types

// Iterate walks a type's transitive constituents depth-first, invoking visit
// on every node. A false return from visit prunes the walk below that node.
// HasUndefines walks types through it.
func Iterate(t Type, visit func(Type) bool) {
	if t == nil {
		return
	}
	if !visit(t) {
		return
	}
	switch n := t.(type) {
	case *ArrayType:
		Iterate(n.Elem, visit)
	case *ConstArrayType:
		Iterate(n.Elem, visit)
	case *TupleType:
		for _, f := range n.Fields {
			Iterate(f.Type, visit)
		}
	case *ConstTupleType:
		for _, f := range n.Fields {
			Iterate(f.Type, visit)
		}
	case *RefType:
		Iterate(n.Elem, visit)
	case *ValueRefType:
		Iterate(n.Elem, visit)
	case *OptionalType:
		Iterate(n.Elem, visit)
	case *UnionType:
		for _, m := range n.Types {
			Iterate(m, visit)
		}
	case *IntersectionType:
		for _, m := range n.Types {
			Iterate(m, visit)
		}
	case *LiteralType:
		Iterate(n.Base, visit)
	case *ObjectType:
		Iterate(n.Elem, visit)
	case *FunctionType:
		for _, p := range n.Inputs {
			Iterate(p, visit)
		}
		for _, r := range n.Results {
			Iterate(r, visit)
		}
	case *HybridFunctionType:
		Iterate(n.Func, visit)
	case *BoundFunctionType:
		Iterate(n.Func, visit)
	case *EnumType:
		Iterate(n.Storage, visit)
	case *TypeReference:
		for _, a := range n.Args {
			Iterate(a, visit)
		}
	case *ConditionalType:
		Iterate(n.Check, visit)
		Iterate(n.Extends, visit)
		Iterate(n.True, visit)
		Iterate(n.False, visit)
	case *MappedType:
		Iterate(n.Source, visit)
		Iterate(n.Value, visit)
	case *IndexedAccessType:
		Iterate(n.Obj, visit)
		Iterate(n.Index, visit)
	case *KeyOfType:
		Iterate(n.Operand, visit)
	}
	// Class storage fields are deliberately not walked: storage types are
	// nominal and may be self-referential through method receiver types.
}

// Substitute rebuilds t with every node for which repl returns a non-nil
// replacement swapped in. Nominal types are returned as-is.
func Substitute(t Type, repl func(Type) Type) Type {
	if t == nil {
		return nil
	}
	if r := repl(t); r != nil {
		return r
	}
	switch n := t.(type) {
	case *ArrayType:
		return &ArrayType{Elem: Substitute(n.Elem, repl)}
	case *ConstArrayType:
		return &ConstArrayType{Elem: Substitute(n.Elem, repl), Size: n.Size}
	case *TupleType:
		return &TupleType{Fields: substituteFields(n.Fields, repl)}
	case *ConstTupleType:
		return &ConstTupleType{Fields: substituteFields(n.Fields, repl)}
	case *RefType:
		return &RefType{Elem: Substitute(n.Elem, repl)}
	case *ValueRefType:
		return &ValueRefType{Elem: Substitute(n.Elem, repl)}
	case *OptionalType:
		return NewOptionalType(Substitute(n.Elem, repl))
	case *UnionType:
		members := make([]Type, len(n.Types))
		for i, m := range n.Types {
			members[i] = Substitute(m, repl)
		}
		return NewUnionType(members...)
	case *IntersectionType:
		members := make([]Type, len(n.Types))
		for i, m := range n.Types {
			members[i] = Substitute(m, repl)
		}
		return NewIntersectionType(members...)
	case *ObjectType:
		return &ObjectType{Elem: Substitute(n.Elem, repl)}
	case *FunctionType:
		out := &FunctionType{IsVariadic: n.IsVariadic}
		for _, p := range n.Inputs {
			out.Inputs = append(out.Inputs, Substitute(p, repl))
		}
		for _, r := range n.Results {
			out.Results = append(out.Results, Substitute(r, repl))
		}
		return out
	case *HybridFunctionType:
		return &HybridFunctionType{Func: Substitute(n.Func, repl).(*FunctionType)}
	case *BoundFunctionType:
		return &BoundFunctionType{Func: Substitute(n.Func, repl).(*FunctionType)}
	case *ConditionalType:
		return EvalConditional(&ConditionalType{
			Check:   Substitute(n.Check, repl),
			Extends: Substitute(n.Extends, repl),
			True:    Substitute(n.True, repl),
			False:   Substitute(n.False, repl),
		})
	case *MappedType:
		return &MappedType{Param: n.Param, Source: Substitute(n.Source, repl), Value: Substitute(n.Value, repl)}
	case *IndexedAccessType:
		return EvalIndexedAccess(Substitute(n.Obj, repl), Substitute(n.Index, repl))
	case *KeyOfType:
		return EvalKeyOf(Substitute(n.Operand, repl))
	case *TypeReference:
		args := make([]Type, len(n.Args))
		for i, a := range n.Args {
			args[i] = Substitute(a, repl)
		}
		return &TypeReference{Name: n.Name, Args: args}
	default:
		return t
	}
}

func substituteFields(fields []Field, repl func(Type) Type) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = Field{ID: f.ID, Type: Substitute(f.Type, repl)}
	}
	return out
}
