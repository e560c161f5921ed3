package types

// IsCastable reports whether a value of type from may be implicitly
// converted to type to. The rules, in order:
//
//	identity            -> yes
//	any/unknown sink    -> yes (and any source casts anywhere)
//	optional(X) -> X    -> strip and retry (and X -> optional(X))
//	literal             -> its element type
//	const-array(T,N)    -> array(T)
//	const-tuple         -> tuple (field-wise)
//	tuple -> tuple      -> field-wise
//	integer <-> number  -> widening
//	char -> string
//	union source        -> every arm castable
//	union target        -> some arm accepts
//	tuple -> interface  -> structural match (TupleMatchesInterface)
func IsCastable(from, to Type) bool {
	if from == nil || to == nil {
		return false
	}
	if from.Equals(to) {
		return true
	}
	if to == Any || to == Unknown || from == Any {
		return true
	}
	if from == Never {
		return true
	}

	// optional stripping, both directions
	if opt, ok := from.(*OptionalType); ok {
		if to == Undefined {
			return true
		}
		return IsCastable(opt.Elem, to)
	}
	if opt, ok := to.(*OptionalType); ok {
		if from == Undefined || from == Null {
			return true
		}
		return IsCastable(from, opt.Elem)
	}

	// literal to its element (and between literals of one element)
	if lit, ok := from.(*LiteralType); ok {
		if lit.Base != nil && IsCastable(lit.Base, to) {
			return true
		}
	}
	if lit, ok := to.(*LiteralType); ok {
		// A wider type never narrows to a literal implicitly, but another
		// literal of equal value does (covered by Equals above). Enum member
		// constants cast to their literal value.
		_ = lit
	}

	// reference transparency: ref<X> reads as X
	if ref, ok := from.(*RefType); ok {
		return IsCastable(ref.Elem, to)
	}
	if ref, ok := from.(*ValueRefType); ok {
		return IsCastable(ref.Elem, to)
	}

	// const-array widening
	if ca, ok := from.(*ConstArrayType); ok {
		if arr, ok := to.(*ArrayType); ok {
			return IsCastable(ca.Elem, arr.Elem)
		}
	}
	// const-tuple widening
	if ctup, ok := from.(*ConstTupleType); ok {
		if tup, ok := to.(*TupleType); ok {
			return fieldsCastable(ctup.Fields, tup.Fields)
		}
	}
	// tuple -> tuple, field by field (same ids in the same order)
	if tupFrom, ok := from.(*TupleType); ok {
		if tupTo, ok := to.(*TupleType); ok {
			return fieldsCastable(tupFrom.Fields, tupTo.Fields)
		}
	}
	if arrFrom, ok := from.(*ArrayType); ok {
		if arrTo, ok := to.(*ArrayType); ok {
			return IsCastable(arrFrom.Elem, arrTo.Elem)
		}
	}

	// numeric widening
	if IsIntegerType(from) && (to == Number || to == BigInt) {
		return true
	}
	if from == Number && IsIntegerType(to) {
		// number -> integer is a narrowing the lowering emits explicit
		// casts for; treat as castable so arithmetic coercion can pick it.
		return true
	}
	if IsIntegerType(from) && IsIntegerType(to) {
		return integerRank(from) <= integerRank(to)
	}

	// char -> string
	if from == Char && to == String {
		return true
	}

	// enum value reads as its storage
	if et, ok := from.(*EnumType); ok {
		return IsCastable(et.Storage, to)
	}

	// union rules
	if ut, ok := from.(*UnionType); ok {
		for _, arm := range ut.Types {
			if !IsCastable(arm, to) {
				return false
			}
		}
		return true
	}
	if ut, ok := to.(*UnionType); ok {
		for _, arm := range ut.Types {
			if IsCastable(from, arm) {
				return true
			}
		}
		return false
	}

	// intersection target: every member must accept
	if it, ok := to.(*IntersectionType); ok {
		for _, member := range it.Types {
			if !IsCastable(from, member) {
				return false
			}
		}
		return true
	}
	if it, ok := from.(*IntersectionType); ok {
		for _, member := range it.Types {
			if IsCastable(member, to) {
				return true
			}
		}
		return false
	}

	// class upcast along the heritage chain, and class -> implemented
	// interface; both nominal, answered from the names the object model
	// recorded on the type.
	if fromCls, ok := from.(*ClassType); ok {
		if toCls, ok := to.(*ClassType); ok {
			return fromCls.HasBase(toCls.Name)
		}
		if toIface, ok := to.(*InterfaceType); ok {
			return fromCls.DoesImplement(toIface.Name)
		}
	}

	// tuple -> interface iff every required interface member has a
	// matching field (structural match)
	if toIface, ok := to.(*InterfaceType); ok {
		var fields []Field
		switch src := from.(type) {
		case *TupleType:
			fields = src.Fields
		case *ConstTupleType:
			fields = src.Fields
		}
		if fields != nil {
			return TupleMatchesInterface(fields, toIface)
		}
	}

	// callables: structural match on the function shape
	if ff := UnwrapCallable(from); ff != nil {
		if tf := UnwrapCallable(to); tf != nil {
			return FunctionShapeCompatible(ff, tf)
		}
	}

	return false
}

// FunctionShapeCompatible checks that two function types agree arity-wise
// with castable inputs and results. An opaque first input acts as a
// placeholder for any `this` shape.
func FunctionShapeCompatible(from, to *FunctionType) bool {
	if len(from.Inputs) != len(to.Inputs) {
		return false
	}
	for i := range from.Inputs {
		if i == 0 && (from.Inputs[0] == Opaque || to.Inputs[0] == Opaque) {
			continue
		}
		// Parameters compare contravariantly, but the relaxed rule the
		// object model needs is bidirectional castability.
		if !IsCastable(to.Inputs[i], from.Inputs[i]) && !IsCastable(from.Inputs[i], to.Inputs[i]) {
			return false
		}
	}
	if len(from.Results) != len(to.Results) {
		return false
	}
	for i := range from.Results {
		if !IsCastable(from.Results[i], to.Results[i]) {
			return false
		}
	}
	return true
}

func fieldsCastable(from, to []Field) bool {
	if len(from) != len(to) {
		return false
	}
	for i := range from {
		if !from[i].ID.Equals(to[i].ID) {
			return false
		}
		if !IsCastable(from[i].Type, to[i].Type) {
			return false
		}
	}
	return true
}

func integerRank(t Type) int {
	switch t {
	case Byte, Char:
		return 0
	case I32:
		return 1
	case I64:
		return 2
	case I128:
		return 3
	default:
		return -1
	}
}

// TupleMatchesInterface checks that every required interface member has a
// matching tuple field: by id for data members, by id plus function-shape
// compatibility for methods.
func TupleMatchesInterface(fields []Field, iface *InterfaceType) bool {
	for _, m := range iface.Members {
		idx := FindField(fields, m.ID)
		if idx < 0 {
			if m.Optional {
				continue
			}
			return false
		}
		have := fields[idx].Type
		if m.IsMethod {
			hf := UnwrapCallable(have)
			mf := UnwrapCallable(m.Type)
			if hf == nil || mf == nil || !FunctionShapeCompatible(hf, mf) {
				return false
			}
			continue
		}
		if !IsCastable(have, m.Type) {
			return false
		}
	}
	return true
}
