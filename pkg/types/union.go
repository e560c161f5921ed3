package types

import "sort"

// NewUnionType creates a new union type from the given types.
// Canonicalization rules:
//   - nested unions are flattened
//   - duplicates are removed using structural equality (set semantics)
//   - undefined contributions fold into an enclosing optional
//   - a single residual type is returned unwrapped
func NewUnionType(ts ...Type) Type {
	potential := make([]Type, 0, len(ts))
	hasUndefined := false

	var collect func(t Type)
	collect = func(t Type) {
		if t == nil {
			return
		}
		switch u := t.(type) {
		case *UnionType:
			for _, member := range u.Types {
				collect(member)
			}
		case *OptionalType:
			hasUndefined = true
			collect(u.Elem)
		default:
			if t == Undefined || t == UndefPlaceholder {
				hasUndefined = true
				return
			}
			if t != Never { // Never contributes nothing to a union
				potential = append(potential, t)
			}
		}
	}
	for _, t := range ts {
		collect(t)
	}

	unique := make([]Type, 0, len(potential))
	for _, pm := range potential {
		dup := false
		for _, um := range unique {
			if pm.Equals(um) {
				dup = true
				break
			}
		}
		if !dup {
			unique = append(unique, pm)
		}
	}

	var result Type
	switch len(unique) {
	case 0:
		if hasUndefined {
			return Undefined
		}
		return Never
	case 1:
		result = unique[0]
	default:
		// Sort for a canonical string representation.
		sort.SliceStable(unique, func(i, j int) bool {
			return unique[i].String() < unique[j].String()
		})
		result = &UnionType{Types: unique}
	}

	if hasUndefined {
		return NewOptionalType(result)
	}
	return result
}

// NewIntersectionType creates a new intersection type from the given types,
// flattening and deduplicating. any absorbs; never propagates.
func NewIntersectionType(ts ...Type) Type {
	potential := make([]Type, 0, len(ts))

	var collect func(t Type)
	collect = func(t Type) {
		if t == nil {
			return
		}
		if inter, ok := t.(*IntersectionType); ok {
			for _, member := range inter.Types {
				collect(member)
			}
			return
		}
		potential = append(potential, t)
	}
	for _, t := range ts {
		collect(t)
	}

	unique := make([]Type, 0, len(potential))
	for _, pm := range potential {
		dup := false
		for _, um := range unique {
			if pm.Equals(um) {
				dup = true
				break
			}
		}
		if !dup {
			unique = append(unique, pm)
		}
	}

	if len(unique) == 0 {
		return Any
	}
	if len(unique) == 1 {
		return unique[0]
	}
	for _, member := range unique {
		if member == Any {
			return Any
		}
	}
	for _, member := range unique {
		if member == Never {
			return Never
		}
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].String() < unique[j].String()
	})
	return &IntersectionType{Types: unique}
}

// NewOptionalType wraps t into an optional, collapsing nested optionals and
// the undefined-only case.
func NewOptionalType(t Type) Type {
	if t == nil || t == Undefined || t == UndefPlaceholder {
		return Undefined
	}
	if opt, ok := t.(*OptionalType); ok {
		return opt
	}
	if t == Any || t == Unknown {
		return t
	}
	return &OptionalType{Elem: t}
}

// StripOptional removes one optional wrapper if present.
func StripOptional(t Type) Type {
	if opt, ok := t.(*OptionalType); ok {
		return opt.Elem
	}
	return t
}

// UnionMembers returns the arms of a union, or a single-element slice for
// a non-union type.
func UnionMembers(t Type) []Type {
	if ut, ok := t.(*UnionType); ok {
		return ut.Types
	}
	return []Type{t}
}

// UnionWithout rebuilds a union without the arms castable to excluded; used
// by negated narrowing. Returns Never when nothing remains.
func UnionWithout(t Type, excluded Type) Type {
	ut, ok := t.(*UnionType)
	if !ok {
		if t.Equals(excluded) {
			return Never
		}
		return t
	}
	kept := make([]Type, 0, len(ut.Types))
	for _, arm := range ut.Types {
		if !IsCastable(arm, excluded) {
			kept = append(kept, arm)
		}
	}
	return NewUnionType(kept...)
}
