package types

// FindBaseType returns the smallest type assignable from both a and b, or
// def when no such type exists. Used by return-type unification and by
// conditional-expression typing.
func FindBaseType(a, b, def Type) Type {
	if a == nil {
		return orDefault(b, def)
	}
	if b == nil {
		return orDefault(a, def)
	}
	if a.Equals(b) {
		return a
	}

	// Prefer the direction that loses no information.
	if IsCastable(a, b) && !IsCastable(b, a) {
		return b
	}
	if IsCastable(b, a) && !IsCastable(a, b) {
		return a
	}
	if IsCastable(a, b) && IsCastable(b, a) {
		// Mutually castable (e.g. i32 and number); take the wider spelling.
		if widerOf(a, b) != nil {
			return widerOf(a, b)
		}
		return a
	}

	// Literals of one base meet at the base.
	la, aok := a.(*LiteralType)
	lb, bok := b.(*LiteralType)
	if aok && bok && la.Base != nil && lb.Base != nil && la.Base.Equals(lb.Base) {
		return la.Base
	}
	if aok && la.Base != nil {
		return FindBaseType(la.Base, b, def)
	}
	if bok && lb.Base != nil {
		return FindBaseType(a, lb.Base, def)
	}

	// Two numerics meet at number.
	if IsNumericType(a) && IsNumericType(b) {
		return Number
	}

	// Classes meet at the nearest shared base.
	if ca, ok := a.(*ClassType); ok {
		if cb, ok := b.(*ClassType); ok {
			for _, base := range ca.Bases {
				if cb.Name == base || cb.HasBase(base) {
					// Return the base as a nominal reference; storage is
					// resolvable from the name by the object model.
					return &ClassType{Name: base}
				}
			}
			if cb.HasBase(ca.Name) {
				return ca
			}
			if ca.HasBase(cb.Name) {
				return cb
			}
		}
	}

	return def
}

func orDefault(t, def Type) Type {
	if t != nil {
		return t
	}
	return def
}

func widerOf(a, b Type) Type {
	if a == Number || a == BigInt {
		return a
	}
	if b == Number || b == BigInt {
		return b
	}
	if IsIntegerType(a) && IsIntegerType(b) {
		if integerRank(a) >= integerRank(b) {
			return a
		}
		return b
	}
	return nil
}
