package types

import "testing"

func TestIsCastableBasics(t *testing.T) {
	cases := []struct {
		name string
		from Type
		to   Type
		want bool
	}{
		{"identity", String, String, true},
		{"any sink", String, Any, true},
		{"any source", Any, String, true},
		{"unknown sink", Number, Unknown, true},
		{"optional strip", NewOptionalType(String), String, true},
		{"into optional", String, NewOptionalType(String), true},
		{"undefined into optional", Undefined, NewOptionalType(String), true},
		{"literal to element", &LiteralType{Value: "x", Base: String}, String, true},
		{"literal to wrong element", &LiteralType{Value: "x", Base: String}, Number, false},
		{"const array widening", &ConstArrayType{Elem: I32, Size: 4}, &ArrayType{Elem: I32}, true},
		{"integer widening", I32, Number, true},
		{"integer rank", I32, I64, true},
		{"integer narrowing rank", I64, I32, false},
		{"char to string", Char, String, true},
		{"string to char", String, Char, false},
		{"bool to string", Boolean, String, false},
	}
	for _, c := range cases {
		if got := IsCastable(c.from, c.to); got != c.want {
			t.Errorf("%s: IsCastable(%s, %s) = %v, want %v", c.name, c.from, c.to, got, c.want)
		}
	}
}

func TestIsCastableUnions(t *testing.T) {
	u := NewUnionType(String, Number)
	if !IsCastable(String, u) {
		t.Errorf("string must cast into string | number")
	}
	if IsCastable(Boolean, u) {
		t.Errorf("boolean must not cast into string | number")
	}
	// A union source casts only when every arm does.
	if !IsCastable(u, Any) {
		t.Errorf("union into any must hold")
	}
	if IsCastable(u, String) {
		t.Errorf("string | number into string must fail (number arm)")
	}
	narrow := NewUnionType(String, Char)
	if !IsCastable(narrow, String) {
		t.Errorf("string | char into string must hold arm-wise")
	}
}

func TestTupleToInterfaceStructuralMatch(t *testing.T) {
	iface := &InterfaceType{
		Name: "P",
		Members: []InterfaceMember{
			{ID: NamedID("name"), Type: String},
			{ID: NamedID("greet"), Type: &HybridFunctionType{Func: &FunctionType{
				Inputs:  []Type{Opaque},
				Results: []Type{String},
			}}, Optional: true, IsMethod: true},
		},
	}

	full := &TupleType{Fields: []Field{
		{ID: NamedID("name"), Type: &LiteralType{Value: "a", Base: String}},
		{ID: NamedID("greet"), Type: &FunctionType{Inputs: []Type{Opaque}, Results: []Type{String}}},
	}}
	if !IsCastable(full, iface) {
		t.Errorf("tuple with all members must cast to the interface")
	}

	// Optional members may be missing.
	partial := &TupleType{Fields: []Field{
		{ID: NamedID("name"), Type: String},
	}}
	if !IsCastable(partial, iface) {
		t.Errorf("tuple missing only optional members must cast")
	}

	// Required members may not.
	empty := &TupleType{Fields: []Field{}}
	if IsCastable(empty, iface) {
		t.Errorf("tuple missing required members must not cast")
	}

	// A mismatched member type blocks the cast.
	wrong := &TupleType{Fields: []Field{
		{ID: NamedID("name"), Type: Number},
	}}
	if IsCastable(wrong, iface) {
		t.Errorf("field type mismatch must block the structural cast")
	}
}

func TestClassCastability(t *testing.T) {
	base := &ClassType{Name: "Base"}
	derived := &ClassType{Name: "Derived", Bases: []string{"Base"}, Implements: []string{"P"}}
	iface := &InterfaceType{Name: "P"}

	if !IsCastable(derived, base) {
		t.Errorf("derived must cast to its base")
	}
	if IsCastable(base, derived) {
		t.Errorf("base must not cast down to derived")
	}
	if !IsCastable(derived, iface) {
		t.Errorf("class must cast to an implemented interface")
	}
	if IsCastable(base, iface) {
		t.Errorf("class must not cast to an interface it does not implement")
	}
}

func TestCastabilityIdempotence(t *testing.T) {
	// cast(T, cast(T, x)) == cast(T, x): once a value is of the target
	// type, the relation is reflexive.
	pairs := []struct{ from, to Type }{
		{I32, Number},
		{&LiteralType{Value: int64(1), Base: I32}, I32},
		{NewOptionalType(String), String},
		{&ConstArrayType{Elem: I32, Size: 2}, &ArrayType{Elem: I32}},
	}
	for _, p := range pairs {
		if !IsCastable(p.from, p.to) {
			t.Errorf("IsCastable(%s, %s) must hold", p.from, p.to)
			continue
		}
		if !IsCastable(p.to, p.to) {
			t.Errorf("cast result of type %s must re-cast to itself", p.to)
		}
	}
}

func TestFindBaseType(t *testing.T) {
	if got := FindBaseType(I32, Number, nil); got != Number {
		t.Errorf("base(i32, number) = %v, want number", got)
	}
	if got := FindBaseType(String, String, nil); got != String {
		t.Errorf("base(string, string) = %v, want string", got)
	}
	lit1 := &LiteralType{Value: int64(1), Base: I32}
	lit2 := &LiteralType{Value: int64(2), Base: I32}
	if got := FindBaseType(lit1, lit2, nil); got != I32 {
		t.Errorf("base(1, 2) = %v, want i32", got)
	}
	if got := FindBaseType(String, &FunctionType{}, Any); got != Any {
		t.Errorf("base(string, fn) = %v, want the default", got)
	}

	base := &ClassType{Name: "Base"}
	d1 := &ClassType{Name: "D1", Bases: []string{"Base"}}
	d2 := &ClassType{Name: "D2", Bases: []string{"Base"}}
	got := FindBaseType(d1, d2, nil)
	if cls, ok := got.(*ClassType); !ok || cls.Name != "Base" {
		t.Errorf("base(D1, D2) = %v, want class Base", got)
	}
	if got := FindBaseType(d1, base, nil); got != base {
		t.Errorf("base(D1, Base) = %v, want Base", got)
	}
}

func TestFunctionShapeCompatibility(t *testing.T) {
	a := &FunctionType{Inputs: []Type{Opaque, Number}, Results: []Type{String}}
	b := &FunctionType{Inputs: []Type{&ClassType{Name: "C"}, Number}, Results: []Type{String}}
	if !FunctionShapeCompatible(a, b) {
		t.Errorf("an opaque receiver must match any receiver shape")
	}
	c := &FunctionType{Inputs: []Type{Opaque}, Results: []Type{String}}
	if FunctionShapeCompatible(a, c) {
		t.Errorf("arity mismatch must fail")
	}
}
