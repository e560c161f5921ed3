package types

import "testing"

func TestNewUnionTypeCanonicalizes(t *testing.T) {
	// Duplicates are removed with set semantics.
	u := NewUnionType(String, Number, String)
	ut, ok := u.(*UnionType)
	if !ok {
		t.Fatalf("expected a union, got %s", u)
	}
	if len(ut.Types) != 2 {
		t.Errorf("union has %d members, want 2: %s", len(ut.Types), u)
	}

	// A single residual type is returned unwrapped.
	if got := NewUnionType(String, String); got != String {
		t.Errorf("single-member union = %s, want string", got)
	}

	// Nested unions flatten.
	nested := NewUnionType(Boolean, NewUnionType(String, Number))
	if nut, ok := nested.(*UnionType); !ok || len(nut.Types) != 3 {
		t.Errorf("nested union = %s, want three flat members", nested)
	}

	// Undefined contributions fold into an enclosing optional.
	opt := NewUnionType(String, Undefined)
	if ot, ok := opt.(*OptionalType); !ok || ot.Elem != String {
		t.Errorf("string | undefined = %s, want optional<string>", opt)
	}

	// Never contributes nothing.
	if got := NewUnionType(Never, Number); got != Number {
		t.Errorf("never | number = %s, want number", got)
	}
}

func TestNewIntersectionType(t *testing.T) {
	if got := NewIntersectionType(Any, String); got != Any {
		t.Errorf("any & string = %s, want any", got)
	}
	if got := NewIntersectionType(Never, String); got != Never {
		t.Errorf("never & string = %s, want never", got)
	}
	if got := NewIntersectionType(String); got != String {
		t.Errorf("single intersection = %s, want string", got)
	}
	mixed := NewIntersectionType(
		&TupleType{Fields: []Field{{ID: NamedID("a"), Type: Number}}},
		&TupleType{Fields: []Field{{ID: NamedID("b"), Type: String}}},
	)
	if _, ok := mixed.(*IntersectionType); !ok {
		t.Errorf("tuple & tuple = %s, want an intersection", mixed)
	}
}

func TestUnionEqualityIsOrderInsensitive(t *testing.T) {
	a := &UnionType{Types: []Type{String, Number}}
	b := &UnionType{Types: []Type{Number, String}}
	if !a.Equals(b) {
		t.Errorf("unions with the same member set must be equal")
	}
}

func TestFieldIDUniquenessHelpers(t *testing.T) {
	fields := []Field{
		{ID: NamedID("x"), Type: Number},
		{ID: OrdinalID(0), Type: String},
	}
	if FindField(fields, NamedID("x")) != 0 {
		t.Errorf("named lookup failed")
	}
	if FindField(fields, OrdinalID(0)) != 1 {
		t.Errorf("ordinal lookup failed")
	}
	if FindField(fields, NamedID("0")) != -1 {
		t.Errorf("a name must not match an ordinal")
	}
}

func TestWidenType(t *testing.T) {
	lit := &LiteralType{Value: "a", Base: String}
	if got := WidenType(lit); got != String {
		t.Errorf("widen literal = %s, want string", got)
	}
	ca := &ConstArrayType{Elem: I32, Size: 3}
	if arr, ok := WidenType(ca).(*ArrayType); !ok || arr.Elem != I32 {
		t.Errorf("widen const-array = %s, want i32[]", WidenType(ca))
	}
	ct := &ConstTupleType{Fields: []Field{{ID: NamedID("n"), Type: &LiteralType{Value: int64(1), Base: I32}}}}
	tup, ok := WidenType(ct).(*TupleType)
	if !ok {
		t.Fatalf("widen const-tuple = %s, want tuple", WidenType(ct))
	}
	if tup.FieldType(NamedID("n")) != I32 {
		t.Errorf("const-tuple field not widened: %s", tup)
	}
}

func TestHasUndefines(t *testing.T) {
	cases := []struct {
		t    Type
		want bool
	}{
		{Number, false},
		{Undefined, true},
		{UndefPlaceholder, true},
		{NewOptionalType(String), true},
		{&ArrayType{Elem: Undefined}, true},
		{&TupleType{Fields: []Field{{ID: NamedID("a"), Type: Number}}}, false},
	}
	for _, c := range cases {
		if got := HasUndefines(c.t); got != c.want {
			t.Errorf("HasUndefines(%s) = %v, want %v", c.t, got, c.want)
		}
	}
}

func TestIterateVisitsConstituents(t *testing.T) {
	u := NewUnionType(&ArrayType{Elem: String}, Number)
	var seen []string
	Iterate(u, func(t Type) bool {
		seen = append(seen, t.String())
		return true
	})
	want := map[string]bool{}
	for _, s := range seen {
		want[s] = true
	}
	for _, expect := range []string{"number", "string", "string[]"} {
		if !want[expect] {
			t.Errorf("Iterate missed %s (saw %v)", expect, seen)
		}
	}
}

func TestSubstituteRewritesReferences(t *testing.T) {
	ref := &TypeReference{Name: "T"}
	arr := &ArrayType{Elem: ref}
	out := Substitute(arr, func(t Type) Type {
		if r, ok := t.(*TypeReference); ok && r.Name == "T" {
			return Number
		}
		return nil
	})
	if got, ok := out.(*ArrayType); !ok || got.Elem != Number {
		t.Errorf("substitute = %s, want number[]", out)
	}
}

func TestEvalKeyOf(t *testing.T) {
	tup := &TupleType{Fields: []Field{
		{ID: NamedID("a"), Type: Number},
		{ID: NamedID("b"), Type: String},
	}}
	keys := EvalKeyOf(tup)
	ut, ok := keys.(*UnionType)
	if !ok || len(ut.Types) != 2 {
		t.Fatalf("keyof = %s, want a two-literal union", keys)
	}
}

func TestEvalIndexedAccess(t *testing.T) {
	tup := &TupleType{Fields: []Field{{ID: NamedID("a"), Type: Number}}}
	idx := &LiteralType{Value: "a", Base: String}
	if got := EvalIndexedAccess(tup, idx); got != Number {
		t.Errorf("T[\"a\"] = %s, want number", got)
	}
}
