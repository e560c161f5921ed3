package types

import (
	"fmt"
	"strings"
)

// Type is the interface implemented by all IR type representations.
type Type interface {
	// String returns a string representation of the type, suitable for
	// debugging, printing, and as an interning key.
	String() string
	// Equals checks if this type is structurally equivalent to another type.
	Equals(other Type) bool

	// typeNode() is a marker method to ensure only types defined in this
	// package can be assigned to the Type interface. It keeps the lattice
	// closed.
	typeNode()
}

// --- Scalar Types ---

// Primitive represents a fundamental, non-composite type.
type Primitive struct {
	Name string
}

func (p *Primitive) String() string { return p.Name }
func (p *Primitive) typeNode()      {}
func (p *Primitive) Equals(other Type) bool {
	// Primitives are singletons, so pointer equality is sufficient.
	return p == other
}

// Pre-defined instances for the scalar lattice.
var (
	Void      = &Primitive{Name: "void"}
	Boolean   = &Primitive{Name: "boolean"}
	Number    = &Primitive{Name: "number"}
	BigInt    = &Primitive{Name: "bigint"}
	String    = &Primitive{Name: "string"}
	Char      = &Primitive{Name: "char"}
	Byte      = &Primitive{Name: "byte"}
	Opaque    = &Primitive{Name: "opaque"}
	Any       = &Primitive{Name: "any"}
	Unknown   = &Primitive{Name: "unknown"}
	Never     = &Primitive{Name: "never"}
	Null      = &Primitive{Name: "null"}
	Undefined = &Primitive{Name: "undefined"}
	Symbol    = &Primitive{Name: "symbol"}
	// UndefPlaceholder marks a not-yet-known type slot during the discovery
	// pass; it blocks return-type unification until replaced.
	UndefPlaceholder = &Primitive{Name: "undef"}

	// Integer storage widths used by literal typing and enum promotion.
	I32  = &Primitive{Name: "i32"}
	I64  = &Primitive{Name: "i64"}
	I128 = &Primitive{Name: "i128"}
)

// IsIntegerType reports whether t is one of the integer storage widths.
func IsIntegerType(t Type) bool {
	return t == I32 || t == I64 || t == I128 || t == Byte || t == Char
}

// IsNumericType covers integers plus the floating number type.
func IsNumericType(t Type) bool {
	return t == Number || t == BigInt || IsIntegerType(t)
}

// --- Fields ---

// FieldID identifies a field within a tuple: either a string name or an
// integer ordinal. A field identifier is unique within its tuple.
type FieldID struct {
	Name    string
	Ordinal int
	Named   bool
}

// NamedID makes a name-keyed field identifier.
func NamedID(name string) FieldID { return FieldID{Name: name, Named: true} }

// OrdinalID makes an ordinal-keyed field identifier.
func OrdinalID(i int) FieldID { return FieldID{Ordinal: i} }

func (id FieldID) String() string {
	if id.Named {
		return id.Name
	}
	return fmt.Sprintf("%d", id.Ordinal)
}

// Equals compares two field identifiers.
func (id FieldID) Equals(other FieldID) bool {
	if id.Named != other.Named {
		return false
	}
	if id.Named {
		return id.Name == other.Name
	}
	return id.Ordinal == other.Ordinal
}

// Field is an (id, type) pair inside a tuple or class storage type.
type Field struct {
	ID   FieldID
	Type Type
}

func (f Field) String() string {
	typStr := "<nil>"
	if f.Type != nil {
		typStr = f.Type.String()
	}
	return fmt.Sprintf("%s: %s", f.ID, typStr)
}

func fieldsString(fields []Field) string {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.String())
	}
	return sb.String()
}

func fieldsEqual(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].ID.Equals(b[i].ID) {
			return false
		}
		if (a[i].Type == nil) != (b[i].Type == nil) {
			return false
		}
		if a[i].Type != nil && !a[i].Type.Equals(b[i].Type) {
			return false
		}
	}
	return true
}

// FindField returns the index of the field with the given id, or -1.
func FindField(fields []Field, id FieldID) int {
	for i, f := range fields {
		if f.ID.Equals(id) {
			return i
		}
	}
	return -1
}

// --- Composite Types ---

// ArrayType represents a dynamically sized array.
type ArrayType struct {
	Elem Type
}

func (at *ArrayType) String() string {
	elemStr := "<nil>"
	if at.Elem != nil {
		elemStr = at.Elem.String()
	}
	return fmt.Sprintf("%s[]", elemStr)
}
func (at *ArrayType) typeNode() {}
func (at *ArrayType) Equals(other Type) bool {
	otherAt, ok := other.(*ArrayType)
	if !ok {
		return false
	}
	return elemEqual(at.Elem, otherAt.Elem)
}

// ConstArrayType represents a fixed-size array whose every element is
// reducible to a compile-time attribute.
type ConstArrayType struct {
	Elem Type
	Size int
}

func (at *ConstArrayType) String() string {
	elemStr := "<nil>"
	if at.Elem != nil {
		elemStr = at.Elem.String()
	}
	return fmt.Sprintf("%s[%d]", elemStr, at.Size)
}
func (at *ConstArrayType) typeNode() {}
func (at *ConstArrayType) Equals(other Type) bool {
	otherAt, ok := other.(*ConstArrayType)
	if !ok {
		return false
	}
	return at.Size == otherAt.Size && elemEqual(at.Elem, otherAt.Elem)
}

// TupleType represents a record of identified fields.
type TupleType struct {
	Fields []Field
}

func (tt *TupleType) String() string {
	return fmt.Sprintf("tuple<%s>", fieldsString(tt.Fields))
}
func (tt *TupleType) typeNode() {}
func (tt *TupleType) Equals(other Type) bool {
	otherTt, ok := other.(*TupleType)
	if !ok {
		return false
	}
	return fieldsEqual(tt.Fields, otherTt.Fields)
}

// FieldType returns the type of the field with the given id, or nil.
func (tt *TupleType) FieldType(id FieldID) Type {
	if i := FindField(tt.Fields, id); i >= 0 {
		return tt.Fields[i].Type
	}
	return nil
}

// ConstTupleType is a tuple whose every field is reducible to a compile-time
// attribute.
type ConstTupleType struct {
	Fields []Field
}

func (tt *ConstTupleType) String() string {
	return fmt.Sprintf("const_tuple<%s>", fieldsString(tt.Fields))
}
func (tt *ConstTupleType) typeNode() {}
func (tt *ConstTupleType) Equals(other Type) bool {
	otherTt, ok := other.(*ConstTupleType)
	if !ok {
		return false
	}
	return fieldsEqual(tt.Fields, otherTt.Fields)
}

// FieldType returns the type of the field with the given id, or nil.
func (tt *ConstTupleType) FieldType(id FieldID) Type {
	if i := FindField(tt.Fields, id); i >= 0 {
		return tt.Fields[i].Type
	}
	return nil
}

// RefType is a mutable storage reference (the result type of a variable op).
type RefType struct {
	Elem Type
}

func (rt *RefType) String() string {
	return fmt.Sprintf("ref<%s>", rt.Elem)
}
func (rt *RefType) typeNode() {}
func (rt *RefType) Equals(other Type) bool {
	otherRt, ok := other.(*RefType)
	if !ok {
		return false
	}
	return elemEqual(rt.Elem, otherRt.Elem)
}

// ValueRefType is a reference that preserves aliasing to the source storage
// while the binding itself is not writable (for-of const captures).
type ValueRefType struct {
	Elem Type
}

func (rt *ValueRefType) String() string {
	return fmt.Sprintf("value_ref<%s>", rt.Elem)
}
func (rt *ValueRefType) typeNode() {}
func (rt *ValueRefType) Equals(other Type) bool {
	otherRt, ok := other.(*ValueRefType)
	if !ok {
		return false
	}
	return elemEqual(rt.Elem, otherRt.Elem)
}

// OptionalType wraps a type that may also be undefined.
type OptionalType struct {
	Elem Type
}

func (ot *OptionalType) String() string {
	return fmt.Sprintf("optional<%s>", ot.Elem)
}
func (ot *OptionalType) typeNode() {}
func (ot *OptionalType) Equals(other Type) bool {
	otherOt, ok := other.(*OptionalType)
	if !ok {
		return false
	}
	return elemEqual(ot.Elem, otherOt.Elem)
}

// UnionType represents a union of multiple types (e.g., string | number).
// Construct only through NewUnionType, which canonicalizes.
type UnionType struct {
	Types []Type
}

func (ut *UnionType) String() string {
	var sb strings.Builder
	for i, t := range ut.Types {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(t.String())
	}
	return sb.String()
}
func (ut *UnionType) typeNode() {}
func (ut *UnionType) Equals(other Type) bool {
	otherUt, ok := other.(*UnionType)
	if !ok {
		return false
	}
	return typeSetsEqual(ut.Types, otherUt.Types)
}

// IntersectionType represents an intersection of multiple types (A & B).
type IntersectionType struct {
	Types []Type
}

func (it *IntersectionType) String() string {
	var sb strings.Builder
	for i, t := range it.Types {
		if i > 0 {
			sb.WriteString(" & ")
		}
		sb.WriteString(t.String())
	}
	return sb.String()
}
func (it *IntersectionType) typeNode() {}
func (it *IntersectionType) Equals(other Type) bool {
	otherIt, ok := other.(*IntersectionType)
	if !ok {
		return false
	}
	return typeSetsEqual(it.Types, otherIt.Types)
}

// LiteralType represents a specific literal value used as a type. Value holds
// one of: float64, int64, string, bool, nil.
type LiteralType struct {
	Value interface{}
	Base  Type // The element type the literal belongs to (number, string, ...)
}

func (lt *LiteralType) String() string {
	if s, ok := lt.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", lt.Value)
}
func (lt *LiteralType) typeNode() {}
func (lt *LiteralType) Equals(other Type) bool {
	otherLt, ok := other.(*LiteralType)
	if !ok {
		return false
	}
	if !elemEqual(lt.Base, otherLt.Base) {
		return false
	}
	return lt.Value == otherLt.Value
}

// ObjectType wraps a storage type into a heap object reference.
type ObjectType struct {
	Elem Type
}

func (ot *ObjectType) String() string {
	return fmt.Sprintf("object<%s>", ot.Elem)
}
func (ot *ObjectType) typeNode() {}
func (ot *ObjectType) Equals(other Type) bool {
	otherOt, ok := other.(*ObjectType)
	if !ok {
		return false
	}
	return elemEqual(ot.Elem, otherOt.Elem)
}

// --- helpers ---

func elemEqual(a, b Type) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || a.Equals(b)
}

// typeSetsEqual compares two type slices as sets (order-insensitive).
func typeSetsEqual(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	matched := make([]bool, len(b))
	for _, t1 := range a {
		found := false
		for j, t2 := range b {
			if !matched[j] && t1.Equals(t2) {
				matched[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
