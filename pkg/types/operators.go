package types

import (
	"fmt"
	"strings"
)

// Type operators are unresolved forms produced by type-annotation lowering;
// alias substitution and generic instantiation reduce them to concrete types.

// TypeReference names a type (possibly an alias or a generic instantiation)
// that has not been resolved yet.
type TypeReference struct {
	Name string
	Args []Type
}

func (tr *TypeReference) String() string {
	if len(tr.Args) == 0 {
		return tr.Name
	}
	var sb strings.Builder
	sb.WriteString(tr.Name)
	sb.WriteString("<")
	for i, a := range tr.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteString(">")
	return sb.String()
}
func (tr *TypeReference) typeNode() {}
func (tr *TypeReference) Equals(other Type) bool {
	otherTr, ok := other.(*TypeReference)
	if !ok {
		return false
	}
	return tr.Name == otherTr.Name && typeListsEqual(tr.Args, otherTr.Args)
}

// ConditionalType is `Check extends Extends ? True : False`.
type ConditionalType struct {
	Check   Type
	Extends Type
	True    Type
	False   Type
}

func (ct *ConditionalType) String() string {
	return fmt.Sprintf("%s extends %s ? %s : %s", ct.Check, ct.Extends, ct.True, ct.False)
}
func (ct *ConditionalType) typeNode() {}
func (ct *ConditionalType) Equals(other Type) bool {
	otherCt, ok := other.(*ConditionalType)
	if !ok {
		return false
	}
	return elemEqual(ct.Check, otherCt.Check) && elemEqual(ct.Extends, otherCt.Extends) &&
		elemEqual(ct.True, otherCt.True) && elemEqual(ct.False, otherCt.False)
}

// MappedType is `{ [K in Source]: Value }`.
type MappedType struct {
	Param  string
	Source Type
	Value  Type
}

func (mt *MappedType) String() string {
	return fmt.Sprintf("{[%s in %s]: %s}", mt.Param, mt.Source, mt.Value)
}
func (mt *MappedType) typeNode() {}
func (mt *MappedType) Equals(other Type) bool {
	otherMt, ok := other.(*MappedType)
	if !ok {
		return false
	}
	return mt.Param == otherMt.Param && elemEqual(mt.Source, otherMt.Source) && elemEqual(mt.Value, otherMt.Value)
}

// IndexedAccessType is `Obj[Index]`.
type IndexedAccessType struct {
	Obj   Type
	Index Type
}

func (it *IndexedAccessType) String() string {
	return fmt.Sprintf("%s[%s]", it.Obj, it.Index)
}
func (it *IndexedAccessType) typeNode() {}
func (it *IndexedAccessType) Equals(other Type) bool {
	otherIt, ok := other.(*IndexedAccessType)
	if !ok {
		return false
	}
	return elemEqual(it.Obj, otherIt.Obj) && elemEqual(it.Index, otherIt.Index)
}

// KeyOfType is `keyof T`.
type KeyOfType struct {
	Operand Type
}

func (kt *KeyOfType) String() string {
	return fmt.Sprintf("keyof %s", kt.Operand)
}
func (kt *KeyOfType) typeNode() {}
func (kt *KeyOfType) Equals(other Type) bool {
	otherKt, ok := other.(*KeyOfType)
	if !ok {
		return false
	}
	return elemEqual(kt.Operand, otherKt.Operand)
}

// InferType is the `infer X` placeholder inside a conditional type.
type InferType struct {
	Name string
}

func (it *InferType) String() string {
	return fmt.Sprintf("infer %s", it.Name)
}
func (it *InferType) typeNode() {}
func (it *InferType) Equals(other Type) bool {
	otherIt, ok := other.(*InferType)
	if !ok {
		return false
	}
	return it.Name == otherIt.Name
}

// EvalKeyOf reduces `keyof T` for tuple/class-storage operands into a union
// of key literals; other operands yield the operator unresolved.
func EvalKeyOf(t Type) Type {
	var fields []Field
	switch s := t.(type) {
	case *TupleType:
		fields = s.Fields
	case *ConstTupleType:
		fields = s.Fields
	case *ClassStorageType:
		fields = s.Fields
	case *ClassType:
		if s.Storage != nil {
			fields = s.Storage.Fields
		}
	default:
		return &KeyOfType{Operand: t}
	}
	keys := make([]Type, 0, len(fields))
	for _, f := range fields {
		if f.ID.Named {
			keys = append(keys, &LiteralType{Value: f.ID.Name, Base: String})
		} else {
			keys = append(keys, &LiteralType{Value: int64(f.ID.Ordinal), Base: I32})
		}
	}
	return NewUnionType(keys...)
}

// EvalIndexedAccess reduces `Obj[Index]` when Index is a key literal.
func EvalIndexedAccess(obj, index Type) Type {
	lit, ok := index.(*LiteralType)
	if !ok {
		return &IndexedAccessType{Obj: obj, Index: index}
	}
	var id FieldID
	switch v := lit.Value.(type) {
	case string:
		id = NamedID(v)
	case int64:
		id = OrdinalID(int(v))
	default:
		return &IndexedAccessType{Obj: obj, Index: index}
	}
	switch s := obj.(type) {
	case *TupleType:
		if ft := s.FieldType(id); ft != nil {
			return ft
		}
	case *ConstTupleType:
		if ft := s.FieldType(id); ft != nil {
			return ft
		}
	case *ClassType:
		if s.Storage != nil {
			if ft := s.Storage.FieldType(id); ft != nil {
				return ft
			}
		}
	case *ArrayType:
		if !id.Named {
			return s.Elem
		}
	}
	return &IndexedAccessType{Obj: obj, Index: index}
}

// EvalConditional reduces a conditional type once both sides are concrete,
// using castability as the extends relation.
func EvalConditional(ct *ConditionalType) Type {
	if ct.Check == nil || ct.Extends == nil {
		return ct
	}
	if IsCastable(ct.Check, ct.Extends) {
		return ct.True
	}
	return ct.False
}
