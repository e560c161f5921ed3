package ast

import "tsgen/pkg/types"

// TypeNode is the interface of type-annotation syntax. Annotation lowering
// turns these into pkg/types values.
type TypeNode interface {
	Node
	typeNode()
}

type baseTypeNode struct {
	baseNode
}

func (b *baseTypeNode) typeNode() {}

// TypeName references a named type, possibly with type arguments:
// `number`, `Foo`, `Map<string, Foo>`. Dotted names are allowed.
type TypeName struct {
	baseTypeNode
	Name string
	Args []TypeNode
}

type ArrayTypeNode struct {
	baseTypeNode
	Elem TypeNode
}

type TupleTypeNode struct {
	baseTypeNode
	Elems []TypeNode
}

type UnionTypeNode struct {
	baseTypeNode
	Members []TypeNode
}

type IntersectionTypeNode struct {
	baseTypeNode
	Members []TypeNode
}

type FunctionTypeNode struct {
	baseTypeNode
	Params []TypeNode
	Return TypeNode
}

// LiteralTypeNode is a literal used in type position: `"a"`, `1`, `true`.
// Value holds string, int64, float64, or bool.
type LiteralTypeNode struct {
	baseTypeNode
	Value interface{}
}

// ObjectTypeMember is one member of an inline object type.
type ObjectTypeMember struct {
	Name     string
	Type     TypeNode
	Optional bool
}

// ObjectTypeNode is an inline structural type `{k: "a"; va: number}`.
type ObjectTypeNode struct {
	baseTypeNode
	Members []ObjectTypeMember
}

type KeyOfTypeNode struct {
	baseTypeNode
	Operand TypeNode
}

type IndexedAccessTypeNode struct {
	baseTypeNode
	Obj   TypeNode
	Index TypeNode
}

type ConditionalTypeNode struct {
	baseTypeNode
	Check   TypeNode
	Extends TypeNode
	True    TypeNode
	False   TypeNode
}

type InferTypeNode struct {
	baseTypeNode
	Name string
}

type MappedTypeNode struct {
	baseTypeNode
	Param  string
	Source TypeNode
	Value  TypeNode
}

type OptionalTypeNode struct {
	baseTypeNode
	Elem TypeNode
}

// ComputedTypeNode wraps an already-resolved type. Safe-cast narrowing
// injects synthetic const declarations whose annotation is a computed type
// rather than annotation syntax.
type ComputedTypeNode struct {
	baseTypeNode
	Type types.Type
}
