package lower

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"tsgen/pkg/types"
)

// Namespace owns the per-scope declaration maps. Namespaces form a tree;
// the root is implicit and unnamed. Each map holds at most one entry per
// short name, and a fully-qualified name identifies at most one declaration
// of each category.
type Namespace struct {
	Name     string
	FullName string
	Parent   *Namespace

	Children    map[string]*Namespace
	Functions   map[string]*FuncInfo
	Globals     map[string]*VarInfo
	Classes     map[string]*ClassInfo
	Interfaces  map[string]*InterfaceInfo
	Enums       map[string]*EnumInfo
	TypeAliases map[string]types.Type
	Imports     map[string]string // short name -> fully-qualified target

	// CaptureSets memoizes per-function capture discovery results so call
	// sites can materialize capture tuples without re-probing.
	CaptureSets map[string][]*VarInfo

	// LocalThisFields holds generator-relocated locals per function.
	LocalThisFields map[string][]types.Field
}

func newNamespace(name string, parent *Namespace) *Namespace {
	full := name
	if parent != nil && parent.FullName != "" {
		full = parent.FullName + "." + name
	}
	return &Namespace{
		Name:            name,
		FullName:        full,
		Parent:          parent,
		Children:        map[string]*Namespace{},
		Functions:       map[string]*FuncInfo{},
		Globals:         map[string]*VarInfo{},
		Classes:         map[string]*ClassInfo{},
		Interfaces:      map[string]*InterfaceInfo{},
		Enums:           map[string]*EnumInfo{},
		TypeAliases:     map[string]types.Type{},
		Imports:         map[string]string{},
		CaptureSets:     map[string][]*VarInfo{},
		LocalThisFields: map[string][]types.Field{},
	}
}

// NewRootNamespace creates the implicit root.
func NewRootNamespace() *Namespace {
	return newNamespace("", nil)
}

// Child returns (creating if needed) the named child namespace.
func (ns *Namespace) Child(name string) *Namespace {
	name = normName(name)
	if c, ok := ns.Children[name]; ok {
		return c
	}
	c := newNamespace(name, ns)
	ns.Children[name] = c
	return c
}

// Qualify builds a fully-qualified name under this namespace.
func (ns *Namespace) Qualify(name string) string {
	if ns.FullName == "" {
		return name
	}
	return ns.FullName + "." + name
}

// normName applies NFC normalization so Unicode spellings of one identifier
// bind to one entry.
func normName(name string) string {
	if norm.NFC.IsNormalString(name) {
		return name
	}
	return norm.NFC.String(name)
}

// SplitQualified splits a dotted fully-qualified name into segments.
func SplitQualified(fqn string) []string {
	return strings.Split(fqn, ".")
}

// resolveQualified walks a dotted path from this namespace; each segment
// except the last must name a child namespace.
func (ns *Namespace) resolveQualified(fqn string) (*Namespace, string) {
	segs := SplitQualified(fqn)
	cur := ns
	for _, seg := range segs[:len(segs)-1] {
		child, ok := cur.Children[normName(seg)]
		if !ok {
			return nil, ""
		}
		cur = child
	}
	return cur, normName(segs[len(segs)-1])
}
