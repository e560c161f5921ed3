// Package ir is the in-memory SSA-style intermediate representation the
// lowering core emits into: a module owning a region tree of operations,
// built through an insertion-point builder and checked by a verifier.
package ir

import (
	"fmt"

	"tsgen/pkg/errors"
	"tsgen/pkg/types"
)

// OpKind enumerates the operation set of the dialect.
type OpKind int

const (
	OpInvalid OpKind = iota

	// module structure
	OpFunc
	OpGlobal
	OpGlobalConstructor

	// values and storage
	OpConstant
	OpUndef
	OpVariable
	OpStore
	OpLoad
	OpAddressOf
	OpFieldRef
	OpElementRef

	// arithmetic and predicates
	OpArith
	OpUnary
	OpCompare
	OpCast
	OpTypeOf

	// control flow
	OpIf
	OpWhile
	OpDoWhile
	OpFor
	OpSwitch
	OpBranch
	OpLabeled
	OpBreak
	OpContinue
	OpTry
	OpThrow
	OpReturnVal
	OpYieldReturnVal
	OpStateLabel
	OpExit

	// calls and symbols
	OpCall
	OpCallIndirect
	OpSymbolRef
	OpThisSymbolRef
	OpThisVirtualSymbolRef
	OpInterfaceSymbolRef
	OpVTableOffsetRef
	OpAccessorRead
	OpAccessorWrite

	// objects, tuples, arrays
	OpNew
	OpNewArray
	OpDelete
	OpCreateTuple
	OpCreateArray
	OpNewInterface
	OpExtractInterfaceThis

	// closures
	OpCapture
	OpTrampoline
	OpCreateBoundFunction

	// builtins
	OpPrint
	OpAssert

	// async
	OpAsyncExec
	OpAwait
	OpTaskGroupCreate
	OpTaskGroupSubmit
	OpTaskGroupAwaitAll
)

var opKindNames = map[OpKind]string{
	OpFunc:                 "func",
	OpGlobal:               "global",
	OpGlobalConstructor:    "global_constructor",
	OpConstant:             "constant",
	OpUndef:                "undef",
	OpVariable:             "variable",
	OpStore:                "store",
	OpLoad:                 "load",
	OpAddressOf:            "address_of",
	OpFieldRef:             "field_ref",
	OpElementRef:           "element_ref",
	OpArith:                "arith",
	OpUnary:                "unary",
	OpCompare:              "compare",
	OpCast:                 "cast",
	OpTypeOf:               "type_of",
	OpIf:                   "if",
	OpWhile:                "while",
	OpDoWhile:              "do_while",
	OpFor:                  "for",
	OpSwitch:               "switch",
	OpBranch:               "branch",
	OpLabeled:              "labeled",
	OpBreak:                "break",
	OpContinue:             "continue",
	OpTry:                  "try",
	OpThrow:                "throw",
	OpReturnVal:            "return_val",
	OpYieldReturnVal:       "yield_return_val",
	OpStateLabel:           "state_label",
	OpExit:                 "exit",
	OpCall:                 "call",
	OpCallIndirect:         "call_indirect",
	OpSymbolRef:            "symbol_ref",
	OpThisSymbolRef:        "this_symbol_ref",
	OpThisVirtualSymbolRef: "this_virtual_symbol_ref",
	OpInterfaceSymbolRef:   "interface_symbol_ref",
	OpVTableOffsetRef:      "vtable_offset_ref",
	OpAccessorRead:         "accessor_read",
	OpAccessorWrite:        "accessor_write",
	OpNew:                  "new",
	OpNewArray:             "new_array",
	OpDelete:               "delete",
	OpCreateTuple:          "create_tuple",
	OpCreateArray:          "create_array",
	OpNewInterface:         "new_interface",
	OpExtractInterfaceThis: "extract_interface_this",
	OpCapture:              "capture",
	OpTrampoline:           "trampoline",
	OpCreateBoundFunction:  "create_bound_function",
	OpPrint:                "print",
	OpAssert:               "assert",
	OpAsyncExec:            "async_exec",
	OpAwait:                "await",
	OpTaskGroupCreate:      "task_group_create",
	OpTaskGroupSubmit:      "task_group_submit",
	OpTaskGroupAwaitAll:    "task_group_await_all",
}

func (k OpKind) String() string {
	if s, ok := opKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// Value is an SSA value: the result of an op or a block argument.
type Value struct {
	Type  types.Type
	Def   *Op    // defining op (nil for block arguments)
	Owner *Block // owning block (for block arguments)
	Index int    // result or argument index
}

// Op is one operation: operands in, results out, attributes, nested regions.
type Op struct {
	Kind     OpKind
	Operands []*Value
	Results  []*Value
	Attrs    map[string]interface{}
	Regions  []*Region
	Loc      errors.Position

	block *Block // owning block
}

// Attr fetches an attribute, nil when absent.
func (op *Op) Attr(name string) interface{} {
	if op.Attrs == nil {
		return nil
	}
	return op.Attrs[name]
}

// StringAttr fetches a string attribute, "" when absent.
func (op *Op) StringAttr(name string) string {
	if s, ok := op.Attr(name).(string); ok {
		return s
	}
	return ""
}

// IntAttr fetches an int attribute, 0 when absent.
func (op *Op) IntAttr(name string) int {
	switch v := op.Attr(name).(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

// BoolAttr fetches a bool attribute.
func (op *Op) BoolAttr(name string) bool {
	b, _ := op.Attr(name).(bool)
	return b
}

// SetAttr sets an attribute in place.
func (op *Op) SetAttr(name string, v interface{}) {
	if op.Attrs == nil {
		op.Attrs = map[string]interface{}{}
	}
	op.Attrs[name] = v
}

// Result returns the i-th result value.
func (op *Op) Result(i int) *Value {
	return op.Results[i]
}

// Block returns the block the op currently lives in (nil when detached).
func (op *Op) Block() *Block { return op.block }

// Region is an ordered list of blocks owned by an op (or by the module).
type Region struct {
	Blocks []*Block
	Owner  *Op // nil for the module body
}

// EntryBlock returns the first block, or nil.
func (r *Region) EntryBlock() *Block {
	if len(r.Blocks) == 0 {
		return nil
	}
	return r.Blocks[0]
}

// Block holds arguments and an ordered op list.
type Block struct {
	Args   []*Value
	Ops    []*Op
	Region *Region
}

// insertOp places op at index i (appending when i == len).
func (b *Block) insertOp(op *Op, i int) {
	op.block = b
	if i >= len(b.Ops) {
		b.Ops = append(b.Ops, op)
		return
	}
	b.Ops = append(b.Ops[:i], append([]*Op{op}, b.Ops[i:]...)...)
}

// removeOp detaches op from the block.
func (b *Block) removeOp(op *Op) {
	for i, o := range b.Ops {
		if o == op {
			b.Ops = append(b.Ops[:i], b.Ops[i+1:]...)
			op.block = nil
			return
		}
	}
}

// Module owns the emitted IR: one body region whose single block holds
// funcs, globals, and global constructors.
type Module struct {
	Name string
	Loc  errors.Position
	Body *Region

	interner *Interner
}

// NewModule creates an empty module with one body block.
func NewModule(name string, loc errors.Position) *Module {
	body := &Region{}
	body.Blocks = append(body.Blocks, &Block{Region: body})
	return &Module{Name: name, Loc: loc, Body: body, interner: NewInterner()}
}

// BodyBlock is the module's single top-level block.
func (m *Module) BodyBlock() *Block { return m.Body.Blocks[0] }

// FindFunc locates a func op by its symbol name.
func (m *Module) FindFunc(name string) *Op {
	for _, op := range m.BodyBlock().Ops {
		if op.Kind == OpFunc && op.StringAttr("sym_name") == name {
			return op
		}
	}
	return nil
}

// FindGlobal locates a global op by its symbol name.
func (m *Module) FindGlobal(name string) *Op {
	for _, op := range m.BodyBlock().Ops {
		if op.Kind == OpGlobal && op.StringAttr("sym_name") == name {
			return op
		}
	}
	return nil
}

// Interner returns the module's type interner.
func (m *Module) Interner() *Interner { return m.interner }

// Interner deduplicates structurally equal types so type identity can be
// compared by pointer where convenient.
type Interner struct {
	byKey map[string]types.Type
}

func NewInterner() *Interner {
	return &Interner{byKey: make(map[string]types.Type)}
}

// Intern returns the canonical instance for t.
func (in *Interner) Intern(t types.Type) types.Type {
	if t == nil {
		return nil
	}
	key := t.String()
	if existing, ok := in.byKey[key]; ok && existing.Equals(t) {
		return existing
	}
	in.byKey[key] = t
	return t
}
