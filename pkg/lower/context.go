// Package lower is the semantic core: it consumes a parsed AST and emits
// typed IR through a two-pass whole-program resolver. A dummy discovery pass
// probes dependencies of every top-level statement until a fixpoint; a
// single strict pass then emits the definitive module.
package lower

import (
	"fmt"

	"tsgen/pkg/ast"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

const lowerDebug = false

func debugPrintf(format string, args ...interface{}) {
	if lowerDebug {
		fmt.Printf(format, args...)
	}
}

// Unresolved records one name that failed to resolve during a pass, with the
// location of the reference.
type Unresolved struct {
	Name string
	Pos  errors.Position
}

// UnresolvedSink collects unresolved references per pass.
type UnresolvedSink struct {
	Refs []Unresolved
}

func (s *UnresolvedSink) Add(name string, pos errors.Position) {
	s.Refs = append(s.Refs, Unresolved{Name: name, Pos: pos})
}

func (s *UnresolvedSink) Count() int { return len(s.Refs) }

func (s *UnresolvedSink) Clear() { s.Refs = nil }

// CaptureSink records outer-scope variables referenced by the function under
// discovery, in first-use order.
type CaptureSink struct {
	order []string
	vars  map[string]*VarInfo
}

func NewCaptureSink() *CaptureSink {
	return &CaptureSink{vars: map[string]*VarInfo{}}
}

func (s *CaptureSink) Add(v *VarInfo) {
	if _, ok := s.vars[v.Name]; ok {
		return
	}
	s.vars[v.Name] = v
	s.order = append(s.order, v.Name)
}

func (s *CaptureSink) Names() []string { return s.order }

func (s *CaptureSink) Get(name string) *VarInfo { return s.vars[name] }

func (s *CaptureSink) Len() int { return len(s.order) }

// PassResult accumulates what a function-body discovery pass learns: the
// unified return type, whether any return carried a value, and fields that
// must be relocated onto `this` (generator locals).
type PassResult struct {
	ReturnType         types.Type
	ReturnTypeRequired bool
	YieldType          types.Type
	ExtraThisFields    []types.Field
}

// CleanupList owns every op a dummy run created; the pass deletes them all
// when it ends.
type CleanupList struct {
	ops []*ir.Op
}

func (c *CleanupList) Track(op *ir.Op) {
	if c != nil && op != nil {
		c.ops = append(c.ops, op)
	}
}

func (c *CleanupList) Release(b *ir.Builder) {
	for i := len(c.ops) - 1; i >= 0; i-- {
		b.EraseOp(c.ops[i])
	}
	c.ops = nil
}

// GenContext threads lowering state into every routine. It is passed by
// value; the pointer-typed fields are the explicit mutable sub-channels.
type GenContext struct {
	// resolution mode
	AllowPartialResolve bool // unknown names yield placeholders instead of errors
	DummyRun            bool // emitted ops are recorded in Cleanups and deleted after the pass
	AllowConstEval      bool // constant folding permitted on binary ops
	SkipProcessed       bool // skip statements marked already-processed

	// typing context
	ThisType    types.Type          // type bound to `this` in the enclosing function
	ArgTypeDest *types.FunctionType // expected function type at a call site

	// discovery sinks
	CapturedVars *CaptureSink     // non-nil: record outer-scope identifier uses
	PassResult   *PassResult      // return-type sink for the current function probe
	Unresolved   *UnresolvedSink  // per-pass unresolved references
	Cleanups     *CleanupList     // dummy-run op ownership
	ExtraFields  *[]types.Field   // fields implicitly added to `this`
	Generated    *[]ast.Statement // AST nodes injected ahead of the next block body

	// allocation placement
	CurrentOp                 *ir.Op // the op whose region local allocations may hoist to
	AllocVarsOutsideCurrentOp bool
	AllocVarsInThisContext    bool // allocate locals as fields of `this` (generator lowering)

	// per-scope overrides
	TypeAliasMap map[string]types.Type // type-alias overrides (safe-cast narrowing)

	// generator state
	StateCounter *int // monotonically increasing yield-state ordinal
	// BindThisFields pre-binds names to fields of `this` when a body is
	// entered (generator parameters relocated onto the state object).
	BindThisFields []types.Field

	// current function
	FuncScopeDepth int        // boundary index of the current function's scope
	ReturnType     types.Type // declared (or discovered) result type
	ReceiverClass  *ClassInfo // enclosing class in a method body
	ThisVal        *ir.Value  // the lowered `this` value, when in a method
	FuncOp         *ir.Op     // the function op under construction
	CaptureVal     *ir.Value  // the capture tuple parameter value
}

// WithThis returns a copy bound to a receiver type.
func (ctx GenContext) WithThis(t types.Type) GenContext {
	ctx.ThisType = t
	return ctx
}

// WithAliases layers a fresh alias map over the context (used by type-alias
// computation and safe-cast narrowing).
func (ctx GenContext) WithAliases(aliases map[string]types.Type) GenContext {
	merged := make(map[string]types.Type, len(ctx.TypeAliasMap)+len(aliases))
	for k, v := range ctx.TypeAliasMap {
		merged[k] = v
	}
	for k, v := range aliases {
		merged[k] = v
	}
	ctx.TypeAliasMap = merged
	return ctx
}
