package lower

import (
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// attachCaptureTuple synthesizes the capture tuple type from a discovery
// sink and prepends it to the function's inputs. Variables whose storage is
// a ref keep their ref type so writes stay visible; the rest capture by
// value.
func (c *Core) attachCaptureTuple(f *FuncInfo, captures *CaptureSink) {
	fields := make([]types.Field, 0, captures.Len())
	for _, name := range captures.Names() {
		v := captures.Get(name)
		ft := v.Type
		if (v.ReadWrite && !v.IsParam) || v.CapturedByRef {
			ft = &types.RefType{Elem: types.StorageType(v.Type)}
		}
		fields = append(fields, types.Field{ID: types.NamedID(name), Type: ft})
		f.Captured = append(f.Captured, v)
	}
	f.CaptureTuple = &types.TupleType{Fields: fields}
	f.Type.Inputs = append([]types.Type{f.CaptureTuple}, f.Type.Inputs...)
}

// bindCapturedParams redeclares each captured variable inside the function
// body as a field of the incoming capture tuple.
func (c *Core) bindCapturedParams(f *FuncInfo, captureArg *ir.Value, loc errors.Position, ctx GenContext) {
	for _, field := range f.CaptureTuple.Fields {
		name := field.ID.Name
		var storage *ir.Value
		var varType types.Type
		if ref, byRef := field.Type.(*types.RefType); byRef {
			// A by-ref capture: the tuple field holds the outer ref itself.
			fieldRef := c.b.Create(ir.OpFieldRef, loc, []*ir.Value{captureArg},
				[]types.Type{&types.RefType{Elem: field.Type}},
				map[string]interface{}{"field": name})
			storage = c.b.Load(loc, fieldRef.Result(0))
			varType = ref.Elem
		} else {
			// By value: address the tuple field directly.
			fieldRef := c.b.Create(ir.OpFieldRef, loc, []*ir.Value{captureArg},
				[]types.Type{&types.RefType{Elem: field.Type}},
				map[string]interface{}{"field": name})
			storage = fieldRef.Result(0)
			varType = field.Type
		}
		decl := &VarInfo{
			Name:      name,
			FullName:  name,
			Type:      varType,
			Loc:       loc,
			ReadWrite: true,
			Storage:   storage,
		}
		c.Declare(name, decl, DeclareOptions{Redeclare: true})
	}
}

// materializeClosure builds the capture tuple at a use site and wraps the
// function symbol into a trampoline or bound function. The capture contract
// is identical either way; bound-function is the primary form.
func (c *Core) materializeClosure(f *FuncInfo, sym *ir.Value, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	tuple, ok := c.buildCaptureTuple(f, loc, ctx)
	if !ok {
		return nil, false
	}

	useBound := c.opts.ReplaceTrampolineWithBoundFunction || c.opts.UseBoundFunctionForObjects
	if !useBound && !c.closureEscapes(f) {
		op := c.b.Create(ir.OpTrampoline, loc, []*ir.Value{tuple, sym},
			[]types.Type{&types.BoundFunctionType{Func: f.Type}}, nil)
		return op.Result(0), true
	}
	op := c.b.Create(ir.OpCreateBoundFunction, loc, []*ir.Value{tuple, sym},
		[]types.Type{&types.BoundFunctionType{Func: f.Type}}, nil)
	return op.Result(0), true
}

// closureEscapes decides whether a stack trampoline is safe. Without escape
// analysis on the IR the conservative answer is that every closure escapes,
// whatever the configuration, so materializeClosure always emits a bound
// function.
func (c *Core) closureEscapes(f *FuncInfo) bool {
	return true
}

// buildCaptureTuple materializes the capture record from current storage:
// refs for by-ref captures, loaded values otherwise.
func (c *Core) buildCaptureTuple(f *FuncInfo, loc errors.Position, ctx GenContext) (*ir.Value, bool) {
	operands := make([]*ir.Value, 0, len(f.CaptureTuple.Fields))
	for i, field := range f.CaptureTuple.Fields {
		v := f.Captured[i]
		// Resolve against the current scope: the captured name may itself
		// be a capture-tuple member here (nested closures).
		r, found := c.Lookup(v.Name, ctx)
		storage := v.Storage
		if found && r.Decl != nil && r.Decl.Storage != nil {
			storage = r.Decl.Storage
		}
		if storage == nil {
			c.unresolvedName(ctx, loc, v.Name)
			return nil, false
		}
		if _, byRef := field.Type.(*types.RefType); byRef {
			operands = append(operands, storage)
		} else {
			operands = append(operands, c.b.Load(loc, storage))
		}
	}
	op := c.b.Create(ir.OpCapture, loc, operands, []types.Type{f.CaptureTuple}, nil)
	return op.Result(0), true
}
