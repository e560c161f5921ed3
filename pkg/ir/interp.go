package ir

import (
	"fmt"
	"math"
	"strings"

	"tsgen/pkg/types"
)

// Interp is a reference evaluator over the emitted op set. It executes
// enough of the dialect to drive end-to-end tests: storage, arithmetic,
// structured control flow, calls, virtual and interface dispatch, closures,
// and the generator state-machine protocol.
type Interp struct {
	module  *Module
	globals map[string]*Cell
	Output  []string
}

// Cell is one mutable storage slot.
type Cell struct {
	V interface{}
}

// Undef is the runtime undefined value.
type Undef struct{}

// FuncRef names a function symbol.
type FuncRef struct {
	Name string
}

// Bound pairs a receiver (or capture tuple) with a function value.
type Bound struct {
	This interface{}
	Fn   interface{}
}

// Tuple is a mutable record with named or ordinal fields in order.
type Tuple struct {
	Keys  []string
	Cells []*Cell
}

// Get returns the cell for a field key, or nil.
func (t *Tuple) Get(key string) *Cell {
	for i, k := range t.Keys {
		if k == key {
			return t.Cells[i]
		}
	}
	return nil
}

// Array is a mutable array value.
type Array struct {
	Elems []*Cell
}

// Object is a class instance.
type Object struct {
	Class  string
	Fields map[string]*Cell
}

// Iface is a fat pointer: adapter vtable symbol plus receiver.
type Iface struct {
	VTable string
	This   interface{}
}

// VTableRef names a vtable global.
type VTableRef struct {
	Sym string
}

// NewInterp prepares an interpreter over a verified module: global cells
// are allocated and their initializer regions run.
func NewInterp(m *Module) (*Interp, error) {
	in := &Interp{module: m, globals: map[string]*Cell{}}
	for _, op := range m.BodyBlock().Ops {
		switch op.Kind {
		case OpGlobal:
			cell := &Cell{V: Undef{}}
			in.globals[op.StringAttr("sym_name")] = cell
			if len(op.Regions) == 1 && op.Regions[0].EntryBlock() != nil {
				frame := newFrame(nil)
				if err := in.execBlock(op.Regions[0].EntryBlock(), frame); err != nil {
					return nil, err
				}
				if last := lastResult(op.Regions[0].EntryBlock(), frame); last != nil {
					cell.V = last
				}
			}
		case OpGlobalConstructor:
			frame := newFrame(nil)
			if entry := op.Regions[0].EntryBlock(); entry != nil {
				if err := in.execBlock(entry, frame); err != nil {
					return nil, err
				}
			}
		}
	}
	return in, nil
}

func lastResult(b *Block, f *frame) interface{} {
	for i := len(b.Ops) - 1; i >= 0; i-- {
		if len(b.Ops[i].Results) > 0 {
			return f.get(b.Ops[i].Result(0))
		}
	}
	return nil
}

// frame is one function activation.
type frame struct {
	values map[*Value]interface{}
	seek   int // non-zero: skip ops until the matching state_label
	parent *frame
}

func newFrame(parent *frame) *frame {
	return &frame{values: map[*Value]interface{}{}, parent: parent}
}

func (f *frame) get(v *Value) interface{} {
	if val, ok := f.values[v]; ok {
		return val
	}
	if f.parent != nil {
		return f.parent.get(v)
	}
	return Undef{}
}

func (f *frame) set(v *Value, val interface{}) { f.values[v] = val }

// control-flow signals
type returnSignal struct{ value interface{} }
type breakSignal struct{ label string }
type continueSignal struct{ label string }
type thrownSignal struct{ value interface{} }

func (t thrownSignal) Error() string { return fmt.Sprintf("uncaught: %v", t.value) }

type ctrlError struct {
	sig interface{}
}

func (c ctrlError) Error() string { return "control" }

// Call invokes a function symbol with the given runtime arguments.
func (in *Interp) Call(name string, args ...interface{}) (interface{}, error) {
	fn := in.module.FindFunc(name)
	if fn == nil {
		return nil, fmt.Errorf("interp: no function %q", name)
	}
	return in.callFunc(fn, args)
}

// CallBound invokes a bound function value (e.g. a generator's next).
func (in *Interp) CallBound(b *Bound, args ...interface{}) (interface{}, error) {
	return in.invoke(b.Fn, append([]interface{}{b.This}, args...))
}

func (in *Interp) invoke(fnVal interface{}, args []interface{}) (interface{}, error) {
	switch f := fnVal.(type) {
	case FuncRef:
		if strings.HasPrefix(f.Name, "#_array_") {
			return in.arrayBuiltin(f.Name, args)
		}
		fn := in.module.FindFunc(f.Name)
		if fn == nil {
			return nil, fmt.Errorf("interp: no function %q", f.Name)
		}
		return in.callFunc(fn, args)
	case *Bound:
		return in.invoke(f.Fn, append([]interface{}{f.This}, args...))
	default:
		return nil, fmt.Errorf("interp: value %T is not callable", fnVal)
	}
}

func (in *Interp) callFunc(fn *Op, args []interface{}) (interface{}, error) {
	entry := fn.Regions[0].EntryBlock()
	if entry == nil {
		return Undef{}, nil
	}
	f := newFrame(nil)
	for i, arg := range entry.Args {
		if i < len(args) {
			f.set(arg, args[i])
		} else {
			f.set(arg, Undef{})
		}
	}
	err := in.execBlock(entry, f)
	if err != nil {
		var ctrl ctrlError
		if as(err, &ctrl) {
			if ret, ok := ctrl.sig.(returnSignal); ok {
				return ret.value, nil
			}
		}
		return nil, err
	}
	return Undef{}, nil
}

func as(err error, target *ctrlError) bool {
	if c, ok := err.(ctrlError); ok {
		*target = c
		return true
	}
	return false
}

// execBlock runs a block's ops, honoring seek mode: while seeking, ops are
// skipped unless they contain the target state label.
func (in *Interp) execBlock(b *Block, f *frame) error {
	for _, op := range b.Ops {
		if f.seek != 0 {
			if op.Kind == OpStateLabel && op.IntAttr("state") == f.seek {
				f.seek = 0
				continue
			}
			if !containsStateLabel(op, f.seek) {
				// Value-producing ops still run while seeking so later uses
				// of their results see defined values; side effects and
				// control flow are skipped.
				if !resumeTransparent(op) {
					continue
				}
			}
			// Otherwise descend: the op's execution resumes inside.
		}
		if err := in.execOp(op, f); err != nil {
			return err
		}
	}
	return nil
}

// resumeTransparent reports ops safe to evaluate while fast-forwarding to a
// state label: addressing, loads, and pure computation.
func resumeTransparent(op *Op) bool {
	switch op.Kind {
	case OpConstant, OpUndef, OpVariable, OpFieldRef, OpElementRef, OpAddressOf,
		OpSymbolRef, OpLoad, OpCast, OpArith, OpUnary, OpCompare, OpTypeOf,
		OpCreateBoundFunction, OpTrampoline:
		return true
	case OpIf:
		return op.BoolAttr("expression")
	default:
		return false
	}
}

func containsStateLabel(op *Op, state int) bool {
	if op.Kind == OpStateLabel && op.IntAttr("state") == state {
		return true
	}
	for _, r := range op.Regions {
		for _, blk := range r.Blocks {
			for _, o := range blk.Ops {
				if containsStateLabel(o, state) {
					return true
				}
			}
		}
	}
	return false
}

func (in *Interp) execOp(op *Op, f *frame) error {
	switch op.Kind {
	case OpConstant:
		f.set(op.Result(0), constValue(op))
	case OpUndef:
		f.set(op.Result(0), Undef{})

	case OpVariable:
		cell := &Cell{V: Undef{}}
		if len(op.Operands) == 1 {
			cell.V = f.get(op.Operands[0])
		}
		f.set(op.Result(0), cell)
	case OpStore:
		cell, ok := f.get(op.Operands[1]).(*Cell)
		if !ok {
			return fmt.Errorf("interp: store into non-ref")
		}
		cell.V = f.get(op.Operands[0])
	case OpLoad:
		cell, ok := f.get(op.Operands[0]).(*Cell)
		if !ok {
			return fmt.Errorf("interp: load from non-ref")
		}
		f.set(op.Result(0), cell.V)
	case OpAddressOf:
		name := op.StringAttr("global")
		cell, ok := in.globals[name]
		if !ok {
			cell = &Cell{V: Undef{}}
			in.globals[name] = cell
		}
		f.set(op.Result(0), cell)

	case OpFieldRef:
		cell, err := in.fieldCell(f.get(op.Operands[0]), op.StringAttr("field"))
		if err != nil {
			return err
		}
		f.set(op.Result(0), cell)
	case OpElementRef:
		cell, err := in.elementCell(f.get(op.Operands[0]), f.get(op.Operands[1]))
		if err != nil {
			return err
		}
		f.set(op.Result(0), cell)

	case OpArith:
		f.set(op.Result(0), arith(op.StringAttr("op"), f.get(op.Operands[0]), f.get(op.Operands[1])))
	case OpUnary:
		f.set(op.Result(0), unary(op.StringAttr("op"), f.get(op.Operands[0])))
	case OpCompare:
		f.set(op.Result(0), compare(op.StringAttr("pred"), f.get(op.Operands[0]), f.get(op.Operands[1])))
	case OpCast:
		f.set(op.Result(0), castRuntime(f.get(op.Operands[0]), op.Result(0).Type))
	case OpTypeOf:
		f.set(op.Result(0), typeOfRuntime(f.get(op.Operands[0])))

	case OpIf:
		return in.execIf(op, f)
	case OpWhile:
		return in.execWhile(op, f, false)
	case OpDoWhile:
		return in.execWhile(op, f, true)
	case OpFor:
		return in.execFor(op, f)
	case OpSwitch:
		return in.execSwitch(op, f)
	case OpLabeled:
		err := in.execRegion(op.Regions[0], f)
		if brk, ok := errSignal(err).(breakSignal); ok && (brk.label == "" || brk.label == op.StringAttr("label")) {
			return nil
		}
		return err
	case OpBranch:
		// condition marker; value already computed
	case OpBreak:
		return ctrlError{sig: breakSignal{label: op.StringAttr("label")}}
	case OpContinue:
		return ctrlError{sig: continueSignal{label: op.StringAttr("label")}}

	case OpTry:
		return in.execTry(op, f)
	case OpThrow:
		return ctrlError{sig: thrownSignal{value: f.get(op.Operands[0])}}

	case OpReturnVal, OpYieldReturnVal:
		var v interface{} = Undef{}
		if len(op.Operands) == 1 {
			v = f.get(op.Operands[0])
		}
		return ctrlError{sig: returnSignal{value: v}}
	case OpStateLabel:
		// plain marker outside seek mode
	case OpExit:
		return ctrlError{sig: returnSignal{value: Undef{}}}

	case OpCall:
		args := make([]interface{}, len(op.Operands))
		for i, o := range op.Operands {
			args[i] = f.get(o)
		}
		out, err := in.invoke(FuncRef{Name: op.StringAttr("callee")}, args)
		if err != nil {
			return err
		}
		if len(op.Results) > 0 {
			f.set(op.Result(0), out)
		}
	case OpCallIndirect:
		fnVal := f.get(op.Operands[0])
		args := make([]interface{}, 0, len(op.Operands)-1)
		for _, o := range op.Operands[1:] {
			args = append(args, f.get(o))
		}
		out, err := in.invoke(fnVal, args)
		if err != nil {
			return err
		}
		if len(op.Results) > 0 {
			f.set(op.Result(0), out)
		}

	case OpSymbolRef:
		f.set(op.Result(0), FuncRef{Name: op.StringAttr("identifier")})
	case OpThisSymbolRef:
		// `this` reaches the interpreter as a block argument; standalone
		// refs only appear in detached prototypes.
		f.set(op.Result(0), Undef{})
	case OpThisVirtualSymbolRef:
		recv := f.get(op.Operands[0])
		entry, err := in.virtualEntry(recv, op.IntAttr("vindex"))
		if err != nil {
			return err
		}
		f.set(op.Result(0), &Bound{This: recv, Fn: entry})
	case OpInterfaceSymbolRef:
		iv, ok := f.get(op.Operands[0]).(*Iface)
		if !ok {
			return fmt.Errorf("interp: interface dispatch on non-interface value")
		}
		entry, err := in.adapterEntry(iv, op.IntAttr("slot"))
		if err != nil {
			return err
		}
		switch e := entry.(type) {
		case *Cell:
			f.set(op.Result(0), e)
		case FuncRef:
			f.set(op.Result(0), &Bound{This: iv.This, Fn: e})
		case int64:
			// Missing conditional member: dispatching through it traps.
			return fmt.Errorf("interp: missing optional interface member (slot %d)", op.IntAttr("slot"))
		default:
			f.set(op.Result(0), entry)
		}
	case OpVTableOffsetRef:
		if field := op.StringAttr("field"); field != "" {
			f.set(op.Result(0), fieldOffset{field: field})
		} else {
			f.set(op.Result(0), VTableRef{Sym: op.StringAttr("vtable")})
		}

	case OpAccessorRead:
		args := make([]interface{}, len(op.Operands))
		for i, o := range op.Operands {
			args[i] = f.get(o)
		}
		out, err := in.invoke(FuncRef{Name: op.StringAttr("getter")}, args)
		if err != nil {
			return err
		}
		f.set(op.Result(0), out)
	case OpAccessorWrite:
		args := make([]interface{}, len(op.Operands))
		for i, o := range op.Operands {
			args[i] = f.get(o)
		}
		if _, err := in.invoke(FuncRef{Name: op.StringAttr("setter")}, args); err != nil {
			return err
		}

	case OpNew:
		f.set(op.Result(0), in.newObject(op.StringAttr("class"), op.Result(0).Type))
	case OpDelete:
		// Storage reclamation is a backend concern; nothing to observe here.

	case OpCreateTuple, OpCapture:
		f.set(op.Result(0), in.makeTuple(op, f))
	case OpCreateArray, OpNewArray:
		arr := &Array{}
		spreads, _ := op.Attr("spreads").([]bool)
		for i, o := range op.Operands {
			v := f.get(o)
			if i < len(spreads) && spreads[i] {
				if src, ok := v.(*Array); ok {
					for _, c := range src.Elems {
						arr.Elems = append(arr.Elems, &Cell{V: c.V})
					}
					continue
				}
			}
			arr.Elems = append(arr.Elems, &Cell{V: v})
		}
		f.set(op.Result(0), arr)

	case OpNewInterface:
		vt, _ := f.get(op.Operands[0]).(VTableRef)
		f.set(op.Result(0), &Iface{VTable: vt.Sym, This: f.get(op.Operands[1])})
	case OpExtractInterfaceThis:
		iv, ok := f.get(op.Operands[0]).(*Iface)
		if !ok {
			return fmt.Errorf("interp: extract_interface_this on non-interface")
		}
		f.set(op.Result(0), iv.This)

	case OpTrampoline, OpCreateBoundFunction:
		f.set(op.Result(0), &Bound{This: f.get(op.Operands[0]), Fn: f.get(op.Operands[1])})

	case OpPrint:
		parts := make([]string, len(op.Operands))
		for i, o := range op.Operands {
			parts[i] = formatRuntime(f.get(o))
		}
		in.Output = append(in.Output, strings.Join(parts, " "))
	case OpAssert:
		if !truthy(f.get(op.Operands[0])) {
			msg := "assertion failed"
			if len(op.Operands) > 1 {
				msg = formatRuntime(f.get(op.Operands[1]))
			}
			return fmt.Errorf("interp: %s", msg)
		}

	case OpFunc, OpGlobal, OpGlobalConstructor:
		// module-level; handled at setup

	default:
		return fmt.Errorf("interp: unsupported op %s", op.Kind)
	}
	return nil
}

func errSignal(err error) interface{} {
	if err == nil {
		return nil
	}
	if c, ok := err.(ctrlError); ok {
		return c.sig
	}
	return nil
}

func (in *Interp) execRegion(r *Region, f *frame) error {
	if r.EntryBlock() == nil {
		return nil
	}
	return in.execBlock(r.EntryBlock(), f)
}

// regionCondition evaluates a cond region and reads its branch value.
func (in *Interp) regionCondition(r *Region, f *frame) (bool, error) {
	entry := r.EntryBlock()
	if entry == nil {
		return false, nil
	}
	if err := in.execBlock(entry, f); err != nil {
		return false, err
	}
	for i := len(entry.Ops) - 1; i >= 0; i-- {
		if entry.Ops[i].Kind == OpBranch && entry.Ops[i].BoolAttr("condition") {
			return truthy(f.get(entry.Ops[i].Operands[0])), nil
		}
	}
	return false, nil
}

func (in *Interp) execIf(op *Op, f *frame) error {
	if op.BoolAttr("expression") {
		// select form: operands are cond, then-value, else-value
		if truthy(f.get(op.Operands[0])) {
			f.set(op.Result(0), f.get(op.Operands[1]))
		} else {
			f.set(op.Result(0), f.get(op.Operands[2]))
		}
		return nil
	}
	// Seek mode: resume inside whichever region holds the label.
	if f.seek != 0 {
		for _, r := range op.Regions {
			if regionHasLabel(r, f.seek) {
				return in.execRegion(r, f)
			}
		}
		return nil
	}
	if truthy(f.get(op.Operands[0])) {
		return in.execRegion(op.Regions[0], f)
	}
	if len(op.Regions) > 1 {
		return in.execRegion(op.Regions[1], f)
	}
	return nil
}

func regionHasLabel(r *Region, state int) bool {
	for _, blk := range r.Blocks {
		for _, o := range blk.Ops {
			if containsStateLabel(o, state) {
				return true
			}
		}
	}
	return false
}

func (in *Interp) execWhile(op *Op, f *frame, doFirst bool) error {
	label := op.StringAttr("label")
	condRegion, bodyRegion := op.Regions[0], op.Regions[1]
	if doFirst {
		bodyRegion, condRegion = op.Regions[0], op.Regions[1]
	}

	resumed := false
	if f.seek != 0 && regionHasLabel(bodyRegion, f.seek) {
		// Resume mid-body, then fall into the normal loop.
		if err := in.execRegion(bodyRegion, f); err != nil {
			if done, ferr := loopSignal(err, label); done {
				return ferr
			}
		}
		resumed = true
	}

	first := doFirst && !resumed
	for {
		if !first {
			ok, err := in.regionCondition(condRegion, f)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		first = false
		if err := in.execRegion(bodyRegion, f); err != nil {
			if done, ferr := loopSignal(err, label); done {
				return ferr
			}
		}
	}
}

// loopSignal folds a control signal for a loop: (true, nil) means the loop
// terminates cleanly, (true, err) propagates, (false, _) continues.
func loopSignal(err error, label string) (bool, error) {
	switch sig := errSignal(err).(type) {
	case breakSignal:
		if sig.label == "" || sig.label == label {
			return true, nil
		}
		return true, err
	case continueSignal:
		if sig.label == "" || sig.label == label {
			return false, nil
		}
		return true, err
	default:
		return true, err
	}
}

func (in *Interp) execFor(op *Op, f *frame) error {
	label := op.StringAttr("label")
	condRegion, bodyRegion, incrRegion := op.Regions[0], op.Regions[1], op.Regions[2]

	if f.seek != 0 && regionHasLabel(bodyRegion, f.seek) {
		if err := in.execRegion(bodyRegion, f); err != nil {
			if done, ferr := loopSignal(err, label); done {
				return ferr
			}
		}
		if err := in.execRegion(incrRegion, f); err != nil {
			return err
		}
	}

	for {
		ok, err := in.regionCondition(condRegion, f)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := in.execRegion(bodyRegion, f); err != nil {
			done, ferr := loopSignal(err, label)
			if done {
				return ferr
			}
		}
		if err := in.execRegion(incrRegion, f); err != nil {
			return err
		}
	}
}

func (in *Interp) execSwitch(op *Op, f *frame) error {
	if op.BoolAttr("state_dispatch") {
		state := toInt(f.get(op.Operands[0]))
		if state != 0 {
			f.seek = int(state)
		}
		return nil
	}

	// Operand 0 is the discriminant; the rest are case values in region
	// order, skipping the default region.
	disc := f.get(op.Operands[0])
	defaultIdx := op.IntAttr("default_index")
	match := -1
	caseOperand := 1
	for i := 0; i < len(op.Regions); i++ {
		if i == defaultIdx {
			continue
		}
		if caseOperand < len(op.Operands) &&
			truthy(compare("==", disc, f.get(op.Operands[caseOperand]))) {
			match = i
			break
		}
		caseOperand++
	}
	if match < 0 {
		match = defaultIdx
	}
	if match < 0 {
		return nil
	}
	// Fall through from the matched region until a break.
	for i := match; i < len(op.Regions); i++ {
		err := in.execRegion(op.Regions[i], f)
		if err != nil {
			if _, ok := errSignal(err).(breakSignal); ok {
				return nil
			}
			return err
		}
	}
	return nil
}

func (in *Interp) execTry(op *Op, f *frame) error {
	err := in.execRegion(op.Regions[0], f)
	thrown, wasThrow := errSignal(err).(thrownSignal)

	regionIdx := 1
	if op.BoolAttr("has_catch") {
		if wasThrow {
			catchRegion := op.Regions[regionIdx]
			err = nil
			if entry := catchRegion.EntryBlock(); entry != nil {
				if len(entry.Args) > 0 {
					f.set(entry.Args[0], thrown.value)
				}
				err = in.execBlock(entry, f)
			}
		}
		regionIdx++
	}

	// finally runs on all exit paths
	if op.BoolAttr("has_finally") && regionIdx < len(op.Regions) {
		if ferr := in.execRegion(op.Regions[regionIdx], f); ferr != nil {
			return ferr
		}
	}
	return err
}

// --- runtime value helpers ---

func constValue(op *Op) interface{} {
	v := op.Attr("value")
	if list, ok := v.([]interface{}); ok {
		arr := &Array{}
		for _, e := range list {
			arr.Elems = append(arr.Elems, &Cell{V: e})
		}
		return arr
	}
	if v == nil && op.Attr("regex_pattern") != nil {
		return op.StringAttr("regex_pattern")
	}
	return v
}

func (in *Interp) makeTuple(op *Op, f *frame) *Tuple {
	t := &Tuple{}
	var fields []types.Field
	if tt, ok := op.Result(0).Type.(*types.TupleType); ok {
		fields = tt.Fields
	} else if ct, ok := op.Result(0).Type.(*types.ConstTupleType); ok {
		fields = ct.Fields
	}
	for i, o := range op.Operands {
		key := fmt.Sprintf("%d", i)
		if i < len(fields) {
			key = fields[i].ID.String()
		}
		t.Keys = append(t.Keys, key)
		t.Cells = append(t.Cells, &Cell{V: f.get(o)})
	}
	return t
}

func (in *Interp) newObject(class string, t types.Type) *Object {
	obj := &Object{Class: class, Fields: map[string]*Cell{}}
	if ct, ok := t.(*types.ClassType); ok && ct.Storage != nil {
		for _, field := range ct.Storage.Fields {
			obj.Fields[field.ID.String()] = &Cell{V: Undef{}}
		}
	}
	return obj
}

func (in *Interp) fieldCell(base interface{}, field string) (*Cell, error) {
	if cell, ok := base.(*Cell); ok {
		return in.fieldCell(cell.V, field)
	}
	switch b := base.(type) {
	case *Tuple:
		if c := b.Get(field); c != nil {
			return c, nil
		}
		// Late-bound fields appear on first touch.
		c := &Cell{V: Undef{}}
		b.Keys = append(b.Keys, field)
		b.Cells = append(b.Cells, c)
		return c, nil
	case *Object:
		if c, ok := b.Fields[field]; ok {
			return c, nil
		}
		c := &Cell{V: Undef{}}
		b.Fields[field] = c
		return c, nil
	case *Array:
		if field == "length" {
			return &Cell{V: int64(len(b.Elems))}, nil
		}
	case *Iface:
		return in.fieldCell(b.This, field)
	case string:
		if field == "length" {
			return &Cell{V: int64(len(b))}, nil
		}
	}
	return nil, fmt.Errorf("interp: no field %q on %T", field, base)
}

func (in *Interp) elementCell(base, idx interface{}) (*Cell, error) {
	if cell, ok := base.(*Cell); ok {
		return in.elementCell(cell.V, idx)
	}
	i := toInt(idx)
	switch b := base.(type) {
	case *Array:
		for int64(len(b.Elems)) <= i {
			b.Elems = append(b.Elems, &Cell{V: Undef{}})
		}
		return b.Elems[i], nil
	case *Tuple:
		if i >= 0 && int(i) < len(b.Cells) {
			return b.Cells[i], nil
		}
	case string:
		if i >= 0 && int(i) < len(b) {
			return &Cell{V: string(b[i])}, nil
		}
	}
	return nil, fmt.Errorf("interp: cannot index %T", base)
}

// virtualEntry resolves a virtual slot through the receiver's class vtable.
func (in *Interp) virtualEntry(recv interface{}, slot int) (interface{}, error) {
	obj, ok := recv.(*Object)
	if !ok {
		return nil, fmt.Errorf("interp: virtual dispatch on non-object %T", recv)
	}
	cell, ok := in.globals[obj.Class+".vtable"]
	if !ok {
		return nil, fmt.Errorf("interp: class %q has no vtable", obj.Class)
	}
	table, ok := cell.V.(*Tuple)
	if !ok || slot >= len(table.Cells) {
		return nil, fmt.Errorf("interp: bad vtable for %q", obj.Class)
	}
	return table.Cells[slot].V, nil
}

// adapterEntry resolves an interface slot through the adapter vtable:
// field offsets yield cells of the receiver, methods yield func refs.
func (in *Interp) adapterEntry(iv *Iface, slot int) (interface{}, error) {
	cell, ok := in.globals[iv.VTable]
	if !ok {
		return nil, fmt.Errorf("interp: no adapter vtable %q", iv.VTable)
	}
	table, ok := cell.V.(*Tuple)
	if !ok || slot >= len(table.Cells) {
		return nil, fmt.Errorf("interp: bad adapter vtable %q", iv.VTable)
	}
	entry := table.Cells[slot].V
	switch e := entry.(type) {
	case FuncRef:
		return e, nil
	case fieldOffset:
		return in.fieldCell(iv.This, e.field)
	case int64:
		return e, nil // sentinel
	default:
		return entry, nil
	}
}

// fieldOffset is the runtime form of a field-offset adapter entry.
type fieldOffset struct {
	field string
}

// --- primitive semantics ---

func truthy(v interface{}) bool {
	switch n := v.(type) {
	case bool:
		return n
	case int64:
		return n != 0
	case float64:
		return n != 0
	case string:
		return n != ""
	case Undef:
		return false
	case nil:
		return false
	default:
		return true
	}
}

func toInt(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return math.NaN()
	}
}

func isIntVal(v interface{}) bool {
	switch v.(type) {
	case int64, int:
		return true
	default:
		return false
	}
}

func arith(op string, l, r interface{}) interface{} {
	if ls, ok := l.(string); ok {
		return ls + formatRuntime(r)
	}
	if rs, ok := r.(string); ok {
		return formatRuntime(l) + rs
	}
	if isIntVal(l) && isIntVal(r) {
		li, ri := toInt(l), toInt(r)
		switch op {
		case "+":
			return li + ri
		case "-":
			return li - ri
		case "*":
			return li * ri
		case "<<":
			return li << uint(ri&63)
		case ">>":
			return li >> uint(ri&63)
		case "&":
			return li & ri
		case "|":
			return li | ri
		case "^":
			return li ^ ri
		}
	}
	lf, rf := toFloat(l), toFloat(r)
	switch op {
	case "+":
		return lf + rf
	case "-":
		return lf - rf
	case "*":
		return lf * rf
	case "/":
		return lf / rf
	case "%":
		return math.Mod(lf, rf)
	case "**":
		return math.Pow(lf, rf)
	}
	return Undef{}
}

func unary(op string, v interface{}) interface{} {
	switch op {
	case "!":
		return !truthy(v)
	case "-":
		if isIntVal(v) {
			return -toInt(v)
		}
		return -toFloat(v)
	case "~":
		return ^toInt(v)
	case "is_undefined":
		_, undef := v.(Undef)
		return undef
	}
	return Undef{}
}

func compare(pred string, l, r interface{}) interface{} {
	if ls, lok := l.(string); lok {
		if rs, rok := r.(string); rok {
			switch pred {
			case "==", "===":
				return ls == rs
			case "!=", "!==":
				return ls != rs
			case "<":
				return ls < rs
			case "<=":
				return ls <= rs
			case ">":
				return ls > rs
			case ">=":
				return ls >= rs
			}
		}
	}
	if lb, lok := l.(bool); lok {
		if rb, rok := r.(bool); rok {
			switch pred {
			case "==", "===":
				return lb == rb
			case "!=", "!==":
				return lb != rb
			}
		}
	}
	_, lu := l.(Undef)
	_, ru := r.(Undef)
	if lu || ru {
		switch pred {
		case "==", "===":
			return lu == ru
		case "!=", "!==":
			return lu != ru
		}
		return false
	}
	lf, rf := toFloat(l), toFloat(r)
	switch pred {
	case "==", "===":
		return lf == rf
	case "!=", "!==":
		return lf != rf
	case "<":
		return lf < rf
	case "<=":
		return lf <= rf
	case ">":
		return lf > rf
	case ">=":
		return lf >= rf
	}
	return false
}

func castRuntime(v interface{}, to types.Type) interface{} {
	switch types.WidenType(to) {
	case types.I32, types.I64, types.I128, types.Byte:
		if _, undef := v.(Undef); undef {
			return v
		}
		return toInt(v)
	case types.Number:
		if _, undef := v.(Undef); undef {
			return v
		}
		if isIntVal(v) || isFloat(v) {
			return toFloat(v)
		}
		return v
	case types.Boolean:
		return truthy(v)
	case types.String:
		if _, isStr := v.(string); isStr {
			return v
		}
		if _, undef := v.(Undef); undef {
			return v
		}
		return formatRuntime(v)
	default:
		return v
	}
}

func isFloat(v interface{}) bool {
	_, ok := v.(float64)
	return ok
}

func typeOfRuntime(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case int64, float64, int:
		return "number"
	case bool:
		return "boolean"
	case Undef:
		return "undefined"
	case *Object:
		return "class"
	case FuncRef, *Bound:
		return "function"
	default:
		return "object"
	}
}

func formatRuntime(v interface{}) string {
	switch n := v.(type) {
	case string:
		return n
	case Undef:
		return "undefined"
	case *Array:
		parts := make([]string, len(n.Elems))
		for i, c := range n.Elems {
			parts[i] = formatRuntime(c.V)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case *Tuple:
		parts := make([]string, len(n.Keys))
		for i, k := range n.Keys {
			parts[i] = fmt.Sprintf("%s: %s", k, formatRuntime(n.Cells[i].V))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// arrayBuiltin implements the bound array methods the lowering refers to.
func (in *Interp) arrayBuiltin(name string, args []interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("interp: %s without receiver", name)
	}
	arr, ok := args[0].(*Array)
	if !ok {
		return nil, fmt.Errorf("interp: %s on non-array", name)
	}
	switch name {
	case "#_array_push":
		for _, v := range args[1:] {
			arr.Elems = append(arr.Elems, &Cell{V: v})
		}
		return int64(len(arr.Elems)), nil
	case "#_array_pop":
		if len(arr.Elems) == 0 {
			return Undef{}, nil
		}
		last := arr.Elems[len(arr.Elems)-1]
		arr.Elems = arr.Elems[:len(arr.Elems)-1]
		return last.V, nil
	case "#_array_map":
		if len(args) < 2 {
			return nil, fmt.Errorf("interp: map requires a callback")
		}
		out := &Array{}
		for _, c := range arr.Elems {
			mapped, err := in.invoke(args[1], []interface{}{c.V})
			if err != nil {
				return nil, err
			}
			out.Elems = append(out.Elems, &Cell{V: mapped})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("interp: unknown array builtin %s", name)
	}
}
