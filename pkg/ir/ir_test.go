package ir

import (
	"strings"
	"testing"

	"tsgen/pkg/errors"
	"tsgen/pkg/types"
)

func TestBuilderInsertionPoints(t *testing.T) {
	m := NewModule("t", errors.Position{})
	b := NewBuilder(m)

	first := b.Create(OpConstant, errors.Position{}, nil, []types.Type{types.I32},
		map[string]interface{}{"value": int64(1)})
	fnOp := b.CreateWithRegions(OpFunc, errors.Position{}, nil, nil, map[string]interface{}{
		"sym_name": "f",
		"type":     &types.FunctionType{},
	}, 1)
	entry := b.NewBlock(fnOp.Regions[0], nil)

	b.SaveInsertionPoint()
	b.SetInsertionPointToEnd(entry)
	inner := b.Create(OpConstant, errors.Position{}, nil, []types.Type{types.I32},
		map[string]interface{}{"value": int64(2)})
	b.RestoreInsertionPoint()

	after := b.Create(OpConstant, errors.Position{}, nil, []types.Type{types.I32},
		map[string]interface{}{"value": int64(3)})

	body := m.BodyBlock().Ops
	if len(body) != 3 {
		t.Fatalf("module body has %d ops, want 3", len(body))
	}
	if body[0] != first || body[1] != fnOp || body[2] != after {
		t.Errorf("restore did not return to the outer position")
	}
	if len(entry.Ops) != 1 || entry.Ops[0] != inner {
		t.Errorf("inner op not placed in the function entry")
	}
}

func TestEraseOpKeepsInsertionPointStable(t *testing.T) {
	m := NewModule("t", errors.Position{})
	b := NewBuilder(m)
	a := b.Constant(errors.Position{}, types.I32, int64(1))
	b.Constant(errors.Position{}, types.I32, int64(2))
	b.EraseOp(a.Def)
	c := b.Constant(errors.Position{}, types.I32, int64(3))
	ops := m.BodyBlock().Ops
	if len(ops) != 2 {
		t.Fatalf("expected 2 ops after erase, got %d", len(ops))
	}
	if ops[1] != c.Def {
		t.Errorf("insertion point drifted after erase")
	}
}

func TestVerifyRejectsCrossScopeOperand(t *testing.T) {
	m := NewModule("t", errors.Position{})
	b := NewBuilder(m)

	fnA := b.CreateWithRegions(OpFunc, errors.Position{}, nil, nil, map[string]interface{}{
		"sym_name": "a", "type": &types.FunctionType{},
	}, 1)
	entryA := b.NewBlock(fnA.Regions[0], nil)
	b.SetInsertionPointToEnd(entryA)
	v := b.Constant(errors.Position{}, types.I32, int64(1))

	b.SetInsertionPointToEnd(m.BodyBlock())
	other := b.CreateWithRegions(OpFunc, errors.Position{}, nil, nil, map[string]interface{}{
		"sym_name": "b", "type": &types.FunctionType{},
	}, 1)
	entryB := b.NewBlock(other.Regions[0], nil)
	b.SetInsertionPointToEnd(entryB)
	b.Create(OpReturnVal, errors.Position{}, []*Value{v}, nil, nil)

	if err := Verify(m); err == nil {
		t.Fatalf("verifier must reject an operand from a sibling function")
	}
}

func TestVerifyAcceptsNestedRegionUse(t *testing.T) {
	m := NewModule("t", errors.Position{})
	b := NewBuilder(m)
	fnOp := b.CreateWithRegions(OpFunc, errors.Position{}, nil, nil, map[string]interface{}{
		"sym_name": "f", "type": &types.FunctionType{},
	}, 1)
	entry := b.NewBlock(fnOp.Regions[0], nil)
	b.SetInsertionPointToEnd(entry)
	cond := b.Constant(errors.Position{}, types.Boolean, true)
	ifOp := b.CreateWithRegions(OpIf, errors.Position{}, []*Value{cond}, nil, nil, 1)
	thenBlock := b.NewBlock(ifOp.Regions[0], nil)
	b.SetInsertionPointToEnd(thenBlock)
	// Using an outer value inside the nested region is fine.
	b.Create(OpReturnVal, errors.Position{}, []*Value{cond}, nil, nil)

	if err := Verify(m); err != nil {
		t.Fatalf("verifier rejected a legal nested use: %v", err)
	}
}

func TestInternerDeduplicates(t *testing.T) {
	in := NewInterner()
	a := in.Intern(&types.ArrayType{Elem: types.String})
	dup := in.Intern(&types.ArrayType{Elem: types.String})
	if a != dup {
		t.Errorf("structurally equal types must intern to one instance")
	}
	other := in.Intern(&types.ArrayType{Elem: types.Number})
	if a == other {
		t.Errorf("distinct types must not collapse")
	}
}

func TestDumpContainsSymbols(t *testing.T) {
	m := NewModule("t", errors.Position{})
	b := NewBuilder(m)
	b.CreateWithRegions(OpFunc, errors.Position{}, nil, nil, map[string]interface{}{
		"sym_name": "hello", "type": &types.FunctionType{},
	}, 1)
	out := Dump(m)
	if !strings.Contains(out, "func") || !strings.Contains(out, "hello") {
		t.Errorf("dump lacks the function symbol:\n%s", out)
	}
}

func TestInterpArithAndCalls(t *testing.T) {
	m := NewModule("t", errors.Position{})
	b := NewBuilder(m)
	ft := &types.FunctionType{
		Inputs:  []types.Type{types.I32, types.I32},
		Results: []types.Type{types.I32},
	}
	fnOp := b.CreateWithRegions(OpFunc, errors.Position{}, nil, nil, map[string]interface{}{
		"sym_name": "add", "type": ft,
	}, 1)
	entry := b.NewBlock(fnOp.Regions[0], ft.Inputs)
	b.SetInsertionPointToEnd(entry)
	sum := b.Create(OpArith, errors.Position{}, []*Value{entry.Args[0], entry.Args[1]},
		[]types.Type{types.I32}, map[string]interface{}{"op": "+"})
	b.Create(OpReturnVal, errors.Position{}, []*Value{sum.Result(0)}, nil, nil)

	in, err := NewInterp(m)
	if err != nil {
		t.Fatalf("interp: %v", err)
	}
	out, err := in.Call("add", int64(2), int64(40))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if out != int64(42) {
		t.Errorf("add(2, 40) = %v, want 42", out)
	}
}
