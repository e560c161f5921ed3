package types

import (
	"fmt"
	"strings"
)

// FunctionType represents the type of a plain function: inputs -> results.
type FunctionType struct {
	Inputs     []Type
	Results    []Type
	IsVariadic bool
}

func (ft *FunctionType) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	for i, p := range ft.Inputs {
		if i > 0 {
			sb.WriteString(", ")
		}
		if ft.IsVariadic && i == len(ft.Inputs)-1 {
			sb.WriteString("...")
		}
		if p != nil {
			sb.WriteString(p.String())
		} else {
			sb.WriteString("<nil>")
		}
	}
	sb.WriteString(") -> (")
	for i, r := range ft.Results {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(r.String())
	}
	sb.WriteString(")")
	return sb.String()
}
func (ft *FunctionType) typeNode() {}
func (ft *FunctionType) Equals(other Type) bool {
	otherFt, ok := other.(*FunctionType)
	if !ok {
		return false
	}
	if ft.IsVariadic != otherFt.IsVariadic {
		return false
	}
	return typeListsEqual(ft.Inputs, otherFt.Inputs) && typeListsEqual(ft.Results, otherFt.Results)
}

// ReturnType is the single result type, or Void when the function returns
// nothing.
func (ft *FunctionType) ReturnType() Type {
	if len(ft.Results) == 0 {
		return Void
	}
	return ft.Results[0]
}

// HybridFunctionType is a function type whose `this` can still be inferred;
// interface method prototypes before per-impl patching carry it.
type HybridFunctionType struct {
	Func *FunctionType
}

func (ht *HybridFunctionType) String() string {
	return fmt.Sprintf("hybrid %s", ht.Func)
}
func (ht *HybridFunctionType) typeNode() {}
func (ht *HybridFunctionType) Equals(other Type) bool {
	otherHt, ok := other.(*HybridFunctionType)
	if !ok {
		return false
	}
	return ht.Func.Equals(otherHt.Func)
}

// BoundFunctionType carries an already-bound `this`/capture value alongside
// the function reference.
type BoundFunctionType struct {
	Func *FunctionType
}

func (bt *BoundFunctionType) String() string {
	return fmt.Sprintf("bound %s", bt.Func)
}
func (bt *BoundFunctionType) typeNode() {}
func (bt *BoundFunctionType) Equals(other Type) bool {
	otherBt, ok := other.(*BoundFunctionType)
	if !ok {
		return false
	}
	return bt.Func.Equals(otherBt.Func)
}

// UnwrapCallable strips hybrid/bound wrappers down to the FunctionType, or
// returns nil when t is not callable.
func UnwrapCallable(t Type) *FunctionType {
	switch ft := t.(type) {
	case *FunctionType:
		return ft
	case *HybridFunctionType:
		return ft.Func
	case *BoundFunctionType:
		return ft.Func
	default:
		return nil
	}
}

func typeListsEqual(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if (a[i] == nil) != (b[i] == nil) {
			return false
		}
		if a[i] != nil && !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}
