package ir

import (
	"fmt"

	"tsgen/pkg/types"
)

// Verify checks op/operand/region wellformedness over the whole module and
// the IR-visible structural invariants: every operand dominates its use
// (same or ancestor block), func regions carry entry blocks matching the
// function type, globals carry a sym_name, and store/if/while/do-while ops
// carry their expected operand and region counts. Vtable slot layout and
// adapter-vtable coverage are not checked.
func Verify(m *Module) error {
	v := &verifier{}
	v.verifyRegion(m.Body, nil)
	if len(v.problems) > 0 {
		return fmt.Errorf("ir verification failed: %s", v.problems[0])
	}
	return nil
}

type verifier struct {
	problems []string
}

func (v *verifier) errorf(format string, args ...interface{}) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *verifier) verifyRegion(r *Region, visible map[*Value]bool) {
	for _, blk := range r.Blocks {
		scope := make(map[*Value]bool, len(visible)+len(blk.Args))
		for val := range visible {
			scope[val] = true
		}
		for _, a := range blk.Args {
			scope[a] = true
		}
		for _, op := range blk.Ops {
			v.verifyOp(op, scope)
			for _, res := range op.Results {
				scope[res] = true
			}
		}
	}
}

func (v *verifier) verifyOp(op *Op, visible map[*Value]bool) {
	for i, operand := range op.Operands {
		if operand == nil {
			v.errorf("%s: nil operand %d", op.Kind, i)
			continue
		}
		if !visible[operand] {
			v.errorf("%s: operand %d does not dominate its use", op.Kind, i)
		}
	}

	switch op.Kind {
	case OpFunc:
		ft, ok := op.Attr("type").(*types.FunctionType)
		if !ok {
			v.errorf("func %q: missing function type attribute", op.StringAttr("sym_name"))
			break
		}
		if len(op.Regions) != 1 {
			v.errorf("func %q: expected one body region", op.StringAttr("sym_name"))
			break
		}
		if entry := op.Regions[0].EntryBlock(); entry != nil {
			if len(entry.Args) != len(ft.Inputs) {
				v.errorf("func %q: entry block has %d args, type has %d inputs",
					op.StringAttr("sym_name"), len(entry.Args), len(ft.Inputs))
			}
		}
	case OpGlobal:
		if op.StringAttr("sym_name") == "" {
			v.errorf("global without sym_name")
		}
	case OpStore:
		if len(op.Operands) != 2 {
			v.errorf("store: expected 2 operands")
		}
	case OpIf:
		if op.BoolAttr("expression") {
			if len(op.Operands) != 3 {
				v.errorf("if (expression form): expected cond, then, else operands")
			}
			break
		}
		if len(op.Regions) < 1 || len(op.Regions) > 2 {
			v.errorf("if: expected 1 or 2 regions")
		}
	case OpWhile, OpDoWhile:
		if len(op.Regions) != 2 {
			v.errorf("%s: expected cond and body regions", op.Kind)
		}
	}

	for _, region := range op.Regions {
		v.verifyRegion(region, visible)
	}
}
