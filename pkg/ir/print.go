package ir

import (
	"fmt"
	"sort"
	"strings"
)

// Dump renders a module as text; the CLI and tests read it.
func Dump(m *Module) string {
	p := &printer{names: map[*Value]string{}}
	p.printf("module %q {\n", m.Name)
	p.indent++
	for _, op := range m.BodyBlock().Ops {
		p.printOp(op)
	}
	p.indent--
	p.printf("}\n")
	return p.sb.String()
}

// DumpOp renders a single operation (with its regions) as text.
func DumpOp(op *Op) string {
	p := &printer{names: map[*Value]string{}}
	p.printOp(op)
	return p.sb.String()
}

type printer struct {
	sb     strings.Builder
	indent int
	names  map[*Value]string
	nextID int
}

func (p *printer) printf(format string, args ...interface{}) {
	p.sb.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.sb, format, args...)
}

func (p *printer) name(v *Value) string {
	if n, ok := p.names[v]; ok {
		return n
	}
	n := fmt.Sprintf("%%%d", p.nextID)
	p.nextID++
	p.names[v] = n
	return n
}

func (p *printer) printOp(op *Op) {
	var sb strings.Builder

	if len(op.Results) > 0 {
		for i, r := range op.Results {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.name(r))
		}
		sb.WriteString(" = ")
	}
	sb.WriteString(op.Kind.String())

	if len(op.Operands) > 0 {
		sb.WriteString(" ")
		for i, o := range op.Operands {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.name(o))
		}
	}

	if len(op.Attrs) > 0 {
		keys := make([]string, 0, len(op.Attrs))
		for k := range op.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s = %v", k, op.Attrs[k])
		}
		sb.WriteString("}")
	}

	if len(op.Results) > 0 {
		sb.WriteString(" : ")
		for i, r := range op.Results {
			if i > 0 {
				sb.WriteString(", ")
			}
			if r.Type != nil {
				sb.WriteString(r.Type.String())
			} else {
				sb.WriteString("<nil>")
			}
		}
	}

	p.printf("%s", sb.String())

	if len(op.Regions) == 0 {
		p.sb.WriteString("\n")
		return
	}
	p.sb.WriteString(" (\n")
	p.indent++
	for ri, region := range op.Regions {
		if ri > 0 {
			p.printf("}, {\n")
		} else {
			p.printf("{\n")
		}
		p.indent++
		for _, blk := range region.Blocks {
			if len(blk.Args) > 0 {
				args := make([]string, len(blk.Args))
				for i, a := range blk.Args {
					args[i] = fmt.Sprintf("%s: %s", p.name(a), a.Type)
				}
				p.printf("^(%s):\n", strings.Join(args, ", "))
			}
			for _, o := range blk.Ops {
				p.printOp(o)
			}
		}
		p.indent--
	}
	p.printf("}\n")
	p.indent--
	p.printf(")\n")
}
