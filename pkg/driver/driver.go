// Package driver wires the pipeline: a parser collaborator hands over an
// AST, the lowering core emits IR, the verifier checks it. The parser
// itself lives outside this module; it reaches us either as an ast.Program
// built in-process or as the JSON wire format of astjson.go.
package driver

import (
	"tsgen/pkg/ast"
	"tsgen/pkg/config"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/lower"
)

// Parser is the input collaborator: source text in, AST out.
type Parser interface {
	Parse(src string) (*ast.Program, []*errors.Diagnostic)
}

// Result is one compilation outcome.
type Result struct {
	Module      *ir.Module
	Diagnostics []*errors.Diagnostic
	OK          bool
}

// Compile lowers a program under the given options.
func Compile(prog *ast.Program, opts *config.Options) *Result {
	rep := errors.NewReporter()
	core := lower.NewCore(opts, rep)
	module, err := core.LowerProgram(prog)
	return &Result{
		Module:      module,
		Diagnostics: rep.Finalized(),
		OK:          err == nil,
	}
}
