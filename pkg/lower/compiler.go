package lower

import (
	"fmt"

	"tsgen/pkg/ast"
	"tsgen/pkg/config"
	"tsgen/pkg/errors"
	"tsgen/pkg/ir"
	"tsgen/pkg/types"
)

// Core is the compiler state threaded through all lowering: builder, symbol
// store, object model registries, and the label stack. All state transitions
// happen on one goroutine; nothing here locks or suspends.
type Core struct {
	opts *config.Options
	rep  *errors.Reporter

	module *ir.Module
	b      *ir.Builder

	root    *Namespace
	nsStack []*Namespace
	scopes  []*Scope

	classesByFQN map[string]*ClassInfo
	ifacesByFQN  map[string]*InterfaceInfo
	enumsByFQN   map[string]*EnumInfo
	aliasParams  map[string][]string

	// tupleAdapters memoizes structural-cast adapter vtables keyed by
	// tuple type hash + interface fqn.
	tupleAdapters map[string]string

	labels       []labelFrame
	pendingLabel string

	anonCounter int
}

type labelFrame struct {
	name string // "" for unlabeled loops
	op   *ir.Op
	loop bool // break and continue both bind; otherwise break only
}

// NewCore builds a compiler for one translation unit.
func NewCore(opts *config.Options, rep *errors.Reporter) *Core {
	if opts == nil {
		opts = config.Default()
	}
	if rep == nil {
		rep = errors.NewReporter()
	}
	return &Core{
		opts:          opts,
		rep:           rep,
		root:          NewRootNamespace(),
		classesByFQN:  map[string]*ClassInfo{},
		ifacesByFQN:   map[string]*InterfaceInfo{},
		enumsByFQN:    map[string]*EnumInfo{},
		aliasParams:   map[string][]string{},
		tupleAdapters: map[string]string{},
	}
}

// Reporter exposes the diagnostic sink.
func (c *Core) Reporter() *errors.Reporter { return c.rep }

// Module returns the module under construction.
func (c *Core) Module() *ir.Module { return c.module }

func (c *Core) current() *Namespace {
	if len(c.nsStack) == 0 {
		return c.root
	}
	return c.nsStack[len(c.nsStack)-1]
}

func (c *Core) pushNamespace(ns *Namespace) { c.nsStack = append(c.nsStack, ns) }

func (c *Core) popNamespace() { c.nsStack = c.nsStack[:len(c.nsStack)-1] }

func (c *Core) anonName(prefix string) string {
	c.anonCounter++
	return fmt.Sprintf("%s_%d", prefix, c.anonCounter)
}

// errorAt reports a structural error diagnostic.
func (c *Core) errorAt(pos errors.Position, format string, args ...interface{}) {
	c.rep.ReportError(pos, format, args...)
}

// unresolvedName signals a recoverable resolution failure: record it in the
// sink; in strict mode also produce one diagnostic.
func (c *Core) unresolvedName(ctx GenContext, pos errors.Position, name string) {
	if ctx.Unresolved != nil {
		ctx.Unresolved.Add(name, pos)
	}
	if !ctx.AllowPartialResolve {
		c.errorAt(pos, "cannot resolve name '%s'", name)
	}
}

// LowerProgram runs the two-pass resolver over a program and returns the
// emitted module. Diagnostics are finalized into the core's reporter.
func (c *Core) LowerProgram(prog *ast.Program) (*ir.Module, error) {
	c.module = ir.NewModule("main", prog.Pos())
	c.b = ir.NewBuilder(c.module)

	if !c.runDiscovery(prog.Statements) {
		c.rep.Finalize()
		return nil, fmt.Errorf("lowering failed")
	}

	// Definitive strict pass.
	ast.ResetProcessed(prog.Statements)
	c.b.SetInsertionPointToEnd(c.module.BodyBlock())
	ctx := GenContext{
		AllowConstEval: true,
		Unresolved:     &UnresolvedSink{},
	}
	c.lowerTopLevel(prog.Statements, ctx)

	hadErrors := c.rep.PendingErrorCount() > 0
	c.rep.Finalize()
	if hadErrors {
		return nil, fmt.Errorf("lowering failed")
	}
	if err := ir.Verify(c.module); err != nil {
		return nil, err
	}
	return c.module, nil
}

// runDiscovery iterates dummy lowering over the top-level statement list
// until every statement resolves or no progress is made.
func (c *Core) runDiscovery(stmts []ast.Statement) bool {
	prevUnresolved := -1
	for {
		sink := &UnresolvedSink{}
		cleanups := &CleanupList{}
		c.rep.TakePending() // clear pending diagnostics from the last round
		c.b.SetInsertionPointToEnd(c.module.BodyBlock())

		ctx := GenContext{
			AllowPartialResolve: true,
			DummyRun:            true,
			AllowConstEval:      true,
			SkipProcessed:       true,
			Unresolved:          sink,
			Cleanups:            cleanups,
		}

		unresolvedCount := 0
		bodyMark := len(c.module.BodyBlock().Ops)
		for _, stmt := range stmts {
			if stmt.IsProcessed() {
				continue
			}
			if c.lowerTopStatement(stmt, ctx) {
				stmt.SetProcessed(true)
			} else {
				unresolvedCount++
			}
		}

		// Release every operation the dummy pass created.
		cleanups.Release(c.b)
		c.releaseTopLevel(bodyMark)

		if unresolvedCount == 0 {
			c.rep.TakePending()
			return true
		}
		if unresolvedCount == prevUnresolved {
			// No progress: surface the diagnostics of the stuck round. The
			// pending list already holds them; when the round produced none
			// (partial resolve suppresses), report each unresolved reference
			// recorded in the sink.
			if c.rep.PendingErrorCount() == 0 {
				for _, ref := range sink.Refs {
					c.errorAt(ref.Pos, "cannot resolve name '%s'", ref.Name)
				}
			}
			return false
		}
		prevUnresolved = unresolvedCount
	}
}

// releaseTopLevel truncates the module body back to mark, dropping every
// top-level op a dummy round appended (nested ops die with their parents).
// The insertion point is clamped only when it pointed past the truncation.
func (c *Core) releaseTopLevel(mark int) {
	body := c.module.BodyBlock()
	for len(body.Ops) > mark {
		c.b.EraseOp(body.Ops[len(body.Ops)-1])
	}
	if ip := c.b.InsertionPoint(); ip.Block == body && ip.Index > len(body.Ops) {
		c.b.SetInsertionPointToEnd(body)
	}
}

// lowerTopLevel is the strict pass: declarations emit at module scope while
// other statements collect into the synthetic entry function.
func (c *Core) lowerTopLevel(stmts []ast.Statement, ctx GenContext) {
	var mainStmts []ast.Statement
	for _, stmt := range stmts {
		if isDeclarationStatement(stmt) {
			if c.lowerTopStatement(stmt, ctx) {
				stmt.SetProcessed(true)
			}
		} else {
			mainStmts = append(mainStmts, stmt)
		}
	}
	if len(mainStmts) > 0 {
		c.emitMain(mainStmts, ctx)
	}
}

func isDeclarationStatement(stmt ast.Statement) bool {
	switch stmt.(type) {
	case *ast.FunctionDeclaration, *ast.ClassDeclaration, *ast.InterfaceDeclaration,
		*ast.EnumDeclaration, *ast.TypeAliasDeclaration, *ast.ImportEqualsDeclaration,
		*ast.ModuleDeclaration, *ast.VariableStatement:
		return true
	default:
		return false
	}
}

// lowerTopStatement lowers one top-level statement. In dummy mode non
// declaration statements are probed inside a scratch function.
func (c *Core) lowerTopStatement(stmt ast.Statement, ctx GenContext) bool {
	switch s := stmt.(type) {
	case *ast.FunctionDeclaration:
		return c.lowerFunctionDeclaration(s, ctx)
	case *ast.ClassDeclaration:
		return c.lowerClassDeclaration(s, ctx)
	case *ast.InterfaceDeclaration:
		return c.lowerInterfaceDeclaration(s, ctx)
	case *ast.EnumDeclaration:
		return c.lowerEnumDeclaration(s, ctx)
	case *ast.TypeAliasDeclaration:
		return c.lowerTypeAliasDeclaration(s, ctx)
	case *ast.ImportEqualsDeclaration:
		return c.lowerImportEquals(s, ctx)
	case *ast.ModuleDeclaration:
		return c.lowerModuleDeclaration(s, ctx)
	case *ast.VariableStatement:
		return c.lowerGlobalVariableStatement(s, ctx)
	default:
		if ctx.DummyRun {
			return c.probeStatement(stmt, ctx)
		}
		// Strict pass routes these through emitMain.
		return true
	}
}

// probeStatement lowers a free statement inside a throwaway function so the
// dummy pass can observe its dependencies.
func (c *Core) probeStatement(stmt ast.Statement, ctx GenContext) bool {
	ft := &types.FunctionType{}
	funcOp := c.b.CreateWithRegions(ir.OpFunc, stmt.Pos(), nil, nil, map[string]interface{}{
		"sym_name": c.anonName("__discovery"),
		"type":     ft,
	}, 1)
	ctx.Cleanups.Track(funcOp)
	entry := c.b.NewBlock(funcOp.Regions[0], nil)

	c.b.SaveInsertionPoint()
	c.b.SetInsertionPointToEnd(entry)
	defer c.b.RestoreInsertionPoint()

	depth := c.EnterFunctionScope()
	defer c.LeaveScope()
	ctx.FuncScopeDepth = depth
	ctx.FuncOp = funcOp
	ctx.ReturnType = types.Void
	return c.lowerStatement(stmt, ctx)
}

// emitMain wraps loose top-level statements into the synthetic entry
// function.
func (c *Core) emitMain(stmts []ast.Statement, ctx GenContext) {
	ft := &types.FunctionType{}
	loc := stmts[0].Pos()
	funcOp := c.b.CreateWithRegions(ir.OpFunc, loc, nil, nil, map[string]interface{}{
		"sym_name": "main",
		"type":     ft,
	}, 1)
	entry := c.b.NewBlock(funcOp.Regions[0], nil)

	c.b.SaveInsertionPoint()
	c.b.SetInsertionPointToEnd(entry)
	defer c.b.RestoreInsertionPoint()

	depth := c.EnterFunctionScope()
	defer c.LeaveScope()
	ctx.FuncScopeDepth = depth
	ctx.FuncOp = funcOp
	ctx.ReturnType = types.Void
	for _, stmt := range stmts {
		c.lowerStatement(stmt, ctx)
		stmt.SetProcessed(true)
	}
	c.b.Create(ir.OpExit, loc, nil, nil, nil)
}
