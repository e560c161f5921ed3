package ast

import "tsgen/pkg/types"

// Construction helpers. Parsers and tests build trees through these; the
// narrowing pass uses them to synthesize injected statements.

func NewIdent(name string) *Identifier { return &Identifier{Name: name} }

func NewNumber(v float64) *NumberLiteral {
	return &NumberLiteral{Value: v}
}

// NewInt builds an integer-spelled numeric literal.
func NewInt(v int64) *NumberLiteral {
	return &NumberLiteral{Value: float64(v), IsInt: true, IntValue: v}
}

func NewString(v string) *StringLiteral { return &StringLiteral{Value: v} }

func NewBool(v bool) *BooleanLiteral { return &BooleanLiteral{Value: v} }

func NewCall(callee Expression, args ...Expression) *CallExpression {
	return &CallExpression{Callee: callee, Args: args}
}

func NewMember(obj Expression, name string) *MemberExpression {
	return &MemberExpression{Object: obj, Property: NewIdent(name)}
}

func NewIndex(obj, index Expression) *IndexExpression {
	return &IndexExpression{Object: obj, Index: index}
}

func NewInfix(op string, left, right Expression) *InfixExpression {
	return &InfixExpression{Op: op, Left: left, Right: right}
}

func NewAssign(left, right Expression) *AssignmentExpression {
	return &AssignmentExpression{Op: "=", Left: left, Right: right}
}

func NewBlock(stmts ...Statement) *BlockStatement {
	return &BlockStatement{Statements: stmts}
}

func NewExprStmt(e Expression) *ExpressionStatement {
	return &ExpressionStatement{Expr: e}
}

func NewReturn(v Expression) *ReturnStatement {
	return &ReturnStatement{Value: v}
}

// NewVarDecl builds a single-declarator variable statement.
func NewVarDecl(kind DeclKind, name string, typ TypeNode, init Expression) *VariableStatement {
	return &VariableStatement{
		Kind: kind,
		Declarations: []*VariableDeclarator{
			{Target: NewIdent(name), Type: typ, Init: init},
		},
	}
}

// NewNarrowedConst synthesizes `const name: <computed T> = name`; the
// narrowing pass injects these ahead of branch bodies.
func NewNarrowedConst(name string, t types.Type) *VariableStatement {
	vs := NewVarDecl(DeclConst, name, &ComputedTypeNode{Type: t}, NewIdent(name))
	vs.Synthetic = true
	return vs
}

// NewProgram wraps statements into a Program root.
func NewProgram(stmts ...Statement) *Program {
	return &Program{Statements: stmts}
}

// ResetProcessed clears the Processed flag on every statement of a program,
// including namespace bodies. The discovery pass calls this between the
// dummy fixpoint and the strict emit.
func ResetProcessed(stmts []Statement) {
	for _, s := range stmts {
		s.SetProcessed(false)
		if mod, ok := s.(*ModuleDeclaration); ok {
			ResetProcessed(mod.Body)
		}
	}
}
