package driver

import (
	"encoding/json"
	"fmt"

	"tsgen/pkg/ast"
)

// DecodeProgram reads the parser collaborator's JSON wire format into an
// AST. Every node is an object with a "kind" discriminator; field names
// follow the ast package.
func DecodeProgram(data []byte) (*ast.Program, error) {
	var root jsonNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("ast json: %w", err)
	}
	if root.Kind != "Program" {
		return nil, fmt.Errorf("ast json: root must be a Program, got %q", root.Kind)
	}
	stmts, err := decodeStatements(root.Statements)
	if err != nil {
		return nil, err
	}
	return ast.NewProgram(stmts...), nil
}

// jsonNode is the superset shape of every wire node.
type jsonNode struct {
	Kind string `json:"kind"`

	// shared
	Name  string      `json:"name,omitempty"`
	Value interface{} `json:"value,omitempty"`
	Label string      `json:"label,omitempty"`
	Op    string      `json:"op,omitempty"`

	// expressions
	Left     *jsonNode   `json:"left,omitempty"`
	Right    *jsonNode   `json:"right,omitempty"`
	Object   *jsonNode   `json:"object,omitempty"`
	Property string      `json:"property,omitempty"`
	Index    *jsonNode   `json:"index,omitempty"`
	Callee   *jsonNode   `json:"callee,omitempty"`
	Args     []*jsonNode `json:"args,omitempty"`
	Cond     *jsonNode   `json:"cond,omitempty"`
	Then     *jsonNode   `json:"then,omitempty"`
	Else     *jsonNode   `json:"else,omitempty"`
	Elements []*jsonNode `json:"elements,omitempty"`
	Operand  *jsonNode   `json:"operand,omitempty"`
	Expr     *jsonNode   `json:"expr,omitempty"`
	Pattern  string      `json:"pattern,omitempty"`
	Flags    string      `json:"flags,omitempty"`
	Quasis   []string    `json:"quasis,omitempty"`
	Exprs    []*jsonNode `json:"exprs,omitempty"`

	// functions
	Params      []*jsonParam `json:"params,omitempty"`
	ReturnType  *jsonNode    `json:"returnType,omitempty"`
	Body        []*jsonNode  `json:"body,omitempty"`
	IsArrow     bool         `json:"isArrow,omitempty"`
	IsGenerator bool         `json:"isGenerator,omitempty"`
	IsAsync     bool         `json:"isAsync,omitempty"`

	// statements
	Statements   []*jsonNode       `json:"statements,omitempty"`
	DeclKind     string            `json:"declKind,omitempty"`
	Declarations []*jsonDeclarator `json:"declarations,omitempty"`
	Init         *jsonNode         `json:"init,omitempty"`
	Post         *jsonNode         `json:"post,omitempty"`
	Target       *jsonNode         `json:"target,omitempty"`
	Iterable     *jsonNode         `json:"iterable,omitempty"`
	IsAwait      bool              `json:"isAwait,omitempty"`
	Disc         *jsonNode         `json:"disc,omitempty"`
	Cases        []*jsonCase       `json:"cases,omitempty"`
	Block        []*jsonNode       `json:"block,omitempty"`
	CatchVar     string            `json:"catchVar,omitempty"`
	CatchType    *jsonNode         `json:"catchType,omitempty"`
	Catch        []*jsonNode       `json:"catch,omitempty"`
	Finally      []*jsonNode       `json:"finally,omitempty"`

	// declarations
	Extends    []*jsonNode   `json:"extends,omitempty"`
	Implements []*jsonNode   `json:"implements,omitempty"`
	Members    []*jsonMember `json:"members,omitempty"`
	IsAbstract bool          `json:"isAbstract,omitempty"`
	TypeParams []string      `json:"typeParams,omitempty"`
	Type       *jsonNode     `json:"type,omitempty"`
	TargetName string        `json:"targetName,omitempty"`

	// object literal
	Properties []*jsonProperty `json:"properties,omitempty"`
}

type jsonParam struct {
	Name           string    `json:"name"`
	Type           *jsonNode `json:"type,omitempty"`
	Init           *jsonNode `json:"init,omitempty"`
	Optional       bool      `json:"optional,omitempty"`
	IsRest         bool      `json:"isRest,omitempty"`
	AccessModifier string    `json:"accessModifier,omitempty"`
}

type jsonDeclarator struct {
	Name string    `json:"name,omitempty"`
	Targ *jsonNode `json:"target,omitempty"`
	Type *jsonNode `json:"type,omitempty"`
	Init *jsonNode `json:"init,omitempty"`
}

type jsonCase struct {
	Test *jsonNode   `json:"test,omitempty"`
	Body []*jsonNode `json:"body,omitempty"`
}

type jsonMember struct {
	Kind       string       `json:"kind"` // property, method, constructor, get, set
	Name       string       `json:"name,omitempty"`
	Type       *jsonNode    `json:"type,omitempty"`
	Init       *jsonNode    `json:"init,omitempty"`
	Params     []*jsonParam `json:"params,omitempty"`
	ReturnType *jsonNode    `json:"returnType,omitempty"`
	Body       []*jsonNode  `json:"body,omitempty"`
	Method     bool         `json:"method,omitempty"`
	IsStatic   bool         `json:"isStatic,omitempty"`
	IsAbstract bool         `json:"isAbstract,omitempty"`
	Optional   bool         `json:"optional,omitempty"`
	Modifier   string       `json:"modifier,omitempty"`
}

type jsonProperty struct {
	Key      string    `json:"key"`
	Value    *jsonNode `json:"value"`
	IsMethod bool      `json:"isMethod,omitempty"`
}

func decodeStatements(nodes []*jsonNode) ([]ast.Statement, error) {
	var out []ast.Statement
	for _, n := range nodes {
		s, err := decodeStatement(n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeStatement(n *jsonNode) (ast.Statement, error) {
	switch n.Kind {
	case "ExpressionStatement":
		e, err := decodeExpression(n.Expr)
		if err != nil {
			return nil, err
		}
		return ast.NewExprStmt(e), nil

	case "VariableStatement":
		stmt := &ast.VariableStatement{Kind: declKind(n.DeclKind)}
		for _, d := range n.Declarations {
			decl := &ast.VariableDeclarator{}
			if d.Name != "" {
				decl.Target = ast.NewIdent(d.Name)
			} else if d.Targ != nil {
				t, err := decodeTarget(d.Targ)
				if err != nil {
					return nil, err
				}
				decl.Target = t
			}
			if d.Type != nil {
				t, err := decodeTypeNode(d.Type)
				if err != nil {
					return nil, err
				}
				decl.Type = t
			}
			if d.Init != nil {
				e, err := decodeExpression(d.Init)
				if err != nil {
					return nil, err
				}
				decl.Init = e
			}
			stmt.Declarations = append(stmt.Declarations, decl)
		}
		return stmt, nil

	case "Block":
		stmts, err := decodeStatements(n.Statements)
		if err != nil {
			return nil, err
		}
		return ast.NewBlock(stmts...), nil

	case "If":
		cond, err := decodeExpression(n.Cond)
		if err != nil {
			return nil, err
		}
		thenS, err := decodeStatement(n.Then)
		if err != nil {
			return nil, err
		}
		out := &ast.IfStatement{Cond: cond, Then: thenS}
		if n.Else != nil {
			elseS, err := decodeStatement(n.Else)
			if err != nil {
				return nil, err
			}
			out.Else = elseS
		}
		return out, nil

	case "While":
		cond, err := decodeExpression(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := decodeStatement(n.Then)
		if err != nil {
			return nil, err
		}
		return &ast.WhileStatement{Cond: cond, Body: body}, nil

	case "For":
		out := &ast.ForStatement{}
		if n.Init != nil {
			init, err := decodeStatement(n.Init)
			if err != nil {
				return nil, err
			}
			out.Init = init
		}
		if n.Cond != nil {
			cond, err := decodeExpression(n.Cond)
			if err != nil {
				return nil, err
			}
			out.Cond = cond
		}
		if n.Post != nil {
			post, err := decodeExpression(n.Post)
			if err != nil {
				return nil, err
			}
			out.Post = post
		}
		body, err := decodeStatement(n.Then)
		if err != nil {
			return nil, err
		}
		out.Body = body
		return out, nil

	case "ForOf", "ForIn":
		target, err := decodeTarget(n.Target)
		if err != nil {
			return nil, err
		}
		iterable, err := decodeExpression(n.Iterable)
		if err != nil {
			return nil, err
		}
		body, err := decodeStatement(n.Then)
		if err != nil {
			return nil, err
		}
		if n.Kind == "ForIn" {
			return &ast.ForInStatement{Kind: declKind(n.DeclKind), Target: target, Object: iterable, Body: body}, nil
		}
		return &ast.ForOfStatement{Kind: declKind(n.DeclKind), Target: target, Iterable: iterable, Body: body, IsAwait: n.IsAwait}, nil

	case "Switch":
		disc, err := decodeExpression(n.Disc)
		if err != nil {
			return nil, err
		}
		out := &ast.SwitchStatement{Disc: disc}
		for _, cs := range n.Cases {
			decoded := &ast.SwitchCase{}
			if cs.Test != nil {
				t, err := decodeExpression(cs.Test)
				if err != nil {
					return nil, err
				}
				decoded.Test = t
			}
			body, err := decodeStatements(cs.Body)
			if err != nil {
				return nil, err
			}
			decoded.Body = body
			out.Cases = append(out.Cases, decoded)
		}
		return out, nil

	case "Labeled":
		body, err := decodeStatement(n.Then)
		if err != nil {
			return nil, err
		}
		return &ast.LabeledStatement{Label: n.Label, Body: body}, nil

	case "Break":
		return &ast.BreakStatement{Label: n.Label}, nil
	case "Continue":
		return &ast.ContinueStatement{Label: n.Label}, nil

	case "Return":
		out := &ast.ReturnStatement{}
		if n.Expr != nil {
			e, err := decodeExpression(n.Expr)
			if err != nil {
				return nil, err
			}
			out.Value = e
		}
		return out, nil

	case "Throw":
		e, err := decodeExpression(n.Expr)
		if err != nil {
			return nil, err
		}
		return &ast.ThrowStatement{Value: e}, nil

	case "Try":
		block, err := decodeStatements(n.Block)
		if err != nil {
			return nil, err
		}
		out := &ast.TryStatement{Block: ast.NewBlock(block...)}
		if n.CatchVar != "" || n.Catch != nil {
			out.CatchVar = ast.NewIdent(n.CatchVar)
			catch, err := decodeStatements(n.Catch)
			if err != nil {
				return nil, err
			}
			out.Catch = ast.NewBlock(catch...)
			if n.CatchType != nil {
				t, err := decodeTypeNode(n.CatchType)
				if err != nil {
					return nil, err
				}
				out.CatchType = t
			}
		}
		if n.Finally != nil {
			fin, err := decodeStatements(n.Finally)
			if err != nil {
				return nil, err
			}
			out.Finally = ast.NewBlock(fin...)
		}
		return out, nil

	case "FunctionDeclaration":
		fn, err := decodeFunction(n)
		if err != nil {
			return nil, err
		}
		return &ast.FunctionDeclaration{Func: fn}, nil

	case "Class":
		return decodeClass(n)

	case "Interface":
		return decodeInterface(n)

	case "Enum":
		out := &ast.EnumDeclaration{Name: ast.NewIdent(n.Name)}
		for _, m := range n.Members {
			em := &ast.EnumMemberNode{Name: m.Name}
			if m.Init != nil {
				e, err := decodeExpression(m.Init)
				if err != nil {
					return nil, err
				}
				em.Init = e
			}
			out.Members = append(out.Members, em)
		}
		return out, nil

	case "TypeAlias":
		t, err := decodeTypeNode(n.Type)
		if err != nil {
			return nil, err
		}
		return &ast.TypeAliasDeclaration{Name: ast.NewIdent(n.Name), TypeParams: n.TypeParams, Type: t}, nil

	case "ImportEquals":
		return &ast.ImportEqualsDeclaration{Name: ast.NewIdent(n.Name), Target: n.TargetName}, nil

	case "Module", "Namespace":
		body, err := decodeStatements(n.Statements)
		if err != nil {
			return nil, err
		}
		return &ast.ModuleDeclaration{
			Name:     ast.NewIdent(n.Name),
			Body:     body,
			IsModule: n.Kind == "Module",
		}, nil

	case "Empty":
		return &ast.EmptyStatement{}, nil

	default:
		return nil, fmt.Errorf("ast json: unknown statement kind %q", n.Kind)
	}
}

func declKind(s string) ast.DeclKind {
	switch s {
	case "const":
		return ast.DeclConst
	case "var":
		return ast.DeclVar
	default:
		return ast.DeclLet
	}
}

func decodeTarget(n *jsonNode) (ast.BindingTarget, error) {
	switch n.Kind {
	case "Identifier":
		return ast.NewIdent(n.Name), nil
	case "ArrayPattern":
		out := &ast.ArrayPattern{}
		for _, e := range n.Elements {
			if e == nil {
				out.Elements = append(out.Elements, nil)
				continue
			}
			t, err := decodeTarget(e)
			if err != nil {
				return nil, err
			}
			out.Elements = append(out.Elements, t)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("ast json: unknown binding target %q", n.Kind)
	}
}

func decodeFunction(n *jsonNode) (*ast.FunctionLiteral, error) {
	fn := &ast.FunctionLiteral{
		IsArrow:     n.IsArrow,
		IsGenerator: n.IsGenerator,
		IsAsync:     n.IsAsync,
	}
	if n.Name != "" {
		fn.Name = ast.NewIdent(n.Name)
	}
	params, err := decodeParams(n.Params)
	if err != nil {
		return nil, err
	}
	fn.Params = params
	if n.ReturnType != nil {
		t, err := decodeTypeNode(n.ReturnType)
		if err != nil {
			return nil, err
		}
		fn.ReturnType = t
	}
	if n.Body != nil {
		body, err := decodeStatements(n.Body)
		if err != nil {
			return nil, err
		}
		fn.Body = ast.NewBlock(body...)
	}
	return fn, nil
}

func decodeParams(params []*jsonParam) ([]*ast.Parameter, error) {
	var out []*ast.Parameter
	for _, p := range params {
		param := &ast.Parameter{
			Name:           ast.NewIdent(p.Name),
			Optional:       p.Optional,
			IsRest:         p.IsRest,
			AccessModifier: p.AccessModifier,
		}
		if p.Type != nil {
			t, err := decodeTypeNode(p.Type)
			if err != nil {
				return nil, err
			}
			param.Type = t
		}
		if p.Init != nil {
			e, err := decodeExpression(p.Init)
			if err != nil {
				return nil, err
			}
			param.Initializer = e
		}
		out = append(out, param)
	}
	return out, nil
}

func decodeClass(n *jsonNode) (*ast.ClassDeclaration, error) {
	out := &ast.ClassDeclaration{Name: ast.NewIdent(n.Name), IsAbstract: n.IsAbstract}
	for _, e := range n.Extends {
		expr, err := decodeExpression(e)
		if err != nil {
			return nil, err
		}
		out.Extends = append(out.Extends, expr)
	}
	for _, i := range n.Implements {
		t, err := decodeTypeNode(i)
		if err != nil {
			return nil, err
		}
		out.Implements = append(out.Implements, t)
	}
	for _, m := range n.Members {
		member := &ast.ClassMember{
			Name:       m.Name,
			IsStatic:   m.IsStatic,
			IsAbstract: m.IsAbstract,
			Optional:   m.Optional,
			Modifier:   m.Modifier,
		}
		switch m.Kind {
		case "property":
			member.Kind = ast.MemberProperty
			if m.Type != nil {
				t, err := decodeTypeNode(m.Type)
				if err != nil {
					return nil, err
				}
				member.Type = t
			}
			if m.Init != nil {
				e, err := decodeExpression(m.Init)
				if err != nil {
					return nil, err
				}
				member.Init = e
			}
		case "constructor":
			member.Kind = ast.MemberConstructor
			fn, err := decodeMemberFunc(m)
			if err != nil {
				return nil, err
			}
			member.Func = fn
		case "get":
			member.Kind = ast.MemberGetAccessor
			fn, err := decodeMemberFunc(m)
			if err != nil {
				return nil, err
			}
			member.Func = fn
		case "set":
			member.Kind = ast.MemberSetAccessor
			fn, err := decodeMemberFunc(m)
			if err != nil {
				return nil, err
			}
			member.Func = fn
		default:
			member.Kind = ast.MemberMethod
			fn, err := decodeMemberFunc(m)
			if err != nil {
				return nil, err
			}
			member.Func = fn
		}
		out.Members = append(out.Members, member)
	}
	return out, nil
}

func decodeMemberFunc(m *jsonMember) (*ast.FunctionLiteral, error) {
	fn := &ast.FunctionLiteral{}
	params, err := decodeParams(m.Params)
	if err != nil {
		return nil, err
	}
	fn.Params = params
	if m.ReturnType != nil {
		t, err := decodeTypeNode(m.ReturnType)
		if err != nil {
			return nil, err
		}
		fn.ReturnType = t
	}
	if m.Body != nil {
		body, err := decodeStatements(m.Body)
		if err != nil {
			return nil, err
		}
		fn.Body = ast.NewBlock(body...)
	}
	return fn, nil
}

func decodeInterface(n *jsonNode) (*ast.InterfaceDeclaration, error) {
	out := &ast.InterfaceDeclaration{Name: ast.NewIdent(n.Name)}
	for _, e := range n.Extends {
		t, err := decodeTypeNode(e)
		if err != nil {
			return nil, err
		}
		out.Extends = append(out.Extends, t)
	}
	for _, m := range n.Members {
		member := &ast.InterfaceMemberNode{Name: m.Name, Optional: m.Optional}
		if m.Method || m.Kind == "method" {
			fn, err := decodeMemberFunc(m)
			if err != nil {
				return nil, err
			}
			member.Method = fn
		} else if m.Type != nil {
			t, err := decodeTypeNode(m.Type)
			if err != nil {
				return nil, err
			}
			member.Type = t
		}
		out.Members = append(out.Members, member)
	}
	return out, nil
}

func decodeExpression(n *jsonNode) (ast.Expression, error) {
	if n == nil {
		return nil, fmt.Errorf("ast json: missing expression")
	}
	switch n.Kind {
	case "Identifier":
		return ast.NewIdent(n.Name), nil
	case "Number":
		f, _ := n.Value.(float64)
		if f == float64(int64(f)) {
			return ast.NewInt(int64(f)), nil
		}
		return ast.NewNumber(f), nil
	case "String":
		s, _ := n.Value.(string)
		return ast.NewString(s), nil
	case "Boolean":
		b, _ := n.Value.(bool)
		return ast.NewBool(b), nil
	case "Null":
		return &ast.NullLiteral{}, nil
	case "Regex":
		return &ast.RegexLiteral{Pattern: n.Pattern, Flags: n.Flags}, nil
	case "Template":
		out := &ast.TemplateLiteral{Quasis: n.Quasis}
		for _, e := range n.Exprs {
			expr, err := decodeExpression(e)
			if err != nil {
				return nil, err
			}
			out.Exprs = append(out.Exprs, expr)
		}
		return out, nil
	case "Array":
		out := &ast.ArrayLiteral{}
		for _, e := range n.Elements {
			expr, err := decodeExpression(e)
			if err != nil {
				return nil, err
			}
			out.Elements = append(out.Elements, expr)
		}
		return out, nil
	case "Object":
		out := &ast.ObjectLiteral{}
		for _, p := range n.Properties {
			v, err := decodeExpression(p.Value)
			if err != nil {
				return nil, err
			}
			out.Properties = append(out.Properties, &ast.ObjectProperty{
				Key: p.Key, Value: v, IsMethod: p.IsMethod,
			})
		}
		return out, nil
	case "Function", "Arrow":
		fn, err := decodeFunction(n)
		if err != nil {
			return nil, err
		}
		if n.Kind == "Arrow" {
			fn.IsArrow = true
		}
		return fn, nil
	case "Prefix":
		right, err := decodeExpression(n.Right)
		if err != nil {
			return nil, err
		}
		return &ast.PrefixExpression{Op: n.Op, Right: right}, nil
	case "Postfix":
		left, err := decodeExpression(n.Left)
		if err != nil {
			return nil, err
		}
		return &ast.PostfixExpression{Op: n.Op, Left: left}, nil
	case "Infix":
		left, err := decodeExpression(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpression(n.Right)
		if err != nil {
			return nil, err
		}
		return ast.NewInfix(n.Op, left, right), nil
	case "Assign":
		left, err := decodeExpression(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := decodeExpression(n.Right)
		if err != nil {
			return nil, err
		}
		op := n.Op
		if op == "" {
			op = "="
		}
		return &ast.AssignmentExpression{Op: op, Left: left, Right: right}, nil
	case "Conditional":
		cond, err := decodeExpression(n.Cond)
		if err != nil {
			return nil, err
		}
		thenE, err := decodeExpression(n.Then)
		if err != nil {
			return nil, err
		}
		elseE, err := decodeExpression(n.Else)
		if err != nil {
			return nil, err
		}
		return &ast.ConditionalExpression{Cond: cond, Then: thenE, Else: elseE}, nil
	case "Call", "New":
		callee, err := decodeExpression(n.Callee)
		if err != nil {
			return nil, err
		}
		var args []ast.Expression
		for _, a := range n.Args {
			e, err := decodeExpression(a)
			if err != nil {
				return nil, err
			}
			args = append(args, e)
		}
		if n.Kind == "New" {
			return &ast.NewExpression{Callee: callee, Args: args}, nil
		}
		return &ast.CallExpression{Callee: callee, Args: args}, nil
	case "Member":
		obj, err := decodeExpression(n.Object)
		if err != nil {
			return nil, err
		}
		return ast.NewMember(obj, n.Property), nil
	case "Index":
		obj, err := decodeExpression(n.Object)
		if err != nil {
			return nil, err
		}
		idx, err := decodeExpression(n.Index)
		if err != nil {
			return nil, err
		}
		return ast.NewIndex(obj, idx), nil
	case "Typeof":
		op, err := decodeExpression(n.Operand)
		if err != nil {
			return nil, err
		}
		return &ast.TypeofExpression{Operand: op}, nil
	case "Spread":
		op, err := decodeExpression(n.Operand)
		if err != nil {
			return nil, err
		}
		return &ast.SpreadElement{Arg: op}, nil
	case "Await":
		op, err := decodeExpression(n.Operand)
		if err != nil {
			return nil, err
		}
		return &ast.AwaitExpression{Arg: op}, nil
	case "Yield":
		out := &ast.YieldExpression{}
		if n.Operand != nil {
			op, err := decodeExpression(n.Operand)
			if err != nil {
				return nil, err
			}
			out.Arg = op
		}
		return out, nil
	case "This":
		return &ast.ThisExpression{}, nil
	case "Super":
		return &ast.SuperExpression{}, nil
	case "Delete":
		op, err := decodeExpression(n.Operand)
		if err != nil {
			return nil, err
		}
		return &ast.DeleteExpression{Operand: op}, nil
	case "As":
		e, err := decodeExpression(n.Expr)
		if err != nil {
			return nil, err
		}
		t, err := decodeTypeNode(n.Type)
		if err != nil {
			return nil, err
		}
		return &ast.AsExpression{Expr: e, Type: t}, nil
	default:
		return nil, fmt.Errorf("ast json: unknown expression kind %q", n.Kind)
	}
}

func decodeTypeNode(n *jsonNode) (ast.TypeNode, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case "TypeName":
		out := &ast.TypeName{Name: n.Name}
		for _, a := range n.Args {
			t, err := decodeTypeNode(a)
			if err != nil {
				return nil, err
			}
			out.Args = append(out.Args, t)
		}
		return out, nil
	case "ArrayType":
		elem, err := decodeTypeNode(n.Type)
		if err != nil {
			return nil, err
		}
		return &ast.ArrayTypeNode{Elem: elem}, nil
	case "TupleType":
		out := &ast.TupleTypeNode{}
		for _, e := range n.Elements {
			t, err := decodeTypeNode(e)
			if err != nil {
				return nil, err
			}
			out.Elems = append(out.Elems, t)
		}
		return out, nil
	case "UnionType", "IntersectionType":
		var members []ast.TypeNode
		for _, e := range n.Elements {
			t, err := decodeTypeNode(e)
			if err != nil {
				return nil, err
			}
			members = append(members, t)
		}
		if n.Kind == "UnionType" {
			return &ast.UnionTypeNode{Members: members}, nil
		}
		return &ast.IntersectionTypeNode{Members: members}, nil
	case "FunctionType":
		out := &ast.FunctionTypeNode{}
		for _, p := range n.Args {
			t, err := decodeTypeNode(p)
			if err != nil {
				return nil, err
			}
			out.Params = append(out.Params, t)
		}
		ret, err := decodeTypeNode(n.ReturnType)
		if err != nil {
			return nil, err
		}
		out.Return = ret
		return out, nil
	case "LiteralType":
		v := n.Value
		if f, ok := v.(float64); ok && f == float64(int64(f)) {
			v = int64(f)
		}
		return &ast.LiteralTypeNode{Value: v}, nil
	case "ObjectType":
		out := &ast.ObjectTypeNode{}
		for _, m := range n.Members {
			t, err := decodeTypeNode(m.Type)
			if err != nil {
				return nil, err
			}
			out.Members = append(out.Members, ast.ObjectTypeMember{
				Name: m.Name, Type: t, Optional: m.Optional,
			})
		}
		return out, nil
	case "KeyOf":
		op, err := decodeTypeNode(n.Type)
		if err != nil {
			return nil, err
		}
		return &ast.KeyOfTypeNode{Operand: op}, nil
	case "OptionalType":
		op, err := decodeTypeNode(n.Type)
		if err != nil {
			return nil, err
		}
		return &ast.OptionalTypeNode{Elem: op}, nil
	default:
		return nil, fmt.Errorf("ast json: unknown type kind %q", n.Kind)
	}
}
