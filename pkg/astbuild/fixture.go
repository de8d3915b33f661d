package astbuild

import (
	"encoding/json"
	"fmt"

	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/scope"
)

// Fixture is the JSON wire shape SPEC_FULL.md §1 describes cmd/kosc
// accepting in place of a parser's output: a tagged-union encoding of the
// core statement/expression node set, plus a flat declared-globals list.
// It covers the subset a demonstration program needs — function literals,
// classes, generators, switch/for-in/try are built directly against the
// ast package instead (see the constructors in build.go and DESIGN.md's
// astbuild entry for the scope cut).
// Globals are pre-declared before Body runs; initialize one with an
// "assign" expression ("op":"="), not "vardecl" — vardecl always declares
// a fresh local of that name.
type Fixture struct {
	Name    string     `json:"name"`
	Globals []string   `json:"globals,omitempty"`
	Body    []StmtJSON `json:"body"`
}

// StmtJSON is one statement, discriminated by Kind:
// exprstmt, vardecl, if, while, return, throw, break, continue.
type StmtJSON struct {
	Kind  string     `json:"kind"`
	Var   string     `json:"var,omitempty"`
	Const bool       `json:"const,omitempty"`
	X     *ExprJSON  `json:"x,omitempty"`
	Cond  *ExprJSON  `json:"cond,omitempty"`
	Then  []StmtJSON `json:"then,omitempty"`
	Else  []StmtJSON `json:"else,omitempty"`
	Body  []StmtJSON `json:"body,omitempty"`
}

// ExprJSON is one expression, discriminated by Kind:
// int, float, str, bool, void, ident, binary, logical, unary, call,
// assign, dot, index.
type ExprJSON struct {
	Kind   string     `json:"kind"`
	Int    int64      `json:"int,omitempty"`
	Float  float64    `json:"float,omitempty"`
	Str    string     `json:"str,omitempty"`
	Bool   bool       `json:"bool,omitempty"`
	Name   string     `json:"name,omitempty"`
	Op     string     `json:"op,omitempty"`
	X      *ExprJSON  `json:"x,omitempty"`
	Y      *ExprJSON  `json:"y,omitempty"`
	Callee *ExprJSON  `json:"callee,omitempty"`
	Args   []ExprJSON `json:"args,omitempty"`
	Target *ExprJSON  `json:"target,omitempty"`
	Object *ExprJSON  `json:"object,omitempty"`
	Key    string     `json:"key,omitempty"`
}

var binaryOps = map[string]ast.BinaryOp{
	"+": ast.OpAdd, "-": ast.OpSub, "*": ast.OpMul, "/": ast.OpDiv, "%": ast.OpMod,
	"<<": ast.OpShl, ">>": ast.OpShr, ">>>": ast.OpShru,
	"&": ast.OpBitAnd, "|": ast.OpBitOr, "^": ast.OpBitXor,
	"==": ast.OpEq, "!=": ast.OpNe, "<": ast.OpLt, "<=": ast.OpLe, ">": ast.OpGt, ">=": ast.OpGe,
}

var logicalOps = map[string]ast.LogicalOp{"&&": ast.OpLogAnd, "||": ast.OpLogOr}
var assignOps = map[string]ast.AssignOp{
	"=": ast.OpAssign, "+=": ast.OpAssignAdd, "-=": ast.OpAssignSub, "*=": ast.OpAssignMul,
	"/=": ast.OpAssignDiv, "%=": ast.OpAssignMod, "<<=": ast.OpAssignShl, ">>=": ast.OpAssignShr,
	">>>=": ast.OpAssignShru, "&=": ast.OpAssignBitAnd, "|=": ast.OpAssignBitOr, "^=": ast.OpAssignBitXor,
}

// decodeCtx carries the scope/symbol state a real resolver would thread
// through while walking source; fixtures use a single flat symbol table
// rather than modeling lexical shadowing (see DESIGN.md).
type decodeCtx struct {
	file *File
	vars map[string]*scope.Variable
}

// Decode parses a Fixture's JSON encoding into a resolved *ast.File ready
// for pkg/codegen.Compiler.Compile.
func Decode(data []byte) (*ast.File, error) {
	var fx Fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("astbuild: %w", err)
	}

	f := NewFile()
	ctx := &decodeCtx{file: f, vars: make(map[string]*scope.Variable)}
	for _, name := range fx.Globals {
		ctx.vars[name] = f.Global(name)
	}

	body, err := ctx.stmts(f.Scope(), fx.Body)
	if err != nil {
		return nil, err
	}
	return f.Build(fx.Name, body...), nil
}

func (ctx *decodeCtx) stmts(sc *scope.Scope, in []StmtJSON) ([]ast.Statement, error) {
	out := make([]ast.Statement, len(in))
	for i, s := range in {
		stmt, err := ctx.stmt(sc, s)
		if err != nil {
			return nil, err
		}
		out[i] = stmt
	}
	return out, nil
}

func (ctx *decodeCtx) stmt(sc *scope.Scope, s StmtJSON) (ast.Statement, error) {
	switch s.Kind {
	case "exprstmt":
		x, err := ctx.expr(s.X)
		if err != nil {
			return nil, err
		}
		return ExprStmt(x), nil

	case "vardecl":
		var value ast.Expression
		if s.X != nil {
			var err error
			value, err = ctx.expr(s.X)
			if err != nil {
				return nil, err
			}
		}
		v := Local(sc, s.Var)
		if s.Const {
			AsConst(v)
		}
		ctx.vars[s.Var] = v
		return Decl(v, value), nil

	case "if":
		cond, err := ctx.expr(s.Cond)
		if err != nil {
			return nil, err
		}
		thenStmts, err := ctx.stmts(scope.New(sc), s.Then)
		if err != nil {
			return nil, err
		}
		then := &ast.Block{Scope: scope.New(sc), Stmts: thenStmts}
		var els ast.Statement
		if s.Else != nil {
			elseStmts, err := ctx.stmts(scope.New(sc), s.Else)
			if err != nil {
				return nil, err
			}
			els = &ast.Block{Scope: scope.New(sc), Stmts: elseStmts}
		}
		return If(cond, then, els), nil

	case "while":
		cond, err := ctx.expr(s.Cond)
		if err != nil {
			return nil, err
		}
		bodyStmts, err := ctx.stmts(scope.New(sc), s.Body)
		if err != nil {
			return nil, err
		}
		return While(cond, &ast.Block{Scope: scope.New(sc), Stmts: bodyStmts}), nil

	case "return":
		var value ast.Expression
		if s.X != nil {
			var err error
			value, err = ctx.expr(s.X)
			if err != nil {
				return nil, err
			}
		}
		return Ret(value), nil

	case "throw":
		value, err := ctx.expr(s.X)
		if err != nil {
			return nil, err
		}
		return ThrowStmt(value), nil

	case "break":
		return BreakStmt(), nil
	case "continue":
		return ContinueStmt(), nil

	default:
		return nil, fmt.Errorf("astbuild: unknown statement kind %q", s.Kind)
	}
}

func (ctx *decodeCtx) expr(e *ExprJSON) (ast.Expression, error) {
	if e == nil {
		return nil, fmt.Errorf("astbuild: missing expression")
	}
	switch e.Kind {
	case "int":
		return Int(e.Int), nil
	case "float":
		return Float(e.Float), nil
	case "str":
		return Str(e.Str), nil
	case "bool":
		return Bool(e.Bool), nil
	case "void":
		return Void(), nil
	case "ident":
		v, ok := ctx.vars[e.Name]
		if !ok {
			return nil, fmt.Errorf("astbuild: undeclared identifier %q", e.Name)
		}
		return Ident(v), nil

	case "binary":
		op, ok := binaryOps[e.Op]
		if !ok {
			return nil, fmt.Errorf("astbuild: unknown binary operator %q", e.Op)
		}
		x, err := ctx.expr(e.X)
		if err != nil {
			return nil, err
		}
		y, err := ctx.expr(e.Y)
		if err != nil {
			return nil, err
		}
		return Bin(op, x, y), nil

	case "logical":
		op, ok := logicalOps[e.Op]
		if !ok {
			return nil, fmt.Errorf("astbuild: unknown logical operator %q", e.Op)
		}
		x, err := ctx.expr(e.X)
		if err != nil {
			return nil, err
		}
		y, err := ctx.expr(e.Y)
		if err != nil {
			return nil, err
		}
		return Log(op, x, y), nil

	case "unary":
		var op ast.UnaryOp
		switch e.Op {
		case "-":
			op = ast.OpNeg
		case "!":
			op = ast.OpNot
		case "~":
			op = ast.OpBitNot
		default:
			return nil, fmt.Errorf("astbuild: unknown unary operator %q", e.Op)
		}
		x, err := ctx.expr(e.X)
		if err != nil {
			return nil, err
		}
		return Un(op, x), nil

	case "call":
		callee, err := ctx.expr(e.Callee)
		if err != nil {
			return nil, err
		}
		args := make([]ast.Expression, len(e.Args))
		for i := range e.Args {
			a, err := ctx.expr(&e.Args[i])
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		return Call(callee, args...), nil

	case "assign":
		op, ok := assignOps[e.Op]
		if !ok {
			return nil, fmt.Errorf("astbuild: unknown assignment operator %q", e.Op)
		}
		target, err := ctx.expr(e.Target)
		if err != nil {
			return nil, err
		}
		value, err := ctx.expr(e.X)
		if err != nil {
			return nil, err
		}
		return Assign(target, op, value), nil

	case "dot":
		obj, err := ctx.expr(e.Object)
		if err != nil {
			return nil, err
		}
		return Dot(obj, e.Key), nil

	case "index":
		obj, err := ctx.expr(e.Object)
		if err != nil {
			return nil, err
		}
		key, err := ctx.expr(e.X)
		if err != nil {
			return nil, err
		}
		return Index(obj, key), nil

	default:
		return nil, fmt.Errorf("astbuild: unknown expression kind %q", e.Kind)
	}
}

// Encode renders a Fixture back to indented JSON, the inverse of Decode.
// cmd/kosc's --dump-ast does not call it: that flag re-indents the input
// file's raw JSON.
func (fx *Fixture) Encode() ([]byte, error) {
	return json.MarshalIndent(fx, "", "  ")
}
