// Package astbuild plays the part of the resolver pass this system takes
// as given (spec §1: "lexing, parsing, AST construction ... are external
// collaborators"): it builds already-resolved *ast.File trees directly in
// Go, the way pkg/interpreter/mir_interpreter_test.go builds ir.Function
// values by hand rather than parsing source text. cmd/kosc's demonstration
// front door and package tests across pkg/codegen use it instead of a
// parser that does not exist in this system.
package astbuild

import (
	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/scope"
)

// File accumulates a module's global declarations while its top-level
// scope is being built, then assembles the finished *ast.File.
type File struct {
	scope   *scope.Scope
	globals int
}

// NewFile starts a module-level scope. Module scopes are function scopes
// in their own right (the compiler treats a file's top-level statements
// as the entry function's body, spec §4.4), so closures captured at the
// top level resolve correctly.
func NewFile() *File {
	sc := scope.New(nil)
	sc.IsFunction = true
	return &File{scope: sc}
}

// Scope returns the module's top-level scope, for declaring nested
// function/block scopes beneath it.
func (b *File) Scope() *scope.Scope { return b.scope }

// Global declares a module-level global (spec §3 Variable, KindGlobal),
// assigning it the next globals-array slot. Both Decl(v, value) and an
// Assign(Ident(v), ast.OpAssign, value) statement store into the globals
// array through SET_GLOBAL (pkg/codegen/vars.go writeVariable).
func (b *File) Global(name string) *scope.Variable {
	v := &scope.Variable{Name: name, Kind: scope.KindGlobal, ArrayIdx: b.globals}
	b.globals++
	b.scope.Declare(v)
	return v
}

// Build assembles the finished file from its top-level statements.
func (b *File) Build(name string, body ...ast.Statement) *ast.File {
	return &ast.File{Name: name, Scope: b.scope, Body: body}
}

// Local declares a local variable in sc (spec §3, KindLocal); its register
// is assigned lazily by codegen on first use, so no slot bookkeeping is
// needed here.
func Local(sc *scope.Scope, name string) *scope.Variable {
	v := &scope.Variable{Name: name, Kind: scope.KindLocal}
	sc.Declare(v)
	return v
}

// AsConst marks v read-only (spec §7 ConstAssignment) and returns it, for
// chaining with Local/Global at the declaration site.
func AsConst(v *scope.Variable) *scope.Variable {
	v.IsConst = true
	return v
}

// Func declares a function scope nested in parent, with one
// register-bound argument per name in params (spec §3 KindArgumentReg),
// and a fresh block scope for its body nested under that. Rest/ellipsis
// params, default values, and closure capture are out of this helper's
// scope (see DESIGN.md) — build those FunctionNode fields directly when a
// fixture needs them.
func Func(parent *scope.Scope, name string, params ...string) (*ast.FunctionNode, []*scope.Variable, *scope.Scope) {
	fnScope := scope.New(parent)
	fnScope.IsFunction = true
	vars := make([]*scope.Variable, len(params))
	for i, p := range params {
		v := &scope.Variable{Name: p, Kind: scope.KindArgumentReg}
		fnScope.Declare(v)
		vars[i] = v
	}
	fn := &ast.FunctionNode{
		Name:   name,
		Scope:  fnScope,
		Params: vars,
	}
	bodyScope := scope.New(fnScope)
	return fn, vars, bodyScope
}

// Finish attaches body (already built against bodyScope, the third return
// value of Func) as fn's body and returns fn, for assignment-expression
// style chaining at the call site.
func Finish(fn *ast.FunctionNode, bodyScope *scope.Scope, stmts ...ast.Statement) *ast.FunctionNode {
	fn.Body = &ast.Block{Scope: bodyScope, Stmts: stmts}
	return fn
}

// Block builds a statement block in a fresh scope nested under parent.
func Block(parent *scope.Scope, stmts ...ast.Statement) *ast.Block {
	return &ast.Block{Scope: scope.New(parent), Stmts: stmts}
}

// --- statements ---

func ExprStmt(x ast.Expression) *ast.ExprStmt { return &ast.ExprStmt{X: x} }

// Decl declares v with an optional initializer (nil means "void").
func Decl(v *scope.Variable, value ast.Expression) *ast.VarDecl {
	return &ast.VarDecl{Var: v, Value: value}
}

func If(cond ast.Expression, then *ast.Block, els ast.Statement) *ast.If {
	return &ast.If{Cond: cond, Then: then, Else: els}
}

func While(cond ast.Expression, body *ast.Block) *ast.While {
	return &ast.While{Cond: cond, Body: body}
}

func Ret(value ast.Expression) *ast.Return { return &ast.Return{Value: value} }

func ThrowStmt(value ast.Expression) *ast.Throw { return &ast.Throw{Value: value} }

func BreakStmt() *ast.Break       { return &ast.Break{} }
func ContinueStmt() *ast.Continue { return &ast.Continue{} }

// --- expressions ---

func Ident(v *scope.Variable) *ast.Identifier { return &ast.Identifier{Var: v} }
func Int(v int64) *ast.IntLit                 { return &ast.IntLit{Value: v} }
func Float(v float64) *ast.FloatLit           { return &ast.FloatLit{Value: v} }
func Str(s string) *ast.StringLit             { return &ast.StringLit{Value: []byte(s), HasEscape: false} }
func Bool(v bool) *ast.BoolLit                { return &ast.BoolLit{Value: v} }
func Void() *ast.VoidLit                      { return &ast.VoidLit{} }

func Bin(op ast.BinaryOp, x, y ast.Expression) *ast.Binary { return &ast.Binary{Op: op, X: x, Y: y} }

func Log(op ast.LogicalOp, x, y ast.Expression) *ast.Logical {
	return &ast.Logical{Op: op, X: x, Y: y}
}

func Un(op ast.UnaryOp, x ast.Expression) *ast.Unary { return &ast.Unary{Op: op, X: x} }

func Cond(cond, then, els ast.Expression) *ast.Ternary {
	return &ast.Ternary{Cond: cond, Then: then, Else: els}
}

// Call builds a call with no splatted arguments; use CallExpand for calls
// that need per-argument spread marks (spec §4.3.4).
func Call(callee ast.Expression, args ...ast.Expression) *ast.Call {
	return &ast.Call{Callee: callee, Args: args, Expand: make([]bool, len(args))}
}

func CallExpand(callee ast.Expression, args []ast.Expression, expand []bool) *ast.Call {
	return &ast.Call{Callee: callee, Args: args, Expand: expand}
}

func FuncLit(fn *ast.FunctionNode) *ast.FunctionLit { return &ast.FunctionLit{Fn: fn} }

// Assign builds `target op= value`.
func Assign(target ast.Expression, op ast.AssignOp, value ast.Expression) *ast.Assign {
	return &ast.Assign{Target: target, Op: op, Value: value}
}

// Dot builds `object.name` property access.
func Dot(object ast.Expression, name string) *ast.Refinement {
	return &ast.Refinement{Object: object, Key: Str(name), IsIndex: false}
}

// Index builds `object[key]` element access.
func Index(object, key ast.Expression) *ast.Refinement {
	return &ast.Refinement{Object: object, Key: key, IsIndex: true}
}

func Arr(elems ...ast.Expression) *ast.ArrayLit {
	es := make([]ast.ArrayElem, len(elems))
	for i, e := range elems {
		es[i] = ast.ArrayElem{Value: e}
	}
	return &ast.ArrayLit{Elems: es}
}
