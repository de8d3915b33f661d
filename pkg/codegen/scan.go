package codegen

import "github.com/kos-lang/kos/pkg/ast"

// bodyScan collects facts about a function body needed by the synthesizer
// (spec §4.4 steps 5, 7, 11): whether `this`/`super` are referenced, and
// whether the body already calls `super(...)` explicitly. The scan never
// descends into a nested FunctionLit/ClassLit: `this`/`super` inside a
// nested function belong to that function, not the one being scanned.
type bodyScan struct {
	usesThis   bool
	callsSuper bool
}

func scanBody(body *ast.Block) bodyScan {
	var s bodyScan
	s.walkBlock(body)
	return s
}

func (s *bodyScan) walkBlock(b *ast.Block) {
	if b == nil {
		return
	}
	for _, stmt := range b.Stmts {
		s.walkStmt(stmt)
	}
}

func (s *bodyScan) walkStmt(stmt ast.Statement) {
	switch n := stmt.(type) {
	case *ast.ExprStmt:
		s.walkExpr(n.X)
	case *ast.VarDecl:
		s.walkExpr(n.Value)
	case *ast.Block:
		s.walkBlock(n)
	case *ast.If:
		s.walkExpr(n.Cond)
		s.walkStmt(n.Then)
		s.walkStmt(n.Else)
	case *ast.While:
		s.walkExpr(n.Cond)
		s.walkStmt(n.Body)
	case *ast.Repeat:
		s.walkExpr(n.Cond)
		s.walkStmt(n.Body)
	case *ast.ForIn:
		s.walkExpr(n.Iterable)
		s.walkStmt(n.Body)
	case *ast.Switch:
		s.walkExpr(n.Scrutinee)
		for _, cs := range n.Cases {
			for _, k := range cs.Keys {
				s.walkExpr(k)
			}
			s.walkStmt(cs.Body)
		}
		s.walkStmt(n.Default)
	case *ast.TryCatch:
		s.walkStmt(n.Try)
		s.walkStmt(n.Catch)
	case *ast.TryDefer:
		s.walkStmt(n.Try)
		s.walkStmt(n.Defer)
	case *ast.Return:
		s.walkExpr(n.Value)
	case *ast.Throw:
		s.walkExpr(n.Value)
	case *ast.Break, *ast.Continue, *ast.Fallthrough, nil:
		// no sub-nodes
	}
}

func (s *bodyScan) walkExpr(e ast.Expression) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case *ast.This:
		s.usesThis = true
	case *ast.Super:
		s.usesThis = true
	case *ast.Binary:
		s.walkExpr(n.X)
		s.walkExpr(n.Y)
	case *ast.Logical:
		s.walkExpr(n.X)
		s.walkExpr(n.Y)
	case *ast.Unary:
		s.walkExpr(n.X)
	case *ast.Ternary:
		s.walkExpr(n.Cond)
		s.walkExpr(n.Then)
		s.walkExpr(n.Else)
	case *ast.TypeOf:
		s.walkExpr(n.X)
	case *ast.In:
		s.walkExpr(n.Key)
		s.walkExpr(n.Object)
	case *ast.Delete:
		s.walkExpr(n.Target)
	case *ast.Refinement:
		s.walkExpr(n.Object)
		if n.IsIndex {
			s.walkExpr(n.Key)
		}
	case *ast.Slice:
		s.walkExpr(n.Object)
		s.walkExpr(n.Begin)
		s.walkExpr(n.Stop)
	case *ast.Call:
		if _, ok := n.Callee.(*ast.Super); ok {
			s.callsSuper = true
			s.usesThis = true
		}
		s.walkExpr(n.Callee)
		for _, a := range n.Args {
			s.walkExpr(a)
		}
	case *ast.New:
		s.walkExpr(n.Class)
		for _, a := range n.Args {
			s.walkExpr(a)
		}
	case *ast.ObjectLit:
		s.walkExpr(n.Proto)
		for _, p := range n.Props {
			s.walkExpr(p.Value)
		}
	case *ast.ArrayLit:
		for _, el := range n.Elems {
			s.walkExpr(el.Value)
		}
	case *ast.Assign:
		s.walkExpr(n.Target)
		s.walkExpr(n.Value)
	case *ast.MultiAssign:
		for _, t := range n.Targets {
			s.walkExpr(t)
		}
		s.walkExpr(n.Value)
	case *ast.Yield:
		s.walkExpr(n.Value)
	case *ast.FunctionLit, *ast.ClassLit:
		// a nested function/class owns its own this/super; do not descend.
	}
}
