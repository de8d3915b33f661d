package codegen_test

import (
	"testing"

	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/astbuild"
	"github.com/kos-lang/kos/pkg/codegen"
	"github.com/kos-lang/kos/pkg/constpool"
	"github.com/kos-lang/kos/pkg/module"
	"github.com/kos-lang/kos/pkg/scope"
	"github.com/kos-lang/kos/pkg/vm"
)

func compileAndRun(t *testing.T, file *ast.File) vm.Value {
	t.Helper()
	pool := constpool.New()
	comp := codegen.NewCompiler("test.kos", pool)
	entry, err := comp.Compile(file)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	m := module.New(file.Name, pool, comp.GlobalCode(), comp.GlobalLines(), entry, comp.NumGlobals())
	machine := vm.New(vm.DefaultConfig())
	result, err := machine.Execute(vm.Load(m))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	return result
}

func TestCompile_FallsOffEndReturningVoid(t *testing.T) {
	f := astbuild.NewFile()
	file := f.Build("fixture") // empty body: falls off the end

	result := compileAndRun(t, file)
	if result.Kind() != vm.KindVoid {
		t.Errorf("expected a void result falling off an empty module body, got %v", result)
	}
}

func TestCompile_ConstAssignmentIsACompileError(t *testing.T) {
	f := astbuild.NewFile()
	x := astbuild.AsConst(astbuild.Local(f.Scope(), "x"))

	file := f.Build("fixture",
		astbuild.Decl(x, astbuild.Int(1)),
		astbuild.ExprStmt(astbuild.Assign(astbuild.Ident(x), ast.OpAssign, astbuild.Int(2))),
	)

	pool := constpool.New()
	comp := codegen.NewCompiler("test.kos", pool)
	_, err := comp.Compile(file)
	if err == nil {
		t.Fatalf("expected a compile error assigning to a const variable")
	}
	ce, ok := err.(codegen.CompileError)
	if !ok {
		t.Fatalf("expected a codegen.CompileError, got %T: %v", err, err)
	}
	if ce.Kind != codegen.ErrConstAssignment {
		t.Errorf("CompileError.Kind = %q, want %q", ce.Kind, codegen.ErrConstAssignment)
	}
}

func TestCompile_BreakOutsideLoopIsACompileError(t *testing.T) {
	f := astbuild.NewFile()
	file := f.Build("fixture", astbuild.BreakStmt())

	pool := constpool.New()
	comp := codegen.NewCompiler("test.kos", pool)
	_, err := comp.Compile(file)
	if err == nil {
		t.Fatalf("expected a compile error for break outside any loop or switch")
	}
}

func TestCompile_WhileLoopWithBreak(t *testing.T) {
	f := astbuild.NewFile()
	total := astbuild.Local(f.Scope(), "total")
	i := astbuild.Local(f.Scope(), "i")

	file := f.Build("fixture",
		astbuild.Decl(total, astbuild.Int(0)),
		astbuild.Decl(i, astbuild.Int(0)),
		astbuild.While(astbuild.Bin(ast.OpLt, astbuild.Ident(i), astbuild.Int(10)),
			&ast.Block{Scope: scope.New(f.Scope()), Stmts: []ast.Statement{
				astbuild.ExprStmt(astbuild.Assign(astbuild.Ident(i), ast.OpAssignAdd, astbuild.Int(1))),
				astbuild.If(astbuild.Bin(ast.OpGt, astbuild.Ident(i), astbuild.Int(3)),
					&ast.Block{Scope: scope.New(f.Scope()), Stmts: []ast.Statement{astbuild.BreakStmt()}}, nil),
				astbuild.ExprStmt(astbuild.Assign(astbuild.Ident(total), ast.OpAssignAdd, astbuild.Ident(i))),
			}}),
		astbuild.Ret(astbuild.Ident(total)),
	)

	result := compileAndRun(t, file)
	// i increments to 1,2,3,4 then breaks before adding 4 to total: total = 1+2+3 = 6
	if result.Kind() != vm.KindInteger || result.AsInt() != 6 {
		t.Errorf("expected total=6, got %v", result)
	}
}

func TestCompile_TernaryAndLogicalShortCircuit(t *testing.T) {
	f := astbuild.NewFile()
	x := astbuild.Local(f.Scope(), "x")

	file := f.Build("fixture",
		astbuild.Decl(x, astbuild.Int(5)),
		astbuild.Ret(astbuild.Cond(
			astbuild.Log(ast.OpLogAnd, astbuild.Bin(ast.OpGt, astbuild.Ident(x), astbuild.Int(0)), astbuild.Bool(true)),
			astbuild.Str("positive"),
			astbuild.Str("non-positive"),
		)),
	)

	result := compileAndRun(t, file)
	if result.Kind() != vm.KindString || result.AsString() != "positive" {
		t.Errorf("expected \"positive\", got %v", result)
	}
}

func TestCompile_ArrayLiteralAndIndexing(t *testing.T) {
	f := astbuild.NewFile()
	arr := astbuild.Local(f.Scope(), "arr")

	file := f.Build("fixture",
		astbuild.Decl(arr, astbuild.Arr(astbuild.Int(10), astbuild.Int(20), astbuild.Int(30))),
		astbuild.Ret(astbuild.Index(astbuild.Ident(arr), astbuild.Int(1))),
	)

	result := compileAndRun(t, file)
	if result.Kind() != vm.KindInteger || result.AsInt() != 20 {
		t.Errorf("expected arr[1]=20, got %v", result)
	}
}
