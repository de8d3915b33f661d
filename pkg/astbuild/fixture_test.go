package astbuild

import (
	"testing"

	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/codegen"
	"github.com/kos-lang/kos/pkg/constpool"
	"github.com/kos-lang/kos/pkg/module"
	"github.com/kos-lang/kos/pkg/vm"
)

// compileAndRun is the full pipeline a fixture exercises: decode, compile,
// load, execute.
func compileAndRun(t *testing.T, file *ast.File) vm.Value {
	t.Helper()
	pool := constpool.New()
	comp := codegen.NewCompiler("fixture.kos", pool)
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

func TestDecode_ArithmeticAndControlFlow(t *testing.T) {
	src := []byte(`{
		"name": "fixture",
		"body": [
			{"kind": "vardecl", "var": "total", "x": {"kind": "int", "int": 0}},
			{"kind": "vardecl", "var": "i", "x": {"kind": "int", "int": 0}},
			{"kind": "while",
			 "cond": {"kind": "binary", "op": "<", "x": {"kind": "ident", "name": "i"}, "y": {"kind": "int", "int": 5}},
			 "body": [
				{"kind": "exprstmt", "x": {"kind": "assign", "op": "+=", "target": {"kind": "ident", "name": "total"}, "x": {"kind": "ident", "name": "i"}}},
				{"kind": "exprstmt", "x": {"kind": "assign", "op": "+=", "target": {"kind": "ident", "name": "i"}, "x": {"kind": "int", "int": 1}}}
			 ]},
			{"kind": "return", "x": {"kind": "ident", "name": "total"}}
		]
	}`)

	file, err := Decode(src)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	result := compileAndRun(t, file)
	if result.Kind() != vm.KindInteger || result.AsInt() != 10 {
		t.Errorf("expected total=10 (0+1+2+3+4), got %v", result)
	}
}

func TestDecode_IfElse(t *testing.T) {
	src := []byte(`{
		"name": "fixture",
		"body": [
			{"kind": "vardecl", "var": "x", "x": {"kind": "int", "int": 7}},
			{"kind": "if",
			 "cond": {"kind": "binary", "op": ">", "x": {"kind": "ident", "name": "x"}, "y": {"kind": "int", "int": 5}},
			 "then": [{"kind": "return", "x": {"kind": "str", "str": "big"}}],
			 "else": [{"kind": "return", "x": {"kind": "str", "str": "small"}}]}
		]
	}`)

	file, err := Decode(src)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	result := compileAndRun(t, file)
	if result.Kind() != vm.KindString || result.AsString() != "big" {
		t.Errorf("expected \"big\", got %v", result)
	}
}

func TestDecode_UnknownStatementKind(t *testing.T) {
	_, err := Decode([]byte(`{"name":"f","body":[{"kind":"bogus"}]}`))
	if err == nil {
		t.Errorf("expected an error for an unknown statement kind")
	}
}

func TestDecode_UndeclaredIdentifier(t *testing.T) {
	_, err := Decode([]byte(`{"name":"f","body":[
		{"kind":"exprstmt","x":{"kind":"ident","name":"nope"}}
	]}`))
	if err == nil {
		t.Errorf("expected an error for an undeclared identifier")
	}
}

func TestBuild_DirectConstructionCall(t *testing.T) {
	// Direct ast-construction path (no JSON), exercising a user-defined
	// function call: fun double(n) { return n * 2 } ; return double(21)
	f := NewFile()
	double := f.Global("double")

	fn, params, bodyScope := Func(f.Scope(), "double", "n")
	Finish(fn, bodyScope, Ret(Bin(ast.OpMul, Ident(params[0]), Int(2))))

	// The global is initialized through an assignment expression, whose
	// identifier store goes through SET_GLOBAL.
	file := f.Build("fixture",
		ExprStmt(Assign(Ident(double), ast.OpAssign, FuncLit(fn))),
		Ret(Call(Ident(double), Int(21))),
	)

	result := compileAndRun(t, file)
	if result.Kind() != vm.KindInteger || result.AsInt() != 42 {
		t.Errorf("expected 42, got %v", result)
	}
}
