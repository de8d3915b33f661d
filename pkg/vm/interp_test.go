package vm

import (
	"testing"

	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/constpool"
	"github.com/kos-lang/kos/pkg/module"
)

// asm is a minimal hand-rolled assembler for building modules directly in
// Go (no parser exists in this system; tests build bytecode the way
// pkg/interpreter/mir_interpreter_test.go builds ir.Function values by
// hand).
type asm struct {
	pool *constpool.Pool
	code []byte
}

func newAsm() *asm {
	return &asm{pool: constpool.New()}
}

func (a *asm) emit(op bytecode.Opcode, operands ...int64) {
	buf, _ := bytecode.Emit(a.code, op, operands...)
	a.code = buf
}

func (a *asm) str(s string) int {
	return a.pool.InternString([]byte(s), constpool.NoEscape)
}

// program wraps the assembled code as a loaded, runnable Program whose
// entry point starts at offset 0 and uses numRegs registers.
func (a *asm) program(name string, numRegs byte, minArgs, numNamed uint8, paramKind []bytecode.ParamKind, paramSlot []byte, paramNameIdx []uint32) *Program {
	h := bytecode.NewFunctionHeader(uint32(a.str(name)))
	h.NumRegs = numRegs
	h.MinArgs = minArgs
	h.NumNamedArgs = numNamed
	h.ParamKind = paramKind
	h.ParamSlot = paramSlot
	h.ParamNameIdx = paramNameIdx
	h.BytecodeOffset = 0
	h.BytecodeSize = uint32(len(a.code))

	m := module.New(name, a.pool, a.code, nil, h, 0)
	return Load(m)
}

func TestExecute_BasicArithmetic(t *testing.T) {
	// fun add(a, b) { return a + b } called with (5, 3)
	a := newAsm()
	a.emit(bytecode.ADD, 2, 0, 1)
	a.emit(bytecode.RETURN, 2)

	prog := a.program("add", 3, 2, 2,
		[]bytecode.ParamKind{bytecode.ParamArgReg, bytecode.ParamArgReg},
		[]byte{0, 1},
		[]uint32{uint32(a.str("a")), uint32(a.str("b"))})

	vm := New(DefaultConfig())

	// Call the compiled function value directly with arguments.
	fn := prog.functionTemplate(prog.Entry)
	sum, err := vm.CallValue(Fn(fn), Void(), []Value{Int(5), Int(3)})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if sum.Kind() != KindInteger || sum.AsInt() != 8 {
		t.Errorf("expected 8, got %v", sum)
	}
}

func TestCallValue_DefaultArgument(t *testing.T) {
	// fun greet(name, suffix) { return suffix } with suffix defaulting to "!"
	a := newAsm()
	a.emit(bytecode.RETURN, 1)

	prog := a.program("greet", 2, 1, 2,
		[]bytecode.ParamKind{bytecode.ParamArgReg, bytecode.ParamArgReg},
		[]byte{0, 1},
		[]uint32{uint32(a.str("name")), uint32(a.str("suffix"))})

	fn := prog.functionTemplate(prog.Entry)
	fn.Defaults = []Value{Str("!")}

	vm := New(DefaultConfig())

	// Caller supplies only the required argument; the default fills the rest.
	v, err := vm.CallValue(Fn(fn), Void(), []Value{Str("hi")})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if v.Kind() != KindString || v.AsString() != "!" {
		t.Errorf("expected default '!', got %v", v)
	}

	// Caller overrides the optional argument explicitly.
	v, err = vm.CallValue(Fn(fn), Void(), []Value{Str("hi"), Str("?")})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if v.AsString() != "?" {
		t.Errorf("expected override '?', got %v", v)
	}

	// Omitting the required argument is an error.
	if _, err := vm.CallValue(Fn(fn), Void(), nil); err == nil {
		t.Errorf("expected error for missing required argument")
	}
}

func TestExec_TryCatchUnwinds(t *testing.T) {
	// r0 = "oops"; try { throw r0 } catch (r1) { return r1 }
	a := newAsm()
	a.emit(bytecode.CATCH, 1, 0) // placeholder delta, patched below
	catchSite := len(a.code) - 4
	a.emit(bytecode.LOAD_CONST8, 0, int64(a.str("oops")))
	a.emit(bytecode.THROW, 0)
	handlerOffset := len(a.code)
	a.emit(bytecode.RETURN, 1)
	bytecode.PatchJump(a.code, catchSite, int32(handlerOffset-(catchSite+4)))

	prog := a.program("risky", 2, 0, 0, nil, nil, nil)
	vm := New(DefaultConfig())
	v, err := vm.Execute(prog)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if v.Kind() != KindString || v.AsString() != "oops" {
		t.Errorf("expected caught value 'oops', got %v", v)
	}
}

func TestInstanceOf_PrimitiveTypeTag(t *testing.T) {
	vm := New(DefaultConfig())

	ok, err := vm.instanceOf(Int(5), Str("integer"))
	if err != nil || !ok {
		t.Errorf("expected 5 instanceof \"integer\", got ok=%v err=%v", ok, err)
	}

	ok, err = vm.instanceOf(Str("x"), Str("integer"))
	if err != nil || ok {
		t.Errorf("expected \"x\" not instanceof \"integer\", got ok=%v err=%v", ok, err)
	}
}

func TestObject_LiveGetterAccessor(t *testing.T) {
	vm := New(DefaultConfig())
	calls := 0
	getter := NewNativeFunction("count", func(vm *VM, this Value, args []Value) (Value, error) {
		calls++
		return Int(int64(calls)), nil
	})

	obj := NewObject(nil)
	obj.SetAccessor("count", getter, nil)

	v1, _, err := obj.Get(vm, "count")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	v2, _, err := obj.Get(vm, "count")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if v1.AsInt() != 1 || v2.AsInt() != 2 {
		t.Errorf("expected a live getter re-invoked on every read (1, 2), got (%v, %v)", v1, v2)
	}
}

func TestRegisterDynamicProperty(t *testing.T) {
	vm := New(DefaultConfig())
	obj := NewObject(nil)
	backing := Int(0)
	registerDynamicProperty(obj, "value",
		func(vm *VM, this Value, args []Value) (Value, error) { return backing, nil },
		func(vm *VM, this Value, args []Value) (Value, error) { backing = args[0]; return Void(), nil })

	if err := obj.Set(vm, "value", Int(42)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, _, err := obj.Get(vm, "value")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if v.AsInt() != 42 {
		t.Errorf("expected 42, got %v", v)
	}
}

func TestGetNamed_FunctionArgsReflection(t *testing.T) {
	a := newAsm()
	a.emit(bytecode.RETURN, 0)
	prog := a.program("f", 2, 1, 2,
		[]bytecode.ParamKind{bytecode.ParamArgReg, bytecode.ParamArgReg},
		[]byte{0, 1},
		[]uint32{uint32(a.str("x")), uint32(a.str("y"))})

	vm := New(DefaultConfig())
	fn := prog.functionTemplate(prog.Entry)

	v, err := vm.getNamed(Fn(fn), "args")
	if err != nil {
		t.Fatalf("getNamed failed: %v", err)
	}
	if v.Kind() != KindArray || len(v.AsArray().Elems) != 2 {
		t.Fatalf("expected a 2-element args array, got %v", v)
	}
	if v.AsArray().Elems[0].AsString() != "x" || v.AsArray().Elems[1].AsString() != "y" {
		t.Errorf("expected [\"x\", \"y\"], got %v", v.AsArray().Elems)
	}
}
