package module

import (
	"testing"

	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/constpool"
)

func newTestModule() *Module {
	pool := constpool.New()
	code, _ := bytecode.Emit(nil, bytecode.RETURN, 0)
	entry := bytecode.NewFunctionHeader(uint32(pool.InternString([]byte("main"), constpool.NoEscape)))
	entry.NumRegs = 1
	entry.BytecodeSize = uint32(len(code))
	return New("main", pool, code, nil, entry, 2)
}

func TestDeclareGlobalName_RoundTripsThroughGlobalSlot(t *testing.T) {
	m := newTestModule()
	m.DeclareGlobalName("counter", 0)
	m.DeclareGlobalName("total", 1)

	slot, ok := m.GlobalSlot("counter")
	if !ok || slot != 0 {
		t.Errorf("GlobalSlot(counter) = %d, %v, want 0, true", slot, ok)
	}
	if _, ok := m.GlobalSlot("nope"); ok {
		t.Errorf("GlobalSlot should report false for an undeclared name")
	}
}

func TestGlobalNames_ExposesWholeTable(t *testing.T) {
	m := newTestModule()
	m.DeclareGlobalName("a", 0)
	m.DeclareGlobalName("b", 1)

	names := m.GlobalNames()
	if len(names) != 2 || names["a"] != 0 || names["b"] != 1 {
		t.Errorf("GlobalNames() = %v, want {a:0 b:1}", names)
	}
}

func TestNew_EmptyGlobalNameTable(t *testing.T) {
	m := newTestModule()
	if len(m.GlobalNames()) != 0 {
		t.Errorf("a freshly built module should have no declared global names until DeclareGlobalName is called")
	}
}

func TestConstString_ReturnsInternedBytes(t *testing.T) {
	m := newTestModule()
	idx := m.Pool.InternString([]byte("hello"), constpool.NoEscape)
	if got := m.ConstString(idx); got != "hello" {
		t.Errorf("ConstString(%d) = %q, want %q", idx, got, "hello")
	}
}

func TestConstString_PanicsOnNonStringConstant(t *testing.T) {
	m := newTestModule()
	idx := m.Pool.InternInt(7)
	defer func() {
		if recover() == nil {
			t.Errorf("expected ConstString to panic on a non-string constant")
		}
	}()
	m.ConstString(idx)
}

func TestEncodeDecode_RoundTripsModuleState(t *testing.T) {
	m := newTestModule()
	m.DeclareGlobalName("x", 0)

	data, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Name != m.Name {
		t.Errorf("Name = %q, want %q", got.Name, m.Name)
	}
	if got.NumGlobals != m.NumGlobals {
		t.Errorf("NumGlobals = %d, want %d", got.NumGlobals, m.NumGlobals)
	}
	if string(got.Code) != string(m.Code) {
		t.Errorf("Code did not round-trip: got %v, want %v", got.Code, m.Code)
	}
	slot, ok := got.GlobalSlot("x")
	if !ok || slot != 0 {
		t.Errorf("decoded module lost global name table: GlobalSlot(x) = %d, %v", slot, ok)
	}
	if got.Pool.Len() != m.Pool.Len() {
		t.Errorf("Pool size did not round-trip: got %d, want %d", got.Pool.Len(), m.Pool.Len())
	}
	if got.Entry.NameIndex != m.Entry.NameIndex {
		t.Errorf("Entry header did not round-trip: NameIndex got %d, want %d", got.Entry.NameIndex, m.Entry.NameIndex)
	}
}
