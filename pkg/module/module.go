// Package module assembles the compiler's per-file output — constant
// pool, bytecode buffer, address-to-line buffer, entry function header,
// and global-variable slot count — into one linkable unit pkg/vm loads
// and executes (spec §3 "Module reference"; this package plays the role
// the teacher's pkg/module/module.go plays for a MinZ source file, minus
// parsing/import-path resolution, which sits outside this system's
// scope).
package module

import (
	"fmt"

	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/constpool"
)

// Module is the finished artifact produced by compiling one source file.
type Module struct {
	Name  string
	Pool  *constpool.Pool
	Code  []byte
	Lines []byte
	Entry *bytecode.FunctionHeader

	NumGlobals  int
	globalNames map[string]int
}

// New packages a compiler's finished output into a Module. numGlobals is
// the slot count the compiler tracked across every GET_GLOBAL/SET_GLOBAL
// it emitted (codegen.Compiler.NumGlobals).
func New(name string, pool *constpool.Pool, code, lines []byte, entry *bytecode.FunctionHeader, numGlobals int) *Module {
	return &Module{
		Name:        name,
		Pool:        pool,
		Code:        code,
		Lines:       lines,
		Entry:       entry,
		NumGlobals:  numGlobals,
		globalNames: make(map[string]int),
	}
}

// DeclareGlobalName records the slot a global variable's name resolves
// to, so GET_MOD_GLOBAL (cross-module named global lookup) and
// diagnostics can map a name back to its slot. Optional: a module built
// straight from a resolved AST whose globals were never named through
// this path (e.g. test fixtures) simply has an empty name table.
func (m *Module) DeclareGlobalName(name string, slot int) {
	m.globalNames[name] = slot
}

// GlobalSlot resolves a global's declared name to its slot index.
func (m *Module) GlobalSlot(name string) (int, bool) {
	slot, ok := m.globalNames[name]
	return slot, ok
}

// GlobalNames returns every declared global name, for GET_MOD's namespace
// object (spec §6.1): importing a module whole exposes all of its
// globals, not just the one GET_MOD_GLOBAL names.
func (m *Module) GlobalNames() map[string]int {
	return m.globalNames
}

// ConstString returns the string constant at idx as a Go string; it
// panics (same as an out-of-range slice index) if idx does not name a
// string constant, mirroring the compiler's own invariant that callers
// only ever pass indices they themselves interned as strings.
func (m *Module) ConstString(idx int) string {
	c := m.Pool.Get(idx)
	if c.Kind != constpool.KindString {
		panic(fmt.Sprintf("module: constant %d is not a string", idx))
	}
	return string(c.Str)
}
