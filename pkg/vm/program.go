package vm

import (
	"fmt"

	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/constpool"
	"github.com/kos-lang/kos/pkg/module"
)

// Program is a module.Module loaded for execution: the compiled artifact
// plus the runtime state spec §3 calls its "globals array" and the
// function-template cache LOAD_CONST relies on.
type Program struct {
	*module.Module
	Globals []Value

	fnTemplates map[int]*FunctionValue // by bytecode offset, the function's identity
	imports     map[string]*Program    // GET_MOD's module table
}

// Load wraps a compiled module for execution.
func Load(m *module.Module) *Program {
	return &Program{
		Module:      m,
		Globals:     make([]Value, m.NumGlobals),
		fnTemplates: make(map[int]*FunctionValue),
		imports:     make(map[string]*Program),
	}
}

// AddImport registers name (as referenced by GET_MOD) to another loaded
// program, for the cross-module globals spec §6.1's GET_MOD/GET_MOD_ELEM/
// GET_MOD_GLOBAL instructions consult.
func (p *Program) AddImport(name string, dep *Program) { p.imports[name] = dep }

func (p *Program) importedModule(idx int) (*Program, error) {
	name := p.ConstString(idx)
	dep, ok := p.imports[name]
	if !ok {
		return nil, fmt.Errorf("module: no such imported module %q", name)
	}
	return dep, nil
}

// constant resolves a pool entry for LOAD_CONST/LOAD_CONST8: numbers and
// strings are produced fresh each time (cheap, immutable), function
// constants return the shared closure-less template.
func (p *Program) constant(idx int) (Value, error) {
	c := p.Module.Pool.Get(idx)
	switch c.Kind {
	case constpool.KindInt:
		return Int(c.Int), nil
	case constpool.KindFloat:
		return Float(c.Float), nil
	case constpool.KindString:
		return Str(string(c.Str)), nil
	case constpool.KindFunction:
		return Fn(p.functionTemplate(c.Func)), nil
	case constpool.KindPrototype:
		return Obj(NewObject(nil)), nil
	default:
		return Void(), fmt.Errorf("module: unknown constant kind %d", c.Kind)
	}
}

// functionTemplate returns the cached closure-less FunctionValue a
// LOAD_CONST/LOAD_CONST8 site shares (spec §4.4: such functions never
// need per-instantiation BIND/BIND_DEFAULTS, so one instance suffices).
func (p *Program) functionTemplate(h *bytecode.FunctionHeader) *FunctionValue {
	key := int(h.BytecodeOffset)
	if fv, ok := p.fnTemplates[key]; ok {
		return fv
	}
	fv := p.newFunctionValue(h)
	p.fnTemplates[key] = fv
	return fv
}

// freshFunction builds an always-new FunctionValue for LOAD_FUN/
// LOAD_FUN8: the call site fills Closures/Defaults immediately after via
// BIND/BIND_SELF/BIND_DEFAULTS.
func (p *Program) freshFunction(h *bytecode.FunctionHeader) *FunctionValue {
	return p.newFunctionValue(h)
}

func (p *Program) newFunctionValue(h *bytecode.FunctionHeader) *FunctionValue {
	kind := FuncPlain
	switch {
	case h.IsGenerator():
		kind = FuncGenerator
	case h.IsClass():
		kind = FuncConstructor
	}
	proto := &FunctionProto{
		Header: h,
		Name:   p.ConstString(int(h.NameIndex)),
		Module: p,
	}
	fv := &FunctionValue{Proto: proto, Kind: kind}
	if h.NumBinds > 0 {
		fv.Closures = make([]Value, h.NumBinds)
	}
	return fv
}
