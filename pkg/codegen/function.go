package codegen

import (
	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/constpool"
	"github.com/kos-lang/kos/pkg/scope"
)

// fnConstEntry records a function literal's already-built header and its
// slot in the constant pool.
type fnConstEntry struct {
	header *bytecode.FunctionHeader
	idx    int
}

// compileFunctionLit lowers a function-literal expression (spec §4.4): the
// body is synthesized into its own frame/header the first time the literal
// is reached, then a closure value is constructed at every evaluation site
// (LOAD_CONST/LOAD_FUN plus BIND/BIND_SELF/BIND_DEFAULTS as needed).
func (c *Compiler) compileFunctionLit(fn *ast.FunctionNode, hint *byte) (byte, error) {
	entry, err := c.synthesizeFunction(fn, false)
	if err != nil {
		return 0, err
	}
	return c.emitClosureInit(fn, entry, hint)
}

// compileClassLit lowers a class literal (spec §4.4 "Class literal
// lowering"): compile `extends`, derive the prototype object from the base
// class's prototype, synthesize the constructor (with base_ctor_reg/
// base_proto_reg allocated), and set the resulting class value's
// `prototype` property.
func (c *Compiler) compileClassLit(n *ast.ClassLit, hint *byte) (byte, error) {
	f := c.frame
	var baseCtorr, baseProtor byte
	hasBase := n.Extends != nil
	if hasBase {
		var err error
		baseCtorr, err = c.compileExpr(n.Extends)
		if err != nil {
			return 0, err
		}
		baseProtor, err = f.Alloc.AllocTemp()
		if err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.GET_PROTO, int64(baseProtor), int64(baseCtorr)); err != nil {
			return 0, err
		}
	}

	entry, err := c.synthesizeFunction(n.Ctor, hasBase)
	if err != nil {
		return 0, err
	}
	classr, err := c.emitClosureInit(n.Ctor, entry, hint)
	if err != nil {
		return 0, err
	}

	if hasBase {
		// the constructor's base_ctor_reg/base_proto_reg are filled the
		// same way any other bind is: BIND against the class value, using
		// the reserved leading bind slots (spec §4.4: "BIND of the base
		// constructor and base prototype into bind slots 0 (and 1 ...)").
		if _, err := f.Emit(bytecode.BIND, int64(classr), 0, int64(baseCtorr)); err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.BIND, int64(classr), 1, int64(baseProtor)); err != nil {
			return 0, err
		}
	}

	protor, err := f.Alloc.AllocTemp()
	if err != nil {
		return 0, err
	}
	if hasBase {
		if _, err := f.Emit(bytecode.LOAD_OBJ_PROTO, int64(protor), int64(baseProtor)); err != nil {
			return 0, err
		}
	} else {
		if _, err := f.Emit(bytecode.LOAD_OBJ, int64(protor)); err != nil {
			return 0, err
		}
	}
	seen := make(map[string]bool, len(n.Members))
	for _, m := range n.Members {
		if seen[m.Key] {
			return 0, c.errorAt(n, ErrDuplicateProperty, "duplicate member %q", m.Key)
		}
		seen[m.Key] = true
		memberr, err := c.compileExpr(m.Value)
		if err != nil {
			return 0, err
		}
		idx := c.Pool.InternString([]byte(m.Key), constpool.NoEscape)
		if idx <= 255 {
			_, err = f.Emit(bytecode.SET_PROP8, int64(protor), int64(idx), int64(memberr))
		} else {
			keyr, e2 := c.loadConst(nil, func() int { return idx })
			if e2 != nil {
				return 0, e2
			}
			_, err = f.Emit(bytecode.SET, int64(protor), int64(keyr), int64(memberr))
			f.Alloc.Free(keyr)
		}
		if err != nil {
			return 0, err
		}
		f.Alloc.Free(memberr)
	}

	protoNameIdx := c.Pool.InternString([]byte("prototype"), constpool.NoEscape)
	if protoNameIdx <= 255 {
		_, err = f.Emit(bytecode.SET_PROP8, int64(classr), int64(protoNameIdx), int64(protor))
	} else {
		keyr, e2 := c.loadConst(nil, func() int { return protoNameIdx })
		if e2 != nil {
			return 0, e2
		}
		_, err = f.Emit(bytecode.SET, int64(classr), int64(keyr), int64(protor))
		f.Alloc.Free(keyr)
	}
	if err != nil {
		return 0, err
	}
	f.Alloc.Free(protor)
	if hasBase {
		f.Alloc.Free(baseCtorr)
		f.Alloc.Free(baseProtor)
	}
	return classr, nil
}

// synthesizeFunction lowers fn's body into its own frame and returns the
// interned function-constant entry (spec §4.4 steps 1-13). hasBase marks a
// derived-class constructor, which additionally reserves base_ctor_reg and
// base_proto_reg (step 7).
func (c *Compiler) synthesizeFunction(fn *ast.FunctionNode, hasBase bool) (*fnConstEntry, error) {
	if e, ok := c.fnConst[fn]; ok {
		return e, nil
	}

	// always intern a real string constant, even "" for an anonymous
	// function literal, so NameIndex never aliases index 0 of some
	// unrelated constant (pool index 0 is otherwise just whatever the
	// first intern call happened to be, e.g. the module's own file name).
	nameIdx := c.Pool.InternString([]byte(fn.Name), constpool.NoEscape)
	header := bytecode.NewFunctionHeader(uint32(nameIdx))
	header.DefLine = uint32(fn.DefLine)
	header.SetFlag(bytecode.FlagIsGenerator, fn.IsGenerator)
	header.SetFlag(bytecode.FlagIsClass, fn.IsConstructor)

	parent := c.frame
	child := newFrame(fn.Scope, header, parent)
	c.frame = child
	defer func() { c.frame = parent }()

	scan := scanBody(fn.Body)

	// step 2: parameter-name constants.
	paramIdx := make([]uint32, len(fn.Params))
	for i, p := range fn.Params {
		paramIdx[i] = uint32(c.Pool.InternString([]byte(p.Name), constpool.NoEscape))
	}
	header.ParamNameIdx = paramIdx
	header.NumNamedArgs = uint8(len(fn.Params))
	header.NumDeclDefArgs = uint8(len(fn.DefaultValues))
	required := len(fn.Params) - len(fn.DefaultValues)
	if required < 0 {
		required = 0
	}
	header.MinArgs = uint8(required)

	// step 3: independent-local registers, allocated first so they occupy
	// the lowest closure-array slots.
	for _, v := range fn.Scope.Variables() {
		if v.Kind == scope.KindIndependentLocal {
			c.registerFor(v)
		}
	}

	// step 4: argument registers in declaration order; rest register last.
	// ParamKind/ParamSlot record where the call prologue deposits each
	// argument, since registerFor's address space (plain register, heap
	// args array slot, or this frame's own closure-cell slot) depends on
	// a per-variable Kind the header otherwise has no record of.
	header.ParamKind = make([]bytecode.ParamKind, len(fn.Params))
	header.ParamSlot = make([]byte, len(fn.Params))
	for i, p := range fn.Params {
		header.ParamSlot[i] = c.registerFor(p)
		switch p.Kind {
		case scope.KindArgumentHeap:
			header.ParamKind[i] = bytecode.ParamArgHeap
		case scope.KindIndependentArgument:
			header.ParamKind[i] = bytecode.ParamArgIndependent
		default:
			header.ParamKind[i] = bytecode.ParamArgReg
		}
	}
	anyHeapArg := false
	for _, p := range fn.Params {
		if p.Kind == scope.KindArgumentHeap {
			anyHeapArg = true
		}
	}
	if anyHeapArg {
		r, err := child.Alloc.AllocTemp()
		if err != nil {
			return nil, c.errorAt(&fnPosNode{fn.StartPos, fn.EndPos}, ErrTooManyRegisters, "register capacity exceeded")
		}
		child.Alloc.BindVariable(r)
		header.ArgsReg = r
	}
	if fn.RestParam != nil {
		header.RestReg = c.registerFor(fn.RestParam)
	}
	if fn.EllipsisParam != nil {
		header.EllipsisReg = c.registerFor(fn.EllipsisParam)
		header.SetFlag(bytecode.FlagHasEllipsis, true)
	}

	// note: this frame's own closure-cell array (if child.closureReg != 0)
	// is NOT initialized here with LOAD_ARRAY: independent *arguments*
	// need their initial values deposited into it before the body's first
	// instruction runs, so the call prologue builds and pre-populates it
	// directly (vm.prepareFrame), sized to the now-final header.ClosureSize.

	// step 5: this register, only if referenced (constructors always
	// reference it implicitly via the constructed instance).
	if scan.usesThis || fn.IsConstructor {
		r, err := child.Alloc.AllocTemp()
		if err != nil {
			return nil, c.errorAt(&fnPosNode{fn.StartPos, fn.EndPos}, ErrTooManyRegisters, "register capacity exceeded")
		}
		child.Alloc.BindVariable(r)
		header.ThisReg = r
	}

	// step 7: base_ctor_reg/base_proto_reg for derived-class constructors.
	if fn.IsConstructor && hasBase {
		r1, err := child.Alloc.AllocTemp()
		if err != nil {
			return nil, c.errorAt(&fnPosNode{fn.StartPos, fn.EndPos}, ErrTooManyRegisters, "register capacity exceeded")
		}
		child.Alloc.BindVariable(r1)
		header.BaseCtorReg = r1
		r2, err := child.Alloc.AllocTemp()
		if err != nil {
			return nil, c.errorAt(&fnPosNode{fn.StartPos, fn.EndPos}, ErrTooManyRegisters, "register capacity exceeded")
		}
		child.Alloc.BindVariable(r2)
		header.BaseProtoReg = r2
	}

	// step 8: bind register range, one per captured outer scope. Derived
	// constructors reserve the first two bind slots for base_ctor/
	// base_proto (see compileClassLit), so their own captures start at 2.
	// bindRegs records, per bind slot, which register in this frame the
	// call prologue must copy the bound value into (the compile-time
	// bindSlot/BaseCtorReg/BaseProtoReg assignments have no other
	// runtime-visible record once this function returns).
	bindBase := 0
	var bindRegs []byte
	if fn.IsConstructor && hasBase {
		bindBase = 2
		bindRegs = append(bindRegs, header.BaseCtorReg, header.BaseProtoReg)
	}
	for _, capScope := range fn.Captures {
		r, err := child.Alloc.AllocTemp()
		if err != nil {
			return nil, c.errorAt(&fnPosNode{fn.StartPos, fn.EndPos}, ErrTooManyRegisters, "register capacity exceeded")
		}
		child.Alloc.BindVariable(r)
		child.bindSlot[capScope] = r
		bindRegs = append(bindRegs, r)
	}
	header.BindRegs = bindRegs
	header.NumBinds = uint8(bindBase + len(fn.Captures))
	if header.NumBinds > 0 {
		header.SetFlag(bytecode.FlagIsClosure, true)
	}

	// step 9: emit the body (step 10 is satisfied by only ever allocating
	// this/rest/args/ellipsis registers when actually referenced above,
	// rather than allocating-then-freeing).
	if fn.IsConstructor && hasBase && !scan.callsSuper {
		// step 11: implicit super(...) call.
		if err := c.emitImplicitSuperCall(header); err != nil {
			return nil, err
		}
	}
	for _, stmt := range fn.Body.Stmts {
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}

	// fall off the end: constructors return `this`, everything else void.
	child.SetLine(fn.Body.End().Line)
	retReg, err := child.Alloc.AllocTemp()
	if err != nil {
		return nil, c.errorAt(&fnPosNode{fn.StartPos, fn.EndPos}, ErrTooManyRegisters, "register capacity exceeded")
	}
	if fn.IsConstructor {
		if _, err := child.Emit(bytecode.MOVE, int64(retReg), int64(header.ThisReg)); err != nil {
			return nil, err
		}
	} else {
		if _, err := child.Emit(bytecode.LOAD_VOID, int64(retReg)); err != nil {
			return nil, err
		}
	}
	if _, err := child.Emit(bytecode.RETURN, int64(retReg)); err != nil {
		return nil, err
	}

	// steps 12-13: finalize and intern.
	c.finalizeFrame(child)
	idx := c.Pool.InternFunction(header)
	entry := &fnConstEntry{header: header, idx: idx}
	c.fnConst[fn] = entry
	return entry, nil
}

// emitImplicitSuperCall lowers the auto-emitted `super(...)` call a
// non-explicit derived-class constructor gets (spec §4.4 step 11): call
// the base constructor's apply with the current `this` and no arguments.
func (c *Compiler) emitImplicitSuperCall(header *bytecode.FunctionHeader) error {
	f := c.frame
	base, err := f.Alloc.AllocContiguous(2)
	if err != nil {
		return err
	}
	if _, err := f.Emit(bytecode.MOVE, int64(base), int64(header.BaseCtorReg)); err != nil {
		return err
	}
	if _, err := f.Emit(bytecode.MOVE, int64(base+1), int64(header.ThisReg)); err != nil {
		return err
	}
	dst, err := f.Alloc.AllocTemp()
	if err != nil {
		return err
	}
	if _, err := f.Emit(bytecode.CALL_N, int64(dst), int64(base), 1); err != nil {
		return err
	}
	f.Alloc.Free(dst)
	f.Alloc.Free(base)
	return nil
}

// emitClosureInit emits the call-site half of function-literal lowering
// (spec §4.4 "At the call site"): LOAD_CONST/LOAD_FUN, then
// BIND/BIND_SELF for every captured scope, then BIND_DEFAULTS if the
// function declares any default-valued parameter.
//
// Every declared default (not just ones with non-trivial initializers)
// is evaluated here, once per closure instantiation, and handed to the
// callee as a plain value array: a call site has no way to hand the
// callee a compiled expression to re-evaluate per-call, so the defaults
// array is the only form a call's argument-binding prologue can consult
// (see DESIGN.md).
func (c *Compiler) emitClosureInit(fn *ast.FunctionNode, entry *fnConstEntry, hint *byte) (byte, error) {
	f := c.frame
	header := entry.header

	header.NumUsedDefArgs = header.NumDeclDefArgs
	needsFun := header.NumBinds > 0 || header.NumDeclDefArgs > 0
	if needsFun {
		header.LoadInstr = bytecode.LoadUseFun
	} else {
		header.LoadInstr = bytecode.LoadUseConst
	}

	dst, err := c.dest(hint)
	if err != nil {
		return 0, err
	}
	var loadOp bytecode.Opcode
	switch {
	case needsFun && entry.idx <= 255:
		loadOp = bytecode.LOAD_FUN8
	case needsFun:
		loadOp = bytecode.LOAD_FUN
	case entry.idx <= 255:
		loadOp = bytecode.LOAD_CONST8
	default:
		loadOp = bytecode.LOAD_CONST
	}
	if _, err := f.Emit(loadOp, int64(dst), int64(entry.idx)); err != nil {
		return 0, err
	}

	for i, capScope := range fn.Captures {
		slot := i
		if fn.IsConstructor {
			slot += int(header.NumBinds) - len(fn.Captures)
		}
		isSelf := capScope == f.Scope.EnclosingFunction()
		if isSelf {
			if _, err := f.Emit(bytecode.BIND_SELF, int64(dst), int64(slot)); err != nil {
				return 0, err
			}
			continue
		}
		srcReg, ok := f.bindSlot[capScope]
		if !ok {
			return 0, CompileError{Kind: ErrUndefinedVariable, Message: "capture chain not wired for nested closure", File: c.FileName}
		}
		if _, err := f.Emit(bytecode.BIND, int64(dst), int64(slot), int64(srcReg)); err != nil {
			return 0, err
		}
	}

	if header.NumDeclDefArgs > 0 {
		arr, err := f.Alloc.AllocTemp()
		if err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.LOAD_ARRAY, int64(arr), int64(header.NumDeclDefArgs)); err != nil {
			return 0, err
		}
		required := len(fn.Params) - len(fn.DefaultValues)
		for paramIdx := required; paramIdx < len(fn.Params); paramIdx++ {
			dv, ok := fn.DefaultValues[paramIdx]
			if !ok {
				return 0, CompileError{Kind: ErrUndefinedVariable, Message: "optional parameter missing a default value", File: c.FileName}
			}
			valr, err := c.compileExpr(dv)
			if err != nil {
				return 0, err
			}
			if _, err := f.Emit(bytecode.SET_ELEM, int64(arr), int64(paramIdx-required), int64(valr)); err != nil {
				return 0, err
			}
			f.Alloc.Free(valr)
		}
		if _, err := f.Emit(bytecode.BIND_DEFAULTS, int64(dst), int64(arr)); err != nil {
			return 0, err
		}
		f.Alloc.Free(arr)
	}

	return dst, nil
}

// fnPosNode adapts a start/end position pair to ast.Node for errorAt calls
// that have no more specific node at hand during synthesis.
type fnPosNode struct {
	start, end ast.Position
}

func (n *fnPosNode) Pos() ast.Position { return n.start }
func (n *fnPosNode) End() ast.Position { return n.end }
