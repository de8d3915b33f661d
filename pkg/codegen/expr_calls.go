package codegen

import (
	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/bytecode"
)

// compileCall lowers a call expression (spec §4.3.4, §4.5 "Call
// protocol"). Two lowerings are used depending on whether any argument is
// a splat (`...expr`):
//   - fixed arity: CALL_N over a contiguous [callee, this, arg0, arg1, ...]
//     block, the fast path the interpreter's register-window call
//     protocol expects; the imm8 operand counts `this` plus the args.
//   - any splat present: the arguments are assembled into an array value
//     (the same LOAD_ARRAY/PUSH/PUSH_EX lowering as an array literal) and
//     passed via CALL against that array; CALL keeps CALL_N's contiguous
//     [callee, this] base register pair so the interpreter's call
//     protocol addresses `this` the same way regardless of which opcode
//     produced the frame.
//
// The emitter never emits the TAIL_CALL family: the spec leaves the
// trigger condition for tail-call emission to the implementation and
// this compiler takes the conservative reading (see DESIGN.md).
func (c *Compiler) compileCall(n *ast.Call, hint *byte) (byte, error) {
	f := c.frame

	calleer, thisr, err := c.compileCallee(n.Callee)
	if err != nil {
		return 0, err
	}

	hasExpand := false
	for _, ex := range n.Expand {
		if ex {
			hasExpand = true
			break
		}
	}

	dst, err := c.dest(hint)
	if err != nil {
		return 0, err
	}

	if !hasExpand {
		if len(n.Args) > 254 {
			return 0, c.errorAt(n, ErrTooManyArgs, "too many arguments in call")
		}
		base, err := f.Alloc.AllocContiguous(len(n.Args) + 2)
		if err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.MOVE, int64(base), int64(calleer)); err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.MOVE, int64(base+1), int64(thisr)); err != nil {
			return 0, err
		}
		for i, a := range n.Args {
			if err := c.compileExprInto(a, base+2+byte(i)); err != nil {
				return 0, err
			}
		}
		if _, err := f.Emit(bytecode.CALL_N, int64(dst), int64(base), int64(len(n.Args)+1)); err != nil {
			return 0, err
		}
		f.Alloc.Free(base)
	} else {
		argsr, err := c.buildExpandableArgs(n.Args, n.Expand)
		if err != nil {
			return 0, err
		}
		base, err := f.Alloc.AllocContiguous(2)
		if err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.MOVE, int64(base), int64(calleer)); err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.MOVE, int64(base+1), int64(thisr)); err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.CALL, int64(dst), int64(base), int64(argsr)); err != nil {
			return 0, err
		}
		f.Alloc.Free(base)
		f.Alloc.Free(argsr)
	}
	f.Alloc.Free(calleer)
	f.Alloc.Free(thisr)
	return dst, nil
}

// compileCallee evaluates the callee expression, returning the function
// value register and the register to use as `this`: the receiver object
// for a method call (`obj.method(...)`), or a fresh void register
// otherwise.
func (c *Compiler) compileCallee(callee ast.Expression) (fn byte, this byte, err error) {
	f := c.frame
	if ref, ok := callee.(*ast.Refinement); ok {
		objr, err := c.compileExpr(ref.Object)
		if err != nil {
			return 0, 0, err
		}
		fnr, err := c.compileRefinementOn(ref, objr)
		if err != nil {
			return 0, 0, err
		}
		return fnr, objr, nil
	}
	fnr, err := c.compileExpr(callee)
	if err != nil {
		return 0, 0, err
	}
	thisr, err := f.Alloc.AllocTemp()
	if err != nil {
		return 0, 0, err
	}
	if _, err := f.Emit(bytecode.LOAD_VOID, int64(thisr)); err != nil {
		return 0, 0, err
	}
	return fnr, thisr, nil
}

// compileRefinementOn reads ref's key off an already-evaluated object
// register objr (used by compileCallee so the receiver is only evaluated
// once).
func (c *Compiler) compileRefinementOn(ref *ast.Refinement, objr byte) (byte, error) {
	f := c.frame
	dst, err := f.Alloc.AllocTemp()
	if err != nil {
		return 0, err
	}
	if !ref.IsIndex {
		lit, ok := ref.Key.(*ast.StringLit)
		if !ok {
			return 0, c.errorAt(ref, ErrExpectedIdentifier, "property key must be a name")
		}
		idx := c.Pool.InternString(lit.Value, escapeMode(lit))
		if idx <= 255 {
			_, err = f.Emit(bytecode.GET_PROP8, int64(dst), int64(objr), int64(idx))
		} else {
			keyr, e2 := c.compileExpr(ref.Key)
			if e2 != nil {
				return 0, e2
			}
			_, err = f.Emit(bytecode.GET, int64(dst), int64(objr), int64(keyr))
			f.Alloc.Free(keyr)
		}
		return dst, err
	}
	keyr, err := c.compileExpr(ref.Key)
	if err != nil {
		return 0, err
	}
	_, err = f.Emit(bytecode.GET, int64(dst), int64(objr), int64(keyr))
	f.Alloc.Free(keyr)
	return dst, err
}

// buildExpandableArgs assembles a call's argument list into an array
// value, splatting any `...expr` argument, for the CALL opcode's
// generic args-container form.
func (c *Compiler) buildExpandableArgs(args []ast.Expression, expand []bool) (byte, error) {
	f := c.frame
	dst, err := f.Alloc.AllocTemp()
	if err != nil {
		return 0, err
	}
	if _, err := f.Emit(bytecode.LOAD_ARRAY, int64(dst), 0); err != nil {
		return 0, err
	}
	for i, a := range args {
		valr, err := c.compileExpr(a)
		if err != nil {
			return 0, err
		}
		if expand[i] {
			_, err = f.Emit(bytecode.PUSH_EX, int64(dst), int64(valr))
		} else {
			_, err = f.Emit(bytecode.PUSH, int64(dst), int64(valr))
		}
		if err != nil {
			return 0, err
		}
		f.Alloc.Free(valr)
	}
	return dst, nil
}

// compileNew lowers `new Class(...)` (spec §4.5 "for classes: allocate a
// fresh this object ..."): identical call lowering to a plain call, with
// void passed as the caller-supplied `this` so the interpreter knows to
// synthesize a fresh instance.
func (c *Compiler) compileNew(n *ast.New, hint *byte) (byte, error) {
	call := &ast.Call{Callee: n.Class, Args: n.Args, Expand: n.Expand, StartPos: n.StartPos, EndPos: n.EndPos}
	return c.compileCall(call, hint)
}
