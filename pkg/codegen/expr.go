package codegen

import (
	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/constpool"
	"github.com/kos-lang/kos/pkg/scope"
)

// compileExpr lowers e and returns a register holding its value. The
// returned register is a temporary unless e is a bare identifier read of
// an already variable-bound register, in which case the bound register
// itself is returned (callers must not free a register they did not
// obtain as a temp — AllocTemp-returned registers are always safe to
// Free; BindVariable-owned ones are silently ignored by Free).
func (c *Compiler) compileExpr(e ast.Expression) (byte, error) {
	return c.compileExprHint(e, nil)
}

// compileExprInto lowers e directly into dest.
func (c *Compiler) compileExprInto(e ast.Expression, dest byte) error {
	_, err := c.compileExprHint(e, &dest)
	return err
}

func (c *Compiler) compileExprHint(e ast.Expression, hint *byte) (byte, error) {
	f := c.frame
	f.SetLine(e.Pos().Line)

	switch n := e.(type) {
	case *ast.Identifier:
		return c.compileIdentifier(n, hint)

	case *ast.IntLit:
		return c.compileIntLit(n, hint)

	case *ast.FloatLit:
		return c.loadConst(hint, func() int { return c.Pool.InternFloat(n.Value) })

	case *ast.StringLit:
		esc := constpool.NoEscape
		if n.HasEscape {
			esc = constpool.WithEscape
		}
		return c.loadConst(hint, func() int { return c.Pool.InternString(n.Value, esc) })

	case *ast.BoolLit:
		dst, err := c.dest(hint)
		if err != nil {
			return 0, err
		}
		op := bytecode.LOAD_FALSE
		if n.Value {
			op = bytecode.LOAD_TRUE
		}
		_, err = f.Emit(op, int64(dst))
		return dst, err

	case *ast.VoidLit:
		dst, err := c.dest(hint)
		if err != nil {
			return 0, err
		}
		_, err = f.Emit(bytecode.LOAD_VOID, int64(dst))
		return dst, err

	case *ast.This:
		dst, err := c.dest(hint)
		if err != nil {
			return 0, err
		}
		if dst == f.Header.ThisReg {
			return dst, nil
		}
		_, err = f.Emit(bytecode.MOVE, int64(dst), int64(f.Header.ThisReg))
		return dst, err

	case *ast.Super:
		return c.compileSuper(n, hint)

	case *ast.Binary:
		return c.compileBinary(n, hint)

	case *ast.Logical:
		return c.compileLogical(n, hint)

	case *ast.Unary:
		return c.compileUnary(n, hint)

	case *ast.Ternary:
		return c.compileTernary(n, hint)

	case *ast.TypeOf:
		return c.compileTypeOf(n, hint)

	case *ast.In:
		return c.compileIn(n, hint)

	case *ast.Delete:
		return c.compileDelete(n, hint)

	case *ast.Refinement:
		return c.compileRefinementRead(n, hint)

	case *ast.Slice:
		return c.compileSliceRead(n, hint)

	case *ast.Call:
		return c.compileCall(n, hint)

	case *ast.New:
		return c.compileNew(n, hint)

	case *ast.ObjectLit:
		return c.compileObjectLit(n, hint)

	case *ast.ArrayLit:
		return c.compileArrayLit(n, hint)

	case *ast.FunctionLit:
		return c.compileFunctionLit(n.Fn, hint)

	case *ast.ClassLit:
		return c.compileClassLit(n, hint)

	case *ast.Assign:
		return c.compileAssign(n, hint)

	case *ast.MultiAssign:
		return c.compileMultiAssign(n, hint)

	case *ast.Yield:
		return c.compileYield(n, hint)

	default:
		return 0, c.errorAt(e, ErrExpectedIdentifier, "unsupported expression node")
	}
}

// dest returns hint if set, else a fresh temporary.
func (c *Compiler) dest(hint *byte) (byte, error) {
	if hint != nil {
		return *hint, nil
	}
	r, err := c.frame.Alloc.AllocTemp()
	if err != nil {
		return 0, CompileError{Kind: ErrTooManyRegisters, Message: "register capacity exceeded", File: c.FileName}
	}
	return r, nil
}

func (c *Compiler) compileIdentifier(n *ast.Identifier, hint *byte) (byte, error) {
	if hint == nil && (n.Var.Kind == scope.KindLocal || n.Var.Kind == scope.KindArgumentReg) {
		return c.registerFor(n.Var), nil
	}
	r, err := c.readVariable(n.Var)
	if err != nil {
		return 0, err
	}
	if hint != nil && r != *hint {
		if _, err := c.frame.Emit(bytecode.MOVE, int64(*hint), int64(r)); err != nil {
			return 0, err
		}
		c.frame.Alloc.Free(r)
		return *hint, nil
	}
	return r, nil
}

func (c *Compiler) compileIntLit(n *ast.IntLit, hint *byte) (byte, error) {
	dst, err := c.dest(hint)
	if err != nil {
		return 0, err
	}
	if n.Value >= -128 && n.Value <= 127 {
		_, err = c.frame.Emit(bytecode.LOAD_INT8, int64(dst), n.Value)
		return dst, err
	}
	idx := c.Pool.InternInt(n.Value)
	return c.emitLoadConstIdx(dst, idx)
}

func (c *Compiler) loadConst(hint *byte, intern func() int) (byte, error) {
	dst, err := c.dest(hint)
	if err != nil {
		return 0, err
	}
	idx := intern()
	return c.emitLoadConstIdx(dst, idx)
}

func (c *Compiler) emitLoadConstIdx(dst byte, idx int) (byte, error) {
	var err error
	if idx <= 255 {
		_, err = c.frame.Emit(bytecode.LOAD_CONST8, int64(dst), int64(idx))
	} else {
		_, err = c.frame.Emit(bytecode.LOAD_CONST, int64(dst), int64(idx))
	}
	return dst, err
}

func (c *Compiler) compileSuper(n *ast.Super, hint *byte) (byte, error) {
	dst, err := c.dest(hint)
	if err != nil {
		return 0, err
	}
	if c.frame.Header.BaseProtoReg == bytecode.KOSNoReg {
		return 0, c.errorAt(n, ErrUnexpectedSuper, "super used outside a constructor with a base class")
	}
	if dst == c.frame.Header.BaseProtoReg {
		return dst, nil
	}
	_, err = c.frame.Emit(bytecode.MOVE, int64(dst), int64(c.frame.Header.BaseProtoReg))
	return dst, err
}
