package codegen

import (
	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/constpool"
)

var binaryOpcode = map[ast.BinaryOp]bytecode.Opcode{
	ast.OpAdd:    bytecode.ADD,
	ast.OpSub:    bytecode.SUB,
	ast.OpMul:    bytecode.MUL,
	ast.OpDiv:    bytecode.DIV,
	ast.OpMod:    bytecode.MOD,
	ast.OpShl:    bytecode.SHL,
	ast.OpShr:    bytecode.SHR,
	ast.OpShru:   bytecode.SHRU,
	ast.OpBitAnd: bytecode.AND,
	ast.OpBitOr:  bytecode.OR,
	ast.OpBitXor: bytecode.XOR,
	ast.OpEq:     bytecode.CMP_EQ,
	ast.OpNe:     bytecode.CMP_NE,
	ast.OpLt:     bytecode.CMP_LT,
	ast.OpLe:     bytecode.CMP_LE,
}

func (c *Compiler) compileBinary(n *ast.Binary, hint *byte) (byte, error) {
	f := c.frame

	// `>` and `>=` emit by swapping operands and using CMP_LT/CMP_LE
	// (spec §4.3.4).
	op, x, y := n.Op, n.X, n.Y
	switch op {
	case ast.OpGt:
		op, x, y = ast.OpLt, n.Y, n.X
	case ast.OpGe:
		op, x, y = ast.OpLe, n.Y, n.X
	}

	xr, err := c.compileExpr(x)
	if err != nil {
		return 0, err
	}
	yr, err := c.compileExpr(y)
	if err != nil {
		return 0, err
	}
	dst, err := c.frame.Alloc.AllocDest(hint, xr)
	if err != nil {
		return 0, err
	}
	opc, ok := binaryOpcode[op]
	if !ok {
		return 0, c.errorAt(n, ErrOperandNotNumeric, "unsupported binary operator")
	}
	if _, err := f.Emit(opc, int64(dst), int64(xr), int64(yr)); err != nil {
		return 0, err
	}
	f.Alloc.Free(xr)
	f.Alloc.Free(yr)
	return dst, nil
}

func (c *Compiler) compileLogical(n *ast.Logical, hint *byte) (byte, error) {
	f := c.frame
	xr, err := c.compileExpr(n.X)
	if err != nil {
		return 0, err
	}
	dst, err := f.Alloc.AllocDest(hint, xr)
	if err != nil {
		return 0, err
	}
	if dst != xr {
		if _, err := f.Emit(bytecode.MOVE, int64(dst), int64(xr)); err != nil {
			return 0, err
		}
	}
	f.Alloc.Free(xr)

	var skip jumpArray
	shortCircuitOp := bytecode.JUMP_NOT_COND
	if n.Op == ast.OpLogOr {
		shortCircuitOp = bytecode.JUMP_COND
	}
	if _, err := f.EmitJump(&skip, shortCircuitOp, int64(dst)); err != nil {
		return 0, err
	}

	yr, err := c.compileExpr(n.Y)
	if err != nil {
		return 0, err
	}
	if yr != dst {
		if _, err := f.Emit(bytecode.MOVE, int64(dst), int64(yr)); err != nil {
			return 0, err
		}
		f.Alloc.Free(yr)
	}
	f.PatchTo(skip, f.Offset())
	return dst, nil
}

func (c *Compiler) compileUnary(n *ast.Unary, hint *byte) (byte, error) {
	f := c.frame
	xr, err := c.compileExpr(n.X)
	if err != nil {
		return 0, err
	}
	dst, err := f.Alloc.AllocDest(hint, xr)
	if err != nil {
		return 0, err
	}
	switch n.Op {
	case ast.OpNeg:
		// no dedicated negate opcode; lower to `0 - x`.
		zero, err := f.Alloc.AllocTemp()
		if err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.LOAD_INT8, int64(zero), 0); err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.SUB, int64(dst), int64(zero), int64(xr)); err != nil {
			return 0, err
		}
		f.Alloc.Free(zero)
	case ast.OpNot:
		if _, err := f.Emit(bytecode.NOT, int64(dst), int64(xr)); err != nil {
			return 0, err
		}
	case ast.OpBitNot:
		// no dedicated opcode; lower to `x XOR -1`.
		neg1, err := f.Alloc.AllocTemp()
		if err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.LOAD_INT8, int64(neg1), -1); err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.XOR, int64(dst), int64(xr), int64(neg1)); err != nil {
			return 0, err
		}
		f.Alloc.Free(neg1)
	}
	f.Alloc.Free(xr)
	return dst, nil
}

func (c *Compiler) compileTernary(n *ast.Ternary, hint *byte) (byte, error) {
	f := c.frame
	cond, err := c.compileExpr(n.Cond)
	if err != nil {
		return 0, err
	}
	dst, err := c.dest(hint)
	if err != nil {
		return 0, err
	}
	var toElse jumpArray
	if _, err := f.EmitJump(&toElse, bytecode.JUMP_NOT_COND, int64(cond)); err != nil {
		return 0, err
	}
	f.Alloc.Free(cond)
	if err := c.compileExprInto(n.Then, dst); err != nil {
		return 0, err
	}
	var toEnd jumpArray
	if _, err := f.EmitJump(&toEnd, bytecode.JUMP, 0); err != nil {
		return 0, err
	}
	f.PatchTo(toElse, f.Offset())
	if err := c.compileExprInto(n.Else, dst); err != nil {
		return 0, err
	}
	f.PatchTo(toEnd, f.Offset())
	return dst, nil
}

func (c *Compiler) compileTypeOf(n *ast.TypeOf, hint *byte) (byte, error) {
	xr, err := c.compileExpr(n.X)
	if err != nil {
		return 0, err
	}
	dst, err := c.frame.Alloc.AllocDest(hint, xr)
	if err != nil {
		return 0, err
	}
	if _, err := c.frame.Emit(bytecode.TYPE, int64(dst), int64(xr)); err != nil {
		return 0, err
	}
	c.frame.Alloc.Free(xr)
	return dst, nil
}

func (c *Compiler) compileIn(n *ast.In, hint *byte) (byte, error) {
	f := c.frame
	objr, err := c.compileExpr(n.Object)
	if err != nil {
		return 0, err
	}
	dst, err := f.Alloc.AllocDest(hint, objr)
	if err != nil {
		return 0, err
	}
	if lit, ok := n.Key.(*ast.StringLit); ok {
		idx := c.Pool.InternString(lit.Value, escapeMode(lit))
		if idx <= 255 {
			_, err = f.Emit(bytecode.HAS_SH_PROP8, int64(dst), int64(objr), int64(idx))
		} else {
			keyr, e2 := c.compileExpr(n.Key)
			if e2 != nil {
				return 0, e2
			}
			_, err = f.Emit(bytecode.HAS_SH, int64(dst), int64(objr), int64(keyr))
			f.Alloc.Free(keyr)
		}
	} else {
		keyr, e2 := c.compileExpr(n.Key)
		if e2 != nil {
			return 0, e2
		}
		_, err = f.Emit(bytecode.HAS_SH, int64(dst), int64(objr), int64(keyr))
		f.Alloc.Free(keyr)
	}
	f.Alloc.Free(objr)
	return dst, err
}

func (c *Compiler) compileDelete(n *ast.Delete, hint *byte) (byte, error) {
	f := c.frame
	ref := n.Target
	objr, err := c.compileExpr(ref.Object)
	if err != nil {
		return 0, err
	}
	dst, err := c.dest(hint)
	if err != nil {
		return 0, err
	}
	if !ref.IsIndex {
		lit := ref.Key.(*ast.StringLit)
		idx := c.Pool.InternString(lit.Value, escapeMode(lit))
		if idx <= 255 {
			_, err = f.Emit(bytecode.DEL_PROP8, int64(objr), int64(idx))
		} else {
			keyr, e2 := c.compileExpr(ref.Key)
			if e2 != nil {
				return 0, e2
			}
			_, err = f.Emit(bytecode.DEL, int64(objr), int64(keyr))
			f.Alloc.Free(keyr)
		}
	} else {
		keyr, e2 := c.compileExpr(ref.Key)
		if e2 != nil {
			return 0, e2
		}
		_, err = f.Emit(bytecode.DEL, int64(objr), int64(keyr))
		f.Alloc.Free(keyr)
	}
	if err != nil {
		return 0, err
	}
	f.Alloc.Free(objr)
	_, err = f.Emit(bytecode.LOAD_VOID, int64(dst))
	return dst, err
}

// compileYield lowers `yield [value]` (spec §4.5 generator state machine):
// YIELD writes value into dst and suspends until the consumer resumes via
// NEXT/NEXT_JUMP, which overwrites dst with the value passed to NEXT.
func (c *Compiler) compileYield(n *ast.Yield, hint *byte) (byte, error) {
	f := c.frame
	if !f.Header.IsGenerator() {
		return 0, c.errorAt(n, ErrCannotYield, "yield used outside a generator")
	}
	var valr byte
	var err error
	if n.Value != nil {
		valr, err = c.compileExpr(n.Value)
	} else {
		valr, err = f.Alloc.AllocTemp()
		if err == nil {
			_, err = f.Emit(bytecode.LOAD_VOID, int64(valr))
		}
	}
	if err != nil {
		return 0, err
	}
	dst, err := f.Alloc.AllocDest(hint, valr)
	if err != nil {
		return 0, err
	}
	if _, err := f.Emit(bytecode.YIELD, int64(dst), int64(valr)); err != nil {
		return 0, err
	}
	if dst != valr {
		f.Alloc.Free(valr)
	}
	return dst, nil
}

func escapeMode(lit *ast.StringLit) constpool.EscapeMode {
	if lit.HasEscape {
		return constpool.WithEscape
	}
	return constpool.NoEscape
}
