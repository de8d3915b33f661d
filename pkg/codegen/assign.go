package codegen

import (
	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/constpool"
)

var compoundBinaryOp = map[ast.AssignOp]bytecode.Opcode{
	ast.OpAssignAdd:    bytecode.ADD,
	ast.OpAssignSub:    bytecode.SUB,
	ast.OpAssignMul:    bytecode.MUL,
	ast.OpAssignDiv:    bytecode.DIV,
	ast.OpAssignMod:    bytecode.MOD,
	ast.OpAssignShl:    bytecode.SHL,
	ast.OpAssignShr:    bytecode.SHR,
	ast.OpAssignShru:   bytecode.SHRU,
	ast.OpAssignBitAnd: bytecode.AND,
	ast.OpAssignBitOr:  bytecode.OR,
	ast.OpAssignBitXor: bytecode.XOR,
}

// compileAssign lowers `target op= value` across the three assignable LHS
// kinds (spec §4.3.5).
func (c *Compiler) compileAssign(n *ast.Assign, hint *byte) (byte, error) {
	switch t := n.Target.(type) {
	case *ast.Identifier:
		return c.compileAssignIdentifier(n, t, hint)
	case *ast.Refinement:
		return c.compileAssignRefinement(n, t, hint)
	case *ast.Slice:
		return c.compileAssignSlice(n, t, hint)
	default:
		return 0, c.errorAt(n, ErrExpectedRefinement, "invalid assignment target")
	}
}

func (c *Compiler) compileAssignIdentifier(n *ast.Assign, id *ast.Identifier, hint *byte) (byte, error) {
	f := c.frame
	v := id.Var
	if v.IsConst {
		return 0, c.errorAt(n, ErrConstAssignment, "cannot assign to const variable %q", v.Name)
	}

	if n.Op == ast.OpAssign {
		valr, err := c.compileExpr(n.Value)
		if err != nil {
			return 0, err
		}
		if err := c.writeVariable(n, v, valr); err != nil {
			return 0, err
		}
		return c.finishAssignResult(valr, hint)
	}

	cur, err := c.readVariable(v)
	if err != nil {
		return 0, err
	}
	valr, err := c.compileExpr(n.Value)
	if err != nil {
		return 0, err
	}
	opc := compoundBinaryOp[n.Op]
	dst, err := f.Alloc.AllocDest(hint, cur)
	if err != nil {
		return 0, err
	}
	if _, err := f.Emit(opc, int64(dst), int64(cur), int64(valr)); err != nil {
		return 0, err
	}
	f.Alloc.Free(valr)
	if err := c.writeVariable(n, v, dst); err != nil {
		return 0, err
	}
	if cur != dst {
		f.Alloc.Free(cur)
	}
	return dst, nil
}

func (c *Compiler) finishAssignResult(valr byte, hint *byte) (byte, error) {
	if hint == nil || *hint == valr {
		return valr, nil
	}
	if _, err := c.frame.Emit(bytecode.MOVE, int64(*hint), int64(valr)); err != nil {
		return 0, err
	}
	c.frame.Alloc.Free(valr)
	return *hint, nil
}

func (c *Compiler) compileAssignRefinement(n *ast.Assign, ref *ast.Refinement, hint *byte) (byte, error) {
	f := c.frame
	objr, err := c.compileExpr(ref.Object)
	if err != nil {
		return 0, err
	}

	var cur byte
	if n.Op != ast.OpAssign {
		cur, err = c.compileRefinementOn(ref, objr)
		if err != nil {
			return 0, err
		}
	}

	valr, err := c.compileExpr(n.Value)
	if err != nil {
		return 0, err
	}
	storeVal := valr
	if n.Op != ast.OpAssign {
		opc := compoundBinaryOp[n.Op]
		dst, err := f.Alloc.AllocDest(hint, cur)
		if err != nil {
			return 0, err
		}
		if _, err := f.Emit(opc, int64(dst), int64(cur), int64(valr)); err != nil {
			return 0, err
		}
		f.Alloc.Free(valr)
		f.Alloc.Free(cur)
		storeVal = dst
	}

	if err := c.storeRefinement(ref, objr, storeVal); err != nil {
		return 0, err
	}
	f.Alloc.Free(objr)
	return c.finishAssignResult(storeVal, hint)
}

// storeRefinement emits SET_PROP8/SET/SET_ELEM8 for `obj.prop = val` /
// `obj[key] = val`: SET_ELEM8 for an integer-literal index in [-128,127],
// SET for every other index; SET_ELEM is not emitted.
func (c *Compiler) storeRefinement(ref *ast.Refinement, objr, valr byte) error {
	f := c.frame
	if !ref.IsIndex {
		lit, ok := ref.Key.(*ast.StringLit)
		if !ok {
			return c.errorAt(ref, ErrExpectedIdentifier, "property key must be a name")
		}
		idx := c.Pool.InternString(lit.Value, escapeMode(lit))
		if idx <= 255 {
			_, err := f.Emit(bytecode.SET_PROP8, int64(objr), int64(idx), int64(valr))
			return err
		}
		keyr, err := c.loadConst(nil, func() int { return idx })
		if err != nil {
			return err
		}
		_, err = f.Emit(bytecode.SET, int64(objr), int64(keyr), int64(valr))
		f.Alloc.Free(keyr)
		return err
	}
	if lit, ok := ref.Key.(*ast.IntLit); ok && lit.Value >= -128 && lit.Value <= 127 {
		_, err := f.Emit(bytecode.SET_ELEM8, int64(objr), lit.Value, int64(valr))
		return err
	}
	keyr, err := c.compileExpr(ref.Key)
	if err != nil {
		return err
	}
	_, err = f.Emit(bytecode.SET, int64(objr), int64(keyr), int64(valr))
	f.Alloc.Free(keyr)
	return err
}

// compileAssignSlice lowers `obj[a:b] = value` via a call to the object's
// `insert` method (spec §4.3.5: "Slice: always via method call to the
// object's insert method with three arguments (begin, end, rhs)").
func (c *Compiler) compileAssignSlice(n *ast.Assign, sl *ast.Slice, hint *byte) (byte, error) {
	if n.Op != ast.OpAssign {
		return 0, c.errorAt(n, ErrExpectedRefinement, "compound assignment to a slice is not supported")
	}
	f := c.frame
	objr, err := c.compileExpr(sl.Object)
	if err != nil {
		return 0, err
	}
	beginr, err := c.sliceBound(sl.Begin)
	if err != nil {
		return 0, err
	}
	endr, err := c.sliceBound(sl.Stop)
	if err != nil {
		return 0, err
	}
	valr, err := c.compileExpr(n.Value)
	if err != nil {
		return 0, err
	}
	if err := c.emitMethodCallRegs(objr, "insert", []byte{beginr, endr, valr}); err != nil {
		return 0, err
	}
	f.Alloc.Free(beginr)
	f.Alloc.Free(endr)
	f.Alloc.Free(objr)
	return c.finishAssignResult(valr, hint)
}

// emitMethodCallRegs is emitMethodCall's counterpart for arguments that
// are already materialized in registers.
func (c *Compiler) emitMethodCallRegs(recv byte, name string, args []byte) error {
	f := c.frame
	methodr, err := f.Alloc.AllocTemp()
	if err != nil {
		return err
	}
	idx := c.Pool.InternString([]byte(name), constpool.NoEscape)
	if idx <= 255 {
		_, err = f.Emit(bytecode.GET_PROP8, int64(methodr), int64(recv), int64(idx))
	} else {
		keyr, e2 := c.loadConst(nil, func() int { return idx })
		if e2 != nil {
			return e2
		}
		_, err = f.Emit(bytecode.GET, int64(methodr), int64(recv), int64(keyr))
		f.Alloc.Free(keyr)
	}
	if err != nil {
		return err
	}
	base, err := f.Alloc.AllocContiguous(len(args) + 2)
	if err != nil {
		return err
	}
	if _, err := f.Emit(bytecode.MOVE, int64(base), int64(methodr)); err != nil {
		return err
	}
	if _, err := f.Emit(bytecode.MOVE, int64(base+1), int64(recv)); err != nil {
		return err
	}
	for i, a := range args {
		if _, err := f.Emit(bytecode.MOVE, int64(base+2+byte(i)), int64(a)); err != nil {
			return err
		}
	}
	dst, err := f.Alloc.AllocTemp()
	if err != nil {
		return err
	}
	if _, err := f.Emit(bytecode.CALL_N, int64(dst), int64(base), int64(len(args)+1)); err != nil {
		return err
	}
	f.Alloc.Free(dst)
	f.Alloc.Free(methodr)
	f.Alloc.Free(base)
	return nil
}

// compileMultiAssign lowers destructuring assignment (spec §4.3.5
// "Multi-assignment"): wrap the RHS in LOAD_ITER, then NEXT into each
// target in turn.
func (c *Compiler) compileMultiAssign(n *ast.MultiAssign, hint *byte) (byte, error) {
	f := c.frame
	rhsr, err := c.compileExpr(n.Value)
	if err != nil {
		return 0, err
	}
	iterr, err := f.Alloc.AllocTemp()
	if err != nil {
		return 0, err
	}
	if _, err := f.Emit(bytecode.LOAD_ITER, int64(iterr), int64(rhsr)); err != nil {
		return 0, err
	}

	for _, target := range n.Targets {
		valr, err := f.Alloc.AllocTemp()
		if err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.NEXT, int64(valr), int64(iterr)); err != nil {
			return 0, err
		}
		if id, ok := target.(*ast.Identifier); ok && id.Var.Name == "_" {
			f.Alloc.Free(valr)
			continue
		}
		assign := &ast.Assign{Target: target, Op: ast.OpAssign, Value: nil, StartPos: target.Pos(), EndPos: target.End()}
		if err := c.storeAssignTarget(assign, target, valr); err != nil {
			return 0, err
		}
		f.Alloc.Free(valr)
	}
	f.Alloc.Free(iterr)
	return rhsr, nil
}

// storeAssignTarget stores an already-computed value valr into target,
// reusing the single-target assignment store paths without re-evaluating
// a RHS expression.
func (c *Compiler) storeAssignTarget(n *ast.Assign, target ast.Expression, valr byte) error {
	switch t := target.(type) {
	case *ast.Identifier:
		return c.writeVariable(n, t.Var, valr)
	case *ast.Refinement:
		objr, err := c.compileExpr(t.Object)
		if err != nil {
			return err
		}
		if err := c.storeRefinement(t, objr, valr); err != nil {
			return err
		}
		c.frame.Alloc.Free(objr)
		return nil
	default:
		return c.errorAt(target, ErrExpectedIdentifier, "invalid destructuring target")
	}
}
