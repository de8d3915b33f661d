package codegen

import (
	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/constpool"
)

// compileRefinementRead lowers a property/element read (spec §4.3.4
// "Property access"): GET_PROP8 when the string-constant index fits in
// one byte, else GET; GET_ELEM8 for an integer-literal index in
// [-128,127]. Every other index goes through GET with the key in a
// register; GET_ELEM is not emitted.
func (c *Compiler) compileRefinementRead(n *ast.Refinement, hint *byte) (byte, error) {
	f := c.frame
	objr, err := c.compileExpr(n.Object)
	if err != nil {
		return 0, err
	}
	dst, err := f.Alloc.AllocDest(hint, objr)
	if err != nil {
		return 0, err
	}

	if !n.IsIndex {
		lit, ok := n.Key.(*ast.StringLit)
		if !ok {
			return 0, c.errorAt(n, ErrExpectedIdentifier, "property key must be a name")
		}
		idx := c.Pool.InternString(lit.Value, escapeMode(lit))
		if idx <= 255 {
			_, err = f.Emit(bytecode.GET_PROP8, int64(dst), int64(objr), int64(idx))
		} else {
			keyr, e2 := c.compileExpr(n.Key)
			if e2 != nil {
				return 0, e2
			}
			_, err = f.Emit(bytecode.GET, int64(dst), int64(objr), int64(keyr))
			f.Alloc.Free(keyr)
		}
	} else if lit, ok := n.Key.(*ast.IntLit); ok && lit.Value >= -128 && lit.Value <= 127 {
		_, err = f.Emit(bytecode.GET_ELEM8, int64(dst), int64(objr), lit.Value)
	} else {
		keyr, e2 := c.compileExpr(n.Key)
		if e2 != nil {
			return 0, e2
		}
		_, err = f.Emit(bytecode.GET, int64(dst), int64(objr), int64(keyr))
		f.Alloc.Free(keyr)
	}
	if err != nil {
		return 0, err
	}
	f.Alloc.Free(objr)
	return dst, nil
}

// compileSliceRead lowers `obj[a:b]` via GET_RANGE (spec §4.3.4
// "Slicing"). Missing bounds default to void, which the interpreter
// interprets as "start"/"end" at runtime.
func (c *Compiler) compileSliceRead(n *ast.Slice, hint *byte) (byte, error) {
	f := c.frame
	objr, err := c.compileExpr(n.Object)
	if err != nil {
		return 0, err
	}
	beginr, err := c.sliceBound(n.Begin)
	if err != nil {
		return 0, err
	}
	endr, err := c.sliceBound(n.Stop)
	if err != nil {
		return 0, err
	}
	dst, err := f.Alloc.AllocDest(hint, objr)
	if err != nil {
		return 0, err
	}
	if _, err := f.Emit(bytecode.GET_RANGE, int64(dst), int64(objr), int64(beginr), int64(endr)); err != nil {
		return 0, err
	}
	f.Alloc.Free(objr)
	f.Alloc.Free(beginr)
	f.Alloc.Free(endr)
	return dst, nil
}

func (c *Compiler) sliceBound(e ast.Expression) (byte, error) {
	if e == nil {
		r, err := c.frame.Alloc.AllocTemp()
		if err != nil {
			return 0, err
		}
		_, err = c.frame.Emit(bytecode.LOAD_VOID, int64(r))
		return r, err
	}
	return c.compileExpr(e)
}

// compileObjectLit lowers `{ proto: ..., k: v }` (spec §4.3.4 "Object
// literals").
func (c *Compiler) compileObjectLit(n *ast.ObjectLit, hint *byte) (byte, error) {
	f := c.frame
	dst, err := c.dest(hint)
	if err != nil {
		return 0, err
	}
	if n.Proto != nil {
		protor, err := c.compileExpr(n.Proto)
		if err != nil {
			return 0, err
		}
		if _, err := f.Emit(bytecode.LOAD_OBJ_PROTO, int64(dst), int64(protor)); err != nil {
			return 0, err
		}
		f.Alloc.Free(protor)
	} else {
		if _, err := f.Emit(bytecode.LOAD_OBJ, int64(dst)); err != nil {
			return 0, err
		}
	}

	seen := make(map[string]bool, len(n.Props))
	for _, prop := range n.Props {
		if seen[prop.Key] {
			return 0, c.errorAt(n, ErrDuplicateProperty, "duplicate property %q", prop.Key)
		}
		seen[prop.Key] = true

		valr, err := c.compileExpr(prop.Value)
		if err != nil {
			return 0, err
		}
		idx := c.Pool.InternString([]byte(prop.Key), constpool.NoEscape)

		if prop.IsGetter {
			// A getter's value is always a function literal; it is installed
			// as a live accessor (SET_GETTER8) rather than a snapshot value,
			// so every read re-invokes it.
			if idx > 255 {
				return 0, c.errorAt(n, ErrTooManyConstants, "getter property %q needs a constant index beyond SET_GETTER8's 8-bit immediate", prop.Key)
			}
			_, err = f.Emit(bytecode.SET_GETTER8, int64(dst), int64(idx), int64(valr))
		} else if idx <= 255 {
			_, err = f.Emit(bytecode.SET_PROP8, int64(dst), int64(idx), int64(valr))
		} else {
			keyr, e2 := c.loadConst(nil, func() int { return idx })
			if e2 != nil {
				return 0, e2
			}
			_, err = f.Emit(bytecode.SET, int64(dst), int64(keyr), int64(valr))
			f.Alloc.Free(keyr)
		}
		if err != nil {
			return 0, err
		}
		f.Alloc.Free(valr)
	}
	return dst, nil
}

// compileArrayLit lowers `[e1, e2, ...]` (spec §4.3.4 "Array literals").
func (c *Compiler) compileArrayLit(n *ast.ArrayLit, hint *byte) (byte, error) {
	f := c.frame
	dst, err := c.dest(hint)
	if err != nil {
		return 0, err
	}

	fixedSize := 0
	for _, el := range n.Elems {
		if el.Expand {
			break
		}
		fixedSize++
	}
	initSize := fixedSize
	if initSize > 255 {
		initSize = 255
	}
	if _, err := f.Emit(bytecode.LOAD_ARRAY, int64(dst), int64(initSize)); err != nil {
		return 0, err
	}
	if fixedSize > 255 {
		// grown via the array's resize method rather than a dedicated
		// opcode (spec §4.3.4: "emit a secondary call to the array's
		// resize method to grow it").
		if err := c.emitMethodCall(dst, "resize", []ast.Expression{&ast.IntLit{Value: int64(fixedSize)}}); err != nil {
			return 0, err
		}
	}

	for i, el := range n.Elems {
		valr, err := c.compileExpr(el.Value)
		if err != nil {
			return 0, err
		}
		switch {
		case el.Expand:
			_, err = f.Emit(bytecode.PUSH_EX, int64(dst), int64(valr))
		case i < fixedSize:
			_, err = f.Emit(bytecode.SET_ELEM, int64(dst), int64(i), int64(valr))
		default:
			_, err = f.Emit(bytecode.PUSH, int64(dst), int64(valr))
		}
		if err != nil {
			return 0, err
		}
		f.Alloc.Free(valr)
	}
	return dst, nil
}

// emitMethodCall emits `recv.name(args...)`, discarding the result; used
// for the array-grow fallback above.
func (c *Compiler) emitMethodCall(recv byte, name string, args []ast.Expression) error {
	f := c.frame
	idx := c.Pool.InternString([]byte(name), constpool.NoEscape)
	methodr, err := f.Alloc.AllocTemp()
	if err != nil {
		return err
	}
	if idx <= 255 {
		_, err = f.Emit(bytecode.GET_PROP8, int64(methodr), int64(recv), int64(idx))
	} else {
		var keyr byte
		keyr, err = c.loadConst(nil, func() int { return idx })
		if err == nil {
			_, err = f.Emit(bytecode.GET, int64(methodr), int64(recv), int64(keyr))
			f.Alloc.Free(keyr)
		}
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
		if err := c.compileExprInto(a, base+2+byte(i)); err != nil {
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
