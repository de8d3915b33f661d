package codegen

import (
	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/scope"
)

// compileForIn lowers `for (x[, y...] in iterable)`. When the iterable is
// a call to the well-known `range` function, the range-specialized
// integer-loop form is used instead of the general iterator protocol
// (spec §4.3.3 "for-range optimization").
func (c *Compiler) compileForIn(n *ast.ForIn) error {
	if args, ok := rangeCall(n.Iterable); ok && len(n.Targets) == 1 {
		return c.compileForRange(n, args)
	}
	return c.compileForInGeneric(n)
}

// rangeCall recognizes `range(...)` / `base.range(...)` invocations (spec
// §4.3.3: "detected by inspecting the AST: globals named range declared
// in the base module or imported from it, or refinements base.range").
func rangeCall(e ast.Expression) ([]ast.Expression, bool) {
	call, ok := e.(*ast.Call)
	if !ok {
		return nil, false
	}
	switch callee := call.Callee.(type) {
	case *ast.Identifier:
		if callee.Var.Name != "range" || (callee.Var.Kind != scope.KindGlobal && callee.Var.Kind != scope.KindImported) {
			return nil, false
		}
	case *ast.Refinement:
		base, isIdent := callee.Object.(*ast.Identifier)
		lit, ok := callee.Key.(*ast.StringLit)
		if !isIdent || base.Var.Name != "base" || !ok || string(lit.Value) != "range" {
			return nil, false
		}
	default:
		return nil, false
	}
	if len(call.Args) < 2 || len(call.Args) > 3 {
		return nil, false
	}
	return call.Args, true
}

// compileForRange lowers the range-specialized form: a plain integer
// counter loop using LOAD_INT8/ADD/CMP_LT, decreasing when the third
// argument is a literal negative step.
func (c *Compiler) compileForRange(n *ast.ForIn, args []ast.Expression) error {
	f := c.frame
	target := n.Targets[0]
	counter := c.registerFor(target)
	f.Alloc.BindVariable(counter)

	if err := c.compileExprInto(args[0], counter); err != nil {
		return err
	}
	limit, err := c.compileExpr(args[1])
	if err != nil {
		return err
	}

	descending := false
	var stepReg byte
	hasStep := len(args) == 3
	if hasStep {
		if lit, ok := args[2].(*ast.IntLit); ok && lit.Value < 0 {
			descending = true
		}
		stepReg, err = c.compileExpr(args[2])
		if err != nil {
			return err
		}
	} else {
		stepReg, err = f.Alloc.AllocTemp()
		if err != nil {
			return err
		}
		if _, err := f.Emit(bytecode.LOAD_INT8, int64(stepReg), 1); err != nil {
			return err
		}
	}

	loop := f.pushLoop()
	defer f.popLoop()

	var toCond jumpArray
	if _, err := f.EmitJump(&toCond, bytecode.JUMP, 0); err != nil {
		return err
	}
	bodyStart := f.Offset()
	if err := c.compileStmt(n.Body); err != nil {
		return err
	}
	f.PatchTo(loop.continues, f.Offset())
	if _, err := f.Emit(bytecode.ADD, int64(counter), int64(counter), int64(stepReg)); err != nil {
		return err
	}

	condStart := f.Offset()
	f.PatchTo(toCond, condStart)
	cmp, err := f.Alloc.AllocTemp()
	if err != nil {
		return err
	}
	if descending {
		if _, err := f.Emit(bytecode.CMP_LT, int64(cmp), int64(limit), int64(counter)); err != nil {
			return err
		}
	} else {
		if _, err := f.Emit(bytecode.CMP_LT, int64(cmp), int64(counter), int64(limit)); err != nil {
			return err
		}
	}
	var backToBody jumpArray
	if _, err := f.EmitJump(&backToBody, bytecode.JUMP_COND, int64(cmp)); err != nil {
		return err
	}
	f.Alloc.Free(cmp)
	f.PatchTo(backToBody, bodyStart)

	f.PatchTo(loop.breaks, f.Offset())
	f.Alloc.Free(limit)
	f.Alloc.Free(stepReg)
	return nil
}

// compileForInGeneric lowers the general iterator-protocol form: LOAD_ITER
// once per target (supporting destructuring over multiple targets), then
// a forward jump to a NEXT_JUMP that both advances and branches back.
func (c *Compiler) compileForInGeneric(n *ast.ForIn) error {
	if len(n.Targets) > 255 {
		return c.errorAt(n, ErrTooManyVarsForRange, "too many loop variables")
	}
	f := c.frame
	iterable, err := c.compileExpr(n.Iterable)
	if err != nil {
		return err
	}
	iters := make([]byte, len(n.Targets))
	for i := range n.Targets {
		r, err := f.Alloc.AllocTemp()
		if err != nil {
			return err
		}
		if _, err := f.Emit(bytecode.LOAD_ITER, int64(r), int64(iterable)); err != nil {
			return err
		}
		iters[i] = r
	}
	f.Alloc.Free(iterable)

	loop := f.pushLoop()
	defer f.popLoop()

	var toNext jumpArray
	if _, err := f.EmitJump(&toNext, bytecode.JUMP, 0); err != nil {
		return err
	}
	bodyStart := f.Offset()
	if err := c.compileStmt(n.Body); err != nil {
		return err
	}
	f.PatchTo(loop.continues, f.Offset())

	nextStart := f.Offset()
	f.PatchTo(toNext, nextStart)
	for i, target := range n.Targets {
		dst := c.registerFor(target)
		f.Alloc.BindVariable(dst)
		if i == len(n.Targets)-1 {
			var backToBody jumpArray
			if _, err := f.EmitJump(&backToBody, bytecode.NEXT_JUMP, int64(dst), int64(iters[i]), 0); err != nil {
				return err
			}
			f.PatchTo(backToBody, bodyStart)
		} else {
			if _, err := f.Emit(bytecode.NEXT, int64(dst), int64(iters[i])); err != nil {
				return err
			}
		}
	}

	f.PatchTo(loop.breaks, f.Offset())
	for _, target := range n.Targets {
		dst := c.registerFor(target)
		if _, err := f.Emit(bytecode.LOAD_VOID, int64(dst)); err != nil {
			return err
		}
	}
	for _, r := range iters {
		f.Alloc.Free(r)
	}
	return nil
}
