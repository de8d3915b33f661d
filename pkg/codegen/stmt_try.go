package codegen

import (
	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/bytecode"
)

// maxCatchDepth is the implementation cap on try/catch nesting (spec
// §4.3.3: "an implementation cap (≥ 16 levels)").
const maxCatchDepth = 32

// compileTryCatch lowers try/catch (spec §4.3.3): a CATCH instruction
// registers the handler address, the try body runs, then on normal exit
// control jumps over the handler; the handler body runs with the
// exception value in the catch register.
func (c *Compiler) compileTryCatch(n *ast.TryCatch) error {
	f := c.frame
	if f.tryDepth >= maxCatchDepth {
		return c.errorAt(n, ErrCatchNestingTooDeep, "try/catch nesting exceeds implementation limit")
	}
	f.tryDepth++
	defer func() { f.tryDepth-- }()

	var catchReg byte
	var err error
	if n.CatchVar != nil {
		catchReg = c.registerFor(n.CatchVar)
		f.Alloc.BindVariable(catchReg)
	} else {
		catchReg, err = f.Alloc.AllocTemp()
		if err != nil {
			return err
		}
	}

	var toHandler jumpArray
	if _, err := f.EmitJump(&toHandler, bytecode.CATCH, int64(catchReg), 0); err != nil {
		return err
	}

	if err := c.compileStmt(n.Try); err != nil {
		return err
	}
	if _, err := f.Emit(bytecode.CANCEL); err != nil {
		return err
	}
	var toEnd jumpArray
	if _, err := f.EmitJump(&toEnd, bytecode.JUMP, 0); err != nil {
		return err
	}

	f.PatchTo(toHandler, f.Offset())
	if err := c.compileStmt(n.Catch); err != nil {
		return err
	}
	f.PatchTo(toEnd, f.Offset())
	return nil
}

// compileTryDefer lowers try/defer (spec §4.3.3): the defer block is
// emitted inline at every exit path from the try body — normal
// completion, exception, and (via the loop/switch break/continue
// handling in stmt.go) break/continue/fallthrough/return that unwind out
// of it.
func (c *Compiler) compileTryDefer(n *ast.TryDefer) error {
	f := c.frame
	if f.tryDepth >= maxCatchDepth {
		return c.errorAt(n, ErrCatchNestingTooDeep, "try/defer nesting exceeds implementation limit")
	}
	f.tryDepth++
	defer func() { f.tryDepth-- }()

	excReg, err := f.Alloc.AllocTemp()
	if err != nil {
		return err
	}
	var toHandler jumpArray
	if _, err := f.EmitJump(&toHandler, bytecode.CATCH, int64(excReg), 0); err != nil {
		return err
	}

	if err := c.compileStmt(n.Try); err != nil {
		return err
	}
	if _, err := f.Emit(bytecode.CANCEL); err != nil {
		return err
	}
	// normal-exit defer run
	if err := c.compileStmt(n.Defer); err != nil {
		return err
	}
	var toEnd jumpArray
	if _, err := f.EmitJump(&toEnd, bytecode.JUMP, 0); err != nil {
		return err
	}

	// exception-exit defer run, then rethrow
	f.PatchTo(toHandler, f.Offset())
	if err := c.compileStmt(n.Defer); err != nil {
		return err
	}
	if _, err := f.Emit(bytecode.THROW, int64(excReg)); err != nil {
		return err
	}

	f.PatchTo(toEnd, f.Offset())
	f.Alloc.Free(excReg)
	return nil
}
