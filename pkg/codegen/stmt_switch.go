package codegen

import (
	"github.com/kos-lang/kos/pkg/ast"
	"github.com/kos-lang/kos/pkg/bytecode"
)

// compileSwitch lowers a switch statement (spec §4.3.3): the scrutinee is
// evaluated once; each case key is compared with CMP_EQ and jumps to its
// body on match; a final jump reaches the default case (or falls past
// every case when there is none). Case bodies jump to the switch's end
// unless they close with an explicit fallthrough, in which case control
// simply falls into the next case's body.
func (c *Compiler) compileSwitch(n *ast.Switch) error {
	f := c.frame
	scrutinee, err := c.compileExpr(n.Scrutinee)
	if err != nil {
		return err
	}

	sw := f.pushSwitch()
	defer f.popSwitch()

	type caseJump struct {
		body jumpArray
	}
	jumps := make([]caseJump, len(n.Cases))
	for i, cs := range n.Cases {
		for _, key := range cs.Keys {
			keyr, err := c.compileExpr(key)
			if err != nil {
				return err
			}
			cmp, err := f.Alloc.AllocTemp()
			if err != nil {
				return err
			}
			if _, err := f.Emit(bytecode.CMP_EQ, int64(cmp), int64(scrutinee), int64(keyr)); err != nil {
				return err
			}
			f.Alloc.Free(keyr)
			if _, err := f.EmitJump(&jumps[i].body, bytecode.JUMP_COND, int64(cmp)); err != nil {
				return err
			}
			f.Alloc.Free(cmp)
		}
	}

	var toDefault jumpArray
	if _, err := f.EmitJump(&toDefault, bytecode.JUMP, 0); err != nil {
		return err
	}
	f.Alloc.Free(scrutinee)

	for i, cs := range n.Cases {
		f.PatchTo(jumps[i].body, f.Offset())
		if err := c.compileStmt(cs.Body); err != nil {
			return err
		}
		if !cs.Fallthrough {
			if _, err := f.EmitJump(&sw.breaks, bytecode.JUMP, 0); err != nil {
				return err
			}
		}
	}

	f.PatchTo(toDefault, f.Offset())
	if n.Default != nil {
		if err := c.compileStmt(n.Default); err != nil {
			return err
		}
	}

	f.PatchTo(sw.breaks, f.Offset())
	return nil
}
