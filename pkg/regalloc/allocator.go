// Package regalloc implements the Kos compiler's per-frame register
// allocator (spec §4.1). It hands out small-integer register indices,
// supports reuse of temporaries, and preserves the identity of
// variable-bound registers.
//
// Representation follows the "alternative" sketched in spec §9 ("DESIGN
// NOTES"): a free-stack kept sorted ascending plus a flat is-temp table
// indexed by register, rather than an intrusive doubly-linked list — this
// is the data structure the teacher's own register allocator
// (pkg/codegen/register_allocator.go) uses for its free-register pool.
package regalloc

import (
	"errors"
	"sort"
)

// MaxRegisters is the hard ceiling on registers in one frame (spec §4.1:
// "exceeding 255 registers in a frame is a compile error"): indices 0-254
// are allocatable, and 255 stays free as NoRegister.
const MaxRegisters = 255

// NoRegister is returned where "no register" is a valid answer.
const NoRegister Register = 255

// Register is a small integer register index, in [0, 255].
type Register = byte

// ErrTooManyRegisters is raised when a frame would need a 256th register.
var ErrTooManyRegisters = errors.New("register capacity exceeded")

// Allocator manages one function frame's register space.
type Allocator struct {
	count  int    // current frame register count
	free   []byte // free temporaries, kept sorted ascending
	isTemp [256]bool // indexed by any byte, NoRegister included
	inUse  [256]bool
}

// New returns an empty allocator for a fresh frame.
func New() *Allocator {
	return &Allocator{}
}

// Count returns the frame's current register count (== max observed
// register index + 1, per spec §8's testable property).
func (a *Allocator) Count() int { return a.count }

// extend grows the frame by n registers, returning the first new index.
func (a *Allocator) extend(n int) (byte, error) {
	if a.count+n > MaxRegisters {
		return 0, ErrTooManyRegisters
	}
	start := byte(a.count)
	a.count += n
	return start, nil
}

// AllocTemp returns a register whose index is the smallest currently
// available, extending the frame if the free list is empty.
func (a *Allocator) AllocTemp() (byte, error) {
	if len(a.free) > 0 {
		r := a.free[0]
		a.free = a.free[1:]
		a.isTemp[r] = true
		a.inUse[r] = true
		return r, nil
	}
	r, err := a.extend(1)
	if err != nil {
		return 0, err
	}
	a.isTemp[r] = true
	a.inUse[r] = true
	return r, nil
}

// AllocContiguous returns the starting register of n contiguous register
// indices, preferring an existing run on the free list and otherwise
// extending the frame at the top (spec §4.1).
func (a *Allocator) AllocContiguous(n int) (byte, error) {
	if n <= 0 {
		return 0, errors.New("regalloc: n must be positive")
	}
	if start, ok := a.findFreeRun(n); ok {
		for i := 0; i < n; i++ {
			r := start + byte(i)
			a.removeFree(r)
			a.isTemp[r] = true
			a.inUse[r] = true
		}
		return start, nil
	}
	start, err := a.extend(n)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		r := start + byte(i)
		a.isTemp[r] = true
		a.inUse[r] = true
	}
	return start, nil
}

// findFreeRun scans the sorted free list for n consecutive register
// indices in a single pass (spec §4.1: "free-list order lets
// alloc_contiguous scan for a run with a single pass").
func (a *Allocator) findFreeRun(n int) (byte, bool) {
	run := 1
	for i := 1; i < len(a.free); i++ {
		if a.free[i] == a.free[i-1]+1 {
			run++
			if run == n {
				return a.free[i-n+1], true
			}
		} else {
			run = 1
		}
	}
	if n == 1 && len(a.free) >= 1 {
		return a.free[0], true
	}
	return 0, false
}

func (a *Allocator) removeFree(r byte) {
	for i, f := range a.free {
		if f == r {
			a.free = append(a.free[:i], a.free[i+1:]...)
			return
		}
	}
}

// AllocDest implements spec §4.1's alloc_dest: if source is already a
// persistent (variable-bound) register and either equals preferred or
// preferred is absent, a fresh temporary is allocated; otherwise the
// existing temporary or source is returned unchanged.
func (a *Allocator) AllocDest(preferred *byte, source byte) (byte, error) {
	sourceIsBound := a.inUse[source] && !a.isTemp[source]
	if sourceIsBound && (preferred == nil || *preferred == source) {
		return a.AllocTemp()
	}
	if preferred != nil {
		return *preferred, nil
	}
	return source, nil
}

// Free releases a temporary register back to the free pool, keeping the
// free list sorted ascending. Freeing a variable-bound register is a
// no-op (spec §4.1).
func (a *Allocator) Free(r byte) {
	if !a.inUse[r] || !a.isTemp[r] {
		return
	}
	a.inUse[r] = false
	a.isTemp[r] = false
	idx := sort.Search(len(a.free), func(i int) bool { return a.free[i] >= r })
	a.free = append(a.free, 0)
	copy(a.free[idx+1:], a.free[idx:])
	a.free[idx] = r
}

// MarkUsed marks r as in-use without changing its temp/bound status; used
// when a register produced by an earlier allocation needs to be recorded
// as live again (e.g. re-entering a loop body).
func (a *Allocator) MarkUsed(r byte) {
	a.inUse[r] = true
}

// BindVariable marks r as persistent: Free ignores it, so it is never
// returned to the free list for the rest of the frame (spec §4.1, §3
// invariant on variable-bound registers).
func (a *Allocator) BindVariable(r byte) {
	a.inUse[r] = true
	a.isTemp[r] = false
}

// IsTemp reports whether register r is currently a reusable temporary.
func (a *Allocator) IsTemp(r byte) bool { return a.inUse[r] && a.isTemp[r] }
