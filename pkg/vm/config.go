package vm

import "io"

// Config holds VM configuration, grounded on the teacher's
// pkg/mirvm.Config: a stack-size ceiling, a cooperative cancellation
// budget, and trace/breakpoint instrumentation toggles a CLI's flags
// populate directly.
type Config struct {
	StackSize    int // maximum number of live frames, i.e. call depth (spec §5 "Call depth is bounded")
	MaxSteps     int // 0 means unbounded
	Trace        bool
	Breakpoints  map[string][]int // function name -> bytecode offsets
	OutputStream io.Writer
}

// DefaultConfig returns sane defaults for running a single script module.
func DefaultConfig() Config {
	return Config{
		StackSize: 64 * 1024,
		MaxSteps:  0,
	}
}

// Statistics tracks execution statistics across a Run, grounded on the
// teacher's pkg/mirvm.Statistics.
type Statistics struct {
	InstructionsExecuted int
	FunctionsCalled      int
	MaxFrameDepth        int
}
