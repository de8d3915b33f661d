// kosvm runs a compiled Kos bytecode module directly, independent of
// cmd/kosc's compile step — grounded on the teacher's standalone MIR
// runner (cmd/mzv), the equivalent sibling binary for its own
// intermediate representation.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kos-lang/kos/pkg/module"
	"github.com/kos-lang/kos/pkg/vm"
)

func main() {
	var (
		input       = flag.String("i", "", "Input compiled module file")
		trace       = flag.Bool("trace", false, "Trace executed instructions")
		breakpoints = flag.String("bp", "", "Comma-separated list of breakpoints (e.g., main:5,helper:10)")
		maxSteps    = flag.Int("max-steps", 0, "Maximum instructions to execute (0 = unbounded)")
		stackSize   = flag.Int("stack", 64*1024, "Call-stack register-slot ceiling")
		verbose     = flag.Bool("v", false, "Print execution statistics after running")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "kosvm - Kos bytecode virtual machine\n")
		fmt.Fprintf(os.Stderr, "Usage: %s -i module.kom [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -i program.kom              # Run a compiled module\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i program.kom -trace       # Trace execution\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i program.kom -bp main:5   # Set a breakpoint\n", os.Args[0])
	}

	flag.Parse()

	if *input == "" {
		if flag.NArg() > 0 {
			*input = flag.Arg(0)
		} else {
			fmt.Fprintf(os.Stderr, "Error: input module file required\n")
			flag.Usage()
			os.Exit(1)
		}
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading module file: %v\n", err)
		os.Exit(1)
	}

	m, err := module.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding module: %v\n", err)
		os.Exit(1)
	}

	config := vm.Config{
		StackSize:    *stackSize,
		MaxSteps:     *maxSteps,
		Trace:        *trace,
		OutputStream: os.Stdout,
	}
	if *breakpoints != "" {
		config.Breakpoints = parseBreakpoints(*breakpoints)
	}

	machine := vm.New(config)
	prog := vm.Load(m)

	result, err := machine.Execute(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Runtime error: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		stats := machine.Stats
		fmt.Fprintf(os.Stderr, "\nExecution Statistics:\n")
		fmt.Fprintf(os.Stderr, "  Instructions executed: %d\n", stats.InstructionsExecuted)
		fmt.Fprintf(os.Stderr, "  Functions called: %d\n", stats.FunctionsCalled)
		fmt.Fprintf(os.Stderr, "  Max frame depth: %d\n", stats.MaxFrameDepth)
	}

	fmt.Printf("%s\n", result.Kind())
}

// parseBreakpoints parses comma-separated breakpoint specifications in
// function:offset form.
func parseBreakpoints(spec string) map[string][]int {
	breakpoints := make(map[string][]int)

	for _, bp := range strings.Split(spec, ",") {
		parts := strings.Split(strings.TrimSpace(bp), ":")
		if len(parts) != 2 {
			fmt.Fprintf(os.Stderr, "Warning: invalid breakpoint format: %s\n", bp)
			continue
		}

		funcName := parts[0]
		offset, err := strconv.Atoi(parts[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: invalid breakpoint offset: %s\n", parts[1])
			continue
		}

		breakpoints[funcName] = append(breakpoints[funcName], offset)
	}

	return breakpoints
}
