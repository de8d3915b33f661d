// kosc compiles a pre-built AST fixture (pkg/astbuild's JSON encoding,
// since lexing/parsing sit outside this system) to Kos bytecode and
// optionally runs or disassembles it — grounded on cmd/minzc/main.go's
// cobra root command, rewired onto pkg/astbuild/pkg/codegen/pkg/vm
// instead of MinZ's parser/backend pipeline.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kos-lang/kos/pkg/astbuild"
	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/codegen"
	"github.com/kos-lang/kos/pkg/constpool"
	"github.com/kos-lang/kos/pkg/module"
	"github.com/kos-lang/kos/pkg/version"
	"github.com/kos-lang/kos/pkg/vm"
	"github.com/spf13/cobra"
)

var (
	outputFile      string
	dumpBytecode    bool
	dumpAsm         bool
	dumpAST         bool
	traceExec       bool
	runAfterCompile bool
	showVersion     bool
	showVersionFull bool
)

var rootCmd = &cobra.Command{
	Use:   "kosc [ast-fixture.json]",
	Short: "Kos bytecode compiler " + version.GetVersion(),
	Long: `kosc - Kos register-bytecode compiler

Lexing, parsing, and name resolution sit outside this system (spec §1);
kosc instead accepts a pre-resolved AST as a pkg/astbuild JSON fixture and
runs it through the code emitter (pkg/codegen) and, optionally, the
interpreter (pkg/vm).

EXAMPLES:
  kosc program.json                  # compile to program.kom
  kosc program.json -o out.kom       # choose the output path
  kosc program.json --run            # compile and execute immediately
  kosc program.json --dump-asm       # disassemble the entry function
  kosc run program.kom                # execute a previously compiled module`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println(version.GetVersion())
			return nil
		}
		if showVersionFull {
			fmt.Println(version.GetFullVersion())
			return nil
		}
		return compile(args[0])
	},
}

var runCmd = &cobra.Command{
	Use:   "run [compiled-module.kom]",
	Short: "execute a previously compiled module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args[0])
	},
}

func init() {
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: input basename with .kom)")
	rootCmd.Flags().BoolVar(&dumpBytecode, "dump-bytecode", false, "print a summary of the compiled module: constant and global counts, entry function size")
	rootCmd.Flags().BoolVar(&dumpAsm, "dump-asm", false, "disassemble the entry function's bytecode")
	rootCmd.Flags().BoolVar(&dumpAST, "dump-ast", false, "pretty-print the input AST fixture JSON")
	rootCmd.Flags().BoolVar(&traceExec, "trace", false, "trace executed instructions when --run is set")
	rootCmd.Flags().BoolVar(&runAfterCompile, "run", false, "execute the compiled module immediately instead of writing it")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")
	rootCmd.Flags().BoolVar(&showVersionFull, "version-full", false, "show full version info")

	runCmd.Flags().BoolVar(&traceExec, "trace", false, "trace executed instructions")

	rootCmd.AddCommand(runCmd)

	// main prints the "Error: %v" line itself, matching the teacher's
	// convention; cobra's own duplicate error/usage printing is disabled.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func compile(fixtureFile string) error {
	data, err := os.ReadFile(fixtureFile)
	if err != nil {
		return fmt.Errorf("reading fixture: %w", err)
	}

	if dumpAST {
		var pretty interface{}
		if err := json.Unmarshal(data, &pretty); err != nil {
			return fmt.Errorf("invalid AST fixture: %w", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pretty)
	}

	file, err := astbuild.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding AST fixture: %w", err)
	}

	pool := constpool.New()
	comp := codegen.NewCompiler(fixtureFile, pool)
	entry, err := comp.Compile(file)
	if err != nil {
		return fmt.Errorf("compile error: %w", err)
	}

	m := module.New(file.Name, pool, comp.GlobalCode(), comp.GlobalLines(), entry, comp.NumGlobals())

	if dumpBytecode {
		dumpModule(m)
	}
	if dumpAsm {
		for _, line := range bytecode.DisassembleFunc(m.Code, int(entry.BytecodeOffset), int(entry.BytecodeSize)) {
			fmt.Println(line)
		}
	}

	if runAfterCompile {
		return execute(m)
	}

	if outputFile == "" {
		base := filepath.Base(fixtureFile)
		ext := filepath.Ext(base)
		outputFile = base[:len(base)-len(ext)] + ".kom"
	}
	encoded, err := module.Encode(m)
	if err != nil {
		return fmt.Errorf("encoding module: %w", err)
	}
	return os.WriteFile(outputFile, encoded, 0644)
}

func run(moduleFile string) error {
	data, err := os.ReadFile(moduleFile)
	if err != nil {
		return fmt.Errorf("reading module: %w", err)
	}
	m, err := module.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding module: %w", err)
	}
	return execute(m)
}

func execute(m *module.Module) error {
	config := vm.DefaultConfig()
	config.Trace = traceExec
	config.OutputStream = os.Stdout

	machine := vm.New(config)
	result, err := machine.Execute(vm.Load(m))
	if err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}
	fmt.Println(result.Kind())
	return nil
}

func dumpModule(m *module.Module) {
	fmt.Printf("module %s: %d constants, %d globals\n", m.Name, m.Pool.Len(), m.NumGlobals)
	fmt.Printf("entry: %d regs, %d bytes at offset %d\n", m.Entry.NumRegs, m.Entry.BytecodeSize, m.Entry.BytecodeOffset)
}
