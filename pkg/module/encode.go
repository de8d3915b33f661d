package module

import (
	"encoding/json"

	"github.com/kos-lang/kos/pkg/bytecode"
	"github.com/kos-lang/kos/pkg/constpool"
)

// wireModule is Module's on-disk shape: plain exported data only, so it
// round-trips through encoding/json without any custom marshaling (the
// teacher's own internal/mcp handlers reach for encoding/json for the
// same kind of structured-data-to-disk concern).
type wireModule struct {
	Name        string
	Pool        []*constpool.Constant
	Code        []byte
	Lines       []byte
	Entry       *bytecode.FunctionHeader
	NumGlobals  int
	GlobalNames map[string]int
}

// Encode serializes a compiled Module for `kosc -o` to write and `kosvm`
// to load — the bridge between the two CLIs now that lexing/parsing sits
// outside this system (SPEC_FULL.md §1).
func Encode(m *Module) ([]byte, error) {
	return json.Marshal(&wireModule{
		Name:        m.Name,
		Pool:        m.Pool.Order,
		Code:        m.Code,
		Lines:       m.Lines,
		Entry:       m.Entry,
		NumGlobals:  m.NumGlobals,
		GlobalNames: m.globalNames,
	})
}

// Decode reconstructs a Module from Encode's output.
func Decode(data []byte) (*Module, error) {
	var w wireModule
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	m := New(w.Name, constpool.FromOrder(w.Pool), w.Code, w.Lines, w.Entry, w.NumGlobals)
	for name, slot := range w.GlobalNames {
		m.DeclareGlobalName(name, slot)
	}
	return m, nil
}
