package ast

import "testing"

// Compile-time assertions that every node kind still satisfies the
// Statement/Expression contract codegen depends on; a node dropped from one
// of these lists would fail to build, not silently lose its interface.
var (
	_ Statement = (*Block)(nil)
	_ Statement = (*ExprStmt)(nil)
	_ Statement = (*VarDecl)(nil)
	_ Statement = (*If)(nil)
	_ Statement = (*While)(nil)
	_ Statement = (*Repeat)(nil)
	_ Statement = (*ForIn)(nil)
	_ Statement = (*Switch)(nil)
	_ Statement = (*TryCatch)(nil)
	_ Statement = (*TryDefer)(nil)
	_ Statement = (*Break)(nil)
	_ Statement = (*Continue)(nil)
	_ Statement = (*Fallthrough)(nil)
	_ Statement = (*Return)(nil)
	_ Statement = (*Throw)(nil)

	_ Expression = (*Identifier)(nil)
	_ Expression = (*IntLit)(nil)
	_ Expression = (*FloatLit)(nil)
	_ Expression = (*StringLit)(nil)
	_ Expression = (*BoolLit)(nil)
	_ Expression = (*VoidLit)(nil)
	_ Expression = (*This)(nil)
	_ Expression = (*Super)(nil)
	_ Expression = (*Binary)(nil)
	_ Expression = (*Logical)(nil)
	_ Expression = (*Unary)(nil)
	_ Expression = (*Ternary)(nil)
	_ Expression = (*TypeOf)(nil)
	_ Expression = (*In)(nil)
	_ Expression = (*Delete)(nil)
	_ Expression = (*Refinement)(nil)
	_ Expression = (*Slice)(nil)
	_ Expression = (*Call)(nil)
	_ Expression = (*New)(nil)
	_ Expression = (*ObjectLit)(nil)
	_ Expression = (*ArrayLit)(nil)
	_ Expression = (*FunctionLit)(nil)
	_ Expression = (*ClassLit)(nil)
	_ Expression = (*Yield)(nil)
	_ Expression = (*Assign)(nil)
	_ Expression = (*MultiAssign)(nil)
)

func TestFile_PosEndDelegatesToStartEndPos(t *testing.T) {
	f := &File{
		StartPos: Position{Line: 1, Column: 1},
		EndPos:   Position{Line: 10, Column: 1},
	}
	if f.Pos() != f.StartPos {
		t.Errorf("File.Pos() = %v, want %v", f.Pos(), f.StartPos)
	}
	if f.End() != f.EndPos {
		t.Errorf("File.End() = %v, want %v", f.End(), f.EndPos)
	}
}

func TestRefinement_DotVsIndexShape(t *testing.T) {
	dot := &Refinement{Object: &Identifier{}, Key: &StringLit{Value: []byte("prop")}, IsIndex: false}
	idx := &Refinement{Object: &Identifier{}, Key: &IntLit{Value: 3}, IsIndex: true}

	if dot.IsIndex {
		t.Errorf("dotted refinement should have IsIndex = false")
	}
	if !idx.IsIndex {
		t.Errorf("bracketed refinement should have IsIndex = true")
	}
	if _, ok := dot.Key.(*StringLit); !ok {
		t.Errorf("dotted refinement's Key should be a *StringLit")
	}
}

func TestObjectProp_GetterFlag(t *testing.T) {
	plain := ObjectProp{Key: "x", Value: &IntLit{Value: 1}}
	getter := ObjectProp{Key: "y", Value: &FunctionLit{}, IsGetter: true}

	if plain.IsGetter {
		t.Errorf("plain property should not be marked IsGetter")
	}
	if !getter.IsGetter {
		t.Errorf("getter property should be marked IsGetter")
	}
}

func TestFunctionNode_DefaultValuesKeyedByParamIndex(t *testing.T) {
	fn := &FunctionNode{
		Name:          "greet",
		DefaultValues: map[int]Expression{1: &StringLit{Value: []byte("!")}},
	}
	lit, ok := fn.DefaultValues[1].(*StringLit)
	if !ok {
		t.Fatalf("expected a default value registered at param index 1")
	}
	if string(lit.Value) != "!" {
		t.Errorf("default value = %q, want \"!\"", lit.Value)
	}
	if _, ok := fn.DefaultValues[0]; ok {
		t.Errorf("param index 0 should have no default")
	}
}
