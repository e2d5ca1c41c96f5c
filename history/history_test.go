package history

import (
	"testing"

	"github.com/dfrcore/dfr/op"
)

func TestAddUndoRedo(t *testing.T) {
	s := NewStack()
	a := op.Limit{N: 1}
	b := op.Limit{N: 2}

	s.AddOperation(a)
	s.AddOperation(b)
	if len(s.Ops()) != 2 {
		t.Fatalf("Ops() = %v, want 2 entries", s.Ops())
	}

	if !s.Undo() {
		t.Fatal("Undo() = false, want true")
	}
	if len(s.Ops()) != 1 || !s.Ops()[0].Equal(a) {
		t.Fatalf("after Undo, Ops() = %v, want [%v]", s.Ops(), a)
	}
	if !s.CanRedo() {
		t.Fatal("CanRedo() = false after Undo")
	}

	if !s.Redo() {
		t.Fatal("Redo() = false, want true")
	}
	if len(s.Ops()) != 2 || !s.Ops()[1].Equal(b) {
		t.Fatalf("after Redo, Ops() = %v, want [%v %v]", s.Ops(), a, b)
	}
}

func TestUndoOnEmptyStack(t *testing.T) {
	s := NewStack()
	if s.Undo() {
		t.Fatal("Undo() on empty stack = true, want false")
	}
	if s.CanUndo() {
		t.Fatal("CanUndo() on empty stack = true, want false")
	}
}

func TestRedoClearedByAddOperation(t *testing.T) {
	s := NewStack()
	s.AddOperation(op.Limit{N: 1})
	s.Undo()
	if !s.CanRedo() {
		t.Fatal("expected redo to be available after Undo")
	}

	s.AddOperation(op.Limit{N: 2})
	if s.CanRedo() {
		t.Fatal("expected AddOperation to clear the redo stack")
	}
}

func TestRedoClearedByRemoveOperation(t *testing.T) {
	s := NewStack()
	s.AddOperation(op.Limit{N: 1})
	s.AddOperation(op.Limit{N: 2})
	s.Undo()
	if !s.RemoveOperation(0) {
		t.Fatal("RemoveOperation(0) = false, want true")
	}
	if s.CanRedo() {
		t.Fatal("expected RemoveOperation to clear the redo stack")
	}
}

func TestRemoveOperationOutOfRange(t *testing.T) {
	s := NewStack()
	s.AddOperation(op.Limit{N: 1})
	if s.RemoveOperation(5) {
		t.Fatal("RemoveOperation(5) = true, want false")
	}
	if s.RemoveOperation(-1) {
		t.Fatal("RemoveOperation(-1) = true, want false")
	}
}

func TestPeekRedoDoesNotMutateStack(t *testing.T) {
	s := NewStack()
	a := op.Limit{N: 1}
	s.AddOperation(a)
	s.Undo()

	peeked, ok := s.PeekRedo()
	if !ok || !peeked.Equal(a) {
		t.Fatalf("PeekRedo() = %v, %v, want %v, true", peeked, ok, a)
	}
	if len(s.Ops()) != 0 {
		t.Fatalf("PeekRedo mutated the live list: %v", s.Ops())
	}
	if !s.CanRedo() {
		t.Fatal("PeekRedo must not consume the redo entry")
	}
}

func TestPeekRedoOnEmptyStack(t *testing.T) {
	s := NewStack()
	if _, ok := s.PeekRedo(); ok {
		t.Fatal("PeekRedo() on empty redo stack = true, want false")
	}
}

func TestDropRedoDiscardsWithoutRestoring(t *testing.T) {
	s := NewStack()
	s.AddOperation(op.Limit{N: 1})
	s.Undo()
	if !s.CanRedo() {
		t.Fatal("expected redo to be available after Undo")
	}

	s.DropRedo()
	if s.CanRedo() {
		t.Fatal("DropRedo did not clear the redo entry")
	}
	if len(s.Ops()) != 0 {
		t.Fatalf("DropRedo restored the operation to the live list: %v", s.Ops())
	}
}

func TestClearPipeline(t *testing.T) {
	s := NewStack()
	s.AddOperation(op.Limit{N: 1})
	s.Undo()
	s.ClearPipeline()
	if len(s.Ops()) != 0 || s.CanUndo() || s.CanRedo() {
		t.Fatal("ClearPipeline did not fully reset the stack")
	}
}
