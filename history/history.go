// Package history implements the undo/redo stacks backing a pipeline's
// edit history: AddOperation/RemoveOperation mutate the live operation
// list and clear the redo stack; Undo/Redo move the tail operation
// between the live list and the undo stack.
package history

import "github.com/dfrcore/dfr/op"

// Stack holds a pipeline's live operation list and its undo history. Redo
// is available only immediately after an Undo, and is cleared by any
// subsequent AddOperation/RemoveOperation.
type Stack struct {
	ops  []op.Operation
	redo []op.Operation
}

// NewStack returns an empty Stack.
func NewStack() *Stack {
	return &Stack{}
}

// Ops returns the live operation list, in pipeline order. Callers must
// not mutate the returned slice.
func (s *Stack) Ops() []op.Operation {
	return s.ops
}

// AddOperation appends o to the live list and clears the redo stack.
func (s *Stack) AddOperation(o op.Operation) {
	s.ops = append(s.ops, o)
	s.redo = nil
}

// RemoveOperation deletes the operation at index i, clearing the redo
// stack. It reports false if i is out of range.
func (s *Stack) RemoveOperation(i int) bool {
	if i < 0 || i >= len(s.ops) {
		return false
	}
	s.ops = append(s.ops[:i:i], s.ops[i+1:]...)
	s.redo = nil
	return true
}

// Undo moves the last operation off the live list onto the redo stack. It
// reports false if the live list is empty.
func (s *Stack) Undo() bool {
	if len(s.ops) == 0 {
		return false
	}
	last := s.ops[len(s.ops)-1]
	s.ops = s.ops[:len(s.ops)-1]
	s.redo = append(s.redo, last)
	return true
}

// Redo moves the most recently undone operation back onto the live list.
// It reports false if there is nothing to redo.
func (s *Stack) Redo() bool {
	if len(s.redo) == 0 {
		return false
	}
	last := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.ops = append(s.ops, last)
	return true
}

// PeekRedo returns the operation Redo would restore, without mutating the
// stack, so a caller can re-validate it against the current schema before
// committing to the redo. The second result is false if there is nothing
// to redo.
func (s *Stack) PeekRedo() (op.Operation, bool) {
	if len(s.redo) == 0 {
		return nil, false
	}
	return s.redo[len(s.redo)-1], true
}

// DropRedo discards the top of the redo stack without restoring it to the
// live list. Callers use this when PeekRedo's operation no longer
// validates against the current schema.
func (s *Stack) DropRedo() {
	if len(s.redo) == 0 {
		return
	}
	s.redo = s.redo[:len(s.redo)-1]
}

// ClearPipeline empties both the live list and the redo stack.
func (s *Stack) ClearPipeline() {
	s.ops = nil
	s.redo = nil
}

// CanUndo reports whether Undo would succeed.
func (s *Stack) CanUndo() bool { return len(s.ops) > 0 }

// CanRedo reports whether Redo would succeed.
func (s *Stack) CanRedo() bool { return len(s.redo) > 0 }
