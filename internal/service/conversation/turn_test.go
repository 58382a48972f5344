package conversation

import (
	"errors"
	"testing"
)

func TestTurn_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []TurnState
		wantErr bool
	}{
		{"streamed success", []TurnState{StateDispatched, StateStreaming, StateCompleted}, false},
		{"buffered success", []TurnState{StateDispatched, StateBuffered, StateCompleted}, false},
		{"fail before dispatch", []TurnState{StateFailed}, false},
		{"fail mid stream", []TurnState{StateDispatched, StateStreaming, StateFailed}, false},
		{"skip dispatch", []TurnState{StateStreaming}, true},
		{"revisit dispatched", []TurnState{StateDispatched, StateDispatched}, true},
		{"leave completed", []TurnState{StateDispatched, StateBuffered, StateCompleted, StateFailed}, true},
		{"stream and buffer", []TurnState{StateDispatched, StateStreaming, StateBuffered}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turn := NewTurn(nil)
			var err error
			for _, next := range tt.path {
				if err = turn.Advance(next); err != nil {
					break
				}
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("Advance error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTurn_FailIsSticky(t *testing.T) {
	turn := NewTurn(nil)
	_ = turn.Advance(StateDispatched)
	_ = turn.Advance(StateBuffered)
	_ = turn.Advance(StateCompleted)

	turn.Fail(errors.New("late"))
	if turn.State() != StateCompleted || turn.Failure() != nil {
		t.Errorf("completed turn changed to %s", turn.State())
	}
}

func TestNewTurn_UniqueIDs(t *testing.T) {
	a, b := NewTurn(nil), NewTurn(nil)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids %q and %q are not unique", a.ID, b.ID)
	}
}
