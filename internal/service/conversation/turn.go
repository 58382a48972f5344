package conversation

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// TurnState is a step in the life of one chat turn.
type TurnState int

const (
	StateReceived TurnState = iota
	StateDispatched
	StateStreaming
	StateBuffered
	StateCompleted
	StateFailed
)

var stateNames = [...]string{"received", "dispatched", "streaming", "buffered", "completed", "failed"}

func (s TurnState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is allowed.
func (s TurnState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

var transitions = map[TurnState][]TurnState{
	StateReceived:   {StateDispatched, StateFailed},
	StateDispatched: {StateStreaming, StateBuffered, StateFailed},
	StateStreaming:  {StateCompleted, StateFailed},
	StateBuffered:   {StateCompleted, StateFailed},
}

// Turn is one client request and its upstream exchange. It lives on the stack of the
// handling goroutine; nothing about it outlives the response.
type Turn struct {
	ID              string
	HistoryMetadata json.RawMessage
	state           TurnState
	failure         error
}

// NewTurn starts a turn with a fresh correlation id.
func NewTurn(historyMetadata json.RawMessage) *Turn {
	return &Turn{
		ID:              uuid.NewString(),
		HistoryMetadata: historyMetadata,
		state:           StateReceived,
	}
}

// State returns the current state.
func (t *Turn) State() TurnState {
	return t.state
}

// Failure returns the error that failed the turn, if any.
func (t *Turn) Failure() error {
	return t.failure
}

// Advance moves the turn to next. States are never revisited.
func (t *Turn) Advance(next TurnState) error {
	for _, allowed := range transitions[t.state] {
		if allowed == next {
			t.state = next
			return nil
		}
	}
	return fmt.Errorf("turn %s: invalid transition %s -> %s", t.ID, t.state, next)
}

// Fail moves the turn to StateFailed unless it already ended.
func (t *Turn) Fail(cause error) {
	if t.state.Terminal() {
		return
	}
	t.state = StateFailed
	t.failure = cause
}
