package session

import (
	"sync"
	"time"
)

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateStreaming
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAcquiring:
		return "ACQUIRING"
	case StateStreaming:
		return "STREAMING"
	case StateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// StateChange represents a state transition event.
type StateChange struct {
	FromState State
	ToState   State
	Timestamp time.Time
	Reason    string
}

var validTransitions = map[State][]State{
	StateIdle:      {StateAcquiring},
	StateAcquiring: {StateStreaming, StateIdle},
	StateStreaming: {StateStopping},
	StateStopping:  {StateIdle},
}

// stateMachine guards the session lifecycle. Listeners run after the lock is
// released, so they may read State freely.
type stateMachine struct {
	mu        sync.RWMutex
	current   State
	since     time.Time
	listeners []func(StateChange)
}

func newStateMachine() *stateMachine {
	return &stateMachine{current: StateIdle, since: time.Now()}
}

func (sm *stateMachine) State() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Since reports when the current state was entered.
func (sm *stateMachine) Since() time.Time {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.since
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (sm *stateMachine) Transition(to State, reason string) error {
	sm.mu.Lock()
	if !transitionValid(sm.current, to) {
		from := sm.current
		sm.mu.Unlock()
		return &InvalidTransitionError{From: from, To: to}
	}
	event := StateChange{FromState: sm.current, ToState: to, Timestamp: time.Now(), Reason: reason}
	sm.current = to
	sm.since = event.Timestamp
	listeners := append([]func(StateChange){}, sm.listeners...)
	sm.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
	return nil
}

func (sm *stateMachine) AddListener(fn func(StateChange)) {
	if fn == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, fn)
}

// InvalidTransitionError represents an invalid state transition attempt.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
