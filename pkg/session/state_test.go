package session

import (
	"errors"
	"testing"
)

func TestStateMachineLifecycle(t *testing.T) {
	sm := newStateMachine()
	var seen []State
	sm.AddListener(func(ev StateChange) {
		// Listeners run outside the lock.
		if sm.State() != ev.ToState {
			t.Errorf("listener saw %s, event says %s", sm.State(), ev.ToState)
		}
		seen = append(seen, ev.ToState)
	})

	for _, to := range []State{StateAcquiring, StateStreaming, StateStopping, StateIdle} {
		if err := sm.Transition(to, "test"); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
	if len(seen) != 4 || seen[3] != StateIdle {
		t.Fatalf("unexpected transitions %v", seen)
	}
}

func TestStateMachineRejectsInvalid(t *testing.T) {
	sm := newStateMachine()
	err := sm.Transition(StateStreaming, "skip acquisition")
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if ite.From != StateIdle || ite.To != StateStreaming {
		t.Fatalf("unexpected error fields %+v", ite)
	}
	if sm.State() != StateIdle {
		t.Fatalf("state changed on invalid transition")
	}
}

func TestAcquiringMayAbortToIdle(t *testing.T) {
	sm := newStateMachine()
	_ = sm.Transition(StateAcquiring, "start")
	if err := sm.Transition(StateIdle, "stop during acquisition"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
