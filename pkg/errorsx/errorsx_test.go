package errorsx

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonTransportSend)
	if Reason(err) != ReasonTransportSend {
		t.Fatalf("expected reason %s, got %s", ReasonTransportSend, Reason(err))
	}
	if !HasReason(err, ReasonTransportSend) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonDeviceUnavailable)
	second := Wrap(first, ReasonTransportSend)
	if Reason(second) != ReasonDeviceUnavailable {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestDeviceErrorReasons(t *testing.T) {
	denied := NewDeviceError("camera", fmt.Errorf("open: %w", ErrPermissionDenied))
	if !IsDeviceError(denied) {
		t.Fatalf("expected device error")
	}
	if Reason(denied) != ReasonDeviceDenied {
		t.Fatalf("expected %s, got %s", ReasonDeviceDenied, Reason(denied))
	}
	missing := NewDeviceError("microphone", errors.New("no default input"))
	if Reason(missing) != ReasonDeviceUnavailable {
		t.Fatalf("expected %s, got %s", ReasonDeviceUnavailable, Reason(missing))
	}
}

func TestTransportAndDecodeErrors(t *testing.T) {
	te := NewTransportError("ws://x", "dial", assertErr{}, ReasonTransportConnect)
	if !IsTransportError(te) || IsDecodeError(te) {
		t.Fatalf("unexpected classification for %v", te)
	}
	if !errors.Is(te, assertErr{}) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	de := NewDecodeError(3, assertErr{})
	if !IsDecodeError(de) || Reason(de) != ReasonDecodeStructured {
		t.Fatalf("unexpected decode error %v", de)
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
