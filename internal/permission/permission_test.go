package permission

import (
	"errors"
	"testing"
)

type fakeProber struct {
	err   error
	calls int
}

func (f *fakeProber) Probe() error {
	f.calls++
	return f.err
}

func TestRequestAccess_GrantedAndCached(t *testing.T) {
	prober := &fakeProber{}
	gate := NewGate(prober)

	if gate.Granted() {
		t.Error("Expected Granted to be false before any probe")
	}

	if !gate.RequestAccess() {
		t.Error("Expected access to be granted")
	}
	if !gate.RequestAccess() {
		t.Error("Expected cached grant on second request")
	}

	if prober.calls != 1 {
		t.Errorf("Expected exactly 1 probe, got %d", prober.calls)
	}
	if !gate.Granted() {
		t.Error("Expected Granted to report the cached decision")
	}
}

func TestRequestAccess_DeniedAndCached(t *testing.T) {
	prober := &fakeProber{err: errors.New("unauthorized")}
	gate := NewGate(prober)

	if gate.RequestAccess() {
		t.Error("Expected access to be denied")
	}
	if gate.RequestAccess() {
		t.Error("Expected cached denial on second request")
	}
	if prober.calls != 1 {
		t.Errorf("Expected exactly 1 probe, got %d", prober.calls)
	}
	if gate.Granted() {
		t.Error("Expected Granted to report denial")
	}
}
