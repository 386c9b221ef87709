package capture

import (
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Penitant/app-voice-recorder/internal/clipname"
	"github.com/Penitant/app-voice-recorder/internal/permission"
	"github.com/Penitant/app-voice-recorder/internal/storage"
)

// fakeDevice delivers canned PCM frames without touching real hardware.
type fakeDevice struct {
	configureErr error
	startErr     error
	stopErr      error
	frames       [][]int // frame batches delivered on Start
	closed       atomic.Int32
}

func (d *fakeDevice) Configure(format Format) error { return d.configureErr }

func (d *fakeDevice) Start(onFrames func(samples []int)) error {
	if d.startErr != nil {
		return d.startErr
	}
	for _, batch := range d.frames {
		onFrames(batch)
	}
	return nil
}

func (d *fakeDevice) Stop() error { return d.stopErr }

func (d *fakeDevice) Close() error {
	d.closed.Add(1)
	return nil
}

type grantAll struct{}

func (grantAll) Probe() error { return nil }

type denyAll struct{}

func (denyAll) Probe() error { return errors.New("unauthorized") }

func testFormat() Format {
	return Format{SampleRate: 44100, Channels: 1, BitDepth: 16}
}

func newTestRecorder(t *testing.T, device Device, prober permission.Prober) (*Recorder, *storage.Store) {
	t.Helper()
	store := storage.New(t.TempDir(), "wav")
	gate := permission.NewGate(prober)
	return NewRecorder(gate, device, store, testFormat(), 10*time.Millisecond), store
}

func TestStart_DeniedFailsFast(t *testing.T) {
	device := &fakeDevice{}
	rec, _ := newTestRecorder(t, device, denyAll{})

	err := rec.Start()
	if !errors.Is(err, permission.ErrDenied) {
		t.Fatalf("Expected ErrDenied, got: %v", err)
	}

	state, _ := rec.Status()
	if state != StateIdle {
		t.Errorf("Expected recorder to stay Idle after denial, got %s", state)
	}
}

func TestStart_SessionConfigFailure(t *testing.T) {
	device := &fakeDevice{configureErr: errors.New("no such device")}
	rec, _ := newTestRecorder(t, device, grantAll{})

	err := rec.Start()
	if !errors.Is(err, ErrSessionConfig) {
		t.Fatalf("Expected ErrSessionConfig, got: %v", err)
	}

	state, _ := rec.Status()
	if state != StateIdle {
		t.Errorf("Expected Idle after session config failure, got %s", state)
	}
	if rec.LastError() == "" {
		t.Error("Expected last error to be recorded")
	}
}

func TestStart_SecondStartRejected(t *testing.T) {
	device := &fakeDevice{frames: [][]int{{1, 2, 3, 4}}}
	rec, _ := newTestRecorder(t, device, grantAll{})

	if err := rec.Start(); err != nil {
		t.Fatalf("Expected first start to succeed, got: %v", err)
	}
	if err := rec.Start(); err == nil {
		t.Error("Expected second start while active to be rejected")
	}

	state, info := rec.Status()
	if state != StateActive {
		t.Errorf("Expected recorder to remain Active, got %s", state)
	}
	if info == nil || info.ID == "" {
		t.Error("Expected session info for the active session")
	}

	if _, err := rec.Stop(); err != nil {
		t.Fatalf("Expected stop to succeed, got: %v", err)
	}
}

func TestStop_CommitsClipWithDerivedName(t *testing.T) {
	device := &fakeDevice{frames: [][]int{make([]int, 4410), make([]int, 4410)}}
	rec, store := newTestRecorder(t, device, grantAll{})

	if err := rec.Start(); err != nil {
		t.Fatalf("Expected start to succeed, got: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	result, err := rec.Stop()
	if err != nil {
		t.Fatalf("Expected stop to succeed, got: %v", err)
	}

	if result.ID != clipname.NewID(result.StartedAt) {
		t.Errorf("Expected id derived from capture instant, got %q", result.ID)
	}

	meta, ok := clipname.Decode(result.Name)
	if !ok {
		t.Fatalf("Expected committed name %q to decode", result.Name)
	}
	if meta.ID != result.ID {
		t.Errorf("Expected decoded id %q, got %q", result.ID, meta.ID)
	}
	if meta.Duration != result.Duration {
		t.Errorf("Expected decoded duration %v, got %v", result.Duration, meta.Duration)
	}
	if result.Duration < 50*time.Millisecond || result.Duration > 500*time.Millisecond {
		t.Errorf("Expected duration near elapsed time, got %v", result.Duration)
	}

	info, err := os.Stat(result.Path)
	if err != nil {
		t.Fatalf("Expected committed file to exist, got: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Expected committed file to be non-empty")
	}
	if err := store.Validate(result.Path); err != nil {
		t.Errorf("Expected committed clip to validate, got: %v", err)
	}

	state, _ := rec.Status()
	if state != StateIdle {
		t.Errorf("Expected Idle after stop, got %s", state)
	}
}

func TestStop_EmptyCaptureAborts(t *testing.T) {
	device := &fakeDevice{} // delivers no frames
	rec, store := newTestRecorder(t, device, grantAll{})

	if err := rec.Start(); err != nil {
		t.Fatalf("Expected start to succeed, got: %v", err)
	}

	_, err := rec.Stop()
	if !errors.Is(err, ErrEmptyCapture) {
		t.Fatalf("Expected ErrEmptyCapture, got: %v", err)
	}

	// No clip may be registered for an empty capture
	names, err := store.ListClips()
	if err != nil {
		t.Fatalf("Expected listing to succeed, got: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Expected no committed clips, got %v", names)
	}

	state, _ := rec.Status()
	if state != StateIdle {
		t.Errorf("Expected Idle after aborted stop, got %s", state)
	}
}

func TestStop_DeviceFailureReleasesSession(t *testing.T) {
	device := &fakeDevice{
		frames:  [][]int{{1, 2, 3, 4}},
		stopErr: errors.New("stream already closed"),
	}
	rec, _ := newTestRecorder(t, device, grantAll{})

	if err := rec.Start(); err != nil {
		t.Fatalf("Expected start to succeed, got: %v", err)
	}

	_, err := rec.Stop()
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("Expected ErrCaptureFailed, got: %v", err)
	}

	state, info := rec.Status()
	if state != StateIdle {
		t.Errorf("Expected Idle after device failure, got %s", state)
	}
	if info != nil {
		t.Error("Expected session to be cleared after failure")
	}
	if device.closed.Load() == 0 {
		t.Error("Expected device handle to be released")
	}
}

func TestStop_WithoutActiveSession(t *testing.T) {
	rec, _ := newTestRecorder(t, &fakeDevice{}, grantAll{})

	if _, err := rec.Stop(); err == nil {
		t.Error("Expected stop without active session to fail")
	}
}

func TestProgressTicks_StopAfterSessionEnds(t *testing.T) {
	device := &fakeDevice{frames: [][]int{{1, 2, 3, 4}}}
	rec, _ := newTestRecorder(t, device, grantAll{})

	var ticks atomic.Int32
	rec.SetProgressFunc(func(elapsed time.Duration) {
		if elapsed <= 0 {
			t.Error("Expected positive elapsed time in progress callback")
		}
		ticks.Add(1)
	})

	if err := rec.Start(); err != nil {
		t.Fatalf("Expected start to succeed, got: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	if _, err := rec.Stop(); err != nil {
		t.Fatalf("Expected stop to succeed, got: %v", err)
	}

	if ticks.Load() == 0 {
		t.Error("Expected at least one progress tick while active")
	}

	// No further ticks after the session ended
	settled := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if ticks.Load() != settled {
		t.Errorf("Expected ticker to stop with the session, got %d extra ticks", ticks.Load()-settled)
	}
}
