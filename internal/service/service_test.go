package service

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Penitant/app-voice-recorder/internal/capture"
	"github.com/Penitant/app-voice-recorder/internal/clipname"
	"github.com/Penitant/app-voice-recorder/internal/config"
	"github.com/Penitant/app-voice-recorder/internal/permission"
	"github.com/Penitant/app-voice-recorder/internal/playback"
	"github.com/Penitant/app-voice-recorder/internal/storage"
)

type fakeDevice struct {
	frames [][]int
}

func (d *fakeDevice) Configure(format capture.Format) error { return nil }

func (d *fakeDevice) Start(onFrames func(samples []int)) error {
	for _, batch := range d.frames {
		onFrames(batch)
	}
	return nil
}

func (d *fakeDevice) Stop() error  { return nil }
func (d *fakeDevice) Close() error { return nil }

type denyAll struct{}

func (denyAll) Probe() error { return errors.New("unauthorized") }

type grantAll struct{}

func (grantAll) Probe() error { return nil }

// fakeSound is the minimal playable handle for service-level tests.
type fakeSound struct {
	mu      sync.Mutex
	unloads int
	done    chan struct{}
}

func (f *fakeSound) Play() error             { return nil }
func (f *fakeSound) Pause() error            { return nil }
func (f *fakeSound) Resume() error           { return nil }
func (f *fakeSound) Position() time.Duration { return 0 }
func (f *fakeSound) Duration() time.Duration { return time.Second }
func (f *fakeSound) Done() <-chan struct{}   { return f.done }
func (f *fakeSound) Unload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloads++
	return nil
}

func (f *fakeSound) unloaded() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unloads
}

type fakeLoader struct{}

func (fakeLoader) Load(path string) (playback.Sound, error) {
	return &fakeSound{done: make(chan struct{})}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Directory = t.TempDir()
	cfg.Audio.Channels = 1
	cfg.Audio.ProgressTickMillis = 10
	return cfg
}

func newTestService(t *testing.T, device capture.Device, prober permission.Prober) *RecorderService {
	t.Helper()
	cfg := testConfig(t)
	store := storage.New(cfg.Storage.Directory, cfg.Storage.Extension)
	return NewWithCollaborators(cfg, store, permission.NewGate(prober), device, fakeLoader{})
}

func TestRecordThenListThenPlay(t *testing.T) {
	device := &fakeDevice{frames: [][]int{make([]int, 4410)}}
	svc := newTestService(t, device, grantAll{})

	if err := svc.StartRecording(); err != nil {
		t.Fatalf("Expected recording to start, got: %v", err)
	}

	state, _ := svc.RecordingStatus()
	if state != capture.StateActive {
		t.Errorf("Expected RECORDING state, got %s", state)
	}

	time.Sleep(30 * time.Millisecond)

	result, err := svc.StopRecording()
	if err != nil {
		t.Fatalf("Expected recording to stop, got: %v", err)
	}

	// Registry was refreshed on stop; the new clip is visible
	clips := svc.Clips()
	if len(clips) != 1 || clips[0].ID != result.ID {
		t.Fatalf("Expected new clip in registry, got %v", clips)
	}

	if err := svc.Play(result.ID); err != nil {
		t.Fatalf("Expected playback to start, got: %v", err)
	}
	if st := svc.PlaybackStatus(); st.State != playback.StatePlaying {
		t.Errorf("Expected Playing, got %s", st.State)
	}

	svc.StopPlayback()
}

func TestStartRecording_DeniedSurfacesError(t *testing.T) {
	svc := newTestService(t, &fakeDevice{}, denyAll{})

	err := svc.StartRecording()
	if !errors.Is(err, permission.ErrDenied) {
		t.Fatalf("Expected ErrDenied, got: %v", err)
	}
	if svc.GetLastError() == "" {
		t.Error("Expected last error to be surfaced")
	}
}

func TestPlay_UnknownClip(t *testing.T) {
	svc := newTestService(t, &fakeDevice{}, grantAll{})

	if err := svc.Play("ghost"); err == nil {
		t.Error("Expected playing an unknown clip to fail")
	}
}

func TestDelete_PlayingClipStopsPlaybackFirst(t *testing.T) {
	cfg := testConfig(t)
	store := storage.New(cfg.Storage.Directory, cfg.Storage.Extension)
	svc := NewWithCollaborators(cfg, store, permission.NewGate(grantAll{}), &fakeDevice{}, fakeLoader{})

	// Seed a clip on disk and register it
	name := clipname.Encode("clip-1", time.UnixMilli(1), time.Second, "wav")
	path := filepath.Join(cfg.Storage.Directory, name)
	if err := os.WriteFile(path, []byte("pcm"), 0644); err != nil {
		t.Fatalf("Failed to seed clip: %v", err)
	}
	if err := svc.Refresh(); err != nil {
		t.Fatalf("Expected refresh to succeed, got: %v", err)
	}

	if err := svc.Play("clip-1"); err != nil {
		t.Fatalf("Expected playback to start, got: %v", err)
	}

	if err := svc.Delete("clip-1"); err != nil {
		t.Fatalf("Expected delete to succeed, got: %v", err)
	}

	if st := svc.PlaybackStatus(); st.State == playback.StatePlaying {
		t.Error("Expected playback stopped before deletion")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected backing file removed")
	}

	if err := svc.Refresh(); err != nil {
		t.Fatalf("Expected refresh to succeed, got: %v", err)
	}
	if len(svc.Clips()) != 0 {
		t.Error("Expected deleted clip absent from subsequent refresh")
	}
}

func TestLastError_ClearedOnNextSuccess(t *testing.T) {
	svc := newTestService(t, &fakeDevice{frames: [][]int{{1, 2}}}, grantAll{})

	if err := svc.Play("ghost"); err == nil {
		t.Fatal("Expected play of unknown clip to fail")
	}
	if svc.GetLastError() == "" {
		t.Fatal("Expected last error set")
	}

	if err := svc.StartRecording(); err != nil {
		t.Fatalf("Expected recording to start, got: %v", err)
	}
	if svc.GetLastError() != "" {
		t.Error("Expected last error cleared when a new operation starts")
	}
	if _, err := svc.StopRecording(); err != nil {
		t.Fatalf("Expected recording to stop, got: %v", err)
	}
}
