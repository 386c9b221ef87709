package capture

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Penitant/app-voice-recorder/internal/clipname"
	"github.com/Penitant/app-voice-recorder/internal/permission"
	"github.com/Penitant/app-voice-recorder/internal/storage"
)

// State represents the current state of the recorder.
type State string

const (
	StateIdle       State = "IDLE"
	StateArming     State = "ARMING"
	StateActive     State = "RECORDING"
	StateCommitting State = "COMMITTING"
)

// SessionInfo describes the in-progress capture session.
type SessionInfo struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Elapsed   int64     `json:"elapsed_millis"`
}

// Result describes a successfully committed clip.
type Result struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Path      string        `json:"path"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// session is the ephemeral per-capture state. Created on Start, destroyed on
// Stop or on error.
type session struct {
	id        string
	startedAt time.Time
	tmpPath   string
	tmpFile   *os.File
	encoder   *wav.Encoder

	// wmu serializes encoder writes (device thread) against finalization.
	wmu    sync.Mutex
	closed bool
	frames int64

	tickStop chan struct{}
	tickDone chan struct{}
}

// Recorder owns the capture lifecycle: Idle -> Arming -> Active ->
// Committing -> Idle, with every error path landing back in Idle. At most one
// session is active at a time; the device handle belongs to the active
// session and is released on every exit path.
type Recorder struct {
	mu      sync.Mutex
	state   State
	gate    *permission.Gate
	device  Device
	store   *storage.Store
	format  Format
	tick    time.Duration
	session *session
	lastErr string

	// onProgress, when set, receives the derived elapsed time every tick
	// while recording is active.
	onProgress func(elapsed time.Duration)
}

// NewRecorder creates an idle Recorder.
func NewRecorder(gate *permission.Gate, device Device, store *storage.Store, format Format, tick time.Duration) *Recorder {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return &Recorder{
		state:  StateIdle,
		gate:   gate,
		device: device,
		store:  store,
		format: format,
		tick:   tick,
	}
}

// SetProgressFunc registers the elapsed-time callback. Must be called before
// Start.
func (r *Recorder) SetProgressFunc(fn func(elapsed time.Duration)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onProgress = fn
}

// Start begins a capture session. It fails fast when microphone access is
// not granted and rejects a second session while one is active.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("recorder busy: cannot start from %s", r.state)
	}

	if !r.gate.RequestAccess() {
		r.lastErr = permission.ErrDenied.Error()
		return permission.ErrDenied
	}

	r.state = StateArming

	if err := r.device.Configure(r.format); err != nil {
		return r.fail(fmt.Errorf("%w: %v", ErrSessionConfig, err))
	}

	tmpFile, err := os.CreateTemp("", "capture-*."+r.store.Extension())
	if err != nil {
		return r.fail(fmt.Errorf("%w: create temp file: %v", ErrCaptureFailed, err))
	}

	s := &session{
		tmpPath:  tmpFile.Name(),
		tmpFile:  tmpFile,
		encoder:  wav.NewEncoder(tmpFile, r.format.SampleRate, r.format.BitDepth, r.format.Channels, 1),
		tickStop: make(chan struct{}),
		tickDone: make(chan struct{}),
	}

	if err := r.device.Start(s.writeFrames); err != nil {
		s.discard()
		return r.fail(fmt.Errorf("%w: %v", ErrCaptureFailed, err))
	}

	now := time.Now()
	s.startedAt = now
	s.id = clipname.NewID(now)
	r.session = s
	r.state = StateActive

	go r.progressLoop(s, r.onProgress)

	slog.Info("Recording started", "clip", s.id, "temp", s.tmpPath)
	return nil
}

// Stop finalizes the active session and commits the capture into storage
// under its canonical name. The recorder lands in Idle regardless of outcome;
// on failure no clip is registered.
func (r *Recorder) Stop() (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateActive {
		return nil, fmt.Errorf("no recording in progress (state %s)", r.state)
	}

	s := r.session
	r.state = StateCommitting

	// Join the ticker first so it never fires after the session is gone.
	close(s.tickStop)
	<-s.tickDone

	elapsed := time.Since(s.startedAt).Round(time.Millisecond)

	if err := r.device.Stop(); err != nil {
		s.discard()
		return nil, r.fail(fmt.Errorf("%w: %v", ErrCaptureFailed, err))
	}
	r.device.Close()

	frames, err := s.finalize()
	if err != nil {
		s.discard()
		return nil, r.fail(fmt.Errorf("%w: %v", ErrCaptureFailed, err))
	}

	if frames == 0 {
		s.discard()
		return nil, r.fail(ErrEmptyCapture)
	}
	info, err := os.Stat(s.tmpPath)
	if err != nil || info.Size() == 0 {
		s.discard()
		return nil, r.fail(ErrEmptyCapture)
	}

	name := clipname.Encode(s.id, s.startedAt, elapsed, r.store.Extension())
	path, err := r.store.Commit(s.tmpPath, name)
	if err != nil {
		s.discard()
		return nil, r.fail(fmt.Errorf("%w: %v", ErrCommitFailed, err))
	}
	os.Remove(s.tmpPath)

	result := &Result{
		ID:        s.id,
		Name:      name,
		Path:      path,
		StartedAt: s.startedAt,
		Duration:  elapsed,
	}

	r.session = nil
	r.state = StateIdle
	r.lastErr = ""

	slog.Info("Recording saved", "clip", result.ID, "duration", result.Duration, "path", result.Path)
	return result, nil
}

// Status returns the current state and a copy of the session info, if any.
func (r *Recorder) Status() (State, *SessionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var info *SessionInfo
	if r.session != nil {
		info = &SessionInfo{
			ID:        r.session.id,
			StartedAt: r.session.startedAt,
			Elapsed:   time.Since(r.session.startedAt).Milliseconds(),
		}
	}
	return r.state, info
}

// Elapsed returns the derived elapsed time of the active session, or zero.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateActive || r.session == nil {
		return 0
	}
	return time.Since(r.session.startedAt)
}

// LastError returns the message of the most recent failure, empty when the
// last operation succeeded.
func (r *Recorder) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// fail records the error, releases the session and returns the recorder to
// Idle. Callers must hold r.mu.
func (r *Recorder) fail(err error) error {
	slog.Error("Recorder error", "error", err, "state", r.state)
	r.lastErr = err.Error()
	r.session = nil
	r.device.Close()
	r.state = StateIdle
	return err
}

// progressLoop delivers elapsed-time updates at the configured cadence until
// the session ends. Stop joins this goroutine before tearing the session
// down, so a tick never fires after the session is gone.
func (r *Recorder) progressLoop(s *session, fn func(elapsed time.Duration)) {
	defer close(s.tickDone)

	if fn == nil {
		<-s.tickStop
		return
	}

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.tickStop:
			return
		case <-ticker.C:
			select {
			case <-s.tickStop:
				return
			default:
			}
			fn(time.Since(s.startedAt))
		}
	}
}

// writeFrames appends interleaved PCM samples to the temp WAV. Invoked from
// the device thread.
func (s *session) writeFrames(samples []int) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.closed {
		return
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: s.encoder.NumChans, SampleRate: s.encoder.SampleRate},
		Data:           samples,
		SourceBitDepth: s.encoder.BitDepth,
	}
	if err := s.encoder.Write(buf); err != nil {
		slog.Error("Failed to write capture frames", "error", err)
		return
	}
	s.frames += int64(len(samples))
}

// finalize closes the encoder and temp file and returns the sample count.
func (s *session) finalize() (int64, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.closed {
		return s.frames, nil
	}
	s.closed = true

	if err := s.encoder.Close(); err != nil {
		s.tmpFile.Close()
		return 0, fmt.Errorf("close wav encoder: %w", err)
	}
	if err := s.tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	return s.frames, nil
}

// discard tears the session down and removes the temp capture.
func (s *session) discard() {
	s.wmu.Lock()
	if !s.closed {
		s.closed = true
		s.encoder.Close()
		s.tmpFile.Close()
	}
	s.wmu.Unlock()
	os.Remove(s.tmpPath)
}
