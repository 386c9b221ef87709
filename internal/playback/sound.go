package playback

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 512

// Playback errors, surfaced by the Player at the component boundary.
var (
	ErrLoadFailed     = errors.New("failed to load clip for playback")
	ErrPlaybackFailed = errors.New("playback failed")
)

// Sound is the native playback handle for one loaded clip. Exactly one owner
// holds a Sound at a time; Unload releases it.
type Sound interface {
	Play() error
	Pause() error
	Resume() error

	// Position reports the current playback position.
	Position() time.Duration

	// Duration reports the total media duration, resolved at load time.
	Duration() time.Duration

	// Done is closed when the media reaches its natural end.
	Done() <-chan struct{}

	// Unload releases the native handle. Idempotent.
	Unload() error
}

// Loader opens a clip file and produces a playable Sound.
type Loader interface {
	Load(path string) (Sound, error)
}

// NewLoader returns the production loader: WAV decode via go-audio feeding a
// PortAudio output stream.
func NewLoader() Loader {
	return &deviceLoader{}
}

type deviceLoader struct{}

func (l *deviceLoader) Load(path string) (Sound, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clip: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file: %s", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("wav file contains no samples: %s", path)
	}

	data := make([]int16, len(buf.Data))
	for i, sample := range buf.Data {
		if sample > 32767 {
			sample = 32767
		} else if sample < -32768 {
			sample = -32768
		}
		data[i] = int16(sample)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	s := &wavSound{
		data:       data,
		channels:   buf.Format.NumChannels,
		sampleRate: buf.Format.SampleRate,
		done:       make(chan struct{}),
	}

	stream, err := portaudio.OpenDefaultStream(
		0,          // no input
		s.channels, // output channels
		float64(s.sampleRate),
		framesPerBuffer,
		s.fill,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open playback stream: %w", err)
	}
	s.stream = stream

	return s, nil
}

// outputStream is the subset of the PortAudio stream the sound drives.
type outputStream interface {
	Start() error
	Stop() error
	Close() error
}

// wavSound streams a fully decoded PCM buffer to the default output device.
type wavSound struct {
	stream     outputStream
	channels   int
	sampleRate int

	mu     sync.Mutex
	data   []int16
	cursor int

	done     chan struct{}
	doneOnce sync.Once
	unloaded bool
}

// fill is the PortAudio output callback. It runs on the device thread.
func (s *wavSound) fill(out []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := copy(out, s.data[s.cursor:])
	s.cursor += n
	for i := n; i < len(out); i++ {
		out[i] = 0
	}

	if s.cursor >= len(s.data) {
		s.doneOnce.Do(func() { close(s.done) })
	}
}

func (s *wavSound) Play() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("start playback stream: %w", err)
	}
	return nil
}

func (s *wavSound) Pause() error {
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("pause playback stream: %w", err)
	}
	return nil
}

func (s *wavSound) Resume() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("resume playback stream: %w", err)
	}
	return nil
}

func (s *wavSound) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := s.cursor / s.channels
	return time.Duration(frames) * time.Second / time.Duration(s.sampleRate)
}

func (s *wavSound) Duration() time.Duration {
	frames := len(s.data) / s.channels
	return time.Duration(frames) * time.Second / time.Duration(s.sampleRate)
}

func (s *wavSound) Done() <-chan struct{} {
	return s.done
}

func (s *wavSound) Unload() error {
	s.mu.Lock()
	if s.unloaded {
		s.mu.Unlock()
		return nil
	}
	s.unloaded = true
	s.mu.Unlock()

	// Stop quiesces the device callback before Close joins its thread. Both
	// must run with s.mu released: fill takes the same lock, and Close waits
	// for any in-flight callback to return.
	s.stream.Stop()
	err := s.stream.Close()
	portaudio.Terminate()
	return err
}
