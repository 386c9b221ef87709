package capture

import (
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 512

// portAudioDevice captures from the default input device via PortAudio.
type portAudioDevice struct {
	format      Format
	stream      *portaudio.Stream
	initialized bool
}

func newPortAudioDevice() *portAudioDevice {
	return &portAudioDevice{}
}

func (d *portAudioDevice) Configure(format Format) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if !d.initialized {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("portaudio init: %w", err)
		}
		d.initialized = true
	}
	d.format = format
	return nil
}

func (d *portAudioDevice) Start(onFrames func(samples []int)) error {
	stream, err := portaudio.OpenDefaultStream(
		d.format.Channels, // input channels
		0,                 // no output
		float64(d.format.SampleRate),
		framesPerBuffer,
		func(in []int16) {
			// Copy out of the callback buffer, PortAudio reuses it
			samples := make([]int, len(in))
			for i, s := range in {
				samples[i] = int(s)
			}
			onFrames(samples)
		},
	)
	if err != nil {
		return fmt.Errorf("open capture stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start capture stream: %w", err)
	}

	d.stream = stream
	return nil
}

func (d *portAudioDevice) Stop() error {
	if d.stream == nil {
		return nil
	}
	if err := d.stream.Stop(); err != nil {
		return fmt.Errorf("stop capture stream: %w", err)
	}
	return nil
}

func (d *portAudioDevice) Close() error {
	var err error
	if d.stream != nil {
		err = d.stream.Close()
		d.stream = nil
	}
	if d.initialized {
		portaudio.Terminate()
		d.initialized = false
	}
	return err
}

// Prober opens and immediately closes a minimal capture stream. On platforms
// with a microphone consent dialog the first open triggers it; a denial is
// reported as an error and cached by the permission gate.
type Prober struct{}

func (Prober) Probe() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, 44100, framesPerBuffer, buf)
	if err != nil {
		if isDenialError(err) {
			return fmt.Errorf("microphone access denied by platform: %w", err)
		}
		return fmt.Errorf("open capture stream: %w", err)
	}
	return stream.Close()
}

// isDenialError detects platform permission denials from the stream error.
func isDenialError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "denied") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "device unavailable")
}
