package capture

import (
	"errors"
	"fmt"
)

// Format describes the PCM layout requested from the capture device.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Device abstracts the platform capture handle. Exactly one owner holds a
// device at a time; Close releases it for the next session.
type Device interface {
	// Configure prepares the platform audio session for capture.
	Configure(format Format) error

	// Start begins capture. onFrames is invoked from the device thread with
	// interleaved PCM samples until Stop is called.
	Start(onFrames func(samples []int)) error

	// Stop finalizes the capture. No frames are delivered after it returns.
	Stop() error

	// Close releases the native handle.
	Close() error
}

// Capture errors, surfaced by the Recorder at the component boundary.
var (
	ErrSessionConfig = errors.New("audio session configuration failed")
	ErrCaptureFailed = errors.New("capture failed")
	ErrEmptyCapture  = errors.New("capture produced an empty or missing file")
	ErrCommitFailed  = errors.New("failed to commit capture to storage")
)

// NewDevice returns the platform capture device.
func NewDevice() Device {
	return newPortAudioDevice()
}

func validateFormat(f Format) error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.BitDepth != 16 {
		return fmt.Errorf("unsupported bit depth: %d", f.BitDepth)
	}
	return nil
}
