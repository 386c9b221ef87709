package service

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Penitant/app-voice-recorder/internal/capture"
	"github.com/Penitant/app-voice-recorder/internal/config"
	"github.com/Penitant/app-voice-recorder/internal/permission"
	"github.com/Penitant/app-voice-recorder/internal/playback"
	"github.com/Penitant/app-voice-recorder/internal/registry"
	"github.com/Penitant/app-voice-recorder/internal/storage"
)

// Service is the coordination facade the presentation layer drives: one
// recorder, one player, one registry, all over the same recordings directory.
type Service interface {
	// Recording operations
	StartRecording() error
	StopRecording() (*capture.Result, error)
	RecordingStatus() (capture.State, *capture.SessionInfo)
	SetRecordingProgressFunc(fn func(elapsed time.Duration))

	// Playback operations
	Play(clipID string) error
	Pause() error
	Resume() error
	StopPlayback()
	PlaybackStatus() playback.Status
	SetPlaybackStatusFunc(fn func(playback.Status))

	// Registry operations
	Refresh() error
	Clips() []registry.Clip
	Delete(clipID string) error

	// Information operations
	GetConfig() *config.Config
	GetLastError() string
}

// RecorderService is the main service implementation.
type RecorderService struct {
	cfg      *config.Config
	store    *storage.Store
	gate     *permission.Gate
	recorder *capture.Recorder
	player   *playback.Player
	registry *registry.Registry

	lastError      string
	lastErrorMutex sync.RWMutex
}

// New wires a service from production collaborators.
func New(cfg *config.Config) Service {
	store := storage.New(cfg.Storage.Directory, cfg.Storage.Extension)
	return NewWithCollaborators(cfg, store,
		permission.NewGate(capture.Prober{}),
		capture.NewDevice(),
		playback.NewLoader())
}

// NewWithCollaborators wires a service from explicit collaborators. Tests use
// it to inject fake devices and sounds.
func NewWithCollaborators(cfg *config.Config, store *storage.Store, gate *permission.Gate, device capture.Device, loader playback.Loader) *RecorderService {
	format := capture.Format{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		BitDepth:   cfg.Audio.BitDepth,
	}
	return &RecorderService{
		cfg:      cfg,
		store:    store,
		gate:     gate,
		recorder: capture.NewRecorder(gate, device, store, format, cfg.ProgressTick()),
		player:   playback.NewPlayer(loader, store, cfg.ProgressTick()),
		registry: registry.New(store),
	}
}

// SetRecordingProgressFunc registers the elapsed-time callback the recorder
// fires every progress tick.
func (s *RecorderService) SetRecordingProgressFunc(fn func(elapsed time.Duration)) {
	s.recorder.SetProgressFunc(fn)
}

// StartRecording begins a capture session.
func (s *RecorderService) StartRecording() error {
	s.clearLastError()
	if err := s.recorder.Start(); err != nil {
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		return err
	}
	return nil
}

// StopRecording commits the active capture and refreshes the registry so the
// new clip is visible immediately.
func (s *RecorderService) StopRecording() (*capture.Result, error) {
	result, err := s.recorder.Stop()
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop recording: %v", err))
		return nil, err
	}

	s.clearLastError()
	if err := s.registry.Refresh(); err != nil {
		slog.Warn("Registry refresh after recording failed", "error", err)
	}
	return result, nil
}

// RecordingStatus returns the recorder state and session info.
func (s *RecorderService) RecordingStatus() (capture.State, *capture.SessionInfo) {
	return s.recorder.Status()
}

// Play starts playback of a registered clip.
func (s *RecorderService) Play(clipID string) error {
	s.clearLastError()

	clip, err := s.registry.Get(clipID)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to play: %v", err))
		return err
	}

	if err := s.player.Play(clip.ID, clip.Path); err != nil {
		s.setLastError(fmt.Sprintf("Failed to play %s: %v", clipID, err))
		return err
	}
	return nil
}

// Pause suspends playback.
func (s *RecorderService) Pause() error {
	if err := s.player.Pause(); err != nil {
		s.setLastError(fmt.Sprintf("Failed to pause: %v", err))
		return err
	}
	return nil
}

// Resume continues paused playback.
func (s *RecorderService) Resume() error {
	if err := s.player.Resume(); err != nil {
		s.setLastError(fmt.Sprintf("Failed to resume: %v", err))
		return err
	}
	return nil
}

// StopPlayback releases the current playback session.
func (s *RecorderService) StopPlayback() {
	s.player.Stop()
}

// PlaybackStatus returns the current playback snapshot.
func (s *RecorderService) PlaybackStatus() playback.Status {
	return s.player.Status()
}

// SetPlaybackStatusFunc forwards a status subscription to the player.
func (s *RecorderService) SetPlaybackStatusFunc(fn func(playback.Status)) {
	s.player.SetStatusFunc(fn)
}

// Refresh rebuilds the clip registry from the recordings directory.
func (s *RecorderService) Refresh() error {
	if err := s.registry.Refresh(); err != nil {
		s.setLastError(fmt.Sprintf("Failed to refresh registry: %v", err))
		return err
	}
	return nil
}

// Clips returns the current registry snapshot.
func (s *RecorderService) Clips() []registry.Clip {
	return s.registry.Clips()
}

// Delete removes a clip. When the clip is currently playing, playback is
// stopped first so the native handle never outlives the file.
func (s *RecorderService) Delete(clipID string) error {
	if s.player.CurrentClip() == clipID {
		slog.Info("Stopping playback before deleting clip", "clip", clipID)
		s.player.Stop()
	}

	if err := s.registry.Delete(clipID); err != nil {
		s.setLastError(fmt.Sprintf("Failed to delete %s: %v", clipID, err))
		return err
	}
	return nil
}

// GetConfig returns the current configuration.
func (s *RecorderService) GetConfig() *config.Config {
	return s.cfg
}

// GetLastError returns the last error message (thread-safe).
func (s *RecorderService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe).
func (s *RecorderService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe).
func (s *RecorderService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}
