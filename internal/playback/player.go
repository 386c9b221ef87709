package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Penitant/app-voice-recorder/internal/storage"
)

// State represents the playback lifecycle state.
type State string

const (
	StateIdle     State = "IDLE"
	StateLoading  State = "LOADING"
	StatePlaying  State = "PLAYING"
	StatePaused   State = "PAUSED"
	StateFinished State = "FINISHED"
	StateError    State = "ERROR"
)

// Status is the snapshot published to subscribers on every transition and
// position tick.
type Status struct {
	State    State         `json:"state"`
	ClipID   string        `json:"clip_id,omitempty"`
	Position time.Duration `json:"position"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// Player owns one playback session at a time: Idle -> Loading -> Playing
// <-> Paused, with Finished and Error terminal per session. Requesting a new
// clip tears the previous session down first, so the prior native handle is
// never leaked.
type Player struct {
	mu       sync.Mutex
	loader   Loader
	store    *storage.Store
	tick     time.Duration
	state    State
	clipID   string
	sound    Sound
	position time.Duration
	duration time.Duration
	lastErr  string

	watchStop chan struct{}

	onStatus func(Status)
}

// NewPlayer creates an idle Player over the given loader.
func NewPlayer(loader Loader, store *storage.Store, tick time.Duration) *Player {
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return &Player{
		loader: loader,
		store:  store,
		tick:   tick,
		state:  StateIdle,
	}
}

// SetStatusFunc registers the status subscription. The callback must not call
// back into the Player.
func (p *Player) SetStatusFunc(fn func(Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStatus = fn
}

// Play starts playback of the clip at path. A session already in progress is
// displaced: stopped and unloaded before the new clip is touched. The locator
// is validated before any native load is attempted.
func (p *Player) Play(clipID, path string) error {
	p.mu.Lock()

	p.teardownLocked()

	if err := p.store.Validate(path); err != nil {
		st := p.setErrorLocked("", fmt.Sprintf("clip file unavailable: %v", err))
		p.mu.Unlock()
		p.notify(st)
		return err
	}

	p.state = StateLoading
	p.clipID = clipID
	loading := p.statusLocked()

	sound, err := p.loader.Load(path)
	if err != nil {
		st := p.setErrorLocked("", fmt.Sprintf("load failed: %v", err))
		p.mu.Unlock()
		p.notify(loading)
		p.notify(st)
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	if err := sound.Play(); err != nil {
		sound.Unload()
		st := p.setErrorLocked("", fmt.Sprintf("play failed: %v", err))
		p.mu.Unlock()
		p.notify(loading)
		p.notify(st)
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}

	p.sound = sound
	p.position = 0
	p.duration = sound.Duration()
	p.state = StatePlaying
	p.lastErr = ""
	p.watchStop = make(chan struct{})
	stop := p.watchStop

	playing := p.statusLocked()
	p.mu.Unlock()

	// The watcher starts only after these notifications, so a position tick
	// never reaches the subscriber ahead of Loading and Playing.
	p.notify(loading)
	p.notify(playing)
	go p.watch(sound, stop)

	slog.Info("Playback started", "clip", clipID, "duration", playing.Duration)
	return nil
}

// Pause suspends playback. A no-op with a warning outside Playing.
func (p *Player) Pause() error {
	p.mu.Lock()

	if p.state != StatePlaying {
		slog.Warn("Pause ignored", "state", p.state)
		p.mu.Unlock()
		return nil
	}

	if err := p.sound.Pause(); err != nil {
		st := p.failSessionLocked(fmt.Sprintf("pause failed: %v", err))
		p.mu.Unlock()
		p.notify(st)
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}

	p.state = StatePaused
	st := p.statusLocked()
	p.mu.Unlock()
	p.notify(st)
	return nil
}

// Resume continues paused playback. A no-op with a warning outside Paused.
func (p *Player) Resume() error {
	p.mu.Lock()

	if p.state != StatePaused {
		slog.Warn("Resume ignored", "state", p.state)
		p.mu.Unlock()
		return nil
	}

	if err := p.sound.Resume(); err != nil {
		st := p.failSessionLocked(fmt.Sprintf("resume failed: %v", err))
		p.mu.Unlock()
		p.notify(st)
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}

	p.state = StatePlaying
	st := p.statusLocked()
	p.mu.Unlock()
	p.notify(st)
	return nil
}

// Stop releases the playback resource, resets the position and clears the
// current clip.
func (p *Player) Stop() {
	p.mu.Lock()
	p.teardownLocked()
	st := p.statusLocked()
	p.mu.Unlock()
	p.notify(st)
}

// Status returns the current snapshot.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

// CurrentClip returns the id of the loaded clip, empty when no session is
// active.
func (p *Player) CurrentClip() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clipID
}

// LastError returns the message of the most recent playback failure.
func (p *Player) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// watch drives position updates and the end-of-media transition for one
// session. It exits when the session is displaced or stopped; the identity
// check against the owning sound guarantees no update is published for a
// session that is already gone.
func (p *Player) watch(s Sound, stop <-chan struct{}) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-s.Done():
			p.finishSession(s)
			return
		case <-ticker.C:
			if !p.tickPosition(s) {
				return
			}
		}
	}
}

// tickPosition refreshes the published position. Returns false when the
// session no longer owns the player.
func (p *Player) tickPosition(s Sound) bool {
	p.mu.Lock()
	if p.sound != s {
		p.mu.Unlock()
		return false
	}
	if p.state != StatePlaying {
		p.mu.Unlock()
		return true
	}
	p.position = s.Position()
	st := p.statusLocked()
	p.mu.Unlock()
	p.notify(st)
	return true
}

// finishSession handles natural end-of-media: equivalent to an implicit Stop
// that lands in Finished.
func (p *Player) finishSession(s Sound) {
	p.mu.Lock()
	if p.sound != s {
		p.mu.Unlock()
		return
	}

	s.Unload()
	finished := p.clipID
	p.sound = nil
	p.clipID = ""
	p.position = 0
	p.state = StateFinished
	st := p.statusLocked()
	p.mu.Unlock()

	p.notify(st)
	slog.Info("Playback finished", "clip", finished)
}

// teardownLocked releases the current session, if any, and returns the player
// to Idle. Callers must hold p.mu.
func (p *Player) teardownLocked() {
	if p.watchStop != nil {
		close(p.watchStop)
		p.watchStop = nil
	}
	if p.sound != nil {
		p.sound.Unload()
		p.sound = nil
	}
	p.clipID = ""
	p.position = 0
	p.duration = 0
	p.state = StateIdle
}

// failSessionLocked records a runtime failure, releases the session and lands
// in Error with the position display reset. Callers must hold p.mu.
func (p *Player) failSessionLocked(msg string) Status {
	if p.watchStop != nil {
		close(p.watchStop)
		p.watchStop = nil
	}
	if p.sound != nil {
		p.sound.Unload()
		p.sound = nil
	}
	return p.setErrorLocked(p.clipID, msg)
}

// setErrorLocked transitions to Error with a descriptive message. The current
// clip is cleared so no stale position/duration is displayed. Callers must
// hold p.mu.
func (p *Player) setErrorLocked(clipID, msg string) Status {
	slog.Error("Playback error", "clip", clipID, "error", msg)
	p.clipID = ""
	p.position = 0
	p.duration = 0
	p.state = StateError
	p.lastErr = msg
	return p.statusLocked()
}

func (p *Player) statusLocked() Status {
	return Status{
		State:    p.state,
		ClipID:   p.clipID,
		Position: p.position,
		Duration: p.duration,
		Err:      p.lastErr,
	}
}

func (p *Player) notify(st Status) {
	p.mu.Lock()
	fn := p.onStatus
	p.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
