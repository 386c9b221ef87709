// Package permission holds the process-wide microphone access decision.
package permission

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrDenied is returned when microphone access has not been granted.
var ErrDenied = errors.New("microphone access denied")

// Prober attempts to open the capture device once. On platforms with a
// consent dialog the first probe triggers it; a denial surfaces as an error.
type Prober interface {
	Probe() error
}

// Gate caches the microphone grant decision for the lifetime of the process.
type Gate struct {
	mu      sync.Mutex
	prober  Prober
	decided bool
	granted bool
}

// NewGate creates a Gate backed by the given prober.
func NewGate(prober Prober) *Gate {
	return &Gate{prober: prober}
}

// RequestAccess probes the capture device if no decision has been made yet
// and caches the outcome. Subsequent calls return the cached decision.
func (g *Gate) RequestAccess() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.decided {
		return g.granted
	}

	err := g.prober.Probe()
	g.decided = true
	g.granted = err == nil

	if err != nil {
		slog.Warn("Microphone access probe failed", "error", err)
	} else {
		slog.Debug("Microphone access granted")
	}

	return g.granted
}

// Granted reports the cached decision without probing. It is false until
// RequestAccess has run at least once.
func (g *Gate) Granted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decided && g.granted
}
