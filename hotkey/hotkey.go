// Package hotkey detects press and release edges of a configured key
// combination by sampling a key-state source at a fixed interval.
package hotkey

import (
	"log/slog"
	"time"
)

// DefaultInterval bounds the edge-detection latency: an edge is observed at
// most one sampling cycle after the underlying key state changes.
const DefaultInterval = 10 * time.Millisecond

// Edge is a single transition of the combination between released and pressed.
type Edge int

const (
	// EdgePressed is emitted when the combination transitions to held.
	EdgePressed Edge = iota
	// EdgeReleased is emitted when the combination transitions to released.
	EdgeReleased
)

// String returns the edge name.
func (e Edge) String() string {
	if e == EdgePressed {
		return "pressed"
	}
	return "released"
}

// Source reports whether the configured combination is currently held.
// A source error is not fatal to the watcher; the last known state is kept
// and polling continues.
type Source interface {
	Pressed() (bool, error)
}

// Watcher samples a Source and emits a de-duplicated stream of edges:
// never two consecutive EdgePressed without an intervening EdgeReleased,
// and never EdgeReleased while not pressed.
type Watcher struct {
	src      Source
	interval time.Duration
	events   chan Edge
	stop     chan struct{}
	done     chan struct{}
}

// NewWatcher creates a watcher over src. A non-positive interval falls back
// to DefaultInterval.
func NewWatcher(src Source, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		src:      src,
		interval: interval,
		events:   make(chan Edge, 16),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Events returns the edge stream. The channel is closed after Stop.
func (w *Watcher) Events() <-chan Edge {
	return w.events
}

// Start launches the sampling loop.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop terminates the sampling loop and closes the event channel.
// It is safe to call once.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	defer close(w.events)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	pressed := false
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			now, err := w.src.Pressed()
			if err != nil {
				slog.Warn("hotkey source error", "error", err)
				continue
			}
			if now == pressed {
				continue
			}
			pressed = now

			edge := EdgeReleased
			if now {
				edge = EdgePressed
			}
			select {
			case w.events <- edge:
			case <-w.stop:
				return
			}
		}
	}
}
