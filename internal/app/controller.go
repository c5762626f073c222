// Package app coordinates the push-to-talk flow: hotkey edges drive the
// recorder, releases are packaged and submitted for transcription, and
// results are delivered to the configured output sinks.
package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ryanshannon/speech-to-text/config"
	"github.com/ryanshannon/speech-to-text/hotkey"
	"github.com/ryanshannon/speech-to-text/internal/types"
	"github.com/ryanshannon/speech-to-text/stt"
)

// Capture records microphone audio between Start and Stop.
type Capture interface {
	Start() error
	Stop() []byte
}

// Transcriber talks to the remote transcription service.
type Transcriber interface {
	CheckHealth(ctx context.Context) bool
	Transcribe(ctx context.Context, wavPath, language string) (*stt.Result, error)
}

// Publisher delivers transcribed text to the user.
type Publisher interface {
	Publish(text string) error
}

// Notifier surfaces session outcomes outside the tray.
type Notifier interface {
	Info(title, message string)
	Error(title, message string)
}

// session is the unit of one press-to-release capture. At most one exists
// at a time; it is destroyed once its outcome has been handled.
type session struct {
	id      string
	started time.Time
}

// outcome carries the result of a submission back to the event loop.
type outcome struct {
	sessionID string
	text      string
	err       error
}

// Controller owns the session state machine. All state lives on the event
// loop goroutine; the only work that leaves it is the network submission.
type Controller struct {
	cfg     *config.Config
	edges   <-chan hotkey.Edge
	capture Capture
	trans   Transcriber
	pub     Publisher
	notify  Notifier
	status  types.StatusSink
	tempDir string

	state    types.Status
	current  *session
	inFlight bool
	outcomes chan outcome
	probing  bool
	probes   chan bool
}

// New wires a controller. edges is the hotkey watcher's event channel; the
// controller treats its closure as a shutdown signal.
func New(cfg *config.Config, edges <-chan hotkey.Edge, capture Capture, trans Transcriber, pub Publisher, notify Notifier, status types.StatusSink) *Controller {
	return &Controller{
		cfg:      cfg,
		edges:    edges,
		capture:  capture,
		trans:    trans,
		pub:      pub,
		notify:   notify,
		status:   status,
		tempDir:  os.TempDir(),
		state:    types.StatusIdle,
		outcomes: make(chan outcome, 1),
		probes:   make(chan bool, 1),
	}
}

// Run drives the event loop until ctx is canceled or the edge channel
// closes. It always returns with the audio device released and any
// in-flight submission settled.
func (c *Controller) Run(ctx context.Context) {
	c.setStatus(types.StatusIdle)
	c.startProbe(ctx)

	ticker := time.NewTicker(c.cfg.HealthInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case edge, ok := <-c.edges:
			if !ok {
				c.shutdown()
				return
			}
			switch edge {
			case hotkey.EdgePressed:
				c.handlePress()
			case hotkey.EdgeReleased:
				c.handleRelease(ctx)
			}
		case <-ticker.C:
			if c.current == nil && !c.inFlight {
				c.startProbe(ctx)
			}
		case healthy := <-c.probes:
			c.probing = false
			// The probe only flips Idle<->Ready; a result landing while a
			// session or submission exists is discarded, the status
			// belongs to the session.
			if c.current == nil && !c.inFlight {
				c.applyHealth(healthy)
			}
		case out := <-c.outcomes:
			c.handleOutcome(out)
		}
	}
}

func (c *Controller) handlePress() {
	if c.state == types.StatusRecording || c.state == types.StatusProcessing {
		slog.Debug("ignoring press", "state", c.state)
		return
	}

	s := &session{
		id:      uuid.New().String()[:8],
		started: time.Now(),
	}
	if err := c.capture.Start(); err != nil {
		// State was never advanced, so the machine cannot be stuck in
		// Recording after a device failure. Re-publish for the sink.
		slog.Error("start capture", "session", s.id, "error", err)
		c.notify.Error("Recording failed", "Could not open the microphone")
		c.setStatus(c.state)
		return
	}
	c.current = s
	c.setStatus(types.StatusRecording)
	slog.Info("recording started", "session", s.id)
}

func (c *Controller) handleRelease(ctx context.Context) {
	if c.state != types.StatusRecording || c.current == nil {
		slog.Debug("ignoring release", "state", c.state)
		return
	}

	s := c.current
	c.current = nil
	pcm := c.capture.Stop()
	dur := time.Since(s.started)

	if len(pcm) < c.cfg.MinCaptureBytes {
		slog.Info("recording too short, discarding",
			"session", s.id, "bytes", len(pcm), "duration", dur)
		c.setStatus(types.StatusReady)
		return
	}

	slog.Info("recording stopped", "session", s.id, "bytes", len(pcm), "duration", dur)
	c.setStatus(types.StatusProcessing)
	c.inFlight = true

	// The submission must survive loop shutdown so a result already on the
	// wire is not abandoned; the client's own timeout bounds it.
	go c.submit(context.WithoutCancel(ctx), s, pcm)
}

// submit runs off the event loop: it stages the audio as a WAV file, sends
// it, and reports back through the outcome channel.
func (c *Controller) submit(ctx context.Context, s *session, pcm []byte) {
	wavPath, err := stt.WriteTempWAV(c.tempDir, pcm, c.cfg.Audio.SampleRate, c.cfg.Audio.Channels)
	if err != nil {
		c.outcomes <- outcome{sessionID: s.id, err: err}
		return
	}
	defer func() {
		if err := os.Remove(wavPath); err != nil {
			slog.Warn("remove staging file", "path", wavPath, "error", err)
		}
	}()

	result, err := c.trans.Transcribe(ctx, wavPath, c.cfg.Language)
	if err != nil {
		c.outcomes <- outcome{sessionID: s.id, err: err}
		return
	}
	c.outcomes <- outcome{sessionID: s.id, text: result.Text}
}

func (c *Controller) handleOutcome(out outcome) {
	c.inFlight = false

	if out.err != nil {
		slog.Error("transcription failed", "session", out.sessionID, "error", out.err)
		c.notify.Error("Transcription failed", out.err.Error())
		c.setStatus(types.StatusReady)
		return
	}
	if out.text == "" {
		slog.Info("no speech detected", "session", out.sessionID)
		c.setStatus(types.StatusReady)
		return
	}

	slog.Info("transcription complete", "session", out.sessionID, "chars", len(out.text))
	if err := c.pub.Publish(out.text); err != nil {
		slog.Error("publish text", "session", out.sessionID, "error", err)
		c.notify.Error("Output failed", "Could not deliver the transcribed text")
	} else {
		c.notify.Info("Transcribed", out.text)
	}
	c.setStatus(types.StatusReady)
}

// startProbe runs a health check off the event loop so a slow or blackholed
// server never delays edge handling; the boolean comes back through the
// probes channel. At most one probe is outstanding.
func (c *Controller) startProbe(ctx context.Context) {
	if c.probing {
		return
	}
	c.probing = true
	go func() {
		c.probes <- c.trans.CheckHealth(ctx)
	}()
}

func (c *Controller) applyHealth(healthy bool) {
	switch {
	case healthy && c.state == types.StatusIdle:
		slog.Info("transcription service reachable", "url", c.cfg.APIURL)
		c.setStatus(types.StatusReady)
	case !healthy && c.state == types.StatusReady:
		slog.Warn("transcription service unreachable", "url", c.cfg.APIURL)
		c.setStatus(types.StatusIdle)
	}
}

// shutdown releases the recorder and waits for an in-flight submission,
// bounded by the request timeout.
func (c *Controller) shutdown() {
	if c.current != nil {
		slog.Info("shutdown during recording, discarding", "session", c.current.id)
		c.capture.Stop()
		c.current = nil
	}
	if c.inFlight {
		slog.Info("waiting for in-flight transcription")
		select {
		case out := <-c.outcomes:
			c.handleOutcome(out)
		case <-time.After(c.cfg.RequestTimeout() + time.Second):
			slog.Warn("in-flight transcription did not settle before shutdown")
		}
	}
	c.setStatus(types.StatusIdle)
	slog.Info("controller stopped")
}

func (c *Controller) setStatus(s types.Status) {
	c.state = s
	c.status.Set(s)
}
