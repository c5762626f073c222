package app

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ryanshannon/speech-to-text/config"
	"github.com/ryanshannon/speech-to-text/hotkey"
	"github.com/ryanshannon/speech-to-text/internal/types"
	"github.com/ryanshannon/speech-to-text/stt"
)

type fakeCapture struct {
	mu       sync.Mutex
	startErr error
	pcm      []byte
	starts   int
	stops    int
}

func (f *fakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	return nil
}

func (f *fakeCapture) Stop() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.pcm
}

func (f *fakeCapture) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

type fakeTranscriber struct {
	mu         sync.Mutex
	healthy    bool
	healthGate chan struct{} // when set, CheckHealth blocks until closed
	text       string
	err        error
	delay      time.Duration
	probes     int
	calls      int
	sawWAV     bool
}

func (f *fakeTranscriber) CheckHealth(ctx context.Context) bool {
	f.mu.Lock()
	f.probes++
	gate := f.healthGate
	healthy := f.healthy
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return healthy
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, wavPath, language string) (*stt.Result, error) {
	f.mu.Lock()
	f.calls++
	if _, err := os.Stat(wavPath); err == nil {
		f.sawWAV = true
	}
	delay, text, err := f.delay, f.text, f.err
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return &stt.Result{Text: text, Language: "en"}, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTranscriber) probeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

type fakePublisher struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakePublisher) Publish(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakePublisher) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (f *fakeNotifier) Info(title, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos = append(f.infos, title)
}

func (f *fakeNotifier) Error(title, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, title)
}

func (f *fakeNotifier) errorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errors)
}

type statusRecorder struct {
	mu      sync.Mutex
	history []types.Status
}

func (r *statusRecorder) Set(s types.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, s)
}

func (r *statusRecorder) last() types.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) == 0 {
		return types.StatusIdle
	}
	return r.history[len(r.history)-1]
}

func (r *statusRecorder) waitFor(t *testing.T, want types.Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.last() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("status never reached %v, last %v", want, r.last())
}

type harness struct {
	edges   chan hotkey.Edge
	capture *fakeCapture
	trans   *fakeTranscriber
	pub     *fakePublisher
	notes   *fakeNotifier
	status  *statusRecorder
	cancel  context.CancelFunc
	done    chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.HealthIntervalSec = 1
	cfg.RequestTimeoutSec = 2

	h := &harness{
		edges:   make(chan hotkey.Edge, 16),
		capture: &fakeCapture{pcm: make([]byte, cfg.MinCaptureBytes*2)},
		trans:   &fakeTranscriber{healthy: true, text: "hello world"},
		pub:     &fakePublisher{},
		notes:   &fakeNotifier{},
		status:  &statusRecorder{},
		done:    make(chan struct{}),
	}

	ctrl := New(cfg, h.edges, h.capture, h.trans, h.pub, h.notes, h.status)
	ctrl.tempDir = t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		ctrl.Run(ctx)
		close(h.done)
	}()
	t.Cleanup(func() {
		cancel()
		h.wait(t)
	})
	return h
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not stop")
	}
}

func TestController_FullSession(t *testing.T) {
	h := newHarness(t)
	h.status.waitFor(t, types.StatusReady)

	h.edges <- hotkey.EdgePressed
	h.status.waitFor(t, types.StatusRecording)

	h.edges <- hotkey.EdgeReleased
	h.status.waitFor(t, types.StatusReady)

	if got := h.pub.published(); len(got) != 1 || got[0] != "hello world" {
		t.Errorf("published = %v, want [hello world]", got)
	}
	if starts, stops := h.capture.counts(); starts != 1 || stops != 1 {
		t.Errorf("capture starts/stops = %d/%d, want 1/1", starts, stops)
	}
	h.trans.mu.Lock()
	sawWAV := h.trans.sawWAV
	h.trans.mu.Unlock()
	if !sawWAV {
		t.Error("staging WAV file did not exist during transcription")
	}
}

func TestController_ShortRecordingDiscarded(t *testing.T) {
	h := newHarness(t)
	h.capture.mu.Lock()
	h.capture.pcm = make([]byte, 10)
	h.capture.mu.Unlock()
	h.status.waitFor(t, types.StatusReady)

	h.edges <- hotkey.EdgePressed
	h.status.waitFor(t, types.StatusRecording)
	h.edges <- hotkey.EdgeReleased
	h.status.waitFor(t, types.StatusReady)

	if n := h.trans.callCount(); n != 0 {
		t.Errorf("transcriber called %d times, want 0", n)
	}
	if got := h.pub.published(); len(got) != 0 {
		t.Errorf("published = %v, want none", got)
	}
}

func TestController_PressWhileProcessingIgnored(t *testing.T) {
	h := newHarness(t)
	h.trans.mu.Lock()
	h.trans.delay = 150 * time.Millisecond
	h.trans.mu.Unlock()
	h.status.waitFor(t, types.StatusReady)

	h.edges <- hotkey.EdgePressed
	h.status.waitFor(t, types.StatusRecording)
	h.edges <- hotkey.EdgeReleased
	h.status.waitFor(t, types.StatusProcessing)

	h.edges <- hotkey.EdgePressed
	h.edges <- hotkey.EdgeReleased
	h.status.waitFor(t, types.StatusReady)

	if starts, _ := h.capture.counts(); starts != 1 {
		t.Errorf("capture started %d times, want 1", starts)
	}
	if n := h.trans.callCount(); n != 1 {
		t.Errorf("transcriber called %d times, want 1", n)
	}
}

func TestController_StartFailureRevertsToReady(t *testing.T) {
	h := newHarness(t)
	h.capture.mu.Lock()
	h.capture.startErr = errors.New("device busy")
	h.capture.mu.Unlock()
	h.status.waitFor(t, types.StatusReady)

	h.edges <- hotkey.EdgePressed
	time.Sleep(50 * time.Millisecond)

	if got := h.status.last(); got != types.StatusReady {
		t.Errorf("status = %v, want Ready", got)
	}
	if h.notes.errorCount() == 0 {
		t.Error("expected an error notification")
	}

	// A stray release after the failed start must not panic or transition.
	h.edges <- hotkey.EdgeReleased
	time.Sleep(50 * time.Millisecond)
	if got := h.status.last(); got != types.StatusReady {
		t.Errorf("status after stray release = %v, want Ready", got)
	}
}

func TestController_EmptyTextNotPublished(t *testing.T) {
	h := newHarness(t)
	h.trans.mu.Lock()
	h.trans.text = ""
	h.trans.mu.Unlock()
	h.status.waitFor(t, types.StatusReady)

	h.edges <- hotkey.EdgePressed
	h.status.waitFor(t, types.StatusRecording)
	h.edges <- hotkey.EdgeReleased
	h.status.waitFor(t, types.StatusReady)

	if h.trans.callCount() != 1 {
		t.Error("expected one transcription call")
	}
	if got := h.pub.published(); len(got) != 0 {
		t.Errorf("published = %v, want none", got)
	}
	if h.notes.errorCount() != 0 {
		t.Error("empty text is not an error")
	}
}

func TestController_TranscriptionErrorNotifies(t *testing.T) {
	h := newHarness(t)
	h.trans.mu.Lock()
	h.trans.err = &stt.Error{Kind: stt.KindUnreachable, Message: "connection refused"}
	h.trans.mu.Unlock()
	h.status.waitFor(t, types.StatusReady)

	h.edges <- hotkey.EdgePressed
	h.status.waitFor(t, types.StatusRecording)
	h.edges <- hotkey.EdgeReleased
	h.status.waitFor(t, types.StatusReady)

	if h.notes.errorCount() == 0 {
		t.Error("expected an error notification")
	}
	if got := h.pub.published(); len(got) != 0 {
		t.Errorf("published = %v, want none", got)
	}
}

func TestController_HealthProbeFlipsIdleReady(t *testing.T) {
	cfg := config.Default()
	status := &statusRecorder{}
	c := New(cfg, nil, &fakeCapture{}, &fakeTranscriber{}, &fakePublisher{}, &fakeNotifier{}, status)

	c.applyHealth(false)
	if c.state != types.StatusIdle {
		t.Errorf("state = %v, want Idle while unhealthy", c.state)
	}

	c.applyHealth(true)
	if c.state != types.StatusReady {
		t.Errorf("state = %v, want Ready once healthy", c.state)
	}

	c.applyHealth(false)
	if c.state != types.StatusIdle {
		t.Errorf("state = %v, want Idle after losing the service", c.state)
	}
}

func TestController_SlowHealthProbeDoesNotBlockPress(t *testing.T) {
	cfg := config.Default()
	cfg.HealthIntervalSec = 1
	cfg.RequestTimeoutSec = 2

	gate := make(chan struct{})
	trans := &fakeTranscriber{healthy: true, healthGate: gate, text: "hello world"}
	capture := &fakeCapture{pcm: make([]byte, cfg.MinCaptureBytes*2)}
	pub := &fakePublisher{}
	status := &statusRecorder{}
	edges := make(chan hotkey.Edge, 16)

	c := New(cfg, edges, capture, trans, pub, &fakeNotifier{}, status)
	c.tempDir = t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		select {
		case <-gate:
		default:
			close(gate)
		}
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("controller did not stop")
		}
	})

	// The startup probe is stuck on the gate; a press arriving meanwhile
	// must still start recording immediately.
	edges <- hotkey.EdgePressed
	status.waitFor(t, types.StatusRecording)

	// The probe result is released mid-session; it must be discarded, not
	// repaint Recording back to Ready.
	close(gate)
	time.Sleep(20 * time.Millisecond)
	if got := status.last(); got != types.StatusRecording {
		t.Errorf("status after probe result = %v, want Recording", got)
	}

	edges <- hotkey.EdgeReleased
	status.waitFor(t, types.StatusReady)

	if got := pub.published(); len(got) != 1 || got[0] != "hello world" {
		t.Errorf("published = %v, want [hello world]", got)
	}
}

func TestController_NoProbeDuringSession(t *testing.T) {
	h := newHarness(t)
	h.status.waitFor(t, types.StatusReady)
	before := h.trans.probeCount()

	h.edges <- hotkey.EdgePressed
	h.status.waitFor(t, types.StatusRecording)

	// Hold through at least one health tick.
	time.Sleep(1300 * time.Millisecond)

	if got := h.trans.probeCount(); got != before {
		t.Errorf("probe count rose from %d to %d while recording", before, got)
	}
	if got := h.status.last(); got != types.StatusRecording {
		t.Errorf("status = %v, want Recording", got)
	}
}

func TestController_ShutdownWaitsForInFlight(t *testing.T) {
	h := newHarness(t)
	h.trans.mu.Lock()
	h.trans.delay = 200 * time.Millisecond
	h.trans.mu.Unlock()
	h.status.waitFor(t, types.StatusReady)

	h.edges <- hotkey.EdgePressed
	h.status.waitFor(t, types.StatusRecording)
	h.edges <- hotkey.EdgeReleased
	h.status.waitFor(t, types.StatusProcessing)

	h.cancel()
	h.wait(t)

	if got := h.pub.published(); len(got) != 1 {
		t.Errorf("published = %v, want the in-flight result", got)
	}
}

func TestController_ShutdownDuringRecordingReleasesDevice(t *testing.T) {
	h := newHarness(t)
	h.status.waitFor(t, types.StatusReady)

	h.edges <- hotkey.EdgePressed
	h.status.waitFor(t, types.StatusRecording)

	h.cancel()
	h.wait(t)

	if _, stops := h.capture.counts(); stops != 1 {
		t.Errorf("capture stops = %d, want 1", stops)
	}
	if n := h.trans.callCount(); n != 0 {
		t.Errorf("transcriber called %d times, want 0", n)
	}
}

func TestController_EdgeChannelCloseStops(t *testing.T) {
	h := newHarness(t)
	h.status.waitFor(t, types.StatusReady)

	close(h.edges)
	h.wait(t)
}
