// Package audiocapture provides microphone capture using PortAudio.
package audiocapture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrDeviceUnavailable is returned when the capture device cannot be opened.
var ErrDeviceUnavailable = errors.New("audiocapture: device unavailable")

// Format describes the capture format: int16 PCM at the given rate.
type Format struct {
	SampleRate int
	Channels   int
	ChunkSize  int // frames per buffer
}

// stream is one open capture stream. The production implementation wraps
// PortAudio; tests inject a fake.
type stream interface {
	start() error
	read() ([]int16, error)
	stop() error
	close() error
}

type streamOpener func(Format) (stream, error)

// Recorder owns the microphone stream and accumulates delivered frames, in
// arrival order, into a single PCM byte buffer.
type Recorder struct {
	format Format
	open   streamOpener

	mu      sync.Mutex
	running bool
	buf     []byte
	stream  stream
	stopCh  chan struct{}
	done    chan struct{}
}

// New creates a recorder for the given format.
func New(format Format) *Recorder {
	return &Recorder{format: format, open: openPortAudio}
}

// Start acquires the device and begins asynchronous frame delivery into the
// buffer. Starting while already running is a no-op, so a spurious duplicate
// press edge can never double-acquire the device. A device that cannot be
// opened yields ErrDeviceUnavailable with no half-open stream left behind.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		slog.Debug("recorder already running, ignoring start")
		return nil
	}

	st, err := r.open(r.format)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := st.start(); err != nil {
		_ = st.close()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	r.running = true
	r.buf = nil
	r.stream = st
	r.stopCh = make(chan struct{})
	r.done = make(chan struct{})
	go r.loop(st, r.stopCh, r.done)
	return nil
}

// Stop halts delivery, releases the device and returns the accumulated
// buffer. It is a no-op returning nil when no capture is active. Once Stop
// returns, no further frame is appended to any buffer.
func (r *Recorder) Stop() []byte {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	done := r.done
	st := r.stream
	r.mu.Unlock()

	<-done
	if err := st.stop(); err != nil {
		slog.Warn("stop capture stream", "error", err)
	}
	if err := st.close(); err != nil {
		slog.Warn("close capture stream", "error", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	buf := r.buf
	r.buf = nil
	r.stream = nil
	return buf
}

func (r *Recorder) loop(st stream, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		frame, err := st.read()
		if err != nil {
			select {
			case <-stopCh:
				return
			default:
			}
			slog.Warn("capture read error", "error", err)
			// Keep a dead device from turning the loop into a hot spin.
			time.Sleep(10 * time.Millisecond)
			continue
		}

		r.mu.Lock()
		if r.running {
			r.buf = append(r.buf, frameBytes(frame)...)
		}
		r.mu.Unlock()
	}
}

// frameBytes converts int16 samples to little-endian PCM bytes.
func frameBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}
