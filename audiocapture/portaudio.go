package audiocapture

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// paStream wraps a PortAudio default input stream. PortAudio is initialized
// per open and terminated on close, so the device is fully released between
// recordings.
type paStream struct {
	st  *portaudio.Stream
	buf []int16
}

func openPortAudio(f Format) (stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	buf := make([]int16, f.ChunkSize*f.Channels)
	st, err := portaudio.OpenDefaultStream(f.Channels, 0, float64(f.SampleRate), f.ChunkSize, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return &paStream{st: st, buf: buf}, nil
}

func (p *paStream) start() error {
	return p.st.Start()
}

// read blocks for one chunk and returns a copy; the underlying buffer is
// reused by PortAudio on the next read.
func (p *paStream) read() ([]int16, error) {
	if err := p.st.Read(); err != nil {
		return nil, err
	}
	out := make([]int16, len(p.buf))
	copy(out, p.buf)
	return out, nil
}

func (p *paStream) stop() error {
	return p.st.Stop()
}

func (p *paStream) close() error {
	err := p.st.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}
