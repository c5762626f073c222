package stt

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// tempPrefix marks upload staging files so stale ones can be swept at
// startup after a crash.
const tempPrefix = "RecordTemp_"

// WriteTempWAV encodes a little-endian int16 PCM buffer into a WAV staging
// file in dir and returns its path. The caller removes the file after the
// upload completes.
func WriteTempWAV(dir string, pcm []byte, sampleRate, channels int) (string, error) {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	path := filepath.Join(dir, fmt.Sprintf("%s%s.wav", tempPrefix, id))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create wav file: %w", err)
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("finalize wav: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close wav file: %w", err)
	}
	return path, nil
}

// CleanupTempFiles removes staging files left behind by a previous run.
func CleanupTempFiles(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("read temp dir", "dir", dir, "error", err)
		return
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("remove stale temp file", "path", path, "error", err)
		} else {
			slog.Debug("removed stale temp file", "path", path)
		}
	}
}
