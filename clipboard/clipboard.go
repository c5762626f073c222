// Package clipboard delivers transcribed text to the user, either by
// copying it to the system clipboard or by pasting it into the focused
// application.
package clipboard

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

// Publisher writes transcription results to the clipboard and optionally
// simulates a paste keystroke so the text lands in the focused input.
type Publisher struct {
	copyToClipboard bool
	autoPaste       bool
}

// NewPublisher configures text delivery. When autoPaste is set the
// clipboard is used as a transport and its previous contents are restored
// afterwards; with copyToClipboard the text stays on the clipboard.
func NewPublisher(copyToClipboard, autoPaste bool) *Publisher {
	return &Publisher{copyToClipboard: copyToClipboard, autoPaste: autoPaste}
}

// Publish delivers text according to the configured options. Empty text is
// ignored.
func (p *Publisher) Publish(text string) error {
	if text == "" {
		return nil
	}
	if p.autoPaste {
		return p.pasteText(text)
	}
	if p.copyToClipboard {
		if err := clipboard.WriteAll(text); err != nil {
			return fmt.Errorf("write clipboard: %w", err)
		}
	}
	return nil
}

// pasteText stages text on the clipboard, sends the platform paste
// keystroke, and restores the previous clipboard contents unless the user
// asked to keep the text there.
func (p *Publisher) pasteText(text string) error {
	orig, readErr := clipboard.ReadAll()
	if readErr != nil {
		slog.Debug("read clipboard before paste", "error", readErr)
	}

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	time.Sleep(80 * time.Millisecond)

	if err := sendPasteKeystroke(); err != nil {
		return fmt.Errorf("send paste keystroke: %w", err)
	}
	time.Sleep(120 * time.Millisecond)

	if !p.copyToClipboard && readErr == nil {
		if err := clipboard.WriteAll(orig); err != nil {
			slog.Warn("restore clipboard", "error", err)
		}
	}
	return nil
}

// sendPasteKeystroke emits Cmd+V on macOS and Ctrl+V elsewhere.
func sendPasteKeystroke() error {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return err
	}
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	kb.SetKeys(keybd_event.VK_V)
	return kb.Launching()
}
