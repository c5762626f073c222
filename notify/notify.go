// Package notify shows desktop notifications for session outcomes.
package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Notifier sends desktop notifications when enabled. The zero value is a
// disabled notifier.
type Notifier struct {
	enabled bool
}

func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled}
}

// Info shows an informational notification. Failures are logged, not
// returned; a missed toast never fails a session.
func (n *Notifier) Info(title, message string) {
	if n == nil || !n.enabled {
		return
	}
	if err := beeep.Notify(title, message, ""); err != nil {
		slog.Debug("show notification", "title", title, "error", err)
	}
}

// Error shows an alert-level notification.
func (n *Notifier) Error(title, message string) {
	if n == nil || !n.enabled {
		return
	}
	if err := beeep.Alert(title, message, ""); err != nil {
		slog.Debug("show alert", "title", title, "error", err)
	}
}
