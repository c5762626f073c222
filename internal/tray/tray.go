// Package tray renders the session status in the system tray.
package tray

import (
	"github.com/wailsapp/wails/v3/pkg/application"

	"github.com/ryanshannon/speech-to-text/internal/types"
)

// Sink renders statuses on a wails system tray. Set never blocks; when
// updates arrive faster than the tray can draw, only the latest survives.
type Sink struct {
	tray    *application.SystemTray
	icons   map[types.Status][]byte
	updates chan types.Status
	done    chan struct{}
}

func New(systemTray *application.SystemTray) *Sink {
	s := &Sink{
		tray:    systemTray,
		icons:   statusIcons(),
		updates: make(chan types.Status, 1),
		done:    make(chan struct{}),
	}
	s.apply(types.StatusIdle)
	go s.run()
	return s
}

// Set queues a status for rendering. Pending updates are replaced, not
// accumulated.
func (s *Sink) Set(st types.Status) {
	for {
		select {
		case s.updates <- st:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

// Close stops the render goroutine.
func (s *Sink) Close() {
	close(s.done)
}

func (s *Sink) run() {
	for {
		select {
		case st := <-s.updates:
			s.apply(st)
		case <-s.done:
			return
		}
	}
}

func (s *Sink) apply(st types.Status) {
	if icon, ok := s.icons[st]; ok {
		s.tray.SetIcon(icon)
	}
	s.tray.SetLabel(st.String())
}
