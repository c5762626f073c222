// Package types provides shared type definitions for the application.
package types

// Status is the user-visible session status. It has a single writer (the
// session controller) and any number of readers; the most recent write wins.
type Status int

const (
	// StatusIdle means the transcription server is not confirmed reachable.
	StatusIdle Status = iota
	// StatusReady means the server is reachable and no session is active.
	StatusReady
	// StatusRecording means a session is active and audio is being captured.
	StatusRecording
	// StatusProcessing means a captured buffer has been submitted and the
	// controller is waiting for the transcription result.
	StatusProcessing
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusReady:
		return "ready"
	case StatusRecording:
		return "recording"
	case StatusProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// StatusSink receives status transitions and renders them. Implementations
// must not block the caller and must retain only the latest status.
type StatusSink interface {
	Set(Status)
}

// StatusSinkFunc adapts a function to the StatusSink interface.
type StatusSinkFunc func(Status)

// Set calls f(s).
func (f StatusSinkFunc) Set(s Status) { f(s) }
