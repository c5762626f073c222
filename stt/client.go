// Package stt provides the client for the remote transcription service.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds one transcription request.
	DefaultTimeout = 60 * time.Second
	// DefaultHealthTimeout bounds one health probe.
	DefaultHealthTimeout = 5 * time.Second
)

// ErrorKind classifies a failed transcription attempt.
type ErrorKind int

const (
	// KindTimeout means the request exceeded its deadline.
	KindTimeout ErrorKind = iota
	// KindUnreachable means the server could not be reached at all.
	KindUnreachable
	// KindServerError means the server answered with a 5xx status.
	KindServerError
	// KindOther covers everything else (bad status, malformed response).
	KindOther
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnreachable:
		return "unreachable"
	case KindServerError:
		return "server error"
	default:
		return "other"
	}
}

// Error is a classified transcription failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("transcription %s: %s", e.Kind, e.Message)
}

// Result is a completed transcription.
type Result struct {
	Text                string  `json:"text"`
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
}

// Models describes the model sizes the server can be configured with.
type Models struct {
	Available map[string]string `json:"available_models"`
	Current   string            `json:"current_model"`
}

// Config holds client configuration.
type Config struct {
	BaseURL       string
	Timeout       time.Duration // transcription request, default 60s
	HealthTimeout time.Duration // health probe, default 5s
}

// Client is a stateless client for the transcription server. A Client is
// safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	health  *http.Client
}

// New creates a client for the server at cfg.BaseURL.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout == 0 {
		healthTimeout = DefaultHealthTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		health:  &http.Client{Timeout: healthTimeout},
	}
}

// CheckHealth probes the server liveness endpoint. It is best effort and
// never returns an error to the caller.
func (c *Client) CheckHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.health.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Transcribe uploads the WAV file at wavPath and returns the result. One
// attempt only; retrying is the caller's policy. On failure the returned
// error is an *Error carrying the failure kind.
func (c *Client) Transcribe(ctx context.Context, wavPath, language string) (*Result, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, &Error{Kind: KindOther, Message: fmt.Sprintf("open audio file: %v", err)}
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="audio"; filename="audio.wav"`)
	header.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, &Error{Kind: KindOther, Message: fmt.Sprintf("create form part: %v", err)}
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, &Error{Kind: KindOther, Message: fmt.Sprintf("copy audio data: %v", err)}
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return nil, &Error{Kind: KindOther, Message: fmt.Sprintf("write language field: %v", err)}
		}
	}
	if err := writer.Close(); err != nil {
		return nil, &Error{Kind: KindOther, Message: fmt.Sprintf("close multipart writer: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &body)
	if err != nil {
		return nil, &Error{Kind: KindOther, Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindOther, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		kind := KindOther
		if resp.StatusCode >= http.StatusInternalServerError {
			kind = KindServerError
		}
		return nil, &Error{Kind: kind, Message: serverMessage(resp.StatusCode, respBody)}
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &Error{Kind: KindOther, Message: fmt.Sprintf("parse response: %v", err)}
	}
	return &result, nil
}

// ListModels queries the model sizes the server supports.
func (c *Client) ListModels(ctx context.Context) (*Models, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.health.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list models: status %d", resp.StatusCode)
	}

	var models Models
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("parse models response: %w", err)
	}
	return &models, nil
}

// transportError classifies a failed round trip.
func transportError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "transcription took too long"}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Message: "transcription took too long"}
	}
	return &Error{Kind: KindUnreachable, Message: fmt.Sprintf("cannot reach server: %v", err)}
}

// serverMessage extracts the server's error field, falling back to the
// status code.
func serverMessage(status int, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("server returned status %d", status)
}
