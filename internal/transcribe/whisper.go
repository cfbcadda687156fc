// Package transcribe converts voice-note audio to text via an
// OpenAI-compatible audio transcription endpoint.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/journalkit/voxlog/internal/journal"
)

// Config configures the transcription client.
type Config struct {
	APIKey    string
	APIBase   string // default https://api.openai.com/v1
	Model     string // default whisper-1
	Language  string // optional hint, e.g. "en"
	TimeoutMs int    // default 120000: voice notes can run minutes
}

// Client implements journal.Transcriber.
type Client struct {
	apiKey   string
	apiBase  string
	model    string
	language string
	http     *http.Client
}

// New creates a transcription client.
func New(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 120000
	}
	return &Client{
		apiKey:   cfg.APIKey,
		apiBase:  cfg.APIBase,
		model:    cfg.Model,
		language: cfg.Language,
		http:     &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
	}
}

// Transcribe uploads audio bytes and returns the transcript text.
// Failures come back as *journal.TranscriptionError.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", &journal.TranscriptionError{Err: fmt.Errorf("empty audio")}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "voice"+extensionFor(mimeType))
	if err != nil {
		return "", &journal.TranscriptionError{Err: err}
	}
	if _, err := part.Write(audio); err != nil {
		return "", &journal.TranscriptionError{Err: err}
	}
	w.WriteField("model", c.model)
	if c.language != "" {
		w.WriteField("language", c.language)
	}
	if err := w.Close(); err != nil {
		return "", &journal.TranscriptionError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/audio/transcriptions", &buf)
	if err != nil {
		return "", &journal.TranscriptionError{Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &journal.TranscriptionError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &journal.TranscriptionError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &journal.TranscriptionError{
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 300)),
		}
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &journal.TranscriptionError{Err: fmt.Errorf("decode response: %w", err)}
	}
	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return "", &journal.TranscriptionError{Err: fmt.Errorf("empty transcript")}
	}
	return text, nil
}

// extensionFor maps a MIME type to a filename extension the endpoint
// recognizes. Telegram voice notes arrive as audio/ogg (opus).
func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])) {
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/webm":
		return ".webm"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".ogg"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
