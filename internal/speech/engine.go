package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Engine is the synthesis model boundary. Implementations are not assumed
// safe for concurrent invocation; the synthesis worker serializes calls
// behind its model lock.
type Engine interface {
	Synthesize(ctx context.Context, text, voice string, accent bool) ([]float64, int, error)
}

// HTTPEngine calls a synthesis model served over HTTP: POST
// {"text": ..., "voice": ..., "accent": ...} returning
// {"samples": [...], "sampleRate": 48000}.
type HTTPEngine struct {
	url    string
	client *http.Client
}

func NewHTTPEngine(url string) *HTTPEngine {
	return &HTTPEngine{
		url: url,
		// Synthesis of a long message can take a while on CPU.
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type synthesizeRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Accent bool   `json:"accent"`
}

type synthesizeResponse struct {
	Samples    []float64 `json:"samples"`
	SampleRate int       `json:"sampleRate"`
	Error      string    `json:"error,omitempty"`
}

func (e *HTTPEngine) Synthesize(ctx context.Context, text, voice string, accent bool) ([]float64, int, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, Voice: voice, Accent: accent})
	if err != nil {
		return nil, 0, fmt.Errorf("encode synthesize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("synthesize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("engine returned status %d", resp.StatusCode)
	}

	var parsed synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("decode synthesize response: %w", err)
	}
	if parsed.Error != "" {
		return nil, 0, fmt.Errorf("engine error: %s", parsed.Error)
	}
	if len(parsed.Samples) == 0 {
		return nil, 0, fmt.Errorf("engine returned empty waveform")
	}
	if parsed.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("engine returned invalid sample rate %d", parsed.SampleRate)
	}
	return parsed.Samples, parsed.SampleRate, nil
}

// MockEngine is a deterministic in-memory engine for tests.
type MockEngine struct {
	mu sync.Mutex

	// Waveform and Rate are returned for every call unless Err is set.
	Waveform []float64
	Rate     int
	Err      error

	calls []string
}

func (m *MockEngine) Synthesize(_ context.Context, text, _ string, _ bool) ([]float64, int, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, 0, m.Err
	}
	out := make([]float64, len(m.Waveform))
	copy(out, m.Waveform)
	return out, m.Rate, nil
}

// Calls returns the texts synthesized so far, in order.
func (m *MockEngine) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
