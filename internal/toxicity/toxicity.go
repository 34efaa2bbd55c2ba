// Package toxicity is the boundary to an external toxicity classifier. The
// classifier scores a text across categories in [0,1]; the processor rejects
// messages whose maximum category exceeds its configured threshold.
package toxicity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Scorer scores a text per toxicity category.
type Scorer interface {
	Score(ctx context.Context, text string) (map[string]float64, error)
}

// Max returns the highest scored category. An empty score map returns
// ("", 0).
func Max(scores map[string]float64) (string, float64) {
	var category string
	var best float64
	for c, s := range scores {
		if s > best || category == "" {
			category, best = c, s
		}
	}
	return category, best
}

// HTTPScorer talks to a classifier served over HTTP: POST {"text": ...}
// returning {"scores": {"toxicity": 0.97, ...}}.
type HTTPScorer struct {
	url    string
	client *http.Client
}

func NewHTTPScorer(url string) *HTTPScorer {
	return &HTTPScorer{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type scoreRequest struct {
	Text string `json:"text"`
}

type scoreResponse struct {
	Scores map[string]float64 `json:"scores"`
}

func (s *HTTPScorer) Score(ctx context.Context, text string) (map[string]float64, error) {
	body, err := json.Marshal(scoreRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("encode score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var parsed scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode score response: %w", err)
	}
	return parsed.Scores, nil
}
