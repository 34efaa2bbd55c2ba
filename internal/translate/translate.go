// Package translate is the boundary to an external translation service. The
// service may live out of process and take seconds per call; callers must
// treat failures as non-fatal and fall back to the original text.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const cacheSize = 512

// Translator translates text into the given target language code.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// HTTPTranslator posts {"q": ..., "target": ...} and expects
// {"translatedText": ...}. The service is not assumed thread-safe, so calls
// are serialized behind a mutex; repeated inputs (chat spam survivors,
// common greetings) are answered from an LRU cache without taking it.
type HTTPTranslator struct {
	url    string
	client *http.Client

	mu    sync.Mutex
	cache *lru.Cache[string, string]
}

func NewHTTPTranslator(url string) (*HTTPTranslator, error) {
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create translation cache: %w", err)
	}
	return &HTTPTranslator{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
		cache:  cache,
	}, nil
}

type translateRequest struct {
	Q      string `json:"q"`
	Target string `json:"target"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

func (t *HTTPTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	key := target + "\x00" + text
	if cached, ok := t.cache.Get(key); ok {
		return cached, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-check: another caller may have filled the cache while we waited.
	if cached, ok := t.cache.Get(key); ok {
		return cached, nil
	}

	body, err := json.Marshal(translateRequest{Q: text, Target: target})
	if err != nil {
		return "", fmt.Errorf("encode translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translator returned status %d", resp.StatusCode)
	}

	var parsed translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	if parsed.TranslatedText == "" {
		return "", fmt.Errorf("translator returned empty text")
	}

	t.cache.Add(key, parsed.TranslatedText)
	return parsed.TranslatedText, nil
}
