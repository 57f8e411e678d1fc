package ambiance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ddevcap/storia/config"
)

const (
	elevenLabsTimeout = 30 * time.Second

	// Largest audio body accepted from ElevenLabs.
	maxAudioBytes = 20 << 20
)

// ErrNoAPIKey is returned when ELEVENLABS_API_KEY is not configured.
var ErrNoAPIKey = errors.New("ELEVENLABS_API_KEY is not set in environment variables")

// APIError is a non-2xx answer from ElevenLabs.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("ElevenLabs API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("ElevenLabs API error: %s", e.Detail)
}

// SoundRequest is the body of a sound-generation call.
type SoundRequest struct {
	Text            string  `json:"text"`
	DurationSeconds float64 `json:"duration_seconds"`
	PromptInfluence float64 `json:"prompt_influence"`
}

// ElevenLabs is a minimal client for the sound-generation API.
type ElevenLabs struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

func NewElevenLabs(cfg config.Config) *ElevenLabs {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 4,
	}

	el := &ElevenLabs{
		baseURL: strings.TrimRight(cfg.ElevenLabsURL, "/"),
		apiKey:  cfg.ElevenLabsAPIKey,
		http: &http.Client{
			Transport: transport,
			Timeout:   elevenLabsTimeout,
		},
	}
	if cfg.ElevenLabsRateLimit > 0 {
		burst := cfg.ElevenLabsBurst
		if burst < 1 {
			burst = 1
		}
		el.limiter = rate.NewLimiter(rate.Limit(cfg.ElevenLabsRateLimit), burst)
	}
	return el
}

// HasKey reports whether an API key is configured.
func (el *ElevenLabs) HasKey() bool { return el != nil && el.apiKey != "" }

// KeyInfo returns the key length and a printable prefix ("none" when unset).
func (el *ElevenLabs) KeyInfo() (length int, prefix string) {
	if !el.HasKey() {
		return 0, "none"
	}
	p := el.apiKey
	if len(p) > 5 {
		p = p[:5]
	}
	return len(el.apiKey), p + "..."
}

func (el *ElevenLabs) do(ctx context.Context, method, path, accept string, body any) (*http.Response, error) {
	if el == nil || el.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if el.limiter != nil {
		if err := el.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("elevenlabs: rate limiter: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("elevenlabs: encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, el.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: building request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("xi-api-key", el.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := el.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: no response from %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(resp.Body)}
	}
	return resp, nil
}

// errorDetail extracts "detail" or "message" from an error body, accepting
// both the string and the object form of detail.
func errorDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Detail, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
		return string(body.Detail)
	}
	return body.Message
}

// Generate calls POST /v1/sound-generation and returns the audio bytes.
func (el *ElevenLabs) Generate(ctx context.Context, sr SoundRequest) ([]byte, error) {
	start := time.Now()
	resp, err := el.do(ctx, http.MethodPost, "/v1/sound-generation", "audio/mpeg", sr)
	if err != nil {
		generations.WithLabelValues("elevenlabs", "error").Inc()
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		generations.WithLabelValues("elevenlabs", "error").Inc()
		return nil, fmt.Errorf("elevenlabs: reading audio: %w", err)
	}
	if len(audio) == 0 {
		generations.WithLabelValues("elevenlabs", "error").Inc()
		return nil, errors.New("elevenlabs: empty audio response")
	}
	generations.WithLabelValues("elevenlabs", "ok").Inc()
	generationLatency.Observe(time.Since(start).Seconds())
	return audio, nil
}

// Models lists the available model ids.
func (el *ElevenLabs) Models(ctx context.Context) ([]string, error) {
	resp, err := el.do(ctx, http.MethodGet, "/v1/models", "application/json", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	// The endpoint answers a bare array; older versions wrapped it in
	// {"models": [...]}.
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: reading models: %w", err)
	}
	type model struct {
		ModelID string `json:"model_id"`
	}
	var list []model
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			Models []model `json:"models"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("elevenlabs: decoding models: %w", err)
		}
		list = wrapped.Models
	}

	ids := make([]string, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.ModelID)
	}
	return ids, nil
}

// VoiceCount calls GET /v1/voices, which doubles as an API key check.
func (el *ElevenLabs) VoiceCount(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := el.do(ctx, http.MethodGet, "/v1/voices", "application/json", nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Voices []json.RawMessage `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("elevenlabs: decoding voices: %w", err)
	}
	return len(body.Voices), nil
}
