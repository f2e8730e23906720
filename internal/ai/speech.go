package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// SpeechConfig holds speech synthesis client configuration.
type SpeechConfig struct {
	BaseURL string
	Token   string
	Model   string
	Voice   string
	Timeout time.Duration
}

// Speech synthesizes audio via an OpenAI-compatible audio/speech endpoint.
// langchaingo exposes no audio surface, so this is a direct HTTP client.
type Speech struct {
	httpClient *http.Client
	baseURL    string
	token      string
	model      string
	voice      string
	logger     *slog.Logger
}

func NewSpeech(cfg SpeechConfig, logger *slog.Logger) *Speech {
	return &Speech{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		model:   cfg.Model,
		voice:   cfg.Voice,
		logger:  logger.With("component", "ai-speech"),
	}
}

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Synthesize returns MP3 audio bytes for the given text.
func (s *Speech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(speechRequest{
		Model: s.model,
		Input: text,
		Voice: s.voice,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	s.logger.Debug("audio synthesized", "bytes", len(audio))

	return audio, nil
}
