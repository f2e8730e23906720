package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"feedpulse/internal/domain"
)

// Config holds Discord adapter configuration.
type Config struct {
	BaseURL        string
	Token          string
	PageSize       int
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Adapter fetches new messages from Discord channels using a bot token.
type Adapter struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	pageSize       int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a new Discord adapter.
func New(cfg Config, logger *slog.Logger) *Adapter {
	return &Adapter{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		token:          cfg.Token,
		pageSize:       cfg.PageSize,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source_type", domain.SourceTypeDiscord),
	}
}

// FetchNew fetches messages from a channel strictly newer than the cursor.
// Discord returns messages newest-first; that ordering is preserved.
// An empty result is not an error.
func (a *Adapter) FetchNew(ctx context.Context, channelID string, after *string) ([]domain.RawItem, error) {
	reqURL := fmt.Sprintf("%s/channels/%s/messages", a.baseURL, url.PathEscape(channelID))

	q := url.Values{}
	q.Set("limit", strconv.Itoa(a.pageSize))
	if after != nil && *after != "" {
		q.Set("after", *after)
	}
	reqURL += "?" + q.Encode()

	var messages []Message
	var err error

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		messages, err = a.doRequest(ctx, reqURL)
		if err == nil {
			return a.transform(messages), nil
		}

		if attempt == a.maxAttempts {
			break
		}

		backoff := a.calculateBackoff(attempt)
		a.logger.Warn("request failed, retrying",
			"channel", channelID,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", a.maxAttempts, err)
}

func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bot "+a.token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var messages []Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return messages, nil
}

func (a *Adapter) calculateBackoff(attempt int) time.Duration {
	backoff := a.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > a.maxBackoff {
		backoff = a.maxBackoff
	}
	return backoff
}

func (a *Adapter) transform(messages []Message) []domain.RawItem {
	items := make([]domain.RawItem, 0, len(messages))

	for _, m := range messages {
		timestamp, err := time.Parse(time.RFC3339, m.Timestamp)
		if err != nil {
			a.logger.Warn("failed to parse timestamp",
				"external_id", m.ID,
				"timestamp", m.Timestamp,
			)
			continue
		}

		items = append(items, domain.RawItem{
			ExternalID: m.ID,
			Content:    m.Content,
			Author:     fmt.Sprintf("%s#%s", m.Author.Username, m.Author.Discriminator),
			Timestamp:  timestamp,
		})
	}

	return items
}
