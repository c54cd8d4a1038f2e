// Package llm talks to an OpenAI-compatible chat completions endpoint to turn
// document text into typed records and to write the analysis summary.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/docvalidator/internal/apperr"
	"github.com/dharsanguruparan/docvalidator/internal/config"
	"github.com/dharsanguruparan/docvalidator/internal/logging"
)

const serviceName = "llm"

// MaxTextChars bounds the document text sent in a single prompt.
const MaxTextChars = 6000

// Client is safe for concurrent use.
type Client struct {
	cfg        config.LLMConfig
	httpClient *http.Client
	log        *slog.Logger
}

// New builds a Client. A nil logger discards output.
func New(cfg config.LLMConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// complete sends one chat completion and returns the first choice's content.
func (c *Client) complete(ctx context.Context, messages []message, jsonMode bool) (string, error) {
	reqID := uuid.NewString()
	start := time.Now()
	log := c.log.With("req_id", reqID, "correlation_id", logging.CorrelationID(ctx), "model", c.cfg.Model)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages":    messages,
	}
	if jsonMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	raw, err := c.post(ctx, c.cfg.BaseURL+"/chat/completions", body)
	if err != nil {
		log.Error("llm.http.error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", apperr.ExternalService(apperr.CodeLLMService, serviceName, "chat completion request failed", err)
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		log.Error("llm.http.decode_error", "error", err, "raw_bytes", len(raw))
		return "", apperr.ExternalService(apperr.CodeLLMService, serviceName, "decode chat completion", err)
	}
	if len(cc.Choices) == 0 {
		log.Error("llm.http.no_choices", "raw", string(raw))
		return "", apperr.ExternalService(apperr.CodeLLMService, serviceName, "no choices in chat completion", nil)
	}
	log.Debug("llm.http.ok", "elapsed_ms", time.Since(start).Milliseconds())
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("llm.http.response_body_close_error", "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("llm status %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}
	return raw, nil
}

// truncate trims s and cuts it to at most n runes.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
