// Package llm implements the fallback utterance interpreter on top of an
// OpenAI-compatible chat completions API. The client is a total function
// by contract: every failure degrades to an unknown-intent result, it
// never returns an error to the parser.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/axionhq/axion/internal/domain"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	// fallbackConfidence is reported when the model could not interpret
	// the utterance (or the call failed entirely).
	fallbackConfidence = 0.3

	systemPrompt = `You translate user commands for a desktop assistant into structured tool calls.

Known tools: system.time, files.write, files.read, files.delete, files.copy, files.move, files.list, apps.open.

Return ONLY valid JSON in this exact shape:
{"intent": "tool name or unknown", "args": {"key": "value"}, "confidence": 0.0}

Use "unknown" when no tool applies. Never invent tool names.`
)

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a fallback client. Empty model and baseURL fall back
// to defaults.
func NewClient(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = defaultModel
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// parsedIntent is the strict JSON shape the model is instructed to emit.
type parsedIntent struct {
	Intent     string         `json:"intent"`
	Args       map[string]any `json:"args"`
	Confidence float64        `json:"confidence"`
}

// Parse interprets an utterance through the model. It always returns a
// well-formed ParseResult tagged with source "llm".
func (c *Client) Parse(ctx context.Context, utterance string) domain.ParseResult {
	content, err := c.complete(ctx, utterance)
	if err != nil {
		slog.Warn("Fallback interpreter call failed", "error", err)
		return c.unknown(utterance)
	}

	var parsed parsedIntent
	if err := json.Unmarshal([]byte(extractJSON(content)), &parsed); err != nil {
		slog.Warn("Fallback interpreter returned malformed JSON", "error", err)
		return c.unknown(utterance)
	}
	if parsed.Intent == "" {
		return c.unknown(utterance)
	}
	if parsed.Args == nil {
		parsed.Args = map[string]any{}
	}

	return domain.ParseResult{
		Intent:     parsed.Intent,
		Args:       parsed.Args,
		Confidence: clamp(parsed.Confidence),
		Source:     domain.ParseSourceLLM,
	}
}

func (c *Client) complete(ctx context.Context, utterance string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: utterance},
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call completions API: %w", err)
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("API returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) unknown(utterance string) domain.ParseResult {
	return domain.ParseResult{
		Intent:     domain.IntentUnknown,
		Args:       map[string]any{"utterance": utterance},
		Confidence: fallbackConfidence,
		Source:     domain.ParseSourceLLM,
	}
}

// extractJSON strips markdown fences some models wrap around JSON.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	return content
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
