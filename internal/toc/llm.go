package toc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/bookchunk/internal/book"
)

const defaultAnthropicURL = "https://api.anthropic.com/v1/messages"

// Extractor reads chapters out of table of contents page text using the
// Anthropic Messages API.
type Extractor struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

func NewExtractor(apiKey, model string) *Extractor {
	return &Extractor{
		apiKey: apiKey,
		model:  model,
		url:    defaultAnthropicURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// WithURL points the extractor at a different Messages endpoint.
func (e *Extractor) WithURL(url string) *Extractor {
	e.url = url
	return e
}

// Model returns the configured model name.
func (e *Extractor) Model() string {
	return e.model
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Extract asks the model for the chapters listed in pageText. Non-chapter
// entries the model returns anyway are dropped. Chapters come back in the
// model's order; callers sort and Validate.
func (e *Extractor) Extract(ctx context.Context, pageText string) (book.TableOfContents, error) {
	var empty book.TableOfContents
	if strings.TrimSpace(pageText) == "" {
		return empty, fmt.Errorf("no table of contents text")
	}

	reqBody := anthropicRequest{
		Model:     e.model,
		MaxTokens: 4096,
		System:    SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildPrompt(pageText)},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return empty, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return empty, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", e.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return empty, fmt.Errorf("claude api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return empty, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return empty, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return empty, fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return empty, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return empty, fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return empty, fmt.Errorf("empty response from claude")
	}

	text := stripCodeBlock(apiResp.Content[0].Text)

	var toc book.TableOfContents
	if err := json.Unmarshal([]byte(text), &toc); err != nil {
		return empty, fmt.Errorf("parse chapters json: %w (raw: %s)", err, truncate(text, 200))
	}
	return DropNonChapters(toc), nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Close releases resources.
func (e *Extractor) Close() {
	e.httpClient.CloseIdleConnections()
}
