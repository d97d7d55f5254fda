package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// OllamaClient calls the Ollama /api/embed endpoint.
type OllamaClient struct {
	url        string
	model      string
	httpClient *http.Client
}

type ollamaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *OllamaClient) Name() string { return "ollama/" + c.model }

// Embed embeds a batch. When Ollama rejects the batch as a bad request,
// each text is retried alone and the ones it still rejects get nil vectors.
func (c *OllamaClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := c.call(ctx, texts)
	if err == nil {
		return vecs, nil
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		return nil, err
	}
	if len(texts) == 1 {
		return [][]float32{nil}, nil
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		one, err := c.call(ctx, []string{t})
		if err != nil {
			if errors.As(err, &se) && se.StatusCode == http.StatusBadRequest {
				continue
			}
			return nil, err
		}
		out[i] = one[0]
	}
	return out, nil
}

func (c *OllamaClient) call(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.url + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP POST %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(result.Embeddings), len(texts))
	}
	return result.Embeddings, nil
}
