// Package pathstore mirrors chunked books into the pathstore KV service so
// other agents can browse them by path.
package pathstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/bookchunk/internal/book"
)

// Client talks to the pathstore HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	// Concurrency caps in-flight chunk writes during MirrorBook.
	Concurrency int
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Concurrency: 8,
	}
}

// NodeRequest is the body for PUT /kv/{key}.
type NodeRequest struct {
	Value      any     `json:"value"`
	MergeMode  string  `json:"merge_mode,omitempty"`
	MemoryType string  `json:"memory_type,omitempty"`
	Salience   float64 `json:"salience,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// NodeResponse is the response from GET /kv/{key}.
type NodeResponse struct {
	Key   string `json:"key_path"`
	Value any    `json:"value"`
}

// LinkRequest is the body for PUT /links.
type LinkRequest struct {
	From    string  `json:"from_key"`
	To      string  `json:"to_key"`
	Weight  float64 `json:"weight"`
	Summary string  `json:"summary,omitempty"`
}

// StatusError is an unexpected answer from pathstore.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// do sends one request and decodes a JSON answer into out when out is
// non-nil. Any status outside ok is a *StatusError.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any, ok ...int) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal: %w", op, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	accepted := false
	for _, code := range ok {
		if resp.StatusCode == code {
			accepted = true
			break
		}
	}
	if !accepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

// PutNode stores or updates a node at the given path.
func (c *Client) PutNode(ctx context.Context, key string, req NodeRequest) error {
	return c.do(ctx, "put node "+key, http.MethodPut, "/kv/"+key, req, nil, http.StatusOK, http.StatusCreated)
}

// GetNode retrieves a node by key. A missing node is (nil, nil).
func (c *Client) GetNode(ctx context.Context, key string) (*NodeResponse, error) {
	var node NodeResponse
	err := c.do(ctx, "get node "+key, http.MethodGet, "/kv/"+key, nil, &node, http.StatusOK)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// DeleteNode deletes a node and optionally its children.
func (c *Client) DeleteNode(ctx context.Context, key string, recursive bool) error {
	path := "/kv/" + key
	if recursive {
		path += "?children=true"
	}
	return c.do(ctx, "delete node "+key, http.MethodDelete, path, nil, nil, http.StatusOK, http.StatusNoContent)
}

// ListChildren does a prefix scan under the given key.
func (c *Client) ListChildren(ctx context.Context, key string, limit int) ([]NodeResponse, error) {
	path := "/kv/" + key + "/*"
	if limit > 0 {
		path += "?limit=" + url.QueryEscape(strconv.Itoa(limit))
	}
	var result struct {
		Nodes []NodeResponse `json:"nodes"`
	}
	if err := c.do(ctx, "list children "+key, http.MethodGet, path, nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return result.Nodes, nil
}

// PutLink creates or updates an edge between two nodes.
func (c *Client) PutLink(ctx context.Context, req LinkRequest) error {
	return c.do(ctx, "put link", http.MethodPut, "/links", req, nil, http.StatusOK, http.StatusCreated)
}

// BookKey is the pathstore root of a mirrored book.
func BookKey(bookID string) string {
	return "books/" + bookID
}

// Mirror is what MirrorBook publishes for one book.
type Mirror struct {
	BookID  string
	Title   string
	Subject string
	Source  string
	TOC     book.TableOfContents
	Chunks  []book.Chunk
}

// MirrorBook writes the book node, one node per chapter and one node per
// chunk (embeddings are not mirrored), and links every chunk to its
// chapter. Chunks attributed to chapter 0 stay unlinked.
func (c *Client) MirrorBook(ctx context.Context, m Mirror) error {
	root := BookKey(m.BookID)
	err := c.PutNode(ctx, root, NodeRequest{
		Value: map[string]any{
			"title":       m.Title,
			"subject":     m.Subject,
			"source":      m.Source,
			"chapters":    len(m.TOC.Chapters),
			"chunk_count": len(m.Chunks),
		},
		MemoryType: "book",
		Source:     m.Source,
	})
	if err != nil {
		return err
	}

	chapters := make(map[int]bool, len(m.TOC.Chapters))
	for _, ch := range m.TOC.Chapters {
		key := fmt.Sprintf("%s/chapters/%d", root, ch.Number)
		err := c.PutNode(ctx, key, NodeRequest{
			Value:      ch,
			MemoryType: "chapter",
			Source:     m.Source,
		})
		if err != nil {
			return err
		}
		chapters[ch.Number] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}
	for i, chunk := range m.Chunks {
		g.Go(func() error {
			key := fmt.Sprintf("%s/chunks/%d", root, i)
			err := c.PutNode(gctx, key, NodeRequest{
				Value: map[string]any{
					"content":        chunk.Content,
					"page_number":    chunk.PageNumber,
					"chapter_number": chunk.ChapterNumber,
				},
				MemoryType: "chunk",
				Source:     m.Source,
			})
			if err != nil {
				return err
			}
			if !chapters[chunk.ChapterNumber] {
				return nil
			}
			return c.PutLink(gctx, LinkRequest{
				From:   key,
				To:     fmt.Sprintf("%s/chapters/%d", root, chunk.ChapterNumber),
				Weight: 1,
			})
		})
	}
	return g.Wait()
}

// DeleteBook removes a mirrored book and everything under it.
func (c *Client) DeleteBook(ctx context.Context, bookID string) error {
	return c.DeleteNode(ctx, BookKey(bookID), true)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
