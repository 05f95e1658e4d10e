// Package openai implements llm.ChatProvider and llm.Embedder against any
// OpenAI-compatible HTTP API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"labmatch/internal/config"
	"labmatch/internal/errs"
	"labmatch/internal/llm"
)

type Client struct {
	baseURL   string
	apiKey    string
	chatModel string
	embModel  string
	http      *http.Client
	minGap    time.Duration
	lastReq   time.Time
}

// New builds a client from the given configuration. The API key may be
// empty; calls then fail with errs.ErrExternalService rather than at
// construction, so a server without credentials still boots.
func New(cfg config.Config, minGap time.Duration) *Client {
	base := cfg.OpenAIBaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return &Client{
		baseURL:   strings.TrimRight(base, "/"),
		apiKey:    cfg.OpenAIAPIKey,
		chatModel: cfg.ChatModel,
		embModel:  cfg.EmbeddingModel,
		http:      &http.Client{Timeout: 60 * time.Second},
		minGap:    minGap,
	}
}

// Chat implements llm.ChatProvider.
func (c *Client) Chat(ctx context.Context, model string, messages []llm.Message, temperature float32) (string, error) {
	if c.apiKey == "" {
		return "", errs.ExternalServicef("openai api key not configured")
	}
	if model == "" {
		model = c.chatModel
	}
	reqBody := map[string]any{
		"model":       model,
		"messages":    messages,
		"temperature": temperature,
	}
	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.do(req)
	if err != nil {
		return "", errs.ExternalServicef("chat request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(resp.Body)
		return "", errs.ExternalServicef("chat http %d: %s", resp.StatusCode, truncate(string(data), 300))
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errs.ExternalServicef("chat decode: %v", err)
	}
	if len(out.Choices) == 0 {
		return "", errs.ExternalServicef("chat returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Embeddings implements llm.Embedder.
func (c *Client) Embeddings(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, errs.InvalidInputf("no inputs to embed")
	}
	for _, in := range inputs {
		if strings.TrimSpace(in) == "" {
			return nil, errs.InvalidInputf("empty text cannot be embedded")
		}
	}
	if c.apiKey == "" {
		return nil, errs.ExternalServicef("openai api key not configured")
	}
	if model == "" {
		model = c.embModel
	}
	reqBody := map[string]any{
		"model":           model,
		"input":           inputs,
		"encoding_format": "float",
	}
	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.do(req)
	if err != nil {
		return nil, errs.ExternalServicef("embeddings request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(resp.Body)
		return nil, errs.ExternalServicef("embeddings http %d: %s", resp.StatusCode, truncate(string(data), 300))
	}
	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errs.ExternalServicef("embeddings decode: %v", err)
	}
	if len(out.Data) != len(inputs) {
		return nil, errs.ExternalServicef("embeddings returned %d vectors for %d inputs", len(out.Data), len(inputs))
	}
	res := make([][]float32, 0, len(out.Data))
	for _, d := range out.Data {
		res = append(res, d.Embedding)
	}
	return res, nil
}

// do performs the HTTP request with optional min interval and bounded retry
// on 429/5xx.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.minGap > 0 {
		since := time.Since(c.lastReq)
		if since < c.minGap {
			time.Sleep(c.minGap - since)
		}
	}
	var resp *http.Response
	var err error
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			if body, berr := req.GetBody(); berr == nil {
				req.Body = body
			}
		}
		resp, err = c.http.Do(req)
		c.lastReq = time.Now()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode/100 != 5 {
			return resp, nil
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		time.Sleep(backoff + time.Duration(attempt)*100*time.Millisecond)
	}
	if req.GetBody != nil {
		if body, berr := req.GetBody(); berr == nil {
			req.Body = body
		}
	}
	return c.http.Do(req)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
