// Package embedding provides the vector embedding client. A successfully
// set-up *Client doubles as the capability token gating semantic search:
// code paths that need embeddings take it as an explicit dependency
// instead of polling a readiness flag.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/journalkit/voxlog/internal/journal"
)

// Config configures the embedding client.
type Config struct {
	APIKey     string
	APIBase    string // default https://api.openai.com/v1
	Model      string // default text-embedding-3-small
	Dimensions int    // 0: learned from a probe call during Setup
	TimeoutMs  int    // default 30000
	RPM        int    // requests per minute, 0 = unlimited
}

// Client calls an OpenAI-compatible /embeddings endpoint.
type Client struct {
	apiKey  string
	apiBase string
	model   string
	dims    int
	http    *http.Client
	limiter *rate.Limiter
}

// Setup builds the client and verifies it can embed, learning the vector
// dimensionality from a probe call when the config doesn't pin one. The
// returned client is the proof the subsystem is ready.
func Setup(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 30000
	}
	var limiter *rate.Limiter
	if cfg.RPM > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), 1)
	}

	c := &Client{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		model:   cfg.Model,
		dims:    cfg.Dimensions,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		limiter: limiter,
	}

	if c.dims == 0 {
		vecs, err := c.Embed(ctx, []string{"dimension probe"})
		if err != nil {
			return nil, fmt.Errorf("embedding probe: %w", err)
		}
		if len(vecs) == 0 || len(vecs[0]) == 0 {
			return nil, fmt.Errorf("embedding probe returned no vector")
		}
		c.dims = len(vecs[0])
	}

	slog.Info("embedding client ready", "model", c.model, "dimensions", c.dims)
	return c, nil
}

// Dimensions returns the fixed vector length of this deployment.
func (c *Client) Dimensions() int { return c.dims }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns one vector per input text, in input order. Every vector
// must match the deployment's dimensionality; a mismatch is a data
// integrity failure, not something to paper over.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &journal.EmbeddingError{Err: err}
		}
	}

	body, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, &journal.EmbeddingError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, &journal.EmbeddingError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &journal.EmbeddingError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, &journal.EmbeddingError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &journal.EmbeddingError{
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 300)),
		}
	}

	var parsed embedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &journal.EmbeddingError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != nil {
		return nil, &journal.EmbeddingError{Err: fmt.Errorf("api error: %s", parsed.Error.Message)}
	}
	if len(parsed.Data) != len(texts) {
		return nil, &journal.EmbeddingError{
			Err: fmt.Errorf("got %d vectors for %d inputs", len(parsed.Data), len(texts)),
		}
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &journal.EmbeddingError{Err: fmt.Errorf("vector index %d out of range", d.Index)}
		}
		if c.dims > 0 && len(d.Embedding) != c.dims {
			return nil, &journal.EmbeddingError{
				Err: fmt.Errorf("vector has %d dimensions, deployment uses %d", len(d.Embedding), c.dims),
			}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
