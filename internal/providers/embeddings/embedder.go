// Package embeddings talks to an OpenAI-compatible /v1/embeddings endpoint.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/screenpilot/screenpilot/config"
	"github.com/screenpilot/screenpilot/internal/utils"
)

type Embedder interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Ready reports whether the backend is usable without doing real work.
	Ready() bool
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedData struct {
	Embedding []float32 `json:"embedding"`
}

type embedResponse struct {
	Data []embedData `json:"data"`
}

type httpEmbedder struct {
	cfg *config.Store

	once   sync.Once
	client *http.Client
}

func New(cfg *config.Store) Embedder {
	return &httpEmbedder{cfg: cfg}
}

func (e *httpEmbedder) Ready() bool {
	snap := e.cfg.Snapshot()
	return snap.EmbedEndpoint != "" && snap.EmbedAPIKey != ""
}

// httpClient is built lazily on first use and reused for the process lifetime.
func (e *httpEmbedder) httpClient() *http.Client {
	e.once.Do(func() {
		e.client = &http.Client{Timeout: 60 * time.Second}
	})
	return e.client
}

func (e *httpEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "embeddings.Embed"

	if len(texts) == 0 {
		return nil, nil
	}
	snap := e.cfg.Snapshot()
	if !e.Ready() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "embeddings backend is not configured", nil)
	}

	reqBody, err := json.Marshal(embedRequest{Model: snap.EmbedModel, Input: texts})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, snap.EmbedEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+snap.EmbedAPIKey)

	resp, err := e.httpClient().Do(req)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "embeddings request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("embeddings API %d: %s", resp.StatusCode, string(body))
		return nil, utils.EStatus(utils.CodeUpstream, op, msg, resp.StatusCode, nil)
	}

	var result embedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, utils.E(utils.CodeUpstream, op, "malformed embeddings response", err)
	}
	if len(result.Data) != len(texts) {
		return nil, utils.E(utils.CodeUpstream, op,
			fmt.Sprintf("expected %d vectors, got %d", len(texts), len(result.Data)), nil)
	}

	vectors := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
