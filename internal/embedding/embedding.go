// Package embedding provides the text-to-vector provider boundary used by the
// memory dimensions that store embeddings.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rcliao/sixmem/internal/model"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors. Vectors of
// different lengths score 0.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// --- Ollama Provider ---

// OllamaEmbedder uses a local Ollama instance for embeddings.
type OllamaEmbedder struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaEmbedder creates an embedder using Ollama's API.
// Default model: nomic-embed-text (768 dims), all-minilm (384 dims).
func NewOllamaEmbedder(baseURL, model string, dims int) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if dims == 0 {
		dims = 768
		if model == "all-minilm" {
			dims = 384
		}
	}
	return &OllamaEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	body, _ := json.Marshal(ollamaRequest{Model: e.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Op: "ollama request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &model.ProviderError{Op: "ollama request", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(b))}
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &model.ProviderError{Op: "ollama decode", Err: err}
	}
	return checkDims(result.Embedding, e.dims)
}

func (e *OllamaEmbedder) Dims() int { return e.dims }

// --- OpenAI-compatible Provider ---

// OpenAIEmbedder uses any OpenAI-compatible embedding API.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	dims    int
	client  *http.Client

	// requestDims is sent as "dimensions" when the caller pinned a size.
	requestDims int
}

type openaiEmbedRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewOpenAIEmbedder creates an embedder using an OpenAI-compatible API.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	requestDims := dims
	if dims == 0 {
		dims = 1536
	}
	return &OpenAIEmbedder{
		requestDims: requestDims,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	body, _ := json.Marshal(openaiEmbedRequest{Input: text, Model: e.model, Dimensions: e.requestDims})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Op: "openai request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &model.ProviderError{Op: "openai request", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(b))}
	}

	var result openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &model.ProviderError{Op: "openai decode", Err: err}
	}
	if len(result.Data) == 0 {
		return nil, &model.ProviderError{Op: "openai decode", Err: fmt.Errorf("no embedding returned")}
	}
	return checkDims(result.Data[0].Embedding, e.dims)
}

func (e *OpenAIEmbedder) Dims() int { return e.dims }

// --- Factory ---

// Options selects and configures a provider.
type Options struct {
	Provider string // "ollama" | "openai" | "hash" | "" (disabled)
	Model    string
	URL      string
	APIKey   string
	Dims     int
}

// New creates an embedder from options. A nil Embedder with a nil error means
// embeddings are disabled and every dimension searches lexically.
func New(opts Options) (Embedder, error) {
	switch strings.ToLower(opts.Provider) {
	case "", "none", "disabled":
		return nil, nil
	case "ollama":
		return NewOllamaEmbedder(opts.URL, opts.Model, opts.Dims), nil
	case "openai":
		return NewOpenAIEmbedder(opts.URL, opts.APIKey, opts.Model, opts.Dims), nil
	case "hash":
		return NewHashEmbedder(opts.Dims), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
}

// checkDims rejects provider output that does not match the configured size.
func checkDims(v Vector, dims int) (Vector, error) {
	if len(v) == 0 {
		return nil, &model.ProviderError{Op: "embed", Err: fmt.Errorf("empty embedding")}
	}
	if dims > 0 && len(v) != dims {
		return nil, &model.ProviderError{Op: "embed", Err: fmt.Errorf("got %d dimensions, want %d", len(v), dims)}
	}
	return v, nil
}
