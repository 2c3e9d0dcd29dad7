package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rcliao/sixmem/internal/model"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
		delta    float64
	}{
		{"identical", Vector{1, 0, 0}, Vector{1, 0, 0}, 1.0, 0.001},
		{"orthogonal", Vector{1, 0, 0}, Vector{0, 1, 0}, 0.0, 0.001},
		{"opposite", Vector{1, 0, 0}, Vector{-1, 0, 0}, -1.0, 0.001},
		{"similar", Vector{1, 1, 0}, Vector{1, 0, 0}, 0.707, 0.01},
		{"empty", Vector{}, Vector{}, 0.0, 0.001},
		{"different lengths", Vector{1, 0}, Vector{1, 0, 0}, 0.0, 0.001},
		{"zero vector", Vector{0, 0, 0}, Vector{1, 0, 0}, 0.0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.delta {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f (±%f)", tt.a, tt.b, got, tt.expected, tt.delta)
			}
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	for _, provider := range []string{"", "none"} {
		e, err := New(Options{Provider: provider})
		if err != nil {
			t.Fatalf("provider %q: %v", provider, err)
		}
		if e != nil {
			t.Errorf("expected nil embedder for provider %q", provider)
		}
	}
}

func TestNew_Unknown(t *testing.T) {
	if _, err := New(Options{Provider: "word2vec"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNew_Providers(t *testing.T) {
	e, err := New(Options{Provider: "ollama", Model: "all-minilm"})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dims() != 384 {
		t.Errorf("expected 384 dims for all-minilm, got %d", e.Dims())
	}

	e, err = New(Options{Provider: "openai", Dims: 256})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dims() != 256 {
		t.Errorf("expected 256 dims, got %d", e.Dims())
	}

	e, err = New(Options{Provider: "hash"})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dims() != 256 {
		t.Errorf("expected default hash dims 256, got %d", e.Dims())
	}
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" || req.Prompt != "hello" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{1, 2, 3}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL+"/", "", 3)
	v, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 3 || v[2] != 3 {
		t.Errorf("unexpected vector %v", v)
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing auth header")
		}
		var req openaiEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Dimensions != 2 {
			t.Errorf("expected dimensions 2, got %d", req.Dimensions)
		}
		w.Write([]byte(`{"data":[{"embedding":[0.5,0.5]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "sk-test", "", 2)
	v, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 2 {
		t.Errorf("expected 2 dims, got %d", len(v))
	}
}

func TestEmbedderProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/embeddings" {
			w.Write([]byte(`{"data":[{"embedding":[1,2,3]}]}`))
			return
		}
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.URL, "", 3).Embed(context.Background(), "x")
	if !errors.Is(err, model.ErrProvider) {
		t.Errorf("expected provider error for 503, got %v", err)
	}

	// Wrong dimensionality is a provider failure, not a silent truncation.
	_, err = NewOpenAIEmbedder(srv.URL, "", "", 2).Embed(context.Background(), "x")
	if !errors.Is(err, model.ErrProvider) {
		t.Errorf("expected provider error for dim mismatch, got %v", err)
	}
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "peanut allergy")
	b, _ := e.Embed(ctx, "severe peanut allergy")
	c, _ := e.Embed(ctx, "quarterly tax filing")
	again, _ := e.Embed(ctx, "peanut allergy")

	if len(a) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(a))
	}
	if CosineSimilarity(a, again) < 0.999 {
		t.Error("expected deterministic output")
	}
	if CosineSimilarity(a, b) <= CosineSimilarity(a, c) {
		t.Errorf("expected related texts to score higher: related=%f unrelated=%f",
			CosineSimilarity(a, b), CosineSimilarity(a, c))
	}
}

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return Vector{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) Dims() int { return 2 }

func TestCached(t *testing.T) {
	inner := &countingEmbedder{}
	c, err := NewCached(inner, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	v1, _ := c.Embed(ctx, "hello")
	c.Wait()
	v2, _ := c.Embed(ctx, "hello")

	if inner.calls.Load() != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls.Load())
	}
	if v1[0] != v2[0] {
		t.Errorf("expected same vector, got %v and %v", v1, v2)
	}
	v2[0] = 99
	v3, _ := c.Embed(ctx, "hello")
	if v3[0] == 99 {
		t.Error("cached vector was mutated through a returned slice")
	}
	if c.Dims() != 2 {
		t.Errorf("expected dims 2, got %d", c.Dims())
	}
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	c, err := NewCached(inner, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	c.Embed(context.Background(), "x")
	c.Wait()
	c.Embed(context.Background(), "x")
	if inner.calls.Load() != 2 {
		t.Errorf("expected 2 inner calls, got %d", inner.calls.Load())
	}
}

func TestVectorCodec(t *testing.T) {
	in := Vector{0.25, -1.5, 3}
	blob, err := EncodeVector(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(blob) != 4+3*4 {
		t.Errorf("unexpected blob length %d", len(blob))
	}
	out, err := DecodeVector(blob)
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: want %f, got %f", i, in[i], out[i])
		}
	}

	if blob, _ := EncodeVector(nil); blob != nil {
		t.Error("expected nil blob for empty vector")
	}
	if v, _ := DecodeVector(nil); v != nil {
		t.Error("expected nil vector for empty blob")
	}
	if _, err := DecodeVector(blob[:7]); err == nil {
		t.Error("expected error for truncated blob")
	}
	if _, err := EncodeVector(Vector{float32(math.NaN())}); err == nil {
		t.Error("expected error for NaN")
	}
}
