package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/journalkit/voxlog/internal/journal"
)

func embedServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type datum struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		var data []datum
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[0] = float32(i + 1)
			data = append(data, datum{Index: i, Embedding: vec})
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
}

func TestSetup_LearnsDimensionsFromProbe(t *testing.T) {
	srv := embedServer(t, 8)
	defer srv.Close()

	c, err := Setup(context.Background(), Config{APIBase: srv.URL})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if c.Dimensions() != 8 {
		t.Errorf("Dimensions = %d, want 8", c.Dimensions())
	}
}

func TestEmbed_BatchPreservesOrder(t *testing.T) {
	srv := embedServer(t, 4)
	defer srv.Close()

	c, err := Setup(context.Background(), Config{APIBase: srv.URL, Dimensions: 4})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	vecs, err := c.Embed(context.Background(), []string{"first", "second", "third"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	for i, v := range vecs {
		if v[0] != float32(i+1) {
			t.Errorf("vector %d out of order: marker = %v", i, v[0])
		}
	}
}

func TestEmbed_DimensionMismatchRejected(t *testing.T) {
	srv := embedServer(t, 4)
	defer srv.Close()

	c, err := Setup(context.Background(), Config{APIBase: srv.URL, Dimensions: 16})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	_, err = c.Embed(context.Background(), []string{"text"})
	var embErr *journal.EmbeddingError
	if !errors.As(err, &embErr) {
		t.Errorf("err = %v, want *journal.EmbeddingError for dimension mismatch", err)
	}
}

func TestEmbed_ServiceErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := Setup(context.Background(), Config{APIBase: srv.URL, Dimensions: 4})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	_, err = c.Embed(context.Background(), []string{"text"})
	var embErr *journal.EmbeddingError
	if !errors.As(err, &embErr) {
		t.Errorf("err = %v, want *journal.EmbeddingError", err)
	}
}

func TestSetup_FailsWhenProbeFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := Setup(context.Background(), Config{APIBase: srv.URL}); err == nil {
		t.Error("Setup succeeded against a broken endpoint")
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	srv := embedServer(t, 4)
	defer srv.Close()

	c, err := Setup(context.Background(), Config{APIBase: srv.URL, Dimensions: 4})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	vecs, err := c.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("Embed(nil) = %v, %v; want nil, nil", vecs, err)
	}
}
