package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kafadas/kinjo/internal/narrative"
)

func TestGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(generateResponse{
			Response: `{"summary":" A kind week. ","suggestions":["Call Person A"]}`,
		})
	}))
	defer srv.Close()

	p := New(srv.URL, "llama3.2", 0)
	out, err := p.Generate(context.Background(), narrative.Request{
		Computed: json.RawMessage(`{"total":3}`),
		Context:  []string{"Person A cooked dinner"},
	})
	require.NoError(t, err)
	assert.Equal(t, "A kind week.", out.Summary)
	assert.Equal(t, []string{"Call Person A"}, out.Suggestions)

	assert.Equal(t, "llama3.2", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.True(t, strings.Contains(got.Prompt, `{"total":3}`))
	assert.True(t, strings.Contains(got.Prompt, "- Person A cooked dinner"))
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "boom", http.StatusInternalServerError) }},
		{"not json", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("nope")) }},
		{"empty summary", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(generateResponse{Response: `{"summary":""}`})
		}},
		{"error field", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(generateResponse{Error: "model not loaded"})
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			_, err := New(srv.URL, "m", 0).Generate(context.Background(), narrative.Request{Computed: json.RawMessage(`{}`)})
			require.Error(t, err)
		})
	}
}

func TestGenerate_DeadlineExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(srv.URL, "m", 0).Generate(ctx, narrative.Request{Computed: json.RawMessage(`{}`)})
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestHealthPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"}]}`))
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, "llama3.2", 0).HealthPing(context.Background()))
	require.Error(t, New(srv.URL, "mistral", 0).HealthPing(context.Background()))
}

func TestNew_NormalisesBaseURL(t *testing.T) {
	p := New("ollama:11434", "m", 10)
	assert.Equal(t, "http://ollama:11434", p.client.BaseURL)
	assert.Equal(t, 10, p.limiter.Burst())
}
