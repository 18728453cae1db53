package tagging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterToVocabulary(t *testing.T) {
	vocab := []string{"a", "b", "c"}

	tests := []struct {
		name   string
		labels []string
		want   []string
	}{
		{"all known", []string{"b", "a"}, []string{"b", "a"}},
		{"drops fabricated", []string{"a", "zebra", "c"}, []string{"a", "c"}},
		{"empty input", nil, []string{}},
		{"all fabricated", []string{"x", "y"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterToVocabulary(tt.labels, vocab))
		})
	}
}

func TestHTTPOracleClassify(t *testing.T) {
	var gotReq classifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/classify", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		// One fabricated label to prove the client filters.
		_ = json.NewEncoder(w).Encode(classifyResponse{
			Labels: []string{"group photo", "not in vocabulary"},
		})
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL)
	labels, err := oracle.Classify(context.Background(), []byte("img"), Vocabulary, 0.3)
	require.NoError(t, err)

	assert.Equal(t, []string{"group photo"}, labels)
	assert.Equal(t, Vocabulary, gotReq.Labels)
	assert.InDelta(t, 0.3, gotReq.Threshold, 1e-9)
	assert.NotEmpty(t, gotReq.Image)
}

func TestHTTPOracleClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL)
	_, err := oracle.Classify(context.Background(), []byte("img"), Vocabulary, 0.3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestVocabularyHasNoDuplicates(t *testing.T) {
	seen := map[string]bool{}
	for _, v := range Vocabulary {
		assert.False(t, seen[v], "duplicate label %q", v)
		seen[v] = true
	}
}
