package tagging

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPOracle calls the embedding service over HTTP. The service owns the
// model lifecycle; this client just ships image bytes and the candidate
// vocabulary and gets back the labels above the similarity threshold.
type HTTPOracle struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOracle(baseURL string) *HTTPOracle {
	return &HTTPOracle{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type classifyRequest struct {
	Image     string   `json:"image"`
	Labels    []string `json:"labels"`
	Threshold float64  `json:"threshold"`
}

type classifyResponse struct {
	Labels []string `json:"labels"`
}

func (o *HTTPOracle) Classify(ctx context.Context, image []byte, vocabulary []string, threshold float64) ([]string, error) {
	const op = "tagging.Classify"

	body, err := json.Marshal(classifyRequest{
		Image:     base64.StdEncoding.EncodeToString(image),
		Labels:    vocabulary,
		Threshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: oracle returned %d: %s", op, resp.StatusCode, msg)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Labels must come from the submitted vocabulary, never fabricated ones.
	return FilterToVocabulary(out.Labels, vocabulary), nil
}
