package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// HTTPConfig points the adapter at a model-serving endpoint that
// accepts {"text": ...} and answers {"label": ...}.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
}

// HTTP calls a remote model over JSON. Safe for concurrent use.
type HTTP struct {
	url    string
	client *http.Client
}

func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.URL == "" {
		return nil, errors.New("classify: endpoint url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTP{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label string `json:"label"`
}

func (h *HTTP) Classify(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if out.Label == "" {
		return "", fmt.Errorf("%w: empty label", ErrUnavailable)
	}
	return out.Label, nil
}
