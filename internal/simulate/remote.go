package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/baculator/internal/domain/types"
)

// Client posts drink logs to a running server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Evaluate calls POST /evaluate.
func (c *Client) Evaluate(ctx context.Context, req types.EvaluateRequest) (types.EvaluationResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return types.EvaluationResponse{}, fmt.Errorf("failed to marshal request body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return types.EvaluationResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return types.EvaluationResponse{}, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.EvaluationResponse{}, fmt.Errorf("%w: read body: %v", ErrRemote, err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.EvaluationResponse{}, fmt.Errorf("%w: status %d: %s", ErrRemote, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out types.EvaluationResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return types.EvaluationResponse{}, fmt.Errorf("%w: decode: %v", ErrRemote, err)
	}
	return out, nil
}
