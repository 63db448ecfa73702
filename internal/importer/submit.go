package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// submit.go posts finalized record batches to the ERP backend.
//
// One request carries the whole batch plus the identifying actor field.
// There is no retry or timeout logic here beyond the HTTP client timeout:
// a failed submit is reported once and the session keeps all edits so the
// user can resubmit.

// Backend posts a finished batch to an import endpoint.
type Backend interface {
	SubmitBatch(ctx context.Context, def Definition, records []*Record, actorID string) (*BackendResponse, error)
}

// BackendResponse is the subset of the backend reply the pipeline consumes.
// Only Message is surfaced to the user.
type BackendResponse struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// BackendClient is the HTTP implementation of Backend.
type BackendClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewBackendClient creates a client for the backend REST API.
// apiKey may be empty when the backend does not require one.
func NewBackendClient(baseURL, apiKey string, timeout time.Duration) *BackendClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BackendClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// SubmitBatch issues one POST of `{<entityKey>: records, <actorKey>: id}`
// to the definition's endpoint.
func (c *BackendClient) SubmitBatch(ctx context.Context, def Definition, records []*Record, actorID string) (*BackendResponse, error) {
	rows := make([]map[string]string, len(records))
	for i, rec := range records {
		rows[i] = rec.Fields
	}

	payload := map[string]any{
		def.EntityKey: rows,
		def.ActorKey:  actorID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+def.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit %s batch: %w", def.Key, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}

	var parsed BackendResponse
	// The backend always answers JSON, but a proxy in front of it may
	// not. A decode failure on a 2xx is still a success.
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Message != "" {
			return nil, fmt.Errorf("backend rejected %s batch: %s", def.Key, parsed.Message)
		}
		return nil, fmt.Errorf("backend rejected %s batch: status %d", def.Key, resp.StatusCode)
	}

	return &parsed, nil
}

// SubmitResult summarizes a completed submission.
type SubmitResult struct {
	SessionID string `json:"sessionId"`
	Importer  string `json:"importer"`
	Submitted int    `json:"submitted"`
	// ExcludedRows lists rows withheld from the payload under
	// SkipInvalid. Empty under BlockOnError.
	ExcludedRows []int  `json:"excludedRows,omitempty"`
	Message      string `json:"message,omitempty"`
}
