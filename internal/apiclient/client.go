// Package apiclient provides an HTTP client for the storyboard daemon API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyboard/internal/daemon"
	"storyboard/internal/docstore"
	"storyboard/internal/document"
	"storyboard/internal/imaging"
	"storyboard/internal/phases"
	"storyboard/internal/prompting"
)

// Client talks to a running storyboard daemon over its HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New builds a client for the daemon listening at address. The address may be
// a bare host:port or a full http URL; token may be empty when the daemon
// runs without authentication.
func New(address, token string, opts ...Option) (*Client, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("daemon api address is required")
	}
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}

	client := &Client{
		baseURL: strings.TrimRight(address, "/"),
		token:   strings.TrimSpace(token),
		// Image batches run inside the request on the daemon side.
		httpClient: &http.Client{Timeout: 30 * time.Minute},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// DocumentState pairs a document payload with its evaluated phase states.
type DocumentState struct {
	Document *document.Document `json:"document"`
	Phases   []phases.State     `json:"phases"`
}

// PromptStageResult is the outcome of a prompt generation batch.
type PromptStageResult struct {
	Result prompting.BulkResult `json:"result"`
	Phases []phases.State       `json:"phases"`
}

// ImageStageResult is the outcome of an image generation batch.
type ImageStageResult struct {
	Result imaging.BulkResult `json:"result"`
	Phases []phases.State     `json:"phases"`
}

// Status reports daemon runtime information.
func (c *Client) Status(ctx context.Context) (daemon.Status, error) {
	var status daemon.Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

// CreateProject registers a new project and returns its empty document.
func (c *Client) CreateProject(ctx context.Context, projectID, title string) (DocumentState, error) {
	payload := map[string]string{"project_id": projectID, "title": title}
	var state DocumentState
	err := c.do(ctx, http.MethodPost, "/api/projects", payload, &state)
	return state, err
}

// GetDocument fetches the live document with its phase states.
func (c *Client) GetDocument(ctx context.Context, projectID string) (DocumentState, error) {
	var state DocumentState
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID+"/document", nil, &state)
	return state, err
}

// PutDocument replaces the live document without cutting a version.
func (c *Client) PutDocument(ctx context.Context, projectID string, raw []byte) (DocumentState, error) {
	var state DocumentState
	err := c.doRaw(ctx, http.MethodPut, "/api/projects/"+projectID+"/document", raw, &state)
	return state, err
}

// Phases fetches the evaluated phase-gate states.
func (c *Client) Phases(ctx context.Context, projectID string) ([]phases.State, error) {
	var payload struct {
		Phases []phases.State `json:"phases"`
	}
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID+"/phases", nil, &payload)
	return payload.Phases, err
}

// GeneratePrompts runs the prompt stage. An empty sceneIDs slice targets
// every scene in the document.
func (c *Client) GeneratePrompts(ctx context.Context, projectID string, sceneIDs []string) (PromptStageResult, error) {
	payload := map[string]any{"scene_ids": sceneIDs}
	var result PromptStageResult
	err := c.do(ctx, http.MethodPost, "/api/projects/"+projectID+"/generate/prompts", payload, &result)
	return result, err
}

// GenerateImages runs the image stage. An empty sceneIDs slice targets every
// scene in the document.
func (c *Client) GenerateImages(ctx context.Context, projectID string, sceneIDs []string) (ImageStageResult, error) {
	payload := map[string]any{"scene_ids": sceneIDs}
	var result ImageStageResult
	err := c.do(ctx, http.MethodPost, "/api/projects/"+projectID+"/generate/images", payload, &result)
	return result, err
}

// SaveVersion cuts an immutable version from the live document.
func (c *Client) SaveVersion(ctx context.Context, projectID, description string) (*document.Version, error) {
	payload := map[string]string{"description": description}
	var result struct {
		Version *document.Version `json:"version"`
	}
	err := c.do(ctx, http.MethodPost, "/api/projects/"+projectID+"/versions", payload, &result)
	return result.Version, err
}

// ListVersions returns version metadata newest first, without snapshots.
func (c *Client) ListVersions(ctx context.Context, projectID string) ([]*document.Version, error) {
	var result struct {
		Versions []*document.Version `json:"versions"`
	}
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID+"/versions", nil, &result)
	return result.Versions, err
}

// GetVersion returns a single version including its snapshot.
func (c *Client) GetVersion(ctx context.Context, projectID string, number int) (*document.Version, error) {
	var result struct {
		Version *document.Version `json:"version"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%s/versions/%d", projectID, number), nil, &result)
	return result.Version, err
}

// RestoreVersion replaces the live document with a snapshot, recording the
// restore as a new version.
func (c *Client) RestoreVersion(ctx context.Context, projectID string, number int) (*document.Version, error) {
	var result struct {
		Version *document.Version `json:"version"`
	}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/projects/%s/versions/%d/restore", projectID, number), nil, &result)
	return result.Version, err
}

// SceneAssets returns the archival history for one scene, newest first.
func (c *Client) SceneAssets(ctx context.Context, projectID, sceneID string) ([]*docstore.AssetRecord, error) {
	var result struct {
		Assets []*docstore.AssetRecord `json:"assets"`
	}
	err := c.do(ctx, http.MethodGet, "/api/projects/"+projectID+"/scenes/"+sceneID+"/assets", nil, &result)
	return result.Assets, err
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = encoded
	}
	return c.doRaw(ctx, method, path, body, out)
}

func (c *Client) doRaw(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(snippet, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
