package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storyboard/internal/config"
)

const (
	defaultHTTPTimeout    = 180 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 2 * time.Second
)

// Config captures the runtime settings required to talk to the image
// provider.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Size           string
	Quality        string
	TimeoutSeconds int
}

// FromAppConfig builds a provider config from the application configuration.
func FromAppConfig(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		APIKey:         cfg.ImageGen.APIKey,
		BaseURL:        cfg.ImageGen.BaseURL,
		Model:          cfg.ImageGen.Model,
		Size:           cfg.ImageGen.Size,
		Quality:        cfg.ImageGen.Quality,
		TimeoutSeconds: cfg.ImageGen.TimeoutSeconds,
	}
}

// Client wraps an OpenAI-style image generation API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBaseDelay overrides the retry backoff base delay.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = delay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs an image generation client using the supplied
// configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			Size:           strings.TrimSpace(cfg.Size),
			Quality:        strings.TrimSpace(cfg.Quality),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.openai.com/v1"
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Model reports the configured model identifier.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.cfg.Model
}

// Generation is one image produced by the provider. The URL is transient
// provider-side storage; callers must archive it before it expires.
type Generation struct {
	URL    string
	Model  string
	Seed   int64
	Width  int
	Height int
}

type generationRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
}

type generationResponse struct {
	Data []struct {
		URL  string `json:"url"`
		Seed int64  `json:"seed"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("imagegen request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Generate produces one image for the prompt, retrying rate limits and
// server errors with linear backoff.
func (c *Client) Generate(ctx context.Context, prompt string) (Generation, error) {
	var empty Generation
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return empty, errors.New("imagegen generate: prompt required")
	}
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return empty, errors.New("imagegen generate: api key required")
	}

	payload := generationRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		N:       1,
		Size:    c.cfg.Size,
		Quality: c.cfg.Quality,
	}

	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		generation, err := c.generateOnce(ctx, payload)
		if err == nil {
			return generation, nil
		}
		lastErr = err
		if !retryableGenerationError(err) || attempt == attempts || ctx.Err() != nil {
			return empty, err
		}
		if err := c.sleep(ctx, c.retryBaseDelay*time.Duration(attempt)); err != nil {
			return empty, err
		}
	}
	return empty, fmt.Errorf("imagegen generate: failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, payload generationRequest) (Generation, error) {
	var empty Generation
	encoded, err := json.Marshal(payload)
	if err != nil {
		return empty, fmt.Errorf("imagegen request: encode body: %w", err)
	}
	endpoint := c.cfg.BaseURL + "/images/generations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("imagegen request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, fmt.Errorf("imagegen request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("imagegen request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var decoded generationResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, fmt.Errorf("imagegen request: decode response: %w", err)
	}
	if decoded.Error != nil {
		return empty, fmt.Errorf("imagegen request: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	if len(decoded.Data) == 0 || strings.TrimSpace(decoded.Data[0].URL) == "" {
		return empty, errors.New("imagegen request: response contained no image url")
	}

	width, height := parseSize(c.cfg.Size)
	return Generation{
		URL:    strings.TrimSpace(decoded.Data[0].URL),
		Model:  c.cfg.Model,
		Seed:   decoded.Data[0].Seed,
		Width:  width,
		Height: height,
	}, nil
}

func retryableGenerationError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	return false
}

func (c *Client) retryAttempts() int {
	if c == nil || c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c != nil && c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseSize(size string) (int, int) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(size)), "x", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	width, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0
	}
	height, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0
	}
	return width, height
}
