// Package gemini provides a client for the Google Gemini API
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/models"
)

const (
	DefaultModel   = "gemini-3-flash-preview"
	DefaultTimeout = 5 * time.Minute
)

// Client implements the LLMClient interface. The API key is resolved from
// the credential provider on every call; the underlying genai client is
// rebuilt only when the key changes.
type Client struct {
	credentials common.CredentialProvider
	model       string
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	logger      arbor.ILogger

	mu        sync.Mutex
	cachedKey string
	cached    *genai.Client
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the default model used when a request names none
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at a different API endpoint
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client handed to genai
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-call timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client
func NewClient(credentials common.CredentialProvider, opts ...ClientOption) *Client {
	c := &Client{
		credentials: credentials,
		model:       DefaultModel,
		timeout:     DefaultTimeout,
		logger:      common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Model returns the default model name
func (c *Client) Model() string {
	return c.model
}

// genaiClient returns a client bound to apiKey, reusing the cached one when
// the key has not changed.
func (c *Client) genaiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.cachedKey == apiKey {
		return c.cached, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if c.cached != nil {
		c.logger.Info().Msg("Gemini credential changed, client rebuilt")
	}
	c.cached = client
	c.cachedKey = apiKey
	return client, nil
}

// CheckCredentials resolves the API key without making a network call.
func (c *Client) CheckCredentials(ctx context.Context) error {
	_, err := c.apiKey(ctx)
	return err
}

func (c *Client) apiKey(ctx context.Context) (string, error) {
	if c.credentials == nil {
		return "", fmt.Errorf("%w: no credential provider configured", models.ErrMissingCredential)
	}
	apiKey, err := c.credentials(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(apiKey) == "" {
		return "", fmt.Errorf("%w: empty Gemini API key", models.ErrMissingCredential)
	}
	return apiKey, nil
}

// Generate runs a single completion. It does not retry; callers classify
// the returned error with Classify.
func (c *Client) Generate(ctx context.Context, req models.CompletionRequest) (*models.Completion, error) {
	apiKey, err := c.apiKey(ctx)
	if err != nil {
		return nil, err
	}

	client, err := c.genaiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	config := &genai.GenerateContentConfig{
		Temperature: req.Temperature,
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.WebSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.JSONResponse {
		config.ResponseMIMEType = "application/json"
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug().
		Str("model", model).
		Bool("web_search", req.WebSearch).
		Int("prompt_len", len(req.Prompt)).
		Msg("Generating content")

	start := time.Now()
	resp, err := client.Models.GenerateContent(callCtx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, models.ErrEmptyResponse
	}

	completion := &models.Completion{
		Text:      text,
		Grounding: groundingChunks(resp),
		Model:     model,
	}

	c.logger.Debug().
		Str("model", model).
		Int("text_len", len(text)).
		Int("grounding_chunks", len(completion.Grounding)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Content generated")

	return completion, nil
}

// groundingChunks flattens the first candidate's web grounding chunks.
// Chunks are returned as-is; deduplication happens downstream.
func groundingChunks(resp *genai.GenerateContentResponse) []models.GroundingChunk {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return nil
	}

	chunks := make([]models.GroundingChunk, 0, len(meta.GroundingChunks))
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			chunks = append(chunks, models.GroundingChunk{})
			continue
		}
		chunks = append(chunks, models.GroundingChunk{
			URI:   chunk.Web.URI,
			Title: chunk.Web.Title,
		})
	}
	return chunks
}
