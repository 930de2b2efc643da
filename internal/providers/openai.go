package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o-mini"

	// Transport-level retries for flaky connections. Rate limits are not
	// retried here: they surface as ErrRateLimited so the adaptive gate
	// can react.
	openAITransportRetries = 3
)

// OpenAIConfig holds configuration for the OpenAI generation client.
type OpenAIConfig struct {
	APIKey      string
	Model       string        // default model when requests don't name one
	Temperature float64       // 0 means API default
	Timeout     time.Duration // default per-call timeout
	BaseURL     string        // optional (tests, proxies)
	HTTPClient  *http.Client  // optional (tests)
}

// OpenAIClient implements Generator and Embedder using the official SDK.
type OpenAIClient struct {
	model       string
	temperature float64
	timeout     time.Duration
	client      openai.Client
}

// NewOpenAIClient creates a new OpenAI generation client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 180 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// SDK retries off: retry policy lives in this client and the pipeline.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		client:      openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Generate sends one prompt and returns the response text.
func (c *OpenAIClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}

	start := time.Now()

	var resp *openai.ChatCompletion
	err := retry.Do(
		func() error {
			var callErr error
			resp, callErr = c.client.Chat.Completions.New(callCtx, params)
			return callErr
		},
		retry.Context(callCtx),
		retry.Attempts(openAITransportRetries),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isRetryableTransport),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if isRateLimit(err) {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai generate failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai generate returned no choices")
	}

	return &GenerateResult{
		Text:             resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		Latency:          time.Since(start),
	}, nil
}

// Embed returns the embedding vector for a text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Embeddings.New(callCtx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModelTextEmbedding3Small,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		if isRateLimit(err) {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai embed failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embed returned no data")
	}
	return resp.Data[0].Embedding, nil
}

// isRateLimit reports whether err is an upstream 429.
func isRateLimit(err error) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// isRetryableTransport reports whether the transport layer should retry.
// Rate limits and client errors are not retried here.
func isRetryableTransport(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	// Plain network errors (connection refused, resets) are retryable.
	return true
}
