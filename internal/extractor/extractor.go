// Package extractor calls an external structured-output model to turn
// contract text into a validated clause extraction.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const systemPrompt = `You are a legal document analyzer specializing in contract clause extraction.

Analyze the provided contract text and extract the following information:

1. Parties: the contracting parties (party_one, party_two, and any additional parties)
2. Dates: effective date, termination date, and term length (use ISO format YYYY-MM-DD for dates)
3. Clauses: governing law, termination, confidentiality, indemnification,
   limitation of liability, dispute resolution, payment terms, intellectual property
4. Confidence: rate your confidence in the extraction from 0.0 to 1.0
5. Summary: a brief summary of the contract's purpose

If a field cannot be determined from the text, leave it as null.
Extract actual text snippets or paraphrased content, not placeholders.`

// Config holds configuration for the extraction client.
type Config struct {
	APIKey      string
	BaseURL     string // Optional (tests)
	Model       string
	MaxChars    int
	Temperature float64
	MaxRetries  int           // Attempt ceiling for transient API errors
	RetryDelay  time.Duration // Base backoff delay, doubles per attempt
	MaxDelay    time.Duration // Backoff cap
	Timeout     time.Duration // Per-request HTTP timeout
	RateLimit   int           // Requests per minute
	HTTPClient  *http.Client  // Optional (tests)
}

// Client extracts contract clauses via the OpenAI chat completions API.
type Client struct {
	cfg     Config
	client  openai.Client
	limiter *RateLimiter
	schema  map[string]any
	checker *jsonschema.Schema
	logger  *slog.Logger
}

// New creates an extraction client. The underlying HTTP client is constructed
// once here and injected; SDK-level retries are disabled because the retry
// policy lives in Extract.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 200000
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	schemaMap := buildExtractionSchema()
	checker, err := compileSchema(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("failed to compile extraction schema: %w", err)
	}

	return &Client{
		cfg:     cfg,
		client:  openai.NewClient(opts...),
		limiter: NewRateLimiter(cfg.RateLimit),
		schema:  schemaMap,
		checker: checker,
		logger:  logger.With("component", "extractor"),
	}, nil
}

// Model returns the model identifier requests are issued against.
func (c *Client) Model() string { return c.cfg.Model }

// Extract sends the (possibly truncated) text to the model and returns a
// schema-validated Result. Transient API failures (rate limit, connection,
// timeout, upstream 5xx) are retried with exponential backoff up to the
// configured attempt ceiling; auth and malformed-request failures fail after
// a single attempt. Response-shape problems are terminal for the attempt and
// are not retried here.
func (c *Client) Extract(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ExtractError{Reason: "empty text provided"}
	}

	truncated := truncateText(text, c.cfg.MaxChars)
	if len(truncated) < len(text) {
		c.logger.Debug("input truncated", "original_chars", len(text), "sent_chars", len(truncated))
	}

	var result *Result
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			res, err := c.call(ctx, truncated)
			if err != nil {
				var apierr *openai.Error
				if errors.As(err, &apierr) && apierr.StatusCode == http.StatusTooManyRequests {
					c.limiter.Record429()
				}
				return err
			}
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.MaxRetries)),
		retry.Delay(c.cfg.RetryDelay),
		retry.MaxDelay(c.cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryableAPIError),
		retry.OnRetry(func(attempt uint, err error) {
			c.logger.Warn("extraction attempt failed, retrying", "attempt", attempt+1, "error", err)
		}),
	)
	if err != nil {
		return nil, c.classify(ctx, err)
	}

	return result, nil
}

// call issues a single structured-output request and validates the response.
func (c *Client) call(ctx context.Context, text string) (*Result, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.cfg.Model),
		Temperature: openai.Float(c.cfg.Temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage("Analyze this contract:\n\n" + text),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "extraction_result",
					Schema: c.schema,
					Strict: openai.Bool(false),
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, &ExtractError{Reason: "empty response"}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, &ExtractError{Reason: "empty response"}
	}

	var doc any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, &ExtractError{Reason: "invalid response", Err: err}
	}

	if err := c.checker.Validate(doc); err != nil {
		return nil, &ExtractError{Reason: "validation failed", Err: err}
	}

	var result Result
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, &ExtractError{Reason: "invalid response", Err: err}
	}

	return &result, nil
}

// classify maps a final error from the retry loop onto the ExtractError
// taxonomy the orchestrator depends on. Cancellation is checked first: a
// loop aborted by the caller's context has not exhausted its attempts, so it
// must not be reported as retry exhaustion.
func (c *Client) classify(ctx context.Context, err error) error {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return ee
	}

	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ExtractError{Reason: "request cancelled", Err: err}
	}

	if isRetryableAPIError(err) {
		return &ExtractError{
			Reason: fmt.Sprintf("API error after %d retries", c.cfg.MaxRetries),
			Err:    err,
		}
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return &ExtractError{Reason: "non-retryable API error", Err: err}
	}

	return &ExtractError{Reason: "unexpected error: " + err.Error(), Err: err}
}

// isRetryableAPIError reports whether an attempt failure is transient.
// Rate limits, upstream server errors, and transport-level failures
// (connection refused, timeouts) are retryable; HTTP 4xx API errors and
// response-shape errors are not.
func isRetryableAPIError(err error) bool {
	var ee *ExtractError
	if errors.As(err, &ee) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == http.StatusTooManyRequests || apierr.StatusCode >= 500
	}

	// Anything else is a transport failure from the HTTP client.
	return true
}

// truncateText cuts text at maxChars, preferring a sentence boundary when one
// falls inside the last 20% of the truncated window. The cut never lands in
// the middle of a multi-byte rune, so the result stays valid UTF-8.
func truncateText(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}

	end := maxChars
	for end > 0 && !utf8.RuneStart(text[end]) {
		end--
	}
	cut := text[:end]
	if idx := strings.LastIndexAny(cut, ".!?"); idx+1 > int(float64(maxChars)*0.8) {
		return cut[:idx+1]
	}
	return cut
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile("extraction.json")
}
