// Package extraction reads merged letter PDFs with Claude and returns
// structured letter fields.
package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"letterarchive/internal/config"
	"letterarchive/internal/domain/models"
	"letterarchive/internal/service/retry"
)

var (
	extractionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "letterarchive_extraction_requests_total",
			Help: "Extraction calls by final outcome.",
		},
		[]string{"outcome"},
	)
	extractionRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "letterarchive_extraction_retries_total",
		Help: "Extraction attempts that failed transiently and were retried.",
	})
)

// DefaultAttemptTimeout bounds a single call to the API.
const DefaultAttemptTimeout = 3 * time.Minute

// messageCreator is the part of the SDK the client uses.
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Options configures the client.
type Options struct {
	APIKey         string
	Model          string
	MaxTokens      int
	TestMode       bool
	AttemptTimeout time.Duration
	Retry          retry.Options
}

// OptionsFromConfig maps server configuration onto client options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.ExtractionModel,
		MaxTokens: cfg.ExtractionMaxTokens,
		TestMode:  cfg.ExtractionTestMode,
		Retry: retry.Options{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialDelay:      cfg.RetryInitialDelay,
			BackoffMultiplier: cfg.RetryMultiplier,
			MaxDelay:          cfg.RetryMaxDelay,
		},
	}
}

// Client implements services.LetterExtractor.
type Client struct {
	messages messageCreator
	opts     Options
	prompt   *Prompt
	logger   *slog.Logger
}

// NewClient creates the extraction client. A missing API key is an error
// unless test mode is on.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	prompt, err := LoadPrompt("letter")
	if err != nil {
		return nil, err
	}

	if opts.TestMode {
		logger.Warn("extraction test mode enabled: letters will NOT be read by the AI service")
		return &Client{opts: opts.withDefaults(), prompt: prompt, logger: logger}, nil
	}

	if opts.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if config.APIKeyLooksPlaceholder(opts.APIKey) {
		logger.Warn("ANTHROPIC_API_KEY looks like a placeholder; extraction calls will fail until it is replaced",
			"key_length", len(opts.APIKey),
		)
	}

	client := anthropic.NewClient(option.WithAPIKey(opts.APIKey))
	return newClient(&client.Messages, opts, prompt, logger), nil
}

func newClient(messages messageCreator, opts Options, prompt *Prompt, logger *slog.Logger) *Client {
	return &Client{
		messages: messages,
		opts:     opts.withDefaults(),
		prompt:   prompt,
		logger:   logger,
	}
}

// ParseLetter sends the PDF to the model and parses its answer, retrying
// transient failures.
func (c *Client) ParseLetter(ctx context.Context, pdf []byte) (*models.ParsedLetter, error) {
	if len(pdf) == 0 {
		return nil, errors.New("extraction: empty document")
	}

	if c.opts.TestMode {
		extractionRequests.WithLabelValues("test_mode").Inc()
		return c.testModeLetter(), nil
	}

	retryOpts := c.opts.Retry
	retryOpts.IsRetryable = retry.IsTransient
	retryOpts.OnRetry = func(attempt int, err error, delay time.Duration) {
		extractionRetries.Inc()
		c.logger.Warn("extraction attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", retryOpts.MaxAttempts,
			"delay", delay.String(),
			"error", err,
		)
	}

	encoded := base64.StdEncoding.EncodeToString(pdf)
	letter, err := retry.Do(ctx, func(ctx context.Context) (*models.ParsedLetter, error) {
		return c.attempt(ctx, encoded)
	}, retryOpts)
	if err != nil {
		extractionRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	extractionRequests.WithLabelValues("success").Inc()
	return letter, nil
}

func (c *Client) attempt(ctx context.Context, encodedPDF string) (*models.ParsedLetter, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.opts.AttemptTimeout)
	defer cancel()

	msg, err := c.messages.New(attemptCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.opts.Model),
		MaxTokens: int64(c.opts.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: c.prompt.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: encodedPDF}),
				anthropic.NewTextBlock(c.prompt.Instruction),
			),
		},
	})
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &retry.TimeoutError{Op: "extraction request", Timeout: c.opts.AttemptTimeout}
		}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &retry.StatusError{Status: apiErr.StatusCode, Err: fmt.Errorf("anthropic API: %w", err)}
		}
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if msg.StopReason == anthropic.StopReasonMaxTokens {
		c.logger.Warn("extraction response hit max tokens", "max_tokens", c.opts.MaxTokens)
	}

	return parseResponse(text.String(), c.prompt)
}

func (c *Client) testModeLetter() *models.ParsedLetter {
	c.logger.Warn("extraction skipped (test mode)")
	return &models.ParsedLetter{
		Date:          c.prompt.FallbackDate,
		Transcription: "[test mode] extraction was skipped; transcribe this letter manually.",
		Tags:          []string{},
	}
}

func (o Options) withDefaults() Options {
	if o.Model == "" {
		o.Model = "claude-sonnet-4-5-20250929"
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 8192
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	return o
}
