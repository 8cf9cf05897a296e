package bedrock

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

// Client talks to a Converse-compatible inference endpoint:
// POST {baseURL}/model/{modelId}/converse.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func New(baseURL, apiKey string, options Options) *Client {
	httpClient := options.HTTPClient
	if httpClient == nil {
		// Zero Timeout leaves hung calls to the transport and the caller's context.
		httpClient = &http.Client{Timeout: max(options.Timeout, 0)}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

type converseRequest struct {
	Messages []domain.Message `json:"messages"`
}

// Converse sends a single request and returns the envelope untouched; shape
// validation belongs to the caller.
func (c *Client) Converse(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error) {
	modelID := strings.TrimSpace(req.ModelID)
	if modelID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "bedrock converse", errors.New("model id is required"))
	}

	start := time.Now()
	c.logger.Info("llm.converse.request", "model", modelID, "messages", len(req.Messages))

	var response domain.ModelResponse
	path := "/model/" + url.PathEscape(modelID) + "/converse"
	if err := c.postJSON(ctx, path, converseRequest{Messages: req.Messages}, &response, "converse"); err != nil {
		c.logger.Error("llm.converse.error",
			"model", modelID,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, wrapTemporaryIfNeeded("bedrock converse", err)
	}

	attrs := []any{
		"model", modelID,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"stop_reason", response.StopReason,
	}
	if response.Usage != nil {
		attrs = append(attrs, "input_tokens", response.Usage.InputTokens, "output_tokens", response.Usage.OutputTokens)
	}
	c.logger.Info("llm.converse.response", attrs...)
	return &response, nil
}
