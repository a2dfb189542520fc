package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"promptforge/internal/config"
	"promptforge/internal/types"
)

// GrowthClient calls the AI text provider that backs growth-content
// generation. The provider speaks an OpenAI-compatible chat completions API;
// requests are attempted against the primary model first and fall back to the
// cheaper fallback model when the primary is unavailable or rate limited.
type GrowthClient struct {
	base          *BaseClient
	baseURL       string
	apiKey        string
	model         string
	fallbackModel string
	logger        *slog.Logger
	now           func() time.Time
}

// GrowthClientOption is a functional option for configuring a GrowthClient.
type GrowthClientOption func(*GrowthClient)

// WithGrowthClock overrides the clock used for generation timestamps.
func WithGrowthClock(now func() time.Time) GrowthClientOption {
	return func(c *GrowthClient) {
		c.now = now
	}
}

// NewGrowthClient creates a GrowthClient from the growth provider
// configuration. The http client's timeout should come from cfg.Timeout.
func NewGrowthClient(httpClient *http.Client, cfg config.GrowthConfig, logger *slog.Logger, opts ...GrowthClientOption) *GrowthClient {
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"growth-provider",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"PromptForge/1.0",
	)

	c := &GrowthClient{
		base:          base,
		baseURL:       strings.TrimSuffix(cfg.ProviderURL, "/"),
		apiKey:        cfg.APIKey.Unmask(),
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		logger:        logger,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// chatRequest is the provider wire format for a completion request.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the provider wire format for a completion response.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const growthSystemPrompt = "You are a growth coach for an AI prompt-sharing community. " +
	"Produce concise, actionable learning content for the requested topic. " +
	"Structure the answer with a short intro, concrete steps, and one exercise."

// Generate produces growth content for the request. The primary model is
// tried first; if it is unavailable or rate limited, one attempt is made
// against the fallback model before the error is surfaced.
func (c *GrowthClient) Generate(ctx context.Context, req types.GrowthRequest) (*types.GrowthContent, error) {
	content, err := c.generateWith(ctx, c.model, req)
	if err == nil {
		return content, nil
	}

	if c.fallbackModel == "" || c.fallbackModel == c.model || !isUpstreamFailure(err) {
		return nil, err
	}

	c.logger.WarnContext(ctx, "primary growth model failed; trying fallback",
		"model", c.model,
		"fallback_model", c.fallbackModel,
		"error", err,
	)

	content, fbErr := c.generateWith(ctx, c.fallbackModel, req)
	if fbErr != nil {
		// Report the primary failure; the fallback result is secondary.
		return nil, err
	}
	return content, nil
}

// generateWith performs a single completion call against the named model.
func (c *GrowthClient) generateWith(ctx context.Context, model string, req types.GrowthRequest) (*types.GrowthContent, error) {
	userPrompt := fmt.Sprintf("Topic: %s", req.Topic)
	if req.Goal != "" {
		userPrompt += fmt.Sprintf("\nGoal: %s", req.Goal)
	}

	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: growthSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to encode growth provider request",
			err,
		)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to build growth provider request",
			err,
		)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.base.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp, model)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAIProvider,
			"failed to decode growth provider response",
			err,
		)
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAIProvider,
			"growth provider returned an empty completion",
			nil,
		)
	}

	respModel := parsed.Model
	if respModel == "" {
		respModel = model
	}

	return &types.GrowthContent{
		Topic:     req.Topic,
		Content:   parsed.Choices[0].Message.Content,
		Model:     respModel,
		CreatedAt: c.now().UTC(),
	}, nil
}

// handleErrorResponse maps a non-200 provider response to an AppError.
func (c *GrowthClient) handleErrorResponse(resp *http.Response, model string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed chatResponse
	msg := ""
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
		msg = parsed.Error.Message
	}

	return types.NewAppError(
		types.ErrCodeUpstreamAIProvider,
		fmt.Sprintf("growth provider returned %d for model %s: %s", resp.StatusCode, model, msg),
		nil,
	)
}

// isUpstreamFailure reports whether the error indicates provider
// unavailability rather than a caller mistake. Only these trigger the
// fallback model.
func isUpstreamFailure(err error) bool {
	appErr, ok := err.(*types.AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case types.ErrCodeUpstreamAIProvider, types.ErrCodeUpstreamUnavailable, types.ErrCodeUpstreamRateLimited:
		return true
	}
	return false
}
