package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/scoring"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/ai/prompt"
)

const (
	maxTokens    = 64
	defaultModel = "gpt-4o-mini"
)

// requestTimeout bounds one completion call.
var requestTimeout = 30 * time.Second

// ErrQuotaExceeded indicates the provider returned a quota/limit error (HTTP 429).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// Client scores blocks through a chat completion model
type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return NewClientWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewClientWithConfig is used for compatible gateways and tests. An HTTP
// client without a timeout gets requestTimeout.
func NewClientWithConfig(cfg openai.ClientConfig, model string) *Client {
	switch hc := cfg.HTTPClient.(type) {
	case nil:
		cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	case *http.Client:
		if hc.Timeout == 0 {
			cfg.HTTPClient = &http.Client{Transport: hc.Transport, Timeout: requestTimeout}
		}
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}
}

type verdict struct {
	Probability *float64 `json:"probability"`
}

// Predict implements scoring.Predictor
func (c *Client) Predict(ctx context.Context, f scoring.Features) (float64, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(f)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return 0, fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return 0, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, errors.New("empty completion")
	}

	var v verdict
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &v); err != nil {
		return 0, fmt.Errorf("decode verdict: %w", err)
	}
	if v.Probability == nil {
		return 0, errors.New("verdict has no probability")
	}
	p := *v.Probability
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("probability %v out of range", p)
	}
	return p, nil
}
