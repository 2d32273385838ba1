// Package openai implements llm.Provider on the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"go.uber.org/zap"

	"github.com/HerbHall/faceanalyzer/pkg/llm"
)

// DefaultModel is the vision-capable model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// Config configures the OpenAI provider.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Provider talks to OpenAI through the official SDK.
type Provider struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

// New creates a Provider. extra request options are appended after the
// ones derived from cfg.
func New(cfg Config, logger *zap.Logger, extra ...option.RequestOption) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)

	return &Provider{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Model returns the default model name.
func (p *Provider) Model() string {
	return p.model
}

// Chat sends messages to the chat completions endpoint.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	o := llm.ApplyOptions(opts...)
	model := p.model
	if o.Model != "" {
		model = o.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: convertMessages(messages),
	}
	if o.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.MaxTokens))
	}
	if o.Temperature != nil {
		params.Temperature = openai.Float(*o.Temperature)
	}
	if o.JSONFormat {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		p.logger.Debug("openai chat failed", zap.String("model", model), zap.Error(err))
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewProviderError(llm.ErrCodeServerError, "no completions returned", nil)
	}

	p.logger.Debug("openai chat completed",
		zap.String("model", resp.Model),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("took", time.Since(start)),
	)

	choice := resp.Choices[0]
	return &llm.Response{
		Content:          choice.Message.Content,
		Model:            resp.Model,
		Done:             choice.FinishReason != "length",
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func convertMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			if len(m.Images) == 0 {
				out = append(out, openai.UserMessage(m.Content))
				continue
			}
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Images)+1)
			if m.Content != "" {
				parts = append(parts, openai.TextContentPart(m.Content))
			}
			for _, img := range m.Images {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: img.DataURI(),
				}))
			}
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}

// mapError translates SDK and network errors into typed llm.ProviderError values.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llm.NewProviderError(llm.ErrCodeTimeout, "request timed out or cancelled", err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return llm.NewProviderError(llm.ErrCodeAuthentication, msg, err)
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return llm.NewProviderError(llm.ErrCodeRateLimited, msg, err)
		case apiErr.StatusCode == http.StatusNotFound:
			return llm.NewProviderError(llm.ErrCodeModelNotFound, msg, err)
		case apiErr.StatusCode == http.StatusRequestTimeout:
			return llm.NewProviderError(llm.ErrCodeTimeout, msg, err)
		case apiErr.StatusCode >= 500:
			return llm.NewProviderError(llm.ErrCodeServerError, msg, err)
		case apiErr.StatusCode >= 400:
			return llm.NewProviderError(llm.ErrCodeInvalidRequest, msg, err)
		}
	}

	return llm.NewProviderError(llm.ErrCodeServerError, fmt.Sprintf("openai request failed: %v", err), err)
}
