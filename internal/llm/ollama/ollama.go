// Package ollama implements llm.Provider against a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/HerbHall/faceanalyzer/internal/version"
	"github.com/HerbHall/faceanalyzer/pkg/llm"
)

const (
	DefaultURL   = "http://localhost:11434"
	DefaultModel = "llava"
)

// Config configures the Ollama provider.
type Config struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// Provider calls the Ollama /api/chat endpoint.
type Provider struct {
	client *resty.Client
	model  string
	logger *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

// New creates a Provider for the server at cfg.URL.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", version.UserAgent()).
		SetHeader("Content-Type", "application/json")

	return &Provider{client: client, model: cfg.Model, logger: logger}
}

// Model returns the default model name.
func (p *Provider) Model() string {
	return p.model
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Chat sends a non-streaming chat request.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	o := llm.ApplyOptions(opts...)
	req := chatRequest{
		Model:    p.model,
		Messages: convertMessages(messages),
	}
	if o.Model != "" {
		req.Model = o.Model
	}
	if o.JSONFormat {
		req.Format = "json"
	}
	if o.Temperature != nil || o.MaxTokens > 0 {
		req.Options = &chatOptions{Temperature: o.Temperature, NumPredict: o.MaxTokens}
	}

	var (
		out     chatResponse
		errBody errorResponse
	)
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&errBody).
		Post("/api/chat")
	if err != nil {
		return nil, mapError(err)
	}
	if resp.IsError() {
		msg := errBody.Error
		if msg == "" {
			msg = resp.Status()
		}
		return nil, mapError(&ollamaStatusError{StatusCode: resp.StatusCode(), Message: msg})
	}
	if out.Message.Content == "" && !out.Done {
		return nil, mapError(errors.New("empty response from ollama"))
	}

	p.logger.Debug("ollama chat completed",
		zap.String("model", out.Model),
		zap.Int("prompt_tokens", out.PromptEvalCount),
		zap.Int("completion_tokens", out.EvalCount),
		zap.Duration("took", resp.Time()),
	)

	return &llm.Response{
		Content:          out.Message.Content,
		Model:            out.Model,
		Done:             out.Done,
		PromptTokens:     out.PromptEvalCount,
		CompletionTokens: out.EvalCount,
	}, nil
}

func convertMessages(messages []llm.Message) []chatMessage {
	out := make([]chatMessage, len(messages))
	for i, m := range messages {
		role := string(m.Role)
		if role == "" {
			role = string(llm.RoleUser)
		}
		out[i] = chatMessage{Role: role, Content: m.Content}
		for _, img := range m.Images {
			out[i].Images = append(out[i].Images, img.Base64())
		}
	}
	return out
}

// String identifies the provider in logs.
func (p *Provider) String() string {
	return fmt.Sprintf("ollama(%s, %s)", p.client.BaseURL, p.model)
}
