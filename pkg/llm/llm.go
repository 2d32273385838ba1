// Package llm defines the provider-neutral chat interface used to talk to
// vision-capable inference backends.
package llm

import (
	"context"
	"encoding/base64"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Image is an inline image attached to a user message.
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURI encodes the image as a base64 data URI.
func (i Image) DataURI() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Base64 returns the raw base64 payload without the data URI prefix.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
	Images  []Image
}

// Response is a completed chat answer.
type Response struct {
	Content          string
	Model            string
	Done             bool
	PromptTokens     int
	CompletionTokens int
}

// Provider is a chat-completion backend.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error)
}

// CallOptions are the per-call generation settings.
type CallOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	JSONFormat  bool
}

// CallOption mutates CallOptions.
type CallOption func(*CallOptions)

// ApplyOptions folds opts into a CallOptions value.
func ApplyOptions(opts ...CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithModel overrides the provider's default model for one call.
func WithModel(model string) CallOption {
	return func(o *CallOptions) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CallOption {
	return func(o *CallOptions) { o.Temperature = &t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) CallOption {
	return func(o *CallOptions) { o.MaxTokens = n }
}

// WithJSONFormat asks the backend to constrain output to a JSON object.
func WithJSONFormat() CallOption {
	return func(o *CallOptions) { o.JSONFormat = true }
}
