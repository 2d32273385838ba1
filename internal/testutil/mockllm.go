package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/HerbHall/faceanalyzer/pkg/llm"
)

// MockReply is one queued answer from MockProvider.
type MockReply struct {
	Content string
	Err     error
}

// MockCall records one Chat invocation.
type MockCall struct {
	Messages []llm.Message
	Options  llm.CallOptions
}

// MockProvider is an llm.Provider that replays queued replies in order.
type MockProvider struct {
	mu      sync.Mutex
	replies []MockReply
	calls   []MockCall
	model   string
}

var _ llm.Provider = (*MockProvider)(nil)

// NewMockProvider returns a provider that answers with replies in order.
func NewMockProvider(replies ...MockReply) *MockProvider {
	return &MockProvider{replies: replies, model: "mock-model"}
}

// Queue appends more replies.
func (m *MockProvider) Queue(replies ...MockReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
}

func (m *MockProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	o := llm.ApplyOptions(opts...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Messages: messages, Options: o})

	if err := ctx.Err(); err != nil {
		return nil, llm.NewProviderError(llm.ErrCodeTimeout, "request timed out or cancelled", err)
	}
	if len(m.replies) == 0 {
		return nil, llm.NewProviderError(llm.ErrCodeServerError, "mock: no reply queued", errors.New("empty queue"))
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	if reply.Err != nil {
		return nil, reply.Err
	}

	model := m.model
	if o.Model != "" {
		model = o.Model
	}
	return &llm.Response{Content: reply.Content, Model: model, Done: true}, nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}
