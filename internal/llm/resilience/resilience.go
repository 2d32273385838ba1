// Package resilience guards an llm.Provider with a circuit breaker so a
// failing backend is not hammered by every incoming analysis.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/HerbHall/faceanalyzer/pkg/llm"
)

// Settings configures the breaker.
type Settings struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a trial request.
	Timeout time.Duration
	// OnStateChange, if set, is called after every transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// Provider is an llm.Provider behind a circuit breaker.
type Provider struct {
	next    llm.Provider
	breaker *gobreaker.CircuitBreaker
}

var _ llm.Provider = (*Provider)(nil)

// Wrap returns next guarded by a circuit breaker.
func Wrap(next llm.Provider, s Settings, logger *zap.Logger) *Provider {
	if s.Name == "" {
		s.Name = "llm"
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	maxFailures := s.MaxFailures
	onChange := s.OnStateChange
	settings := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if onChange != nil {
				onChange(name, from, to)
			}
		},
	}
	return &Provider{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// State reports the current breaker state.
func (p *Provider) State() gobreaker.State {
	return p.breaker.State()
}

func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.next.Chat(ctx, messages, opts...)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, llm.NewProviderError(llm.ErrCodeUnavailable, "inference backend temporarily unavailable", err)
	}
	if err != nil {
		return nil, err
	}
	return out.(*llm.Response), nil
}

// countsAsSuccess keeps caller mistakes and caller cancellations from
// tripping the breaker. Only backend-side failures count.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	code, ok := llm.CodeOf(err)
	if !ok {
		return false
	}
	switch code {
	case llm.ErrCodeInvalidRequest, llm.ErrCodeAuthentication, llm.ErrCodeModelNotFound:
		return true
	}
	return false
}
