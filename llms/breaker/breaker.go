// Package breaker guards a language model with a circuit breaker so a failing
// endpoint is not hit on every request.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sevigo/medrag/llms"
	"github.com/sevigo/medrag/schema"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("breaker: model circuit is open")

type options struct {
	name          string
	maxFailures   uint32
	interval      time.Duration
	timeout       time.Duration
	halfOpenCalls uint32
	onStateChange func(name string, from, to gobreaker.State)
	logger        *slog.Logger
}

type Option func(*options)

func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithMaxFailures sets how many consecutive failures open the circuit.
func WithMaxFailures(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFailures = n
		}
	}
}

// WithTimeout sets how long the circuit stays open before a trial call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithStateChangeFunc registers a hook, typically used to export the state
// as a metric.
func WithStateChangeFunc(fn func(name string, from, to gobreaker.State)) Option {
	return func(o *options) {
		o.onStateChange = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Model wraps another llms.Model.
type Model struct {
	next   llms.Model
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

var _ llms.Model = (*Model)(nil)

func New(next llms.Model, opts ...Option) *Model {
	o := options{
		name:          "llm",
		maxFailures:   5,
		interval:      time.Minute,
		timeout:       30 * time.Second,
		halfOpenCalls: 1,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger.With("component", "llm_breaker", "breaker", o.name)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        o.name,
		MaxRequests: o.halfOpenCalls,
		Interval:    o.interval,
		Timeout:     o.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= o.maxFailures
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not a fault of the model.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
			if o.onStateChange != nil {
				o.onStateChange(name, from, to)
			}
		},
	})

	return &Model{next: next, cb: cb, logger: logger}
}

func (m *Model) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	result, err := m.cb.Execute(func() (any, error) {
		return m.next.GenerateContent(ctx, messages, options...)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			m.logger.WarnContext(ctx, "Rejected model call", "state", m.cb.State().String())
			return nil, ErrCircuitOpen
		}
		return nil, err
	}

	resp, ok := result.(*llms.ContentResponse)
	if !ok || resp == nil {
		return nil, llms.ErrEmptyResponse
	}
	return resp, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// State reports the current breaker state.
func (m *Model) State() gobreaker.State {
	return m.cb.State()
}
