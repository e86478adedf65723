package fake

import (
	"context"
	"errors"
	"sync"

	"github.com/sevigo/medrag/llms"
	"github.com/sevigo/medrag/schema"
)

// ErrNoResponses is returned when the fake has nothing to answer with.
var ErrNoResponses = errors.New("no responses configured")

// LLM replays scripted responses in a cycle.
type LLM struct {
	mu         sync.Mutex
	responses  []string
	index      int
	lastPrompt string
	prompts    []string
	callCount  int
	err        error
}

var _ llms.Model = (*LLM)(nil)

func NewFakeLLM(responses []string) *LLM {
	return &LLM{
		responses: responses,
	}
}

// GenerateContent returns the next predefined response in the cycle.
func (f *LLM) GenerateContent(
	_ context.Context,
	messages []schema.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.callCount++
	if len(messages) > 0 {
		f.lastPrompt = messages[len(messages)-1].GetTextContent()
		f.prompts = append(f.prompts, f.lastPrompt)
	}

	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, ErrNoResponses
	}

	response := f.responses[f.index]
	f.index = (f.index + 1) % len(f.responses)

	return llms.NewTextResponse(response, "stop", nil), nil
}

// Call generates from a single prompt string.
func (f *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

// SetError makes every subsequent call fail with err until cleared with nil.
func (f *LLM) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Reset resets the response index, call count and recorded prompts.
func (f *LLM) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.callCount = 0
	f.lastPrompt = ""
	f.prompts = nil
}

// AddResponse appends a new response to the list.
func (f *LLM) AddResponse(response string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response)
}

// LastPrompt returns the last prompt sent to the LLM.
func (f *LLM) LastPrompt() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrompt, f.lastPrompt != ""
}

// Prompts returns every prompt received since the last reset.
func (f *LLM) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// GetCallCount returns the number of times the LLM was called.
func (f *LLM) GetCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}
