package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Request captures the normalized generation input.
type Request struct {
	Prompt          string   `json:"prompt"`
	Stop            []string `json:"stop,omitempty"`
	MaxTokens       int64    `json:"max_tokens,omitempty"`
	Temperature     float64  `json:"temperature,omitempty"`
	PresencePenalty float64  `json:"presence_penalty,omitempty"`
}

// DefaultRequest returns sampling settings tuned for chat personas: short
// replies, fairly creative, mild penalty for repeating topics.
func DefaultRequest(prompt string) Request {
	return Request{
		Prompt:          prompt,
		Stop:            []string{">:", "\n(", "> :", ">"},
		MaxTokens:       250,
		Temperature:     0.865,
		PresencePenalty: 0.23,
	}
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Response is a completed generation.
type Response struct {
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a generator implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Generator produces text for a prompt. Implementations may fail
// transiently; callers decide whether to retry.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the generator implementation.
	Info() Info
}

// Func adapts a plain function to the Generator interface.
type Func func(ctx context.Context, req Request) (Response, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// Info implements Generator.
func (f Func) Info() Info { return Info{Name: "func", Provider: "local"} }

// Text is a convenience returning only the generated text.
func Text(ctx context.Context, g Generator, req Request) (string, error) {
	resp, err := g.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// ErrNoScript is returned by MockGenerator when it has run out of scripted
// responses and no fallback is configured.
var ErrNoScript = errors.New("mock generator: no scripted response left")

// MockGenerator is a lightweight in-memory Generator useful for tests and
// examples. Scripted responses are returned in order; after the script is
// exhausted canned responses keyed by prompt are used, then the fallback.
type MockGenerator struct {
	mu        sync.Mutex
	script    []scripted
	responses map[string]string
	fallback  func(req Request) (string, error)
	requests  []Request
}

type scripted struct {
	text string
	err  error
}

// NewMockGenerator constructs an empty MockGenerator. Without script or
// canned responses it echoes "Mock response to: <prompt>".
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		responses: make(map[string]string),
		fallback: func(req Request) (string, error) {
			return fmt.Sprintf("Mock response to: %s", req.Prompt), nil
		},
	}
}

// Script appends responses returned in order by subsequent calls.
func (m *MockGenerator) Script(texts ...string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range texts {
		m.script = append(m.script, scripted{text: t})
	}
	return m
}

// Fail appends a scripted failure.
func (m *MockGenerator) Fail(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{err: err})
	return m
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockGenerator) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetFallback replaces the response used when nothing else matches. A nil
// fallback makes unmatched calls fail with ErrNoScript.
func (m *MockGenerator) SetFallback(fn func(req Request) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = fn
}

// Generate implements Generator.
func (m *MockGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		next     scripted
		found    bool
		fallback = m.fallback
	)
	if len(m.script) > 0 {
		next, found = m.script[0], true
		m.script = m.script[1:]
	} else if text, ok := m.responses[req.Prompt]; ok {
		next, found = scripted{text: text}, true
	}
	m.mu.Unlock()

	if !found {
		if fallback == nil {
			return Response{}, ErrNoScript
		}
		text, err := fallback(req)
		next = scripted{text: text, err: err}
	}
	if next.err != nil {
		return Response{}, next.err
	}
	return Response{Text: next.text, FinishReason: "stop"}, nil
}

// Calls returns the number of Generate calls.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the received requests.
func (m *MockGenerator) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Info implements Generator.
func (m *MockGenerator) Info() Info { return Info{Name: "mock", Provider: "mock"} }
