package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a scripted Provider implementation for tests.
type MockProvider struct {
	mu        sync.Mutex
	responses []string // Rotated through on successive calls
	index     int
	err       error // When set, every call fails with this error
	failFirst int   // Number of leading calls that fail before succeeding

	calls []MockCall // Recorded requests, in order
}

// MockCall records one GenerateContent request.
type MockCall struct {
	Turns             []Turn
	SystemInstruction string
}

// NewMockProvider creates a provider that cycles through the given responses.
func NewMockProvider(responses ...string) *MockProvider {
	return &MockProvider{responses: responses}
}

// NewErrorProvider creates a provider whose every call fails with err.
func NewErrorProvider(err error) *MockProvider {
	return &MockProvider{err: err}
}

// FailFirst makes the first n calls fail before responses start succeeding.
func (m *MockProvider) FailFirst(n int) *MockProvider {
	m.failFirst = n
	return m
}

// Model implements the Provider interface.
func (m *MockProvider) Model() string {
	return "mock"
}

// GenerateContent implements the Provider interface.
func (m *MockProvider) GenerateContent(ctx context.Context, turns []Turn, systemInstruction string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{
		Turns:             append([]Turn(nil), turns...),
		SystemInstruction: systemInstruction,
	})

	if m.err != nil {
		return nil, m.err
	}
	if m.failFirst > 0 {
		m.failFirst--
		return nil, fmt.Errorf("mock provider: temporary failure")
	}
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("mock provider: no responses configured")
	}

	text := m.responses[m.index%len(m.responses)]
	m.index++

	return &Response{Text: text, Model: "mock"}, nil
}

// Calls returns a copy of the recorded requests.
func (m *MockProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how many times GenerateContent was invoked.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
