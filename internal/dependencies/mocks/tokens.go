package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/lobbyd/internal/dependencies/tokens"
)

// MockTokens is a mock token generator for testing.
// Queued tokens are returned first, then "token-N" counting up.
type MockTokens struct {
	mu     sync.Mutex
	queue  []string
	issued int
}

// Ensure MockTokens implements Generator
var _ tokens.Generator = (*MockTokens)(nil)

// NewMockTokens creates a new MockTokens
func NewMockTokens() *MockTokens {
	return &MockTokens{}
}

// NewToken returns the next queued token or a sequential fallback
func (m *MockTokens) NewToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
	if len(m.queue) > 0 {
		token := m.queue[0]
		m.queue = m.queue[1:]
		return token
	}
	return fmt.Sprintf("token-%d", m.issued)
}

// Queue adds tokens to be returned by subsequent calls
func (m *MockTokens) Queue(values ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, values...)
}

// Issued returns how many tokens have been generated
func (m *MockTokens) Issued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issued
}
