package mocks

import (
	"context"
	"sync"

	"github.com/mcoot/boardgame-groups/internal/mailer"
)

// MockMailer records sent emails. Err, when set, is returned from every send.
type MockMailer struct {
	mu   sync.Mutex
	sent []mailer.Confirmation
	Err  error
}

// Ensure MockMailer implements Mailer
var _ mailer.Mailer = (*MockMailer)(nil)

// NewMockMailer creates an empty MockMailer
func NewMockMailer() *MockMailer {
	return &MockMailer{}
}

func (m *MockMailer) SendConfirmation(ctx context.Context, msg mailer.Confirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the delivered confirmations
func (m *MockMailer) Sent() []mailer.Confirmation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mailer.Confirmation, len(m.sent))
	copy(out, m.sent)
	return out
}

// Last returns the most recent confirmation, or nil
func (m *MockMailer) Last() *mailer.Confirmation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	c := m.sent[len(m.sent)-1]
	return &c
}
