package queue

import (
	"context"
	"sync"
)

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// MemoryClient keeps sent messages in process. Used in dev and tests.
type MemoryClient struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

// NewMemoryClient returns an empty in-memory queue.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// FailWith makes every subsequent Send return err. Pass nil to recover.
func (m *MemoryClient) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MemoryClient) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the messages accepted so far.
func (m *MemoryClient) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}

var _ Client = (*MemoryClient)(nil)
