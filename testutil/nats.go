package testutil

import (
	"context"
	"fmt"
	"sync"
)

// MockConn is an in-memory NATS connection recording published messages.
// Thread-safe for concurrent use from multiple goroutines.
type MockConn struct {
	mu       sync.RWMutex
	messages map[string][][]byte
	closed   bool

	// FailAfter makes Publish fail once a subject holds that many messages.
	// Negative disables the failure.
	FailAfter int
	// FlushErr is returned by FlushWithContext.
	FlushErr error
}

// NewMockConn creates a new mock connection.
func NewMockConn() *MockConn {
	return &MockConn{
		messages:  make(map[string][][]byte),
		FailAfter: -1,
	}
}

// Publish records data on subject.
func (c *MockConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("nats: connection closed")
	}
	if c.FailAfter >= 0 && len(c.messages[subject]) >= c.FailAfter {
		return fmt.Errorf("nats: outbound buffer limit exceeded")
	}
	c.messages[subject] = append(c.messages[subject], append([]byte(nil), data...))
	return nil
}

// FlushWithContext returns FlushErr, or the context error.
func (c *MockConn) FlushWithContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.FlushErr
}

// Messages returns a copy of the messages published to subject.
func (c *MockConn) Messages(subject string) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs := c.messages[subject]
	out := make([][]byte, len(msgs))
	copy(out, msgs)
	return out
}

// Close rejects further publishes.
func (c *MockConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
