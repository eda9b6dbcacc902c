// Package testing provides mock implementations of pubsub interfaces.
package testing

import (
	"context"
	"sync"
	"time"

	"github.com/syntrixbase/metasync/internal/core/pubsub"
)

// PublishedMessage represents a message that was published.
type PublishedMessage struct {
	Subject string
	Data    []byte
}

// MockPublisher is a mock implementation of pubsub.Publisher.
type MockPublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage
	err      error
	closed   bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records the message.
func (m *MockPublisher) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, PublishedMessage{
		Subject: subject,
		Data:    append([]byte(nil), data...),
	})
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Messages returns all published messages.
func (m *MockPublisher) Messages() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedMessage(nil), m.messages...)
}

// SetError sets an error to return on Publish.
func (m *MockPublisher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// MockConsumer is a channel-backed pubsub.Consumer for tests.
type MockConsumer struct {
	ch chan pubsub.Message
}

// NewMockConsumer creates a MockConsumer with the given buffer size.
func NewMockConsumer(bufSize int) *MockConsumer {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &MockConsumer{ch: make(chan pubsub.Message, bufSize)}
}

// Subscribe returns the consumer's channel.
func (m *MockConsumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	return m.ch, nil
}

// Deliver injects a message as if it arrived from the broker.
func (m *MockConsumer) Deliver(subject string, data []byte) *MockMessage {
	msg := &MockMessage{subject: subject, data: data, at: time.Now()}
	m.ch <- msg
	return msg
}

// CloseStream closes the subscription channel.
func (m *MockConsumer) CloseStream() {
	close(m.ch)
}

// MockMessage records the acknowledgment outcome.
type MockMessage struct {
	subject string
	data    []byte
	at      time.Time

	mu     sync.Mutex
	acked  bool
	naked  bool
	termed bool
}

func (m *MockMessage) Data() []byte    { return m.data }
func (m *MockMessage) Subject() string { return m.subject }

func (m *MockMessage) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = true
	return nil
}

func (m *MockMessage) Nak() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.naked = true
	return nil
}

func (m *MockMessage) Term() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.termed = true
	return nil
}

func (m *MockMessage) Metadata() (pubsub.MessageMetadata, error) {
	return pubsub.MessageMetadata{NumDelivered: 1, Timestamp: m.at, Subject: m.subject}, nil
}

// Acked reports whether Ack was called.
func (m *MockMessage) Acked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked
}

// Termed reports whether Term was called.
func (m *MockMessage) Termed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.termed
}
