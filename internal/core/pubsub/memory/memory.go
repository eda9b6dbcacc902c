// Package memory provides an in-process pubsub implementation for
// single-node deployments and tests, where running NATS is not worth it.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/syntrixbase/metasync/internal/core/pubsub"
)

// Broker routes published messages to subscribed consumers in-process.
type Broker struct {
	mu   sync.Mutex
	subs []*subscription
}

type subscription struct {
	filter string
	ch     chan pubsub.Message
	ctx    context.Context
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{}
}

// Publisher returns a pubsub.Publisher delivering into this broker.
func (b *Broker) Publisher() pubsub.Publisher {
	return &memoryPublisher{broker: b}
}

// Consumer returns a pubsub.Consumer receiving messages whose subject
// starts with filterSubject (empty matches everything).
func (b *Broker) Consumer(filterSubject string, bufSize int) pubsub.Consumer {
	if bufSize <= 0 {
		bufSize = pubsub.DefaultConsumerOptions().ChannelBufSize
	}
	return &memoryConsumer{broker: b, filter: filterSubject, bufSize: bufSize}
}

func (b *Broker) publish(subject string, data []byte) {
	msg := &memoryMessage{subject: subject, data: append([]byte(nil), data...), at: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.filter != "" && !strings.HasPrefix(subject, sub.filter) {
			continue
		}
		select {
		case sub.ch <- msg:
		case <-sub.ctx.Done():
		default:
			// Slow consumer; drop rather than block the publisher.
		}
	}
}

func (b *Broker) subscribe(ctx context.Context, filter string, bufSize int) <-chan pubsub.Message {
	sub := &subscription{filter: filter, ch: make(chan pubsub.Message, bufSize), ctx: ctx}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		for i, s := range b.subs {
			if s == sub {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		close(sub.ch)
	}()

	return sub.ch
}

type memoryPublisher struct {
	broker *Broker
}

func (p *memoryPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.broker.publish(subject, data)
	return nil
}

func (p *memoryPublisher) Close() error {
	return nil
}

type memoryConsumer struct {
	broker  *Broker
	filter  string
	bufSize int
}

func (c *memoryConsumer) Subscribe(ctx context.Context) (<-chan pubsub.Message, error) {
	return c.broker.subscribe(ctx, c.filter, c.bufSize), nil
}

type memoryMessage struct {
	subject string
	data    []byte
	at      time.Time
}

func (m *memoryMessage) Data() []byte    { return m.data }
func (m *memoryMessage) Subject() string { return m.subject }
func (m *memoryMessage) Ack() error      { return nil }
func (m *memoryMessage) Nak() error      { return nil }
func (m *memoryMessage) Term() error     { return nil }

func (m *memoryMessage) Metadata() (pubsub.MessageMetadata, error) {
	return pubsub.MessageMetadata{
		NumDelivered: 1,
		Timestamp:    m.at,
		Subject:      m.subject,
	}, nil
}
