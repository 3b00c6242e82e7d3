package appkafka

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"
)

// MockKafka records written messages and serves a queue of messages to read.
// With Loopback set, written messages are appended to the read queue, so a
// publisher and a worker can share one instance in tests.
type MockKafka struct {
	mu              sync.Mutex
	WrittenMessages []kafka.Message
	ReadMessages    []kafka.Message
	Loopback        bool
	ShouldFail      bool
}

func (m *MockKafka) WriteMessages(_ context.Context, messages ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock kafka write failed")
	}
	m.WrittenMessages = append(m.WrittenMessages, messages...)
	if m.Loopback {
		m.ReadMessages = append(m.ReadMessages, messages...)
	}
	return nil
}

// ReadMessage pops the next queued message or reports that none is queued.
func (m *MockKafka) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return kafka.Message{}, errors.New("mock kafka read failed")
	}
	if len(m.ReadMessages) == 0 {
		return kafka.Message{}, errors.New("no messages")
	}
	msg := m.ReadMessages[0]
	m.ReadMessages = m.ReadMessages[1:]
	return msg, nil
}

// Written returns a copy of the messages written so far.
func (m *MockKafka) Written() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.WrittenMessages...)
}

func (m *MockKafka) Close() error { return nil }

// MockKafkaFail always fails.
type MockKafkaFail struct{}

func (MockKafkaFail) WriteMessages(context.Context, ...kafka.Message) error {
	return errors.New("mock kafka write failed")
}

func (MockKafkaFail) ReadMessage(context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("mock kafka read failed")
}

func (MockKafkaFail) Close() error { return nil }
