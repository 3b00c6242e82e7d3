package appkafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter defines an interface for writing messages to Kafka.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, messages ...kafka.Message) error
	Close() error
}

// KafkaReader defines an interface for reading messages from Kafka.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConfig holds configuration parameters for Kafka.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Partition    int // only used by the low-level leader writer
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	GroupID      string
	// BatchTimeout bounds how long a lone message waits for a batch to fill.
	BatchTimeout time.Duration
}

func (c *KafkaConfig) defaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = defaultBatchTimeout
	}
}

// Activities are written one per request; kafka-go's own default holds a
// lone message for a second.
const defaultBatchTimeout = 5 * time.Millisecond

// NewKafkaWriter returns a balanced writer for the activity topic. Messages
// with the same key (the acting account) land on the same partition.
func NewKafkaWriter(cfg KafkaConfig) KafkaWriter {
	cfg.defaults()
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
}

// LeaderWriter writes straight to one partition leader over a kafka.Conn.
// The load tools use it to inject events without a balancer.
type LeaderWriter struct {
	conn    *kafka.Conn
	timeout time.Duration
}

func NewLeaderWriter(ctx context.Context, cfg KafkaConfig) (*LeaderWriter, error) {
	cfg.defaults()
	conn, err := kafka.DialLeader(ctx, "tcp", cfg.Brokers[0], cfg.Topic, cfg.Partition)
	if err != nil {
		return nil, err
	}
	return &LeaderWriter{conn: conn, timeout: cfg.WriteTimeout}, nil
}

func (w *LeaderWriter) WriteMessages(_ context.Context, messages ...kafka.Message) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	_, err := w.conn.WriteMessages(messages...)
	return err
}

func (w *LeaderWriter) Close() error {
	return w.conn.Close()
}

// NewKafkaReader creates a consumer group reader.
func NewKafkaReader(cfg KafkaConfig) KafkaReader {
	cfg.defaults()
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        cfg.ReadTimeout,
		CommitInterval: time.Second,
	})
}
