package appkafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/metrics"
	"example.com/socialfeed/internal/models"
	"github.com/segmentio/kafka-go"
)

var logg = logger.New()

// Publisher emits activity events after a mutation has been committed.
type Publisher struct {
	writer KafkaWriter
}

func NewPublisher(w KafkaWriter) *Publisher {
	return &Publisher{writer: w}
}

// EncodeActivity builds the message for a, keyed by the acting account.
func EncodeActivity(a models.Activity) (kafka.Message, error) {
	if a.Created.IsZero() {
		a.Created = time.Now().UTC()
	}
	data, err := json.Marshal(a)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode activity: %w", err)
	}
	return kafka.Message{
		Key:   []byte(a.ActorID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(a.Type)},
		},
	}, nil
}

// Publish writes a to the activity topic.
func (p *Publisher) Publish(ctx context.Context, a models.Activity) error {
	msg, err := EncodeActivity(a)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.ActivitiesPublished.WithLabelValues(string(a.Type), "error").Inc()
		return fmt.Errorf("publish activity: %w", err)
	}
	metrics.ActivitiesPublished.WithLabelValues(string(a.Type), "ok").Inc()
	return nil
}

// Emit publishes a and only logs a failure: the mutation it describes has
// already been committed and must not be reported as failed.
func (p *Publisher) Emit(ctx context.Context, a models.Activity) {
	if p == nil || p.writer == nil {
		return
	}
	if err := p.Publish(ctx, a); err != nil {
		logg.Error("broker", "Failed to publish "+string(a.Type)+" activity", err)
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// DecodeActivity parses an activity message.
func DecodeActivity(msg kafka.Message) (models.Activity, error) {
	var a models.Activity
	if err := json.Unmarshal(msg.Value, &a); err != nil {
		return models.Activity{}, fmt.Errorf("decode activity: %w", err)
	}
	if a.Type == "" || a.ActorID == "" {
		return models.Activity{}, fmt.Errorf("decode activity: missing type or actor")
	}
	return a, nil
}
