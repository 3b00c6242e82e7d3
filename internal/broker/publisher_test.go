package appkafka

import (
	"context"
	"testing"
	"time"

	"example.com/socialfeed/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRoundTrip(t *testing.T) {
	mk := &MockKafka{Loopback: true}
	p := NewPublisher(mk)

	err := p.Publish(context.Background(), models.Activity{
		Type: models.ActivityPostLiked, ActorID: "u1", PostID: "p1",
	})
	require.NoError(t, err)

	written := mk.Written()
	require.Len(t, written, 1)
	assert.Equal(t, []byte("u1"), written[0].Key)

	msg, err := mk.ReadMessage(context.Background())
	require.NoError(t, err)
	a, err := DecodeActivity(msg)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityPostLiked, a.Type)
	assert.Equal(t, "p1", a.PostID)
	assert.False(t, a.Created.IsZero())
}

func TestEmitSwallowsFailure(t *testing.T) {
	p := NewPublisher(MockKafkaFail{})
	assert.Error(t, p.Publish(context.Background(), models.Activity{Type: models.ActivityPostCreated, ActorID: "u1"}))
	assert.NotPanics(t, func() {
		p.Emit(context.Background(), models.Activity{Type: models.ActivityPostCreated, ActorID: "u1"})
	})

	var nilPub *Publisher
	assert.NotPanics(t, func() { nilPub.Emit(context.Background(), models.Activity{}) })
}

func TestDecodeActivityRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":      "{",
		"missing type":  `{"actor_id":"u1"}`,
		"missing actor": `{"type":"post_liked"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeActivity(kafka.Message{Value: []byte(raw)})
			assert.Error(t, err)
		})
	}
}

func TestEncodeActivityHeaders(t *testing.T) {
	msg, err := EncodeActivity(models.Activity{Type: models.ActivityAccountFollowed, ActorID: "u1", TargetID: "u2"})
	require.NoError(t, err)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, "account_followed", string(msg.Headers[0].Value))

	a, err := DecodeActivity(msg)
	require.NoError(t, err)
	assert.Equal(t, "u2", a.TargetID)
}

func TestNewKafkaWriterFlushesSingleMessagesPromptly(t *testing.T) {
	w, ok := NewKafkaWriter(KafkaConfig{Topic: "activities"}).(*kafka.Writer)
	require.True(t, ok)
	t.Cleanup(func() { _ = w.Close() })

	assert.Equal(t, defaultBatchTimeout, w.BatchTimeout)
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)

	custom, ok := NewKafkaWriter(KafkaConfig{Topic: "activities", BatchTimeout: time.Millisecond}).(*kafka.Writer)
	require.True(t, ok)
	t.Cleanup(func() { _ = custom.Close() })
	assert.Equal(t, time.Millisecond, custom.BatchTimeout)
}
