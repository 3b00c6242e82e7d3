package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
	"github.com/segmentio/kafka-go"
)

// runWorkerOnce reads and handles a single Kafka message.
func runWorkerOnce(ctx context.Context, w *Worker) error {
	msg, err := w.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}
	if len(msg.Value) == 0 {
		return nil
	}
	a, err := appkafka.DecodeActivity(msg)
	if err != nil {
		return err
	}
	return w.Handle(ctx, a)
}

func activityMessage(t *testing.T, a models.Activity) kafka.Message {
	t.Helper()
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	return kafka.Message{Key: []byte(a.ActorID), Value: data}
}

func account(t *testing.T, st *store.MockStore, name string) string {
	t.Helper()
	acc, err := st.CreateAccount(context.Background(), models.Account{Name: name, Email: name + "@example.com"})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return acc.ID
}

// ---------- Positive tests ----------

func TestWorker_PostCreatedFansOutToFollowers(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	author := account(t, st, "author")
	followers := []string{account(t, st, "f1"), account(t, st, "f2"), account(t, st, "f3")}
	for _, f := range followers {
		if _, err := st.AddFollow(ctx, f, author); err != nil {
			t.Fatal(err)
		}
	}

	mk := &appkafka.MockKafka{ReadMessages: []kafka.Message{
		activityMessage(t, models.Activity{Type: models.ActivityPostCreated, ActorID: author, PostID: "p1", Created: time.Now()}),
	}}
	w := New(st, mk, 1, 1, 2)

	if err := runWorkerOnce(ctx, w); err != nil {
		t.Fatalf("worker failed: %v", err)
	}
	for _, f := range followers {
		list, _ := st.GetNotifications(ctx, f, 10)
		if len(list) != 1 || list[0].PostID != "p1" || list[0].ActorID != author {
			t.Fatalf("follower %s not notified: %+v", f, list)
		}
	}
	if list, _ := st.GetNotifications(ctx, author, 10); len(list) != 0 {
		t.Fatalf("author notified about own post: %+v", list)
	}
}

func TestWorker_LikeNotifiesAuthorButNotSelf(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	author := account(t, st, "author")
	fan := account(t, st, "fan")
	if err := st.CreatePost(ctx, models.Post{ID: "p1", AuthorID: author, Text: "x", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	mk := &appkafka.MockKafka{ReadMessages: []kafka.Message{
		activityMessage(t, models.Activity{Type: models.ActivityPostLiked, ActorID: fan, PostID: "p1"}),
		activityMessage(t, models.Activity{Type: models.ActivityPostCommented, ActorID: author, PostID: "p1", CommentID: "c1"}),
		activityMessage(t, models.Activity{Type: models.ActivityAccountFollowed, ActorID: fan, TargetID: author}),
	}}
	w := New(st, mk, 1, 1, 1)
	for i := 0; i < 3; i++ {
		if err := runWorkerOnce(ctx, w); err != nil {
			t.Fatalf("worker failed: %v", err)
		}
	}

	list, _ := st.GetNotifications(ctx, author, 10)
	if len(list) != 2 {
		t.Fatalf("expected like and follow notifications, got %+v", list)
	}
	if list[0].Type != models.ActivityAccountFollowed || list[1].Type != models.ActivityPostLiked {
		t.Fatalf("unexpected order or types: %+v", list)
	}
}

func TestWorker_DeletedPostIsDropped(t *testing.T) {
	st := store.NewMock()
	mk := &appkafka.MockKafka{ReadMessages: []kafka.Message{
		activityMessage(t, models.Activity{Type: models.ActivityPostLiked, ActorID: "u1", PostID: "gone"}),
	}}
	if err := runWorkerOnce(context.Background(), New(st, mk, 1, 1, 1)); err != nil {
		t.Fatalf("expected deleted post to be skipped, got: %v", err)
	}
}

// ---------- Negative tests ----------

// Simulate Kafka read error
func TestWorker_KafkaReadError(t *testing.T) {
	w := New(store.NewMock(), appkafka.MockKafkaFail{}, 1, 1, 1)
	if err := runWorkerOnce(context.Background(), w); err == nil {
		t.Fatalf("expected error from Kafka read")
	}
}

func TestWorker_InvalidJSON(t *testing.T) {
	mk := &appkafka.MockKafka{ReadMessages: []kafka.Message{{Value: []byte("{invalid-json}")}}}
	if err := runWorkerOnce(context.Background(), New(store.NewMock(), mk, 1, 1, 1)); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestWorker_UnknownActivity(t *testing.T) {
	mk := &appkafka.MockKafka{ReadMessages: []kafka.Message{
		activityMessage(t, models.Activity{Type: "poked", ActorID: "u1"}),
	}}
	if err := runWorkerOnce(context.Background(), New(store.NewMock(), mk, 1, 1, 1)); err == nil {
		t.Fatalf("expected error for unknown activity type")
	}
}

func TestWorker_EmptyKafkaMessage(t *testing.T) {
	mk := &appkafka.MockKafka{ReadMessages: []kafka.Message{{Value: nil}}}
	if err := runWorkerOnce(context.Background(), New(store.NewMock(), mk, 1, 1, 1)); err != nil {
		t.Fatalf("expected no error for empty Kafka message, got: %v", err)
	}
}

func TestWorker_StoreGetFollowersFail(t *testing.T) {
	mk := &appkafka.MockKafka{ReadMessages: []kafka.Message{
		activityMessage(t, models.Activity{Type: models.ActivityPostCreated, ActorID: "author123", PostID: "p1"}),
	}}
	if err := runWorkerOnce(context.Background(), New(store.MockStoreFail{}, mk, 1, 1, 1)); err == nil {
		t.Fatalf("expected error from store GetFollowers, got nil")
	}
}

func TestBackoffFor(t *testing.T) {
	cases := map[int]time.Duration{
		0:  time.Millisecond,
		3:  8 * time.Millisecond,
		9:  512 * time.Millisecond,
		10: time.Second,
		64: time.Second,
	}
	for retry, want := range cases {
		if got := backoffFor(retry); got != want {
			t.Errorf("backoffFor(%d) = %v, want %v", retry, got, want)
		}
	}
}
