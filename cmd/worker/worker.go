package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"example.com/socialfeed/internal/apperr"
	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/metrics"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sourcegraph/conc/pool"
)

var logg = logger.New()

// Worker consumes activity events from Kafka and writes notifications for
// the accounts they concern.
type Worker struct {
	store        store.StoreInterface
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
	fanoutLimit  int
}

// New builds a worker. Non-positive sizes fall back to one worker per CPU, a
// queue of ten messages per worker and a fan-out of 20 writes.
func New(store store.StoreInterface, reader appkafka.KafkaReader, workerCount, jobQueueSize, fanoutLimit int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	if fanoutLimit <= 0 {
		fanoutLimit = 20
	}
	return &Worker{
		store:        store,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
		fanoutLimit:  fanoutLimit,
	}
}

// Run consumes activities until ctx is cancelled, then drains the queue.
func (w *Worker) Run(ctx context.Context) {
	logg.Info("worker", fmt.Sprintf("Consuming activities with %d processors, queue %d, fan-out %d",
		w.workerCount, w.jobQueueSize, w.fanoutLimit))

	jobs := make(chan kafka.Message, w.jobQueueSize)
	var wg sync.WaitGroup
	for range w.workerCount {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}()
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "Activity processors stopped")
}

const maxBackoff = time.Second

// backoffFor doubles from 1ms per consecutive read failure, capped at maxBackoff.
func backoffFor(retry int) time.Duration {
	if retry >= 10 {
		return maxBackoff
	}
	return min(time.Millisecond<<retry, maxBackoff)
}

// readLoop feeds non-empty messages to the processors.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- kafka.Message) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logg.Error("worker", "Failed to read activity, retrying", err)
			if !waitWithContext(ctx, backoffFor(retry)) {
				return
			}
			retry++
			continue
		}
		retry = 0

		if len(msg.Value) == 0 {
			continue
		}

		select {
		case jobs <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// handleTimeout bounds one activity once shutdown has cancelled ctx.
const handleTimeout = 10 * time.Second

// processLoop handles jobs until the queue is closed. Messages already read
// from Kafka are still handled after ctx is cancelled, each under its own
// timeout.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan kafka.Message) {
	for msg := range jobs {
		w.process(ctx, msg)
	}
}

func (w *Worker) process(ctx context.Context, msg kafka.Message) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handleTimeout)
	defer cancel()

	a, err := appkafka.DecodeActivity(msg)
	if err != nil {
		metrics.ActivitiesConsumed.WithLabelValues("unknown", "invalid").Inc()
		logg.Error("worker", "Invalid activity in Kafka message", err)
		return
	}
	if err := w.Handle(hctx, a); err != nil {
		metrics.ActivitiesConsumed.WithLabelValues(string(a.Type), "error").Inc()
		logg.Error("worker", "Failed to handle "+string(a.Type)+" activity", err)
		return
	}
	metrics.ActivitiesConsumed.WithLabelValues(string(a.Type), "ok").Inc()
}

// Handle resolves who should hear about a and writes one notification per
// recipient. Accounts are never notified about their own actions, and
// activities on posts that no longer exist are dropped.
func (w *Worker) Handle(ctx context.Context, a models.Activity) error {
	recipients, err := w.recipients(ctx, a)
	if errors.Is(err, apperr.ErrPostNotFound) {
		logg.Debug("worker", "Dropping activity for a deleted post")
		return nil
	}
	if err != nil {
		return err
	}

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(w.fanoutLimit)
	for _, rcpt := range recipients {
		if rcpt == a.ActorID || rcpt == "" {
			continue
		}
		p.Go(func(ctx context.Context) error {
			return w.notify(ctx, rcpt, a)
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}
	logg.Debug("worker", string(a.Type)+" delivered to "+fmt.Sprint(len(recipients))+" recipients")
	return nil
}

func (w *Worker) recipients(ctx context.Context, a models.Activity) ([]string, error) {
	switch a.Type {
	case models.ActivityPostCreated:
		return w.store.GetFollowers(ctx, a.ActorID)
	case models.ActivityPostLiked, models.ActivityPostCommented:
		post, err := w.store.GetPostRow(ctx, a.PostID)
		if err != nil {
			return nil, err
		}
		return []string{post.AuthorID}, nil
	case models.ActivityAccountFollowed:
		return []string{a.TargetID}, nil
	default:
		return nil, fmt.Errorf("unknown activity type %q", a.Type)
	}
}

func (w *Worker) notify(ctx context.Context, recipientID string, a models.Activity) error {
	created := a.Created
	if created.IsZero() {
		created = time.Now()
	}
	n := models.Notification{
		ID:          uuid.Must(uuid.NewV7()).String(),
		RecipientID: recipientID,
		Type:        a.Type,
		ActorID:     a.ActorID,
		PostID:      a.PostID,
		CommentID:   a.CommentID,
		CreatedAt:   created.UTC().Truncate(time.Millisecond),
	}
	if err := w.store.AddNotification(ctx, n); err != nil {
		return err
	}
	metrics.NotificationsWritten.Inc()
	return nil
}

// waitWithContext reports false if ctx ended before d elapsed.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close releases the activity reader and the store.
func (w *Worker) Close() error {
	err := w.reader.Close()
	if err != nil {
		logg.Error("worker", "Failed to close activity reader", err)
	}
	w.store.Close()
	return err
}
