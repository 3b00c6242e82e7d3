// kafka_producer floods the activity topic with post_created events to
// measure worker consume throughput without going through the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

func main() {
	var (
		total      int
		batchSize  int
		numWorkers int
		brokers    string
		topic      string
		partition  int
		actors     int
	)
	flag.IntVar(&total, "n", 100000, "total number of activities to send")
	flag.IntVar(&batchSize, "batch", 100, "messages per write")
	flag.IntVar(&numWorkers, "workers", 4, "parallel writers")
	flag.StringVar(&brokers, "brokers", "localhost:9092", "comma-separated broker list")
	flag.StringVar(&topic, "topic", "activity-topic", "activity topic")
	flag.IntVar(&partition, "partition", 0, "partition to write to")
	flag.IntVar(&actors, "actors", 10, "number of distinct acting accounts")
	flag.Parse()

	ctx := context.Background()
	w, err := appkafka.NewLeaderWriter(ctx, appkafka.KafkaConfig{
		Brokers:   strings.Split(brokers, ","),
		Topic:     topic,
		Partition: partition,
	})
	if err != nil {
		panic(fmt.Sprintf("dial leader: %v", err))
	}
	defer w.Close()

	actorIDs := make([]string, actors)
	for i := range actorIDs {
		actorIDs[i] = uuid.Must(uuid.NewV7()).String()
	}

	var successCount, failCount atomic.Uint64
	jobs := make(chan int, batchSize*numWorkers)
	var mu sync.Mutex // a kafka.Conn is not safe for concurrent writes
	flush := func(batch []kafka.Message) {
		mu.Lock()
		err := w.WriteMessages(ctx, batch...)
		mu.Unlock()
		if err != nil {
			failCount.Add(uint64(len(batch)))
			fmt.Printf("write error: %v\n", err)
			return
		}
		successCount.Add(uint64(len(batch)))
	}

	start := time.Now()
	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]kafka.Message, 0, batchSize)
			for i := range jobs {
				msg, err := appkafka.EncodeActivity(models.Activity{
					Type:    models.ActivityPostCreated,
					ActorID: actorIDs[i%len(actorIDs)],
					PostID:  uuid.Must(uuid.NewV7()).String(),
				})
				if err != nil {
					failCount.Add(1)
					continue
				}
				batch = append(batch, msg)
				if len(batch) >= batchSize {
					flush(batch)
					batch = batch[:0]
				}
			}
			if len(batch) > 0 {
				flush(batch)
			}
		}()
	}

	for i := range total {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("Total activities: %d\n", total)
	fmt.Printf("Successful: %d, Failed: %d\n", successCount.Load(), failCount.Load())
	fmt.Printf("Elapsed time: %s\n", elapsed)
	fmt.Printf("Throughput: %.2f msg/s\n", float64(successCount.Load())/elapsed.Seconds())
}
