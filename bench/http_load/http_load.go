// http_load drives a mix of post creation and feed reads against a running
// server for a fixed duration.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"example.com/socialfeed/bench/benchutil"
)

type counters struct {
	requests  atomic.Int64
	successes atomic.Int64
	errors4xx atomic.Int64
	errors5xx atomic.Int64
}

func (c *counters) record(status int, err error) {
	c.requests.Add(1)
	switch {
	case err == nil:
		c.successes.Add(1)
	case status >= 500 || status == 0:
		c.errors5xx.Add(1)
	default:
		c.errors4xx.Add(1)
	}
}

func main() {
	var (
		server      string
		duration    int
		concurrency int
		writeRatio  float64
		csvFile     string
		trimPercent float64
		certFile    string
		keyFile     string
		insecure    bool
	)
	flag.StringVar(&server, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&duration, "duration", 30, "duration in seconds")
	flag.IntVar(&concurrency, "c", 50, "number of concurrent goroutines / users")
	flag.Float64Var(&writeRatio, "writes", 0.2, "fraction of requests that create posts; the rest read the feed")
	flag.StringVar(&csvFile, "csv", "latencies.csv", "CSV file to save latencies")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.StringVar(&certFile, "cert", "", "client certificate for TLS servers")
	flag.StringVar(&keyFile, "key", "", "client key for TLS servers")
	flag.BoolVar(&insecure, "insecure", false, "skip server certificate verification")
	flag.Parse()

	client, err := benchutil.NewClient(server, certFile, keyFile, insecure)
	if err != nil {
		panic(err)
	}
	ctx := context.Background()

	fmt.Printf("Creating %d users...\n", concurrency)
	users := make([]benchutil.User, concurrency)
	for i := range users {
		if users[i], err = client.Register(ctx, "load-user", i); err != nil {
			panic(fmt.Sprintf("failed to create user: %v", err))
		}
	}
	// each user follows its neighbour so feeds are not trivially empty
	for i, u := range users {
		next := users[(i+1)%len(users)]
		if next.ID == u.ID {
			continue
		}
		if _, err := client.Do(ctx, http.MethodPut, "/api/users/follow/"+next.ID, u.Token, nil, nil); err != nil {
			panic(fmt.Sprintf("failed to follow: %v", err))
		}
	}
	fmt.Println("Users created.")

	stopTime := time.Now().Add(time.Duration(duration) * time.Second)
	var writes, reads counters
	writeLat := make([][]float64, concurrency)
	readLat := make([][]float64, concurrency)

	var wg sync.WaitGroup
	for idx := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := users[idx]
			for time.Now().Before(stopTime) {
				start := time.Now()
				if rand.Float64() < writeRatio {
					status, err := client.Do(ctx, http.MethodPost, "/api/posts", user.Token,
						map[string]string{"text": fmt.Sprintf("load test post %d", start.UnixNano())}, nil)
					writeLat[idx] = append(writeLat[idx], ms(time.Since(start)))
					writes.record(status, err)
					if err != nil {
						fmt.Printf("Write error: %v\n", err)
					}
					continue
				}
				var feed []struct {
					ID string `json:"id"`
				}
				status, err := client.Do(ctx, http.MethodGet, "/api/posts/feed", user.Token, nil, &feed)
				readLat[idx] = append(readLat[idx], ms(time.Since(start)))
				reads.record(status, err)
				if err != nil {
					fmt.Printf("Read error: %v\n", err)
				}
			}
		}()
	}
	wg.Wait()

	var allWrites, allReads []float64
	for i := range concurrency {
		allWrites = append(allWrites, writeLat[i]...)
		allReads = append(allReads, readLat[i]...)
	}

	report("create post", &writes, allWrites, trimPercent)
	report("read feed", &reads, allReads, trimPercent)

	all := append(append([]float64{}, allWrites...), allReads...)
	if err := benchutil.WriteCSV(csvFile, all); err != nil {
		fmt.Printf("Failed to write CSV file: %v\n", err)
		return
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}

func report(name string, c *counters, lat []float64, trimPercent float64) {
	fmt.Printf("[%s] Requests: %d  Successes: %d  4xx: %d  5xx: %d\n", name,
		c.requests.Load(), c.successes.Load(), c.errors4xx.Load(), c.errors5xx.Load())
	fmt.Printf("[%s] Latency (ms): %s\n", name, benchutil.Summarize(lat, trimPercent))
}

func ms(d time.Duration) float64 {
	return d.Seconds() * 1000
}
