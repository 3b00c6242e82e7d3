// e2e_bench measures how long a new post takes to reach its author's
// followers as a notification: API write, Kafka, worker fan-out, Cassandra,
// API read.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"example.com/socialfeed/bench/benchutil"
	"github.com/sourcegraph/conc/pool"
)

type post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
}

type notification struct {
	Type   string `json:"type"`
	PostID string `json:"postId"`
}

func main() {
	var (
		serverAddr           string
		U, F, P, concurrency int
		pollTimeout          int
		csvFile              string
		certFile, keyFile    string
		insecure             bool
	)
	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&U, "users", 50, "number of users to create")
	flag.IntVar(&F, "follows", 10, "average follows per user")
	flag.IntVar(&P, "posts", 100, "number of posts to publish")
	flag.IntVar(&concurrency, "c", 20, "concurrency for posting and polling")
	flag.IntVar(&pollTimeout, "timeout", 10, "seconds to wait for delivery")
	flag.StringVar(&csvFile, "csv", "e2e_latencies.csv", "CSV file to save latencies")
	flag.StringVar(&certFile, "cert", "", "client certificate for TLS servers")
	flag.StringVar(&keyFile, "key", "", "client key for TLS servers")
	flag.BoolVar(&insecure, "insecure", false, "skip server certificate verification")
	flag.Parse()

	ctx := context.Background()
	client, err := benchutil.NewClient(serverAddr, certFile, keyFile, insecure)
	if err != nil {
		panic(err)
	}

	// --- 1) Create users ---
	fmt.Printf("Creating %d users...\n", U)
	users := make([]benchutil.User, U)
	tokens := make(map[string]string, U)
	for i := range users {
		if users[i], err = client.Register(ctx, "e2e-user", i); err != nil {
			fmt.Printf("create user error: %v\n", err)
			os.Exit(1)
		}
		tokens[users[i].ID] = users[i].Token
	}
	fmt.Println("Users created successfully.")

	// --- 2) Follow graph ---
	fmt.Printf("Creating follows (~%d per user)...\n", F)
	followers := make(map[string]map[string]bool)
	for _, u := range users {
		for range F {
			target := users[rand.IntN(len(users))]
			if target.ID == u.ID || followers[target.ID][u.ID] {
				continue
			}
			if _, err := client.Do(ctx, http.MethodPut, "/api/users/follow/"+target.ID, u.Token, nil, nil); err != nil {
				fmt.Printf("follow error: %v\n", err)
				os.Exit(1)
			}
			if followers[target.ID] == nil {
				followers[target.ID] = make(map[string]bool)
			}
			followers[target.ID][u.ID] = true
		}
	}
	fmt.Println("Follow relationships established.")

	// --- 3) Publish posts ---
	fmt.Printf("Publishing %d posts with concurrency %d...\n", P, concurrency)
	var mu sync.Mutex
	var posts []post
	pub := pool.New().WithMaxGoroutines(concurrency)
	for i := range P {
		pub.Go(func() {
			author := users[rand.IntN(len(users))]
			var p post
			if _, err := client.Do(ctx, http.MethodPost, "/api/posts", author.Token,
				map[string]string{"text": fmt.Sprintf("e2e post %d", i)}, &p); err != nil {
				fmt.Printf("post error: %v\n", err)
				return
			}
			mu.Lock()
			posts = append(posts, p)
			mu.Unlock()
		})
	}
	pub.Wait()

	// --- 4) Poll followers' notifications ---
	fmt.Println("Checking notification delivery...")
	var latencies []float64
	var failCount atomic.Int64
	checks := pool.New().WithMaxGoroutines(concurrency)
	for _, p := range posts {
		for fid := range followers[p.AuthorID] {
			checks.Go(func() {
				lat, ok := waitForNotification(ctx, client, tokens[fid], p, time.Duration(pollTimeout)*time.Second)
				if !ok {
					failCount.Add(1)
					return
				}
				mu.Lock()
				latencies = append(latencies, lat)
				mu.Unlock()
			})
		}
	}
	checks.Wait()

	// --- 5) Report ---
	if len(latencies) == 0 {
		fmt.Printf("No successful deliveries recorded (fails=%d).\n", failCount.Load())
		return
	}
	fmt.Printf("Delivery stats (ms): %s fails=%d\n", benchutil.Summarize(latencies, 1.0), failCount.Load())
	if err := benchutil.WriteCSV(csvFile, latencies); err != nil {
		fmt.Printf("Failed to write CSV file: %v\n", err)
		return
	}
	fmt.Printf("Saved %s\n", csvFile)
}

// waitForNotification polls until the follower holds a post_created
// notification for p and returns the delay since p was created in ms.
func waitForNotification(ctx context.Context, c *benchutil.Client, token string, p post, timeout time.Duration) (float64, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var notes []notification
		if _, err := c.Do(ctx, http.MethodGet, "/api/notifications?limit=200", token, nil, &notes); err == nil {
			for _, n := range notes {
				if n.Type == "post_created" && n.PostID == p.ID {
					return time.Since(p.CreatedAt).Seconds() * 1000, true
				}
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return 0, false
}
