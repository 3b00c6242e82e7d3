// Package benchutil holds the HTTP client, API helpers and latency statistics
// shared by the load tools.
package benchutil

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"
)

// Client talks to the API with an optional bearer token.
type Client struct {
	Base string
	HTTP *http.Client
}

// NewClient builds a client. With certFile and keyFile set, it presents that
// certificate; insecure skips server certificate checks for self-signed setups.
func NewClient(base, certFile, keyFile string, insecure bool) (*Client, error) {
	tlsCfg := &tls.Config{InsecureSkipVerify: insecure} //nolint:gosec // load tool against local servers
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return &Client{
		Base: base,
		HTTP: &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsCfg, MaxIdleConnsPerHost: 256},
			Timeout:   10 * time.Second,
		},
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Do sends a JSON request and decodes the envelope's data into out (if non-nil).
// It returns the HTTP status.
func (c *Client) Do(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, rdr)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return resp.StatusCode, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, env.Error)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode data: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// User is a registered load-test account.
type User struct {
	ID    string
	Token string
}

// Register creates a throwaway account.
func (c *Client) Register(ctx context.Context, prefix string, i int) (User, error) {
	var res struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Token string `json:"token"`
	}
	name := fmt.Sprintf("%s-%d-%d", prefix, i, time.Now().UnixNano())
	_, err := c.Do(ctx, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": name + "@bench.local", "password": "bench-password",
	}, &res)
	if err != nil {
		return User{}, err
	}
	return User{ID: res.User.ID, Token: res.Token}, nil
}

// Summary describes a latency sample in milliseconds.
type Summary struct {
	Count       int
	TrimmedMean float64
	P50         float64
	P90         float64
	P99         float64
}

// Summarize sorts data in place and computes its statistics. trimPercent of the
// samples are dropped from each end for the mean.
func Summarize(data []float64, trimPercent float64) Summary {
	if len(data) == 0 {
		return Summary{}
	}
	sort.Float64s(data)
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = (len(data) - 1) / 2
	}
	kept := data[trim : len(data)-trim]
	var sum float64
	for _, v := range kept {
		sum += v
	}
	return Summary{
		Count:       len(data),
		TrimmedMean: sum / float64(len(kept)),
		P50:         Percentile(data, 50),
		P90:         Percentile(data, 90),
		P99:         Percentile(data, 99),
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("count=%d trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f",
		s.Count, s.TrimmedMean, s.P50, s.P90, s.P99)
}

// Percentile interpolates the p-th percentile of sorted data.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(sorted)-1)
	f := int(k)
	c := f + 1
	if c >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[f]*(float64(c)-k) + sorted[c]*(k-float64(f))
}

// WriteCSV saves one latency per row under a latency_ms header.
func WriteCSV(path string, data []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	_ = w.Write([]string{"latency_ms"})
	for _, v := range data {
		_ = w.Write([]string{fmt.Sprintf("%.3f", v)})
	}
	w.Flush()
	return w.Error()
}
