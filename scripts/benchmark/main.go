// Command benchmark submits batches of export jobs to a running reactor and
// reports acceptance and completion latencies.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"native-exporter/internal/security"
)

type Config struct {
	TotalRequests int
	Concurrency   int
	Format        string
	Source        map[string]any
	Description   string
}

type Result struct {
	JobID          string
	Status         int
	AcceptDuration time.Duration
	TotalDuration  time.Duration // until COMPLETED or FAILED
	Failed         bool
	Error          error
}

type client struct {
	baseURL string
	secret  string
	token   string
	http    *http.Client
}

func main() {
	baseURL := flag.String("url", envOr("BENCH_URL", "http://localhost:8080"), "Reactor base URL")
	fileKey := flag.String("file", "fixtures/events.native", "Native file key for file-source scenarios")
	folderKey := flag.String("folder", "fixtures/events", "Folder key for folder-source scenarios")
	query := flag.String("query", "SELECT id, name, created_at FROM events LIMIT 100000", "Query for remote-source scenarios")
	flag.Parse()

	c := &client{
		baseURL: *baseURL,
		secret:  envOr("API_SECRET", "devsecret"),
		token:   os.Getenv("BENCH_TOKEN"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}

	scenarios := []Config{
		{
			TotalRequests: 50, Concurrency: 10, Format: "pdf",
			Source:      map[string]any{"kind": "file", "key": *fileKey},
			Description: "Baseline (Low Load)",
		},
		{
			TotalRequests: 100, Concurrency: 50, Format: "csv",
			Source:      map[string]any{"kind": "file", "key": *fileKey},
			Description: "Stress Test (High Concurrency)",
		},
		{
			TotalRequests: 20, Concurrency: 5, Format: "arrow",
			Source:      map[string]any{"kind": "folder", "key": *folderKey},
			Description: "Folder source to Arrow IPC",
		},
		{
			TotalRequests: 5, Concurrency: 2, Format: "json",
			Source:      map[string]any{"kind": "remote", "query": *query},
			Description: "Remote ClickHouse query",
		},
	}

	for _, scenario := range scenarios {
		c.runScenario(scenario)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *client) runScenario(cfg Config) {
	fmt.Printf("\n=======================================================\n")
	fmt.Printf("Scenario: %s\n", cfg.Description)
	fmt.Printf("Requests: %d | Concurrency: %d | Format: %s\n", cfg.TotalRequests, cfg.Concurrency, cfg.Format)
	fmt.Printf("=======================================================\n")

	var (
		mu      sync.Mutex
		results []Result
	)
	g := new(errgroup.Group)
	g.SetLimit(cfg.Concurrency)

	startTime := time.Now()
	for i := range cfg.TotalRequests {
		g.Go(func() error {
			res := c.executeRequest(cfg)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()

			if i%10 == 0 {
				fmt.Print(".")
			}
			return nil
		})
	}
	g.Wait()
	totalTime := time.Since(startTime)
	fmt.Println()

	var acceptLatencies, processLatencies []time.Duration
	var failures, jobFailures int
	for _, res := range results {
		if res.Error != nil || res.Status != http.StatusAccepted {
			failures++
			continue
		}
		acceptLatencies = append(acceptLatencies, res.AcceptDuration)
		if res.Failed {
			jobFailures++
		}
		if res.TotalDuration > 0 {
			processLatencies = append(processLatencies, res.TotalDuration)
		}
	}
	slices.Sort(acceptLatencies)
	slices.Sort(processLatencies)

	fmt.Printf("\nRESULTS:\n")
	fmt.Printf("Total Duration: %v\n", totalTime)
	fmt.Printf("Throughput: %.2f req/sec\n", float64(cfg.TotalRequests)/totalTime.Seconds())
	fmt.Printf("Success Rate: %.1f%%\n", float64(cfg.TotalRequests-failures)/float64(cfg.TotalRequests)*100)
	fmt.Printf("Failed Jobs: %d\n", jobFailures)
	if len(acceptLatencies) > 0 {
		fmt.Printf("API Response Time (P95): %v\n", p95(acceptLatencies))
	}
	if len(processLatencies) > 0 {
		fmt.Printf("Job Completion Time (P95): %v\n", p95(processLatencies))
	}
}

func p95(sorted []time.Duration) time.Duration {
	return sorted[int(float64(len(sorted))*0.95)]
}

func (c *client) sign(req *http.Request, body []byte) {
	security.SignRequest(req, c.secret, body, time.Now())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *client) executeRequest(cfg Config) Result {
	start := time.Now()

	body, _ := json.Marshal(map[string]any{
		"source": cfg.Source,
		"email":  "benchmark@example.com",
		"format": cfg.Format,
	})
	req, _ := http.NewRequest(http.MethodPost, c.baseURL+"/export", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, body)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{Error: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return Result{Status: resp.StatusCode, AcceptDuration: time.Since(start)}
	}

	var accepted struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return Result{Status: resp.StatusCode, Error: err}
	}
	acceptTime := time.Since(start)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Second)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{JobID: accepted.JobID, Status: resp.StatusCode, AcceptDuration: acceptTime, Error: fmt.Errorf("timeout waiting for job")}
		case <-ticker.C:
			status, err := c.checkStatus(ctx, accepted.JobID)
			if err != nil {
				continue
			}
			if status == "COMPLETED" || status == "FAILED" {
				return Result{
					JobID:          accepted.JobID,
					Status:         resp.StatusCode,
					AcceptDuration: acceptTime,
					TotalDuration:  time.Since(start),
					Failed:         status == "FAILED",
				}
			}
		}
	}
}

func (c *client) checkStatus(ctx context.Context, jobID string) (string, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status check failed: %d", resp.StatusCode)
	}

	var info struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", err
	}
	return info.Status, nil
}
