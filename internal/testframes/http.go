package testframes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := marshalJSON(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// marshalJSON marshals a struct to JSON
func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// unmarshalJSON unmarshals JSON to a struct
func unmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitSessions submits all sessions concurrently. Workers own whole
// sessions and post their frames strictly in order; the stability gate
// counts consecutive frames, so order inside a session matters.
func submitSessions(ctx context.Context, config *Config, sessions []Session, stats *Stats) error {
	totalFrames := 0
	for i := range sessions {
		totalFrames += len(sessions[i].Frames)
	}
	log.Printf("📤 Submitting %d frames across %d sessions with %d workers...", totalFrames, len(sessions), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/frames"

	// Counters for statistics
	var (
		submitted int64
		accepted  int64
		duplicate int64
		rejected  int64
		failed    int64
	)

	// Progress reporting
	var lastReportNs atomic.Int64
	reportInterval := 1 * time.Second

	// Create worker pool over session indices
	sessionChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for index := range sessionChan {
				for _, frame := range sessions[index].Frames {
					select {
					case <-ctx.Done():
						return
					default:
					}

					result := submitSingleFrame(ctx, client, url, frame)

					// Update counters
					atomic.AddInt64(&submitted, 1)
					switch result {
					case "accepted":
						atomic.AddInt64(&accepted, 1)
					case "duplicate":
						atomic.AddInt64(&duplicate, 1)
					case "rejected":
						atomic.AddInt64(&rejected, 1)
					case "failed":
						atomic.AddInt64(&failed, 1)
					}

					if config.Pace > 0 {
						time.Sleep(config.Pace)
					}

					// Progress reporting
					now := time.Now().UnixNano()
					last := lastReportNs.Load()
					if now-last >= int64(reportInterval) && lastReportNs.CompareAndSwap(last, now) {
						total := atomic.LoadInt64(&submitted)
						acc := atomic.LoadInt64(&accepted)
						dup := atomic.LoadInt64(&duplicate)
						rej := atomic.LoadInt64(&rejected)
						fail := atomic.LoadInt64(&failed)

						if config.Verbose {
							log.Printf("📊 Progress: %d/%d submitted (accepted: %d, duplicate: %d, rejected: %d, failed: %d)",
								total, totalFrames, acc, dup, rej, fail)
						} else {
							fmt.Printf("\r📤 Submitted: %d/%d (accepted: %d, duplicate: %d, rejected: %d, failed: %d)",
								total, totalFrames, acc, dup, rej, fail)
						}
					}
				}
			}
		}(i)
	}

	// Send session indices to workers
	go func() {
		defer close(sessionChan)
		for i := range sessions {
			select {
			case <-ctx.Done():
				return
			case sessionChan <- i:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	// Final progress report
	if !config.Verbose {
		fmt.Println() // New line after progress indicator
	}

	// Update stats
	stats.FramesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.FramesAccepted = int(atomic.LoadInt64(&accepted))
	stats.FramesDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.FramesRejected = int(atomic.LoadInt64(&rejected))
	stats.FramesFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`✅ Frame submission completed:
   Accepted: %d
   Duplicate: %d
   Rejected: %d
   Failed: %d
`, stats.FramesAccepted, stats.FramesDuplicate, stats.FramesRejected, stats.FramesFailed)

	return nil
}

// submitSingleFrame submits a single frame and returns the result
func submitSingleFrame(ctx context.Context, client *HTTPClient, url string, frame FramePayload) string {
	resp, err := client.Post(ctx, url, frame)
	if err != nil {
		return "failed"
	}

	// readResponseBody closes the body
	body, err := readResponseBody(resp)
	if err != nil {
		return "failed"
	}

	// Parse response based on status code
	switch resp.StatusCode {
	case StatusAccepted:
		// Accepted - new frame
		var ack AckResponse
		if err := unmarshalJSON(body, &ack); err == nil && ack.Status == "accepted" {
			return "accepted"
		}
		return "accepted" // Assume accepted for 202 even if parsing fails
	case StatusOK:
		// OK - duplicate frame
		var ack AckResponse
		if err := unmarshalJSON(body, &ack); err == nil && ack.Duplicate {
			return "duplicate"
		}
		return "duplicate" // Assume duplicate for 200 even if parsing fails
	case StatusTooManyRequests:
		// Backpressure - the queue dropped the frame
		return "rejected"
	default:
		// Error
		return "failed"
	}
}
