package doccloud

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultPollInitial     = 1 * time.Second
	defaultPollCap         = 8 * time.Second
	defaultPollMaxAttempts = 20
	defaultPollMaxWait     = 60 * time.Second
)

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	initial     time.Duration
	cap         time.Duration
	maxAttempts int
	maxWait     time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		initial:     defaultPollInitial,
		cap:         defaultPollCap,
		maxAttempts: defaultPollMaxAttempts,
		maxWait:     defaultPollMaxWait,
	}
}

// WithPollInterval overrides the initial poll interval.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.initial = d
	}
}

// WithPollCap overrides the maximum poll interval.
func WithPollCap(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.cap = d
	}
}

// WithPollMaxAttempts overrides the attempt ceiling.
func WithPollMaxAttempts(n int) PollOption {
	return func(c *pollConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithPollMaxWait overrides the wall-clock ceiling.
func WithPollMaxWait(d time.Duration) PollOption {
	return func(c *pollConfig) {
		if d > 0 {
			c.maxWait = d
		}
	}
}

type pollResponse struct {
	Status string `json:"status"`
	Asset  struct {
		DownloadURI string `json:"downloadUri"`
	} `json:"asset"`
	Error string `json:"error,omitempty"`
}

// PollResult polls the job location until it reports done, fails, or one of
// two bounds triggers: the attempt-count ceiling or the wall-clock ceiling.
// Whichever limit is hit first aborts the job with a TimeoutError. A 202 (or
// an "in progress" body) means the job is still running; the delay between
// attempts grows exponentially to a cap.
func (c *httpClient) PollResult(ctx context.Context, token, location string, opts ...PollOption) (*JobStatus, error) {
	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	interval := cfg.initial

	for attempt := 1; ; attempt++ {
		if attempt > cfg.maxAttempts {
			return nil, &TimeoutError{Step: "poll", Attempts: attempt - 1, Elapsed: time.Since(start)}
		}

		status, retryable, err := c.pollOnce(ctx, token, location)
		if err != nil {
			return nil, err
		}
		if !retryable {
			return status, nil
		}

		if time.Since(start)+interval > cfg.maxWait {
			return nil, &TimeoutError{Step: "poll", Attempts: attempt, Elapsed: time.Since(start)}
		}

		select {
		case <-ctx.Done():
			return nil, &TimeoutError{Step: "poll", Attempts: attempt, Elapsed: time.Since(start)}
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.cap {
			interval = cfg.cap
		}
	}
}

// pollOnce performs one bounded status GET. The second return value reports
// whether the job is still running and should be polled again.
func (c *httpClient) pollOnce(ctx context.Context, token, location string) (*JobStatus, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.get(attemptCtx, token, location)
	if err != nil {
		return nil, false, eris.Wrap(err, "doccloud: poll status")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, eris.Wrap(err, "doccloud: read poll body")
	}

	if resp.StatusCode == http.StatusAccepted {
		return nil, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, eris.Errorf("doccloud: poll returned HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var pr pollResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, false, &MalformedResponseError{Path: "poll body"}
	}

	switch pr.Status {
	case "done", "completed":
		if pr.Asset.DownloadURI == "" {
			return nil, false, &MalformedResponseError{Path: "asset.downloadUri"}
		}
		return &JobStatus{Status: pr.Status, DownloadURL: pr.Asset.DownloadURI}, false, nil
	case "in progress", "pending", "running":
		return nil, true, nil
	case "failed":
		return nil, false, eris.Errorf("doccloud: extraction job failed: %s", pr.Error)
	default:
		return nil, false, &MalformedResponseError{Path: "status"}
	}
}
