package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBody = 1 << 20

// Clock is injected so tests can pin "now".
type Clock func() time.Time

func GetExpiresAt(now time.Time, expiresIn int64) time.Time {
	return now.Add(time.Duration(expiresIn) * time.Second)
}

var errPollExhausted = errors.New("poll attempts exhausted")

// PollPolicy is a bounded fixed-interval retry: at most MaxAttempts checks,
// Interval apart. The derived wall-clock bound is MaxAttempts * Interval.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// Run calls check until it reports done, returns an error, the attempt
// budget runs out (errPollExhausted) or ctx is cancelled. The first check
// happens after one interval.
func (p PollPolicy) Run(ctx context.Context, check func(ctx context.Context, attempt int) (bool, error)) error {
	timer := time.NewTimer(p.Interval)
	defer timer.Stop()

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		done, err := check(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		timer.Reset(p.Interval)
	}
	return errPollExhausted
}

// doJSON sends req and decodes a 2xx body into out. Non-2xx bodies are
// returned raw so the caller can parse the platform's error envelope.
func doJSON(client *http.Client, req *http.Request, out any) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, nil
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, body, fmt.Errorf("error parsing response: %w", err)
		}
	}
	return resp.StatusCode, body, nil
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// decodeError parses a platform error envelope; a malformed body leaves out
// zero-valued.
func decodeError(body []byte, out any) error {
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}
