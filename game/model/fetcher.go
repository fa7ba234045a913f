package model

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
)

// ProgressFunc reports download progress. total is -1 when the server did not
// announce a content length.
type ProgressFunc func(received, total int64)

// Fetcher downloads a binary resource.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string, onProgress ProgressFunc) ([]byte, error)
}

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent fetch failure")

// HTTPFetcher streams a resource over HTTP, retrying transient failures with
// exponential backoff.
type HTTPFetcher struct {
	Client      *http.Client
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// NewHTTPFetcher returns a fetcher with sensible retry defaults.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client:      &http.Client{Timeout: 10 * time.Minute},
		MaxAttempts: 4,
		MinBackoff:  250 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
	}
}

// FetchBytes downloads url, calling onProgress after every chunk.
func (f *HTTPFetcher) FetchBytes(ctx context.Context, url string, onProgress ProgressFunc) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("no model URL configured: %w", errPermanent)
	}

	b := &backoff.Backoff{
		Min:    f.MinBackoff,
		Max:    f.MaxBackoff,
		Factor: 2,
		Jitter: true,
	}
	attempts := f.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		data, err := f.fetchOnce(ctx, url, onProgress)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if errors.Is(err, errPermanent) || ctx.Err() != nil || attempt == attempts {
			break
		}

		wait := b.Duration()
		log.Warn().Err(err).Str("url", url).Int("attempt", attempt).Dur("retry_in", wait).
			Msg("model download failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string, onProgress ProgressFunc) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v: %w", err, errPermanent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("%v: %w", err, errPermanent)
		}
		return nil, err
	}

	total := resp.ContentLength
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}

	chunk := make([]byte, 64*1024)
	var received int64
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			received += int64(n)
			if onProgress != nil {
				onProgress(received, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read body: %w", readErr)
		}
	}
	return buf.Bytes(), nil
}
