package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrNotReady is returned while the model is unavailable: another caller is
// building it, or the download or build failed.
var ErrNotReady = errors.New("model not ready")

// Evaluator scores a 4x4 board given as flattened log2 values.
type Evaluator interface {
	Estimate(board []int) float64
}

// BuildFunc turns downloaded bytes into an Evaluator.
type BuildFunc func(data []byte) (Evaluator, error)

// Progress is the last reported download progress.
type Progress struct {
	Received int64 `json:"received"`
	Total    int64 `json:"total"`
}

// Loader lazily downloads and builds the model exactly once per process.
// Concurrent downloads collapse into one request and the bytes are cached;
// the build is guarded by a latch so a second caller arriving mid-build gets
// ErrNotReady instead of starting another.
type Loader struct {
	url     string
	fetcher Fetcher
	build   BuildFunc

	group singleflight.Group

	mu         sync.Mutex
	data       []byte
	model      Evaluator
	building   bool
	prefetched bool
	progress   Progress
	listeners  map[int]ProgressFunc
	nextID     int
}

// NewLoader creates a loader for the model at url.
func NewLoader(url string, fetcher Fetcher, build BuildFunc) *Loader {
	if fetcher == nil {
		fetcher = NewHTTPFetcher()
	}
	if build == nil {
		build = BuildNTuple
	}
	return &Loader{url: url, fetcher: fetcher, build: build}
}

// URL returns the model location.
func (l *Loader) URL() string {
	return l.url
}

// OnProgress registers a download progress listener. The returned func
// removes it again.
func (l *Loader) OnProgress(fn ProgressFunc) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listeners == nil {
		l.listeners = make(map[int]ProgressFunc)
	}
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

// Prefetch starts the download in the background without building. It is
// safe to call repeatedly.
func (l *Loader) Prefetch() {
	l.mu.Lock()
	if l.prefetched || l.data != nil || l.model != nil {
		l.mu.Unlock()
		return
	}
	l.prefetched = true
	l.mu.Unlock()

	go func() {
		if _, err := l.download(context.Background()); err != nil {
			log.Warn().Err(err).Str("url", l.url).Msg("model prefetch failed")
			l.mu.Lock()
			l.prefetched = false
			l.mu.Unlock()
		}
	}()
}

// Acquire returns the built model, downloading and building it on first use.
func (l *Loader) Acquire(ctx context.Context) (Evaluator, error) {
	l.mu.Lock()
	if l.model != nil {
		m := l.model
		l.mu.Unlock()
		return m, nil
	}
	if l.building {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: build in progress", ErrNotReady)
	}
	l.building = true
	if !l.prefetched && l.data == nil {
		log.Warn().Str("url", l.url).Msg("model download was not prefetched, requesting it now")
	}
	l.mu.Unlock()

	m, err := l.downloadAndBuild(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.building = false
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	l.model = m
	log.Info().Str("url", l.url).Msg("model ready")
	return m, nil
}

func (l *Loader) downloadAndBuild(ctx context.Context) (Evaluator, error) {
	data, err := l.download(ctx)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	m, err := l.build(data)
	if err != nil {
		return nil, fmt.Errorf("build failed: %w", err)
	}
	return m, nil
}

// download fetches the model bytes once; concurrent callers share the
// in-flight request and later callers get the cached bytes. The shared request
// outlives any single caller; a caller stops waiting when its ctx ends.
func (l *Loader) download(ctx context.Context) ([]byte, error) {
	l.mu.Lock()
	if l.data != nil {
		data := l.data
		l.mu.Unlock()
		return data, nil
	}
	l.mu.Unlock()

	fetchCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan("download", func() (interface{}, error) {
		l.mu.Lock()
		if l.data != nil {
			data := l.data
			l.mu.Unlock()
			return data, nil
		}
		l.mu.Unlock()

		log.Info().Str("url", l.url).Msg("downloading model")
		data, err := l.fetcher.FetchBytes(fetchCtx, l.url, l.reportProgress)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.data = data
		l.mu.Unlock()
		return data, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) reportProgress(received, total int64) {
	l.mu.Lock()
	l.progress = Progress{Received: received, Total: total}
	listeners := make([]ProgressFunc, 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(received, total)
	}
}

// Ready reports whether the model has been built.
func (l *Loader) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.model != nil
}

// Progress returns the last reported download progress.
func (l *Loader) Progress() Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.progress
}
