package model

import "sync"

// Registry hands out one Loader per model URL, so every session that plays
// with the same weights shares a single download and build.
type Registry struct {
	fetcher Fetcher
	build   BuildFunc

	mu      sync.Mutex
	loaders map[string]*Loader
}

// NewRegistry creates a registry whose loaders use fetcher and build.
func NewRegistry(fetcher Fetcher, build BuildFunc) *Registry {
	return &Registry{
		fetcher: fetcher,
		build:   build,
		loaders: make(map[string]*Loader),
	}
}

// Loader returns the loader for url, creating it on first use. An empty url
// yields nil.
func (r *Registry) Loader(url string) *Loader {
	if url == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.loaders[url]; ok {
		return l
	}
	l := NewLoader(url, r.fetcher, r.build)
	r.loaders[url] = l
	return l
}
