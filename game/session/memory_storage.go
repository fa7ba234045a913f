package session

import (
	"sync"

	"github.com/wricardo/mcp-training/merge2048/game/engine"
)

// MemoryStorage keeps a session's saved game in memory. It is used when no
// persistence is configured.
type MemoryStorage struct {
	mu    sync.Mutex
	state *engine.SerializedGameState
	best  int
}

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Load() (*engine.SerializedGameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *MemoryStorage) Save(state *engine.SerializedGameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

func (s *MemoryStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
	return nil
}

func (s *MemoryStorage) BestScore() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.best, nil
}

func (s *MemoryStorage) SetBestScore(score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.best = score
	return nil
}
