package session

import (
	"testing"

	"github.com/wricardo/mcp-training/merge2048/game/engine"
)

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()

	state, err := s.Load()
	if err != nil || state != nil {
		t.Fatalf("Expected empty storage, got %v, %v", state, err)
	}

	saved := &engine.SerializedGameState{Score: 12, Grid: engine.NewBoard(4).Serialize()}
	if err := s.Save(saved); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	state, _ = s.Load()
	if state == nil || state.Score != 12 {
		t.Errorf("Expected saved score 12, got %+v", state)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if state, _ := s.Load(); state != nil {
		t.Errorf("Expected cleared storage, got %+v", state)
	}

	s.SetBestScore(64)
	if best, _ := s.BestScore(); best != 64 {
		t.Errorf("Expected best score 64, got %d", best)
	}
}
