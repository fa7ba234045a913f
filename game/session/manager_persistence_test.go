package session

import (
	"testing"

	"github.com/wricardo/mcp-training/merge2048/game/engine"
)

func TestManagerWithPersistence(t *testing.T) {
	tempDir := t.TempDir()

	persistence, err := NewFilePersistence(tempDir)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	manager := NewManagerWithPersistence(persistence)

	t.Run("Create Session Auto-Saves", func(t *testing.T) {
		session, err := manager.Create("auto1", createTestConfig())
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}

		if !persistence.Exists(session.ID) {
			t.Error("Session should be auto-saved on creation")
		}

		data, err := persistence.Load(session.ID)
		if err != nil {
			t.Fatalf("Failed to load auto-saved session: %v", err)
		}
		if data.GameState == nil {
			t.Fatal("Expected the initial board to be saved")
		}
		if countTiles(data.GameState.Grid) != 2 {
			t.Errorf("Expected 2 saved tiles, got %d", countTiles(data.GameState.Grid))
		}
	})

	t.Run("Get Session Restores Game", func(t *testing.T) {
		original, _ := manager.Get("auto1")
		for _, d := range engine.Directions {
			original.Engine.Move(d)
		}
		want := original.Engine.GetState()

		// New manager, nothing in memory
		manager2 := NewManagerWithPersistence(persistence)
		restored, err := manager2.Get("AUTO1")
		if err != nil {
			t.Fatalf("Failed to get session from persistence: %v", err)
		}

		got := restored.Engine.GetState()
		if got.Score != want.Score {
			t.Errorf("Expected restored score %d, got %d", want.Score, got.Score)
		}
		for i := range want.Board {
			if want.Board[i] != got.Board[i] {
				t.Fatalf("Expected restored board %v, got %v", want.Board, got.Board)
			}
		}
		if restored.Config.Name != "test" {
			t.Errorf("Expected restored config 'test', got %s", restored.Config.Name)
		}
	})

	t.Run("Best Score Survives Sessions", func(t *testing.T) {
		session, _ := manager.Get("auto1")
		best := session.Engine.GetState().BestScore

		other, err := manager.Create("auto2", createTestConfig())
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if other.Engine.GetState().BestScore != best {
			t.Errorf("Expected shared best score %d, got %d", best, other.Engine.GetState().BestScore)
		}
	})

	t.Run("Create Rejects Persisted ID", func(t *testing.T) {
		manager3 := NewManagerWithPersistence(persistence)
		if _, err := manager3.Create("auto1", createTestConfig()); err != ErrSessionAlreadyExists {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("Load Persisted Sessions", func(t *testing.T) {
		manager4 := NewManagerWithPersistence(persistence)
		if err := manager4.LoadPersistedSessions(); err != nil {
			t.Fatalf("Failed to load persisted sessions: %v", err)
		}
		if manager4.Count() != 2 {
			t.Errorf("Expected 2 loaded sessions, got %d", manager4.Count())
		}
	})

	t.Run("Delete Removes File", func(t *testing.T) {
		if err := manager.Delete("auto2"); err != nil {
			t.Fatalf("Failed to delete session: %v", err)
		}
		if persistence.Exists("auto2") {
			t.Error("Session file should be removed")
		}
	})

	t.Run("Save All Sessions", func(t *testing.T) {
		if err := manager.SaveAllSessions(); err != nil {
			t.Errorf("SaveAllSessions failed: %v", err)
		}
	})
}
