package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/merge2048/game/agent"
	"github.com/wricardo/mcp-training/merge2048/game/autoplay"
	"github.com/wricardo/mcp-training/merge2048/game/engine"
)

func createTestConfig() *engine.GameConfig {
	cfg := &engine.GameConfig{
		Name:        "test",
		Description: "Test configuration",
		Size:        4,
		Agent:       &engine.AgentSettings{DelayMs: 1, PollMs: 1},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	t.Run("create with custom ID", func(t *testing.T) {
		session, err := manager.Create("test-session", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID != "test-session" {
			t.Errorf("Expected session ID 'test-session', got '%s'", session.ID)
		}
		if session.Engine == nil {
			t.Error("Expected engine to be initialized")
		}
		if session.Agent == nil {
			t.Error("Expected autoplay to be initialized")
		}
		if tiles := session.Engine.GetState().Grid; countTiles(tiles) != config.StartTiles {
			t.Errorf("Expected %d start tiles, got %d", config.StartTiles, countTiles(tiles))
		}
	})

	t.Run("create with auto-generated ID", func(t *testing.T) {
		session, err := manager.Create("", config)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character ID, got '%s'", session.ID)
		}
	})

	t.Run("duplicate ID", func(t *testing.T) {
		_, err := manager.Create("TEST-SESSION", config)
		if err != ErrSessionAlreadyExists {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("invalid ID", func(t *testing.T) {
		for _, id := range []string{"../escape", "a b", "best_score"} {
			if _, err := manager.Create(id, config); !errors.Is(err, ErrInvalidSessionID) {
				t.Errorf("Expected ErrInvalidSessionID for %q, got %v", id, err)
			}
		}
	})

	t.Run("nil config uses classic", func(t *testing.T) {
		session, err := manager.Create("classic-default", nil)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.Config.Name != "classic" {
			t.Errorf("Expected classic config, got %s", session.Config.Name)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		bad := createTestConfig()
		bad.Size = 20
		if _, err := manager.Create("bad-config", bad); !errors.Is(err, engine.ErrInvalidConfig) {
			t.Errorf("Expected ErrInvalidConfig, got %v", err)
		}
	})
}

func countTiles(grid engine.SerializedGrid) int {
	n := 0
	for _, column := range grid.Cells {
		for _, tile := range column {
			if tile != nil {
				n++
			}
		}
	}
	return n
}

func TestManager_Get(t *testing.T) {
	manager := NewManager()
	created, _ := manager.Create("MixedCase", createTestConfig())

	for _, id := range []string{"MixedCase", "mixedcase", "MIXEDCASE"} {
		session, err := manager.Get(id)
		if err != nil {
			t.Errorf("Get(%q) failed: %v", id, err)
			continue
		}
		if session != created {
			t.Errorf("Get(%q) returned a different session", id)
		}
	}

	if _, err := manager.Get("missing"); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_GetOrCreate(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	first, err := manager.GetOrCreate("shared", config)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	second, err := manager.GetOrCreate("shared", config)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if first != second {
		t.Error("Expected GetOrCreate to return the existing session")
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", manager.Count())
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager()
	manager.Create("doomed", createTestConfig())

	if err := manager.Delete("DOOMED"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get("doomed"); err != ErrSessionNotFound {
		t.Errorf("Expected deleted session to be gone, got %v", err)
	}
	if err := manager.Delete("doomed"); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_DeleteStopsAutoplay(t *testing.T) {
	blocked := make(chan struct{})
	manager := NewManager(WithAgentConfig(func(*engine.GameConfig) autoplay.Config {
		return autoplay.Config{
			Delay: time.Hour,
			Factory: func(agent.Mode, agent.Evaluator) (agent.Agent, error) {
				return agent.Func(func(context.Context, []int) (engine.Direction, error) {
					select {
					case <-blocked:
					default:
						close(blocked)
					}
					return engine.Left, nil
				}), nil
			},
		}
	}))

	session, _ := manager.Create("busy", createTestConfig())
	session.Agent.SelectMode(agent.ModeRandom)
	if err := session.Agent.Activate(context.Background()); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	<-blocked

	if err := manager.Delete("busy"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if session.Agent.Running() {
		t.Error("Expected autoplay to be stopped after delete")
	}
}

func TestManager_List(t *testing.T) {
	manager := NewManager()
	for _, id := range []string{"one", "two", "three"} {
		manager.Create(id, createTestConfig())
	}

	sessions := manager.List()
	if len(sessions) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(sessions))
	}
	seen := map[string]bool{}
	for _, s := range sessions {
		seen[s.ID] = true
	}
	for _, id := range []string{"one", "two", "three"} {
		if !seen[id] {
			t.Errorf("Expected session %s in list", id)
		}
	}
}

func TestManager_CleanupExpired(t *testing.T) {
	manager := NewManager()
	old, _ := manager.Create("old", createTestConfig())
	manager.Create("fresh", createTestConfig())
	old.LastAccessedAt = time.Now().Add(-2 * time.Hour)

	removed := manager.CleanupExpiredSessions(time.Hour)
	if removed != 1 {
		t.Errorf("Expected 1 session removed, got %d", removed)
	}
	if _, err := manager.Get("old"); err != ErrSessionNotFound {
		t.Errorf("Expected old session to be removed, got %v", err)
	}
	if _, err := manager.Get("fresh"); err != nil {
		t.Errorf("Expected fresh session to remain, got %v", err)
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager()
	session, _ := manager.Create("touch", createTestConfig())
	before := session.LastAccessedAt

	time.Sleep(5 * time.Millisecond)
	if err := manager.UpdateLastAccessed("touch"); err != nil {
		t.Fatalf("UpdateLastAccessed failed: %v", err)
	}
	if !session.LastAccessedAt.After(before) {
		t.Error("Expected LastAccessedAt to advance")
	}
	if err := manager.UpdateLastAccessed("missing"); err != ErrSessionNotFound {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

type countingRenderer struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRenderer) Render(*engine.Board, engine.Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
}

func TestManager_Renderers(t *testing.T) {
	renderers := map[string]*countingRenderer{}
	manager := NewManager(WithRenderers(func(id string) engine.Renderer {
		r := &countingRenderer{}
		renderers[id] = r
		return r
	}))

	manager.Create("drawn", createTestConfig())
	r, ok := renderers["drawn"]
	if !ok {
		t.Fatal("Expected a renderer for the session")
	}
	if r.calls != 1 {
		t.Errorf("Expected setup to render once, got %d", r.calls)
	}
}

func TestManager_AgentEvents(t *testing.T) {
	var mu sync.Mutex
	var events []autoplay.Event
	manager := NewManager(WithAgentEvents(func(id string, ev autoplay.Event) {
		if id != "events" {
			t.Errorf("Expected events for session 'events', got %q", id)
		}
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))

	config := createTestConfig()
	config.Size = 2
	config.WinValue = 4096
	session, err := manager.Create("events", config)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	session.Agent.SelectMode(agent.ModeRandom)
	if err := session.Agent.Activate(context.Background()); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	select {
	case <-session.Agent.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Autoplay did not finish a 2x2 game")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) < 2 || events[0].Type != autoplay.EventStarted || events[len(events)-1].Type != autoplay.EventStopped {
		t.Errorf("Expected started ... stopped events, got %+v", events)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := manager.Create("", config)
			if err != nil {
				t.Errorf("Concurrent create failed: %v", err)
				return
			}
			if _, err := manager.Get(session.ID); err != nil {
				t.Errorf("Concurrent get failed: %v", err)
			}
			session.Engine.Move(engine.Left)
		}()
	}
	wg.Wait()

	if manager.Count() != 20 {
		t.Errorf("Expected 20 sessions, got %d", manager.Count())
	}
}

func TestManager_SessionIsolation(t *testing.T) {
	manager := NewManager()
	a, _ := manager.Create("iso-a", createTestConfig())
	b, _ := manager.Create("iso-b", createTestConfig())

	before := b.Engine.GetState()
	for _, d := range engine.Directions {
		a.Engine.Move(d)
	}
	after := b.Engine.GetState()

	if before.TotalMoves != after.TotalMoves || before.Score != after.Score {
		t.Error("Moves on one session changed another")
	}
	if a.Config == b.Config {
		t.Error("Sessions should not share a config instance")
	}
}

func TestManager_SessionIDGeneration(t *testing.T) {
	manager := NewManager()
	ids := map[string]bool{}
	for i := 0; i < 50; i++ {
		session, err := manager.Create("", createTestConfig())
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if ids[session.ID] {
			t.Errorf("Duplicate session ID %s", session.ID)
		}
		ids[session.ID] = true
		if strings.Trim(session.ID, "0123456789abcdef") != "" {
			t.Errorf("Expected hex ID, got %s", session.ID)
		}
	}
}

func TestManager_CreateKeepsZeroDelay(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()
	config.Agent.DelayMs = 0
	config.FourProbability = 0

	session, err := manager.Create("instant", config)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if session.Config.Agent.DelayMs != 0 {
		t.Errorf("Expected session delay 0, got %d", session.Config.Agent.DelayMs)
	}
	if session.Config.FourProbability != 0 {
		t.Errorf("Expected four probability 0, got %g", session.Config.FourProbability)
	}
	if status := session.Agent.Status(); status.DelayMs != 0 {
		t.Errorf("Expected autoplay delay 0, got %d", status.DelayMs)
	}
}

func TestManager_DeleteStopsAgent(t *testing.T) {
	manager := NewManager()
	session, err := manager.Create("detach", createTestConfig())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if err := manager.Delete("DETACH"); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}
	if session.Agent.Running() {
		t.Error("Expected autoplay to be stopped")
	}
	if _, err := manager.Get("detach"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestManager_GetPersistedAnyCase(t *testing.T) {
	dir := t.TempDir()
	persistence, err := NewFilePersistence(dir)
	if err != nil {
		t.Fatalf("Failed to create persistence: %v", err)
	}
	if _, err := NewManagerWithPersistence(persistence).Create("Auto1", createTestConfig()); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	reloaded, err := NewFilePersistence(dir)
	if err != nil {
		t.Fatalf("Failed to reopen persistence: %v", err)
	}
	manager := NewManagerWithPersistence(reloaded)
	for _, id := range []string{"AUTO1", "auto1", "Auto1"} {
		session, err := manager.Get(id)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", id, err)
		}
		if !strings.EqualFold(session.ID, "auto1") {
			t.Errorf("Get(%q): expected session auto1, got %s", id, session.ID)
		}
	}
	if n := len(manager.List()); n != 1 {
		t.Errorf("Expected one session in memory, got %d", n)
	}
}
