package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/merge2048/api"
	"github.com/wricardo/mcp-training/merge2048/game/engine"
	"github.com/wricardo/mcp-training/merge2048/transport/mcp"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName == "" {
		t.Error("AppName should not be empty")
	}
}

func TestCommandLayout(t *testing.T) {
	cmd := newCommand()

	for _, name := range []string{"host", "port", "config-dir", "sessions-dir", "default-preset", "debug", "ngrok", "ngrok-auth", "ngrok-domain"} {
		found := false
		for _, f := range cmd.Flags {
			for _, n := range f.Names() {
				if n == name {
					found = true
				}
			}
		}
		if !found {
			t.Errorf("Expected root flag --%s", name)
		}
	}

	commands := map[string][]string{
		"server":    {"http"},
		"stdio-mcp": {"mcp-stdio", "mcp"},
		"play":      nil,
	}
	for name, aliases := range commands {
		sub := cmd.Command(name)
		if sub == nil {
			t.Errorf("Expected subcommand %s", name)
			continue
		}
		for _, alias := range aliases {
			if cmd.Command(alias) != sub {
				t.Errorf("Expected %s to be an alias of %s", alias, name)
			}
		}
	}
}

func TestFlagDefaults(t *testing.T) {
	var host, configDir, sessionsDir string
	var port int

	cmd := newCommand()
	cmd.Before = nil
	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		host = c.String("host")
		port = c.Int("port")
		configDir = c.String("config-dir")
		sessionsDir = c.String("sessions-dir")
		return nil
	}
	t.Setenv("PORT", "9191")
	t.Setenv("CONFIG_DIR", "")
	t.Setenv("SESSIONS_DIR", "")

	if err := cmd.Run(context.Background(), []string{"merge2048"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if host != "localhost" {
		t.Errorf("Expected host localhost, got %s", host)
	}
	if port != 9191 {
		t.Errorf("Expected port from PORT env, got %d", port)
	}
	if configDir != "configs" {
		t.Errorf("Expected config dir configs, got %s", configDir)
	}
	if sessionsDir != "sessions" {
		t.Errorf("Expected sessions dir sessions, got %s", sessionsDir)
	}
}

func TestEnvSource(t *testing.T) {
	t.Setenv("MERGE2048_SET", "value")
	t.Setenv("MERGE2048_BLANK", "  ")

	tests := []struct {
		key   string
		value string
		found bool
	}{
		{"MERGE2048_SET", "value", true},
		{"MERGE2048_BLANK", "", false},
		{"MERGE2048_UNSET_FOR_TEST", "", false},
	}
	for _, tt := range tests {
		v, ok := envSource(tt.key).Lookup()
		if ok != tt.found || (ok && v != tt.value) {
			t.Errorf("Lookup(%s) = %q, %v; want %q, %v", tt.key, v, ok, tt.value, tt.found)
		}
	}

	chain := envVars("MERGE2048_BLANK", "MERGE2048_SET")
	if v, ok := chain.Lookup(); !ok || v != "value" {
		t.Errorf("Expected chain to skip the blank variable, got %q, %v", v, ok)
	}
	if keys := chain.EnvKeys(); len(keys) != 2 || keys[0] != "MERGE2048_BLANK" {
		t.Errorf("Expected env keys in help output, got %v", keys)
	}
}

func TestDefaultPresetFlag(t *testing.T) {
	if _, err := os.Stat("configs"); os.IsNotExist(err) {
		t.Skip("Skipping test - configs directory not found")
	}

	var preset string
	cmd := newCommand()
	cmd.Before = nil
	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		preset = c.String("default-preset")
		return nil
	}
	t.Setenv("DEFAULT_PRESET", "mini")
	if err := cmd.Run(context.Background(), []string{"merge2048"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if preset != "mini" {
		t.Fatalf("Expected preset from DEFAULT_PRESET, got %q", preset)
	}

	svc, err := initializeServices("configs", t.TempDir(), preset)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer svc.shutdown()

	info, err := svc.game.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if info.GameConfig == nil || info.GameConfig.Size != 3 {
		t.Errorf("Expected the mini preset for a session without a preset, got %+v", info.GameConfig)
	}

	if _, err := initializeServices("configs", t.TempDir(), "no-such-preset"); err == nil {
		t.Error("Expected error for unknown default preset")
	}
}

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	tests := []struct {
		name     string
		args     []string
		logLevel string
		expected zerolog.Level
		wantErr  bool
	}{
		{"Default", []string{"merge2048"}, "", zerolog.InfoLevel, false},
		{"Debug flag", []string{"merge2048", "--debug"}, "", zerolog.DebugLevel, false},
		{"LOG_LEVEL", []string{"merge2048"}, "WARN", zerolog.WarnLevel, false},
		{"Invalid LOG_LEVEL", []string{"merge2048"}, "loud", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.logLevel)
			zerolog.SetGlobalLevel(zerolog.InfoLevel)

			cmd := newCommand()
			cmd.Action = func(ctx context.Context, c *cli.Command) error { return nil }
			err := cmd.Run(context.Background(), tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && zerolog.GlobalLevel() != tt.expected {
				t.Errorf("Expected level %s, got %s", tt.expected, zerolog.GlobalLevel())
			}
		})
	}
}

func TestInitializeServices(t *testing.T) {
	if _, err := os.Stat("configs"); os.IsNotExist(err) {
		t.Skip("Skipping test - configs directory not found")
	}

	svc, err := initializeServices("configs", t.TempDir(), "")
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer svc.shutdown()

	info, err := svc.game.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if !svc.persist.Exists(info.ID) {
		t.Errorf("Expected session %s to be persisted", info.ID)
	}
}

func TestInitializeServices_InvalidConfigDir(t *testing.T) {
	_, err := initializeServices("/non/existent/path", t.TempDir(), "")
	if err == nil {
		t.Error("Expected error for non-existent config directory")
	}
}

func TestPruneOrphanedSessions(t *testing.T) {
	if _, err := os.Stat("configs"); os.IsNotExist(err) {
		t.Skip("Skipping test - configs directory not found")
	}

	svc, err := initializeServices("configs", t.TempDir(), "")
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	keep, _ := svc.game.CreateSession(context.Background(), "")
	gone, _ := svc.game.CreateSession(context.Background(), "")
	if err := svc.persist.Delete(gone.ID); err != nil {
		t.Fatalf("Failed to delete session file: %v", err)
	}

	if pruned := pruneOrphanedSessions(svc.sessions, svc.persist); pruned != 1 {
		t.Errorf("Expected 1 pruned session, got %d", pruned)
	}
	if _, err := svc.sessions.Get(keep.ID); err != nil {
		t.Errorf("Expected session %s to survive, got %v", keep.ID, err)
	}
}

func TestNewHandler(t *testing.T) {
	if _, err := os.Stat("configs"); os.IsNotExist(err) {
		t.Skip("Skipping test - configs directory not found")
	}

	svc, err := initializeServices("configs", t.TempDir(), "")
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	go svc.hub.Run()

	handler := newHandler(api.NewServer(svc.game, svc.hub), mcp.NewClient("http://127.0.0.1:1"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected /health to return 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/mcp", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected GET /mcp to return 405, got %d", w.Code)
	}

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/mcp", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Errorf("Expected POST /mcp to return 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "toggle_agent") {
		t.Errorf("Expected tools/list to include toggle_agent, got %s", w.Body.String())
	}
}

func TestPlayConfig(t *testing.T) {
	base := &engine.GameConfig{Name: "classic", Agent: &engine.AgentSettings{DelayMs: 100, ModelURL: "http://a"}}

	cfg := playConfig(base, 0, "", "http://solver")
	if cfg.Agent.DelayMs != 0 {
		t.Errorf("Expected delay 0, got %d", cfg.Agent.DelayMs)
	}
	if cfg.Agent.ModelURL != "http://a" {
		t.Errorf("Expected model URL to be kept, got %s", cfg.Agent.ModelURL)
	}
	if cfg.Agent.SolverURL != "http://solver" {
		t.Errorf("Expected solver URL override, got %s", cfg.Agent.SolverURL)
	}
	if base.Agent.DelayMs != 100 || base.Agent.SolverURL != "" {
		t.Error("Expected the preset to be left untouched")
	}

	cfg = playConfig(base, -1, "http://b", "")
	if cfg.Agent.DelayMs != 100 {
		t.Errorf("Expected preset delay for negative override, got %d", cfg.Agent.DelayMs)
	}
	if cfg.Agent.ModelURL != "http://b" {
		t.Errorf("Expected model URL override, got %s", cfg.Agent.ModelURL)
	}
}

func TestKeepPlaying(t *testing.T) {
	cfg := &engine.GameConfig{Name: "tiny", Size: 2, WinValue: 8, StartTiles: 2, FourProbability: 1}
	game, err := engine.NewEngine(cfg)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	game.Setup()

	// Two 4s on a 2x2 board merge into 8 within a few Left/Up moves.
	for i := 0; i < 10 && !game.IsWonPending(); i++ {
		if i%2 == 0 {
			game.Move(engine.Left)
		} else {
			game.Move(engine.Up)
		}
	}
	if !game.IsWonPending() {
		t.Fatal("Expected the game to reach the win value")
	}

	if (keepPlaying{game}).IsWonPending() {
		t.Error("Expected keepPlaying to never report a pending win")
	}
	if game.IsWonPending() || !game.GetState().KeepPlaying {
		t.Error("Expected keepPlaying to continue the game past the win")
	}
}

func TestPlayFlags(t *testing.T) {
	play := newCommand().Command("play")
	if play == nil {
		t.Fatal("Expected play subcommand")
	}
	for _, name := range []string{"mode", "preset", "delay-ms", "max-moves", "model-url", "solver-url", "keep-playing", "no-color"} {
		found := false
		for _, f := range play.Flags {
			for _, n := range f.Names() {
				if n == name {
					found = true
				}
			}
		}
		if !found {
			t.Errorf("Expected play flag --%s", name)
		}
	}
}
