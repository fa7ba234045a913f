// Command merge2048 starts the 2048 game server.
//
// It supports three modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "play" – runs one autoplay game in the terminal
//
// Flags control host/port, config and sessions directories, debug logging,
// and optional ngrok tunneling for easy external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/merge2048/api"
	"github.com/wricardo/mcp-training/merge2048/game/agent"
	"github.com/wricardo/mcp-training/merge2048/game/autoplay"
	"github.com/wricardo/mcp-training/merge2048/game/config"
	"github.com/wricardo/mcp-training/merge2048/game/engine"
	"github.com/wricardo/mcp-training/merge2048/game/model"
	"github.com/wricardo/mcp-training/merge2048/game/service"
	"github.com/wricardo/mcp-training/merge2048/game/session"
	"github.com/wricardo/mcp-training/merge2048/transport/mcp"
	"github.com/wricardo/mcp-training/merge2048/transport/terminal"
	"github.com/wricardo/mcp-training/merge2048/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "merge2048 Game Server"
)

const (
	sessionMaxAge        = 24 * time.Hour
	sessionCleanupPeriod = 1 * time.Hour
	filesystemSyncPeriod = 5 * time.Second
	shutdownTimeout      = 10 * time.Second
)

// newCommand builds the CLI. Flags declared on the root are visible to every
// subcommand.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "merge2048",
		Usage:   "2048 game server with autoplay agents",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: "localhost",
				Usage: "HTTP server host",
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: envVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "Directory containing game presets",
				Sources: envVars("CONFIG_DIR"),
			},
			&cli.StringFlag{
				Name:    "sessions-dir",
				Value:   "sessions",
				Usage:   "Directory where sessions are persisted",
				Sources: envVars("SESSIONS_DIR"),
			},
			&cli.StringFlag{
				Name:    "default-preset",
				Usage:   "Preset used when a session or game names none",
				Sources: envVars("DEFAULT_PRESET"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "Enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "Ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "Custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Before: setupLogging,
		Action: runHTTPServer,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action:  runHTTPServer,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action:  runStdioMCPWithInternalServer,
			},
			{
				Name:  "play",
				Usage: "Watch an agent play one game in the terminal",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Value: string(agent.ModeRandom),
						Usage: "Agent mode (random, heuristic-deep, heuristic-sampling, learned-model)",
					},
					&cli.StringFlag{
						Name:  "preset",
						Usage: "Preset name from the config directory (default preset when empty)",
					},
					&cli.IntFlag{
						Name:  "delay-ms",
						Value: -1,
						Usage: "Minimum milliseconds per move (preset value when negative)",
					},
					&cli.IntFlag{
						Name:  "max-moves",
						Usage: "Stop after this many moves (0 plays until the game ends)",
					},
					&cli.StringFlag{
						Name:    "model-url",
						Usage:   "Override the preset's learned model URL",
						Sources: cli.EnvVars("MODEL_URL"),
					},
					&cli.StringFlag{
						Name:    "solver-url",
						Usage:   "Override the preset's remote solver URL",
						Sources: cli.EnvVars("SOLVER_URL"),
					},
					&cli.BoolFlag{
						Name:  "keep-playing",
						Usage: "Continue past the win value instead of stopping there",
					},
					&cli.BoolFlag{
						Name:  "no-color",
						Usage: "Disable colors",
					},
				},
				Action: runPlay,
			},
		},
	}
}

// envSource reads an environment variable, treating a blank value as unset
// so an empty entry in .env keeps the flag default.
type envSource string

func (e envSource) Lookup() (string, bool) {
	v, ok := os.LookupEnv(string(e))
	return v, ok && strings.TrimSpace(v) != ""
}

func (e envSource) IsFromEnv() bool  { return true }
func (e envSource) Key() string      { return string(e) }
func (e envSource) String() string   { return fmt.Sprintf("environment variable %q", string(e)) }
func (e envSource) GoString() string { return fmt.Sprintf("envSource(%q)", string(e)) }

// envVars chains envSource lookups in order.
func envVars(keys ...string) cli.ValueSourceChain {
	srcs := make([]cli.ValueSource, 0, len(keys))
	for _, key := range keys {
		srcs = append(srcs, envSource(key))
	}
	return cli.NewValueSourceChain(srcs...)
}

// main loads .env, then runs the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	envErr := godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	if envErr == nil {
		log.Debug().Msg("Loaded environment variables from .env file")
	} else if !os.IsNotExist(envErr) {
		log.Warn().Err(envErr).Msg("Error loading .env file")
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("exiting")
	}
}

// setupLogging sets the global level from --debug or LOG_LEVEL.
func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(lvl))
		if err != nil {
			return ctx, fmt.Errorf("invalid LOG_LEVEL %q: %w", lvl, err)
		}
		level = parsed
	}
	if cmd.Bool("debug") {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	return ctx, nil
}

// services holds the wired application components.
type services struct {
	game     service.GameService
	sessions *session.Manager
	persist  *session.FilePersistence
	configs  *config.Manager
	hub      *websocket.Hub
}

// initializeServices wires session/config managers, the model registry and
// the game service. Sessions render to and report autoplay events through
// the WebSocket hub.
func initializeServices(configDir, sessionsDir, defaultPreset string) (*services, error) {
	configManager, err := newConfigManager(configDir, defaultPreset)
	if err != nil {
		return nil, err
	}

	persistence, err := session.NewFilePersistence(sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	hub := websocket.NewHub()
	registry := model.NewRegistry(model.NewHTTPFetcher(), model.BuildNTuple)

	sessionManager := session.NewManagerWithPersistence(persistence,
		session.WithRenderers(hub.Renderer),
		session.WithAgentEvents(hub.BroadcastAgentEvent),
		session.WithAgentConfig(session.AgentConfigWithModels(registry)),
	)

	// Load persisted sessions on startup
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		log.Warn().Err(err).Msg("Failed to load persisted sessions")
	}

	gameService := service.NewGameService(sessionManager, configManager)
	hub.SetInputHandler(gameService.HandleInput)

	return &services{
		game:     gameService,
		sessions: sessionManager,
		persist:  persistence,
		configs:  configManager,
		hub:      hub,
	}, nil
}

// newConfigManager opens the preset directory and applies --default-preset.
func newConfigManager(configDir, defaultPreset string) (*config.Manager, error) {
	configManager, err := config.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	if defaultPreset != "" {
		if err := configManager.SetDefault(defaultPreset); err != nil {
			return nil, fmt.Errorf("invalid default preset: %w", err)
		}
		log.Info().Str("preset", defaultPreset).Msg("Default preset set")
	}
	return configManager, nil
}

// startBackground runs the hub and the session maintenance routines until
// ctx is cancelled.
func (s *services) startBackground(ctx context.Context) {
	go s.hub.Run()
	go sessionCleanupRoutine(ctx, s.sessions)
	go filesystemSyncRoutine(ctx, s.sessions, s.persist)
}

// shutdown stops autoplay loops and saves every session.
func (s *services) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.sessions.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to save sessions on shutdown")
	}
}

// newHandler combines the REST API with the /mcp proxy endpoint.
func newHandler(apiServer http.Handler, mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()

	// Mount API server at root
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, cmd *cli.Command) error {
	log.Info().Str("version", Version).Msgf("Starting %s", AppName)

	svc, err := initializeServices(cmd.String("config-dir"), cmd.String("sessions-dir"), cmd.String("default-preset"))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	svc.startBackground(ctx)

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))
	handler := newHandler(api.NewServer(svc.game, svc.hub), mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info().Str("addr", addr).Msg("HTTP server listening")
		log.Info().Msgf("REST API: http://%s/api", addr)
		log.Info().Msgf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Info().Msgf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), handler)
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
	case err = <-serverErr:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	svc.shutdown()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Info().Msg("Server stopped")
	return err
}

// runNgrokTunnel serves handler through an ngrok tunnel until ctx ends.
func runNgrokTunnel(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.Warn().Msg("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Info().Msg("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Info().Str("domain", domain).Msg("Using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error().Err(err).Msg("Failed to start ngrok tunnel")
		return
	}

	ngrokURL := tun.URL()
	log.Info().Str("url", ngrokURL).Msg("Ngrok tunnel established")
	log.Info().Msgf("  REST API (ngrok): %s/api", ngrokURL)
	log.Info().Msgf("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Info().Msgf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close ngrok tunnel")
		}
	}()

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Error().Err(err).Msg("Ngrok server error")
	}
	log.Info().Msg("Ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within the retention window.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager) {
	ticker := time.NewTicker(sessionCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
			log.Info().Int("removed", removed).Msg("Cleaned up expired sessions")
		}
	}
}

// filesystemSyncRoutine periodically syncs in-memory sessions with filesystem state.
// It removes sessions from memory when their corresponding files are deleted.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence) {
	ticker := time.NewTicker(filesystemSyncPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if pruned := pruneOrphanedSessions(manager, persistence); pruned > 0 {
			log.Info().Int("pruned", pruned).Msg("Filesystem sync: pruned orphaned sessions from memory")
		}
	}
}

func pruneOrphanedSessions(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, s := range manager.List() {
		if persistence.Exists(s.ID) {
			continue
		}
		// File deleted, remove from memory
		if err := manager.DeleteFromMemory(s.ID); err == nil {
			pruned++
			log.Debug().Str("session", s.ID).Msg("Pruned session from memory (file deleted)")
		}
	}
	return pruned
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API at the configured host and port; if
// unavailable, it starts an internal HTTP API bound to a random loopback port
// and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, cmd *cli.Command) error {
	externalURL := fmt.Sprintf("http://%s:%d", cmd.String("host"), cmd.Int("port"))
	log.Info().Str("url", externalURL).Msg("Checking for external API server")

	baseURL := externalURL
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Info().Msg("MCP stdio server ready (using external HTTP server)")
	} else {
		log.Info().Msg("No external API server found, starting internal HTTP server")

		svc, err := initializeServices(cmd.String("config-dir"), cmd.String("sessions-dir"), cmd.String("default-preset"))
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		svc.startBackground(ctx)
		defer svc.shutdown()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())

		httpServer := &http.Server{Handler: api.NewServer(svc.game, svc.hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		log.Info().Str("url", baseURL).Msg("MCP stdio server ready (using internal HTTP server)")
	}

	mcpClient := mcp.NewClient(baseURL)
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// runPlay plays one game in the terminal with the selected agent.
func runPlay(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("debug") && os.Getenv("LOG_LEVEL") == "" {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	mode, err := agent.ParseMode(cmd.String("mode"))
	if err != nil {
		return err
	}

	configs, err := newConfigManager(cmd.String("config-dir"), cmd.String("default-preset"))
	if err != nil {
		return err
	}
	cfg := configs.GetDefault()
	if preset := cmd.String("preset"); preset != "" {
		if cfg, err = configs.LoadConfig(preset); err != nil {
			return err
		}
	}
	cfg = playConfig(cfg, cmd.Int("delay-ms"), cmd.String("model-url"), cmd.String("solver-url"))

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var orch *autoplay.Orchestrator
	renderer := terminal.NewRenderer(os.Stdout,
		terminal.WithColor(!cmd.Bool("no-color")),
		terminal.WithClearScreen(true),
		terminal.WithFooter(func() string {
			if orch == nil {
				return ""
			}
			st := orch.Status()
			return fmt.Sprintf("agent: %s  moves: %d  avg: %.1fms", st.Mode, st.Moves, st.EMAMs)
		}),
	)

	game, err := engine.NewEngine(cfg, engine.WithStorage(session.NewMemoryStorage()))
	if err != nil {
		return err
	}
	game.Setup()

	registry := model.NewRegistry(model.NewHTTPFetcher(), model.BuildNTuple)
	agentCfg := session.AgentConfigWithModels(registry)(cfg)
	agentCfg.MaxMoves = cmd.Int("max-moves")

	// No one is at the keyboard to answer the win prompt, so the run either
	// accepts it on the player's behalf or ends there.
	var played autoplay.Game = game
	if cmd.Bool("keep-playing") {
		played = keepPlaying{game}
	} else {
		agentCfg.StopOnWin = true
	}
	orch = autoplay.New(played, agentCfg)
	defer orch.Close()
	game.SetRenderer(renderer)

	stopped := make(chan autoplay.Event, 1)
	orch.OnEvent(func(ev autoplay.Event) {
		if ev.Type == autoplay.EventStopped {
			select {
			case stopped <- ev:
			default:
			}
		}
	})

	if err := orch.SelectMode(mode); err != nil {
		return err
	}
	if err := orch.Activate(ctx); err != nil {
		return fmt.Errorf("failed to start %s: %w", mode, err)
	}

	var last autoplay.Event
	select {
	case last = <-stopped:
	case <-ctx.Done():
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if err := orch.Cancel(stopCtx); err != nil {
			return err
		}
		select {
		case last = <-stopped:
		case <-stopCtx.Done():
			return stopCtx.Err()
		}
	}

	state := game.GetState()
	fmt.Printf("Finished (%s): score %d, max tile %d, %d moves\n",
		last.Reason, state.Score, state.MaxTile, state.TotalMoves)
	return nil
}

// keepPlaying answers the win prompt with "keep going" as soon as it appears.
type keepPlaying struct {
	*engine.GameEngine
}

func (g keepPlaying) IsWonPending() bool {
	if g.GameEngine.IsWonPending() {
		g.ContinuePlaying()
	}
	return false
}

// playConfig applies the play command overrides to a copy of cfg.
func playConfig(cfg *engine.GameConfig, delayMs int, modelURL, solverURL string) *engine.GameConfig {
	cfg = cfg.Clone()
	cfg.ApplyDefaults()
	if delayMs >= 0 {
		cfg.Agent.DelayMs = delayMs
	}
	if modelURL != "" {
		cfg.Agent.ModelURL = modelURL
	}
	if solverURL != "" {
		cfg.Agent.SolverURL = solverURL
	}
	return cfg
}
