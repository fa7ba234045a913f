package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/merge2048/game/agent"
	"github.com/wricardo/mcp-training/merge2048/game/autoplay"
	"github.com/wricardo/mcp-training/merge2048/game/engine"
	"github.com/wricardo/mcp-training/merge2048/game/model"
	"github.com/wricardo/mcp-training/merge2048/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// agentStopTimeout bounds how long deleting a session waits for its
// autoplay loop to stop.
const agentStopTimeout = 5 * time.Second

// RendererFunc returns the render sink for a session, or nil for none.
type RendererFunc func(sessionID string) engine.Renderer

// AgentConfigFunc derives the autoplay configuration for a session's preset.
type AgentConfigFunc func(config *engine.GameConfig) autoplay.Config

// EventFunc receives autoplay events of every session.
type EventFunc func(sessionID string, ev autoplay.Event)

// Option configures a Manager.
type Option func(*Manager)

// WithRenderers sets the render sink factory for new sessions.
func WithRenderers(fn RendererFunc) Option {
	return func(m *Manager) { m.renderers = fn }
}

// WithAgentConfig sets how sessions configure autoplay.
func WithAgentConfig(fn AgentConfigFunc) Option {
	return func(m *Manager) { m.agentConfig = fn }
}

// WithAgentEvents forwards autoplay events of every session to fn.
func WithAgentEvents(fn EventFunc) Option {
	return func(m *Manager) { m.agentEvents = fn }
}

// DefaultAgentConfig builds the autoplay configuration from a preset's agent
// block, without a model loader.
func DefaultAgentConfig(config *engine.GameConfig) autoplay.Config {
	settings := config.Agent
	if settings == nil {
		settings = &engine.AgentSettings{DelayMs: engine.DefaultDelayMs, PollMs: engine.DefaultPollMs}
	}
	return autoplay.Config{
		Delay:        time.Duration(settings.DelayMs) * time.Millisecond,
		PollInterval: time.Duration(settings.PollMs) * time.Millisecond,
		Factory:      agent.NewFactory(agent.FactoryConfig{SolverURL: settings.SolverURL}),
	}
}

// AgentConfigWithModels extends DefaultAgentConfig with the shared loader of
// the preset's model URL.
func AgentConfigWithModels(registry *model.Registry) AgentConfigFunc {
	return func(config *engine.GameConfig) autoplay.Config {
		cfg := DefaultAgentConfig(config)
		if config.Agent != nil {
			if loader := registry.Loader(config.Agent.ModelURL); loader != nil {
				cfg.Loader = loader
			}
		}
		return cfg
	}
}

// Manager handles game session lifecycle
type Manager struct {
	sessions    map[string]*service.Session
	persistence SessionPersistence
	renderers   RendererFunc
	agentConfig AgentConfigFunc
	agentEvents EventFunc
	mu          sync.RWMutex
}

// NewManager creates a new session manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*service.Session),
		agentConfig: DefaultAgentConfig,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewManagerWithPersistence creates a new session manager with persistence
func NewManagerWithPersistence(persistence SessionPersistence, opts ...Option) *Manager {
	m := NewManager(opts...)
	m.persistence = persistence
	return m
}

// Create creates a new session with the given ID and configuration
func (m *Manager) Create(id string, config *engine.GameConfig) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.generateSessionID()
		for m.sessionExists(id) {
			id = m.generateSessionID()
		}
	}

	if !validSessionID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}

	// Check if session already exists (case-insensitive)
	if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	now := time.Now()
	session, err := m.build(id, config, now, now)
	if err != nil {
		return nil, err
	}

	m.sessions[strings.ToLower(id)] = session

	// Auto-save if persistence is enabled
	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			// Log error but don't fail the creation
			log.Warn().Err(err).Str("session", id).Msg("failed to persist session")
		}
	}

	return session, nil
}

// build wires an engine, its storage and render sink, and an autoplay
// orchestrator into a session. The engine is set up before returning, which
// restores a persisted game when one exists.
func (m *Manager) build(id string, config *engine.GameConfig, createdAt, lastAccessed time.Time) (*service.Session, error) {
	if config == nil {
		config = engine.DefaultConfig()
	}
	config = config.Clone()

	var storage engine.Storage = NewMemoryStorage()
	if m.persistence != nil {
		storage = m.persistence.ForSession(id)
	}
	opts := []engine.Option{engine.WithStorage(storage)}
	if m.renderers != nil {
		if r := m.renderers(id); r != nil {
			opts = append(opts, engine.WithRenderer(r))
		}
	}

	eng, err := engine.NewEngine(config, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	eng.Setup()

	orchestrator := autoplay.New(eng, m.agentConfig(config))
	if m.agentEvents != nil {
		orchestrator.OnEvent(func(ev autoplay.Event) {
			m.agentEvents(id, ev)
		})
	}

	return &service.Session{
		ID:             id,
		Engine:         eng,
		Agent:          orchestrator,
		Config:         config,
		CreatedAt:      createdAt,
		LastAccessedAt: lastAccessed,
	}, nil
}

// Get retrieves a session by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	session, exists := m.lookup(id)
	m.mu.RUnlock()

	if exists {
		return session, nil
	}

	// Try loading from persistence if not in memory
	if m.persistence != nil && validSessionID(id) && m.persistence.Exists(id) {
		m.mu.Lock()
		defer m.mu.Unlock()

		// Another caller may have loaded it while we waited for the lock
		if session, exists := m.lookup(id); exists {
			return session, nil
		}

		session, err := m.loadPersisted(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted session: %w", err)
		}
		m.sessions[strings.ToLower(id)] = session
		return session, nil
	}

	return nil, ErrSessionNotFound
}

func (m *Manager) loadPersisted(id string) (*service.Session, error) {
	data, err := m.persistence.Load(id)
	if err != nil {
		return nil, err
	}
	if data.ID == "" {
		data.ID = id
	}
	return m.build(data.ID, data.Config, data.CreatedAt, data.LastAccessedAt)
}

// GetOrCreate gets an existing session or creates a new one
func (m *Manager) GetOrCreate(id string, config *engine.GameConfig) (*service.Session, error) {
	// Try to get existing session first
	session, err := m.Get(id)
	if err == nil {
		return session, nil
	}

	// Create new session if not found
	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, config)
	}

	return nil, err
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	return result
}

// Delete stops the session's autoplay and removes the session
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, inMemory := m.lookup(id)
	if inMemory {
		stopAgent(session)
		delete(m.sessions, strings.ToLower(id))
		delete(m.sessions, id)
	}

	// Delete from persistence if it exists
	if m.persistence != nil && validSessionID(id) && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	// If not in persistence and not in memory, it doesn't exist
	if !inMemory {
		return ErrSessionNotFound
	}

	return nil
}

// DeleteFromMemory removes a session from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.lookup(id)
	if !exists {
		return ErrSessionNotFound
	}
	stopAgent(session)
	delete(m.sessions, strings.ToLower(id))
	delete(m.sessions, id)
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.lookup(id)
	if !exists {
		return ErrSessionNotFound
	}

	session.LastAccessedAt = time.Now()

	// Auto-save if persistence is enabled
	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("failed to persist session after access update")
		}
	}

	return nil
}

// Save saves a specific session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	m.mu.RLock()
	session, exists := m.lookup(id)
	m.mu.RUnlock()
	if !exists {
		return ErrSessionNotFound
	}

	return m.persistence.Save(session)
}

// CleanupExpiredSessions removes sessions that haven't been accessed in the
// given duration. Sessions with a running autoplay loop are kept.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, session := range m.sessions {
		if session.LastAccessedAt.Before(cutoff) && !session.Agent.Running() {
			session.Agent.Close()
			delete(m.sessions, id)
			removed++
		}
	}

	return removed
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops every autoplay loop and saves all sessions.
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, session := range m.List() {
		if err := session.Agent.Cancel(ctx); err != nil {
			log.Warn().Err(err).Str("session", session.ID).Msg("autoplay did not stop before shutdown")
		}
	}
	return m.SaveAllSessions()
}

// generateSessionID generates a random 4-character session ID
func (m *Manager) generateSessionID() string {
	// Generate 2 random bytes (4 hex characters)
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// validSessionID reports whether id is safe to use as a file name.
func validSessionID(id string) bool {
	if id == "" || len(id) > 64 || id+".json" == bestScoreFile {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// lookup finds a session in memory. The caller holds m.mu.
func (m *Manager) lookup(id string) (*service.Session, bool) {
	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		// Try exact match for backward compatibility
		session, exists = m.sessions[id]
	}
	return session, exists
}

// sessionExists checks if a session exists in memory (case-insensitive) or in
// persistence.
func (m *Manager) sessionExists(id string) bool {
	if _, exists := m.lookup(id); exists {
		return true
	}
	return m.persistence != nil && m.persistence.Exists(id)
}

// stopAgent cancels the session's autoplay and detaches it from the shared
// model loader.
func stopAgent(session *service.Session) {
	if session.Agent == nil {
		return
	}
	defer session.Agent.Close()
	if !session.Agent.Running() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), agentStopTimeout)
	defer cancel()
	if err := session.Agent.Cancel(ctx); err != nil {
		log.Warn().Err(err).Str("session", session.ID).Msg("autoplay did not stop")
	}
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loadedCount := 0
	for _, id := range sessionIDs {
		// Skip if already loaded in memory
		if _, exists := m.lookup(id); exists {
			continue
		}

		session, err := m.loadPersisted(id)
		if err != nil {
			log.Warn().Err(err).Str("session", id).Msg("failed to load persisted session")
			continue
		}

		m.sessions[strings.ToLower(id)] = session
		loadedCount++
	}

	if loadedCount > 0 {
		log.Info().Int("count", loadedCount).Msg("loaded persisted sessions from storage")
	}

	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	errorCount := 0
	for _, session := range m.List() {
		if err := m.persistence.Save(session); err != nil {
			log.Warn().Err(err).Str("session", session.ID).Msg("failed to save session")
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}

	return nil
}
