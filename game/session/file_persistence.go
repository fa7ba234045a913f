package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/merge2048/game/engine"
	"github.com/wricardo/mcp-training/merge2048/game/service"
)

// bestScoreFile holds the best score shared by every session.
const bestScoreFile = "best_score.json"

// FilePersistence implements SessionPersistence using file system storage.
// Each session lives in <dir>/<id>.json; the session's engine writes the
// game_state field through ForSession.
type FilePersistence struct {
	sessionsDir string
	mu          sync.Mutex
}

// NewFilePersistence creates a new file-based session persistence layer
func NewFilePersistence(sessionsDir string) (*FilePersistence, error) {
	// Create sessions directory if it doesn't exist
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &FilePersistence{sessionsDir: sessionsDir}, nil
}

// Save persists a session's metadata to its JSON file
func (fp *FilePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	data, err := fp.read(session.ID)
	if errors.Is(err, ErrSessionNotFound) {
		data = &PersistedSessionData{ID: session.ID}
	} else if err != nil {
		return err
	}

	data.CreatedAt = session.CreatedAt
	data.LastAccessedAt = session.LastAccessedAt
	if session.Config != nil {
		data.ConfigName = session.Config.Name
		data.Config = session.Config
	}

	return fp.write(data)
}

// Load retrieves a session's data from its JSON file
func (fp *FilePersistence) Load(id string) (*PersistedSessionData, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.read(id)
}

// Delete removes a session file
func (fp *FilePersistence) Delete(id string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if err := os.Remove(fp.getFilePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to remove session file: %w", err)
	}

	return nil
}

// ListAll returns all persisted session IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessionIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if name == bestScoreFile {
			continue
		}
		if strings.HasSuffix(name, ".json") {
			sessionIDs = append(sessionIDs, strings.TrimSuffix(name, ".json"))
		}
	}

	return sessionIDs, nil
}

// Exists checks if a session file exists
func (fp *FilePersistence) Exists(id string) bool {
	_, err := os.Stat(fp.getFilePath(id))
	return err == nil
}

// ForSession returns the engine storage for a session.
func (fp *FilePersistence) ForSession(id string) engine.Storage {
	return &fileStorage{fp: fp, id: id}
}

// read loads a session file. The caller holds fp.mu.
func (fp *FilePersistence) read(id string) (*PersistedSessionData, error) {
	jsonData, err := os.ReadFile(fp.getFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return &data, nil
}

// write stores a session file. The caller holds fp.mu.
func (fp *FilePersistence) write(data *PersistedSessionData) error {
	// Marshal to JSON with indentation for readability
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	if err := os.WriteFile(fp.getFilePath(data.ID), jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// getFilePath returns the full file path for a session ID. IDs are
// case-insensitive, so files are always named in lower case.
func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.sessionsDir, fmt.Sprintf("%s.json", strings.ToLower(id)))
}

type bestScoreData struct {
	BestScore int `json:"best_score"`
}

func (fp *FilePersistence) bestScore() (int, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	jsonData, err := os.ReadFile(filepath.Join(fp.sessionsDir, bestScoreFile))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read best score: %w", err)
	}

	var data bestScoreData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return 0, fmt.Errorf("failed to unmarshal best score: %w", err)
	}
	return data.BestScore, nil
}

func (fp *FilePersistence) setBestScore(score int) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	jsonData, err := json.Marshal(bestScoreData{BestScore: score})
	if err != nil {
		return fmt.Errorf("failed to marshal best score: %w", err)
	}
	if err := os.WriteFile(filepath.Join(fp.sessionsDir, bestScoreFile), jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write best score: %w", err)
	}
	return nil
}

// fileStorage adapts one session file to engine.Storage.
type fileStorage struct {
	fp *FilePersistence
	id string
}

func (s *fileStorage) Load() (*engine.SerializedGameState, error) {
	data, err := s.fp.Load(s.id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data.GameState, nil
}

func (s *fileStorage) Save(state *engine.SerializedGameState) error {
	return s.update(func(data *PersistedSessionData) { data.GameState = state })
}

func (s *fileStorage) Clear() error {
	return s.update(func(data *PersistedSessionData) { data.GameState = nil })
}

func (s *fileStorage) BestScore() (int, error) {
	return s.fp.bestScore()
}

func (s *fileStorage) SetBestScore(score int) error {
	return s.fp.setBestScore(score)
}

func (s *fileStorage) update(fn func(*PersistedSessionData)) error {
	s.fp.mu.Lock()
	defer s.fp.mu.Unlock()

	data, err := s.fp.read(s.id)
	if errors.Is(err, ErrSessionNotFound) {
		data = &PersistedSessionData{ID: s.id}
	} else if err != nil {
		return err
	}

	fn(data)
	return s.fp.write(data)
}
