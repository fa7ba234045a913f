package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog/log"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/wricardo/mcp-training/merge2048/game/engine"
	"github.com/wricardo/mcp-training/merge2048/game/service"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// DefaultName is the preset used when none is requested.
const DefaultName = "classic"

// extensions lists the preset file formats in lookup order.
var extensions = []string{".hcl", ".json"}

// Manager handles game configuration loading and caching
type Manager struct {
	configDir     string
	defaultName   string
	defaultConfig *engine.GameConfig
	configs       map[string]*engine.GameConfig
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	// Ensure config directory exists
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir:   configDir,
		defaultName: DefaultName,
		configs:     make(map[string]*engine.GameConfig),
	}

	m.defaultConfig = m.loadDefaultConfig()
	return m, nil
}

// LoadConfig loads a configuration by name. The name may carry a .hcl or
// .json extension; without one, .hcl is tried first.
func (m *Manager) LoadConfig(name string) (*engine.GameConfig, error) {
	id := configID(name)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return nil, fmt.Errorf("%w: %q", ErrConfigNotFound, name)
	}

	m.mu.RLock()
	// Check cache first
	if config, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	// Load from file
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[id]; exists {
		return config, nil
	}

	path, err := m.findFile(name)
	if err != nil {
		return nil, err
	}

	config, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	// Cache the config
	m.configs[id] = config
	return config, nil
}

// findFile resolves a preset name to a file in the config directory.
func (m *Manager) findFile(name string) (string, error) {
	candidates := []string{name}
	if !hasPresetExt(name) {
		candidates = candidates[:0]
		for _, ext := range extensions {
			candidates = append(candidates, name+ext)
		}
	}

	for _, filename := range candidates {
		path := filepath.Join(m.configDir, filename)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to stat config file: %w", err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrConfigNotFound, name)
}

// parseFile decodes an HCL or JSON preset, applies defaults and validates it.
// Expressions may reference environment variables as env.NAME.
func parseFile(path string) (*engine.GameConfig, error) {
	parser := hclparse.NewParser()

	var file *hcl.File
	var diags hcl.Diagnostics
	if filepath.Ext(path) == ".json" {
		file, diags = parser.ParseJSONFile(path)
	} else {
		file, diags = parser.ParseHCLFile(path)
	}
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to parse %s: %s", ErrInvalidConfig, filepath.Base(path), diags.Error())
	}

	var p preset
	if diags := gohcl.DecodeBody(file.Body, evalContext(), &p); diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to decode %s: %s", ErrInvalidConfig, filepath.Base(path), diags.Error())
	}

	config := p.gameConfig()
	if err := engine.ValidateGameConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return config, nil
}

// preset is the file form of engine.GameConfig. Optional numbers are pointers
// so an explicit zero (no pacing delay, no 4 spawns) is told apart from an
// omitted attribute.
type preset struct {
	Name            string       `hcl:"name"`
	Description     string       `hcl:"description,optional"`
	Size            *int         `hcl:"size,optional"`
	WinValue        *int         `hcl:"win_value,optional"`
	StartTiles      *int         `hcl:"start_tiles,optional"`
	FourProbability *float64     `hcl:"four_probability,optional"`
	Agent           *presetAgent `hcl:"agent,block"`
}

type presetAgent struct {
	DelayMs   *int   `hcl:"delay_ms,optional"`
	PollMs    *int   `hcl:"poll_ms,optional"`
	ModelURL  string `hcl:"model_url,optional"`
	SolverURL string `hcl:"solver_url,optional"`
}

// gameConfig overlays the attributes set in the file on the defaults.
func (p *preset) gameConfig() *engine.GameConfig {
	config := engine.DefaultConfig()
	config.Name = p.Name
	config.Description = p.Description
	setInt(&config.Size, p.Size)
	setInt(&config.WinValue, p.WinValue)
	setInt(&config.StartTiles, p.StartTiles)
	if p.FourProbability != nil {
		config.FourProbability = *p.FourProbability
	}
	if a := p.Agent; a != nil {
		setInt(&config.Agent.DelayMs, a.DelayMs)
		setInt(&config.Agent.PollMs, a.PollMs)
		config.Agent.ModelURL = a.ModelURL
		config.Agent.SolverURL = a.SolverURL
	}
	config.ApplyDefaults()
	return config
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// evalContext exposes the process environment to preset expressions, e.g.
// model_url = lookup(env, "MODEL_URL", "").
func evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			continue
		}
		env[name] = cty.StringVal(value)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
		Functions: map[string]function.Function{
			"lookup":   stdlib.LookupFunc,
			"coalesce": stdlib.CoalesceFunc,
			"lower":    stdlib.LowerFunc,
			"upper":    stdlib.UpperFunc,
		},
	}
}

// ListConfigs returns information about all available configurations
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || !hasPresetExt(entry.Name()) {
			continue
		}

		name := configID(entry.Name())
		if seen[name] {
			continue
		}

		// Try to load the config to get details
		config, err := m.LoadConfig(name)
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("skipping invalid config")
			continue
		}
		seen[name] = true

		configs = append(configs, &service.ConfigInfo{
			Filename:    entry.Name(),
			ConfigID:    name, // This is the identifier to use for session creation
			Name:        config.Name,
			Description: config.Description,
			Size:        config.Size,
			WinValue:    config.WinValue,
		})
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].ConfigID < configs[j].ConfigID })
	return configs, nil
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.GameConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default configuration by name. The choice survives
// RefreshCache.
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultName = configID(name)
	m.defaultConfig = config
	return nil
}

// RefreshCache drops all cached configurations and reloads the default
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.configs = make(map[string]*engine.GameConfig)
	m.mu.Unlock()

	def := m.loadDefaultConfig()

	m.mu.Lock()
	m.defaultConfig = def
	m.mu.Unlock()
}

// loadDefaultConfig loads the default preset (classic unless SetDefault
// chose another), else the first valid preset, else the built-in classic game.
func (m *Manager) loadDefaultConfig() *engine.GameConfig {
	m.mu.RLock()
	name := m.defaultName
	m.mu.RUnlock()

	if config, err := m.LoadConfig(name); err == nil {
		return config
	} else if !errors.Is(err, ErrConfigNotFound) {
		log.Warn().Err(err).Msg("default config is invalid")
	}

	configs, err := m.ListConfigs()
	if err == nil && len(configs) > 0 {
		if config, err := m.LoadConfig(configs[0].ConfigID); err == nil {
			return config
		}
	}

	log.Info().Str("dir", m.configDir).Msg("no presets found, using built-in classic config")
	return engine.DefaultConfig()
}

// SaveConfig saves a configuration to disk as JSON
func (m *Manager) SaveConfig(name string, config *engine.GameConfig) error {
	id := configID(name)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: invalid config name %q", ErrInvalidConfig, name)
	}
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	config = config.Clone()
	config.ApplyDefaults()

	// Validate config before saving
	if err := engine.ValidateGameConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// Marshal config to JSON with indentation
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := filepath.Join(m.configDir, id+".json")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// Update cache
	m.mu.Lock()
	m.configs[id] = config
	m.mu.Unlock()

	return nil
}

func hasPresetExt(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// configID strips a preset extension from name.
func configID(name string) string {
	if hasPresetExt(name) {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}
