// Command validate checks the game presets in the ../configs directory
// (or the directory given as the first argument). Each .hcl or .json file is
// loaded through the same config manager the server uses, then checked for:
//   - a name matching the file name
//   - a win value the board can actually hold
//   - well formed agent endpoints
package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/merge2048/game/config"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validatePreset loads one preset file from the manager's directory and
// validates it.
func validatePreset(manager *config.Manager, filePath string) ValidationResult {
	file := filepath.Base(filePath)
	result := ValidationResult{
		File:   file,
		Valid:  true,
		Errors: []string{},
	}

	name := strings.TrimSuffix(file, filepath.Ext(file))
	cfg, err := manager.LoadConfig(file)
	if err != nil {
		result.fail("%v", err)
		return result
	}

	if cfg.Name != name {
		result.fail("name %q does not match file name %q", cfg.Name, name)
	}

	// A board of n cells tops out at 2^(n+1) when every spawn is a 4.
	cells := cfg.Size * cfg.Size
	if maxTile := maxReachableTile(cells); cfg.WinValue > maxTile {
		result.fail("win_value %d cannot be reached on a %dx%d board (max %d)", cfg.WinValue, cfg.Size, cfg.Size, maxTile)
	}

	if cfg.Agent != nil {
		for field, raw := range map[string]string{"model_url": cfg.Agent.ModelURL, "solver_url": cfg.Agent.SolverURL} {
			if raw == "" {
				continue
			}
			if err := checkEndpoint(raw); err != nil {
				result.fail("agent.%s: %v", field, err)
			}
		}
	}

	if result.Valid {
		result.info("Name: %s", cfg.Name)
		result.info("Board: %dx%d", cfg.Size, cfg.Size)
		result.info("Win value: %d", cfg.WinValue)
		result.info("Start tiles: %d (four chance %.0f%%)", cfg.StartTiles, cfg.FourProbability*100)
		result.info("Agent delay: %dms", cfg.Agent.DelayMs)
	}

	return result
}

// maxReachableTile returns the largest tile a board with the given number of
// cells can produce.
func maxReachableTile(cells int) int {
	if cells+1 >= 62 {
		return int(^uint(0) >> 1)
	}
	return 1 << (cells + 1)
}

func checkEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// presetFiles lists the preset files in dir in name order.
func presetFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.hcl", "*.json"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}

// main scans the preset directory and validates each file, printing a
// concise report and exiting with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	manager, err := config.NewManager(configDir)
	if err != nil {
		fmt.Printf("Error opening config directory: %v\n", err)
		os.Exit(1)
	}

	files, err := presetFiles(configDir)
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No presets found in %s\n", configDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validatePreset(manager, file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
