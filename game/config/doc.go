// Package config provides preset management for the 2048 server.
//
// The config package handles:
//   - Loading game presets from HCL and JSON files
//   - Applying defaults and validating presets
//   - Default preset selection
//   - Preset discovery and listing
//
// Preset Format:
//
// Presets live in the config directory as <name>.hcl or <name>.json. Both are
// decoded with the same schema:
//
//	name             = "classic"
//	description      = "Classic 4x4 board"
//	size             = 4      # 2..8
//	win_value        = 2048   # power of two >= 8
//	start_tiles      = 2
//	four_probability = 0.1
//
//	agent {
//	  delay_ms   = 100
//	  poll_ms    = 10
//	  model_url  = lookup(env, "MODEL_URL", "")
//	  solver_url = lookup(env, "SOLVER_URL", "")
//	}
//
// Omitted or zero values take their defaults. The env object holds the
// process environment.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal().Err(err).Send()
//	}
//
//	gameConfig, err := manager.LoadConfig("mini")
//	defaultConfig := manager.GetDefault()
//	configs, err := manager.ListConfigs()
//
// The default preset is classic, else the first valid preset in the directory,
// else a built-in classic game.
package config
