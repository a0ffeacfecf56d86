// Package config provides user configuration management for lifxlab.
//
// This package manages a YAML-based configuration file holding network
// addresses, discovery and command defaults, HTTP bridge settings, and
// user-defined device nicknames. The configuration follows OS-specific
// conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/lifxlab/config.yaml or $HOME/.config/lifxlab/config.yaml
//   - macOS: $HOME/.config/lifxlab/config.yaml
//   - Windows: %LOCALAPPDATA%\lifxlab\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg.SetNickname(target, "Kitchen")
//
//	// Save changes atomically
//	if err := cfg.Save(""); err != nil {
//	    log.Fatal(err)
//	}
//
// A missing file is not an error: Load returns Default(). Keys absent from
// the file keep their default values.
//
// # Thread Safety
//
// File operations are protected by a mutex to ensure atomic writes. A Config
// value itself is not safe for concurrent mutation.
package config
