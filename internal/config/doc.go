// Package config provides user configuration management for azurctl.
//
// This package manages a YAML-based configuration file that stores
// known receivers (host, port, nickname) and application preferences.
// The configuration follows OS-specific conventions for storage
// location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/azurctl/config.yaml or $HOME/.config/azurctl/config.yaml
//   - macOS: $HOME/.config/azurctl/config.yaml
//   - Windows: %LOCALAPPDATA%\azurctl\config.yaml
//
// # Usage Example
//
//	// Load the global registry
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Remember a receiver and make it the default
//	registry.Remember("living-room", "192.168.1.40", config.DefaultPort)
//	registry.Preferences.DefaultReceiver = "living-room"
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// LoadRegistry returns a lazily-loaded singleton; Save performs an
// atomic write via a temporary file and rename.
package config
