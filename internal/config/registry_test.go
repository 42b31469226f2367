package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	// Should not be empty
	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	// Should contain "azurctl"
	if !strings.Contains(configDir, "azurctl") {
		t.Errorf("GetConfigDir() = %v, should contain 'azurctl'", configDir)
	}

	// Platform-specific checks
	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin", "linux":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	// Should end with config.yaml
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}

	if reg.Receivers == nil {
		t.Error("NewRegistry().Receivers should not be nil")
	}

	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should not be nil")
	}

	if reg.Preferences.WatchRefresh != 2 {
		t.Errorf("NewRegistry().Preferences.WatchRefresh = %v, want 2", reg.Preferences.WatchRefresh)
	}
}

func TestRegistryRemember(t *testing.T) {
	reg := NewRegistry()

	before := time.Now()
	rec := reg.Remember("living-room", "192.168.1.40", DefaultPort)
	if rec == nil {
		t.Fatal("Remember() returned nil")
	}
	if rec.Host != "192.168.1.40" || rec.Port != DefaultPort {
		t.Errorf("Remember() stored %s:%d, want 192.168.1.40:%d", rec.Host, rec.Port, DefaultPort)
	}
	if rec.LastSeen.Before(before) {
		t.Error("Remember() should stamp LastSeen")
	}

	// Updating the same name should reuse the entry
	rec2 := reg.Remember("living-room", "192.168.1.41", 15000)
	if rec != rec2 {
		t.Error("Remember() should return same instance for same name")
	}
	if rec.Host != "192.168.1.41" || rec.Port != 15000 {
		t.Errorf("Remember() did not update entry, got %s:%d", rec.Host, rec.Port)
	}

	if len(reg.Receivers) != 1 {
		t.Errorf("registry has %d receivers, want 1", len(reg.Receivers))
	}
}

func TestRegistryDefault(t *testing.T) {
	reg := NewRegistry()

	// No receivers: no default
	if reg.Default() != nil {
		t.Error("Default() on empty registry should be nil")
	}

	// Single receiver: implicit default
	only := reg.Remember("den", "10.0.0.5", DefaultPort)
	if reg.Default() != only {
		t.Error("Default() should return the sole receiver")
	}

	// Two receivers, no preference: ambiguous
	reg.Remember("attic", "10.0.0.6", DefaultPort)
	if reg.Default() != nil {
		t.Error("Default() should be nil when ambiguous")
	}

	// Explicit preference wins
	reg.Preferences.DefaultReceiver = "attic"
	def := reg.Default()
	if def == nil || def.Host != "10.0.0.6" {
		t.Errorf("Default() = %+v, want the attic receiver", def)
	}
}

func TestRegistrySaveAndReload(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test relies on XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	reg := NewRegistry()
	reg.Remember("living-room", "192.168.1.40", DefaultPort)
	reg.Preferences.DefaultReceiver = "living-room"

	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := ReloadRegistry()
	if err != nil {
		t.Fatalf("ReloadRegistry() error = %v", err)
	}

	rec := loaded.Lookup("living-room")
	if rec == nil {
		t.Fatal("reloaded registry is missing the saved receiver")
	}
	if rec.Host != "192.168.1.40" || rec.Port != DefaultPort {
		t.Errorf("reloaded receiver = %s:%d, want 192.168.1.40:%d", rec.Host, rec.Port, DefaultPort)
	}
	if loaded.Preferences.DefaultReceiver != "living-room" {
		t.Errorf("reloaded default = %q, want living-room", loaded.Preferences.DefaultReceiver)
	}
}
