package database

import (
	"os"
	"path/filepath"
	"testing"

	"matchup-go/internal/config"
)

func TestNewRegistryFromConfig(t *testing.T) {
	t.Run("memory database", func(t *testing.T) {
		got, err := NewRegistryFromConfig(config.DatabaseConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("NewRegistryFromConfig() unexpected error: %v", err)
		}
		if got == nil {
			t.Fatal("NewRegistryFromConfig() returned nil")
		}
		got.Close()
	})

	t.Run("sqlite database", func(t *testing.T) {
		dir := t.TempDir()
		got, err := NewRegistryFromConfig(config.DatabaseConfig{Type: "sqlite", DataDir: dir})
		if err != nil {
			t.Fatalf("NewRegistryFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if _, err := os.Stat(filepath.Join(dir, "matchup.db")); err != nil {
			t.Errorf("database file not created: %v", err)
		}
	})

	t.Run("sqlite database without data_dir", func(t *testing.T) {
		got, err := NewRegistryFromConfig(config.DatabaseConfig{Type: "sqlite"})
		if err == nil {
			t.Error("NewRegistryFromConfig() expected error for missing data_dir, got nil")
		}
		if got != nil {
			t.Error("NewRegistryFromConfig() should return nil on error")
			got.Close()
		}
	})

	t.Run("unknown database type", func(t *testing.T) {
		got, err := NewRegistryFromConfig(config.DatabaseConfig{Type: "unknown"})
		if err == nil {
			t.Error("NewRegistryFromConfig() expected error for unknown type, got nil")
		}
		if got != nil {
			t.Error("NewRegistryFromConfig() should return nil on error")
			got.Close()
		}
	})
}
