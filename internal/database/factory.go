package database

import (
	"fmt"
	"path/filepath"

	"matchup-go/internal/config"
	"matchup-go/internal/matchup"
)

// registryFileName is the database file created under data_dir.
const registryFileName = "matchup.db"

// NewRegistryFromConfig creates a Registry implementation based on the database config type.
func NewRegistryFromConfig(cfg config.DatabaseConfig) (matchup.Registry, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return openRegistry(filepath.Join(cfg.DataDir, registryFileName))
	case "memory":
		return openRegistry(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// openRegistry keeps a failed open from leaking a typed nil into the interface.
func openRegistry(path string) (matchup.Registry, error) {
	r, err := NewSQLiteRegistry(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}
