package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kubex/caseload-identity/caseload"
)

type Config struct {
	// StorageConfig is the path to the storage provider JSON. Empty selects the in-memory store.
	StorageConfig        string
	// BootstrapFile is the path to the bootstrap role directory JSON. Empty means no entries.
	BootstrapFile        string
	LogMode              string
	DefaultRole          caseload.Role
	MigrationConcurrency int
}

func Load() (Config, error) {
	cfg := Config{
		StorageConfig: getenv("CASELOAD_STORAGE_CONFIG", ""),
		BootstrapFile: getenv("CASELOAD_BOOTSTRAP_FILE", ""),
		LogMode:       getenv("CASELOAD_LOG_MODE", "prod"),
	}

	role, err := caseload.ParseRole(getenv("CASELOAD_DEFAULT_ROLE", string(caseload.DefaultRole)))
	if err != nil {
		return Config{}, fmt.Errorf("CASELOAD_DEFAULT_ROLE: %w", err)
	}
	cfg.DefaultRole = role

	cfg.MigrationConcurrency, err = getenvInt("CASELOAD_MIGRATION_CONCURRENCY", 0)
	if err != nil {
		return Config{}, fmt.Errorf("CASELOAD_MIGRATION_CONCURRENCY: %w", err)
	}
	if cfg.MigrationConcurrency < 0 {
		return Config{}, fmt.Errorf("CASELOAD_MIGRATION_CONCURRENCY: must not be negative, got %d", cfg.MigrationConcurrency)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}
