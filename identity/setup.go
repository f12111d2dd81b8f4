package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/kubex/caseload-identity/bootstrap"
	"github.com/kubex/caseload-identity/caseload"
	"github.com/kubex/caseload-identity/config"
	"github.com/kubex/caseload-identity/logger"
	"github.com/kubex/caseload-identity/storage"
	"github.com/kubex/caseload-identity/storage/memory"
)

// initializer is implemented by stores that manage their own schema.
type initializer interface {
	Initialize(ctx context.Context) error
}

// Setup builds a connected resolver from process configuration. The returned
// close function releases the store and flushes the logger.
func Setup(ctx context.Context, cfg config.Config) (*Resolver, storage.Provider, func() error, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("unable to build logger: %w", err)
	}

	var store storage.Provider = memory.New()
	if cfg.StorageConfig != "" {
		if store, err = storage.LoadFile(cfg.StorageConfig); err != nil {
			return nil, nil, nil, err
		}
	}
	if err := store.Connect(); err != nil {
		return nil, nil, nil, caseload.Unavailable("connect", err)
	}
	if in, ok := store.(initializer); ok {
		if err := in.Initialize(ctx); err != nil {
			return nil, nil, nil, errors.Join(caseload.Unavailable("initialize", err), store.Close())
		}
	}

	directory := bootstrap.Empty()
	if cfg.BootstrapFile != "" {
		if directory, err = bootstrap.FromFile(cfg.BootstrapFile); err != nil {
			return nil, nil, nil, errors.Join(err, store.Close())
		}
	}

	opts := []Option{
		WithLogger(log),
		WithMigrationConcurrency(cfg.MigrationConcurrency),
	}
	if cfg.DefaultRole != "" {
		opts = append(opts, WithDefaultRole(cfg.DefaultRole))
	}

	log.Info("identity resolver ready",
		"bootstrap_entries", directory.Len(),
		"default_role", cfg.DefaultRole.String())

	closer := func() error {
		defer log.Sync()
		return store.Close()
	}
	return New(store, directory, opts...), store, closer, nil
}
