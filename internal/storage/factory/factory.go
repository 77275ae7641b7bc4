// Package factory builds and caches the configured storage adapter.
package factory

import (
	"context"
	"fmt"
	"sync"

	"github.com/pagecraft/core/internal/config"
	"github.com/pagecraft/core/internal/storage"
	"github.com/pagecraft/core/internal/storage/jsonfile"
	"github.com/pagecraft/core/internal/storage/mysql"
	"github.com/pagecraft/core/internal/storage/postgres"
	"github.com/pagecraft/core/internal/storage/sqlite"
	"go.uber.org/zap"
)

// Provider hands out the storage adapter named by the configuration. The
// adapter is built and initialized on first Get and reused afterwards, so
// the whole process shares one connection pool / one document handle.
type Provider struct {
	cfg config.StorageConfig
	log *zap.Logger

	mu      sync.Mutex
	adapter storage.Adapter
}

func New(cfg config.StorageConfig, log *zap.Logger) *Provider {
	return &Provider{cfg: cfg, log: log}
}

// Get returns the cached adapter, building and initializing it first if
// needed. Configuration problems surface here before any I/O is attempted.
func (p *Provider) Get(ctx context.Context) (storage.Adapter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.adapter != nil {
		return p.adapter, nil
	}

	adapter, err := p.build()
	if err != nil {
		return nil, err
	}
	if err := adapter.Initialize(ctx); err != nil {
		adapter.Close()
		return nil, fmt.Errorf("initialize %s backend: %w", p.cfg.Backend, err)
	}
	p.log.Info("storage backend ready", zap.String("backend", p.cfg.Backend))
	p.adapter = adapter
	return adapter, nil
}

// Reset closes the cached adapter and forgets it; the next Get builds a
// fresh one. Used by tests and config reloads.
func (p *Provider) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.adapter == nil {
		return nil
	}
	err := p.adapter.Close()
	p.adapter = nil
	return err
}

func (p *Provider) build() (storage.Adapter, error) {
	switch p.cfg.Backend {
	case config.BackendJSONFile:
		return jsonfile.New(p.cfg.DataDir, p.log), nil
	case config.BackendSQLite:
		return sqlite.NewInDir(p.cfg.DataDir, p.log), nil
	case config.BackendPostgres:
		if p.cfg.PostgresURL == "" {
			return nil, fmt.Errorf("storage.postgres_url: %w", storage.ErrMissingConnectionInfo)
		}
		return postgres.New(p.cfg.PostgresURL, p.log), nil
	case config.BackendMySQL:
		if p.cfg.MySQL.DSNValue() == "" {
			return nil, fmt.Errorf("storage.mysql: %w", storage.ErrMissingConnectionInfo)
		}
		return mysql.New(p.cfg.MySQL.DSNValue(), p.log), nil
	default:
		return nil, fmt.Errorf("backend %q: %w", p.cfg.Backend, storage.ErrUnsupportedBackend)
	}
}
