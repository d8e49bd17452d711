package repository

import (
	"fmt"
	"sync"

	"doc-qa-be/internal/config"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/contract"
	"doc-qa-be/internal/repository/implementation"
	"doc-qa-be/pkg/database"
)

// Provider owns the one DocumentStore instance for the process lifetime.
// The backend is chosen once from config, created lazily and cached; it is
// never swapped at runtime in production. Tests substitute a fake through
// SetStore and call Reset between runs.
type Provider struct {
	cfg    *config.Config
	logger logger.ILogger

	mu    sync.Mutex
	store contract.DocumentStore
}

func NewProvider(cfg *config.Config, log logger.ILogger) *Provider {
	return &Provider{
		cfg:    cfg,
		logger: log,
	}
}

func (p *Provider) Store() (contract.DocumentStore, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store != nil {
		return p.store, nil
	}

	switch p.cfg.Database.Backend {
	case "supabase":
		p.store = implementation.NewSupabaseStore(p.cfg.Supabase.URL, p.cfg.Supabase.ServiceKey, p.logger)
		p.logger.Info("repository", "Using Supabase document store (compensating)", nil)
	case "postgres":
		db, err := database.NewGormDBFromDSN(p.cfg.Database.Connection)
		if err != nil {
			return nil, fmt.Errorf("connect postgres store: %w", err)
		}
		p.store = implementation.NewPostgresStore(db, p.logger)
		p.logger.Info("repository", "Using Postgres document store (transactional)", nil)
	default:
		return nil, fmt.Errorf("unknown DB_BACKEND %q", p.cfg.Database.Backend)
	}

	return p.store, nil
}

// SetStore injects a store directly. Test fixtures only.
func (p *Provider) SetStore(store contract.DocumentStore) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store = store
}

// Reset drops the cached instance so the next Store call rebuilds it.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.store = nil
}
