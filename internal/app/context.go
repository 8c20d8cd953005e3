package app

import (
	"context"

	"github.com/datallboy/gofetch/internal/domain"
	"github.com/datallboy/gofetch/internal/engine"
	"github.com/datallboy/gofetch/internal/infra/config"
	"github.com/datallboy/gofetch/internal/infra/logger"
	"github.com/datallboy/gofetch/internal/store"
)

// TransferManager lets the API drive transfers without importing engine
// internals.
type TransferManager interface {
	Start(ctx context.Context, req engine.Request) (domain.Info, error)
	Download(ctx context.Context, req engine.Request) (*domain.Summary, error)
	Stop(ctx context.Context, id string) error
	StopAll(ctx context.Context) error
	Get(id string) (domain.Info, bool)
	List() []domain.Info
	History(ctx context.Context, limit int) ([]domain.HistoryRecord, error)
	Wait()
}

// Context hold the core environment and shared resources for GoFetch.
// It acts as the "Single Source of Truth" for the application state.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Store   store.Store
	Manager TransferManager
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}

// Close releases the store and flushes the log.
func (a *Context) Close() error {
	var err error
	if a.Store != nil {
		err = a.Store.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Close()
	}
	return err
}
