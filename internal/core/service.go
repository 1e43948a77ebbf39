package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetvault/internal/config"
	"github.com/JonMunkholm/sheetvault/internal/database"
)

// DefaultBatchSize is the number of rows written per COPY batch.
const DefaultBatchSize = 1000

// Repository is the storage the service runs against. *database.Store
// satisfies it; tests substitute an in-memory implementation.
type Repository interface {
	database.Querier

	// ExecTx runs fn in one transaction, committing only if fn returns nil.
	ExecTx(ctx context.Context, fn func(database.Querier) error) error
	Ping(ctx context.Context) error
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	BatchSize            int
	DefaultPageSize      int
	MaxPageSize          int
	MaxConcurrentImports int
	MaxImportWait        time.Duration
}

// OptionsFromConfig extracts service options from application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BatchSize:            cfg.Import.BatchSize,
		DefaultPageSize:      cfg.Query.DefaultPageSize,
		MaxPageSize:          cfg.Query.MaxPageSize,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		MaxImportWait:        cfg.Import.MaxWaitTime,
	}
}

// Service implements import, query and maintenance operations over a Repository.
type Service struct {
	repo    Repository
	opts    Options
	limiter *ImportLimiter

	now   func() time.Time
	newID func() uuid.UUID
}

// NewService creates a Service backed by repo.
func NewService(repo Repository, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = MaxPageSize
	}
	if opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = opts.MaxPageSize
	}

	return &Service{
		repo:    repo,
		opts:    opts,
		limiter: NewImportLimiter(opts.MaxConcurrentImports, opts.MaxImportWait),
		now:     time.Now,
		newID:   uuid.New,
	}
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// ImportLimiterStatus reports import slot usage.
func (s *Service) ImportLimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
