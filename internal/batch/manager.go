// Package batch owns the lifecycle of crawl batches.
package batch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

// Manager resolves the active batch for a source, creating one when the
// source has never been crawled, and advances the discovery checkpoint.
// Store errors are not retried here; they propagate to the caller as
// fatal to the current batch pass.
type Manager struct {
	store  catalog.BatchStore
	ids    catalog.IDGenerator
	clock  catalog.Clock
	logger *zap.Logger
}

// New constructs a Manager.
func New(store catalog.BatchStore, ids catalog.IDGenerator, clock catalog.Clock, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, ids: ids, clock: clock, logger: logger}
}

// ResolveOrCreate returns the active batch for the code name. The batch
// with the latest start date wins; when none exists, exactly one new
// batch is created with a nil checkpoint.
func (m *Manager) ResolveOrCreate(ctx context.Context, codeName string) (catalog.Batch, error) {
	b, err := m.store.LatestBatch(ctx, codeName)
	if err == nil {
		m.logger.Info("resumed existing batch",
			zap.String("code_name", codeName),
			zap.String("batch_id", b.ID),
			zap.Stringp("checkpoint", b.Checkpoint),
		)
		return b, nil
	}
	if !errors.Is(err, catalog.ErrNoBatch) {
		return catalog.Batch{}, fmt.Errorf("resolve batch for %q: %w", codeName, err)
	}
	return m.create(ctx, codeName)
}

func (m *Manager) create(ctx context.Context, codeName string) (catalog.Batch, error) {
	id, err := m.ids.NewID()
	if err != nil {
		return catalog.Batch{}, fmt.Errorf("generate batch id: %w", err)
	}
	b := catalog.Batch{
		ID:        id,
		CodeName:  codeName,
		StartedAt: m.clock.Now(),
	}
	if err := m.store.CreateBatch(ctx, b); err != nil {
		return catalog.Batch{}, fmt.Errorf("create batch for %q: %w", codeName, err)
	}
	m.logger.Info("created new batch",
		zap.String("code_name", codeName),
		zap.String("batch_id", b.ID),
	)
	return b, nil
}

// AdvanceCheckpoint overwrites the batch checkpoint with url. Callers must
// only pass monotonically-forward discovery progress; no ordering is
// validated here.
func (m *Manager) AdvanceCheckpoint(ctx context.Context, batchID, url string) error {
	if err := m.store.SetCheckpoint(ctx, batchID, url); err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	m.logger.Debug("checkpoint advanced",
		zap.String("batch_id", batchID),
		zap.String("checkpoint", url),
	)
	return nil
}
