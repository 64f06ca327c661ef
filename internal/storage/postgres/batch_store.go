package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

// BatchStore persists crawl batches in the batch table.
type BatchStore struct {
	conn   Conn
	logger *zap.Logger
}

// NewBatchStore constructs a BatchStore over an existing connection.
func NewBatchStore(conn Conn, logger *zap.Logger) (*BatchStore, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchStore{conn: conn, logger: logger}, nil
}

// LatestBatch returns the batch with the most recent start date for the
// code name, or catalog.ErrNoBatch when the source has never been crawled.
func (s *BatchStore) LatestBatch(ctx context.Context, codeName string) (catalog.Batch, error) {
	const query = `
SELECT batch_id, code_name, start_date, checkpoint
FROM batch
WHERE code_name = $1
ORDER BY start_date DESC
LIMIT 1`

	var b catalog.Batch
	err := s.conn.QueryRow(ctx, query, codeName).Scan(&b.ID, &b.CodeName, &b.StartedAt, &b.Checkpoint)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Batch{}, catalog.ErrNoBatch
	}
	if err != nil {
		return catalog.Batch{}, fmt.Errorf("select latest batch: %w", err)
	}
	return b, nil
}

// CreateBatch inserts a new batch row.
func (s *BatchStore) CreateBatch(ctx context.Context, b catalog.Batch) error {
	const query = `
INSERT INTO batch (batch_id, code_name, start_date, checkpoint)
VALUES ($1, $2, $3, $4)`

	if _, err := s.conn.Exec(ctx, query, b.ID, b.CodeName, b.StartedAt, b.Checkpoint); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	s.logger.Info("batch created",
		zap.String("batch_id", b.ID),
		zap.String("code_name", b.CodeName),
	)
	return nil
}

// SetCheckpoint overwrites the batch checkpoint. No ordering validation
// against prior checkpoints; callers advance it monotonically forward.
func (s *BatchStore) SetCheckpoint(ctx context.Context, batchID, url string) error {
	const query = `UPDATE batch SET checkpoint = $1 WHERE batch_id = $2`

	if _, err := s.conn.Exec(ctx, query, url, batchID); err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}
	return nil
}
