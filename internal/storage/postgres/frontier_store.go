package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// FrontierStore persists discovered URLs in the frontier_url table.
type FrontierStore struct {
	conn   Conn
	logger *zap.Logger
}

// NewFrontierStore constructs a FrontierStore over an existing connection.
func NewFrontierStore(conn Conn, logger *zap.Logger) (*FrontierStore, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrontierStore{conn: conn, logger: logger}, nil
}

// Enqueue inserts each URL not already present for the batch. The store
// does not assume a uniqueness constraint; presence is checked per URL
// before insert, and duplicates are logged and skipped.
func (s *FrontierStore) Enqueue(ctx context.Context, batchID, codeName string, urls []string) error {
	const insert = `
INSERT INTO frontier_url (url, batch_id, code_name, is_fetched)
VALUES ($1, $2, $3, FALSE)`

	for _, url := range urls {
		exists, err := s.contains(ctx, batchID, url)
		if err != nil {
			return err
		}
		if exists {
			s.logger.Debug("frontier url already enqueued",
				zap.String("batch_id", batchID),
				zap.String("url", url),
			)
			continue
		}
		if _, err := s.conn.Exec(ctx, insert, url, batchID, codeName); err != nil {
			return fmt.Errorf("insert frontier url %q: %w", url, err)
		}
	}
	return nil
}

func (s *FrontierStore) contains(ctx context.Context, batchID, url string) (bool, error) {
	const query = `SELECT 1 FROM frontier_url WHERE batch_id = $1 AND url = $2`

	var one int
	err := s.conn.QueryRow(ctx, query, batchID, url).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check frontier url %q: %w", url, err)
	}
	return true, nil
}

// ListPending returns the batch URLs in insertion order, restricted to
// unfetched rows unless includeFetched is set.
func (s *FrontierStore) ListPending(ctx context.Context, batchID string, includeFetched bool) ([]string, error) {
	query := `SELECT url FROM frontier_url WHERE batch_id = $1 AND is_fetched = FALSE ORDER BY id`
	if includeFetched {
		query = `SELECT url FROM frontier_url WHERE batch_id = $1 ORDER BY id`
	}

	rows, err := s.conn.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("list frontier urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan frontier url: %w", err)
		}
		urls = append(urls, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frontier urls: %w", err)
	}
	return urls, nil
}

// MarkFetched flips is_fetched for the URL. Re-marking a fetched URL is a
// harmless no-op.
func (s *FrontierStore) MarkFetched(ctx context.Context, batchID, url string) error {
	const query = `UPDATE frontier_url SET is_fetched = TRUE WHERE batch_id = $1 AND url = $2`

	if _, err := s.conn.Exec(ctx, query, batchID, url); err != nil {
		return fmt.Errorf("mark fetched %q: %w", url, err)
	}
	return nil
}
