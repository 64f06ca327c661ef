// Package memory provides in-memory store implementations for
// development and testing.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

// BatchStore keeps batches in memory.
type BatchStore struct {
	mu      sync.RWMutex
	batches []catalog.Batch
}

// NewBatchStore constructs a BatchStore.
func NewBatchStore() *BatchStore {
	return &BatchStore{}
}

// LatestBatch returns the batch with the newest start date for the code
// name, or catalog.ErrNoBatch.
func (s *BatchStore) LatestBatch(_ context.Context, codeName string) (catalog.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *catalog.Batch
	for i := range s.batches {
		b := &s.batches[i]
		if b.CodeName != codeName {
			continue
		}
		if latest == nil || b.StartedAt.After(latest.StartedAt) {
			latest = b
		}
	}
	if latest == nil {
		return catalog.Batch{}, catalog.ErrNoBatch
	}
	out := *latest
	if latest.Checkpoint != nil {
		cp := *latest.Checkpoint
		out.Checkpoint = &cp
	}
	return out, nil
}

// CreateBatch appends a new batch.
func (s *BatchStore) CreateBatch(_ context.Context, b catalog.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.batches {
		if s.batches[i].ID == b.ID {
			return errors.New("batch already exists")
		}
	}
	s.batches = append(s.batches, b)
	return nil
}

// SetCheckpoint overwrites the checkpoint of the batch.
func (s *BatchStore) SetCheckpoint(_ context.Context, batchID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.batches {
		if s.batches[i].ID == batchID {
			cp := url
			s.batches[i].Checkpoint = &cp
			return nil
		}
	}
	return errors.New("batch not found")
}
