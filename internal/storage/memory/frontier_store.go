package memory

import (
	"context"
	"sync"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

// FrontierStore keeps frontier URLs in memory, preserving insertion order
// per batch.
type FrontierStore struct {
	mu   sync.RWMutex
	rows map[string][]catalog.FrontierURL // keyed by batch id
}

// NewFrontierStore constructs a FrontierStore.
func NewFrontierStore() *FrontierStore {
	return &FrontierStore{rows: make(map[string][]catalog.FrontierURL)}
}

// Enqueue appends each URL not already present for the batch.
func (s *FrontierStore) Enqueue(_ context.Context, batchID, codeName string, urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, url := range urls {
		if s.contains(batchID, url) {
			continue
		}
		s.rows[batchID] = append(s.rows[batchID], catalog.FrontierURL{
			URL:      url,
			BatchID:  batchID,
			CodeName: codeName,
		})
	}
	return nil
}

func (s *FrontierStore) contains(batchID, url string) bool {
	for _, row := range s.rows[batchID] {
		if row.URL == url {
			return true
		}
	}
	return false
}

// ListPending returns batch URLs in insertion order.
func (s *FrontierStore) ListPending(_ context.Context, batchID string, includeFetched bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var urls []string
	for _, row := range s.rows[batchID] {
		if row.Fetched && !includeFetched {
			continue
		}
		urls = append(urls, row.URL)
	}
	return urls, nil
}

// MarkFetched flips the fetched flag. Idempotent.
func (s *FrontierStore) MarkFetched(_ context.Context, batchID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[batchID]
	for i := range rows {
		if rows[i].URL == url {
			rows[i].Fetched = true
		}
	}
	return nil
}
