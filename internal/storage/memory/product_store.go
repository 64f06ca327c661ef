package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

type productRow struct {
	id     int64
	rec    catalog.ProductRecord
	source int64
}

// ProductStore keeps products, media, and the source registry in memory.
type ProductStore struct {
	mu       sync.RWMutex
	sources  map[string]int64
	products []productRow
	media    map[int64][]string
	nextID   int64
}

// NewProductStore constructs a ProductStore with the given source
// registry (code name to id).
func NewProductStore(sources map[string]int64) *ProductStore {
	if sources == nil {
		sources = make(map[string]int64)
	}
	return &ProductStore{
		sources: sources,
		media:   make(map[int64][]string),
		nextID:  1,
	}
}

// ResolveSource maps a code name to its source id.
func (s *ProductStore) ResolveSource(_ context.Context, codeName string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.sources[codeName]
	if !ok {
		return 0, fmt.Errorf("%w: %s", catalog.ErrSourceNotFound, codeName)
	}
	return id, nil
}

// ProductExists reports whether a row exists for (product_url, source_id).
func (s *ProductStore) ProductExists(_ context.Context, productURL string, sourceID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.products {
		if row.rec.ProductURL == productURL && row.source == sourceID {
			return true, nil
		}
	}
	return false, nil
}

// InsertProduct appends a row and returns its generated id.
func (s *ProductStore) InsertProduct(_ context.Context, rec catalog.ProductRecord, sourceID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.products = append(s.products, productRow{id: id, rec: rec, source: sourceID})
	return id, nil
}

// InsertMedia appends a media link for a product.
func (s *ProductStore) InsertMedia(_ context.Context, productID int64, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media[productID] = append(s.media[productID], link)
	return nil
}

// Products returns a copy of the stored records; handy for assertions.
func (s *ProductStore) Products() []catalog.ProductRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.ProductRecord, 0, len(s.products))
	for _, row := range s.products {
		out = append(out, row.rec)
	}
	return out
}

// Media returns the stored media links for a product id.
func (s *ProductStore) Media(productID int64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	links := s.media[productID]
	out := make([]string, len(links))
	copy(out, links)
	return out
}
