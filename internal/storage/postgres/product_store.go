package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

// ProductStore persists canonical products, media links, and resolves
// source code names.
type ProductStore struct {
	conn   Conn
	logger *zap.Logger
}

// NewProductStore constructs a ProductStore over an existing connection.
func NewProductStore(conn Conn, logger *zap.Logger) (*ProductStore, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductStore{conn: conn, logger: logger}, nil
}

// ResolveSource maps a code name to its source id, or
// catalog.ErrSourceNotFound when the source is not registered.
func (s *ProductStore) ResolveSource(ctx context.Context, codeName string) (int64, error) {
	const query = `SELECT id FROM source WHERE code_name = $1`

	var id int64
	err := s.conn.QueryRow(ctx, query, codeName).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", catalog.ErrSourceNotFound, codeName)
	}
	if err != nil {
		return 0, fmt.Errorf("select source %q: %w", codeName, err)
	}
	return id, nil
}

// ProductExists reports whether a product row already exists for the
// (product_url, source_id) natural key.
func (s *ProductStore) ProductExists(ctx context.Context, productURL string, sourceID int64) (bool, error) {
	const query = `SELECT 1 FROM product WHERE product_url = $1 AND source_id = $2`

	var one int
	err := s.conn.QueryRow(ctx, query, productURL, sourceID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check product %q: %w", productURL, err)
	}
	return true, nil
}

// InsertProduct inserts one product row and returns the generated id.
// Features are stored as a JSONB blob.
func (s *ProductStore) InsertProduct(ctx context.Context, rec catalog.ProductRecord, sourceID int64) (int64, error) {
	const query = `
INSERT INTO product (
	brand, title, product_url, description, category, features,
	availability, price, sale_price, sku, upc, source_id
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
)
RETURNING id`

	features, err := json.Marshal(rec.Features)
	if err != nil {
		return 0, fmt.Errorf("marshal features: %w", err)
	}

	var id int64
	err = s.conn.QueryRow(ctx, query,
		rec.Brand,
		rec.Title,
		rec.ProductURL,
		rec.Description,
		rec.Category,
		features,
		rec.Availability,
		rec.Price,
		rec.SalePrice,
		rec.SKU,
		rec.UPC,
		sourceID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert product %q: %w", rec.ProductURL, err)
	}
	return id, nil
}

// InsertMedia inserts one media link for a product. Media rows are created
// after the product and never updated.
func (s *ProductStore) InsertMedia(ctx context.Context, productID int64, link string) error {
	const query = `INSERT INTO product_media (product_id, link) VALUES ($1, $2)`

	if _, err := s.conn.Exec(ctx, query, productID, link); err != nil {
		return fmt.Errorf("insert media for product %d: %w", productID, err)
	}
	return nil
}
