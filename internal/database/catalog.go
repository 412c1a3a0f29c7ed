package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voltmarket/catalog-scraper/internal/models"
)

// upsertProductSQL writes one validated record. The natural key is the
// conflict target: a repeated crawl updates the existing row in place
// instead of duplicating it.
const upsertProductSQL = `
	INSERT INTO products (
		id, seller_id, name, description, category, brand,
		price, stock_quantity, primary_image_url, images,
		specifications, natural_key, source_url, created_at, updated_at
	) VALUES (
		gen_random_uuid(), $1, $2, $3, $4, $5,
		$6, $7, $8, $9,
		$10, $11, $12, NOW(), NOW()
	)
	ON CONFLICT (natural_key) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		category = EXCLUDED.category,
		brand = EXCLUDED.brand,
		price = EXCLUDED.price,
		stock_quantity = EXCLUDED.stock_quantity,
		primary_image_url = EXCLUDED.primary_image_url,
		images = EXCLUDED.images,
		specifications = EXCLUDED.specifications,
		source_url = EXCLUDED.source_url,
		updated_at = NOW()`

// ResolveSellerID looks up or creates the owning account row for imported
// products. Idempotent: repeated calls converge on one row.
func (db *DB) ResolveSellerID(ctx context.Context, email string) (string, error) {
	var id string
	err := db.pool.QueryRow(ctx,
		`SELECT id FROM profiles WHERE email = $1`, email).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return "", fmt.Errorf("failed to look up seller: %w", err)
	}

	err = db.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, email, role)
		VALUES (gen_random_uuid(), $1, 'system')
		ON CONFLICT (email) DO UPDATE SET role = profiles.role
		RETURNING id`, email).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create seller: %w", err)
	}
	return id, nil
}

// WriteBatch upserts one batch of validated records inside a single
// transaction, so a batch lands whole or not at all. The batch's extent is
// reported either way; a failure here never stops subsequent batches.
func (db *DB) WriteBatch(ctx context.Context, sellerID string, offset int, records []models.Product) models.BatchResult {
	result := models.BatchResult{Offset: offset, Size: len(records)}

	batch := &pgx.Batch{}
	for _, rec := range records {
		args, err := upsertArgs(sellerID, rec)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		batch.Queue(upsertProductSQL, args...)
	}

	err := db.WithTx(ctx, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for range records {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("batch write failed: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Written = len(records)
	return result
}

func upsertArgs(sellerID string, rec models.Product) ([]any, error) {
	imagesJSON, err := json.Marshal(rec.Images)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal images: %w", err)
	}
	specsJSON, err := json.Marshal(rec.Specifications)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal specifications: %w", err)
	}

	return []any{
		sellerID, rec.Name, rec.Description, rec.Category, rec.Brand,
		rec.Price, rec.StockQuantity, rec.PrimaryImageURL(), imagesJSON,
		specsJSON, rec.NaturalKey, rec.SourceURL,
	}, nil
}

// CountByCategory returns persisted product counts per category.
func (db *DB) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT category, COUNT(*) AS count
		FROM products
		GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[category] = count
	}

	return counts, rows.Err()
}
