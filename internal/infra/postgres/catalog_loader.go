package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"celeb-trivia-service/internal/catalog"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CatalogLoader loads the newest catalog artifact stored as JSONB.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadCatalog(ctx context.Context) (catalog.Document, error) {
	var (
		version string
		raw     []byte
	)
	err := l.pool.QueryRow(ctx,
		`SELECT version, data FROM catalog_artifacts ORDER BY created_at DESC, version DESC LIMIT 1`,
	).Scan(&version, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Document{}, errors.New("load catalog: no artifact stored")
	}
	if err != nil {
		return catalog.Document{}, fmt.Errorf("load catalog: %w", err)
	}

	var doc catalog.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return catalog.Document{}, fmt.Errorf("unmarshal catalog %s: %w", version, err)
	}
	doc.Version = version
	return doc, nil
}

