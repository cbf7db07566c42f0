package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"celeb-trivia-service/internal/catalog"
	"celeb-trivia-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CatalogRepository caches the catalog snapshot in memory. The snapshot is
// reloaded by Refresh, and also after ttl when ttl > 0.
type CatalogRepository struct {
	loader catalog.Loader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	snapshot  *catalog.Catalog
	expiresAt time.Time
}

func NewCatalogRepository(loader catalog.Loader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Catalog returns the current snapshot, loading it on first use. A failed
// TTL reload keeps serving the previous snapshot.
func (r *CatalogRepository) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	now := r.clock()

	r.mu.RLock()
	snapshot, expiresAt := r.snapshot, r.expiresAt
	r.mu.RUnlock()
	if snapshot != nil && (r.ttl <= 0 || expiresAt.After(now)) {
		return snapshot, nil
	}

	loaded, err := r.load(ctx)
	if err != nil {
		if snapshot != nil {
			return snapshot, nil
		}
		return nil, err
	}
	return loaded, nil
}

// Refresh reloads the snapshot. On failure the previous snapshot stays in place.
func (r *CatalogRepository) Refresh(ctx context.Context) error {
	_, err := r.load(ctx)
	return err
}

func (r *CatalogRepository) load(ctx context.Context) (*catalog.Catalog, error) {
	result, err, _ := r.sf.Do("catalog", func() (interface{}, error) {
		// The flight is shared, so one caller's cancellation must not fail the others.
		doc, err := r.loader.LoadCatalog(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
		}
		built, err := catalog.Build(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
		}

		r.mu.Lock()
		r.snapshot = built
		r.expiresAt = r.clock().Add(r.ttlWithJitter())
		r.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*catalog.Catalog), nil
}

func (r *CatalogRepository) NamesFor(ctx context.Context, category string, level int) ([]string, error) {
	c, err := r.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return c.NamesFor(category, level)
}

func (r *CatalogRepository) MixedNamesFor(ctx context.Context, level int) ([]string, error) {
	c, err := r.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return c.MixedNamesFor(level)
}

func (r *CatalogRepository) RecordFor(ctx context.Context, name string, level int) (domain.CelebrityRecord, error) {
	c, err := r.Catalog(ctx)
	if err != nil {
		return domain.CelebrityRecord{}, err
	}
	return c.RecordFor(name, level)
}

func (r *CatalogRepository) MaxLevel(ctx context.Context, category string) (int, error) {
	c, err := r.Catalog(ctx)
	if err != nil {
		return 0, err
	}
	return c.MaxLevel(category)
}

// StaticCatalogLoader serves a fixed document (useful for tests/demos).
type StaticCatalogLoader struct {
	doc catalog.Document
}

func NewStaticCatalogLoader(doc catalog.Document) *StaticCatalogLoader {
	return &StaticCatalogLoader{doc: doc}
}

func (l *StaticCatalogLoader) LoadCatalog(_ context.Context) (catalog.Document, error) {
	return l.doc, nil
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
