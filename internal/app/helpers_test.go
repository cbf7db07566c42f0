package app_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"celeb-trivia-service/internal/app"
	"celeb-trivia-service/internal/catalog"
	"celeb-trivia-service/internal/domain"
	"celeb-trivia-service/internal/infra/memory"
)

var errInjected = errors.New("injected storage failure")

func testDocument() catalog.Document {
	record := func(category string, facts ...string) catalog.RecordData {
		return catalog.RecordData{Facts: facts, Categories: []string{category}}
	}
	return catalog.Document{
		Names: map[string]map[string][]string{
			"1": {
				"actors":    {"alice", "bob", "carol", "dave"},
				"athletes":  {"ivan"},
				"musicians": {"erin", "frank"},
				"duo":       {"n1", "n2"},
			},
			"2": {
				"actors": {"gina", "hank"},
				"duo":    {"n1", "n2"},
			},
		},
		Records: map[string]map[string]catalog.RecordData{
			"1": {
				"alice": record("actors", "f1", "f2", "f3", "f4", "f5"),
				"bob":   record("actors", "b1", "b2"),
				"carol": record("actors", "c1"),
				"dave":  record("actors", "d1"),
				"ivan":  record("athletes", "i1"),
				"erin":  record("musicians", "e1"),
				"frank": record("musicians", "fr1"),
				"n1":    record("duo", "x"),
				"n2":    record("duo", "y"),
			},
			"2": {
				"gina": record("actors", "g1"),
				"hank": record("actors", "h1"),
				"n1":   record("duo", "x"),
				"n2":   record("duo", "y"),
			},
		},
		Categories: map[string]catalog.CategoryData{
			"actors":    {Levels: 2},
			"athletes":  {Levels: 1},
			"musicians": {Levels: 1},
			"duo":       {Levels: 2},
		},
	}
}

func newCatalog() *memory.CatalogRepository {
	return memory.NewCatalogRepository(memory.NewStaticCatalogLoader(testDocument()), 0)
}

type fakeAssets struct{}

func (fakeAssets) ImageURL(name string) string { return "img:" + name }

// zeroRand always picks the first candidate.
type zeroRand struct{}

func (zeroRand) Intn(int) int { return 0 }

func seeded(seed int64) app.Rand {
	return rand.New(rand.NewSource(seed))
}

func newTestService(t *testing.T, store app.ProgressStore) *app.GameService {
	t.Helper()
	if store == nil {
		store = memory.NewProgressStore()
	}
	board, ok := store.(app.LeaderboardReader)
	if !ok {
		board = memory.NewProgressStore()
	}
	service, err := app.NewGameService(app.Dependencies{
		Catalog:     newCatalog(),
		Progress:    store,
		Leaderboard: board,
		Assets:      fakeAssets{},
		Rand:        seeded(1),
	})
	if err != nil {
		t.Fatalf("new game service: %v", err)
	}
	return service
}

// failingStore injects an error into one step of every unit of work.
type failingStore struct {
	app.ProgressStore
	failOn string
}

func (s *failingStore) WithinTx(ctx context.Context, fn func(tx app.ProgressTx) error) error {
	return s.ProgressStore.WithinTx(ctx, func(tx app.ProgressTx) error {
		return fn(&failingTx{ProgressTx: tx, failOn: s.failOn})
	})
}

type failingTx struct {
	app.ProgressTx
	failOn string
}

func (tx *failingTx) AddGuessedNames(ctx context.Context, key domain.ProgressKey, names []string) error {
	if tx.failOn == "guessed" {
		return errInjected
	}
	return tx.ProgressTx.AddGuessedNames(ctx, key, names)
}

func (tx *failingTx) SetReportedTotal(ctx context.Context, userID string, total int) error {
	if tx.failOn == "total" {
		return errInjected
	}
	return tx.ProgressTx.SetReportedTotal(ctx, userID, total)
}

func (tx *failingTx) DeleteUser(ctx context.Context, userID string) error {
	if tx.failOn == "delete" {
		return errInjected
	}
	return tx.ProgressTx.DeleteUser(ctx, userID)
}

type failingLoader struct{}

func (failingLoader) LoadCatalog(context.Context) (catalog.Document, error) {
	return catalog.Document{}, errors.New("content bucket unreachable")
}
