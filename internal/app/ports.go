package app

import (
	"context"

	"celeb-trivia-service/internal/domain"
)

// CatalogStore is the read-only content lookup used by the engine.
type CatalogStore interface {
	NamesFor(ctx context.Context, category string, level int) ([]string, error)
	MixedNamesFor(ctx context.Context, level int) ([]string, error)
	RecordFor(ctx context.Context, name string, level int) (domain.CelebrityRecord, error)
	MaxLevel(ctx context.Context, category string) (int, error)
}

// CatalogRepository is a CatalogStore whose snapshot can be reloaded on demand.
type CatalogRepository interface {
	CatalogStore
	Refresh(ctx context.Context) error
}

// ProgressStore persists scores, guessed names and user totals (in-memory, SQLite, Postgres).
type ProgressStore interface {
	// WithinTx runs fn as one unit of work: everything fn wrote commits when it
	// returns nil and is rolled back otherwise.
	WithinTx(ctx context.Context, fn func(tx ProgressTx) error) error
	CreateUser(ctx context.Context, username string) (domain.User, error)
	UserProgress(ctx context.Context, userID string) (domain.UserProgress, error)
}

// ProgressTx is the set of writes available inside a ProgressStore unit of work.
type ProgressTx interface {
	// LockUser resolves the user and excludes other units of work for it until commit.
	LockUser(ctx context.Context, userID string) error
	// RaisePoints stores points only when they exceed the stored value.
	RaisePoints(ctx context.Context, key domain.ProgressKey, points int) (bool, error)
	// AddGuessedNames inserts name keys, ignoring those already present.
	AddGuessedNames(ctx context.Context, key domain.ProgressKey, names []string) error
	GuessedNames(ctx context.Context, key domain.ProgressKey) ([]string, error)
	SetReportedTotal(ctx context.Context, userID string, total int) error
	// RefreshTotal recomputes the user's total as the sum of their category points.
	RefreshTotal(ctx context.Context, userID string) (int, error)
	DeleteGuessedNames(ctx context.Context, userID string) error
	DeleteProgress(ctx context.Context, userID string) error
	DeleteUser(ctx context.Context, userID string) error
}

// LeaderboardReader ranks users by total points.
type LeaderboardReader interface {
	TopPlayers(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	PlayerRank(ctx context.Context, userID string) (domain.LeaderboardEntry, error)
}

// LeaderboardInvalidator is implemented by leaderboard readers that cache the
// top list and must drop it when totals change.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context, limit int) error
}

// AssetResolver maps a celebrity name to a displayable image reference.
// Misses resolve to a default image rather than failing.
type AssetResolver interface {
	ImageURL(name string) string
}

// Rand is the random source used for selection; *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}
