// Package sqlite provides a SQLite-backed ProgressStore for single-node
// deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"celeb-trivia-service/internal/app"
	"celeb-trivia-service/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

var (
	_ app.ProgressStore     = (*Store)(nil)
	_ app.LeaderboardReader = (*Store)(nil)
)

// Store persists progress in a SQLite file. The pool holds a single
// connection, so units of work run one at a time.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and applies the schema.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx app.ProgressTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&storeTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, username string) (domain.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var taken int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&taken)
	if err != nil {
		return domain.User{}, fmt.Errorf("check username: %w", err)
	}
	if taken > 0 {
		return domain.User{}, &domain.ValidationError{Field: "username", Reason: "already taken"}
	}

	user := domain.User{ID: uuid.New().String(), Username: username}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)",
		user.ID, user.Username, time.Now().Unix(),
	)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, fmt.Errorf("commit transaction: %w", err)
	}
	return user, nil
}

func (s *Store) UserProgress(ctx context.Context, userID string) (domain.UserProgress, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return domain.UserProgress{}, err
	}

	type levelKey struct {
		category string
		level    int
	}
	levels := make(map[levelKey]*domain.LevelProgress)
	entry := func(k levelKey) *domain.LevelProgress {
		lp, ok := levels[k]
		if !ok {
			lp = &domain.LevelProgress{Level: k.level, GuessedNames: []string{}}
			levels[k] = lp
		}
		return lp
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT category, level, points FROM category_progress WHERE user_id = ?", userID)
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("query progress: %w", err)
	}
	for rows.Next() {
		var k levelKey
		var points int
		if err := rows.Scan(&k.category, &k.level, &points); err != nil {
			rows.Close()
			return domain.UserProgress{}, fmt.Errorf("scan progress: %w", err)
		}
		entry(k).Points = points
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.UserProgress{}, fmt.Errorf("iterate progress: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		"SELECT category, level, name FROM guessed_names WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("query guessed names: %w", err)
	}
	for rows.Next() {
		var k levelKey
		var name string
		if err := rows.Scan(&k.category, &k.level, &name); err != nil {
			rows.Close()
			return domain.UserProgress{}, fmt.Errorf("scan guessed name: %w", err)
		}
		lp := entry(k)
		lp.GuessedNames = append(lp.GuessedNames, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.UserProgress{}, fmt.Errorf("iterate guessed names: %w", err)
	}

	progress := domain.UserProgress{User: user, Categories: make(map[string][]domain.LevelProgress)}
	for k, lp := range levels {
		progress.Categories[k.category] = append(progress.Categories[k.category], *lp)
	}
	for _, list := range progress.Categories {
		sort.Slice(list, func(i, j int) bool { return list[i].Level < list[j].Level })
	}
	return progress, nil
}

// TopPlayers ranks by total points; equal totals share a rank.
func (s *Store) TopPlayers(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.total_points,
		       (SELECT COUNT(*) FROM users o WHERE o.total_points > u.total_points) + 1
		FROM users u
		ORDER BY u.total_points DESC, u.username ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Points, &e.Rank); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return entries, nil
}

func (s *Store) PlayerRank(ctx context.Context, userID string) (domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.total_points,
		       (SELECT COUNT(*) FROM users o WHERE o.total_points > u.total_points) + 1
		FROM users u WHERE u.id = ?`, userID,
	).Scan(&e.UserID, &e.Username, &e.Points, &e.Rank)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LeaderboardEntry{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("query rank: %w", err)
	}
	return e, nil
}

func (s *Store) user(ctx context.Context, userID string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, total_points, reported_total_points FROM users WHERE id = ?", userID,
	).Scan(&u.ID, &u.Username, &u.TotalPoints, &u.ReportedTotalPoints)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

type storeTx struct {
	tx *sql.Tx
}

// LockUser only resolves the user: the single connection already excludes
// every other unit of work.
func (t *storeTx) LockUser(ctx context.Context, userID string) error {
	var one int
	err := t.tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

// RaisePoints treats a missing row as 0 points, so a 0-point reward writes nothing.
func (t *storeTx) RaisePoints(ctx context.Context, key domain.ProgressKey, points int) (bool, error) {
	if points <= 0 {
		return false, nil
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO category_progress (user_id, category, level, points) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, category, level)
		DO UPDATE SET points = excluded.points WHERE excluded.points > category_progress.points`,
		key.UserID, key.Category, key.Level, points,
	)
	if err != nil {
		return false, fmt.Errorf("upsert progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert progress: %w", err)
	}
	return n > 0, nil
}

func (t *storeTx) AddGuessedNames(ctx context.Context, key domain.ProgressKey, names []string) error {
	stmt, err := t.tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO guessed_names (user_id, category, level, name) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare guessed names: %w", err)
	}
	defer stmt.Close()

	for _, name := range names {
		if _, err := stmt.ExecContext(ctx, key.UserID, key.Category, key.Level, name); err != nil {
			return fmt.Errorf("insert guessed name: %w", err)
		}
	}
	return nil
}

func (t *storeTx) GuessedNames(ctx context.Context, key domain.ProgressKey) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT name FROM guessed_names WHERE user_id = ? AND category = ? AND level = ? ORDER BY name",
		key.UserID, key.Category, key.Level,
	)
	if err != nil {
		return nil, fmt.Errorf("query guessed names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan guessed name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (t *storeTx) SetReportedTotal(ctx context.Context, userID string, total int) error {
	_, err := t.tx.ExecContext(ctx, "UPDATE users SET reported_total_points = ? WHERE id = ?", total, userID)
	if err != nil {
		return fmt.Errorf("update reported total: %w", err)
	}
	return nil
}

func (t *storeTx) RefreshTotal(ctx context.Context, userID string) (int, error) {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE users SET total_points =
			(SELECT COALESCE(SUM(points), 0) FROM category_progress WHERE user_id = ?)
		WHERE id = ?`, userID, userID)
	if err != nil {
		return 0, fmt.Errorf("update total: %w", err)
	}
	var total int
	if err := t.tx.QueryRowContext(ctx, "SELECT total_points FROM users WHERE id = ?", userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("read total: %w", err)
	}
	return total, nil
}

func (t *storeTx) DeleteGuessedNames(ctx context.Context, userID string) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM guessed_names WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete guessed names: %w", err)
	}
	return nil
}

func (t *storeTx) DeleteProgress(ctx context.Context, userID string) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM category_progress WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

func (t *storeTx) DeleteUser(ctx context.Context, userID string) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
