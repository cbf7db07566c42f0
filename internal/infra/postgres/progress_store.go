package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"celeb-trivia-service/internal/app"
	"celeb-trivia-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

var (
	_ app.ProgressStore     = (*ProgressStore)(nil)
	_ app.LeaderboardReader = (*ProgressStore)(nil)
)

// ProgressStore keeps scores and guessed names in Postgres. Units of work for
// the same user serialize on the user row lock.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) WithinTx(ctx context.Context, fn func(tx app.ProgressTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&progressTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *ProgressStore) CreateUser(ctx context.Context, username string) (domain.User, error) {
	user := domain.User{ID: uuid.NewString(), Username: username}
	_, err := s.pool.Exec(ctx, `INSERT INTO users (id, username) VALUES ($1, $2)`, user.ID, user.Username)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.User{}, &domain.ValidationError{Field: "username", Reason: "already taken"}
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *ProgressStore) UserProgress(ctx context.Context, userID string) (domain.UserProgress, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, total_points, reported_total_points FROM users WHERE id = $1`, userID,
	).Scan(&user.ID, &user.Username, &user.TotalPoints, &user.ReportedTotalPoints)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserProgress{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("query user: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT p.category, p.level, p.points,
		       COALESCE(array_agg(g.name ORDER BY g.name) FILTER (WHERE g.name IS NOT NULL), '{}')
		FROM category_progress p
		LEFT JOIN guessed_names g
		  ON g.user_id = p.user_id AND g.category = p.category AND g.level = p.level
		WHERE p.user_id = $1
		GROUP BY p.category, p.level, p.points`, userID)
	if err != nil {
		return domain.UserProgress{}, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	progress := domain.UserProgress{User: user, Categories: make(map[string][]domain.LevelProgress)}
	for rows.Next() {
		var (
			category string
			lp       domain.LevelProgress
		)
		if err := rows.Scan(&category, &lp.Level, &lp.Points, &lp.GuessedNames); err != nil {
			return domain.UserProgress{}, fmt.Errorf("scan progress: %w", err)
		}
		progress.Categories[category] = append(progress.Categories[category], lp)
	}
	if err := rows.Err(); err != nil {
		return domain.UserProgress{}, fmt.Errorf("iterate progress: %w", err)
	}
	for _, list := range progress.Categories {
		sort.Slice(list, func(i, j int) bool { return list[i].Level < list[j].Level })
	}
	return progress, nil
}

// TopPlayers ranks by total points; equal totals share a rank.
func (s *ProgressStore) TopPlayers(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, total_points, RANK() OVER (ORDER BY total_points DESC)
		FROM users
		ORDER BY total_points DESC, username ASC
		LIMIT $1`, limit)
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
	return entries, rows.Err()
}

func (s *ProgressStore) PlayerRank(ctx context.Context, userID string) (domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	err := s.pool.QueryRow(ctx, `
		SELECT u.id, u.username, u.total_points,
		       (SELECT COUNT(*) FROM users o WHERE o.total_points > u.total_points) + 1
		FROM users u WHERE u.id = $1`, userID,
	).Scan(&e.UserID, &e.Username, &e.Points, &e.Rank)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LeaderboardEntry{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("query rank: %w", err)
	}
	return e, nil
}

type progressTx struct {
	tx pgx.Tx
}

func (t *progressTx) LockUser(ctx context.Context, userID string) error {
	var id string
	err := t.tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

// RaisePoints treats a missing row as 0 points, so a 0-point reward writes nothing.
func (t *progressTx) RaisePoints(ctx context.Context, key domain.ProgressKey, points int) (bool, error) {
	if points <= 0 {
		return false, nil
	}
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO category_progress (user_id, category, level, points) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, category, level)
		DO UPDATE SET points = EXCLUDED.points WHERE category_progress.points < EXCLUDED.points`,
		key.UserID, key.Category, key.Level, points,
	)
	if err != nil {
		return false, fmt.Errorf("upsert progress: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *progressTx) AddGuessedNames(ctx context.Context, key domain.ProgressKey, names []string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO guessed_names (user_id, category, level, name)
		SELECT $1, $2, $3, unnest($4::text[])
		ON CONFLICT DO NOTHING`,
		key.UserID, key.Category, key.Level, names,
	)
	if err != nil {
		return fmt.Errorf("insert guessed names: %w", err)
	}
	return nil
}

func (t *progressTx) GuessedNames(ctx context.Context, key domain.ProgressKey) ([]string, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT name FROM guessed_names WHERE user_id = $1 AND category = $2 AND level = $3 ORDER BY name`,
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

func (t *progressTx) SetReportedTotal(ctx context.Context, userID string, total int) error {
	if _, err := t.tx.Exec(ctx, `UPDATE users SET reported_total_points = $2 WHERE id = $1`, userID, total); err != nil {
		return fmt.Errorf("update reported total: %w", err)
	}
	return nil
}

func (t *progressTx) RefreshTotal(ctx context.Context, userID string) (int, error) {
	var total int
	err := t.tx.QueryRow(ctx, `
		UPDATE users SET total_points =
			(SELECT COALESCE(SUM(points), 0) FROM category_progress WHERE user_id = $1)
		WHERE id = $1
		RETURNING total_points`, userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("update total: %w", err)
	}
	return total, nil
}

func (t *progressTx) DeleteGuessedNames(ctx context.Context, userID string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM guessed_names WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete guessed names: %w", err)
	}
	return nil
}

func (t *progressTx) DeleteProgress(ctx context.Context, userID string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM category_progress WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

func (t *progressTx) DeleteUser(ctx context.Context, userID string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
