package memory

import (
	"context"
	"sort"
	"sync"

	"celeb-trivia-service/internal/app"
	"celeb-trivia-service/internal/domain"
	"github.com/google/uuid"
)

var (
	_ app.ProgressStore     = (*ProgressStore)(nil)
	_ app.LeaderboardReader = (*ProgressStore)(nil)
)

// ProgressStore is an in-memory implementation of app.ProgressStore.
// A unit of work holds the store lock, mutates a copy of the state and swaps it
// in on success, so a failed unit leaves nothing behind.
type ProgressStore struct {
	mu    sync.Mutex
	state *progressState
}

type progressState struct {
	users   map[string]domain.User
	points  map[domain.ProgressKey]int
	guessed map[domain.ProgressKey]map[string]struct{}
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{state: &progressState{
		users:   make(map[string]domain.User),
		points:  make(map[domain.ProgressKey]int),
		guessed: make(map[domain.ProgressKey]map[string]struct{}),
	}}
}

func (s *ProgressStore) WithinTx(ctx context.Context, fn func(tx app.ProgressTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&progressTx{state: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *ProgressStore) CreateUser(_ context.Context, username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.state.users {
		if u.Username == username {
			return domain.User{}, &domain.ValidationError{Field: "username", Reason: "already taken"}
		}
	}
	user := domain.User{ID: uuid.NewString(), Username: username}
	s.state.users[user.ID] = user
	return user, nil
}

func (s *ProgressStore) UserProgress(_ context.Context, userID string) (domain.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.state.users[userID]
	if !ok {
		return domain.UserProgress{}, domain.ErrUserNotFound
	}

	levels := make(map[domain.ProgressKey]*domain.LevelProgress)
	entry := func(key domain.ProgressKey) *domain.LevelProgress {
		lp, ok := levels[key]
		if !ok {
			lp = &domain.LevelProgress{Level: key.Level, GuessedNames: []string{}}
			levels[key] = lp
		}
		return lp
	}
	for key, points := range s.state.points {
		if key.UserID == userID {
			entry(key).Points = points
		}
	}
	for key, names := range s.state.guessed {
		if key.UserID != userID {
			continue
		}
		lp := entry(key)
		for name := range names {
			lp.GuessedNames = append(lp.GuessedNames, name)
		}
		sort.Strings(lp.GuessedNames)
	}

	progress := domain.UserProgress{User: user, Categories: make(map[string][]domain.LevelProgress)}
	for key, lp := range levels {
		progress.Categories[key.Category] = append(progress.Categories[key.Category], *lp)
	}
	for _, list := range progress.Categories {
		sort.Slice(list, func(i, j int) bool { return list[i].Level < list[j].Level })
	}
	return progress, nil
}

// TopPlayers ranks by total points; equal totals share a rank.
func (s *ProgressStore) TopPlayers(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]domain.User, 0, len(s.state.users))
	for _, u := range s.state.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].TotalPoints != users[j].TotalPoints {
			return users[i].TotalPoints > users[j].TotalPoints
		}
		return users[i].Username < users[j].Username
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}

	entries := make([]domain.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, s.state.rankOf(u))
	}
	return entries, nil
}

func (s *ProgressStore) PlayerRank(_ context.Context, userID string) (domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.state.users[userID]
	if !ok {
		return domain.LeaderboardEntry{}, domain.ErrUserNotFound
	}
	return s.state.rankOf(user), nil
}

func (st *progressState) rankOf(user domain.User) domain.LeaderboardEntry {
	rank := 1
	for _, other := range st.users {
		if other.TotalPoints > user.TotalPoints {
			rank++
		}
	}
	return domain.LeaderboardEntry{UserID: user.ID, Username: user.Username, Points: user.TotalPoints, Rank: rank}
}

func (st *progressState) clone() *progressState {
	out := &progressState{
		users:   make(map[string]domain.User, len(st.users)),
		points:  make(map[domain.ProgressKey]int, len(st.points)),
		guessed: make(map[domain.ProgressKey]map[string]struct{}, len(st.guessed)),
	}
	for id, u := range st.users {
		out.users[id] = u
	}
	for key, p := range st.points {
		out.points[key] = p
	}
	for key, names := range st.guessed {
		set := make(map[string]struct{}, len(names))
		for n := range names {
			set[n] = struct{}{}
		}
		out.guessed[key] = set
	}
	return out
}

type progressTx struct {
	state *progressState
}

func (tx *progressTx) LockUser(_ context.Context, userID string) error {
	if _, ok := tx.state.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	return nil
}

func (tx *progressTx) RaisePoints(_ context.Context, key domain.ProgressKey, points int) (bool, error) {
	if points <= tx.state.points[key] {
		return false, nil
	}
	tx.state.points[key] = points
	return true, nil
}

func (tx *progressTx) AddGuessedNames(_ context.Context, key domain.ProgressKey, names []string) error {
	set, ok := tx.state.guessed[key]
	if !ok {
		set = make(map[string]struct{}, len(names))
		tx.state.guessed[key] = set
	}
	for _, n := range names {
		set[n] = struct{}{}
	}
	return nil
}

func (tx *progressTx) GuessedNames(_ context.Context, key domain.ProgressKey) ([]string, error) {
	names := make([]string, 0, len(tx.state.guessed[key]))
	for n := range tx.state.guessed[key] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (tx *progressTx) SetReportedTotal(_ context.Context, userID string, total int) error {
	user, ok := tx.state.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.ReportedTotalPoints = total
	tx.state.users[userID] = user
	return nil
}

func (tx *progressTx) RefreshTotal(_ context.Context, userID string) (int, error) {
	user, ok := tx.state.users[userID]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	total := 0
	for key, p := range tx.state.points {
		if key.UserID == userID {
			total += p
		}
	}
	user.TotalPoints = total
	tx.state.users[userID] = user
	return total, nil
}

func (tx *progressTx) DeleteGuessedNames(_ context.Context, userID string) error {
	for key := range tx.state.guessed {
		if key.UserID == userID {
			delete(tx.state.guessed, key)
		}
	}
	return nil
}

func (tx *progressTx) DeleteProgress(_ context.Context, userID string) error {
	for key := range tx.state.points {
		if key.UserID == userID {
			delete(tx.state.points, key)
		}
	}
	return nil
}

func (tx *progressTx) DeleteUser(_ context.Context, userID string) error {
	delete(tx.state.users, userID)
	return nil
}
