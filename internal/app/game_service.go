package app

import (
	"context"
	"errors"
	"strings"

	"celeb-trivia-service/internal/domain"
)

// DefaultLeaderboardSize is how many players the leaderboard lists.
const DefaultLeaderboardSize = 10

// QuestionRequest is the external form of a question request. Level may be
// spelled "1", "level_1", etc.
type QuestionRequest struct {
	Category     string
	Level        string
	GuessedNames []string
}

// RewardRequest is the external form of a reward submission.
type RewardRequest struct {
	UserID       string
	Category     string
	Level        string
	Points       int
	GuessedNames []string
	TotalPoints  *int
}

// Dependencies are the collaborators a GameService is built from. All are required.
type Dependencies struct {
	Catalog     CatalogRepository
	Progress    ProgressStore
	Leaderboard LeaderboardReader
	Assets      AssetResolver
	Rand        Rand
}

// GameService contains the trivia use cases exposed to transports.
type GameService struct {
	catalog     CatalogRepository
	store       ProgressStore
	leaderboard LeaderboardReader
	selector    *Selector
	progression *ProgressionController
}

func NewGameService(deps Dependencies) (*GameService, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("game service: catalog is required")
	case deps.Progress == nil:
		return nil, errors.New("game service: progress store is required")
	case deps.Leaderboard == nil:
		return nil, errors.New("game service: leaderboard is required")
	}
	selector, err := NewSelector(deps.Catalog, deps.Assets, deps.Rand)
	if err != nil {
		return nil, err
	}
	progression, err := NewProgressionController(deps.Catalog, deps.Progress)
	if err != nil {
		return nil, err
	}
	return &GameService{
		catalog:     deps.Catalog,
		store:       deps.Progress,
		leaderboard: deps.Leaderboard,
		selector:    selector,
		progression: progression,
	}, nil
}

// GetQuestion picks the next question. ok=false means no names remain for the
// category-level, which callers report as a normal "nothing left" response.
func (s *GameService) GetQuestion(ctx context.Context, req QuestionRequest) (domain.Question, bool, error) {
	category := req.Category
	if strings.TrimSpace(category) == "" {
		category = domain.MixedCategory
	}
	level, err := parseLevelOrDefault(req.Level)
	if err != nil {
		return domain.Question{}, false, err
	}
	return s.selector.SelectQuestion(ctx, category, level, req.GuessedNames)
}

// ApplyReward records a reward and returns the level transition flags.
func (s *GameService) ApplyReward(ctx context.Context, req RewardRequest) (domain.RewardResult, error) {
	level, err := domain.ParseLevel(req.Level)
	if err != nil {
		return domain.RewardResult{}, err
	}
	result, err := s.progression.ApplyReward(ctx, domain.RewardSubmission{
		UserID:       strings.TrimSpace(req.UserID),
		Category:     req.Category,
		Level:        level,
		Points:       req.Points,
		GuessedNames: req.GuessedNames,
		TotalPoints:  req.TotalPoints,
	})
	if err != nil {
		return domain.RewardResult{}, err
	}
	s.invalidateLeaderboard(ctx)
	return result, nil
}

// DeleteUser removes a user and everything stored for them.
func (s *GameService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.progression.DeleteUser(ctx, strings.TrimSpace(userID)); err != nil {
		return err
	}
	s.invalidateLeaderboard(ctx)
	return nil
}

// CreateUser registers a player record so rewards can resolve it.
func (s *GameService) CreateUser(ctx context.Context, username string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, &domain.ValidationError{Field: "username", Reason: "required"}
	}
	user, err := s.store.CreateUser(ctx, username)
	if err != nil {
		return domain.User{}, storageFailure("create user", err)
	}
	return user, nil
}

// UserProgress returns a user's totals, points and guessed names per category-level.
func (s *GameService) UserProgress(ctx context.Context, userID string) (domain.UserProgress, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.UserProgress{}, &domain.ValidationError{Field: "userId", Reason: "required"}
	}
	progress, err := s.store.UserProgress(ctx, userID)
	if err != nil {
		return domain.UserProgress{}, storageFailure("user progress", err)
	}
	return progress, nil
}

// Leaderboard lists the top players and, when userID is set and known, their rank.
func (s *GameService) Leaderboard(ctx context.Context, userID string) (domain.Leaderboard, error) {
	entries, err := s.leaderboard.TopPlayers(ctx, DefaultLeaderboardSize)
	if err != nil {
		return domain.Leaderboard{}, storageFailure("leaderboard", err)
	}
	board := domain.Leaderboard{Entries: entries}
	if userID = strings.TrimSpace(userID); userID == "" {
		return board, nil
	}
	rank, err := s.leaderboard.PlayerRank(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
	case err != nil:
		return domain.Leaderboard{}, storageFailure("leaderboard rank", err)
	default:
		board.UserRank = &rank
	}
	return board, nil
}

// RefreshCatalog reloads the catalog snapshot from its backing store.
func (s *GameService) RefreshCatalog(ctx context.Context) error {
	return s.catalog.Refresh(ctx)
}

// invalidateLeaderboard drops a cached top list after totals changed. A failed
// drop leaves the cache to expire on its own TTL.
func (s *GameService) invalidateLeaderboard(ctx context.Context) {
	if inv, ok := s.leaderboard.(LeaderboardInvalidator); ok {
		_ = inv.Invalidate(ctx, DefaultLeaderboardSize)
	}
}

func parseLevelOrDefault(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 1, nil
	}
	return domain.ParseLevel(raw)
}
