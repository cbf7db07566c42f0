package domain

// MixedCategory selects names across every category of a level.
const MixedCategory = "mixed"

// CelebrityRecord is one catalog entry. Immutable once loaded.
type CelebrityRecord struct {
	Name       string   `json:"name" yaml:"name"`
	Categories []string `json:"categories" yaml:"categories"`
	Level      int      `json:"level" yaml:"level"`
	Facts      []string `json:"facts" yaml:"facts"`
}

// PrimaryCategory is the first listed category, lower-cased.
func (r CelebrityRecord) PrimaryCategory() string {
	if len(r.Categories) == 0 {
		return ""
	}
	return NormalizeCategory(r.Categories[0])
}

// CategoryDefinition bounds a category's levels.
type CategoryDefinition struct {
	Name     string `json:"name"`
	MaxLevel int    `json:"maxLevel"`
}

// ProgressKey identifies one (user, category, level) progress row.
type ProgressKey struct {
	UserID   string
	Category string
	Level    int
}

// CategoryProgress is the stored score of a user for a category-level.
type CategoryProgress struct {
	UserID   string `json:"userId"`
	Category string `json:"category"`
	Level    int    `json:"level"`
	Points   int    `json:"points"`
}

// User is the engine's view of a player account. Credentials live elsewhere.
type User struct {
	ID                  string `json:"id"`
	Username            string `json:"username"`
	TotalPoints         int    `json:"totalPoints"`
	ReportedTotalPoints int    `json:"reportedTotalPoints"`
}

// Question is the payload shown to a player.
type Question struct {
	Target           string   `json:"actor"`
	Category         string   `json:"category"`
	Facts            []string `json:"facts"`
	Level            int      `json:"level"`
	ImageURL         string   `json:"imageUrl"`
	DistractorImages []string `json:"distractorImages"`
	DistractorNames  []string `json:"distractorNames"`
}

// RewardSubmission is a validated reward report for one category-level.
type RewardSubmission struct {
	UserID       string
	Category     string
	Level        int
	Points       int
	GuessedNames []string
	// TotalPoints is the client's own running total; nil when not reported.
	TotalPoints *int
}

// RewardResult carries the transition flags computed after a reward.
type RewardResult struct {
	LevelUp bool `json:"levelUp"`
	EndGame bool `json:"endGame"`
}

// LevelProgress is one level inside a UserProgress snapshot.
type LevelProgress struct {
	Level        int      `json:"level"`
	Points       int      `json:"points"`
	GuessedNames []string `json:"guessedNames"`
}

// UserProgress is everything stored for a user, grouped by category.
type UserProgress struct {
	User       User                       `json:"user"`
	Categories map[string][]LevelProgress `json:"categories"`
}

// LeaderboardEntry is a ranked player.
type LeaderboardEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Points   int    `json:"points"`
	Rank     int    `json:"rank"`
}

// Leaderboard is the top of the ranking plus, optionally, the caller's entry.
type Leaderboard struct {
	Entries  []LeaderboardEntry `json:"leaderboard"`
	UserRank *LeaderboardEntry  `json:"userRank,omitempty"`
}
