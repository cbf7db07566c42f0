package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"celeb-trivia-service/internal/domain"
)

// ProgressionController applies reward submissions and decides level transitions.
type ProgressionController struct {
	catalog CatalogStore
	store   ProgressStore
}

func NewProgressionController(catalog CatalogStore, store ProgressStore) (*ProgressionController, error) {
	if catalog == nil {
		return nil, errors.New("progression: catalog store is required")
	}
	if store == nil {
		return nil, errors.New("progression: progress store is required")
	}
	return &ProgressionController{catalog: catalog, store: store}, nil
}

// ApplyReward stores the submission as one unit of work and reports whether the
// category-level is now exhausted. Catalog lookups happen before any write so an
// unavailable catalog leaves storage untouched.
func (c *ProgressionController) ApplyReward(ctx context.Context, sub domain.RewardSubmission) (domain.RewardResult, error) {
	if err := validateSubmission(sub); err != nil {
		return domain.RewardResult{}, err
	}
	category := domain.NormalizeCategory(sub.Category)

	var (
		catalogNames []string
		err          error
	)
	if category == domain.MixedCategory {
		catalogNames, err = c.catalog.MixedNamesFor(ctx, sub.Level)
	} else {
		catalogNames, err = c.catalog.NamesFor(ctx, category, sub.Level)
	}
	if err != nil {
		return domain.RewardResult{}, err
	}
	maxLevel, err := c.catalog.MaxLevel(ctx, category)
	if err != nil {
		return domain.RewardResult{}, err
	}

	known := domain.NameKeySet(catalogNames)
	delta := make([]string, 0, len(sub.GuessedNames))
	for name := range domain.NameKeySet(sub.GuessedNames) {
		// Guessed names must stay a subset of the category-level pool.
		if _, ok := known[name]; ok {
			delta = append(delta, name)
		}
	}
	sort.Strings(delta)

	key := domain.ProgressKey{UserID: sub.UserID, Category: category, Level: sub.Level}
	var guessed []string
	err = c.store.WithinTx(ctx, func(tx ProgressTx) error {
		if err := tx.LockUser(ctx, sub.UserID); err != nil {
			return err
		}
		raised, err := tx.RaisePoints(ctx, key, sub.Points)
		if err != nil {
			return fmt.Errorf("raise points: %w", err)
		}
		if len(delta) > 0 {
			if err := tx.AddGuessedNames(ctx, key, delta); err != nil {
				return fmt.Errorf("add guessed names: %w", err)
			}
		}
		if sub.TotalPoints != nil {
			if err := tx.SetReportedTotal(ctx, sub.UserID, *sub.TotalPoints); err != nil {
				return fmt.Errorf("set reported total: %w", err)
			}
		}
		if raised {
			if _, err := tx.RefreshTotal(ctx, sub.UserID); err != nil {
				return fmt.Errorf("refresh total: %w", err)
			}
		}
		guessed, err = tx.GuessedNames(ctx, key)
		if err != nil {
			return fmt.Errorf("read guessed names: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.RewardResult{}, storageFailure("apply reward", err)
	}

	guessedSet := domain.NameKeySet(guessed)
	for name := range known {
		if _, ok := guessedSet[name]; !ok {
			return domain.RewardResult{}, nil
		}
	}
	if sub.Level < maxLevel {
		return domain.RewardResult{LevelUp: true}, nil
	}
	return domain.RewardResult{EndGame: true}, nil
}

// DeleteUser removes guessed names, progress and the user row as one unit.
func (c *ProgressionController) DeleteUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return &domain.ValidationError{Field: "userId", Reason: "required"}
	}
	err := c.store.WithinTx(ctx, func(tx ProgressTx) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		if err := tx.DeleteGuessedNames(ctx, userID); err != nil {
			return fmt.Errorf("delete guessed names: %w", err)
		}
		if err := tx.DeleteProgress(ctx, userID); err != nil {
			return fmt.Errorf("delete progress: %w", err)
		}
		if err := tx.DeleteUser(ctx, userID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return storageFailure("delete user", err)
	}
	return nil
}

func validateSubmission(sub domain.RewardSubmission) error {
	switch {
	case strings.TrimSpace(sub.UserID) == "":
		return &domain.ValidationError{Field: "userId", Reason: "required"}
	case strings.TrimSpace(sub.Category) == "":
		return &domain.ValidationError{Field: "category", Reason: "required"}
	case sub.Level < 1:
		return &domain.ValidationError{Field: "level", Reason: "must be >= 1"}
	case sub.Points < 0:
		return &domain.ValidationError{Field: "points", Reason: "must be >= 0"}
	case sub.TotalPoints != nil && *sub.TotalPoints < 0:
		return &domain.ValidationError{Field: "totalPoints", Reason: "must be >= 0"}
	}
	return nil
}

// storageFailure passes lookup misses and validation errors through and
// classifies everything else as a failed unit of work.
func storageFailure(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}
