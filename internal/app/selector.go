package app

import (
	"context"
	"errors"
	"sync"

	"celeb-trivia-service/internal/domain"
)

const (
	maxDistractors = 3
	maxFacts       = 3
)

// Selector picks a question target the player has not guessed yet, plus distractors.
type Selector struct {
	catalog CatalogStore
	assets  AssetResolver

	mu  sync.Mutex
	rnd Rand
}

func NewSelector(catalog CatalogStore, assets AssetResolver, rnd Rand) (*Selector, error) {
	switch {
	case catalog == nil:
		return nil, errors.New("selector: catalog store is required")
	case assets == nil:
		return nil, errors.New("selector: asset resolver is required")
	case rnd == nil:
		return nil, errors.New("selector: random source is required")
	}
	return &Selector{catalog: catalog, assets: assets, rnd: rnd}, nil
}

// SelectQuestion returns ok=false when every name of the pool is already guessed.
func (s *Selector) SelectQuestion(ctx context.Context, category string, level int, guessed []string) (domain.Question, bool, error) {
	category = domain.NormalizeCategory(category)

	var (
		pool []string
		err  error
	)
	if category == domain.MixedCategory {
		pool, err = s.catalog.MixedNamesFor(ctx, level)
	} else {
		pool, err = s.catalog.NamesFor(ctx, category, level)
	}
	if err != nil {
		return domain.Question{}, false, err
	}

	remaining := without(pool, domain.NameKeySet(guessed))
	if len(remaining) == 0 {
		return domain.Question{}, false, nil
	}

	target := remaining[s.intn(len(remaining))]
	record, err := s.catalog.RecordFor(ctx, target, level)
	if err != nil {
		return domain.Question{}, false, err
	}

	primary := record.PrimaryCategory()
	if primary == "" && category != domain.MixedCategory {
		primary = category
	}

	distractors, err := s.distractors(ctx, primary, level, target, remaining)
	if err != nil {
		return domain.Question{}, false, err
	}

	images := make([]string, len(distractors))
	for i, name := range distractors {
		images[i] = s.assets.ImageURL(name)
	}

	return domain.Question{
		Target:           target,
		Category:         primary,
		Facts:            s.sample(record.Facts, maxFacts),
		Level:            level,
		ImageURL:         s.assets.ImageURL(target),
		DistractorImages: images,
		DistractorNames:  distractors,
	}, true, nil
}

// distractors draws from the target's primary category first, then tops up
// from the remaining request pool.
func (s *Selector) distractors(ctx context.Context, primary string, level int, target string, remaining []string) ([]string, error) {
	exclude := map[string]struct{}{domain.NameKey(target): {}}

	var picked []string
	if primary != "" {
		sameCategory, err := s.catalog.NamesFor(ctx, primary, level)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// The record's category is not listed at this level; top up covers it.
		case err != nil:
			return nil, err
		default:
			picked = s.sample(without(sameCategory, exclude), maxDistractors)
		}
	}
	for _, name := range picked {
		exclude[domain.NameKey(name)] = struct{}{}
	}

	if missing := maxDistractors - len(picked); missing > 0 {
		picked = append(picked, s.sample(without(remaining, exclude), missing)...)
	}
	return picked, nil
}

// sample draws up to k items uniformly without replacement.
func (s *Selector) sample(items []string, k int) []string {
	if len(items) <= k {
		return append([]string{}, items...)
	}
	shuffled := append([]string(nil), items...)
	for i := 0; i < k; i++ {
		j := i + s.intn(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:k]
}

func (s *Selector) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

// without filters names whose key is in exclude, also collapsing duplicate keys.
func without(names []string, exclude map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		key := domain.NameKey(name)
		if _, ok := exclude[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}
