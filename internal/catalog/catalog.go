// Package catalog indexes the celebrity content: which names belong to which
// category and level, and the facts shown for each of them.
package catalog

import (
	"fmt"
	"sort"

	"celeb-trivia-service/internal/domain"
)

// Catalog is an immutable index over a Document. Safe for concurrent reads.
type Catalog struct {
	version   string
	levels    map[int]*levelIndex
	maxLevels map[string]int
	topLevel  int
	problems  []string
}

type levelIndex struct {
	categories map[string][]string
	records    map[string]domain.CelebrityRecord
	mixed      []string
}

// Build indexes doc. Unparseable level keys are an error; content gaps
// (names without records, records without categories) are kept as Problems.
func Build(doc Document) (*Catalog, error) {
	c := &Catalog{
		version:   doc.Version,
		levels:    make(map[int]*levelIndex),
		maxLevels: make(map[string]int),
	}

	for rawLevel, byCategory := range doc.Names {
		level, err := domain.ParseLevel(rawLevel)
		if err != nil {
			return nil, fmt.Errorf("names: %w", err)
		}
		idx := c.level(level)
		for category, names := range byCategory {
			key := domain.NormalizeCategory(category)
			idx.categories[key] = appendUnique(idx.categories[key], names)
			if level > c.maxLevels[key] {
				c.maxLevels[key] = level
			}
		}
		if level > c.topLevel {
			c.topLevel = level
		}
	}

	for rawLevel, records := range doc.Records {
		level, err := domain.ParseLevel(rawLevel)
		if err != nil {
			return nil, fmt.Errorf("records: %w", err)
		}
		idx := c.level(level)
		for name, data := range records {
			if len(data.Categories) == 0 {
				c.problems = append(c.problems, fmt.Sprintf("level %d: %q has no category", level, name))
			}
			idx.records[domain.NameKey(name)] = domain.CelebrityRecord{
				Name:       name,
				Categories: append([]string(nil), data.Categories...),
				Level:      level,
				Facts:      append([]string(nil), data.Facts...),
			}
		}
	}

	// Explicit definitions win over what the names index implies.
	for category, def := range doc.Categories {
		levels := def.Levels
		if levels < 1 {
			levels = 1
		}
		c.maxLevels[domain.NormalizeCategory(category)] = levels
	}

	for level, idx := range c.levels {
		categories := make([]string, 0, len(idx.categories))
		for category := range idx.categories {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			idx.mixed = appendUnique(idx.mixed, idx.categories[category])
			for _, name := range idx.categories[category] {
				if _, ok := idx.records[domain.NameKey(name)]; !ok {
					c.problems = append(c.problems, fmt.Sprintf("level %d: %q listed under %q has no record", level, name, category))
				}
			}
		}
	}
	sort.Strings(c.problems)
	return c, nil
}

func (c *Catalog) level(level int) *levelIndex {
	idx, ok := c.levels[level]
	if !ok {
		idx = &levelIndex{
			categories: make(map[string][]string),
			records:    make(map[string]domain.CelebrityRecord),
		}
		c.levels[level] = idx
	}
	return idx
}

// Version is the artifact version the catalog was built from, if any.
func (c *Catalog) Version() string { return c.version }

// Problems lists content gaps found while building.
func (c *Catalog) Problems() []string { return append([]string(nil), c.problems...) }

// NamesFor returns the names of a category at a level, in catalog order.
func (c *Catalog) NamesFor(category string, level int) ([]string, error) {
	idx, ok := c.levels[level]
	if !ok {
		return nil, domain.ErrLevelNotFound
	}
	names, ok := idx.categories[domain.NormalizeCategory(category)]
	if !ok {
		return nil, domain.ErrCategoryNotFound
	}
	return append([]string(nil), names...), nil
}

// MixedNamesFor returns the union of every category's names at a level.
func (c *Catalog) MixedNamesFor(level int) ([]string, error) {
	idx, ok := c.levels[level]
	if !ok || len(idx.mixed) == 0 {
		return nil, domain.ErrLevelNotFound
	}
	return append([]string(nil), idx.mixed...), nil
}

// PoolFor resolves the candidate names for a request category, expanding "mixed".
func (c *Catalog) PoolFor(category string, level int) ([]string, error) {
	if domain.NormalizeCategory(category) == domain.MixedCategory {
		return c.MixedNamesFor(level)
	}
	return c.NamesFor(category, level)
}

// RecordFor looks up a celebrity by case-insensitive name.
func (c *Catalog) RecordFor(name string, level int) (domain.CelebrityRecord, error) {
	idx, ok := c.levels[level]
	if !ok {
		return domain.CelebrityRecord{}, domain.ErrLevelNotFound
	}
	rec, ok := idx.records[domain.NameKey(name)]
	if !ok {
		return domain.CelebrityRecord{}, fmt.Errorf("%q: %w", name, domain.ErrNameNotFound)
	}
	return rec, nil
}

// MaxLevel is the terminal level of a category. For "mixed" it is the highest
// level present in the catalog.
func (c *Catalog) MaxLevel(category string) (int, error) {
	key := domain.NormalizeCategory(category)
	if key == domain.MixedCategory {
		if c.topLevel == 0 {
			return 0, domain.ErrLevelNotFound
		}
		return c.topLevel, nil
	}
	maxLevel, ok := c.maxLevels[key]
	if !ok {
		return 0, domain.ErrCategoryNotFound
	}
	return maxLevel, nil
}

// Categories lists every known category definition, sorted by name.
func (c *Catalog) Categories() []domain.CategoryDefinition {
	defs := make([]domain.CategoryDefinition, 0, len(c.maxLevels))
	for name, maxLevel := range c.maxLevels {
		defs = append(defs, domain.CategoryDefinition{Name: name, MaxLevel: maxLevel})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Size reports how many levels and records are indexed.
func (c *Catalog) Size() (levels, records int) {
	for _, idx := range c.levels {
		records += len(idx.records)
	}
	return len(c.levels), records
}

func appendUnique(dst, names []string) []string {
	seen := domain.NameKeySet(dst)
	for _, n := range names {
		k := domain.NameKey(n)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		dst = append(dst, n)
	}
	return dst
}
