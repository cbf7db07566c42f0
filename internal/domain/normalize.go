package domain

import (
	"strconv"
	"strings"
)

// NameKey is the case-insensitive identity of a celebrity name.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeCategory lower-cases and trims a category name.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// ParseLevel accepts the external level spellings ("1", "level_1", "Level 1")
// and returns the integer level used everywhere inside the engine.
func ParseLevel(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if rest, ok := strings.CutPrefix(s, "level"); ok {
		s = strings.TrimLeft(rest, "_- ")
	}
	if s == "" {
		return 0, &ValidationError{Field: "level", Reason: "missing"}
	}
	level, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ValidationError{Field: "level", Reason: "not a number: " + raw}
	}
	if level < 1 {
		return 0, &ValidationError{Field: "level", Reason: "must be >= 1"}
	}
	return level, nil
}

// NameKeySet builds a set of name keys, ignoring blanks.
func NameKeySet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if k := NameKey(n); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}
