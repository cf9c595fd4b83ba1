package core

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the closed set of subscription categories.
type Category string

const (
	Entertainment Category = "Entertainment"
	Productivity  Category = "Productivity"
	Utilities     Category = "Utilities"
	HealthFitness Category = "Health & Fitness"
	Education     Category = "Education"
	Shopping      Category = "Shopping"
	Music         Category = "Music"
	Gaming        Category = "Gaming"
	CloudStorage  Category = "Cloud Storage"
	Other         Category = "Other"
)

var ErrInvalidCategory = errors.New("invalid category")

var categories = []Category{
	Entertainment, Productivity, Utilities, HealthFitness, Education,
	Shopping, Music, Gaming, CloudStorage, Other,
}

// Categories returns every category in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// Normalize maps an empty or unknown category to Other.
func (c Category) Normalize() Category {
	if c.Valid() {
		return c
	}
	return Other
}

// ParseCategory matches case-insensitively. An empty value is Other; anything
// outside the set is rejected.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Other, nil
	}
	for _, known := range categories {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}
