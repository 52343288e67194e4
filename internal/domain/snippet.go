// Package domain contains domain models for the application.
package domain

import (
	"slices"
	"strings"
)

// Snippet represents a named piece of stored text.
// Name is the primary key; a snippet is always replaced as a whole.
type Snippet struct {
	Name        string   `json:"name" toml:"name" validate:"required"`
	Content     string   `json:"content" toml:"-"`
	Description string   `json:"description,omitempty" toml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" toml:"tags,omitempty" validate:"omitempty,dive,required"`
	Language    FileType `json:"language,omitempty" toml:"language,omitempty"`
	Visibility  string   `json:"visibility,omitempty" toml:"visibility,omitempty"`
}

// Visibility values used by the CLI. Other values are stored as given.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Clone returns a deep copy so the caller and the store never share slices.
func (s Snippet) Clone() Snippet {
	c := s
	if s.Tags != nil {
		c.Tags = slices.Clone(s.Tags)
	}
	return c
}

// Equal reports whether two snippets hold the same data.
// A nil tag list and an empty one are equal since neither is encoded.
func (s Snippet) Equal(o Snippet) bool {
	return s.Name == o.Name &&
		s.Content == o.Content &&
		s.Description == o.Description &&
		s.Language == o.Language &&
		s.Visibility == o.Visibility &&
		slices.Equal(s.Tags, o.Tags)
}

// CloneAll deep-copies a slice of snippets.
func CloneAll(in []Snippet) []Snippet {
	if in == nil {
		return nil
	}
	out := make([]Snippet, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// SortByName orders snippets by name, byte-wise.
func SortByName(items []Snippet) {
	slices.SortFunc(items, func(a, b Snippet) int { return strings.Compare(a.Name, b.Name) })
}
