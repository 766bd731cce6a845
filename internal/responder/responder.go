// File: internal/responder/responder.go
package responder

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed responses.yaml
var defaultTableYAML []byte

// FallbackName is the category reported when no trigger matches.
const FallbackName = "default"

// Category is a named trigger set with its reply pool.
type Category struct {
	Name     string   `yaml:"name"`
	Triggers []string `yaml:"triggers"`
	Replies  []string `yaml:"replies"`
}

// Matches reports whether any trigger is a substring of the lower-cased input.
func (c *Category) Matches(lowered string) bool {
	for _, t := range c.Triggers {
		if strings.Contains(lowered, t) {
			return true
		}
	}
	return false
}

// Table is the immutable, ordered category table. Earlier categories win.
type Table struct {
	Categories []Category `yaml:"categories"`
	Fallback   Category   `yaml:"fallback"`
}

var defaultTable = sync.OnceValue(func() *Table {
	t, err := LoadTable(defaultTableYAML)
	if err != nil {
		panic(fmt.Sprintf("responder: embedded table: %v", err))
	}
	return t
})

// DefaultTable returns the built-in response table.
func DefaultTable() *Table { return defaultTable() }

// LoadTable parses and validates a YAML response table. Triggers are
// lower-cased so matching stays case-insensitive.
func LoadTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse response table: %w", err)
	}
	if len(t.Categories) == 0 {
		return nil, errors.New("response table: no categories")
	}
	for i := range t.Categories {
		c := &t.Categories[i]
		if c.Name == "" {
			return nil, fmt.Errorf("response table: category %d has no name", i)
		}
		if len(c.Triggers) == 0 {
			return nil, fmt.Errorf("response table: category %q has no triggers", c.Name)
		}
		if len(c.Replies) == 0 {
			return nil, fmt.Errorf("response table: category %q has no replies", c.Name)
		}
		for j, tr := range c.Triggers {
			tr = strings.ToLower(strings.TrimSpace(tr))
			if tr == "" {
				return nil, fmt.Errorf("response table: category %q has an empty trigger", c.Name)
			}
			c.Triggers[j] = tr
		}
	}
	if t.Fallback.Name == "" {
		t.Fallback.Name = FallbackName
	}
	if len(t.Fallback.Replies) == 0 {
		return nil, errors.New("response table: fallback has no replies")
	}
	return &t, nil
}

// Rand is the randomness source for pool picks.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Reply is a selected response and the category it came from.
type Reply struct {
	Category string
	Text     string
}

// Selector maps free text to a reply. It is safe for concurrent use as long
// as the Rand it was given is.
type Selector struct {
	table *Table
	rnd   Rand
}

type Option func(*Selector)

// WithRand overrides the randomness source.
func WithRand(r Rand) Option {
	return func(s *Selector) { s.rnd = r }
}

// NewSelector builds a selector over t, or over DefaultTable when t is nil.
func NewSelector(t *Table, opts ...Option) *Selector {
	if t == nil {
		t = DefaultTable()
	}
	s := &Selector{table: t, rnd: globalRand{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Classify returns the first category, in priority order, with a trigger
// contained in the input. Matching is plain substring containment, so
// "think" lands in greeting because it contains "hi".
func (s *Selector) Classify(input string) *Category {
	lowered := strings.ToLower(input)
	for i := range s.table.Categories {
		if s.table.Categories[i].Matches(lowered) {
			return &s.table.Categories[i]
		}
	}
	return &s.table.Fallback
}

func (s *Selector) Select(input string) Reply {
	c := s.Classify(input)
	return Reply{Category: c.Name, Text: c.Replies[s.rnd.IntN(len(c.Replies))]}
}

// SelectResponse returns only the reply text.
func (s *Selector) SelectResponse(input string) string {
	return s.Select(input).Text
}
