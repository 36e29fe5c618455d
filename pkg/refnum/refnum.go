// Package refnum issues human-readable, prefixed, zero-padded references
// such as CTRL-001.
//
// Generation is optimistic: the highest existing suffix is read, incremented
// and re-checked before use. Collisions move on to the next integer; after
// MaxAttempts the reference falls back to a base36 timestamp suffix.
package refnum

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultField       = "reference"
	DefaultPadWidth    = 3
	DefaultMaxAttempts = 5
)

// Store looks up existing references of an entity type.
type Store interface {
	// ListReferences returns every value of field starting with prefix.
	ListReferences(ctx context.Context, entity, field, prefix string) ([]string, error)
	ReferenceExists(ctx context.Context, entity, field, ref string) (bool, error)
}

type Generator struct {
	store       Store
	maxAttempts int
	now         func() time.Time
}

type GeneratorOption func(*Generator)

func WithMaxAttempts(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func New(store Store, opts ...GeneratorOption) *Generator {
	g := &Generator{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type request struct {
	field    string
	padWidth int
}

type Option func(*request)

func WithField(field string) Option {
	return func(r *request) {
		if field != "" {
			r.field = field
		}
	}
}

func WithPadWidth(n int) Option {
	return func(r *request) {
		if n > 0 {
			r.padWidth = n
		}
	}
}

// Next returns an unused reference for entity under prefix.
func (g *Generator) Next(ctx context.Context, prefix, entity string, opts ...Option) (string, error) {
	req := request{field: DefaultField, padWidth: DefaultPadWidth}
	for _, opt := range opts {
		opt(&req)
	}

	existing, err := g.store.ListReferences(ctx, entity, req.field, prefix)
	if err != nil {
		return "", fmt.Errorf("list %s references: %w", entity, err)
	}

	n := Highest(existing, prefix) + 1
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate := Format(prefix, n, req.padWidth)
		taken, err := g.store.ReferenceExists(ctx, entity, req.field, candidate)
		if err != nil {
			return "", fmt.Errorf("check %s reference %s: %w", entity, candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		n++
	}
	return Fallback(prefix, g.now()), nil
}

// Format renders prefix plus n zero-padded to width. Wider numbers are kept whole.
func Format(prefix string, n int64, width int) string {
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}

// Fallback is the timestamp-derived reference used once retries run out.
func Fallback(prefix string, now time.Time) string {
	return prefix + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
}

// Highest returns the greatest numeric suffix among refs starting with
// prefix, or 0. Suffixes that are not purely digits, or do not fit an
// int64, are ignored.
func Highest(refs []string, prefix string) int64 {
	var best string
	var value int64
	for _, ref := range refs {
		suffix, ok := strings.CutPrefix(ref, prefix)
		if !ok || suffix == "" || !allDigits(suffix) {
			continue
		}
		if best != "" && Compare(suffix, best) <= 0 {
			continue
		}
		v, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil {
			continue
		}
		best, value = suffix, v
	}
	return value
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
