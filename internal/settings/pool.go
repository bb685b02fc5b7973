// Package settings holds the model credential pool and the stores that persist it.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// ErrReadOnly is returned by stores that cannot persist changes.
var ErrReadOnly = errors.New("credential store is read-only")

// Store loads and saves the ordered credential list.
type Store interface {
	LoadCredentials(ctx context.Context) ([]string, error)
	SaveCredentials(ctx context.Context, creds []string) error
}

// Pool is the process-wide credential list. Reads are concurrent; the list is
// replaced only by Load or Save. An empty pool reloads from the store on read.
type Pool struct {
	store Store

	mu    sync.RWMutex
	creds []string
}

func NewPool(store Store) *Pool {
	return &Pool{store: store}
}

// Load replaces the in-memory list with the store's.
func (p *Pool) Load(ctx context.Context) error {
	creds, err := p.store.LoadCredentials(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	creds = Normalize(creds)
	p.mu.Lock()
	p.creds = creds
	p.mu.Unlock()
	slog.Debug("settings: credentials loaded", slog.Int("count", len(creds)))
	return nil
}

// Invalidate drops the in-memory list so the next read reloads it.
func (p *Pool) Invalidate() {
	p.mu.Lock()
	p.creds = nil
	p.mu.Unlock()
}

// Credentials returns a copy of the list in order, loading it first if empty.
func (p *Pool) Credentials(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	creds := slices.Clone(p.creds)
	p.mu.RUnlock()
	if len(creds) > 0 {
		return creds, nil
	}
	if err := p.Load(ctx); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.creds), nil
}

// Save persists creds and makes them current.
func (p *Pool) Save(ctx context.Context, creds []string) error {
	creds = Normalize(creds)
	if err := p.store.SaveCredentials(ctx, creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	p.mu.Lock()
	p.creds = creds
	p.mu.Unlock()
	return nil
}

// Normalize trims entries and drops blanks and duplicates, keeping first occurrence order.
func Normalize(creds []string) []string {
	out := make([]string, 0, len(creds))
	seen := make(map[string]bool, len(creds))
	for _, c := range creds {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// StaticStore serves a fixed list, typically from the environment.
type StaticStore []string

func (s StaticStore) LoadCredentials(context.Context) ([]string, error) {
	return slices.Clone([]string(s)), nil
}

func (s StaticStore) SaveCredentials(context.Context, []string) error { return ErrReadOnly }
