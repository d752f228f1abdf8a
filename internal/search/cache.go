// Package search maintains a rebuildable in-memory index over the
// symbol universe for fast prefix search from the UI.
package search

import (
	"context"
	"sort"
	"strings"
	"sync"

	"indistocks/internal/storage"
	"indistocks/pkg/contracts/domain"
)

type entry struct {
	id        int64
	code      string
	name      string
	codeLower string
	nameLower string
	active    bool
}

// Cache is the in-memory search index. It is derived state: rebuilt
// from the symbol table at startup and after every directory refresh,
// never persisted.
type Cache struct {
	mu      sync.RWMutex
	entries []entry
	store   *storage.Store
}

// NewCache creates an empty cache over the store.
func NewCache(store *storage.Store) *Cache {
	return &Cache{store: store}
}

// Rebuild reloads the whole symbol universe. Safe to call concurrently
// with Search; readers see either the old or the new index.
func (c *Cache) Rebuild(ctx context.Context) error {
	syms, err := c.store.GetSymbols(ctx, storage.SymbolFilter{IncludeInactive: true})
	if err != nil {
		return err
	}

	entries := make([]entry, 0, len(syms))
	for _, s := range syms {
		entries = append(entries, entry{
			id:        s.ID,
			code:      s.Code,
			name:      s.Name,
			codeLower: strings.ToLower(s.Code),
			nameLower: strings.ToLower(s.Name),
			active:    s.Active(),
		})
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// Len returns the number of indexed symbols.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Search returns up to limit symbols whose code or name starts with or
// contains the query, case-insensitively. Exact-prefix matches rank
// before contains matches; ties break by code ascending. Inactive
// symbols are excluded from fuzzy results but remain resolvable by
// exact code.
func (c *Cache) Search(query string, limit int) []domain.SymbolMatch {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	type ranked struct {
		rank int
		e    entry
	}
	var hits []ranked
	for _, e := range c.entries {
		if !e.active {
			if e.codeLower == q {
				hits = append(hits, ranked{rank: 0, e: e})
			}
			continue
		}
		switch {
		case strings.HasPrefix(e.codeLower, q) || strings.HasPrefix(e.nameLower, q):
			hits = append(hits, ranked{rank: 0, e: e})
		case strings.Contains(e.codeLower, q) || strings.Contains(e.nameLower, q):
			hits = append(hits, ranked{rank: 1, e: e})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		return hits[i].e.code < hits[j].e.code
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]domain.SymbolMatch, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.SymbolMatch{Code: h.e.code, Name: h.e.name, ID: h.e.id})
	}
	return out
}
