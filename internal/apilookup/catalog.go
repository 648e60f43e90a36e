// Package apilookup resolves extension@Symbol identifiers into API
// documentation, memoizing resolved entries and offering "did you mean"
// suggestions for identifiers that do not resolve.
package apilookup

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/docrag-mcp/pkg/types"
)

// Resolver turns an identifier into documentation
type Resolver interface {
	// Resolve returns the doc for id or an error matching types.ErrNotFound
	Resolve(ctx context.Context, id string) (*types.APIDoc, error)

	// Identifiers lists every resolvable id, used for suggestions
	Identifiers() []string
}

// Catalog is an in-memory Resolver
type Catalog struct {
	mu   sync.RWMutex
	docs map[string]*types.APIDoc
	ids  []string // sorted, rebuilt lazily
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{docs: make(map[string]*types.APIDoc)}
}

// Add stores doc under doc.ID, replacing any previous entry
func (c *Catalog) Add(doc *types.APIDoc) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: api doc requires an id", types.ErrInvalidInput)
	}
	if _, _, err := ParseIdentifier(doc.ID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[doc.ID] = doc
	c.ids = nil
	return nil
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// Resolve looks up id exactly
func (c *Catalog) Resolve(ctx context.Context, id string) (*types.APIDoc, error) {
	c.mu.RLock()
	doc, ok := c.docs[id]
	c.mu.RUnlock()
	if !ok {
		return nil, &types.NotFoundError{Identifier: id}
	}
	return doc, nil
}

// Identifiers returns every id in sorted order
func (c *Catalog) Identifiers() []string {
	c.mu.RLock()
	ids := c.ids
	c.mu.RUnlock()
	if ids != nil {
		return ids
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ids == nil {
		c.ids = make([]string, 0, len(c.docs))
		for id := range c.docs {
			c.ids = append(c.ids, id)
		}
		sort.Strings(c.ids)
	}
	return c.ids
}
