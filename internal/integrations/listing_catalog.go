package integrations

import (
	"context"
	"sync"

	"github.com/satriadwik/dealroom-be/internal/domain"
)

// MemoryListingCatalog is a seedable stand-in for the catalog service.
// Listings are immutable once seeded; this core only ever reads them.
type MemoryListingCatalog struct {
	listings map[string]domain.Listing
	mu       sync.RWMutex
}

func NewMemoryListingCatalog() *MemoryListingCatalog {
	return &MemoryListingCatalog{listings: make(map[string]domain.Listing)}
}

func (c *MemoryListingCatalog) Seed(listing domain.Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listings[listing.ID] = listing
}

func (c *MemoryListingCatalog) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	listing, exists := c.listings[id]
	if !exists {
		return nil, domain.ErrListingNotFound
	}

	cp := listing
	return &cp, nil
}
