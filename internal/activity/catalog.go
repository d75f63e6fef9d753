package activity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ItemSource provides item display names.
type ItemSource interface {
	FetchShopItems(ctx context.Context) map[string]string
	FetchGardenItems(ctx context.Context) map[string]string
}

// Catalog caches shop and garden item names for ttl.
type Catalog struct {
	source ItemSource
	ttl    time.Duration
	now    func() time.Time

	mu          sync.RWMutex
	shop        map[string]string
	garden      map[string]string
	refreshedAt time.Time
}

func NewCatalog(source ItemSource, ttl time.Duration) *Catalog {
	return &Catalog{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		shop:   map[string]string{},
		garden: map[string]string{},
	}
}

// Refresh reloads both maps unless the cache is younger than ttl.
func (c *Catalog) Refresh(ctx context.Context) {
	c.mu.RLock()
	fresh := !c.refreshedAt.IsZero() && c.now().Sub(c.refreshedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return
	}
	c.load(ctx)
}

// ForceRefresh reloads both maps regardless of age.
func (c *Catalog) ForceRefresh(ctx context.Context) {
	c.load(ctx)
}

func (c *Catalog) load(ctx context.Context) {
	var (
		wg           sync.WaitGroup
		shop, garden map[string]string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		shop = c.source.FetchShopItems(ctx)
	}()
	go func() {
		defer wg.Done()
		garden = c.source.FetchGardenItems(ctx)
	}()
	wg.Wait()

	c.mu.Lock()
	c.shop = shop
	c.garden = garden
	c.refreshedAt = c.now()
	c.mu.Unlock()

	log.Info().Str("component", "activity").
		Int("shop", len(shop)).
		Int("garden", len(garden)).
		Msg("item maps updated")
}

// ShopName returns the shop item name for id.
func (c *Catalog) ShopName(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.shop[id]
	return name, ok && name != ""
}

// GardenName returns the garden item name for id.
func (c *Catalog) GardenName(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.garden[id]
	return name, ok && name != ""
}

// Sizes returns the number of cached shop and garden items.
func (c *Catalog) Sizes() (shop, garden int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shop), len(c.garden)
}
