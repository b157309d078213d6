package catalog

import (
	"context"
	"strconv"
	"sync"

	"github.com/dukerupert/shoppy/internal/domain"
)

// Fetcher loads the full product list.
type Fetcher interface {
	FetchProducts(ctx context.Context) ([]domain.Product, error)
}

// Cache remembers the last product list fetched successfully so products can
// be resolved by id without a round trip per request.
type Cache struct {
	fetcher Fetcher

	mu       sync.RWMutex
	products []domain.Product
	byID     map[int]domain.Product
}

// NewCache wraps fetcher.
func NewCache(fetcher Fetcher) *Cache {
	return &Cache{fetcher: fetcher}
}

// Refresh fetches the catalog and replaces the cached list on success. On
// failure the previous list is kept and the error is returned unchanged.
func (c *Cache) Refresh(ctx context.Context) ([]domain.Product, error) {
	products, err := c.fetcher.FetchProducts(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	c.mu.Lock()
	c.products = products
	c.byID = byID
	c.mu.Unlock()

	return products, nil
}

// Products returns the cached list, fetching it the first time.
func (c *Cache) Products(ctx context.Context) ([]domain.Product, error) {
	c.mu.RLock()
	products := c.products
	c.mu.RUnlock()

	if products != nil {
		return products, nil
	}
	return c.Refresh(ctx)
}

// Product resolves id against the cached list, fetching it the first time.
func (c *Cache) Product(ctx context.Context, id int) (domain.Product, error) {
	if _, err := c.Products(ctx); err != nil {
		return domain.Product{}, err
	}

	c.mu.RLock()
	p, ok := c.byID[id]
	c.mu.RUnlock()

	if !ok {
		return domain.Product{}, domain.NotFound("catalog.product", "product", strconv.Itoa(id))
	}
	return p, nil
}
