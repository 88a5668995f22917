package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pixstore/internal/models"
)

// MemoryProductRepository is an in-memory implementation of ProductRepository.
// It also owns stock reservation for MemoryOrderLedger.
type MemoryProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex
}

// NewMemoryProductRepository creates a new instance of MemoryProductRepository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: make(map[string]models.Product),
	}
}

// GetAll returns all products ordered by price.
func (r *MemoryProductRepository) GetAll(_ context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		productList = append(productList, p)
	}
	sort.Slice(productList, func(i, j int) bool {
		if productList[i].PriceCents != productList[j].PriceCents {
			return productList[i].PriceCents < productList[j].PriceCents
		}
		return productList[i].ID < productList[j].ID
	})
	return productList, nil
}

// GetByID returns a product by its ID.
func (r *MemoryProductRepository) GetByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrProductNotFound)
	}
	return &product, nil
}

// Create adds a new product.
func (r *MemoryProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[product.ID]; exists {
		return fmt.Errorf("product %s: %w", product.ID, ErrDuplicateID)
	}
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	r.products[product.ID] = *product
	return nil
}

// reserve atomically checks and decrements stock, returning the product as it was priced.
func (r *MemoryProductRepository) reserve(id string, qty int) (models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return models.Product{}, fmt.Errorf("product %s: %w", id, ErrProductNotFound)
	}
	if p.Stock < qty {
		return models.Product{}, fmt.Errorf("product %s (requested %d, available %d): %w", id, qty, p.Stock, ErrOutOfStock)
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now()
	r.products[id] = p
	return p, nil
}

func (r *MemoryProductRepository) restock(id string, qty int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.products[id]; ok {
		p.Stock += qty
		p.UpdatedAt = time.Now()
		r.products[id] = p
	}
}
