package services

import (
	"context"
	"errors"
	"fmt"

	"pixstore/internal/models"
	"pixstore/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// DefaultCatalog is seeded into an empty store.
var DefaultCatalog = []models.Product{
	{ID: "rotativa-1gb", Name: "Rotativa 1GB", Description: "Rotating proxy, 1GB traffic", PriceCents: 1000, Stock: 10},
	{ID: "rotativa-2gb", Name: "Rotativa 2GB", Description: "Rotating proxy, 2GB traffic", PriceCents: 1950, Stock: 10},
	{ID: "rotativa-5gb", Name: "Rotativa 5GB", Description: "Rotating proxy, 5GB traffic", PriceCents: 4700, Stock: 10},
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo     repositories.ProductRepository
	validate *validator.Validate
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo:     repo,
		validate: validator.New(),
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProduct validates and stores a new product.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := s.validate.Struct(product); err != nil {
		return fmt.Errorf("invalid product: %w", err)
	}
	return s.repo.Create(ctx, product)
}

// SeedCatalog inserts products that do not exist yet and reports how many were added.
func (s *ProductService) SeedCatalog(ctx context.Context, products []models.Product) (int, error) {
	added := 0
	for i := range products {
		p := products[i]
		err := s.CreateProduct(ctx, &p)
		if errors.Is(err, repositories.ErrDuplicateID) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		added++
		log.Info().Str("product_id", p.ID).Int64("price_cents", p.PriceCents).Int("stock", p.Stock).Msg("seeded product")
	}
	return added, nil
}
