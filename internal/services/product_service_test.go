package services_test

import (
	"context"
	"testing"

	"pixstore/internal/models"
	"pixstore/internal/repositories"
	"pixstore/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	args := m.Called()
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func TestProductService_GetAllProducts(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expected := []models.Product{
		{ID: "a", Name: "Product A", PriceCents: 1000, Stock: 100},
		{ID: "b", Name: "Product B", PriceCents: 2000, Stock: 50},
	}
	mockRepo.On("GetAll").Return(expected, nil).Once()

	products, err := service.GetAllProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected, products)
	mockRepo.AssertExpectations(t)
}

func TestProductService_GetProductByID(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expected := &models.Product{ID: "a", Name: "Product A", PriceCents: 1000, Stock: 100}
	mockRepo.On("GetByID", "a").Return(expected, nil).Once()
	product, err := service.GetProductByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, expected, product)

	mockRepo.On("GetByID", "zz").Return(nil, repositories.ErrProductNotFound).Once()
	_, err = service.GetProductByID(context.Background(), "zz")
	assert.ErrorIs(t, err, repositories.ErrProductNotFound)
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProductValidates(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	err := service.CreateProduct(context.Background(), &models.Product{ID: "x", Name: "No price"})
	assert.ErrorContains(t, err, "invalid product")
	mockRepo.AssertNotCalled(t, "Create", mock.Anything)

	valid := &models.Product{ID: "x", Name: "Valid", PriceCents: 500, Stock: 1}
	mockRepo.On("Create", valid).Return(nil).Once()
	require.NoError(t, service.CreateProduct(context.Background(), valid))
	mockRepo.AssertExpectations(t)
}

func TestProductService_SeedCatalogSkipsExisting(t *testing.T) {
	repo := repositories.NewMemoryProductRepository()
	service := services.NewProductService(repo)
	ctx := context.Background()

	added, err := service.SeedCatalog(ctx, services.DefaultCatalog)
	require.NoError(t, err)
	assert.Equal(t, len(services.DefaultCatalog), added)

	added, err = service.SeedCatalog(ctx, services.DefaultCatalog)
	require.NoError(t, err)
	assert.Zero(t, added)

	p, err := repo.GetByID(ctx, "rotativa-2gb")
	require.NoError(t, err)
	assert.Equal(t, int64(1950), p.PriceCents)
}
