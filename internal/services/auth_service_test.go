package services_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"pixstore/internal/models"
	"pixstore/internal/repositories"
	"pixstore/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockOperatorRepository is a mock implementation of repositories.OperatorRepository
type MockOperatorRepository struct {
	mock.Mock
}

func (m *MockOperatorRepository) Create(ctx context.Context, op *models.Operator) error {
	args := m.Called(op)
	return args.Error(0)
}

func (m *MockOperatorRepository) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Operator), args.Error(1)
}

func (m *MockOperatorRepository) GetByEmail(ctx context.Context, email string) (*models.Operator, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Operator), args.Error(1)
}

// TestMain silences logging during tests
func TestMain(m *testing.M) {
	log.Logger = log.Output(io.Discard)
	os.Exit(m.Run())
}

const testJWTSecret = "test_jwt_secret"

func TestAuthService_RegisterOperator(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockOperatorRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	op := &models.Operator{Username: "admin", Email: "admin@example.com", Password: "password123"}
	mockRepo.On("GetByUsername", "admin").Return(nil, repositories.ErrOperatorNotFound).Once()
	mockRepo.On("GetByEmail", "admin@example.com").Return(nil, repositories.ErrOperatorNotFound).Once()
	mockRepo.On("Create", mock.AnythingOfType("*models.Operator")).Return(nil).Once()

	require.NoError(t, authService.RegisterOperator(ctx, op))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(op.Password), []byte("password123")), "password must be stored hashed")
	mockRepo.AssertExpectations(t)

	mockRepo.On("GetByUsername", "admin").Return(&models.Operator{ID: "1"}, nil).Once()
	err := authService.RegisterOperator(ctx, &models.Operator{Username: "admin", Email: "x@example.com", Password: "p"})
	assert.ErrorIs(t, err, services.ErrUsernameTaken)

	mockRepo.On("GetByUsername", "other").Return(nil, repositories.ErrOperatorNotFound).Once()
	mockRepo.On("GetByEmail", "admin@example.com").Return(&models.Operator{ID: "1"}, nil).Once()
	err = authService.RegisterOperator(ctx, &models.Operator{Username: "other", Email: "admin@example.com", Password: "p"})
	assert.ErrorIs(t, err, services.ErrEmailTaken)

	mockRepo.On("GetByUsername", "broken").Return(nil, fmt.Errorf("db down")).Once()
	err = authService.RegisterOperator(ctx, &models.Operator{Username: "broken", Email: "b@example.com", Password: "p"})
	assert.ErrorContains(t, err, "db down")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockOperatorRepository)
	authService := services.NewAuthService(mockRepo, testJWTSecret, time.Hour)

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	op := &models.Operator{ID: "op-123", Username: "admin", Password: string(hashed)}

	mockRepo.On("GetByUsername", "admin").Return(op, nil).Once()
	token, err := authService.Login(ctx, "admin", "password123")
	require.NoError(t, err)

	claims, err := authService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-123", claims["operator_id"])
	assert.Equal(t, "admin", claims["username"])

	mockRepo.On("GetByUsername", "admin").Return(op, nil).Once()
	_, err = authService.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	mockRepo.On("GetByUsername", "ghost").Return(nil, repositories.ErrOperatorNotFound).Once()
	_, err = authService.Login(ctx, "ghost", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := services.NewAuthService(new(MockOperatorRepository), testJWTSecret, 0)

	_, err := authService.ValidateToken("invalid.token.string")
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator_id": "op-123",
		"exp":         time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := expired.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	_, err = authService.ValidateToken(signed)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator_id": "op-123",
		"exp":         time.Now().Add(time.Hour).Unix(),
	})
	signed, err = forged.SignedString([]byte("another_secret"))
	require.NoError(t, err)
	_, err = authService.ValidateToken(signed)
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}
