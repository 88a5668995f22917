package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pixstore/internal/models"
	"pixstore/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles back-office operator authentication.
type AuthService struct {
	operators repositories.OperatorRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAuthService creates a new AuthService. A zero ttl defaults to 24 hours.
func NewAuthService(operators repositories.OperatorRepository, jwtSecret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		operators: operators,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  ttl,
	}
}

// RegisterOperator hashes the operator's password and saves them.
func (s *AuthService) RegisterOperator(ctx context.Context, op *models.Operator) error {
	if existing, err := s.operators.GetByUsername(ctx, op.Username); err == nil && existing != nil {
		return fmt.Errorf("%w: %s", ErrUsernameTaken, op.Username)
	} else if err != nil && !errors.Is(err, repositories.ErrOperatorNotFound) {
		return err
	}
	if existing, err := s.operators.GetByEmail(ctx, op.Email); err == nil && existing != nil {
		return fmt.Errorf("%w: %s", ErrEmailTaken, op.Email)
	} else if err != nil && !errors.Is(err, repositories.ErrOperatorNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(op.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	op.Password = string(hashed)

	if err := s.operators.Create(ctx, op); err != nil {
		return fmt.Errorf("failed to register operator: %w", err)
	}
	return nil
}

// Login authenticates an operator and returns a signed token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	op, err := s.operators.GetByUsername(ctx, username)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator_id": op.ID,
		"username":    op.Username,
		"exp":         now.Add(s.tokenTTL).Unix(),
		"iat":         now.Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a token, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		log.Debug().Err(err).Msg("token validation failed")
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
