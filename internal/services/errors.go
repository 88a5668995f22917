package services

import "errors"

var (
	ErrOrderNotCancellable = errors.New("order is not pending and cannot be cancelled")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid token")
)
