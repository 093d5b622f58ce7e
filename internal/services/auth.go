package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
)

const (
	maxUsernameLen = 64
	// bcrypt ignores input past 72 bytes
	maxPasswordLen = 72
)

// AuthService is the credential store: it owns password hashing.
type AuthService struct {
	users UserStore
	cost  int
}

func NewAuthService(users UserStore, cost int) *AuthService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{users: users, cost: cost}
}

func (s *AuthService) Register(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return core.User{}, core.InvalidInput("username and password are required")
	}
	if len(username) > maxUsernameLen {
		return core.User{}, core.InvalidInput("username too long")
	}
	if len(password) > maxPasswordLen {
		return core.User{}, core.InvalidInput("password too long (max 72 bytes)")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.CreateUser(ctx, username, string(hash))
	if err != nil {
		return core.User{}, err
	}
	return u, nil
}

// Authenticate returns core.ErrAuthFailure for both unknown users and wrong
// passwords so callers cannot tell them apart.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return core.User{}, core.ErrAuthFailure
	}

	u, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrAuthFailure
	}
	if err != nil {
		return core.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		slog.InfoContext(ctx, "Login rejected", "username", username)
		return core.User{}, core.ErrAuthFailure
	}
	return u, nil
}
