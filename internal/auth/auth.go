package auth

import (
	"context"
	"fmt"

	"docmind/internal/access"
	"docmind/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently ignores input past 72 bytes; truncate explicitly so
// hashing and verification agree on long passwords.
const maxBcryptLength = 72

type Service struct {
	users *storage.UserRepo
}

func NewService(users *storage.UserRepo) *Service {
	return &Service{users: users}
}

// Register creates the account and returns its role. The very first
// registration becomes admin; every later one is a plain user.
func (s *Service) Register(ctx context.Context, username, password string) (access.Role, error) {
	hash, err := bcrypt.GenerateFromPassword(normalizePassword(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	role, err := s.users.CreateUser(ctx, username, string(hash))
	if err != nil {
		return "", err
	}
	return access.ParseRole(role), nil
}

func (s *Service) Verify(ctx context.Context, username, password string) (bool, error) {
	hash, ok, err := s.users.GetPasswordHash(ctx, username)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), normalizePassword(password))
	return err == nil, nil
}

func (s *Service) RoleOf(ctx context.Context, username string) (access.Role, error) {
	role, err := s.users.GetRole(ctx, username)
	if err != nil {
		return "", err
	}
	return access.ParseRole(role), nil
}

func normalizePassword(password string) []byte {
	b := []byte(password)
	if len(b) > maxBcryptLength {
		b = b[:maxBcryptLength]
	}
	return b
}
