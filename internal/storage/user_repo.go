package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateUser is returned when a username is already registered.
var ErrDuplicateUser = errors.New("username already exists")

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser inserts a new user. The role is decided inside the same
// transaction that counts existing users, so only the very first
// registration can ever observe a zero count and become admin.
func (r *UserRepo) CreateUser(ctx context.Context, username, passwordHash string) (string, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx create user: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return "", fmt.Errorf("count users: %w", err)
	}
	role := "user"
	if count == 0 {
		role = "admin"
	}

	_, err = tx.Exec(ctx, `
INSERT INTO users (username, password_hash, role)
VALUES ($1, $2, $3)`, username, passwordHash, role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", ErrDuplicateUser
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit create user: %w", err)
	}
	return role, nil
}

func (r *UserRepo) GetPasswordHash(ctx context.Context, username string) (string, bool, error) {
	var hash string
	err := r.db.Pool.QueryRow(ctx, `SELECT password_hash FROM users WHERE username=$1`, username).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get password hash: %w", err)
	}
	return hash, true, nil
}

func (r *UserRepo) GetRole(ctx context.Context, username string) (string, error) {
	var role string
	err := r.db.Pool.QueryRow(ctx, `SELECT role FROM users WHERE username=$1`, username).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "user", nil
	}
	if err != nil {
		return "", fmt.Errorf("get role: %w", err)
	}
	return role, nil
}
