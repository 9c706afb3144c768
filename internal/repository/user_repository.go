package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/auth-service/internal/domain"
)

// ErrUsernameTaken is returned by Create when the username already exists.
var ErrUsernameTaken = errors.New("username already taken")

const uniqueViolation = "23505"

// UserLookup is what credential verification needs from storage.
// Missing users are reported as pgx.ErrNoRows.
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindRoleByUsername(ctx context.Context, username string) (domain.Role, error)
}

// UserRepository defines persistence access for users.
type UserRepository interface {
	UserLookup
	Create(ctx context.Context, user *domain.User) error
	// GetByID may omit PasswordHash when served from cache.
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, password_hash, role)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Username,
		user.PasswordHash,
		user.Role.Authority(),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `
        SELECT id, username, password_hash, role, created_at, updated_at
        FROM users WHERE id=$1`

	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `
        SELECT id, username, password_hash, role, created_at, updated_at
        FROM users WHERE username=$1`

	return scanUser(r.pool.QueryRow(ctx, query, username))
}

func (r *userRepository) FindRoleByUsername(ctx context.Context, username string) (domain.Role, error) {
	const query = `SELECT role FROM users WHERE username=$1`

	var stored string
	if err := r.pool.QueryRow(ctx, query, username).Scan(&stored); err != nil {
		return "", err
	}
	return domain.ParseRole(stored)
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	const query = `
        SELECT id, username, password_hash, role, created_at, updated_at
        FROM users ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user   domain.User
		stored string
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&stored,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(stored)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", user.ID, err)
	}
	user.Role = role
	return &user, nil
}
