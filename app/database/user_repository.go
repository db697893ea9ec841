package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var _ UserRepository = (*UserStore)(nil)

var ErrDuplicateEmail = errors.New("email already registered")

type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Role == "" {
		user.Role = "user"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, strings.ToLower(user.Email), user.Name, user.PasswordHash, user.Role, toMillis(user.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID returns nil, nil when the user does not exist
func (s *UserStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "id", id)
}

// GetUserByEmail matches case-insensitively and returns nil, nil when not found
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email", strings.ToLower(email))
}

// UpdateUser changes only the non-nil fields
func (s *UserStore) UpdateUser(ctx context.Context, id string, name *string, passwordHash *string) error {
	builder := sq.Update("users").Where(sq.Eq{"id": id})
	changed := false
	if name != nil {
		builder = builder.Set("name", *name)
		changed = true
	}
	if passwordHash != nil {
		builder = builder.Set("password_hash", *passwordHash)
		changed = true
	}
	if !changed {
		return nil
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *UserStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (s *UserStore) getUser(ctx context.Context, column, value string) (*User, error) {
	query, args, err := sq.Select("id", "email", "name", "password_hash", "role", "last_login_at", "created_at").
		From("users").
		Where(sq.Eq{column: value}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	var user User
	var lastLogin sql.NullInt64
	var createdAt int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role, &lastLogin, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.LastLoginAt = nullableMillis(lastLogin)
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}
