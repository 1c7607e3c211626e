package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mzaid0/Nestora/types"
)

const userColumns = `id, username, email, password_hash, avatar_url, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{
		db:    db,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.User{}, ErrNotFound
	}
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1`
	return r.getOne(ctx, query, Normalize(username))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`
	return r.getOne(ctx, query, Normalize(email))
}

func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 OR email = $2
		LIMIT 1`
	return r.getOne(ctx, query, Normalize(username), Normalize(email))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := r.now().UTC()
	user.ID = r.newID()
	user.Username = Normalize(user.Username)
	user.Email = Normalize(user.Email)
	if strings.TrimSpace(user.AvatarURL) == "" {
		user.AvatarURL = types.DefaultAvatarURL
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, username, email, password_hash, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		return types.User{}, fmt.Errorf("create user: %w", mapUniqueViolation(err))
	}
	return user, nil
}

// Update applies the non-nil fields of update and returns the stored record.
func (r *UserRepository) Update(ctx context.Context, id string, update types.UserUpdate) (types.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.User{}, ErrNotFound
	}
	if update.Username != nil {
		normalized := Normalize(*update.Username)
		update.Username = &normalized
	}

	const query = `
		UPDATE users
		SET username = COALESCE($2, username),
			password_hash = COALESCE($3, password_hash),
			avatar_url = COALESCE($4, avatar_url),
			updated_at = $5
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(
		ctx,
		query,
		id,
		nullString(update.Username),
		nullString(update.PasswordHash),
		nullString(update.AvatarURL),
		r.now().UTC(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("update user: %w", mapUniqueViolation(err))
	}
	return user, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
