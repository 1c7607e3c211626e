package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mzaid0/Nestora/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "8a6e0804-2bd0-4672-b79d-d97027f9071a"

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewUserRepository(db)
	repo.now = func() time.Time { return fixedNow }
	repo.newID = func() string { return testUserID }
	return repo, mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "avatar_url", "created_at", "updated_at"})
}

func TestCreate_NormalizesAndDefaultsAvatar(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`^\s*INSERT\s+INTO\s+users`).
		WithArgs(testUserID, "alice", "alice@x.com", "hash", types.DefaultAvatarURL, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), types.User{
		Username:     "  Alice ",
		Email:        "ALICE@x.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	assert.Equal(t, testUserID, got.ID)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "alice@x.com", got.Email)
	assert.Equal(t, types.DefaultAvatarURL, got.AvatarURL)
	assert.Equal(t, fixedNow, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_MapsUniqueViolations(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "pq username", err: &pq.Error{Code: "23505", Constraint: "users_username_key"}, want: ErrDuplicateUsername},
		{name: "pq email", err: &pq.Error{Code: "23505", Constraint: "users_email_key"}, want: ErrDuplicateEmail},
		{name: "pgx username", err: &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}, want: ErrDuplicateUsername},
		{name: "pgx unknown constraint", err: &pgconn.PgError{Code: "23505", ConstraintName: "users_pkey"}, want: ErrDuplicateKey},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			mock.ExpectExec(`INSERT\s+INTO\s+users`).WillReturnError(tc.err)

			_, err := repo.Create(context.Background(), types.User{Username: "bob", Email: "bob@x.com", PasswordHash: "h"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrDuplicateKey) {
				t.Fatalf("expected error to match ErrDuplicateKey, got %v", err)
			}
		})
	}
}

func TestCreate_OtherErrorsAreWrapped(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), types.User{Username: "bob", Email: "bob@x.com"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicateKey))
	assert.Regexp(t, regexp.MustCompile(`create user: .*db down`), err.Error())
}

func TestGetByUsername_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT\s+id,\s*username,\s*email,.*FROM\s+users\s+WHERE\s+username\s*=\s*\$1`).
		WithArgs("alice").
		WillReturnRows(userRows().AddRow(testUserID, "alice", "alice@x.com", "hash", types.DefaultAvatarURL, fixedNow, fixedNow))

	got, err := repo.GetByUsername(context.Background(), " ALICE ")
	require.NoError(t, err)
	assert.Equal(t, testUserID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email\s*=\s*\$1`).
		WithArgs("ghost@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "Ghost@x.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetByUsernameOrEmail(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`WHERE\s+username\s*=\s*\$1\s+OR\s+email\s*=\s*\$2`).
		WithArgs("alice", "other@x.com").
		WillReturnRows(userRows().AddRow(testUserID, "alice", "alice@x.com", "hash", types.DefaultAvatarURL, fixedNow, fixedNow))

	got, err := repo.GetByUsernameOrEmail(context.Background(), "Alice", "other@x.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestGetByID_InvalidIDIsNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_OnlySuppliedFields(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE\s+users\s+SET\s+username\s*=\s*COALESCE\(\$2,\s*username\)`).
		WithArgs(testUserID, "newname", nil, nil, fixedNow).
		WillReturnRows(userRows().AddRow(testUserID, "newname", "alice@x.com", "hash", types.DefaultAvatarURL, fixedNow, fixedNow))

	username := " NewName "
	got, err := repo.Update(context.Background(), testUserID, types.UserUpdate{Username: &username})
	require.NoError(t, err)
	assert.Equal(t, "newname", got.Username)
	assert.Equal(t, "hash", got.PasswordHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE\s+users`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), testUserID, types.UserUpdate{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpdate_DuplicateUsername(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE\s+users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

	taken := "bob"
	_, err := repo.Update(context.Background(), testUserID, types.UserUpdate{Username: &taken})
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("want ErrDuplicateUsername, got %v", err)
	}
}
